// Package codec converts between arbitrary Go values and the wire Value
// tree.
//
// Marshal walks a Go value's structure (scalars, slices, string-keyed maps,
// structs, pointers) and builds the equivalent Value. Unmarshal walks an
// already-parsed, shape-erased Value tree driven by the shape the Go target
// declares, and reports a precise type mismatch, including the field or
// index path, whenever the two disagree.
//
// Struct fields use the `xmlrpc:"name"` tag to pick their member name, or
// `xmlrpc:"-"` to be skipped. Untagged exported fields use the Go field name
// verbatim.
package codec

import (
	"reflect"
	"time"

	"xmlrpc/value"
)

// TimeLayout is the dateTime.iso8601 form XML-RPC traditionally uses.
// It is applied when converting time.Time to and from DateTime values; the
// DateTime payload itself is otherwise opaque text.
const TimeLayout = "20060102T15:04:05"

var (
	valueType = reflect.TypeOf(value.Value{})
	timeType  = reflect.TypeOf(time.Time{})
)

// fieldName resolves the wire member name for a struct field. The second
// result is false when the field is excluded.
func fieldName(f reflect.StructField) (string, bool) {
	if f.PkgPath != "" {
		return "", false // unexported
	}
	tag := f.Tag.Get("xmlrpc")
	if tag == "-" {
		return "", false
	}
	if tag != "" {
		return tag, true
	}
	return f.Name, true
}
