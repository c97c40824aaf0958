// Package value defines the in-memory representation of a single XML-RPC
// value: a closed tagged union over the wire format's type set.
//
// A Value is immutable once constructed. It is built in one step, handed to
// exactly one consumer (the wire writer or the projector), and never shared
// or mutated afterwards. The zero Value is Nil.
//
// Struct members keep their insertion order so that a decode→encode round
// trip reproduces the document it started from, but order carries no meaning:
// Equal compares structs as key→value sets.
package value

import "bytes"

// Kind identifies which variant a Value holds.
type Kind byte

const (
	KindNil      Kind = iota // <nil/>
	KindInt                  // <int> / <i4>, 32-bit signed
	KindInt64                // <i8>, 64-bit signed
	KindBool                 // <boolean>, wire form 0/1
	KindDouble               // <double>, IEEE-754
	KindString               // <string>, or bare <value> text
	KindDateTime             // <dateTime.iso8601>, kept as opaque text
	KindBase64               // <base64>, raw bytes
	KindArray                // <array><data>...</data></array>
	KindStruct               // <struct><member>...</member></struct>
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindInt:
		return "int"
	case KindInt64:
		return "i8"
	case KindBool:
		return "boolean"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindDateTime:
		return "dateTime.iso8601"
	case KindBase64:
		return "base64"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	default:
		return "invalid"
	}
}

// Member is one name/value pair of a struct Value.
type Member struct {
	Name  string
	Value Value
}

// Value is one XML-RPC value. Exactly one payload field is meaningful,
// selected by kind.
type Value struct {
	kind    Kind
	num     int64   // Int, Int64
	flt     float64 // Double
	boolean bool    // Bool
	str     string  // String, DateTime
	bin     []byte  // Base64
	arr     []Value // Array
	members []Member // Struct
}

// Kind reports which variant v holds.
func (v Value) Kind() Kind { return v.kind }

// Constructors. Each maps one Go payload onto its wire variant.

// Nil returns the explicit empty value (<nil/>).
func Nil() Value { return Value{kind: KindNil} }

// Int returns a 32-bit integer value (<int>).
func Int(i int32) Value { return Value{kind: KindInt, num: int64(i)} }

// Int64 returns a 64-bit integer value (<i8>).
func Int64(i int64) Value { return Value{kind: KindInt64, num: i} }

// Bool returns a boolean value (<boolean>).
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// Double returns a floating point value (<double>). The caller is responsible
// for never passing NaN or an infinity; the codec layer rejects both before
// a Value is ever built.
func Double(f float64) Value { return Value{kind: KindDouble, flt: f} }

// String returns a text value (<string>).
func String(s string) Value { return Value{kind: KindString, str: s} }

// DateTime returns a timestamp value (<dateTime.iso8601>). The text is stored
// exactly as given; no calendar interpretation is ever applied.
func DateTime(s string) Value { return Value{kind: KindDateTime, str: s} }

// Base64 returns a binary value (<base64>). The bytes are carried exactly;
// base64 text only exists on the wire.
func Base64(b []byte) Value { return Value{kind: KindBase64, bin: b} }

// Array returns an ordered sequence value. Element order is significant and
// preserved through every round trip. Heterogeneous elements are allowed.
func Array(elems ...Value) Value { return Value{kind: KindArray, arr: elems} }

// Struct returns a mapping value from the given members. A duplicate name
// replaces the earlier member's value in place (last write wins), keeping the
// first occurrence's position.
func Struct(members ...Member) Value {
	out := make([]Member, 0, len(members))
	index := make(map[string]int, len(members))
	for _, m := range members {
		if at, ok := index[m.Name]; ok {
			out[at].Value = m.Value
			continue
		}
		index[m.Name] = len(out)
		out = append(out, m)
	}
	return Value{kind: KindStruct, members: out}
}

// Accessors. Each reports the payload and whether v actually holds that
// variant. AsInt64 additionally widens Int, mirroring the one lossless
// numeric widening the wire format allows.

func (v Value) AsInt() (int32, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return int32(v.num), true
}

func (v Value) AsInt64() (int64, bool) {
	if v.kind != KindInt && v.kind != KindInt64 {
		return 0, false
	}
	return v.num, true
}

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.boolean, true
}

func (v Value) AsDouble() (float64, bool) {
	if v.kind != KindDouble {
		return 0, false
	}
	return v.flt, true
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v Value) AsDateTime() (string, bool) {
	if v.kind != KindDateTime {
		return "", false
	}
	return v.str, true
}

func (v Value) AsBytes() ([]byte, bool) {
	if v.kind != KindBase64 {
		return nil, false
	}
	return v.bin, true
}

func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// AsStruct returns the members in insertion order.
func (v Value) AsStruct() ([]Member, bool) {
	if v.kind != KindStruct {
		return nil, false
	}
	return v.members, true
}

// Get looks up a struct member by name.
func (v Value) Get(name string) (Value, bool) {
	if v.kind != KindStruct {
		return Value{}, false
	}
	for _, m := range v.members {
		if m.Name == name {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Equal reports structural equality. Array order matters; struct member order
// does not. DateTime values compare as text.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil:
		return true
	case KindInt, KindInt64:
		return a.num == b.num
	case KindBool:
		return a.boolean == b.boolean
	case KindDouble:
		return a.flt == b.flt
	case KindString, KindDateTime:
		return a.str == b.str
	case KindBase64:
		return bytes.Equal(a.bin, b.bin)
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindStruct:
		if len(a.members) != len(b.members) {
			return false
		}
		for _, m := range a.members {
			other, ok := b.Get(m.Name)
			if !ok || !Equal(m.Value, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
