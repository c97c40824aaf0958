// Package protocol renders Values to XML-RPC element text and parses XML-RPC
// text back into Values.
//
// The wire grammar handled here, per the XML-RPC specification:
//
//	<value>          one typed child, or bare text (implicit string)
//	typed children:  int|i4, i8, double, boolean (0/1), string,
//	                 dateTime.iso8601, base64,
//	                 array > data > value*,
//	                 struct > member* where member = name + value
//
// Writing is a depth-first walk over the Value tree; by the time a Value
// exists it is already wire-legal, so the only write failures come from the
// destination writer itself. Parsing is driven by encoding/xml's token
// stream and holds its own state on an explicit frame stack, so input
// nesting depth never grows the call stack; depth and node budgets are
// enforced via Limits.
package protocol

import (
	"encoding/base64"
	"io"
	"strconv"
	"strings"

	"xmlrpc/value"
)

// escaper rewrites the five XML predefined entities. Nothing else in text
// content is altered.
var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
)

// EscapeText escapes s for use as XML character data.
func EscapeText(s string) string {
	return escaper.Replace(s)
}

// WriteValue renders v as a complete <value> element on w.
func WriteValue(w io.Writer, v value.Value) error {
	sw, ok := w.(io.StringWriter)
	if !ok {
		sw = plainStringWriter{w}
	}
	return writeValue(sw, v)
}

// FormatValue renders v as a complete <value> element and returns the text.
func FormatValue(v value.Value) string {
	var b strings.Builder
	// strings.Builder never returns a write error.
	writeValue(&b, v)
	return b.String()
}

type plainStringWriter struct{ w io.Writer }

func (p plainStringWriter) WriteString(s string) (int, error) {
	return p.w.Write([]byte(s))
}

func writeValue(w io.StringWriter, v value.Value) error {
	if _, err := w.WriteString("<value>"); err != nil {
		return err
	}

	var err error
	switch v.Kind() {
	case value.KindNil:
		_, err = w.WriteString("<nil/>")

	case value.KindInt:
		i, _ := v.AsInt()
		err = writeTag(w, "int", strconv.FormatInt(int64(i), 10))

	case value.KindInt64:
		i, _ := v.AsInt64()
		err = writeTag(w, "i8", strconv.FormatInt(i, 10))

	case value.KindBool:
		// The wire form is the literal 0 or 1, never true/false.
		b, _ := v.AsBool()
		s := "0"
		if b {
			s = "1"
		}
		err = writeTag(w, "boolean", s)

	case value.KindDouble:
		f, _ := v.AsDouble()
		// Shortest decimal form that parses back to the same bits, without
		// exponent notation, which strict XML-RPC readers reject.
		err = writeTag(w, "double", formatDouble(f))

	case value.KindString:
		s, _ := v.AsString()
		err = writeTag(w, "string", EscapeText(s))

	case value.KindDateTime:
		s, _ := v.AsDateTime()
		err = writeTag(w, "dateTime.iso8601", EscapeText(s))

	case value.KindBase64:
		// Standard alphabet, no line wrapping.
		b, _ := v.AsBytes()
		err = writeTag(w, "base64", base64.StdEncoding.EncodeToString(b))

	case value.KindArray:
		err = writeArray(w, v)

	case value.KindStruct:
		err = writeStruct(w, v)
	}
	if err != nil {
		return err
	}

	_, err = w.WriteString("</value>")
	return err
}

func writeArray(w io.StringWriter, v value.Value) error {
	// An empty array renders as an empty <data>; that is legal, not an error.
	if _, err := w.WriteString("<array><data>"); err != nil {
		return err
	}
	elems, _ := v.AsArray()
	for _, e := range elems {
		if err := writeValue(w, e); err != nil {
			return err
		}
	}
	_, err := w.WriteString("</data></array>")
	return err
}

func writeStruct(w io.StringWriter, v value.Value) error {
	if _, err := w.WriteString("<struct>"); err != nil {
		return err
	}
	// Output order equals the Value's stored member order.
	members, _ := v.AsStruct()
	for _, m := range members {
		if _, err := w.WriteString("<member><name>"); err != nil {
			return err
		}
		if _, err := w.WriteString(EscapeText(m.Name)); err != nil {
			return err
		}
		if _, err := w.WriteString("</name>"); err != nil {
			return err
		}
		if err := writeValue(w, m.Value); err != nil {
			return err
		}
		if _, err := w.WriteString("</member>"); err != nil {
			return err
		}
	}
	_, err := w.WriteString("</struct>")
	return err
}

func writeTag(w io.StringWriter, tag, text string) error {
	if _, err := w.WriteString("<" + tag + ">"); err != nil {
		return err
	}
	if _, err := w.WriteString(text); err != nil {
		return err
	}
	_, err := w.WriteString("</" + tag + ">")
	return err
}

// formatDouble prints f in plain decimal notation, the shortest form that
// parses back to the same bits. NaN and infinities never reach here; the
// codec rejects them before a Double value can exist.
func formatDouble(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
