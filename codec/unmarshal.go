package codec

import (
	"fmt"
	"reflect"
	"time"

	"xmlrpc/rpcerror"
	"xmlrpc/value"
)

// Unmarshal projects a parsed Value tree onto the Go value out points to.
// The projection is driven by the target's declared shape: a struct target
// looks up members by field name, a slice target consumes array elements in
// order, scalar targets demand the matching scalar kind. Every mismatch
// reports the expected shape, the actual Value kind, and the field or index
// path where they disagreed.
//
// Numeric widening (<int> into an int64 field) is accepted; lossy narrowing
// (<double> into an int field) is refused. Unknown struct members are
// ignored. Missing members are an error unless the field is a pointer, which
// is simply left nil.
func Unmarshal(v value.Value, out any) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return rpcerror.New(rpcerror.KindTypeMismatch, "target must be a non-nil pointer")
	}
	return unmarshal(v, rv.Elem(), "")
}

func unmarshal(v value.Value, rv reflect.Value, path string) error {
	switch rv.Type() {
	case valueType:
		rv.Set(reflect.ValueOf(v))
		return nil
	case timeType:
		return unmarshalTime(v, rv, path)
	}

	switch rv.Kind() {
	case reflect.Pointer:
		// nil on the wire leaves an optional target empty.
		if v.Kind() == value.KindNil {
			rv.SetZero()
			return nil
		}
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return unmarshal(v, rv.Elem(), path)

	case reflect.Interface:
		if rv.NumMethod() != 0 {
			return mismatch(v, "empty interface", path)
		}
		g := generic(v)
		if g == nil {
			rv.SetZero()
		} else {
			rv.Set(reflect.ValueOf(g))
		}
		return nil

	case reflect.Bool:
		b, ok := v.AsBool()
		if !ok {
			return mismatch(v, "boolean", path)
		}
		rv.SetBool(b)
		return nil

	case reflect.String:
		// DateTime payloads are opaque text, so a string target takes them.
		if s, ok := v.AsString(); ok {
			rv.SetString(s)
			return nil
		}
		if s, ok := v.AsDateTime(); ok {
			rv.SetString(s)
			return nil
		}
		return mismatch(v, "string", path)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := v.AsInt64()
		if !ok {
			if v.Kind() == value.KindDouble {
				return rpcerror.At(rpcerror.New(rpcerror.KindTypeMismatch,
					"refusing to narrow double to %s", rv.Type()), path)
			}
			return mismatch(v, "integer", path)
		}
		if rv.OverflowInt(i) {
			return rpcerror.At(rpcerror.New(rpcerror.KindTypeMismatch,
				"%d overflows %s", i, rv.Type()), path)
		}
		rv.SetInt(i)
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		i, ok := v.AsInt64()
		if !ok {
			return mismatch(v, "integer", path)
		}
		if i < 0 || rv.OverflowUint(uint64(i)) {
			return rpcerror.At(rpcerror.New(rpcerror.KindTypeMismatch,
				"%d does not fit %s", i, rv.Type()), path)
		}
		rv.SetUint(uint64(i))
		return nil

	case reflect.Float32, reflect.Float64:
		f, ok := v.AsDouble()
		if !ok {
			// Integer into a float target is a lossless widening.
			i, iok := v.AsInt64()
			if !iok {
				return mismatch(v, "double", path)
			}
			f = float64(i)
		}
		if rv.OverflowFloat(f) {
			return rpcerror.At(rpcerror.New(rpcerror.KindTypeMismatch,
				"%v overflows %s", f, rv.Type()), path)
		}
		rv.SetFloat(f)
		return nil

	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b, ok := v.AsBytes()
			if !ok {
				return mismatch(v, "base64", path)
			}
			cp := make([]byte, len(b))
			copy(cp, b)
			rv.SetBytes(cp)
			return nil
		}
		elems, ok := v.AsArray()
		if !ok {
			return mismatch(v, "array", path)
		}
		out := reflect.MakeSlice(rv.Type(), len(elems), len(elems))
		for i, e := range elems {
			if err := unmarshal(e, out.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		rv.Set(out)
		return nil

	case reflect.Array:
		elems, ok := v.AsArray()
		if !ok {
			return mismatch(v, "array", path)
		}
		if len(elems) != rv.Len() {
			return rpcerror.At(rpcerror.New(rpcerror.KindTypeMismatch,
				"array holds %d elements, target holds %d", len(elems), rv.Len()), path)
		}
		for i, e := range elems {
			if err := unmarshal(e, rv.Index(i), fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		return unmarshalMap(v, rv, path)

	case reflect.Struct:
		return unmarshalStruct(v, rv, path)

	default:
		return rpcerror.At(rpcerror.New(rpcerror.KindTypeMismatch,
			"cannot decode into Go %s", rv.Kind()), path)
	}
}

func unmarshalTime(v value.Value, rv reflect.Value, path string) error {
	s, ok := v.AsDateTime()
	if !ok {
		return mismatch(v, "dateTime.iso8601", path)
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		// RFC 3339 timestamps show up in the wild despite the classic form.
		t, err = time.Parse(time.RFC3339, s)
	}
	if err != nil {
		return rpcerror.At(rpcerror.New(rpcerror.KindTypeMismatch,
			"cannot read %q as a timestamp", s), path)
	}
	rv.Set(reflect.ValueOf(t))
	return nil
}

// unmarshalMap fills an open mapping target; every member is kept.
func unmarshalMap(v value.Value, rv reflect.Value, path string) error {
	members, ok := v.AsStruct()
	if !ok {
		return mismatch(v, "struct", path)
	}
	t := rv.Type()
	if t.Key().Kind() != reflect.String {
		return rpcerror.At(rpcerror.New(rpcerror.KindTypeMismatch,
			"map keys must be strings, not %s", t.Key()), path)
	}
	out := reflect.MakeMapWithSize(t, len(members))
	for _, m := range members {
		ev := reflect.New(t.Elem()).Elem()
		if err := unmarshal(m.Value, ev, path+"."+m.Name); err != nil {
			return err
		}
		out.SetMapIndex(reflect.ValueOf(m.Name).Convert(t.Key()), ev)
	}
	rv.Set(out)
	return nil
}

// unmarshalStruct fills a fixed-field target. Required (non-pointer) fields
// must be present; extra members are ignored for forward compatibility.
func unmarshalStruct(v value.Value, rv reflect.Value, path string) error {
	if _, ok := v.AsStruct(); !ok {
		return mismatch(v, "struct", path)
	}
	for _, f := range reflect.VisibleFields(rv.Type()) {
		if f.Anonymous {
			continue
		}
		name, ok := fieldName(f)
		if !ok {
			continue
		}
		mv, present := v.Get(name)
		fv := rv.FieldByIndex(f.Index)
		if !present {
			if fv.Kind() == reflect.Pointer || fv.Kind() == reflect.Interface ||
				fv.Kind() == reflect.Map || fv.Kind() == reflect.Slice {
				continue // optional shapes stay empty
			}
			return rpcerror.At(rpcerror.New(rpcerror.KindTypeMismatch,
				"missing struct member %q", name), path)
		}
		if err := unmarshal(mv, fv, path+"."+name); err != nil {
			return err
		}
	}
	return nil
}

// generic is the representation handed to `any` targets.
func generic(v value.Value) any {
	switch v.Kind() {
	case value.KindNil:
		return nil
	case value.KindInt, value.KindInt64:
		i, _ := v.AsInt64()
		return i
	case value.KindBool:
		b, _ := v.AsBool()
		return b
	case value.KindDouble:
		f, _ := v.AsDouble()
		return f
	case value.KindString:
		s, _ := v.AsString()
		return s
	case value.KindDateTime:
		s, _ := v.AsDateTime()
		return s
	case value.KindBase64:
		b, _ := v.AsBytes()
		cp := make([]byte, len(b))
		copy(cp, b)
		return cp
	case value.KindArray:
		elems, _ := v.AsArray()
		out := make([]any, len(elems))
		for i, e := range elems {
			out[i] = generic(e)
		}
		return out
	case value.KindStruct:
		members, _ := v.AsStruct()
		out := make(map[string]any, len(members))
		for _, m := range members {
			out[m.Name] = generic(m.Value)
		}
		return out
	default:
		return nil
	}
}

func mismatch(v value.Value, want, path string) error {
	return rpcerror.At(rpcerror.New(rpcerror.KindTypeMismatch,
		"expected %s, got %s", want, v.Kind()), path)
}
