package codec

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"time"

	"xmlrpc/rpcerror"
	"xmlrpc/value"
)

// Marshal converts a Go value into its wire Value. It fails only on inputs
// the wire format cannot carry: NaN or infinite floats, maps without string
// keys, unsigned values above the largest wire integer, and Go kinds with no
// XML-RPC counterpart.
func Marshal(v any) (value.Value, error) {
	if v == nil {
		return value.Nil(), nil
	}
	return marshal(reflect.ValueOf(v), "")
}

func marshal(rv reflect.Value, path string) (value.Value, error) {
	switch rv.Type() {
	case valueType:
		// Already a wire value; pass through untouched.
		return rv.Interface().(value.Value), nil
	case timeType:
		return value.DateTime(rv.Interface().(time.Time).Format(TimeLayout)), nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return value.Nil(), nil
		}
		return marshal(rv.Elem(), path)

	case reflect.Bool:
		return value.Bool(rv.Bool()), nil

	case reflect.String:
		return value.String(rv.String()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return intValue(rv.Int()), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return value.Value{}, rpcerror.At(rpcerror.New(rpcerror.KindTypeMismatch,
				"%d overflows the largest wire integer", u), path)
		}
		return intValue(int64(u)), nil

	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return value.Value{}, rpcerror.At(rpcerror.New(rpcerror.KindUnsupportedFloatValue,
				"%v has no wire representation", f), path)
		}
		return value.Double(f), nil

	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return value.Base64(rv.Bytes()), nil
		}
		return marshalSeq(rv, path)

	case reflect.Array:
		return marshalSeq(rv, path)

	case reflect.Map:
		return marshalMap(rv, path)

	case reflect.Struct:
		return marshalStruct(rv, path)

	default:
		return value.Value{}, rpcerror.At(rpcerror.New(rpcerror.KindTypeMismatch,
			"cannot encode Go %s", rv.Kind()), path)
	}
}

// intValue picks <int> when the number fits 32 bits and <i8> otherwise.
func intValue(i int64) value.Value {
	if i >= math.MinInt32 && i <= math.MaxInt32 {
		return value.Int(int32(i))
	}
	return value.Int64(i)
}

func marshalSeq(rv reflect.Value, path string) (value.Value, error) {
	// Heterogeneous arrays are fine on the wire; a Go slice cannot produce
	// one directly, but []any can.
	elems := make([]value.Value, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		ev, err := marshal(rv.Index(i), fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return value.Value{}, err
		}
		elems[i] = ev
	}
	return value.Array(elems...), nil
}

func marshalMap(rv reflect.Value, path string) (value.Value, error) {
	// Member names on the wire are strings; any other key type is a hard
	// constraint violation, not a conversion we could attempt.
	if rv.Type().Key().Kind() != reflect.String {
		return value.Value{}, rpcerror.At(rpcerror.New(rpcerror.KindUnsupportedKeyType,
			"map keys must be strings, not %s", rv.Type().Key()), path)
	}

	// Map iteration order is random; sort the keys so the same map always
	// encodes to the same document.
	keys := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		keys = append(keys, iter.Key().String())
	}
	sort.Strings(keys)

	members := make([]value.Member, 0, len(keys))
	for _, k := range keys {
		mv, err := marshal(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())), path+"."+k)
		if err != nil {
			return value.Value{}, err
		}
		members = append(members, value.Member{Name: k, Value: mv})
	}
	return value.Struct(members...), nil
}

func marshalStruct(rv reflect.Value, path string) (value.Value, error) {
	t := rv.Type()
	members := make([]value.Member, 0, t.NumField())
	for _, f := range reflect.VisibleFields(t) {
		if f.Anonymous {
			continue // embedded struct's own fields arrive via VisibleFields
		}
		name, ok := fieldName(f)
		if !ok {
			continue
		}
		mv, err := marshal(rv.FieldByIndex(f.Index), path+"."+name)
		if err != nil {
			return value.Value{}, err
		}
		members = append(members, value.Member{Name: name, Value: mv})
	}
	return value.Struct(members...), nil
}
