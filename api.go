// Package xmlrpc is a bidirectional codec between Go values and the XML-RPC
// wire format.
//
// The entry points here mirror the two directions of the data flow. Encoding
// converts a Go value to the wire Value tree (codec), renders it as element
// text (protocol), and optionally wraps it in a methodCall or methodResponse
// (envelope). Decoding runs the same pipeline backwards, projecting the
// parsed tree onto whatever shape the caller's Go target declares.
//
// Transport is deliberately absent: the library begins and ends at text.
// Pair it with any HTTP client or server of your choice.
//
// Every operation is a pure function over its inputs. Nothing is shared
// between calls, so all entry points are safe for concurrent use.
package xmlrpc

import (
	"xmlrpc/codec"
	"xmlrpc/envelope"
	"xmlrpc/protocol"
	"xmlrpc/value"
)

// Re-exported types, so ordinary use needs only this package.
type (
	// Value is one XML-RPC value.
	Value = value.Value
	// MethodCall is a decoded request.
	MethodCall = envelope.MethodCall
	// Fault is a remote failure; DecodeResponse returns it as an error.
	Fault = envelope.Fault
	// Limits bounds parsing of untrusted input.
	Limits = protocol.Limits
)

// EncodeValue converts any encodable Go value into a <value> element.
func EncodeValue(v any) (string, error) {
	wv, err := codec.Marshal(v)
	if err != nil {
		return "", err
	}
	return protocol.FormatValue(wv), nil
}

// DecodeValue parses a <value> element and projects it onto out, which must
// be a non-nil pointer.
func DecodeValue(text string, out any) error {
	wv, err := protocol.ParseValue(text)
	if err != nil {
		return err
	}
	return codec.Unmarshal(wv, out)
}

// ParseValue parses a <value> element into its Value tree, leaving any
// projection to the caller.
func ParseValue(text string) (Value, error) {
	return protocol.ParseValue(text)
}

// EncodeRequest builds a methodCall document. Each parameter may be a Value
// or any encodable Go value.
func EncodeRequest(method string, params ...any) (string, error) {
	vals := make([]value.Value, len(params))
	for i, p := range params {
		v, err := codec.Marshal(p)
		if err != nil {
			return "", err
		}
		vals[i] = v
	}
	return envelope.EncodeCall(method, vals...)
}

// DecodeRequest parses a methodCall document into its method name and
// parameters. Parameters stay as Values: a server resolves the method name
// before it knows the expected shapes.
func DecodeRequest(text string) (*MethodCall, error) {
	return envelope.DecodeCall(text)
}

// EncodeResponse builds a successful methodResponse around result.
func EncodeResponse(result any) (string, error) {
	v, err := codec.Marshal(result)
	if err != nil {
		return "", err
	}
	return envelope.EncodeResponse(v), nil
}

// EncodeFaultResponse builds a fault methodResponse.
func EncodeFaultResponse(code int32, message string) string {
	return envelope.EncodeFault(&envelope.Fault{Code: code, Message: message})
}

// DecodeResponse parses a methodResponse and projects the result onto out.
// A fault document is returned as a *Fault error; out is then untouched.
func DecodeResponse(text string, out any) error {
	v, err := envelope.DecodeResponse(text)
	if err != nil {
		return err
	}
	return codec.Unmarshal(v, out)
}
