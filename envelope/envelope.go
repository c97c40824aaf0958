// Package envelope assembles and disassembles the outer methodCall and
// methodResponse documents around the value layer.
//
//   - A methodCall carries one non-empty methodName and zero or more ordered
//     params.
//   - A methodResponse carries either exactly one param (success) or exactly
//     one fault whose payload is a struct with an integer faultCode and a
//     string faultString. Never both; a document with both is rejected.
//
// There is no algorithmic content here, only strict structural checks; every
// payload is delegated to the protocol and codec packages.
package envelope

import (
	"fmt"
	"strings"

	"xmlrpc/codec"
	"xmlrpc/protocol"
	"xmlrpc/rpcerror"
	"xmlrpc/value"
)

const docHeader = `<?xml version="1.0" encoding="utf-8"?>`

// MethodCall is a decoded request: the method name and its parameters in
// document order. Parameter types are left as Values because a server must
// resolve the method name before it knows what shapes to expect.
type MethodCall struct {
	Name   string
	Params []value.Value
}

// Fault is the error half of a methodResponse. It satisfies error so that
// DecodeResponse can surface a remote failure the way any other failure is
// surfaced.
type Fault struct {
	Code    int32  `xmlrpc:"faultCode"`
	Message string `xmlrpc:"faultString"`
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s (%d)", f.Message, f.Code)
}

// EncodeCall renders a complete methodCall document. The method name must be
// non-empty; it is XML-escaped like any other text.
func EncodeCall(name string, params ...value.Value) (string, error) {
	if name == "" {
		return "", rpcerror.New(rpcerror.KindMalformedEnvelope, "method name must not be empty")
	}
	var b strings.Builder
	b.WriteString(docHeader)
	b.WriteString("<methodCall><methodName>")
	b.WriteString(protocol.EscapeText(name))
	b.WriteString("</methodName><params>")
	for _, p := range params {
		b.WriteString("<param>")
		b.WriteString(protocol.FormatValue(p))
		b.WriteString("</param>")
	}
	b.WriteString("</params></methodCall>")
	return b.String(), nil
}

// EncodeResponse renders a successful methodResponse around a single value.
func EncodeResponse(v value.Value) string {
	var b strings.Builder
	b.WriteString(docHeader)
	b.WriteString("<methodResponse><params><param>")
	b.WriteString(protocol.FormatValue(v))
	b.WriteString("</param></params></methodResponse>")
	return b.String()
}

// EncodeFault renders a fault methodResponse.
func EncodeFault(f *Fault) string {
	fv, _ := codec.Marshal(f) // two scalar fields; cannot fail
	var b strings.Builder
	b.WriteString(docHeader)
	b.WriteString("<methodResponse><fault>")
	b.WriteString(protocol.FormatValue(fv))
	b.WriteString("</fault></methodResponse>")
	return b.String()
}

// DecodeCall parses a methodCall document under default limits.
func DecodeCall(text string) (*MethodCall, error) {
	return DecodeCallLimits(text, protocol.DefaultLimits())
}

// DecodeCallLimits parses a methodCall document. The methodName element must
// precede params, matching every implementation in the wild.
func DecodeCallLimits(text string, limits protocol.Limits) (*MethodCall, error) {
	p := protocol.NewParser(strings.NewReader(text), limits)

	root, err := p.Start()
	if err != nil {
		return nil, err
	}
	if root.Name.Local != "methodCall" {
		return nil, rpcerror.New(rpcerror.KindMalformedEnvelope,
			"expected <methodCall>, found <%s>", root.Name.Local)
	}

	st, err := p.Start()
	if err != nil {
		return nil, err
	}
	if st.Name.Local != "methodName" {
		return nil, rpcerror.New(rpcerror.KindMalformedEnvelope,
			"expected <methodName>, found <%s>", st.Name.Local)
	}
	name, err := p.Text("methodName")
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, rpcerror.New(rpcerror.KindMalformedEnvelope, "empty method name")
	}
	call := &MethodCall{Name: name}

	// Zero or one <params>.
	st, end, err := p.StartOrEnd("methodCall")
	if err != nil {
		return nil, err
	}
	if end {
		return call, nil
	}
	if st.Name.Local != "params" {
		return nil, rpcerror.New(rpcerror.KindMalformedEnvelope,
			"expected <params>, found <%s>", st.Name.Local)
	}
	for {
		st, end, err := p.StartOrEnd("params")
		if err != nil {
			return nil, err
		}
		if end {
			break
		}
		if st.Name.Local != "param" {
			return nil, rpcerror.New(rpcerror.KindMalformedEnvelope,
				"expected <param>, found <%s>", st.Name.Local)
		}
		v, err := p.ParseValue()
		if err != nil {
			return nil, err
		}
		if err := p.ExpectEnd("param"); err != nil {
			return nil, err
		}
		call.Params = append(call.Params, v)
	}
	st, end, err = p.StartOrEnd("methodCall")
	if err != nil {
		return nil, err
	}
	if !end {
		if st.Name.Local == "params" {
			return nil, rpcerror.New(rpcerror.KindMalformedEnvelope,
				"methodCall carries more than one <params>")
		}
		return nil, rpcerror.New(rpcerror.KindMalformedEnvelope,
			"unexpected <%s> in methodCall", st.Name.Local)
	}
	return call, nil
}

// DecodeResponse parses a methodResponse document under default limits. A
// fault response comes back as a *Fault error; a success response comes back
// as its single value.
func DecodeResponse(text string) (value.Value, error) {
	return DecodeResponseLimits(text, protocol.DefaultLimits())
}

// DecodeResponseLimits is DecodeResponse with caller-chosen limits.
func DecodeResponseLimits(text string, limits protocol.Limits) (value.Value, error) {
	p := protocol.NewParser(strings.NewReader(text), limits)

	root, err := p.Start()
	if err != nil {
		return value.Value{}, err
	}
	if root.Name.Local != "methodResponse" {
		return value.Value{}, rpcerror.New(rpcerror.KindMalformedEnvelope,
			"expected <methodResponse>, found <%s>", root.Name.Local)
	}

	branch, end, err := p.StartOrEnd("methodResponse")
	if err != nil {
		return value.Value{}, err
	}
	if end {
		return value.Value{}, rpcerror.New(rpcerror.KindMalformedEnvelope,
			"methodResponse carries neither <params> nor <fault>")
	}
	switch branch.Name.Local {
	case "params":
		v, err := decodeSingleParam(p)
		if err != nil {
			return value.Value{}, err
		}
		if err := expectResponseEnd(p); err != nil {
			return value.Value{}, err
		}
		return v, nil

	case "fault":
		f, err := decodeFault(p)
		if err != nil {
			return value.Value{}, err
		}
		if err := expectResponseEnd(p); err != nil {
			return value.Value{}, err
		}
		return value.Value{}, f

	default:
		return value.Value{}, rpcerror.New(rpcerror.KindMalformedEnvelope,
			"expected <params> or <fault>, found <%s>", branch.Name.Local)
	}
}

// decodeSingleParam reads <param><value>…</value></param></params>,
// insisting on exactly one param.
func decodeSingleParam(p *protocol.Parser) (value.Value, error) {
	st, end, err := p.StartOrEnd("params")
	if err != nil {
		return value.Value{}, err
	}
	if end {
		return value.Value{}, rpcerror.New(rpcerror.KindMalformedEnvelope,
			"methodResponse carries no <param>")
	}
	if st.Name.Local != "param" {
		return value.Value{}, rpcerror.New(rpcerror.KindMalformedEnvelope,
			"expected <param>, found <%s>", st.Name.Local)
	}
	v, err := p.ParseValue()
	if err != nil {
		return value.Value{}, err
	}
	if err := p.ExpectEnd("param"); err != nil {
		return value.Value{}, err
	}
	if _, end, err = p.StartOrEnd("params"); err != nil {
		return value.Value{}, err
	}
	if !end {
		return value.Value{}, rpcerror.New(rpcerror.KindMalformedEnvelope,
			"methodResponse carries more than one <param>")
	}
	return v, nil
}

// decodeFault reads the fault's <value> payload and projects it onto Fault.
func decodeFault(p *protocol.Parser) (*Fault, error) {
	fv, err := p.ParseValue()
	if err != nil {
		return nil, err
	}
	if err := p.ExpectEnd("fault"); err != nil {
		return nil, err
	}
	var f Fault
	if err := codec.Unmarshal(fv, &f); err != nil {
		// The payload parsed but is not the required faultCode/faultString
		// struct shape.
		return nil, rpcerror.Wrap(rpcerror.KindMalformedEnvelope, err, "invalid fault payload")
	}
	return &f, nil
}

// expectResponseEnd insists nothing else follows the params or fault branch.
// Seeing the other branch here means the document carried both.
func expectResponseEnd(p *protocol.Parser) error {
	st, end, err := p.StartOrEnd("methodResponse")
	if err != nil {
		return err
	}
	if end {
		return nil
	}
	if st.Name.Local == "params" || st.Name.Local == "fault" {
		return rpcerror.New(rpcerror.KindMalformedEnvelope,
			"methodResponse carries both result and fault branches")
	}
	return rpcerror.New(rpcerror.KindMalformedEnvelope,
		"unexpected <%s> in methodResponse", st.Name.Local)
}
