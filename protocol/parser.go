package protocol

import (
	"encoding/base64"
	"encoding/xml"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"xmlrpc/rpcerror"
	"xmlrpc/value"
)

// Limits bounds what the parser will accept from untrusted input. A zero
// field disables that bound.
type Limits struct {
	MaxDepth int // maximum array/struct nesting before TooDeep
	MaxNodes int // maximum number of <value> elements before TooLarge
}

// DefaultLimits returns the bounds applied when callers do not choose their
// own. Generous for any real document, far below memory exhaustion.
func DefaultLimits() Limits {
	return Limits{MaxDepth: 256, MaxNodes: 1 << 20}
}

// Parser consumes XML-RPC text from a token stream. The underlying
// tokenizer (encoding/xml) is trusted to hand over well-formed start/text/end
// events; everything XML-RPC-specific is enforced here.
//
// Nested values are tracked on an explicit frame stack rather than through
// recursion, so adversarial nesting depth costs heap, not call stack, and is
// cut off by Limits.MaxDepth.
type Parser struct {
	dec    *xml.Decoder
	limits Limits
	nodes  int
}

// NewParser returns a Parser reading from r under the given limits.
func NewParser(r io.Reader, limits Limits) *Parser {
	dec := xml.NewDecoder(r)
	dec.Strict = true
	return &Parser{dec: dec, limits: limits}
}

// ParseValue parses a single complete <value> element from text.
func ParseValue(text string) (value.Value, error) {
	return ParseValueLimits(text, DefaultLimits())
}

// ParseValueLimits is ParseValue with caller-chosen limits.
func ParseValueLimits(text string, limits Limits) (value.Value, error) {
	p := NewParser(strings.NewReader(text), limits)
	return p.ParseValue()
}

// ParseValue consumes one complete <value> element, including its start tag.
func (p *Parser) ParseValue() (value.Value, error) {
	if err := p.ExpectStart("value"); err != nil {
		return value.Value{}, err
	}
	return p.parseValueBody()
}

// frame is one open container on the parse stack: either a struct collecting
// members or an array collecting elements.
type frame struct {
	isStruct bool
	elems    []value.Value
	members  []value.Member
	name     string // pending member name, struct frames only
}

// parseValueBody parses the body of a <value> whose start tag has already
// been consumed, through its matching end tag.
func (p *Parser) parseValueBody() (value.Value, error) {
	var stack []*frame

	// deliver hands a finished value to the innermost open container, or
	// reports it as the final result when no container is open. A struct
	// member's </member> is consumed here, right after its value.
	deliver := func(v value.Value) (value.Value, bool, error) {
		if len(stack) == 0 {
			return v, true, nil
		}
		top := stack[len(stack)-1]
		if top.isStruct {
			top.members = append(top.members, value.Member{Name: top.name, Value: v})
			if err := p.ExpectEnd("member"); err != nil {
				return value.Value{}, false, err
			}
		} else {
			top.elems = append(top.elems, v)
		}
		return value.Value{}, false, nil
	}

	// enter is true whenever a <value> start has just been consumed and its
	// body is the next thing on the stream.
	enter := true

	for {
		if enter {
			enter = false

			if p.limits.MaxNodes > 0 {
				p.nodes++
				if p.nodes > p.limits.MaxNodes {
					return value.Value{}, rpcerror.New(rpcerror.KindTooLarge,
						"document holds more than %d values", p.limits.MaxNodes)
				}
			}

			leaf, open, err := p.valueBody()
			if err != nil {
				return value.Value{}, err
			}
			if open != nil {
				if p.limits.MaxDepth > 0 && len(stack) >= p.limits.MaxDepth {
					return value.Value{}, rpcerror.New(rpcerror.KindTooDeep,
						"nesting exceeds %d levels", p.limits.MaxDepth)
				}
				stack = append(stack, open)
			} else {
				done, final, err := deliver(leaf)
				if err != nil {
					return value.Value{}, err
				}
				if final {
					return done, nil
				}
			}
			continue
		}

		// Scan the innermost open container for its next child or its end.
		top := stack[len(stack)-1]
		var (
			more bool
			err  error
		)
		if top.isStruct {
			more, err = p.structNext(top)
		} else {
			more, err = p.arrayNext()
		}
		if err != nil {
			return value.Value{}, err
		}
		if more {
			// A child <value> has been opened.
			enter = true
			continue
		}

		// Container closed: build its Value and pop. The duplicate-key
		// policy (last write wins) is applied by value.Struct.
		var v value.Value
		if top.isStruct {
			v = value.Struct(top.members...)
		} else {
			v = value.Array(top.elems...)
		}
		stack = stack[:len(stack)-1]

		done, final, err := deliver(v)
		if err != nil {
			return value.Value{}, err
		}
		if final {
			return done, nil
		}
	}
}

// valueBody reads what is inside a <value>. For scalar children and bare
// text it returns the finished value with </value> consumed. For struct and
// array children it returns a fresh frame, leaving the stream just inside
// the container (past <struct>, or past <array><data>).
func (p *Parser) valueBody() (value.Value, *frame, error) {
	var text strings.Builder
	for {
		tok, err := p.token()
		if err != nil {
			return value.Value{}, nil, err
		}
		switch t := tok.(type) {
		case xml.CharData:
			text.Write(t)

		case xml.Comment, xml.ProcInst, xml.Directive:
			// Not content.

		case xml.EndElement:
			// </value> with no typed child: implicit string, kept verbatim.
			return value.String(text.String()), nil, nil

		case xml.StartElement:
			if strings.TrimSpace(text.String()) != "" {
				return value.Value{}, nil, rpcerror.New(rpcerror.KindSyntax,
					"mixed text and element content inside <value>")
			}
			return p.typedValue(t.Name.Local)
		}
	}
}

// typedValue handles one typed child of <value>, dispatching on its tag.
func (p *Parser) typedValue(tag string) (value.Value, *frame, error) {
	switch tag {
	case "int", "i4":
		s, err := p.Text(tag)
		if err != nil {
			return value.Value{}, nil, err
		}
		// Some peers emit 64-bit numbers under <int>. Read the full range
		// and keep the Int kind only when the number actually fits 32 bits.
		i, perr := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if perr != nil {
			return value.Value{}, nil, rpcerror.New(rpcerror.KindMalformedNumber,
				"invalid <%s> content %q", tag, strings.TrimSpace(s))
		}
		if i >= math.MinInt32 && i <= math.MaxInt32 {
			return p.finishScalar(value.Int(int32(i)))
		}
		return p.finishScalar(value.Int64(i))

	case "i8":
		s, err := p.Text(tag)
		if err != nil {
			return value.Value{}, nil, err
		}
		i, perr := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if perr != nil {
			return value.Value{}, nil, rpcerror.New(rpcerror.KindMalformedNumber,
				"invalid <i8> content %q", strings.TrimSpace(s))
		}
		return p.finishScalar(value.Int64(i))

	case "double":
		s, err := p.Text(tag)
		if err != nil {
			return value.Value{}, nil, err
		}
		f, perr := parseDouble(strings.TrimSpace(s))
		if perr != nil {
			return value.Value{}, nil, perr
		}
		return p.finishScalar(value.Double(f))

	case "boolean":
		s, err := p.Text(tag)
		if err != nil {
			return value.Value{}, nil, err
		}
		// Only the literal 0 or 1; true/false and anything else is refused.
		switch strings.TrimSpace(s) {
		case "1":
			return p.finishScalar(value.Bool(true))
		case "0":
			return p.finishScalar(value.Bool(false))
		default:
			return value.Value{}, nil, rpcerror.New(rpcerror.KindMalformedBoolean,
				"invalid <boolean> content %q", strings.TrimSpace(s))
		}

	case "string":
		s, err := p.Text(tag)
		if err != nil {
			return value.Value{}, nil, err
		}
		return p.finishScalar(value.String(s))

	case "dateTime.iso8601":
		s, err := p.Text(tag)
		if err != nil {
			return value.Value{}, nil, err
		}
		// Stored as given; never normalized or interpreted.
		return p.finishScalar(value.DateTime(strings.TrimSpace(s)))

	case "base64":
		s, err := p.Text(tag)
		if err != nil {
			return value.Value{}, nil, err
		}
		b, perr := decodeBase64(s)
		if perr != nil {
			return value.Value{}, nil, perr
		}
		return p.finishScalar(value.Base64(b))

	case "nil":
		if err := p.ExpectEnd("nil"); err != nil {
			return value.Value{}, nil, err
		}
		return p.finishScalar(value.Nil())

	case "struct":
		return value.Value{}, &frame{isStruct: true}, nil

	case "array":
		if err := p.ExpectStart("data"); err != nil {
			return value.Value{}, nil, err
		}
		return value.Value{}, &frame{}, nil

	default:
		return value.Value{}, nil, rpcerror.New(rpcerror.KindUnknownType,
			"unrecognized type tag <%s> inside <value>", tag)
	}
}

// finishScalar consumes the </value> that closes a scalar child.
func (p *Parser) finishScalar(v value.Value) (value.Value, *frame, error) {
	if err := p.ExpectEnd("value"); err != nil {
		return value.Value{}, nil, err
	}
	return v, nil, nil
}

// structNext consumes either the next <member><name>…</name><value> of an
// open struct (reporting true), or </struct></value> closing it.
func (p *Parser) structNext(top *frame) (bool, error) {
	tok, err := p.next()
	if err != nil {
		return false, err
	}
	switch t := tok.(type) {
	case xml.EndElement:
		// </struct>; a struct with no members is legal.
		return false, p.ExpectEnd("value")
	case xml.StartElement:
		if t.Name.Local != "member" {
			return false, rpcerror.New(rpcerror.KindSyntax,
				"expected <member> or </struct>, found <%s>", t.Name.Local)
		}
		if err := p.ExpectStart("name"); err != nil {
			return false, err
		}
		name, err := p.Text("name")
		if err != nil {
			return false, err
		}
		top.name = name
		return true, p.ExpectStart("value")
	default:
		return false, rpcerror.New(rpcerror.KindSyntax,
			"unexpected text inside <struct>")
	}
}

// arrayNext consumes either the next child <value> of an open array
// (reporting true), or </data></array></value> closing it.
func (p *Parser) arrayNext() (bool, error) {
	tok, err := p.next()
	if err != nil {
		return false, err
	}
	switch t := tok.(type) {
	case xml.EndElement:
		// </data>; an empty array is legal.
		if err := p.ExpectEnd("array"); err != nil {
			return false, err
		}
		return false, p.ExpectEnd("value")
	case xml.StartElement:
		if t.Name.Local != "value" {
			return false, rpcerror.New(rpcerror.KindSyntax,
				"expected <value> or </data>, found <%s>", t.Name.Local)
		}
		return true, nil
	default:
		return false, rpcerror.New(rpcerror.KindSyntax,
			"unexpected text inside <data>")
	}
}

// ---------------------------------------------------------------------------
// Token-level primitives. The envelope layer drives these directly for the
// methodCall/methodResponse skeleton and calls ParseValue for each payload.
// ---------------------------------------------------------------------------

// Start consumes and returns the next start element, skipping whitespace,
// comments, and the XML declaration.
func (p *Parser) Start() (xml.StartElement, error) {
	tok, err := p.next()
	if err != nil {
		return xml.StartElement{}, err
	}
	switch t := tok.(type) {
	case xml.StartElement:
		return t, nil
	case xml.EndElement:
		return xml.StartElement{}, rpcerror.New(rpcerror.KindSyntax,
			"expected a start tag, found </%s>", t.Name.Local)
	default:
		return xml.StartElement{}, rpcerror.New(rpcerror.KindSyntax,
			"expected a start tag, found text")
	}
}

// ExpectStart consumes the next start element and checks its name.
func (p *Parser) ExpectStart(name string) error {
	start, err := p.Start()
	if err != nil {
		return err
	}
	if start.Name.Local != name {
		return rpcerror.New(rpcerror.KindSyntax,
			"expected <%s>, found <%s>", name, start.Name.Local)
	}
	return nil
}

// StartOrEnd consumes either a start element or the end element named end.
// The boolean reports the end case.
func (p *Parser) StartOrEnd(end string) (xml.StartElement, bool, error) {
	tok, err := p.next()
	if err != nil {
		return xml.StartElement{}, false, err
	}
	switch t := tok.(type) {
	case xml.StartElement:
		return t, false, nil
	case xml.EndElement:
		if t.Name.Local != end {
			return xml.StartElement{}, false, rpcerror.New(rpcerror.KindSyntax,
				"expected </%s>, found </%s>", end, t.Name.Local)
		}
		return xml.StartElement{}, true, nil
	default:
		return xml.StartElement{}, false, rpcerror.New(rpcerror.KindSyntax,
			"expected a tag, found text")
	}
}

// ExpectEnd consumes the end element named name, skipping whitespace.
func (p *Parser) ExpectEnd(name string) error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	switch t := tok.(type) {
	case xml.EndElement:
		if t.Name.Local != name {
			return rpcerror.New(rpcerror.KindSyntax,
				"expected </%s>, found </%s>", name, t.Name.Local)
		}
		return nil
	case xml.StartElement:
		return rpcerror.New(rpcerror.KindSyntax,
			"expected </%s>, found <%s>", name, t.Name.Local)
	default:
		return rpcerror.New(rpcerror.KindSyntax,
			"expected </%s>, found text", name)
	}
}

// Text collects character data verbatim up to the end element named name.
// Entity references arrive already resolved by the tokenizer.
func (p *Parser) Text(name string) (string, error) {
	var b strings.Builder
	for {
		tok, err := p.token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			b.Write(t)
		case xml.Comment, xml.ProcInst, xml.Directive:
			// Not content.
		case xml.EndElement:
			return b.String(), nil
		case xml.StartElement:
			return "", rpcerror.New(rpcerror.KindSyntax,
				"unexpected <%s> inside <%s>", t.Name.Local, name)
		}
	}
}

// next returns the next start element, end element, or non-whitespace
// character data, skipping everything insignificant in between.
func (p *Parser) next() (xml.Token, error) {
	for {
		tok, err := p.token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement, xml.EndElement:
			return tok, nil
		case xml.CharData:
			if len(strings.TrimSpace(string(t))) > 0 {
				return t.Copy(), nil
			}
		}
	}
}

// token fetches one raw token, mapping tokenizer failures onto the Syntax
// error kind. The tokenizer itself guarantees well-formedness (matching end
// tags, valid entities); nothing here re-checks that.
func (p *Parser) token() (xml.Token, error) {
	tok, err := p.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, rpcerror.New(rpcerror.KindSyntax, "unexpected end of document")
		}
		return nil, rpcerror.Wrap(rpcerror.KindSyntax, err, "malformed XML")
	}
	return tok, nil
}

// parseDouble applies the wire format's float grammar: plain decimal with an
// optional exponent. Go's ParseFloat is wider (hex floats, inf, nan), so the
// character set is checked first.
func parseDouble(s string) (float64, error) {
	if s == "" {
		return 0, rpcerror.New(rpcerror.KindMalformedNumber, "empty <double> content")
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '+' || r == '-' || r == '.' || r == 'e' || r == 'E':
		default:
			return 0, rpcerror.New(rpcerror.KindMalformedNumber,
				"invalid <double> content %q", s)
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, rpcerror.New(rpcerror.KindMalformedNumber,
			"invalid <double> content %q", s)
	}
	return f, nil
}

// decodeBase64 decodes standard-alphabet base64, ignoring interior
// whitespace as the wire format allows.
func decodeBase64(s string) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
	b, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, rpcerror.Wrap(rpcerror.KindMalformedBase64, err,
			"invalid <base64> content")
	}
	return b, nil
}
