package protocol

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xmlrpc/rpcerror"
	"xmlrpc/value"
)

func TestParseImplicitString(t *testing.T) {
	v, err := ParseValue("<value>hello</value>")
	require.NoError(t, err)
	assert.True(t, value.Equal(v, value.String("hello")))

	// Edge whitespace is significant and kept verbatim.
	v, err = ParseValue("<value> hi </value>")
	require.NoError(t, err)
	assert.True(t, value.Equal(v, value.String(" hi ")))

	// Self-closing and empty forms are the empty string.
	v, err = ParseValue("<value/>")
	require.NoError(t, err)
	assert.True(t, value.Equal(v, value.String("")))

	v, err = ParseValue("<value></value>")
	require.NoError(t, err)
	assert.True(t, value.Equal(v, value.String("")))
}

func TestParseScalars(t *testing.T) {
	cases := []struct {
		in   string
		want value.Value
	}{
		{"<value><int>42</int></value>", value.Int(42)},
		{"<value><i4>-42</i4></value>", value.Int(-42)},
		{"<value><int>2147483647</int></value>", value.Int(2147483647)},
		{"<value><int>-2147483648</int></value>", value.Int(-2147483648)},
		{"<value><i8>9223372036854775807</i8></value>", value.Int64(math.MaxInt64)},
		{"<value><i8>-9223372036854775808</i8></value>", value.Int64(math.MinInt64)},
		{"<value><boolean>1</boolean></value>", value.Bool(true)},
		{"<value><boolean>0</boolean></value>", value.Bool(false)},
		{"<value><double>3.14</double></value>", value.Double(3.14)},
		{"<value><double>-3.14</double></value>", value.Double(-3.14)},
		{"<value><double>42</double></value>", value.Double(42)},
		{"<value><string>hello</string></value>", value.String("hello")},
		{"<value><string>a&lt;b&amp;c</string></value>", value.String("a<b&c")},
		{"<value><dateTime.iso8601>19980717T14:08:55</dateTime.iso8601></value>", value.DateTime("19980717T14:08:55")},
		{"<value><base64>aGVsbG8gd29ybGQ=</base64></value>", value.Base64([]byte("hello world"))},
		{"<value><nil/></value>", value.Nil()},
	}
	for _, c := range cases {
		v, err := ParseValue(c.in)
		require.NoError(t, err, c.in)
		assert.True(t, value.Equal(v, c.want), "%s: got %v", c.in, v.Kind())
	}
}

func TestParseIntWidensBeyond32Bits(t *testing.T) {
	// <int> content outside the 32-bit range widens to the i8 kind instead
	// of failing; in-range content keeps the int kind.
	v, err := ParseValue("<value><int>9223372036854775807</int></value>")
	require.NoError(t, err)
	assert.True(t, value.Equal(v, value.Int64(math.MaxInt64)), "got %v", v.Kind())

	v, err = ParseValue("<value><i4>-2147483649</i4></value>")
	require.NoError(t, err)
	assert.True(t, value.Equal(v, value.Int64(math.MinInt32-1)), "got %v", v.Kind())

	v, err = ParseValue("<value><int>2147483647</int></value>")
	require.NoError(t, err)
	assert.Equal(t, value.KindInt, v.Kind())
}

func TestParseUnknownTypeTag(t *testing.T) {
	_, err := ParseValue("<value><frobnicate>x</frobnicate></value>")
	require.Error(t, err)
	assert.True(t, rpcerror.Is(err, rpcerror.KindUnknownType), "got %v", err)
}

func TestParseMalformedNumbers(t *testing.T) {
	for _, in := range []string{
		"<value><int>12.5</int></value>",
		"<value><int>abc</int></value>",
		"<value><int></int></value>",
		"<value><int>9223372036854775808</int></value>", // beyond 64 bits
		"<value><i8>9223372036854775808</i8></value>",
		"<value><double>three</double></value>",
		"<value><double>nan</double></value>",
		"<value><double>inf</double></value>",
		"<value><double>0x1p3</double></value>",
	} {
		_, err := ParseValue(in)
		require.Error(t, err, in)
		assert.True(t, rpcerror.Is(err, rpcerror.KindMalformedNumber), "%s: got %v", in, err)
	}
}

func TestParseMalformedBoolean(t *testing.T) {
	for _, in := range []string{
		"<value><boolean>true</boolean></value>",
		"<value><boolean>2</boolean></value>",
		"<value><boolean></boolean></value>",
	} {
		_, err := ParseValue(in)
		require.Error(t, err, in)
		assert.True(t, rpcerror.Is(err, rpcerror.KindMalformedBoolean), "%s: got %v", in, err)
	}
}

func TestParseBase64(t *testing.T) {
	// Interior whitespace is allowed and ignored.
	v, err := ParseValue("<value><base64>aGVs\n bG8g\td29ybGQ=</base64></value>")
	require.NoError(t, err)
	assert.True(t, value.Equal(v, value.Base64([]byte("hello world"))))

	_, err = ParseValue("<value><base64>!!notbase64!!</base64></value>")
	require.Error(t, err)
	assert.True(t, rpcerror.Is(err, rpcerror.KindMalformedBase64), "got %v", err)
}

func TestParseStructDuplicateKeysLastWins(t *testing.T) {
	v, err := ParseValue("<value><struct>" +
		"<member><name>k</name><value><int>1</int></value></member>" +
		"<member><name>other</name><value><int>5</int></value></member>" +
		"<member><name>k</name><value><int>2</int></value></member>" +
		"</struct></value>")
	require.NoError(t, err)

	members, ok := v.AsStruct()
	require.True(t, ok)
	require.Len(t, members, 2)
	// Replacement keeps the first occurrence's position.
	assert.Equal(t, "k", members[0].Name)
	got, _ := v.Get("k")
	assert.True(t, value.Equal(got, value.Int(2)))
}

func TestParsePrettyPrintedDocument(t *testing.T) {
	v, err := ParseValue(`
		<value>
			<struct>
				<member>
					<name>a</name>
					<value><int>1</int></value>
				</member>
			</struct>
		</value>`)
	require.NoError(t, err)
	got, ok := v.Get("a")
	require.True(t, ok)
	assert.True(t, value.Equal(got, value.Int(1)))
}

func TestParseNestedContainers(t *testing.T) {
	v, err := ParseValue("<value><array><data>" +
		"<value></value>" +
		"<value><nil/></value>" +
		"<value><array><data><value>TCPROS</value></data></array></value>" +
		"</data></array></value>")
	require.NoError(t, err)
	want := value.Array(
		value.String(""),
		value.Nil(),
		value.Array(value.String("TCPROS")),
	)
	assert.True(t, value.Equal(v, want))
}

func TestParseSyntaxErrors(t *testing.T) {
	for _, in := range []string{
		"<value><int>1</int>",              // truncated
		"<value><int>1</boolean></value>",  // mismatched end tag
		"not xml at all",                   // no document
		"<value><struct><wrong/></struct></value>", // junk inside struct
		"<value><array><value/></array></value>",   // array without data
	} {
		_, err := ParseValue(in)
		require.Error(t, err, in)
		assert.True(t, rpcerror.Is(err, rpcerror.KindSyntax), "%s: got %v", in, err)
	}
}

func TestParseDepthLimit(t *testing.T) {
	deep := strings.Repeat("<value><array><data>", 10) +
		"<value><int>1</int></value>" +
		strings.Repeat("</data></array></value>", 10)

	_, err := ParseValueLimits(deep, Limits{MaxDepth: 3, MaxNodes: 0})
	require.Error(t, err)
	assert.True(t, rpcerror.Is(err, rpcerror.KindTooDeep), "got %v", err)

	// The same document passes under a roomier bound.
	_, err = ParseValueLimits(deep, Limits{MaxDepth: 32, MaxNodes: 0})
	assert.NoError(t, err)
}

func TestParseNodeLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("<value><array><data>")
	for i := 0; i < 100; i++ {
		b.WriteString("<value><int>1</int></value>")
	}
	b.WriteString("</data></array></value>")

	_, err := ParseValueLimits(b.String(), Limits{MaxNodes: 10})
	require.Error(t, err)
	assert.True(t, rpcerror.Is(err, rpcerror.KindTooLarge), "got %v", err)
}

func TestRoundTrip(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}

	values := []value.Value{
		value.Int(math.MaxInt32),
		value.Int(math.MinInt32),
		value.Int64(math.MaxInt64),
		value.Int64(math.MinInt64),
		value.Bool(true),
		value.Double(math.MaxFloat64),
		value.Double(math.SmallestNonzeroFloat64),
		value.Double(-0.0625),
		value.String(" leading and trailing kept "),
		value.String("五<&>'\""),
		value.DateTime("19980717T14:08:55"),
		value.Base64(nil),
		value.Base64([]byte{0x00}),
		value.Base64(all),
		value.Nil(),
		value.Array(),
		value.Struct(),
		value.Array(
			value.Int(1),
			value.String("two"),
			value.Struct(
				value.Member{Name: "a", Value: value.Double(1.5)},
				value.Member{Name: "b", Value: value.Array(value.Nil(), value.Bool(false))},
			),
		),
	}

	for _, in := range values {
		text := FormatValue(in)
		out, err := ParseValue(text)
		require.NoError(t, err, text)
		assert.True(t, value.Equal(in, out), "round trip changed %s: %s", in.Kind(), text)
	}
}
