package xmlrpc

import (
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeValue(t *testing.T) {
	type endpoint struct {
		Host string `xmlrpc:"host"`
		Port int    `xmlrpc:"port"`
	}

	text, err := EncodeValue(endpoint{Host: "alpha.local", Port: 11311})
	if err != nil {
		t.Fatalf("EncodeValue: %v", err)
	}
	if !strings.HasPrefix(text, "<value><struct>") {
		t.Fatalf("unexpected rendering: %s", text)
	}

	var got endpoint
	if err := DecodeValue(text, &got); err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if got.Host != "alpha.local" || got.Port != 11311 {
		t.Fatalf("round trip changed the value: %+v", got)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	// The shape a ROS master sends for topic negotiation: caller id, topic,
	// and a list of candidate protocols, each itself a list.
	text, err := EncodeRequest("requestTopic",
		"/node", "/rosout", []any{[]any{"TCPROS"}})
	if err != nil {
		t.Fatalf("EncodeRequest: %v", err)
	}

	call, err := DecodeRequest(text)
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if call.Name != "requestTopic" {
		t.Fatalf("method name = %q", call.Name)
	}
	if len(call.Params) != 3 {
		t.Fatalf("got %d params, want 3", len(call.Params))
	}
	if s, ok := call.Params[1].AsString(); !ok || s != "/rosout" {
		t.Fatalf("param 1 = %v", call.Params[1])
	}

	arr, ok := call.Params[2].AsArray()
	if !ok || len(arr) != 1 {
		t.Fatalf("param 2 = %v", call.Params[2])
	}
	if inner, ok := arr[0].AsArray(); !ok || len(inner) != 1 {
		t.Fatalf("inner protocol list = %v", arr[0])
	}
}

func TestResponseRoundTrip(t *testing.T) {
	text, err := EncodeResponse("hello world")
	if err != nil {
		t.Fatalf("EncodeResponse: %v", err)
	}

	var got string
	if err := DecodeResponse(text, &got); err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestFaultResponse(t *testing.T) {
	text := EncodeFaultResponse(4, "Too many parameters.")

	var got string
	err := DecodeResponse(text, &got)
	if err == nil {
		t.Fatal("fault response did not fail")
	}
	var f *Fault
	if !errors.As(err, &f) {
		t.Fatalf("want *Fault, got %T: %v", err, err)
	}
	if f.Code != 4 || f.Message != "Too many parameters." {
		t.Fatalf("fault = %+v", f)
	}
	if got != "" {
		t.Fatalf("out was written on fault: %q", got)
	}
}

func TestParseValueKeepsTree(t *testing.T) {
	v, err := ParseValue("<value><array><data>" +
		"<value><int>1</int></value>" +
		"<value>two</value>" +
		"</data></array></value>")
	if err != nil {
		t.Fatalf("ParseValue: %v", err)
	}
	arr, ok := v.AsArray()
	if !ok || len(arr) != 2 {
		t.Fatalf("want a two-element array, got %v", v)
	}
	if n, ok := arr[0].AsInt(); !ok || n != 1 {
		t.Fatalf("element 0 = %v", arr[0])
	}
	if s, ok := arr[1].AsString(); !ok || s != "two" {
		t.Fatalf("element 1 = %v", arr[1])
	}
}
