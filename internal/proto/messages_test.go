package proto

import (
	"errors"
	"reflect"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	cases := []RequestMessage{
		{
			Method:   "POST",
			FullPath: "/webhook?sig=abc&x=1",
			Headers: []Header{
				{Name: "Content-Type", Value: "application/json"},
				{Name: "X-Hook-Id", Value: "1"},
				{Name: "X-Hook-Id", Value: "2"}, // duplicate, order matters
			},
			Body: []byte(`{"id":1}`),
		},
		{
			Method:   "GET",
			FullPath: "/",
			Headers:  nil,
			Body:     nil,
		},
		{
			Method:   "PUT",
			FullPath: "/bin",
			Headers:  []Header{{Name: "A", Value: ""}},
			// arbitrary binary payload must survive untouched
			Body: []byte{0x00, 0xff, 0x0a, 0x00, 0xc3, 0x28, 0x00},
		},
	}
	for _, want := range cases {
		b, err := EncodeRequest(want)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := DecodeRequest(b)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("round trip mismatch\n got %#v\nwant %#v", got, want)
		}
	}
}

func TestDecodeRequestErrors(t *testing.T) {
	valid, err := EncodeRequest(RequestMessage{Method: "POST", FullPath: "/x"})
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string][]byte{
		"empty":      {},
		"truncated":  valid[:len(valid)-3],
		"not a map":  {0xc0}, // msgpack nil
		"garbage":    {0x01, 0x02, 0x03},
	}
	for name, b := range cases {
		if _, err := DecodeRequest(b); err == nil {
			t.Errorf("%s: expected error", name)
		} else {
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Errorf("%s: expected *DecodeError, got %T", name, err)
			}
		}
	}
}

func TestDecodeRequestBadMethod(t *testing.T) {
	b, err := EncodeRequest(RequestMessage{Method: "BREW", FullPath: "/coffee"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeRequest(b); err == nil {
		t.Fatal("expected error for unknown verb")
	}
	b, err = EncodeRequest(RequestMessage{Method: "GET", FullPath: ""})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecodeRequest(b); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestAuthRoundTrip(t *testing.T) {
	a := Auth{Version: Version, Name: "dev-laptop", Secret: "abc123"}
	b, err := EncodeAuth(a)
	if err != nil {
		t.Fatal(err)
	}
	got, err := DecodeAuth(b)
	if err != nil {
		t.Fatal(err)
	}
	if got != a {
		t.Errorf("got %#v want %#v", got, a)
	}

	reply := AuthReply{OK: false, Msg: "unauthorized"}
	b, err = EncodeAuthReply(reply)
	if err != nil {
		t.Fatal(err)
	}
	gotReply, err := DecodeAuthReply(b)
	if err != nil {
		t.Fatal(err)
	}
	if gotReply != reply {
		t.Errorf("got %#v want %#v", gotReply, reply)
	}
}

func TestHeaderGet(t *testing.T) {
	r := RequestMessage{Headers: []Header{{Name: "X", Value: "1"}, {Name: "X", Value: "2"}}}
	if got := r.Get("X"); got != "1" {
		t.Errorf("Get returned %q, want first value", got)
	}
	if got := r.Get("Missing"); got != "" {
		t.Errorf("Get returned %q for missing header", got)
	}
}
