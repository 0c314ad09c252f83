package sendfile

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"a%20b+c%2B", "a b c+"},
		{"", ""},
		{"plain", "plain"},
		{"%2f%2F", "//"},
		{"%41%62%7e", "Ab~"},
		{"100%25", "100%"},
		{"%00x", "\x00x"},
		{"%E2%82%AC", "€"},
	}
	for _, tc := range cases {
		got, err := Decode([]byte(tc.in))
		if err != nil {
			t.Fatalf("Decode(%q) err: %v", tc.in, err)
		}
		if string(got) != tc.want {
			t.Fatalf("Decode(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, in := range []string{"a%2", "a%", "%", "%g0", "%0g", "ab%zz"} {
		got, err := Decode([]byte(in))
		if !errors.Is(err, ErrMalformedEscape) {
			t.Fatalf("Decode(%q) err = %v; want ErrMalformedEscape", in, err)
		}
		if got != nil {
			t.Fatalf("Decode(%q) returned %q on error", in, got)
		}
	}
}

func TestDecode_InPlace(t *testing.T) {
	buf := []byte("x%2Fy-rest")
	got, err := Decode(buf)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if &got[0] != &buf[0] {
		t.Fatalf("decoded slice does not share the input buffer")
	}
	if len(got) > len(buf) {
		t.Fatalf("output grew: %d > %d", len(got), len(buf))
	}
	if string(got) != "x/y-rest" {
		t.Fatalf("got %q", got)
	}
}
