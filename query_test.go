package sendfile

import (
	"io/fs"
	"testing"
)

func tokens(raw string) []string {
	t := NewTokenizer([]byte(raw))
	var out []string
	for tok, ok := t.Next(); ok; tok, ok = t.Next() {
		out = append(out, string(tok))
	}
	return out
}

func TestTokenizer(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a=1&b=2;c=3", []string{"a=1", "b=2", "c=3"}},
		{"a=1", []string{"a=1"}},
		{"", []string{""}},
		{"a&&b", []string{"a", "", "b"}},
		{"a=1&", []string{"a=1", ""}},
		{"x+y=1+2", []string{"x y=1 2"}},
	}
	for _, tc := range cases {
		got := tokens(tc.in)
		if len(got) != len(tc.want) {
			t.Fatalf("tokens(%q) = %q; want %q", tc.in, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("tokens(%q)[%d] = %q; want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}

func TestTokenizer_NotRestartable(t *testing.T) {
	tz := NewTokenizer([]byte("a;b"))
	for i := 0; i < 2; i++ {
		if _, ok := tz.Next(); !ok {
			t.Fatalf("token %d missing", i)
		}
	}
	if _, ok := tz.Next(); ok {
		t.Fatalf("tokenizer yielded past the end")
	}
	if _, ok := tz.Next(); ok {
		t.Fatalf("tokenizer restarted")
	}
}

func TestTokenizer_DisjointTokens(t *testing.T) {
	tz := NewTokenizer([]byte("a%41&b=2"))
	first, _ := tz.Next()
	second, _ := tz.Next()
	if _, err := Decode(first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(second) != "b=2" {
		t.Fatalf("decoding one token touched the next: %q", second)
	}
	// capacity is clipped so appends cannot spill into the next token
	if cap(first) != len("a%41") {
		t.Fatalf("cap(first) = %d", cap(first))
	}
}

func TestSplitField(t *testing.T) {
	cases := []struct {
		in, key, val string
	}{
		{"k=v", "k", "v"},
		{"k=", "k", ""},
		{"k", "k", ""},
		{"", "", ""},
		{"tok=a=b", "tok", "a=b"},
		{"=v", "", "v"},
	}
	for _, tc := range cases {
		f := SplitField([]byte(tc.in))
		if string(f.Key) != tc.key || string(f.Value) != tc.val {
			t.Fatalf("SplitField(%q) = (%q,%q); want (%q,%q)", tc.in, f.Key, f.Value, tc.key, tc.val)
		}
	}
}

// recordingValidator accepts every absolute path and remembers what it saw.
func recordingValidator(seen *[]string) *Validator {
	return &Validator{
		stat: func(name string) (fs.FileInfo, error) {
			*seen = append(*seen, name)
			return fakeInfo{}, nil
		},
		access: func(string) error { return nil },
	}
}

func TestDispatchQuery(t *testing.T) {
	cases := []struct {
		in        string
		matched   bool
		malformed bool
		path      string
	}{
		{"x=1&filename=%2Fetc%2Fpasswd", true, false, "/etc/passwd"},
		{"filename=/a&filename=/b", true, false, "/a"},
		{"filename=&filename=/b", true, false, "/b"},
		{"filename&filename=/c", true, false, "/c"},
		{"a=1&b=2", false, false, ""},
		{"", false, false, ""},
		{"a=%2&filename=/x", false, true, ""},
		{"filename=/x&a=%2", true, false, "/x"},
		{"file%6Eame=/enc", true, false, "/enc"},
		{"filename=/with+space", true, false, "/with space"},
		{"Filename=/x", false, false, ""},
	}
	for _, tc := range cases {
		var seen []string
		d := DispatchQuery([]byte(tc.in), recordingValidator(&seen))
		if d.Matched != tc.matched || d.Malformed != tc.malformed {
			t.Fatalf("DispatchQuery(%q) = %+v", tc.in, d)
		}
		if !tc.matched {
			if len(seen) != 0 {
				t.Fatalf("DispatchQuery(%q) validated %q", tc.in, seen)
			}
			continue
		}
		if d.Verdict.Path != tc.path || len(seen) != 1 {
			t.Fatalf("DispatchQuery(%q) path=%q seen=%q; want %q", tc.in, d.Verdict.Path, seen, tc.path)
		}
	}
}
