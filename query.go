package sendfile

import "bytes"

// FieldFilename is the only query field the responder acts on.
const FieldFilename = "filename"

// Tokenizer walks a query string one '&' or ';' delimited token at a time.
// It owns the buffer it was given: '+' is rewritten to a space up front and
// every token handed out is a disjoint slice of that buffer.
type Tokenizer struct {
	buf  []byte
	pos  int
	done bool
}

// NewTokenizer takes ownership of raw. Callers must pass a private copy.
func NewTokenizer(raw []byte) *Tokenizer {
	for i, b := range raw {
		if b == '+' {
			raw[i] = ' '
		}
	}
	return &Tokenizer{buf: raw}
}

// Next returns the next token, which may be empty for consecutive
// delimiters. ok is false once the input is exhausted.
func (t *Tokenizer) Next() (token []byte, ok bool) {
	if t.done {
		return nil, false
	}

	rest := t.buf[t.pos:]
	i := bytes.IndexAny(rest, "&;")
	if i < 0 {
		t.done = true
		return rest[:len(rest):len(rest)], true
	}

	t.pos += i + 1
	return rest[:i:i], true
}

// Field is one decoded key/value pair.
type Field struct {
	Key   []byte
	Value []byte
}

// SplitField splits a decoded token at the first '='. A token without '='
// is all key with an empty value.
func SplitField(decoded []byte) Field {
	if i := bytes.IndexByte(decoded, '='); i >= 0 {
		return Field{Key: decoded[:i], Value: decoded[i+1:]}
	}
	return Field{Key: decoded, Value: decoded[len(decoded):]}
}

// DecodeField decodes one token and splits it into a field.
func DecodeField(token []byte) (Field, error) {
	decoded, err := Decode(token)
	if err != nil {
		return Field{}, err
	}
	return SplitField(decoded), nil
}

// Dispatch is the result of scanning a query string for the filename field.
type Dispatch struct {
	Matched   bool    // a filename field was found and validated
	Verdict   Verdict // valid only when Matched
	Malformed bool    // scanning stopped at a token with a bad escape
}

// DispatchQuery scans raw for the first non-empty filename field and hands
// it to v. raw is consumed; pass a private copy. A malformed token stops the
// scan for the whole query.
func DispatchQuery(raw []byte, v *Validator) Dispatch {
	t := NewTokenizer(raw)
	for {
		token, ok := t.Next()
		if !ok {
			return Dispatch{}
		}

		f, err := DecodeField(token)
		if err != nil {
			return Dispatch{Malformed: true}
		}

		if string(f.Key) == FieldFilename && len(f.Value) > 0 {
			return Dispatch{Matched: true, Verdict: v.Validate(string(f.Value))}
		}
	}
}
