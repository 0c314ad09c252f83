package sendfile

import "github.com/pkg/errors"

// ErrMalformedEscape is returned when a token ends inside a percent escape
// or a '%' is followed by something other than two hex digits.
var ErrMalformedEscape = errors.New("malformed percent escape")

type decodeState int

const (
	stateLiteral decodeState = iota
	stateEscapeHi
	stateEscapeLo
)

// Decode percent-decodes token in place and returns the decoded prefix of
// the same buffer. '+' becomes a space. On error the buffer content is
// undefined and nil is returned.
func Decode(token []byte) ([]byte, error) {
	var (
		state = stateLiteral
		hi    byte
		w     int
	)

	for _, b := range token {
		switch state {
		case stateLiteral:
			switch b {
			case '%':
				state = stateEscapeHi
			case '+':
				token[w] = ' '
				w++
			default:
				token[w] = b
				w++
			}
		case stateEscapeHi:
			n, ok := unhex(b)
			if !ok {
				return nil, ErrMalformedEscape
			}
			hi = n
			state = stateEscapeLo
		case stateEscapeLo:
			n, ok := unhex(b)
			if !ok {
				return nil, ErrMalformedEscape
			}
			token[w] = hi<<4 | n
			w++
			state = stateLiteral
		}
	}

	if state != stateLiteral {
		return nil, ErrMalformedEscape
	}
	return token[:w], nil
}

func unhex(b byte) (byte, bool) {
	switch {
	case '0' <= b && b <= '9':
		return b - '0', true
	case 'a' <= b && b <= 'f':
		return b - 'a' + 10, true
	case 'A' <= b && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}
