package fcgi

import (
	"encoding/binary"
)

// Param is one FastCGI name-value pair.
type Param struct {
	Name  string
	Value string
}

// Params keeps the pairs in the order the web server sent them.
type Params []Param

// Lookup returns the value of the first pair named name.
func (p Params) Lookup(name string) (string, bool) {
	for i := range p {
		if p[i].Name == name {
			return p[i].Value, true
		}
	}
	return "", false
}

func (p Params) Get(name string) string {
	v, _ := p.Lookup(name)
	return v
}

func (p Params) Each(fn func(name, value string)) {
	for _, kv := range p {
		fn(kv.Name, kv.Value)
	}
}

// readSize decodes a pair length: one byte below 128, otherwise four bytes
// big endian with the high bit set. n is 0 when src is too short.
func readSize(src []byte) (size uint32, n int) {
	if len(src) == 0 {
		return 0, 0
	}
	if src[0]&0x80 == 0 {
		return uint32(src[0]), 1
	}
	if len(src) < 4 {
		return 0, 0
	}
	return binary.BigEndian.Uint32(src) &^ (1 << 31), 4
}

func appendSize(dst []byte, size int) []byte {
	if size <= 127 {
		return append(dst, byte(size))
	}
	return append(dst, byte(size>>24)|0x80, byte(size>>16), byte(size>>8), byte(size))
}

// DecodeParams parses a complete params stream.
func DecodeParams(src []byte) (Params, error) {
	var params Params
	for len(src) > 0 {
		nameLen, n := readSize(src)
		if n == 0 {
			return nil, ErrBadParams
		}
		src = src[n:]

		valueLen, n := readSize(src)
		if n == 0 {
			return nil, ErrBadParams
		}
		src = src[n:]

		if uint64(len(src)) < uint64(nameLen)+uint64(valueLen) {
			return nil, ErrBadParams
		}
		params = append(params, Param{
			Name:  string(src[:nameLen]),
			Value: string(src[nameLen : nameLen+valueLen]),
		})
		src = src[nameLen+valueLen:]
	}
	return params, nil
}

// EncodeParams is the inverse of DecodeParams.
func EncodeParams(params Params) []byte {
	var dst []byte
	for _, p := range params {
		dst = appendSize(dst, len(p.Name))
		dst = appendSize(dst, len(p.Value))
		dst = append(dst, p.Name...)
		dst = append(dst, p.Value...)
	}
	return dst
}
