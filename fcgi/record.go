// Package fcgi implements the responder side of the FastCGI protocol.
//
// See https://fastcgi-archives.github.io/FastCGI_Specification.html
//
// Requests on one connection are served strictly one at a time and the
// server never multiplexes: a new connection is accepted only after the
// previous one is finished.
package fcgi

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Record = Header(8) + content[65535] + padding[255]
// Header = version(1) + type(1) + requestId(2) + contentLength(2) + paddingLength(1) + reserved(1)

const (
	version1    = 1
	headerSize  = 8
	maxContent  = 65535
	maxPadding  = 255
	maxParamLen = 1 << 20 // total size of a request's params stream
)

type recType uint8

const (
	typeBeginRequest    recType = 1
	typeAbortRequest    recType = 2
	typeEndRequest      recType = 3
	typeParams          recType = 4
	typeStdin           recType = 5
	typeStdout          recType = 6
	typeStderr          recType = 7
	typeData            recType = 8
	typeGetValues       recType = 9
	typeGetValuesResult recType = 10
	typeUnknownType     recType = 11
)

// keep the connection open after the request
const flagKeepConn = 1

const (
	RoleResponder = iota + 1 // only responders are served
	RoleAuthorizer
	RoleFilter
)

const (
	statusRequestComplete = iota
	statusCantMultiplex
	statusOverloaded
	statusUnknownRole
)

var (
	ErrBadRecord          = errors.New("fcgi: malformed record")
	ErrBadParams          = errors.New("fcgi: malformed name-value pairs")
	ErrUnsupportedVersion = errors.New("fcgi: unsupported protocol version")
)

type header struct {
	Version       uint8
	Type          recType
	ID            uint16
	ContentLength uint16
	PaddingLength uint8
}

func (h *header) encode(dst []byte) {
	dst[0] = h.Version
	dst[1] = byte(h.Type)
	binary.BigEndian.PutUint16(dst[2:], h.ID)
	binary.BigEndian.PutUint16(dst[4:], h.ContentLength)
	dst[6] = h.PaddingLength
	dst[7] = 0
}

func (h *header) decode(src []byte) {
	h.Version = src[0]
	h.Type = recType(src[1])
	h.ID = binary.BigEndian.Uint16(src[2:])
	h.ContentLength = binary.BigEndian.Uint16(src[4:])
	h.PaddingLength = src[6]
}

type record struct {
	h   header
	buf [maxContent + maxPadding]byte
}

func (r *record) read(rd io.Reader) error {
	var hb [headerSize]byte
	if _, err := io.ReadFull(rd, hb[:]); err != nil {
		return err
	}
	r.h.decode(hb[:])
	if r.h.Version != version1 {
		return ErrUnsupportedVersion
	}

	n := int(r.h.ContentLength) + int(r.h.PaddingLength)
	if _, err := io.ReadFull(rd, r.buf[:n]); err != nil {
		return errors.Wrap(err, "fcgi: read record body")
	}
	return nil
}

func (r *record) content() []byte {
	return r.buf[:r.h.ContentLength]
}

var zeroPadding [maxPadding]byte

// appendRecord frames content as one record. Content is padded to a
// multiple of 8 bytes.
func appendRecord(dst []byte, t recType, id uint16, content []byte) ([]byte, error) {
	if len(content) > maxContent {
		return dst, ErrBadRecord
	}

	pad := -len(content) & 7
	h := header{
		Version:       version1,
		Type:          t,
		ID:            id,
		ContentLength: uint16(len(content)),
		PaddingLength: uint8(pad),
	}

	var hb [headerSize]byte
	h.encode(hb[:])
	dst = append(dst, hb[:]...)
	dst = append(dst, content...)
	dst = append(dst, zeroPadding[:pad]...)
	return dst, nil
}

func endRequestBody(appStatus uint32, protocolStatus uint8) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint32(b, appStatus)
	b[4] = protocolStatus
	return b
}
