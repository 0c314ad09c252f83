package sendfile

import (
	"io"
	"strconv"
	"strings"
)

const (
	StatusBadRequest          = 400
	StatusForbidden           = 403
	StatusNotFound            = 404
	StatusInternalServerError = 500
)

// StatusText returns the reason phrase written after a status code.
func StatusText(code int) string {
	switch code {
	case StatusBadRequest:
		return "Bad Request"
	case StatusForbidden:
		return "Forbidden"
	case StatusNotFound:
		return "Not Found"
	case StatusInternalServerError:
		return "Internal Server Error"
	}
	return ""
}

const crlf = "\r\n"

// Emitter writes a CGI style header block straight to the output stream,
// one Write per line. When diag is set every line is mirrored to it.
type Emitter struct {
	out  io.Writer
	diag io.Writer
	line []byte
	err  error
}

func NewEmitter(out, diag io.Writer) *Emitter {
	return &Emitter{out: out, diag: diag}
}

// Err returns the first write error seen on the output stream.
func (e *Emitter) Err() error { return e.err }

func (e *Emitter) write(parts ...string) {
	e.line = e.line[:0]
	for _, p := range parts {
		e.line = append(e.line, p...)
	}
	e.line = append(e.line, crlf...)

	if e.diag != nil {
		e.diag.Write(e.line)
	}
	if _, err := e.out.Write(e.line); err != nil && e.err == nil {
		e.err = err
	}
}

// Newline writes an empty line, which ends a header block.
func (e *Emitter) Newline() { e.write() }

// Header writes "key: value". The key is written as given.
func (e *Emitter) Header(key, value string) { e.write(key, ": ", value) }

// Line writes raw text followed by CRLF.
func (e *Emitter) Line(text string) { e.write(text) }

// Status writes a Status header for code and terminates the block.
func (e *Emitter) Status(code int) {
	e.Header("Status", strconv.Itoa(code)+" "+StatusText(code))
	e.Newline()
}

// Verdict renders v: a status block for failures, delegation headers for success.
func (e *Emitter) Verdict(v Verdict) {
	if !v.OK() {
		e.Status(v.Kind.Status())
		return
	}

	name := basename(v.Path)
	if v.IsBlockDevice {
		name += ".img"
	}

	e.Header("Content-type", "application/octet-stream")
	e.Header("Content-Disposition", `attachment;filename="`+name+`"`)
	e.Header("X-SendFile", v.Path)
	e.Newline()
}

// basename is everything after the last '/'.
func basename(p string) string {
	return p[strings.LastIndexByte(p, '/')+1:]
}
