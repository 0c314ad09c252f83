package fcgi

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Request is one responder request. Stdout and Stderr are buffered and
// flushed when the handler returns.
type Request struct {
	ID       uint16
	Role     uint16
	KeepConn bool
	Params   Params
	Stdout   io.Writer
	Stderr   io.Writer

	stdout     *streamWriter
	stderr     *streamWriter
	rawParams  bytes.Buffer
	paramsDone bool
}

// Handler serves a single FastCGI request.
type Handler interface {
	ServeFCGI(r *Request)
}

type HandlerFunc func(r *Request)

func (f HandlerFunc) ServeFCGI(r *Request) { f(r) }

// streamWriter chops writes into STDOUT or STDERR records. It sits behind a
// bufio.Writer so a header block normally leaves in a single record.
type streamWriter struct {
	c      *conn
	t      recType
	id     uint16
	buf    *bufio.Writer
	closed bool
	wrote  bool
}

func newStreamWriter(c *conn, t recType, id uint16) *streamWriter {
	w := &streamWriter{c: c, t: t, id: id}
	w.buf = bufio.NewWriterSize(recordWriter{w}, maxContent)
	return w
}

func (w *streamWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	if len(p) > 0 {
		w.wrote = true
	}
	return w.buf.Write(p)
}

// Close flushes buffered data and ends the stream with an empty record.
func (w *streamWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.buf.Flush(); err != nil {
		return err
	}
	return w.c.writeRecord(w.t, w.id, nil)
}

type recordWriter struct{ w *streamWriter }

func (rw recordWriter) Write(p []byte) (int, error) {
	n := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > maxContent {
			chunk = chunk[:maxContent]
		}
		if err := rw.w.c.writeRecord(rw.w.t, rw.w.id, chunk); err != nil {
			return n, err
		}
		n += len(chunk)
		p = p[len(chunk):]
	}
	return n, nil
}

type conn struct {
	rwc net.Conn
	rec record
	out []byte
	req *Request
	log zerolog.Logger
}

func newConn(rwc net.Conn, log zerolog.Logger) *conn {
	return &conn{rwc: rwc, log: log}
}

func (c *conn) writeRecord(t recType, id uint16, content []byte) error {
	var err error
	c.out, err = appendRecord(c.out[:0], t, id, content)
	if err != nil {
		return err
	}
	_, err = c.rwc.Write(c.out)
	return err
}

func (c *conn) writeEndRequest(id uint16, appStatus uint32, protocolStatus uint8) error {
	return c.writeRecord(typeEndRequest, id, endRequestBody(appStatus, protocolStatus))
}

// serve reads records until the connection closes or a request without
// keep-conn completes.
func (c *conn) serve(h Handler, idle time.Duration) {
	defer c.rwc.Close()

	for {
		if idle > 0 && c.req == nil {
			c.rwc.SetReadDeadline(time.Now().Add(idle))
		} else {
			c.rwc.SetReadDeadline(time.Time{})
		}

		if err := c.rec.read(c.rwc); err != nil {
			if !errors.Is(err, io.EOF) {
				c.log.Warn().Err(err).Msg("fcgi: read record")
			}
			return
		}

		done, err := c.handleRecord(h)
		if err != nil {
			c.log.Warn().Err(err).Uint8("type", uint8(c.rec.h.Type)).Msg("fcgi: handle record")
			return
		}
		if done {
			return
		}
	}
}

func (c *conn) handleRecord(h Handler) (done bool, err error) {
	hdr := c.rec.h
	content := c.rec.content()

	if hdr.ID == 0 {
		return false, c.handleManagement(hdr.Type, content)
	}

	switch hdr.Type {
	case typeBeginRequest:
		if c.req != nil {
			return false, c.writeEndRequest(hdr.ID, 0, statusCantMultiplex)
		}
		if len(content) < 8 {
			return true, ErrBadRecord
		}
		role := binary.BigEndian.Uint16(content)
		keep := content[2]&flagKeepConn != 0
		if role != RoleResponder {
			return !keep, c.writeEndRequest(hdr.ID, 0, statusUnknownRole)
		}
		c.req = &Request{ID: hdr.ID, Role: role, KeepConn: keep}
		return false, nil

	case typeAbortRequest:
		req := c.req
		if req == nil || req.ID != hdr.ID {
			return false, nil
		}
		c.req = nil
		return !req.KeepConn, c.writeEndRequest(hdr.ID, 0, statusRequestComplete)

	case typeParams:
		req := c.req
		if req == nil || req.ID != hdr.ID || req.paramsDone {
			return false, nil
		}
		if len(content) == 0 {
			req.Params, err = DecodeParams(req.rawParams.Bytes())
			req.paramsDone = true
			return err != nil, err
		}
		if req.rawParams.Len()+len(content) > maxParamLen {
			return true, ErrBadParams
		}
		req.rawParams.Write(content)
		return false, nil

	case typeStdin:
		req := c.req
		if req == nil || req.ID != hdr.ID {
			return false, nil
		}
		if len(content) > 0 {
			return false, nil // request bodies are not used
		}
		if !req.paramsDone {
			return true, ErrBadRecord
		}
		c.req = nil
		return c.serveRequest(h, req)
	}

	// DATA and anything unknown on a request id are ignored
	return false, nil
}

func (c *conn) serveRequest(h Handler, req *Request) (done bool, err error) {
	req.stdout = newStreamWriter(c, typeStdout, req.ID)
	req.stderr = newStreamWriter(c, typeStderr, req.ID)
	req.Stdout = req.stdout
	req.Stderr = req.stderr

	func() {
		defer func() {
			if r := recover(); r != nil {
				c.log.Error().Interface("panic", r).Uint16("request_id", req.ID).Msg("fcgi: handler panic")
			}
		}()
		h.ServeFCGI(req)
	}()

	if err := req.stdout.Close(); err != nil {
		return true, errors.Wrap(err, "fcgi: close stdout")
	}
	if req.stderr.wrote {
		if err := req.stderr.Close(); err != nil {
			return true, errors.Wrap(err, "fcgi: close stderr")
		}
	}
	if err := c.writeEndRequest(req.ID, 0, statusRequestComplete); err != nil {
		return true, err
	}
	return !req.KeepConn, nil
}

// management values reported to GET_VALUES
var managementValues = map[string]string{
	"FCGI_MAX_CONNS":  "1",
	"FCGI_MAX_REQS":   "1",
	"FCGI_MPXS_CONNS": "0",
}

func (c *conn) handleManagement(t recType, content []byte) error {
	switch t {
	case typeGetValues:
		asked, err := DecodeParams(content)
		if err != nil {
			return err
		}
		var result Params
		for _, p := range asked {
			if v, ok := managementValues[p.Name]; ok {
				result = append(result, Param{Name: p.Name, Value: v})
			}
		}
		return c.writeRecord(typeGetValuesResult, 0, EncodeParams(result))
	default:
		body := make([]byte, 8)
		body[0] = byte(t)
		return c.writeRecord(typeUnknownType, 0, body)
	}
}
