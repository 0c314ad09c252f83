package sendfile

import (
	"io"
	"strings"
	"time"
)

type routeState int

const (
	stateIdle routeState = iota
	stateRouteMatch
	stateFieldExtraction
	stateResponded
)

func (s routeState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateRouteMatch:
		return "route_match"
	case stateFieldExtraction:
		return "field_extraction"
	case stateResponded:
		return "responded"
	}
	return "unknown"
}

// Context carries one request through the router. Nothing in it outlives
// the request.
type Context struct {
	ID      string
	Params  Params
	Stdout  io.Writer
	Stderr  io.Writer
	Started time.Time

	state   routeState
	outcome Outcome
	verdict Verdict
	emitter *Emitter
}

// NewContext builds a request context. stderr may be nil.
func NewContext(params Params, stdout, stderr io.Writer) *Context {
	if stderr == nil {
		stderr = io.Discard
	}
	return &Context{
		ID:      ID(),
		Params:  params,
		Stdout:  stdout,
		Stderr:  stderr,
		Started: time.Now(),
	}
}

// Param returns the named gateway parameter or "".
func (c *Context) Param(name string) string {
	v, _ := c.Params.Lookup(name)
	return v
}

func (c *Context) ScriptName() string {
	return c.Param(ParamScriptName)
}

// RawQuery returns the query string, preferring QUERY_STRING and falling
// back to whatever follows the first '?' in REQUEST_URI.
func (c *Context) RawQuery() (string, bool) {
	if q := c.Param(ParamQueryString); q != "" {
		return q, true
	}

	uri, ok := c.Params.Lookup(ParamRequestURI)
	if !ok {
		return "", false
	}
	i := strings.IndexByte(uri, '?')
	if i < 0 || i == len(uri)-1 {
		return "", false
	}
	return uri[i+1:], true
}

// Outcome is set once the request has been answered.
func (c *Context) Outcome() Outcome { return c.outcome }

// Verdict is the validator result, meaningful when the outcome is a verdict.
func (c *Context) Verdict() Verdict { return c.verdict }

func (c *Context) Elapsed() time.Duration { return time.Since(c.Started) }

func (c *Context) respond(o Outcome) {
	c.outcome = o
	c.state = stateResponded
}
