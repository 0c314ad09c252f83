package sendfile

import (
	"io"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/sfi2k7/sendfile/fcgi"
)

// DefaultRoute is the SCRIPT_NAME the responder answers to.
const DefaultRoute = "/sendfile/"

// Outcome is how a request was answered.
type Outcome string

const (
	OutcomeDelegated     Outcome = "delegated"
	OutcomeBadPath       Outcome = "bad_path"
	OutcomeForbidden     Outcome = "forbidden"
	OutcomeNotFound      Outcome = "not_found"
	OutcomeInternalError Outcome = "internal_error"
	OutcomeUnrouted      Outcome = "unrouted"
	OutcomeUnmatched     Outcome = "unmatched"
	OutcomeDiagnostic    Outcome = "diagnostic"
	OutcomeSilent        Outcome = "silent"
)

func outcomeOf(k VerdictKind) Outcome {
	switch k {
	case VerdictSuccess:
		return OutcomeDelegated
	case VerdictBadRequest:
		return OutcomeBadPath
	case VerdictForbidden:
		return OutcomeForbidden
	case VerdictNotFound:
		return OutcomeNotFound
	}
	return OutcomeInternalError
}

// Status is the status code reported for the outcome, 0 when nothing was written.
func (o Outcome) Status() int {
	switch o {
	case OutcomeDelegated, OutcomeDiagnostic:
		return 200
	case OutcomeBadPath, OutcomeUnrouted, OutcomeUnmatched:
		return StatusBadRequest
	case OutcomeForbidden:
		return StatusForbidden
	case OutcomeNotFound:
		return StatusNotFound
	case OutcomeInternalError:
		return StatusInternalServerError
	}
	return 0
}

// Router answers the single sendfile route.
type Router struct {
	route           string
	isDev           bool
	mirror          bool
	silentUnmatched bool
	validator       *Validator
	log             zerolog.Logger

	requestCount uint64
	rqc          *reqcount
	events       *EventServer
}

type Config struct {
	r *Router
}

// NewRouter creates a router for DefaultRoute with debug output off.
func NewRouter() *Router {
	return &Router{
		route:     DefaultRoute,
		validator: NewValidator(),
		log:       zerolog.Nop(),
		rqc:       &reqcount{r: make(map[string]uint64)},
		events:    newEventServer(),
	}
}

// Config gets the config for the router
func (r *Router) Config() *Config {
	return &Config{r: r}
}

// SetRoute sets the SCRIPT_NAME that is answered
func (c *Config) SetRoute(route string) *Config {
	c.r.route = route
	return c
}

// SetDebug turns on the plain text diagnostic dump for requests without a
// usable filename field, and mirrors every response line to stderr.
// The dump lists all gateway parameters: keep it off in production.
func (c *Config) SetDebug(dev bool) *Config {
	c.r.isDev = dev
	c.r.mirror = dev
	return c
}

// SetMirrorDiagnostics controls the stderr mirror independently of SetDebug
func (c *Config) SetMirrorDiagnostics(mirror bool) *Config {
	c.r.mirror = mirror
	return c
}

// SetSilentUnmatched makes requests on the route that carry no usable
// filename field end without any output instead of a 400.
func (c *Config) SetSilentUnmatched(silent bool) *Config {
	c.r.silentUnmatched = silent
	return c
}

// SetLogger sets the logger for request and transport events
func (c *Config) SetLogger(log zerolog.Logger) *Config {
	c.r.log = log
	return c
}

func (r *Router) Logger() zerolog.Logger { return r.log }

// Events returns the live event feed of handled requests.
func (r *Router) Events() *EventServer { return r.events }

// ServeFCGI adapts the router to the FastCGI transport.
func (r *Router) ServeFCGI(req *fcgi.Request) {
	r.Serve(NewContext(req.Params, req.Stdout, req.Stderr))
}

// Serve answers one request.
func (r *Router) Serve(c *Context) {
	var diag io.Writer
	if r.mirror {
		diag = c.Stderr
	}
	c.emitter = NewEmitter(c.Stdout, diag)

	c.state = stateRouteMatch
	if c.ScriptName() != r.route {
		c.emitter.Status(StatusBadRequest)
		c.respond(OutcomeUnrouted)
	} else {
		r.serveQuery(c)
	}

	r.finish(c)
}

func (r *Router) serveQuery(c *Context) {
	c.state = stateFieldExtraction

	qstr, ok := c.RawQuery()
	if !ok {
		r.unmatched(c)
		return
	}

	// decoding rewrites the buffer, never hand it the parameter storage
	buf := make([]byte, len(qstr))
	copy(buf, qstr)

	d := DispatchQuery(buf, r.validator)
	if d.Matched {
		c.verdict = d.Verdict
		c.emitter.Verdict(d.Verdict)
		c.respond(outcomeOf(d.Verdict.Kind))
		return
	}

	if d.Malformed {
		r.log.Debug().Str("req_id", c.ID).Msg("query has a malformed escape")
	}

	if r.isDev {
		r.dump(c, qstr)
		c.respond(OutcomeDiagnostic)
		return
	}
	r.unmatched(c)
}

func (r *Router) unmatched(c *Context) {
	if r.silentUnmatched {
		c.respond(OutcomeSilent)
		return
	}
	c.emitter.Status(StatusBadRequest)
	c.respond(OutcomeUnmatched)
}

func (r *Router) finish(c *Context) {
	atomic.AddUint64(&r.requestCount, 1)
	r.rqc.Add(string(c.outcome))

	elapsed := c.Elapsed()
	ev := r.log.Debug().
		Str("req_id", c.ID).
		Str("script_name", c.ScriptName()).
		Str("outcome", string(c.outcome)).
		Int("status", c.outcome.Status()).
		Dur("elapsed", elapsed)
	if c.verdict.Path != "" {
		ev = ev.Str("path", c.verdict.Path)
	}
	if c.verdict.Err != nil {
		ev = ev.AnErr("fs_error", c.verdict.Err)
	}
	if err := c.emitter.Err(); err != nil {
		r.log.Warn().Err(err).Str("req_id", c.ID).Msg("write response")
	}
	ev.Msg("request")

	r.events.publish(Event{
		ID:        c.ID,
		Outcome:   c.outcome,
		Status:    c.outcome.Status(),
		Path:      c.verdict.Path,
		ElapsedUS: elapsed.Microseconds(),
	})
}

// RequestCount returns the number of requests answered.
func (r *Router) RequestCount() uint64 {
	return atomic.LoadUint64(&r.requestCount)
}
