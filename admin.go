package sendfile

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/pkg/errors"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/time/rate"
)

// AdminConfig configures the optional HTTP side channel that exposes
// counters and the live event feed. It never serves files.
type AdminConfig struct {
	Addr       string
	StatsToken string

	// RatePerSecond and Burst limit the whole admin surface. Zero disables.
	RatePerSecond float64
	Burst         int

	CertFile       string
	KeyFile        string
	AutoTLSDomains []string
	CertCache      string
}

const (
	statsEndpoint  = "/__internal__/stats/:token"
	eventsEndpoint = "/__internal__/events/:token"
	healthEndpoint = "/__internal__/health"
)

type Admin struct {
	r       *Router
	cfg     AdminConfig
	mux     *httprouter.Router
	limiter *rate.Limiter
	server  *http.Server
	started time.Time
}

func NewAdmin(r *Router, cfg AdminConfig) *Admin {
	a := &Admin{
		r:       r,
		cfg:     cfg,
		mux:     httprouter.New(),
		started: time.Now(),
	}

	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	a.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	a.mux.GET(healthEndpoint, a.health)
	a.mux.GET(statsEndpoint, a.guard(a.stats))
	a.mux.GET(eventsEndpoint, a.guard(func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		a.r.events.Handle(w, req)
	}))
	return a
}

// Handler returns the admin routes behind the rate limiter.
func (a *Admin) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if a.limiter != nil && !a.limiter.Allow() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		a.mux.ServeHTTP(w, req)
	})
}

func (a *Admin) guard(fn httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, p httprouter.Params) {
		if len(a.cfg.StatsToken) > 0 && p.ByName("token") != a.cfg.StatsToken {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fn(w, req, p)
	}
}

func (a *Admin) health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("content-type", "text/plain")
	w.Write([]byte("ok"))
}

func (a *Admin) stats(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	o := O{
		"total":          a.r.RequestCount(),
		"by_outcome":     a.r.rqc.Snapshot(),
		"subscribers":    a.r.events.Count(),
		"events_dropped": a.r.events.Dropped(),
		"uptime":         time.Since(a.started).Round(time.Second).String(),
	}

	jsoned, err := json.Marshal(o)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Add("content-type", "application/json")
	w.Write(jsoned)
}

// Start listens on cfg.Addr and blocks until the server stops.
func (a *Admin) Start() error {
	var err error
	switch {
	case len(a.cfg.AutoTLSDomains) > 0:
		err = a.serveAutoTLS()
	case len(a.cfg.CertFile) > 0 && len(a.cfg.KeyFile) > 0:
		a.server.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		err = a.server.ListenAndServeTLS(a.cfg.CertFile, a.cfg.KeyFile)
	default:
		err = a.server.ListenAndServe()
	}

	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.Wrap(err, "admin server")
}

func (a *Admin) serveAutoTLS() error {
	certManager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(a.cfg.AutoTLSDomains...),
	}
	if a.cfg.CertCache != "" {
		certManager.Cache = autocert.DirCache(a.cfg.CertCache)
	}

	a.server.TLSConfig = &tls.Config{
		GetCertificate: certManager.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}

	// HTTP-01 challenges
	go func() {
		if err := http.ListenAndServe(":80", certManager.HTTPHandler(nil)); err != nil {
			a.r.log.Warn().Err(err).Msg("acme http-01 handler stopped")
		}
	}()

	return a.server.ListenAndServeTLS("", "")
}

// Stop shuts the admin server down, forcing connections closed after 5s.
func (a *Admin) Stop() error {
	a.r.events.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	err := a.server.Shutdown(ctx)
	if err == nil {
		return nil
	}

	return a.server.Close()
}
