// Command sendfile-fcgi is a FastCGI responder that answers
// /sendfile/?filename=/abs/path with an X-SendFile delegation header.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sfi2k7/sendfile"
	"github.com/sfi2k7/sendfile/fcgi"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			return f
		}
	}
	return def
}

func getenvDur(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	var (
		listen     = flag.String("listen", getenv("SENDFILE_LISTEN", ""), "unix:/path or tcp:host:port; empty uses the socket on fd 0")
		route      = flag.String("route", getenv("SENDFILE_ROUTE", sendfile.DefaultRoute), "SCRIPT_NAME to answer")
		debug      = flag.Bool("debug", getenvBool("SENDFILE_DEBUG", false), "diagnostic dump for unmatched requests and stderr mirroring (leaks request parameters)")
		silent     = flag.Bool("silent-unmatched", getenvBool("SENDFILE_SILENT", false), "write nothing instead of 400 when no filename field is usable")
		idle       = flag.Duration("idle-timeout", getenvDur("SENDFILE_IDLE_TIMEOUT", 0), "close keep-conn connections idle this long (0 waits forever)")
		logLevel   = flag.String("log-level", getenv("SENDFILE_LOG_LEVEL", "info"), "log level")
		logFormat  = flag.String("log-format", getenv("SENDFILE_LOG_FORMAT", "json"), "json or console")
		admin      = flag.String("admin", getenv("SENDFILE_ADMIN", ""), "admin http address, empty disables")
		statsToken = flag.String("stats-token", getenv("SENDFILE_STATS_TOKEN", ""), "token required by the admin stats and events endpoints")
		adminRPS   = flag.Float64("admin-rps", getenvFloat("SENDFILE_ADMIN_RPS", 10), "admin requests per second, 0 disables limiting")
		certFile   = flag.String("admin-cert", getenv("SENDFILE_ADMIN_CERT", ""), "admin TLS certificate")
		keyFile    = flag.String("admin-key", getenv("SENDFILE_ADMIN_KEY", ""), "admin TLS key")
		autoTLS    = flag.String("autotls-domains", getenv("SENDFILE_AUTOTLS_DOMAINS", ""), "comma separated domains for admin AutoTLS")
		certCache  = flag.String("autotls-cache", getenv("SENDFILE_AUTOTLS_CACHE", ""), "AutoTLS certificate cache directory")
	)
	flag.Parse()

	logger, err := sendfile.NewLogger(sendfile.LogConfig{Level: *logLevel, Format: *logFormat})
	if err != nil {
		fmt.Fprintln(os.Stderr, "sendfile-fcgi:", err)
		os.Exit(2)
	}

	router := sendfile.NewRouter()
	router.Config().
		SetRoute(*route).
		SetDebug(*debug).
		SetSilentUnmatched(*silent).
		SetLogger(logger)

	if *debug {
		logger.Warn().Msg("debug mode: unmatched requests receive a dump of all request parameters")
	}

	l, err := fcgi.Listen(*listen)
	if err != nil {
		logger.Fatal().Err(err).Msg("listen")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var adm *sendfile.Admin
	if *admin != "" {
		adm = sendfile.NewAdmin(router, sendfile.AdminConfig{
			Addr:           *admin,
			StatsToken:     *statsToken,
			RatePerSecond:  *adminRPS,
			Burst:          int(*adminRPS) + 1,
			CertFile:       *certFile,
			KeyFile:        *keyFile,
			AutoTLSDomains: splitList(*autoTLS),
			CertCache:      *certCache,
		})
		go func() {
			logger.Info().Str("addr", *admin).Msg("admin listening")
			if err := adm.Start(); err != nil {
				logger.Error().Err(err).Msg("admin")
			}
		}()
	}

	srv := &fcgi.Server{Handler: router, Logger: logger, IdleTimeout: *idle}
	logger.Info().Str("listen", l.Addr().String()).Str("route", *route).Msg("sendfile responder starting")

	err = srv.Serve(ctx, l)

	if adm != nil {
		adm.Stop()
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("serve")
	}
	logger.Info().Uint64("requests", router.RequestCount()).Msg("stopped")
}
