package fcgi

import (
	"context"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Server runs a blocking accept loop: one connection is served to the end
// before the next one is accepted.
type Server struct {
	Handler Handler
	Logger  zerolog.Logger
	// IdleTimeout bounds how long a keep-conn connection may sit between
	// requests. Zero waits forever.
	IdleTimeout time.Duration

	mu     sync.Mutex
	active net.Conn
}

// Serve accepts connections on l until ctx is cancelled or Accept fails.
// Cancelling ctx closes l and the connection being served.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	if s.Handler == nil {
		return errors.New("fcgi: nil handler")
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			l.Close()
			s.mu.Lock()
			if s.active != nil {
				s.active.Close()
			}
			s.mu.Unlock()
		case <-stop:
		}
	}()

	for {
		rw, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "fcgi: accept")
		}

		s.mu.Lock()
		s.active = rw
		s.mu.Unlock()

		newConn(rw, s.Logger).serve(s.Handler, s.IdleTimeout)

		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
	}
}

// Listen opens the listener named by addr:
//
//	unix:/run/sendfile.sock
//	tcp:127.0.0.1:9000
//	""   the socket passed by the web server on fd 0
func Listen(addr string) (net.Listener, error) {
	switch {
	case addr == "":
		f := os.NewFile(0, "fcgi-listener")
		l, err := net.FileListener(f)
		if err != nil {
			return nil, errors.Wrap(err, "fcgi: stdin is not a listening socket")
		}
		f.Close()
		return l, nil
	case strings.HasPrefix(addr, "unix:"):
		path := strings.TrimPrefix(addr, "unix:")
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "fcgi: remove stale socket %s", path)
		}
		l, err := net.Listen("unix", path)
		return l, errors.Wrapf(err, "fcgi: listen %s", addr)
	case strings.HasPrefix(addr, "tcp:"):
		l, err := net.Listen("tcp", strings.TrimPrefix(addr, "tcp:"))
		return l, errors.Wrapf(err, "fcgi: listen %s", addr)
	}
	return nil, errors.Errorf("fcgi: unsupported listen address %q", addr)
}
