package sendfile

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event describes one answered request on the live feed.
type Event struct {
	ID        string  `json:"id"`
	Outcome   Outcome `json:"outcome"`
	Status    int     `json:"status"`
	Path      string  `json:"path,omitempty"`
	ElapsedUS int64   `json:"elapsed_us"`
}

// EventServer fans request events out to websocket subscribers.
type EventServer struct {
	isclosing atomic.Bool
	conns     *cmap
	dropped   atomic.Uint64
}

func newEventServer() *EventServer {
	return &EventServer{conns: &cmap{m: map[string]*wshandler{}}}
}

func (ws *EventServer) Close() {
	if ws == nil {
		return
	}

	ws.isclosing.Store(true)
	ws.conns.closeAll()
}

// Count returns the number of connected subscribers.
func (ws *EventServer) Count() int { return ws.conns.count() }

// Dropped returns how many events were not delivered to slow subscribers.
func (ws *EventServer) Dropped() uint64 { return ws.dropped.Load() }

func (ws *EventServer) publish(ev Event) {
	if ws.conns.count() == 0 {
		return
	}
	if n := ws.conns.broadcast(ev); n > 0 {
		ws.dropped.Add(uint64(n))
	}
}

// Handle upgrades the request and streams events until the client leaves.
func (ws *EventServer) Handle(w http.ResponseWriter, r *http.Request) {
	if ws.isclosing.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	upgrader := websocket.Upgrader{HandshakeTimeout: time.Second * 5, ReadBufferSize: 1024, WriteBufferSize: 4096}
	upgrader.CheckOrigin = func(r *http.Request) bool {
		return true
	}

	con, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	handler := NewWsHandler(con)
	defer handler.Dispose()

	ws.conns.add(handler.ID, handler)
	defer ws.conns.remove(handler.ID)

	handler.handle(r.Context())
}

func ID() string {
	return strings.Replace(uuid.NewString(), "-", "", -1)
}
