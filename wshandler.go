package sendfile

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 5 * time.Second

type wshandler struct {
	ID   string
	c    *websocket.Conn
	out  chan Event
	ex   chan struct{}
	once sync.Once
}

func NewWsHandler(c *websocket.Conn) *wshandler {
	return &wshandler{
		ID:  ID(),
		c:   c,
		out: make(chan Event, 16),
		ex:  make(chan struct{}),
	}
}

func (wh *wshandler) send(ev Event) bool {
	select {
	case wh.out <- ev:
		return true
	default:
		return false
	}
}

func (wh *wshandler) Terminate() {
	wh.once.Do(func() { close(wh.ex) })
}

func (wh *wshandler) Dispose() {
	wh.Terminate()
	wh.c.Close()
}

// handle pumps events to the client until it goes away, ctx is done or the
// hub is closed. Client messages are read and dropped; a read error means
// the client left.
func (wh *wshandler) handle(ctx context.Context) {
	go func() {
		for {
			if _, _, err := wh.c.ReadMessage(); err != nil {
				wh.Terminate()
				return
			}
		}
	}()

	for {
		select {
		case ev := <-wh.out:
			wh.c.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := wh.c.WriteJSON(ev); err != nil {
				return
			}
		case <-ctx.Done():
			return
		case <-wh.ex:
			wh.c.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return
		}
	}
}
