package httpapi

import (
	"net/http"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/guorganizer/organizer/internal/organizer"
)

// changeMessage is the wire shape streamed over /v1/changes. Type "change"
// carries a key-level store event; type "refresh" is a bare redraw hint.
type changeMessage struct {
	Type  string          `json:"type"`
	Scope organizer.Scope `json:"scope,omitempty"`
	Keys  []string        `json:"keys,omitempty"`
}

// changeHub fans messages out to connected websocket clients. A client that
// cannot keep up has its buffer dropped on the floor rather than blocking
// the store's notify path.
type changeHub struct {
	mu      sync.Mutex
	next    int
	clients map[int]chan changeMessage
	closed  bool
}

func newChangeHub() *changeHub {
	return &changeHub{clients: map[int]chan changeMessage{}}
}

func (h *changeHub) register() (<-chan changeMessage, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan changeMessage, 32)
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	id := h.next
	h.next++
	h.clients[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.clients[id]; ok {
			delete(h.clients, id)
			close(c)
		}
	}
}

func (h *changeHub) broadcast(msg changeMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (h *changeHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.clients {
		delete(h.clients, id)
		close(ch)
	}
}

func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	feed, cancel := s.hub.register()
	defer cancel()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case msg, ok := <-feed:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}
