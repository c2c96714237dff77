package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stwalsh4118/repolens/internal/git"
)

// MessageType tags WebSocket payloads
type MessageType string

const MessageTypeStatus MessageType = "status"

// Message is the envelope written to WebSocket clients
type Message struct {
	Type       MessageType `json:"type"`
	Repository string      `json:"repository"`
	Data       any         `json:"data"`
	SentAt     time.Time   `json:"sentAt"`
}

func statusMessage(path string, snapshot git.StatusSnapshot) Message {
	return Message{Type: MessageTypeStatus, Repository: path, Data: snapshot, SentAt: time.Now().UTC()}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// the server binds to loopback by default; any local origin may subscribe
	CheckOrigin: func(r *http.Request) bool { return true },
}

// subscriber is one WebSocket connection; only its handler goroutine writes
type subscriber struct {
	send chan Message
}

// hub tracks subscribers per repository path
type hub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*subscriber]struct{})}
}

func (h *hub) add(path string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[path]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[path] = set
	}
	set[sub] = struct{}{}
}

func (h *hub) remove(path string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[path]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, path)
	}
}

func (h *hub) hasSubscribers(path string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[path]) > 0
}

// broadcast never blocks; it returns how many subscribers were skipped
func (h *hub) broadcast(path string, msg Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	dropped := 0
	for sub := range h.subs[path] {
		select {
		case sub.send <- msg:
		default:
			dropped++
		}
	}
	return dropped
}
