package main

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"chainhook/core"
)

// streamHub fans every occurrence and interrupt out to connected websocket
// clients. It implements core.Subscriber and is registered with the
// Observer once at startup; Notify/NotifyInterrupted run on the observer's
// single command-loop goroutine, so the hub only needs to protect its own
// client set against concurrent Add/Remove from HTTP handler goroutines.
type streamHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

func newStreamHub() *streamHub {
	return &streamHub{clients: make(map[*websocket.Conn]chan []byte)}
}

func (h *streamHub) add(conn *websocket.Conn) chan []byte {
	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[conn] = ch
	h.mu.Unlock()
	return ch
}

func (h *streamHub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	h.mu.Unlock()
}

type streamMessage struct {
	Type        string                    `json:"type"`
	Occurrence  *core.OccurrencePayload   `json:"occurrence,omitempty"`
	Interrupted *core.PredicateInterrupted `json:"interrupted,omitempty"`
}

func (h *streamHub) Notify(occ core.Occurrence, streaming bool) {
	payload := core.BuildPayload(occ, streaming)
	h.broadcast(streamMessage{Type: "occurrence", Occurrence: &payload})
}

func (h *streamHub) NotifyInterrupted(interrupted core.PredicateInterrupted) {
	h.broadcast(streamMessage{Type: "interrupted", Interrupted: &interrupted})
}

func (h *streamHub) broadcast(msg streamMessage) {
	encoded, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- encoded:
		default:
			// Slow consumer: drop rather than block the single-writer
			// observer loop that ultimately drives this broadcast.
			delete(h.clients, conn)
			close(ch)
		}
	}
}
