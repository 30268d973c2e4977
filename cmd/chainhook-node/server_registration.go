package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"chainhook/core"
)

// registrationServer exposes predicate CRUD and a websocket endpoint
// streaming every occurrence produced for registered predicates.
type registrationServer struct {
	observer *core.Observer
	hub      *streamHub
	log      *logrus.Logger
	http     *http.Server
	upgrader websocket.Upgrader
}

func newRegistrationServer(observer *core.Observer, hub *streamHub, log *logrus.Logger) *registrationServer {
	s := &registrationServer{
		observer: observer,
		hub:      hub,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Route("/v1/chainhooks", func(r chi.Router) {
		r.Post("/", s.handleRegister)
		r.Get("/{uuid}", s.handleGet)
		r.Delete("/{uuid}", s.handleDeregister)
	})
	r.Get("/v1/ws/occurrences", s.handleWebsocket)

	s.http = &http.Server{Handler: r}
	return s
}

func (s *registrationServer) ListenAndServe(addr string) error {
	s.http.Addr = addr
	s.log.WithField("addr", addr).Info("registration server listening")
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *registrationServer) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleRegister decodes a predicate and submits it to the observer's
// command loop, waiting for the registration outcome before responding
// (spec.md §4.3 "Failure semantics").
func (s *registrationServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var p core.PredicateInstance
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if p.UUID == "" {
		p.UUID = uuid.NewString()
	}
	p.RegisteredAt = time.Now().UTC()

	reply := make(chan core.CommandResult, 1)
	cmd := core.Command{Kind: core.CmdRegisterPredicate, Predicate: &p, Reply: reply}
	if err := s.observer.Submit(r.Context(), cmd); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	select {
	case res := <-reply:
		if len(res.RegisterErrors) > 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"errors": res.RegisterErrors})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"uuid": p.UUID, "warnings": res.RegisterWarnings})
	case <-r.Context().Done():
		http.Error(w, r.Context().Err().Error(), http.StatusRequestTimeout)
	}
}

func (s *registrationServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	p, ok := s.observer.Predicate(id)
	if !ok {
		http.Error(w, "predicate not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *registrationServer) handleDeregister(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uuid")
	reply := make(chan core.CommandResult, 1)
	cmd := core.Command{Kind: core.CmdDeregisterPredicate, PredicateUUID: id, Reply: reply}
	if err := s.observer.Submit(r.Context(), cmd); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	select {
	case res := <-reply:
		if res.Err != nil {
			http.Error(w, res.Err.Error(), http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case <-r.Context().Done():
		http.Error(w, r.Context().Err().Error(), http.StatusRequestTimeout)
	}
}

// handleWebsocket upgrades the connection and streams every subsequent
// occurrence/interrupt the hub receives from the observer loop.
func (s *registrationServer) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	ch := s.hub.add(conn)
	defer func() {
		s.hub.remove(conn)
		conn.Close()
	}()

	go s.drainClientReads(conn)

	for msg := range ch {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// drainClientReads discards inbound client frames (this endpoint is
// write-only) but must keep reading so gorilla/websocket processes pings
// and detects client disconnects.
func (s *registrationServer) drainClientReads(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
