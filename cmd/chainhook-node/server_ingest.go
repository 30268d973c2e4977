package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"chainhook/core"
)

// ingestServer accepts chain-event payloads pushed by a Bitcoin or Stacks
// node's event observer hooks and forwards them to the Observer's command
// loop as standardized blocks.
type ingestServer struct {
	observer        *core.Observer
	log             *logrus.Logger
	http            *http.Server
	nakamotoEnabled bool
}

func newIngestServer(observer *core.Observer, log *logrus.Logger, nakamotoEnabled bool) *ingestServer {
	s := &ingestServer{observer: observer, log: log, nakamotoEnabled: nakamotoEnabled}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	// Path names and their fixed semantics follow spec.md's ingestion
	// table: new_block is the smart-chain anchor, new_burn_block the
	// base-chain block.
	r.Post("/new_block", s.handleNewStacksBlock)
	r.Post("/new_burn_block", s.handleNewBitcoinBlock)
	r.Post("/new_microblocks", s.handleNewMicroblocks)
	r.Post("/new_mempool_tx", s.handleMempoolEvent)
	r.Post("/drop_mempool_tx", s.handleMempoolEvent)
	r.Post("/attachments/new", s.handleAcknowledgedOnly)
	r.Post("/mined_block", s.handleAcknowledgedOnly)
	r.Post("/mined_microblock", s.handleAcknowledgedOnly)
	r.Post("/stackerdb_chunks", s.handleStackerDBChunk)

	s.http = &http.Server{Handler: r}
	return s
}

func (s *ingestServer) ListenAndServe(addr string) error {
	s.http.Addr = addr
	s.log.WithField("addr", addr).Info("ingest server listening")
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *ingestServer) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *ingestServer) handleNewBitcoinBlock(w http.ResponseWriter, r *http.Request) {
	var raw core.RawBitcoinBlock
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	block, err := core.StandardizeBitcoinBlock(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cmd := core.Command{Kind: core.CmdNewBitcoinBlock, BitcoinBlock: &block}
	s.submit(w, r, cmd)
}

func (s *ingestServer) handleNewStacksBlock(w http.ResponseWriter, r *http.Request) {
	var raw core.RawStacksBlock
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	block, err := core.StandardizeStacksBlock(raw, core.StandardizeConfig{NakamotoEnabled: s.nakamotoEnabled, Log: s.log})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cmd := core.Command{Kind: core.CmdNewStacksBlock, StacksBlock: &block}
	s.submit(w, r, cmd)
}

func (s *ingestServer) handleNewMicroblocks(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Anchor       core.BlockIdentifier    `json:"anchor_block_identifier"`
		Microblocks  []core.RawStacksMicroblock `json:"microblocks"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for i := range payload.Microblocks {
		payload.Microblocks[i].AnchorBlockIdentifier = payload.Anchor
		mb, err := core.StandardizeStacksMicroblock(payload.Microblocks[i])
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		cmd := core.Command{
			Kind: core.CmdNewStacksMicroblock,
			StacksMicroblock: &core.StacksMicroblockCommand{
				Anchor:     payload.Anchor,
				Microblock: mb,
			},
		}
		if err := s.observer.Submit(r.Context(), cmd); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMempoolEvent acknowledges mempool notifications. Mempool
// transactions are never standardized into blocks (spec.md Non-goals), so
// this endpoint only exists to keep a configured node's webhook list happy.
func (s *ingestServer) handleMempoolEvent(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// handleAcknowledgedOnly backs attachments/new, mined_block, and
// mined_microblock. None of the three carries chain-event data a predicate
// can match against (an attachment is off-chain content, and a "mined"
// notification describes a block this node produced itself rather than one
// that reached consensus), so there's nothing to standardize or dispatch.
// The node still needs the 204 or the upstream event observer retries the
// webhook indefinitely.
func (s *ingestServer) handleAcknowledgedOnly(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// handleStackerDBChunk accepts one signer-DB chunk observation. The signer
// public key is never trusted off the wire: StandardizeSignerDBChunk
// recovers it from the slot's signature, surfacing an auth error on the
// chunk rather than rejecting the whole batch when recovery fails.
func (s *ingestServer) handleStackerDBChunk(w http.ResponseWriter, r *http.Request) {
	var raw core.RawSignerDBChunk
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ev, err := core.StandardizeSignerDBChunk(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cmd := core.Command{Kind: core.CmdNonConsensusEvent, NonConsensusEvent: &ev}
	s.submit(w, r, cmd)
}

func (s *ingestServer) submit(w http.ResponseWriter, r *http.Request, cmd core.Command) {
	if err := s.observer.Submit(r.Context(), cmd); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func requestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			}).Debug("ingest request")
			next.ServeHTTP(w, r)
		})
	}
}
