package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"chainhook/core"
	"chainhook/pkg/config"
)

// diagnosticsServer exposes operational surfaces that do not flow through
// the observer's command loop: Prometheus metrics, a liveness probe, and a
// raw-transaction RPC passthrough to the configured base-chain node
// (spec.md §4.5).
type diagnosticsServer struct {
	log  *logrus.Logger
	http *http.Server
	rpc  *core.RPCClient
}

func newDiagnosticsServer(cfg *config.Config, metrics *core.Metrics, log *logrus.Logger) *diagnosticsServer {
	s := &diagnosticsServer{
		log: log,
		rpc: core.NewRPCClient(cfg.Bitcoin.RPCURL, cfg.Bitcoin.RPCUser, cfg.Bitcoin.RPCPassword, log),
	}

	r := mux.NewRouter()
	r.Use(muxRequestLogger(log))

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/v1/rpc/sendrawtransaction", s.handleSendRawTransaction).Methods(http.MethodPost)

	s.http = &http.Server{Handler: r}
	return s
}

func (s *diagnosticsServer) ListenAndServe(addr string) error {
	s.http.Addr = addr
	s.log.WithField("addr", addr).Info("diagnostics server listening")
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *diagnosticsServer) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *diagnosticsServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *diagnosticsServer) handleSendRawTransaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RawTx string `json:"raw_tx"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	txid, err := s.rpc.SendRawTransaction(r.Context(), req.RawTx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"txid": txid})
}

func muxRequestLogger(log *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.WithFields(logrus.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
			}).Debug("diagnostics request")
			next.ServeHTTP(w, r)
		})
	}
}
