package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
)

// deliveryRetries and deliveryBackoff implement spec.md §4.4's delivery
// failure model: three attempts, one second apart, before the occurrence is
// considered undeliverable.
const (
	deliveryRetries = 3
	deliveryBackoff = time.Second
)

// Dispatcher sends occurrence payloads to their predicate's configured
// action.
type Dispatcher struct {
	client *http.Client
	log    *logrus.Logger
}

func NewDispatcher(log *logrus.Logger) *Dispatcher {
	if log == nil {
		log = logrus.New()
	}
	return &Dispatcher{
		client: &http.Client{Timeout: 30 * time.Second},
		log:    log,
	}
}

// Deliver dispatches one occurrence's payload according to its predicate's
// action, retrying HTTP delivery up to deliveryRetries times. It returns
// ErrDeliveryExhausted, wrapped with the last transport error, when every
// attempt fails.
func (d *Dispatcher) Deliver(ctx context.Context, o Occurrence, streaming bool) error {
	payload := BuildPayload(o, streaming)
	switch o.Predicate.Action.Kind {
	case ActionHTTPPost:
		return d.deliverHTTP(ctx, o.Predicate.Action.HTTP, payload)
	case ActionFileAppend:
		return d.deliverFile(o.Predicate.Action.File, payload)
	case ActionNoop:
		return nil
	default:
		return fmt.Errorf("%w: unknown action kind %q", ErrMalformedPayload, o.Predicate.Action.Kind)
	}
}

func (d *Dispatcher) deliverHTTP(ctx context.Context, action *HTTPAction, payload OccurrencePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var compressed bytes.Buffer
	gw := gzip.NewWriter(&compressed)
	if _, err := gw.Write(body); err != nil {
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= deliveryRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, action.URL, bytes.NewReader(compressed.Bytes()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Content-Encoding", "gzip")
		if action.Authorization != "" {
			req.Header.Set("Authorization", action.Authorization)
		}

		resp, err := d.client.Do(req)
		if err != nil {
			lastErr = err
			d.log.WithError(err).WithField("attempt", attempt).Warn("occurrence delivery failed")
		} else {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			lastErr = fmt.Errorf("occurrence delivery: unexpected status %d", resp.StatusCode)
			d.log.WithField("status", resp.StatusCode).WithField("attempt", attempt).Warn("occurrence delivery rejected")
		}

		if attempt < deliveryRetries {
			select {
			case <-time.After(deliveryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("%w: %v", ErrDeliveryExhausted, lastErr)
}

func (d *Dispatcher) deliverFile(action *FileAction, payload OccurrencePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	f, err := os.OpenFile(action.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.Write(append(body, '\n')); err != nil {
		return err
	}
	return nil
}

// RPCGetTxOutProof fetches a merkle inclusion proof for a confirmed base
// chain transaction, attaching it to BitcoinTransactionMeta.Proof when a
// predicate requests include_proof (spec.md §4.4).
func RPCGetTxOutProof(ctx context.Context, client *RPCClient, txid string, blockHash string) (string, error) {
	var result string
	if err := client.Call(ctx, "gettxoutproof", []interface{}{[]string{txid}, blockHash}, &result); err != nil {
		return "", fmt.Errorf("gettxoutproof: %w", err)
	}
	return result, nil
}
