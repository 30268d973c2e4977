package core

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDispatcherDeliverNoop(t *testing.T) {
	d := NewDispatcher(testLogger())
	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 1}})
	block := bitcoinBlock(1, "0x01", "0x00")
	occ := Occurrence{Predicate: p, Apply: []MatchedBlock{{BitcoinBlock: &block}}}

	if err := d.Deliver(context.Background(), occ, false); err != nil {
		t.Fatalf("expected noop delivery to succeed, got %v", err)
	}
}

func TestDispatcherDeliverHTTPSuccess(t *testing.T) {
	var received OccurrencePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") != "gzip" {
			t.Errorf("expected gzip-encoded body, got Content-Encoding=%q", r.Header.Get("Content-Encoding"))
		}
		gr, err := gzip.NewReader(r.Body)
		if err != nil {
			t.Fatalf("expected a valid gzip body: %v", err)
		}
		defer gr.Close()
		body, err := io.ReadAll(gr)
		if err != nil {
			t.Fatalf("failed reading gzip body: %v", err)
		}
		if err := json.Unmarshal(body, &received); err != nil {
			t.Fatalf("failed decoding payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 1}})
	p.Action = Action{Kind: ActionHTTPPost, HTTP: &HTTPAction{URL: srv.URL}}
	block := bitcoinBlock(1, "0x01", "0x00")
	occ := Occurrence{Predicate: p, Apply: []MatchedBlock{{BitcoinBlock: &block}}}

	d := NewDispatcher(testLogger())
	if err := d.Deliver(context.Background(), occ, true); err != nil {
		t.Fatalf("expected successful delivery, got %v", err)
	}
	if received.Chainhook.UUID != p.UUID {
		t.Fatalf("expected delivered payload to carry predicate uuid %s, got %s", p.UUID, received.Chainhook.UUID)
	}
	if !received.Chainhook.IsStreamingBlocks {
		t.Fatal("expected is_streaming_blocks to be true")
	}
}

func TestDispatcherDeliverHTTPExhaustsRetries(t *testing.T) {
	var attempts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 1}})
	p.Action = Action{Kind: ActionHTTPPost, HTTP: &HTTPAction{URL: srv.URL}}
	block := bitcoinBlock(1, "0x01", "0x00")
	occ := Occurrence{Predicate: p, Apply: []MatchedBlock{{BitcoinBlock: &block}}}

	d := NewDispatcher(testLogger())
	err := d.Deliver(context.Background(), occ, false)
	if err == nil {
		t.Fatal("expected delivery to fail after exhausting retries")
	}
	if attempts != deliveryRetries {
		t.Fatalf("expected exactly %d attempts, got %d", deliveryRetries, attempts)
	}
}

func TestDispatcherDeliverFileAppendsJSONLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "occurrences.jsonl")

	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 1}})
	p.Action = Action{Kind: ActionFileAppend, File: &FileAction{Path: path}}
	block := bitcoinBlock(1, "0x01", "0x00")
	occ := Occurrence{Predicate: p, Apply: []MatchedBlock{{BitcoinBlock: &block}}}

	d := NewDispatcher(testLogger())
	if err := d.Deliver(context.Background(), occ, false); err != nil {
		t.Fatalf("expected file delivery to succeed, got %v", err)
	}
	if err := d.Deliver(context.Background(), occ, false); err != nil {
		t.Fatalf("expected second file delivery to succeed, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed reading appended file: %v", err)
	}
	lines := bytes.Count(data, []byte("\n"))
	if lines != 2 {
		t.Fatalf("expected two appended lines, got %d", lines)
	}
}
