package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestLifecycleRecordDeregistersAtOccurrenceCap(t *testing.T) {
	r := NewRegistry()
	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 1}})
	occCap := uint64(2)
	p.ExpireAfterOccurrence = &occCap
	registerOrFail(t, r, p)

	l := NewLifecycle(r, NewDispatcher(testLogger()), testLogger())

	if interrupted := l.Record(p); interrupted != nil {
		t.Fatalf("expected no interrupt on the first occurrence, got %+v", interrupted)
	}

	interrupted := l.Record(p)
	if interrupted == nil {
		t.Fatal("expected an interrupt once the occurrence cap is reached")
	}
	if interrupted.Reason != InterruptOccurrenceCapReached {
		t.Fatalf("expected InterruptOccurrenceCapReached, got %s", interrupted.Reason)
	}
	if _, ok := r.Deregister(p.UUID); ok {
		t.Fatal("expected the predicate to already be deregistered by Record")
	}
}

func TestLifecycleDeliverAndRecordDeregistersOnDeliveryFailure(t *testing.T) {
	r := NewRegistry()
	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 1}})
	p.Action = Action{Kind: ActionHTTPPost, HTTP: &HTTPAction{URL: "http://127.0.0.1:1"}}
	registerOrFail(t, r, p)

	l := NewLifecycle(r, NewDispatcher(testLogger()), testLogger())

	block := bitcoinBlock(1, "0x01", "0x00")
	occ := Occurrence{Predicate: p, Apply: []MatchedBlock{{BitcoinBlock: &block}}}

	interrupted := l.DeliverAndRecord(context.Background(), occ, false)
	if interrupted == nil {
		t.Fatal("expected an interrupt when delivery is exhausted")
	}
	if interrupted.Reason != InterruptDeliveryExhausted {
		t.Fatalf("expected InterruptDeliveryExhausted, got %s", interrupted.Reason)
	}
	if p.OccurrenceCount != 0 {
		t.Fatalf("expected occurrence count to stay at 0 on delivery failure, got %d", p.OccurrenceCount)
	}
}

func TestLifecycleDeliverAndRecordSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := NewRegistry()
	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 1}})
	p.Action = Action{Kind: ActionHTTPPost, HTTP: &HTTPAction{URL: srv.URL}}
	registerOrFail(t, r, p)

	l := NewLifecycle(r, NewDispatcher(testLogger()), testLogger())

	block := bitcoinBlock(1, "0x01", "0x00")
	occ := Occurrence{Predicate: p, Apply: []MatchedBlock{{BitcoinBlock: &block}}}

	if interrupted := l.DeliverAndRecord(context.Background(), occ, false); interrupted != nil {
		t.Fatalf("expected no interrupt on a successful delivery, got %+v", interrupted)
	}
	if p.OccurrenceCount != 1 {
		t.Fatalf("expected occurrence count to be recorded, got %d", p.OccurrenceCount)
	}
}
