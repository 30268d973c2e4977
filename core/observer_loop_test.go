package core

import (
	"context"
	"sync"
	"testing"
	"time"
)

// recordingSubscriber captures every occurrence and interrupt it receives,
// in delivery order, guarded by a mutex since Notify may be called from the
// observer's loop goroutine while the test reads from another.
type recordingSubscriber struct {
	mu            sync.Mutex
	occurrences   []Occurrence
	interruptions []PredicateInterrupted
}

func (r *recordingSubscriber) Notify(occ Occurrence, streaming bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.occurrences = append(r.occurrences, occ)
}

func (r *recordingSubscriber) NotifyInterrupted(i PredicateInterrupted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interruptions = append(r.interruptions, i)
}

func (r *recordingSubscriber) snapshot() ([]Occurrence, []PredicateInterrupted) {
	r.mu.Lock()
	defer r.mu.Unlock()
	occs := make([]Occurrence, len(r.occurrences))
	copy(occs, r.occurrences)
	ints := make([]PredicateInterrupted, len(r.interruptions))
	copy(ints, r.interruptions)
	return occs, ints
}

func submitAndWait(t *testing.T, o *Observer, cmd Command) CommandResult {
	t.Helper()
	cmd.Reply = make(chan CommandResult, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.Submit(ctx, cmd); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	select {
	case res := <-cmd.Reply:
		return res
	case <-ctx.Done():
		t.Fatal("timed out waiting for command reply")
		return CommandResult{}
	}
}

func TestObserverRegisterAndDeliverBitcoinBlock(t *testing.T) {
	dispatcher := NewDispatcher(testLogger())
	metrics := NewMetrics(testLogger())
	o := NewObserver(7, 1, dispatcher, metrics, testLogger())

	sub := &recordingSubscriber{}
	o.Subscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 1}})
	regRes := submitAndWait(t, o, Command{Kind: CmdRegisterPredicate, Predicate: p})
	if len(regRes.RegisterErrors) != 0 {
		t.Fatalf("unexpected registration errors: %v", regRes.RegisterErrors)
	}

	snap, ok := o.Predicate(p.UUID)
	if !ok || snap.UUID != p.UUID {
		t.Fatalf("expected a predicate snapshot for %s, got ok=%v snap=%+v", p.UUID, ok, snap)
	}

	// handle() dispatches and broadcasts synchronously before replying to
	// CmdNewBitcoinBlock, so by the time submitAndWait returns, Notify has
	// already been called for any resulting occurrence.
	block := bitcoinBlock(1, "0x01", "0x00")
	submitAndWait(t, o, Command{Kind: CmdNewBitcoinBlock, BitcoinBlock: &block})

	occs, _ := sub.snapshot()
	if len(occs) != 1 {
		t.Fatalf("expected exactly one occurrence to be delivered, got %d", len(occs))
	}
	if occs[0].Predicate.UUID != p.UUID {
		t.Fatalf("expected the occurrence to name predicate %s, got %s", p.UUID, occs[0].Predicate.UUID)
	}
}

func TestObserverDeregisterRemovesSnapshot(t *testing.T) {
	dispatcher := NewDispatcher(testLogger())
	metrics := NewMetrics(testLogger())
	o := NewObserver(7, 1, dispatcher, metrics, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 1}})
	submitAndWait(t, o, Command{Kind: CmdRegisterPredicate, Predicate: p})

	if _, ok := o.Predicate(p.UUID); !ok {
		t.Fatal("expected the predicate snapshot to exist after registration")
	}

	deregRes := submitAndWait(t, o, Command{Kind: CmdDeregisterPredicate, PredicateUUID: p.UUID})
	if deregRes.Err != nil {
		t.Fatalf("unexpected deregistration error: %v", deregRes.Err)
	}
	if _, ok := o.Predicate(p.UUID); ok {
		t.Fatal("expected the predicate snapshot to be removed after deregistration")
	}
}

func TestObserverDeregisterUnknownPredicateReturnsError(t *testing.T) {
	dispatcher := NewDispatcher(testLogger())
	metrics := NewMetrics(testLogger())
	o := NewObserver(7, 1, dispatcher, metrics, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx)

	res := submitAndWait(t, o, Command{Kind: CmdDeregisterPredicate, PredicateUUID: "unknown"})
	if res.Err == nil {
		t.Fatal("expected an error deregistering an unknown predicate")
	}
}

func TestObserverTerminateStopsTheLoop(t *testing.T) {
	dispatcher := NewDispatcher(testLogger())
	metrics := NewMetrics(testLogger())
	o := NewObserver(7, 1, dispatcher, metrics, testLogger())

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(done)
	}()

	submitAndWait(t, o, Command{Kind: CmdTerminate})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected Run to return after CmdTerminate")
	}
}
