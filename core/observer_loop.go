package core

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

// commandQueueDepth bounds the observer's command channel. A bounded
// channel applies backpressure to ingestion adapters rather than letting an
// unbounded backlog grow while the single writer is busy dispatching.
const commandQueueDepth = 256

// recentBlockCacheSize is how many recently-received base-chain blocks stay
// available for gettxoutproof-adjacent lookups without re-querying the
// block pool.
const recentBlockCacheSize = 64

// Subscriber receives every occurrence the observer's single writer
// produces, in the order it produced them (spec.md §5's ordering
// guarantee). Implementations must not block for long: the loop delivers
// to subscribers synchronously between processing commands.
type Subscriber interface {
	Notify(Occurrence, bool)
	NotifyInterrupted(PredicateInterrupted)
}

// Observer owns every piece of chain-indexing state and is the only
// goroutine allowed to mutate it: block pools, predicate registry,
// evaluation engine, and delivery lifecycle all live behind its single
// command loop (spec.md §5 "Concurrency model").
type Observer struct {
	bitcoinPool *BitcoinPool
	stacksPool  *StacksPool
	registry    *Registry
	engine      *Engine
	lifecycle   *Lifecycle
	metrics     *Metrics

	commands chan Command
	subs     []Subscriber

	recentBitcoin *lru.Cache[string, BitcoinBlock]

	// snapshots lets HTTP handlers read predicate state without racing the
	// single-writer loop's own map, updated each time registration changes.
	snapshots sync.Map // uuid string -> PredicateInstance

	log *logrus.Logger
}

func NewObserver(bitcoinRetention, stacksRetention uint64, dispatcher *Dispatcher, metrics *Metrics, log *logrus.Logger) *Observer {
	if log == nil {
		log = logrus.New()
	}
	if metrics == nil {
		metrics = NewMetrics(log)
	}
	registry := NewRegistry()
	cache, err := lru.New[string, BitcoinBlock](recentBlockCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// recentBlockCacheSize never is.
		panic(err)
	}
	return &Observer{
		bitcoinPool:   NewBitcoinPool(log, bitcoinRetention),
		stacksPool:    NewStacksPool(log, stacksRetention),
		registry:      registry,
		engine:        NewEngine(registry),
		lifecycle:     NewLifecycle(registry, dispatcher, log),
		metrics:       metrics,
		commands:      make(chan Command, commandQueueDepth),
		recentBitcoin: cache,
		log:           log,
	}
}

// Predicate returns a point-in-time snapshot of the registered predicate
// with the given uuid. Safe to call from any goroutine; the snapshot may
// lag the command loop by one in-flight registration/deregistration.
func (o *Observer) Predicate(uuid string) (PredicateInstance, bool) {
	v, ok := o.snapshots.Load(uuid)
	if !ok {
		return PredicateInstance{}, false
	}
	return v.(PredicateInstance), true
}

// Subscribe registers s to receive every future occurrence and interrupt.
// Must be called before Run starts consuming commands to avoid racing the
// subs slice; callers typically subscribe during observer construction.
func (o *Observer) Subscribe(s Subscriber) {
	o.subs = append(o.subs, s)
}

// Submit enqueues cmd, blocking if the command queue is full. Safe to call
// from any goroutine.
func (o *Observer) Submit(ctx context.Context, cmd Command) error {
	select {
	case o.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the observer's single writer: it drains commands until the
// context is cancelled or a CmdTerminate command is received, applying each
// one to the pools/registry/engine and broadcasting resulting occurrences
// to every subscriber before moving to the next command.
func (o *Observer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-o.commands:
			if !o.handle(ctx, cmd) {
				return
			}
		}
	}
}

// handle processes one command and returns false when the loop should
// stop (CmdTerminate).
func (o *Observer) handle(ctx context.Context, cmd Command) bool {
	switch cmd.Kind {
	case CmdTerminate:
		reply(cmd, CommandResult{})
		return false

	case CmdRegisterPredicate:
		warnings, errs := o.registry.Register(cmd.Predicate)
		if len(errs) == 0 {
			o.snapshots.Store(cmd.Predicate.UUID, *cmd.Predicate)
		}
		o.refreshPredicateMetrics()
		reply(cmd, CommandResult{RegisterWarnings: warnings, RegisterErrors: errs})

	case CmdDeregisterPredicate:
		_, ok := o.registry.Deregister(cmd.PredicateUUID)
		var err error
		if !ok {
			err = ErrUnknownPredicate
		} else {
			o.snapshots.Delete(cmd.PredicateUUID)
		}
		o.refreshPredicateMetrics()
		reply(cmd, CommandResult{Err: err})

	case CmdNewBitcoinBlock:
		o.handleBitcoinBlock(ctx, *cmd.BitcoinBlock)
		reply(cmd, CommandResult{})

	case CmdNewStacksBlock:
		o.handleStacksBlock(ctx, *cmd.StacksBlock)
		reply(cmd, CommandResult{})

	case CmdNewStacksMicroblock:
		o.handleStacksMicroblock(ctx, cmd.StacksMicroblock.Anchor, cmd.StacksMicroblock.Microblock)
		reply(cmd, CommandResult{})

	case CmdNonConsensusEvent:
		o.handleNonConsensus(*cmd.NonConsensusEvent)
		reply(cmd, CommandResult{})

	case CmdNotifyTransactionProxied:
		o.log.WithField("txid", cmd.ProxiedTxid).Info("raw transaction proxied to base chain node")
		reply(cmd, CommandResult{})

	default:
		reply(cmd, CommandResult{Err: ErrMalformedPayload})
	}
	return true
}

func (o *Observer) handleBitcoinBlock(ctx context.Context, b BitcoinBlock) {
	o.recentBitcoin.Add(b.BlockIdentifier.String(), b)
	event, changed := o.bitcoinPool.Admit(b)
	if !changed {
		return
	}
	if event.Kind == EventReorgBlocks {
		o.metrics.ObserveReorg(len(event.RollbackBlocks))
	}
	if tip, ok := o.bitcoinPool.CanonicalTip(); ok {
		o.metrics.SetBitcoinTip(tip.Index)
	}
	o.dispatchBitcoin(ctx, event)
}

func (o *Observer) handleStacksBlock(ctx context.Context, b StacksBlock) {
	for _, event := range o.stacksPool.AdmitBlock(b) {
		if event.Kind == EventReorgBlocks {
			o.metrics.ObserveReorg(len(event.RollbackBlocks))
		}
		o.dispatchStacks(ctx, event)
	}
	if tip, ok := o.stacksPool.CanonicalTip(); ok {
		o.metrics.SetStacksTip(tip.Index)
	}
}

func (o *Observer) refreshPredicateMetrics() {
	active, expired := o.registry.Counts()
	o.metrics.SetPredicateCounts(active, expired)
}

func (o *Observer) handleStacksMicroblock(ctx context.Context, anchor BlockIdentifier, mb StacksMicroblock) {
	event, changed := o.stacksPool.AdmitMicroblock(anchor, mb)
	if !changed {
		return
	}
	occurrences := o.engine.EvaluateMicroblocks(event)
	o.broadcast(ctx, occurrences, true)
}

func (o *Observer) handleNonConsensus(ev NonConsensusEvent) {
	for _, p := range o.engine.EvaluateNonConsensus(NonConsensusChainEvent{Event: ev}) {
		o.broadcastOne(context.Background(), Occurrence{Predicate: p}, true)
	}
}

func (o *Observer) dispatchBitcoin(ctx context.Context, event BitcoinChainEvent) {
	occurrences := o.engine.EvaluateBitcoin(event)
	o.broadcast(ctx, occurrences, true)
}

func (o *Observer) dispatchStacks(ctx context.Context, event StacksChainEvent) {
	occurrences := o.engine.EvaluateStacks(event)
	o.broadcast(ctx, occurrences, true)
}

func (o *Observer) broadcast(ctx context.Context, occurrences []Occurrence, streaming bool) {
	for _, occ := range occurrences {
		o.broadcastOne(ctx, occ, streaming)
	}
}

func (o *Observer) broadcastOne(ctx context.Context, occ Occurrence, streaming bool) {
	interrupted := o.lifecycle.DeliverAndRecord(ctx, occ, streaming)
	if interrupted != nil && interrupted.Reason == InterruptDeliveryExhausted {
		o.metrics.IncDeliveryFailure()
	} else {
		o.metrics.IncOccurrence()
	}
	for _, s := range o.subs {
		s.Notify(occ, streaming)
		if interrupted != nil {
			s.NotifyInterrupted(*interrupted)
		}
	}
}
