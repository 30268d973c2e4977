package core

import "sort"

// Occurrence is one predicate's hit against one chain event: the matched
// blocks (in event order) paired with the predicate that matched them. The
// dispatcher (dispatch_payload.go) turns these into wire payloads.
type Occurrence struct {
	Predicate *PredicateInstance
	Apply     []MatchedBlock
	Rollback  []MatchedBlock
}

// MatchedBlock is one block's worth of matched transactions (Stacks) or
// operations (Bitcoin). Exactly one of the two is populated depending on the
// predicate's network.
type MatchedBlock struct {
	BitcoinBlock *BitcoinBlock
	StacksBlock  *StacksBlock
}

// Engine evaluates registered predicates against chain events (spec.md §4.3).
type Engine struct {
	registry *Registry
}

func NewEngine(registry *Registry) *Engine {
	return &Engine{registry: registry}
}

// EvaluateBitcoin runs every active bitcoin-network predicate against one
// chain event, in evaluation order: expire first, then match apply/rollback
// independently so a predicate with hits in both lists reports both.
func (e *Engine) EvaluateBitcoin(ev BitcoinChainEvent) []Occurrence {
	tip := tipIndex(ev.ApplyBlocks, ev.ConfirmedBlocks)
	e.registry.ExpireAgainst(NetworkBitcoin, tip)

	preds := sortedActive(e.registry.Active(NetworkBitcoin))
	var occurrences []Occurrence
	for _, rp := range preds {
		p := rp.instance
		var apply, rollback []MatchedBlock
		for _, b := range ev.ApplyBlocks {
			if matched, ok := matchBitcoinBlock(p, b); ok {
				apply = append(apply, matched)
			}
		}
		for _, b := range ev.RollbackBlocks {
			if matched, ok := matchBitcoinBlock(p, b); ok {
				rollback = append(rollback, matched)
			}
		}
		if len(apply) > 0 || len(rollback) > 0 {
			occurrences = append(occurrences, Occurrence{Predicate: p, Apply: apply, Rollback: rollback})
		}
	}
	return occurrences
}

// EvaluateStacks runs every active stacks-network predicate against one
// anchor-block chain event.
func (e *Engine) EvaluateStacks(ev StacksChainEvent) []Occurrence {
	tip := tipIndexStacks(ev.ApplyBlocks, ev.ConfirmedBlocks)
	e.registry.ExpireAgainst(NetworkStacks, tip)

	preds := sortedActive(e.registry.Active(NetworkStacks))
	var occurrences []Occurrence
	for _, rp := range preds {
		p := rp.instance
		var apply, rollback []MatchedBlock
		for _, b := range ev.ApplyBlocks {
			if matched, ok := matchStacksBlock(p, rp, b, false); ok {
				apply = append(apply, matched)
			}
		}
		for _, b := range ev.RollbackBlocks {
			if matched, ok := matchStacksBlock(p, rp, b, true); ok {
				rollback = append(rollback, matched)
			}
		}
		if len(apply) > 0 || len(rollback) > 0 {
			occurrences = append(occurrences, Occurrence{Predicate: p, Apply: apply, Rollback: rollback})
		}
	}
	return occurrences
}

// EvaluateMicroblocks runs stacks predicates against a microblock-stream
// chain event. Microblocks never carry their own height gate (block_height
// scopes apply to anchor blocks only, per spec.md §4.3), so only
// transaction-targeting scopes can match here; block-height predicates are
// simply never hit by this path.
func (e *Engine) EvaluateMicroblocks(ev StacksChainEvent) []Occurrence {
	preds := sortedActive(e.registry.Active(NetworkStacks))
	var occurrences []Occurrence
	for _, rp := range preds {
		p := rp.instance
		if p.Scope.Kind == ScopeBlockHeight {
			continue
		}
		var apply, rollback []MatchedBlock
		for _, mb := range ev.ApplyMicroblocks {
			if txs := matchTransactions(p, rp, mb.Transactions, false); len(txs) > 0 {
				apply = append(apply, MatchedBlock{StacksBlock: syntheticMicroblockWrapper(mb, txs)})
			}
		}
		for _, mb := range ev.RollbackMicroblocks {
			if txs := matchTransactions(p, rp, mb.Transactions, true); len(txs) > 0 {
				rollback = append(rollback, MatchedBlock{StacksBlock: syntheticMicroblockWrapper(mb, txs)})
			}
		}
		if len(apply) > 0 || len(rollback) > 0 {
			occurrences = append(occurrences, Occurrence{Predicate: p, Apply: apply, Rollback: rollback})
		}
	}
	return occurrences
}

// EvaluateNonConsensus runs signer-message predicates against one signer-DB
// observation. Non-consensus events bypass the block pool entirely (spec.md
// §4.1), so there is no apply/rollback distinction: every hit is an apply.
func (e *Engine) EvaluateNonConsensus(ev NonConsensusChainEvent) []*PredicateInstance {
	preds := sortedActive(e.registry.Active(NetworkStacks))
	var hits []*PredicateInstance
	for _, rp := range preds {
		p := rp.instance
		if p.Scope.Kind != ScopeSignerMessage || p.Scope.SignerMessage == nil {
			continue
		}
		if matchSignerMessage(*p.Scope.SignerMessage, ev.Event) {
			hits = append(hits, p)
		}
	}
	return hits
}

// syntheticMicroblockWrapper packages a microblock's matched transactions
// into a StacksBlock shape so occurrence payloads (dispatch_payload.go) can
// treat anchor and microblock hits uniformly; the wrapper's own identifier
// is the microblock's, not an anchor's.
func syntheticMicroblockWrapper(mb StacksMicroblock, txs []StacksTransaction) *StacksBlock {
	return &StacksBlock{
		BlockIdentifier:       mb.BlockIdentifier,
		ParentBlockIdentifier: mb.ParentMicroblockIdentifier,
		Timestamp:             mb.Timestamp,
		Transactions:          txs,
	}
}

func matchBitcoinBlock(p *PredicateInstance, b BitcoinBlock) (MatchedBlock, bool) {
	if !blockInRange(p, b.BlockIdentifier.Index) {
		return MatchedBlock{}, false
	}
	if p.Scope.Kind == ScopeBlockHeight {
		if p.Scope.BlockHeight != nil && matchBlockHeight(*p.Scope.BlockHeight, b.BlockIdentifier.Index) {
			return MatchedBlock{BitcoinBlock: &b}, true
		}
		return MatchedBlock{}, false
	}

	var matchedTxs []BitcoinTransaction
	for _, tx := range b.Transactions {
		if matchBitcoinTransaction(p, tx) {
			matchedTxs = append(matchedTxs, tx)
		}
	}
	if len(matchedTxs) == 0 {
		return MatchedBlock{}, false
	}
	out := b
	out.Transactions = matchedTxs
	return MatchedBlock{BitcoinBlock: &out}, true
}

func matchBitcoinTransaction(p *PredicateInstance, tx BitcoinTransaction) bool {
	switch p.Scope.Kind {
	case ScopeTxid:
		return p.Scope.Txid != nil && matchTxid(*p.Scope.Txid, tx.TransactionIdentifier.Hash)
	case ScopeP2PKH, ScopeP2SH, ScopeP2WPKH, ScopeP2WSH, ScopeHex, ScopeScript:
		if p.Scope.BitcoinScript == nil {
			return false
		}
		for _, op := range tx.Operations {
			if ok, err := matchBitcoinScript(*p.Scope.BitcoinScript, op); err == nil && ok {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func matchStacksBlock(p *PredicateInstance, rp *registeredPredicate, b StacksBlock, rollback bool) (MatchedBlock, bool) {
	if !blockInRange(p, b.BlockIdentifier.Index) {
		return MatchedBlock{}, false
	}
	if p.Scope.Kind == ScopeBlockHeight {
		if p.Scope.BlockHeight != nil && matchBlockHeight(*p.Scope.BlockHeight, b.BlockIdentifier.Index) {
			return MatchedBlock{StacksBlock: &b}, true
		}
		return MatchedBlock{}, false
	}

	txs := matchTransactions(p, rp, b.Transactions, rollback)
	if len(txs) == 0 {
		return MatchedBlock{}, false
	}
	out := b
	out.Transactions = txs
	return MatchedBlock{StacksBlock: &out}, true
}

// matchTransactions filters a transaction list against one predicate's
// scope. Apply order is preserved as given; rollback callers pass
// reversed=true and the list is walked in reverse (spec.md §4.3 "block's
// transaction order for apply, reverse order for rollback").
func matchTransactions(p *PredicateInstance, rp *registeredPredicate, txs []StacksTransaction, reversed bool) []StacksTransaction {
	ordered := txs
	if reversed {
		ordered = make([]StacksTransaction, len(txs))
		for i, tx := range txs {
			ordered[len(txs)-1-i] = tx
		}
	}

	var out []StacksTransaction
	for _, tx := range ordered {
		if matchOneStacksTransaction(p, rp, tx) {
			out = append(out, tx)
		}
	}
	return out
}

func matchOneStacksTransaction(p *PredicateInstance, rp *registeredPredicate, tx StacksTransaction) bool {
	switch p.Scope.Kind {
	case ScopeTxid:
		return p.Scope.Txid != nil && matchTxid(*p.Scope.Txid, tx.TransactionIdentifier.Hash)
	case ScopeContractCall:
		return p.Scope.ContractCall != nil && matchContractCall(*p.Scope.ContractCall, tx)
	case ScopeContractDeployment:
		return p.Scope.ContractDeployment != nil && matchContractDeployment(*p.Scope.ContractDeployment, tx)
	case ScopeFTEvent:
		return p.Scope.FTEvent != nil && matchEventsAny(tx, p.CaptureAllEvents, func(ev TransactionEvent) bool {
			return matchFTEvent(*p.Scope.FTEvent, ev)
		})
	case ScopeNFTEvent:
		return p.Scope.NFTEvent != nil && matchEventsAny(tx, p.CaptureAllEvents, func(ev TransactionEvent) bool {
			return matchNFTEvent(*p.Scope.NFTEvent, ev)
		})
	case ScopeSTXEvent:
		return p.Scope.STXEvent != nil && matchEventsAny(tx, p.CaptureAllEvents, func(ev TransactionEvent) bool {
			return matchSTXEvent(*p.Scope.STXEvent, ev)
		})
	case ScopePrintEvent:
		return p.Scope.PrintEvent != nil && matchEventsAny(tx, p.CaptureAllEvents, func(ev TransactionEvent) bool {
			return matchPrintEvent(*p.Scope.PrintEvent, rp.regex, ev)
		})
	default:
		return false
	}
}

// matchEventsAny scans a transaction's receipt events with the predicate fn,
// stopping at the first hit unless the predicate requested
// capture_all_events (spec.md §4.3). capture_all_events only changes how
// many events are scanned, not whether the transaction itself matches: a
// single hit always qualifies the transaction.
func matchEventsAny(tx StacksTransaction, captureAll bool, fn func(TransactionEvent) bool) bool {
	hit := false
	for _, ev := range tx.Metadata.Receipt.Events {
		if fn(ev) {
			hit = true
			if !captureAll {
				return true
			}
		}
	}
	return hit
}

// blockInRange applies start_block/end_block/block_list gating, independent
// of scope (spec.md §3).
func blockInRange(p *PredicateInstance, index uint64) bool {
	if p.StartBlock != nil && index < *p.StartBlock {
		return false
	}
	if p.EndBlock != nil && index > *p.EndBlock {
		return false
	}
	if len(p.BlockList) > 0 {
		for _, h := range p.BlockList {
			if h == index {
				return true
			}
		}
		return false
	}
	return true
}

func tipIndex(apply, confirmed []BitcoinBlock) uint64 {
	var tip uint64
	seen := false
	for _, b := range apply {
		if !seen || b.BlockIdentifier.Index > tip {
			tip, seen = b.BlockIdentifier.Index, true
		}
	}
	for _, b := range confirmed {
		if !seen || b.BlockIdentifier.Index > tip {
			tip, seen = b.BlockIdentifier.Index, true
		}
	}
	return tip
}

func tipIndexStacks(apply, confirmed []StacksBlock) uint64 {
	var tip uint64
	seen := false
	for _, b := range apply {
		if !seen || b.BlockIdentifier.Index > tip {
			tip, seen = b.BlockIdentifier.Index, true
		}
	}
	for _, b := range confirmed {
		if !seen || b.BlockIdentifier.Index > tip {
			tip, seen = b.BlockIdentifier.Index, true
		}
	}
	return tip
}

// sortedActive orders predicates by UUID so evaluation (and therefore
// dispatch) order is deterministic across runs given the same registry
// contents (spec.md §8 "JSON determinism").
func sortedActive(preds []*registeredPredicate) []*registeredPredicate {
	out := make([]*registeredPredicate, len(preds))
	copy(out, preds)
	sort.Slice(out, func(i, j int) bool { return out[i].instance.UUID < out[j].instance.UUID })
	return out
}
