package core

import "github.com/sirupsen/logrus"

// DefaultBitcoinRetention is the base-chain pool's default retention window
// in blocks (spec.md §4.1).
const DefaultBitcoinRetention = 7

// BitcoinPool maintains the fork-aware canonical view of the base chain.
// It is not safe for concurrent use; the observer command loop is its only
// caller (spec.md §5).
type BitcoinPool struct {
	graph *blockGraph[BitcoinBlock]
	log   *logrus.Logger
}

// NewBitcoinPool constructs a pool with the given retention window. A
// retention of 0 falls back to DefaultBitcoinRetention.
func NewBitcoinPool(log *logrus.Logger, retention uint64) *BitcoinPool {
	if retention == 0 {
		retention = DefaultBitcoinRetention
	}
	return &BitcoinPool{graph: newBlockGraph[BitcoinBlock](retention), log: log}
}

// Admit runs one base-chain block through the admission algorithm and
// returns the chain-event it produces, if any.
func (p *BitcoinPool) Admit(block BitcoinBlock) (BitcoinChainEvent, bool) {
	res := p.graph.admit(block.BlockIdentifier, block.ParentBlockIdentifier, block)
	if res.HardCapEvicted && p.log != nil {
		p.log.WithField("component", "bitcoin_pool").Warn("hard cap reached, oldest orphan subtree evicted")
	}
	if res.Known || !res.NewTip {
		return BitcoinChainEvent{}, false
	}
	if res.IsReorg {
		return BitcoinChainEvent{
			Kind:           EventReorgBlocks,
			ApplyBlocks:    res.ApplyPath,
			RollbackBlocks: res.RollbackPath,
		}, true
	}
	return BitcoinChainEvent{
		Kind:            EventApplyBlocks,
		ApplyBlocks:     res.ApplyPath,
		ConfirmedBlocks: res.Confirmed,
	}, true
}

// CanonicalTip reports whether the pool has a tip yet and, if so, its
// identifier. BitcoinTransactionMeta.Confirmations is not derived from it;
// that field keeps the value the node reported.
func (p *BitcoinPool) CanonicalTip() (BlockIdentifier, bool) {
	n, ok := p.graph.nodes[p.graph.tipKey]
	if !p.graph.hasTip || !ok {
		return BlockIdentifier{}, false
	}
	return n.id, true
}

// Size reports the number of blocks currently retained, for diagnostics.
func (p *BitcoinPool) Size() int { return p.graph.size() }
