package core

import "github.com/sirupsen/logrus"

// StacksPool maintains the fork-aware canonical view of the smart chain:
// the anchor-block graph plus one microblock stream per unconfirmed anchor
// (spec.md §4.1). Not safe for concurrent use.
type StacksPool struct {
	anchors   *blockGraph[StacksBlock]
	streams   map[string]*microblockStream // keyed by graphKey(anchor the stream extends)
	retention uint64
	log       *logrus.Logger
}

// NewStacksPool constructs a pool with the given retention window,
// expressed in blocks. A retention of 0 falls back to 1; no default is
// derived from the reward-cycle length.
func NewStacksPool(log *logrus.Logger, retention uint64) *StacksPool {
	if retention == 0 {
		retention = 1
	}
	return &StacksPool{
		anchors:   newBlockGraph[StacksBlock](retention),
		streams:   make(map[string]*microblockStream),
		retention: retention,
		log:       log,
	}
}

// AdmitMicroblock runs one microblock through the stream hanging off
// anchor. The stream is created lazily on first arrival.
func (p *StacksPool) AdmitMicroblock(anchor BlockIdentifier, mb StacksMicroblock) (StacksChainEvent, bool) {
	key := graphKey(anchor)
	stream, ok := p.streams[key]
	if !ok {
		stream = newMicroblockStream()
		p.streams[key] = stream
	}
	return stream.admit(mb)
}

// AdmitBlock runs one anchor block through the admission algorithm and
// folds in any microblock-stream confirmation its metadata triggers. It may
// return up to two events: the anchor event (apply or reorg) and a
// microblock-reorg forced by a ConfirmMicroblockIdentifier mismatch.
func (p *StacksPool) AdmitBlock(block StacksBlock) []StacksChainEvent {
	res := p.anchors.admit(block.BlockIdentifier, block.ParentBlockIdentifier, block)
	if res.HardCapEvicted && p.log != nil {
		p.log.WithField("component", "stacks_pool").Warn("hard cap reached, oldest orphan subtree evicted")
	}
	if res.Known || !res.NewTip {
		return nil
	}

	var events []StacksChainEvent
	if res.IsReorg {
		events = append(events, StacksChainEvent{
			Kind:           EventReorgBlocks,
			ApplyBlocks:    res.ApplyPath,
			RollbackBlocks: res.RollbackPath,
		})
	} else {
		events = append(events, StacksChainEvent{
			Kind:            EventApplyBlocks,
			ApplyBlocks:     res.ApplyPath,
			ConfirmedBlocks: res.Confirmed,
		})
	}

	for _, a := range res.ApplyPath {
		if ev, ok := p.confirmMicroblocks(a); ok {
			events = append(events, ev)
		}
	}
	return events
}

// confirmMicroblocks forces the stream extending a's parent to a's
// confirm-microblock identifier, once a is itself canonical, and discards
// the stream: once confirmed, a fresh anchor owns the next stream.
func (p *StacksPool) confirmMicroblocks(a StacksBlock) (StacksChainEvent, bool) {
	m := a.Metadata.ConfirmMicroblockIdentifier
	if m == nil {
		return StacksChainEvent{}, false
	}
	key := graphKey(a.ParentBlockIdentifier)
	stream, ok := p.streams[key]
	if !ok {
		return StacksChainEvent{}, false
	}
	ev, changed := stream.confirmTo(*m)
	delete(p.streams, key)
	return ev, changed
}

// CanonicalTip reports the smart chain's current anchor tip, if any.
func (p *StacksPool) CanonicalTip() (BlockIdentifier, bool) {
	n, ok := p.anchors.nodes[p.anchors.tipKey]
	if !p.anchors.hasTip || !ok {
		return BlockIdentifier{}, false
	}
	return n.id, true
}

// Size reports the number of anchor blocks currently retained.
func (p *StacksPool) Size() int { return p.anchors.size() }
