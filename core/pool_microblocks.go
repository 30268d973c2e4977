package core

// microblockStream tracks the fork-aware admission of microblocks hanging
// off one anchor block (spec.md §4.1 "Microblock pool"). It reuses the same
// blockGraph engine as full blocks: a microblock's height is its sequence
// number and its parent is ParentMicroblockIdentifier (the zero value for
// sequence 0, which resolves to an implicit root — the anchor itself is
// never inserted into this graph).
type microblockStream struct {
	graph *blockGraph[StacksMicroblock]
}

// microblockRetention is effectively unbounded: a stream lives only as long
// as its anchor is unconfirmed, and is discarded outright once the next
// anchor names a confirmed microblock (StacksPool.confirmMicroblocks).
const microblockRetention = ^uint64(0)

func newMicroblockStream() *microblockStream {
	return &microblockStream{graph: newBlockGraph[StacksMicroblock](microblockRetention)}
}

// admit runs one microblock through the admission algorithm, returning the
// chain-event it produces (apply or reorg), if any.
func (s *microblockStream) admit(mb StacksMicroblock) (StacksChainEvent, bool) {
	res := s.graph.admit(mb.BlockIdentifier, mb.ParentMicroblockIdentifier, mb)
	if res.Known || !res.NewTip {
		return StacksChainEvent{}, false
	}
	if res.IsReorg {
		return StacksChainEvent{
			Kind:                EventReorgMicroblocks,
			ApplyMicroblocks:    res.ApplyPath,
			RollbackMicroblocks: res.RollbackPath,
		}, true
	}
	return StacksChainEvent{Kind: EventApplyMicroblocks, ApplyMicroblocks: res.ApplyPath}, true
}

// confirmTo forces the stream's canonical tip to the microblock identified
// by confirmed, as named authoritatively by a descending anchor block's
// metadata (spec.md §4.1: "the microblocks up to and including M become
// confirmed by A; diverging microblocks ... become a microblock-reorg").
// Unlike admit, this never loses to a height/arrival tie-break: the anchor's
// word is final.
func (s *microblockStream) confirmTo(confirmed BlockIdentifier) (StacksChainEvent, bool) {
	mKey := graphKey(confirmed)
	if _, ok := s.graph.nodes[mKey]; !ok {
		return StacksChainEvent{}, false
	}
	if !s.graph.hasTip {
		s.graph.hasTip = true
		s.graph.tipKey = mKey
		return StacksChainEvent{}, false
	}
	if s.graph.tipKey == mKey {
		return StacksChainEvent{}, false
	}

	lca, _ := s.graph.lowestCommonAncestor(s.graph.tipKey, mKey)
	rollback, _ := s.graph.pathBetween(lca, s.graph.tipKey)
	apply, _ := s.graph.pathBetween(lca, mKey)
	reversed := make([]string, len(rollback))
	for i, k := range rollback {
		reversed[len(rollback)-1-i] = k
	}

	s.graph.tipKey = mKey
	return StacksChainEvent{
		Kind:                EventReorgMicroblocks,
		ApplyMicroblocks:    s.graph.collect(apply),
		RollbackMicroblocks: s.graph.collect(reversed),
	}, true
}
