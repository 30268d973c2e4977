package core

// ChainEventKind is the closed set of five normalized chain-event variants
// emitted by the fork-aware block pool (spec.md §1, §4.1).
type ChainEventKind string

const (
	EventApplyBlocks        ChainEventKind = "apply_blocks"
	EventApplyMicroblocks   ChainEventKind = "apply_microblocks"
	EventReorgBlocks        ChainEventKind = "reorg_blocks"
	EventReorgMicroblocks   ChainEventKind = "reorg_microblocks"
	EventNonConsensusEvents ChainEventKind = "non_consensus_events"
)

// BitcoinChainEvent wraps one admission outcome from the base-chain pool.
type BitcoinChainEvent struct {
	Kind             ChainEventKind
	ApplyBlocks      []BitcoinBlock
	RollbackBlocks   []BitcoinBlock
	ConfirmedBlocks  []BitcoinBlock
}

// StacksChainEvent wraps one admission outcome from the smart-chain pool,
// covering both anchor-block and microblock variants.
type StacksChainEvent struct {
	Kind                ChainEventKind
	ApplyBlocks         []StacksBlock
	RollbackBlocks      []StacksBlock
	ConfirmedBlocks     []StacksBlock
	ApplyMicroblocks    []StacksMicroblock
	RollbackMicroblocks []StacksMicroblock
}

// NonConsensusChainEvent wraps a signer-DB observation. It bypasses the pool
// entirely and flows straight to the predicate engine (spec.md §4.1).
type NonConsensusChainEvent struct {
	Kind  ChainEventKind
	Event NonConsensusEvent
}
