package core

// CommandKind is the closed set of operations the observer's single-writer
// loop accepts (spec.md §5).
type CommandKind string

const (
	CmdRegisterPredicate        CommandKind = "register_predicate"
	CmdDeregisterPredicate      CommandKind = "deregister_predicate"
	CmdNewBitcoinBlock          CommandKind = "new_bitcoin_block"
	CmdNewStacksBlock           CommandKind = "new_stacks_block"
	CmdNewStacksMicroblock      CommandKind = "new_stacks_microblock"
	CmdNonConsensusEvent        CommandKind = "non_consensus_event"
	CmdNotifyTransactionProxied CommandKind = "notify_transaction_proxied"
	CmdTerminate                CommandKind = "terminate"
)

// Command is one message accepted by Observer.Run's single-writer loop.
// Exactly one of the typed payload fields is populated, selected by Kind.
// Reply, when non-nil, receives the command's outcome so a caller across a
// goroutine boundary (an HTTP handler, say) can wait on it.
type Command struct {
	Kind CommandKind

	Predicate         *PredicateInstance
	PredicateUUID     string
	BitcoinBlock      *BitcoinBlock
	StacksBlock       *StacksBlock
	StacksMicroblock  *StacksMicroblockCommand
	NonConsensusEvent *NonConsensusEvent
	ProxiedTxid       string

	Reply chan CommandResult
}

// StacksMicroblockCommand carries the anchor a microblock is appended to
// alongside the microblock itself, since the pool indexes microblock
// streams per anchor.
type StacksMicroblockCommand struct {
	Anchor     BlockIdentifier
	Microblock StacksMicroblock
}

// CommandResult is delivered on Command.Reply once the single-writer loop
// has processed the command.
type CommandResult struct {
	Err              error
	RegisterWarnings []string
	RegisterErrors   []ValidationError
}

func reply(cmd Command, res CommandResult) {
	if cmd.Reply != nil {
		cmd.Reply <- res
	}
}
