package core

// StacksBlock is the normalized smart-chain anchor block.
type StacksBlock struct {
	BlockIdentifier       BlockIdentifier      `json:"block_identifier"`
	ParentBlockIdentifier BlockIdentifier      `json:"parent_block_identifier"`
	Timestamp             int64                `json:"timestamp"`
	Transactions          []StacksTransaction  `json:"transactions"`
	Metadata              StacksBlockMetadata  `json:"metadata"`
}

// StacksMicroblock is an ephemeral block appended between two anchor blocks.
// ParentMicroblockIdentifier disambiguates which predecessor this microblock
// extends when more than one candidate occupies (anchor, sequence-1); it is
// the zero BlockIdentifier for sequence 0, whose parent is the anchor itself.
type StacksMicroblock struct {
	BlockIdentifier            BlockIdentifier     `json:"block_identifier"`
	AnchorBlockIdentifier      BlockIdentifier     `json:"anchor_block_identifier"`
	ParentMicroblockIdentifier BlockIdentifier     `json:"parent_microblock_identifier,omitempty"`
	Sequence                   uint16              `json:"microblock_sequence"`
	Timestamp                  int64               `json:"timestamp"`
	Transactions               []StacksTransaction `json:"transactions"`
}

// RewardSet describes a reward-cycle recipient set, attached to anchor blocks
// at cycle boundaries.
type RewardSet struct {
	PoxAncestorBlockHash string            `json:"pox_ancestor_block_hash,omitempty"`
	Recipients           []RewardRecipient `json:"recipients,omitempty"`
}

// RewardRecipient is one (address, slot-count) pair inside a RewardSet.
type RewardRecipient struct {
	Address string `json:"address"`
	Slots   uint32 `json:"slots"`
}

// StacksBlockMetadata carries fields specific to the smart chain: the
// base-chain anchor, reward-cycle position, signer material, and the
// optional confirmed-microblock pointer.
type StacksBlockMetadata struct {
	BitcoinAnchorBlockIdentifier BlockIdentifier `json:"bitcoin_anchor_block_identifier"`
	PoxCycleIndex                uint64          `json:"pox_cycle_index"`
	PoxCyclePosition             uint64          `json:"pox_cycle_position"`
	PoxCycleLength               uint64          `json:"pox_cycle_length"`

	ConfirmMicroblockIdentifier *BlockIdentifier `json:"confirm_microblock_identifier,omitempty"`

	SignerBitvec      string   `json:"signer_bitvec,omitempty"`
	SignerSignatures  []string `json:"signer_signatures,omitempty"`
	SignerPublicKeys  []string `json:"signer_public_keys,omitempty"`

	RewardSet *RewardSet `json:"reward_set,omitempty"`
}

// rewardCycle computes the three derived cycle fields from spec.md §3:
//
//	cycle_position = (burn_height - genesis_burn_height - 1) mod cycle_length
//	cycle_index    = current_len / cycle_length (integer division)
//
// where current_len = max(0, burn_height - genesis_burn_height - 1).
func rewardCycle(burnHeight, genesisBurnHeight, prepPhaseLen, rewardPhaseLen uint64) (index, position, length uint64) {
	length = prepPhaseLen + rewardPhaseLen
	if length == 0 {
		return 0, 0, 0
	}
	var currentLen uint64
	if burnHeight > genesisBurnHeight+1 {
		currentLen = burnHeight - genesisBurnHeight - 1
	}
	return currentLen / length, currentLen % length, length
}
