package core

// NonConsensusKind is the closed set of signer-DB payload sub-variants.
type NonConsensusKind string

const (
	NCBlockProposal NonConsensusKind = "block_proposal"
	NCBlockResponse NonConsensusKind = "block_response"
	NCBlockPushed   NonConsensusKind = "block_pushed"
	NCMockSignature NonConsensusKind = "mock_signature"
	NCMockProposal  NonConsensusKind = "mock_proposal"
	NCMockBlock     NonConsensusKind = "mock_block"
)

// BlockResponseStatus is accepted or rejected.
type BlockResponseStatus string

const (
	ResponseAccepted BlockResponseStatus = "accepted"
	ResponseRejected BlockResponseStatus = "rejected"
)

// RejectReasonCode is one of the seven reject-reason codes from spec.md §3.
type RejectReasonCode string

const (
	RejectValidationFailed    RejectReasonCode = "validation_failed"
	RejectConnectivityIssues  RejectReasonCode = "connectivity_issues"
	RejectRejectedInPriorRound RejectReasonCode = "rejected_in_prior_round"
	RejectNoSortitionView     RejectReasonCode = "no_sortition_view"
	RejectSortitionViewMismatch RejectReasonCode = "sortition_view_mismatch"
	RejectTestingDirective    RejectReasonCode = "testing_directive"
	RejectDuplicateBlockFound RejectReasonCode = "duplicate_block_found"
)

// ValidationFailedCode is one of the seven validation-failed sub-codes.
type ValidationFailedCode string

const (
	ValidationBadBlockHash      ValidationFailedCode = "bad_block_hash"
	ValidationBadTransaction    ValidationFailedCode = "bad_transaction"
	ValidationInvalidBlock      ValidationFailedCode = "invalid_block"
	ValidationChainstateError   ValidationFailedCode = "chainstate_error"
	ValidationUnknownParent     ValidationFailedCode = "unknown_parent"
	ValidationNonCanonicalTenure ValidationFailedCode = "non_canonical_tenure"
	ValidationNoSuchTenure      ValidationFailedCode = "no_such_tenure"
)

// NonConsensusEvent wraps one signer-DB chunk observation. It carries its own
// block identifier and bypasses the fork-aware pool entirely (spec.md §4.1).
type NonConsensusEvent struct {
	Kind                NonConsensusKind `json:"kind"`
	ObservingBlockIdentifier BlockIdentifier `json:"observing_block_identifier"`
	ReceivedAtMS        int64            `json:"received_at_ms"`

	Payload []byte `json:"-"` // raw signer-DB chunk bytes, decoded lazily

	BlockProposal *BlockProposalPayload `json:"block_proposal,omitempty"`
	BlockResponse *BlockResponsePayload `json:"block_response,omitempty"`
	BlockPushed   *BlockPushedPayload   `json:"block_pushed,omitempty"`

	// SignerPublicKey is recovered from the chunk's signature, never taken
	// verbatim off the wire (spec.md §4.2 "Signer-DB chunk authentication").
	// AuthError is set instead when recovery fails; a failed chunk still
	// surfaces rather than aborting the batch.
	SignerPublicKey string `json:"signer_public_key,omitempty"`
	AuthError       string `json:"auth_error,omitempty"`
}

// BlockProposalPayload names the proposed block.
type BlockProposalPayload struct {
	BlockIdentifier BlockIdentifier `json:"block_identifier"`
	Burnchain       BlockIdentifier `json:"burn_block_identifier"`
}

// BlockResponsePayload carries the accept/reject verdict and, on rejection,
// the reason + validation-failed sub-code.
type BlockResponsePayload struct {
	Status               BlockResponseStatus   `json:"status"`
	BlockIdentifier       BlockIdentifier       `json:"block_identifier"`
	RejectReason          *RejectReasonCode     `json:"reject_reason,omitempty"`
	ValidationFailedCode  *ValidationFailedCode `json:"validation_failed_code,omitempty"`
}

// BlockPushedPayload names the pushed block.
type BlockPushedPayload struct {
	BlockIdentifier BlockIdentifier `json:"block_identifier"`
}
