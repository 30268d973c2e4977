package core

import "time"

// NetworkTag distinguishes the chain a predicate targets.
type NetworkTag string

const (
	NetworkBitcoin NetworkTag = "bitcoin"
	NetworkStacks  NetworkTag = "stacks"
)

// ActionKind selects how a triggered predicate's occurrence is delivered.
type ActionKind string

const (
	ActionHTTPPost   ActionKind = "http_post"
	ActionFileAppend ActionKind = "file_append"
	ActionNoop       ActionKind = "noop"
)

// Action is the tagged union of delivery mechanisms from spec.md §3.
type Action struct {
	Kind ActionKind `json:"kind"`

	HTTP *HTTPAction `json:"http,omitempty"`
	File *FileAction `json:"file,omitempty"`
}

// HTTPAction posts the occurrence payload to URL with an operator-supplied
// Authorization header.
type HTTPAction struct {
	URL           string `json:"url"`
	Authorization string `json:"authorization,omitempty"`
}

// FileAction appends the serialized payload to Path.
type FileAction struct {
	Path string `json:"path"`
}

// PredicateInstance is one registered chainhook.
type PredicateInstance struct {
	UUID    string     `json:"uuid"`
	Name    string     `json:"name"`
	Network NetworkTag `json:"network"`
	Version int        `json:"version"`

	StartBlock         *uint64  `json:"start_block,omitempty"`
	EndBlock           *uint64  `json:"end_block,omitempty"`
	BlockList          []uint64 `json:"block_list,omitempty"`
	ExpireAfterOccurrence *uint64 `json:"expire_after_occurrence,omitempty"`

	DecodeValues       bool `json:"decode_values"`
	IncludeContractABI bool `json:"include_contract_abi"`
	CaptureAllEvents   bool `json:"capture_all_events"`
	IncludeProof       bool `json:"include_proof"`

	Scope  PredicateScope `json:"scope"`
	Action Action         `json:"action"`

	Enabled          bool       `json:"enabled"`
	ExpiredAtBlockHeight *uint64 `json:"expired_at_block_height,omitempty"`
	OccurrenceCount  uint64     `json:"occurrence_count"`
	RegisteredAt     time.Time  `json:"registered_at"`
}

// Eligible reports whether the predicate may still trigger: enabled and not
// yet expired (spec.md §3 invariant).
func (p *PredicateInstance) Eligible() bool {
	return p.Enabled && p.ExpiredAtBlockHeight == nil
}

// Expire marks the predicate ineligible as of observedHeight. Idempotent.
func (p *PredicateInstance) Expire(observedHeight uint64) {
	if p.ExpiredAtBlockHeight != nil {
		return
	}
	h := observedHeight
	p.ExpiredAtBlockHeight = &h
}

// ScopeKind is the closed tagged-union discriminant for PredicateScope.
type ScopeKind string

const (
	ScopeBlockHeight        ScopeKind = "block_height"
	ScopeTxid                ScopeKind = "txid"
	ScopeContractCall        ScopeKind = "contract_call"
	ScopeContractDeployment ScopeKind = "contract_deployment"
	ScopeFTEvent             ScopeKind = "ft_event"
	ScopeNFTEvent            ScopeKind = "nft_event"
	ScopeSTXEvent            ScopeKind = "stx_event"
	ScopePrintEvent          ScopeKind = "print_event"
	ScopeSignerMessage       ScopeKind = "signer_message"

	ScopeP2PKH  ScopeKind = "p2pkh"
	ScopeP2SH   ScopeKind = "p2sh"
	ScopeP2WPKH ScopeKind = "p2wpkh"
	ScopeP2WSH  ScopeKind = "p2wsh"
	ScopeHex    ScopeKind = "hex"
	ScopeScript ScopeKind = "script"
)

// PredicateScope is the closed tagged union of §4.3. Exactly one of the
// per-kind fields is populated, selected by Kind.
type PredicateScope struct {
	Kind ScopeKind `json:"kind"`

	BlockHeight        *BlockHeightScope        `json:"block_height,omitempty"`
	Txid                *TxidScope                `json:"txid,omitempty"`
	ContractCall        *ContractCallScope        `json:"contract_call,omitempty"`
	ContractDeployment *ContractDeploymentScope `json:"contract_deployment,omitempty"`
	FTEvent              *AssetEventScope          `json:"ft_event,omitempty"`
	NFTEvent             *AssetEventScope          `json:"nft_event,omitempty"`
	STXEvent             *STXEventScope            `json:"stx_event,omitempty"`
	PrintEvent           *PrintEventScope          `json:"print_event,omitempty"`
	SignerMessage        *SignerMessageScope       `json:"signer_message,omitempty"`
	BitcoinScript        *BitcoinScriptScope       `json:"bitcoin_script,omitempty"`
}

// BlockHeightRule is the closed set of height comparators.
type BlockHeightRule string

const (
	HeightEquals    BlockHeightRule = "equals"
	HeightHigherThan BlockHeightRule = "higher_than"
	HeightLowerThan BlockHeightRule = "lower_than"
	HeightBetween   BlockHeightRule = "between"
)

// BlockHeightScope matches on the block index.
type BlockHeightScope struct {
	Rule BlockHeightRule `json:"rule"`
	A    uint64          `json:"a"`
	B    uint64          `json:"b,omitempty"` // only used for "between"
}

// TxidScope matches transaction.identifier.hash against Hex.
type TxidScope struct {
	Hex string `json:"equals"` // 64 hex chars, no 0x prefix required
}

// ContractCallScope matches contract-call transactions by contract id and
// method name.
type ContractCallScope struct {
	ContractID string `json:"contract_id"`
	Method     string `json:"method"`
}

// DeploymentTrait is the closed set of trait-shape checks. Only "" (no
// trait, deployer-based matching) is implemented; sip09/sip10/any are
// reserved (spec.md §9 Open Question: ImplementTrait never matches).
type DeploymentTrait string

const (
	TraitNone  DeploymentTrait = ""
	TraitSIP09 DeploymentTrait = "sip09"
	TraitSIP10 DeploymentTrait = "sip10"
	TraitAny   DeploymentTrait = "any"
)

// ContractDeploymentScope matches deployment transactions, either by
// deployer address ("*" matches any) or by trait (reserved).
type ContractDeploymentScope struct {
	Deployer string          `json:"deployer,omitempty"`
	Trait    DeploymentTrait `json:"trait,omitempty"`
}

// AssetAction is mint, transfer, or burn.
type AssetAction string

const (
	ActionMint     AssetAction = "mint"
	ActionTransfer AssetAction = "transfer"
	ActionBurn     AssetAction = "burn"
	ActionLock     AssetAction = "lock" // stx-event only
)

// AssetEventScope matches ft-event / nft-event predicates.
type AssetEventScope struct {
	AssetID string        `json:"asset_identifier"`
	Actions []AssetAction `json:"actions"`
}

// STXEventScope matches stx-event predicates (no asset id: STX is singular).
type STXEventScope struct {
	Actions []AssetAction `json:"actions"`
}

// PrintEventScope matches smart-contract-event (topic=="print") predicates
// by either a literal substring or a regular expression on the value's
// decoded display form. Exactly one of Contains/MatchesRegex is set.
type PrintEventScope struct {
	ContractID    string `json:"contract_id"` // "*" matches any
	Contains      string `json:"contains,omitempty"`
	MatchesRegex  string `json:"matches_regex,omitempty"`
}

// SignerMessageScope matches non-consensus events.
type SignerMessageScope struct {
	AfterTimestampMS *int64  `json:"after_timestamp,omitempty"`
	FromSignerPubkey *string `json:"from_signer_pubkey,omitempty"` // reserved, never matches
}

// BitcoinScriptRule is the matching rule applied to the comparison value.
type BitcoinScriptRule string

const (
	ScriptEquals     BitcoinScriptRule = "equals"
	ScriptStartsWith BitcoinScriptRule = "starts_with"
	ScriptEndsWith   BitcoinScriptRule = "ends_with"
)

// BitcoinScriptScope matches a base-chain output's script_pubkey. Only
// Kind==p2pkh with Rule==equals has implemented semantics (spec.md §4.3);
// other (kind, rule) combinations are accepted at registration but never
// match, matching the ImplementTrait-style "reserved" treatment.
type BitcoinScriptScope struct {
	ScriptKind ScopeKind         `json:"script_kind"`
	Rule       BitcoinScriptRule `json:"rule"`
	Value      string            `json:"value"`
}
