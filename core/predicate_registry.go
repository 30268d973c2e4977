package core

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// ValidationError is one field-level registration failure.
type ValidationError struct {
	Field   string
	Message string
}

func (v ValidationError) Error() string { return fmt.Sprintf("%s: %s", v.Field, v.Message) }

// registeredPredicate pairs a PredicateInstance with state the engine needs
// but that never round-trips over the wire: a compiled print-event regex
// and a registration-time warning for scopes with reserved semantics.
type registeredPredicate struct {
	instance *PredicateInstance
	regex    *regexp.Regexp
	warnings []string
}

// Registry owns the set of registered chainhooks. It is not safe for
// concurrent use; the observer command loop is its only caller (spec.md §5).
type Registry struct {
	byUUID map[string]*registeredPredicate
}

func NewRegistry() *Registry {
	return &Registry{byUUID: make(map[string]*registeredPredicate)}
}

// Register validates and adds one predicate, returning field-level errors
// on failure (spec.md §4.3 "Failure semantics") and any non-fatal
// registration-time warnings (e.g. a reserved trait scope that can never
// match) on success.
func (r *Registry) Register(p *PredicateInstance) (warnings []string, errs []ValidationError) {
	errs = validatePredicate(p)
	if len(errs) > 0 {
		return nil, errs
	}
	if _, exists := r.byUUID[p.UUID]; exists {
		return nil, []ValidationError{{Field: "uuid", Message: ErrDuplicatePredicate.Error()}}
	}

	rp := &registeredPredicate{instance: p}
	if p.Scope.Kind == ScopePrintEvent && p.Scope.PrintEvent != nil && p.Scope.PrintEvent.MatchesRegex != "" {
		re, err := regexp.Compile(p.Scope.PrintEvent.MatchesRegex)
		if err != nil {
			return nil, []ValidationError{{Field: "scope.print_event.matches_regex", Message: err.Error()}}
		}
		rp.regex = re
	}
	if p.Scope.Kind == ScopeContractDeployment && p.Scope.ContractDeployment != nil && p.Scope.ContractDeployment.Trait != TraitNone {
		rp.warnings = append(rp.warnings, "contract-deployment trait matching is reserved and will never match")
	}
	if p.Scope.Kind == ScopeSignerMessage && p.Scope.SignerMessage != nil && p.Scope.SignerMessage.FromSignerPubkey != nil {
		rp.warnings = append(rp.warnings, "signer-message from-signer-pubkey matching is reserved and will never match")
	}
	for _, kind := range []ScopeKind{ScopeP2SH, ScopeP2WPKH, ScopeP2WSH, ScopeHex, ScopeScript} {
		if p.Scope.BitcoinScript != nil && p.Scope.BitcoinScript.ScriptKind == kind {
			rp.warnings = append(rp.warnings, fmt.Sprintf("bitcoin script kind %q has no implemented match semantics", kind))
		}
	}
	if p.Scope.BitcoinScript != nil && p.Scope.BitcoinScript.ScriptKind == ScopeP2PKH && p.Scope.BitcoinScript.Rule != ScriptEquals {
		rp.warnings = append(rp.warnings, fmt.Sprintf("bitcoin p2pkh rule %q has no implemented match semantics", p.Scope.BitcoinScript.Rule))
	}

	p.Enabled = true
	r.byUUID[p.UUID] = rp
	return rp.warnings, nil
}

// validatePredicate checks syntactic well-formedness, independent of
// registry state (duplicate detection happens in Register).
func validatePredicate(p *PredicateInstance) []ValidationError {
	var errs []ValidationError
	if _, err := uuid.Parse(p.UUID); err != nil {
		errs = append(errs, ValidationError{Field: "uuid", Message: "must be a valid UUID"})
	}
	if p.Name == "" {
		errs = append(errs, ValidationError{Field: "name", Message: "must not be empty"})
	}
	if p.Network != NetworkBitcoin && p.Network != NetworkStacks {
		errs = append(errs, ValidationError{Field: "network", Message: "must be bitcoin or stacks"})
	}
	if p.StartBlock != nil && p.EndBlock != nil && *p.StartBlock > *p.EndBlock {
		errs = append(errs, ValidationError{Field: "end_block", Message: "must not precede start_block"})
	}
	errs = append(errs, validateScope(p.Scope)...)
	errs = append(errs, validateAction(p.Action)...)
	return errs
}

func validateScope(s PredicateScope) []ValidationError {
	var errs []ValidationError
	field := func(msg string) { errs = append(errs, ValidationError{Field: "scope", Message: msg}) }

	switch s.Kind {
	case ScopeBlockHeight:
		if s.BlockHeight == nil {
			field("block_height scope requires a block_height body")
		}
	case ScopeTxid:
		if s.Txid == nil || len(s.Txid.Hex) == 0 {
			field("txid scope requires a non-empty hex value")
		}
	case ScopeContractCall:
		if s.ContractCall == nil || s.ContractCall.ContractID == "" || s.ContractCall.Method == "" {
			field("contract_call scope requires contract_id and method")
		}
	case ScopeContractDeployment:
		if s.ContractDeployment == nil {
			field("contract_deployment scope requires a body")
		}
	case ScopeFTEvent, ScopeNFTEvent:
		as := s.FTEvent
		if s.Kind == ScopeNFTEvent {
			as = s.NFTEvent
		}
		if as == nil || as.AssetID == "" || len(as.Actions) == 0 {
			field("asset-event scope requires asset_identifier and at least one action")
		}
	case ScopeSTXEvent:
		if s.STXEvent == nil || len(s.STXEvent.Actions) == 0 {
			field("stx_event scope requires at least one action")
		}
	case ScopePrintEvent:
		if s.PrintEvent == nil || s.PrintEvent.ContractID == "" {
			field("print_event scope requires contract_id")
		} else if s.PrintEvent.Contains == "" && s.PrintEvent.MatchesRegex == "" {
			field("print_event scope requires contains or matches_regex")
		}
	case ScopeSignerMessage:
		if s.SignerMessage == nil {
			field("signer_message scope requires a body")
		}
	case ScopeP2PKH, ScopeP2SH, ScopeP2WPKH, ScopeP2WSH, ScopeHex, ScopeScript:
		if s.BitcoinScript == nil || s.BitcoinScript.Value == "" {
			field("bitcoin script scope requires a value")
		}
	default:
		field(fmt.Sprintf("unknown scope kind %q", s.Kind))
	}
	return errs
}

func validateAction(a Action) []ValidationError {
	var errs []ValidationError
	switch a.Kind {
	case ActionHTTPPost:
		if a.HTTP == nil || a.HTTP.URL == "" {
			errs = append(errs, ValidationError{Field: "action.http.url", Message: "must not be empty"})
		}
	case ActionFileAppend:
		if a.File == nil || a.File.Path == "" {
			errs = append(errs, ValidationError{Field: "action.file.path", Message: "must not be empty"})
		}
	case ActionNoop:
	default:
		errs = append(errs, ValidationError{Field: "action.kind", Message: fmt.Sprintf("unknown action kind %q", a.Kind)})
	}
	return errs
}

// Deregister removes a predicate, e.g. after delivery exhaustion or an
// occurrence-cap breach (spec.md §4.4).
func (r *Registry) Deregister(uuid string) (*PredicateInstance, bool) {
	rp, ok := r.byUUID[uuid]
	if !ok {
		return nil, false
	}
	delete(r.byUUID, uuid)
	return rp.instance, true
}

// Get returns the predicate instance for uuid, if registered.
func (r *Registry) Get(uuid string) (*PredicateInstance, bool) {
	rp, ok := r.byUUID[uuid]
	if !ok {
		return nil, false
	}
	return rp.instance, true
}

// Active returns every currently eligible predicate matching network, in
// registration-map iteration order (the engine sorts by UUID for
// determinism where that matters).
func (r *Registry) Active(network NetworkTag) []*registeredPredicate {
	var out []*registeredPredicate
	for _, rp := range r.byUUID {
		if rp.instance.Network == network && rp.instance.Eligible() {
			out = append(out, rp)
		}
	}
	return out
}

// ExpireAgainst marks every active predicate whose end_block is crossed by
// tipIndex as expired, returning the ones just transitioned (spec.md §4.3
// evaluation order item 2, §8 "Predicate monotonicity").
func (r *Registry) ExpireAgainst(network NetworkTag, tipIndex uint64) []*PredicateInstance {
	var expired []*PredicateInstance
	for _, rp := range r.byUUID {
		p := rp.instance
		if p.Network != network || !p.Eligible() {
			continue
		}
		if p.EndBlock != nil && tipIndex > *p.EndBlock {
			p.Expire(tipIndex)
			expired = append(expired, p)
		}
	}
	return expired
}

// Size reports how many predicates are currently registered (enabled or
// expired), for diagnostics.
func (r *Registry) Size() int { return len(r.byUUID) }

// Counts reports how many registered predicates are currently eligible
// versus expired, for the observer's metrics gauges.
func (r *Registry) Counts() (active, expired int) {
	for _, rp := range r.byUUID {
		if rp.instance.Eligible() {
			active++
		} else {
			expired++
		}
	}
	return active, expired
}
