package core

import "errors"

// Sentinel errors returned by the standardization, pool, predicate, and
// dispatch subsystems. Callers should use errors.Is against these rather
// than matching on message text.
var (
	ErrUnknownBlock         = errors.New("core: block not found")
	ErrUnknownPredicate     = errors.New("core: predicate not found")
	ErrPredicateExpired     = errors.New("core: predicate is no longer eligible")
	ErrDuplicatePredicate   = errors.New("core: predicate uuid already registered")
	ErrMalformedPayload     = errors.New("core: malformed wire payload")
	ErrConsensusDeserialize = errors.New("core: consensus deserialization failed")
	ErrSignatureRecovery    = errors.New("core: ecdsa public key recovery failed")
	ErrPoolOverflow         = errors.New("core: block pool exceeded hard cap")
	ErrRegexCompile         = errors.New("core: predicate regex failed to compile")
	ErrDeliveryExhausted    = errors.New("core: occurrence delivery retries exhausted")
)
