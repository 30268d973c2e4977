package core

import (
	"testing"

	"github.com/google/uuid"
)

func newTestPredicate(scope PredicateScope) *PredicateInstance {
	return &PredicateInstance{
		UUID:    uuid.NewString(),
		Name:    "test",
		Network: NetworkBitcoin,
		Scope:   scope,
		Action:  Action{Kind: ActionNoop},
	}
}

func TestRegistryRejectsInvalidUUID(t *testing.T) {
	r := NewRegistry()
	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 1}})
	p.UUID = "not-a-uuid"
	_, errs := r.Register(p)
	if len(errs) == 0 {
		t.Fatal("expected a uuid validation error")
	}
}

func TestRegistryRejectsDuplicateUUID(t *testing.T) {
	r := NewRegistry()
	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 1}})
	if _, errs := r.Register(p); len(errs) != 0 {
		t.Fatalf("unexpected errors on first registration: %v", errs)
	}
	_, errs := r.Register(p)
	if len(errs) == 0 {
		t.Fatal("expected a duplicate-uuid error on re-registration")
	}
}

func TestRegistryRejectsEndBeforeStart(t *testing.T) {
	r := NewRegistry()
	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 1}})
	start := uint64(10)
	end := uint64(5)
	p.StartBlock = &start
	p.EndBlock = &end
	_, errs := r.Register(p)
	if len(errs) == 0 {
		t.Fatal("expected an end_block-before-start_block error")
	}
}

func TestRegistryWarnsOnReservedContractDeploymentTrait(t *testing.T) {
	r := NewRegistry()
	p := newTestPredicate(PredicateScope{
		Kind:               ScopeContractDeployment,
		ContractDeployment: &ContractDeploymentScope{Deployer: "*", Trait: TraitSIP09},
	})
	warnings, errs := r.Register(p)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(warnings) == 0 {
		t.Fatal("expected a reserved-trait warning")
	}
}

func TestRegistryRejectsUnparsableRegex(t *testing.T) {
	r := NewRegistry()
	p := newTestPredicate(PredicateScope{
		Kind:       ScopePrintEvent,
		PrintEvent: &PrintEventScope{ContractID: "*", MatchesRegex: "(unterminated"},
	})
	_, errs := r.Register(p)
	if len(errs) == 0 {
		t.Fatal("expected a regex compilation error at registration time")
	}
}

func TestRegistryDeregisterAndExpire(t *testing.T) {
	r := NewRegistry()
	p := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 1}})
	end := uint64(100)
	p.EndBlock = &end
	if _, errs := r.Register(p); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	expired := r.ExpireAgainst(NetworkBitcoin, 50)
	if len(expired) != 0 {
		t.Fatal("predicate should still be eligible before its end_block")
	}
	expired = r.ExpireAgainst(NetworkBitcoin, 101)
	if len(expired) != 1 {
		t.Fatalf("expected exactly one predicate to expire, got %d", len(expired))
	}
	if p.Eligible() {
		t.Fatal("expired predicate should no longer be eligible")
	}

	if _, ok := r.Deregister(p.UUID); !ok {
		t.Fatal("expected deregistration of a known predicate to succeed")
	}
	if _, ok := r.Deregister(p.UUID); ok {
		t.Fatal("expected deregistration of an already-removed predicate to fail")
	}
}

func TestRegistryCounts(t *testing.T) {
	r := NewRegistry()
	active := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 1}})
	r.Register(active)

	expiring := newTestPredicate(PredicateScope{Kind: ScopeBlockHeight, BlockHeight: &BlockHeightScope{Rule: HeightEquals, A: 1}})
	end := uint64(10)
	expiring.EndBlock = &end
	r.Register(expiring)
	r.ExpireAgainst(NetworkBitcoin, 11)

	activeCount, expiredCount := r.Counts()
	if activeCount != 1 || expiredCount != 1 {
		t.Fatalf("expected 1 active and 1 expired, got active=%d expired=%d", activeCount, expiredCount)
	}
}
