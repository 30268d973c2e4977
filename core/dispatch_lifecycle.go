package core

import (
	"context"

	"github.com/sirupsen/logrus"
)

// InterruptReason is the closed set of causes a predicate can be forcibly
// deregistered for, reported as a PredicateInterrupted diagnostic event
// (spec.md §4.4 "Occurrence lifecycle").
type InterruptReason string

const (
	InterruptOccurrenceCapReached InterruptReason = "expire_after_occurrence_reached"
	InterruptDeliveryExhausted    InterruptReason = "delivery_exhausted"
)

// PredicateInterrupted is emitted whenever the lifecycle manager
// deregisters a predicate outside of normal end_block expiry.
type PredicateInterrupted struct {
	UUID   string
	Reason InterruptReason
}

// Lifecycle applies occurrence counting and the two forced-deregistration
// paths (occurrence cap, delivery exhaustion) on top of a Registry and
// Dispatcher.
type Lifecycle struct {
	registry   *Registry
	dispatcher *Dispatcher
	log        *logrus.Logger
}

func NewLifecycle(registry *Registry, dispatcher *Dispatcher, log *logrus.Logger) *Lifecycle {
	if log == nil {
		log = logrus.New()
	}
	return &Lifecycle{registry: registry, dispatcher: dispatcher, log: log}
}

// Record increments a predicate's occurrence counter once per triggered
// chain event (not once per matched block or transaction, per spec.md
// §4.4), and deregisters it once expire_after_occurrence is reached.
func (l *Lifecycle) Record(p *PredicateInstance) *PredicateInterrupted {
	p.OccurrenceCount++
	if p.ExpireAfterOccurrence != nil && p.OccurrenceCount >= *p.ExpireAfterOccurrence {
		l.registry.Deregister(p.UUID)
		l.log.WithField("uuid", p.UUID).WithField("occurrences", p.OccurrenceCount).Info("predicate reached its occurrence cap")
		return &PredicateInterrupted{UUID: p.UUID, Reason: InterruptOccurrenceCapReached}
	}
	return nil
}

// DeliverAndRecord dispatches one occurrence and, on success, records it
// against the predicate's lifecycle. A delivery failure deregisters the
// predicate instead, per spec.md's delivery-exhaustion failure mode: a
// chainhook that cannot reach its sink is assumed misconfigured rather than
// retried forever across later blocks.
func (l *Lifecycle) DeliverAndRecord(ctx context.Context, o Occurrence, streaming bool) *PredicateInterrupted {
	if err := l.dispatcher.Deliver(ctx, o, streaming); err != nil {
		l.registry.Deregister(o.Predicate.UUID)
		l.log.WithError(err).WithField("uuid", o.Predicate.UUID).Warn("occurrence delivery exhausted, predicate deregistered")
		return &PredicateInterrupted{UUID: o.Predicate.UUID, Reason: InterruptDeliveryExhausted}
	}
	return l.Record(o.Predicate)
}
