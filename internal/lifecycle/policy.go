package lifecycle

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidStateTransition is the cause of every refused status change
var ErrInvalidStateTransition = errors.New("invalid state transition")

// TransitionError describes a refused status change
type TransitionError struct {
	Entity Entity
	ID     string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot move from %q to %q", e.Entity, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}

// Policy decides whether an entity may move between two statuses
type Policy interface {
	Allowed(ctx context.Context, entity Entity, from, to string) (bool, error)
}

// Check consults p and returns a *TransitionError when the change is refused
func Check(ctx context.Context, p Policy, entity Entity, id, from, to string) error {
	ok, err := p.Allowed(ctx, entity, from, to)
	if err != nil {
		return fmt.Errorf("evaluating %s transition policy: %w", entity, err)
	}
	if !ok {
		return &TransitionError{Entity: entity, ID: id, From: from, To: to}
	}
	return nil
}

// StaticPolicy permits the transitions listed in fixed tables
type StaticPolicy struct {
	tables map[Entity]map[string]map[string]struct{}
}

// NewStaticPolicy builds a policy from from -> targets tables
func NewStaticPolicy(consent, auth map[string][]string) *StaticPolicy {
	return &StaticPolicy{
		tables: map[Entity]map[string]map[string]struct{}{
			EntityConsent:       toSet(consent),
			EntityAuthorization: toSet(auth),
		},
	}
}

func toSet(table map[string][]string) map[string]map[string]struct{} {
	set := make(map[string]map[string]struct{}, len(table))
	for from, targets := range table {
		set[from] = make(map[string]struct{}, len(targets))
		for _, to := range targets {
			set[from][to] = struct{}{}
		}
	}
	return set
}

// Allowed implements Policy
func (p *StaticPolicy) Allowed(_ context.Context, entity Entity, from, to string) (bool, error) {
	table, ok := p.tables[entity]
	if !ok {
		return false, fmt.Errorf("unknown entity %q", entity)
	}
	_, ok = table[from][to]
	return ok, nil
}
