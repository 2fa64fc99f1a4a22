package battle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cory-johannsen/duel/internal/game/combatant"
)

// Actor supplies the decisions of one combatant. Phase logic calls an Actor
// without knowing whether a person or a script stands behind it.
type Actor interface {
	// ChooseKind declares the attack kind for a round in which self attacks opponent.
	ChooseKind(ctx context.Context, self, opponent *combatant.Combatant) (Kind, error)
	// AwaitRoll returns once self is ready for a gated roll.
	AwaitRoll(ctx context.Context, self *combatant.Combatant) error
}

// Source is the subset of dice.Source used by Scripted.
type Source interface {
	Intn(n int) int
}

// Taunter supplies an optional line of banter spoken by a combatant as it
// attacks. It never influences the outcome of a round.
type Taunter interface {
	Taunt(ctx context.Context, self, opponent *combatant.Combatant) (string, error)
}

// Scripted is an Actor that resolves immediately and never suspends.
// It declares Melee or Ranged uniformly at random.
type Scripted struct {
	src Source
}

// NewScripted returns a Scripted actor drawing declarations from src.
//
// Precondition: src must be non-nil.
func NewScripted(src Source) *Scripted {
	return &Scripted{src: src}
}

// ChooseKind implements Actor.
func (s *Scripted) ChooseKind(context.Context, *combatant.Combatant, *combatant.Combatant) (Kind, error) {
	return Kinds[s.src.Intn(len(Kinds))], nil
}

// AwaitRoll implements Actor.
func (s *Scripted) AwaitRoll(context.Context, *combatant.Combatant) error { return nil }

// Interactive is an Actor backed by an InputBroker with a bounded wait.
type Interactive struct {
	broker  InputBroker
	timeout time.Duration
}

// NewInteractive returns an Interactive actor.
//
// Precondition: broker must be non-nil; timeout > 0.
func NewInteractive(broker InputBroker, timeout time.Duration) *Interactive {
	return &Interactive{broker: broker, timeout: timeout}
}

// ChooseKind implements Actor.
//
// Postcondition: Returns *UnresponsiveError when the broker reports ErrNoResponse.
func (a *Interactive) ChooseKind(ctx context.Context, self, _ *combatant.Combatant) (Kind, error) {
	label, err := a.broker.RequestChoice(ctx, self, kindLabels(), a.timeout)
	if errors.Is(err, ErrNoResponse) {
		return 0, newUnresponsiveError(self)
	}
	if err != nil {
		return 0, fmt.Errorf("requesting attack kind from %s: %w", self.ID, err)
	}
	return ParseKind(label)
}

// AwaitRoll implements Actor.
//
// Postcondition: Returns *UnresponsiveError when the broker reports ErrNoResponse.
func (a *Interactive) AwaitRoll(ctx context.Context, self *combatant.Combatant) error {
	err := a.broker.RequestRollTrigger(ctx, self, a.timeout)
	if errors.Is(err, ErrNoResponse) {
		return newUnresponsiveError(self)
	}
	if err != nil {
		return fmt.Errorf("requesting roll from %s: %w", self.ID, err)
	}
	return nil
}
