package battle

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/duel/internal/game/combatant"
)

// ErrNoResponse is returned by an InputBroker when the wait expires.
var ErrNoResponse = errors.New("battle: no response before timeout")

// ErrAlreadyInBattle is returned when a combatant is already fighting.
var ErrAlreadyInBattle = errors.New("battle: combatant already in a battle")

// UnresponsiveError reports that a human combatant failed to act in time.
// It is terminal for the battle.
type UnresponsiveError struct {
	CombatantID string
	Name        string
}

func newUnresponsiveError(c *combatant.Combatant) *UnresponsiveError {
	return &UnresponsiveError{CombatantID: c.ID, Name: c.Name}
}

func (e *UnresponsiveError) Error() string {
	return fmt.Sprintf("%s is unresponsive", e.Name)
}
