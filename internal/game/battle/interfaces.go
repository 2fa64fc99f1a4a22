package battle

import (
	"context"
	"time"

	"github.com/cory-johannsen/duel/internal/game/combatant"
)

// InputBroker obtains timed input from a human combatant.
// Implementations return ErrNoResponse when timeout elapses without input.
type InputBroker interface {
	// RequestChoice asks c to pick one of options.
	//
	// Postcondition: Returns one of options, ErrNoResponse, or a context error.
	RequestChoice(ctx context.Context, c *combatant.Combatant, options []string, timeout time.Duration) (string, error)
	// RequestRollTrigger waits for c to trigger a roll. The roll value is never
	// supplied by the broker.
	RequestRollTrigger(ctx context.Context, c *combatant.Combatant, timeout time.Duration) error
}

// NarrationSink receives a Snapshot after every narrated step.
// Publish must not block the engine for longer than delivery takes.
type NarrationSink interface {
	Publish(s Snapshot)
}

// OutcomeReporter receives the single terminal Outcome of a battle.
type OutcomeReporter interface {
	Report(o Outcome)
}

// Phase names a state of the battle state machine.
type Phase int

const (
	PhasePreGame Phase = iota
	PhaseDeclaration
	PhaseReady
	PhaseAttack
	PhaseCounter
	PhaseDamage
	PhaseRoundEnd
	PhaseGameEnd
)

// String returns the narration heading for the phase.
func (p Phase) String() string {
	switch p {
	case PhasePreGame:
		return "Pre-Game"
	case PhaseDeclaration:
		return "Declaration Phase"
	case PhaseReady:
		return "Ready Phase"
	case PhaseAttack:
		return "Attack Phase"
	case PhaseCounter:
		return "Counter Phase"
	case PhaseDamage:
		return "Damage Phase"
	case PhaseRoundEnd:
		return "Round End"
	case PhaseGameEnd:
		return "Game End"
	default:
		return "Unknown"
	}
}

// TeamView is the display state of one Team.
type TeamView struct {
	ID        string
	Name      string
	ImageURL  string
	Bot       bool
	Speed     int
	Melee     int
	Ranged    int
	Defense   int
	HP        int
	InitialHP int
}

// Ratio returns HP/InitialHP clamped to [0,1].
func (v TeamView) Ratio() float64 {
	if v.InitialHP <= 0 || v.HP <= 0 {
		return 0
	}
	r := float64(v.HP) / float64(v.InitialHP)
	if r > 1 {
		return 1
	}
	return r
}

// Snapshot is the renderable state published after each step.
type Snapshot struct {
	BattleID string
	Round    int
	Phase    Phase
	// AttackerID is empty during PreGame.
	AttackerID string
	// Teams is always in the order the participants were given to New.
	Teams [2]TeamView
	Text  string
}

// Result tags an Outcome.
type Result int

const (
	Victory Result = iota
	Unresponsive
)

// String returns the result label.
func (r Result) String() string {
	if r == Unresponsive {
		return "unresponsive"
	}
	return "victory"
}

// Outcome is the terminal result of a battle. For Victory, CombatantID names
// the winner; for Unresponsive it names the combatant who failed to act.
type Outcome struct {
	BattleID      string
	Result        Result
	CombatantID   string
	CombatantName string
	Rounds        int
}
