package battle

import "github.com/cory-johannsen/duel/internal/game/combatant"

// Team is the per-battle mutable combat state layered over a Combatant.
// A Team is owned by exactly one Battle for the battle's lifetime.
type Team struct {
	// Combatant is the battle copy whose HP is mutated in place.
	Combatant *combatant.Combatant
	// InitialHP is the health snapshot taken at battle start.
	InitialHP int
	// AttackCount is the number of damage rolls the next Damage Phase performs.
	AttackCount int
	// Consecutive counts uninterrupted bonus turns; it stays in [0,2].
	Consecutive int
}

// NewTeam wraps c for a battle.
//
// Precondition: c must be non-nil.
// Postcondition: InitialHP == c.HP; AttackCount == 1; Consecutive == 0.
func NewTeam(c *combatant.Combatant) *Team {
	return &Team{Combatant: c, InitialHP: c.HP, AttackCount: 1}
}

// ID returns the wrapped combatant's id.
func (t *Team) ID() string { return t.Combatant.ID }

// Name returns the wrapped combatant's display name.
func (t *Team) Name() string { return t.Combatant.Name }

// Defeated reports whether the combatant's health has reached zero or below.
func (t *Team) Defeated() bool { return t.Combatant.HP <= 0 }

// View returns the display state of the team.
func (t *Team) View() TeamView {
	c := t.Combatant
	return TeamView{
		ID:        c.ID,
		Name:      c.Name,
		ImageURL:  c.ImageURL,
		Bot:       c.Bot,
		Speed:     c.Speed,
		Melee:     c.Melee,
		Ranged:    c.Ranged,
		Defense:   c.Defense,
		HP:        c.HP,
		InitialHP: t.InitialHP,
	}
}
