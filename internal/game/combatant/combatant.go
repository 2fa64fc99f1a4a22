// Package combatant defines the persistent profile of a duel participant.
package combatant

import (
	"fmt"
	"strings"
)

// StartingHP is the health every combatant enters a battle with.
const StartingHP = 50

// StatPoints is the number of points spent across the four stats at creation.
const StatPoints = 10

// Stat names one of the four allocatable combat stats.
type Stat int

const (
	StatSpeed Stat = iota
	StatMelee
	StatRanged
	StatDefense
)

// Stats lists every Stat in display order.
var Stats = []Stat{StatSpeed, StatMelee, StatRanged, StatDefense}

// String returns the display label of the stat.
func (s Stat) String() string {
	switch s {
	case StatSpeed:
		return "Speed"
	case StatMelee:
		return "Melee"
	case StatRanged:
		return "Ranged"
	case StatDefense:
		return "Defense"
	default:
		return "Unknown"
	}
}

// ParseStat resolves a case-insensitive stat name or its first letter.
//
// Postcondition: Returns the Stat or an error naming the unknown input.
func ParseStat(s string) (Stat, error) {
	in := strings.ToLower(strings.TrimSpace(s))
	for _, st := range Stats {
		name := strings.ToLower(st.String())
		if in == name || (len(in) == 1 && in[0] == name[0]) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown stat %q", s)
}

// Combatant is a participant's identity, stats and progression.
//
// The battle engine reads a Combatant and mutates only HP on its own copy.
type Combatant struct {
	ID          string
	Name        string
	Description string
	ImageURL    string
	Bot         bool

	Speed   int
	Melee   int
	Ranged  int
	Defense int

	// HP is transient battle health; it is never persisted.
	HP int

	Coin int
	XP   int
}

// New returns a Combatant with zero stats and StartingHP health.
//
// Precondition: id and name must be non-empty.
func New(id, name string) *Combatant {
	return &Combatant{ID: id, Name: name, HP: StartingHP}
}

// Get returns the value of stat s.
func (c *Combatant) Get(s Stat) int {
	switch s {
	case StatSpeed:
		return c.Speed
	case StatMelee:
		return c.Melee
	case StatRanged:
		return c.Ranged
	case StatDefense:
		return c.Defense
	default:
		return 0
	}
}

// Increment adds one point to stat s.
func (c *Combatant) Increment(s Stat) {
	switch s {
	case StatSpeed:
		c.Speed++
	case StatMelee:
		c.Melee++
	case StatRanged:
		c.Ranged++
	case StatDefense:
		c.Defense++
	}
}

// TotalStats returns the sum of all four stats.
func (c *Combatant) TotalStats() int {
	return c.Speed + c.Melee + c.Ranged + c.Defense
}

// Level derives the progression level from XP. Level 1 needs no XP; the
// threshold to leave level 1 is 20 and each further threshold adds twice
// the previous one.
//
// Postcondition: Returns >= 1.
func (c *Combatant) Level() int {
	level := 1
	for c.XP > XPRequired(level) {
		level++
	}
	return level
}

// XPRequired returns the XP a combatant must exceed to advance past level.
//
// Precondition: level >= 1.
func XPRequired(level int) int {
	xp := 20
	for i := 1; i < level; i++ {
		xp += xp * 2
	}
	return xp
}

// Clone returns a battle copy of c with health reset to StartingHP.
//
// Postcondition: Mutating the returned Combatant never affects c.
func (c *Combatant) Clone() *Combatant {
	cp := *c
	cp.HP = StartingHP
	return &cp
}

// Validate reports whether the profile is well formed.
func (c *Combatant) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("combatant id must not be empty")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("combatant name must not be empty")
	}
	for _, s := range Stats {
		if c.Get(s) < 0 {
			return fmt.Errorf("combatant %s stat %s must not be negative", c.ID, s)
		}
	}
	return nil
}
