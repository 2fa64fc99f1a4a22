package combatant

import "fmt"

// Source is the subset of dice.Source used for random allocation.
type Source interface {
	Intn(n int) int
}

// Allocation spends a fixed budget of stat points one at a time.
type Allocation struct {
	c         *Combatant
	remaining int
}

// NewAllocation starts spending points on c.
//
// Precondition: c must be non-nil; points >= 0.
func NewAllocation(c *Combatant, points int) *Allocation {
	return &Allocation{c: c, remaining: points}
}

// Remaining returns the number of unspent points.
func (a *Allocation) Remaining() int { return a.remaining }

// Done reports whether every point has been spent.
func (a *Allocation) Done() bool { return a.remaining == 0 }

// Spend puts one point into stat s.
//
// Postcondition: Returns an error if no points remain; otherwise the stat
// is incremented and Remaining decreases by one.
func (a *Allocation) Spend(s Stat) error {
	if a.remaining <= 0 {
		return fmt.Errorf("no stat points remaining")
	}
	a.c.Increment(s)
	a.remaining--
	return nil
}

// AllocateRandom spends points on c, picking each stat uniformly at random.
//
// Precondition: c and src must be non-nil.
// Postcondition: c.TotalStats() increases by exactly points.
func AllocateRandom(c *Combatant, points int, src Source) {
	a := NewAllocation(c, points)
	for !a.Done() {
		_ = a.Spend(Stats[src.Intn(len(Stats))])
	}
}

// NewBot builds a computer-controlled opponent with StatPoints spent at random.
//
// Postcondition: Bot is true, Description is "Bot" and TotalStats() == StatPoints.
func NewBot(id, name, imageURL string, src Source) *Combatant {
	c := New(id, name)
	c.Bot = true
	c.Description = "Bot"
	c.ImageURL = imageURL
	AllocateRandom(c, StatPoints, src)
	return c
}
