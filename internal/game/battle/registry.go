package battle

import (
	"fmt"
	"sync"
)

// Registry tracks active battles and the combatants engaged in them.
// All methods are safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	battles     map[string]*Battle
	byCombatant map[string]string
}

// NewRegistry creates an empty Registry.
//
// Postcondition: Returns a non-nil Registry ready for use.
func NewRegistry() *Registry {
	return &Registry{
		battles:     make(map[string]*Battle),
		byCombatant: make(map[string]string),
	}
}

// Add registers b and both of its combatants.
//
// Precondition: b must be non-nil.
// Postcondition: Returns an error wrapping ErrAlreadyInBattle if either
// combatant is already engaged; otherwise both are engaged in b.
func (r *Registry) Add(b *Battle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.battles[b.ID]; exists {
		return fmt.Errorf("battle %q already registered", b.ID)
	}
	ids := b.CombatantIDs()
	for _, id := range ids {
		if _, busy := r.byCombatant[id]; busy {
			return fmt.Errorf("combatant %q: %w", id, ErrAlreadyInBattle)
		}
	}
	r.battles[b.ID] = b
	for _, id := range ids {
		r.byCombatant[id] = b.ID
	}
	return nil
}

// Get returns the battle with the given id.
//
// Postcondition: Returns (battle, true) if found, or (nil, false) otherwise.
func (r *Registry) Get(id string) (*Battle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.battles[id]
	return b, ok
}

// BattleOf returns the id of the battle combatantID is engaged in.
func (r *Registry) BattleOf(combatantID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byCombatant[combatantID]
	return id, ok
}

// InBattle reports whether combatantID is engaged in any battle.
func (r *Registry) InBattle(combatantID string) bool {
	_, ok := r.BattleOf(combatantID)
	return ok
}

// Remove drops the battle record for id and releases its combatants.
// Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.battles[id]
	if !ok {
		return
	}
	for _, cid := range b.CombatantIDs() {
		if r.byCombatant[cid] == id {
			delete(r.byCombatant, cid)
		}
	}
	delete(r.battles, id)
}

// Len returns the number of active battles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.battles)
}
