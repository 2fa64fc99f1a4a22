package roster

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/cory-johannsen/duel/internal/game/combatant"
)

// Roster indexes templates by id and by name, case-insensitively.
// Lookups and Spawn are safe for concurrent use.
type Roster struct {
	byKey     map[string]*Template
	templates []*Template
	counter   atomic.Uint64
}

// New builds a Roster from templates.
//
// Postcondition: Returns an error if two templates share an id or a name.
func New(templates []*Template) (*Roster, error) {
	r := &Roster{byKey: make(map[string]*Template)}
	for _, t := range templates {
		for _, key := range []string{strings.ToLower(t.ID), strings.ToLower(t.Name)} {
			if prev, dup := r.byKey[key]; dup && prev != t {
				return nil, fmt.Errorf("bot templates %q and %q share the key %q", prev.ID, t.ID, key)
			}
			r.byKey[key] = t
		}
		r.templates = append(r.templates, t)
	}
	sort.Slice(r.templates, func(i, j int) bool { return r.templates[i].ID < r.templates[j].ID })
	return r, nil
}

// Lookup returns the template whose id or name matches s, ignoring case.
func (r *Roster) Lookup(s string) (*Template, bool) {
	t, ok := r.byKey[strings.ToLower(strings.TrimSpace(s))]
	return t, ok
}

// Templates returns all templates ordered by id.
func (r *Roster) Templates() []*Template {
	out := make([]*Template, len(r.templates))
	copy(out, r.templates)
	return out
}

// Spawn creates a fresh computer opponent from tmpl with StatPoints spent
// uniformly at random.
//
// Precondition: tmpl and src must be non-nil.
// Postcondition: Every call returns a combatant with a distinct id.
func (r *Roster) Spawn(tmpl *Template, src combatant.Source) *combatant.Combatant {
	n := r.counter.Add(1)
	c := combatant.NewBot(fmt.Sprintf("bot-%s-%d", tmpl.ID, n), tmpl.Name, tmpl.ImageURL, src)
	if tmpl.Description != "" {
		c.Description = tmpl.Description
	}
	return c
}
