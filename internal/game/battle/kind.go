// Package battle implements the turn-based d20 duel engine: the phase state
// machine, per-battle team state and the collaborator interfaces it drives.
package battle

import (
	"fmt"
	"strings"
)

// Kind is the attack kind declared by the attacker at the start of a round.
type Kind int

const (
	Melee Kind = iota
	Ranged
)

// Kinds lists every declarable attack kind in presentation order.
var Kinds = []Kind{Melee, Ranged}

// String returns the display label of the kind.
func (k Kind) String() string {
	switch k {
	case Melee:
		return "Melee"
	case Ranged:
		return "Ranged"
	default:
		return "Unknown"
	}
}

// ParseKind resolves a case-insensitive kind label.
//
// Postcondition: Returns the Kind or an error naming the unknown label.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "melee", "m":
		return Melee, nil
	case "ranged", "r":
		return Ranged, nil
	default:
		return 0, fmt.Errorf("unknown attack kind %q", s)
	}
}

// kindLabels returns the option labels offered to a human attacker.
func kindLabels() []string {
	labels := make([]string, len(Kinds))
	for i, k := range Kinds {
		labels[i] = k.String()
	}
	return labels
}
