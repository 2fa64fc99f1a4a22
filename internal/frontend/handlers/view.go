package handlers

import "github.com/cory-johannsen/duel/internal/game/battle"

// battleView narrates one battle to the sessions of its human participants.
// It is both the NarrationSink and the OutcomeReporter of the battle.
type battleView struct {
	watchers []*session
}

// Publish implements battle.NarrationSink.
func (v *battleView) Publish(s battle.Snapshot) {
	lines := RenderSnapshot(s)
	for _, w := range v.watchers {
		w.notify(lines...)
	}
}

// Report implements battle.OutcomeReporter.
func (v *battleView) Report(o battle.Outcome) {
	msg := RenderOutcome(o)
	for _, w := range v.watchers {
		w.notify(msg)
	}
}
