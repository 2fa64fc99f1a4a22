package battle_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/game/combatant"
	"github.com/cory-johannsen/duel/internal/game/dice"
)

// faces is a dice.Source that yields a fixed sequence of d20 faces.
type faces struct {
	mu   sync.Mutex
	vals []int
	next int
}

func newFaces(vals ...int) *faces { return &faces{vals: vals} }

func (f *faces) Intn(n int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next >= len(f.vals) {
		panic(fmt.Sprintf("faces: sequence exhausted after %d rolls", f.next))
	}
	v := f.vals[f.next]
	f.next++
	if v < 1 || v > n {
		panic(fmt.Sprintf("faces: value %d out of range for d%d", v, n))
	}
	return v - 1
}

func (f *faces) used() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next
}

// chooser answers attack kinds by label.
type chooser interface {
	ChooseAttack(ctx context.Context, self, opponent *combatant.Combatant) (string, error)
}

// declaring is an Actor whose declarations are fixed by a chooser.
type declaring struct {
	choose chooser
}

func (d declaring) ChooseKind(ctx context.Context, self, opponent *combatant.Combatant) (battle.Kind, error) {
	label, err := d.choose.ChooseAttack(ctx, self, opponent)
	if err != nil {
		return 0, err
	}
	return battle.ParseKind(label)
}

func (declaring) AwaitRoll(context.Context, *combatant.Combatant) error { return nil }

type fixedKind string

func (s fixedKind) ChooseAttack(context.Context, *combatant.Combatant, *combatant.Combatant) (string, error) {
	return string(s), nil
}

// plan answers a scripted sequence of attack kinds, one per call.
type plan struct {
	mu    sync.Mutex
	kinds []string
}

func (p *plan) ChooseAttack(context.Context, *combatant.Combatant, *combatant.Combatant) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.kinds) == 0 {
		return "Melee", nil
	}
	k := p.kinds[0]
	p.kinds = p.kinds[1:]
	return k, nil
}

type recordingSink struct {
	mu    sync.Mutex
	snaps []battle.Snapshot
}

func (s *recordingSink) Publish(snap battle.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps = append(s.snaps, snap)
}

func (s *recordingSink) phases() []battle.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]battle.Phase, len(s.snaps))
	for i, snap := range s.snaps {
		out[i] = snap.Phase
	}
	return out
}

func (s *recordingSink) inRound(round int) []battle.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []battle.Snapshot
	for _, snap := range s.snaps {
		if snap.Round == round {
			out = append(out, snap)
		}
	}
	return out
}

type recordingReporter struct {
	mu       sync.Mutex
	outcomes []battle.Outcome
}

func (r *recordingReporter) Report(o battle.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recordingReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}

// stubBroker answers with fixed results.
type stubBroker struct {
	choice    string
	choiceErr error
	rollErr   error
	timeouts  []time.Duration
}

func (b *stubBroker) RequestChoice(_ context.Context, _ *combatant.Combatant, _ []string, timeout time.Duration) (string, error) {
	b.timeouts = append(b.timeouts, timeout)
	return b.choice, b.choiceErr
}

func (b *stubBroker) RequestRollTrigger(_ context.Context, _ *combatant.Combatant, timeout time.Duration) error {
	b.timeouts = append(b.timeouts, timeout)
	return b.rollErr
}

func fighter(id string, speed, melee, ranged, defense int) *combatant.Combatant {
	c := combatant.New(id, id)
	c.Speed, c.Melee, c.Ranged, c.Defense = speed, melee, ranged, defense
	return c
}

type fixture struct {
	battle   *battle.Battle
	src      *faces
	sink     *recordingSink
	reporter *recordingReporter
}

func newFixture(t *testing.T, src *faces, a, b battle.Participant) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	f := &fixture{src: src, sink: &recordingSink{}, reporter: &recordingReporter{}}
	f.battle = battle.New(a, b,
		dice.NewLoggedRoller(src, logger),
		f.sink, f.reporter,
		battle.WithLogger(logger),
		battle.WithPacing(0),
	)
	return f
}

// scripted returns a participant declaring at random from src, or by choose
// when it is non-nil.
func scripted(c *combatant.Combatant, src battle.Source, choose chooser) battle.Participant {
	if choose == nil {
		return battle.Participant{Combatant: c, Actor: battle.NewScripted(src)}
	}
	return battle.Participant{Combatant: c, Actor: declaring{choose: choose}}
}

// taunting says line, or fails with err.
type taunting struct {
	line string
	err  error
}

func (t taunting) Taunt(context.Context, *combatant.Combatant, *combatant.Combatant) (string, error) {
	return t.line, t.err
}
