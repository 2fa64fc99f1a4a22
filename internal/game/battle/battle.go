package battle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/duel/internal/game/combatant"
	"github.com/cory-johannsen/duel/internal/game/dice"
)

// Participant pairs a battle copy of a Combatant with the Actor deciding for it.
// Taunter is optional.
type Participant struct {
	Combatant *combatant.Combatant
	Actor     Actor
	Taunter   Taunter
}

// side is a Team together with its Actor.
type side struct {
	team    *Team
	actor   Actor
	taunter Taunter
}

// noAttacker leaves Snapshot.AttackerID empty.
const noAttacker = -1

// Battle drives one duel from the pre-game roll-off to a terminal Outcome.
// A Battle is run by exactly one goroutine.
type Battle struct {
	// ID uniquely identifies the battle.
	ID string

	sides    [2]*side
	roller   *dice.Roller
	sink     NarrationSink
	reporter OutcomeReporter
	logger   *zap.Logger
	pacing   time.Duration
	sleep    func(ctx context.Context, d time.Duration)

	round    int
	attacker int
	phase    Phase
	reported bool
}

// Option configures a Battle.
type Option func(*Battle)

// WithID overrides the generated battle id.
func WithID(id string) Option { return func(b *Battle) { b.ID = id } }

// WithLogger sets the battle logger.
func WithLogger(l *zap.Logger) Option { return func(b *Battle) { b.logger = l } }

// WithPacing sets the delay inserted after every published snapshot.
func WithPacing(d time.Duration) Option { return func(b *Battle) { b.pacing = d } }

// WithSleep replaces the pacing sleep.
func WithSleep(fn func(ctx context.Context, d time.Duration)) Option {
	return func(b *Battle) { b.sleep = fn }
}

// New builds a Battle between a and b.
//
// Precondition: a and b carry distinct non-nil combatants and non-nil actors;
// roller, sink and reporter are non-nil.
// Postcondition: Returns a Battle in PhasePreGame with a fresh uuid ID.
func New(a, b Participant, roller *dice.Roller, sink NarrationSink, reporter OutcomeReporter, opts ...Option) *Battle {
	bt := &Battle{
		ID: uuid.NewString(),
		sides: [2]*side{
			{team: NewTeam(a.Combatant), actor: a.Actor, taunter: a.Taunter},
			{team: NewTeam(b.Combatant), actor: b.Actor, taunter: b.Taunter},
		},
		roller:   roller,
		sink:     sink,
		reporter: reporter,
		logger:   zap.NewNop(),
		sleep:    sleepContext,
		phase:    PhasePreGame,
	}
	for _, opt := range opts {
		opt(bt)
	}
	bt.logger = bt.logger.With(zap.String("battle_id", bt.ID))
	return bt
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Team returns the Team of participant i (0 or 1, in New order).
func (b *Battle) Team(i int) *Team { return b.sides[i].team }

// CombatantIDs returns the ids of both participants in New order.
func (b *Battle) CombatantIDs() [2]string {
	return [2]string{b.sides[0].team.ID(), b.sides[1].team.ID()}
}

// Round returns the number of the current round, 0 before round 1.
func (b *Battle) Round() int { return b.round }

// Phase returns the most recently entered phase.
func (b *Battle) Phase() Phase { return b.phase }

// Run drives the battle to completion and reports the Outcome exactly once.
//
// Postcondition: On Victory or Unresponsive, returns the Outcome with a nil
// error after delivering it to the reporter. On context cancellation or a
// broker failure, returns a non-nil error and reports nothing.
func (b *Battle) Run(ctx context.Context) (Outcome, error) {
	ids := b.CombatantIDs()
	b.logger.Info("battle started", zap.String("combatant_a", ids[0]), zap.String("combatant_b", ids[1]))

	out, err := b.run(ctx)
	var unresponsive *UnresponsiveError
	if errors.As(err, &unresponsive) {
		out = Outcome{
			BattleID:      b.ID,
			Result:        Unresponsive,
			CombatantID:   unresponsive.CombatantID,
			CombatantName: unresponsive.Name,
			Rounds:        b.round,
		}
		err = nil
	}
	if err != nil {
		b.logger.Warn("battle aborted", zap.Int("round", b.round), zap.Error(err))
		return Outcome{}, err
	}

	b.logger.Info("battle ended",
		zap.Stringer("result", out.Result),
		zap.String("combatant_id", out.CombatantID),
		zap.Int("rounds", out.Rounds),
	)
	if !b.reported {
		b.reported = true
		b.reporter.Report(out)
	}
	return out, nil
}

func (b *Battle) run(ctx context.Context) (Outcome, error) {
	first, err := b.preGame(ctx)
	if err != nil {
		return Outcome{}, err
	}
	b.attacker = first

	for {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		b.round++
		atk, def := b.sides[b.attacker], b.sides[1-b.attacker]

		sig, err := b.playRound(ctx, atk, def)
		if err != nil {
			return Outcome{}, err
		}
		b.logger.Debug("round resolved", zap.Int("round", b.round), zap.Stringer("signal", sig.Kind))

		switch sig.Kind {
		case SignalGameEnd:
			winner := b.sideOf(sig.CombatantID)
			b.publish(ctx, PhaseGameEnd, b.attacker, fmt.Sprintf("%s won the battle!", winner.team.Name()))
			return Outcome{
				BattleID:      b.ID,
				Result:        Victory,
				CombatantID:   winner.team.ID(),
				CombatantName: winner.team.Name(),
				Rounds:        b.round,
			}, nil
		case SignalBonus:
			next := b.indexOf(sig.CombatantID)
			b.publish(ctx, PhaseRoundEnd, b.attacker, fmt.Sprintf("Round %d is over. %s keeps the attack", b.round, b.sides[next].team.Name()))
			b.attacker = next
		default:
			next := 1 - b.attacker
			b.publish(ctx, PhaseRoundEnd, b.attacker, fmt.Sprintf("Round %d is over. %s attacks next", b.round, b.sides[next].team.Name()))
			b.attacker = next
		}
	}
}

// preGame rolls initiative until the two rolls differ.
//
// Postcondition: Returns the index of the round-1 attacker.
func (b *Battle) preGame(ctx context.Context) (int, error) {
	b.publish(ctx, PhasePreGame, noAttacker, "Preparing battle")
	for {
		var rolls [2]int
		text := ""
		for i, s := range b.sides {
			if err := s.actor.AwaitRoll(ctx, s.team.Combatant); err != nil {
				return 0, err
			}
			rolls[i] = b.roller.D20()
			text += fmt.Sprintf("%s rolled %d for initiative\n", s.team.Name(), rolls[i])
		}
		if rolls[0] == rolls[1] {
			b.publish(ctx, PhasePreGame, noAttacker, text+"Tie! Rolling again\n")
			continue
		}
		first := 0
		if rolls[1] > rolls[0] {
			first = 1
		}
		b.attacker = first
		b.publish(ctx, PhasePreGame, noAttacker, text+fmt.Sprintf("%s attacks first\n", b.sides[first].team.Name()))
		return first, nil
	}
}

// playRound runs Declaration, Ready, Attack, the optional Counter and Damage.
func (b *Battle) playRound(ctx context.Context, atk, def *side) (Signal, error) {
	kind, err := atk.actor.ChooseKind(ctx, atk.team.Combatant, def.team.Combatant)
	if err != nil {
		return Signal{}, err
	}
	b.phase = PhaseDeclaration
	b.logger.Debug("declared", zap.Int("round", b.round), zap.String("attacker", atk.team.ID()), zap.Stringer("kind", kind))

	declared := fmt.Sprintf("%s chose %s\n", atk.team.Name(), kind)
	if line := b.taunt(ctx, atk, def); line != "" {
		declared += fmt.Sprintf("%s: %q\n", atk.team.Name(), line)
	}

	sig, text := b.readyPhase(kind, atk.team, def.team)
	b.publish(ctx, PhaseReady, b.attacker, declared+text)
	if sig.Kind != SignalContinue {
		return sig, nil
	}

	sig, text = b.attackPhase(kind, atk.team, def.team, false)
	b.publish(ctx, PhaseAttack, b.attacker, text)
	switch sig.Kind {
	case SignalContinue:
	case SignalCounter:
		return b.counterSequence(ctx, def, atk), nil
	default:
		return sig, nil
	}

	sig, text = b.damagePhase(kind, atk.team, def.team, false)
	b.publish(ctx, PhaseDamage, b.attacker, text)
	return sig, nil
}

// counterSequence runs one Attack and one Damage Phase for the counter-attacker.
func (b *Battle) counterSequence(ctx context.Context, atk, def *side) Signal {
	acting := b.indexOf(atk.team.ID())
	sig, text := b.attackPhase(Melee, atk.team, def.team, true)
	b.publish(ctx, PhaseCounter, acting, text)
	if sig.Kind != SignalContinue {
		return sig
	}
	sig, text = b.damagePhase(Melee, atk.team, def.team, true)
	b.publish(ctx, PhaseDamage, acting, text)
	return sig
}

// taunt returns the attacker's banter line, or "" when it has none.
func (b *Battle) taunt(ctx context.Context, atk, def *side) string {
	if atk.taunter == nil {
		return ""
	}
	line, err := atk.taunter.Taunt(ctx, atk.team.Combatant, def.team.Combatant)
	if err != nil {
		b.logger.Warn("taunt failed",
			zap.Int("round", b.round),
			zap.String("combatant_id", atk.team.ID()),
			zap.Error(err),
		)
		return ""
	}
	return line
}

// publish narrates the current state with the side at index acting marked as
// attacker, and waits for the pacing delay.
func (b *Battle) publish(ctx context.Context, phase Phase, acting int, text string) {
	b.phase = phase
	snap := Snapshot{
		BattleID: b.ID,
		Round:    b.round,
		Phase:    phase,
		Teams:    [2]TeamView{b.sides[0].team.View(), b.sides[1].team.View()},
		Text:     text,
	}
	if acting != noAttacker {
		snap.AttackerID = b.sides[acting].team.ID()
	}
	b.sink.Publish(snap)
	b.sleep(ctx, b.pacing)
}

func (b *Battle) indexOf(id string) int {
	if b.sides[1].team.ID() == id {
		return 1
	}
	return 0
}

func (b *Battle) sideOf(id string) *side { return b.sides[b.indexOf(id)] }
