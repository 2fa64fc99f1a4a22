package battle

import (
	"fmt"
	"strings"
)

// CounterThreshold is the minimum raw roll for a successful counter.
const CounterThreshold = 11

// RangedReadyThreshold is the Ready Phase total a ranged attacker must exceed.
const RangedReadyThreshold = 10

// ConsecutiveCap resets a nat-20 chain when reached.
const ConsecutiveCap = 3

const natural20 = 20

func rollLine(t *Team, roll, modifier int) string {
	return fmt.Sprintf("%s rolled %d + %d = %d\n", t.Name(), roll, modifier, roll+modifier)
}

// readyPhase resolves initiative for the round.
//
// Precondition: atk and def are the two distinct teams of this battle.
// Postcondition: Returns SignalContinue or SignalRoundEnd. A Melee nat-20 by
// the attacker increments atk.AttackCount even when the round ends.
func (b *Battle) readyPhase(kind Kind, atk, def *Team) (Signal, string) {
	var text strings.Builder

	atkRoll := b.roller.D20()
	atkTotal := atkRoll + atk.Combatant.Speed
	text.WriteString(rollLine(atk, atkRoll, atk.Combatant.Speed))

	if kind == Ranged {
		if atkTotal <= RangedReadyThreshold {
			fmt.Fprintf(&text, "%s rolled %d or lower thus neutral is reset\n", atk.Name(), RangedReadyThreshold)
			return roundEnd(), text.String()
		}
		return continueSignal(), text.String()
	}

	defRoll := b.roller.D20()
	defTotal := defRoll + def.Combatant.Speed
	text.WriteString(rollLine(def, defRoll, def.Combatant.Speed))

	if atkRoll == natural20 {
		atk.AttackCount++
		fmt.Fprintf(&text, "%s got nat 20 and receives 2 chances in attack phase\n", atk.Name())
	}
	if defTotal > atkTotal {
		fmt.Fprintf(&text, "%s rolled higher than %s thus neutral is reset\n", def.Name(), atk.Name())
		return roundEnd(), text.String()
	}
	return continueSignal(), text.String()
}

// attackPhase resolves the accuracy contest. isCounter marks the nested
// counter sequence, which never yields a further counter.
//
// Postcondition: atk.AttackCount is 1, or 2 after a Melee nat-20.
// Returns SignalContinue, SignalRoundEnd or SignalCounter naming def.
func (b *Battle) attackPhase(kind Kind, atk, def *Team, isCounter bool) (Signal, string) {
	var text strings.Builder

	atkRoll := b.roller.D20()
	defRoll := b.roller.D20()
	defTotal := defRoll + def.Combatant.Defense

	canReroll := atk.AttackCount == 2
	atk.AttackCount = 1

	// accuracy uses melee for both kinds; ranged only feeds damage
	atkTotal := atkRoll + atk.Combatant.Melee
	text.WriteString(rollLine(atk, atkRoll, atk.Combatant.Melee))
	text.WriteString(rollLine(def, defRoll, def.Combatant.Defense))

	if defTotal > atkTotal && canReroll {
		atkRoll = b.roller.D20()
		atkTotal = atkRoll + atk.Combatant.Melee
		fmt.Fprintf(&text, "%s rolled higher thus %s re-rolled and got %d\n", def.Name(), atk.Name(), atkTotal)
	}

	if kind == Ranged {
		if defTotal > atkTotal {
			fmt.Fprintf(&text, "%s rolled higher than %s thus neutral is reset\n", def.Name(), atk.Name())
			return roundEnd(), text.String()
		}
		return continueSignal(), text.String()
	}

	if atkRoll == natural20 {
		atk.AttackCount++
		fmt.Fprintf(&text, "%s got nat 20 and receives 2 attacks in damage phase\n", atk.Name())
	}

	if atkTotal >= defTotal {
		return continueSignal(), text.String()
	}
	if isCounter || def.Consecutive >= ConsecutiveCap {
		fmt.Fprintf(&text, "%s rolled higher than %s thus neutral is reset\n", def.Name(), atk.Name())
		return roundEnd(), text.String()
	}

	counterRoll := b.roller.D20()
	if counterRoll >= CounterThreshold {
		fmt.Fprintf(&text, "%s rolled higher than %s and countered successfully (%d)\n", def.Name(), atk.Name(), counterRoll)
		return counter(def.ID()), text.String()
	}
	fmt.Fprintf(&text, "%s rolled higher than %s but failed to counter (%d)\n", def.Name(), atk.Name(), counterRoll)
	return roundEnd(), text.String()
}

// damagePhase rolls and applies damage.
//
// Postcondition: atk.AttackCount == 1; atk.Consecutive is in [0,2].
// Returns SignalGameEnd naming atk when def is defeated, SignalBonus naming
// atk when a nat-20 chain left Consecutive at 1 or 2, else SignalContinue.
func (b *Battle) damagePhase(kind Kind, atk, def *Team, isCounter bool) (Signal, string) {
	var text strings.Builder

	base := atk.Combatant.Melee
	if kind == Ranged {
		base = atk.Combatant.Ranged
	}

	damage := 0
	chain := false
	for i := 0; i < atk.AttackCount; i++ {
		roll := b.roller.D20()
		damage += roll + base
		text.WriteString(rollLine(atk, roll, base))
		if roll == natural20 {
			chain = true
		}
		if chain {
			atk.Consecutive++
			if atk.Consecutive >= ConsecutiveCap {
				atk.Consecutive = 0
				fmt.Fprintf(&text, "%s reached %d consecutive turns and the chain is reset\n", atk.Name(), ConsecutiveCap)
			}
		}
	}
	atk.AttackCount = 1
	if !chain {
		atk.Consecutive = 0
	}

	if kind == Ranged {
		damage /= 2
		text.WriteString("Ranged damage is halved\n")
	}
	if isCounter && !chain {
		damage /= 2
		text.WriteString("Counter damage is halved\n")
	}

	def.Combatant.HP -= damage
	fmt.Fprintf(&text, "%s dealt %d damage to %s!\n", atk.Name(), damage, def.Name())

	if def.Defeated() {
		return gameEnd(atk.ID()), text.String()
	}
	if chain && atk.Consecutive > 0 {
		fmt.Fprintf(&text, "%s earned a bonus turn\n", atk.Name())
		return bonus(atk.ID()), text.String()
	}
	return continueSignal(), text.String()
}
