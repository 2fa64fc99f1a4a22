package battle

// SignalKind tags the result of a phase function.
type SignalKind int

const (
	// SignalContinue proceeds to the next phase.
	SignalContinue SignalKind = iota
	// SignalRoundEnd ends the round with no damage.
	SignalRoundEnd
	// SignalGameEnd ends the battle; CombatantID names the winner.
	SignalGameEnd
	// SignalCounter starts the nested counter sequence; CombatantID names the counter-attacker.
	SignalCounter
	// SignalBonus grants the next round to CombatantID.
	SignalBonus
)

// String returns the signal name used in logs.
func (k SignalKind) String() string {
	switch k {
	case SignalContinue:
		return "continue"
	case SignalRoundEnd:
		return "round_end"
	case SignalGameEnd:
		return "game_end"
	case SignalCounter:
		return "counter"
	case SignalBonus:
		return "bonus"
	default:
		return "unknown"
	}
}

// Signal is the tagged value every phase function returns to the round loop.
type Signal struct {
	Kind        SignalKind
	CombatantID string
}

func continueSignal() Signal { return Signal{Kind: SignalContinue} }
func roundEnd() Signal { return Signal{Kind: SignalRoundEnd} }
func gameEnd(winner string) Signal { return Signal{Kind: SignalGameEnd, CombatantID: winner} }
func counter(triggerer string) Signal { return Signal{Kind: SignalCounter, CombatantID: triggerer} }
func bonus(attacker string) Signal { return Signal{Kind: SignalBonus, CombatantID: attacker} }
