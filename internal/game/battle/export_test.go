package battle

// Phase functions are exercised directly by the in-package tests below.

func (b *Battle) ReadyPhase(kind Kind, atk, def *Team) (Signal, string) {
	return b.readyPhase(kind, atk, def)
}

func (b *Battle) AttackPhase(kind Kind, atk, def *Team, isCounter bool) (Signal, string) {
	return b.attackPhase(kind, atk, def, isCounter)
}

func (b *Battle) DamagePhase(kind Kind, atk, def *Team, isCounter bool) (Signal, string) {
	return b.damagePhase(kind, atk, def, isCounter)
}
