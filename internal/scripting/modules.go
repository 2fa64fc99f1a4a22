package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/duel/internal/game/combatant"
)

// RegisterModules registers the engine.log and engine.dice tables into L.
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: engine global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState, script string) {
	engine := L.NewTable()
	L.SetField(engine, "log", m.logModule(L, script))
	L.SetField(engine, "dice", m.diceModule(L))
	L.SetGlobal("engine", engine)
}

func (m *Manager) logModule(L *lua.LState, script string) *lua.LTable {
	logger := m.logger.With(zap.String("script", script))
	mod := L.NewTable()
	levels := map[string]func(string, ...zap.Field){
		"debug": logger.Debug,
		"info":  logger.Info,
		"warn":  logger.Warn,
	}
	for name, fn := range levels {
		L.SetField(mod, name, L.NewFunction(func(L *lua.LState) int {
			fn(L.CheckString(1))
			return 0
		}))
	}
	return mod
}

func (m *Manager) diceModule(L *lua.LState) *lua.LTable {
	mod := L.NewTable()
	L.SetField(mod, "d20", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LNumber(m.roller.D20()))
		return 1
	}))
	L.SetField(mod, "roll", L.NewFunction(func(L *lua.LState) int {
		result, err := m.roller.RollExpr(L.CheckString(1))
		if err != nil {
			L.RaiseError("engine.dice.roll: %s", err.Error())
			return 0
		}
		t := L.NewTable()
		dieTable := L.NewTable()
		for _, d := range result.Dice {
			dieTable.Append(lua.LNumber(d))
		}
		L.SetField(t, "dice", dieTable)
		L.SetField(t, "modifier", lua.LNumber(result.Modifier))
		L.SetField(t, "total", lua.LNumber(result.Total()))
		L.Push(t)
		return 1
	}))
	return mod
}

// CombatantToTable converts a combatant into the Lua table bot hooks receive.
//
// Precondition: c must be non-nil.
// Postcondition: Returns a table with id, name, bot, hp, speed, melee, ranged,
// defense and level fields.
func CombatantToTable(L *lua.LState, c *combatant.Combatant) *lua.LTable {
	t := L.NewTable()
	L.SetField(t, "id", lua.LString(c.ID))
	L.SetField(t, "name", lua.LString(c.Name))
	L.SetField(t, "bot", lua.LBool(c.Bot))
	L.SetField(t, "hp", lua.LNumber(c.HP))
	L.SetField(t, "speed", lua.LNumber(c.Speed))
	L.SetField(t, "melee", lua.LNumber(c.Melee))
	L.SetField(t, "ranged", lua.LNumber(c.Ranged))
	L.SetField(t, "defense", lua.LNumber(c.Defense))
	L.SetField(t, "level", lua.LNumber(c.Level()))
	return t
}
