package scripting

import (
	"context"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/duel/internal/game/combatant"
)

// TauntHook is the Lua global a bot script defines. It receives the bot and
// its opponent as tables and returns a line of banter, or nil to stay quiet.
const TauntHook = "taunt"

// Taunter speaks for a bot by calling a loaded script's taunt hook.
type Taunter struct {
	mgr    *Manager
	script string
}

// Taunter returns the Taunter backed by script.
//
// Postcondition: Returns an error if no script of that name is loaded.
func (m *Manager) Taunter(script string) (*Taunter, error) {
	if !m.Has(script) {
		return nil, fmt.Errorf("scripting: taunt script %q not loaded", script)
	}
	return &Taunter{mgr: m, script: script}, nil
}

// Name returns the backing script name.
func (t *Taunter) Name() string { return t.script }

// Taunt calls taunt(self, opponent).
//
// Postcondition: Returns the line the hook returned, or "" when the hook is
// absent or returns nil. Returns an error if the hook fails or returns a
// non-string.
func (t *Taunter) Taunt(ctx context.Context, self, opponent *combatant.Combatant) (string, error) {
	ret, err := t.mgr.CallHook(ctx, t.script, TauntHook, func(L *lua.LState) []lua.LValue {
		return []lua.LValue{CombatantToTable(L, self), CombatantToTable(L, opponent)}
	})
	if err != nil {
		return "", err
	}
	switch v := ret.(type) {
	case lua.LString:
		return string(v), nil
	case *lua.LNilType:
		return "", nil
	}
	return "", fmt.Errorf("scripting: %s.%s returned %s, want string", t.script, TauntHook, ret.Type())
}
