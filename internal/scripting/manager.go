package scripting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/duel/internal/game/dice"
)

// vm is a single script's LState. LStates are single-threaded, so every
// execution holds mu.
type vm struct {
	mu sync.Mutex
	L  *lua.LState
}

// Manager owns one sandboxed LState per bot script and exposes hook dispatch.
// All methods are safe for concurrent use.
type Manager struct {
	mu        sync.RWMutex
	vms       map[string]*vm
	roller    *dice.Roller
	logger    *zap.Logger
	instLimit int
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil; instLimit >= 0, 0 uses
// DefaultInstructionLimit.
// Postcondition: Returns a non-nil Manager with no scripts loaded.
func NewManager(roller *dice.Roller, logger *zap.Logger, instLimit int) *Manager {
	if roller == nil {
		panic("scripting.NewManager: roller must not be nil")
	}
	if logger == nil {
		panic("scripting.NewManager: logger must not be nil")
	}
	return &Manager{
		vms:       make(map[string]*vm),
		roller:    roller,
		logger:    logger,
		instLimit: instLimit,
	}
}

// LoadDir loads every *.lua file in dir, in lexicographic order, as its own
// script named after the file without extension.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns the loaded script names, or an error on the first
// load failure; scripts loaded before the failure stay registered.
func (m *Manager) LoadDir(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scripting: reading script dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	names := make([]string, 0, len(files))
	for _, file := range files {
		src, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			return names, fmt.Errorf("scripting: reading %q: %w", file, err)
		}
		name := strings.TrimSuffix(file, ".lua")
		if err := m.Load(ctx, name, string(src)); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

// Load compiles and runs src in a fresh sandbox registered under name,
// replacing any previous script of that name.
//
// Precondition: name must be non-empty.
// Postcondition: Returns an error if src fails to load or exceeds the
// instruction limit.
func (m *Manager) Load(ctx context.Context, name, src string) error {
	L := NewSandboxedState()
	m.RegisterModules(L, name)
	err := Exec(ctx, L, m.instLimit, func(L *lua.LState) error {
		return L.DoString(src)
	})
	if err != nil {
		L.Close()
		return fmt.Errorf("scripting: loading %q: %w", name, err)
	}

	m.mu.Lock()
	old := m.vms[name]
	m.vms[name] = &vm{L: L}
	m.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}
	m.logger.Debug("scripting: loaded script", zap.String("script", name))
	return nil
}

// Has reports whether a script named name is loaded.
func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.vms[name]
	return ok
}

// CallHook calls the named Lua global function in script's VM. Returns
// (LNil, nil) if the script or hook is not defined. Lua runtime errors,
// including instruction-limit overruns, are logged at Warn level and
// returned.
//
// Precondition: build, when non-nil, constructs the arguments against the
// script's own LState.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(ctx context.Context, script, hook string, build func(L *lua.LState) []lua.LValue) (lua.LValue, error) {
	m.mu.RLock()
	v, ok := m.vms[script]
	m.mu.RUnlock()

	if !ok {
		m.logger.Info("scripting: no VM for script",
			zap.String("script", script),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	fn := v.L.GetGlobal(hook)
	if fn == lua.LNil {
		return lua.LNil, nil
	}

	var args []lua.LValue
	if build != nil {
		args = build(v.L)
	}

	var ret lua.LValue = lua.LNil
	err := Exec(ctx, v.L, m.instLimit, func(L *lua.LState) error {
		if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
			return err
		}
		ret = L.Get(-1)
		L.Pop(1)
		return nil
	})
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("script", script),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, fmt.Errorf("scripting: %s.%s: %w", script, hook, err)
	}
	return ret, nil
}

// Close releases every loaded script.
//
// Postcondition: No scripts remain loaded.
func (m *Manager) Close() {
	m.mu.Lock()
	vms := m.vms
	m.vms = make(map[string]*vm)
	m.mu.Unlock()

	for _, v := range vms {
		v.mu.Lock()
		v.L.Close()
		v.mu.Unlock()
	}
}
