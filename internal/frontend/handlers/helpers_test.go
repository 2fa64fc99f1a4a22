package handlers

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/duel/internal/config"
	"github.com/cory-johannsen/duel/internal/frontend/telnet"
	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/game/combatant"
	"github.com/cory-johannsen/duel/internal/game/dice"
	"github.com/cory-johannsen/duel/internal/game/roster"
	"github.com/cory-johannsen/duel/internal/scripting"
	"github.com/cory-johannsen/duel/internal/storage/postgres"
)

// mockAccountStore implements AccountStore for testing.
type mockAccountStore struct {
	mu        sync.Mutex
	accounts  map[string]postgres.Account
	passwords map[string]string
}

func newMockAccountStore() *mockAccountStore {
	return &mockAccountStore{
		accounts:  make(map[string]postgres.Account),
		passwords: make(map[string]string),
	}
}

func (m *mockAccountStore) Create(_ context.Context, username, password string) (postgres.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.accounts[username]; exists {
		return postgres.Account{}, postgres.ErrAccountExists
	}
	acct := postgres.Account{
		ID:        int64(len(m.accounts) + 1),
		Username:  username,
		CreatedAt: time.Now(),
	}
	m.accounts[username] = acct
	m.passwords[username] = password
	return acct, nil
}

func (m *mockAccountStore) Authenticate(_ context.Context, username, password string) (postgres.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, exists := m.accounts[username]
	if !exists {
		return postgres.Account{}, postgres.ErrAccountNotFound
	}
	if m.passwords[username] != password {
		return postgres.Account{}, postgres.ErrInvalidCredentials
	}
	return acct, nil
}

// mockCombatantStore implements CombatantStore for testing.
type mockCombatantStore struct {
	mu        sync.Mutex
	byAccount map[int64]*combatant.Combatant
}

func newMockCombatantStore() *mockCombatantStore {
	return &mockCombatantStore{byAccount: make(map[int64]*combatant.Combatant)}
}

func (m *mockCombatantStore) Create(_ context.Context, accountID int64, c *combatant.Combatant) (*combatant.Combatant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byAccount[accountID]; ok {
		return nil, postgres.ErrCombatantExists
	}
	for _, other := range m.byAccount {
		if strings.EqualFold(other.Name, c.Name) {
			return nil, postgres.ErrNameTaken
		}
	}
	cp := *c
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	cp.HP = combatant.StartingHP
	m.byAccount[accountID] = &cp
	out := cp
	return &out, nil
}

func (m *mockCombatantStore) LoadByAccount(_ context.Context, accountID int64) (*combatant.Combatant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byAccount[accountID]
	if !ok {
		return nil, postgres.ErrCombatantNotFound
	}
	out := *c
	return &out, nil
}

func (m *mockCombatantStore) LoadByName(_ context.Context, name string) (*combatant.Combatant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byAccount {
		if strings.EqualFold(c.Name, name) {
			out := *c
			return &out, nil
		}
	}
	return nil, postgres.ErrCombatantNotFound
}

func (m *mockCombatantStore) get(accountID int64) *combatant.Combatant {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byAccount[accountID]
}

func testBattleConfig() config.BattleConfig {
	return config.BattleConfig{
		StartingHP:    combatant.StartingHP,
		StatPoints:    combatant.StatPoints,
		InputTimeout:  2 * time.Second,
		Pacing:        0,
		InviteTimeout: 5 * time.Second,
		DiceSource:    "seeded",
	}
}

// newTestLobby builds a lobby with a "Grunt" bot that taunts and a silent
// "Wildcard" bot.
func newTestLobby(t *testing.T, cfg config.BattleConfig, logger *zap.Logger) *Lobby {
	t.Helper()
	src := dice.NewSeededSource(7)
	bots, err := roster.New([]*roster.Template{
		{ID: "grunt", Name: "Grunt", Taunt: "brawler"},
		{ID: "wildcard", Name: "Wildcard"},
	})
	require.NoError(t, err)

	scripts := scripting.NewManager(dice.NewLoggedRoller(src, logger), logger, 0)
	require.NoError(t, scripts.Load(context.Background(), "brawler",
		`function taunt(self, opponent) return "Hold still, " .. opponent.name end`))
	t.Cleanup(scripts.Close)

	lobby := NewLobby(cfg, battle.NewRegistry(), bots, scripts, src, logger)
	t.Cleanup(lobby.Close)
	return lobby
}

type fixture struct {
	accounts   *mockAccountStore
	combatants *mockCombatantStore
	lobby      *Lobby
	addr       string
}

// newFixture starts a telnet server running a SessionHandler on a random port.
func newFixture(t *testing.T, cfg config.BattleConfig) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel))
	f := &fixture{
		accounts:   newMockAccountStore(),
		combatants: newMockCombatantStore(),
		lobby:      newTestLobby(t, cfg, logger),
	}
	handler := NewSessionHandler(f.accounts, f.combatants, f.lobby, cfg.StatPoints, logger)

	acc := telnet.NewAcceptor(config.TelnetConfig{
		Host:         "127.0.0.1",
		Port:         0,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Second,
	}, handler, logger)
	go func() { _ = acc.ListenAndServe() }()
	require.Eventually(t, func() bool {
		return acc.IsRunning() && acc.Addr() != ""
	}, 2*time.Second, 5*time.Millisecond, "acceptor did not start in time")
	t.Cleanup(acc.Stop)

	f.addr = acc.Addr()
	return f
}

// seedPlayer creates an account and, when name is non-empty, its combatant.
func (f *fixture) seedPlayer(t *testing.T, username, password, name string) postgres.Account {
	t.Helper()
	acct, err := f.accounts.Create(context.Background(), username, password)
	require.NoError(t, err)
	if name != "" {
		c := combatant.New("", name)
		c.Speed, c.Melee, c.Ranged, c.Defense = 3, 3, 2, 2
		_, err = f.combatants.Create(context.Background(), acct.ID, c)
		require.NoError(t, err)
	}
	return acct
}

// pipeClient captures everything written to a session over net.Pipe.
type pipeClient struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (p *pipeClient) text() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return telnet.StripANSI(p.buf.String())
}

func (p *pipeClient) waitFor(t *testing.T, substr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(p.text(), substr)
	}, 3*time.Second, 5*time.Millisecond, "never saw %q in %q", substr, p.text())
}

// newPipeSession returns a session whose output is captured by the returned client.
func newPipeSession(t *testing.T, accountID int64, name string) (*session, *pipeClient) {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = client.Close()
	})

	pc := &pipeClient{}
	go func() {
		tmp := make([]byte, 1024)
		for {
			n, err := client.Read(tmp)
			if n > 0 {
				pc.mu.Lock()
				pc.buf.Write(tmp[:n])
				pc.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()

	s := newSession(telnet.NewConn(server, 0, time.Second), postgres.Account{ID: accountID, Username: strings.ToLower(name)})
	if name != "" {
		c := combatant.New("c-"+strings.ToLower(name), name)
		c.Speed, c.Melee, c.Ranged, c.Defense = 3, 3, 2, 2
		s.setCombatant(c)
	}
	return s, pc
}
