package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/duel/internal/config"
	"github.com/cory-johannsen/duel/internal/frontend/telnet"
	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/game/combatant"
	"github.com/cory-johannsen/duel/internal/game/dice"
	"github.com/cory-johannsen/duel/internal/game/roster"
	"github.com/cory-johannsen/duel/internal/scripting"
)

var (
	// ErrAlreadyConnected is returned when an account logs in twice.
	ErrAlreadyConnected = errors.New("account already connected")
	// ErrUnregistered is returned when a session without a combatant tries to fight.
	ErrUnregistered = errors.New("unregistered user")
	// ErrSelfChallenge is returned when a combatant challenges itself.
	ErrSelfChallenge = errors.New("cannot challenge yourself")
	// ErrNotOnline is returned when the challenged combatant has no session.
	ErrNotOnline = errors.New("combatant is not online")
	// ErrOpponentBusy is returned when the challenged combatant is fighting.
	ErrOpponentBusy = errors.New("opponent is already in a battle")
	// ErrInvitePending is returned when either side already has an open invitation.
	ErrInvitePending = errors.New("an invitation is already pending")
	// ErrNoInvitation is returned by Accept and Reject when nothing is waiting.
	ErrNoInvitation = errors.New("no pending invitation")
	// ErrNoBots is returned when a bot battle is requested with an empty roster.
	ErrNoBots = errors.New("no bots available")
	// ErrShuttingDown is returned once Close has been called.
	ErrShuttingDown = errors.New("lobby is shutting down")
)

// TauntLoader resolves a named bot taunt script.
type TauntLoader interface {
	Taunter(script string) (*scripting.Taunter, error)
}

// invite is an open challenge from one session to another.
type invite struct {
	id    string
	from  *session
	to    *session
	timer *battle.ExpiryTimer
}

// Lobby tracks online sessions, open invitations and running battles. It is
// the InputBroker of every battle it starts.
type Lobby struct {
	cfg      config.BattleConfig
	registry *battle.Registry
	roster   *roster.Roster
	scripts  TauntLoader
	src      dice.Source
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	closing  bool
	sessions map[int64]*session
	invites  map[string]*invite
}

// NewLobby creates a Lobby. scripts may be nil, in which case every bot
// stays silent.
//
// Precondition: registry, bots, src and logger must be non-nil.
// Postcondition: Returns a Lobby ready to accept sessions.
func NewLobby(cfg config.BattleConfig, registry *battle.Registry, bots *roster.Roster, scripts TauntLoader, src dice.Source, logger *zap.Logger) *Lobby {
	ctx, cancel := context.WithCancel(context.Background())
	return &Lobby{
		cfg:      cfg,
		registry: registry,
		roster:   bots,
		scripts:  scripts,
		src:      src,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[int64]*session),
		invites:  make(map[string]*invite),
	}
}

// Join registers a logged-in session.
//
// Postcondition: Returns ErrAlreadyConnected if the account already has a session.
func (l *Lobby) Join(s *session) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closing {
		return ErrShuttingDown
	}
	if _, ok := l.sessions[s.account.ID]; ok {
		return ErrAlreadyConnected
	}
	l.sessions[s.account.ID] = s
	return nil
}

// Leave unregisters s, cancels its invitations and fails any battle request
// waiting on it.
func (l *Lobby) Leave(s *session) {
	l.mu.Lock()
	if l.sessions[s.account.ID] == s {
		delete(l.sessions, s.account.ID)
	}
	var cancelled []*invite
	for id, inv := range l.invites {
		if inv.from != s && inv.to != s {
			continue
		}
		delete(l.invites, id)
		if inv.timer.Stop() {
			cancelled = append(cancelled, inv)
		}
	}
	l.mu.Unlock()

	s.close()
	for _, inv := range cancelled {
		other := inv.from
		if other == s {
			other = inv.to
		}
		other.notify(telnet.Colorf(telnet.Yellow, "%s left. The invitation is cancelled.", s.displayName()))
	}
}

// Online returns the names of every online combatant, sorted.
func (l *Lobby) Online() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var names []string
	for _, s := range l.sessions {
		if c := s.Combatant(); c != nil {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Bots returns the bot templates that can be challenged.
func (l *Lobby) Bots() []*roster.Template {
	return l.roster.Templates()
}

// Challenge starts a bot battle when target names a bot template (or is
// "bot"), and otherwise invites the online combatant named target.
//
// Postcondition: Returns nil once the battle is running or the invitation
// has been delivered; otherwise one of the lobby's sentinel errors or one
// wrapping battle.ErrAlreadyInBattle.
func (l *Lobby) Challenge(s *session, target string) error {
	me := s.Combatant()
	if me == nil {
		return ErrUnregistered
	}
	if l.registry.InBattle(me.ID) {
		return battle.ErrAlreadyInBattle
	}

	if strings.EqualFold(target, "bot") {
		tmpl, err := l.randomTemplate()
		if err != nil {
			return err
		}
		return l.startBotBattle(s, tmpl)
	}
	if tmpl, ok := l.roster.Lookup(target); ok {
		return l.startBotBattle(s, tmpl)
	}

	l.mu.Lock()
	opp := l.findByNameLocked(target)
	switch {
	case opp == nil:
		l.mu.Unlock()
		return ErrNotOnline
	case opp == s:
		l.mu.Unlock()
		return ErrSelfChallenge
	case l.registry.InBattle(opp.combatantID()):
		l.mu.Unlock()
		return ErrOpponentBusy
	case l.hasInviteLocked(s) || l.hasInviteLocked(opp):
		l.mu.Unlock()
		return ErrInvitePending
	}
	inv := &invite{id: uuid.NewString(), from: s, to: opp}
	l.invites[inv.id] = inv
	inv.timer = battle.NewExpiryTimer(l.cfg.InviteTimeout, func() { l.expire(inv) })
	l.mu.Unlock()

	l.logger.Info("invitation sent",
		zap.String("invite_id", inv.id),
		zap.String("from", me.ID),
		zap.String("to", opp.combatantID()),
	)
	opp.notify(telnet.Colorf(telnet.BrightYellow,
		"%s challenges you to a duel! Type `accept` or `reject` within %s.",
		me.Name, l.cfg.InviteTimeout.Round(time.Second)))
	s.notify(telnet.Colorf(telnet.Cyan, "Invitation sent to %s.", opp.displayName()))
	return nil
}

// Accept starts the battle s was invited to.
//
// Postcondition: Returns ErrNoInvitation if no invitation is open or it
// expired concurrently.
func (l *Lobby) Accept(s *session) error {
	inv, err := l.claimInvite(s)
	if err != nil {
		return err
	}
	l.logger.Info("invitation accepted", zap.String("invite_id", inv.id))
	select {
	case <-inv.from.closed:
		return ErrNotOnline
	default:
	}
	return l.startHumanBattle(inv.from, inv.to)
}

// Reject declines the invitation s received.
func (l *Lobby) Reject(s *session) error {
	inv, err := l.claimInvite(s)
	if err != nil {
		return err
	}
	l.logger.Info("invitation rejected", zap.String("invite_id", inv.id))
	inv.from.notify(rejectionMessage(inv.to))
	s.notify(telnet.Colorf(telnet.Cyan, "You rejected the invitation from %s.", inv.from.displayName()))
	return nil
}

// claimInvite removes the invitation addressed to s if it has not expired.
func (l *Lobby) claimInvite(s *session) (*invite, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, inv := range l.invites {
		if inv.to != s {
			continue
		}
		if !inv.timer.Stop() {
			return nil, ErrNoInvitation
		}
		delete(l.invites, id)
		return inv, nil
	}
	return nil, ErrNoInvitation
}

// expire treats an unanswered invitation as rejected.
func (l *Lobby) expire(inv *invite) {
	l.mu.Lock()
	if _, ok := l.invites[inv.id]; !ok {
		l.mu.Unlock()
		return
	}
	delete(l.invites, inv.id)
	l.mu.Unlock()

	l.logger.Info("invitation expired", zap.String("invite_id", inv.id))
	inv.from.notify(rejectionMessage(inv.to))
	inv.to.notify(telnet.Colorf(telnet.Yellow, "The invitation from %s has expired.", inv.from.displayName()))
}

func rejectionMessage(to *session) string {
	return telnet.Colorf(telnet.Red, "%s rejected the battle invitation", to.displayName())
}

func (l *Lobby) findByNameLocked(name string) *session {
	name = strings.TrimSpace(name)
	for _, s := range l.sessions {
		if c := s.Combatant(); c != nil && strings.EqualFold(c.Name, name) {
			return s
		}
	}
	return nil
}

func (l *Lobby) hasInviteLocked(s *session) bool {
	for _, inv := range l.invites {
		if inv.from == s || inv.to == s {
			return true
		}
	}
	return false
}

func (l *Lobby) sessionFor(combatantID string) *session {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.sessions {
		if s.combatantID() == combatantID {
			return s
		}
	}
	return nil
}

func (l *Lobby) randomTemplate() (*roster.Template, error) {
	templates := l.roster.Templates()
	if len(templates) == 0 {
		return nil, ErrNoBots
	}
	return templates[l.src.Intn(len(templates))], nil
}

// battleCopy returns the in-battle copy of c at full configured health.
func (l *Lobby) battleCopy(c *combatant.Combatant) *combatant.Combatant {
	cp := c.Clone()
	cp.HP = l.cfg.StartingHP
	return cp
}

func (l *Lobby) startHumanBattle(a, b *session) error {
	return l.start(
		battle.Participant{Combatant: l.battleCopy(a.Combatant()), Actor: battle.NewInteractive(l, l.cfg.InputTimeout)},
		battle.Participant{Combatant: l.battleCopy(b.Combatant()), Actor: battle.NewInteractive(l, l.cfg.InputTimeout)},
		[]*session{a, b},
	)
}

func (l *Lobby) startBotBattle(s *session, tmpl *roster.Template) error {
	bot := l.botParticipant(tmpl)
	s.notify(telnet.Colorf(telnet.Cyan, "%s accepts your challenge.", bot.Combatant.Name))
	return l.start(
		battle.Participant{Combatant: l.battleCopy(s.Combatant()), Actor: battle.NewInteractive(l, l.cfg.InputTimeout)},
		bot,
		[]*session{s},
	)
}

// botParticipant spawns tmpl as a randomly declaring bot with its taunt
// script attached, if any.
func (l *Lobby) botParticipant(tmpl *roster.Template) battle.Participant {
	p := battle.Participant{
		Combatant: l.battleCopy(l.roster.Spawn(tmpl, l.src)),
		Actor:     battle.NewScripted(l.src),
	}
	if tmpl.Taunt == "" || l.scripts == nil {
		return p
	}
	taunter, err := l.scripts.Taunter(tmpl.Taunt)
	if err != nil {
		l.logger.Warn("bot taunt unavailable, bot stays silent",
			zap.String("bot", tmpl.ID),
			zap.String("taunt", tmpl.Taunt),
			zap.Error(err),
		)
		return p
	}
	p.Taunter = taunter
	return p
}

// start registers and launches a battle between a and b, narrating it to watchers.
func (l *Lobby) start(a, b battle.Participant, watchers []*session) error {
	view := &battleView{watchers: watchers}
	bt := battle.New(a, b,
		dice.NewLoggedRoller(l.src, l.logger),
		view, view,
		battle.WithLogger(l.logger),
		battle.WithPacing(l.cfg.Pacing),
	)

	l.mu.Lock()
	if l.closing {
		l.mu.Unlock()
		return ErrShuttingDown
	}
	if err := l.registry.Add(bt); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("starting battle: %w", err)
	}
	l.wg.Add(1)
	l.mu.Unlock()

	for _, w := range watchers {
		w.setBattle(bt.ID)
	}
	go l.run(bt, watchers)
	return nil
}

func (l *Lobby) run(bt *battle.Battle, watchers []*session) {
	defer l.wg.Done()
	_, err := bt.Run(l.ctx)
	l.registry.Remove(bt.ID)
	for _, w := range watchers {
		w.setBattle("")
		if err != nil {
			w.notify(telnet.Colorize(telnet.Red, "The battle was aborted."))
		}
		_ = w.conn.WritePrompt(prompt)
	}
}

// RequestChoice implements battle.InputBroker by prompting the combatant's session.
func (l *Lobby) RequestChoice(ctx context.Context, c *combatant.Combatant, options []string, timeout time.Duration) (string, error) {
	s := l.sessionFor(c.ID)
	if s == nil {
		return "", battle.ErrNoResponse
	}
	return s.request(ctx, "Choose your attack: "+strings.Join(options, " or "), options, matchOption(options), timeout)
}

// RequestRollTrigger implements battle.InputBroker.
func (l *Lobby) RequestRollTrigger(ctx context.Context, c *combatant.Combatant, timeout time.Duration) error {
	s := l.sessionFor(c.ID)
	if s == nil {
		return battle.ErrNoResponse
	}
	options := []string{"roll"}
	_, err := s.request(ctx, "Type `roll` to roll for initiative.", options, matchOption(options), timeout)
	return err
}

// ActiveBattles returns the number of running battles.
func (l *Lobby) ActiveBattles() int {
	return l.registry.Len()
}

// Close cancels open invitations, aborts running battles and waits for them.
//
// Postcondition: No battle goroutine started by l is running.
func (l *Lobby) Close() {
	l.mu.Lock()
	l.closing = true
	for id, inv := range l.invites {
		inv.timer.Stop()
		delete(l.invites, id)
	}
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
}
