package handlers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cory-johannsen/duel/internal/frontend/telnet"
	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/game/combatant"
	"github.com/cory-johannsen/duel/internal/storage/postgres"
)

// pendingInput is an outstanding battle request waiting for a matching line.
type pendingInput struct {
	options []string
	match   func(line string) (string, bool)
	reply   chan string
}

// session is the state of one logged-in telnet client. Its methods are safe
// for concurrent use by the command loop, the lobby and battle goroutines.
type session struct {
	conn    *telnet.Conn
	account postgres.Account

	mu        sync.Mutex
	combatant *combatant.Combatant
	battleID  string
	pending   *pendingInput

	closed    chan struct{}
	closeOnce sync.Once
}

func newSession(conn *telnet.Conn, account postgres.Account) *session {
	return &session{conn: conn, account: account, closed: make(chan struct{})}
}

// Combatant returns the session's profile, or nil if none has been created.
func (s *session) Combatant() *combatant.Combatant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.combatant
}

func (s *session) setCombatant(c *combatant.Combatant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.combatant = c
}

// combatantID returns the profile id, or "" when unregistered.
func (s *session) combatantID() string {
	if c := s.Combatant(); c != nil {
		return c.ID
	}
	return ""
}

// displayName returns the combatant name, falling back to the username.
func (s *session) displayName() string {
	if c := s.Combatant(); c != nil {
		return c.Name
	}
	return s.account.Username
}

func (s *session) setBattle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.battleID = id
}

func (s *session) inBattle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.battleID != ""
}

// notify writes lines to the client as one block. Write failures are
// ignored; a broken connection is noticed by the session's reader.
func (s *session) notify(lines ...string) {
	_ = s.conn.WriteBlock(lines...)
}

func (s *session) close() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// request prompts the client and waits for a line accepted by match.
//
// Postcondition: Returns the matched value, battle.ErrNoResponse when timeout
// elapses or the session closes first, or ctx.Err().
func (s *session) request(ctx context.Context, prompt string, options []string, match func(string) (string, bool), timeout time.Duration) (string, error) {
	p := &pendingInput{options: options, match: match, reply: make(chan string, 1)}

	s.mu.Lock()
	s.pending = p
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.pending == p {
			s.pending = nil
		}
		s.mu.Unlock()
	}()

	s.notify(telnet.Colorf(telnet.BrightWhite, "%s (%ds)", prompt, int(timeout.Seconds())))

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v := <-p.reply:
		return v, nil
	case <-timer.C:
		s.notify(telnet.Colorize(telnet.Red, "Time is up."))
		return "", battle.ErrNoResponse
	case <-s.closed:
		return "", battle.ErrNoResponse
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// deliver offers line to an outstanding request.
//
// Postcondition: Returns true if a request was waiting, whether or not the
// line answered it.
func (s *session) deliver(line string) bool {
	s.mu.Lock()
	p := s.pending
	if p == nil {
		s.mu.Unlock()
		return false
	}
	v, ok := p.match(line)
	if ok {
		s.pending = nil
	}
	s.mu.Unlock()

	if ok {
		p.reply <- v
		return true
	}
	s.notify(telnet.Colorf(telnet.Yellow, "Please answer %s.", strings.Join(p.options, " or ")))
	return true
}

// matchOption accepts an option by full name or first letter, ignoring case.
func matchOption(options []string) func(string) (string, bool) {
	return func(line string) (string, bool) {
		in := strings.ToLower(strings.TrimSpace(line))
		if in == "" {
			return "", false
		}
		for _, opt := range options {
			lower := strings.ToLower(opt)
			if in == lower || (len(in) == 1 && in[0] == lower[0]) {
				return opt, true
			}
		}
		return "", false
	}
}
