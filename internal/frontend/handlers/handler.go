// Package handlers provides Telnet session handling and command processing
// for the duel server.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cory-johannsen/duel/internal/frontend/telnet"
	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/game/combatant"
	"github.com/cory-johannsen/duel/internal/storage/postgres"
)

// UnregisteredMessage is shown to players who have not created a combatant.
const UnregisteredMessage = "Unregistered user. Please use `create` command"

var prompt = telnet.Colorize(telnet.BrightWhite, "> ")

// AccountStore defines the account persistence operations required by SessionHandler.
type AccountStore interface {
	Create(ctx context.Context, username, password string) (postgres.Account, error)
	Authenticate(ctx context.Context, username, password string) (postgres.Account, error)
}

// CombatantStore defines the combatant persistence operations required by SessionHandler.
type CombatantStore interface {
	Create(ctx context.Context, accountID int64, c *combatant.Combatant) (*combatant.Combatant, error)
	LoadByAccount(ctx context.Context, accountID int64) (*combatant.Combatant, error)
	LoadByName(ctx context.Context, name string) (*combatant.Combatant, error)
}

const welcomeBanner = "\r\n" + telnet.Bold + telnet.BrightCyan +
	"  ____  _            ____             _\r\n" +
	" |  _ \\(_) ___ ___  |  _ \\ _   _  ___| |\r\n" +
	" | | | | |/ __/ _ \\ | | | | | | |/ _ \\ |\r\n" +
	" | |_| | | (_|  __/ | |_| | |_| |  __/ |\r\n" +
	" |____/|_|\\___\\___| |____/ \\__,_|\\___|_|\r\n" + telnet.Reset + "\r\n" +
	"  Type " + telnet.Green + "login <username> [password]" + telnet.Reset + " to connect.\r\n" +
	"  Type " + telnet.Green + "register <username> <password>" + telnet.Reset + " to create an account.\r\n" +
	"  Type " + telnet.Green + "quit" + telnet.Reset + " to disconnect.\r\n"

// SessionHandler implements telnet.SessionHandler: it authenticates the
// client and then runs the duel command loop.
type SessionHandler struct {
	accounts   AccountStore
	combatants CombatantStore
	lobby      *Lobby
	statPoints int
	logger     *zap.Logger
}

// NewSessionHandler creates a SessionHandler.
//
// Precondition: accounts, combatants, lobby and logger must be non-nil; statPoints >= 0.
// Postcondition: Returns a SessionHandler ready to handle sessions.
func NewSessionHandler(accounts AccountStore, combatants CombatantStore, lobby *Lobby, statPoints int, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		accounts:   accounts,
		combatants: combatants,
		lobby:      lobby,
		statPoints: statPoints,
		logger:     logger,
	}
}

// HandleSession implements telnet.SessionHandler.
//
// Postcondition: Returns nil on clean quit, or an error if the session ended abnormally.
func (h *SessionHandler) HandleSession(ctx context.Context, conn *telnet.Conn) error {
	start := time.Now()
	addr := conn.RemoteAddr().String()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteLine(telnet.Colorize(telnet.Yellow, "Server shutting down. Goodbye!"))
		_ = conn.Close()
	})
	defer stop()

	if err := conn.Write([]byte(welcomeBanner)); err != nil {
		return fmt.Errorf("sending welcome: %w", err)
	}

	s, err := h.authenticate(ctx, conn)
	if err != nil || s == nil {
		return err
	}
	defer h.lobby.Leave(s)

	h.logger.Info("player logged in",
		zap.String("remote_addr", addr),
		zap.String("username", s.account.Username),
		zap.Duration("login_time", time.Since(start)),
	)

	c, err := h.combatants.LoadByAccount(ctx, s.account.ID)
	switch {
	case err == nil:
		s.setCombatant(c)
		_ = conn.WriteLine(telnet.Colorf(telnet.BrightGreen, "Welcome back, %s! (level %d)", c.Name, c.Level()))
	case errors.Is(err, postgres.ErrCombatantNotFound):
		_ = conn.WriteLine(telnet.Colorize(telnet.Yellow, UnregisteredMessage))
	default:
		h.logger.Error("loading combatant", zap.Int64("account_id", s.account.ID), zap.Error(err))
		_ = conn.WriteLine(telnet.Colorize(telnet.Red, "An internal error occurred loading your combatant."))
	}

	err = h.commandLoop(ctx, s)
	h.logger.Info("session closed",
		zap.String("remote_addr", addr),
		zap.String("username", s.account.Username),
		zap.Duration("session_duration", time.Since(start)),
	)
	return err
}

// authenticate runs the login loop.
//
// Postcondition: Returns a session registered with the lobby, (nil, nil) when
// the client quits, or an error when the connection fails.
func (h *SessionHandler) authenticate(ctx context.Context, conn *telnet.Conn) (*session, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := conn.WritePrompt(prompt); err != nil {
			return nil, fmt.Errorf("writing prompt: %w", err)
		}
		line, err := conn.ReadLine()
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		switch cmd {
		case "quit", "exit":
			_ = conn.WriteLine(telnet.Colorize(telnet.Cyan, "Goodbye!"))
			return nil, nil
		case "login":
			acct, err := h.handleLogin(ctx, conn, args)
			if err != nil {
				return nil, err
			}
			if acct.ID == 0 {
				continue
			}
			s := newSession(conn, acct)
			if err := h.lobby.Join(s); err != nil {
				if errors.Is(err, ErrAlreadyConnected) {
					_ = conn.WriteLine(telnet.Colorize(telnet.Red, "That account is already connected."))
					continue
				}
				_ = conn.WriteLine(telnet.Colorize(telnet.Red, "The server is shutting down."))
				return nil, err
			}
			return s, nil
		case "register":
			h.handleRegister(ctx, conn, args)
		case "help":
			_ = conn.Write([]byte(welcomeBanner))
		default:
			_ = conn.WriteLine(telnet.Colorf(telnet.Red, "Unknown command: %s. Please log in first.", cmd))
		}
	}
}

// handleLogin authenticates a player, prompting for a password with echo
// off when it was not given inline.
//
// Postcondition: Returns (acct, nil) on success, a zero Account if the failure
// was shown to the user, or an error if the connection failed.
func (h *SessionHandler) handleLogin(ctx context.Context, conn *telnet.Conn, args []string) (postgres.Account, error) {
	if len(args) < 1 {
		_ = conn.WriteLine(telnet.Colorize(telnet.Red, "Usage: login <username> [password]"))
		return postgres.Account{}, nil
	}
	username := args[0]
	var password string
	if len(args) > 1 {
		password = args[1]
	} else {
		if err := conn.WritePrompt("Password: "); err != nil {
			return postgres.Account{}, err
		}
		pw, err := conn.ReadPassword()
		if err != nil {
			return postgres.Account{}, fmt.Errorf("reading password: %w", err)
		}
		password = pw
	}

	acct, err := h.accounts.Authenticate(ctx, username, password)
	if err != nil {
		switch {
		case errors.Is(err, postgres.ErrAccountNotFound):
			_ = conn.WriteLine(telnet.Colorize(telnet.Red, "Account not found. Use 'register' to create one."))
		case errors.Is(err, postgres.ErrInvalidCredentials):
			_ = conn.WriteLine(telnet.Colorize(telnet.Red, "Invalid password."))
		default:
			h.logger.Error("authentication error", zap.Error(err))
			_ = conn.WriteLine(telnet.Colorize(telnet.Red, "An internal error occurred. Please try again."))
		}
		return postgres.Account{}, nil
	}
	return acct, nil
}

func (h *SessionHandler) handleRegister(ctx context.Context, conn *telnet.Conn, args []string) {
	if len(args) < 2 {
		_ = conn.WriteLine(telnet.Colorize(telnet.Red, "Usage: register <username> <password>"))
		return
	}
	username, password := args[0], args[1]
	if len(username) < 3 || len(username) > 32 {
		_ = conn.WriteLine(telnet.Colorize(telnet.Red, "Username must be 3-32 characters."))
		return
	}
	if len(password) < 6 {
		_ = conn.WriteLine(telnet.Colorize(telnet.Red, "Password must be at least 6 characters."))
		return
	}

	acct, err := h.accounts.Create(ctx, username, password)
	if err != nil {
		if errors.Is(err, postgres.ErrAccountExists) {
			_ = conn.WriteLine(telnet.Colorize(telnet.Red, "That username is already taken."))
			return
		}
		h.logger.Error("registration error", zap.Error(err))
		_ = conn.WriteLine(telnet.Colorize(telnet.Red, "An internal error occurred. Please try again."))
		return
	}
	_ = conn.WriteLine(telnet.Colorf(telnet.BrightGreen, "Account created: %s. You may now 'login'.", acct.Username))
}

// commandLoop reads commands until the client quits or disconnects. While a
// battle request is outstanding every line is offered to it first.
func (h *SessionHandler) commandLoop(ctx context.Context, s *session) error {
	in := s.conn.StartLineReader(ctx)
	for {
		if !s.inBattle() {
			_ = s.conn.WritePrompt(prompt)
		}
		line, err := nextLine(ctx, in)
		if err != nil {
			return err
		}
		if s.deliver(line) {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		quit, err := h.dispatch(ctx, s, in, strings.ToLower(parts[0]), parts[1:])
		if err != nil || quit {
			return err
		}
	}
}

func nextLine(ctx context.Context, in *telnet.LineReader) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-in.Lines():
		if !ok {
			if err := in.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return line, nil
	}
}

// dispatch runs one command.
//
// Postcondition: Returns quit == true when the client asked to leave.
func (h *SessionHandler) dispatch(ctx context.Context, s *session, in *telnet.LineReader, cmd string, args []string) (bool, error) {
	switch cmd {
	case "quit", "exit":
		s.notify(telnet.Colorize(telnet.Cyan, "Goodbye!"))
		return true, nil
	case "help":
		s.notify(helpLines()...)
	case "create":
		return false, h.create(ctx, s, in)
	case "profile":
		h.profile(ctx, s, strings.Join(args, " "))
	case "battle", "challenge":
		if len(args) == 0 {
			s.notify(telnet.Colorize(telnet.Red, "Usage: battle <name|bot>"))
			return false, nil
		}
		h.challenge(ctx, s, strings.Join(args, " "))
	case "accept":
		if err := h.lobby.Accept(s); err != nil {
			h.reportLobbyError(s, "", err)
		}
	case "reject":
		if err := h.lobby.Reject(s); err != nil {
			h.reportLobbyError(s, "", err)
		}
	case "who":
		names := h.lobby.Online()
		s.notify(telnet.Colorf(telnet.Cyan, "Online: %s", strings.Join(names, ", ")))
	case "bots":
		lines := []string{telnet.Colorize(telnet.BrightWhite, "Bots:")}
		for _, t := range h.lobby.Bots() {
			lines = append(lines, fmt.Sprintf("  %s  %s", telnet.PadRight(telnet.Colorize(telnet.Green, t.Name), 12), t.Description))
		}
		s.notify(lines...)
	default:
		s.notify(telnet.Colorf(telnet.Red, "Unknown command: %s. Type 'help' for available commands.", cmd))
	}
	return false, nil
}

func helpLines() []string {
	entry := func(cmd, desc string) string {
		return "  " + telnet.PadRight(telnet.Colorize(telnet.Green, cmd), 22) + desc
	}
	return []string{
		telnet.Colorize(telnet.BrightWhite, "Available commands:"),
		entry("create", "Create your combatant"),
		entry("profile [name]", "Show a combatant profile"),
		entry("battle <name|bot>", "Challenge a player or a bot"),
		entry("accept", "Accept a battle invitation"),
		entry("reject", "Reject a battle invitation"),
		entry("who", "List online combatants"),
		entry("bots", "List bots"),
		entry("help", "Show this help"),
		entry("quit", "Disconnect"),
	}
}

func (h *SessionHandler) challenge(ctx context.Context, s *session, target string) {
	err := h.lobby.Challenge(s, target)
	if err == nil {
		return
	}
	if errors.Is(err, ErrNotOnline) {
		c, lerr := h.combatants.LoadByName(ctx, target)
		switch {
		case lerr == nil:
			s.notify(telnet.Colorf(telnet.Yellow, "%s is not online.", c.Name))
		case errors.Is(lerr, postgres.ErrCombatantNotFound):
			s.notify(telnet.Colorf(telnet.Red, "No combatant or bot named %q. Type 'bots' to list bots.", target))
		default:
			h.logger.Error("looking up opponent", zap.String("name", target), zap.Error(lerr))
			s.notify(telnet.Colorize(telnet.Red, "An internal error occurred. Please try again."))
		}
		return
	}
	h.reportLobbyError(s, target, err)
}

func (h *SessionHandler) reportLobbyError(s *session, target string, err error) {
	var msg string
	switch {
	case errors.Is(err, ErrUnregistered):
		msg = UnregisteredMessage
	case errors.Is(err, battle.ErrAlreadyInBattle):
		msg = "You or your opponent are already in a battle."
	case errors.Is(err, ErrSelfChallenge):
		msg = "You cannot battle yourself."
	case errors.Is(err, ErrOpponentBusy):
		msg = fmt.Sprintf("%s is already in a battle.", target)
	case errors.Is(err, ErrInvitePending):
		msg = "An invitation is already pending."
	case errors.Is(err, ErrNoInvitation):
		msg = "You have no pending invitation."
	case errors.Is(err, ErrNotOnline):
		msg = "Your challenger is no longer online."
	case errors.Is(err, ErrNoBots):
		msg = "No bots are available."
	case errors.Is(err, ErrShuttingDown):
		msg = "The server is shutting down."
	default:
		h.logger.Error("lobby error", zap.Error(err))
		msg = "An internal error occurred. Please try again."
	}
	s.notify(telnet.Colorize(telnet.Red, msg))
}

func (h *SessionHandler) profile(ctx context.Context, s *session, name string) {
	if name == "" {
		c := s.Combatant()
		if c == nil {
			s.notify(telnet.Colorize(telnet.Yellow, UnregisteredMessage))
			return
		}
		s.notify(RenderProfile(c)...)
		return
	}
	c, err := h.combatants.LoadByName(ctx, name)
	switch {
	case err == nil:
		s.notify(RenderProfile(c)...)
	case errors.Is(err, postgres.ErrCombatantNotFound):
		s.notify(telnet.Colorf(telnet.Red, "No combatant named %q.", name))
	default:
		h.logger.Error("loading profile", zap.String("name", name), zap.Error(err))
		s.notify(telnet.Colorize(telnet.Red, "An internal error occurred. Please try again."))
	}
}

// errCancelled ends the create flow without an error reaching the session.
var errCancelled = errors.New("creation cancelled")

// create walks the player through naming a combatant and spending every
// stat point, then stores it.
func (h *SessionHandler) create(ctx context.Context, s *session, in *telnet.LineReader) error {
	if c := s.Combatant(); c != nil {
		s.notify(telnet.Colorf(telnet.Yellow, "You already fight as %s.", c.Name))
		return nil
	}
	ask := func(question string) (string, error) {
		_ = s.conn.WritePrompt(telnet.Colorize(telnet.BrightWhite, question))
		line, err := nextLine(ctx, in)
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		if strings.EqualFold(line, "cancel") {
			return "", errCancelled
		}
		return line, nil
	}

	c, err := h.buildCombatant(s, ask)
	if errors.Is(err, errCancelled) {
		s.notify(telnet.Colorize(telnet.Yellow, "Creation cancelled."))
		return nil
	}
	if err != nil {
		return err
	}

	created, err := h.combatants.Create(ctx, s.account.ID, c)
	switch {
	case err == nil:
	case errors.Is(err, postgres.ErrNameTaken):
		s.notify(telnet.Colorf(telnet.Red, "The name %s is already taken. Type 'create' to try again.", c.Name))
		return nil
	case errors.Is(err, postgres.ErrCombatantExists):
		s.notify(telnet.Colorize(telnet.Red, "You have already created a combatant."))
		return nil
	default:
		h.logger.Error("creating combatant", zap.Int64("account_id", s.account.ID), zap.Error(err))
		s.notify(telnet.Colorize(telnet.Red, "An internal error occurred. Please try again."))
		return nil
	}

	s.setCombatant(created)
	h.logger.Info("combatant created", zap.String("combatant_id", created.ID), zap.String("name", created.Name))
	s.notify(RenderProfile(created)...)
	s.notify(telnet.Colorize(telnet.BrightGreen, "Your combatant is ready. Type 'battle bot' to fight."))
	return nil
}

func (h *SessionHandler) buildCombatant(s *session, ask func(string) (string, error)) (*combatant.Combatant, error) {
	s.notify(telnet.Colorize(telnet.Cyan, "Creating your combatant. Type 'cancel' at any prompt to stop."))

	var name string
	for {
		n, err := ask("Name: ")
		if err != nil {
			return nil, err
		}
		if msg := h.checkName(n); msg != "" {
			s.notify(telnet.Colorize(telnet.Red, msg))
			continue
		}
		name = n
		break
	}
	description, err := ask("Description (optional): ")
	if err != nil {
		return nil, err
	}
	var imageURL string
	for {
		u, err := ask("Image URL (optional): ")
		if err != nil {
			return nil, err
		}
		if u == "" || strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
			imageURL = u
			break
		}
		s.notify(telnet.Colorize(telnet.Red, "The image must be an http:// or https:// URL."))
	}

	c := combatant.New("", name)
	c.Description = description
	c.ImageURL = imageURL
	alloc := combatant.NewAllocation(c, h.statPoints)
	for !alloc.Done() {
		s.notify(RenderAllocation(c, alloc.Remaining()))
		answer, err := ask("Spend a point on speed, melee, ranged or defense: ")
		if err != nil {
			return nil, err
		}
		st, err := combatant.ParseStat(answer)
		if err != nil {
			s.notify(telnet.Colorf(telnet.Red, "Unknown stat %q.", answer))
			continue
		}
		_ = alloc.Spend(st)
	}
	return c, nil
}

// checkName returns a message explaining why name is unusable, or "".
func (h *SessionHandler) checkName(name string) string {
	n := utf8.RuneCountInString(name)
	switch {
	case n < 2 || n > 32:
		return "Names must be 2-32 characters."
	case strings.EqualFold(name, "bot"):
		return "That name is reserved."
	}
	if _, isBot := h.lobby.roster.Lookup(name); isBot {
		return "That name belongs to a bot."
	}
	return ""
}
