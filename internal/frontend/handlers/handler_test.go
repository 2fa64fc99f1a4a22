package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/duel/internal/game/combatant"
	"github.com/cory-johannsen/duel/internal/testutil"
)

const readTimeout = 5 * time.Second

// connect dials the fixture and waits for the banner.
func (f *fixture) connect(t *testing.T) *testutil.TelnetClient {
	t.Helper()
	c := testutil.NewTelnetClient(t, f.addr)
	c.ReadUntil("to disconnect.", readTimeout)
	return c
}

// login connects and logs in, waiting for the post-login greeting.
func (f *fixture) login(t *testing.T, username, password string) *testutil.TelnetClient {
	t.Helper()
	c := f.connect(t)
	c.Send("login " + username + " " + password)
	c.ReadUntilAny(readTimeout, "Welcome back", UnregisteredMessage)
	return c
}

func TestHandleSession_RegisterAndLogin(t *testing.T) {
	f := newFixture(t, testBattleConfig())
	c := f.connect(t)

	c.Exchange("register al pw", "Usage: register <username> <password>", readTimeout)
	c.Exchange("register al secret1", "Username must be 3-32 characters.", readTimeout)
	c.Exchange("register alice pw", "Password must be at least 6 characters.", readTimeout)
	c.Exchange("register alice secret1", "Account created: alice.", readTimeout)
	c.Exchange("register alice secret1", "That username is already taken.", readTimeout)

	c.Exchange("login alice secret1", UnregisteredMessage, readTimeout)
	c.Exchange("quit", "Goodbye!", readTimeout)
}

func TestHandleSession_LoginFailures(t *testing.T) {
	f := newFixture(t, testBattleConfig())
	f.seedPlayer(t, "alice", "secret1", "Alice")
	c := f.connect(t)

	c.Exchange("login", "Usage: login <username> [password]", readTimeout)
	c.Exchange("login nobody secret1", "Account not found.", readTimeout)
	c.Exchange("login alice wrong", "Invalid password.", readTimeout)
	c.Exchange("look", "Unknown command: look. Please log in first.", readTimeout)
	c.Exchange("login alice secret1", "Welcome back, Alice! (level 1)", readTimeout)
}

func TestHandleSession_PasswordPrompt(t *testing.T) {
	f := newFixture(t, testBattleConfig())
	f.seedPlayer(t, "alice", "secret1", "Alice")
	c := f.connect(t)

	c.Exchange("login alice", "Password: ", readTimeout)
	c.Exchange("secret1", "Welcome back, Alice!", readTimeout)
}

func TestHandleSession_DuplicateLogin(t *testing.T) {
	f := newFixture(t, testBattleConfig())
	f.seedPlayer(t, "alice", "secret1", "Alice")
	f.login(t, "alice", "secret1")

	second := f.connect(t)
	second.Exchange("login alice secret1", "That account is already connected.", readTimeout)
}

func TestHandleSession_UnregisteredCommands(t *testing.T) {
	f := newFixture(t, testBattleConfig())
	f.seedPlayer(t, "alice", "secret1", "")
	c := f.login(t, "alice", "secret1")

	c.Exchange("profile", UnregisteredMessage, readTimeout)
	c.Exchange("battle bot", UnregisteredMessage, readTimeout)
	c.Exchange("battle", "Usage: battle <name|bot>", readTimeout)
	c.Exchange("dance", "Unknown command: dance. Type 'help' for available commands.", readTimeout)
	assert.Equal(t, 0, f.lobby.ActiveBattles())
}

func TestHandleSession_CreateCombatant(t *testing.T) {
	f := newFixture(t, testBattleConfig())
	acct := f.seedPlayer(t, "alice", "secret1", "")
	c := f.login(t, "alice", "secret1")

	c.Exchange("create", "Name: ", readTimeout)
	c.Exchange("A", "Names must be 2-32 characters.", readTimeout)
	c.ReadUntil("Name: ", readTimeout)
	c.Exchange("bot", "That name is reserved.", readTimeout)
	c.ReadUntil("Name: ", readTimeout)
	c.Exchange("grunt", "That name belongs to a bot.", readTimeout)
	c.ReadUntil("Name: ", readTimeout)
	c.Exchange("Alice", "Description (optional): ", readTimeout)
	c.Exchange("Quick with a knife", "Image URL (optional): ", readTimeout)
	c.Exchange("ftp://example.com/a.png", "The image must be an http:// or https:// URL.", readTimeout)
	c.ReadUntil("Image URL (optional): ", readTimeout)
	c.Exchange("https://example.com/a.png", "(10 points left)", readTimeout)
	c.Exchange("strength", `Unknown stat "strength".`, readTimeout)

	answers := []string{"speed", "s", "m", "melee", "m", "r", "ranged", "d", "defense", "d"}
	for _, a := range answers {
		c.ReadUntil("Spend a point on speed, melee, ranged or defense: ", readTimeout)
		c.Send(a)
	}
	c.ReadUntil("Your combatant is ready. Type 'battle bot' to fight.", readTimeout)

	stored := f.combatants.get(acct.ID)
	require.NotNil(t, stored)
	assert.Equal(t, "Alice", stored.Name)
	assert.Equal(t, "Quick with a knife", stored.Description)
	assert.Equal(t, "https://example.com/a.png", stored.ImageURL)
	assert.Equal(t, 2, stored.Speed)
	assert.Equal(t, 3, stored.Melee)
	assert.Equal(t, 2, stored.Ranged)
	assert.Equal(t, 3, stored.Defense)
	assert.Equal(t, combatant.StatPoints, stored.TotalStats())

	c.Exchange("create", "You already fight as Alice.", readTimeout)
	c.Exchange("profile", "Quick with a knife", readTimeout)
}

func TestHandleSession_CreateCancelled(t *testing.T) {
	f := newFixture(t, testBattleConfig())
	acct := f.seedPlayer(t, "alice", "secret1", "")
	c := f.login(t, "alice", "secret1")

	c.Exchange("create", "Name: ", readTimeout)
	c.Exchange("Alice", "Description (optional): ", readTimeout)
	c.Exchange("cancel", "Creation cancelled.", readTimeout)
	assert.Nil(t, f.combatants.get(acct.ID))
	c.Exchange("profile", UnregisteredMessage, readTimeout)
}

func TestHandleSession_CreateNameTaken(t *testing.T) {
	f := newFixture(t, testBattleConfig())
	f.seedPlayer(t, "bob", "secret1", "Bob")
	acct := f.seedPlayer(t, "robert", "secret1", "")
	c := f.login(t, "robert", "secret1")

	c.Exchange("create", "Name: ", readTimeout)
	c.Exchange("BOB", "Description (optional): ", readTimeout)
	c.Exchange("", "Image URL (optional): ", readTimeout)
	c.Send("")
	for i := 0; i < combatant.StatPoints; i++ {
		c.ReadUntil("Spend a point on speed, melee, ranged or defense: ", readTimeout)
		c.Send("m")
	}
	c.ReadUntil("The name BOB is already taken.", readTimeout)
	assert.Nil(t, f.combatants.get(acct.ID))
}

func TestHandleSession_ProfileByName(t *testing.T) {
	f := newFixture(t, testBattleConfig())
	f.seedPlayer(t, "alice", "secret1", "Alice")
	f.seedPlayer(t, "bob", "secret1", "Bob")
	c := f.login(t, "alice", "secret1")

	c.Exchange("profile bob", "Bob", readTimeout)
	c.ReadUntil("Level 1", readTimeout)
	c.Exchange("profile Zed", `No combatant named "Zed".`, readTimeout)
}

func TestHandleSession_ChallengeMessages(t *testing.T) {
	f := newFixture(t, testBattleConfig())
	f.seedPlayer(t, "alice", "secret1", "Alice")
	f.seedPlayer(t, "bob", "secret1", "Bob")
	c := f.login(t, "alice", "secret1")

	c.Exchange("battle Bob", "Bob is not online.", readTimeout)
	c.Exchange("battle Zed", `No combatant or bot named "Zed". Type 'bots' to list bots.`, readTimeout)
	c.Exchange("battle alice", "You cannot battle yourself.", readTimeout)
	c.Exchange("accept", "You have no pending invitation.", readTimeout)
	c.Exchange("reject", "You have no pending invitation.", readTimeout)
}

func TestHandleSession_WhoBotsHelp(t *testing.T) {
	f := newFixture(t, testBattleConfig())
	f.seedPlayer(t, "alice", "secret1", "Alice")
	f.seedPlayer(t, "bob", "secret1", "Bob")
	c := f.login(t, "alice", "secret1")
	f.login(t, "bob", "secret1")

	c.Exchange("who", "Online: Alice, Bob", readTimeout)
	c.Exchange("bots", "Bots:", readTimeout)
	c.ReadUntil("Grunt", readTimeout)
	c.ReadUntil("Wildcard", readTimeout)
	c.Exchange("help", "Available commands:", readTimeout)
	c.ReadUntil("Challenge a player or a bot", readTimeout)
}

func TestHandleSession_BotBattleUnresponsive(t *testing.T) {
	cfg := testBattleConfig()
	cfg.InputTimeout = 200 * time.Millisecond
	f := newFixture(t, cfg)
	f.seedPlayer(t, "alice", "secret1", "Alice")
	c := f.login(t, "alice", "secret1")

	c.Exchange("battle Grunt", "Grunt accepts your challenge.", readTimeout)
	c.ReadUntil("Type `roll` to roll for initiative.", readTimeout)
	c.ReadUntil("Time is up.", readTimeout)
	c.ReadUntil("Alice is unresponsive. The battle is over.", readTimeout)

	require.Eventually(t, func() bool { return f.lobby.ActiveBattles() == 0 },
		readTimeout, 5*time.Millisecond)
	c.Exchange("who", "Online: Alice", readTimeout)
}

func TestHandleSession_BotBattlePlaythrough(t *testing.T) {
	f := newFixture(t, testBattleConfig())
	f.seedPlayer(t, "alice", "secret1", "Alice")
	c := f.login(t, "alice", "secret1")

	c.Exchange("battle grunt", "Grunt accepts your challenge.", readTimeout)
	c.ReadUntil("-- Pre-Game --", readTimeout)
	for {
		_, match := c.ReadUntilAny(readTimeout,
			"Type `roll` to roll for initiative.",
			"Choose your attack: Melee or Ranged",
			"won the battle in",
			"is unresponsive",
			"The battle was aborted.",
		)
		switch match {
		case "Type `roll` to roll for initiative.":
			c.Send("roll")
		case "Choose your attack: Melee or Ranged":
			c.Send("melee")
		case "won the battle in":
			require.Eventually(t, func() bool { return f.lobby.ActiveBattles() == 0 },
				readTimeout, 5*time.Millisecond)
			c.Exchange("battle Wildcard", "Wildcard accepts your challenge.", readTimeout)
			return
		default:
			t.Fatalf("battle ended with %q", match)
		}
	}
}

func TestHandleSession_InvalidAnswerDuringBattle(t *testing.T) {
	f := newFixture(t, testBattleConfig())
	f.seedPlayer(t, "alice", "secret1", "Alice")
	c := f.login(t, "alice", "secret1")

	c.Exchange("battle Grunt", "Type `roll` to roll for initiative.", readTimeout)
	c.Exchange("who", "Please answer roll.", readTimeout)
	c.Send("roll")
	c.ReadUntil("rolled", readTimeout)
}

func TestHandleSession_InvitationRejected(t *testing.T) {
	f := newFixture(t, testBattleConfig())
	f.seedPlayer(t, "alice", "secret1", "Alice")
	f.seedPlayer(t, "bob", "secret1", "Bob")
	alice := f.login(t, "alice", "secret1")
	bob := f.login(t, "bob", "secret1")

	alice.Exchange("battle bob", "Invitation sent to Bob.", readTimeout)
	bob.ReadUntil("Alice challenges you to a duel!", readTimeout)
	alice.Exchange("battle bob", "An invitation is already pending.", readTimeout)

	bob.Exchange("reject", "You rejected the invitation from Alice.", readTimeout)
	alice.ReadUntil("Bob rejected the battle invitation", readTimeout)
	assert.Equal(t, 0, f.lobby.ActiveBattles())
}

func TestHandleSession_InvitationExpires(t *testing.T) {
	cfg := testBattleConfig()
	cfg.InviteTimeout = 200 * time.Millisecond
	f := newFixture(t, cfg)
	f.seedPlayer(t, "alice", "secret1", "Alice")
	f.seedPlayer(t, "bob", "secret1", "Bob")
	alice := f.login(t, "alice", "secret1")
	bob := f.login(t, "bob", "secret1")

	alice.Exchange("battle Bob", "Invitation sent to Bob.", readTimeout)
	alice.ReadUntil("Bob rejected the battle invitation", readTimeout)
	bob.ReadUntil("The invitation from Alice has expired.", readTimeout)
	bob.Exchange("accept", "You have no pending invitation.", readTimeout)
}

func TestHandleSession_InvitationAcceptedThenUnresponsive(t *testing.T) {
	cfg := testBattleConfig()
	cfg.InputTimeout = 300 * time.Millisecond
	f := newFixture(t, cfg)
	f.seedPlayer(t, "alice", "secret1", "Alice")
	f.seedPlayer(t, "bob", "secret1", "Bob")
	alice := f.login(t, "alice", "secret1")
	bob := f.login(t, "bob", "secret1")

	alice.Exchange("battle Bob", "Invitation sent to Bob.", readTimeout)
	bob.ReadUntil("Type `accept` or `reject`", readTimeout)
	bob.Send("accept")

	alice.ReadUntil("Type `roll` to roll for initiative.", readTimeout)
	alice.ReadUntil("Alice is unresponsive. The battle is over.", readTimeout)
	bob.ReadUntil("Alice is unresponsive. The battle is over.", readTimeout)
}

func TestHandleSession_DisconnectDuringBattle(t *testing.T) {
	cfg := testBattleConfig()
	cfg.InputTimeout = 10 * time.Second
	f := newFixture(t, cfg)
	f.seedPlayer(t, "alice", "secret1", "Alice")
	f.seedPlayer(t, "bob", "secret1", "Bob")
	alice := f.login(t, "alice", "secret1")
	bob := f.login(t, "bob", "secret1")

	alice.Exchange("battle Bob", "Invitation sent to Bob.", readTimeout)
	bob.ReadUntil("Type `accept` or `reject`", readTimeout)
	bob.Send("accept")
	alice.ReadUntil("Type `roll` to roll for initiative.", readTimeout)

	alice.Close()
	bob.ReadUntil("Alice is unresponsive. The battle is over.", readTimeout)
	require.Eventually(t, func() bool { return f.lobby.ActiveBattles() == 0 },
		readTimeout, 5*time.Millisecond)
}
