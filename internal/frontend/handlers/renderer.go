package handlers

import (
	"fmt"
	"strings"

	"github.com/cory-johannsen/duel/internal/frontend/telnet"
	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/game/combatant"
)

const barWidth = 20

// RenderSnapshot formats a battle Snapshot as colored Telnet lines: a phase
// heading, one status line per team and the narration text.
func RenderSnapshot(s battle.Snapshot) []string {
	heading := s.Phase.String()
	if s.Round > 0 {
		heading = fmt.Sprintf("Round %d: %s", s.Round, heading)
	}

	nameWidth := 0
	for _, tv := range s.Teams {
		if n := len([]rune(tv.Name)); n > nameWidth {
			nameWidth = n
		}
	}

	lines := []string{"", telnet.Colorf(telnet.Bold+telnet.BrightYellow, "-- %s --", heading)}
	for _, tv := range s.Teams {
		lines = append(lines, renderTeamLine(tv, tv.ID == s.AttackerID, nameWidth))
	}
	for _, text := range strings.Split(s.Text, "\n") {
		if text = strings.TrimSpace(text); text != "" {
			lines = append(lines, telnet.Colorize(telnet.White, "  "+text))
		}
	}
	return lines
}

func renderTeamLine(tv battle.TeamView, attacking bool, nameWidth int) string {
	marker := "  "
	if attacking {
		marker = telnet.Colorize(telnet.BrightRed, "> ")
	}
	name := telnet.PadRight(telnet.Colorize(telnet.BrightCyan, tv.Name), nameWidth)
	return fmt.Sprintf("%s%s %s  %s",
		marker, name,
		telnet.HealthBar(tv.HP, tv.InitialHP, barWidth),
		telnet.Colorf(telnet.Dim, "SPD %d  MEL %d  RNG %d  DEF %d", tv.Speed, tv.Melee, tv.Ranged, tv.Defense),
	)
}

// RenderOutcome formats the terminal message of a battle.
func RenderOutcome(o battle.Outcome) string {
	if o.Result == battle.Unresponsive {
		return telnet.Colorf(telnet.Red, "%s is unresponsive. The battle is over.", o.CombatantName)
	}
	rounds := "rounds"
	if o.Rounds == 1 {
		rounds = "round"
	}
	return telnet.Colorf(telnet.BrightGreen, "%s won the battle in %d %s!", o.CombatantName, o.Rounds, rounds)
}

// RenderProfile formats a combatant profile.
func RenderProfile(c *combatant.Combatant) []string {
	lines := []string{
		telnet.Colorize(telnet.Bold+telnet.BrightYellow, c.Name),
	}
	if c.Description != "" {
		lines = append(lines, telnet.Colorize(telnet.White, c.Description))
	}
	if c.ImageURL != "" {
		lines = append(lines, telnet.Colorf(telnet.Dim, "Image: %s", c.ImageURL))
	}
	lines = append(lines,
		telnet.Colorf(telnet.Cyan, "Level %d  (%d XP)  Coin %d", c.Level(), c.XP, c.Coin),
		"Health  "+telnet.HealthBar(c.HP, combatant.StartingHP, barWidth),
	)
	for _, s := range combatant.Stats {
		lines = append(lines, fmt.Sprintf("  %s %d", telnet.PadRight(telnet.Colorize(telnet.Green, s.String()), 8), c.Get(s)))
	}
	return lines
}

// RenderAllocation shows the stats being built and the points left to spend.
func RenderAllocation(c *combatant.Combatant, remaining int) string {
	parts := make([]string, 0, len(combatant.Stats))
	for _, s := range combatant.Stats {
		parts = append(parts, fmt.Sprintf("%s %d", s, c.Get(s)))
	}
	return telnet.Colorf(telnet.Cyan, "%s  (%d points left)", strings.Join(parts, ", "), remaining)
}
