// Package main runs offline bot-versus-bot duels with seeded dice and prints
// the narration, for replaying battles and balancing bot stats.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/cory-johannsen/duel/internal/config"
	"github.com/cory-johannsen/duel/internal/frontend/handlers"
	"github.com/cory-johannsen/duel/internal/frontend/telnet"
	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/game/dice"
	"github.com/cory-johannsen/duel/internal/game/roster"
	"github.com/cory-johannsen/duel/internal/observability"
	"github.com/cory-johannsen/duel/internal/scripting"
)

// options controls one simulation run.
type options struct {
	A, B    string // template ids; empty picks at random
	Battles int
	Seed    int64
	Quiet   bool // print only the outcomes
	Color   bool
}

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	a := flag.String("a", "", "first bot template id (default random)")
	b := flag.String("b", "", "second bot template id (default random)")
	n := flag.Int("n", 1, "number of battles")
	seed := flag.Int64("seed", 0, "dice seed (0 = random)")
	quiet := flag.Bool("quiet", false, "print only outcomes and the tally")
	color := flag.Bool("color", false, "keep ANSI colors in the narration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := options{A: *a, B: *b, Battles: *n, Seed: *seed, Quiet: *quiet, Color: *color}
	if err := simulate(ctx, cfg.Content, opts, os.Stdout, logger); err != nil {
		logger.Fatal("simulation failed", zap.Error(err))
	}
}

// simulate loads the bot content and runs opts.Battles battles, writing the
// narration and a win tally to w.
func simulate(ctx context.Context, content config.ContentConfig, opts options, w io.Writer, logger *zap.Logger) error {
	if opts.Battles < 1 {
		return fmt.Errorf("battle count must be at least 1, got %d", opts.Battles)
	}

	templates, err := roster.LoadTemplates(content.BotsDir)
	if err != nil {
		return fmt.Errorf("loading bot templates: %w", err)
	}
	if len(templates) == 0 {
		return fmt.Errorf("no bot templates in %s", content.BotsDir)
	}
	bots, err := roster.New(templates)
	if err != nil {
		return err
	}

	src, seed, err := dice.NewNamedSource("seeded", opts.Seed)
	if err != nil {
		return err
	}
	roller := dice.NewLoggedRoller(src, logger)
	fmt.Fprintf(w, "seed %d\n", seed)

	mgr := scripting.NewManager(roller, logger, content.InstructionLimit)
	defer mgr.Close()
	if content.ScriptsDir != "" {
		if _, err := mgr.LoadDir(ctx, content.ScriptsDir); err != nil {
			return fmt.Errorf("loading taunt scripts: %w", err)
		}
	}

	pick := func(id string) (*roster.Template, error) {
		if id == "" {
			return templates[src.Intn(len(templates))], nil
		}
		tmpl, ok := bots.Lookup(id)
		if !ok {
			return nil, fmt.Errorf("unknown bot %q", id)
		}
		return tmpl, nil
	}

	out := &printer{w: w, quiet: opts.Quiet, color: opts.Color}
	wins := make(map[string]int)
	for i := 0; i < opts.Battles; i++ {
		ta, err := pick(opts.A)
		if err != nil {
			return err
		}
		tb, err := pick(opts.B)
		if err != nil {
			return err
		}
		pa, pb := botParticipant(ta, bots, mgr, src, logger), botParticipant(tb, bots, mgr, src, logger)
		if pa.Combatant.Name == pb.Combatant.Name {
			pa.Combatant.Name += " (1)"
			pb.Combatant.Name += " (2)"
		}

		bt := battle.New(pa, pb, roller, out, out, battle.WithLogger(logger))
		o, err := bt.Run(ctx)
		if err != nil {
			return fmt.Errorf("battle %d: %w", i+1, err)
		}
		wins[o.CombatantName]++
	}

	names := make([]string, 0, len(wins))
	for name := range wins {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "-- Tally --")
	for _, name := range names {
		fmt.Fprintf(w, "%s: %d\n", name, wins[name])
	}
	return nil
}

// botParticipant spawns tmpl as a randomly declaring bot, with its taunt
// script attached when one is loaded.
func botParticipant(tmpl *roster.Template, bots *roster.Roster, mgr *scripting.Manager, src dice.Source, logger *zap.Logger) battle.Participant {
	p := battle.Participant{Combatant: bots.Spawn(tmpl, src), Actor: battle.NewScripted(src)}
	if tmpl.Taunt == "" {
		return p
	}
	taunter, err := mgr.Taunter(tmpl.Taunt)
	if err != nil {
		logger.Warn("bot taunt unavailable, bot stays silent",
			zap.String("bot", tmpl.ID), zap.Error(err))
		return p
	}
	p.Taunter = taunter
	return p
}

// printer is the narration sink and outcome reporter of simulated battles.
type printer struct {
	w     io.Writer
	quiet bool
	color bool
}

func (p *printer) Publish(s battle.Snapshot) {
	if p.quiet {
		return
	}
	p.write(handlers.RenderSnapshot(s)...)
}

func (p *printer) Report(o battle.Outcome) {
	p.write(handlers.RenderOutcome(o))
}

func (p *printer) write(lines ...string) {
	text := strings.Join(lines, "\n")
	if !p.color {
		text = telnet.StripANSI(text)
	}
	fmt.Fprintln(p.w, text)
}
