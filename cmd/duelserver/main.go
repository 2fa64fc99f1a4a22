// Package main provides the duel server binary: a Telnet frontend where
// players create combatants and fight d20 duels against each other or bots,
// plus a gRPC health endpoint that follows the database health probe.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/duel/internal/config"
	"github.com/cory-johannsen/duel/internal/frontend/handlers"
	"github.com/cory-johannsen/duel/internal/frontend/telnet"
	"github.com/cory-johannsen/duel/internal/game/battle"
	"github.com/cory-johannsen/duel/internal/game/dice"
	"github.com/cory-johannsen/duel/internal/game/roster"
	"github.com/cory-johannsen/duel/internal/observability"
	"github.com/cory-johannsen/duel/internal/scripting"
	"github.com/cory-johannsen/duel/internal/server"
	"github.com/cory-johannsen/duel/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
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

	logger.Info("starting duel server",
		zap.String("telnet_addr", cfg.Telnet.Addr()),
		zap.String("health_addr", cfg.Health.Addr()),
	)

	ctx := context.Background()

	src, seed, err := dice.NewNamedSource(cfg.Battle.DiceSource, cfg.Battle.Seed)
	if err != nil {
		logger.Fatal("creating dice source", zap.Error(err))
	}
	logger.Info("dice source ready", zap.String("kind", cfg.Battle.DiceSource), zap.Int64("seed", seed))
	roller := dice.NewLoggedRoller(src, observability.Component(logger, "dice"))

	// Connect to PostgreSQL
	dbStart := time.Now()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("connecting to database", zap.Error(err))
	}
	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.Name),
		zap.Duration("elapsed", time.Since(dbStart)),
	)

	// Load bot templates and their taunt scripts
	templates, err := roster.LoadTemplates(cfg.Content.BotsDir)
	if err != nil {
		logger.Fatal("loading bot templates", zap.Error(err))
	}
	bots, err := roster.New(templates)
	if err != nil {
		logger.Fatal("building bot roster", zap.Error(err))
	}

	var scripts handlers.TauntLoader
	if cfg.Content.ScriptsDir != "" {
		scriptStart := time.Now()
		mgr := scripting.NewManager(roller, observability.Component(logger, "scripting"), cfg.Content.InstructionLimit)
		defer mgr.Close()
		names, err := mgr.LoadDir(ctx, cfg.Content.ScriptsDir)
		if err != nil {
			logger.Fatal("loading taunt scripts", zap.String("dir", cfg.Content.ScriptsDir), zap.Error(err))
		}
		for _, tmpl := range templates {
			if tmpl.Taunt != "" && !mgr.Has(tmpl.Taunt) {
				logger.Warn("bot taunt script not found, bot will stay silent",
					zap.String("bot", tmpl.ID),
					zap.String("taunt", tmpl.Taunt),
				)
			}
		}
		logger.Info("taunt scripts loaded",
			zap.Strings("scripts", names),
			zap.Duration("elapsed", time.Since(scriptStart)),
		)
		scripts = mgr
	}
	logger.Info("bot roster loaded", zap.Int("bots", len(templates)))

	// Build services
	accounts := postgres.NewAccountRepository(pool.DB())
	combatants := postgres.NewCombatantRepository(pool.DB())
	lobby := handlers.NewLobby(cfg.Battle, battle.NewRegistry(), bots, scripts, src, observability.Component(logger, "lobby"))
	sessionHandler := handlers.NewSessionHandler(accounts, combatants, lobby, cfg.Battle.StatPoints, logger)
	telnetAcceptor := telnet.NewAcceptor(cfg.Telnet, sessionHandler, logger)

	healthServer := health.NewServer()
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Wire lifecycle
	lifecycle := server.NewLifecycle(logger)

	probeDone := make(chan struct{})
	lifecycle.AddFunc("postgres",
		func() error {
			probe(ctx, pool, healthServer, logger)
			ticker := time.NewTicker(cfg.Health.CheckInterval)
			defer ticker.Stop()
			for {
				select {
				case <-probeDone:
					return nil
				case <-ticker.C:
					probe(ctx, pool, healthServer, logger)
				}
			}
		},
		func() {
			close(probeDone)
			pool.Close()
		},
	)

	lifecycle.AddFunc("grpc-health",
		func() error {
			lis, err := net.Listen("tcp", cfg.Health.Addr())
			if err != nil {
				return fmt.Errorf("listening on %s: %w", cfg.Health.Addr(), err)
			}
			logger.Info("gRPC health server listening", zap.String("addr", lis.Addr().String()))
			return grpcServer.Serve(lis)
		},
		func() {
			healthServer.Shutdown()
			grpcServer.GracefulStop()
		},
	)

	lifecycle.AddFunc("lobby",
		func() error { return nil },
		lobby.Close,
	)

	lifecycle.AddFunc("telnet",
		telnetAcceptor.ListenAndServe,
		telnetAcceptor.Stop,
	)

	logger.Info("duel server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("telnet_addr", cfg.Telnet.Addr()),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// probe sets the overall health status from a database round trip.
func probe(ctx context.Context, pool *postgres.Pool, hs *health.Server, logger *zap.Logger) {
	status := healthpb.HealthCheckResponse_SERVING
	if err := pool.Health(ctx, 5*time.Second); err != nil {
		logger.Warn("database health check failed", zap.Error(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", status)
}
