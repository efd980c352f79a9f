package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"galaxy-trader/internal/cache"
	"galaxy-trader/internal/danger"
	"galaxy-trader/internal/engine"
	"galaxy-trader/internal/evaluator"
	"galaxy-trader/internal/fleet"
	"galaxy-trader/internal/ledger"
	"galaxy-trader/internal/models"
	"galaxy-trader/internal/progression"
	"galaxy-trader/internal/server"
	"galaxy-trader/internal/store"
	"galaxy-trader/internal/stream"
	"galaxy-trader/internal/universe"
	"galaxy-trader/pkg/utils"
)

func addRunCommand(rootCmd *cobra.Command, app *App) {
	var (
		ships   int
		level   int
		balance float64
		seed    int64
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading engine",
		Long: `Start the engine against the built-in demo galaxy. Ships search for
trades every tick, reserve routes, and trade until interrupted. When the
status server is enabled the fleet can be watched over HTTP and WebSocket.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd, app, ships, level, balance, seed)
		},
	}

	cmd.Flags().IntVar(&ships, "ships", 4, "Number of trading ships to launch")
	cmd.Flags().IntVar(&level, "level", 3, "Starting pilot level")
	cmd.Flags().Float64Var(&balance, "balance", 200_000, "Starting fleet wallet in credits")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "Market randomness seed")

	rootCmd.AddCommand(cmd)
}

func runEngine(cmd *cobra.Command, app *App, ships, level int, balance float64, seed int64) error {
	cfg := app.Config
	log := app.Logger
	output := NewOutput(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	uni := universe.NewSimUniverse(balance, seed)
	universe.SeedDemo(uni)

	reg := danger.NewRegistry(cfg.Danger.Threshold, cfg.Danger.Window, cfg.Danger.Enabled,
		routeLogPublisher{log}, log)
	oc := cache.New(cfg.Cache.MaxEntries, cfg.Cache.MinProfitToCache, cfg.Cache.TTL, reg, log)
	lg := ledger.New(log)
	coord := fleet.NewCoordinator(log)
	prog := progression.NewMachine(cfg.Progression, log)
	eval := evaluator.New(uni, oc, reg, cfg.Trading, log)

	// A locked or busy database file usually clears within a retry or two.
	var st store.DataStore
	err := utils.Retry(ctx, utils.DefaultRetryConfig(), func() error {
		var openErr error
		st, openErr = app.OpenStore()
		return openErr
	})
	if err != nil {
		// The engine runs fine without persistence; trades just aren't journaled.
		output.Warning("Store unavailable, running without persistence: %v", err)
		st = nil
	} else {
		restorePilots(ctx, st, prog, log)
	}

	hub := stream.NewHub()
	hub.Start(ctx)
	defer hub.Stop()

	eng := engine.New(cfg, engine.Deps{
		Universe:    uni,
		Evaluator:   eval,
		Cache:       oc,
		Danger:      reg,
		Ledger:      lg,
		Fleet:       coord,
		Progression: prog,
		Hub:         hub,
		Store:       st,
	}, log)

	sectors, _ := uni.Sectors(ctx)
	for i := 0; i < ships; i++ {
		spec := engine.AgentSpec{
			AgentID:       fmt.Sprintf("agent-%02d", i+1),
			PilotID:       fmt.Sprintf("pilot-%02d", i+1),
			ShipID:        fmt.Sprintf("ship-%02d", i+1),
			Location:      sectors[i%len(sectors)],
			CargoCapacity: 120,
			PilotLevel:    level,
			BaseCaps: models.Capabilities{
				MaxJumpRange:     5,
				MaxWareTier:      models.TierAdvanced,
				RiskTolerance:    0.8,
				AvoidBlacklisted: true,
			},
		}
		if err := eng.RegisterAgent(spec); err != nil {
			return fmt.Errorf("register %s: %w", spec.AgentID, err)
		}
	}

	sweeper := engine.NewSweeper(oc, lg, reg, prog, st, 24*time.Hour, log)
	if err := sweeper.Start(cfg.Engine.SweepSchedule); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer sweeper.Stop()

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(cfg.Server.Addr, server.Deps{
			Engine:      eng,
			Progression: prog,
			Danger:      reg,
			Ledger:      lg,
			Cache:       oc,
			Store:       st,
			Hub:         hub,
		}, log)
		go func() {
			if err := srv.Start(); err != nil {
				log.Error().Err(err).Msg("Status server stopped")
			}
		}()
		output.Info("Status server listening on %s", cfg.Server.Addr)
	}

	output.Success("Engine started: %d ships, tick %s", ships, cfg.Engine.TickInterval)
	output.Dim("Press Ctrl+C to stop")

	eng.Run(ctx)

	// Final sweep persists pilot progression before shutdown.
	sweeper.Sweep()

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Server shutdown")
		}
	}

	output.Println()
	output.Success("Engine stopped")
	return nil
}

// restorePilots rehydrates the progression machine from the journal so pilot
// levels survive restarts.
func restorePilots(ctx context.Context, st store.DataStore, prog *progression.Machine, log zerolog.Logger) {
	pilots, err := st.GetAllPilots(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load pilot records")
		return
	}
	for _, rec := range pilots {
		prog.RestorePilot(rec)
	}
	if len(pilots) > 0 {
		log.Info().Int("pilots", len(pilots)).Msg("Restored pilot progression")
	}
}

// routeLogPublisher surfaces blocked-zone changes in the log. A real host
// would replan routes here.
type routeLogPublisher struct {
	log zerolog.Logger
}

func (p routeLogPublisher) PublishBlockedZones(zones []models.SectorID) {
	ids := make([]string, len(zones))
	for i, z := range zones {
		ids[i] = string(z)
	}
	p.log.Info().Strs("zones", ids).Msg("Blocked zone set changed")
}
