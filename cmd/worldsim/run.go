package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/talgya/worldsim/internal/api"
	"github.com/talgya/worldsim/internal/config"
	"github.com/talgya/worldsim/internal/engine"
	"github.com/talgya/worldsim/internal/metrics"
	"github.com/talgya/worldsim/internal/persistence"
	"github.com/talgya/worldsim/internal/persistence/eventlog"
	"github.com/talgya/worldsim/internal/weather"
)

var runOpts struct {
	configPath string
	dbPath     string
	seed       int64
	ticks      uint64
	port       int
	signalLog  string
	speed      float64
	fresh      bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation",
	Long: `Generate or restore a world and run the trade simulation.
The world is saved every snapshot_ticks ticks and on shutdown.`,
	RunE: runSimulation,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.configPath, "config", "", "Settings YAML (defaults when empty)")
	f.StringVar(&runOpts.dbPath, "db", "", "SQLite path or postgres:// DSN (overrides WORLDSIM_DB)")
	f.Int64Var(&runOpts.seed, "seed", 0, "World seed (overrides the settings file)")
	f.Uint64Var(&runOpts.ticks, "ticks", 0, "Stop after this many ticks (0 = run until interrupted)")
	f.IntVar(&runOpts.port, "port", 0, "HTTP API port (overrides WORLDSIM_PORT; -1 disables the API)")
	f.StringVar(&runOpts.signalLog, "signal-log", "", "Directory for compressed signal logs (empty = off)")
	f.Float64Var(&runOpts.speed, "speed", 1, "Speed multiplier (negative = unthrottled)")
	f.BoolVar(&runOpts.fresh, "fresh", false, "Ignore any saved world and generate a new one")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	env := config.LoadEnv(".env")
	cfg, err := config.Load(runOpts.configPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = runOpts.seed
	}
	dsn := env.DB
	if runOpts.dbPath != "" {
		dsn = runOpts.dbPath
	}
	port := env.Port
	if runOpts.port != 0 {
		port = runOpts.port
	}

	// ── Database ──────────────────────────────────────────────────────
	db, err := persistence.Open(dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "dsn", redact(dsn))

	// ── Load or Generate World State ─────────────────────────────────
	var sim *engine.Simulation
	if !runOpts.fresh && db.HasWorldState() {
		slog.Info("found saved world state, loading...")
		ws, err := db.LoadWorldState(1000)
		if err != nil {
			return err
		}
		if sim, err = restoreWorld(cfg, ws); err != nil {
			return err
		}
	} else {
		slog.Info("no saved state in use, generating new world...", "seed", cfg.Seed)
		if sim, err = newWorld(cfg); err != nil {
			return err
		}
		if err := db.SaveWorldState(sim); err != nil {
			slog.Error("initial save failed", "error", err)
		}
	}

	// ── Signal sinks ─────────────────────────────────────────────────
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	sim.AddSink(m)

	if runOpts.signalLog != "" {
		w := eventlog.NewWriter(filepath.Clean(runOpts.signalLog), "signals")
		defer w.Close()
		sim.AddSink(w)
		slog.Info("signal log enabled", "dir", runOpts.signalLog)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── Weather ───────────────────────────────────────────────────────
	wc := weather.NewClient(env.WeatherKey, env.WeatherLocation)
	if wc != nil {
		slog.Info("weather enabled", "location", env.WeatherLocation)
		go updateClimate(ctx, wc, sim)
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine(time.Duration(cfg.SimStepSeconds * float64(time.Second)))
	eng.Tick = sim.CurrentTick()
	eng.Now = sim.Now
	eng.SetSpeed(runOpts.speed)
	eng.OnTick = func(tick uint64, now time.Duration) {
		sim.Step(tick, now)
		sim.View(func() { m.Observe(tick, sim.Stats) })
		if cfg.SnapshotTicks > 0 && tick%uint64(cfg.SnapshotTicks) == 0 {
			if err := db.SaveWorldState(sim); err != nil {
				slog.Error("periodic save failed", "error", err)
			}
		}
	}
	eng.OnHour = func(tick uint64) {
		sim.ProduceHourly(tick)
		if wc != nil {
			go updateClimate(ctx, wc, sim)
		}
	}
	eng.OnDay = func(uint64) { sim.LogSummary() }

	// ── HTTP API ──────────────────────────────────────────────────────
	if port > 0 {
		if env.AdminKey == "" {
			slog.Warn("WORLDSIM_ADMIN_KEY not set, admin POST endpoints are disabled")
		}
		srv := &api.Server{
			Sim:      sim,
			Eng:      eng,
			DB:       db,
			Gatherer: reg,
			Port:     port,
			AdminKey: env.AdminKey,
			RelayKey: env.RelayKey,
		}
		go func() {
			if err := srv.Start(ctx); err != nil {
				slog.Error("HTTP server error", "error", err)
			}
		}()
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", port)
	}

	fmt.Println("Starting simulation... (Ctrl+C to stop)")
	runErr := eng.Run(ctx, runOpts.ticks)
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	sim.LogSummary()

	// Final save on shutdown.
	slog.Info("final save...")
	if err := db.SaveWorldState(sim); err != nil {
		return fmt.Errorf("final save: %w", err)
	}
	fmt.Println("Simulation stopped. World state saved.")
	return runErr
}

// updateClimate pulls current conditions and applies them to need drift.
// On failure the previous climate stays in effect.
func updateClimate(ctx context.Context, wc *weather.Client, sim *engine.Simulation) {
	cond, err := wc.Fetch(ctx)
	if err != nil {
		slog.Warn("weather fetch failed", "error", err)
		return
	}
	cl := weather.MapToClimate(cond)
	sim.SetClimate(cl)
	slog.Debug("climate updated", "heat", cl.Heat, "cold", cl.Cold, "desc", cl.Description)
}

// redact hides the password of a postgres DSN.
func redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
