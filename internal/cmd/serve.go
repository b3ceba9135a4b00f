package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"
	_ "modernc.org/sqlite"

	"northpole/internal/api"
	"northpole/internal/config"
	"northpole/internal/handlers/sim"
	"northpole/internal/metrics"
	"northpole/internal/scheduler"
	"northpole/internal/store"
	"northpole/internal/worker"
	"northpole/internal/workshop"
)

var (
	serveAddr  string
	serveDB    string
	serveDebug bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the workshop HTTP API",
	Long: `Run the workshop HTTP API with SQLite persistence and the shift service.

State is loaded from the database on start. An empty database is filled
from the configured seed.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP bind address (overrides config)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "SQLite DB path (overrides config)")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "expose pprof under /debug/pprof")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}
	if serveDB != "" {
		cfg.DBPath = serveDB
	}
	if err := setupLogger(cfg, cmd.ErrOrStderr()); err != nil {
		return err
	}

	db, err := openDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := store.NewSQLiteRepo(db)
	ws, err := loadWorkshop(contextOf(cmd), repo, cfg.Seed)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOf(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.Shifts.Plans) > 0 {
		svc, err := scheduler.NewService(ws, cfg.Shifts.Plans, cfg.Shifts.CheckInterval, time.Now())
		if err != nil {
			return err
		}
		svc.OnPass(func(p scheduler.Plan, res scheduler.Result) {
			metrics.ObservePass(res)
			if err := repo.SaveSnapshot(ctx, ws.Snapshot()); err != nil {
				log.Error().Err(err).Str("plan", p.Name).Msg("save workshop state")
			}
		})
		for name, next := range svc.NextRuns() {
			log.Info().Str("plan", name).Time("next_run", next).Msg("shift plan loaded")
		}
		go svc.Start(ctx)
		defer svc.Stop()
	}

	pool := worker.NewPool(sim.Sim{Unit: cfg.TimeUnit}, cfg.Builders)
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: api.NewServer(ws, api.Options{
			Repo:      repo,
			Pool:      pool,
			RateLimit: rate.Limit(cfg.RateLimit.PerSecond),
			Burst:     cfg.RateLimit.Burst,
			Rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
			Debug:     serveDebug,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite single writer
	if err := store.EnsureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

// loadWorkshop restores the saved state, or seeds and saves a fresh
// workshop when nothing has been saved yet.
func loadWorkshop(ctx context.Context, repo store.Repository, seed config.Seed) (*workshop.Workshop, error) {
	snap, err := repo.LoadSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	ws := workshop.New()
	if len(snap.Toys)+len(snap.Elves)+len(snap.Orders) > 0 {
		if err := ws.Restore(snap); err != nil {
			return nil, fmt.Errorf("restore state: %w", err)
		}
		log.Info().Int("toys", len(snap.Toys)).Int("elves", len(snap.Elves)).Int("orders", len(snap.Orders)).Msg("workshop restored")
		return ws, nil
	}
	if err := seedWorkshop(ws, seed); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}
	if err := repo.SaveSnapshot(ctx, ws.Snapshot()); err != nil {
		return nil, fmt.Errorf("save seeded state: %w", err)
	}
	log.Info().Msg("workshop seeded")
	return ws, nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
