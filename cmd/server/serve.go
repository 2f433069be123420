package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manpreetbhatti/driftrace/backend/internal/api"
	"github.com/manpreetbhatti/driftrace/backend/internal/config"
	"github.com/manpreetbhatti/driftrace/backend/internal/db"
	"github.com/manpreetbhatti/driftrace/backend/internal/race"
	"github.com/manpreetbhatti/driftrace/backend/internal/retention"
	"github.com/manpreetbhatti/driftrace/backend/internal/room"
	"github.com/manpreetbhatti/driftrace/backend/internal/ws"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the race-room server",
	RunE:  serveRun,
}

func registerServeFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&hostFlag, "host", "", "bind address (overrides config)")
	cmd.Flags().IntVarP(&portFlag, "port", "p", 0, "HTTP server port (overrides config and PORT)")
	cmd.Flags().StringVar(&dbPathFlag, "db", "", "race history database path (overrides config)")
}

// loadConfig layers the config file, the environment and flags, in that order.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	optional := !cmd.Flags().Changed("config")
	cfg, err := config.Load(configPath, optional)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(config.Environ()); err != nil {
		return cfg, err
	}
	if hostFlag != "" {
		cfg.Server.Host = hostFlag
	}
	if portFlag != 0 {
		cfg.Server.Port = portFlag
	}
	if dbPathFlag != "" {
		cfg.Database.Path = dbPathFlag
	}
	return cfg, nil
}

func serveRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	result := cfg.Validate()
	for _, w := range result.Warnings {
		logger.Warn("config", "warning", w)
	}
	if err := result.Err(); err != nil {
		return err
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer database.Close()
	logger.Info("database initialized", "path", cfg.Database.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := room.NewRegistry(
		room.WithSettings(cfg.RoomSettings()),
		room.WithLogger(logger),
		room.WithFinishHook(recordRace(database, logger)),
	)

	hub := ws.NewHub(registry, cfg.TransportConfig(), logger)
	apiHandler := api.New(hub, database, logger)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           corsMiddleware(apiHandler.Router()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	if cfg.Retention.Enabled {
		pruner := retention.New(database, cfg.RetentionConfig(), logger)
		pruner.Start()
		g.Go(func() error {
			<-gctx.Done()
			pruner.Stop()
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("driftrace server starting",
			"addr", srv.Addr,
			"websocket", "/ws",
			"countdown_seconds", cfg.Race.CountdownSeconds)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// Races finished by the final disconnects are still being written.
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if werr := registry.Wait(drainCtx); werr != nil {
		logger.Warn("race results still pending at exit", "error", werr)
	}

	return err
}

// recordRace persists finished races; it runs off the room lock.
func recordRace(database *db.Database, logger *slog.Logger) func(race.Result) {
	return func(res race.Result) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		id, err := database.SaveRace(ctx, res)
		if err != nil {
			logger.Error("saving race result", "room", res.RoomName, "race_id", res.ID, "error", err)
			return
		}
		logger.Info("race recorded", "room", res.RoomName, "race_id", id, "participants", len(res.Standings))
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
