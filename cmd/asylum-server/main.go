// Package main is the entry point for the Arkham Asylum alert server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/ArkhamAsylum/server/internal/engine"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/events"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/infra/cache"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/infra/storage"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/infra/superhero"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/intake"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/network"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/config"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/logger"
	"github.com/MRamiBalles/ArkhamAsylum/server/internal/platform/metrics"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "[ASYLUM-SERVER]", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	appLogger := logger.NewConsole(cfg.LogLevel)
	appLogger.Info("Initializing Arkham Asylum alert server...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLogger.Info("Opening journal " + journalLabel(cfg.JournalDSN) + "...")
	db, err := storage.Open(cfg.JournalDSN)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer db.Close()
	journal := storage.NewJournalRepository(db, uuid.NewString())
	appLogger.Info("Journal session " + journal.SessionID())

	appLogger.Info("Bootstrapping EventLog...")
	eventLog := events.NewEventLog(storage.NewJournalPersister(journal, 5*time.Second, appLogger.With("journal")), cfg.JournalBatch)
	defer eventLog.Close()

	appLogger.Info("Bootstrapping Engine...")
	seed := uint64(time.Now().UnixNano())
	asylum := engine.NewEngine(eventLog, appLogger.With("engine"), engine.Options{
		AlertSeconds: cfg.AlertSeconds,
		TickUnit:     cfg.TickUnit,
		Escapes: engine.EscapeConfig{
			Enabled:    true,
			FirstDelay: cfg.FirstEscapeDelay,
			MinDelay:   cfg.EscapeMinDelay,
			DelayRange: cfg.EscapeDelayRange,
			MaxBatch:   cfg.MaxEscapesPerBatch,
		},
		NoticeTTL: cfg.NoticeTTL,
		Scheduler: engine.RealScheduler{},
		Rand:      rand.New(rand.NewPCG(seed, seed>>1|1)),
	})

	upstream := superhero.NewClient(cfg.SuperheroBaseURL, cfg.SuperheroAPIKey, cfg.FetchTimeout)
	source := upstream
	if cfg.RosterSourceURL != "" {
		source = superhero.NewProxyClient(cfg.RosterSourceURL, cfg.FetchTimeout)
	}
	if !source.IsAvailable() {
		appLogger.Warn("SUPERHERO_API_KEY not set; the roster will stay empty until a source is configured.")
	}
	loader := intake.NewLoader(
		intake.NewBuilder(source, cfg.Villains, cfg.FetchWorkers, appLogger.With("intake")),
		asylum,
	)

	appLogger.Info("Bootstrapping WebSocket Hub...")
	hub := network.NewHub(asylum, appLogger.With("hub"), network.HubOptions{
		SendBuffer:        cfg.ClientSendBuffer,
		MinActionInterval: cfg.MinActionInterval,
	})

	// Setup API Routes
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", network.ServeWS(hub, appLogger))
	mux.Handle("GET /metrics", metrics.Handler())
	network.NewSimulationAPI(asylum, loader, appLogger.With("api")).RegisterRoutes(mux)
	network.NewHistoryHandler(journal, storage.NewRecapper(journal, appLogger.With("history")), appLogger.With("history")).RegisterRoutes(mux)
	proxied := cache.NewUpstreamCache(upstream, cfg.CacheSize, cfg.CacheTTL)
	network.NewProxyHandler(proxied, appLogger.With("proxy")).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           network.WithCORS(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	hub.StartEventPoller(gctx, eventLog, cfg.EventPollInterval)

	g.Go(func() error {
		appLogger.Info("Building roster from the superhero source...")
		if _, err := loader.Reload(gctx); err != nil {
			// An empty or stale roster is the worst case; keep serving.
			appLogger.Err(err, "Initial roster build failed")
		}
		return nil
	})

	g.Go(func() error {
		appLogger.Info("HTTP API & WS Server listening on " + cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down...")
		asylum.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func journalLabel(dsn string) string {
	if dsn == ":memory:" {
		return "in memory"
	}
	// keep passwords out of the log
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		return u.Redacted()
	}
	return dsn
}
