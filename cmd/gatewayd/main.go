// Command gatewayd runs the gateway: the priority admission queue, the
// dispatcher/health/progress background loops, and the HTTP surface over
// internal/api's Gateway façade, per SPEC_FULL.md section 2.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/comfygw/gateway/internal/api"
	"github.com/comfygw/gateway/internal/dispatcher"
	"github.com/comfygw/gateway/internal/domain"
	"github.com/comfygw/gateway/internal/gatewaylog"
	"github.com/comfygw/gateway/internal/gwconfig"
	"github.com/comfygw/gateway/internal/health"
	"github.com/comfygw/gateway/internal/history"
	"github.com/comfygw/gateway/internal/progress"
	"github.com/comfygw/gateway/internal/registry"
	"github.com/comfygw/gateway/internal/selector"
	"github.com/comfygw/gateway/internal/settings"
	"github.com/comfygw/gateway/internal/store"
	"github.com/comfygw/gateway/internal/store/cachestore"
	"github.com/comfygw/gateway/internal/store/memstore"
	"github.com/comfygw/gateway/internal/store/sqlstore"
	"github.com/comfygw/gateway/internal/workerclient"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to gateway configuration file")
		addr       = flag.String("addr", ":8080", "HTTP server address")
	)
	flag.Parse()

	cfg, err := gwconfig.Load(*configFile)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	level, err := gatewaylog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = gatewaylog.InfoLevel
	}
	format := gatewaylog.TextFormat
	if cfg.Logging.Format == "json" {
		format = gatewaylog.JSONFormat
	}
	gatewaylog.Init(&gatewaylog.Config{Level: level, Format: format, Output: os.Stdout})
	logger := gatewaylog.Default().WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backends, closeBackends, err := buildBackends(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to initialize persistence backend: %v", err)
	}
	defer closeBackends()

	reg, err := registry.New(ctx, backends.Workers, cfg.Cache.QueueCacheTTL, cfg.Auth.GlobalUsername, cfg.Auth.GlobalPassword)
	if err != nil {
		log.Fatalf("failed to load worker registry: %v", err)
	}
	syncStaticWorkers(ctx, reg, cfg.Workers, logger)

	if *configFile != "" {
		watcher, err := gwconfig.NewWatcher(*configFile)
		if err != nil {
			logger.Warn("config hot-reload disabled", map[string]interface{}{"error": err.Error()})
		} else {
			go watcher.Run(ctx, func(newCfg *gwconfig.Config, err error) {
				if err != nil {
					logger.Error("config reload failed", map[string]interface{}{"error": err.Error()})
					return
				}
				logger.Info("config reloaded", map[string]interface{}{"path": *configFile})
				syncStaticWorkers(ctx, reg, newCfg.Workers, logger)
			})
		}
	}

	client := workerclient.New(cfg.Worker.RequestTimeout)
	sel := selector.New(reg, client, cfg.Worker.QueueProbeTimeout)
	settingsS, err := settings.New(ctx, backends.Settings, reg)
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}
	historyS := history.New(backends.History, reg, client, nil, cfg.Worker.DispatcherBatch)
	if cfg.Worker.HistorySweepCron != "" {
		sweepCron, err := historyS.StartScheduledSweep(ctx, cfg.Worker.HistorySweepCron)
		if err != nil {
			logger.Warn("history sweep schedule disabled", map[string]interface{}{"error": err.Error()})
		} else {
			defer sweepCron.Stop()
		}
	}
	progressMon := progress.New(backends.History, reg, client, cfg.Worker.WSReconnectEvery)
	disp := dispatcher.New(backends.Queue, backends.Mappings, backends.History, reg, sel, client, progressMon,
		cfg.Worker.DispatcherTick, cfg.Worker.DispatcherBatch)
	prober := health.New(reg, client, cfg.Worker.ProberInterval, cfg.Worker.HealthTimeout)

	gw := api.New(reg, backends.Queue, backends.Mappings, historyS, client, sel, settingsS)

	go disp.Run(ctx)
	go prober.Run(ctx)
	go progressMon.Run(ctx)

	router := newRouter(gw)
	server := &http.Server{
		Addr:    *addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	logger.Info("gateway listening", map[string]interface{}{"addr": *addr})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("gateway stopped", nil)
}

// buildBackends selects the persistence backend per cfg: PostgreSQL if a
// database DSN is configured, Redis if only a cache URL is configured (task
// history then stays in process, since the cache backend has no history
// store), otherwise the in-process backend. closeFn must be called on shutdown.
func buildBackends(ctx context.Context, cfg *gwconfig.Config) (store.Backends, func(), error) {
	if cfg.UsesDatabase() {
		sqlCfg := &sqlstore.Config{
			DSN:            cfg.Database.DSN,
			MaxConnections: cfg.Database.MaxConnections,
			MigrationsPath: cfg.Database.MigrationsPath,
		}
		db, err := sqlstore.Open(ctx, sqlCfg)
		if err != nil {
			return store.Backends{}, nil, err
		}
		return store.Backends{Workers: db, Mappings: db, Queue: db, History: db, Settings: db}, db.Close, nil
	}

	if cfg.UsesCache() {
		cache, err := cachestore.New(cfg.Cache.URL, cfg.Cache.ConnectTimeout)
		if err != nil {
			return store.Backends{}, nil, err
		}
		return store.Backends{Workers: cache, Mappings: cache, Queue: cache, History: memstore.New(), Settings: cache}, func() {}, nil
	}

	mem := memstore.New()
	return store.Backends{Workers: mem, Mappings: mem, Queue: mem, History: mem, Settings: mem}, func() {}, nil
}

// syncStaticWorkers reconciles the registry against the config file's
// worker list: existing entries (matched by base URL) are updated in
// place, new entries are added. Workers registered at runtime through the
// API but absent from the static list are left alone, since the static
// list is additive, not authoritative, over the API-driven fleet.
func syncStaticWorkers(ctx context.Context, reg *registry.Registry, workers []gwconfig.StaticWorker, logger *gatewaylog.Logger) {
	byURL := make(map[string]string, len(reg.List()))
	for _, w := range reg.List() {
		byURL[w.BaseURL] = w.WorkerID
	}

	for _, sw := range workers {
		baseURL := strings.TrimSuffix(sw.BaseURL, "/")
		weight := sw.Weight
		if weight <= 0 {
			weight = 1
		}
		if workerID, ok := byURL[baseURL]; ok {
			_, err := reg.Update(ctx, workerID, func(w *domain.WorkerInfo) {
				w.DisplayName = sw.DisplayName
				w.Weight = weight
				w.Enabled = sw.Enabled
				w.AuthUsername = sw.Username
				w.AuthPassword = sw.Password
			})
			if err != nil {
				logger.Error("static worker update failed", map[string]interface{}{"base_url": baseURL, "error": err.Error()})
			}
			continue
		}
		added, err := reg.Add(ctx, sw.BaseURL, sw.DisplayName, weight, sw.Username, sw.Password)
		if err != nil {
			logger.Error("static worker add failed", map[string]interface{}{"base_url": baseURL, "error": err.Error()})
			continue
		}
		if !sw.Enabled {
			// Add always admits a new worker; disable it immediately if the
			// config file declared it disabled.
			if _, err := reg.Update(ctx, added.WorkerID, func(w *domain.WorkerInfo) { w.Enabled = false }); err != nil {
				logger.Error("static worker disable failed", map[string]interface{}{"base_url": baseURL, "error": err.Error()})
			}
		}
	}
}
