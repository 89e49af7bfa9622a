package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/raisekit/modules/coordinator"
	"github.com/dmitrymomot/raisekit/pkg/authevents"
	"github.com/dmitrymomot/raisekit/pkg/config"
	"github.com/dmitrymomot/raisekit/pkg/cookie"
	"github.com/dmitrymomot/raisekit/pkg/handler"
	"github.com/dmitrymomot/raisekit/pkg/httpserver"
	"github.com/dmitrymomot/raisekit/pkg/jwt"
	"github.com/dmitrymomot/raisekit/pkg/logger"
	"github.com/dmitrymomot/raisekit/pkg/metrics"
	"github.com/dmitrymomot/raisekit/pkg/pagestate"
	"github.com/dmitrymomot/raisekit/pkg/redis"
	"github.com/dmitrymomot/raisekit/svc/reconciler"
)

type appConfig struct {
	Env          string        `env:"APP_ENV" envDefault:"development"`
	Name         string        `env:"APP_NAME" envDefault:"raisekit"`
	ProfileStore string        `env:"PROFILE_STORE" envDefault:"postgres"`
	MetricsPath  string        `env:"METRICS_PATH" envDefault:"/metrics"`
	ProbeTimeout time.Duration `env:"HEALTH_PROBE_TIMEOUT" envDefault:"2s"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("raisekit stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	var (
		app       appConfig
		recCfg    reconciler.Config
		coordCfg  coordinator.Config
		httpCfg   httpserver.Config
		cookieCfg cookie.Config
		jwtCfg    jwt.Config
	)
	if err := errors.Join(
		config.Load(&app),
		config.Load(&recCfg, config.WithPrefix("RECONCILER_")),
		config.Load(&coordCfg),
		config.Load(&httpCfg),
		config.Load(&cookieCfg),
		config.Load(&jwtCfg),
	); err != nil {
		return err
	}

	log := logger.New(
		logger.WithEnvironment(app.Env, app.Name),
		logger.WithContextExtractors(handler.RequestIDExtractor(), coordinator.BrowserIDExtractor()),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var probes []httpserver.Probe

	store, closeStore, err := openProfileStore(ctx, app.ProfileStore, log)
	if err != nil {
		return err
	}
	defer closeStore()
	if store.probe != nil {
		probes = append(probes, *store.probe)
	}

	useRedis := coordCfg.EventBackend == coordinator.EventBackendRedis || recCfg.DedupBackend == reconciler.DedupBackendRedis
	var rdb goredis.UniversalClient
	if useRedis {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer client.Close()
		rdb = client
		probes = append(probes, httpserver.Probe{Name: "redis", Check: redis.Healthcheck(client)})
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(promReg)

	dedup := coordinator.CookieDedupFactory(recCfg.DedupWindow)
	if recCfg.DedupBackend == reconciler.DedupBackendRedis {
		dedup = coordinator.RedisDedupFactory(rdb, recCfg.DedupKeyPrefix, recCfg.DedupWindow)
	}
	registryOpts := []coordinator.RegistryOption{
		coordinator.WithRegistryLogger(log),
		coordinator.WithRegistryRecorder(collector),
		coordinator.WithReconcilerConfig(recCfg),
		coordinator.WithResolver(pagestate.Resolver{
			AppHosts:    coordCfg.AppHosts,
			DefaultView: pagestate.View(coordCfg.DefaultView),
		}),
		coordinator.WithDedupFactory(dedup),
		coordinator.WithMaxTabs(coordCfg.MaxTabsPerBrowser),
	}
	var (
		registry *coordinator.Registry
		bridge   *authevents.RedisBridge
	)
	if coordCfg.EventBackend == coordinator.EventBackendRedis {
		bridge = authevents.NewRedisBridge(rdb,
			func(browserID string) *authevents.Hub { return registry.Hub(browserID) },
			authevents.WithBridgeLogger(log),
		)
		registryOpts = append(registryOpts, coordinator.WithSessionLookup(bridge.Session))
	}
	registry = coordinator.NewRegistry(store.Store, registryOpts...)
	defer registry.Close()

	tokens, err := jwt.NewFromConfig(jwtCfg)
	if err != nil {
		return err
	}

	cookies, err := cookie.NewFromConfig(cookieCfg)
	if err != nil {
		return err
	}

	moduleOpts := []coordinator.ModuleOption{
		coordinator.WithModuleLogger(log),
		coordinator.WithDebug(recCfg.Debug),
	}
	if bridge != nil {
		go func() {
			if err := bridge.Run(ctx); err != nil {
				log.ErrorContext(ctx, "auth event bridge stopped", logger.Error(err))
			}
		}()
		moduleOpts = append(moduleOpts, coordinator.WithPublisher(bridge))
	}
	module := coordinator.NewModule(registry, cookies, tokens, coordCfg, moduleOpts...)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(handler.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Get("/health/live", httpserver.HealthHandler(log, app.ProbeTimeout))
	r.Get("/health/ready", httpserver.HealthHandler(log, app.ProbeTimeout, probes...))
	r.Handle(app.MetricsPath, metrics.Handler(promReg))
	r.Mount("/api", module.Handle())

	log.InfoContext(ctx, "starting raisekit",
		slog.String("addr", httpCfg.Addr),
		slog.String("profile_store", app.ProfileStore),
		slog.String("event_backend", coordCfg.EventBackend),
		slog.String("dedup_backend", recCfg.DedupBackend),
	)
	return httpserver.New(httpCfg, httpserver.WithLogger(log)).Run(ctx, r)
}
