package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/dropDatabas3/mesadine/internal/audit"
	"github.com/dropDatabas3/mesadine/internal/cache"
	memcache "github.com/dropDatabas3/mesadine/internal/cache/memory"
	rediscache "github.com/dropDatabas3/mesadine/internal/cache/redis"
	"github.com/dropDatabas3/mesadine/internal/config"
	"github.com/dropDatabas3/mesadine/internal/email"
	httpx "github.com/dropDatabas3/mesadine/internal/http"
	"github.com/dropDatabas3/mesadine/internal/http/handlers"
	"github.com/dropDatabas3/mesadine/internal/http/middlewares"
	"github.com/dropDatabas3/mesadine/internal/http/router"
	"github.com/dropDatabas3/mesadine/internal/metrics"
	"github.com/dropDatabas3/mesadine/internal/observability/logger"
	"github.com/dropDatabas3/mesadine/internal/store/mysql"
	"github.com/dropDatabas3/mesadine/internal/superadmin"
	"github.com/dropDatabas3/mesadine/internal/tenant/cloner"
	"github.com/dropDatabas3/mesadine/internal/tenant/dbcontext"
	"github.com/dropDatabas3/mesadine/internal/tenant/lifecycle"
	"github.com/dropDatabas3/mesadine/internal/tenant/provisioner"
	"github.com/dropDatabas3/mesadine/internal/tenant/registry"
	"github.com/dropDatabas3/mesadine/internal/tenant/themes"
	migrations "github.com/dropDatabas3/mesadine/migrations/mysql"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, continuing with system environment: %v", err)
	}

	cfgPath := os.Getenv("MESADINE_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       os.Getenv("LOG_LEVEL"),
		ServiceName: "mesadine",
	})
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === Control plane ===

	store, err := mysql.New(ctx, cfg.Storage.MySQL.DSN, mysql.Config{
		MaxOpenConns:    cfg.Storage.MySQL.MaxOpenConns,
		MaxIdleConns:    cfg.Storage.MySQL.MaxIdleConns,
		ConnMaxLifetime: cfg.Storage.MySQL.ConnMaxLifetime,
	})
	if err != nil {
		lg.Fatal("mysql no disponible", zap.Error(err))
	}
	defer store.Close()

	applied, err := mysql.RunMigrations(ctx, store.DB(), migrations.ControlPlaneFS())
	if err != nil {
		lg.Fatal("migraciones fallaron", zap.Error(err))
	}
	lg.Info("migraciones aplicadas", zap.Int("applied", applied))

	manager, err := dbcontext.NewManager(dbcontext.ManagerConfig{
		Resolve: store.DSNForDatabase,
		Pool: dbcontext.PoolConfig{
			MaxOpenConns: cfg.Storage.MySQL.MaxOpenConns,
			MaxIdleConns: cfg.Storage.MySQL.MaxIdleConns,
		},
	})
	if err != nil {
		lg.Fatal("pool manager", zap.Error(err))
	}
	defer func() { _ = manager.Close() }()

	// === Servicios ===

	reg := registry.New(store.DB())
	cl := cloner.New(store.DB(), cfg.Tenancy.ControlDatabase)
	th := themes.New(themeCatalog(cfg))
	accounts := superadmin.New(store.DB())

	if err := accounts.Seed(ctx, envOr("SUPERADMIN_USER", "admin"), envOr("SUPERADMIN_PASS", "admin")); err != nil {
		lg.Warn("seed de superadmin falló", zap.Error(err))
	}

	prov := provisioner.New(store, reg, cl, th, provisioner.Config{
		Template:          cfg.Tenancy.TemplateDatabase,
		DefaultTheme:      cfg.Themes.Default,
		DefaultLocationID: cfg.Tenancy.DefaultLocationID,
		Metrics:           metrics.ObserveProvision,
		DatabaseExists:    mysql.IsDatabaseExists,
	})
	lc := lifecycle.New(reg, store, manager)

	notifier := email.NewNotifier(email.Config{
		Host: cfg.Notify.SMTP.Host,
		Port: cfg.Notify.SMTP.Port,
		From: cfg.Notify.SMTP.From,
		User: cfg.Notify.SMTP.User,
		Pass: cfg.Notify.SMTP.Pass,
		To:   notifyTo(cfg),
	})

	metricsHandler, err := metrics.Register(prometheus.DefaultRegisterer)
	if err != nil {
		lg.Fatal("registro de métricas", zap.Error(err))
	}

	session := middlewares.SessionConfig{
		Secret:     cfg.Superadmin.SessionSecret,
		CookieName: cfg.Superadmin.CookieName,
		TTL:        cfg.SessionTTL(),
		Secure:     cfg.App.Env == "prod",
	}

	// === HTTP ===

	handler := router.New(router.Config{
		Auth:    &handlers.Auth{Store: accounts, Session: session},
		Tenants: &handlers.Tenants{Registry: reg, Provisioner: prov, Lifecycle: lc, Notifier: notifier},
		App:     &handlers.TenantApp{},
		Health:  &handlers.Health{DB: store.DB()},
		Metrics: metricsHandler,
		Session: session,
		Resolve: middlewares.ResolveConfig{
			Resolver:        reg,
			Pools:           manager,
			ControlDatabase: cfg.Tenancy.ControlDatabase,
			Cache:           buildCache(cfg),
			CacheTTL:        cfg.CacheTTL(),
		},
		Guard: middlewares.GuardConfig{
			ControlDatabase: cfg.Tenancy.ControlDatabase,
			LegacyDatabase:  cfg.Tenancy.LegacyDatabase,
			Audit:           audit.ZapSink{},
			Metrics:         metrics.GuardCheck,
		},
		Pools:           manager,
		ControlDatabase: cfg.Tenancy.ControlDatabase,
	})

	lg.Info("mesadine escuchando",
		zap.String("addr", cfg.Server.Addr),
		logger.Database(cfg.Tenancy.ControlDatabase),
	)
	if err := httpx.StartWithShutdown(ctx, cfg.Server.Addr, handler); err != nil {
		lg.Fatal("server terminó con error", zap.Error(err))
	}
	lg.Info("apagado limpio")
}

func themeCatalog(cfg *config.Config) []themes.Entry {
	out := make([]themes.Entry, 0, len(cfg.Themes.Catalog))
	for _, t := range cfg.Themes.Catalog {
		out = append(out, themes.Entry{Code: t.Code, Name: t.Name, Version: t.Version})
	}
	return out
}

func buildCache(cfg *config.Config) cache.Cache {
	if cfg.Cache.Kind == "redis" {
		return rediscache.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.DB, cfg.Cache.Redis.Prefix)
	}
	return memcache.New(cfg.CacheTTL())
}

func notifyTo(cfg *config.Config) string {
	if !cfg.Notify.Enabled {
		return ""
	}
	return cfg.Notify.To
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
