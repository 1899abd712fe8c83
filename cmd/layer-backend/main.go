package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mohammed-shakir/geo-layer-backend/internal/catalog"
	"github.com/mohammed-shakir/geo-layer-backend/internal/catalog/memory"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/config"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/health"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/observability"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/router"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/server"
	"github.com/mohammed-shakir/geo-layer-backend/internal/crs"
	"github.com/mohammed-shakir/geo-layer-backend/internal/events"
	"github.com/mohammed-shakir/geo-layer-backend/internal/layermeta"
	"github.com/mohammed-shakir/geo-layer-backend/internal/logger"
	"github.com/mohammed-shakir/geo-layer-backend/internal/metrics"
	"github.com/mohammed-shakir/geo-layer-backend/internal/negotiator"
	"github.com/mohammed-shakir/geo-layer-backend/internal/style"
	"github.com/mohammed-shakir/geo-layer-backend/internal/style/sld"
	"github.com/mohammed-shakir/geo-layer-backend/internal/style/ysld"
	"github.com/mohammed-shakir/geo-layer-backend/internal/stylestore/filestore"
	"github.com/mohammed-shakir/geo-layer-backend/internal/stylestore/redisstore"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	catalogFlag := flag.String("catalog", "", "catalog seed file (overrides CATALOG_FILE)")
	formatFlag := flag.String("style-format", "", "target style format: ysld or sld (overrides STYLE_FORMAT)")
	flag.Parse()

	cfg := config.FromEnv()
	if *catalogFlag != "" {
		cfg.CatalogFile = strings.TrimSpace(*catalogFlag)
	}
	if *formatFlag != "" {
		cfg.StyleFormat = strings.ToLower(strings.TrimSpace(*formatFlag))
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.Log.Level,
		Console:   cfg.Log.Console,
		SampleN:   cfg.Log.SampleN,
		Component: "layer-backend",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	appLog.Info("starting layer backend",
		"addr", cfg.Addr,
		"version", Version,
		"catalog", cfg.CatalogFile,
		"style_backend", cfg.StyleBackend,
		"style_format", cfg.StyleFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := metrics.Init(metrics.Config{
		Enabled: cfg.Metrics.Enabled,
		Addr:    cfg.Metrics.Addr,
		Path:    cfg.Metrics.Path,
		Build: metrics.BuildInfo{
			Version:   Version,
			Revision:  os.Getenv("BUILD_REVISION"),
			Branch:    os.Getenv("BUILD_BRANCH"),
			BuildDate: os.Getenv("BUILD_DATE"),
		},
	})
	observability.Init(p.Registerer(), cfg.Metrics.Enabled)
	if cfg.Metrics.Enabled && cfg.Metrics.Addr != "" {
		go func() {
			if err := p.Serve(ctx, appLog); err != nil {
				appLog.Error("metrics server exited", "err", err)
			}
		}()
	}

	resolver := crs.NewResolver(cfg.CRSCacheSize)
	cat, seed, err := memory.LoadFile(cfg.CatalogFile, resolver, appLog)
	if err != nil {
		appLog.Error("catalog load failed", "err", err)
		return 1
	}

	store, ready, closeStore, err := openStore(ctx, cfg, appLog)
	if err != nil {
		appLog.Error("style store setup failed", "backend", cfg.StyleBackend, "err", err)
		return 1
	}
	defer closeStore()

	if n, err := memory.WriteBodies(ctx, store, seed.Bodies); err != nil {
		appLog.Error("seeding style bodies failed", "err", err)
		return 1
	} else if n > 0 {
		appLog.Info("seeded style bodies", "count", n)
	}

	opts := []negotiator.Option{negotiator.WithLogger(appLog.With("component", "negotiator"))}
	if cfg.Events.Enabled {
		pub, err := events.NewPublisher(cfg.Events.BrokerList(), cfg.Events.Topic, 0, appLog)
		if err != nil {
			// events are best effort; run without them
			appLog.Warn("style events disabled", "err", err)
		} else {
			defer func() {
				if err := pub.Close(); err != nil {
					appLog.Warn("closing event publisher", "err", err)
				}
			}()
			opts = append(opts, negotiator.WithPublisher(pub))
		}
	}

	registry := style.NewRegistry(ysld.Format{}, sld.Format{})
	neg, err := negotiator.New(cat, store, registry, cfg.StyleFormat, opts...)
	if err != nil {
		appLog.Error("negotiator setup failed", "err", err, "known", registry.Names())
		return 1
	}

	deps := server.Deps{
		Layers: router.New(cat, layermeta.New(appLog.With("component", "layermeta")), neg, cfg.StyleMaxBytes, appLog),
		Ready:  ready,
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		deps.Metrics = p.Handler()
	}

	if err := server.Run(ctx, cfg.Addr, appLog, deps); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (catalog.StyleStore, map[string]health.Pinger, func(), error) {
	switch cfg.StyleBackend {
	case config.BackendRedis:
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		cli, err := redisstore.New(dialCtx, cfg.Redis.Addr,
			redisstore.WithPoolSize(cfg.Redis.PoolSize),
			redisstore.WithDialTimeout(cfg.Redis.DialTimeout),
			redisstore.WithReadTimeout(cfg.StoreOpTimeout),
			redisstore.WithWriteTimeout(cfg.StoreOpTimeout),
		)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := cli.Close(); err != nil {
				log.Warn("closing redis client", "err", err)
			}
		}
		return redisstore.NewStore(cli, cfg.Redis.KeyPrefix, cfg.StoreOpTimeout),
			map[string]health.Pinger{"redis": cli}, closeFn, nil
	case config.BackendMemory:
		return memory.NewStyleStore(), nil, func() {}, nil
	case config.BackendFile:
		st, err := filestore.New(cfg.DataDir)
		if err != nil {
			return nil, nil, nil, err
		}
		return st, nil, func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown style backend %q", cfg.StyleBackend)
	}
}
