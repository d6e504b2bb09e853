package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/codeflow"
	"github.com/aretw0/codeflow/internal/adapters/badger"
	"github.com/aretw0/codeflow/internal/adapters/file"
	"github.com/aretw0/codeflow/internal/config"
	"github.com/aretw0/codeflow/pkg/adapters/jsvm"
	"github.com/aretw0/codeflow/pkg/adapters/memory"
	"github.com/aretw0/codeflow/pkg/adapters/process"
	"github.com/aretw0/codeflow/pkg/adapters/redis"
	"github.com/aretw0/codeflow/pkg/observability"
	"github.com/aretw0/codeflow/pkg/persistence/middleware"
	"github.com/aretw0/codeflow/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
)

// Runtime is an engine assembled from configuration.
type Runtime struct {
	Engine   *codeflow.Engine
	Registry *prometheus.Registry
	Logger   *slog.Logger
	Config   config.Config
}

// Close releases the store of the engine.
func (r *Runtime) Close() error {
	return r.Engine.Close()
}

// createEngine initializes a codeflow engine with the executor, store and
// metrics described by cfg.
func createEngine(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	executor, err := createExecutor(cfg.Executor)
	if err != nil {
		return nil, err
	}

	store, locker, err := createStore(cfg.Store, logger)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	opts := []codeflow.Option{
		codeflow.WithLogger(logger),
		codeflow.WithExecutor(executor),
		codeflow.WithStore(store),
		codeflow.WithTraceHooks(observability.Chain(
			observability.LoggingHooks(logger),
			metrics.Hooks(),
		)),
		codeflow.WithMaxEvents(cfg.Executor.MaxEvents),
		codeflow.WithMaxSourceBytes(cfg.Limits.MaxSourceBytes),
		codeflow.WithMaxConcurrent(cfg.Server.MaxConcurrent),
	}
	if locker != nil {
		opts = append(opts, codeflow.WithLocker(locker))
	}

	return &Runtime{
		Engine:   codeflow.New(opts...),
		Registry: reg,
		Logger:   logger,
		Config:   cfg,
	}, nil
}

func createExecutor(cfg config.ExecutorConfig) (ports.Executor, error) {
	switch cfg.Kind {
	case "", "goja":
		return jsvm.New(jsvm.WithTimeout(cfg.Timeout)), nil
	case "node":
		pcfg, err := process.LoadConfig(cfg.ProcessConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load process config: %w", err)
		}
		if cfg.NodePath != "" {
			pcfg.Command = cfg.NodePath
		}
		pcfg.Timeout = cfg.Timeout
		return process.New(pcfg), nil
	default:
		return nil, fmt.Errorf("unknown executor kind %q", cfg.Kind)
	}
}

func createStore(cfg config.StoreConfig, logger *slog.Logger) (ports.RecordingStore, ports.DistributedLocker, error) {
	store, locker, err := openStore(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	mws, err := storeMiddlewares(cfg)
	if err != nil {
		_ = closeStore(store)
		return nil, nil, err
	}
	return middleware.Chain(store, mws...), locker, nil
}

// storeMiddlewares redacts before sealing, so sealed recordings hold masked values.
func storeMiddlewares(cfg config.StoreConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		mw, err := middleware.NewRedactionMiddleware(cfg.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if cfg.EncryptionKey != "" {
		active, err := middleware.DecodeKey(cfg.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid encryption key: %w", err)
		}
		enc := middleware.EncryptionConfig{ActiveKey: active}
		for _, k := range cfg.FallbackKeys {
			key, err := middleware.DecodeKey(k)
			if err != nil {
				return nil, fmt.Errorf("invalid fallback key: %w", err)
			}
			enc.FallbackKeys = append(enc.FallbackKeys, key)
		}
		mw, err := middleware.NewEncryptionMiddleware(enc)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return mws, nil
}

func closeStore(store ports.RecordingStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func openStore(cfg config.StoreConfig, logger *slog.Logger) (ports.RecordingStore, ports.DistributedLocker, error) {
	switch cfg.Kind {
	case "", "memory":
		return memory.NewStore(), nil, nil
	case "file":
		return file.New(cfg.Path), nil, nil
	case "badger":
		bcfg := badger.DefaultConfig(cfg.Path)
		bcfg.Logger = logger.With("component", "badger")
		store, err := badger.Open(bcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return store, nil, nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := redis.NewFromClient(client,
			redis.WithPrefix(cfg.Prefix+"recording:"),
			redis.WithTTL(cfg.TTL),
		)
		return store, redis.NewLocker(client, cfg.Prefix), nil
	default:
		return nil, nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}
