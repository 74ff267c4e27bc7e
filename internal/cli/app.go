package cli

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/graphmem/graphmem/internal/config"
	"github.com/graphmem/graphmem/pkg/cache"
	"github.com/graphmem/graphmem/pkg/clock"
	"github.com/graphmem/graphmem/pkg/index"
	"github.com/graphmem/graphmem/pkg/memory"
	"github.com/graphmem/graphmem/pkg/query"
	"github.com/graphmem/graphmem/pkg/render"
	"github.com/graphmem/graphmem/pkg/substrate"
)

// app holds the wired components every command runs against. It is built
// once per invocation from the loaded config and closed when the command
// returns.
type app struct {
	cfg      config.Config
	store    *memory.Store
	index    *index.Index
	engine   *query.Engine
	renderer *render.Renderer

	sub       substrate.Substrate
	edgeCache cache.Cache
}

// newApp wires the substrate, store, index, engine, and renderer per cfg.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	logger := loggerFromContext(ctx)
	clk := clock.NewSystem()

	sub, edgeCache, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Store.OpTimeout.Duration > 0 {
		sub = substrate.WithTimeout(sub, cfg.Store.OpTimeout.Duration)
	}
	logger.Debugf("backend ready: %s", cfg.Backend)

	store := memory.NewStore(sub, clk, memory.StoreConfig{
		MaxAttributeBytes: cfg.Store.MaxAttributeBytes,
	})
	ix := index.New(store, edgeCache, clk, index.Config{
		CacheTTL: cfg.Index.CacheTTL.Duration,
	})
	engine := query.New(store, ix, clk, query.Config{
		IDPrefixes: cfg.Store.IDPrefixes,
		Logger:     logger,
	})
	renderer := render.New(store, ix, clk, render.Config{
		MaxIterations: cfg.Render.MaxIterations,
	})

	return &app{
		cfg:       cfg,
		store:     store,
		index:     ix,
		engine:    engine,
		renderer:  renderer,
		sub:       sub,
		edgeCache: edgeCache,
	}, nil
}

// openBackend opens the configured substrate and pairs it with an edge
// cache. Redis deployments share the connection for both; everything else
// caches in process memory.
func openBackend(ctx context.Context, cfg config.Config) (substrate.Substrate, cache.Cache, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		opts := &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}
		sub, err := substrate.NewRedis(ctx, opts)
		if err != nil {
			return nil, nil, err
		}
		edgeCache, err := cache.NewRedisCache(ctx, opts)
		if err != nil {
			_ = sub.Close()
			return nil, nil, err
		}
		return sub, edgeCache, nil

	case config.BackendMongo:
		sub, err := substrate.NewMongo(ctx, substrate.MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
		if err != nil {
			return nil, nil, err
		}
		return sub, cache.NewMemoryCache(), nil

	default:
		return substrate.NewMemory(), cache.NewMemoryCache(), nil
	}
}

func (a *app) Close() error {
	if a.edgeCache != nil {
		_ = a.edgeCache.Close()
	}
	if a.sub != nil {
		return a.sub.Close()
	}
	return nil
}

// withApp wraps a command body with config loading and app lifecycle.
func withApp(ctx context.Context, configPath string, fn func(*app) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	var spin *spinner
	if cfg.Backend != config.BackendMemory {
		spin = startSpinner(ctx, "connecting to "+cfg.Backend)
	}
	a, err := newApp(ctx, cfg)
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
