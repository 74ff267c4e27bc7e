// Package config loads graphmem configuration from TOML.
//
// Every field has a usable default, so a missing config file yields a working
// in-memory deployment. The file path comes from the --config flag or the
// GRAPHMEM_CONFIG environment variable.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/graphmem/graphmem/pkg/errors"
)

// EnvConfigPath names the environment variable holding the config file path.
const EnvConfigPath = "GRAPHMEM_CONFIG"

// Backend names.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

// Config is the full graphmem configuration.
type Config struct {
	// Backend selects the persistence substrate: memory, redis, or mongo.
	Backend string `toml:"backend"`

	Redis  Redis  `toml:"redis"`
	Mongo  Mongo  `toml:"mongo"`
	Store  Store  `toml:"store"`
	Index  Index  `toml:"index"`
	Render Render `toml:"render"`
}

// Redis configures the redis substrate and cache.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// Mongo configures the mongo substrate.
type Mongo struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// Store tunes the node store.
type Store struct {
	// MaxAttributeBytes bounds the encoded size of a single attribute value.
	MaxAttributeBytes int `toml:"max_attribute_bytes"`
	// OpTimeout bounds each substrate operation.
	OpTimeout duration `toml:"op_timeout"`
	// IDPrefixes extends the set of prefixes the query classifier treats as
	// node ID probes.
	IDPrefixes []string `toml:"id_prefixes"`
}

// Index tunes the relationship index.
type Index struct {
	// CacheTTL bounds edge cache staleness. Negative disables caching.
	CacheTTL duration `toml:"cache_ttl"`
}

// Render tunes the visualization renderer.
type Render struct {
	MaxIterations int `toml:"max_iterations"`
	DefaultHours  int `toml:"default_hours"`
	DefaultLimit  int `toml:"default_limit"`
}

// Default returns the configuration used when no file is present: an
// in-memory backend with library defaults everywhere.
func Default() Config {
	return Config{
		Backend: BackendMemory,
		Redis: Redis{
			Addr: "localhost:6379",
		},
		Mongo: Mongo{
			URI:        "mongodb://localhost:27017",
			Database:   "graphmem",
			Collection: "nodes",
		},
		Store: Store{
			OpTimeout: duration{5 * time.Second},
		},
	}
}

// Load reads a TOML config file over the defaults. An empty path consults
// GRAPHMEM_CONFIG; if that is empty too, the defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeValidation, err, "read config %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeValidation, err, "parse config %s", path)
	}

	switch cfg.Backend {
	case BackendMemory, BackendRedis, BackendMongo:
	default:
		return Config{}, errors.New(errors.ErrCodeValidation, "unknown backend: %q", cfg.Backend)
	}
	return cfg, nil
}

// duration wraps time.Duration so TOML files can use strings like "5s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}
