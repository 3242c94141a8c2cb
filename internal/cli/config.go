package cli

import (
	stderrors "errors"
	"io/fs"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"

	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/cache"
	"github.com/nixpkgs-vault/nixpkgs-vault/pkg/errors"
)

// Defaults for a generate run.
const (
	defaultOutdir   = "nixpkgs-vault"
	defaultRevision = "nixos-unstable"
	defaultGitURL   = "https://github.com/NixOS/nixpkgs.git"
)

// Cache backends.
const (
	cacheBackendFile  = "file"
	cacheBackendRedis = "redis"
	cacheBackendNone  = "none"
)

// Config is the merged configuration of a generate run. Values come from
// the defaults, then the TOML config file, then flags set on the command
// line.
type Config struct {
	Outdir      string `toml:"outdir"`
	Revision    string `toml:"revision"`
	GitURL      string `toml:"git_url"`
	Threads     int    `toml:"threads"`
	Limit       int    `toml:"limit"`
	Input       string `toml:"input"`
	MetricsFile string `toml:"metrics_file"`
	GraphSVG    bool   `toml:"graph_svg"`
	Prune       bool   `toml:"prune"`

	Cache CacheConfig `toml:"cache"`
	Mongo MongoConfig `toml:"mongo"`
}

// CacheConfig selects where evaluations are cached.
type CacheConfig struct {
	Backend   string        `toml:"backend"`
	RedisAddr string        `toml:"redis_addr"`
	TTL       time.Duration `toml:"ttl"`
}

// MongoConfig enables the MongoDB mirror when URI is set.
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

func defaultConfig() Config {
	return Config{
		Outdir:   defaultOutdir,
		Revision: defaultRevision,
		GitURL:   defaultGitURL,
		Prune:    true,
		Cache: CacheConfig{
			Backend: cacheBackendFile,
			TTL:     cache.TTLEvaluation,
		},
		Mongo: MongoConfig{
			Database:   "nixpkgs_vault",
			Collection: "packages",
		},
	}
}

// loadConfig reads the config file at path over the defaults. An empty path
// means the default location, which may be missing; an explicit path must
// exist.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	explicit := path != ""
	if !explicit {
		p, err := configPath()
		if err != nil {
			return cfg, nil
		}
		path = p
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && stderrors.Is(err, fs.ErrNotExist) {
			return defaultConfig(), nil
		}
		return cfg, errors.Wrap(errors.ErrCodeInvalidInput, err, "read config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, errors.New(errors.ErrCodeInvalidInput, "config %s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, nil
}

// validate rejects values no run can use.
func (c *Config) validate() error {
	if c.Threads < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "threads must not be negative, got %d", c.Threads)
	}
	if c.Limit < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "limit must not be negative, got %d", c.Limit)
	}
	if c.Input == "" {
		if err := errors.ValidateGitURL(c.GitURL); err != nil {
			return err
		}
		if c.Revision == "" {
			return errors.New(errors.ErrCodeInvalidInput, "revision cannot be empty")
		}
	}
	switch c.Cache.Backend {
	case cacheBackendFile, cacheBackendRedis, cacheBackendNone:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q (must be one of: file, redis, none)", c.Cache.Backend)
	}
	return nil
}

// overlay copies every flag set on the command line from flagged into c.
func (c *Config) overlay(flags *pflag.FlagSet, flagged *Config) {
	set := map[string]func(){
		"outdir":       func() { c.Outdir = flagged.Outdir },
		"revision":     func() { c.Revision = flagged.Revision },
		"git-url":      func() { c.GitURL = flagged.GitURL },
		"threads":      func() { c.Threads = flagged.Threads },
		"limit":        func() { c.Limit = flagged.Limit },
		"input":        func() { c.Input = flagged.Input },
		"metrics-file": func() { c.MetricsFile = flagged.MetricsFile },
		"graph-svg":    func() { c.GraphSVG = flagged.GraphSVG },
	}
	flags.Visit(func(f *pflag.Flag) {
		if fn, ok := set[f.Name]; ok {
			fn()
		}
	})
}
