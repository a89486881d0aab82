package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
)

// Config holds the server settings. Every flag falls back to an
// environment variable, then to a built-in default.
type Config struct {
	Addr          string
	ClientDir     string
	PublicURL     string
	WorldFile     string
	LogLevel      string
	LogFormat     string
	Seed          uint64
	MaxConnsPerIP int
	MaxConns      int
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// LoadConfig parses args over the environment.
func LoadConfig(args []string) (Config, error) {
	perIP, err := envInt("ARENA_MAX_CONNS_PER_IP", 5)
	if err != nil {
		return Config{}, err
	}
	total, err := envInt("ARENA_MAX_CONNS", 1000)
	if err != nil {
		return Config{}, err
	}
	seed, err := strconv.ParseUint(envDefault("ARENA_SEED", "0"), 10, 64)
	if err != nil {
		return Config{}, fmt.Errorf("ARENA_SEED: %w", err)
	}

	var cfg Config
	fs := flag.NewFlagSet("arena-server", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", envDefault("ARENA_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.ClientDir, "client", envDefault("ARENA_CLIENT_DIR", ""), "Path to static client files (empty: none)")
	fs.StringVar(&cfg.PublicURL, "public-url", envDefault("ARENA_PUBLIC_URL", ""), "Join link encoded by /qr (default: request host)")
	fs.StringVar(&cfg.WorldFile, "world", envDefault("ARENA_WORLD", ""), "JSON file overriding the default world options")
	fs.StringVar(&cfg.LogLevel, "log-level", envDefault("LOG_LEVEL", "info"), "Log level")
	fs.StringVar(&cfg.LogFormat, "log-format", envDefault("LOG_FORMAT", "text"), "Log format: text or json")
	fs.Uint64Var(&cfg.Seed, "seed", seed, "World random seed (0: from clock)")
	fs.IntVar(&cfg.MaxConnsPerIP, "max-conns-per-ip", perIP, "Connections allowed per remote address")
	fs.IntVar(&cfg.MaxConns, "max-conns", total, "Connections allowed in total")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.MaxConnsPerIP <= 0 || cfg.MaxConns <= 0 {
		return Config{}, fmt.Errorf("connection limits must be positive: %d per ip, %d total", cfg.MaxConnsPerIP, cfg.MaxConns)
	}
	return cfg, nil
}

func (c Config) Limits() Limits {
	return Limits{MaxConnsPerIP: c.MaxConnsPerIP, MaxTotalConns: c.MaxConns}
}
