package config

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the server settings
type Config struct {
	Addr          string
	JournalPath   string
	LogLevel      string
	LogDev        bool
	JWTSecret     []byte
	TickRate      int
	BroadcastRate int
	Seed          uint64
	PoolCapacity  int
	WaveInterval  time.Duration
	Heroes        int
	Autopilot     bool
}

// GetEnvDefault returns the environment value of key, or defaultValue when unset
func GetEnvDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func envInt(key string, def int) int {
	if v, err := strconv.Atoi(GetEnvDefault(key, "")); err == nil {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(GetEnvDefault(key, "")); err == nil {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(GetEnvDefault(key, "")); err == nil {
		return v
	}
	return def
}

// Load parses args (without the program name). Defaults come from the environment.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("effects-server", flag.ContinueOnError)
	var (
		cfg    Config
		secret string
		seed   string
	)
	fs.StringVar(&cfg.Addr, "addr", GetEnvDefault("EFFECTS_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.JournalPath, "journal", GetEnvDefault("EFFECTS_JOURNAL", ":memory:"), "SQLite combat journal path")
	fs.StringVar(&cfg.LogLevel, "log-level", GetEnvDefault("EFFECTS_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	fs.BoolVar(&cfg.LogDev, "log-dev", envBool("EFFECTS_LOG_DEV", false), "Human readable development logs")
	fs.StringVar(&secret, "jwt-secret", GetEnvDefault("EFFECTS_JWT_SECRET", ""), "Hex encoded observer token secret (random when empty)")
	fs.IntVar(&cfg.TickRate, "tick-rate", envInt("EFFECTS_TICK_RATE", 60), "Simulation ticks per second")
	fs.IntVar(&cfg.BroadcastRate, "broadcast-rate", envInt("EFFECTS_BROADCAST_RATE", 30), "Replication frames per second")
	fs.StringVar(&seed, "seed", GetEnvDefault("EFFECTS_SEED", "1"), "Wave RNG seed")
	fs.IntVar(&cfg.PoolCapacity, "pool-capacity", envInt("EFFECTS_POOL_CAPACITY", 32), "Pooled entities kept per ability class")
	fs.DurationVar(&cfg.WaveInterval, "wave-interval", envDuration("EFFECTS_WAVE_INTERVAL", 20*time.Second), "Time between waves")
	fs.IntVar(&cfg.Heroes, "heroes", envInt("EFFECTS_HEROES", 1), "Heroes per match")
	fs.BoolVar(&cfg.Autopilot, "autopilot", envBool("EFFECTS_AUTOPILOT", true), "Let heroes cast on their own")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	var err error
	if cfg.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return Config{}, fmt.Errorf("seed %q: %w", seed, err)
	}
	if secret != "" {
		if cfg.JWTSecret, err = hex.DecodeString(secret); err != nil {
			return Config{}, fmt.Errorf("jwt secret: %w", err)
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks value ranges
func (c Config) Validate() error {
	var errs []error
	if c.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tick rate must be positive, got %d", c.TickRate))
	}
	if c.BroadcastRate <= 0 || c.BroadcastRate > c.TickRate {
		errs = append(errs, fmt.Errorf("broadcast rate must be in (0, %d], got %d", c.TickRate, c.BroadcastRate))
	}
	if c.PoolCapacity < 0 {
		errs = append(errs, fmt.Errorf("pool capacity must not be negative, got %d", c.PoolCapacity))
	}
	if c.WaveInterval <= 0 {
		errs = append(errs, fmt.Errorf("wave interval must be positive, got %s", c.WaveInterval))
	}
	if c.Heroes < 1 || c.Heroes > 8 {
		errs = append(errs, fmt.Errorf("heroes must be in [1, 8], got %d", c.Heroes))
	}
	if len(c.JWTSecret) > 0 && len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("jwt secret must be at least 16 bytes"))
	}
	return errors.Join(errs...)
}

// TickLength returns the simulation step in seconds
func (c Config) TickLength() float64 { return 1 / float64(c.TickRate) }

// BroadcastEvery returns how many ticks pass between replication frames
func (c Config) BroadcastEvery() int { return max(1, c.TickRate/c.BroadcastRate) }
