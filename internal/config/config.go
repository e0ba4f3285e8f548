// Package config loads runtime settings from the environment, reading a
// local .env file first when one exists.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/cyphera/cyphera-session/internal/constants"
	"github.com/cyphera/cyphera-session/pkg/cairo"
	"github.com/cyphera/cyphera-session/pkg/typedhash"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	defaultSessionTTL = 24 * time.Hour
	defaultWindow     = 10 * time.Minute
)

// ErrInvalidConfig is returned for a setting that fails to parse.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds everything the session tooling reads from the environment.
type Config struct {
	Stage    string
	LogLevel string

	// ChainName is the short-string chain id, e.g. SN_SEPOLIA.
	ChainName string
	ChainID   felt.Felt
	// AccountAddress is zero when ACCOUNT_ADDRESS is unset.
	AccountAddress felt.Felt

	SessionTTL             time.Duration
	OutsideExecutionWindow time.Duration
}

// Load reads .env files (missing files are ignored) and then the process
// environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "failed to load .env file")
	}
	return FromEnv()
}

// FromEnv reads the process environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Stage:     getEnvWithDefault("STAGE", constants.StageLocal),
		LogLevel:  os.Getenv("LOG_LEVEL"),
		ChainName: getEnvWithDefault("STARKNET_CHAIN_ID", constants.ChainSepolia),
	}

	if !constants.IsValidStage(cfg.Stage) {
		return nil, errors.Wrapf(ErrInvalidConfig, "STAGE %q", cfg.Stage)
	}

	chainID, err := typedhash.ChainID(cfg.ChainName)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidConfig, "STARKNET_CHAIN_ID %q: %v", cfg.ChainName, err)
	}
	cfg.ChainID = chainID

	if raw := os.Getenv("ACCOUNT_ADDRESS"); raw != "" {
		addr, err := cairo.FeltFromHex(raw)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidConfig, "ACCOUNT_ADDRESS: %v", err)
		}
		cfg.AccountAddress = addr
	}

	if cfg.SessionTTL, err = durationFromEnv("SESSION_TTL", defaultSessionTTL); err != nil {
		return nil, err
	}
	if cfg.OutsideExecutionWindow, err = durationFromEnv("OUTSIDE_EXECUTION_WINDOW", defaultWindow); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SessionExpiry is the expires_at for a session created at now.
func (c *Config) SessionExpiry(now time.Time) uint64 {
	return uint64(now.Add(c.SessionTTL).Unix())
}

// ExecutionWindow is the [after, before) window for an outside execution
// built at now.
func (c *Config) ExecutionWindow(now time.Time) (after, before uint64) {
	return uint64(now.Unix()), uint64(now.Add(c.OutsideExecutionWindow).Unix())
}

func durationFromEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		secs, serr := strconv.ParseUint(raw, 10, 32)
		if serr != nil {
			return 0, errors.Wrapf(ErrInvalidConfig, "%s %q", key, raw)
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		return 0, errors.Wrapf(ErrInvalidConfig, "%s must be positive", key)
	}
	return d, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
