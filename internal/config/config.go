// Package config loads hadash settings: built-in defaults, then an optional
// TOML file, then HADASH_* environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

// Store backends for the dashboard's key-value storage.
const (
	StoreJSON   = "json"
	StoreSQLite = "sqlite"
)

// Config holds every setting of both binaries. The dashboard ignores the
// backend fields and the backend ignores the dashboard fields.
type Config struct {
	Addr      string `toml:"addr"`
	DataDir   string `toml:"data_dir"`
	Store     string `toml:"store"`
	KeyPrefix string `toml:"key_prefix"`
	Debug     bool   `toml:"debug"`

	// Dashboard
	ProfilesURL string `toml:"profiles_url"` // "" disables profiles
	APIKey      string `toml:"api_key"`      // sent to the profile backend
	UserID      string `toml:"user_id"`
	DeviceLabel string `toml:"device_label"` // "" uses the hostname
	MDNS        bool   `toml:"mdns"`

	// Profile backend
	DBPath     string  `toml:"db_path"`
	RatePerSec float64 `toml:"rate_per_sec"` // 0 disables rate limiting
	Burst      int     `toml:"burst"`
}

// Default returns the dashboard defaults.
func Default() Config {
	return Config{
		Addr:      ":8080",
		DataDir:   defaultDataDir(),
		Store:     StoreJSON,
		KeyPrefix: "hadash:",
		UserID:    "default",
		MDNS:      true,
	}
}

// DefaultBackend returns the profile backend defaults.
func DefaultBackend() Config {
	c := Default()
	c.Addr = ":8090"
	c.MDNS = false
	c.RatePerSec = 5
	c.Burst = 20
	return c
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "hadash")
}

// Load applies the config file named by --config (if any), the environment
// and args over base. Flags are GNU style (--addr :8080). getenv is usually
// os.Getenv.
func Load(base Config, name string, args []string, getenv func(string) string) (Config, error) {
	cfg := base
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	path := fs.String("config", "", "TOML config file")
	flagVals := bindFlags(fs, base)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if *path != "" {
		if err := LoadTOML(*path, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return Config{}, err
	}
	// Only flags given on the command line override file and environment.
	fs.Visit(func(f *pflag.Flag) {
		if apply, ok := flagVals[f.Name]; ok {
			apply(&cfg)
		}
	})

	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(cfg.DataDir, "profiles.db")
	}
	return cfg, cfg.Validate()
}

// bindFlags registers one flag per field and returns, per flag name, a
// function copying the parsed value into a Config.
func bindFlags(fs *pflag.FlagSet, d Config) map[string]func(*Config) {
	var (
		addr        = fs.String("addr", d.Addr, "HTTP listen address")
		dataDir     = fs.String("data-dir", d.DataDir, "data directory")
		store       = fs.String("store", d.Store, "settings store: json or sqlite")
		keyPrefix   = fs.String("key-prefix", d.KeyPrefix, "prefix for settings keys")
		debug       = fs.Bool("debug", d.Debug, "enable debug logging")
		profilesURL = fs.String("profiles-url", d.ProfilesURL, "profile backend base URL")
		apiKey      = fs.String("api-key", d.APIKey, "profile backend API key")
		userID      = fs.String("user-id", d.UserID, "user the profiles belong to")
		deviceLabel = fs.String("device-label", d.DeviceLabel, "label attached to saved profiles")
		mdns        = fs.Bool("mdns", d.MDNS, "advertise over mDNS")
		dbPath      = fs.String("db", d.DBPath, "profile database path")
		rate        = fs.Float64("rate", d.RatePerSec, "requests per second per user, 0 for unlimited")
		burst       = fs.Int("burst", d.Burst, "rate limit burst")
	)
	return map[string]func(*Config){
		"addr":         func(c *Config) { c.Addr = *addr },
		"data-dir":     func(c *Config) { c.DataDir = *dataDir },
		"store":        func(c *Config) { c.Store = *store },
		"key-prefix":   func(c *Config) { c.KeyPrefix = *keyPrefix },
		"debug":        func(c *Config) { c.Debug = *debug },
		"profiles-url": func(c *Config) { c.ProfilesURL = *profilesURL },
		"api-key":      func(c *Config) { c.APIKey = *apiKey },
		"user-id":      func(c *Config) { c.UserID = *userID },
		"device-label": func(c *Config) { c.DeviceLabel = *deviceLabel },
		"mdns":         func(c *Config) { c.MDNS = *mdns },
		"db":           func(c *Config) { c.DBPath = *dbPath },
		"rate":         func(c *Config) { c.RatePerSec = *rate },
		"burst":        func(c *Config) { c.Burst = *burst },
	}
}

// LoadTOML decodes the file at path over cfg. Unknown keys are an error.
func LoadTOML(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("config: %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// applyEnv applies HADASH_* overrides.
func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	str("HADASH_ADDR", &cfg.Addr)
	str("HADASH_DATA_DIR", &cfg.DataDir)
	str("HADASH_STORE", &cfg.Store)
	str("HADASH_PROFILES_URL", &cfg.ProfilesURL)
	str("HADASH_API_KEY", &cfg.APIKey)
	str("HADASH_USER_ID", &cfg.UserID)
	str("HADASH_DEVICE_LABEL", &cfg.DeviceLabel)
	str("HADASH_DB_PATH", &cfg.DBPath)
	if v := getenv("HADASH_DEBUG"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: HADASH_DEBUG: %w", err)
		}
		cfg.Debug = b
	}
	return nil
}

// Validate checks field values.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	if c.Store != StoreJSON && c.Store != StoreSQLite {
		errs = append(errs, fmt.Errorf("store must be %q or %q, got %q", StoreJSON, StoreSQLite, c.Store))
	}
	if c.ProfilesURL != "" && c.UserID == "" {
		errs = append(errs, errors.New("user_id is required when profiles_url is set"))
	}
	if c.RatePerSec < 0 {
		errs = append(errs, errors.New("rate_per_sec must not be negative"))
	}
	if c.RatePerSec > 0 && c.Burst < 1 {
		errs = append(errs, errors.New("burst must be at least 1 when rate limiting"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
