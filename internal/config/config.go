package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"dromadaire/internal/registry"
	"dromadaire/internal/sugar"
)

const envPrefix = "DROMADAIRE"

var defaultRPC = map[string]string{
	"8453": "https://mainnet.base.org",
	"1135": "https://rpc.api.lisk.com",
	"10":   "https://mainnet.optimism.io",
	"130":  "https://mainnet.unichain.org",
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	// Chains overrides the default selection when set.
	Chains         []string
	RPC            map[string]string
	Sugar          map[string]string
	PageSize       uint64
	MaxPools       uint64
	MaxRetries     int
	RetryBackoff   time.Duration
	FetchTimeout   time.Duration
	MaxConcurrency int64
	OpenTimeout    time.Duration
	StateFile      string
	PGDSN          string
	MetricsAddr    string
	LogLevel       string
	LogFile        string
}

// Load merges .env, config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags)
	if err != nil {
		return Config{}, err
	}
	return fromViper(v), nil
}

// Endpoints returns the RPC and LpSugar location of every catalog source.
func (c Config) Endpoints() map[string]sugar.Endpoint {
	out := make(map[string]sugar.Endpoint, len(c.RPC))
	for _, src := range registry.Catalog() {
		out[src.ID] = sugar.Endpoint{RPCURL: c.RPC[src.ID], Sugar: c.Sugar[src.ID]}
	}
	return out
}

// HandleConfig returns the per-handle paging and retry settings.
func (c Config) HandleConfig() sugar.HandleConfig {
	return sugar.HandleConfig{
		PageSize:       c.PageSize,
		MaxPools:       c.MaxPools,
		MaxRetries:     c.MaxRetries,
		RetryBackoff:   c.RetryBackoff,
		MaxConcurrency: c.MaxConcurrency,
		OpenTimeout:    c.OpenTimeout,
	}
}

func newViper(cfgFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault("page-size", uint64(300))
	v.SetDefault("max-pools", uint64(3000))
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 300*time.Millisecond)
	v.SetDefault("fetch-timeout", 45*time.Second)
	v.SetDefault("max-concurrency", 4)
	v.SetDefault("open-timeout", 15*time.Second)
	v.SetDefault("state-file", defaultStateFile())
	v.SetDefault("log-level", "info")
	v.SetDefault("log-file", "./data/dromadaire.log")
	for id, url := range defaultRPC {
		v.SetDefault("rpc."+id, url)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func fromViper(v *viper.Viper) Config {
	cfg := Config{
		Chains:         getStringSlice(v, "chains"),
		RPC:            make(map[string]string),
		Sugar:          make(map[string]string),
		PageSize:       v.GetUint64("page-size"),
		MaxPools:       v.GetUint64("max-pools"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		FetchTimeout:   v.GetDuration("fetch-timeout"),
		MaxConcurrency: v.GetInt64("max-concurrency"),
		OpenTimeout:    v.GetDuration("open-timeout"),
		StateFile:      expandHome(v.GetString("state-file")),
		PGDSN:          v.GetString("pg-dsn"),
		MetricsAddr:    v.GetString("metrics-addr"),
		LogLevel:       v.GetString("log-level"),
		LogFile:        v.GetString("log-file"),
	}
	for _, src := range registry.Catalog() {
		if url := strings.TrimSpace(v.GetString("rpc." + src.ID)); url != "" {
			cfg.RPC[src.ID] = url
		}
		if addr := strings.TrimSpace(v.GetString("sugar." + src.ID)); addr != "" {
			cfg.Sugar[src.ID] = addr
		}
	}
	return cfg
}

// loadDotEnv exports variables from path without overriding the environment.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func defaultStateFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("data", "state.toml")
	}
	return filepath.Join(home, ".config", "dromadaire", "state.toml")
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
