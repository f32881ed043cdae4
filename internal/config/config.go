package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"cardanoScope/internal/ledger"
)

// Registry backends.
const (
	RegistryNone     = ""
	RegistryPgx      = "pgx"
	RegistryPostgres = "postgres"
	RegistrySQLite   = "sqlite"
)

// Sink kinds.
const (
	SinkJsonl = "jsonl"
	SinkNats  = "nats"
)

// RegistryConfig selects the native asset registry.
type RegistryConfig struct {
	Backend string
	DSN     string
}

// Enabled reports whether a registry backend is configured.
func (c RegistryConfig) Enabled() bool {
	return c.Backend != RegistryNone
}

func (c RegistryConfig) Validate() error {
	switch c.Backend {
	case RegistryNone:
		return nil
	case RegistryPgx, RegistryPostgres, RegistrySQLite:
	default:
		return fmt.Errorf("unknown registry backend %q (want pgx, postgres or sqlite)", c.Backend)
	}
	if c.DSN == "" {
		return fmt.Errorf("registry dsn is required for backend %s", c.Backend)
	}
	return nil
}

// NormalizeConfig holds configuration for the normalize command.
type NormalizeConfig struct {
	In                string
	Sink              string
	Out               string
	NatsURL           string
	Errors            string
	Registry          RegistryConfig
	Assets            []string
	BatchSize         int
	Workers           int
	LookupChunk       int
	Checkpoint        string
	CheckpointEnabled bool
	CheckpointDB      bool
	StateName         string
	MaxRetries        int
	RetryBackoff      time.Duration
	MetricsAddr       string
	LogLevel          string
}

// LoadNormalize merges config file, environment variables, and flags into NormalizeConfig.
func LoadNormalize(cfgFile string, flags *pflag.FlagSet) (NormalizeConfig, error) {
	v := newViper()
	v.SetDefault("sink", SinkJsonl)
	v.SetDefault("out", "./data/outputs.jsonl")
	v.SetDefault("errors", "./data/decode_errors.jsonl")
	v.SetDefault("batch-size", 1000)
	v.SetDefault("workers", 4)
	v.SetDefault("lookup-chunk", 500)
	v.SetDefault("checkpoint", "./data/checkpoint.json")
	v.SetDefault("checkpoint-enabled", true)
	v.SetDefault("state-name", "normalize")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("log-level", "info")

	if err := readConfig(v, cfgFile, flags); err != nil {
		return NormalizeConfig{}, err
	}

	cfg := NormalizeConfig{
		In:      v.GetString("in"),
		Sink:    strings.ToLower(v.GetString("sink")),
		Out:     v.GetString("out"),
		NatsURL: v.GetString("nats-url"),
		Errors:  v.GetString("errors"),
		Registry: RegistryConfig{
			Backend: strings.ToLower(v.GetString("registry")),
			DSN:     v.GetString("registry-dsn"),
		},
		Assets:            getStringSlice(v, "asset"),
		BatchSize:         v.GetInt("batch-size"),
		Workers:           v.GetInt("workers"),
		LookupChunk:       v.GetInt("lookup-chunk"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		CheckpointDB:      v.GetBool("checkpoint-db"),
		StateName:         v.GetString("state-name"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		MetricsAddr:       v.GetString("metrics-addr"),
		LogLevel:          v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks values that flags and defaults cannot enforce.
func (c NormalizeConfig) Validate() error {
	if c.In == "" {
		return fmt.Errorf("input path is required")
	}
	switch c.Sink {
	case SinkJsonl:
		if c.Out == "" {
			return fmt.Errorf("output path is required")
		}
	case SinkNats:
		if c.NatsURL == "" {
			return fmt.Errorf("nats url is required")
		}
	default:
		return fmt.Errorf("unknown sink %q (want jsonl or nats)", c.Sink)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if c.LookupChunk <= 0 {
		return fmt.Errorf("lookup chunk must be greater than zero")
	}
	if c.CheckpointDB && c.Registry.Backend != RegistryPgx {
		return fmt.Errorf("checkpoint-db requires the pgx registry backend")
	}
	if _, err := c.Selectors(); err != nil {
		return err
	}
	return c.Registry.Validate()
}

// Selectors parses the tracked asset list.
func (c NormalizeConfig) Selectors() ([]ledger.AssetSelector, error) {
	return ParseSelectors(c.Assets)
}

// AssetsConfig holds configuration for the assets commands.
type AssetsConfig struct {
	Registry  RegistryConfig
	Assets    []string
	FirstSlot int64
	Migrate   bool
	LogLevel  string
}

// LoadAssets merges config file, environment variables, and flags into AssetsConfig.
func LoadAssets(cfgFile string, flags *pflag.FlagSet) (AssetsConfig, error) {
	v := newViper()
	v.SetDefault("registry", RegistryPgx)
	v.SetDefault("migrate", true)
	v.SetDefault("log-level", "info")

	if err := readConfig(v, cfgFile, flags); err != nil {
		return AssetsConfig{}, err
	}

	cfg := AssetsConfig{
		Registry: RegistryConfig{
			Backend: strings.ToLower(v.GetString("registry")),
			DSN:     v.GetString("registry-dsn"),
		},
		Assets:    getStringSlice(v, "asset"),
		FirstSlot: v.GetInt64("first-slot"),
		Migrate:   v.GetBool("migrate"),
		LogLevel:  v.GetString("log-level"),
	}
	return cfg, nil
}

// Pairs parses the asset list; the base currency is not accepted.
func (c AssetsConfig) Pairs() ([]ledger.AssetPair, error) {
	pairs := make([]ledger.AssetPair, 0, len(c.Assets))
	for _, item := range c.Assets {
		pair, err := ledger.ParseAssetPair(item)
		if err != nil {
			return nil, fmt.Errorf("asset %q: %w", item, err)
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// ParseSelectors parses "lovelace" or "<policy hex>.<name hex>" entries.
func ParseSelectors(items []string) ([]ledger.AssetSelector, error) {
	selectors := make([]ledger.AssetSelector, 0, len(items))
	for _, item := range items {
		sel, err := ledger.ParseAssetSelector(item)
		if err != nil {
			return nil, fmt.Errorf("asset selector %q: %w", item, err)
		}
		selectors = append(selectors, sel)
	}
	return selectors, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func readConfig(v *viper.Viper, cfgFile string, flags *pflag.FlagSet) error {
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
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
