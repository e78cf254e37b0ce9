package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "PILOT"

// StoreConfig selects and configures the durable history store.
type StoreConfig struct {
	Kind         string
	HistoryPath  string
	PGDSN        string
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string
}

// newViper layers changed flags over environment variables, the config file
// and defaults.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
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

var storeDefaults = map[string]interface{}{
	"store":         "jsonl",
	"history-path":  "./data/history.jsonl",
	"influx-bucket": "pool_history",
}

func loadStore(v *viper.Viper) (StoreConfig, error) {
	cfg := StoreConfig{
		Kind:         strings.ToLower(v.GetString("store")),
		HistoryPath:  v.GetString("history-path"),
		PGDSN:        v.GetString("pg-dsn"),
		InfluxURL:    v.GetString("influx-url"),
		InfluxToken:  v.GetString("influx-token"),
		InfluxOrg:    v.GetString("influx-org"),
		InfluxBucket: v.GetString("influx-bucket"),
	}
	switch cfg.Kind {
	case "memory":
	case "jsonl":
		if cfg.HistoryPath == "" {
			return cfg, fmt.Errorf("history-path is required for the jsonl store")
		}
	case "postgres":
		if cfg.PGDSN == "" {
			return cfg, fmt.Errorf("pg-dsn is required for the postgres store")
		}
	case "influx":
		if cfg.InfluxURL == "" || cfg.InfluxOrg == "" || cfg.InfluxBucket == "" {
			return cfg, fmt.Errorf("influx-url, influx-org and influx-bucket are required for the influx store")
		}
	default:
		return cfg, fmt.Errorf("unknown store %q (memory, jsonl, postgres, influx)", cfg.Kind)
	}
	return cfg, nil
}

func getDecimal(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

// getStringSlice reads a list from a flag, a comma-separated string or a
// config file sequence. Sequence items must be strings: YAML decodes an
// unquoted 0x value as an integer.
func getStringSlice(v *viper.Viper, key string) ([]string, error) {
	if !v.IsSet(key) {
		return nil, nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case nil:
		return nil, nil
	case []string:
		return cleanStrings(typed), nil
	case string:
		return splitAndClean(typed), nil
	case []interface{}:
		items := make([]string, 0, len(typed))
		for i, item := range typed {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: expected a string, got %T %v (quote hex values)", key, i, item, item)
			}
			items = append(items, str)
		}
		return cleanStrings(items), nil
	default:
		return nil, fmt.Errorf("%s: unsupported type %T", key, val)
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

// ParseTime parses unix seconds or RFC3339. Empty input yields the zero time.
func ParseTime(input string) (time.Time, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return time.Time{}, nil
	}

	if isNumeric(input) {
		val, err := strconv.ParseInt(input, 10, 64)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(val, 0).UTC(), nil
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return time.Time{}, err
	}
	return tm.UTC(), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
