// Package config loads gateway settings from an optional YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr   string `mapstructure:"http_addr" yaml:"http_addr"`
	GRPCAddr   string `mapstructure:"grpc_addr" yaml:"grpc_addr"`
	RepoRoot   string `mapstructure:"repo_root" yaml:"repo_root"`
	StaticDir  string `mapstructure:"static_dir" yaml:"static_dir"`
	APIKeyEnv  string `mapstructure:"api_key_env" yaml:"api_key_env"`
	APIKeyFile string `mapstructure:"api_key_file" yaml:"api_key_file"`

	Upstream   Upstream   `mapstructure:"upstream" yaml:"upstream"`
	TokenStore TokenStore `mapstructure:"token_store" yaml:"token_store"`
	Kafka      Kafka      `mapstructure:"kafka" yaml:"kafka"`
	Ledger     Ledger     `mapstructure:"ledger" yaml:"ledger"`
	Log        Log        `mapstructure:"log" yaml:"log"`
}

type Upstream struct {
	BaseURL string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// TokenStore selects where OTP-issued token bundles live.
type TokenStore struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // memory | postgres | redis
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

type Kafka struct {
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
	GroupID string   `mapstructure:"group_id" yaml:"group_id"`
}

type Ledger struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8000")
	v.SetDefault("grpc_addr", ":9100")
	v.SetDefault("repo_root", ".")
	v.SetDefault("static_dir", "webapp/static")
	v.SetDefault("api_key_env", "MYXL_API_KEY")
	v.SetDefault("api_key_file", "api.key")
	v.SetDefault("upstream.base_url", "http://localhost:8090")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("token_store.driver", DriverMemory)
	v.SetDefault("token_store.dsn", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "myxl.purchases")
	v.SetDefault("kafka.group_id", "purchase-ledger")
	v.SetDefault("ledger.dsn", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads path (if it exists) and applies environment overrides such as
// HTTP_ADDR, UPSTREAM_BASE_URL or KAFKA_BROKERS (comma separated).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// viper leaves a comma separated env value as a single element
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}
	cfg.Kafka.Brokers = compact(cfg.Kafka.Brokers)

	switch cfg.TokenStore.Driver {
	case DriverMemory, DriverPostgres, DriverRedis:
	default:
		return nil, fmt.Errorf("unknown token_store.driver %q", cfg.TokenStore.Driver)
	}
	return cfg, nil
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
