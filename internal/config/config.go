package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "VAT"

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"

	AuditSync  = "sync"
	AuditAsync = "async"

	SinkStore = "store"
	SinkKafka = "kafka"
)

// Config is the runtime configuration of vatd and vatctl.
type Config struct {
	HTTPAddr              string `mapstructure:"http_addr"`
	Store                 string `mapstructure:"store"`
	DatabaseURL           string `mapstructure:"database_url"`
	RulesFile             string `mapstructure:"rules_file"`
	AuditMode             string `mapstructure:"audit_mode"`
	AuditQueueSize        int    `mapstructure:"audit_queue_size"`
	AuditSink             string `mapstructure:"audit_sink"`
	KafkaBootstrapServers string `mapstructure:"kafka_bootstrap_servers"`
	KafkaAuditTopic       string `mapstructure:"kafka_audit_topic"`
	StrictMappings        bool   `mapstructure:"strict_mappings"`
	LogLevel              string `mapstructure:"log_level"`
	LogFormat             string `mapstructure:"log_format"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("store", StoreMemory)
	v.SetDefault("database_url", "")
	v.SetDefault("rules_file", "")
	v.SetDefault("audit_mode", AuditSync)
	v.SetDefault("audit_queue_size", 1024)
	v.SetDefault("audit_sink", SinkStore)
	v.SetDefault("kafka_bootstrap_servers", "localhost:9092")
	v.SetDefault("kafka_audit_topic", "vat-audit")
	v.SetDefault("strict_mappings", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// New returns a viper instance reading VAT_* environment variables.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads envFile (when present), then the environment and the optional
// config file, and validates the result.
func Load(envFile, configFile string) (*Config, error) {
	if envFile != "" {
		// A missing .env is not an error.
		_ = godotenv.Load(envFile)
	}
	v := New()
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", configFile, err)
		}
	}
	return FromViper(v)
}

func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	oneOf := func(key, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), value))
	}
	oneOf("store", c.Store, StoreMemory, StorePostgres)
	oneOf("audit_mode", c.AuditMode, AuditSync, AuditAsync)
	oneOf("audit_sink", c.AuditSink, SinkStore, SinkKafka)
	oneOf("log_level", strings.ToLower(c.LogLevel), "debug", "info", "warn", "error")
	oneOf("log_format", strings.ToLower(c.LogFormat), "text", "json")

	if c.Store == StorePostgres && c.DatabaseURL == "" {
		errs = append(errs, errors.New("database_url is required for the postgres store"))
	}
	if c.AuditSink == SinkKafka && (c.KafkaBootstrapServers == "" || c.KafkaAuditTopic == "") {
		errs = append(errs, errors.New("kafka_bootstrap_servers and kafka_audit_topic are required for the kafka audit sink"))
	}
	if c.AuditMode == AuditAsync && c.AuditQueueSize <= 0 {
		errs = append(errs, errors.New("audit_queue_size must be positive"))
	}
	return errors.Join(errs...)
}
