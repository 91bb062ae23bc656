package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.Store != StoreMemory || cfg.AuditMode != AuditSync || cfg.AuditSink != SinkStore {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.AuditQueueSize != 1024 {
		t.Errorf("audit_queue_size = %d", cfg.AuditQueueSize)
	}
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("VAT_STORE", "postgres")
	t.Setenv("VAT_DATABASE_URL", "postgres://vat@localhost/vat")
	t.Setenv("VAT_STRICT_MAPPINGS", "true")
	t.Setenv("VAT_AUDIT_MODE", "async")

	cfg, err := Load("", "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store != StorePostgres || cfg.DatabaseURL != "postgres://vat@localhost/vat" {
		t.Errorf("store not read from env: %+v", cfg)
	}
	if !cfg.StrictMappings || cfg.AuditMode != AuditAsync {
		t.Errorf("flags not read from env: %+v", cfg)
	}
}

func TestLoad_EnvFileAndConfigFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	if err := os.WriteFile(envFile, []byte("VAT_LOG_FORMAT=json\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("VAT_LOG_FORMAT") })

	configFile := filepath.Join(dir, "vat.yaml")
	if err := os.WriteFile(configFile, []byte("http_addr: \":9090\"\nrules_file: rules.yaml\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(envFile, configFile)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogFormat != "json" {
		t.Errorf("log_format = %q, want json from .env", cfg.LogFormat)
	}
	if cfg.HTTPAddr != ":9090" || cfg.RulesFile != "rules.yaml" {
		t.Errorf("config file not applied: %+v", cfg)
	}
}

func TestConfig_Validate(t *testing.T) {
	base := func() Config {
		return Config{Store: StoreMemory, AuditMode: AuditSync, AuditSink: SinkStore, AuditQueueSize: 1, LogLevel: "info", LogFormat: "text"}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown store", func(c *Config) { c.Store = "redis" }, "store must be one of"},
		{"postgres without dsn", func(c *Config) { c.Store = StorePostgres }, "database_url is required"},
		{"kafka without topic", func(c *Config) { c.AuditSink = SinkKafka }, "kafka_bootstrap_servers"},
		{"async without queue", func(c *Config) { c.AuditMode = AuditAsync; c.AuditQueueSize = 0 }, "audit_queue_size"},
		{"unknown log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %v, want %q", err, tt.want)
			}
		})
	}
}
