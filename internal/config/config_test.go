package config

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/morezero/dbi/pkg/registry"
	"github.com/morezero/dbi/pkg/store"
)

var allEnvVars = []string{
	"DISCORD_TOKENS", "DISCORD_APP_ID",
	"DBI_STRICT", "DBI_DEFAULT_LOCALE", "DBI_FLAGS", "DBI_REFERENCE_TTL", "DBI_INLINE_TTL",
	"DBI_SWEEP_INTERVAL", "DBI_SHARDING", "DBI_SHARD_COUNT", "DBI_LOCALE_DIR",
	"DBI_STORE", "DBI_STORE_PREFIX", "REDIS_URL",
	"DATABASE_URL", "RUN_MIGRATIONS", "MIGRATION_PATH",
	"COMMS_URL", "SERVICE_NAME", "DBI_LIFECYCLE_SUBJECT",
	"PUBLISH_SCOPE", "PUBLISH_GUILD_ID", "PUBLISH_VERSION",
	"DBI_HTTP_ADDR", "HTTP_PORT", "HEALTH_CHECK_TIMEOUT", "LOG_LEVEL",
}

func clearEnv() {
	for _, env := range allEnvVars {
		os.Unsetenv(env)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if len(cfg.DiscordTokens) != 0 {
		t.Errorf("config:config_test - DiscordTokens = %v, want empty", cfg.DiscordTokens)
	}
	if cfg.Strict {
		t.Error("config:config_test - expected Strict=false by default")
	}
	if cfg.DefaultLocale != "en" {
		t.Errorf("config:config_test - DefaultLocale = %q, want %q", cfg.DefaultLocale, "en")
	}
	if len(cfg.Flags) != 1 || cfg.Flags[0] != registry.FlagAll {
		t.Errorf("config:config_test - Flags = %v, want [all]", cfg.Flags)
	}
	if cfg.ReferenceTTL != 0 {
		t.Errorf("config:config_test - ReferenceTTL = %v, want 0", cfg.ReferenceTTL)
	}
	if cfg.InlineTTL != 10*time.Minute {
		t.Errorf("config:config_test - InlineTTL = %v, want 10m", cfg.InlineTTL)
	}
	if cfg.SweepInterval != time.Minute {
		t.Errorf("config:config_test - SweepInterval = %v, want 60s", cfg.SweepInterval)
	}
	if cfg.Sharding != "off" {
		t.Errorf("config:config_test - Sharding = %q, want off", cfg.Sharding)
	}
	if cfg.StoreBackend != store.BackendMemory {
		t.Errorf("config:config_test - StoreBackend = %q, want memory", cfg.StoreBackend)
	}
	if cfg.COMMSURL != "" {
		t.Errorf("config:config_test - COMMSURL = %q, want empty", cfg.COMMSURL)
	}
	if cfg.COMMSName != "dbi" {
		t.Errorf("config:config_test - COMMSName = %q, want dbi", cfg.COMMSName)
	}
	if cfg.RunMigrations {
		t.Error("config:config_test - expected RunMigrations=false by default")
	}
	if cfg.MigrationPath != "" {
		t.Errorf("config:config_test - MigrationPath = %q, want empty", cfg.MigrationPath)
	}
	if cfg.Scope() != registry.PublishGuild {
		t.Errorf("config:config_test - Scope() = %q, want Guild", cfg.Scope())
	}
	if cfg.HTTPPort != 8080 {
		t.Errorf("config:config_test - HTTPPort = %d, want 8080", cfg.HTTPPort)
	}
	if cfg.HealthCheckTimeout != 5*time.Second {
		t.Errorf("config:config_test - HealthCheckTimeout = %v, want 5s", cfg.HealthCheckTimeout)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	clearEnv()
	overrides := map[string]string{
		"DISCORD_TOKENS":        "tok-a, tok-b",
		"DISCORD_APP_ID":        "123",
		"DBI_STRICT":            "true",
		"DBI_DEFAULT_LOCALE":    "tr",
		"DBI_FLAGS":             "beta,admin",
		"DBI_REFERENCE_TTL":     "30m",
		"DBI_SWEEP_INTERVAL":    "15s",
		"DBI_SHARDING":          "default",
		"DBI_SHARD_COUNT":       "4",
		"DBI_STORE":             "redis",
		"REDIS_URL":             "redis://cache:6379/1",
		"COMMS_URL":             "nats://custom:4222",
		"DBI_LIFECYCLE_SUBJECT": "bot.lifecycle",
		"PUBLISH_SCOPE":         "global",
		"PUBLISH_VERSION":       "1.2.3",
		"HTTP_PORT":             "9090",
		"LOG_LEVEL":             "debug",
	}
	for key, val := range overrides {
		os.Setenv(key, val)
	}
	defer clearEnv()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("config:config_test - unexpected error: %v", err)
	}

	if len(cfg.DiscordTokens) != 2 || cfg.DiscordTokens[0] != "tok-a" || cfg.DiscordTokens[1] != "tok-b" {
		t.Errorf("config:config_test - DiscordTokens = %q", cfg.DiscordTokens)
	}
	if !cfg.Strict || cfg.DefaultLocale != "tr" {
		t.Errorf("config:config_test - Strict=%v DefaultLocale=%q", cfg.Strict, cfg.DefaultLocale)
	}
	if len(cfg.Flags) != 2 || cfg.Flags[1] != "admin" {
		t.Errorf("config:config_test - Flags = %v", cfg.Flags)
	}
	if cfg.ReferenceTTL != 30*time.Minute || cfg.SweepInterval != 15*time.Second {
		t.Errorf("config:config_test - ReferenceTTL=%v SweepInterval=%v", cfg.ReferenceTTL, cfg.SweepInterval)
	}
	if cfg.Sharding != "default" || cfg.ShardCount != 4 {
		t.Errorf("config:config_test - Sharding=%q ShardCount=%d", cfg.Sharding, cfg.ShardCount)
	}
	if cfg.StoreBackend != store.BackendRedis || cfg.RedisURL != "redis://cache:6379/1" {
		t.Errorf("config:config_test - StoreBackend=%q RedisURL=%q", cfg.StoreBackend, cfg.RedisURL)
	}
	if cfg.COMMSURL != "nats://custom:4222" || cfg.LifecycleSubject != "bot.lifecycle" {
		t.Errorf("config:config_test - COMMSURL=%q LifecycleSubject=%q", cfg.COMMSURL, cfg.LifecycleSubject)
	}
	if cfg.Scope() != registry.PublishGlobal || cfg.PublishVersion != "1.2.3" {
		t.Errorf("config:config_test - Scope=%q PublishVersion=%q", cfg.Scope(), cfg.PublishVersion)
	}
	if cfg.HTTPPort != 9090 || cfg.LogLevel != "debug" {
		t.Errorf("config:config_test - HTTPPort=%d LogLevel=%q", cfg.HTTPPort, cfg.LogLevel)
	}
}

func TestLoadConfig_LogLevels(t *testing.T) {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, level := range validLevels {
		os.Setenv("LOG_LEVEL", level)
		cfg, err := LoadConfig()
		os.Unsetenv("LOG_LEVEL")

		if err != nil {
			t.Fatalf("config:config_test - unexpected error for level %q: %v", level, err)
		}
		if cfg.LogLevel != level {
			t.Errorf("config:config_test - LogLevel = %q, want %q", cfg.LogLevel, level)
		}
	}
}

func validServe() Config {
	return Config{
		DiscordTokens:      []string{"t"},
		Sharding:           "off",
		StoreBackend:       store.BackendMemory,
		SweepInterval:      time.Minute,
		HealthCheckTimeout: time.Second,
		DatabaseURL:        "postgres://x",
		RedisURL:           "redis://x",
	}
}

func TestValidateForServe(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"no tokens", func(c *Config) { c.DiscordTokens = nil }, true},
		{"bad sharding", func(c *Config) { c.Sharding = "auto" }, true},
		{"postgres", func(c *Config) { c.StoreBackend = store.BackendPostgres }, false},
		{"postgres without url", func(c *Config) { c.StoreBackend = store.BackendPostgres; c.DatabaseURL = "" }, true},
		{"redis without url", func(c *Config) { c.StoreBackend = store.BackendRedis; c.RedisURL = "" }, true},
		{"zero sweep", func(c *Config) { c.SweepInterval = 0 }, true},
		{"zero health timeout", func(c *Config) { c.HealthCheckTimeout = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validServe()
			tt.mutate(&c)
			if err := c.ValidateForServe(); (err != nil) != tt.wantErr {
				t.Errorf("config:config_test - ValidateForServe() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	c := validServe()
	c.StoreBackend = "etcd"
	if err := c.ValidateForServe(); !errors.Is(err, store.ErrUnsupportedBackend) {
		t.Errorf("config:config_test - unknown backend error = %v", err)
	}
}

func TestValidateForPublish(t *testing.T) {
	c := Config{DiscordTokens: []string{"t"}, DiscordAppID: "app", PublishScope: "Guild"}
	if err := c.ValidateForPublish(); err == nil {
		t.Error("config:config_test - guild publish without guild id should fail")
	}
	c.PublishGuildID = "g"
	if err := c.ValidateForPublish(); err != nil {
		t.Errorf("config:config_test - unexpected error: %v", err)
	}
	c.PublishScope = "Global"
	c.PublishGuildID = ""
	if err := c.ValidateForPublish(); err != nil {
		t.Errorf("config:config_test - unexpected error: %v", err)
	}
	c.DiscordAppID = ""
	if err := c.ValidateForPublish(); err == nil {
		t.Error("config:config_test - publish without app id should fail")
	}
}

func TestValidateForDB(t *testing.T) {
	c := Config{}
	if err := c.ValidateForDB(); err == nil {
		t.Error("config:config_test - expected error for empty DATABASE_URL")
	}
	c.DatabaseURL = "postgres://x"
	if err := c.ValidateForDB(); err != nil {
		t.Errorf("config:config_test - unexpected error: %v", err)
	}
}
