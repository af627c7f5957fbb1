package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	if err := os.Setenv("SERVER_PORT", "9090"); err != nil {
		t.Fatalf("Failed to set SERVER_PORT: %v", err)
	}
	if err := os.Setenv("POSTGRES_HOST", "testhost"); err != nil {
		t.Fatalf("Failed to set POSTGRES_HOST: %v", err)
	}
	if err := os.Setenv("CACHE_LEADERBOARD_TTL", "45s"); err != nil {
		t.Fatalf("Failed to set CACHE_LEADERBOARD_TTL: %v", err)
	}
	if err := os.Setenv("AUTH_ALLOW_ADMIN_SIGNUP", "true"); err != nil {
		t.Fatalf("Failed to set AUTH_ALLOW_ADMIN_SIGNUP: %v", err)
	}
	if err := os.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1"); err != nil {
		t.Fatalf("Failed to set TRUSTED_PROXIES: %v", err)
	}
	defer func() {
		_ = os.Unsetenv("SERVER_PORT")
		_ = os.Unsetenv("POSTGRES_HOST")
		_ = os.Unsetenv("CACHE_LEADERBOARD_TTL")
		_ = os.Unsetenv("AUTH_ALLOW_ADMIN_SIGNUP")
		_ = os.Unsetenv("TRUSTED_PROXIES")
	}()

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %v, want %v", cfg.Server.Port, "9090")
	}
	if cfg.Database.Postgres.Host != "testhost" {
		t.Errorf("Database.Postgres.Host = %v, want %v", cfg.Database.Postgres.Host, "testhost")
	}
	if cfg.Cache.LeaderboardTTL != 45*time.Second {
		t.Errorf("Cache.LeaderboardTTL = %v, want %v", cfg.Cache.LeaderboardTTL, 45*time.Second)
	}
	if !cfg.Auth.AllowAdminSignup {
		t.Error("Auth.AllowAdminSignup = false, want true")
	}
	if cfg.Auth.RequireEmailConfirmation {
		t.Error("Auth.RequireEmailConfirmation should default to false")
	}
	if len(cfg.Server.TrustedProxies) != 2 || cfg.Server.TrustedProxies[1] != "192.0.2.1" {
		t.Errorf("Server.TrustedProxies = %v, want [10.0.0.0/8 192.0.2.1]", cfg.Server.TrustedProxies)
	}
	if cfg.Storage.MaxUploadBytes != 5<<20 {
		t.Errorf("Storage.MaxUploadBytes = %d, want %d", cfg.Storage.MaxUploadBytes, 5<<20)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Auth:    AuthConfig{JWTSecret: strings.Repeat("k", 32)},
		Storage: StorageConfig{Bucket: "proofs", Endpoint: "http://minio:9000", MaxUploadBytes: 1024},
		Pollution: PollutionConfig{
			ProviderURL: "http://aqi.local",
		},
		Database: DatabaseConfig{ClickHouse: ClickHouseConfig{Enabled: true}},
	}

	if issues := cfg.Validate(); len(issues) != 0 {
		t.Fatalf("Validate() = %v, want no issues", issues)
	}

	cfg.Auth.JWTSecret = ""
	cfg.Storage.Bucket = ""
	issues := cfg.Validate()
	if len(issues) != 2 {
		t.Fatalf("Validate() = %v, want 2 issues", issues)
	}
	if !strings.Contains(issues[0], "AUTH_JWT_SECRET") {
		t.Errorf("first issue = %q", issues[0])
	}
	if !strings.Contains(issues[1], "STORAGE_BUCKET") {
		t.Errorf("second issue = %q", issues[1])
	}
}

func TestPostgresDSN(t *testing.T) {
	c := PostgresConfig{Host: "db", Port: "5432", Database: "cw", User: "u", Password: "p", SSLMode: "disable"}
	want := "postgres://u:p@db:5432/cw?sslmode=disable"
	if got := c.DSN(); got != want {
		t.Errorf("DSN() = %v, want %v", got, want)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns environment variable when set",
			key:          "TEST_KEY",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when environment variable not set",
			key:          "NONEXISTENT_KEY",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(tt.key, tt.envValue)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue int
		want         int
	}{
		{"returns integer when valid", "200", 100, 200},
		{"returns default when invalid", "invalid", 100, 100},
		{"returns default when not set", "", 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_INT", tt.envValue)
			if got := getEnvAsInt("TEST_INT", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvAsInt() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsBool(t *testing.T) {
	tests := []struct {
		envValue     string
		defaultValue bool
		want         bool
	}{
		{"true", false, true},
		{"0", true, false},
		{"maybe", true, true},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.envValue, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.envValue)
			if got := getEnvAsBool("TEST_BOOL", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvAsBool(%q) = %v, want %v", tt.envValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue time.Duration
		want         time.Duration
	}{
		{"returns duration when valid", "30s", 10 * time.Second, 30 * time.Second},
		{"returns default when invalid", "invalid", 10 * time.Second, 10 * time.Second},
		{"returns default when not set", "", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_DURATION", tt.envValue)
			if got := getEnvAsDuration("TEST_DURATION", tt.defaultValue); got != tt.want {
				t.Errorf("getEnvAsDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvAsSlice(t *testing.T) {
	t.Setenv("TEST_SLICE", " http://a.test, ,http://b.test ")
	got := getEnvAsSlice("TEST_SLICE", []string{"*"})
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Errorf("getEnvAsSlice() = %v", got)
	}
}
