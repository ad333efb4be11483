package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meterpay/meterpay/config"
)

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := writeAndLoadErr(t, content)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func writeAndLoadErr(t *testing.T, content string) (*config.Config, error) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "meterpay.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return config.Load(path)
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9090

database:
  driver: "sqlite"
  dsn: "/tmp/test.db"

roles:
  owner: "0xowner"
  reporter: "0xreporter"
  withdraw_address: "0xwithdraw"

settlement:
  fee_numerator: 25
  fee_denominator: 10
  default_window_secs: 3600
  reward_amount: 100
  reward_enabled: true
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Host = %s, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Roles.Owner != "0xowner" {
		t.Errorf("Owner = %s, want 0xowner", cfg.Roles.Owner)
	}
	if cfg.Settlement.FeeNumerator != 25 || cfg.Settlement.FeeDenominator != 10 {
		t.Errorf("fee rate = %d/%d, want 25/10",
			cfg.Settlement.FeeNumerator, cfg.Settlement.FeeDenominator)
	}
	if cfg.Settlement.DefaultWindow() != time.Hour {
		t.Errorf("DefaultWindow = %v, want 1h", cfg.Settlement.DefaultWindow())
	}
	if !cfg.Settlement.RewardEnabled {
		t.Error("RewardEnabled = false, want true")
	}
}

func TestLoad_Defaults(t *testing.T) {
	content := `
roles:
  owner: "0xowner"
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("default Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("default Database.Driver = %s, want sqlite", cfg.Database.Driver)
	}
	if cfg.Settlement.FeeNumerator != 10 || cfg.Settlement.FeeDenominator != 1 {
		t.Errorf("default fee rate = %d/%d, want 10/1",
			cfg.Settlement.FeeNumerator, cfg.Settlement.FeeDenominator)
	}
	if cfg.Settlement.DefaultWindow() != 7*24*time.Hour {
		t.Errorf("default DefaultWindow = %v, want one week", cfg.Settlement.DefaultWindow())
	}
	if cfg.Settlement.ListingLockShards != 32 {
		t.Errorf("default ListingLockShards = %d, want 32", cfg.Settlement.ListingLockShards)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default Logging.Level = %s, want info", cfg.Logging.Level)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("default Metrics.Path = %s, want /metrics", cfg.Metrics.Path)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	os.Setenv("TEST_OWNER_ADDR", "0xenvowner")
	defer os.Unsetenv("TEST_OWNER_ADDR")

	content := `
roles:
  owner: "${TEST_OWNER_ADDR}"
`

	cfg := writeAndLoad(t, content)

	if cfg.Roles.Owner != "0xenvowner" {
		t.Errorf("Owner = %s, want 0xenvowner", cfg.Roles.Owner)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	os.Setenv("METERPAY_SERVER_PORT", "7777")
	os.Setenv("METERPAY_LOG_LEVEL", "error")
	defer func() {
		os.Unsetenv("METERPAY_SERVER_PORT")
		os.Unsetenv("METERPAY_LOG_LEVEL")
	}()

	content := `
server:
  port: 8080
roles:
  owner: "0xowner"
logging:
  level: "info"
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777 (env override)", cfg.Server.Port)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %s, want error (env override)", cfg.Logging.Level)
	}
	if cfg.Roles.Owner != "0xowner" {
		t.Errorf("Owner = %s, want 0xowner", cfg.Roles.Owner)
	}
}

func TestLoad_MissingOwner(t *testing.T) {
	content := `
server:
  port: 8080
`

	if _, err := writeAndLoadErr(t, content); err == nil {
		t.Fatal("expected error for missing roles.owner")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "unknown driver",
			content: `
roles:
  owner: "0xowner"
database:
  driver: "postgres"
`,
		},
		{
			name: "fee rate over 100 percent",
			content: `
roles:
  owner: "0xowner"
settlement:
  fee_numerator: 101
  fee_denominator: 1
`,
		},
		{
			name: "negative window",
			content: `
roles:
  owner: "0xowner"
settlement:
  default_window_secs: -1
`,
		},
		{
			name: "port out of range",
			content: `
server:
  port: 70000
roles:
  owner: "0xowner"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := writeAndLoadErr(t, tt.content); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
