package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./tidal-mcp.db" {
			t.Errorf("expected database path ./tidal-mcp.db, got %s", config.Database.Path)
		}
		if config.Server.Port != DefaultPort {
			t.Errorf("expected server port %d, got %d", DefaultPort, config.Server.Port)
		}
		if config.Tidal.APIURL != "https://api.tidal.com/v1" {
			t.Errorf("unexpected api url %s", config.Tidal.APIURL)
		}
		if config.Recommend.MaxWorkers != 50 {
			t.Errorf("expected max_workers 50, got %d", config.Recommend.MaxWorkers)
		}
		if config.Recommend.TaskTimeout != 10*time.Second {
			t.Errorf("expected task_timeout 10s, got %v", config.Recommend.TaskTimeout)
		}
		if config.Breaker.FailureThreshold != 5 {
			t.Errorf("expected failure_threshold 5, got %d", config.Breaker.FailureThreshold)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		testConfig := `[tidal]
client_id = "abc"
country_code = "NO"
timeout = "3s"

[server]
port = 6060

[recommend]
max_workers = 4
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Tidal.ClientID != "abc" || config.Tidal.CountryCode != "NO" {
			t.Errorf("unexpected tidal config %+v", config.Tidal)
		}
		if config.Tidal.Timeout != 3*time.Second {
			t.Errorf("expected timeout 3s, got %v", config.Tidal.Timeout)
		}
		if config.Server.Port != 6060 {
			t.Errorf("expected server port 6060, got %d", config.Server.Port)
		}
		if config.Recommend.MaxWorkers != 4 {
			t.Errorf("expected max_workers 4, got %d", config.Recommend.MaxWorkers)
		}
		if config.Recommend.TaskTimeout != 10*time.Second {
			t.Errorf("unset values should keep defaults, got task_timeout %v", config.Recommend.TaskTimeout)
		}
	})

	t.Run("LoadConfig Errors", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}

		bad := filepath.Join(t.TempDir(), "bad.toml")
		if err := os.WriteFile(bad, []byte("[server\nport ="), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		if _, err := LoadConfig(bad); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("Port Override", func(t *testing.T) {
		tc := []struct {
			name    string
			env     string
			want    int
			wantErr bool
		}{
			{name: "unset", env: "", want: DefaultPort},
			{name: "valid", env: "7070", want: 7070},
			{name: "not a number", env: "abc", wantErr: true},
			{name: "out of range", env: "70000", wantErr: true},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				t.Setenv(PortEnv, tt.env)

				config, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "absent.toml"))
				if tt.wantErr {
					if !errors.Is(err, ErrInvalidConfig) {
						t.Errorf("expected ErrInvalidConfig, got %v", err)
					}
					return
				}
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if config.Server.Port != tt.want {
					t.Errorf("expected port %d, got %d", tt.want, config.Server.Port)
				}
			})
		}
	})

	t.Run("ServerConfig URLs", func(t *testing.T) {
		s := ServerConfig{Host: "127.0.0.1", Port: 5050}
		if s.Addr() != "127.0.0.1:5050" {
			t.Errorf("unexpected addr %s", s.Addr())
		}
		if s.BaseURL() != "http://127.0.0.1:5050" {
			t.Errorf("unexpected base url %s", s.BaseURL())
		}
	})
}
