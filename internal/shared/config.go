package shared

import (
	_ "embed"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// PortEnv overrides [ServerConfig.Port] when set.
const PortEnv = "TIDAL_MCP_PORT"

// DefaultPort is used when neither the config file nor [PortEnv] set a port.
const DefaultPort = 5050

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Tidal     TidalConfig     `toml:"tidal"`
	Database  DatabaseConfig  `toml:"database"`
	Server    ServerConfig    `toml:"server"`
	Recommend RecommendConfig `toml:"recommend"`
	Breaker   BreakerConfig   `toml:"breaker"`
	Logging   LoggingConfig   `toml:"logging"`
}

// TidalConfig contains TIDAL API credentials and client tuning.
type TidalConfig struct {
	ClientID     string        `toml:"client_id"`
	ClientSecret string        `toml:"client_secret"`
	CountryCode  string        `toml:"country_code"`
	APIURL       string        `toml:"api_url"`
	AuthURL      string        `toml:"auth_url"`
	RateLimit    float64       `toml:"rate_limit"`
	Timeout      time.Duration `toml:"timeout"`
	LoginTimeout time.Duration `toml:"login_timeout"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains backend HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Addr returns host:port for [net/http.Server.Addr].
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// BaseURL returns the URL the MCP tools use to reach the backend.
func (s ServerConfig) BaseURL() string {
	return "http://" + s.Addr()
}

// RecommendConfig tunes the recommendation fan-out.
type RecommendConfig struct {
	MaxWorkers          int           `toml:"max_workers"`
	TaskTimeout         time.Duration `toml:"task_timeout"`
	DefaultLimitPerSeed int           `toml:"default_limit_per_seed"`
	DefaultSeedCount    int           `toml:"default_seed_count"`
	MaxRecommendations  int           `toml:"max_recommendations"`
}

// BreakerConfig configures the circuit breaker around upstream calls.
type BreakerConfig struct {
	MaxRequests      uint32        `toml:"max_requests"`
	Interval         time.Duration `toml:"interval"`
	Timeout          time.Duration `toml:"timeout"`
	FailureThreshold uint32        `toml:"failure_threshold"`
}

// LoggingConfig sets the log level by name (debug, info, warn, error).
type LoggingConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// LoadConfigOrDefault loads path when it exists and falls back to [DefaultConfig] otherwise.
// The [PortEnv] override is applied in both cases.
func LoadConfigOrDefault(path string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv() error {
	raw, ok := os.LookupEnv(PortEnv)
	if !ok || raw == "" {
		if c.Server.Port == 0 {
			c.Server.Port = DefaultPort
		}
		return nil
	}

	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("%w: %s=%q is not a valid port", ErrInvalidConfig, PortEnv, raw)
	}
	c.Server.Port = port
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
