package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rpggio/timeline/internal/imanage"
)

const (
	DefaultGraphBaseURL     = "https://graph.microsoft.com/v1.0"
	DefaultGraphBetaBaseURL = "https://graph.microsoft.com/beta"
)

// Config defines server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server" toml:"server"`
	DB      DBConfig      `yaml:"db" toml:"db"`
	Log     LogConfig     `yaml:"log" toml:"log"`
	MCP     MCPConfig     `yaml:"mcp" toml:"mcp"`
	Graph   GraphConfig   `yaml:"graph" toml:"graph"`
	IManage IManageConfig `yaml:"imanage" toml:"imanage"`
}

type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path" toml:"path"`
}

type LogConfig struct {
	Level     string `yaml:"level" toml:"level"`
	Path      string `yaml:"path" toml:"path"`
	TraceHTTP bool   `yaml:"trace_http" toml:"trace_http"`
}

// MCPConfig controls the agent tool endpoint at /mcp.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
}

// GraphConfig points at the primary provider.
type GraphConfig struct {
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	BetaBaseURL string `yaml:"beta_base_url" toml:"beta_base_url"`
}

// IManageConfig holds the document-management provider credentials.
type IManageConfig struct {
	BaseURL      string `yaml:"base_url" toml:"base_url"`
	ClientID     string `yaml:"client_id" toml:"client_id"`
	ClientSecret string `yaml:"client_secret" toml:"client_secret"`
	GrantType    string `yaml:"grant_type" toml:"grant_type"`
	Scope        string `yaml:"scope" toml:"scope"`
	UserPassword string `yaml:"user_password" toml:"user_password"`
	// InsecureSkipVerify disables server certificate validation for every
	// iManage call. Off unless set explicitly.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" toml:"insecure_skip_verify"`
}

// Load reads an optional .env file into the environment, then applies an
// optional YAML or TOML file and TIMELINE_* environment overrides on top of
// the defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "timeline.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		MCP: MCPConfig{
			Enabled: true,
		},
		Graph: GraphConfig{
			BaseURL:     DefaultGraphBaseURL,
			BetaBaseURL: DefaultGraphBetaBaseURL,
		},
		IManage: IManageConfig{
			GrantType: imanage.GrantPassword,
			Scope:     "admin",
		},
	}

	// A missing .env file is not an error. It may name the config file.
	_ = godotenv.Load()

	if path := os.Getenv("TIMELINE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if host := os.Getenv("TIMELINE_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("TIMELINE_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid TIMELINE_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("TIMELINE_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("TIMELINE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if path := os.Getenv("TIMELINE_LOG_PATH"); path != "" {
		cfg.Log.Path = path
	}
	if err := envBool("TIMELINE_LOG_TRACE_HTTP", &cfg.Log.TraceHTTP); err != nil {
		return err
	}
	if err := envBool("TIMELINE_MCP_ENABLED", &cfg.MCP.Enabled); err != nil {
		return err
	}
	if v := os.Getenv("TIMELINE_GRAPH_BASE_URL"); v != "" {
		cfg.Graph.BaseURL = v
	}
	if v := os.Getenv("TIMELINE_GRAPH_BETA_BASE_URL"); v != "" {
		cfg.Graph.BetaBaseURL = v
	}
	if v := os.Getenv("TIMELINE_IMANAGE_BASE_URL"); v != "" {
		cfg.IManage.BaseURL = v
	}
	if v := os.Getenv("TIMELINE_IMANAGE_CLIENT_ID"); v != "" {
		cfg.IManage.ClientID = v
	}
	if v := os.Getenv("TIMELINE_IMANAGE_CLIENT_SECRET"); v != "" {
		cfg.IManage.ClientSecret = v
	}
	if v := os.Getenv("TIMELINE_IMANAGE_GRANT_TYPE"); v != "" {
		cfg.IManage.GrantType = v
	}
	if v := os.Getenv("TIMELINE_IMANAGE_SCOPE"); v != "" {
		cfg.IManage.Scope = v
	}
	if v := os.Getenv("TIMELINE_IMANAGE_USER_PASSWORD"); v != "" {
		cfg.IManage.UserPassword = v
	}
	if err := envBool("TIMELINE_IMANAGE_INSECURE_SKIP_VERIFY", &cfg.IManage.InsecureSkipVerify); err != nil {
		return err
	}
	return nil
}

func envBool(key string, dst *bool) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config file: %w", err)
		}
	}
	return nil
}

// Validate reports configuration that cannot work at all.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Graph.BaseURL == "" {
		return fmt.Errorf("graph base_url is required")
	}
	if c.Graph.BetaBaseURL == "" {
		return fmt.Errorf("graph beta_base_url is required")
	}
	if c.IManage.GrantType != "" && c.IManage.GrantType != imanage.GrantPassword {
		return fmt.Errorf("unsupported imanage grant_type %q", c.IManage.GrantType)
	}
	return nil
}
