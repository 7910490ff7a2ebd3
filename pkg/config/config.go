package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig                 `json:"app" yaml:"app"`
	Gateways   map[string]GatewayConfig  `json:"gateways" yaml:"gateways"`
	Providers  map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Memory     MemoryConfig              `json:"memory" yaml:"memory"`
	Browser    BrowserConfig             `json:"browser" yaml:"browser"`
	Planner    PlannerConfig             `json:"planner" yaml:"planner"`
	Validation ValidationConfig          `json:"validation" yaml:"validation"`
	Policy     PolicyConfig              `json:"policy" yaml:"policy"`
	Metrics    MetricsConfig             `json:"metrics" yaml:"metrics"`
	Source     SourceConfig              `json:"source" yaml:"source"`
}

type AppConfig struct {
	Name string `json:"name" yaml:"name"`
	// Workspace is where run artifacts are kept. Empty means a temp dir
	// removed after the run.
	Workspace  string `json:"workspace" yaml:"workspace"`
	PromptsDir string `json:"prompts_dir" yaml:"prompts_dir"`
}

type GatewayConfig struct {
	Token   string `json:"token" yaml:"token"`
	ChatID  string `json:"chat_id" yaml:"chat_id"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type MemoryConfig struct {
	Type string `json:"type" yaml:"type"`
	Path string `json:"path" yaml:"path"`
}

type BrowserConfig struct {
	Headless       *bool  `json:"headless,omitempty" yaml:"headless,omitempty"`
	TargetURL      string `json:"target_url" yaml:"target_url"`
	SettleDelayMS  int    `json:"settle_delay_ms" yaml:"settle_delay_ms"`
	ActionTimeoutS int    `json:"action_timeout_s" yaml:"action_timeout_s"`
	WindowWidth    int    `json:"window_width" yaml:"window_width"`
	WindowHeight   int    `json:"window_height" yaml:"window_height"`
}

type PlannerConfig struct {
	MaxCountRepairs       int     `json:"max_count_repairs" yaml:"max_count_repairs"`
	MaxGroundingRepairs   int     `json:"max_grounding_repairs" yaml:"max_grounding_repairs"`
	MaxSessionRestarts    int     `json:"max_session_restarts" yaml:"max_session_restarts"`
	PollInitialIntervalMS int     `json:"poll_initial_interval_ms" yaml:"poll_initial_interval_ms"`
	PollMaxIntervalMS     int     `json:"poll_max_interval_ms" yaml:"poll_max_interval_ms"`
	PollMaxRetries        uint64  `json:"poll_max_retries" yaml:"poll_max_retries"`
	UngroundedPolicy      string  `json:"ungrounded_policy" yaml:"ungrounded_policy"`
	Temperature           float64 `json:"temperature" yaml:"temperature"`
}

type ValidationConfig struct {
	ContainmentTag  string `json:"containment_tag" yaml:"containment_tag"`
	MaxExcerptBytes int    `json:"max_excerpt_bytes" yaml:"max_excerpt_bytes"`
}

type PolicyConfig struct {
	DenyTargets []string `json:"deny_targets" yaml:"deny_targets"`
	DenyKinds   []string `json:"deny_kinds" yaml:"deny_kinds"`
}

type MetricsConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type SourceConfig struct {
	Type        string `json:"type" yaml:"type"`
	Dir         string `json:"dir" yaml:"dir"`
	URLTemplate string `json:"url_template" yaml:"url_template"`
}

// LoadConfig reads a JSON config, or YAML when the file ends in .yaml or
// .yml, and fills in defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "stepwright"
	}
	if c.Memory.Type == "" {
		c.Memory.Type = "sqlite"
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "stepwright.db"
	}
	if c.Browser.Headless == nil {
		headless := true
		c.Browser.Headless = &headless
	}
	if c.Browser.SettleDelayMS == 0 {
		c.Browser.SettleDelayMS = 2000
	}
	if c.Browser.ActionTimeoutS == 0 {
		c.Browser.ActionTimeoutS = 30
	}
	if c.Browser.WindowWidth == 0 {
		c.Browser.WindowWidth = 1280
	}
	if c.Browser.WindowHeight == 0 {
		c.Browser.WindowHeight = 900
	}
	if c.Planner.MaxCountRepairs == 0 {
		c.Planner.MaxCountRepairs = 2
	}
	if c.Planner.MaxGroundingRepairs == 0 {
		c.Planner.MaxGroundingRepairs = 3
	}
	if c.Planner.MaxSessionRestarts == 0 {
		c.Planner.MaxSessionRestarts = 1
	}
	if c.Planner.PollInitialIntervalMS == 0 {
		c.Planner.PollInitialIntervalMS = 500
	}
	if c.Planner.PollMaxIntervalMS == 0 {
		c.Planner.PollMaxIntervalMS = 10000
	}
	if c.Planner.PollMaxRetries == 0 {
		c.Planner.PollMaxRetries = 30
	}
	if c.Planner.UngroundedPolicy == "" {
		c.Planner.UngroundedPolicy = "drop"
	}
	if c.Validation.MaxExcerptBytes == 0 {
		c.Validation.MaxExcerptBytes = 20000
	}
	if c.Source.Type == "" {
		c.Source.Type = "file"
	}
}

func (c *Config) Validate() error {
	switch c.Planner.UngroundedPolicy {
	case "drop", "abort":
	default:
		return fmt.Errorf("planner.ungrounded_policy must be drop or abort, got %q", c.Planner.UngroundedPolicy)
	}
	switch c.Source.Type {
	case "file":
	case "http":
		if c.Source.URLTemplate == "" {
			return fmt.Errorf("source.url_template is required for http sources")
		}
	default:
		return fmt.Errorf("source.type must be file or http, got %q", c.Source.Type)
	}
	return nil
}

func (b BrowserConfig) SettleDelay() time.Duration {
	return time.Duration(b.SettleDelayMS) * time.Millisecond
}

func (b BrowserConfig) ActionTimeout() time.Duration {
	return time.Duration(b.ActionTimeoutS) * time.Second
}

func (b BrowserConfig) IsHeadless() bool {
	return b.Headless == nil || *b.Headless
}

// GetDefaultProvider returns the enabled provider with the smallest name,
// so the choice is stable across runs.
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	var (
		bestName string
		best     ProviderConfig
	)
	for name, p := range c.Providers {
		if p.Enabled && (bestName == "" || name < bestName) {
			bestName, best = name, p
		}
	}
	return bestName, best
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	return c.gateway("telegram")
}

// GetDiscordConfig returns discord config if enabled
func (c *Config) GetDiscordConfig() (GatewayConfig, bool) {
	return c.gateway("discord")
}

func (c *Config) gateway(name string) (GatewayConfig, bool) {
	g, ok := c.Gateways[name]
	if ok && g.Enabled {
		return g, true
	}
	return GatewayConfig{}, false
}
