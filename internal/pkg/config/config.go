package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/user/hubble/internal/domain"
)

// Config holds all application configuration. Values are layered: built-in
// defaults, then the YAML config file, then environment variables.
type Config struct {
	// FarmerName identifies this monitored subject in the backend.
	FarmerName string `yaml:"farmer_name" env:"HUBBLE_FARMER_NAME"`
	// Mode selects the monitored workload: Node or Farmer.
	Mode string `yaml:"mode" env:"HUBBLE_MODE"`

	NexusURL          string `yaml:"nexus_url" env:"HUBBLE_NEXUS_URL"`
	DiscordWebhookURL string `yaml:"discord_webhook_url" env:"HUBBLE_DISCORD_WEBHOOK_URL"`

	// DockerHost overrides the Docker daemon address (empty = environment
	// defaults). ImageNeedle overrides the image tag substring used to
	// discover the container; empty selects the per-mode default.
	DockerHost  string `yaml:"docker_host" env:"HUBBLE_DOCKER_HOST"`
	ImageNeedle string `yaml:"image_needle" env:"HUBBLE_IMAGE_NEEDLE"`

	// LogFile, when set, tails a local file instead of a container stream.
	LogFile string `yaml:"log_file" env:"HUBBLE_LOG_FILE"`

	// PublishThresholdMinutes is the age cutoff below which events are
	// alert-eligible.
	PublishThresholdMinutes int `yaml:"publish_threshold_minutes" env:"HUBBLE_PUBLISH_THRESHOLD_MINUTES"`

	AlertCapacity int           `yaml:"alert_capacity" env:"HUBBLE_ALERT_CAPACITY"`
	AlertInterval time.Duration `yaml:"alert_interval" env:"HUBBLE_ALERT_INTERVAL"`

	MetricsAddr string `yaml:"metrics_addr" env:"HUBBLE_METRICS_ADDR"`
	StateDBPath string `yaml:"state_db_path" env:"HUBBLE_STATE_DB_PATH"`
	LogLevel    string `yaml:"log_level" env:"HUBBLE_LOG_LEVEL"`
}

func defaults() *Config {
	return &Config{
		Mode:                    string(domain.ModeFarmer),
		PublishThresholdMinutes: 50,
		AlertCapacity:           4,
		AlertInterval:           60 * time.Second,
		MetricsAddr:             ":9090",
		StateDBPath:             "hubble.db",
		LogLevel:                "info",
	}
}

// Load reads configuration from the YAML file at path, then applies
// environment variable overrides.
func Load(path string) (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.FarmerName == "" {
		return fmt.Errorf("farmer_name is required and missing from the config")
	}
	if !domain.Mode(c.Mode).Valid() {
		return fmt.Errorf("mode must be %q or %q, got %q", domain.ModeNode, domain.ModeFarmer, c.Mode)
	}
	if c.PublishThresholdMinutes < 0 {
		return fmt.Errorf("publish_threshold_minutes must not be negative")
	}
	if c.AlertCapacity <= 0 || c.AlertInterval <= 0 {
		return fmt.Errorf("alert_capacity and alert_interval must be positive")
	}
	return nil
}

// WorkloadMode returns the configured mode as a domain type. Only valid
// after Load.
func (c *Config) WorkloadMode() domain.Mode {
	return domain.Mode(c.Mode)
}
