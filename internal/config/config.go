package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"agentwatch/internal/models"

	"gopkg.in/yaml.v3"
)

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port    string `yaml:"port"`
		GinMode string `yaml:"gin_mode"`
	} `yaml:"server"`
	Database struct {
		Driver string `yaml:"driver"` // "postgres" or "sqlite"
		URL    string `yaml:"url"`    // PostgreSQL URL or SQLite path
	} `yaml:"database"`
	Collector struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url"`
		PollInterval   time.Duration `yaml:"poll_interval"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"collector"`
	Scheduler struct {
		MetricsInterval   time.Duration `yaml:"metrics_interval"`
		DetectionInterval time.Duration `yaml:"detection_interval"`
		SnapshotInterval  time.Duration `yaml:"snapshot_interval"`
	} `yaml:"scheduler"`
	Cache struct {
		MetricsTTL      time.Duration `yaml:"metrics_ttl"`
		MetricsCapacity int           `yaml:"metrics_capacity"`
		ThreadCapacity  int           `yaml:"thread_capacity"`
	} `yaml:"cache"`
	Detection Detection `yaml:"detection"`
	Backup    struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"backup"`
	Auth struct {
		JWTSecret string        `yaml:"jwt_secret"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
		Operators []Operator    `yaml:"operators"`
	} `yaml:"auth"`
	Alerts struct {
		TelegramBotToken string          `yaml:"telegram_bot_token"`
		ChatID           int64           `yaml:"chat_id"`
		MinSeverity      models.Severity `yaml:"min_severity"`
	} `yaml:"alerts"`
	Log struct {
		Production bool `yaml:"production"`
	} `yaml:"log"`
}

// Detection holds the thresholds used by the pattern detectors.
type Detection struct {
	BucketWidth         time.Duration `yaml:"bucket_width"`
	MinDistinctAgents   int           `yaml:"min_distinct_agents"`
	RapidResponse       time.Duration `yaml:"rapid_response"`
	MinRapidOccurrences int           `yaml:"min_rapid_occurrences"`
	GrowthThreshold     float64       `yaml:"growth_threshold"`
	ClusterMinStrength  int64         `yaml:"cluster_min_strength"`
	ClusterMinSize      int           `yaml:"cluster_min_size"`
	ClusterHighSeverity int           `yaml:"cluster_high_severity_size"`
	LookbackWindow      time.Duration `yaml:"lookback_window"`
}

// Operator is a login allowed to triage patterns. PasswordHash is an argon2id
// encoded hash as printed by "agentwatch hash-password".
type Operator struct {
	Name         string `yaml:"name"`
	PasswordHash string `yaml:"password_hash"`
}

// DefaultDetection returns the standard detector thresholds.
func DefaultDetection() Detection {
	return Detection{
		BucketWidth:         5 * time.Second,
		MinDistinctAgents:   3,
		RapidResponse:       2 * time.Second,
		MinRapidOccurrences: 5,
		GrowthThreshold:     500,
		ClusterMinStrength:  10,
		ClusterMinSize:      3,
		ClusterHighSeverity: 5,
		LookbackWindow:      time.Hour,
	}
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()

	config.Database.URL = os.ExpandEnv(config.Database.URL)
	config.Auth.JWTSecret = os.ExpandEnv(config.Auth.JWTSecret)
	config.Alerts.TelegramBotToken = os.ExpandEnv(config.Alerts.TelegramBotToken)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Default returns a configuration with every default applied, backed by a local SQLite file.
func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.GinMode == "" {
		c.Server.GinMode = "release"
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.URL == "" {
		c.Database.URL = "./data/agentwatch.db"
	}

	if c.Collector.PollInterval == 0 {
		c.Collector.PollInterval = time.Minute
	}
	if c.Collector.RequestTimeout == 0 {
		c.Collector.RequestTimeout = 30 * time.Second
	}

	if c.Scheduler.MetricsInterval == 0 {
		c.Scheduler.MetricsInterval = 5 * time.Second
	}
	if c.Scheduler.DetectionInterval == 0 {
		c.Scheduler.DetectionInterval = time.Minute
	}
	if c.Scheduler.SnapshotInterval == 0 {
		c.Scheduler.SnapshotInterval = time.Hour
	}

	if c.Cache.MetricsTTL == 0 {
		c.Cache.MetricsTTL = 5 * time.Second
	}
	if c.Cache.MetricsCapacity == 0 {
		c.Cache.MetricsCapacity = 128
	}
	if c.Cache.ThreadCapacity == 0 {
		c.Cache.ThreadCapacity = 10000
	}

	d := DefaultDetection()
	if c.Detection.BucketWidth == 0 {
		c.Detection.BucketWidth = d.BucketWidth
	}
	if c.Detection.MinDistinctAgents == 0 {
		c.Detection.MinDistinctAgents = d.MinDistinctAgents
	}
	if c.Detection.RapidResponse == 0 {
		c.Detection.RapidResponse = d.RapidResponse
	}
	if c.Detection.MinRapidOccurrences == 0 {
		c.Detection.MinRapidOccurrences = d.MinRapidOccurrences
	}
	if c.Detection.GrowthThreshold == 0 {
		c.Detection.GrowthThreshold = d.GrowthThreshold
	}
	if c.Detection.ClusterMinStrength == 0 {
		c.Detection.ClusterMinStrength = d.ClusterMinStrength
	}
	if c.Detection.ClusterMinSize == 0 {
		c.Detection.ClusterMinSize = d.ClusterMinSize
	}
	if c.Detection.ClusterHighSeverity == 0 {
		c.Detection.ClusterHighSeverity = d.ClusterHighSeverity
	}
	if c.Detection.LookbackWindow == 0 {
		c.Detection.LookbackWindow = d.LookbackWindow
	}

	if c.Backup.Path == "" {
		c.Backup.Path = "./data/messages.jsonl"
	}

	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}

	if c.Alerts.MinSeverity == "" {
		c.Alerts.MinSeverity = models.SeverityHigh
	}
}

// Validate reports configuration values the application cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver))
	}
	if c.Collector.Enabled && c.Collector.URL == "" {
		errs = append(errs, errors.New("collector.url is required when the collector is enabled"))
	}
	if c.Alerts.MinSeverity.Rank() == 0 {
		errs = append(errs, fmt.Errorf("alerts.min_severity %q is not a known severity", c.Alerts.MinSeverity))
	}
	if c.Detection.MinDistinctAgents < 2 {
		errs = append(errs, errors.New("detection.min_distinct_agents must be at least 2"))
	}
	if c.Detection.ClusterMinSize < 2 {
		errs = append(errs, errors.New("detection.cluster_min_size must be at least 2"))
	}
	for i, op := range c.Auth.Operators {
		if op.Name == "" || op.PasswordHash == "" {
			errs = append(errs, fmt.Errorf("auth.operators[%d] needs both name and password_hash", i))
		}
	}
	return errors.Join(errs...)
}
