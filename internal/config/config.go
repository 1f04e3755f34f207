package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/kestrelsec/a11yaudit/api/schemas"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
	Discovery DiscoveryConfig `mapstructure:"discovery" yaml:"discovery"`
	Scan      ScanConfig      `mapstructure:"scan" yaml:"scan"`
	Scoring   ScoringConfig   `mapstructure:"scoring" yaml:"scoring"`
	Gate      GateConfig      `mapstructure:"gate" yaml:"gate"`
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Rules     RulesConfig     `mapstructure:"rules" yaml:"rules"`

	// Audit gets its marching orders from CLI flags, not the config file.
	Audit AuditConfig `mapstructure:"-" yaml:"-"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings for the headless browser instances.
type BrowserConfig struct {
	Headless        bool     `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool     `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	DisableCache    bool     `mapstructure:"disable_cache" yaml:"disable_cache"`
	UserAgent       string   `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string `mapstructure:"args" yaml:"args"`
}

// DiscoveryConfig configures the route discovery crawl.
type DiscoveryConfig struct {
	MaxRoutes  int           `mapstructure:"max_routes" yaml:"max_routes"`
	CrawlDepth int           `mapstructure:"crawl_depth" yaml:"crawl_depth"`
	NavTimeout time.Duration `mapstructure:"nav_timeout" yaml:"nav_timeout"`

	// SitemapEnabled is a pointer so "explicitly disabled" and "unset" can be
	// told apart.
	SitemapEnabled *bool `mapstructure:"sitemap_enabled" yaml:"sitemap_enabled"`
	// SitemapRateLimit is requests per second against the target's robots.txt
	// and sitemap files.
	SitemapRateLimit float64 `mapstructure:"sitemap_rate_limit" yaml:"sitemap_rate_limit"`

	// PaginationParams are query parameters whose variants never become new
	// routes.
	PaginationParams []string `mapstructure:"pagination_params" yaml:"pagination_params"`
}

// ScanConfig configures the parallel scan of discovered routes.
type ScanConfig struct {
	Concurrency  int                  `mapstructure:"concurrency" yaml:"concurrency"`
	Timeout      time.Duration        `mapstructure:"timeout" yaml:"timeout"`
	WaitStrategy schemas.WaitStrategy `mapstructure:"wait_strategy" yaml:"wait_strategy"`
	PostLoadWait time.Duration        `mapstructure:"post_load_wait" yaml:"post_load_wait"`
}

// ScoringConfig injects the severity weight table and grade thresholds into
// the scorer.
type ScoringConfig struct {
	Weights    map[string]int   `mapstructure:"weights" yaml:"weights"`
	Thresholds []GradeThreshold `mapstructure:"thresholds" yaml:"thresholds"`
}

// GradeThreshold maps a minimum score to a grade label. Thresholds are
// scanned highest first.
type GradeThreshold struct {
	MinScore int    `mapstructure:"min_score" yaml:"min_score"`
	Label    string `mapstructure:"label" yaml:"label"`
}

// GateConfig is the optional CI severity gate: audits exceeding any per-tier
// budget exit non-zero.
type GateConfig struct {
	Enabled     bool `mapstructure:"enabled" yaml:"enabled"`
	MaxCritical int  `mapstructure:"max_critical" yaml:"max_critical"`
	MaxSerious  int  `mapstructure:"max_serious" yaml:"max_serious"`
	MaxModerate int  `mapstructure:"max_moderate" yaml:"max_moderate"`
	MaxMinor    int  `mapstructure:"max_minor" yaml:"max_minor"`
}

// DatabaseConfig holds the optional Postgres connection for run persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// RulesConfig points at the external rule-checking script the adapter
// injects. The catalog itself is not ours.
type RulesConfig struct {
	ScriptPath string        `mapstructure:"script_path" yaml:"script_path"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// AuditConfig holds settings populated from CLI flags for one audit job.
type AuditConfig struct {
	Origin string
	Output string
	Format string
	// Routes bypasses discovery entirely when non-empty.
	Routes []string
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "a11yaudit")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.disable_cache", true)

	// -- Discovery --
	v.SetDefault("discovery.max_routes", 25)
	v.SetDefault("discovery.crawl_depth", 2)
	v.SetDefault("discovery.nav_timeout", "30s")
	v.SetDefault("discovery.sitemap_enabled", true)
	v.SetDefault("discovery.sitemap_rate_limit", 2.0)
	v.SetDefault("discovery.pagination_params", []string{"page", "paged", "p", "offset", "start"})

	// -- Scan --
	v.SetDefault("scan.concurrency", 3)
	v.SetDefault("scan.timeout", "45s")
	v.SetDefault("scan.wait_strategy", string(schemas.WaitNetworkIdle))
	v.SetDefault("scan.post_load_wait", "1s")

	// -- Scoring --
	v.SetDefault("scoring.weights", map[string]int{
		string(schemas.SeverityCritical): 25,
		string(schemas.SeveritySerious):  10,
		string(schemas.SeverityModerate): 3,
		string(schemas.SeverityMinor):    1,
	})
	v.SetDefault("scoring.thresholds", []map[string]any{
		{"min_score": 90, "label": "AA-ready"},
		{"min_score": 75, "label": "B"},
		{"min_score": 50, "label": "C"},
		{"min_score": 25, "label": "D"},
	})

	// -- Gate --
	v.SetDefault("gate.enabled", false)
	v.SetDefault("gate.max_critical", 0)
	v.SetDefault("gate.max_serious", 0)
	v.SetDefault("gate.max_moderate", -1)
	v.SetDefault("gate.max_minor", -1)

	// -- Rules --
	v.SetDefault("rules.script_path", "")
	v.SetDefault("rules.timeout", "20s")
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with our own defaults.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object and
// validates it. Validation failures are fatal: nothing is crawled with a
// broken config.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for sane values.
func (c *Config) Validate() error {
	if c.Discovery.MaxRoutes <= 0 {
		return fmt.Errorf("discovery.max_routes must be a positive integer")
	}
	if c.Discovery.CrawlDepth < 1 || c.Discovery.CrawlDepth > 3 {
		return fmt.Errorf("discovery.crawl_depth must be between 1 and 3")
	}
	if c.Scan.Concurrency <= 0 {
		return fmt.Errorf("scan.concurrency must be a positive integer")
	}
	if c.Scan.Timeout <= 0 {
		return fmt.Errorf("scan.timeout must be a positive duration")
	}
	switch c.Scan.WaitStrategy {
	case schemas.WaitLoad, schemas.WaitNetworkIdle, schemas.WaitDelay:
	default:
		return fmt.Errorf("scan.wait_strategy must be one of load, networkidle, delay")
	}
	if len(c.Scoring.Weights) == 0 {
		return fmt.Errorf("scoring.weights must not be empty")
	}
	if len(c.Scoring.Thresholds) == 0 {
		return fmt.Errorf("scoring.thresholds must not be empty")
	}
	return nil
}
