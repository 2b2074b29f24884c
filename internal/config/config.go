package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cam3ron2/oss-contributions/internal/telemetry"
	"gopkg.in/yaml.v3"
)

var validLogLevels = []string{"debug", "info", "warn", "error"}

// Config is the root application configuration.
type Config struct {
	Users            []string
	Organization     string
	From             time.Time
	To               time.Time
	MinStargazers    int
	ContributionOnly bool
	IncludePersonal  bool
	IncludePrivate   bool
	IncludeInactive  bool
	Issues           bool
	Sort             string
	Template         string
	LogLevel         string
	GitHub           GitHubConfig
	RateLimit        RateLimitConfig
	Retry            RetryConfig
	Telemetry        TelemetryConfig
	Metrics          MetricsConfig
}

// GitHubConfig configures GitHub API access.
type GitHubConfig struct {
	// Token is read from GITHUB_TOKEN only.
	Token          string
	APIBaseURL     string
	GraphQLURL     string
	RequestTimeout time.Duration
	AppID          int64
	InstallationID int64
	PrivateKeyPath string
}

// UsesApp reports whether GitHub App installation credentials are configured.
func (g GitHubConfig) UsesApp() bool {
	return g.AppID > 0 || g.InstallationID > 0 || g.PrivateKeyPath != ""
}

// RateLimitConfig configures rate-limit controls.
type RateLimitConfig struct {
	MinRemainingThreshold int
	MinResetBuffer        time.Duration
	SecondaryLimitBackoff time.Duration
}

// RetryConfig configures retries.
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// TelemetryConfig configures OpenTelemetry behavior.
type TelemetryConfig struct {
	OTELEnabled          bool
	OTELTraceMode        string
	OTELTraceSampleRatio float64
}

// MetricsConfig configures the run metrics textfile.
type MetricsConfig struct {
	Textfile string
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Parse reads YAML configuration and applies defaults. The result is not validated.
func Parse(reader io.Reader) (*Config, error) {
	if reader == nil {
		return nil, fmt.Errorf("config reader is nil")
	}

	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	var raw rawConfig
	if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg, err := raw.toConfig()
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

// ParseFile reads the YAML configuration at path.
func ParseFile(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()
	return Parse(file)
}

// Validate validates configuration values.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Users) == 0 && strings.TrimSpace(c.Organization) == "" {
		errs = append(errs, "at least one user or an organization is required")
	}
	for i, user := range c.Users {
		if strings.TrimSpace(user) == "" {
			errs = append(errs, fmt.Sprintf("users[%d] is empty", i))
		}
	}
	if !c.From.IsZero() && !c.To.IsZero() && c.From.After(c.To) {
		errs = append(errs, "from must not be after to")
	}
	if c.MinStargazers < 0 {
		errs = append(errs, "min_stargazers must be >= 0")
	}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		errs = append(errs, "log_level must be one of debug|info|warn|error")
	}

	if c.GitHub.UsesApp() {
		if c.GitHub.AppID <= 0 {
			errs = append(errs, "github.app_id must be > 0")
		}
		if c.GitHub.InstallationID <= 0 {
			errs = append(errs, "github.installation_id must be > 0")
		}
		if c.GitHub.PrivateKeyPath == "" {
			errs = append(errs, "github.private_key_path is required")
		}
	} else if strings.TrimSpace(c.GitHub.Token) == "" {
		errs = append(errs, "GITHUB_TOKEN is required unless github app credentials are configured")
	}
	if c.GitHub.RequestTimeout <= 0 {
		errs = append(errs, "github.request_timeout must be > 0")
	}

	if c.RateLimit.MinRemainingThreshold < 0 {
		errs = append(errs, "rate_limit.min_remaining_threshold must be >= 0")
	}
	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, "retry.max_attempts must be >= 1")
	}
	if c.Retry.MaxBackoff > 0 && c.Retry.InitialBackoff > c.Retry.MaxBackoff {
		errs = append(errs, "retry.initial_backoff must not exceed retry.max_backoff")
	}

	if c.Telemetry.OTELEnabled && !telemetry.ValidTraceMode(c.Telemetry.OTELTraceMode) {
		errs = append(errs, "telemetry.otel_trace_mode must be one of off|errors|sampled|detailed")
	}
	if c.Telemetry.OTELTraceSampleRatio < 0 || c.Telemetry.OTELTraceSampleRatio > 1 {
		errs = append(errs, "telemetry.otel_trace_sample_ratio must be within [0, 1]")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Sort == "" {
		cfg.Sort = "stargazers"
	}
	if cfg.GitHub.APIBaseURL == "" {
		cfg.GitHub.APIBaseURL = "https://api.github.com"
	}
	if cfg.GitHub.RequestTimeout == 0 {
		cfg.GitHub.RequestTimeout = 30 * time.Second
	}
	if cfg.RateLimit.MinRemainingThreshold == 0 {
		cfg.RateLimit.MinRemainingThreshold = 50
	}
	if cfg.RateLimit.MinResetBuffer == 0 {
		cfg.RateLimit.MinResetBuffer = 5 * time.Second
	}
	if cfg.RateLimit.SecondaryLimitBackoff == 0 {
		cfg.RateLimit.SecondaryLimitBackoff = time.Minute
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 3
	}
	if cfg.Retry.InitialBackoff == 0 {
		cfg.Retry.InitialBackoff = time.Second
	}
	if cfg.Retry.MaxBackoff == 0 {
		cfg.Retry.MaxBackoff = 30 * time.Second
	}
	if cfg.Telemetry.OTELTraceMode == "" {
		cfg.Telemetry.OTELTraceMode = string(telemetry.ModeSampled)
	}
}

type duration struct {
	time.Duration
}

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil || value.Kind == 0 || strings.TrimSpace(value.Value) == "" {
		d.Duration = 0
		return nil
	}

	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}

	parsed, err := parseFlexibleDuration(raw)
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func parseFlexibleDuration(raw string) (time.Duration, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}

	if standard, err := time.ParseDuration(trimmed); err == nil {
		return standard, nil
	}

	if strings.HasSuffix(trimmed, "d") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "d"), 24)
	}
	if strings.HasSuffix(trimmed, "w") {
		return parseDurationWithMultiplier(strings.TrimSuffix(trimmed, "w"), 24*7)
	}

	return 0, fmt.Errorf("parse duration %q: invalid unit", raw)
}

func parseDurationWithMultiplier(numeric string, multiplierHours float64) (time.Duration, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(numeric), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration value %q: %w", numeric, err)
	}

	nanos := value * multiplierHours * float64(time.Hour)
	if nanos > math.MaxInt64 || nanos < math.MinInt64 {
		return 0, fmt.Errorf("parse duration value %q: out of range", numeric)
	}
	return time.Duration(nanos), nil
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC. Blank input yields the zero time.
func ParseDate(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}
	parsed, err := time.ParseInLocation(time.DateOnly, trimmed, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: want YYYY-MM-DD", raw)
	}
	return parsed, nil
}

type rawConfig struct {
	Users            []string     `yaml:"users"`
	Organization     string       `yaml:"organization"`
	From             string       `yaml:"from"`
	To               string       `yaml:"to"`
	MinStargazers    int          `yaml:"min_stargazers"`
	ContributionOnly bool         `yaml:"contribution_only"`
	IncludePersonal  bool         `yaml:"include_personal"`
	IncludePrivate   bool         `yaml:"include_private"`
	IncludeInactive  bool         `yaml:"include_inactive"`
	Issues           bool         `yaml:"issues"`
	Sort             string       `yaml:"sort"`
	Template         string       `yaml:"template"`
	LogLevel         string       `yaml:"log_level"`
	GitHub           rawGitHub    `yaml:"github"`
	RateLimit        rawRateLimit `yaml:"rate_limit"`
	Retry            rawRetry     `yaml:"retry"`
	Telemetry        rawTelemetry `yaml:"telemetry"`
	Metrics          rawMetrics   `yaml:"metrics"`
}

type rawGitHub struct {
	APIBaseURL     string   `yaml:"api_base_url"`
	GraphQLURL     string   `yaml:"graphql_url"`
	RequestTimeout duration `yaml:"request_timeout"`
	AppID          int64    `yaml:"app_id"`
	InstallationID int64    `yaml:"installation_id"`
	PrivateKeyPath string   `yaml:"private_key_path"`
}

type rawRateLimit struct {
	MinRemainingThreshold int      `yaml:"min_remaining_threshold"`
	MinResetBuffer        duration `yaml:"min_reset_buffer"`
	SecondaryLimitBackoff duration `yaml:"secondary_limit_backoff"`
}

type rawRetry struct {
	MaxAttempts    int      `yaml:"max_attempts"`
	InitialBackoff duration `yaml:"initial_backoff"`
	MaxBackoff     duration `yaml:"max_backoff"`
}

type rawTelemetry struct {
	OTELEnabled          bool    `yaml:"otel_enabled"`
	OTELTraceMode        string  `yaml:"otel_trace_mode"`
	OTELTraceSampleRatio float64 `yaml:"otel_trace_sample_ratio"`
}

type rawMetrics struct {
	Textfile string `yaml:"textfile"`
}

func (r rawConfig) toConfig() (*Config, error) {
	from, err := ParseDate(r.From)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	to, err := ParseDate(r.To)
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}

	return &Config{
		Users:            slices.Clone(r.Users),
		Organization:     r.Organization,
		From:             from,
		To:               to,
		MinStargazers:    r.MinStargazers,
		ContributionOnly: r.ContributionOnly,
		IncludePersonal:  r.IncludePersonal,
		IncludePrivate:   r.IncludePrivate,
		IncludeInactive:  r.IncludeInactive,
		Issues:           r.Issues,
		Sort:             r.Sort,
		Template:         r.Template,
		LogLevel:         r.LogLevel,
		GitHub: GitHubConfig{
			APIBaseURL:     r.GitHub.APIBaseURL,
			GraphQLURL:     r.GitHub.GraphQLURL,
			RequestTimeout: r.GitHub.RequestTimeout.Duration,
			AppID:          r.GitHub.AppID,
			InstallationID: r.GitHub.InstallationID,
			PrivateKeyPath: r.GitHub.PrivateKeyPath,
		},
		RateLimit: RateLimitConfig{
			MinRemainingThreshold: r.RateLimit.MinRemainingThreshold,
			MinResetBuffer:        r.RateLimit.MinResetBuffer.Duration,
			SecondaryLimitBackoff: r.RateLimit.SecondaryLimitBackoff.Duration,
		},
		Retry: RetryConfig{
			MaxAttempts:    r.Retry.MaxAttempts,
			InitialBackoff: r.Retry.InitialBackoff.Duration,
			MaxBackoff:     r.Retry.MaxBackoff.Duration,
		},
		Telemetry: TelemetryConfig{
			OTELEnabled:          r.Telemetry.OTELEnabled,
			OTELTraceMode:        r.Telemetry.OTELTraceMode,
			OTELTraceSampleRatio: r.Telemetry.OTELTraceSampleRatio,
		},
		Metrics: MetricsConfig{
			Textfile: r.Metrics.Textfile,
		},
	}, nil
}
