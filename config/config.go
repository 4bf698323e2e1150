package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultTargetURL       = "https://staging.dmerocket.com/"
	DefaultBrowser         = "chromium"
	DefaultArtifactsDir    = "test-results"
	DefaultReportsDir      = "reports"
	DefaultStepTimeout     = 30 * time.Second
	DefaultScenarioTimeout = 5 * time.Minute
)

// Config is a resolved snapshot of all settings used by a test run.
// It is passed by value and never changed after resolution.
type Config struct {
	// TargetURL is the base origin all scenarios navigate against.
	TargetURL string
	// Headless runs the browser without a visible window.
	Headless bool
	// IgnoreTLSErrors tolerates certificate validation failures.
	IgnoreTLSErrors bool
	// Browser is one of chromium, firefox or webkit.
	Browser string

	// ArtifactsDir receives traces, raw videos and captured logs.
	ArtifactsDir string
	// ReportsDir receives report assets (copied videos) and the HTML report.
	ReportsDir string

	// StepTimeout is the default timeout for every browser operation.
	StepTimeout time.Duration
	// ScenarioTimeout bounds a whole scenario including cleanup.
	ScenarioTimeout time.Duration

	// Email and Password are credentials used by login steps.
	Email    string
	Password string

	defaulted []string
}

// Defaulted returns the keys that were not set and fell back to a default.
func (c Config) Defaulted() []string {
	return append([]string(nil), c.defaulted...)
}

// TracesDir is where trace archives are written.
func (c Config) TracesDir() string {
	return filepath.Join(c.ArtifactsDir, "traces")
}

// VideosDir is where the browser records raw videos.
func (c Config) VideosDir() string {
	return filepath.Join(c.ArtifactsDir, "videos")
}

// LogsDir is where console and scenario logs are written.
func (c Config) LogsDir() string {
	return filepath.Join(c.ArtifactsDir, "logs")
}

// ReportVideosDir is where videos are copied for the HTML report.
func (c Config) ReportVideosDir() string {
	return filepath.Join(c.ReportsDir, "assets", "videos")
}

// ReportHTMLDir is where the external report generator writes HTML.
func (c Config) ReportHTMLDir() string {
	return filepath.Join(c.ReportsDir, "html")
}

// Resolve builds a configuration from the process environment.
func Resolve() Config {
	return ResolveFrom(os.LookupEnv)
}

// ResolveFrom builds a configuration using lookup to read variables.
// Missing values fall back to defaults, it never fails.
func ResolveFrom(lookup func(string) (string, bool)) Config {
	return resolve(lookup, fileConfig{})
}

// Load reads an optional YAML file and layers the process environment on top of it.
// An empty path behaves like Resolve.
func Load(path string) (Config, error) {
	if path == "" {
		return Resolve(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	return resolve(os.LookupEnv, fc), nil
}

// fileConfig mirrors the environment variables in a YAML document.
type fileConfig struct {
	BaseURL         string `yaml:"baseURL"`
	Headless        *bool  `yaml:"headless"`
	IgnoreTLSErrors *bool  `yaml:"ignoreHTTPSErrors"`
	Browser         string `yaml:"browser"`
	ArtifactsDir    string `yaml:"artifactsDir"`
	ReportsDir      string `yaml:"reportsDir"`
	StepTimeout     string `yaml:"stepTimeout"`
	ScenarioTimeout string `yaml:"scenarioTimeout"`
	Email           string `yaml:"email"`
	Password        string `yaml:"password"`
}

type resolver struct {
	lookup    func(string) (string, bool)
	defaulted []string
}

// str returns the first non-empty value of the given variables, then fallback, then def.
func (r *resolver) str(key string, vars []string, fallback string, def string) string {
	values := lo.Map(vars, func(name string, _ int) string {
		v, _ := r.lookup(name)
		return strings.TrimSpace(v)
	})
	v := lo.CoalesceOrEmpty(append(values, fallback)...)
	if v == "" {
		r.defaulted = append(r.defaulted, key)
		return def
	}
	return v
}

func (r *resolver) boolean(key string, name string, fallback *bool, def bool, parse func(string) bool) bool {
	if v, ok := r.lookup(name); ok && v != "" {
		return parse(v)
	}
	if fallback != nil {
		return *fallback
	}
	r.defaulted = append(r.defaulted, key)
	return def
}

func (r *resolver) duration(key string, name string, fallback string, def time.Duration) time.Duration {
	v := r.str(key, []string{name}, fallback, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		r.defaulted = append(r.defaulted, key)
		return def
	}
	return d
}

func resolve(lookup func(string) (string, bool), fc fileConfig) Config {
	r := &resolver{lookup: lookup}

	cfg := Config{
		TargetURL: r.str("targetURL", []string{"ROCKET_BASE_URL", "BASE_URL"}, fc.BaseURL, DefaultTargetURL),
		// Anything but "false" keeps the browser headless
		Headless: r.boolean("headless", "HEADLESS", fc.Headless, true, func(v string) bool {
			return !strings.EqualFold(v, "false")
		}),
		IgnoreTLSErrors: r.boolean("ignoreTLSErrors", "IGNORE_HTTPS_ERRORS", fc.IgnoreTLSErrors, false, func(v string) bool {
			return strings.EqualFold(v, "true")
		}),
		Browser:         strings.ToLower(r.str("browser", []string{"ROCKET_BROWSER"}, fc.Browser, DefaultBrowser)),
		ArtifactsDir:    r.str("artifactsDir", []string{"ROCKET_ARTIFACTS_DIR"}, fc.ArtifactsDir, DefaultArtifactsDir),
		ReportsDir:      r.str("reportsDir", []string{"ROCKET_REPORTS_DIR"}, fc.ReportsDir, DefaultReportsDir),
		StepTimeout:     r.duration("stepTimeout", "ROCKET_STEP_TIMEOUT", fc.StepTimeout, DefaultStepTimeout),
		ScenarioTimeout: r.duration("scenarioTimeout", "ROCKET_SCENARIO_TIMEOUT", fc.ScenarioTimeout, DefaultScenarioTimeout),
		Email:           r.str("email", []string{"ROCKET_EMAIL"}, fc.Email, ""),
		Password:        r.str("password", []string{"ROCKET_PASSWORD"}, fc.Password, ""),
	}
	cfg.defaulted = r.defaulted

	return cfg
}
