// Package config loads rubricrank configuration from defaults, the user
// config file, the project config file and RUBRICRANK_* environment
// variables, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/rubricrank/internal/errors"
)

// Config is the complete rubricrank configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Paths   PathsConfig   `yaml:"paths" json:"paths"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Indexer IndexerConfig `yaml:"indexer" json:"indexer"`
	Scorer  ScorerConfig  `yaml:"scorer" json:"scorer"`
	Server  ServerConfig  `yaml:"server" json:"server"`
}

// PathsConfig locates corpora, rubric files and the index snapshot.
type PathsConfig struct {
	// Corpora is the directory of .json, .jsonl and .txt corpus files.
	Corpora string `yaml:"corpora" json:"corpora"`

	// Rubrics is the directory of rubric YAML or JSON files.
	Rubrics string `yaml:"rubrics" json:"rubrics"`

	// Snapshot is the rubric index snapshot file.
	// Default: ~/.rubricrank/indexes.json
	Snapshot string `yaml:"snapshot" json:"snapshot"`
}

// SearchConfig configures retrieval, fusion and rubric reranking.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// RRFConstant is the fusion smoothing parameter k.
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// LexicalBackend selects "sqlite" (FTS5, default) or "bleve".
	LexicalBackend string  `yaml:"lexical_backend" json:"lexical_backend"`
	TitleBoost     float64 `yaml:"title_boost" json:"title_boost"`

	// KeywordDivisor and HybridMultiplier calibrate score normalization.
	KeywordDivisor   float64 `yaml:"keyword_divisor" json:"keyword_divisor"`
	HybridMultiplier float64 `yaml:"hybrid_multiplier" json:"hybrid_multiplier"`

	// RubricWeight is the default blend weight of the rubric score.
	RubricWeight float64 `yaml:"rubric_weight" json:"rubric_weight"`

	// CandidateMultiplier widens retrieval before a live rerank.
	CandidateMultiplier int `yaml:"candidate_multiplier" json:"candidate_multiplier"`

	// ANNThreshold is the corpus size above which semantic search narrows
	// candidates through term postings and an HNSW graph. Zero, the default,
	// scans every document.
	ANNThreshold  int `yaml:"ann_threshold" json:"ann_threshold"`
	ANNOversample int `yaml:"ann_oversample" json:"ann_oversample"`
}

// IndexerConfig configures the rubric batch indexer.
type IndexerConfig struct {
	Concurrency  int    `yaml:"concurrency" json:"concurrency"`
	MaxRetries   int    `yaml:"max_retries" json:"max_retries"`
	InitialDelay string `yaml:"initial_delay" json:"initial_delay"`
	MaxDelay     string `yaml:"max_delay" json:"max_delay"`
	CallTimeout  string `yaml:"call_timeout" json:"call_timeout"`
}

// ScorerConfig selects and configures the scoring oracle.
type ScorerConfig struct {
	// Provider is "pi" (default), "judge" or "static".
	Provider  string `yaml:"provider" json:"provider"`
	Endpoint  string `yaml:"endpoint" json:"endpoint"`
	APIKeyEnv string `yaml:"api_key_env" json:"api_key_env"`

	// Model is the chat model for the judge and rubric generation.
	Model     string `yaml:"model" json:"model"`
	CacheSize int    `yaml:"cache_size" json:"cache_size"`

	// Workers caps concurrent scorer calls during a live rerank.
	Workers int `yaml:"workers" json:"workers"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`

	// MetricsAddr serves /metrics and /healthz when set, e.g. ":9090".
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// NewConfig creates a Config with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Corpora:  "corpora",
			Rubrics:  "rubrics",
			Snapshot: defaultSnapshotPath(),
		},
		Search: SearchConfig{
			DefaultLimit:        20,
			RRFConstant:         60,
			LexicalBackend:      "sqlite",
			TitleBoost:          2.0,
			KeywordDivisor:      10,
			HybridMultiplier:    10,
			RubricWeight:        0.5,
			CandidateMultiplier: 2,
			ANNThreshold:        0,
			ANNOversample:       4,
		},
		Indexer: IndexerConfig{
			Concurrency:  20,
			MaxRetries:   3,
			InitialDelay: "100ms",
			MaxDelay:     "5s",
			CallTimeout:  "30s",
		},
		Scorer: ScorerConfig{
			Provider:  "pi",
			APIKeyEnv: "WITHPI_API_KEY",
			Model:     "gpt-4o",
			CacheSize: 1024,
			Workers:   16,
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

// DataDir returns ~/.rubricrank.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".rubricrank")
	}
	return filepath.Join(home, ".rubricrank")
}

func defaultSnapshotPath() string {
	return filepath.Join(DataDir(), "indexes.json")
}

// GetUserConfigPath returns the user configuration file:
//   - $XDG_CONFIG_HOME/rubricrank/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/rubricrank/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rubricrank", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "rubricrank", "config.yaml")
	}
	return filepath.Join(home, ".config", "rubricrank", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// ProjectConfigNames are the project config file names, in lookup order.
var ProjectConfigNames = []string{".rubricrank.yaml", ".rubricrank.yml"}

// Load builds the configuration for the project in dir:
//  1. Defaults
//  2. User config (~/.config/rubricrank/config.yaml)
//  3. Project config (.rubricrank.yaml in dir)
//  4. Environment variables (RUBRICRANK_*)
//
// The result is validated. Relative corpus and rubric paths are resolved
// against dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config from %s: %w", path, err)
		}
	}

	for _, name := range ProjectConfigNames {
		path := filepath.Join(dir, name)
		if !fileExists(path) {
			continue
		}
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
		break
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.Paths.Corpora = resolve(dir, cfg.Paths.Corpora)
	cfg.Paths.Rubrics = resolve(dir, cfg.Paths.Rubrics)
	cfg.Paths.Snapshot = resolve(dir, expandHome(cfg.Paths.Snapshot))
	return cfg, nil
}

// loadYAML overlays the values present in a YAML file. Fields the file
// leaves out keep their current value.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.ConfigError(fmt.Sprintf("invalid YAML in %s", path), err).
			WithDetail("path", path)
	}
	return nil
}

// applyEnvOverrides applies RUBRICRANK_* environment variables. Values that
// fail to parse are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RUBRICRANK_CORPUS_DIR"); v != "" {
		c.Paths.Corpora = v
	}
	if v := os.Getenv("RUBRICRANK_RUBRIC_DIR"); v != "" {
		c.Paths.Rubrics = v
	}
	if v := os.Getenv("RUBRICRANK_SNAPSHOT"); v != "" {
		c.Paths.Snapshot = v
	}

	if v := os.Getenv("RUBRICRANK_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("RUBRICRANK_RUBRIC_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && w >= 0 && w <= 1 {
			c.Search.RubricWeight = w
		}
	}
	if v := os.Getenv("RUBRICRANK_LEXICAL_BACKEND"); v != "" {
		c.Search.LexicalBackend = v
	}

	if v := os.Getenv("RUBRICRANK_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Indexer.Concurrency = n
		}
	}
	if v := os.Getenv("RUBRICRANK_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Indexer.MaxRetries = n
		}
	}

	// RUBRICRANK_SCORER is an alias for RUBRICRANK_SCORER_PROVIDER
	if v := os.Getenv("RUBRICRANK_SCORER_PROVIDER"); v != "" {
		c.Scorer.Provider = v
	}
	if v := os.Getenv("RUBRICRANK_SCORER"); v != "" {
		c.Scorer.Provider = v
	}
	if v := os.Getenv("RUBRICRANK_SCORER_ENDPOINT"); v != "" {
		c.Scorer.Endpoint = v
	}
	if v := os.Getenv("RUBRICRANK_MODEL"); v != "" {
		c.Scorer.Model = v
	}

	if v := os.Getenv("RUBRICRANK_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("RUBRICRANK_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("RUBRICRANK_METRICS_ADDR"); v != "" {
		c.Server.MetricsAddr = v
	}
}

// Validate checks the configuration. Every failure is ERR_102_CONFIG_INVALID.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return errors.ConfigError(fmt.Sprintf(format, args...), nil)
	}

	s := c.Search
	if s.DefaultLimit <= 0 {
		return invalid("search.default_limit must be positive, got %d", s.DefaultLimit)
	}
	if s.RRFConstant <= 0 {
		return invalid("search.rrf_constant must be positive, got %d", s.RRFConstant)
	}
	switch strings.ToLower(s.LexicalBackend) {
	case "sqlite", "bleve":
	default:
		return invalid("search.lexical_backend must be 'sqlite' or 'bleve', got %s", s.LexicalBackend)
	}
	if s.KeywordDivisor <= 0 || s.HybridMultiplier <= 0 {
		return invalid("search.keyword_divisor and search.hybrid_multiplier must be positive")
	}
	if s.RubricWeight < 0 || s.RubricWeight > 1 {
		return invalid("search.rubric_weight must be between 0 and 1, got %g", s.RubricWeight)
	}
	if s.CandidateMultiplier < 1 {
		return invalid("search.candidate_multiplier must be at least 1, got %d", s.CandidateMultiplier)
	}
	if s.ANNThreshold < 0 || s.ANNOversample < 0 {
		return invalid("search.ann_threshold and search.ann_oversample must be non-negative")
	}

	if c.Indexer.Concurrency <= 0 {
		return invalid("indexer.concurrency must be positive, got %d", c.Indexer.Concurrency)
	}
	if c.Indexer.MaxRetries < 0 {
		return invalid("indexer.max_retries must be non-negative, got %d", c.Indexer.MaxRetries)
	}
	for name, v := range map[string]string{
		"indexer.initial_delay": c.Indexer.InitialDelay,
		"indexer.max_delay":     c.Indexer.MaxDelay,
		"indexer.call_timeout":  c.Indexer.CallTimeout,
	} {
		if _, err := parseDuration(v); err != nil {
			return invalid("%s is not a duration: %s", name, v)
		}
	}

	switch strings.ToLower(c.Scorer.Provider) {
	case "pi", "judge", "static":
	default:
		return invalid("scorer.provider must be 'pi', 'judge' or 'static', got %s", c.Scorer.Provider)
	}
	if c.Scorer.CacheSize < 0 || c.Scorer.Workers < 0 {
		return invalid("scorer.cache_size and scorer.workers must be non-negative")
	}

	if strings.ToLower(c.Server.Transport) != "stdio" {
		return invalid("server.transport must be 'stdio', got %s", c.Server.Transport)
	}
	switch strings.ToLower(c.Server.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// InitialDelayDuration returns indexer.initial_delay.
func (c IndexerConfig) InitialDelayDuration() time.Duration {
	d, _ := parseDuration(c.InitialDelay)
	return d
}

// MaxDelayDuration returns indexer.max_delay.
func (c IndexerConfig) MaxDelayDuration() time.Duration {
	d, _ := parseDuration(c.MaxDelay)
	return d
}

// CallTimeoutDuration returns indexer.call_timeout; zero means no timeout.
func (c IndexerConfig) CallTimeoutDuration() time.Duration {
	d, _ := parseDuration(c.CallTimeout)
	return d
}

// parseDuration accepts Go durations; empty and "0" mean zero.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
