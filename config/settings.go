// Package config provides application settings.
//
// Settings are built by Load in three layers:
// - defaults
// - an optional TOML file
// - environment variables, including provider-specific model and key names
//
// An explicit provider argument (the CLI flag) wins over all of them.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/richinex/reportflow/llm"
	"github.com/richinex/reportflow/storage"
	"github.com/richinex/reportflow/tools"
	"github.com/richinex/reportflow/workflow"
)

// Settings holds all application configuration.
type Settings struct {
	LLM      LLMConfig      `toml:"llm"`
	Workflow WorkflowConfig `toml:"workflow"`
	Storage  StorageConfig  `toml:"storage"`
	Sources  SourcesConfig  `toml:"sources"`
	Tools    ToolsConfig    `toml:"tools"`
	Metrics  MetricsConfig  `toml:"metrics"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider          string  `toml:"provider"`
	Model             string  `toml:"model"`
	BaseURL           string  `toml:"base_url"`
	MaxTokens         uint32  `toml:"max_tokens"`
	Temperature       float64 `toml:"temperature"`
	RequestsPerMinute int     `toml:"requests_per_minute"`
	Burst             int     `toml:"burst"`
}

// WorkflowConfig holds the engine policies.
type WorkflowConfig struct {
	MaxSteps            int    `toml:"max_steps"`
	MaxRetries          int    `toml:"max_retries"`
	SearchLimit         int    `toml:"search_limit"`
	MinDraftLength      int    `toml:"min_draft_length"`
	SynthesisAttempts   int    `toml:"synthesis_attempts"`
	SynthesisBackoff    string `toml:"synthesis_backoff"`
	CheckpointEveryStep bool   `toml:"checkpoint_every_step"`
	ResumeConcurrency   int    `toml:"resume_concurrency"`
}

// StorageConfig selects the checkpoint and document store.
type StorageConfig struct {
	Driver string `toml:"driver"` // memory, sqlite3 or sqlite
	Path   string `toml:"path"`
}

// SourcesConfig locates source manifests.
type SourcesConfig struct {
	Dir      string `toml:"dir"`
	Manifest string `toml:"manifest"`
	MaxBytes int    `toml:"max_bytes"`
}

// ToolsConfig holds tool execution configuration.
type ToolsConfig struct {
	TimeoutSecs  uint64   `toml:"timeout_secs"`
	MaxRetries   uint32   `toml:"max_retries"`
	FetchEnabled bool     `toml:"fetch_enabled"`
	FetchDomains []string `toml:"fetch_domains"`

	// MCPConfig points to a JSON file of MCP servers whose tools are
	// offered to the drafter as research tools.
	MCPConfig string `toml:"mcp_config"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// Storage drivers.
const (
	DriverMemory = "memory"
)

// modelEnv names the model override variable of each provider.
var modelEnv = map[string]string{
	"openai":     "OPENAI_MODEL",
	"anthropic":  "ANTHROPIC_MODEL",
	"deepseek":   "DEEPSEEK_MODEL",
	"gemini":     "GEMINI_MODEL",
	"compatible": "LLM_MODEL",
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		LLM: LLMConfig{
			Provider:    "anthropic",
			MaxTokens:   8192,
			Temperature: 0.3,
			Burst:       1,
		},
		Workflow: WorkflowConfig{
			MaxSteps:            workflow.DefaultMaxSteps,
			MaxRetries:          workflow.DefaultMaxRetries,
			SearchLimit:         workflow.DefaultSearchLimit,
			MinDraftLength:      workflow.DefaultMinDraftLength,
			SynthesisAttempts:   workflow.DefaultSynthesisAttempts,
			SynthesisBackoff:    workflow.DefaultSynthesisBackoff.String(),
			CheckpointEveryStep: true,
			ResumeConcurrency:   4,
		},
		Storage: StorageConfig{
			Driver: storage.DriverCGO,
			Path:   "reportflow.db",
		},
		Tools: ToolsConfig{
			TimeoutSecs: tools.DefaultToolTimeout,
			MaxRetries:  3,
		},
	}
}

// Load builds settings from defaults, the TOML file at path (optional) and
// the environment. A non-empty provider overrides the configured one.
func Load(path, provider string) (Settings, error) {
	s := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := toml.Unmarshal(data, &s); err != nil {
			return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	fileProvider := normalizeProvider(s.LLM.Provider)

	if err := applyEnv(&s); err != nil {
		return Settings{}, err
	}
	if provider != "" {
		s.LLM.Provider = provider
	}
	s.LLM.Provider = normalizeProvider(s.LLM.Provider)

	// a model configured for another provider does not carry over
	if s.LLM.Provider != fileProvider && os.Getenv("LLM_MODEL") == "" {
		s.LLM.Model = ""
	}
	if env, ok := modelEnv[s.LLM.Provider]; ok {
		if m := os.Getenv(env); m != "" {
			s.LLM.Model = m
		}
	}
	if s.LLM.Model == "" {
		if pt, err := llm.ParseProviderType(s.LLM.Provider); err == nil {
			s.LLM.Model = pt.DefaultModel()
		}
	}

	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

func applyEnv(s *Settings) error {
	var err error
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("LLM_PROVIDER", &s.LLM.Provider)
	setString("LLM_MODEL", &s.LLM.Model)
	setString("LLM_BASE_URL", &s.LLM.BaseURL)
	setString("REPORTFLOW_STORAGE_DRIVER", &s.Storage.Driver)
	setString("REPORTFLOW_DB", &s.Storage.Path)
	setString("REPORTFLOW_SOURCES_DIR", &s.Sources.Dir)
	setString("REPORTFLOW_SOURCES", &s.Sources.Manifest)
	setString("REPORTFLOW_METRICS_ADDR", &s.Metrics.Addr)
	setString("REPORTFLOW_MCP_CONFIG", &s.Tools.MCPConfig)

	if s.LLM.MaxTokens, err = getEnvUint32("LLM_MAX_TOKENS", s.LLM.MaxTokens); err != nil {
		return err
	}
	if s.LLM.Temperature, err = getEnvFloat64("LLM_TEMPERATURE", s.LLM.Temperature); err != nil {
		return err
	}
	if s.LLM.RequestsPerMinute, err = getEnvInt("LLM_REQUESTS_PER_MINUTE", s.LLM.RequestsPerMinute); err != nil {
		return err
	}
	if s.Workflow.MaxSteps, err = getEnvInt("REPORTFLOW_MAX_STEPS", s.Workflow.MaxSteps); err != nil {
		return err
	}
	if s.Workflow.MaxRetries, err = getEnvInt("REPORTFLOW_MAX_RETRIES", s.Workflow.MaxRetries); err != nil {
		return err
	}
	if s.Workflow.SearchLimit, err = getEnvInt("REPORTFLOW_SEARCH_LIMIT", s.Workflow.SearchLimit); err != nil {
		return err
	}
	return nil
}

// Validate checks value ranges and enumerations.
func (s Settings) Validate() error {
	if _, err := llm.ParseProviderType(s.LLM.Provider); err != nil {
		return err
	}
	if s.LLM.Provider == "compatible" && s.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required for the compatible provider")
	}
	if s.LLM.Temperature < 0 || s.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %v", s.LLM.Temperature)
	}

	for name, v := range map[string]int{
		"workflow.max_steps":          s.Workflow.MaxSteps,
		"workflow.max_retries":        s.Workflow.MaxRetries,
		"workflow.search_limit":       s.Workflow.SearchLimit,
		"workflow.synthesis_attempts": s.Workflow.SynthesisAttempts,
	} {
		if v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, v)
		}
	}
	if _, err := s.Workflow.Backoff(); err != nil {
		return err
	}

	switch s.Storage.Driver {
	case DriverMemory:
	case storage.DriverCGO, storage.DriverPureGo:
		if s.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for driver %s", s.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver: %q", s.Storage.Driver)
	}
	return nil
}

// Backoff parses the synthesis backoff.
func (w WorkflowConfig) Backoff() (time.Duration, error) {
	if w.SynthesisBackoff == "" {
		return workflow.DefaultSynthesisBackoff, nil
	}
	d, err := time.ParseDuration(w.SynthesisBackoff)
	if err != nil {
		return 0, fmt.Errorf("invalid workflow.synthesis_backoff %q: %w", w.SynthesisBackoff, err)
	}
	return d, nil
}

// Options converts the workflow section into engine options.
func (s Settings) Options() workflow.Options {
	backoff, _ := s.Workflow.Backoff()
	return workflow.Options{
		MaxSteps:            s.Workflow.MaxSteps,
		CheckpointEveryStep: s.Workflow.CheckpointEveryStep,
		MaxRetries:          s.Workflow.MaxRetries,
		SearchLimit:         s.Workflow.SearchLimit,
		MinDraftLength:      s.Workflow.MinDraftLength,
		SynthesisAttempts:   s.Workflow.SynthesisAttempts,
		SynthesisBackoff:    backoff,
		ResumeConcurrency:   s.Workflow.ResumeConcurrency,
	}
}

// ToolOptions converts the tools section into registry options.
func (s Settings) ToolOptions() tools.Options {
	return tools.Options{
		FetchEnabled:     s.Tools.FetchEnabled,
		FetchDomains:     s.Tools.FetchDomains,
		FetchTimeoutSecs: s.Tools.TimeoutSecs,
	}
}

// ToolConfig returns the executor configuration.
func (s Settings) ToolConfig() tools.ToolConfig {
	return tools.ToolConfig{TimeoutSecs: s.Tools.TimeoutSecs, MaxRetries: s.Tools.MaxRetries}
}

// Provider builds the configured model provider, reading the API key from
// the environment. Rate limiting wraps it when requests_per_minute is set.
func (s Settings) Provider() (llm.Provider, error) {
	pt, err := llm.ParseProviderType(s.LLM.Provider)
	if err != nil {
		return nil, err
	}
	p, err := pt.Model(s.LLM.Model).
		MaxTokens(s.LLM.MaxTokens).
		Temperature(float32(s.LLM.Temperature)).
		BaseURL(s.LLM.BaseURL).
		FromEnv()
	if err != nil {
		return nil, err
	}
	return llm.NewRateLimited(p, s.LLM.RequestsPerMinute, s.LLM.Burst), nil
}

// normalizeProvider converts provider aliases to canonical names.
func normalizeProvider(provider string) string {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if pt, err := llm.ParseProviderType(provider); err == nil {
		return pt.String()
	}
	return provider
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	pt, err := llm.ParseProviderType(provider)
	if err != nil {
		return "", err
	}
	key := os.Getenv(pt.EnvVar())
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", pt.EnvVar())
	}
	return key, nil
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	return []string{"anthropic", "openai", "deepseek", "gemini", "compatible"}
}

// Environment variable helpers with proper error handling

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat64(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return f, nil
}
