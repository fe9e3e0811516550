// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Matcher() MatcherConfig
	Injector() InjectorConfig
	Profile() ProfileConfig
	Database() DatabaseConfig
	Browser() BrowserConfig
	LLM() LLMConfig
	Executor() ExecutorConfig
	Page() PageConfig

	// Flag overrides
	SetMatcherStrategy(string)
	SetBrowserHeadless(bool)
	SetLLMMode(string)
	SetExecutorContext(string)
	SetProfilePath(string)
	OverrideModel(mode, apiKey, model string)
}

// Matching strategies.
const (
	StrategyWeighted   = "weighted"
	StrategyOccurrence = "occurrence"
)

// LLM backends.
const (
	ModeAPI    = "api"
	ModeGemini = "gemini"
	ModeLocal  = "local"
)

// Generated-code execution contexts.
const (
	ExecutorPage    = "page"
	ExecutorSandbox = "sandbox"
)

// Profile sources.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	MatcherCfg  MatcherConfig  `mapstructure:"matcher" yaml:"matcher"`
	InjectorCfg InjectorConfig `mapstructure:"injector" yaml:"injector"`
	ProfileCfg  ProfileConfig  `mapstructure:"profile" yaml:"profile"`
	DatabaseCfg DatabaseConfig `mapstructure:"database" yaml:"database"`
	BrowserCfg  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	LLMCfg      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	ExecutorCfg ExecutorConfig `mapstructure:"executor" yaml:"executor"`
	PageCfg     PageConfig     `mapstructure:"page" yaml:"page"`
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig     { return c.LoggerCfg }
func (c *Config) Matcher() MatcherConfig   { return c.MatcherCfg }
func (c *Config) Injector() InjectorConfig { return c.InjectorCfg }
func (c *Config) Profile() ProfileConfig   { return c.ProfileCfg }
func (c *Config) Database() DatabaseConfig { return c.DatabaseCfg }
func (c *Config) Browser() BrowserConfig   { return c.BrowserCfg }
func (c *Config) LLM() LLMConfig           { return c.LLMCfg }
func (c *Config) Executor() ExecutorConfig { return c.ExecutorCfg }
func (c *Config) Page() PageConfig         { return c.PageCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetMatcherStrategy(s string) { c.MatcherCfg.Strategy = s }
func (c *Config) SetBrowserHeadless(b bool)   { c.BrowserCfg.Headless = b }
func (c *Config) SetLLMMode(m string)         { c.LLMCfg.Mode = m }
func (c *Config) SetExecutorContext(x string) { c.ExecutorCfg.Context = x }
func (c *Config) SetProfilePath(p string)     { c.ProfileCfg.Path = p }

// OverrideModel replaces the key and model of one backend block. Empty
// values keep what is configured.
func (c *Config) OverrideModel(mode, apiKey, model string) {
	var mc *LLMModelConfig
	switch mode {
	case ModeAPI:
		mc = &c.LLMCfg.API
	case ModeGemini:
		mc = &c.LLMCfg.Gemini
	case ModeLocal:
		mc = &c.LLMCfg.Local
	default:
		return
	}
	if apiKey != "" {
		mc.APIKey = apiKey
	}
	if model != "" {
		mc.Model = model
	}
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// MatcherConfig selects the scoring strategy and its acceptance thresholds.
type MatcherConfig struct {
	Strategy            string `mapstructure:"strategy" yaml:"strategy"`
	WeightedThreshold   int    `mapstructure:"weighted_threshold" yaml:"weighted_threshold"`
	OccurrenceThreshold int    `mapstructure:"occurrence_threshold" yaml:"occurrence_threshold"`
}

// Threshold returns the minimum score for the configured strategy.
func (m MatcherConfig) Threshold() int {
	if m.Strategy == StrategyOccurrence {
		return m.OccurrenceThreshold
	}
	return m.WeightedThreshold
}

// InjectorConfig tunes the value injector.
type InjectorConfig struct {
	VerifyDelay time.Duration `mapstructure:"verify_delay" yaml:"verify_delay"`
	Highlight   bool          `mapstructure:"highlight" yaml:"highlight"`
}

// ProfileConfig points at the externally owned profile record.
type ProfileConfig struct {
	Source string `mapstructure:"source" yaml:"source"`
	Path   string `mapstructure:"path" yaml:"path"`
	Watch  bool   `mapstructure:"watch" yaml:"watch"`
}

// ExpandedPath resolves a leading "~" in the profile path.
func (p ProfileConfig) ExpandedPath() (string, error) {
	return homedir.Expand(p.Path)
}

// DatabaseConfig holds the database connection details.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// BrowserConfig holds settings for the Chrome instance used against live pages.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	ChromePath        string        `mapstructure:"chrome_path" yaml:"chrome_path"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	Debug             bool          `mapstructure:"debug" yaml:"debug"`
}

// LLMConfig configures the model-assisted fill mode.
type LLMConfig struct {
	Mode              string         `mapstructure:"mode" yaml:"mode"`
	AnalysisTimeout   time.Duration  `mapstructure:"analysis_timeout" yaml:"analysis_timeout"`
	SuggestionTimeout time.Duration  `mapstructure:"suggestion_timeout" yaml:"suggestion_timeout"`
	SettleDelay       time.Duration  `mapstructure:"settle_delay" yaml:"settle_delay"`
	RequestsPerMinute int            `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	API               LLMModelConfig `mapstructure:"api" yaml:"api"`
	Gemini            LLMModelConfig `mapstructure:"gemini" yaml:"gemini"`
	Local             LLMModelConfig `mapstructure:"local" yaml:"local"`
}

// ModelFor returns the backend block for a mode.
func (l LLMConfig) ModelFor(mode string) (LLMModelConfig, bool) {
	switch mode {
	case ModeAPI:
		return l.API, true
	case ModeGemini:
		return l.Gemini, true
	case ModeLocal:
		return l.Local, true
	}
	return LLMModelConfig{}, false
}

// LLMModelConfig holds the settings for a single model backend.
type LLMModelConfig struct {
	Provider    string        `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	FastModel   string        `mapstructure:"fast_model" yaml:"fast_model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	TopP        float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK        int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// ExecutorConfig governs how generated code is run.
type ExecutorConfig struct {
	Context     string        `mapstructure:"context" yaml:"context"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxCodeSize int           `mapstructure:"max_code_size" yaml:"max_code_size"`
}

// PageConfig bounds the markup sent to the model.
type PageConfig struct {
	MaxMarkupChars int `mapstructure:"max_markup_chars" yaml:"max_markup_chars"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "jobfill")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Matcher --
	v.SetDefault("matcher.strategy", StrategyWeighted)
	v.SetDefault("matcher.weighted_threshold", 15)
	v.SetDefault("matcher.occurrence_threshold", 1)

	// -- Injector --
	v.SetDefault("injector.verify_delay", "100ms")
	v.SetDefault("injector.highlight", true)

	// -- Profile --
	v.SetDefault("profile.source", SourceFile)
	v.SetDefault("profile.path", "~/.jobfill/profile.yaml")
	v.SetDefault("profile.watch", true)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.navigation_timeout", "45s")
	v.SetDefault("browser.debug", false)

	// -- LLM --
	v.SetDefault("llm.mode", ModeAPI)
	v.SetDefault("llm.analysis_timeout", "90s")
	v.SetDefault("llm.suggestion_timeout", "30s")
	v.SetDefault("llm.settle_delay", "1500ms")
	v.SetDefault("llm.requests_per_minute", 20)

	v.SetDefault("llm.api.provider", "openai")
	v.SetDefault("llm.api.model", "gpt-4o")
	v.SetDefault("llm.api.fast_model", "gpt-4o-mini")
	v.SetDefault("llm.api.endpoint", "https://api.openai.com/v1")
	v.SetDefault("llm.api.temperature", 0.1)

	v.SetDefault("llm.gemini.provider", "gemini")
	v.SetDefault("llm.gemini.model", "gemini-2.5-pro")
	v.SetDefault("llm.gemini.fast_model", "gemini-2.5-flash")
	v.SetDefault("llm.gemini.temperature", 0.1)

	v.SetDefault("llm.local.provider", "ollama")
	v.SetDefault("llm.local.model", "llama3.1")
	v.SetDefault("llm.local.endpoint", "http://127.0.0.1:11434")
	v.SetDefault("llm.local.temperature", 0.1)
	v.SetDefault("llm.local.top_k", 1)

	// -- Executor --
	v.SetDefault("executor.context", ExecutorPage)
	v.SetDefault("executor.timeout", "10s")
	v.SetDefault("executor.max_code_size", 10000)

	// -- Page --
	v.SetDefault("page.max_markup_chars", 100000)
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("llm.api.api_key", "JOBFILL_LLM_API_API_KEY")
	v.BindEnv("llm.gemini.api_key", "JOBFILL_LLM_GEMINI_API_KEY")
	v.BindEnv("database.url", "JOBFILL_DATABASE_URL")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Fall back to the provider-wide variables.
	if cfg.LLMCfg.API.APIKey == "" {
		cfg.LLMCfg.API.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLMCfg.Gemini.APIKey == "" {
		cfg.LLMCfg.Gemini.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.MatcherCfg.Validate(); err != nil {
		return fmt.Errorf("matcher configuration invalid: %w", err)
	}
	if c.InjectorCfg.VerifyDelay < 0 {
		return fmt.Errorf("injector.verify_delay must not be negative")
	}
	switch c.ProfileCfg.Source {
	case SourceFile:
		if strings.TrimSpace(c.ProfileCfg.Path) == "" {
			return fmt.Errorf("profile.path is required for the file source")
		}
	case SourcePostgres:
		if c.DatabaseCfg.URL == "" {
			return fmt.Errorf("database.url is required for the postgres profile source")
		}
	default:
		return fmt.Errorf("profile.source must be %q or %q, got %q", SourceFile, SourcePostgres, c.ProfileCfg.Source)
	}
	if err := c.LLMCfg.Validate(); err != nil {
		return fmt.Errorf("llm configuration invalid: %w", err)
	}
	if err := c.ExecutorCfg.Validate(); err != nil {
		return fmt.Errorf("executor configuration invalid: %w", err)
	}
	if c.PageCfg.MaxMarkupChars <= 0 {
		return fmt.Errorf("page.max_markup_chars must be a positive integer")
	}
	return nil
}

// Validate checks the matcher settings.
func (m *MatcherConfig) Validate() error {
	switch m.Strategy {
	case StrategyWeighted, StrategyOccurrence:
	default:
		return fmt.Errorf("strategy must be %q or %q, got %q", StrategyWeighted, StrategyOccurrence, m.Strategy)
	}
	if m.OccurrenceThreshold < 1 {
		return fmt.Errorf("occurrence_threshold must be at least 1")
	}
	return nil
}

// Validate checks the LLM settings. API keys are checked lazily when a
// backend is built so the deterministic mode works without them.
func (l *LLMConfig) Validate() error {
	if _, ok := l.ModelFor(l.Mode); !ok {
		return fmt.Errorf("mode must be one of %q, %q, %q, got %q", ModeAPI, ModeGemini, ModeLocal, l.Mode)
	}
	if l.AnalysisTimeout <= 0 || l.SuggestionTimeout <= 0 {
		return fmt.Errorf("analysis_timeout and suggestion_timeout must be positive durations")
	}
	if l.SettleDelay < 0 {
		return fmt.Errorf("settle_delay must not be negative")
	}
	if l.RequestsPerMinute < 0 {
		return fmt.Errorf("requests_per_minute must not be negative")
	}
	return nil
}

// Validate checks the executor settings.
func (e *ExecutorConfig) Validate() error {
	switch e.Context {
	case ExecutorPage, ExecutorSandbox:
	default:
		return fmt.Errorf("context must be %q or %q, got %q", ExecutorPage, ExecutorSandbox, e.Context)
	}
	if e.Timeout <= 0 {
		return fmt.Errorf("timeout must be a positive duration")
	}
	if e.MaxCodeSize <= 0 {
		return fmt.Errorf("max_code_size must be a positive integer")
	}
	return nil
}
