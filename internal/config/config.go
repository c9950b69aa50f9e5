// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrConfiguration marks a configuration that cannot be used to start a run.
var ErrConfiguration = errors.New("configuration failure")

// Config holds the entire application configuration.
type Config struct {
	Logger      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	Browser     BrowserConfig     `mapstructure:"browser" yaml:"browser"`
	Site        SiteConfig        `mapstructure:"site" yaml:"site"`
	Locator     LocatorConfig     `mapstructure:"locator" yaml:"locator"`
	LLM         LLMConfig         `mapstructure:"llm" yaml:"llm"`
	Content     ContentConfig     `mapstructure:"content" yaml:"content"`
	Pacing      PacingConfig      `mapstructure:"pacing" yaml:"pacing"`
	Waits       WaitsConfig       `mapstructure:"waits" yaml:"waits"`
	Delays      DelaysConfig      `mapstructure:"delays" yaml:"delays"`
	Schedule    ScheduleConfig    `mapstructure:"schedule" yaml:"schedule"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics" yaml:"diagnostics"`
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

// BrowserConfig holds settings for the headless browser instance.
type BrowserConfig struct {
	Headless        bool           `mapstructure:"headless" yaml:"headless"`
	IgnoreTLSErrors bool           `mapstructure:"ignore_tls_errors" yaml:"ignore_tls_errors"`
	Debug           bool           `mapstructure:"debug" yaml:"debug"`
	ExecPath        string         `mapstructure:"exec_path" yaml:"exec_path"`
	UserAgent       string         `mapstructure:"user_agent" yaml:"user_agent"`
	Args            []string       `mapstructure:"args" yaml:"args"`
	Viewport        map[string]int `mapstructure:"viewport" yaml:"viewport"`
	// LaunchTimeout bounds the about:blank probe run right after the process starts.
	LaunchTimeout     time.Duration `mapstructure:"launch_timeout" yaml:"launch_timeout"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	// NetworkIdleTimeout bounds the settle wait that follows every navigation.
	NetworkIdleTimeout time.Duration `mapstructure:"network_idle_timeout" yaml:"network_idle_timeout"`
	// NetworkQuietPeriod is how long no request may be in flight before the page counts as idle.
	NetworkQuietPeriod time.Duration `mapstructure:"network_quiet_period" yaml:"network_quiet_period"`
	PollInterval       time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	ActionTimeout      time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
}

// SiteConfig is the target site's implicit contract: paths, selectors and
// the visible names of the controls the workflows drive.
type SiteConfig struct {
	BaseURL       string `mapstructure:"base_url" yaml:"base_url"`
	ListingPath   string `mapstructure:"listing_path" yaml:"listing_path"`
	CreatePath    string `mapstructure:"create_path" yaml:"create_path"`
	DashboardPath string `mapstructure:"dashboard_path" yaml:"dashboard_path"`

	ItemPrefix     string   `mapstructure:"item_prefix" yaml:"item_prefix"`
	FeedbackPrefix string   `mapstructure:"feedback_prefix" yaml:"feedback_prefix"`
	Exclusions     []string `mapstructure:"exclusions" yaml:"exclusions"`

	CandidateSelector    string `mapstructure:"candidate_selector" yaml:"candidate_selector"`
	TitleSelector        string `mapstructure:"title_selector" yaml:"title_selector"`
	RateLinkName         string `mapstructure:"rate_link_name" yaml:"rate_link_name"`
	FeedbackFormSelector string `mapstructure:"feedback_form_selector" yaml:"feedback_form_selector"`
	SliderSelector       string `mapstructure:"slider_selector" yaml:"slider_selector"`
	NextButtonName       string `mapstructure:"next_button_name" yaml:"next_button_name"`
	CommentSelector      string `mapstructure:"comment_selector" yaml:"comment_selector"`
	SubmitButtonName     string `mapstructure:"submit_button_name" yaml:"submit_button_name"`
	SubmitFallbackName   string `mapstructure:"submit_fallback_name" yaml:"submit_fallback_name"`
	FeedbackAckText      string `mapstructure:"feedback_ack_text" yaml:"feedback_ack_text"`

	TitlePlaceholder       string `mapstructure:"title_placeholder" yaml:"title_placeholder"`
	DescriptionPlaceholder string `mapstructure:"description_placeholder" yaml:"description_placeholder"`
	CreateButtonName       string `mapstructure:"create_button_name" yaml:"create_button_name"`
	CreateAckText          string `mapstructure:"create_ack_text" yaml:"create_ack_text"`
}

// Resolve joins a site-relative path (or an absolute URL) onto the base URL.
func (s SiteConfig) Resolve(ref string) (string, error) {
	base, err := url.Parse(s.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid site.base_url %q: %w", s.BaseURL, err)
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid site path %q: %w", ref, err)
	}
	return base.ResolveReference(rel).String(), nil
}

// LocatorConfig selects the ranking signal used to pick a candidate.
type LocatorConfig struct {
	// Signal is "feedback" (public listing) or "reach" (dashboard).
	Signal string `mapstructure:"signal" yaml:"signal"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderGemini LLMProvider = "gemini"
)

// Default models per provider.
const (
	DefaultOpenAIModel = "gpt-4-turbo-preview"
	DefaultGeminiModel = "gemini-2.5-flash"
)

// LLMConfig defines the text-generation backend.
type LLMConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// ContentConfig holds the role prompts sent to the backend.
type ContentConfig struct {
	RateSystemPrompt   string `mapstructure:"rate_system_prompt" yaml:"rate_system_prompt"`
	RateUserTemplate   string `mapstructure:"rate_user_template" yaml:"rate_user_template"`
	CreateSystemPrompt string `mapstructure:"create_system_prompt" yaml:"create_system_prompt"`
	CreateUserPrompt   string `mapstructure:"create_user_prompt" yaml:"create_user_prompt"`
}

// PacingConfig tunes the human-like pauses between interactions.
type PacingConfig struct {
	JitterRatio       float64       `mapstructure:"jitter_ratio" yaml:"jitter_ratio"`
	MinActionInterval time.Duration `mapstructure:"min_action_interval" yaml:"min_action_interval"`
	Seed              int64         `mapstructure:"seed" yaml:"seed"`
}

// WaitsConfig holds the bound of every wait-for-visible in the workflows.
type WaitsConfig struct {
	Candidates   time.Duration `mapstructure:"candidates" yaml:"candidates"`
	FeedbackForm time.Duration `mapstructure:"feedback_form" yaml:"feedback_form"`
	RateControl  time.Duration `mapstructure:"rate_control" yaml:"rate_control"`
	Slider       time.Duration `mapstructure:"slider" yaml:"slider"`
	CommentBox   time.Duration `mapstructure:"comment_box" yaml:"comment_box"`
	FormField    time.Duration `mapstructure:"form_field" yaml:"form_field"`
	Control      time.Duration `mapstructure:"control" yaml:"control"`
	NetworkIdle  time.Duration `mapstructure:"network_idle" yaml:"network_idle"`
	Ack          time.Duration `mapstructure:"ack" yaml:"ack"`
}

// DelaysConfig holds the fixed settle pauses taken after interactions.
type DelaysConfig struct {
	AfterRateClick time.Duration `mapstructure:"after_rate_click" yaml:"after_rate_click"`
	AfterSlider    time.Duration `mapstructure:"after_slider" yaml:"after_slider"`
	AfterNext      time.Duration `mapstructure:"after_next" yaml:"after_next"`
	AfterFill      time.Duration `mapstructure:"after_fill" yaml:"after_fill"`
	IdleBrowse     time.Duration `mapstructure:"idle_browse" yaml:"idle_browse"`
}

// ScheduleConfig selects which action a run performs.
type ScheduleConfig struct {
	// Policy is "day_of_month", "day_of_year" or "fixed".
	Policy   string `mapstructure:"policy" yaml:"policy"`
	Modulus  int    `mapstructure:"modulus" yaml:"modulus"`
	Timezone string `mapstructure:"timezone" yaml:"timezone"`
	// Rules maps a remainder to an action ("rate", "create" or "idle").
	Rules map[string]string `mapstructure:"rules" yaml:"rules"`
	// Action is used by the fixed policy and by the --action override.
	Action string `mapstructure:"action" yaml:"action"`
}

// DiagnosticsConfig controls the screenshots written for debugging.
type DiagnosticsConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Checkpoints bool   `mapstructure:"checkpoints" yaml:"checkpoints"`
	Dir         string `mapstructure:"dir" yaml:"dir"`
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
	v.SetDefault("logger.service_name", "rateidea-agent")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 10)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.ignore_tls_errors", false)
	v.SetDefault("browser.debug", false)
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	v.SetDefault("browser.viewport", map[string]int{"width": 1280, "height": 800})
	v.SetDefault("browser.launch_timeout", "30s")
	v.SetDefault("browser.navigation_timeout", "60s")
	v.SetDefault("browser.network_idle_timeout", "15s")
	v.SetDefault("browser.network_quiet_period", "500ms")
	v.SetDefault("browser.poll_interval", "100ms")
	v.SetDefault("browser.action_timeout", "15s")

	// -- Site --
	v.SetDefault("site.base_url", "https://rateidea.us/")
	v.SetDefault("site.listing_path", "/")
	v.SetDefault("site.create_path", "/create")
	v.SetDefault("site.dashboard_path", "/dashboard")
	v.SetDefault("site.item_prefix", "/idea/")
	v.SetDefault("site.feedback_prefix", "/feedback/")
	v.SetDefault("site.exclusions", []string{"/create"})
	v.SetDefault("site.candidate_selector", `a[href^="/idea/"]`)
	v.SetDefault("site.title_selector", "h1")
	v.SetDefault("site.rate_link_name", "Rate")
	v.SetDefault("site.feedback_form_selector", `input[type="range"], textarea`)
	v.SetDefault("site.slider_selector", `input[type="range"]`)
	v.SetDefault("site.next_button_name", "Next")
	v.SetDefault("site.comment_selector", "textarea")
	v.SetDefault("site.submit_button_name", "Submit Feedback")
	v.SetDefault("site.submit_fallback_name", "Submit")
	v.SetDefault("site.feedback_ack_text", "")
	v.SetDefault("site.title_placeholder", "e.g., AI-powered fitness coach")
	v.SetDefault("site.description_placeholder", "Describe your idea in detail. What problem does it solve? Who would use it?")
	v.SetDefault("site.create_button_name", "Create Idea")
	v.SetDefault("site.create_ack_text", "Idea Created!")

	// -- Locator --
	v.SetDefault("locator.signal", "feedback")

	// -- LLM --
	v.SetDefault("llm.provider", string(ProviderOpenAI))
	v.SetDefault("llm.model", DefaultOpenAIModel)
	v.SetDefault("llm.api_timeout", "60s")
	v.SetDefault("llm.temperature", 0)
	v.SetDefault("llm.max_tokens", 0)

	// -- Content --
	v.SetDefault("content.rate_system_prompt", DefaultRateSystemPrompt)
	v.SetDefault("content.rate_user_template", DefaultRateUserTemplate)
	v.SetDefault("content.create_system_prompt", DefaultCreateSystemPrompt)
	v.SetDefault("content.create_user_prompt", DefaultCreateUserPrompt)

	// -- Pacing --
	v.SetDefault("pacing.jitter_ratio", 0.15)
	v.SetDefault("pacing.min_action_interval", "250ms")
	v.SetDefault("pacing.seed", 0)

	// -- Waits --
	v.SetDefault("waits.candidates", "10s")
	v.SetDefault("waits.feedback_form", "5s")
	v.SetDefault("waits.rate_control", "5s")
	v.SetDefault("waits.slider", "5s")
	v.SetDefault("waits.comment_box", "10s")
	v.SetDefault("waits.form_field", "10s")
	v.SetDefault("waits.control", "10s")
	v.SetDefault("waits.network_idle", "15s")
	v.SetDefault("waits.ack", "15s")

	// -- Delays --
	v.SetDefault("delays.after_rate_click", "2s")
	v.SetDefault("delays.after_slider", "500ms")
	v.SetDefault("delays.after_next", "1s")
	v.SetDefault("delays.after_fill", "500ms")
	v.SetDefault("delays.idle_browse", "5s")

	// -- Schedule --
	v.SetDefault("schedule.policy", "day_of_month")
	v.SetDefault("schedule.modulus", 10)
	v.SetDefault("schedule.timezone", "")
	v.SetDefault("schedule.rules", map[string]string{"5": "rate", "0": "create"})
	v.SetDefault("schedule.action", "")

	// -- Diagnostics --
	v.SetDefault("diagnostics.enabled", true)
	v.SetDefault("diagnostics.checkpoints", true)
	v.SetDefault("diagnostics.dir", ".")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Secrets and the switches the bot historically read from the bare environment.
	_ = v.BindEnv("llm.api_key", "RATEIDEA_LLM_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("browser.headless", "RATEIDEA_BROWSER_HEADLESS", "HEADLESS")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.LLM.Model = defaultModelFor(cfg.LLM.Provider, cfg.LLM.Model)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// defaultModelFor swaps the OpenAI default for the provider's own default
// when the model was left unset. An explicit model is kept as is.
func defaultModelFor(provider LLMProvider, model string) string {
	if provider == ProviderGemini && (model == "" || model == DefaultOpenAIModel) {
		return DefaultGeminiModel
	}
	return model
}

// Validate checks the configuration for required fields and sane values.
// Every returned error wraps ErrConfiguration.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	return nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return fmt.Errorf("llm.api_key is required (set OPENAI_API_KEY, GEMINI_API_KEY or RATEIDEA_LLM_API_KEY)")
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("llm.provider %q is not supported (supported: %s, %s)", c.LLM.Provider, ProviderOpenAI, ProviderGemini)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.APITimeout <= 0 {
		return fmt.Errorf("llm.api_timeout must be a positive duration")
	}

	base, err := url.Parse(c.Site.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute URL, got %q", c.Site.BaseURL)
	}
	if c.Site.ItemPrefix == "" || c.Site.FeedbackPrefix == "" {
		return fmt.Errorf("site.item_prefix and site.feedback_prefix are required")
	}
	if c.Site.CandidateSelector == "" {
		return fmt.Errorf("site.candidate_selector is required")
	}

	switch c.Locator.Signal {
	case "feedback", "reach":
	default:
		return fmt.Errorf("locator.signal must be 'feedback' or 'reach', got %q", c.Locator.Signal)
	}

	if err := c.Waits.Validate(); err != nil {
		return fmt.Errorf("waits configuration invalid: %w", err)
	}
	if c.Pacing.JitterRatio < 0 || c.Pacing.JitterRatio > 1 {
		return fmt.Errorf("pacing.jitter_ratio must be between 0.0 and 1.0")
	}
	if c.Browser.PollInterval <= 0 {
		return fmt.Errorf("browser.poll_interval must be a positive duration")
	}
	if err := c.Schedule.Validate(); err != nil {
		return fmt.Errorf("schedule configuration invalid: %w", err)
	}
	return nil
}

// Validate checks that every wait is bounded.
func (w WaitsConfig) Validate() error {
	waits := map[string]time.Duration{
		"candidates":    w.Candidates,
		"feedback_form": w.FeedbackForm,
		"rate_control":  w.RateControl,
		"slider":        w.Slider,
		"comment_box":   w.CommentBox,
		"form_field":    w.FormField,
		"control":       w.Control,
		"network_idle":  w.NetworkIdle,
		"ack":           w.Ack,
	}
	for name, d := range waits {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", name)
		}
	}
	return nil
}

// Validate checks the ScheduleConfig settings.
func (s ScheduleConfig) Validate() error {
	switch s.Policy {
	case "day_of_month", "day_of_year":
		if s.Modulus <= 0 {
			return fmt.Errorf("modulus must be greater than 0")
		}
		for key, action := range s.Rules {
			if _, err := strconv.Atoi(key); err != nil {
				return fmt.Errorf("rule key %q is not an integer remainder", key)
			}
			if !validAction(action) {
				return fmt.Errorf("rule %q has unknown action %q", key, action)
			}
		}
	case "fixed":
		if !validAction(s.Action) {
			return fmt.Errorf("fixed policy requires schedule.action, got %q", s.Action)
		}
	default:
		return fmt.Errorf("policy %q is not supported", s.Policy)
	}
	if s.Action != "" && !validAction(s.Action) {
		return fmt.Errorf("action %q is not one of rate, create, idle", s.Action)
	}
	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("timezone %q: %w", s.Timezone, err)
		}
	}
	return nil
}

func validAction(a string) bool {
	return a == "rate" || a == "create" || a == "idle"
}
