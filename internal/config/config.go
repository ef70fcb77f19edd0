package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config captures all tunable settings for the VocalWeb server.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Browser BrowserConfig `yaml:"browser"`
	Voice   VoiceConfig   `yaml:"voice"`
	LLM     LLMConfig     `yaml:"llm"`
	Proxy   ProxyConfig   `yaml:"proxy"`
	MCP     MCPConfig     `yaml:"mcp"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	LogFile string `yaml:"log_file"`
	// Directory for rotating cycle trace files.
	TraceDir string `yaml:"trace_dir"`
	// Path for the JSON settings store shared with the extension popup.
	SettingsStore string `yaml:"settings_store"`
	// Path for the one-shot navigation flag file.
	NavFlagStore string `yaml:"nav_flag_store"`
}

// BrowserConfig configures how we attach to or launch Chrome for Rod.
type BrowserConfig struct {
	// Control endpoint for Rod (e.g., ws://localhost:9222). Required when launch is empty.
	DebuggerURL string `yaml:"debugger_url"`
	// Optional launch command to start Chrome in detached mode.
	Launch []string `yaml:"launch"`
	// AutoStart controls whether the server launches/attaches to Chrome at startup.
	AutoStart bool `yaml:"auto_start"`
	// Headless controls whether Chrome runs in headless mode (default: true).
	Headless *bool `yaml:"headless"`
	// Default navigation timeout (e.g., "15s").
	DefaultNavigationTimeout string `yaml:"default_navigation_timeout"`
	// Default timeout when attaching to an existing target (e.g., "10s").
	DefaultAttachTimeout string `yaml:"default_attach_timeout"`
	// Optional path to persist session metadata between server restarts.
	SessionStore string `yaml:"session_store"`
	// Viewport width for new sessions (default: 1920).
	ViewportWidth int `yaml:"viewport_width"`
	// Viewport height for new sessions (default: 1080).
	ViewportHeight int `yaml:"viewport_height"`
}

// VoiceConfig carries the defaults for the spoken side of the pipeline.
// Per-user overrides live in the settings store, not here.
type VoiceConfig struct {
	// Prompt spoken before capture starts.
	ListenPrompt string `yaml:"listen_prompt"`
	// Prompt spoken after an auto-announced summary.
	FollowUpPrompt string `yaml:"follow_up_prompt"`
	// CSS color applied to the highlight outline.
	HighlightColor string `yaml:"highlight_color"`
	// How long the highlight outline stays on an element (e.g., "3s").
	HighlightDuration string `yaml:"highlight_duration"`
	// Pause between scrolling to an element and acting on it (e.g., "500ms").
	SettleDelay string `yaml:"settle_delay"`
	// Delay after page ready before a background summary prefetch (e.g., "1500ms").
	SummaryDelay string `yaml:"summary_delay"`
	// AutoSummary prefetches a page summary on load when no override is stored.
	AutoSummary bool `yaml:"auto_summary"`
	// Synthesizer command ("espeak", "say", or empty for log-only output).
	SynthCommand string `yaml:"synth_command"`
}

// LLMConfig points the matcher and summarizer at an OpenAI-compatible API.
type LLMConfig struct {
	// Base URL of the chat-completions endpoint (default: https://api.openai.com/v1).
	BaseURL string `yaml:"base_url"`
	// Model name sent with ranking and summarization requests.
	Model string `yaml:"model"`
	// Environment variable holding the API key (default: OPENAI_API_KEY).
	APIKeyEnv string `yaml:"api_key_env"`
	// Bounded wait for any single remote call (e.g., "10s").
	RequestTimeout string `yaml:"request_timeout"`
	// Maximum page-content characters included in a summarization request.
	MaxContentChars int `yaml:"max_content_chars"`
}

// ProxyConfig configures the HTTP API consumed by the browser extension.
type ProxyConfig struct {
	// Listen address for the extension-facing API (e.g., ":8420"). Empty disables it.
	ListenAddr string `yaml:"listen_addr"`
}

type MCPConfig struct {
	// When set, starts an SSE server on this port instead of stdio-only.
	SSEPort int `yaml:"sse_port"`
}

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:          "vocalweb",
			Version:       "0.0.2",
			LogFile:       "vocalweb.log",
			TraceDir:      "data/traces",
			SettingsStore: "settings.json",
			NavFlagStore:  "navflag.json",
		},
		Browser: BrowserConfig{
			AutoStart:                true,
			DefaultNavigationTimeout: "15s",
			DefaultAttachTimeout:     "10s",
			SessionStore:             "sessions.json",
			ViewportWidth:            1920,
			ViewportHeight:           1080,
		},
		Voice: VoiceConfig{
			ListenPrompt:      "Listening. What would you like to do?",
			FollowUpPrompt:    "Say a command to continue.",
			HighlightColor:    "#ff6d00",
			HighlightDuration: "3s",
			SettleDelay:       "500ms",
			SummaryDelay:      "1500ms",
			AutoSummary:       true,
		},
		LLM: LLMConfig{
			BaseURL:         "https://api.openai.com/v1",
			Model:           "gpt-4o-mini",
			APIKeyEnv:       "OPENAI_API_KEY",
			RequestTimeout:  "10s",
			MaxContentChars: 6000,
		},
		Proxy: ProxyConfig{
			ListenAddr: ":8420",
		},
		MCP: MCPConfig{
			SSEPort: 0,
		},
	}
}

// Load reads YAML config from disk and overlays defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// Validate ensures required fields exist so the server can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	if c.Browser.AutoStart {
		if c.Browser.DebuggerURL == "" && len(c.Browser.Launch) == 0 {
			return errors.New("browser.debugger_url or browser.launch must be provided")
		}
	}
	if c.LLM.Model == "" {
		return errors.New("llm.model is required")
	}
	return nil
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// NavigationTimeout returns the parsed navigation timeout with a sane default.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	return parseDurationOr(b.DefaultNavigationTimeout, 15*time.Second)
}

// AttachTimeout returns the parsed attach timeout with a sane default.
func (b BrowserConfig) AttachTimeout() time.Duration {
	return parseDurationOr(b.DefaultAttachTimeout, 10*time.Second)
}

// IsHeadless returns whether Chrome should run in headless mode (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true
	}
	return *b.Headless
}

// GetViewportWidth returns the viewport width with a sane default.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 1920
	}
	return b.ViewportWidth
}

// GetViewportHeight returns the viewport height with a sane default.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 1080
	}
	return b.ViewportHeight
}

// GetHighlightDuration returns the parsed highlight lifetime with a sane default.
func (v VoiceConfig) GetHighlightDuration() time.Duration {
	return parseDurationOr(v.HighlightDuration, 3*time.Second)
}

// GetSettleDelay returns the parsed pre-action settle delay with a sane default.
func (v VoiceConfig) GetSettleDelay() time.Duration {
	return parseDurationOr(v.SettleDelay, 500*time.Millisecond)
}

// GetSummaryDelay returns the parsed prefetch delay with a sane default.
func (v VoiceConfig) GetSummaryDelay() time.Duration {
	return parseDurationOr(v.SummaryDelay, 1500*time.Millisecond)
}

// GetRequestTimeout returns the parsed remote-call bound with a sane default.
func (l LLMConfig) GetRequestTimeout() time.Duration {
	return parseDurationOr(l.RequestTimeout, 10*time.Second)
}

// GetMaxContentChars returns the page-content cap with a sane default.
func (l LLMConfig) GetMaxContentChars() int {
	if l.MaxContentChars <= 0 {
		return 6000
	}
	return l.MaxContentChars
}

// APIKey resolves the API key from the configured environment variable.
func (l LLMConfig) APIKey() string {
	env := l.APIKeyEnv
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	return os.Getenv(env)
}
