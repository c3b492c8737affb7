package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for the agent.
type Config struct {
	General    GeneralConfig             `json:"general"`
	Database   DatabaseConfig            `json:"database"`
	Classifier ClassifierConfig          `json:"classifier"`
	Providers  map[string]ProviderConfig `json:"providers"`
	Email      EmailConfig               `json:"email"`
	SMS        SMSConfig                 `json:"sms"`
	Slack      SlackConfig               `json:"slack"`
	Stripe     StripeConfig              `json:"stripe"`
	Demo       DemoConfig                `json:"demo"`
	Lookup     LookupConfig              `json:"lookup"`
	Admin      AdminConfig               `json:"admin"`
	Events     EventsConfig              `json:"events"`
}

type GeneralConfig struct {
	LogLevel              string `json:"logLevel"`
	LogFile               string `json:"logFile,omitempty"` // optional log file path
	PollIntervalSeconds   int    `json:"pollIntervalSeconds"`
	HandlerTimeoutSeconds int    `json:"handlerTimeoutSeconds"`
	AgentName             string `json:"agentName"`
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

// ClassifierConfig selects the provider used to pick actions.
type ClassifierConfig struct {
	Provider    string   `json:"provider"`
	Fallbacks   []string `json:"fallbacks,omitempty"` // tried in order when the primary fails
	MaxRetries  int      `json:"maxRetries"`
	Temperature float64  `json:"temperature"` // 0 leaves the provider default
	PromptsFile string   `json:"promptsFile,omitempty"` // optional YAML override of the built-in prompts

	// RatePerMinute and Burst pace classifier calls across runs.
	RatePerMinute float64 `json:"ratePerMinute"`
	Burst         int     `json:"burst"`
}

// ProviderConfig is one OpenAI-compatible chat completions endpoint.
type ProviderConfig struct {
	Enabled      bool   `json:"enabled"`
	APIBase      string `json:"apiBase,omitempty"`
	APIKey       string `json:"apiKey,omitempty"`
	DefaultModel string `json:"defaultModel,omitempty"`
}

// EmailConfig configures outbound SMTP.
type EmailConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	From     string `json:"from"`
}

// SMSConfig configures the Twilio messages API.
type SMSConfig struct {
	AccountSID string `json:"accountSid,omitempty"`
	AuthToken  string `json:"authToken,omitempty"`
	APIBase    string `json:"apiBase"`
	// WebhookURL is the public URL Twilio posts inbound messages to. When set
	// with AuthToken, inbound requests must carry a valid signature.
	WebhookURL string `json:"webhookUrl,omitempty"`
}

type SlackConfig struct {
	BotToken string `json:"botToken,omitempty"`
	AppToken string `json:"appToken,omitempty"` // Socket Mode token; enables inbound listening
}

type StripeConfig struct {
	SecretKey  string `json:"secretKey,omitempty"`
	APIBase    string `json:"apiBase"`
	PriceID    string `json:"priceId,omitempty"`
	SuccessURL string `json:"successUrl,omitempty"`
}

type DemoConfig struct {
	URL string `json:"url,omitempty"`
}

// LookupConfig controls how lookup_url fetches pages.
type LookupConfig struct {
	RenderWithBrowser bool   `json:"renderWithBrowser"`
	ChromeProfileDir  string `json:"chromeProfileDir,omitempty"`
	MaxBytes          int    `json:"maxBytes"`
}

// AdminConfig configures the admin HTTP API.
type AdminConfig struct {
	Enabled    bool   `json:"enabled"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	APIKey     string `json:"apiKey,omitempty"`
	FormSecret string `json:"formSecret,omitempty"` // HMAC secret for the form webhook
}

// EventsConfig configures run-completed events over AMQP.
type EventsConfig struct {
	Enabled  bool   `json:"enabled"`
	AMQPURL  string `json:"amqpUrl,omitempty"`
	Exchange string `json:"exchange"`
}

// DefaultConfigDir returns the default config directory (~/.vargasjr).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vargasjr"
	}
	return filepath.Join(home, ".vargasjr")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Classifier.PromptsFile = ExpandPath(cfg.Classifier.PromptsFile)
	cfg.Lookup.ChromeProfileDir = ExpandPath(cfg.Lookup.ChromeProfileDir)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		name := groups[1]
		hasDefault := len(groups) >= 3 && groups[2] != ""

		val, ok := os.LookupEnv(name)
		if !ok || val == "" {
			if hasDefault {
				return groups[2]
			}
			return match // keep unresolved references visible
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	// 0600: the file carries API keys.
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	if cfg.General.PollIntervalSeconds < 1 {
		errs = append(errs, "general.pollIntervalSeconds must be >= 1")
	}
	if cfg.General.HandlerTimeoutSeconds < 1 || cfg.General.HandlerTimeoutSeconds > 600 {
		errs = append(errs, "general.handlerTimeoutSeconds must be between 1 and 600")
	}
	if cfg.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if cfg.Classifier.MaxRetries < 0 || cfg.Classifier.MaxRetries > 10 {
		errs = append(errs, "classifier.maxRetries must be between 0 and 10")
	}
	if cfg.Classifier.RatePerMinute < 0 || cfg.Classifier.Burst < 0 {
		errs = append(errs, "classifier.ratePerMinute and classifier.burst must be >= 0")
	}
	if cfg.Classifier.Temperature < 0 || cfg.Classifier.Temperature > 2 {
		errs = append(errs, "classifier.temperature must be between 0 and 2")
	}
	if cfg.Classifier.Provider != "" {
		if _, ok := cfg.Providers[cfg.Classifier.Provider]; !ok {
			errs = append(errs, fmt.Sprintf("classifier.provider references unknown provider: %s", cfg.Classifier.Provider))
		}
	}
	for _, name := range cfg.Classifier.Fallbacks {
		if _, ok := cfg.Providers[name]; !ok {
			errs = append(errs, fmt.Sprintf("classifier.fallbacks references unknown provider: %s", name))
		}
	}
	for name, pc := range cfg.Providers {
		if pc.Enabled && pc.APIBase == "" {
			errs = append(errs, fmt.Sprintf("providers.%s: apiBase is required", name))
		}
	}

	if cfg.Email.Port < 0 || cfg.Email.Port > 65535 {
		errs = append(errs, "email.port must be between 0 and 65535")
	}
	if cfg.Admin.Port < 0 || cfg.Admin.Port > 65535 {
		errs = append(errs, "admin.port must be between 0 and 65535")
	}
	if cfg.Lookup.MaxBytes < 1 {
		errs = append(errs, "lookup.maxBytes must be >= 1")
	}
	if cfg.Events.Enabled && cfg.Events.AMQPURL == "" {
		errs = append(errs, "events.amqpUrl is required when events are enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
