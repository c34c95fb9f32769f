package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/IntelDigest/internal/catalog"
	"github.com/TobiSchelling/IntelDigest/internal/database"
	"github.com/TobiSchelling/IntelDigest/internal/llm"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// RecipientsEnv overrides delivery.recipients when set.
const RecipientsEnv = "DIGEST_RECIPIENTS"

type Config struct {
	Period            database.Period `yaml:"period"`
	MaxAgeDays        int             `yaml:"max_age_days"`
	MinRelevanceScore float64         `yaml:"min_relevance_score"`
	MaxArticlesDaily  int             `yaml:"max_articles_daily"`
	MaxArticlesWeekly int             `yaml:"max_articles_weekly"`
	FetchOnly         bool            `yaml:"fetch_only"`

	Sources       []Feed        `yaml:"sources"`
	Fetch         Fetch         `yaml:"fetch"`
	Summarization Summarization `yaml:"summarization"`
	Delivery      Delivery      `yaml:"delivery"`
	Output        Output        `yaml:"output"`
	Server        Server        `yaml:"server"`
	Logging       Logging       `yaml:"logging"`
	Schedule      Schedule      `yaml:"schedule"`
}

type Feed struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
}

type Fetch struct {
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	UserAgent           string `yaml:"user_agent"`
	Concurrency         int    `yaml:"concurrency"`
	FetchMissingContent bool   `yaml:"fetch_missing_content"`
}

type Summarization struct {
	Provider        string `yaml:"provider"`
	Model           string `yaml:"model"`
	OllamaURL       string `yaml:"ollama_url"`
	OpenAIModel     string `yaml:"openai_model"`
	APIKeyEnv       string `yaml:"api_key_env"`
	AnthropicModel  string `yaml:"anthropic_model"`
	AnthropicKeyEnv string `yaml:"anthropic_api_key_env"`
	MaxTokens       int    `yaml:"max_tokens"`
}

type Delivery struct {
	Recipients  []string `yaml:"recipients"`
	SMTPHost    string   `yaml:"smtp_host"`
	SMTPPort    int      `yaml:"smtp_port"`
	SMTPUser    string   `yaml:"smtp_user"`
	SMTPPassEnv string   `yaml:"smtp_password_env"`
	FromAddress string   `yaml:"from_address"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

type Schedule struct {
	Daily    string `yaml:"daily"`
	Weekly   string `yaml:"weekly"`
	Timezone string `yaml:"timezone"`
}

// ConfigDir returns the XDG config directory for inteldigest.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "inteldigest")
}

// DataDir returns the XDG data directory for inteldigest.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "inteldigest")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/inteldigest/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'inteldigest init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := parse(data)
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

func defaults() *Config {
	return &Config{
		Period:            database.PeriodDaily,
		MaxAgeDays:        7,
		MinRelevanceScore: 0.3,
		MaxArticlesDaily:  10,
		MaxArticlesWeekly: 25,
		Fetch: Fetch{
			TimeoutSeconds: 15,
			UserAgent:      "IntelDigest/1.0 (news aggregator)",
			Concurrency:    8,
		},
		Summarization: Summarization{
			Provider:        "ollama",
			Model:           "qwen2.5:7b",
			OllamaURL:       "http://localhost:11434",
			OpenAIModel:     "gpt-4o-mini",
			APIKeyEnv:       "OPENAI_API_KEY",
			AnthropicModel:  "claude-sonnet-4-5",
			AnthropicKeyEnv: "ANTHROPIC_API_KEY",
			MaxTokens:       2048,
		},
		Delivery: Delivery{
			SMTPPort:    587,
			SMTPPassEnv: "SMTP_PASSWORD",
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
		Schedule: Schedule{
			Daily:    "0 7 * * *",
			Weekly:   "0 8 * * 1",
			Timezone: "UTC",
		},
	}
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(RecipientsEnv); ok {
		c.Delivery.Recipients = ParseRecipients(v)
	}
}

// ParseRecipients splits a comma-separated address list, dropping blanks.
func ParseRecipients(s string) []string {
	var out []string
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if !c.Period.Valid() {
		return fmt.Errorf("invalid period %q: must be daily or weekly", c.Period)
	}
	if c.MaxAgeDays < 0 {
		return fmt.Errorf("max_age_days must not be negative, got %d", c.MaxAgeDays)
	}
	if c.MinRelevanceScore < 0 || c.MinRelevanceScore > 1 {
		return fmt.Errorf("min_relevance_score must be within [0, 1], got %v", c.MinRelevanceScore)
	}
	if c.MaxArticlesDaily < 0 || c.MaxArticlesWeekly < 0 {
		return fmt.Errorf("max_articles_daily and max_articles_weekly must not be negative")
	}
	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule timezone: %w", err)
		}
	}
	if len(c.Sources) > 0 {
		if err := catalog.Validate(c.Catalog()); err != nil {
			return fmt.Errorf("sources: %w", err)
		}
	}
	return nil
}

// Catalog returns the configured sources, or the built-in catalog when none
// are configured.
func (c *Config) Catalog() []catalog.Source {
	if len(c.Sources) == 0 {
		return catalog.Default()
	}
	out := make([]catalog.Source, len(c.Sources))
	for i, f := range c.Sources {
		out[i] = catalog.Source{Name: f.Name, URL: f.URL, Category: catalog.Category(f.Category)}
	}
	return out
}

// MaxArticles returns the digest size for the configured period.
func (c *Config) MaxArticles() int {
	if c.Period == database.PeriodWeekly {
		return c.MaxArticlesWeekly
	}
	return c.MaxArticlesDaily
}

// FetchTimeout returns the per-source fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// LLMSettings returns the provider selection for the digest writer.
func (c *Config) LLMSettings() llm.Settings {
	s := c.Summarization
	return llm.Settings{
		Provider:        s.Provider,
		Model:           s.Model,
		OllamaURL:       s.OllamaURL,
		OpenAIModel:     s.OpenAIModel,
		OpenAIKeyEnv:    s.APIKeyEnv,
		AnthropicModel:  s.AnthropicModel,
		AnthropicKeyEnv: s.AnthropicKeyEnv,
	}
}

// SMTPPassword reads the SMTP password from its environment variable.
func (c *Config) SMTPPassword() string {
	if c.Delivery.SMTPPassEnv == "" {
		return ""
	}
	return os.Getenv(c.Delivery.SMTPPassEnv)
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath returns the path of the SQLite database.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "inteldigest.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
