package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the relay.
type Config struct {
	General  GeneralConfig  `json:"general" yaml:"general"`
	Telegram TelegramConfig `json:"telegram" yaml:"telegram"`
	Discord  DiscordConfig  `json:"discord" yaml:"discord"`
	Rewrite  RewriteConfig  `json:"rewrite" yaml:"rewrite"`
	Relay    RelayConfig    `json:"relay" yaml:"relay"`
	History  HistoryConfig  `json:"history" yaml:"history"`
	Health   HealthConfig   `json:"health" yaml:"health"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel" yaml:"logLevel"`
	LogFile  string `json:"logFile,omitempty" yaml:"logFile,omitempty"`
}

type TelegramConfig struct {
	Token              string         `json:"token" yaml:"token"`
	AllowedChannels    FlexStringList `json:"allowedChannels" yaml:"allowedChannels"`
	PollTimeoutSeconds int            `json:"pollTimeoutSeconds,omitempty" yaml:"pollTimeoutSeconds,omitempty"`
}

type DiscordConfig struct {
	WebhookURL       string `json:"webhookUrl" yaml:"webhookUrl"`
	MaxFiles         int    `json:"maxFiles" yaml:"maxFiles"`
	MaxContentLength int    `json:"maxContentLength" yaml:"maxContentLength"`
}

type RewriteConfig struct {
	Handle      string `json:"handle" yaml:"handle"`
	ContactTag  string `json:"contactTag,omitempty" yaml:"contactTag,omitempty"`
	ContactLink string `json:"contactLink,omitempty" yaml:"contactLink,omitempty"`
}

type RelayConfig struct {
	DebounceMs int `json:"debounceMs" yaml:"debounceMs"`
}

type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	DBPath  string `json:"dbPath" yaml:"dbPath"`
}

type HealthConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// FlexStringList is a []string that also unmarshals from arrays mixing
// strings and numbers (channel IDs are often written unquoted).
type FlexStringList []string

func (f *FlexStringList) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			result = append(result, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			result = append(result, strconv.FormatInt(int64(n), 10))
			continue
		}
		result = append(result, string(item))
	}
	*f = result
	return nil
}

func (f *FlexStringList) UnmarshalYAML(value *yaml.Node) error {
	var raw []string
	if err := value.Decode(&raw); err == nil {
		*f = raw
		return nil
	}
	var mixed []any
	if err := value.Decode(&mixed); err != nil {
		return err
	}
	result := make([]string, 0, len(mixed))
	for _, item := range mixed {
		switch v := item.(type) {
		case string:
			result = append(result, v)
		case int:
			result = append(result, strconv.Itoa(v))
		case int64:
			result = append(result, strconv.FormatInt(v, 10))
		case float64:
			result = append(result, strconv.FormatInt(int64(v), 10))
		default:
			result = append(result, fmt.Sprint(v))
		}
	}
	*f = result
	return nil
}

// DefaultConfigDir returns ~/.annsync.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".annsync"
	}
	return filepath.Join(home, ".annsync")
}

// DefaultConfigPath returns ~/.annsync/config.json.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads, env-expands, parses, and validates a config file. The
// format follows the extension: .yaml/.yml is YAML, everything else
// JSON.
func Load(path string) (*Config, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.LogFile = expandPath(cfg.General.LogFile)
	cfg.History.DBPath = expandPath(cfg.History.DBPath)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::-([^}]*))?\}`)

// ExpandEnvVars substitutes ${VAR} and ${VAR:-default} references.
func ExpandEnvVars(input string) string {
	return envVarRe.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarRe.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(groups[1]); ok {
			return v
		}
		return groups[2]
	})
}

// Save writes the config as indented JSON, creating the directory.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate checks ranges and required relationships. Credentials are
// checked at startup, not here, so `init` can write a template config.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}
	if cfg.Telegram.PollTimeoutSeconds < 0 || cfg.Telegram.PollTimeoutSeconds > 300 {
		errs = append(errs, "telegram.pollTimeoutSeconds must be between 0 and 300")
	}
	if cfg.Discord.MaxFiles < 1 || cfg.Discord.MaxFiles > 10 {
		errs = append(errs, "discord.maxFiles must be between 1 and 10")
	}
	if cfg.Discord.MaxContentLength < 1 || cfg.Discord.MaxContentLength > 2000 {
		errs = append(errs, "discord.maxContentLength must be between 1 and 2000")
	}
	if cfg.Relay.DebounceMs < 100 || cfg.Relay.DebounceMs > 60000 {
		errs = append(errs, "relay.debounceMs must be between 100 and 60000")
	}
	if cfg.History.Enabled && cfg.History.DBPath == "" {
		errs = append(errs, "history.dbPath is required when history is enabled")
	}
	if cfg.Health.Enabled && cfg.Health.Addr == "" {
		errs = append(errs, "health.addr is required when health is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
