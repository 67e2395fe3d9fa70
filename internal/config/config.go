// Package config holds the user-level dbtai settings.
//
// The settings file is written by `dbtai setup` and read once at process
// start; the resulting Config value is passed into every component that
// needs it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	AppName    = "dbtai"
	ConfigFile = "config.yaml"
	EnvFile    = ".env"

	// DirEnv overrides the per-user data directory.
	DirEnv = "DBTAI_DATA_DIR"

	DefaultLanguage         = "english"
	DefaultOpenAIModel      = "gpt-4-turbo-preview"
	DefaultMistralModel     = "mistral-large-latest"
	DefaultGeminiModel      = "gemini-2.0-flash"
	DefaultTimeoutSeconds   = 120
	DefaultMaxAttempts      = 2
	maxSupportedMaxAttempts = 5
)

// Backend names the generation service variant.
type Backend string

const (
	BackendOpenAI      Backend = "OpenAI"
	BackendMistral     Backend = "Mistral"
	BackendGemini      Backend = "Gemini"
	BackendAzureOpenAI Backend = "Azure OpenAI"
)

// Backends lists every backend accepted in the config file, in display order.
var Backends = []Backend{BackendOpenAI, BackendMistral, BackendGemini, BackendAzureOpenAI}

var ErrUnknownBackend = errors.New("unknown backend")

// ParseBackend matches a backend name case-insensitively. "azure" and
// "AzureOpenAI" are accepted as aliases for Azure OpenAI.
func ParseBackend(raw string) (Backend, error) {
	key := strings.ToLower(strings.Join(strings.Fields(raw), ""))
	switch key {
	case "openai":
		return BackendOpenAI, nil
	case "mistral":
		return BackendMistral, nil
	case "gemini":
		return BackendGemini, nil
	case "azureopenai", "azure":
		return BackendAzureOpenAI, nil
	}
	names := make([]string, 0, len(Backends))
	for _, b := range Backends {
		names = append(names, string(b))
	}
	return "", fmt.Errorf("%w %q (supported: %s)", ErrUnknownBackend, raw, strings.Join(names, ", "))
}

type Config struct {
	Language              string  `yaml:"language"`
	Backend               Backend `yaml:"backend"`
	APIKey                string  `yaml:"api_key,omitempty"`
	OpenAIModelName       string  `yaml:"openai_model_name,omitempty"`
	MistralModelName      string  `yaml:"mistral_model_name,omitempty"`
	GeminiModelName       string  `yaml:"gemini_model_name,omitempty"`
	AzureEndpoint         string  `yaml:"azure_endpoint,omitempty"`
	AzureOpenAIModel      string  `yaml:"azure_openai_model,omitempty"`
	AzureOpenAIDeployment string  `yaml:"azure_openai_deployment,omitempty"`
	TimeoutSeconds        int     `yaml:"timeout_seconds,omitempty"`
	MaxAttempts           int     `yaml:"max_attempts,omitempty"`
}

// Default is used when no settings file exists.
func Default() Config {
	return Config{
		Language: DefaultLanguage,
		Backend:  BackendOpenAI,
	}
}

// Dir resolves the per-user data directory holding config.yaml and the chat
// history database.
func Dir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(DirEnv)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", AppName), nil
	case "windows":
		base := firstNonEmpty(os.Getenv("LOCALAPPDATA"), filepath.Join(home, "AppData", "Local"))
		return filepath.Join(base, AppName, AppName), nil
	default:
		base := firstNonEmpty(os.Getenv("XDG_DATA_HOME"), filepath.Join(home, ".local", "share"))
		return filepath.Join(base, AppName), nil
	}
}

// Load reads config.yaml from dir. A missing file yields Default().
func Load(dir string) (Config, error) {
	path := filepath.Join(dir, ConfigFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return Config{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a settings document, filling language and backend defaults.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = DefaultLanguage
	}
	if strings.TrimSpace(string(cfg.Backend)) == "" {
		cfg.Backend = BackendOpenAI
	} else {
		backend, err := ParseBackend(string(cfg.Backend))
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
		cfg.Backend = backend
	}
	if cfg.TimeoutSeconds < 0 {
		return Config{}, fmt.Errorf("failed to parse config: timeout_seconds must not be negative")
	}
	if cfg.MaxAttempts < 0 {
		return Config{}, fmt.Errorf("failed to parse config: max_attempts must not be negative")
	}
	return cfg, nil
}

// Save writes cfg to dir/config.yaml, replacing any existing file.
func Save(dir string, cfg Config) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	path := filepath.Join(dir, ConfigFile)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// LoadEnv loads rootPath/.env into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnv(rootPath string) error {
	path := filepath.Join(rootPath, EnvFile)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ResolveAPIKey prefers the configured key and falls back to the backend's
// conventional environment variable.
func (c Config) ResolveAPIKey() string {
	env := ""
	switch c.Backend {
	case BackendOpenAI:
		env = os.Getenv("OPENAI_API_KEY")
	case BackendMistral:
		env = os.Getenv("MISTRAL_API_KEY")
	case BackendGemini:
		env = firstNonEmpty(os.Getenv("GEMINI_API_KEY"), os.Getenv("GOOGLE_API_KEY"))
	case BackendAzureOpenAI:
		env = os.Getenv("AZURE_OPENAI_API_KEY")
	}
	return strings.TrimSpace(firstNonEmpty(c.APIKey, env))
}

// ModelName returns the model identifier for the selected backend.
func (c Config) ModelName() string {
	switch c.Backend {
	case BackendMistral:
		return firstNonEmpty(c.MistralModelName, DefaultMistralModel)
	case BackendGemini:
		return firstNonEmpty(c.GeminiModelName, DefaultGeminiModel)
	case BackendAzureOpenAI:
		return c.AzureOpenAIModel
	default:
		return firstNonEmpty(c.OpenAIModelName, DefaultOpenAIModel)
	}
}

func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Attempts is the total number of tries for one generation request.
func (c Config) Attempts() int {
	switch {
	case c.MaxAttempts <= 0:
		return DefaultMaxAttempts
	case c.MaxAttempts > maxSupportedMaxAttempts:
		return maxSupportedMaxAttempts
	default:
		return c.MaxAttempts
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
