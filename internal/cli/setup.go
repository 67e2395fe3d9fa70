package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dbtai-dev/dbtai/internal/config"
	"github.com/dbtai-dev/dbtai/internal/prompt"
)

// RunSetup updates the stored settings from flags. Flags that are not given
// keep their current value, so setup can be run repeatedly to change one
// setting at a time.
func RunSetup(cmd *cobra.Command, args []string) error {
	cfg, dir, err := loadConfig()
	if err != nil {
		return err
	}

	if changedFlag(cmd, "language") {
		raw, err := OptionalStringFlag(cmd, "language")
		if err != nil {
			return err
		}
		lang, err := prompt.ParseLanguage(raw)
		if err != nil {
			return err
		}
		cfg.Language = string(lang)
	}
	if changedFlag(cmd, "backend") {
		raw, err := OptionalStringFlag(cmd, "backend")
		if err != nil {
			return err
		}
		backend, err := config.ParseBackend(raw)
		if err != nil {
			return err
		}
		cfg.Backend = backend
	}

	stringFields := []struct {
		flag string
		dst  *string
	}{
		{"api-key", &cfg.APIKey},
		{"azure-endpoint", &cfg.AzureEndpoint},
		{"azure-model", &cfg.AzureOpenAIModel},
		{"azure-deployment", &cfg.AzureOpenAIDeployment},
	}
	for _, field := range stringFields {
		if !changedFlag(cmd, field.flag) {
			continue
		}
		value, err := OptionalStringFlag(cmd, field.flag)
		if err != nil {
			return err
		}
		*field.dst = value
	}

	if changedFlag(cmd, "model") {
		model, err := OptionalStringFlag(cmd, "model")
		if err != nil {
			return err
		}
		switch cfg.Backend {
		case config.BackendMistral:
			cfg.MistralModelName = model
		case config.BackendGemini:
			cfg.GeminiModelName = model
		case config.BackendAzureOpenAI:
			cfg.AzureOpenAIModel = model
		default:
			cfg.OpenAIModelName = model
		}
	}
	if changedFlag(cmd, "timeout") {
		seconds, err := OptionalIntFlag(cmd, "timeout", 0)
		if err != nil {
			return err
		}
		if seconds < 0 {
			return fmt.Errorf("--timeout must not be negative")
		}
		cfg.TimeoutSeconds = seconds
	}
	if changedFlag(cmd, "max-attempts") {
		attempts, err := OptionalIntFlag(cmd, "max-attempts", 0)
		if err != nil {
			return err
		}
		if attempts < 0 {
			return fmt.Errorf("--max-attempts must not be negative")
		}
		cfg.MaxAttempts = attempts
	}

	if _, err := config.Save(dir, cfg); err != nil {
		return err
	}
	fmt.Printf("Configuration saved to %s\n", dir)
	if cfg.Backend == config.BackendAzureOpenAI {
		fmt.Fprintln(os.Stderr, "warning: the Azure OpenAI backend is not implemented yet; generation commands will fail")
	}
	return nil
}

// RunShow prints the effective settings with the API key masked.
func RunShow(cmd *cobra.Command, args []string) error {
	cfg, dir, err := loadConfig()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, config.ConfigFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "No configuration at %s; showing defaults. Run `dbtai setup` to create one.\n", path)
	}

	cfg.APIKey = maskSecret(cfg.APIKey)
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func maskSecret(secret string) string {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", len(secret)-8) + secret[len(secret)-4:]
}
