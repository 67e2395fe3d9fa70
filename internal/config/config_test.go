package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "english", cfg.Language)
	assert.Equal(t, BackendOpenAI, cfg.Backend)
}

func TestSaveThenLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	in := Config{
		Language:         "norwegian",
		Backend:          BackendMistral,
		APIKey:           "secret",
		MistralModelName: "mistral-small-latest",
		TimeoutSeconds:   30,
	}

	path, err := Save(dir, in)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ConfigFile), path)

	out, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseAcceptsOriginalKeys(t *testing.T) {
	cfg, err := Parse([]byte(`
language: german
backend: Azure OpenAI
api_key: abc
azure_endpoint: https://example.openai.azure.com
azure_openai_model: gpt-4
azure_openai_deployment: prod
`))
	require.NoError(t, err)
	assert.Equal(t, "german", cfg.Language)
	assert.Equal(t, BackendAzureOpenAI, cfg.Backend)
	assert.Equal(t, "https://example.openai.azure.com", cfg.AzureEndpoint)
	assert.Equal(t, "gpt-4", cfg.ModelName())
	assert.Equal(t, "prod", cfg.AzureOpenAIDeployment)
}

func TestParseRejectsUnknownBackend(t *testing.T) {
	_, err := Parse([]byte("backend: Claude\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestParseFillsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("api_key: k\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultLanguage, cfg.Language)
	assert.Equal(t, BackendOpenAI, cfg.Backend)
	assert.Equal(t, DefaultOpenAIModel, cfg.ModelName())
	assert.Equal(t, DefaultTimeoutSeconds*time.Second, cfg.Timeout())
	assert.Equal(t, DefaultMaxAttempts, cfg.Attempts())
}

func TestAttemptsIsBounded(t *testing.T) {
	assert.Equal(t, maxSupportedMaxAttempts, Config{MaxAttempts: 50}.Attempts())
	assert.Equal(t, 1, Config{MaxAttempts: 1}.Attempts())
}

func TestParseBackendAliases(t *testing.T) {
	cases := map[string]Backend{
		"openai":       BackendOpenAI,
		"MISTRAL":      BackendMistral,
		"gemini":       BackendGemini,
		"azure":        BackendAzureOpenAI,
		"Azure OpenAI": BackendAzureOpenAI,
	}
	for raw, want := range cases {
		got, err := ParseBackend(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestResolveAPIKeyFallsBackToEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")
	t.Setenv("MISTRAL_API_KEY", "mistral-env")

	assert.Equal(t, "from-env", Config{Backend: BackendOpenAI}.ResolveAPIKey())
	assert.Equal(t, "configured", Config{Backend: BackendOpenAI, APIKey: "configured"}.ResolveAPIKey())
	assert.Equal(t, "mistral-env", Config{Backend: BackendMistral}.ResolveAPIKey())
}

func TestLoadEnvDoesNotOverrideExisting(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, EnvFile), []byte("DBTAI_TEST_A=file\nDBTAI_TEST_B=file\n"), 0644))
	t.Setenv("DBTAI_TEST_A", "process")
	t.Setenv("DBTAI_TEST_B", "")
	require.NoError(t, os.Unsetenv("DBTAI_TEST_B"))

	require.NoError(t, LoadEnv(root))
	assert.Equal(t, "process", os.Getenv("DBTAI_TEST_A"))
	assert.Equal(t, "file", os.Getenv("DBTAI_TEST_B"))
}

func TestLoadEnvMissingFile(t *testing.T) {
	require.NoError(t, LoadEnv(t.TempDir()))
}

func TestDirHonoursOverride(t *testing.T) {
	t.Setenv(DirEnv, "/tmp/dbtai-test")
	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/dbtai-test", dir)
}
