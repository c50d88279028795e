package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "LLM_PROVIDER", "LLM_MODEL", "LLM_API_KEY", "LLM_BASE_URL", "LLM_MAX_WORKERS", "OLLAMA_URL",
		"MAX_RETRIES", "MAX_CONCURRENT_ITERATIONS", "PROMPTS_PATH", "EXECUTOR_URL", "OUTPUT_DIR", "SANDBOX_ISOLATION",
		"INPUT_FILES_DIR", "DOCKER_MEMORY_LIMIT", "DOCKER_CPU_LIMIT", "DOCKER_PIDS_LIMIT",
		"REDIS_URL", "NATS_URL", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY",
		"MINIO_BUCKET", "MINIO_USE_SSL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 2, cfg.Orchestrator.MaxRetries)
	assert.Equal(t, "/app/data/output", cfg.Sandbox.OutputDir)
	assert.Equal(t, 30, cfg.Sandbox.TimeoutSeconds)
	assert.Equal(t, 3, cfg.LLM.MaxWorkers)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 9000
llm:
  provider: jetstream
  model: DeepSeek-R1
  temperature: 0.2
orchestrator:
  max_retries: 0
sandbox:
  output_dir: /srv/charts
  denylist: ["socket"]
  environments:
    python:
      command: python3
      extension: .py
minio:
  endpoint: minio:9000
  bucket: charts
`), 0o644))

	t.Setenv("LLM_MODEL", "llama-4")
	t.Setenv("MAX_RETRIES", "3")
	t.Setenv("LLM_MAX_WORKERS", "5")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")
	t.Setenv("MINIO_USE_SSL", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "jetstream", cfg.LLM.Provider)
	assert.Equal(t, "llama-4", cfg.LLM.Model)
	assert.InDelta(t, 0.2, cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 3, cfg.Orchestrator.MaxRetries)
	assert.Equal(t, 5, cfg.LLM.MaxWorkers)
	assert.Equal(t, "/srv/charts", cfg.Sandbox.OutputDir)
	assert.Equal(t, []string{"socket"}, cfg.Sandbox.Denylist)
	assert.Equal(t, "python3", cfg.Sandbox.Environments["python"].Command)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.True(t, cfg.MinIO.UseSSL)
	assert.True(t, cfg.MinIO.Enabled())
	// Defaults survive a partial file.
	assert.Equal(t, 40, cfg.Executor.TimeoutSeconds)
}

func TestLoadResolvesRelativeOutputDir(t *testing.T) {
	clearEnv(t)
	t.Setenv("OUTPUT_DIR", "out")
	wd, err := os.Getwd()
	require.NoError(t, err)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "out"), cfg.Sandbox.OutputDir)
	assert.True(t, filepath.IsAbs(cfg.Sandbox.OutputDir))
}

func TestLoadIgnoresBadIntegers(t *testing.T) {
	clearEnv(t)
	t.Setenv("MAX_RETRIES", "many")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Orchestrator.MaxRetries)
}

func TestOllamaURLOnlyForOllama(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_URL", "http://gpu:11434")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.LLM.BaseURL)

	t.Setenv("LLM_PROVIDER", "ollama")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://gpu:11434", cfg.LLM.BaseURL)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg := Default()
	cfg.Port = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidPort)

	cfg = Default()
	cfg.Orchestrator.MaxRetries = -1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidMaxRetries)

	cfg = Default()
	cfg.LLM.Provider = " "
	assert.ErrorIs(t, cfg.Validate(), ErrNoProvider)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DVL_TEST_FROM_DOTENV=yes\n"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() { os.Chdir(wd) })
	t.Setenv("DVL_TEST_FROM_DOTENV", "")
	os.Unsetenv("DVL_TEST_FROM_DOTENV")

	require.NoError(t, LoadEnvFile())
	assert.Equal(t, "yes", os.Getenv("DVL_TEST_FROM_DOTENV"))
}
