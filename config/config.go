// Package config loads service configuration from a YAML file, an optional
// .env file and environment variable overrides, in that order.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cns-iu/dvl-llm/artifact"
	"github.com/cns-iu/dvl-llm/eventbus"
	"github.com/cns-iu/dvl-llm/llm"
	"github.com/cns-iu/dvl-llm/orchestrator"
	"github.com/cns-iu/dvl-llm/sandbox"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ExecutorConfig struct {
	// URL of a remote dvl-executor. Empty runs code in-process.
	URL            string `yaml:"url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type OrchestratorConfig struct {
	MaxRetries  int    `yaml:"max_retries"`
	PromptsPath string `yaml:"prompts_path"`
	Task        string `yaml:"task"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	TTLHours int    `yaml:"ttl_hours"`
}

type SweepConfig struct {
	Schedule    string `yaml:"schedule"`
	MaxAgeHours int    `yaml:"max_age_hours"`
}

type SessionConfig struct {
	MaxSessions   int `yaml:"max_sessions"`
	MaxConcurrent int `yaml:"max_concurrent"`
}

// Config is shared by dvl-api and dvl-executor; each binary reads the
// sections it needs.
type Config struct {
	Port         int                   `yaml:"port"`
	LLM          llm.ProviderConfig    `yaml:"llm"`
	Orchestrator OrchestratorConfig    `yaml:"orchestrator"`
	Executor     ExecutorConfig        `yaml:"executor"`
	Sandbox      sandbox.RunnerConfig  `yaml:"sandbox"`
	Redis        RedisConfig           `yaml:"redis"`
	NATS         eventbus.NATSConfig   `yaml:"nats"`
	MinIO        artifact.BucketConfig `yaml:"minio"`
	Sweep        SweepConfig           `yaml:"sweep"`
	Sessions     SessionConfig         `yaml:"sessions"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Port: 8000,
		LLM: llm.ProviderConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 60,
			MaxWorkers:     llm.DefaultMaxWorkers,
		},
		Orchestrator: OrchestratorConfig{MaxRetries: orchestrator.DefaultMaxRetries},
		Executor:     ExecutorConfig{TimeoutSeconds: 40},
		Sandbox: sandbox.RunnerConfig{
			OutputDir:      orchestrator.DefaultOutputDir,
			TimeoutSeconds: 30,
			Isolation:      sandbox.IsolationProcess,
		},
		Redis:    RedisConfig{TTLHours: 24 * 7},
		Sweep:    SweepConfig{Schedule: "@hourly", MaxAgeHours: 24 * 7},
		Sessions: SessionConfig{MaxSessions: 256, MaxConcurrent: 3},
	}
}

var (
	ErrInvalidPort       = errors.New("config: port must be between 1 and 65535")
	ErrInvalidMaxRetries = errors.New("config: max_retries must not be negative")
	ErrNoProvider        = errors.New("config: llm.provider is required")
)

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
		log.Printf("✅ [CONFIG] Loaded %s", path)
	}
	ApplyEnv(&cfg)
	if err := cfg.resolvePaths(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// resolvePaths makes the sandbox directories absolute. Generated scripts run
// in a temporary workspace, so a relative output path would point there.
func (c *Config) resolvePaths() error {
	for _, dir := range []*string{&c.Sandbox.OutputDir, &c.Sandbox.InputDir} {
		if *dir == "" {
			continue
		}
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", *dir, err)
		}
		*dir = abs
	}
	return nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if c.Orchestrator.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if strings.TrimSpace(c.LLM.Provider) == "" {
		return ErrNoProvider
	}
	return nil
}

func getenvTrim(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string, dst *int) {
	v := getenvTrim(key)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️ [CONFIG] Ignoring %s=%q: %v", key, v, err)
		return
	}
	*dst = n
}

func envString(key string, dst *string) {
	if v := getenvTrim(key); v != "" {
		*dst = v
	}
}

// ApplyEnv lets environment variables override file settings. Provider
// specific API keys (OPENAI_API_KEY, GOOGLE_API_KEY, JETSTREAM_API_KEY) are
// read later by llm.New so that they only apply to their own provider.
func ApplyEnv(cfg *Config) {
	envInt("PORT", &cfg.Port)

	envString("LLM_PROVIDER", &cfg.LLM.Provider)
	envString("LLM_MODEL", &cfg.LLM.Model)
	envString("LLM_API_KEY", &cfg.LLM.APIKey)
	envString("LLM_BASE_URL", &cfg.LLM.BaseURL)
	envInt("LLM_MAX_WORKERS", &cfg.LLM.MaxWorkers)
	if strings.EqualFold(cfg.LLM.Provider, "ollama") {
		envString("OLLAMA_URL", &cfg.LLM.BaseURL)
	}

	envInt("MAX_RETRIES", &cfg.Orchestrator.MaxRetries)
	envInt("MAX_CONCURRENT_ITERATIONS", &cfg.Sessions.MaxConcurrent)
	envString("PROMPTS_PATH", &cfg.Orchestrator.PromptsPath)

	envString("EXECUTOR_URL", &cfg.Executor.URL)
	envString("OUTPUT_DIR", &cfg.Sandbox.OutputDir)
	envString("SANDBOX_ISOLATION", &cfg.Sandbox.Isolation)
	envString("INPUT_FILES_DIR", &cfg.Sandbox.InputDir)
	envString("DOCKER_MEMORY_LIMIT", &cfg.Sandbox.Docker.Memory)
	envString("DOCKER_CPU_LIMIT", &cfg.Sandbox.Docker.CPUs)
	envString("DOCKER_PIDS_LIMIT", &cfg.Sandbox.Docker.Pids)

	envString("REDIS_URL", &cfg.Redis.URL)
	envString("NATS_URL", &cfg.NATS.URL)

	envString("MINIO_ENDPOINT", &cfg.MinIO.Endpoint)
	envString("MINIO_ACCESS_KEY", &cfg.MinIO.AccessKey)
	envString("MINIO_SECRET_KEY", &cfg.MinIO.SecretKey)
	envString("MINIO_BUCKET", &cfg.MinIO.Bucket)
	if v := getenvTrim("MINIO_USE_SSL"); v != "" {
		cfg.MinIO.UseSSL, _ = strconv.ParseBool(v)
	}
}

// LoadEnvFile loads .env from the working directory or up to three parent
// directories.
func LoadEnvFile() error {
	if err := godotenv.Load(".env"); err == nil {
		log.Printf("✅ [CONFIG] Loaded .env file from current directory")
		return nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
		envPath := filepath.Join(dir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Printf("✅ [CONFIG] Loaded .env file from: %s", envPath)
			return nil
		}
	}
	return fmt.Errorf(".env file not found")
}
