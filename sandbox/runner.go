package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	IsolationProcess = "process"
	IsolationDocker  = "docker"

	DefaultTimeout     = 30 * time.Second
	DefaultArtifactExt = ".html"
)

// DefaultDenylist is the substring screen applied before any code runs.
// It is deliberately blunt: matches inside comments or string literals are
// rejected too.
var DefaultDenylist = []string{
	"import os",
	"import subprocess",
	"os.",
	"subprocess.",
	"eval(",
	"exec(",
	"shutil",
	"system(",
	"socket",
	"__import__",
}

// Environment describes how to run code for one target library family.
type Environment struct {
	Command   string `yaml:"command"`
	Extension string `yaml:"extension"`
	Image     string `yaml:"image"`
}

var DefaultEnvironments = map[string]Environment{
	"python":     {Command: "python3", Extension: ".py", Image: "python:3.11-slim"},
	"javascript": {Command: "node", Extension: ".js", Image: "node:18-slim"},
	"r":          {Command: "Rscript", Extension: ".R", Image: "r-base:latest"},
}

// DockerLimits bounds a containerised run.
type DockerLimits struct {
	Memory  string `yaml:"memory"`
	CPUs    string `yaml:"cpus"`
	Pids    string `yaml:"pids"`
	Tmpfs   string `yaml:"tmpfs"`
	Network string `yaml:"network"`
}

// RunnerConfig configures a Runner. Zero values fall back to defaults.
type RunnerConfig struct {
	OutputDir          string                 `yaml:"output_dir"`
	WorkDir            string                 `yaml:"work_dir"`
	InputDir           string                 `yaml:"input_dir"`
	ArtifactExt        string                 `yaml:"artifact_ext"`
	TimeoutSeconds     int                    `yaml:"timeout_seconds"`
	Isolation          string                 `yaml:"isolation"`
	Denylist           []string               `yaml:"denylist"`
	DefaultEnvironment string                 `yaml:"default_environment"`
	Environments       map[string]Environment `yaml:"environments"`
	Preamble           string                 `yaml:"preamble"`
	Docker             DockerLimits           `yaml:"docker"`
}

// Runner executes code in a fresh workspace per call. It is safe for
// concurrent use as long as callers pick distinct output names.
type Runner struct {
	cfg     RunnerConfig
	timeout time.Duration
}

var (
	ErrNoOutputDir    = errors.New("sandbox: output directory is required")
	ErrBadIsolation   = errors.New("sandbox: isolation must be \"process\" or \"docker\"")
	validArtifactName = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._-]*$`)
)

func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if strings.TrimSpace(cfg.OutputDir) == "" {
		return nil, ErrNoOutputDir
	}
	if cfg.Isolation == "" {
		cfg.Isolation = IsolationProcess
	}
	if cfg.Isolation != IsolationProcess && cfg.Isolation != IsolationDocker {
		return nil, ErrBadIsolation
	}
	if cfg.ArtifactExt == "" {
		cfg.ArtifactExt = DefaultArtifactExt
	}
	if cfg.Denylist == nil {
		cfg.Denylist = DefaultDenylist
	}
	if len(cfg.Environments) == 0 {
		cfg.Environments = DefaultEnvironments
	}
	if cfg.DefaultEnvironment == "" {
		cfg.DefaultEnvironment = "python"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	abs, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}
	cfg.OutputDir = abs
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	timeout := DefaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Runner{cfg: cfg, timeout: timeout}, nil
}

// WithTimeout returns a copy of r using d as the per-run wall-clock limit.
func (r *Runner) WithTimeout(d time.Duration) *Runner {
	cp := *r
	cp.timeout = d
	return &cp
}

func (r *Runner) OutputDir() string { return r.cfg.OutputDir }

// ArtifactPath is where a run named name must write its artifact.
func (r *Runner) ArtifactPath(name string) string {
	return filepath.Join(r.cfg.OutputDir, name+r.cfg.ArtifactExt)
}

// screen returns the first denylisted token found in code.
func (r *Runner) screen(code string) string {
	for _, tok := range r.cfg.Denylist {
		if tok != "" && strings.Contains(code, tok) {
			return tok
		}
	}
	return ""
}

// Execute runs req.Code and classifies the result. Every classified
// failure, including rejection and timeout, comes back as an Outcome with a
// nil error.
func (r *Runner) Execute(ctx context.Context, req Request) (Outcome, error) {
	if tok := r.screen(req.Code); tok != "" {
		log.Printf("🚫 [SANDBOX] Rejected %q: forbidden token %q", req.OutputNamePrefix, tok)
		return Failure(KindSecurityRejected, fmt.Sprintf("Security Error: forbidden keyword '%s' detected", tok), "", ""), nil
	}
	if !validArtifactName.MatchString(req.OutputNamePrefix) {
		return Failure(KindServiceError, fmt.Sprintf("invalid output name %q", req.OutputNamePrefix), "", ""), nil
	}
	envName := req.Environment
	if envName == "" {
		envName = r.cfg.DefaultEnvironment
	}
	env, ok := r.cfg.Environments[strings.ToLower(envName)]
	if !ok {
		return Failure(KindServiceError, fmt.Sprintf("unsupported environment %q", envName), "", ""), nil
	}

	artifact := r.ArtifactPath(req.OutputNamePrefix)
	if err := os.Remove(artifact); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Failure(KindServiceError, fmt.Sprintf("clear stale artifact: %v", err), "", ""), nil
	}

	id := uuid.New().String()[:8]
	workspace, err := os.MkdirTemp(r.cfg.WorkDir, "viz-"+id+"-")
	if err != nil {
		return Failure(KindServiceError, fmt.Sprintf("create workspace: %v", err), "", ""), nil
	}
	defer os.RemoveAll(workspace)

	script := filepath.Join(workspace, "viz"+env.Extension)
	if err := os.WriteFile(script, []byte(r.cfg.Preamble+req.Code), 0o644); err != nil {
		return Failure(KindServiceError, fmt.Sprintf("write script: %v", err), "", ""), nil
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var cmd *exec.Cmd
	containerName := ""
	if r.cfg.Isolation == IsolationDocker {
		containerName = "dvl-exec-" + id
		args := r.buildDockerCommand(env, script, containerName)
		cmd = exec.CommandContext(runCtx, args[0], args[1:]...)
		defer cleanupContainer(containerName)
	} else {
		cmd = exec.CommandContext(runCtx, env.Command, script)
		cmd.Dir = workspace
		cmd.Env = processEnv(workspace, r.cfg.OutputDir)
	}

	cmd.WaitDelay = 2 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Printf("🐍 [SANDBOX] Running %s (%s, %s isolation, timeout %v)", req.OutputNamePrefix, envName, r.cfg.Isolation, r.timeout)
	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		log.Printf("⏰ [SANDBOX] %s timed out after %v", req.OutputNamePrefix, elapsed)
		return Failure(KindTimeout, fmt.Sprintf("Execution Timeout: the script exceeded %v", r.timeout), stdout.String(), stderr.String()), nil
	}
	if ctx.Err() != nil {
		return Outcome{}, ctx.Err()
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			log.Printf("❌ [SANDBOX] Could not start %s: %v", env.Command, runErr)
			return Failure(KindServiceError, fmt.Sprintf("start interpreter: %v", runErr), stdout.String(), stderr.String()), nil
		}
		exitCode = exitErr.ExitCode()
	}

	_, statErr := os.Stat(artifact)
	out := Classify(RunResult{
		ExitCode:       exitCode,
		Stdout:         stdout.String(),
		Stderr:         stderr.String(),
		ArtifactPath:   artifact,
		ArtifactExists: statErr == nil,
	})
	if out.IsSuccess() {
		log.Printf("✅ [SANDBOX] %s produced %s in %v", req.OutputNamePrefix, artifact, elapsed)
	} else {
		log.Printf("⚠️ [SANDBOX] %s failed (%s, exit=%d) in %v", req.OutputNamePrefix, out.ErrorKind, exitCode, elapsed)
	}
	return out, nil
}

// processEnv gives the child a minimal environment: no inherited secrets,
// a HOME inside its own workspace.
func processEnv(workspace, outputDir string) []string {
	path := os.Getenv("PATH")
	if path == "" {
		path = "/usr/local/bin:/usr/bin:/bin"
	}
	return []string{
		"PATH=" + path,
		"HOME=" + workspace,
		"TMPDIR=" + workspace,
		"MPLCONFIGDIR=" + workspace,
		"MPLBACKEND=Agg",
		"OUTPUT_DIR=" + outputDir,
	}
}
