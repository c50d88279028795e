// Command dvl-api serves the generate, refine and undo endpoints backed by
// per-session orchestrators.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cns-iu/dvl-llm/api"
	"github.com/cns-iu/dvl-llm/artifact"
	"github.com/cns-iu/dvl-llm/config"
	"github.com/cns-iu/dvl-llm/eventbus"
	"github.com/cns-iu/dvl-llm/history"
	"github.com/cns-iu/dvl-llm/llm"
	"github.com/cns-iu/dvl-llm/orchestrator"
	"github.com/cns-iu/dvl-llm/sandbox"
)

func main() {
	// Load .env before reading config so its values act as env overrides.
	if err := config.LoadEnvFile(); err != nil {
		log.Printf("Note: Could not load .env file: %v (continuing without it)", err)
	}

	var (
		configPath  = flag.String("config", "", "Path to YAML configuration file")
		port        = flag.Int("port", 0, "Port to listen on (overrides config)")
		promptsPath = flag.String("prompts", "", "Path to prompts YAML (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ [CONFIG] %v", err)
	}
	if *port > 0 {
		cfg.Port = *port
	}
	if *promptsPath != "" {
		cfg.Orchestrator.PromptsPath = *promptsPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDeps(ctx, cfg)
	if err != nil {
		log.Fatalf("❌ [API] %v", err)
	}
	defer cleanup()

	srv, err := api.NewServer(deps)
	if err != nil {
		log.Fatalf("❌ [API] %v", err)
	}
	if err := srv.Start(ctx, cfg.Port); err != nil {
		log.Printf("❌ [API] HTTP server error: %v", err)
	}
}

// buildDeps connects the optional backends named in cfg. Each one that is
// not configured is simply left out.
func buildDeps(ctx context.Context, cfg config.Config) (api.Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	prompts := orchestrator.DefaultPrompts()
	if cfg.Orchestrator.PromptsPath != "" {
		p, err := orchestrator.LoadPrompts(cfg.Orchestrator.PromptsPath)
		if err != nil {
			return api.Deps{}, cleanup, err
		}
		prompts = p
	}

	var executor sandbox.Executor
	if cfg.Executor.URL != "" {
		log.Printf("🔗 [API] Using remote executor at %s", cfg.Executor.URL)
		executor = sandbox.NewClient(cfg.Executor.URL, time.Duration(cfg.Executor.TimeoutSeconds)*time.Second)
	} else {
		runner, err := sandbox.NewRunner(cfg.Sandbox)
		if err != nil {
			return api.Deps{}, cleanup, err
		}
		log.Printf("🐍 [API] Running code in-process (%s isolation)", cfg.Sandbox.Isolation)
		executor = runner
	}

	local, err := artifact.NewLocal(cfg.Sandbox.OutputDir)
	if err != nil {
		return api.Deps{}, cleanup, err
	}
	removers := []artifact.Remover{local}

	pool := llm.NewLimiter(cfg.LLM.MaxWorkers)
	deps := api.Deps{
		NewGenerator: func(ctx context.Context, model string) (llm.Generator, error) {
			pc := cfg.LLM
			if model != "" {
				pc.Model = model
			}
			gen, err := llm.New(ctx, pc)
			if err != nil {
				return nil, err
			}
			return pool.Wrap(gen), nil
		},
		Executor:      executor,
		MaxSessions:   cfg.Sessions.MaxSessions,
		MaxConcurrent: cfg.Sessions.MaxConcurrent,
	}
	var listeners []func(string) orchestrator.Listener

	if cfg.MinIO.Enabled() {
		bucket, err := artifact.NewBucket(cfg.MinIO)
		if err != nil {
			return api.Deps{}, cleanup, err
		}
		removers = append(removers, bucket)
		deps.ArtifactURL = func(ctx context.Context, path string) (string, error) {
			return bucket.PresignedURL(ctx, path, 24*time.Hour)
		}
		mirror := bucket.Mirror()
		listeners = append(listeners, func(string) orchestrator.Listener { return mirror })
		log.Printf("☁️ [API] Mirroring artifacts to %s", cfg.MinIO.Endpoint)
	}

	if cfg.Redis.URL != "" {
		store, err := history.Open(ctx, cfg.Redis.URL, time.Duration(cfg.Redis.TTLHours)*time.Hour)
		if err != nil {
			return api.Deps{}, cleanup, err
		}
		closers = append(closers, func() { store.Close() })
		deps.Versions = store
		listeners = append(listeners, store.Recorder)
		log.Printf("🗄️ [API] Persisting versions to Redis")
	}

	if cfg.NATS.URL != "" {
		bus, err := eventbus.NewNATSBus(cfg.NATS)
		if err != nil {
			log.Printf("⚠️ [EVENTS] NATS unavailable, continuing without events: %v", err)
		} else {
			closers = append(closers, bus.Close)
			listeners = append(listeners, func(id string) orchestrator.Listener {
				return eventbus.Forward(bus, "dvl-api", id)
			})
			log.Printf("📡 [EVENTS] Publishing to %s", cfg.NATS.URL)
		}
	}

	if cfg.Sweep.MaxAgeHours > 0 && cfg.Sweep.Schedule != "" {
		sweeper := artifact.NewSweeper(local, time.Duration(cfg.Sweep.MaxAgeHours)*time.Hour)
		if err := sweeper.Start(cfg.Sweep.Schedule); err != nil {
			return api.Deps{}, cleanup, err
		}
		closers = append(closers, sweeper.Stop)
	}

	deps.Options = []orchestrator.Option{
		orchestrator.WithPrompts(prompts),
		orchestrator.WithMaxRetries(cfg.Orchestrator.MaxRetries),
		orchestrator.WithOutputDir(cfg.Sandbox.OutputDir),
		orchestrator.WithArtifactExt(cfg.Sandbox.ArtifactExt),
		orchestrator.WithTask(cfg.Orchestrator.Task),
		orchestrator.WithArtifactRemover(artifact.Chain(removers...)),
	}
	deps.Listeners = func(id string) []orchestrator.Listener {
		out := make([]orchestrator.Listener, 0, len(listeners))
		for _, mk := range listeners {
			out = append(out, mk(id))
		}
		return out
	}
	return deps, cleanup, nil
}
