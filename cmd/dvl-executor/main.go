// Command dvl-executor runs generated plotting code behind POST /execute.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cns-iu/dvl-llm/config"
	"github.com/cns-iu/dvl-llm/sandbox"
)

func main() {
	if err := config.LoadEnvFile(); err != nil {
		log.Printf("Note: Could not load .env file: %v (continuing without it)", err)
	}

	var (
		configPath = flag.String("config", "", "Path to YAML configuration file")
		port       = flag.Int("port", 5001, "Port to listen on")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ [CONFIG] %v", err)
	}

	runner, err := sandbox.NewRunner(cfg.Sandbox)
	if err != nil {
		log.Fatalf("❌ [SANDBOX] %v", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", *port),
		Handler:           sandbox.NewHandler(runner).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("🌐 [SANDBOX] Executor listening on %s (output %s, %s isolation)", srv.Addr, runner.OutputDir(), cfg.Sandbox.Isolation)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("❌ [SANDBOX] HTTP server error: %v", err)
	}
}
