// Command dvl-events tails orchestration events from NATS, optionally
// filtered to one session.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cns-iu/dvl-llm/eventbus"
)

func main() {
	var (
		url     = flag.String("url", getenv("NATS_URL", "nats://127.0.0.1:4222"), "NATS server URL")
		prefix  = flag.String("prefix", getenv("NATS_SUBJECT_PREFIX", eventbus.DefaultSubjectPrefix), "Subject prefix")
		session = flag.String("session", "", "Only show events for this session id")
		verbose = flag.Bool("v", false, "Print full event JSON")
	)
	flag.Parse()

	bus, err := eventbus.NewNATSBus(eventbus.NATSConfig{URL: *url, SubjectPrefix: *prefix})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect NATS: %v\n", err)
		os.Exit(1)
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = bus.Subscribe(ctx, func(evt eventbus.Event) {
		if *session != "" && evt.SessionID != *session {
			return
		}
		fmt.Printf("[%s] %-9s session=%s iteration=%d attempt=%d %s %s\n",
			evt.Timestamp.Format(time.RFC3339), evt.Type, evt.SessionID, evt.Iteration, evt.Attempt, evt.OutputName, evt.Status)
		if *verbose {
			b, _ := json.MarshalIndent(evt, "", "  ")
			fmt.Println(string(b))
		}
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "subscribe error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("listening on %s.>\n", *prefix)
	<-ctx.Done()
	fmt.Println("shutting down")
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
