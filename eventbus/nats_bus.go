package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/cns-iu/dvl-llm/orchestrator"
	"github.com/nats-io/nats.go"
)

const DefaultSubjectPrefix = "dvl.events"

// Publisher is implemented by NATSBus; tests substitute their own.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// NATSBus publishes events on core NATS subjects named
// <prefix>.<event type>.
type NATSBus struct {
	nc     *nats.Conn
	prefix string
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

func NewNATSBus(cfg NATSConfig) (*NATSBus, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url,
		nats.Name("dvl-eventbus"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSBus{nc: nc, prefix: prefix}, nil
}

func subjectFor(prefix, eventType string) string {
	return prefix + "." + eventType
}

func (b *NATSBus) Publish(ctx context.Context, evt Event) error {
	if !evt.Validate() {
		return fmt.Errorf("invalid event: missing required fields")
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return b.nc.Publish(subjectFor(b.prefix, evt.Type), data)
}

// Subscribe delivers every event under the bus prefix until ctx is done.
func (b *NATSBus) Subscribe(ctx context.Context, handler func(Event)) (*nats.Subscription, error) {
	sub, err := b.nc.Subscribe(b.prefix+".>", func(msg *nats.Msg) {
		var evt Event
		if err := json.Unmarshal(msg.Data, &evt); err == nil {
			handler(evt)
		}
	})
	if err != nil {
		return nil, err
	}
	go func() {
		<-ctx.Done()
		_ = sub.Drain()
	}()
	return sub, nil
}

func (b *NATSBus) Close() {
	if b.nc != nil {
		_ = b.nc.Drain()
	}
}

// Forward returns a listener that publishes a session's engine events.
// Publish failures are logged and do not affect the session.
func Forward(p Publisher, source, sessionID string) orchestrator.Listener {
	return func(e orchestrator.Event) {
		evt := FromOrchestrator(source, sessionID, e)
		if err := p.Publish(context.Background(), evt); err != nil {
			log.Printf("⚠️ [EVENTS] Failed to publish %s for %s: %v", evt.Type, sessionID, err)
		}
	}
}
