// Package snapshotevents publishes snapshot changes to NATS.
package snapshotevents

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/spectasks/tasksync"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "spectasks"

// Config configures the publisher.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// SubjectPrefix is prepended to every event kind.
	SubjectPrefix string

	// JetStream publishes with acknowledgements through a stream that
	// covers the subjects.
	JetStream bool

	// Timeout bounds connecting and each acknowledged publish.
	Timeout time.Duration
}

// publishFunc delivers one message.
type publishFunc func(ctx context.Context, subject string, data []byte) error

// Publisher sends engine events to NATS subjects of the form
// <prefix>.<kind>. It implements tasksync.Notifier.
type Publisher struct {
	prefix  string
	publish publishFunc
	conn    *nats.Conn
	logger  *slog.Logger
}

var _ tasksync.Notifier = (*Publisher)(nil)

// Connect dials NATS and returns a publisher over the connection.
func Connect(cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("spectasks"),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	p := &Publisher{
		prefix: normalizePrefix(cfg.SubjectPrefix),
		conn:   nc,
		logger: logger,
	}

	if cfg.JetStream {
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create jetstream context: %w", err)
		}
		timeout := cfg.Timeout
		p.publish = func(ctx context.Context, subject string, data []byte) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			_, err := js.Publish(ctx, subject, data)
			return err
		}
	} else {
		p.publish = func(_ context.Context, subject string, data []byte) error {
			return nc.Publish(subject, data)
		}
	}

	logger.Info("Connected to NATS", "url", nc.ConnectedUrl(), "prefix", p.prefix, "jetstream", cfg.JetStream)
	return p, nil
}

// newPublisher creates a publisher over an arbitrary delivery function.
func newPublisher(prefix string, publish publishFunc, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{prefix: normalizePrefix(prefix), publish: publish, logger: logger}
}

// Subject returns the subject an event kind is published on.
func (p *Publisher) Subject(kind string) string {
	return p.prefix + "." + kind
}

// Notify publishes event as JSON.
func (p *Publisher) Notify(ctx context.Context, event tasksync.Event) error {
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}

	subject := p.Subject(event.Kind)
	if err := p.publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("Published event", "subject", subject, "scan_id", event.ScanID)
	return nil
}

// Close drains the connection so buffered events are flushed.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

func encodeEvent(event tasksync.Event) ([]byte, error) {
	if event.Kind == "" {
		return nil, fmt.Errorf("event kind is required")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return DefaultSubjectPrefix
	}
	return prefix
}
