package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// msgIDHeader lets JetStream streams bound to the subjects deduplicate retries.
const msgIDHeader = "Nats-Msg-Id"

// NATSPublisher publishes events on a core NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// Connect dials the NATS server at url. Subjects are rooted at prefix.
func Connect(url, prefix string, opts ...nats.Option) (*NATSPublisher, error) {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return nil, fmt.Errorf("nats subject prefix is required")
	}

	base := []nats.Option{
		nats.Name("chamicore-abbrev"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	conn, err := nats.Connect(url, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

// Subject returns the NATS subject an event with op is published on.
func (p *NATSPublisher) Subject(op Op) string {
	return p.prefix + ".entries." + string(op)
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if evt.op == "" {
		return fmt.Errorf("event %q has no op", evt.ID)
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	msg := nats.NewMsg(p.Subject(evt.op))
	msg.Header.Set(msgIDHeader, evt.ID)
	msg.Data = data
	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publishing %s: %w", msg.Subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn.IsClosed() {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		return fmt.Errorf("draining nats connection: %w", err)
	}
	return nil
}
