// Package nats publishes search analytics events to a NATS JetStream stream.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	searchuc "github.com/AlejoJamC/airweave/internal/usecase/search"
)

// SubjectSearchCompleted carries one CompletedEvent per finished search.
const SubjectSearchCompleted = "events.search.completed"

const defaultStream = "SEARCH_EVENTS"

type streamPublisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Publisher implements the search event publisher on JetStream.
type Publisher struct {
	nc     *nats.Conn
	js     streamPublisher
	logger *zap.Logger
}

// Connect dials url and ensures stream exists for the events.search subjects.
func Connect(ctx context.Context, url, stream string, logger *zap.Logger) (*Publisher, error) {
	if stream == "" {
		stream = defaultStream
	}

	nc, err := nats.Connect(url,
		nats.Name("airweave-search"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := js.CreateOrUpdateStream(sctx, jetstream.StreamConfig{
		Name:      stream,
		Subjects:  []string{"events.search.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	}); err != nil {
		// The stream may be managed elsewhere; publishing still works if it exists.
		logger.Warn("ensure nats stream failed", zap.String("stream", stream), zap.Error(err))
	}

	return &Publisher{nc: nc, js: js, logger: logger}, nil
}

// NewPublisherForTest wraps a stream publisher without a connection.
func NewPublisherForTest(js streamPublisher, logger *zap.Logger) *Publisher {
	return &Publisher{js: js, logger: logger}
}

// PublishSearchCompleted sends event with its query ID as the dedup message ID.
func (p *Publisher) PublishSearchCompleted(ctx context.Context, event searchuc.CompletedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal search event: %w", err)
	}

	if _, err := p.js.Publish(ctx, SubjectSearchCompleted, data, jetstream.WithMsgID(event.QueryID)); err != nil {
		return fmt.Errorf("publish %s: %w", SubjectSearchCompleted, err)
	}

	p.logger.Debug("search event published", zap.String("query_id", event.QueryID))
	return nil
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		_ = p.nc.Drain()
	}
}
