package telemetry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"i4.energy/across/linkstation/poller"
)

// Sink delivers one payload to a topic.
type Sink interface {
	Publish(topic string, payload []byte) error
}

// Message is the JSON document published for each snapshot.
type Message struct {
	OK   bool            `json:"ok"`
	TS   int64           `json:"ts"`
	Data poller.Snapshot `json:"data"`
}

// Publisher forwards poller snapshots to a Sink.
type Publisher struct {
	sink   Sink
	topic  string
	logger *slog.Logger
}

func NewPublisher(sink Sink, topic string, logger *slog.Logger) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{sink: sink, topic: topic, logger: logger}
}

// Run publishes every snapshot received from updates until ctx is
// cancelled or updates is closed. Publish failures are logged and skipped.
func (p *Publisher) Run(ctx context.Context, updates <-chan poller.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			if err := p.Publish(s, time.Now()); err != nil {
				p.logger.Warn("Failed to publish snapshot", "topic", p.topic, "error", err)
			}
		}
	}
}

// Publish encodes s taken at ts and hands it to the sink.
func (p *Publisher) Publish(s poller.Snapshot, ts time.Time) error {
	payload, err := json.Marshal(Message{OK: true, TS: ts.UnixMilli(), Data: s})
	if err != nil {
		return err
	}
	return p.sink.Publish(p.topic, payload)
}
