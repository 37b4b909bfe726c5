package eventbus

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSBridge mirrors Bus events onto a NATS JetStream subject tree for
// cross-process observers (e.g. a separate metrics/audit consumer). It is
// a one-way, best-effort mirror: per SPEC_FULL.md C12 it is never load
// bearing for any in-process invariant — PushHub and Dispatcher never read
// from it, only the in-process Bus does.
type NATSBridge struct {
	bus    *Bus
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *zap.Logger
	sub    *Subscription
	done   chan struct{}
}

const bridgeStreamName = "OPENKARAOKE_EVENTS"

// NewNATSBridge connects to url and ensures the mirror stream exists.
func NewNATSBridge(url string, bus *Bus, logger *zap.Logger) (*NATSBridge, error) {
	nc, err := nats.Connect(url,
		nats.Name("openkaraoke-studio"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	if _, err := js.StreamInfo(bridgeStreamName); err != nil {
		_, err := js.AddStream(&nats.StreamConfig{
			Name:      bridgeStreamName,
			Subjects:  []string{"openkaraoke.events.>"},
			Storage:   nats.FileStorage,
			Retention: nats.LimitsPolicy,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("create mirror stream: %w", err)
		}
		logger.Info("created event mirror stream", zap.String("stream", bridgeStreamName))
	}

	return &NATSBridge{
		bus:    bus,
		nc:     nc,
		js:     js,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// Run subscribes to every topic on the bus and mirrors each event to NATS
// until Stop is called. It blocks, so callers run it in its own goroutine.
func (b *NATSBridge) Run() {
	b.sub = b.bus.Subscribe("*")
	for {
		select {
		case ev, ok := <-b.sub.Recv():
			if !ok {
				return
			}
			if ev.IsLossMarker() {
				continue
			}
			b.publish(ev)
		case <-b.done:
			return
		}
	}
}

func (b *NATSBridge) publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Warn("failed to marshal mirrored event", zap.Error(err))
		return
	}
	subject := "openkaraoke.events." + string(ev.Topic)
	if _, err := b.js.Publish(subject, data); err != nil {
		b.logger.Warn("failed to mirror event to nats", zap.Error(err), zap.String("subject", subject))
	}
}

// Stop unsubscribes from the bus and closes the NATS connection.
func (b *NATSBridge) Stop() {
	close(b.done)
	if b.sub != nil {
		b.sub.Close()
	}
	b.nc.Close()
}
