// Package nats implements the host runtime port over NATS. Lifecycle events
// arrive through a JetStream stream; commands go out on core NATS subjects.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mephissto/simple-digital/internal/adapter/eventloop"
	"github.com/mephissto/simple-digital/internal/domain/lifecycle"
	"github.com/mephissto/simple-digital/internal/domain/settings"
	"github.com/mephissto/simple-digital/internal/port/host"
)

const (
	streamName = "SIMPLEDIGITAL"

	eventsPrefix      = "simpledigital.events."
	subjectOpenURL    = "simpledigital.commands.openurl"
	subjectAppMessage = "simpledigital.commands.appmessage"
)

// Host implements host.Runtime using NATS JetStream.
type Host struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	loop    *eventloop.Loop
	durable string
}

var _ host.Runtime = (*Host)(nil)

// Connect establishes a connection to NATS and ensures the JetStream stream exists.
func Connect(ctx context.Context, url, durable string, loop *eventloop.Loop) (*Host, error) {
	nc, err := nats.Connect(url, nats.Name(durable))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{eventsPrefix + ">"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Host{nc: nc, js: js, loop: loop, durable: durable}, nil
}

// Subscribe registers h for the named lifecycle event.
func (h *Host) Subscribe(name lifecycle.Name, handler host.Handler) {
	h.loop.Subscribe(name, handler)
}

// Start consumes lifecycle events until ctx is done. Messages that cannot
// be decoded are terminated; messages the event loop cannot take are
// redelivered.
func (h *Host) Start(ctx context.Context) error {
	consumer, err := h.js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       h.durable,
		FilterSubject: eventsPrefix + ">",
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("nats consumer create: %w", err)
	}

	cons, err := consumer.Consume(func(msg jetstream.Msg) {
		e, err := decodeEvent(msg.Subject(), msg.Data())
		if err != nil {
			slog.Warn("lifecycle event invalid", "subject", msg.Subject(), "error", err)
			if termErr := msg.Term(); termErr != nil {
				slog.Error("nats term failed", "error", termErr)
			}
			return
		}
		if !h.loop.Post(e) {
			if nakErr := msg.Nak(); nakErr != nil {
				slog.Error("nats nak failed", "error", nakErr)
			}
			return
		}
		if ackErr := msg.Ack(); ackErr != nil {
			slog.Error("nats ack failed", "error", ackErr)
		}
	})
	if err != nil {
		return fmt.Errorf("nats consume: %w", err)
	}

	<-ctx.Done()
	cons.Stop()
	return nil
}

// OpenRemote publishes an openURL command.
func (h *Host) OpenRemote(_ context.Context, url string) error {
	data, err := json.Marshal(host.OpenURLPayload{URL: url})
	if err != nil {
		return fmt.Errorf("marshal openURL: %w", err)
	}
	if err := h.nc.Publish(subjectOpenURL, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", subjectOpenURL, err)
	}
	return nil
}

// SendSettings requests delivery of msg and waits for the bridge's reply.
func (h *Host) SendSettings(ctx context.Context, msg settings.Message) host.SendResult {
	txID := uuid.NewString()

	data, err := json.Marshal(host.NewAppMessage(txID, msg))
	if err != nil {
		return host.SendResult{TransactionID: txID, Err: fmt.Errorf("marshal appmessage: %w", err)}
	}

	resp, err := h.nc.RequestWithContext(ctx, subjectAppMessage, data)
	if err != nil {
		return host.SendResult{TransactionID: txID, Err: fmt.Errorf("nats request %s: %w", subjectAppMessage, err)}
	}

	var reply host.AppMessageReply
	if err := json.Unmarshal(resp.Data, &reply); err != nil {
		return host.SendResult{TransactionID: txID, Err: fmt.Errorf("decode appmessage reply: %w", err)}
	}
	reply.TransactionID = txID
	return reply.Result()
}

// IsConnected reports whether the NATS connection is up.
func (h *Host) IsConnected() bool {
	return h.nc.IsConnected()
}

// Close shuts down the NATS connection.
func (h *Host) Close() error {
	h.nc.Close()
	return nil
}

// decodeEvent builds a lifecycle event from a stream message. The event name
// is the last subject token.
func decodeEvent(subject string, data []byte) (lifecycle.Event, error) {
	name, ok := strings.CutPrefix(subject, eventsPrefix)
	if !ok || strings.Contains(name, ".") || !lifecycle.Name(name).Valid() {
		return lifecycle.Event{}, fmt.Errorf("unknown lifecycle subject %q", subject)
	}

	var p host.EventPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return lifecycle.Event{}, fmt.Errorf("decode %s payload: %w", name, err)
		}
	}
	return lifecycle.New(lifecycle.Name(name), p.Response), nil
}
