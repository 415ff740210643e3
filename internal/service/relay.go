// Package service contains application services.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cfotel "github.com/mephissto/simple-digital/internal/adapter/otel"
	"github.com/mephissto/simple-digital/internal/domain/lifecycle"
	"github.com/mephissto/simple-digital/internal/domain/settings"
	"github.com/mephissto/simple-digital/internal/logger"
	"github.com/mephissto/simple-digital/internal/port/host"
)

// ConfigPageURL is the remote page users configure the watchface on.
const ConfigPageURL = "http://public.msl.re/simple-digital-config.html"

// Relay bridges host lifecycle events to host actions: it opens the
// configuration page on request and forwards the page's result to the watch.
// It keeps no state between events.
type Relay struct {
	rt          host.Runtime
	log         *slog.Logger
	metrics     *cfotel.Metrics
	sendTimeout time.Duration
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) RelayOption {
	return func(r *Relay) { r.log = l }
}

// WithMetrics sets the metric instruments. Nil disables metrics.
func WithMetrics(m *cfotel.Metrics) RelayOption {
	return func(r *Relay) { r.metrics = m }
}

// WithSendTimeout bounds how long a settings delivery may wait for the
// watch. Zero waits for the host indefinitely.
func WithSendTimeout(d time.Duration) RelayOption {
	return func(r *Relay) { r.sendTimeout = d }
}

// NewRelay creates a Relay bound to rt. Call Register to start receiving events.
func NewRelay(rt host.Runtime, opts ...RelayOption) *Relay {
	r := &Relay{rt: rt, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register subscribes the relay's handlers with the host.
func (r *Relay) Register() {
	r.rt.Subscribe(lifecycle.Ready, r.OnReady)
	r.rt.Subscribe(lifecycle.ShowConfiguration, r.OnShowConfiguration)
	r.rt.Subscribe(lifecycle.WebviewClosed, r.OnWebviewClosed)
}

// OnReady logs that the companion is up. It never fails.
func (r *Relay) OnReady(ctx context.Context, e lifecycle.Event) error {
	ctx, span := cfotel.StartEventSpan(ctx, string(e.Name), logger.EventID(ctx))
	defer span.End()
	r.metrics.RecordEvent(ctx, string(e.Name))

	r.eventLog(ctx, e).Info("companion ready")
	return nil
}

// OnShowConfiguration asks the host to open the configuration page. A host
// refusal is logged and otherwise ignored.
func (r *Relay) OnShowConfiguration(ctx context.Context, e lifecycle.Event) error {
	ctx, span := cfotel.StartEventSpan(ctx, string(e.Name), logger.EventID(ctx))
	defer span.End()
	r.metrics.RecordEvent(ctx, string(e.Name))

	if err := r.rt.OpenRemote(ctx, ConfigPageURL); err != nil {
		cfotel.FailSpan(span, err)
		r.metrics.RecordOpenFailure(ctx)
		r.eventLog(ctx, e).Warn("open configuration page failed", "url", ConfigPageURL, "error", err)
	}
	return nil
}

// OnWebviewClosed parses the configuration page result and sends the
// settings message to the watch. A malformed result is returned as a
// *settings.ParseError and nothing is sent. Send outcomes are logged once,
// never retried.
func (r *Relay) OnWebviewClosed(ctx context.Context, e lifecycle.Event) error {
	ctx, span := cfotel.StartEventSpan(ctx, string(e.Name), logger.EventID(ctx))
	defer span.End()
	r.metrics.RecordEvent(ctx, string(e.Name))

	payload, err := settings.ParseConfigurationPayload(e.Response)
	if err != nil {
		cfotel.FailSpan(span, err)
		r.metrics.RecordParseFailure(ctx)
		return fmt.Errorf("webviewclosed: %w", err)
	}

	res := r.send(ctx, settings.NewMessage(payload))

	log := r.eventLog(ctx, e).With("transaction_id", res.TransactionID)
	if !res.OK() {
		log.Warn("settings update failed", "reason", res.Err.Error())
		return nil
	}
	log.Info("settings update successful")
	return nil
}

func (r *Relay) send(ctx context.Context, msg settings.Message) host.SendResult {
	ctx, span := cfotel.StartSendSpan(ctx, len(msg))
	defer span.End()

	if r.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.sendTimeout)
		defer cancel()
	}

	start := time.Now()
	res := r.rt.SendSettings(ctx, msg)
	r.metrics.RecordSend(ctx, res.OK(), time.Since(start).Seconds())
	if !res.OK() {
		cfotel.FailSpan(span, res.Err)
	}
	return res
}

func (r *Relay) eventLog(ctx context.Context, e lifecycle.Event) *slog.Logger {
	return r.log.With("event", e.Name, "event_id", logger.EventID(ctx))
}
