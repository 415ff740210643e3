// Package memhost implements the host runtime port in memory. It records
// every host action, fires lifecycle events inline and plays the watch side
// by applying delivered settings to a Display.
package memhost

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/mephissto/simple-digital/internal/adapter/eventloop"
	"github.com/mephissto/simple-digital/internal/domain/lifecycle"
	"github.com/mephissto/simple-digital/internal/domain/settings"
	"github.com/mephissto/simple-digital/internal/port/host"
)

// Host is an in-memory host.Runtime.
type Host struct {
	loop *eventloop.Loop

	mu      sync.Mutex
	opened  []string
	sent    []settings.Message
	results []host.SendResult
	openErr error
	sendErr error
	display settings.Display
}

var _ host.Runtime = (*Host)(nil)

// New returns a Host whose simulated watch starts with default settings.
func New() *Host {
	return &Host{
		loop:    eventloop.New(1),
		display: settings.DefaultDisplay(),
	}
}

// Subscribe registers h for name.
func (h *Host) Subscribe(name lifecycle.Name, handler host.Handler) {
	h.loop.Subscribe(name, handler)
}

// Fire dispatches e on the calling goroutine and returns the handler error.
func (h *Host) Fire(ctx context.Context, e lifecycle.Event) error {
	return h.loop.Dispatch(ctx, e)
}

// OpenRemote records url, or returns the error set with SetOpenError.
func (h *Host) OpenRemote(_ context.Context, url string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.openErr != nil {
		return h.openErr
	}
	h.opened = append(h.opened, url)
	return nil
}

// SendSettings records msg. Unless a send error is scripted the simulated
// watch applies it.
func (h *Host) SendSettings(ctx context.Context, msg settings.Message) host.SendResult {
	res := host.SendResult{TransactionID: uuid.NewString()}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.sent = append(h.sent, msg)
	switch {
	case ctx.Err() != nil:
		res.Err = ctx.Err()
	case h.sendErr != nil:
		res.Err = h.sendErr
	default:
		h.display = h.display.Apply(msg)
	}
	h.results = append(h.results, res)
	return res
}

// SetOpenError makes subsequent OpenRemote calls fail with err.
func (h *Host) SetOpenError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.openErr = err
}

// SetSendError makes subsequent SendSettings calls fail with err.
func (h *Host) SetSendError(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendErr = err
}

// Opened returns the URLs passed to OpenRemote.
func (h *Host) Opened() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.opened...)
}

// Sent returns the messages passed to SendSettings.
func (h *Host) Sent() []settings.Message {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]settings.Message(nil), h.sent...)
}

// Results returns the outcome of every SendSettings call.
func (h *Host) Results() []host.SendResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]host.SendResult(nil), h.results...)
}

// Display returns the simulated watch settings.
func (h *Host) Display() settings.Display {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.display
}
