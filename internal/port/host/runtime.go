// Package host defines the port the configuration relay uses to talk to the
// companion host runtime (phone bridge, message bus or an in-memory double).
package host

import (
	"context"
	"errors"

	"github.com/mephissto/simple-digital/internal/domain/lifecycle"
	"github.com/mephissto/simple-digital/internal/domain/settings"
)

// ErrMessageRejected is wrapped by send failures the watch side reported.
var ErrMessageRejected = errors.New("app message rejected")

// Handler processes one lifecycle event. A returned error is reported by the
// host; it never stops event delivery.
type Handler func(ctx context.Context, e lifecycle.Event) error

// SendResult is the outcome of a single settings delivery. Exactly one
// result is produced per SendSettings call.
type SendResult struct {
	TransactionID string
	Err           error
}

// OK reports whether the watch acknowledged the message.
func (r SendResult) OK() bool { return r.Err == nil }

// Runtime is the port interface for the companion host.
type Runtime interface {
	// Subscribe registers h for the named lifecycle event, replacing any
	// previous handler for that name.
	Subscribe(name lifecycle.Name, h Handler)

	// OpenRemote asks the host to show url in its configuration web view.
	// The returned error only covers handing the request to the host.
	OpenRemote(ctx context.Context, url string) error

	// SendSettings delivers msg to the watch application and waits for the
	// acknowledgement. Context cancellation yields a failed result.
	SendSettings(ctx context.Context, msg settings.Message) SendResult
}
