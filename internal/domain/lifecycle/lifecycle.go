// Package lifecycle defines the events a companion host fires at the relay.
package lifecycle

import "time"

// Name identifies a lifecycle event.
type Name string

// Lifecycle event names, as the host runtime spells them.
const (
	Ready             Name = "ready"
	ShowConfiguration Name = "showConfiguration"
	WebviewClosed     Name = "webviewclosed"
)

// Names returns every known lifecycle event name.
func Names() []Name {
	return []Name{Ready, ShowConfiguration, WebviewClosed}
}

// Valid reports whether n is a known lifecycle event name.
func (n Name) Valid() bool {
	switch n {
	case Ready, ShowConfiguration, WebviewClosed:
		return true
	}
	return false
}

// Event is a single lifecycle notification. Response is only set for
// WebviewClosed and carries the URL-encoded page result.
type Event struct {
	Name       Name      `json:"name"`
	Response   string    `json:"response,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// New returns an event stamped with the current time.
func New(name Name, response string) Event {
	return Event{Name: name, Response: response, ReceivedAt: time.Now()}
}
