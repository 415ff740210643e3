// Package settings defines the watchface settings exchanged between the
// configuration page, the companion relay and the watch application.
package settings

import "maps"

// KeyDate is the only setting the watchface understands. Its value toggles
// the date line under the time.
const KeyDate = "PERSIST_KEY_DATE"

// appKeys maps message keys to the numeric AppMessage keys declared by the
// watch application.
var appKeys = map[string]uint32{
	KeyDate: 1,
}

// Message is the flat key/value dictionary sent to the watch.
type Message map[string]string

// NewMessage builds the settings message for a decoded configuration payload.
// A missing date becomes the literal string "undefined".
func NewMessage(p ConfigurationPayload) Message {
	return Message{KeyDate: Coerce(p.Date)}
}

// AppKeys returns a copy of the message key to AppMessage key table.
func AppKeys() map[string]uint32 {
	return maps.Clone(appKeys)
}

// AppKey returns the numeric AppMessage key for name.
func AppKey(name string) (uint32, bool) {
	k, ok := appKeys[name]
	return k, ok
}

// Display is the watch-side view of the settings.
type Display struct {
	ShowDate bool `json:"show_date"`
}

// DefaultDisplay returns the settings a freshly installed watchface starts with.
func DefaultDisplay() Display {
	return Display{ShowDate: true}
}

// Apply returns d updated with the values carried by m. The watch only
// treats the exact string "true" as enabled; anything else hides the date.
func (d Display) Apply(m Message) Display {
	if v, ok := m[KeyDate]; ok {
		d.ShowDate = v == "true"
	}
	return d
}
