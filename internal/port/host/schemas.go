package host

import (
	"fmt"

	"github.com/mephissto/simple-digital/internal/domain/settings"
)

// Command and reply types shared by the bridge transports.
const (
	CommandOpenURL    = "openURL"
	CommandAppMessage = "appmessage"
	ReplyAck          = "appmessage.ack"
	ReplyNack         = "appmessage.nack"
)

// EventPayload is the schema for inbound lifecycle events.
type EventPayload struct {
	Response string `json:"response,omitempty"`
}

// OpenURLPayload is the schema for openURL commands.
type OpenURLPayload struct {
	URL string `json:"url"`
}

// AppMessagePayload is the schema for appmessage commands. AppKeys lets
// bridges that speak numeric keys translate the dictionary.
type AppMessagePayload struct {
	TransactionID string            `json:"transaction_id"`
	Dictionary    settings.Message  `json:"dictionary"`
	AppKeys       map[string]uint32 `json:"app_keys"`
}

// NewAppMessage builds the appmessage command for msg.
func NewAppMessage(txID string, msg settings.Message) AppMessagePayload {
	return AppMessagePayload{
		TransactionID: txID,
		Dictionary:    msg,
		AppKeys:       settings.AppKeys(),
	}
}

// AppMessageReply is the schema for appmessage acknowledgements.
type AppMessageReply struct {
	TransactionID string `json:"transaction_id"`
	OK            bool   `json:"ok"`
	Error         string `json:"error,omitempty"`
}

// Result converts the reply into a SendResult.
func (r AppMessageReply) Result() SendResult {
	if r.OK {
		return SendResult{TransactionID: r.TransactionID}
	}
	reason := r.Error
	if reason == "" {
		reason = "no reason given"
	}
	return SendResult{
		TransactionID: r.TransactionID,
		Err:           fmt.Errorf("%w: %s", ErrMessageRejected, reason),
	}
}
