package nats

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mephissto/simple-digital/internal/adapter/eventloop"
	"github.com/mephissto/simple-digital/internal/domain/lifecycle"
	"github.com/mephissto/simple-digital/internal/domain/settings"
	"github.com/mephissto/simple-digital/internal/port/host"
)

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name     string
		subject  string
		data     string
		want     lifecycle.Name
		response string
	}{
		{"ready without payload", "simpledigital.events.ready", "", lifecycle.Ready, ""},
		{"show configuration", "simpledigital.events.showConfiguration", `{}`, lifecycle.ShowConfiguration, ""},
		{"webview closed", "simpledigital.events.webviewclosed", `{"response":"%7B%7D"}`, lifecycle.WebviewClosed, "%7B%7D"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := decodeEvent(tt.subject, []byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Name)
			assert.Equal(t, tt.response, e.Response)
			assert.False(t, e.ReceivedAt.IsZero())
		})
	}
}

func TestDecodeEventInvalid(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		data    string
	}{
		{"unknown event", "simpledigital.events.appmessage", ""},
		{"nested token", "simpledigital.events.x.ready", ""},
		{"foreign subject", "other.events.ready", ""},
		{"bad payload", "simpledigital.events.webviewclosed", `{"response":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeEvent(tt.subject, []byte(tt.data))
			assert.Error(t, err)
		})
	}
}

// testConnect connects to NATS or skips the test if NATS_URL is not set.
func testConnect(t *testing.T, loop *eventloop.Loop) *Host {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	h, err := Connect(context.Background(), url, "test-"+uuid.NewString(), loop)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestHost_EventsReachLoop(t *testing.T) {
	loop := eventloop.New(4)
	h := testConnect(t, loop)

	got := make(chan lifecycle.Event, 1)
	h.Subscribe(lifecycle.WebviewClosed, func(_ context.Context, e lifecycle.Event) error {
		got <- e
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()
	go func() { _ = h.Start(ctx) }()

	marker := uuid.NewString()
	data, err := json.Marshal(host.EventPayload{Response: marker})
	require.NoError(t, err)
	_, err = h.js.Publish(ctx, eventsPrefix+string(lifecycle.WebviewClosed), data)
	require.NoError(t, err)

	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-got:
			if e.Response == marker {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestHost_OpenRemote(t *testing.T) {
	h := testConnect(t, eventloop.New(1))

	sub, err := h.nc.SubscribeSync(subjectOpenURL)
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	require.NoError(t, h.OpenRemote(context.Background(), "http://public.msl.re/simple-digital-config.html"))

	msg, err := sub.NextMsg(5 * time.Second)
	require.NoError(t, err)

	var p host.OpenURLPayload
	require.NoError(t, json.Unmarshal(msg.Data, &p))
	assert.Equal(t, "http://public.msl.re/simple-digital-config.html", p.URL)
}

func TestHost_SendSettings(t *testing.T) {
	h := testConnect(t, eventloop.New(1))

	var received host.AppMessagePayload
	sub, err := h.nc.Subscribe(subjectAppMessage, func(m *nats.Msg) {
		_ = json.Unmarshal(m.Data, &received)
		reply, _ := json.Marshal(host.AppMessageReply{OK: received.Dictionary[settings.KeyDate] == "true", Error: "APP_MSG_BUSY"})
		_ = m.Respond(reply)
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res := h.SendSettings(ctx, settings.Message{settings.KeyDate: "true"})
	require.True(t, res.OK(), "send failed: %v", res.Err)
	assert.Equal(t, received.TransactionID, res.TransactionID)
	assert.Equal(t, uint32(1), received.AppKeys[settings.KeyDate])

	res = h.SendSettings(ctx, settings.Message{settings.KeyDate: "false"})
	require.False(t, res.OK())
	assert.ErrorIs(t, res.Err, host.ErrMessageRejected)
}

func TestHost_SendSettingsNoResponder(t *testing.T) {
	h := testConnect(t, eventloop.New(1))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	res := h.SendSettings(ctx, settings.Message{settings.KeyDate: "true"})
	assert.False(t, res.OK())
	assert.NotEmpty(t, res.TransactionID)
	assert.True(t, h.IsConnected())
}
