// Package ws implements the host runtime port over WebSocket. The phone-side
// bridge connects to the relay, forwards lifecycle events and executes the
// openURL and appmessage commands it receives.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mephissto/simple-digital/internal/adapter/eventloop"
	"github.com/mephissto/simple-digital/internal/domain/lifecycle"
	"github.com/mephissto/simple-digital/internal/domain/settings"
	"github.com/mephissto/simple-digital/internal/port/host"
)

// defaultReadLimit is the inbound frame cap when none is configured.
const defaultReadLimit = 64 << 10

var (
	// ErrNoBridge is returned when no phone bridge is connected.
	ErrNoBridge = errors.New("no bridge connected")
	// ErrBridgeClosed fails sends whose bridge disconnected before replying.
	ErrBridgeClosed = errors.New("bridge disconnected")
)

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// conn wraps a single bridge connection.
type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
	remote string
}

type pendingSend struct {
	c  *conn
	ch chan host.SendResult
}

// Bridge manages phone bridge connections and implements host.Runtime.
// Commands go to the most recently connected bridge.
type Bridge struct {
	loop         *eventloop.Loop
	tokenHash      []byte
	writeTimeout   time.Duration
	originPatterns []string
	readLimit      int64

	mu      sync.Mutex
	conns   []*conn
	pending map[string]pendingSend
}

var _ host.Runtime = (*Bridge)(nil)

// Option configures a Bridge.
type Option func(*Bridge)

// WithTokenHash requires bridges to present a bearer token matching the
// bcrypt hash.
func WithTokenHash(hash string) Option {
	return func(b *Bridge) {
		if hash != "" {
			b.tokenHash = []byte(hash)
		}
	}
}

// WithWriteTimeout bounds each WebSocket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.writeTimeout = d }
}

// WithOriginPatterns allows browser origins matching patterns to connect in
// addition to same-host origins. Requests without an Origin header are
// always accepted.
func WithOriginPatterns(patterns ...string) Option {
	return func(b *Bridge) { b.originPatterns = patterns }
}

// WithReadLimit caps the size of inbound frames. Larger frames close the
// connection.
func WithReadLimit(n int64) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.readLimit = n
		}
	}
}

// NewBridge creates a Bridge that posts lifecycle events to loop.
func NewBridge(loop *eventloop.Loop, opts ...Option) *Bridge {
	b := &Bridge{
		loop:         loop,
		writeTimeout: 5 * time.Second,
		readLimit:    defaultReadLimit,
		pending:      make(map[string]pendingSend),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for the named lifecycle event.
func (b *Bridge) Subscribe(name lifecycle.Name, h host.Handler) {
	b.loop.Subscribe(name, h)
}

// HandleWS upgrades the request to a WebSocket and serves the bridge until
// it disconnects.
func (b *Bridge) HandleWS(w http.ResponseWriter, r *http.Request) {
	if !b.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: b.originPatterns,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "remote", r.RemoteAddr, "origin", r.Header.Get("Origin"), "error", err)
		return
	}
	ws.SetReadLimit(b.readLimit)

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{ws: ws, cancel: cancel, remote: r.RemoteAddr}

	b.mu.Lock()
	b.conns = append(b.conns, c)
	b.mu.Unlock()

	slog.Info("bridge connected", "remote", c.remote)

	defer func() {
		b.remove(c)
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && !closedNormally(err) {
				slog.Error("bridge read failed", "remote", c.remote, "error", err)
			}
			return
		}
		b.handleMessage(c, data)
	}
}

func closedNormally(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}

func (b *Bridge) authorized(r *http.Request) bool {
	if b.tokenHash == nil {
		return true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(b.tokenHash, []byte(token)) == nil
}

func (b *Bridge) handleMessage(c *conn, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("bridge message invalid", "remote", c.remote, "error", err)
		return
	}

	switch msg.Type {
	case string(lifecycle.Ready), string(lifecycle.ShowConfiguration), string(lifecycle.WebviewClosed):
		var p host.EventPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				slog.Warn("bridge event payload invalid", "event", msg.Type, "error", err)
				return
			}
		}
		b.loop.Post(lifecycle.New(lifecycle.Name(msg.Type), p.Response))

	case host.ReplyAck, host.ReplyNack:
		var reply host.AppMessageReply
		if err := json.Unmarshal(msg.Payload, &reply); err != nil {
			slog.Warn("bridge reply invalid", "type", msg.Type, "error", err)
			return
		}
		reply.OK = msg.Type == host.ReplyAck
		b.resolve(reply.Result())

	default:
		slog.Debug("bridge message ignored", "type", msg.Type)
	}
}

// OpenRemote sends an openURL command to the current bridge.
func (b *Bridge) OpenRemote(ctx context.Context, url string) error {
	c := b.current()
	if c == nil {
		return ErrNoBridge
	}
	return b.write(ctx, c, host.CommandOpenURL, host.OpenURLPayload{URL: url})
}

// SendSettings sends an appmessage command to the current bridge and waits
// for its ack or nack.
func (b *Bridge) SendSettings(ctx context.Context, msg settings.Message) host.SendResult {
	txID := uuid.NewString()

	c := b.current()
	if c == nil {
		return host.SendResult{TransactionID: txID, Err: ErrNoBridge}
	}

	ch := make(chan host.SendResult, 1)
	b.mu.Lock()
	b.pending[txID] = pendingSend{c: c, ch: ch}
	b.mu.Unlock()

	if err := b.write(ctx, c, host.CommandAppMessage, host.NewAppMessage(txID, msg)); err != nil {
		b.forget(txID)
		return host.SendResult{TransactionID: txID, Err: err}
	}

	select {
	case res := <-ch:
		return res
	case <-ctx.Done():
		b.forget(txID)
		return host.SendResult{TransactionID: txID, Err: ctx.Err()}
	}
}

// ConnectionCount returns the number of connected bridges.
func (b *Bridge) ConnectionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

func (b *Bridge) write(ctx context.Context, c *conn, typ string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	frame, err := json.Marshal(Message{Type: typ, Payload: data})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}

	if b.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.writeTimeout)
		defer cancel()
	}

	if err := c.ws.Write(ctx, websocket.MessageText, frame); err != nil {
		return fmt.Errorf("write %s: %w", typ, err)
	}
	return nil
}

func (b *Bridge) current() *conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.conns) == 0 {
		return nil
	}
	return b.conns[len(b.conns)-1]
}

func (b *Bridge) resolve(res host.SendResult) {
	b.mu.Lock()
	p, ok := b.pending[res.TransactionID]
	delete(b.pending, res.TransactionID)
	b.mu.Unlock()

	if !ok {
		slog.Debug("reply for unknown transaction", "transaction_id", res.TransactionID)
		return
	}
	p.ch <- res
}

func (b *Bridge) forget(txID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, txID)
}

// remove drops c and fails every send still waiting on it.
func (b *Bridge) remove(c *conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, other := range b.conns {
		if other == c {
			b.conns = append(b.conns[:i], b.conns[i+1:]...)
			c.cancel()
			slog.Info("bridge disconnected", "remote", c.remote)
			break
		}
	}

	for txID, p := range b.pending {
		if p.c == c {
			delete(b.pending, txID)
			p.ch <- host.SendResult{TransactionID: txID, Err: ErrBridgeClosed}
		}
	}
}
