package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	cfotel "github.com/mephissto/simple-digital/internal/adapter/otel"
)

// Bridges reports how many phone bridges are connected.
type Bridges interface {
	ConnectionCount() int
}

// RouterConfig holds what the router mounts.
type RouterConfig struct {
	Service string
	Host    string // configured host kind, reported by /health

	// BridgePath and Bridge are set when the WebSocket host is active.
	BridgePath string
	Bridge     http.HandlerFunc
	Bridges    Bridges

	// Throttle guards the bridge endpoint. Nil disables it.
	Throttle func(http.Handler) http.Handler
}

// NewRouter builds the relay's HTTP handler.
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(cfotel.HTTPMiddleware(cfg.Service))
	r.Use(chimw.RequestID)
	r.Use(Logger)
	r.Use(chimw.Recoverer)

	r.Get("/health", healthHandler(cfg.Host, cfg.Bridges))

	if cfg.Bridge != nil {
		if cfg.Throttle != nil {
			r.With(cfg.Throttle).Get(cfg.BridgePath, cfg.Bridge)
		} else {
			r.Get(cfg.BridgePath, cfg.Bridge)
		}
	}

	return r
}

type healthStatus struct {
	Status  string `json:"status"`
	Host    string `json:"host"`
	Bridges int    `json:"bridges"`
}

// healthHandler returns an http.HandlerFunc that reports relay health.
func healthHandler(hostKind string, bridges Bridges) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		status := healthStatus{Status: "ok", Host: hostKind}
		if bridges != nil {
			status.Bridges = bridges.ConnectionCount()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(status)
	}
}
