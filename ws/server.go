// Package ws is the public entry point for the transport: a thin wrapper
// around internal/ws, mirroring the teacher's own root/internal split so
// callers depend on stable constructors instead of the internal package.
package ws

import (
	"net/http"

	"github.com/bonkroom/server/internal/ws"
)

type FloodControlConfig = ws.FloodControlConfig
type CheckOriginFn = ws.CheckOriginFn
type MetadataFn = ws.MetadataFn
type OnConnectFn = ws.OnConnectFn
type OnDisconnectFn = ws.OnDisconnectFn
type ServerConfig = *ws.ServerConfig

// New creates a new WebSocket server from cfg.
func New(cfg ServerConfig) *ws.Server {
	return ws.New(cfg)
}

// NewConfig assembles a ServerConfig.
func NewConfig(addr string, floodControl *FloodControlConfig, checkOrigin CheckOriginFn, metadata MetadataFn, onConnect OnConnectFn, onDisconnect OnDisconnectFn) ServerConfig {
	return &ws.ServerConfig{
		Addr:               addr,
		FloodControl:       floodControl,
		CheckOrigin:        checkOrigin,
		Metadata:           metadata,
		OnConnect:          onConnect,
		OnClientDisconnect: onDisconnect,
	}
}

// AllOrigins allows any origin - the bonk.io client's embedding page varies by
// deployment, so the room operator is expected to restrict this at a reverse
// proxy if needed rather than here.
func AllOrigins() CheckOriginFn {
	return func(r *http.Request) bool { return true }
}

// DefaultFloodControl returns the default per-connection flood control.
func DefaultFloodControl() *FloodControlConfig {
	return ws.DefaultFloodControl()
}

// NoFloodControl disables per-connection flood control.
func NoFloodControl() *FloodControlConfig {
	return ws.NoFloodControl()
}
