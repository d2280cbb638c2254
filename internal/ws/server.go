// Package ws implements the transport described in spec.md §6: a WebSocket
// endpoint at "/" with permissive CORS, exposing "connection opened / text
// frame received / closed" to the room engine, plus the same path's plain-GET
// metadata response. It is grounded on the teacher's internal/websocket
// package (gorilla/websocket, a client write pump with ping keepalive, a
// sync.Map client registry) with the binary command-ID protocol swapped for
// this project's JSON-array text-frame codec (internal/protocol) and the
// command ids, which were uint32, swapped for the wire's string opcodes.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/bonkroom/server"
	"github.com/bonkroom/server/internal/protocol"
)

// CheckOriginFn validates the origin of a WebSocket connection request.
type CheckOriginFn = func(r *http.Request) bool

// OnConnectFn is called after the handshake completes, before the read loop starts.
type OnConnectFn = func(client bonkroom.Conn)

// OnDisconnectFn is called once the read loop exits. voluntary is true when the
// client closed the connection, false for server-initiated or abnormal closes.
type OnDisconnectFn = func(client bonkroom.Conn, voluntary bool)

// MetadataFn renders the plain GET "/" response (spec.md §6's HTTP metadata);
// the room engine supplies it, the transport only decides whether a request
// is a websocket upgrade or a metadata request.
type MetadataFn = func(w http.ResponseWriter, r *http.Request)

// FloodControlConfig bounds how many raw frames per second a single
// connection may submit before the opcode is even decoded. This is connection
// flood control, not the spec's per-action ratelimiter (internal/ratelimit).
type FloodControlConfig struct {
	FramesPerSecond rate.Limit
	Burst           int
	Enabled         bool
}

// DefaultFloodControl allows 100 frames/second per connection with a burst of 200.
func DefaultFloodControl() *FloodControlConfig {
	return &FloodControlConfig{FramesPerSecond: 100, Burst: 200, Enabled: true}
}

// NoFloodControl disables connection-level flood control.
func NoFloodControl() *FloodControlConfig {
	return &FloodControlConfig{Enabled: false}
}

// ServerConfig configures a Server.
type ServerConfig struct {
	Addr               string
	FloodControl       *FloodControlConfig
	CheckOrigin        CheckOriginFn
	Metadata           MetadataFn
	OnConnect          OnConnectFn
	OnClientDisconnect OnDisconnectFn
}

// Server implements bonkroom.Server over a gorilla/websocket upgrader.
type Server struct {
	addr     string
	server   *http.Server
	clients  sync.Map // map[string]*Client
	handlers sync.Map // map[string]func(bonkroom.Conn, []json.RawMessage)

	floodControl *FloodControlConfig
	metadata     MetadataFn

	mu           sync.RWMutex
	running      bool
	upgrader     websocket.Upgrader
	onConnect    OnConnectFn
	onDisconnect OnDisconnectFn
}

// New creates a Server from cfg.
func New(cfg *ServerConfig) *Server {
	if cfg.FloodControl == nil {
		cfg.FloodControl = DefaultFloodControl()
	}
	return &Server{
		addr:         cfg.Addr,
		floodControl: cfg.FloodControl,
		metadata:     cfg.Metadata,
		onConnect:    cfg.OnConnect,
		onDisconnect: cfg.OnClientDisconnect,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Start begins listening for connections.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("ws: server already running")
	}
	s.running = true
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{Addr: s.addr, Handler: mux}

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return err
	case <-ctx.Done():
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(stopCtx)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop closes every connection and shuts down the listener.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.clients.Range(func(_, value any) bool {
		if client, ok := value.(*Client); ok {
			client.Close(ctx)
		}
		return true
	})

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// RegisterHandler installs the handler for opcode.
func (s *Server) RegisterHandler(ctx context.Context, opcode string, handler func(client bonkroom.Conn, args []json.RawMessage)) error {
	s.handlers.Store(opcode, handler)
	return nil
}

// handleRoot serves both halves of spec.md §6's "/" endpoint: a websocket
// upgrade for game clients, a plain JSON GET for the metadata probe.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		if s.metadata != nil {
			s.metadata(w, r)
			return
		}
		http.NotFound(w, r)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "failed to upgrade connection", http.StatusBadRequest)
		return
	}

	client := NewClient(conn, r.RemoteAddr, s.floodControl)
	s.clients.Store(client.ID(), client)

	go s.handleClient(client)
}

func (s *Server) handleClient(client *Client) {
	var readErr error
	defer func() {
		voluntary := client.Context().Err() == nil &&
			websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway)
		if s.onDisconnect != nil {
			s.onDisconnect(client, voluntary)
		}
		s.clients.Delete(client.ID())
		client.Close(context.Background())
	}()

	client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.conn.SetPongHandler(func(string) error {
		client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	if s.onConnect != nil {
		s.onConnect(client)
	}

	for {
		select {
		case <-client.Context().Done():
			return
		default:
			_, data, err := client.conn.ReadMessage()
			if err != nil {
				readErr = err
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Debug().Str("client_id", client.ID()).Err(err).Msg("websocket closed unexpectedly")
				}
				return
			}
			client.conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			if !client.checkFloodControl() {
				log.Warn().Str("client_id", client.ID()).Str("remote_addr", client.RemoteAddr()).Msg("connection flood control tripped")
				client.CloseWithCode(context.Background(), websocket.ClosePolicyViolation, "rate limit exceeded")
				return
			}

			opcode, args, err := protocol.Decode(data)
			if err != nil {
				// Malformed frames are protocol violations (§7): drop silently, log, never disconnect.
				log.Debug().Str("client_id", client.ID()).Err(err).Msg("dropped malformed frame")
				continue
			}

			s.dispatch(client, opcode, args)
		}
	}
}

// dispatch looks up and runs the handler for opcode. Unknown opcodes are
// logged and dropped (§4.A); they never disconnect the client. Handlers run
// asynchronously, the same fire-and-forget pattern the teacher uses - the
// room engine is responsible for its own serialization (spec.md §5), not this
// transport.
func (s *Server) dispatch(client *Client, opcode string, args []json.RawMessage) {
	handler, ok := s.handlers.Load(opcode)
	if !ok {
		log.Debug().Str("opcode", opcode).Msg("unknown opcode dropped")
		return
	}
	handlerFunc, ok := handler.(func(bonkroom.Conn, []json.RawMessage))
	if !ok {
		return
	}

	go handlerFunc(client, args)
}

// Broadcast sends (opcode, args...) to every connected client; each client's
// Send encodes its own copy of the frame.
func (s *Server) Broadcast(ctx context.Context, opcode string, args ...any) error {
	s.clients.Range(func(_, value any) bool {
		if client, ok := value.(*Client); ok {
			client.Send(ctx, opcode, args...)
		}
		return true
	})
	return nil
}

// GetClient returns a connected client by id.
func (s *Server) GetClient(id string) (*Client, bool) {
	v, ok := s.clients.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Client), true
}
