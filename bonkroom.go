package bonkroom

import (
	"context"
	"encoding/json"
)

// Server is the transport-facing surface the room engine drives. It accepts
// connections, decodes inbound opcode frames, and fans outbound frames back out.
//
// Implementations execute each registered handler asynchronously (fire-and-forget,
// the same pattern the underlying websocket layer uses): a handler decides if and
// when to respond by calling back into the Conn it is given.
type Server interface {
	// Start begins listening for connections in the background and returns once
	// the listener is running, or with the error that kept it from starting. The
	// server then keeps running until Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully closes every connection and shuts down the listener.
	Stop(ctx context.Context) error

	// RegisterHandler installs the handler invoked for every inbound frame whose
	// opcode matches. Unknown opcodes are logged and dropped; they never reach a
	// handler and never close the connection. Each element of args is the raw
	// JSON of one positional wire argument - handlers unmarshal only the ones
	// they need.
	RegisterHandler(ctx context.Context, opcode string, handler func(conn Conn, args []json.RawMessage)) error

	// Broadcast encodes (opcode, args...) and sends it to every connected
	// client, in the order handlers are invoked for the inbound packet that
	// triggered it.
	Broadcast(ctx context.Context, opcode string, args ...any) error
}

// Conn is a single connected client as seen by the room engine. It carries no
// game state of its own - that lives in the player table, keyed by slot id - only
// the transport identity needed to send frames and to key bans and ratelimits.
type Conn interface {
	// ID returns the connection's internal correlation id, assigned once at
	// accept time and stable for the connection's lifetime. It is distinct from
	// the player slot id the admission pipeline allocates: this id exists before
	// (and sometimes without) a slot ever being created.
	ID() string

	// RemoteAddr returns the address bans and ratelimits are keyed on.
	RemoteAddr() string

	// Context is cancelled when the connection closes.
	Context() context.Context

	// Send encodes (opcode, args...) with the wire codec and queues it for
	// delivery to this connection alone.
	Send(ctx context.Context, opcode string, args ...any) error

	// Close closes the connection with the normal closure code.
	Close(ctx context.Context) error

	// CloseWithCode closes the connection with a specific close code and reason.
	CloseWithCode(ctx context.Context, code int, reason string) error

	// IsAlive reports whether the connection is still open.
	IsAlive() bool
}
