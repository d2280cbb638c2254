package roomstate

import (
	"encoding/json"

	bonkroom "github.com/bonkroom/server"
)

// Slot is one occupied or empty player slot in the player table (spec.md §3).
type Slot struct {
	Occupied bool

	ID       int
	UserName string
	Guest    bool
	Level    json.RawMessage // "-" (censored) or the client-reported value, relayed verbatim
	Team     bonkroom.Team
	Avatar   json.RawMessage // opaque, relayed verbatim
	Ready    bool
	Tabbed   bool
	PeerID   string // always "invalid" - reserved, unused (spec.md §1)

	ConnID     string // the transport connection's correlation id
	RemoteAddr string // the address bans and ratelimits are keyed on
	conn       bonkroom.Conn
}
