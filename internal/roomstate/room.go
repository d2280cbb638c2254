package roomstate

import bonkroom "github.com/bonkroom/server"

// Room is the singleton room-wide state described in spec.md §3/§4.E: a
// straight field container with accessors. Invariant maintenance lives in
// the dispatcher and admin ops, not here.
type Room struct {
	HostID        int // -1 means no host
	RoomName      string
	Password      string // empty means no password
	GameSettings  bonkroom.GameSettings
	GameStartTime int64 // wall-clock ms; 0 means lobby
	PlayerCount   int
	Closed        bool
}

// NewRoom returns a room in the lobby state, seeded with the given startup
// name, password, and default game settings (spec.md §6 "Configuration").
func NewRoom(name, password string, gs bonkroom.GameSettings) *Room {
	return &Room{
		HostID:       -1,
		RoomName:     name,
		Password:     password,
		GameSettings: gs,
	}
}

// HasPassword reports whether a non-empty room password is set.
func (r *Room) HasPassword() bool {
	return r.Password != ""
}

// HasHost reports whether a player currently holds HostID.
func (r *Room) HasHost() bool {
	return r.HostID != -1
}

// InLobby reports whether the room has not yet started a game since the
// last RETURN_TO_LOBBY or session start (spec.md §3, GLOSSARY "Lobby vs
// in-game").
func (r *Room) InLobby() bool {
	return r.GameStartTime == 0
}
