package roomstate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	bonkroom "github.com/bonkroom/server"
)

// joinRequest is the decoded payload of an inbound JOIN_REQUEST (spec.md
// §4.F). Level is left as json.RawMessage because the wire sends it as
// either a number or a numeric string depending on client build, and the
// onlyAllowNumbers restriction is checked on its literal text.
type joinRequest struct {
	UserName     string          `json:"userName"`
	Guest        bool            `json:"guest"`
	Level        json.RawMessage `json:"level"`
	Avatar       json.RawMessage `json:"avatar"`
	RoomPassword *string         `json:"roomPassword"`
}

// levelText returns the literal text of the level argument, stripping the
// surrounding quotes a JSON string would carry, so digit-only validation
// sees the same characters a number or a numeric string would produce.
func (j joinRequest) levelText() string {
	s := strings.TrimSpace(string(j.Level))
	return strings.Trim(s, `"`)
}

func (j joinRequest) levelInt() (int, bool) {
	n, err := strconv.Atoi(j.levelText())
	if err != nil {
		return 0, false
	}
	return n, true
}

// handleJoinRequest runs the admission pipeline of spec.md §4.F in order,
// rejecting at the first failing stage with the listed ERROR_MESSAGE code.
// The connection stays open on rejection; only a successful run allocates a
// slot.
func (e *Engine) handleJoinRequest(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var req joinRequest
	if !decodeArg(args, 0, &req) {
		return // malformed JSON / wrong shape: protocol violation, drop silently (§7)
	}

	if e.room.Closed {
		e.unicast(conn, bonkroom.OpOutErrorMessage, bonkroom.ErrRoomClosed)
		return
	}

	if e.bans.IsBanned(conn.RemoteAddr()) {
		e.unicast(conn, bonkroom.OpOutErrorMessage, bonkroom.ErrBanned)
		return
	}

	if _, already := e.connToSlot[conn.ID()]; already {
		return // silently ignore a second JOIN_REQUEST on an already-admitted connection
	}

	if !e.checkRatelimit(conn, bonkroom.ActionJoining) {
		return
	}

	restrictions := e.cfg.Restrictions

	if restrictions.Usernames.NoDuplicates && e.players.FindByName(req.UserName) != -1 {
		e.unicast(conn, bonkroom.OpOutErrorMessage, bonkroom.ErrAlreadyInRoom)
		return
	}

	if restrictions.Usernames.MaxLength > 0 && len(req.UserName) > restrictions.Usernames.MaxLength {
		e.unicast(conn, bonkroom.OpOutErrorMessage, bonkroom.ErrUsernameTooLong)
		return
	}

	if restrictions.Usernames.NoEmptyNames && req.UserName == "" {
		e.unicast(conn, bonkroom.OpOutErrorMessage, bonkroom.ErrUsernameEmpty)
		return
	}

	if restrictions.Usernames.DisallowRegex != "" {
		if re, err := regexp.Compile(restrictions.Usernames.DisallowRegex); err == nil && re.MatchString(req.UserName) {
			e.unicast(conn, bonkroom.OpOutErrorMessage, bonkroom.ErrUsernameInvalid)
			return
		}
	}

	if restrictions.Levels.MinLevel > 0 && req.Guest {
		e.unicast(conn, bonkroom.OpOutErrorMessage, bonkroom.ErrGuestsNotAllowed)
		return
	}

	levelN, levelIsNumeric := req.levelInt()

	if restrictions.Levels.MinLevel > 0 {
		if !levelIsNumeric || levelN < restrictions.Levels.MinLevel {
			e.unicast(conn, bonkroom.OpOutErrorMessage, bonkroom.ErrXPTooLow)
			return
		}
	}
	if restrictions.Levels.MaxLevel > 0 {
		if !levelIsNumeric || levelN > restrictions.Levels.MaxLevel {
			e.unicast(conn, bonkroom.OpOutErrorMessage, bonkroom.ErrXPTooHigh)
			return
		}
	}
	if restrictions.Levels.OnlyAllowNumbers && !isAllDigits(req.levelText()) {
		e.unicast(conn, bonkroom.OpOutErrorMessage, bonkroom.ErrXPInvalid)
		return
	}

	if e.room.HasPassword() {
		if req.RoomPassword == nil || *req.RoomPassword != e.room.Password {
			e.unicast(conn, bonkroom.OpOutErrorMessage, bonkroom.ErrPasswordWrong)
			return
		}
	}

	if e.cfg.Server.MaxPlayers > 0 && e.room.PlayerCount >= e.cfg.Server.MaxPlayers {
		e.unicast(conn, bonkroom.OpOutErrorMessage, bonkroom.ErrRoomFull)
		return
	}

	e.admitLocked(conn, req, levelN, levelIsNumeric)
}

// isAllDigits reports whether s is non-empty and every rune is an ASCII
// digit (spec.md §4.F stage 12, onlyAllowNumbers).
func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// admitLocked performs the successful-admission side effects of §4.F: slot
// allocation, SERVER_INFORM to the joiner, PLAYER_JOINED to everyone else,
// the chat-log line, and - when the room has no host and autoAssignHost is
// set - the server's host-impersonation HOST_INFORM_IN_LOBBY packet
// (spec.md §9 "Host impersonation", the sole place the server originates a
// "host" packet).
func (e *Engine) admitLocked(conn bonkroom.Conn, req joinRequest, levelN int, levelIsNumeric bool) {
	var level json.RawMessage
	if e.cfg.Restrictions.Levels.CensorLevels {
		level = json.RawMessage(`"-"`)
	} else {
		level = req.Level
	}

	team := bonkroom.TeamFFA
	if e.room.GameSettings.TeamsLocked {
		team = bonkroom.TeamSpectate
	}

	slot := Slot{
		UserName:   req.UserName,
		Guest:      req.Guest,
		Level:      level,
		Team:       team,
		Avatar:     req.Avatar,
		PeerID:     "invalid",
		ConnID:     conn.ID(),
		RemoteAddr: conn.RemoteAddr(),
		conn:       conn,
	}

	id := e.players.Allocate(slot)
	e.connToSlot[conn.ID()] = id
	e.room.PlayerCount++

	hostID := e.room.HostID
	autoAssigned := false
	if !e.room.HasHost() && e.cfg.Server.AutoAssignHost {
		e.room.HostID = id
		hostID = id
		autoAssigned = true
	}

	playerInfo := e.playerInfoArrayLocked()

	e.unicast(conn, bonkroom.OpOutServerInform,
		id, hostID, playerInfo, e.room.GameStartTime, e.room.GameSettings.TeamsLocked, 0, "invalid", nil)

	e.broadcastExcept(id, bonkroom.OpOutPlayerJoined,
		id, "invalid", req.UserName, req.Guest, level, team, req.Avatar)

	e.logLine(fmt.Sprintf("* %s joined the game", req.UserName))

	if autoAssigned {
		e.unicast(conn, bonkroom.OpOutHostInformLobby, id, e.room.GameSettings.Clone())
	}
}

// playerInfoArrayLocked builds the array of per-player info SERVER_INFORM
// carries, in ascending id order (spec.md §4.F).
func (e *Engine) playerInfoArrayLocked() []playerInfo {
	var out []playerInfo
	e.players.Iterate(func(s Slot) {
		out = append(out, playerInfo{
			ID:       s.ID,
			UserName: s.UserName,
			Guest:    s.Guest,
			Level:    s.Level,
			Team:     s.Team,
			Avatar:   s.Avatar,
			Ready:    s.Ready,
			Tabbed:   s.Tabbed,
			PeerID:   s.PeerID,
		})
	})
	return out
}

// playerInfo is the wire shape of one SERVER_INFORM player-array entry.
type playerInfo struct {
	ID       int             `json:"id"`
	UserName string          `json:"userName"`
	Guest    bool            `json:"guest"`
	Level    json.RawMessage `json:"level"`
	Team     bonkroom.Team   `json:"team"`
	Avatar   json.RawMessage `json:"avatar"`
	Ready    bool            `json:"ready"`
	Tabbed   bool            `json:"tabbed"`
	PeerID   string          `json:"peerId"`
}

// broadcastExcept fans (opcode, args...) out to every connected client
// except the player slot except (spec.md §4.F's PLAYER_JOINED is not echoed
// back to the joiner, who already got SERVER_INFORM).
func (e *Engine) broadcastExcept(except int, opcode string, args ...any) {
	e.players.Iterate(func(s Slot) {
		if s.ID == except || s.conn == nil {
			return
		}
		e.unicast(s.conn, opcode, args...)
	})
}
