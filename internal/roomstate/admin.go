// admin.go is the library surface spec.md §4.I describes: plain exported
// methods on Engine, consumed by the external admin console
// (internal/admin). None of this is opcode-triggered; it is invoked
// directly by an operator.
package roomstate

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	bonkroom "github.com/bonkroom/server"
)

// TransferHost sets the room's host to targetID, or strips the host
// entirely when targetID is -1 (spec.md §4.I: "broadcasts TRANSFER_HOST
// with oldHost=-1 sentinel when initiated from admin" describes the
// opposite direction - stripping uses oldHost as the sentinel there; here
// the admin always supplies the real oldHostId it captured, mirroring the
// in-game handler).
func (e *Engine) TransferHost(targetID int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	oldHostID := e.room.HostID

	if targetID == -1 {
		e.room.HostID = -1
		e.broadcast(bonkroom.OpOutTransferHost, oldHostID, -1)
		return nil
	}

	target, ok := e.players.Get(targetID)
	if !ok {
		return fmt.Errorf("roomstate: no player with id %d", targetID)
	}

	e.transferHostLocked(oldHostID, targetID, target.UserName)
	return nil
}

// BanByID bans the player at id: adds (address, username) to the ban store
// and disconnects them (spec.md §4.I "banPlayer"). It reports an error if
// the ban file write fails or no such player is occupied; the ban is
// persisted before the connection is torn down, matching spec.md §5's
// synchronous-write ordering requirement.
func (e *Engine) BanByID(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.banByIDLocked(id)
}

func (e *Engine) banByIDLocked(id int) error {
	slot, ok := e.players.Get(id)
	if !ok {
		return fmt.Errorf("roomstate: no player with id %d", id)
	}

	if err := e.bans.Add(slot.RemoteAddr, slot.UserName); err != nil {
		return fmt.Errorf("roomstate: failed to persist ban: %w", err)
	}

	e.logLine(fmt.Sprintf("* %s was banned", slot.UserName))
	e.disconnectLocked(slot, websocket.ClosePolicyViolation, "banned")
	return nil
}

// KickByID disconnects the player at id without banning them (spec.md §4.I
// "kickPlayer").
func (e *Engine) KickByID(id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.kickByIDLocked(id)
}

func (e *Engine) kickByIDLocked(id int) error {
	slot, ok := e.players.Get(id)
	if !ok {
		return fmt.Errorf("roomstate: no player with id %d", id)
	}

	e.logLine(fmt.Sprintf("* %s was kicked", slot.UserName))
	e.disconnectLocked(slot, websocket.ClosePolicyViolation, "kicked")
	return nil
}

// disconnectLocked closes a slot's connection. The slot itself is released
// by OnDisconnect once the transport observes the close - admin ops never
// mutate the player table directly, so there is exactly one place that does
// (spec.md §4.G "Disconnect").
func (e *Engine) disconnectLocked(slot Slot, code int, reason string) {
	if slot.conn == nil {
		return
	}
	go slot.conn.CloseWithCode(context.Background(), code, reason)
}

// Unban removes username from the ban list (spec.md §4.I "unban").
func (e *Engine) Unban(username string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bans.Remove(username)
}

// PlayerSummary is one row of ListPlayers's output.
type PlayerSummary struct {
	ID       int
	UserName string
	Team     int
	Host     bool
}

// ListPlayers returns every occupied slot's summary, in ascending id order
// (spec.md §4.I "listPlayers").
func (e *Engine) ListPlayers() []PlayerSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []PlayerSummary
	e.players.Iterate(func(s Slot) {
		out = append(out, PlayerSummary{
			ID:       s.ID,
			UserName: s.UserName,
			Team:     int(s.Team),
			Host:     s.ID == e.room.HostID,
		})
	})
	return out
}

// SetRoomName updates the room's display name (spec.md §4.I "setRoomName").
func (e *Engine) SetRoomName(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.room.RoomName = name
}

// SetPassword updates the room password. An empty string clears it (spec.md
// §4.I "setPassword(s|none)").
func (e *Engine) SetPassword(password string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.room.Password = password
}

// SaveChatLog flushes the chat log buffer to disk (spec.md §4.I
// "saveChatLog" / §4.H).
func (e *Engine) SaveChatLog() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chat.Save()
}

// ScheduledClose marks the room closed so the admission pipeline rejects
// all further joins, strips the host, and - if minutes > 0 - arms a
// force-stop timer that calls onForceStop if the room is still non-empty
// after the delay. It returns immediately: it does not wait for playerCount
// to reach 0, and nothing stops the process when the room empties
// (spec.md §4.I "scheduledClose").
func (e *Engine) ScheduledClose(minutes int, onForceStop func()) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.room.Closed = true
	e.room.HostID = -1

	if e.closeTimer != nil {
		e.closeTimer.Stop()
		e.closeTimer = nil
	}

	if minutes > 0 && onForceStop != nil {
		e.closeTimer = time.AfterFunc(time.Duration(minutes)*time.Minute, func() {
			if e.PlayerCount() > 0 {
				onForceStop()
			}
		})
	}
}

// AbortScheduledClose reverses ScheduledClose: reopens the room to new
// joins and cancels any outstanding force-stop timer (spec.md §4.I
// "abortScheduledClose").
func (e *Engine) AbortScheduledClose() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.room.Closed = false
	if e.closeTimer != nil {
		e.closeTimer.Stop()
		e.closeTimer = nil
	}
}

// PlayerCount reports the number of occupied slots; the scheduled-close
// force-stop timer consults it.
func (e *Engine) PlayerCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.room.PlayerCount
}

// RoomSnapshot is the read-only view the HTTP metadata endpoint (spec.md
// §6) and the admin console render.
type RoomSnapshot struct {
	RoomName    string
	HasPassword bool
	PlayerCount int
	MaxPlayers  int
	Engine      string
	Mode        string
}

// Snapshot returns the room's current metadata.
func (e *Engine) Snapshot() RoomSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return RoomSnapshot{
		RoomName:    e.room.RoomName,
		HasPassword: e.room.HasPassword(),
		PlayerCount: e.room.PlayerCount,
		MaxPlayers:  e.cfg.Server.MaxPlayers,
		Engine:      e.room.GameSettings.Engine,
		Mode:        e.room.GameSettings.Mode,
	}
}
