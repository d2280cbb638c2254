package roomstate

import (
	"context"
	"encoding/json"

	bonkroom "github.com/bonkroom/server"
)

// registerHandlers wires every inbound opcode (spec.md §6) to its handler.
// This is the single explicit table spec.md §9 calls for: opcode, handler,
// nothing scattered elsewhere.
func (e *Engine) registerHandlers(ctx context.Context, server bonkroom.Server) error {
	table := map[string]func(bonkroom.Conn, []json.RawMessage){
		bonkroom.OpInJoinRequest:     e.handleJoinRequest,
		bonkroom.OpInTimesync:        e.handleTimesync,
		bonkroom.OpInHostInformLobby: e.handleHostInformLobby,
		bonkroom.OpInHostInformGame:  e.handleHostInformGame,
		bonkroom.OpInChangeOwnTeam:   e.handleChangeOwnTeam,
		bonkroom.OpInChatMessage:     e.handleChatMessage,
		bonkroom.OpInSetReady:        e.handleSetReady,
		bonkroom.OpInMapRequest:      e.handleMapRequest,
		bonkroom.OpInFriendRequest:   e.handleFriendRequest,
		bonkroom.OpInSetTabbed:       e.handleSetTabbed,
		bonkroom.OpInLockTeams:       e.handleLockTeams,
		bonkroom.OpInKickBanPlayer:   e.handleKickBanPlayer,
		bonkroom.OpInChangeMode:      e.handleChangeMode,
		bonkroom.OpInChangeRounds:    e.handleChangeRounds,
		bonkroom.OpInChangeMap:       e.handleChangeMap,
		bonkroom.OpInChangeOtherTeam: e.handleChangeOtherTeam,
		bonkroom.OpInChangeBalance:   e.handleChangeBalance,
		bonkroom.OpInToggleTeams:     e.handleToggleTeams,
		bonkroom.OpInTransferHost:    e.handleTransferHost,
		bonkroom.OpInCountdownStart:  e.handleCountdownStart,
		bonkroom.OpInCountdownAbort:  e.handleCountdownAbort,
		bonkroom.OpInSendInputs:      e.handleSendInputs,
		bonkroom.OpInStartGame:       e.handleStartGame,
		bonkroom.OpInReturnToLobby:   e.handleReturnToLobby,
		bonkroom.OpInSaveReplay:      e.handleSaveReplay,
	}

	for opcode, handler := range table {
		if err := server.RegisterHandler(ctx, opcode, handler); err != nil {
			return err
		}
	}
	return nil
}

// handleTimesync replies to a TIMESYNC request (inbound "18") with outbound
// REPLY_TIMESYNC (23){id, result: now_ms}. Per spec.md §4.A this must work
// even before admission completes, so it is the one handler that never
// touches e.connToSlot or e.mu beyond what Check-free Send already needs.
func (e *Engine) handleTimesync(conn bonkroom.Conn, args []json.RawMessage) {
	var req struct {
		ID json.RawMessage `json:"id"`
	}
	if !decodeArg(args, 0, &req) {
		return
	}
	e.unicast(conn, bonkroom.OpOutReplyTimesync, struct {
		ID     json.RawMessage `json:"id"`
		Result int64           `json:"result"`
	}{ID: req.ID, Result: e.now().UnixMilli()})
}

// handleChangeOwnTeam implements spec.md §4.G "Change own team": host-only
// when teams are locked, otherwise any admitted player may set their own
// team.
func (e *Engine) handleChangeOwnTeam(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}

	var req struct {
		Team bonkroom.Team `json:"team"`
	}
	if !decodeArg(args, 0, &req) {
		return
	}

	if e.room.GameSettings.TeamsLocked && !e.requireHost(conn, id) {
		return
	}
	if !e.checkRatelimit(conn, bonkroom.ActionChangingTeams) {
		return
	}

	e.players.Mutate(id, func(s *Slot) { s.Team = req.Team })
	e.broadcast(bonkroom.OpOutChangeTeam, id, req.Team)
}

// handleChatMessage implements spec.md §4.G "Chat message": truncate,
// broadcast, log. rl=chatting.
func (e *Engine) handleChatMessage(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if !e.checkRatelimit(conn, bonkroom.ActionChatting) {
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if !decodeArg(args, 0, &req) {
		return
	}

	msg := req.Message
	if max := e.cfg.Restrictions.MaxChatMessageLength; max > 0 && len(msg) > max {
		msg = msg[:max]
	}

	e.broadcast(bonkroom.OpOutChatMessage, id, msg)
	e.logLine(slot.UserName + ": " + msg)
}

// handleSetReady implements spec.md §4.G "Set ready". rl=readying.
func (e *Engine) handleSetReady(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if !e.checkRatelimit(conn, bonkroom.ActionReadying) {
		return
	}

	var ready bool
	if !decodeArg(args, 0, &ready) {
		return
	}

	e.players.Mutate(id, func(s *Slot) { s.Ready = ready })
	e.broadcast(bonkroom.OpOutSetReady, id, ready)
}

// handleSetTabbed implements spec.md §4.G "Set tabbed".
func (e *Engine) handleSetTabbed(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}

	var tabbed bool
	if !decodeArg(args, 0, &tabbed) {
		return
	}

	e.players.Mutate(id, func(s *Slot) { s.Tabbed = tabbed })
	e.broadcast(bonkroom.OpOutSetTabbed, id, tabbed)
}

// handleMapRequest implements spec.md §4.G "Map request": different fan-out
// depending on whether a host exists.
func (e *Engine) handleMapRequest(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}

	var req struct {
		M          json.RawMessage `json:"m"`
		MapName    string          `json:"mapname"`
		MapAuthor  string          `json:"mapauthor"`
	}
	if !decodeArg(args, 0, &req) {
		return
	}

	if !e.room.HasHost() {
		e.broadcast(bonkroom.OpOutMapRequestNonHost, req.MapName, req.MapAuthor, id)
		e.logLine("* " + slot.UserName + " has requested the map " + req.MapName + " by " + req.MapAuthor)
		return
	}

	e.players.Iterate(func(s Slot) {
		if s.conn == nil || s.ID == e.room.HostID {
			return
		}
		e.unicast(s.conn, bonkroom.OpOutMapRequestNonHost, req.MapName, req.MapAuthor, id)
	})
	e.unicastToSlot(e.room.HostID, bonkroom.OpOutMapRequestHost, req.M, id)
	e.logLine("* " + slot.UserName + " has requested the map " + req.MapName + " by " + req.MapAuthor)
}

// handleFriendRequest implements spec.md §4.G "Friend request": a bare
// unicast to the target id, no ratelimit, no host gating.
func (e *Engine) handleFriendRequest(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}

	var req struct {
		TargetID int `json:"targetId"`
	}
	if !decodeArg(args, 0, &req) {
		return
	}

	e.unicastToSlot(req.TargetID, bonkroom.OpOutFriendRequest, id)
}

// handleLockTeams implements spec.md §4.G "Lock teams" [host, rl=changingTeams].
func (e *Engine) handleLockTeams(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if !e.requireHost(conn, id) {
		return
	}
	if !e.checkRatelimit(conn, bonkroom.ActionChangingTeams) {
		return
	}

	var locked bool
	if !decodeArg(args, 0, &locked) {
		return
	}

	e.room.GameSettings.TeamsLocked = locked
	e.broadcast(bonkroom.OpOutLockTeams, locked)
}

// handleKickBanPlayer implements spec.md §4.G "Kick/ban" [host]: dispatches
// to the admin ops shared with the console (spec.md §4.I).
func (e *Engine) handleKickBanPlayer(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if !e.requireHost(conn, id) {
		return
	}

	var req struct {
		TargetID int  `json:"targetId"`
		Ban      bool `json:"ban"`
	}
	if !decodeArg(args, 0, &req) {
		return
	}

	if req.Ban {
		e.banByIDLocked(req.TargetID)
	} else {
		e.kickByIDLocked(req.TargetID)
	}
}

// handleChangeMode implements spec.md §4.G "Change mode" [host, rl=changingMode].
func (e *Engine) handleChangeMode(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if !e.requireHost(conn, id) {
		return
	}
	if !e.checkRatelimit(conn, bonkroom.ActionChangingMode) {
		return
	}

	var req struct {
		Ga string `json:"ga"`
		Mo string `json:"mo"`
	}
	if !decodeArg(args, 0, &req) {
		return
	}

	e.room.GameSettings.Engine = req.Ga
	e.room.GameSettings.Mode = req.Mo
	e.broadcast(bonkroom.OpOutChangeMode, req.Ga, req.Mo)
}

// handleChangeRounds implements spec.md §4.G "Change rounds" [host].
func (e *Engine) handleChangeRounds(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if !e.requireHost(conn, id) {
		return
	}

	var wins int
	if !decodeArg(args, 0, &wins) {
		return
	}

	e.room.GameSettings.RoundsToWin = wins
	e.broadcast(bonkroom.OpOutChangeRounds, wins)
}

// handleChangeMap implements spec.md §4.G "Change map" [host, rl=changingMap].
func (e *Engine) handleChangeMap(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if !e.requireHost(conn, id) {
		return
	}
	if !e.checkRatelimit(conn, bonkroom.ActionChangingMap) {
		return
	}

	var req struct {
		Map json.RawMessage `json:"map"`
	}
	if !decodeArg(args, 0, &req) {
		return
	}

	e.room.GameSettings.Map = string(req.Map)
	e.broadcast(bonkroom.OpOutChangeMap, req.Map)
}

// handleChangeOtherTeam implements spec.md §4.G "Change other team" [host, rl=changingTeams].
func (e *Engine) handleChangeOtherTeam(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if !e.requireHost(conn, id) {
		return
	}
	if !e.checkRatelimit(conn, bonkroom.ActionChangingTeams) {
		return
	}

	var req struct {
		TargetID int           `json:"targetId"`
		Team     bonkroom.Team `json:"team"`
	}
	if !decodeArg(args, 0, &req) {
		return
	}

	if !e.players.Mutate(req.TargetID, func(s *Slot) { s.Team = req.Team }) {
		return
	}
	e.broadcast(bonkroom.OpOutChangeTeam, req.TargetID, req.Team)
}

// handleChangeBalance implements spec.md §4.G "Change balance" [host]. It
// shares outbound opcode 18 with CHANGE_TEAM; args disambiguate (spec.md §9
// "Opcode collisions" - this must not be "fixed").
func (e *Engine) handleChangeBalance(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if !e.requireHost(conn, id) {
		return
	}

	var req struct {
		TargetID int `json:"targetId"`
		Balance  int `json:"balance"`
	}
	if !decodeArg(args, 0, &req) {
		return
	}

	if e.room.GameSettings.Balance == nil {
		e.room.GameSettings.Balance = map[int]int{}
	}
	e.room.GameSettings.Balance[req.TargetID] = req.Balance
	e.broadcast(bonkroom.OpOutChangeTeam, req.TargetID, req.Balance)
}

// handleToggleTeams implements spec.md §4.G "Toggle teams" [host].
func (e *Engine) handleToggleTeams(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if !e.requireHost(conn, id) {
		return
	}

	var on bool
	if !decodeArg(args, 0, &on) {
		return
	}

	e.room.GameSettings.TeamsOn = on
	e.broadcast(bonkroom.OpOutToggleTeams, on)
}

// handleTransferHost implements spec.md §4.G "Transfer host" [host,
// rl=transferringHost].
func (e *Engine) handleTransferHost(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	slot, id, ok := e.senderSlot(conn)
	_ = slot
	if !ok {
		return
	}
	if !e.requireHost(conn, id) {
		return
	}
	if !e.checkRatelimit(conn, bonkroom.ActionTransferringHost) {
		return
	}

	var req struct {
		TargetID int `json:"id"`
	}
	if !decodeArg(args, 0, &req) {
		return
	}

	target, ok := e.players.Get(req.TargetID)
	if !ok {
		return
	}

	e.transferHostLocked(id, req.TargetID, target.UserName)
}

// transferHostLocked is the shared core of the in-game TRANSFER_HOST
// handler and the admin console's transferHost op (spec.md §4.I). Callers
// must already hold e.mu.
func (e *Engine) transferHostLocked(oldHostID, newHostID int, newHostName string) {
	e.room.HostID = newHostID
	e.broadcast(bonkroom.OpOutTransferHost, oldHostID, newHostID)
	e.logLine("* " + newHostName + " is now the game host")
}

// handleCountdownStart implements spec.md §4.G "Countdown start" [host,
// rl=startGameCountdown].
func (e *Engine) handleCountdownStart(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if !e.requireHost(conn, id) {
		return
	}
	if !e.checkRatelimit(conn, bonkroom.ActionStartGameCountdown) {
		return
	}

	e.broadcast(bonkroom.OpOutCountdownStart)
}

// handleCountdownAbort implements spec.md §4.G "Countdown abort" [host,
// rl=startGameCountdown].
func (e *Engine) handleCountdownAbort(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if !e.requireHost(conn, id) {
		return
	}
	if !e.checkRatelimit(conn, bonkroom.ActionStartGameCountdown) {
		return
	}

	e.broadcast(bonkroom.OpOutCountdownAbort)
}

// handleSendInputs implements spec.md §4.G "Send inputs": relayed verbatim,
// no validation (spec.md §1 Non-goals - no server-side physics).
func (e *Engine) handleSendInputs(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if len(args) == 0 {
		return
	}

	e.players.Iterate(func(s Slot) {
		if s.ID == id || s.conn == nil {
			return
		}
		e.unicast(s.conn, bonkroom.OpOutSendInputs, id, args[0])
	})
}

// handleStartGame implements spec.md §4.G "Start game" [host,
// rl=startingEndingGame]: overwrites GameSettings with the payload's gs,
// stamps gameStartTime, and broadcasts START_GAME.
func (e *Engine) handleStartGame(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if !e.requireHost(conn, id) {
		return
	}
	if !e.checkRatelimit(conn, bonkroom.ActionStartingEndingGame) {
		return
	}

	var req struct {
		Gs bonkroom.GameSettings `json:"gs"`
		Is json.RawMessage       `json:"is"`
	}
	if !decodeArg(args, 0, &req) {
		return
	}

	e.room.GameSettings = req.Gs
	e.room.GameStartTime = e.nowMs()
	e.broadcast(bonkroom.OpOutStartGame, e.room.GameStartTime, req.Is, req.Gs)
}

// handleReturnToLobby implements spec.md §4.G "Return to lobby" [host,
// rl=startingEndingGame]. Returning to the lobby zeroes gameStartTime so
// InLobby() (spec.md GLOSSARY) reports true again.
func (e *Engine) handleReturnToLobby(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if !e.requireHost(conn, id) {
		return
	}
	if !e.checkRatelimit(conn, bonkroom.ActionStartingEndingGame) {
		return
	}

	e.room.GameStartTime = 0
	e.broadcast(bonkroom.OpOutReturnToLobby)
}

// handleSaveReplay implements spec.md §4.G "Save replay": a bare broadcast
// naming the sender, no host gating, no ratelimit.
func (e *Engine) handleSaveReplay(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}

	e.broadcast(bonkroom.OpOutSaveReplay, id)
}

// handleHostInformLobby implements spec.md §4.G "Inform-in-lobby" [host]:
// forwards {sid, gs} to the target as HOST_INFORM_IN_LOBBY (21).
func (e *Engine) handleHostInformLobby(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if !e.requireHost(conn, id) {
		return
	}

	var req struct {
		SID int                   `json:"sid"`
		GS  bonkroom.GameSettings `json:"gs"`
	}
	if !decodeArg(args, 0, &req) {
		return
	}

	e.unicastToSlot(req.SID, bonkroom.OpOutHostInformLobby, req.SID, req.GS)
}

// handleHostInformGame implements spec.md §4.G "Inform-in-game" [host]:
// forwards {sid, allData} to the target as HOST_INFORM_IN_GAME (48).
func (e *Engine) handleHostInformGame(conn bonkroom.Conn, args []json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, id, ok := e.senderSlot(conn)
	if !ok {
		return
	}
	if !e.requireHost(conn, id) {
		return
	}

	var req struct {
		SID     int             `json:"sid"`
		AllData json.RawMessage `json:"allData"`
	}
	if !decodeArg(args, 0, &req) {
		return
	}

	e.unicastToSlot(req.SID, bonkroom.OpOutHostInformGame, req.SID, req.AllData)
}
