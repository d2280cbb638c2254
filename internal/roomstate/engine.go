// Package roomstate implements the session/room engine described in
// spec.md §§3-4: the player table, room-wide state, the admission pipeline,
// the opcode dispatcher, and the admin operations the console calls. It is
// grounded on the teacher's command-pattern wiring (internal/ws.Server as the
// transport, handlers registered per opcode) but the logic inside each
// handler is new: the teacher has no room/lobby/host concept at all.
//
// Concurrency (spec.md §5): every mutation of Room, PlayerTable,
// GameSettings, the ban list, the ratelimiter, and the chat log is
// serialized behind Engine.mu, a single coarse mutex guarding the whole
// room. No handler observes a half-mutated room; ban-file and chat-log
// writes happen while the lock is held, so the next packet on any
// connection waits for them to complete.
package roomstate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	bonkroom "github.com/bonkroom/server"
	"github.com/bonkroom/server/internal/banstore"
	"github.com/bonkroom/server/internal/chatlog"
	"github.com/bonkroom/server/internal/config"
	"github.com/bonkroom/server/internal/ratelimit"
)

// tickRateHz is the game's logical tick rate, used only to compute the
// tickCount argument of leave packets (spec.md GLOSSARY "Game tick").
const tickRateHz = 30

// Clock lets tests control wall-clock time without real time.Now calls.
type Clock func() time.Time

// Engine owns the room's entire mutable state and the opcode handlers that
// mutate it. It supplies the transport's connect/disconnect callbacks
// (OnConnect, OnDisconnect) and registers a handler per inbound opcode on
// the bonkroom.Server given to Bind.
type Engine struct {
	mu sync.Mutex

	cfg *config.Config

	room    *Room
	players *PlayerTable
	bans    *banstore.Store
	limiter *ratelimit.Limiter
	chat    *chatlog.Log

	now Clock

	server     bonkroom.Server
	connToSlot map[string]int // transport Conn.ID() -> player slot id

	closeTimer *time.Timer
}

// New assembles an Engine from cfg and a loaded ban store. chat is the
// append-only buffer flushed by SaveChatLog and on shutdown.
func New(cfg *config.Config, bans *banstore.Store, chat *chatlog.Log) *Engine {
	limiterConfigs := make(map[string]ratelimit.Config, len(cfg.Restrictions.RateLimits))
	for action, rl := range cfg.Restrictions.RateLimits {
		limiterConfigs[action] = ratelimit.Config{
			Amount:    rl.Amount,
			Timeframe: time.Duration(rl.Timeframe) * time.Second,
			Restore:   time.Duration(rl.Restore) * time.Second,
		}
	}

	return &Engine{
		cfg:        cfg,
		room:       NewRoom(cfg.Server.RoomNameOnStartup, cfg.Server.RoomPasswordOnStartup, cfg.GameSettings.Clone()),
		players:    NewPlayerTable(),
		bans:       bans,
		limiter:    ratelimit.New(limiterConfigs),
		chat:       chat,
		now:        time.Now,
		connToSlot: make(map[string]int),
	}
}

// Bind registers every inbound opcode handler (spec.md §6) on server and
// remembers it as the outbound fan-out target for broadcasts and unicasts.
func (e *Engine) Bind(ctx context.Context, server bonkroom.Server) error {
	e.mu.Lock()
	e.server = server
	e.mu.Unlock()

	return e.registerHandlers(ctx, server)
}

// OnConnect is invoked by the transport once a connection's handshake
// completes. The engine does nothing here - a connection without a player
// slot is tracked implicitly by the absence of a connToSlot entry until
// JOIN_REQUEST (spec.md §4.F) succeeds.
func (e *Engine) OnConnect(bonkroom.Conn) {}

// OnDisconnect runs spec.md §4.G's "Disconnect" logic: host reassignment (or
// clearing), the HOST_LEFT/PLAYER_LEFT broadcast, chat-log line, ratelimiter
// cleanup, and slot release.
func (e *Engine) OnDisconnect(conn bonkroom.Conn, voluntary bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.limiter.Forget(conn.RemoteAddr())

	id, ok := e.connToSlot[conn.ID()]
	if !ok {
		return // never completed admission; nothing to release
	}
	delete(e.connToSlot, conn.ID())

	slot, ok := e.players.Get(id)
	if !ok {
		return
	}

	tickCount := e.tickCount()
	wasHost := e.room.HostID == id

	if wasHost && e.cfg.Server.AutoAssignHost {
		newHostID := e.players.FirstOccupiedExcept(id)
		e.room.HostID = newHostID
		e.broadcast(bonkroom.OpOutHostLeft, id, newHostID, tickCount)
		e.logLine(fmt.Sprintf("* %s has left the game (host reassigned)", slot.UserName))
	} else {
		if wasHost {
			e.room.HostID = -1
		}
		e.broadcast(bonkroom.OpOutPlayerLeft, id, tickCount)
		e.logLine(fmt.Sprintf("* %s has left the game", slot.UserName))
	}

	e.players.Release(id)
	e.room.PlayerCount--
}

// tickCount computes round((now - gameStartTime) / (1000/30)) per spec.md
// §4.G. It returns 0 in the lobby (gameStartTime == 0).
func (e *Engine) tickCount() int {
	if e.room.GameStartTime == 0 {
		return 0
	}
	elapsedMs := e.nowMs() - e.room.GameStartTime
	return int((elapsedMs*tickRateHz + 500) / 1000)
}

func (e *Engine) nowMs() int64 {
	return e.now().UnixMilli()
}

// broadcast fans (opcode, args...) out to every occupied player slot's
// connection, in ascending id order. Broadcasting per slot rather than via
// the transport's blanket Broadcast keeps fan-out scoped to admitted
// players (spec.md §4.F distinguishes "everyone else" in the room from
// every open transport connection, some of which may not have a slot yet).
func (e *Engine) broadcast(opcode string, args ...any) {
	e.players.Iterate(func(s Slot) {
		if s.conn == nil {
			return
		}
		e.unicast(s.conn, opcode, args...)
	})
}

// unicast sends (opcode, args...) to a single connection.
func (e *Engine) unicast(conn bonkroom.Conn, opcode string, args ...any) {
	if err := conn.Send(context.Background(), opcode, args...); err != nil {
		log.Debug().Err(err).Str("opcode", opcode).Str("client_id", conn.ID()).Msg("unicast failed")
	}
}

// unicastToSlot looks up the live connection for a player id and sends to
// it. It is a no-op if the id has no connection on record (e.g. raced with
// a disconnect).
func (e *Engine) unicastToSlot(id int, opcode string, args ...any) {
	slot, ok := e.players.Get(id)
	if !ok || slot.conn == nil {
		return
	}
	e.unicast(slot.conn, opcode, args...)
}

func (e *Engine) logLine(content string) {
	e.chat.Append(content)
}

// senderSlot resolves the player slot for an inbound packet's connection. It
// returns ok=false for a connection that has not completed admission - every
// handler treats that as a protocol violation (§7) and drops the packet.
func (e *Engine) senderSlot(conn bonkroom.Conn) (Slot, int, bool) {
	id, ok := e.connToSlot[conn.ID()]
	if !ok {
		return Slot{}, -1, false
	}
	slot, ok := e.players.Get(id)
	return slot, id, ok
}

// checkRatelimit runs one hit of action for conn's address through the
// limiter. On refusal it surfaces the mapped ERROR_MESSAGE (or nothing, for
// the silent administrative classes, §4.B/§9) and reports false.
func (e *Engine) checkRatelimit(conn bonkroom.Conn, action string) bool {
	v := e.limiter.Check(conn.RemoteAddr(), action)
	if v.Allowed {
		return true
	}
	if code, ok := bonkroom.RatelimitErrorCode(action); ok {
		e.unicast(conn, bonkroom.OpOutErrorMessage, code)
	}
	return false
}

// requireHost reports whether id is the current host, unicasting
// ERROR_MESSAGE "not_hosting" and returning false otherwise (spec.md §4.G
// "Host gating"). silent callers (none currently) would skip the emission.
func (e *Engine) requireHost(conn bonkroom.Conn, id int) bool {
	if id == e.room.HostID {
		return true
	}
	e.unicast(conn, bonkroom.OpOutErrorMessage, bonkroom.ErrNotHosting)
	return false
}

// decodeArg is a thin wrapper kept local to roomstate so handlers read as
// "unmarshal argument i into out, bail on failure" without importing
// protocol directly in every handler file.
func decodeArg(args []json.RawMessage, i int, out any) bool {
	if i < 0 || i >= len(args) {
		return false
	}
	return json.Unmarshal(args[i], out) == nil
}
