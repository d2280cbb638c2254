// Package bonkroom provides a self-hosted realtime game-room server for the bonk.io
// wire protocol: one process hosting one shared room (lobby and in-game state, host
// election, teams, game settings, chat, ban list) for unmodified game clients.
//
// # Architecture
//
// The room is reached over WebSocket. Every application message is a text frame
// carrying a JSON array whose first element is a numeric opcode string and whose
// remaining elements are the opcode's positional arguments - the game's own wire
// dialect, not a protocol of this project's choosing. internal/protocol implements
// that codec; internal/ws implements the transport (connection accept, per-connection
// flood control, keepalive); internal/roomstate implements the admission pipeline,
// the room state machine, and the opcode dispatcher described in spec.md.
//
// # Quick Start
//
//	import (
//	    "github.com/bonkroom/server/internal/banstore"
//	    "github.com/bonkroom/server/internal/chatlog"
//	    "github.com/bonkroom/server/internal/config"
//	    "github.com/bonkroom/server/internal/httpstatus"
//	    "github.com/bonkroom/server/internal/roomstate"
//	    "github.com/bonkroom/server/internal/ws"
//	)
//
//	cfg, _ := config.Load(os.Args[1:])
//	bans, _ := banstore.Load(cfg.Server.BanListPath)
//	chat := chatlog.New(cfg.Server.ChatLogDir, cfg.Server.TimeStampFormat)
//	room := roomstate.New(cfg, bans, chat)
//	server := ws.New(&ws.ServerConfig{
//	    Addr:               fmt.Sprintf(":%d", cfg.Server.Port),
//	    CheckOrigin:        ws.AllOrigins(),
//	    Metadata:           httpstatus.Handler(room),
//	    OnConnect:          room.OnConnect,
//	    OnClientDisconnect: room.OnDisconnect,
//	})
//	room.Bind(ctx, server)
//	server.Start(ctx)
//
// # Scope
//
// Out of scope for this package: the admin console (cmd/bonkroomd is a thin wrapper),
// TLS termination (left to the operator or a reverse proxy), and peer-to-peer
// negotiation (the wire protocol's peerId field is accepted and echoed back as
// "invalid", never interpreted).
package bonkroom
