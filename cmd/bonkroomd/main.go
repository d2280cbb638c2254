// Command bonkroomd runs one bonkroom room as a standalone process: it
// loads configuration, opens the ban store, binds the websocket transport
// to the room engine, serves the HTTP metadata endpoint on the same "/",
// and drives the interactive admin console on stdin. Grounded on the
// teacher's examples/js-chat/main.go wiring style.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bonkroom/server/internal/admin"
	"github.com/bonkroom/server/internal/banstore"
	"github.com/bonkroom/server/internal/chatlog"
	"github.com/bonkroom/server/internal/config"
	"github.com/bonkroom/server/internal/httpstatus"
	"github.com/bonkroom/server/internal/logging"
	"github.com/bonkroom/server/internal/roomstate"
	"github.com/bonkroom/server/ws"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Setup(cfg.Logger)

	bans, err := banstore.Load(cfg.Server.BanListPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Server.BanListPath).Msg("failed to load ban list")
	}

	chat := chatlog.New(cfg.Server.ChatLogDir, cfg.Server.TimeStampFormat)
	room := roomstate.New(cfg, bans, chat)

	server := ws.New(ws.NewConfig(
		fmt.Sprintf(":%d", cfg.Server.Port),
		nil,
		ws.AllOrigins(),
		httpstatus.Handler(room),
		room.OnConnect,
		room.OnDisconnect,
	))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := room.Bind(ctx, server); err != nil {
		log.Fatal().Err(err).Msg("failed to register room handlers")
	}

	if cfg.Server.UseHTTPS {
		if cfg.Server.TLSCertFile == "" || cfg.Server.TLSKeyFile == "" {
			log.Fatal().Msg("useHttps is set but tlsCertFile/tlsKeyFile are missing")
		}
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting bonkroom")
		if err := server.Start(ctx); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	console := admin.New(room, os.Stdout)
	go console.Run(os.Stdin)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	cancel()

	if _, err := room.SaveChatLog(); err != nil {
		log.Error().Err(err).Msg("failed to flush chat log on shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop server cleanly")
	}
}
