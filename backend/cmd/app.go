package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/adwski/chat-relay/backend/config"
	httpServer "github.com/adwski/chat-relay/backend/server/http"
	websocketServer "github.com/adwski/chat-relay/backend/server/websocket"
	"github.com/adwski/chat-relay/backend/service"
	store "github.com/adwski/chat-relay/backend/storage/memory"
	sw "github.com/adwski/chat-relay/backend/switch"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger = logger.Level(cfg.LogLevel)

	rooms, err := store.NewRoomStore(store.DefaultCatalog(), 0)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create room store")
	}
	sessions := store.NewSessionStore()

	svc := service.NewService(service.Config{
		Sessions:  sessions,
		Typing:    store.NewTypingStore(),
		RoomStore: rooms,
		Switch:    sw.NewSwitch(&logger),
		Logger:    &logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:       &logger,
		RelayService: svc,
		BaseContext:  ctx,
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:      &logger,
		RoomCatalog: rooms,
		Sessions:    sessions,
		Socket:      wsSrv,
		StaticDir:   cfg.StaticDir,
		ListenAddr:  cfg.ListenAddr(),
	})

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 1)
	)
	wg.Add(2)
	go svc.Run(ctx, wg)
	go httpSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}
