package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/adwski/chat-relay/backend/model"
	"github.com/rs/zerolog"
)

const (
	defaultQueueSize = 1024
)

var (
	ErrConnect = errors.New("unable to connect")
	ErrStopped = errors.New("dispatcher is stopped")
)

type (
	SessionStore interface {
		Register(id, nickname, roomID string) model.Session
		Get(id string) (model.Session, error)
		UpdateRoom(id, roomID string) error
		Remove(id string) (model.Session, error)
	}

	TypingStore interface {
		Set(id, nickname, roomID string)
		Clear(id string) (string, bool)
		Snapshot(roomID string) []string
	}

	RoomStore interface {
		List() []model.RoomInfo
		Default() model.RoomInfo
		Room(roomID string) (model.RoomInfo, error)
		Messages(roomID string) ([]model.Message, error)
		Append(roomID string, msg model.Message) error
	}

	Switch interface {
		Attach(endpoint string, wire model.Wire) error
		Detach(endpoint string)
		Join(channel, endpoint string) error
		Leave(channel, endpoint string)
		Emit(endpoint string, frame model.Frame) bool
		Broadcast(channel string, frame model.Frame, exclude string) int
	}

	// Service routes inbound session events. All state transitions happen
	// in a single dispatch goroutine started with Run.
	Service struct {
		sessions SessionStore
		typing   TypingStore
		rooms    RoomStore
		sw       Switch
		clock    func() time.Time
		queue    chan model.Event
		done     chan struct{}
		logger   zerolog.Logger
	}

	Config struct {
		Sessions  SessionStore
		Typing    TypingStore
		RoomStore RoomStore
		Switch    Switch
		Logger    *zerolog.Logger
		Clock     func() time.Time
		QueueSize int
	}
)

func NewService(cfg Config) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	return &Service{
		sessions: cfg.Sessions,
		typing:   cfg.Typing,
		rooms:    cfg.RoomStore,
		sw:       cfg.Switch,
		clock:    clock,
		queue:    make(chan model.Event, size),
		done:     make(chan struct{}),
		logger:   cfg.Logger.With().Str("component", "router").Logger(),
	}
}

// Connect attaches connection's wire so events can be delivered to it.
// Session itself is created later by join event.
func (svc *Service) Connect(sessionID string, wire model.Wire) error {
	if err := svc.sw.Attach(sessionID, wire); err != nil {
		return errors.Join(ErrConnect, err)
	}
	svc.logger.Debug().Str("sessionID", sessionID).Msg("connection attached")
	return nil
}

// Dispatch enqueues inbound event. It blocks only while the queue is full.
func (svc *Service) Dispatch(ctx context.Context, ev model.Event) error {
	select {
	case <-svc.done:
		return ErrStopped
	default:
	}
	select {
	case svc.queue <- ev:
		return nil
	case <-svc.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect enqueues transport-initiated disconnect for the session.
// It must be called after the last Dispatch for that session.
func (svc *Service) Disconnect(ctx context.Context, sessionID string) error {
	return svc.Dispatch(ctx, model.Event{
		SessionID: sessionID,
		Name:      model.EventDisconnect,
	})
}

func (svc *Service) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer func() {
		close(svc.done)
		svc.logger.Debug().Msg("dispatcher stopped")
		wg.Done()
	}()

	svc.logger.Info().Msg("dispatcher started")

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-svc.queue:
			svc.Handle(ev)
		}
	}
}

// Handle applies a single event synchronously.
func (svc *Service) Handle(ev model.Event) {
	logger := svc.logger.With().
		Str("sessionID", ev.SessionID).
		Str("event", ev.Name).
		Logger()

	switch ev.Name {
	case model.EventJoin:
		svc.join(ev, &logger)
	case model.EventChatMessage:
		svc.chatMessage(ev, &logger)
	case model.EventImageMessage:
		svc.imageMessage(ev, &logger)
	case model.EventTyping:
		svc.setTyping(ev, &logger)
	case model.EventChangeRoom:
		svc.changeRoom(ev, &logger)
	case model.EventLogout:
		svc.logout(ev, &logger)
	case model.EventDisconnect:
		svc.disconnect(ev, &logger)
	default:
		logger.Debug().Msg("unknown event ignored")
	}
}

func (svc *Service) timestamp() string {
	return model.FormatTimestamp(svc.clock())
}
