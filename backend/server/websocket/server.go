package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/adwski/chat-relay/backend/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	defaultSessionCloseTimeout = 2 * time.Second

	defaultWebsocketReadBufferSize     = 4096
	defaultWebsocketWriteBufferSize    = 4096
	defaultWebSocketMaxMessageSize     = 5 << 20 // base64 images
	defaultWebSocketHandshakeTimeout   = 3 * time.Second
	defaultWebSocketCloseWriteDeadline = 2 * time.Second
	defaultWebSocketWriteDeadline      = 5 * time.Second

	defaultWireSize = 256

	// defaultPongWait - defaultPingInterval == is how long we give client to respond
	defaultPingInterval = 25 * time.Second
	defaultPongWait     = 45 * time.Second
)

var (
	ErrMalformedFrame = errors.New("frame is not a valid json")
	ErrMissingEvent   = errors.New("frame has no event name")
	ErrReservedEvent  = errors.New("event name is reserved")
)

type (
	RelayService interface {
		Connect(sessionID string, wire model.Wire) error
		Dispatch(ctx context.Context, ev model.Event) error
		Disconnect(ctx context.Context, sessionID string) error
	}

	Config struct {
		Logger       *zerolog.Logger
		RelayService RelayService

		// BaseContext bounds lifetime of every connection.
		BaseContext context.Context
	}

	// Server upgrades http requests to websocket connections
	// and pumps frames between connections and relay service.
	Server struct {
		svc RelayService
		ws  *websocket.Upgrader
		ctx context.Context

		logger zerolog.Logger
	}
)

func NewServer(cfg Config) *Server {
	ctx := cfg.BaseContext
	if ctx == nil {
		ctx = context.Background()
	}
	return &Server{
		logger: cfg.Logger.With().Str("component", "websocket-server").Logger(),
		svc:    cfg.RelayService,
		ctx:    ctx,
		ws: &websocket.Upgrader{
			HandshakeTimeout: defaultWebSocketHandshakeTimeout,
			ReadBufferSize:   defaultWebsocketReadBufferSize,
			WriteBufferSize:  defaultWebsocketWriteBufferSize,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
}

func (srv *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := srv.ws.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already replied with error status
		srv.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	var (
		sessionID = uuid.NewString()
		wire      = model.NewWire(defaultWireSize)
		logger    = srv.logger.With().Str("sessionID", sessionID).Logger()
	)

	if err = srv.svc.Connect(sessionID, wire); err != nil {
		logger.Error().Err(err).Msg("failed to connect session")
		webSocketCloser(conn, &logger)
		return
	}
	logger.Debug().Str("remote", r.RemoteAddr).Msg("connection established")

	ctx, cancel := context.WithCancel(srv.ctx) // long-living connection context

	go srv.handleWSConn(ctx, cancel, conn, sessionID, wire, &logger)
}

func (srv *Server) destroySession(sessionID string, logger *zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultSessionCloseTimeout)
	defer cancel()
	if err := srv.svc.Disconnect(ctx, sessionID); err != nil {
		logger.Error().Err(err).Msg("failed to disconnect session")
		return
	}
	logger.Debug().Msg("connection ended")
}

func (srv *Server) handleWSConn(
	ctx context.Context,
	cancel context.CancelFunc,
	conn *websocket.Conn,
	sessionID string,
	wire model.Wire,
	logger *zerolog.Logger,
) {
	wg := &sync.WaitGroup{}

	wg.Add(2)
	go func() {
		srv.webSocketReceiver(ctx, wg, conn, sessionID, logger)
		cancel()
	}()
	go func() {
		webSocketSender(ctx, wg, conn, wire.TX, logger)
		cancel()
	}()

	wg.Wait()
	webSocketCloser(conn, logger)
	srv.destroySession(sessionID, logger)
}

func webSocketSender(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	tx <-chan model.Frame,
	logger *zerolog.Logger,
) {
	pingTicker := time.NewTicker(defaultPingInterval)
	defer func() {
		pingTicker.Stop()
		wg.Done()
	}()
SendLoop:
	for {
		select {
		case <-ctx.Done():
			break SendLoop
		case <-pingTicker.C:
			wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsErr = conn.WriteMessage(websocket.PingMessage, []byte{})
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to send ping")
				break SendLoop
			}
			logger.Trace().Msg("ping sent")

		case frame, ok := <-tx:
			if !ok {
				break SendLoop
			}

			b, wsErr := json.Marshal(&frame)
			if wsErr != nil {
				logger.Error().Err(wsErr).Str("event", frame.Event).Msg("failed to marshall outgoing frame")
				continue
			}

			wsErr = conn.SetWriteDeadline(time.Now().Add(defaultWebSocketWriteDeadline))
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to set websocket write deadline")
				break SendLoop
			}
			wsW, wsErr := conn.NextWriter(websocket.TextMessage)
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to get websocket text writer")
				break SendLoop
			}
			_, wsErr = wsW.Write(b)
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to write outgoing frame")
				break SendLoop
			}
			wsErr = wsW.Close()
			if wsErr != nil {
				logger.Error().Err(wsErr).Msg("failed to close websocket writer")
				break SendLoop
			}
		}
	}
}

func (srv *Server) webSocketReceiver(
	ctx context.Context,
	wg *sync.WaitGroup,
	conn *websocket.Conn,
	sessionID string,
	logger *zerolog.Logger,
) {
	defer wg.Done()

	conn.SetReadLimit(defaultWebSocketMaxMessageSize)
	readDeadLineFunc := func(deadline time.Duration) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	}
	conn.SetPongHandler(func(string) error {
		logger.Trace().Msg("got pong")
		return readDeadLineFunc(defaultPongWait)
	})
	err := readDeadLineFunc(defaultPongWait)
	if err != nil {
		logger.Error().Err(err).Msg("failed to set websocket read deadline")
		return
	}

	// unblock pending read when connection context is done
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		_, msg, wsErr := conn.ReadMessage()
		if wsErr != nil {
			switch {
			case ctx.Err() != nil:
				logger.Debug().Msg("receiver stopped")
			case websocket.IsCloseError(wsErr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway):
				logger.Warn().Err(wsErr).Msg("connection closed")
			default:
				logger.Error().Err(wsErr).Msg("unexpected error during receive")
			}
			return
		}

		ev, decErr := decodeEvent(sessionID, msg)
		if decErr != nil {
			logger.Warn().Err(decErr).Msg("incoming frame dropped")
			continue
		}
		if err = srv.svc.Dispatch(ctx, ev); err != nil {
			logger.Debug().Err(err).Msg("failed to dispatch event")
			return
		}
	}
}

// decodeEvent parses {"event": "...", "data": ...} frame.
func decodeEvent(sessionID string, msg []byte) (model.Event, error) {
	if !gjson.ValidBytes(msg) {
		return model.Event{}, ErrMalformedFrame
	}
	frame := gjson.ParseBytes(msg)
	name := frame.Get("event")
	if name.Type != gjson.String || name.Str == "" {
		return model.Event{}, ErrMissingEvent
	}
	if name.Str == model.EventDisconnect {
		return model.Event{}, ErrReservedEvent
	}
	return model.Event{
		SessionID: sessionID,
		Name:      name.Str,
		Data:      frame.Get("data"),
	}, nil
}

func webSocketCloser(conn *websocket.Conn, logger *zerolog.Logger) {
	wsErr := conn.SetWriteDeadline(time.Now().Add(defaultWebSocketCloseWriteDeadline))
	if wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to set websocket write deadline during closing")
	} else {
		wsErr = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if wsErr != nil && !errors.Is(wsErr, websocket.ErrCloseSent) {
			logger.Debug().Err(wsErr).Msg("failed to send close message")
		}
	}
	wsErr = conn.Close()
	if wsErr != nil {
		logger.Error().Err(wsErr).Msg("failed to close websocket connection")
	}
}
