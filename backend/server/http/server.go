package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/adwski/chat-relay/backend/model"
	"github.com/rs/zerolog"
)

const (
	defaultShutdownDeadline = 10 * time.Second
	defaultReadHeaderTimout = 5 * time.Second
)

var (
	ErrUnexpected = errors.New("unexpected server error")
)

type (
	RoomCatalog interface {
		Stats() []model.RoomStats
	}

	SessionCounter interface {
		Count() int
	}

	GenericResponse struct {
		Message string      `json:"message,omitempty"`
		Error   string      `json:"error,omitempty"`
		Data    interface{} `json:"data,omitempty"`
	}

	Health struct {
		Sessions int `json:"sessions"`
	}

	Server struct {
		logger   zerolog.Logger
		rooms    RoomCatalog
		sessions SessionCounter
		*http.Server
	}

	Config struct {
		Logger      *zerolog.Logger
		RoomCatalog RoomCatalog
		Sessions    SessionCounter

		// Socket serves websocket upgrades on /socket.
		Socket http.Handler

		// StaticDir is served under / when it exists.
		StaticDir  string
		ListenAddr string
	}
)

func NewServer(cfg Config) *Server {
	srv := &Server{
		logger:   cfg.Logger.With().Str("component", "http-server").Logger(),
		rooms:    cfg.RoomCatalog,
		sessions: cfg.Sessions,
	}

	r := http.NewServeMux()
	r.HandleFunc("GET /api/rooms", srv.listRooms)
	r.HandleFunc("GET /healthz", srv.health)
	r.HandleFunc("OPTIONS /", corsHandler)
	r.Handle("GET /socket", cfg.Socket)
	r.Handle("/", srv.staticHandler(cfg.StaticDir))

	srv.Server = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: defaultReadHeaderTimout,
	}
	return srv
}

func (srv *Server) staticHandler(dir string) http.Handler {
	if dir == "" {
		return http.NotFoundHandler()
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		srv.logger.Warn().Str("dir", dir).Msg("static dir is not available, serving api only")
		return http.NotFoundHandler()
	}
	srv.logger.Debug().Str("dir", dir).Msg("serving static files")
	return http.FileServer(http.Dir(dir))
}

func corsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
	w.Header().Set("Access-Control-Max-Age", "86400")
	w.WriteHeader(http.StatusNoContent)
}

func (srv *Server) listRooms(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	srv.writeJSON(w, http.StatusOK, &GenericResponse{Data: srv.rooms.Stats()})
}

func (srv *Server) health(w http.ResponseWriter, _ *http.Request) {
	srv.writeJSON(w, http.StatusOK, &GenericResponse{
		Message: "OK",
		Data:    Health{Sessions: srv.sessions.Count()},
	})
}

func (srv *Server) writeJSON(w http.ResponseWriter, code int, resp *GenericResponse) {
	b, err := json.Marshal(resp)
	if err != nil {
		srv.logger.Error().Err(err).Msg("failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(code)
	if _, err = w.Write(b); err != nil {
		srv.logger.Error().Err(err).Msg("failed to write response")
	}
}

func (srv *Server) Run(ctx context.Context, wg *sync.WaitGroup, errc chan<- error) {
	defer func() {
		srv.logger.Debug().Msg("server stopped")
		wg.Done()
	}()

	hErr := make(chan error, 1)
	go func() {
		hErr <- srv.ListenAndServe()
	}()

	srv.logger.Info().Str("addr", srv.Addr).Msg("server started")

	select {
	case err := <-hErr:
		if !errors.Is(err, http.ErrServerClosed) {
			errc <- errors.Join(ErrUnexpected, err)
		}
	case <-ctx.Done():
		shCtx, shCancel := context.WithTimeout(context.Background(), defaultShutdownDeadline)
		defer shCancel()
		if err := srv.Shutdown(shCtx); err != nil {
			srv.logger.Error().Err(err).Msg("server shutdown failed")
		}
	}
}
