package service

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/adwski/chat-relay/backend/model"
	"github.com/rs/zerolog"
)

const (
	maxNicknameLength = 50
)

var (
	ErrNicknameEmpty   = errors.New("nickname cannot be empty")
	ErrNicknameTooLong = errors.New("nickname exceeds maximum length")
	ErrNicknameInvalid = errors.New("nickname contains invalid characters")
)

func validateNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return "", ErrNicknameEmpty
	}
	if !utf8.ValidString(nickname) {
		return "", ErrNicknameInvalid
	}
	if utf8.RuneCountInString(nickname) > maxNicknameLength {
		return "", ErrNicknameTooLong
	}
	return nickname, nil
}

// session returns joined session for the event. Events of connections
// that have not joined (or already left) are ignored.
func (svc *Service) session(ev model.Event, logger *zerolog.Logger) (model.Session, bool) {
	sess, err := svc.sessions.Get(ev.SessionID)
	if err != nil {
		logger.Debug().Msg("no session for connection, event ignored")
		return model.Session{}, false
	}
	return sess, true
}

// resolveRoom falls back to the default room for unknown or empty room ids.
func (svc *Service) resolveRoom(roomID string, logger *zerolog.Logger) model.RoomInfo {
	if roomID == "" {
		return svc.rooms.Default()
	}
	info, err := svc.rooms.Room(roomID)
	if err != nil {
		logger.Debug().Str("roomID", roomID).Msg("unknown room requested, using default")
		return svc.rooms.Default()
	}
	return info
}

func (svc *Service) join(ev model.Event, logger *zerolog.Logger) {
	if _, err := svc.sessions.Get(ev.SessionID); err == nil {
		logger.Debug().Msg("session already joined, use changeRoom")
		return
	}

	nickname, err := validateNickname(ev.Data.Get("nickname").String())
	if err != nil {
		svc.emitError(ev.SessionID, model.ErrorCodeInvalidNickname, err)
		return
	}
	room := svc.resolveRoom(ev.Data.Get("room").String(), logger)

	if err = svc.sw.Join(room.ID, ev.SessionID); err != nil {
		logger.Error().Err(err).Msg("failed to join channel")
		return
	}
	sess := svc.sessions.Register(ev.SessionID, nickname, room.ID)

	svc.sw.Broadcast(room.ID, model.Frame{
		Event: model.EventUserJoined,
		Data:  svc.presence(sess),
	}, "")
	svc.sw.Emit(sess.ID, model.Frame{
		Event: model.EventRoomList,
		Data:  svc.rooms.List(),
	})
	svc.emitHistory(sess, logger)
	svc.sw.Emit(sess.ID, model.Frame{
		Event: model.EventJoinSuccess,
		Data: model.JoinSuccess{
			RoomID:   room.ID,
			RoomName: room.Name,
		},
	})

	logger.Info().
		Str("nickname", sess.Nickname).
		Str("roomID", sess.Room).
		Msg("user joined room")
}

func (svc *Service) chatMessage(ev model.Event, logger *zerolog.Logger) {
	sess, ok := svc.session(ev, logger)
	if !ok {
		return
	}
	svc.post(sess, model.Message{
		Content:   ev.Data.Get("message").String(),
		Type:      model.MessageTypeText,
		Nickname:  sess.Nickname,
		Timestamp: svc.timestamp(),
		SenderID:  sess.ID,
	}, logger)
}

func (svc *Service) imageMessage(ev model.Event, logger *zerolog.Logger) {
	sess, ok := svc.session(ev, logger)
	if !ok {
		return
	}
	svc.post(sess, model.Message{
		Content:   ev.Data.Get("image").String(),
		Type:      model.MessageTypeImage,
		Nickname:  sess.Nickname,
		Timestamp: svc.timestamp(),
		SenderID:  sess.ID,
		Text:      ev.Data.Get("text").String(),
	}, logger)
}

func (svc *Service) post(sess model.Session, msg model.Message, logger *zerolog.Logger) {
	if err := svc.rooms.Append(sess.Room, msg); err != nil {
		logger.Error().Err(err).Str("roomID", sess.Room).Msg("failed to store message")
		return
	}
	svc.sw.Broadcast(sess.Room, model.Frame{
		Event: model.EventMessage,
		Data:  msg,
	}, "")
	svc.clearTyping(sess.ID)

	logger.Debug().Str("roomID", sess.Room).Str("type", msg.Type).Msg("message posted")
}

func (svc *Service) setTyping(ev model.Event, logger *zerolog.Logger) {
	sess, ok := svc.session(ev, logger)
	if !ok {
		return
	}
	if ev.Data.Bool() {
		svc.typing.Set(sess.ID, sess.Nickname, sess.Room)
	} else {
		svc.typing.Clear(sess.ID)
	}
	svc.broadcastTyping(sess.Room)
}

func (svc *Service) changeRoom(ev model.Event, logger *zerolog.Logger) {
	sess, ok := svc.session(ev, logger)
	if !ok {
		return
	}
	target := ev.Data.String()
	room, err := svc.rooms.Room(target)
	if err != nil {
		logger.Debug().Str("roomID", target).Msg("change to unknown room rejected")
		svc.emitError(sess.ID, model.ErrorCodeUnknownRoom, err)
		return
	}

	svc.clearTyping(sess.ID)

	oldRoom := sess.Room
	svc.sw.Leave(oldRoom, sess.ID)
	svc.sw.Broadcast(oldRoom, model.Frame{
		Event: model.EventUserLeft,
		Data:  svc.presence(sess),
	}, "")

	if err = svc.sw.Join(room.ID, sess.ID); err != nil {
		// endpoint is gone, disconnect will clean up the session
		logger.Error().Err(err).Msg("failed to join channel")
		return
	}
	if err = svc.sessions.UpdateRoom(sess.ID, room.ID); err != nil {
		logger.Error().Err(err).Msg("failed to update session room")
		return
	}
	sess.Room = room.ID

	svc.emitHistory(sess, logger)
	svc.sw.Broadcast(room.ID, model.Frame{
		Event: model.EventUserJoined,
		Data:  svc.presence(sess),
	}, "")
	svc.sw.Emit(sess.ID, model.Frame{
		Event: model.EventJoinSuccess,
		Data: model.JoinSuccess{
			RoomID:   room.ID,
			RoomName: room.Name,
		},
	})

	logger.Info().
		Str("nickname", sess.Nickname).
		Str("from", oldRoom).
		Str("to", room.ID).
		Msg("user changed room")
}

func (svc *Service) logout(ev model.Event, logger *zerolog.Logger) {
	if sess, ok := svc.leave(ev.SessionID); ok {
		logger.Info().Str("nickname", sess.Nickname).Msg("user logged out")
	}
	svc.sw.Emit(ev.SessionID, model.Frame{Event: model.EventLogoutSuccess})
}

func (svc *Service) disconnect(ev model.Event, logger *zerolog.Logger) {
	if sess, ok := svc.leave(ev.SessionID); ok {
		logger.Info().Str("nickname", sess.Nickname).Msg("user disconnected")
	}
	svc.sw.Detach(ev.SessionID)
}

// leave tears down joined session: channel membership, typing mark and registry entry.
func (svc *Service) leave(sessionID string) (model.Session, bool) {
	sess, err := svc.sessions.Get(sessionID)
	if err != nil {
		return model.Session{}, false
	}
	svc.sw.Leave(sess.Room, sess.ID)
	svc.sw.Broadcast(sess.Room, model.Frame{
		Event: model.EventUserLeft,
		Data:  svc.presence(sess),
	}, "")
	svc.clearTyping(sess.ID)
	_, _ = svc.sessions.Remove(sess.ID)
	return sess, true
}

func (svc *Service) clearTyping(sessionID string) {
	if roomID, ok := svc.typing.Clear(sessionID); ok {
		svc.broadcastTyping(roomID)
	}
}

func (svc *Service) broadcastTyping(roomID string) {
	svc.sw.Broadcast(roomID, model.Frame{
		Event: model.EventTypingStatus,
		Data:  svc.typing.Snapshot(roomID),
	}, "")
}

func (svc *Service) emitHistory(sess model.Session, logger *zerolog.Logger) {
	history, err := svc.rooms.Messages(sess.Room)
	if err != nil {
		logger.Error().Err(err).Str("roomID", sess.Room).Msg("failed to get room history")
		return
	}
	svc.sw.Emit(sess.ID, model.Frame{
		Event: model.EventMessageHistory,
		Data:  history,
	})
}

func (svc *Service) emitError(sessionID, code string, err error) {
	svc.sw.Emit(sessionID, model.Frame{
		Event: model.EventError,
		Data: model.ErrorPayload{
			Code:    code,
			Message: err.Error(),
		},
	})
}

func (svc *Service) presence(sess model.Session) model.Presence {
	return model.Presence{
		Nickname:  sess.Nickname,
		Timestamp: svc.timestamp(),
	}
}
