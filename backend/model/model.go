package model

import (
	"time"

	"github.com/tidwall/gjson"
)

// TimestampLayout is ISO-8601 with millisecond precision, UTC rendered as Z.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Inbound events that are sent by clients.
const (
	EventJoin         = "join"
	EventChatMessage  = "chatMessage"
	EventImageMessage = "imageMessage"
	EventTyping       = "typing"
	EventChangeRoom   = "changeRoom"
	EventLogout       = "logout"

	// EventDisconnect is never sent by clients, transport emits it when connection is gone.
	EventDisconnect = "disconnect"
)

// Outbound events that are sent by server.
const (
	EventUserJoined     = "userJoined"
	EventUserLeft       = "userLeft"
	EventRoomList       = "roomList"
	EventMessageHistory = "messageHistory"
	EventJoinSuccess    = "joinSuccess"
	EventMessage        = "message"
	EventTypingStatus   = "typingStatus"
	EventLogoutSuccess  = "logoutSuccess"
	EventError          = "error"
)

const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

const (
	ErrorCodeUnknownRoom     = "unknown_room"
	ErrorCodeInvalidNickname = "invalid_nickname"
)

type Session struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Room     string `json:"room"`
}

type RoomInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RoomStats struct {
	RoomInfo
	MessageCount int `json:"messageCount"`
}

type Message struct {
	Content   string `json:"content"`
	Type      string `json:"type"`
	Nickname  string `json:"nickname"`
	Timestamp string `json:"timestamp"`
	SenderID  string `json:"senderId"`
	Text      string `json:"text,omitempty"` // image caption
}

type Presence struct {
	Nickname  string `json:"nickname"`
	Timestamp string `json:"timestamp"`
}

type JoinSuccess struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Frame is a single websocket text message in both directions.
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Event is an inbound frame bound to the session it arrived on.
type Event struct {
	SessionID string
	Name      string
	Data      gjson.Result
}

// Wire is the outbound half of a connection. Router writes, transport drains.
type Wire struct {
	TX chan Frame
}

func NewWire(size int) Wire {
	return Wire{
		TX: make(chan Frame, size),
	}
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
