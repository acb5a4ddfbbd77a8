package memory

import (
	"errors"
	"sync"

	"github.com/adwski/chat-relay/backend/model"
)

const (
	defaultHistoryLimit = 100
)

var (
	ErrRoomNotFound = errors.New("room is not found")
	ErrEmptyCatalog = errors.New("room catalog is empty")
)

// DefaultCatalog returns built-in rooms. First one is the default room.
func DefaultCatalog() []model.RoomInfo {
	return []model.RoomInfo{
		{ID: "general", Name: "General Chat"},
		{ID: "technology", Name: "Technology"},
		{ID: "gaming", Name: "Gaming"},
	}
}

type room struct {
	info     model.RoomInfo
	messages []model.Message
}

// RoomStore is a fixed catalog of rooms with bounded message history.
// Rooms are never added or removed after construction.
type RoomStore struct {
	mx    *sync.RWMutex
	order []string
	db    map[string]*room
	limit int
}

func NewRoomStore(catalog []model.RoomInfo, limit int) (*RoomStore, error) {
	if len(catalog) == 0 {
		return nil, ErrEmptyCatalog
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	rs := &RoomStore{
		mx:    &sync.RWMutex{},
		order: make([]string, 0, len(catalog)),
		db:    make(map[string]*room, len(catalog)),
		limit: limit,
	}
	for _, info := range catalog {
		if _, ok := rs.db[info.ID]; ok {
			continue
		}
		rs.order = append(rs.order, info.ID)
		rs.db[info.ID] = &room{
			info:     info,
			messages: make([]model.Message, 0, limit),
		}
	}
	return rs, nil
}

func (rs *RoomStore) List() []model.RoomInfo {
	rs.mx.RLock()
	defer rs.mx.RUnlock()

	list := make([]model.RoomInfo, 0, len(rs.order))
	for _, id := range rs.order {
		list = append(list, rs.db[id].info)
	}
	return list
}

func (rs *RoomStore) Default() model.RoomInfo {
	rs.mx.RLock()
	defer rs.mx.RUnlock()
	return rs.db[rs.order[0]].info
}

func (rs *RoomStore) Room(roomID string) (model.RoomInfo, error) {
	rs.mx.RLock()
	defer rs.mx.RUnlock()

	r, ok := rs.db[roomID]
	if !ok {
		return model.RoomInfo{}, ErrRoomNotFound
	}
	return r.info, nil
}

// Messages returns a copy of room history, oldest first.
func (rs *RoomStore) Messages(roomID string) ([]model.Message, error) {
	rs.mx.RLock()
	defer rs.mx.RUnlock()

	r, ok := rs.db[roomID]
	if !ok {
		return nil, ErrRoomNotFound
	}
	msgs := make([]model.Message, len(r.messages))
	copy(msgs, r.messages)
	return msgs, nil
}

// Append adds message to room history evicting the oldest ones above the limit.
func (rs *RoomStore) Append(roomID string, msg model.Message) error {
	rs.mx.Lock()
	defer rs.mx.Unlock()

	r, ok := rs.db[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	r.messages = append(r.messages, msg)
	if over := len(r.messages) - rs.limit; over > 0 {
		n := copy(r.messages, r.messages[over:])
		clear(r.messages[n:])
		r.messages = r.messages[:n]
	}
	return nil
}

func (rs *RoomStore) Stats() []model.RoomStats {
	rs.mx.RLock()
	defer rs.mx.RUnlock()

	stats := make([]model.RoomStats, 0, len(rs.order))
	for _, id := range rs.order {
		r := rs.db[id]
		stats = append(stats, model.RoomStats{
			RoomInfo:     r.info,
			MessageCount: len(r.messages),
		})
	}
	return stats
}
