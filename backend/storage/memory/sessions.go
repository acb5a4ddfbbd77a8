package memory

import (
	"errors"
	"sync"

	"github.com/adwski/chat-relay/backend/model"
)

var (
	ErrSessionNotFound = errors.New("session is not found")
)

// SessionStore maps connection ids to joined user sessions.
type SessionStore struct {
	mx *sync.RWMutex
	db map[string]model.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		mx: &sync.RWMutex{},
		db: make(map[string]model.Session),
	}
}

// Register creates or overwrites session.
func (ss *SessionStore) Register(id, nickname, roomID string) model.Session {
	ss.mx.Lock()
	defer ss.mx.Unlock()

	sess := model.Session{
		ID:       id,
		Nickname: nickname,
		Room:     roomID,
	}
	ss.db[id] = sess
	return sess
}

func (ss *SessionStore) Get(id string) (model.Session, error) {
	ss.mx.RLock()
	defer ss.mx.RUnlock()

	sess, ok := ss.db[id]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (ss *SessionStore) UpdateRoom(id, roomID string) error {
	ss.mx.Lock()
	defer ss.mx.Unlock()

	sess, ok := ss.db[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.Room = roomID
	ss.db[id] = sess
	return nil
}

func (ss *SessionStore) Remove(id string) (model.Session, error) {
	ss.mx.Lock()
	defer ss.mx.Unlock()

	sess, ok := ss.db[id]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	delete(ss.db, id)
	return sess, nil
}

func (ss *SessionStore) Count() int {
	ss.mx.RLock()
	defer ss.mx.RUnlock()
	return len(ss.db)
}
