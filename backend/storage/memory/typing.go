package memory

import (
	"sync"
)

type typingEntry struct {
	id       string
	nickname string
	room     string
}

// TypingStore tracks sessions that are currently typing, in the order they started.
type TypingStore struct {
	mx      *sync.Mutex
	entries []typingEntry
}

func NewTypingStore() *TypingStore {
	return &TypingStore{
		mx: &sync.Mutex{},
	}
}

// Set marks session as typing. Repeated calls keep original position
// but refresh nickname and room.
func (ts *TypingStore) Set(id, nickname, roomID string) {
	ts.mx.Lock()
	defer ts.mx.Unlock()

	for i := range ts.entries {
		if ts.entries[i].id == id {
			ts.entries[i].nickname = nickname
			ts.entries[i].room = roomID
			return
		}
	}
	ts.entries = append(ts.entries, typingEntry{
		id:       id,
		nickname: nickname,
		room:     roomID,
	})
}

// Clear removes typing mark and reports room it was set for.
func (ts *TypingStore) Clear(id string) (string, bool) {
	ts.mx.Lock()
	defer ts.mx.Unlock()

	for i := range ts.entries {
		if ts.entries[i].id == id {
			roomID := ts.entries[i].room
			ts.entries = append(ts.entries[:i], ts.entries[i+1:]...)
			return roomID, true
		}
	}
	return "", false
}

// Snapshot returns nicknames typing in the room. Result is never nil.
func (ts *TypingStore) Snapshot(roomID string) []string {
	ts.mx.Lock()
	defer ts.mx.Unlock()

	nicknames := make([]string, 0, len(ts.entries))
	for _, e := range ts.entries {
		if e.room == roomID {
			nicknames = append(nicknames, e.nickname)
		}
	}
	return nicknames
}
