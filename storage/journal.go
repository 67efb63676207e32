package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"nodemirror/wire"
)

var (
	sessionPrefix = []byte("s/")
	entryPrefix   = []byte("j/")
)

// SessionInfo describes one journaled mirror session.
type SessionInfo struct {
	ID      uuid.UUID
	Started time.Time
	Entries uint64
}

// Journal records the envelopes a mirror accepted, per session, so a
// session can be replayed later.
type Journal struct {
	db   Database
	mu   sync.Mutex
	next map[uuid.UUID]uint64
	now  func() time.Time
}

// NewJournal returns a journal backed by db.
func NewJournal(db Database) *Journal {
	return &Journal{db: db, next: make(map[uuid.UUID]uint64), now: time.Now}
}

func entryKey(session uuid.UUID, n uint64) []byte {
	key := make([]byte, 0, len(entryPrefix)+16+8)
	key = append(key, entryPrefix...)
	key = append(key, session[:]...)
	return binary.BigEndian.AppendUint64(key, n)
}

func sessionEntries(session uuid.UUID) []byte {
	return append(append([]byte{}, entryPrefix...), session[:]...)
}

func sessionKey(session uuid.UUID) []byte {
	return append(append([]byte{}, sessionPrefix...), session[:]...)
}

// Append stores e as the next entry of session.
func (j *Journal) Append(session uuid.UUID, e wire.Envelope) error {
	enc, err := wire.EncodeEnvelope(e)
	if err != nil {
		return fmt.Errorf("journal append %s: %w", session, err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	n, ok := j.next[session]
	if !ok {
		started := make([]byte, 8)
		binary.BigEndian.PutUint64(started, uint64(j.now().UnixNano()))
		if _, err := j.db.Get(sessionKey(session)); errors.Is(err, ErrNotFound) {
			if err := j.db.Put(sessionKey(session), started); err != nil {
				return fmt.Errorf("journal session %s: %w", session, err)
			}
		} else if err != nil {
			return fmt.Errorf("journal session %s: %w", session, err)
		} else if n, err = j.count(session); err != nil {
			return err
		}
	}
	if err := j.db.Put(entryKey(session, n), enc); err != nil {
		return fmt.Errorf("journal append %s/%d: %w", session, n, err)
	}
	j.next[session] = n + 1
	return nil
}

func (j *Journal) count(session uuid.UUID) (uint64, error) {
	var n uint64
	err := j.db.Iterate(sessionEntries(session), func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}

// Replay calls fn for every entry of session in append order.
func (j *Journal) Replay(session uuid.UUID, fn func(wire.Envelope) error) error {
	if _, err := j.db.Get(sessionKey(session)); err != nil {
		return fmt.Errorf("journal session %s: %w", session, err)
	}
	return j.db.Iterate(sessionEntries(session), func(key, value []byte) error {
		e, err := wire.DecodeEnvelope(value)
		if err != nil {
			return fmt.Errorf("journal entry %x: %w", key[len(key)-8:], err)
		}
		return fn(e)
	})
}

// Sessions lists the journaled sessions, oldest first.
func (j *Journal) Sessions() ([]SessionInfo, error) {
	var out []SessionInfo
	err := j.db.Iterate(sessionPrefix, func(key, value []byte) error {
		id, err := uuid.FromBytes(key[len(sessionPrefix):])
		if err != nil {
			return fmt.Errorf("journal session key %x: %w", key, err)
		}
		if len(value) != 8 {
			return fmt.Errorf("journal session %s: bad record", id)
		}
		info := SessionInfo{ID: id, Started: time.Unix(0, int64(binary.BigEndian.Uint64(value)))}
		out = append(out, info)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Entries, err = j.count(out[i].ID); err != nil {
			return nil, err
		}
	}
	slices.SortStableFunc(out, func(a, b SessionInfo) int { return a.Started.Compare(b.Started) })
	return out, nil
}
