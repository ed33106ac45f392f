package reservation

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-booking/internal/errs"
	"github.com/iliyamo/cinema-seat-booking/internal/model"
)

// MemoryStore keeps occupancy in process. Each session has its own mutex;
// the store mutex only guards the session and hold-id indexes and is always
// taken after a session mutex, never before.
type MemoryStore struct {
	mu        sync.Mutex
	sessions  map[model.SessionKey]*sessionSeats
	index     map[string]model.SessionKey // hold id -> session, tombstones included
	retention time.Duration
}

type sessionSeats struct {
	mu         sync.Mutex
	occupied   model.SeatSet
	holds      map[string]*model.Hold
	tombstones map[string]time.Time // expired hold id -> expiry time
	removed    bool                 // pruned from the store; callers must fetch a fresh entry
}

func (st *sessionSeats) idle() bool {
	return st.occupied.IsEmpty() && len(st.holds) == 0 && len(st.tombstones) == 0
}

// NewMemoryStore creates an empty store. retention is how long an expired
// hold id is remembered so Finalize can tell it from an unknown id.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[model.SessionKey]*sessionSeats),
		index:     make(map[string]model.SessionKey),
		retention: retention,
	}
}

func (s *MemoryStore) session(key model.SessionKey, create bool) *sessionSeats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[key]
	if !ok && create {
		st = &sessionSeats{
			holds:      make(map[string]*model.Hold),
			tombstones: make(map[string]time.Time),
		}
		s.sessions[key] = st
	}
	return st
}

func (s *MemoryStore) lookup(holdID string) (*sessionSeats, bool) {
	s.mu.Lock()
	key, ok := s.index[holdID]
	st := s.sessions[key]
	s.mu.Unlock()
	return st, ok && st != nil
}

func (s *MemoryStore) Occupied(_ context.Context, session model.SessionKey) (model.SeatSet, error) {
	st := s.session(session, false)
	if st == nil {
		return 0, nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.occupied, nil
}

func (s *MemoryStore) Reserve(_ context.Context, h model.Hold) error {
	st := s.session(h.Session, true)
	st.mu.Lock()
	for st.removed {
		st.mu.Unlock()
		st = s.session(h.Session, true)
		st.mu.Lock()
	}
	defer st.mu.Unlock()

	if taken := st.occupied.Intersect(h.Seats); !taken.IsEmpty() {
		return NewConflict(h.Session, taken)
	}
	held := h
	held.Status = model.HoldHeld
	st.occupied = st.occupied.Union(h.Seats)
	st.holds[h.ID] = &held

	s.mu.Lock()
	s.index[h.ID] = h.Session
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Release(_ context.Context, holdID string) (model.Hold, bool, error) {
	st, ok := s.lookup(holdID)
	if !ok {
		return model.Hold{}, false, nil
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	h, ok := st.holds[holdID]
	if !ok {
		return model.Hold{}, false, nil
	}
	st.occupied = st.occupied.Without(h.Seats)
	delete(st.holds, holdID)

	s.mu.Lock()
	delete(s.index, holdID)
	s.mu.Unlock()
	return *h, true, nil
}

func (s *MemoryStore) Finalize(_ context.Context, holdID string, now time.Time) (model.Hold, error) {
	st, ok := s.lookup(holdID)
	if !ok {
		return model.Hold{}, errs.Mark(errs.Newf("hold %s", holdID), errs.ErrHoldNotFound)
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	h, ok := st.holds[holdID]
	if !ok {
		if _, expired := st.tombstones[holdID]; expired {
			return model.Hold{}, errs.Mark(errs.Newf("hold %s", holdID), errs.ErrHoldExpired)
		}
		return model.Hold{}, errs.Mark(errs.Newf("hold %s", holdID), errs.ErrHoldNotFound)
	}
	if h.Status == model.HoldConfirmed {
		return *h, nil
	}
	if h.Lapsed(now) {
		st.expireLocked(h, now)
		return model.Hold{}, errs.Mark(errs.Newf("hold %s", holdID), errs.ErrHoldExpired)
	}
	h.Status = model.HoldConfirmed
	return *h, nil
}

// expireLocked frees a lapsed hold and leaves a tombstone. The index entry
// is kept until the tombstone is pruned.
func (st *sessionSeats) expireLocked(h *model.Hold, now time.Time) model.Hold {
	st.occupied = st.occupied.Without(h.Seats)
	delete(st.holds, h.ID)
	st.tombstones[h.ID] = now
	out := *h
	out.Status = model.HoldExpired
	return out
}

// ExpireDue frees lapsed holds, forgets tombstones older than the
// retention period and drops sessions left with nothing in them.
func (s *MemoryStore) ExpireDue(_ context.Context, now time.Time, limit int) ([]model.Hold, error) {
	s.mu.Lock()
	all := make(map[model.SessionKey]*sessionSeats, len(s.sessions))
	for k, st := range s.sessions {
		all[k] = st
	}
	s.mu.Unlock()

	var expired []model.Hold
	var forget []string
	for key, st := range all {
		st.mu.Lock()
		for _, h := range st.holds {
			if limit > 0 && len(expired) >= limit {
				break
			}
			if h.Lapsed(now) {
				expired = append(expired, st.expireLocked(h, now))
			}
		}
		for id, at := range st.tombstones {
			if now.Sub(at) >= s.retention {
				delete(st.tombstones, id)
				forget = append(forget, id)
			}
		}
		if st.idle() {
			s.mu.Lock()
			if s.sessions[key] == st {
				delete(s.sessions, key)
				st.removed = true
			}
			s.mu.Unlock()
		}
		st.mu.Unlock()
	}

	if len(forget) > 0 {
		s.mu.Lock()
		for _, id := range forget {
			delete(s.index, id)
		}
		s.mu.Unlock()
	}
	return expired, nil
}

