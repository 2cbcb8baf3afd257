package alert

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when an alert does not exist or is owned by someone
// else. The two cases are deliberately indistinguishable so a user cannot
// probe for the existence of other users' alerts.
var ErrNotFound = errors.New("alert not found")

// Store owns the alert records. It never touches trigger handles; those live
// in the Registry.
type Store struct {
	mu     sync.Mutex
	nextID int64
	alerts map[int64]Alert
}

func NewStore() *Store {
	return &Store{nextID: 1, alerts: map[int64]Alert{}}
}

// Create allocates the next id and inserts a new record. It never fails on
// its own: quota admission is the caller's job and happens before this call.
func (s *Store) Create(ownerID, channelID, originID int64, sched Schedule, message string) Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := Alert{
		ID:        s.nextID,
		OwnerID:   ownerID,
		ChannelID: channelID,
		OriginID:  originID,
		Schedule:  sched,
		Message:   strings.TrimSpace(message),
		CreatedAt: time.Now(),
	}
	s.nextID++
	s.alerts[a.ID] = a
	return a
}

func (s *Store) Get(id int64) (Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	return a, ok
}

// ListByOwner returns a snapshot of the owner's alerts: one-shot alerts first,
// ordered by ascending fire time, then recurring alerts in insertion order.
func (s *Store) ListByOwner(ownerID int64) []Alert {
	s.mu.Lock()
	out := make([]Alert, 0, 4)
	for _, a := range s.alerts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i], out[j]
		if ai.Schedule.Kind != aj.Schedule.Kind {
			return ai.Schedule.Kind == KindOneShot
		}
		if ai.Schedule.Kind == KindOneShot {
			if !ai.Schedule.FireAt.Equal(aj.Schedule.FireAt) {
				return ai.Schedule.FireAt.Before(aj.Schedule.FireAt)
			}
		}
		return ai.ID < aj.ID
	})
	return out
}

// RemoveByID removes and returns the alert only if it exists and is owned by
// ownerID; otherwise ErrNotFound.
func (s *Store) RemoveByID(id, ownerID int64) (Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok || a.OwnerID != ownerID {
		return Alert{}, ErrNotFound
	}
	delete(s.alerts, id)
	return a, nil
}

// Remove drops the record without an ownership check. It is the retirement
// path used by the scheduler when a one-shot fires.
func (s *Store) Remove(id int64) (Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if ok {
		delete(s.alerts, id)
	}
	return a, ok
}

// RemoveAllByOwner removes every alert owned by ownerID and returns them.
func (s *Store) RemoveAllByOwner(ownerID int64) []Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Alert
	for id, a := range s.alerts {
		if a.OwnerID == ownerID {
			out = append(out, a)
			delete(s.alerts, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) CountByOwner(ownerID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.alerts {
		if a.OwnerID == ownerID {
			n++
		}
	}
	return n
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}
