package alert

import (
	"errors"
	"fmt"
	"sync"
	"time"

	logx "alertbot/pkg/logx"
)

// DefaultMaxOffsetMinutes bounds how far out a one-shot may be scheduled
// (7 days).
const DefaultMaxOffsetMinutes = 7 * 24 * 60

var ErrQuotaExceeded = errors.New("alert quota exceeded")

// Config tunes the alert service.
type Config struct {
	MaxPerUser       int
	MaxOffsetMinutes int
}

func (c Config) withDefaults() Config {
	if c.MaxPerUser <= 0 {
		c.MaxPerUser = DefaultMaxPerUser
	}
	if c.MaxOffsetMinutes <= 0 {
		c.MaxOffsetMinutes = DefaultMaxOffsetMinutes
	}
	return c
}

// Service is the command-facing surface over Store, Quota and Scheduler.
//
// mu serializes every mutation path. For adds it closes the window where two
// concurrent requests by the same owner could both observe a count below the
// cap and jointly exceed it; for remove/clear it keeps trigger registration
// and cancellation ordered with the store.
type Service struct {
	mu sync.Mutex

	cfg   Config
	store *Store
	quota Quota
	sched *Scheduler
	log   logx.Logger
}

func NewService(cfg Config, store *Store, sched *Scheduler, log logx.Logger) *Service {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg,
		store: store,
		quota: NewQuota(cfg.MaxPerUser),
		sched: sched,
		log:   log,
	}
}

func (s *Service) MaxPerUser() int { return s.quota.Max }

func (s *Service) Location() *time.Location { return s.sched.Location() }

// AddOneShot admits, records and arms an alert firing once offsetMin minutes
// from now. Offset 0 is valid and fires asynchronously with zero delay.
func (s *Service) AddOneShot(ownerID, channelID, originID int64, offsetMin int, message string) (Alert, error) {
	if offsetMin < 0 || offsetMin > s.cfg.MaxOffsetMinutes {
		return Alert{}, fmt.Errorf("offset must be between 0 and %d minutes", s.cfg.MaxOffsetMinutes)
	}
	fireAt := time.Now().Add(time.Duration(offsetMin) * time.Minute)
	return s.add(ownerID, channelID, originID, OneShot(fireAt), message)
}

// AddHourly admits, records and arms an alert firing every hour at the given
// minute.
func (s *Service) AddHourly(ownerID, channelID, originID int64, minute int, message string) (Alert, error) {
	if minute < 0 || minute > 59 {
		return Alert{}, errors.New("minute must be between 0 and 59")
	}
	return s.add(ownerID, channelID, originID, Recurring(minute), message)
}

func (s *Service) add(ownerID, channelID, originID int64, sched Schedule, message string) (Alert, error) {
	s.mu.Lock()
	if !s.quota.CanAdmit(s.store.CountByOwner(ownerID)) {
		s.mu.Unlock()
		return Alert{}, ErrQuotaExceeded
	}
	a := s.store.Create(ownerID, channelID, originID, sched, message)
	// Arm before releasing the lock so a concurrent remove cannot slip
	// between the insert and the trigger registration.
	s.sched.Schedule(a)
	s.mu.Unlock()
	s.log.Info("alert added",
		logx.Int64("alert_id", a.ID),
		logx.Int64("owner", a.OwnerID),
		logx.Int64("channel", a.ChannelID))
	return a, nil
}

// List returns a snapshot of the owner's alerts.
func (s *Service) List(ownerID int64) []Alert {
	return s.store.ListByOwner(ownerID)
}

// Remove deletes one alert by id if owned by ownerID. A foreign or missing id
// both come back as ErrNotFound.
func (s *Service) Remove(ownerID, id int64) (Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.store.RemoveByID(id, ownerID)
	if err != nil {
		return Alert{}, err
	}
	s.sched.Unschedule(a.ID, false)
	s.log.Info("alert removed", logx.Int64("alert_id", a.ID), logx.Int64("owner", ownerID))
	return a, nil
}

// Clear deletes all of the owner's alerts and reports how many were removed.
func (s *Service) Clear(ownerID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.store.RemoveAllByOwner(ownerID)
	ids := make([]int64, len(removed))
	for i, a := range removed {
		ids[i] = a.ID
	}
	s.sched.CancelAll(ids)
	if len(removed) > 0 {
		s.log.Info("alerts cleared", logx.Int64("owner", ownerID), logx.Int("count", len(removed)))
	}
	return len(removed)
}

func (s *Service) Count(ownerID int64) int { return s.store.CountByOwner(ownerID) }
