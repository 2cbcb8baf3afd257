package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"alertbot/internal/transport"
	logx "alertbot/pkg/logx"
)

// Notifier is the delivery capability the scheduler fires into. Delivery
// failures are logged and never fed back into the alert lifecycle.
type Notifier interface {
	Notify(ctx context.Context, n transport.Notification) error
}

const sendTimeout = 10 * time.Second

// Scheduler binds alerts to concrete firing mechanisms: a single-fire timer
// for one-shot alerts, an entry on a shared cron runner for recurring ones.
// Handles are owned by the Registry; the scheduler never keeps its own copy.
type Scheduler struct {
	log      logx.Logger
	store    *Store
	reg      *Registry
	notifier Notifier

	cron *cron.Cron
	loc  *time.Location
}

func NewScheduler(store *Store, reg *Registry, notifier Notifier, loc *time.Location, log logx.Logger) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	if loc == nil {
		loc = time.Local
	}
	// Six-field parser: recurring alerts fire at second 0 of their minute.
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{
		log:      log,
		store:    store,
		reg:      reg,
		notifier: notifier,
		cron:     cron.New(cron.WithParser(parser), cron.WithLocation(loc)),
		loc:      loc,
	}
}

func (s *Scheduler) Location() *time.Location { return s.loc }

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()))
}

// Stop halts the cron runner and cancels all remaining handles. Pending
// alerts are silently dropped; there is no persistence.
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	s.reg.Clear()
	s.log.Info("scheduler stopped")
}

// Schedule arms the trigger matching the alert's schedule kind.
func (s *Scheduler) Schedule(a Alert) {
	switch a.Schedule.Kind {
	case KindOneShot:
		s.scheduleOneShot(a)
	case KindRecurring:
		s.scheduleRecurring(a)
	}
}

// scheduleOneShot arms a single-fire timer. A fire time already in the past
// clamps to zero delay: the alert still fires asynchronously, never inline.
func (s *Scheduler) scheduleOneShot(a Alert) {
	delay := time.Until(a.Schedule.FireAt)
	if delay < 0 {
		delay = 0
	}
	tr := newTimerTrigger(delay)
	// Register before the wait starts so a zero-delay fire always finds its
	// own handle to claim.
	s.reg.Set(a.ID, tr)
	go func() {
		select {
		case <-tr.timer.C:
			s.fireOneShot(a)
		case <-tr.done:
		}
	}()
	s.log.Debug("one-shot armed",
		logx.Int64("alert_id", a.ID),
		logx.Time("fire_at", a.Schedule.FireAt),
		logx.Duration("delay", delay))
}

// scheduleRecurring arms an hourly cron entry at the alert's minute. The
// minute is range-validated at intake, so a parser rejection here is an
// internal invariant violation: log loudly, arm nothing.
func (s *Scheduler) scheduleRecurring(a Alert) {
	spec := fmt.Sprintf("0 %d * * * *", a.Schedule.Minute)
	eid, err := s.cron.AddFunc(spec, func() { s.fireRecurring(a) })
	if err != nil {
		s.log.Error("recurring trigger spec rejected; refusing to arm",
			logx.Int64("alert_id", a.ID),
			logx.String("spec", spec),
			logx.Err(err))
		return
	}
	s.reg.Set(a.ID, &cronTrigger{c: s.cron, id: eid})
	s.log.Debug("recurring armed", logx.Int64("alert_id", a.ID), logx.Int("minute", a.Schedule.Minute))
}

// Unschedule cancels and discards the trigger handle if present; otherwise it
// is a no-op. silent suppresses logging for internal cleanup, as opposed to
// user-initiated cancellation.
func (s *Scheduler) Unschedule(id int64, silent bool) bool {
	ok := s.reg.Remove(id)
	if ok && !silent {
		s.log.Info("alert unscheduled", logx.Int64("alert_id", id))
	}
	return ok
}

func (s *Scheduler) CancelAll(ids []int64) {
	for _, id := range ids {
		s.Unschedule(id, true)
	}
}

// fireOneShot runs on the timer goroutine. The registry removal is the claim:
// if another path (remove/clear) already took the handle, the firing is
// abandoned. Retirement from the store happens before the send so the alert
// is never both fired and listed; the send outcome cannot undo retirement.
func (s *Scheduler) fireOneShot(a Alert) {
	if !s.reg.Remove(a.ID) {
		return
	}
	s.store.Remove(a.ID)

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, s.notification(a)); err != nil {
		s.log.Error("one-shot delivery failed", logx.Int64("alert_id", a.ID), logx.Err(err))
	}
	s.log.Debug("one-shot retired", logx.Int64("alert_id", a.ID))
}

// fireRecurring delivers and leaves the alert armed for the next cycle.
func (s *Scheduler) fireRecurring(a Alert) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, s.notification(a)); err != nil {
		s.log.Error("recurring delivery failed", logx.Int64("alert_id", a.ID), logx.Err(err))
	}
}

func (s *Scheduler) notification(a Alert) transport.Notification {
	return transport.Notification{
		Target:    transport.ChatTarget{ChatID: a.ChannelID},
		Text:      a.Message,
		TagUserID: a.OwnerID,
	}
}

// timerTrigger wraps a single-fire timer. The fire goroutine selects on
// timer.C vs done; Stop wins the race by closing done.
type timerTrigger struct {
	timer *time.Timer
	done  chan struct{}
	once  sync.Once
}

func newTimerTrigger(delay time.Duration) *timerTrigger {
	return &timerTrigger{timer: time.NewTimer(delay), done: make(chan struct{})}
}

func (t *timerTrigger) Stop() {
	t.once.Do(func() {
		t.timer.Stop()
		close(t.done)
	})
}

// cronTrigger is an entry on the shared cron runner.
type cronTrigger struct {
	c  *cron.Cron
	id cron.EntryID
}

func (t *cronTrigger) Stop() { t.c.Remove(t.id) }
