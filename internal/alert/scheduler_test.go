package alert

import (
	"context"
	"sync"
	"testing"
	"time"

	"alertbot/internal/transport"
	logx "alertbot/pkg/logx"
)

type fakeNotifier struct {
	mu   sync.Mutex
	sent []transport.Notification
	ch   chan transport.Notification
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{ch: make(chan transport.Notification, 16)}
}

func (f *fakeNotifier) Notify(_ context.Context, n transport.Notification) error {
	f.mu.Lock()
	f.sent = append(f.sent, n)
	f.mu.Unlock()
	f.ch <- n
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newTestScheduler(t *testing.T) (*Scheduler, *Store, *Registry, *fakeNotifier) {
	t.Helper()
	store := NewStore()
	reg := NewRegistry(logx.Nop())
	fn := newFakeNotifier()
	sched := NewScheduler(store, reg, fn, time.UTC, logx.Nop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		sched.Stop(ctx)
	})
	return sched, store, reg, fn
}

func waitDelivery(t *testing.T, fn *fakeNotifier) transport.Notification {
	t.Helper()
	select {
	case n := <-fn.ch:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return transport.Notification{}
	}
}

func TestOneShotPastDueFiresOnceAndRetires(t *testing.T) {
	t.Parallel()
	sched, store, reg, fn := newTestScheduler(t)

	// Fire time already in the past: delay clamps to zero, still async.
	a := store.Create(7, 42, 100, OneShot(time.Now().Add(-time.Minute)), "hi")
	sched.Schedule(a)

	n := waitDelivery(t, fn)
	if n.Target.ChatID != 42 {
		t.Fatalf("delivered to chat %d, want 42", n.Target.ChatID)
	}
	if n.TagUserID != 7 {
		t.Fatalf("TagUserID = %d, want owner 7", n.TagUserID)
	}
	if n.Text != "hi" {
		t.Fatalf("text = %q, want %q", n.Text, "hi")
	}

	// Retirement precedes delivery, so by now the alert must be gone.
	if got := store.ListByOwner(7); len(got) != 0 {
		t.Fatalf("alert still listed after firing: %d", len(got))
	}
	if reg.Len() != 0 {
		t.Fatalf("registry still holds %d handles", reg.Len())
	}

	// No second delivery.
	select {
	case <-fn.ch:
		t.Fatal("one-shot delivered twice")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestOneShotZeroOffsetStillFires(t *testing.T) {
	t.Parallel()
	sched, store, _, fn := newTestScheduler(t)

	a := store.Create(1, 10, 100, OneShot(time.Now()), "now")
	sched.Schedule(a)
	if got := waitDelivery(t, fn); got.Text != "now" {
		t.Fatalf("text = %q", got.Text)
	}
}

func TestUnscheduleIdempotent(t *testing.T) {
	t.Parallel()
	sched, store, reg, fn := newTestScheduler(t)

	a := store.Create(1, 10, 100, OneShot(time.Now().Add(time.Hour)), "later")
	sched.Schedule(a)
	if reg.Len() != 1 {
		t.Fatalf("registry len = %d, want 1", reg.Len())
	}
	if !sched.Unschedule(a.ID, false) {
		t.Fatal("first unschedule reported no handle")
	}
	if sched.Unschedule(a.ID, false) {
		t.Fatal("second unschedule should be a no-op")
	}
	if reg.Len() != 0 {
		t.Fatalf("registry len = %d after unschedule", reg.Len())
	}
	select {
	case <-fn.ch:
		t.Fatal("cancelled alert still delivered")
	case <-time.After(150 * time.Millisecond):
	}
}

func TestFireAfterCancelIsNoOp(t *testing.T) {
	t.Parallel()
	sched, store, _, fn := newTestScheduler(t)

	a := store.Create(1, 10, 100, OneShot(time.Now().Add(time.Hour)), "later")
	sched.Schedule(a)
	sched.Unschedule(a.ID, true)

	// A firing racing a removal must lose the registry claim and stay silent.
	sched.fireOneShot(a)
	if fn.count() != 0 {
		t.Fatalf("delivered %d times after cancellation", fn.count())
	}
}

func TestDoubleFireDeliversOnce(t *testing.T) {
	t.Parallel()
	sched, store, _, fn := newTestScheduler(t)

	a := store.Create(1, 10, 100, OneShot(time.Now().Add(time.Hour)), "once")
	sched.Schedule(a)

	sched.fireOneShot(a)
	sched.fireOneShot(a)
	if fn.count() != 1 {
		t.Fatalf("delivered %d times, want exactly 1", fn.count())
	}
}

func TestRecurringArmsCronEntry(t *testing.T) {
	t.Parallel()
	sched, store, reg, _ := newTestScheduler(t)

	a := store.Create(1, 10, 100, Recurring(30), "hourly")
	sched.Schedule(a)
	if reg.Len() != 1 {
		t.Fatalf("registry len = %d, want 1", reg.Len())
	}
	if !sched.Unschedule(a.ID, true) {
		t.Fatal("unschedule found no handle")
	}
}

func TestRecurringInvalidSpecNotArmed(t *testing.T) {
	t.Parallel()
	sched, store, reg, _ := newTestScheduler(t)

	// Minute is range-validated at intake, so this can only happen if an
	// invariant broke; the scheduler must refuse to arm rather than panic.
	a := store.Create(1, 10, 100, Schedule{Kind: KindRecurring, Minute: 99}, "bad")
	sched.Schedule(a)
	if reg.Len() != 0 {
		t.Fatalf("invalid spec was armed")
	}
}

func TestRecurringFireDoesNotRetire(t *testing.T) {
	t.Parallel()
	sched, store, _, fn := newTestScheduler(t)

	a := store.Create(1, 10, 100, Recurring(30), "hourly")
	sched.Schedule(a)

	sched.fireRecurring(a)
	waitDelivery(t, fn)
	if got := store.ListByOwner(1); len(got) != 1 {
		t.Fatalf("recurring alert retired on fire: len = %d", len(got))
	}
}
