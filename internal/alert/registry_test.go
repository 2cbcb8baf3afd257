package alert

import (
	"sync"
	"testing"

	logx "alertbot/pkg/logx"
)

type stubTrigger struct {
	mu      sync.Mutex
	stopped int
}

func (s *stubTrigger) Stop() {
	s.mu.Lock()
	s.stopped++
	s.mu.Unlock()
}

func (s *stubTrigger) stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func TestRegistryRemoveStopsHandle(t *testing.T) {
	t.Parallel()
	r := NewRegistry(logx.Nop())
	tr := &stubTrigger{}
	r.Set(1, tr)

	if !r.Remove(1) {
		t.Fatal("remove reported no handle")
	}
	if tr.stops() != 1 {
		t.Fatalf("handle stopped %d times, want 1", tr.stops())
	}
	if r.Remove(1) {
		t.Fatal("second remove should report absent")
	}
}

func TestRegistryDuplicateSetStopsPrior(t *testing.T) {
	t.Parallel()
	r := NewRegistry(logx.Nop())
	first := &stubTrigger{}
	second := &stubTrigger{}

	r.Set(1, first)
	r.Set(1, second)
	if first.stops() != 1 {
		t.Fatal("prior handle leaked on duplicate set")
	}
	if second.stops() != 0 {
		t.Fatal("new handle must stay live")
	}
	if r.Len() != 1 {
		t.Fatalf("len = %d, want 1", r.Len())
	}
}

func TestRegistryClear(t *testing.T) {
	t.Parallel()
	r := NewRegistry(logx.Nop())
	a := &stubTrigger{}
	b := &stubTrigger{}
	r.Set(1, a)
	r.Set(2, b)

	r.Clear()
	if r.Len() != 0 {
		t.Fatalf("len = %d after clear", r.Len())
	}
	if a.stops() != 1 || b.stops() != 1 {
		t.Fatalf("handles not stopped: %d/%d", a.stops(), b.stops())
	}
}

func TestQuotaCanAdmit(t *testing.T) {
	t.Parallel()
	q := NewQuota(0) // zero falls back to the default cap
	if q.Max != DefaultMaxPerUser {
		t.Fatalf("max = %d, want %d", q.Max, DefaultMaxPerUser)
	}
	if !q.CanAdmit(DefaultMaxPerUser - 1) {
		t.Fatal("count below cap must admit")
	}
	if q.CanAdmit(DefaultMaxPerUser) {
		t.Fatal("count at cap must reject")
	}
}
