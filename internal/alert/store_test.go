package alert

import (
	"errors"
	"testing"
	"time"
)

func TestStoreIDsMonotonicNeverReused(t *testing.T) {
	t.Parallel()
	s := NewStore()

	a1 := s.Create(1, 10, 100, Recurring(5), "one")
	if a1.ID != 1 {
		t.Fatalf("first id = %d, want 1", a1.ID)
	}
	if _, err := s.RemoveByID(a1.ID, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	a2 := s.Create(1, 10, 100, Recurring(6), "two")
	if a2.ID != 2 {
		t.Fatalf("id after delete = %d, want 2 (ids are never reused)", a2.ID)
	}
}

func TestStoreMessageTrimmed(t *testing.T) {
	t.Parallel()
	s := NewStore()
	a := s.Create(1, 10, 100, Recurring(5), "  hi there \n")
	if a.Message != "hi there" {
		t.Fatalf("message = %q, want trimmed", a.Message)
	}
}

func TestStoreListByOwnerOrdering(t *testing.T) {
	t.Parallel()
	s := NewStore()
	now := time.Now()

	// Insert one-shots out of fire order, plus recurring records.
	late := s.Create(1, 10, 100, OneShot(now.Add(3*time.Hour)), "late")
	rec1 := s.Create(1, 10, 100, Recurring(30), "rec1")
	early := s.Create(1, 10, 100, OneShot(now.Add(1*time.Hour)), "early")
	rec2 := s.Create(1, 10, 100, Recurring(10), "rec2")
	s.Create(2, 10, 100, OneShot(now), "other owner")

	got := s.ListByOwner(1)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	wantOrder := []int64{early.ID, late.ID, rec1.ID, rec2.ID}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Fatalf("position %d: got #%d, want #%d", i, got[i].ID, id)
		}
	}
}

func TestStoreListIsSnapshot(t *testing.T) {
	t.Parallel()
	s := NewStore()
	a := s.Create(1, 10, 100, Recurring(5), "x")
	got := s.ListByOwner(1)
	if _, err := s.RemoveByID(a.ID, 1); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("snapshot changed after removal: len = %d", len(got))
	}
}

func TestStoreRemoveOwnershipIndistinguishable(t *testing.T) {
	t.Parallel()
	s := NewStore()
	a := s.Create(1, 10, 100, Recurring(5), "mine")

	_, errForeign := s.RemoveByID(a.ID, 2)
	_, errMissing := s.RemoveByID(999, 2)
	if !errors.Is(errForeign, ErrNotFound) || !errors.Is(errMissing, ErrNotFound) {
		t.Fatalf("want ErrNotFound for both, got %v / %v", errForeign, errMissing)
	}
	// The foreign attempt must not have removed anything.
	if s.CountByOwner(1) != 1 {
		t.Fatalf("owner's alert was removed by a foreign request")
	}
}

func TestStoreRemoveAllByOwner(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Create(1, 10, 100, Recurring(1), "a")
	s.Create(1, 10, 100, Recurring(2), "b")
	s.Create(2, 10, 100, Recurring(3), "c")

	removed := s.RemoveAllByOwner(1)
	if len(removed) != 2 {
		t.Fatalf("removed %d, want 2", len(removed))
	}
	if s.CountByOwner(1) != 0 || s.CountByOwner(2) != 1 {
		t.Fatalf("counts after clear: owner1=%d owner2=%d", s.CountByOwner(1), s.CountByOwner(2))
	}
}
