package alert

import (
	"fmt"
	"time"
)

type ScheduleKind int

const (
	// KindOneShot fires once at FireAt, then the alert is retired.
	KindOneShot ScheduleKind = iota
	// KindRecurring fires every hour at Minute (second 0) until removed.
	KindRecurring
)

// Schedule is a tagged variant: exactly one of the two modes applies.
type Schedule struct {
	Kind   ScheduleKind
	FireAt time.Time // one-shot only
	Minute int       // recurring only, 0-59
}

func OneShot(at time.Time) Schedule { return Schedule{Kind: KindOneShot, FireAt: at} }

func Recurring(minute int) Schedule { return Schedule{Kind: KindRecurring, Minute: minute} }

// Describe renders a short human-readable schedule descriptor for
// confirmations and listings, in the given location.
func (s Schedule) Describe(loc *time.Location) string {
	switch s.Kind {
	case KindOneShot:
		return "at " + s.FireAt.In(loc).Format("2006-01-02 15:04")
	case KindRecurring:
		return fmt.Sprintf("hourly at :%02d", s.Minute)
	default:
		return "unknown"
	}
}

// Alert is one user-owned scheduled notification.
//
// ID is assigned by the store from a monotonic counter and is never reused
// for the lifetime of the process. OriginID records the group the request
// came from and is informational only; ChannelID is the delivery destination,
// captured from the chat the request originated in.
type Alert struct {
	ID        int64
	OwnerID   int64
	ChannelID int64
	OriginID  int64
	Schedule  Schedule
	Message   string
	CreatedAt time.Time
}
