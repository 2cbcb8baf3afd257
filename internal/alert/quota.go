package alert

// DefaultMaxPerUser is the default cap on concurrently pending alerts per
// owner.
const DefaultMaxPerUser = 10

// Quota guards admission of new alerts. The check itself is trivial; the
// important part is that Service evaluates it and inserts the record under
// one lock, so two concurrent adds cannot both pass and jointly exceed the
// cap.
type Quota struct {
	Max int
}

func NewQuota(max int) Quota {
	if max <= 0 {
		max = DefaultMaxPerUser
	}
	return Quota{Max: max}
}

func (q Quota) CanAdmit(count int) bool { return count < q.Max }
