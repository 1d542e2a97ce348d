package association

import "time"

// AuthIDRecord is the mapping entry keyed by the external auth ID.
type AuthIDRecord struct {
	AuthID    string
	UserID    string
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserAuthRecord is the mapping entry keyed by the internal user ID.
// An empty AuthID means the cross-reference has not been filled in yet.
type UserAuthRecord struct {
	UserID    string
	AuthID    string
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Pair is a single auth ID / user ID association to commit.
type Pair struct {
	AuthID string
	UserID string
}

// Optional is a lookup result that may be absent.
type Optional struct {
	Value   string
	Present bool
}

// ReconcileReport summarizes one [Service.Reconcile] sweep.
type ReconcileReport struct {
	Scanned     int
	Repaired    []Pair
	Conflicting []Pair
	// Tombstoned lists auth-ID records whose user had already been deleted.
	Tombstoned []Pair
}

// MaxIDLength is the largest accepted auth or user ID, in bytes.
const MaxIDLength = 255

func touch(createdAt *time.Time, updatedAt *time.Time, now time.Time) {
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}
