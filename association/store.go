package association

import "context"

// AuthIDStore persists [AuthIDRecord] values keyed by auth ID.
//
// Reads return records regardless of their tombstone flag; filtering is the
// caller's concern. Batched reads return one entry per input key, in input
// order, with nil for missing keys.
type AuthIDStore interface {
	GetAuthIDRecords(ctx context.Context, authIDs []string) ([]*AuthIDRecord, error)
	PutAuthIDRecords(ctx context.Context, records []*AuthIDRecord) error
	// FindAuthIDRecordByUserID resolves the record whose UserID matches,
	// or nil when none is indexed.
	FindAuthIDRecordByUserID(ctx context.Context, userID string) (*AuthIDRecord, error)
	// ScanAuthIDRecords visits every stored record in batches of roughly
	// batchSize. Iteration stops at the first error returned by fn.
	ScanAuthIDRecords(ctx context.Context, batchSize int, fn func([]*AuthIDRecord) error) error
}

// UserAuthStore persists [UserAuthRecord] values keyed by user ID, with the
// same read semantics as [AuthIDStore].
type UserAuthStore interface {
	GetUserAuthRecords(ctx context.Context, userIDs []string) ([]*UserAuthRecord, error)
	PutUserAuthRecords(ctx context.Context, records []*UserAuthRecord) error
}

// Store is a backend serving both collections.
type Store interface {
	AuthIDStore
	UserAuthStore
	Ping(ctx context.Context) error
}
