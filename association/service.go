package association

import (
	"context"
	"fmt"
	"time"
)

// Option customizes a [Service].
type Option func(*Service)

// WithClock overrides the time source used to stamp records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service translates between external auth IDs and internal user IDs.
//
// The two collections may live in the same backend or in different ones.
// Service holds no locks; it is safe for concurrent use when the stores are.
type Service struct {
	authIDs  AuthIDStore
	userAuth UserAuthStore
	now      func() time.Time
}

// NewService wires a Service over the two record collections.
func NewService(authIDs AuthIDStore, userAuth UserAuthStore, opts ...Option) *Service {
	s := &Service{
		authIDs:  authIDs,
		userAuth: userAuth,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) stamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// LookupAuthID returns the auth ID associated with userID. Missing,
// tombstoned and unfilled records all report absent.
func (s *Service) LookupAuthID(ctx context.Context, userID string) (string, bool, error) {
	out, err := s.LookupAuthIDs(ctx, []string{userID})
	if err != nil {
		return "", false, err
	}
	return out[0].Value, out[0].Present, nil
}

// LookupUserID returns the user ID associated with authID. Tombstoned
// records are still reported, so a deleted account keeps resolving in this
// direction.
func (s *Service) LookupUserID(ctx context.Context, authID string) (string, bool, error) {
	out, err := s.LookupUserIDs(ctx, []string{authID})
	if err != nil {
		return "", false, err
	}
	return out[0].Value, out[0].Present, nil
}

// LookupAuthIDs is the batched form of [Service.LookupAuthID]. The result has
// one entry per input, in input order.
func (s *Service) LookupAuthIDs(ctx context.Context, userIDs []string) ([]Optional, error) {
	out := make([]Optional, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	records, err := s.userAuth.GetUserAuthRecords(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	for i, rec := range records {
		if !needsCrossReference(rec) {
			out[i] = Optional{Value: rec.AuthID, Present: true}
		}
	}
	return out, nil
}

// LookupUserIDs is the batched form of [Service.LookupUserID].
func (s *Service) LookupUserIDs(ctx context.Context, authIDs []string) ([]Optional, error) {
	out := make([]Optional, len(authIDs))
	if len(authIDs) == 0 {
		return out, nil
	}
	records, err := s.authIDs.GetAuthIDRecords(ctx, authIDs)
	if err != nil {
		return nil, err
	}
	for i, rec := range records {
		if rec != nil && rec.UserID != "" {
			out[i] = Optional{Value: rec.UserID, Present: true}
		}
	}
	return out, nil
}

// Associate records that authID and userID refer to the same principal.
//
// The auth-ID side is checked first, so when both keys are taken the
// returned [*CollisionError] names the auth ID. On success the AuthIDRecord
// is written unconditionally and the UserAuthRecord is written only when it
// lacks a live cross-reference. The two writes are not atomic.
func (s *Service) Associate(ctx context.Context, pair Pair) error {
	if err := pair.validate(); err != nil {
		return err
	}

	existingUser, ok, err := s.LookupUserID(ctx, pair.AuthID)
	if err != nil {
		return err
	}
	if ok {
		return &CollisionError{Collisions: []Collision{{Kind: KeyAuthID, Key: pair.AuthID, Existing: existingUser}}}
	}

	userRecords, err := s.userAuth.GetUserAuthRecords(ctx, []string{pair.UserID})
	if err != nil {
		return err
	}
	if rec := userRecords[0]; !needsCrossReference(rec) {
		return &CollisionError{Collisions: []Collision{{Kind: KeyUserID, Key: pair.UserID, Existing: rec.AuthID}}}
	}

	return s.commit(ctx, []Pair{pair}, userRecords)
}

// AssociateMany is the batched form of [Service.Associate].
//
// Every pair is checked against current state before anything is written.
// If any pair collides nothing is written and a single [*CollisionError]
// lists every collision on the auth-ID side, or, when there are none, every
// collision on the user-ID side.
func (s *Service) AssociateMany(ctx context.Context, pairs []Pair) error {
	if len(pairs) == 0 {
		return nil
	}

	authIDs := make([]string, len(pairs))
	userIDs := make([]string, len(pairs))
	seenAuth := make(map[string]struct{}, len(pairs))
	seenUser := make(map[string]struct{}, len(pairs))
	for i, p := range pairs {
		if err := p.validate(); err != nil {
			return err
		}
		if _, dup := seenAuth[p.AuthID]; dup {
			return fmt.Errorf("%w: auth_id=%q", ErrDuplicatePair, p.AuthID)
		}
		if _, dup := seenUser[p.UserID]; dup {
			return fmt.Errorf("%w: user_id=%q", ErrDuplicatePair, p.UserID)
		}
		seenAuth[p.AuthID] = struct{}{}
		seenUser[p.UserID] = struct{}{}
		authIDs[i] = p.AuthID
		userIDs[i] = p.UserID
	}

	existingUsers, err := s.LookupUserIDs(ctx, authIDs)
	if err != nil {
		return err
	}
	var collisions []Collision
	for i, existing := range existingUsers {
		if existing.Present {
			collisions = append(collisions, Collision{Kind: KeyAuthID, Key: authIDs[i], Existing: existing.Value})
		}
	}
	if len(collisions) > 0 {
		return &CollisionError{Collisions: collisions}
	}

	userRecords, err := s.userAuth.GetUserAuthRecords(ctx, userIDs)
	if err != nil {
		return err
	}
	for i, rec := range userRecords {
		if !needsCrossReference(rec) {
			collisions = append(collisions, Collision{Kind: KeyUserID, Key: userIDs[i], Existing: rec.AuthID})
		}
	}
	if len(collisions) > 0 {
		return &CollisionError{Collisions: collisions}
	}

	return s.commit(ctx, pairs, userRecords)
}

// commit writes the auth-ID side for every pair, then fills the user-ID side
// where userRecords (aligned with pairs) has no live cross-reference.
func (s *Service) commit(ctx context.Context, pairs []Pair, userRecords []*UserAuthRecord) error {
	now := s.stamp()

	authRecords := make([]*AuthIDRecord, len(pairs))
	for i, p := range pairs {
		authRecords[i] = &AuthIDRecord{AuthID: p.AuthID, UserID: p.UserID, CreatedAt: now, UpdatedAt: now}
	}
	if err := s.authIDs.PutAuthIDRecords(ctx, authRecords); err != nil {
		return err
	}

	fills := make([]*UserAuthRecord, 0, len(pairs))
	for i, p := range pairs {
		if needsCrossReference(userRecords[i]) {
			fills = append(fills, fillUserAuthRecord(userRecords[i], p, now))
		}
	}
	if len(fills) == 0 {
		return nil
	}
	return s.userAuth.PutUserAuthRecords(ctx, fills)
}

// DeleteAssociations tombstones the association of userID on both sides.
//
// The auth-ID side is located through the UserAuthRecord when it carries a
// reference and through the user-ID index otherwise. Records that are
// already tombstoned are left untouched, so repeated calls are no-ops.
func (s *Service) DeleteAssociations(ctx context.Context, userID string) error {
	now := s.stamp()

	userRecords, err := s.userAuth.GetUserAuthRecords(ctx, []string{userID})
	if err != nil {
		return err
	}
	userRec := userRecords[0]

	if userRec != nil && !userRec.Deleted {
		tomb := *userRec
		tomb.Deleted = true
		touch(&tomb.CreatedAt, &tomb.UpdatedAt, now)
		if err := s.userAuth.PutUserAuthRecords(ctx, []*UserAuthRecord{&tomb}); err != nil {
			return err
		}
	}

	var authRec *AuthIDRecord
	if userRec != nil && userRec.AuthID != "" {
		authRecords, err := s.authIDs.GetAuthIDRecords(ctx, []string{userRec.AuthID})
		if err != nil {
			return err
		}
		authRec = authRecords[0]
	} else {
		authRec, err = s.authIDs.FindAuthIDRecordByUserID(ctx, userID)
		if err != nil {
			return err
		}
	}

	// An auth ID since associated with another user belongs to that user.
	if authRec == nil || authRec.Deleted || authRec.UserID != userID {
		return nil
	}
	tomb := *authRec
	tomb.Deleted = true
	touch(&tomb.CreatedAt, &tomb.UpdatedAt, now)
	return s.authIDs.PutAuthIDRecords(ctx, []*AuthIDRecord{&tomb})
}

// VerifyDeleted reports whether every association of userID has been
// removed. All associations live in this store, so it is always true.
func (s *Service) VerifyDeleted(ctx context.Context, userID string) (bool, error) {
	return true, nil
}

func needsCrossReference(rec *UserAuthRecord) bool {
	return rec == nil || rec.Deleted || rec.AuthID == ""
}

func fillUserAuthRecord(existing *UserAuthRecord, pair Pair, now time.Time) *UserAuthRecord {
	if existing == nil || existing.Deleted {
		return &UserAuthRecord{UserID: pair.UserID, AuthID: pair.AuthID, CreatedAt: now, UpdatedAt: now}
	}
	filled := *existing
	filled.AuthID = pair.AuthID
	touch(&filled.CreatedAt, &filled.UpdatedAt, now)
	return &filled
}
