package association

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newServiceTest(t *testing.T) (*Service, *memStore, *testClock) {
	t.Helper()
	store := newMemStore()
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewService(store, store, WithClock(clock.Now)), store, clock
}

func mustAssociate(t *testing.T, svc *Service, authID, userID string) {
	t.Helper()
	if err := svc.Associate(context.Background(), Pair{AuthID: authID, UserID: userID}); err != nil {
		t.Fatalf("associate %s/%s: %v", authID, userID, err)
	}
}

func assertLookups(t *testing.T, svc *Service, authID, userID string) {
	t.Helper()
	ctx := context.Background()
	gotUser, ok, err := svc.LookupUserID(ctx, authID)
	if err != nil || !ok || gotUser != userID {
		t.Fatalf("LookupUserID(%q) = %q,%v,%v; want %q", authID, gotUser, ok, err, userID)
	}
	gotAuth, ok, err := svc.LookupAuthID(ctx, userID)
	if err != nil || !ok || gotAuth != authID {
		t.Fatalf("LookupAuthID(%q) = %q,%v,%v; want %q", userID, gotAuth, ok, err, authID)
	}
}

func collisionsOf(t *testing.T, err error) []Collision {
	t.Helper()
	if !errors.Is(err, ErrCollision) {
		t.Fatalf("expected ErrCollision, got %v", err)
	}
	var ce *CollisionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CollisionError, got %T", err)
	}
	return ce.Collisions
}

func TestAssociateThenLookupBothDirections(t *testing.T) {
	svc, _, _ := newServiceTest(t)
	mustAssociate(t, svc, "auth-1", "user-1")
	assertLookups(t, svc, "auth-1", "user-1")
}

func TestLookupMissingIsAbsent(t *testing.T) {
	svc, _, _ := newServiceTest(t)
	ctx := context.Background()

	if _, ok, err := svc.LookupUserID(ctx, "nobody"); err != nil || ok {
		t.Fatalf("expected absent user id, got ok=%v err=%v", ok, err)
	}
	if _, ok, err := svc.LookupAuthID(ctx, "nobody"); err != nil || ok {
		t.Fatalf("expected absent auth id, got ok=%v err=%v", ok, err)
	}
}

func TestAssociateCollisions(t *testing.T) {
	tests := []struct {
		name     string
		pair     Pair
		wantKind KeyKind
		wantKey  string
		wantPrev string
	}{
		{name: "same pair", pair: Pair{AuthID: "auth-1", UserID: "user-1"}, wantKind: KeyAuthID, wantKey: "auth-1", wantPrev: "user-1"},
		{name: "auth id taken", pair: Pair{AuthID: "auth-1", UserID: "user-2"}, wantKind: KeyAuthID, wantKey: "auth-1", wantPrev: "user-1"},
		{name: "user id taken", pair: Pair{AuthID: "auth-2", UserID: "user-1"}, wantKind: KeyUserID, wantKey: "user-1", wantPrev: "auth-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newServiceTest(t)
			mustAssociate(t, svc, "auth-1", "user-1")
			beforeAuth, beforeUser := store.snapshot()

			err := svc.Associate(context.Background(), tt.pair)
			got := collisionsOf(t, err)
			if len(got) != 1 {
				t.Fatalf("expected one collision, got %+v", got)
			}
			if got[0].Kind != tt.wantKind || got[0].Key != tt.wantKey || got[0].Existing != tt.wantPrev {
				t.Fatalf("unexpected collision %+v", got[0])
			}

			afterAuth, afterUser := store.snapshot()
			if !reflect.DeepEqual(beforeAuth, afterAuth) || !reflect.DeepEqual(beforeUser, afterUser) {
				t.Fatal("collision must not write")
			}
		})
	}
}

func TestAssociateReportsAuthSideFirst(t *testing.T) {
	svc, _, _ := newServiceTest(t)
	mustAssociate(t, svc, "auth-1", "user-1")
	mustAssociate(t, svc, "auth-2", "user-2")

	got := collisionsOf(t, svc.Associate(context.Background(), Pair{AuthID: "auth-1", UserID: "user-2"}))
	if got[0].Kind != KeyAuthID {
		t.Fatalf("expected auth-side collision first, got %+v", got[0])
	}
}

func TestAssociateFillsExistingUserRecord(t *testing.T) {
	svc, store, clock := newServiceTest(t)
	created := clock.Now().Add(-48 * time.Hour)
	store.userAuth["user-1"] = UserAuthRecord{UserID: "user-1", CreatedAt: created, UpdatedAt: created}

	mustAssociate(t, svc, "auth-1", "user-1")
	assertLookups(t, svc, "auth-1", "user-1")

	_, users := store.snapshot()
	rec := users["user-1"]
	if !rec.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt must be preserved, got %v", rec.CreatedAt)
	}
	if !rec.UpdatedAt.Equal(clock.Now()) {
		t.Fatalf("UpdatedAt must be refreshed, got %v", rec.UpdatedAt)
	}
}

func TestAssociateReplacesTombstonedUserRecord(t *testing.T) {
	svc, store, clock := newServiceTest(t)
	old := clock.Now().Add(-time.Hour)
	store.userAuth["user-1"] = UserAuthRecord{UserID: "user-1", AuthID: "auth-old", Deleted: true, CreatedAt: old, UpdatedAt: old}

	mustAssociate(t, svc, "auth-1", "user-1")
	assertLookups(t, svc, "auth-1", "user-1")

	_, users := store.snapshot()
	if users["user-1"].Deleted {
		t.Fatal("replacement record must be live")
	}
	if !users["user-1"].CreatedAt.Equal(clock.Now()) {
		t.Fatalf("replacement record must be fresh, got CreatedAt %v", users["user-1"].CreatedAt)
	}
}

func TestAssociateRejectsInvalidIDs(t *testing.T) {
	long := strings.Repeat("x", MaxIDLength+1)
	tests := []Pair{
		{AuthID: "", UserID: "user-1"},
		{AuthID: "auth-1", UserID: ""},
		{AuthID: long, UserID: "user-1"},
		{AuthID: "auth-1", UserID: long},
	}
	for _, pair := range tests {
		svc, store, _ := newServiceTest(t)
		if err := svc.Associate(context.Background(), pair); !errors.Is(err, ErrInvalidID) {
			t.Fatalf("Associate(%d/%d bytes): expected ErrInvalidID, got %v", len(pair.AuthID), len(pair.UserID), err)
		}
		if store.authPuts != 0 || store.userPuts != 0 {
			t.Fatal("invalid input must not write")
		}
	}
}

func TestAssociateInterruptedLeavesOneSidedMapping(t *testing.T) {
	svc, store, _ := newServiceTest(t)
	store.failPutUser = true

	err := svc.Associate(context.Background(), Pair{AuthID: "auth-1", UserID: "user-1"})
	if !errors.Is(err, errInjected) {
		t.Fatalf("expected injected failure, got %v", err)
	}

	ctx := context.Background()
	if _, ok, _ := svc.LookupUserID(ctx, "auth-1"); !ok {
		t.Fatal("first write should have landed")
	}
	if _, ok, _ := svc.LookupAuthID(ctx, "user-1"); ok {
		t.Fatal("second write should be missing")
	}
}

func TestAssociateManyMatchesSequentialAssociate(t *testing.T) {
	pairs := []Pair{
		{AuthID: "auth-1", UserID: "user-1"},
		{AuthID: "auth-2", UserID: "user-2"},
		{AuthID: "auth-3", UserID: "user-3"},
	}

	batch, batchStore, _ := newServiceTest(t)
	batchStore.userAuth["user-2"] = UserAuthRecord{UserID: "user-2"}
	if err := batch.AssociateMany(context.Background(), pairs); err != nil {
		t.Fatalf("associate many: %v", err)
	}

	seq, seqStore, _ := newServiceTest(t)
	seqStore.userAuth["user-2"] = UserAuthRecord{UserID: "user-2"}
	for _, p := range pairs {
		mustAssociate(t, seq, p.AuthID, p.UserID)
	}

	batchAuth, batchUser := batchStore.snapshot()
	seqAuth, seqUser := seqStore.snapshot()
	if !reflect.DeepEqual(batchAuth, seqAuth) {
		t.Fatalf("auth records differ:\nbatch=%+v\nseq=%+v", batchAuth, seqAuth)
	}
	if !reflect.DeepEqual(batchUser, seqUser) {
		t.Fatalf("user records differ:\nbatch=%+v\nseq=%+v", batchUser, seqUser)
	}
	if batchStore.authPuts != 1 || batchStore.userPuts != 1 {
		t.Fatalf("expected one bulk write per collection, got auth=%d user=%d", batchStore.authPuts, batchStore.userPuts)
	}
}

func TestAssociateManyCollisionWritesNothing(t *testing.T) {
	svc, store, _ := newServiceTest(t)
	mustAssociate(t, svc, "auth-1", "user-1")
	mustAssociate(t, svc, "auth-2", "user-2")
	beforeAuth, beforeUser := store.snapshot()

	err := svc.AssociateMany(context.Background(), []Pair{
		{AuthID: "auth-new", UserID: "user-new"},
		{AuthID: "auth-1", UserID: "user-x"},
		{AuthID: "auth-y", UserID: "user-2"},
		{AuthID: "auth-2", UserID: "user-z"},
	})
	got := collisionsOf(t, err)

	want := []Collision{
		{Kind: KeyAuthID, Key: "auth-1", Existing: "user-1"},
		{Kind: KeyAuthID, Key: "auth-2", Existing: "user-2"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("collisions = %+v, want %+v", got, want)
	}

	afterAuth, afterUser := store.snapshot()
	if !reflect.DeepEqual(beforeAuth, afterAuth) || !reflect.DeepEqual(beforeUser, afterUser) {
		t.Fatal("colliding batch must write nothing")
	}
}

func TestAssociateManyReportsUserSideWhenAuthSideClean(t *testing.T) {
	svc, _, _ := newServiceTest(t)
	mustAssociate(t, svc, "auth-1", "user-1")

	got := collisionsOf(t, svc.AssociateMany(context.Background(), []Pair{
		{AuthID: "auth-2", UserID: "user-1"},
		{AuthID: "auth-3", UserID: "user-3"},
	}))
	want := []Collision{{Kind: KeyUserID, Key: "user-1", Existing: "auth-1"}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("collisions = %+v, want %+v", got, want)
	}
}

func TestAssociateManyRejectsDuplicateKeys(t *testing.T) {
	tests := [][]Pair{
		{{AuthID: "a", UserID: "u1"}, {AuthID: "a", UserID: "u2"}},
		{{AuthID: "a1", UserID: "u"}, {AuthID: "a2", UserID: "u"}},
	}
	for i, pairs := range tests {
		svc, store, _ := newServiceTest(t)
		if err := svc.AssociateMany(context.Background(), pairs); !errors.Is(err, ErrDuplicatePair) {
			t.Fatalf("case %d: expected ErrDuplicatePair, got %v", i, err)
		}
		if store.authPuts != 0 || store.userPuts != 0 {
			t.Fatalf("case %d: duplicate batch must not write", i)
		}
	}
}

func TestAssociateManyEmptyIsNoop(t *testing.T) {
	svc, store, _ := newServiceTest(t)
	store.failGetAuth = true
	store.failGetUser = true

	if err := svc.AssociateMany(context.Background(), nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if store.authPuts != 0 || store.userPuts != 0 {
		t.Fatal("empty batch must not write")
	}
}

func TestLookupManyPreservesOrder(t *testing.T) {
	svc, _, _ := newServiceTest(t)
	mustAssociate(t, svc, "auth-1", "user-1")
	mustAssociate(t, svc, "auth-3", "user-3")
	ctx := context.Background()

	users, err := svc.LookupUserIDs(ctx, []string{"auth-3", "auth-2", "auth-1"})
	if err != nil {
		t.Fatalf("lookup user ids: %v", err)
	}
	wantUsers := []Optional{{Value: "user-3", Present: true}, {}, {Value: "user-1", Present: true}}
	if !reflect.DeepEqual(users, wantUsers) {
		t.Fatalf("LookupUserIDs = %+v, want %+v", users, wantUsers)
	}

	auths, err := svc.LookupAuthIDs(ctx, []string{"user-2", "user-1"})
	if err != nil {
		t.Fatalf("lookup auth ids: %v", err)
	}
	wantAuths := []Optional{{}, {Value: "auth-1", Present: true}}
	if !reflect.DeepEqual(auths, wantAuths) {
		t.Fatalf("LookupAuthIDs = %+v, want %+v", auths, wantAuths)
	}

	empty, err := svc.LookupAuthIDs(ctx, nil)
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty lookup = %+v, %v", empty, err)
	}
}

func TestDeleteAssociationsKeepsReverseLookup(t *testing.T) {
	svc, _, _ := newServiceTest(t)
	ctx := context.Background()
	mustAssociate(t, svc, "auth-1", "user-1")

	if err := svc.DeleteAssociations(ctx, "user-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, ok, err := svc.LookupAuthID(ctx, "user-1"); err != nil || ok {
		t.Fatalf("LookupAuthID after delete: ok=%v err=%v", ok, err)
	}
	userID, ok, err := svc.LookupUserID(ctx, "auth-1")
	if err != nil || !ok || userID != "user-1" {
		t.Fatalf("LookupUserID after delete = %q,%v,%v; want user-1", userID, ok, err)
	}
	batch, err := svc.LookupUserIDs(ctx, []string{"auth-1"})
	if err != nil || !batch[0].Present {
		t.Fatalf("LookupUserIDs after delete = %+v, %v", batch, err)
	}
}

func TestDeleteAssociationsTombstonesBothSides(t *testing.T) {
	svc, store, clock := newServiceTest(t)
	mustAssociate(t, svc, "auth-1", "user-1")
	clock.Advance(time.Minute)

	if err := svc.DeleteAssociations(context.Background(), "user-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	auths, users := store.snapshot()
	if !auths["auth-1"].Deleted || !users["user-1"].Deleted {
		t.Fatalf("both records must be tombstoned: %+v %+v", auths["auth-1"], users["user-1"])
	}
	if !auths["auth-1"].UpdatedAt.Equal(clock.Now()) || !users["user-1"].UpdatedAt.Equal(clock.Now()) {
		t.Fatal("tombstoning must refresh UpdatedAt")
	}
	if auths["auth-1"].CreatedAt.Equal(clock.Now()) {
		t.Fatal("tombstoning must keep CreatedAt")
	}
}

func TestDeleteAssociationsIsIdempotent(t *testing.T) {
	svc, store, clock := newServiceTest(t)
	ctx := context.Background()
	mustAssociate(t, svc, "auth-1", "user-1")

	if err := svc.DeleteAssociations(ctx, "user-1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	firstAuth, firstUser := store.snapshot()
	puts := store.authPuts + store.userPuts

	clock.Advance(time.Hour)
	if err := svc.DeleteAssociations(ctx, "user-1"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	secondAuth, secondUser := store.snapshot()
	if !reflect.DeepEqual(firstAuth, secondAuth) || !reflect.DeepEqual(firstUser, secondUser) {
		t.Fatal("second delete changed state")
	}
	if store.authPuts+store.userPuts != puts {
		t.Fatal("second delete must not write")
	}
}

func TestDeleteAssociationsUsesIndexWhenUserRecordMissing(t *testing.T) {
	svc, store, _ := newServiceTest(t)
	store.authIDs["auth-1"] = AuthIDRecord{AuthID: "auth-1", UserID: "user-1"}

	if err := svc.DeleteAssociations(context.Background(), "user-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	auths, users := store.snapshot()
	if !auths["auth-1"].Deleted {
		t.Fatal("auth record must be tombstoned through the index")
	}
	if _, ok := users["user-1"]; ok {
		t.Fatal("delete must not create a user record")
	}
}

func TestDeleteAssociationsLeavesForeignAuthRecord(t *testing.T) {
	svc, store, _ := newServiceTest(t)
	store.userAuth["user-1"] = UserAuthRecord{UserID: "user-1", AuthID: "auth-1"}
	store.authIDs["auth-1"] = AuthIDRecord{AuthID: "auth-1", UserID: "user-9"}

	if err := svc.DeleteAssociations(context.Background(), "user-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	auths, users := store.snapshot()
	if auths["auth-1"].Deleted {
		t.Fatal("auth record owned by another user must stay live")
	}
	if !users["user-1"].Deleted {
		t.Fatal("user record must be tombstoned")
	}
}

func TestDeleteAssociationsWithoutRecordsIsNoop(t *testing.T) {
	svc, store, _ := newServiceTest(t)
	if err := svc.DeleteAssociations(context.Background(), "ghost"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.authPuts != 0 || store.userPuts != 0 {
		t.Fatal("no-op delete must not write")
	}
}

func TestVerifyDeletedAlwaysTrue(t *testing.T) {
	svc, _, _ := newServiceTest(t)
	for _, userID := range []string{"", "user-1", "never-seen"} {
		ok, err := svc.VerifyDeleted(context.Background(), userID)
		if err != nil || !ok {
			t.Fatalf("VerifyDeleted(%q) = %v,%v", userID, ok, err)
		}
	}
}

func TestStoreFailuresPropagate(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*memStore)
		run   func(*Service) error
	}{
		{
			name:  "lookup user id",
			setup: func(m *memStore) { m.failGetAuth = true },
			run: func(s *Service) error {
				_, _, err := s.LookupUserID(context.Background(), "a")
				return err
			},
		},
		{
			name:  "lookup auth id",
			setup: func(m *memStore) { m.failGetUser = true },
			run: func(s *Service) error {
				_, _, err := s.LookupAuthID(context.Background(), "u")
				return err
			},
		},
		{
			name:  "associate first write",
			setup: func(m *memStore) { m.failPutAuth = true },
			run: func(s *Service) error {
				return s.Associate(context.Background(), Pair{AuthID: "a", UserID: "u"})
			},
		},
		{
			name:  "associate many read pass",
			setup: func(m *memStore) { m.failGetUser = true },
			run: func(s *Service) error {
				return s.AssociateMany(context.Background(), []Pair{{AuthID: "a", UserID: "u"}})
			},
		},
		{
			name:  "delete",
			setup: func(m *memStore) { m.failGetUser = true },
			run: func(s *Service) error {
				return s.DeleteAssociations(context.Background(), "u")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newServiceTest(t)
			tt.setup(store)
			if err := tt.run(svc); !errors.Is(err, errInjected) {
				t.Fatalf("expected injected error, got %v", err)
			}
		})
	}
}

func TestCollisionErrorMessage(t *testing.T) {
	single := &CollisionError{Collisions: []Collision{{Kind: KeyAuthID, Key: "a1", Existing: "u1"}}}
	if got, want := single.Error(), `auth_id="a1" is already associated with user_id="u1"`; got != want {
		t.Fatalf("single message = %q, want %q", got, want)
	}

	multi := &CollisionError{Collisions: []Collision{
		{Kind: KeyUserID, Key: "u1", Existing: "a1"},
		{Kind: KeyUserID, Key: "u2", Existing: "a2"},
	}}
	want := `already associated: {user_id="u1": auth_id="a1"}, {user_id="u2": auth_id="a2"}`
	if got := multi.Error(); got != want {
		t.Fatalf("multi message = %q, want %q", got, want)
	}
}
