package association

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCollision matches every [*CollisionError] via errors.Is.
	ErrCollision = errors.New("association already exists")
	// ErrStoreUnavailable wraps transport or backend failures from a store.
	ErrStoreUnavailable = errors.New("association store unavailable")
	// ErrRecordCorrupt is returned when a stored record cannot be decoded.
	ErrRecordCorrupt = errors.New("association record corrupt")
	// ErrInvalidID is returned for empty or oversized auth/user IDs.
	ErrInvalidID = errors.New("invalid association id")
	// ErrDuplicatePair is returned when one batch names the same key twice.
	ErrDuplicatePair = errors.New("duplicate key in association batch")
)

// KeyKind names the collection a colliding key belongs to.
type KeyKind string

const (
	// KeyAuthID marks a collision on the auth-ID keyed collection.
	KeyAuthID KeyKind = "auth_id"
	// KeyUserID marks a collision on the user-ID keyed collection.
	KeyUserID KeyKind = "user_id"
)

// Collision describes one key that is already associated.
type Collision struct {
	Kind     KeyKind
	Key      string
	Existing string
}

func (c Collision) opposite() KeyKind {
	if c.Kind == KeyAuthID {
		return KeyUserID
	}
	return KeyAuthID
}

// CollisionError is returned by associate operations when one or more keys
// already carry an association. It is permanent: retrying the same input
// collides again.
type CollisionError struct {
	Collisions []Collision
}

func (e *CollisionError) Error() string {
	if e == nil || len(e.Collisions) == 0 {
		return ErrCollision.Error()
	}
	if len(e.Collisions) == 1 {
		c := e.Collisions[0]
		return fmt.Sprintf("%s=%q is already associated with %s=%q", c.Kind, c.Key, c.opposite(), c.Existing)
	}

	parts := make([]string, 0, len(e.Collisions))
	for _, c := range e.Collisions {
		parts = append(parts, fmt.Sprintf("{%s=%q: %s=%q}", c.Kind, c.Key, c.opposite(), c.Existing))
	}
	return "already associated: " + strings.Join(parts, ", ")
}

// Is reports whether target is [ErrCollision].
func (e *CollisionError) Is(target error) bool {
	return target == ErrCollision
}

func validateID(kind KeyKind, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty %s", ErrInvalidID, kind)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%w: %s longer than %d bytes", ErrInvalidID, kind, MaxIDLength)
	}
	return nil
}

func (p Pair) validate() error {
	if err := validateID(KeyAuthID, p.AuthID); err != nil {
		return err
	}
	return validateID(KeyUserID, p.UserID)
}
