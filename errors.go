package authlink

import (
	"errors"

	"github.com/MrEthical07/authlink/association"
	"github.com/MrEthical07/authlink/claims"
)

var (
	// ErrEngineNotReady is returned when an Engine method is called on an
	// Engine that did not come from [Builder.Build].
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrUnauthorized is returned when an operation needs a signed-in
	// principal and none is present.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the principal lacks admin rights.
	ErrForbidden = errors.New("forbidden")

	// ErrCollision matches any *association.CollisionError.
	ErrCollision = association.ErrCollision
	// ErrStoreUnavailable wraps every storage backend failure.
	ErrStoreUnavailable = association.ErrStoreUnavailable
	// ErrRecordCorrupt is returned for stored payloads that cannot be decoded.
	ErrRecordCorrupt = association.ErrRecordCorrupt
	// ErrInvalidID is returned for empty or oversized IDs.
	ErrInvalidID = association.ErrInvalidID
	// ErrDuplicatePair is returned when one batch repeats an auth or user ID.
	ErrDuplicatePair = association.ErrDuplicatePair

	// ErrInvalidSession is returned by claims providers for malformed or
	// untrusted credentials.
	ErrInvalidSession = claims.ErrInvalidSession
	// ErrStaleSession is returned by claims providers for expired credentials.
	ErrStaleSession = claims.ErrStaleSession
)
