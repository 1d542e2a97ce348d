package authlink

import (
	"github.com/MrEthical07/authlink/association"
	"github.com/MrEthical07/authlink/claims"
)

type (
	// Pair is one auth ID / user ID association.
	Pair = association.Pair
	// Optional is a lookup result that may be absent.
	Optional = association.Optional
	// ReconcileReport summarizes one repair sweep.
	ReconcileReport = association.ReconcileReport
	// Claims identifies the signed-in principal.
	Claims = claims.Claims
	// CollisionError lists the keys that blocked an association.
	CollisionError = association.CollisionError
)

// UserIDGenerator returns a fresh internal user ID.
type UserIDGenerator func() string
