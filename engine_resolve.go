package authlink

import (
	"context"
	"errors"

	"github.com/MrEthical07/authlink/association"
	"github.com/sirupsen/logrus"
)

// ResolveUser maps the signed-in principal to its internal user ID. On first
// sight it associates a freshly generated ID and reports created=true. When
// a concurrent first sign-in wins the race, the winner's user ID is
// returned instead.
//
// newUserID overrides the Engine's generator for this call; pass nil to use
// the default. The returned user ID may belong to a deleted user.
func (e *Engine) ResolveUser(ctx context.Context, c *Claims, newUserID UserIDGenerator) (string, bool, error) {
	if err := e.ready(); err != nil {
		return "", false, err
	}
	if c == nil || c.AuthID == "" {
		return "", false, ErrUnauthorized
	}

	userID, ok, err := e.LookupUserID(ctx, c.AuthID)
	if err != nil {
		return "", false, err
	}
	if ok {
		e.metricInc(MetricResolveExisting)
		return userID, false, nil
	}

	gen := newUserID
	if gen == nil {
		gen = e.newUserID
	}
	candidate := gen()

	err = e.Associate(ctx, c.AuthID, candidate)
	if err == nil {
		e.metricInc(MetricResolveCreated)
		e.logger.WithFields(logrus.Fields{"op": "resolve_user", "auth_id": c.AuthID, "user_id": candidate}).
			Info("new principal associated")
		e.emitAudit(ctx, auditEventUserResolved, true, candidate, c.AuthID, nil, func() map[string]string {
			return map[string]string{"created": "true"}
		})
		return candidate, true, nil
	}
	if !errors.Is(err, association.ErrCollision) {
		return "", false, err
	}

	// Lost the race: the auth ID now belongs to whoever committed first.
	userID, ok, lookupErr := e.LookupUserID(ctx, c.AuthID)
	if lookupErr != nil {
		return "", false, lookupErr
	}
	if !ok {
		return "", false, err
	}
	e.metricInc(MetricResolveExisting)
	return userID, false, nil
}
