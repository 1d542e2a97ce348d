package authlink

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/MrEthical07/authlink/association"
	"github.com/MrEthical07/authlink/claims"
	"github.com/MrEthical07/authlink/session"
	"github.com/sirupsen/logrus"
)

// Engine defines a public type used by authlink APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	store        association.Store
	associations *association.Service
	hooks        *session.Hooks
	audit        *auditDispatcher
	metrics      *Metrics
	logger       logrus.FieldLogger
	newUserID    UserIDGenerator
	now          func() time.Time
	closers      []io.Closer
}

// Close stops the audit dispatcher and closes clients the Engine opened
// itself. Clients passed to the [Builder] are left open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	for _, c := range e.closers {
		if err := c.Close(); err != nil && e.logger != nil {
			e.logger.WithError(err).Warn("close store client")
		}
	}
	e.closers = nil
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the configuration the Engine was built with.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, n int) {
	if e == nil || e.metrics == nil || n <= 0 {
		return
	}
	e.metrics.Add(id, uint64(n))
}

func (e *Engine) observeStore(start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(MetricStoreLatency, time.Since(start))
}

func (e *Engine) ready() error {
	if e == nil || e.associations == nil {
		return ErrEngineNotReady
	}
	return nil
}

// Ping reports whether the association backend is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.store.Ping(ctx)
}

/*
====================================
ASSOCIATIONS
====================================
*/

// LookupAuthID returns the auth ID linked to userID. Deleted users and users
// whose cross-reference was never filled in are reported absent.
func (e *Engine) LookupAuthID(ctx context.Context, userID string) (string, bool, error) {
	if err := e.ready(); err != nil {
		return "", false, err
	}
	defer e.observeStore(time.Now())
	e.metricInc(MetricLookup)

	authID, ok, err := e.associations.LookupAuthID(ctx, userID)
	if err != nil {
		e.lookupFailed(err, logrus.Fields{"op": "lookup_auth_id", "user_id": userID})
	}
	return authID, ok, err
}

// LookupUserID returns the user ID linked to authID, including users that
// have since been deleted.
func (e *Engine) LookupUserID(ctx context.Context, authID string) (string, bool, error) {
	if err := e.ready(); err != nil {
		return "", false, err
	}
	defer e.observeStore(time.Now())
	e.metricInc(MetricLookup)

	userID, ok, err := e.associations.LookupUserID(ctx, authID)
	if err != nil {
		e.lookupFailed(err, logrus.Fields{"op": "lookup_user_id", "auth_id": authID})
	}
	return userID, ok, err
}

// LookupAuthIDs is the batched form of [Engine.LookupAuthID]. Results are in
// input order.
func (e *Engine) LookupAuthIDs(ctx context.Context, userIDs []string) ([]Optional, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	defer e.observeStore(time.Now())
	e.metricInc(MetricLookup)

	out, err := e.associations.LookupAuthIDs(ctx, userIDs)
	if err != nil {
		e.lookupFailed(err, logrus.Fields{"op": "lookup_auth_ids", "count": len(userIDs)})
	}
	return out, err
}

// LookupUserIDs is the batched form of [Engine.LookupUserID]. Results are in
// input order.
func (e *Engine) LookupUserIDs(ctx context.Context, authIDs []string) ([]Optional, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	defer e.observeStore(time.Now())
	e.metricInc(MetricLookup)

	out, err := e.associations.LookupUserIDs(ctx, authIDs)
	if err != nil {
		e.lookupFailed(err, logrus.Fields{"op": "lookup_user_ids", "count": len(authIDs)})
	}
	return out, err
}

func (e *Engine) lookupFailed(err error, fields logrus.Fields) {
	e.metricInc(MetricLookupFailure)
	e.logger.WithFields(fields).WithError(err).Error("association lookup failed")
}

// Associate links authID and userID. It fails with an error matching
// [ErrCollision] when either ID already belongs to a different mapping.
func (e *Engine) Associate(ctx context.Context, authID, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	start := time.Now()
	err := e.associations.Associate(ctx, Pair{AuthID: authID, UserID: userID})
	e.observeStore(start)

	e.recordAssociate(ctx, []Pair{{AuthID: authID, UserID: userID}}, err)
	return err
}

// AssociateMany links every pair or none of them. Collisions are detected
// before anything is written.
func (e *Engine) AssociateMany(ctx context.Context, pairs []Pair) error {
	if err := e.ready(); err != nil {
		return err
	}
	start := time.Now()
	err := e.associations.AssociateMany(ctx, pairs)
	e.observeStore(start)

	e.recordAssociate(ctx, pairs, err)
	return err
}

func (e *Engine) recordAssociate(ctx context.Context, pairs []Pair, err error) {
	if err == nil {
		e.metricAdd(MetricAssociateSuccess, len(pairs))
		for _, p := range pairs {
			e.emitAudit(ctx, auditEventAssociationCreated, true, p.UserID, p.AuthID, nil, nil)
		}
		return
	}

	var ce *association.CollisionError
	if errors.As(err, &ce) {
		e.metricInc(MetricAssociateCollision)
		for _, c := range ce.Collisions {
			fields := logrus.Fields{"op": "associate", string(c.Kind): c.Key}
			e.logger.WithFields(fields).Warn("association collision")
		}
		e.emitAudit(ctx, auditEventAssociationRejected, false, "", "", err, func() map[string]string {
			return collisionMetadata(ce)
		})
		return
	}

	e.metricInc(MetricAssociateFailure)
	fields := logrus.Fields{"op": "associate", "count": len(pairs)}
	if len(pairs) == 1 {
		fields["auth_id"] = pairs[0].AuthID
		fields["user_id"] = pairs[0].UserID
	}
	e.logger.WithFields(fields).WithError(err).Error("associate failed")
	e.emitAudit(ctx, auditEventAssociationRejected, false, "", "", err, nil)
}

// Reconcile runs one repair sweep over one-sided mappings.
func (e *Engine) Reconcile(ctx context.Context) (ReconcileReport, error) {
	if err := e.ready(); err != nil {
		return ReconcileReport{}, err
	}
	start := time.Now()
	report, err := e.associations.Reconcile(ctx)

	e.metricAdd(MetricReconcileRepaired, len(report.Repaired))
	e.metricAdd(MetricReconcileConflict, len(report.Conflicting))
	e.metricAdd(MetricUserDeleted, len(report.Tombstoned))

	entry := e.logger.WithFields(logrus.Fields{
		"op":          "reconcile",
		"scanned":     report.Scanned,
		"repaired":    len(report.Repaired),
		"conflicting": len(report.Conflicting),
		"tombstoned":  len(report.Tombstoned),
		"duration":    time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Error("reconcile sweep aborted")
	} else {
		entry.Info("reconcile sweep complete")
	}
	for _, p := range report.Conflicting {
		e.logger.WithFields(logrus.Fields{"auth_id": p.AuthID, "user_id": p.UserID}).
			Warn("one-sided mapping left unrepaired")
	}

	e.emitAudit(ctx, auditEventReconcileSweep, err == nil, "", "", err, func() map[string]string {
		return map[string]string{
			"scanned":     strconv.Itoa(report.Scanned),
			"repaired":    strconv.Itoa(len(report.Repaired)),
			"conflicting": strconv.Itoa(len(report.Conflicting)),
			"tombstoned":  strconv.Itoa(len(report.Tombstoned)),
		}
	})
	return report, err
}

/*
====================================
SESSION HOOKS
====================================
*/

// Hooks returns the session lifecycle adapter.
func (e *Engine) Hooks() *session.Hooks {
	if e == nil {
		return nil
	}
	return e.hooks
}

// OnSessionEstablished does nothing. The external platform owns session
// creation.
func (e *Engine) OnSessionEstablished(w http.ResponseWriter, r *http.Request) error {
	if e == nil || e.hooks == nil {
		return ErrEngineNotReady
	}
	return e.hooks.OnSessionEstablished(w, r)
}

// OnSessionDestroyed appends the Set-Cookie directives that expire every
// platform session cookie.
func (e *Engine) OnSessionDestroyed(ctx context.Context, header http.Header) {
	if e == nil || e.hooks == nil {
		return
	}
	e.hooks.OnSessionDestroyed(header)
	e.metricInc(MetricSessionDestroyed)

	var authID string
	if c := ClaimsFromContext(ctx); c != nil {
		authID = c.AuthID
	}
	userID, _ := UserIDFromContext(ctx)
	e.emitAudit(ctx, auditEventSessionDestroyed, true, userID, authID, nil, nil)
}

// CurrentClaims returns the signed-in principal, or (nil, nil) when nobody
// is signed in. Provider errors are returned unchanged.
func (e *Engine) CurrentClaims(r *http.Request) (*Claims, error) {
	if e == nil || e.hooks == nil {
		return nil, ErrEngineNotReady
	}
	c, err := e.hooks.CurrentClaims(r)
	switch {
	case err == nil:
	case errors.Is(err, claims.ErrStaleSession):
		e.metricInc(MetricClaimsStale)
	case errors.Is(err, claims.ErrInvalidSession):
		e.metricInc(MetricClaimsInvalid)
		e.logger.WithError(err).Debug("invalid session credentials")
	default:
		e.logger.WithError(err).Warn("claims provider failed")
	}
	return c, err
}
