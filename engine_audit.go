package authlink

import (
	"context"
	"errors"

	"github.com/MrEthical07/authlink/association"
	"github.com/MrEthical07/authlink/claims"
)

const (
	auditEventAssociationCreated  = "association_created"
	auditEventAssociationRejected = "association_rejected"
	auditEventUserDeleted         = "user_deleted"
	auditEventUserResolved        = "user_resolved"
	auditEventReconcileSweep      = "reconcile_sweep"
	auditEventSessionDestroyed    = "session_destroyed"
)

// AuditErrorCode defines a public type used by authlink APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrCollision      AuditErrorCode = "collision"
	auditErrInvalidID      AuditErrorCode = "invalid_id"
	auditErrDuplicate      AuditErrorCode = "duplicate"
	auditErrUnavailable    AuditErrorCode = "backend_unavailable"
	auditErrCorrupt        AuditErrorCode = "record_corrupt"
	auditErrInvalidSession AuditErrorCode = "invalid_session"
	auditErrStaleSession   AuditErrorCode = "stale_session"
	auditErrUnauthorized   AuditErrorCode = "unauthorized"
	auditErrCanceled       AuditErrorCode = "canceled"
	auditErrInternal       AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	authID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserID:    userID,
		AuthID:    authID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func collisionMetadata(ce *association.CollisionError) map[string]string {
	out := make(map[string]string, len(ce.Collisions))
	for _, c := range ce.Collisions {
		out[string(c.Kind)+":"+c.Key] = c.Existing
	}
	return out
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, association.ErrCollision):
		return auditErrCollision
	case errors.Is(err, association.ErrInvalidID):
		return auditErrInvalidID
	case errors.Is(err, association.ErrDuplicatePair):
		return auditErrDuplicate
	case errors.Is(err, association.ErrStoreUnavailable):
		return auditErrUnavailable
	case errors.Is(err, association.ErrRecordCorrupt):
		return auditErrCorrupt
	case errors.Is(err, claims.ErrInvalidSession):
		return auditErrInvalidSession
	case errors.Is(err, claims.ErrStaleSession):
		return auditErrStaleSession
	case errors.Is(err, ErrUnauthorized):
		return auditErrUnauthorized
	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return auditErrCanceled
	default:
		return auditErrInternal
	}
}
