package authlink

import (
	"context"

	"github.com/sirupsen/logrus"
)

// MarkUserDeleted tombstones the user's associations. Afterwards
// LookupAuthID(userID) is absent while LookupUserID(authID) still returns
// userID, so a returning principal resolves to the deleted account instead
// of a fresh one. Repeated calls are harmless.
func (e *Engine) MarkUserDeleted(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}

	err := e.associations.DeleteAssociations(ctx, userID)
	if err != nil {
		e.logger.WithFields(logrus.Fields{"op": "mark_user_deleted", "user_id": userID}).
			WithError(err).Error("tombstoning associations failed")
		e.emitAudit(ctx, auditEventUserDeleted, false, userID, "", err, nil)
		return err
	}

	e.metricInc(MetricUserDeleted)
	e.logger.WithFields(logrus.Fields{"op": "mark_user_deleted", "user_id": userID}).
		Info("associations tombstoned")
	e.emitAudit(ctx, auditEventUserDeleted, true, userID, "", nil, nil)
	return nil
}

// DeleteExternalAssociations is part of the account deletion protocol. The
// external platform keeps no per-user data on our behalf, so there is
// nothing to remove.
func (e *Engine) DeleteExternalAssociations(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return nil
}

// VerifyExternalAssociationsDeleted always reports true; see
// [Engine.DeleteExternalAssociations].
func (e *Engine) VerifyExternalAssociationsDeleted(ctx context.Context, userID string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.associations.VerifyDeleted(ctx, userID)
}
