package association

import "context"

// ReconcileBatchSize is the scan page size used by [Service.Reconcile].
const ReconcileBatchSize = 500

// Reconcile walks every live AuthIDRecord and fills in the user-ID side where
// it is missing or unfilled. A user-ID side tombstoned with the same auth ID
// is an interrupted [Service.DeleteAssociations]; the sweep finishes it by
// tombstoning the AuthIDRecord. Records whose user-ID side points at a
// different auth ID, or is tombstoned without one, are reported as
// conflicting and left untouched, as are live records competing for a user
// ID already repaired during the sweep.
//
// Reconcile is the repair path for an [Service.Associate] interrupted between
// its two writes. It is safe to run repeatedly and concurrently with normal
// traffic, subject to last-write-wins per record.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	claimed := make(map[string]string)

	err := s.authIDs.ScanAuthIDRecords(ctx, ReconcileBatchSize, func(batch []*AuthIDRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		live := make([]*AuthIDRecord, 0, len(batch))
		userIDs := make([]string, 0, len(batch))
		for _, rec := range batch {
			if rec == nil {
				continue
			}
			report.Scanned++
			if rec.Deleted || rec.UserID == "" {
				continue
			}
			live = append(live, rec)
			userIDs = append(userIDs, rec.UserID)
		}
		if len(live) == 0 {
			return nil
		}

		userRecords, err := s.userAuth.GetUserAuthRecords(ctx, userIDs)
		if err != nil {
			return err
		}

		now := s.stamp()
		var fills []*UserAuthRecord
		var tombs []*AuthIDRecord
		for i, rec := range live {
			pair := Pair{AuthID: rec.AuthID, UserID: rec.UserID}
			if owner, ok := claimed[rec.UserID]; ok {
				if owner != rec.AuthID {
					report.Conflicting = append(report.Conflicting, pair)
				}
				continue
			}

			userRec := userRecords[i]
			switch {
			case userRec != nil && userRec.Deleted && userRec.AuthID == rec.AuthID:
				tomb := *rec
				tomb.Deleted = true
				touch(&tomb.CreatedAt, &tomb.UpdatedAt, now)
				tombs = append(tombs, &tomb)
				report.Tombstoned = append(report.Tombstoned, pair)
			case userRec != nil && userRec.Deleted:
				report.Conflicting = append(report.Conflicting, pair)
			case userRec == nil || userRec.AuthID == "":
				fills = append(fills, fillUserAuthRecord(userRec, pair, now))
				claimed[rec.UserID] = rec.AuthID
				report.Repaired = append(report.Repaired, pair)
			case userRec.AuthID != rec.AuthID:
				report.Conflicting = append(report.Conflicting, pair)
			}
		}
		if len(tombs) > 0 {
			if err := s.authIDs.PutAuthIDRecords(ctx, tombs); err != nil {
				return err
			}
		}
		if len(fills) == 0 {
			return nil
		}
		return s.userAuth.PutUserAuthRecords(ctx, fills)
	})
	if err != nil {
		return report, err
	}
	return report, nil
}
