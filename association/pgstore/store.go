// Package pgstore is the PostgreSQL backend for the association collections.
//
// Tables are created by the embedded migrations (see [Migrate]). Batched
// reads use a single ANY($1) query; batched writes upsert every row inside
// one transaction. That transaction covers one collection only, so it does
// not make [association.Service.Associate] atomic across both sides.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authlink/association"
	"github.com/lib/pq"
)

const (
	selectAuthIDRecords = `SELECT auth_id, user_id, deleted, created_at, updated_at
FROM auth_id_associations WHERE auth_id = ANY($1)`

	selectAuthIDRecordByUser = `SELECT auth_id, user_id, deleted, created_at, updated_at
FROM auth_id_associations WHERE user_id = $1 ORDER BY deleted ASC, updated_at DESC LIMIT 1`

	scanAuthIDRecords = `SELECT auth_id, user_id, deleted, created_at, updated_at
FROM auth_id_associations WHERE auth_id > $1 ORDER BY auth_id LIMIT $2`

	upsertAuthIDRecord = `INSERT INTO auth_id_associations (auth_id, user_id, deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (auth_id) DO UPDATE SET
    user_id = EXCLUDED.user_id,
    deleted = EXCLUDED.deleted,
    created_at = EXCLUDED.created_at,
    updated_at = EXCLUDED.updated_at`

	selectUserAuthRecords = `SELECT user_id, auth_id, deleted, created_at, updated_at
FROM user_auth_details WHERE user_id = ANY($1)`

	upsertUserAuthRecord = `INSERT INTO user_auth_details (user_id, auth_id, deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO UPDATE SET
    auth_id = EXCLUDED.auth_id,
    deleted = EXCLUDED.deleted,
    created_at = EXCLUDED.created_at,
    updated_at = EXCLUDED.updated_at`
)

// Store keeps both association collections in PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ association.Store = (*Store)(nil)

// NewStore wraps an open database handle. The caller owns db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open returns a lib/pq handle for databaseURL. Connections are made lazily;
// use [Store.Ping] to check reachability.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", association.ErrStoreUnavailable, err)
	}
	return db, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuthIDRecord(row rowScanner) (*association.AuthIDRecord, error) {
	var rec association.AuthIDRecord
	if err := row.Scan(&rec.AuthID, &rec.UserID, &rec.Deleted, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func scanUserAuthRecord(row rowScanner) (*association.UserAuthRecord, error) {
	var (
		rec    association.UserAuthRecord
		authID sql.NullString
	)
	if err := row.Scan(&rec.UserID, &authID, &rec.Deleted, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.AuthID = authID.String
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

// GetAuthIDRecords fetches the records for authIDs in one query.
func (s *Store) GetAuthIDRecords(ctx context.Context, authIDs []string) ([]*association.AuthIDRecord, error) {
	if len(authIDs) == 0 {
		return []*association.AuthIDRecord{}, nil
	}

	rows, err := s.db.QueryContext(ctx, selectAuthIDRecords, pq.Array(authIDs))
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	byKey := make(map[string]*association.AuthIDRecord, len(authIDs))
	for rows.Next() {
		rec, err := scanAuthIDRecord(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		byKey[rec.AuthID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}

	out := make([]*association.AuthIDRecord, len(authIDs))
	for i, id := range authIDs {
		out[i] = byKey[id]
	}
	return out, nil
}

// PutAuthIDRecords upserts records in one transaction.
func (s *Store) PutAuthIDRecords(ctx context.Context, records []*association.AuthIDRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, rec := range records {
			if _, err := tx.ExecContext(ctx, upsertAuthIDRecord,
				rec.AuthID, rec.UserID, rec.Deleted, timestamp(rec.CreatedAt), timestamp(rec.UpdatedAt)); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindAuthIDRecordByUserID returns the record pointing at userID, preferring
// a live one.
func (s *Store) FindAuthIDRecordByUserID(ctx context.Context, userID string) (*association.AuthIDRecord, error) {
	rec, err := scanAuthIDRecord(s.db.QueryRowContext(ctx, selectAuthIDRecordByUser, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable(err)
	}
	return rec, nil
}

// ScanAuthIDRecords pages through auth_id_associations in key order.
func (s *Store) ScanAuthIDRecords(ctx context.Context, batchSize int, fn func([]*association.AuthIDRecord) error) error {
	if batchSize <= 0 {
		batchSize = association.ReconcileBatchSize
	}

	after := ""
	for {
		batch, err := s.scanPage(ctx, after, batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
		after = batch[len(batch)-1].AuthID
	}
}

func (s *Store) scanPage(ctx context.Context, after string, limit int) ([]*association.AuthIDRecord, error) {
	rows, err := s.db.QueryContext(ctx, scanAuthIDRecords, after, limit)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	batch := make([]*association.AuthIDRecord, 0, limit)
	for rows.Next() {
		rec, err := scanAuthIDRecord(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		batch = append(batch, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return batch, nil
}

// GetUserAuthRecords fetches the records for userIDs in one query.
func (s *Store) GetUserAuthRecords(ctx context.Context, userIDs []string) ([]*association.UserAuthRecord, error) {
	if len(userIDs) == 0 {
		return []*association.UserAuthRecord{}, nil
	}

	rows, err := s.db.QueryContext(ctx, selectUserAuthRecords, pq.Array(userIDs))
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	byKey := make(map[string]*association.UserAuthRecord, len(userIDs))
	for rows.Next() {
		rec, err := scanUserAuthRecord(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		byKey[rec.UserID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}

	out := make([]*association.UserAuthRecord, len(userIDs))
	for i, id := range userIDs {
		out[i] = byKey[id]
	}
	return out, nil
}

// PutUserAuthRecords upserts records in one transaction. An empty AuthID is
// stored as NULL.
func (s *Store) PutUserAuthRecords(ctx context.Context, records []*association.UserAuthRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, rec := range records {
			authID := sql.NullString{String: rec.AuthID, Valid: rec.AuthID != ""}
			if _, err := tx.ExecContext(ctx, upsertUserAuthRecord,
				rec.UserID, authID, rec.Deleted, timestamp(rec.CreatedAt), timestamp(rec.UpdatedAt)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Ping checks database availability.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable(err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return unavailable(err)
	}
	if err := tx.Commit(); err != nil {
		return unavailable(err)
	}
	return nil
}

func timestamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t.UTC()
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", association.ErrStoreUnavailable, err)
}
