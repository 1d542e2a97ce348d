package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/authlink/association"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix is used when [NewStore] is given an empty prefix.
const DefaultPrefix = "al"

// Store keeps both association collections in Redis.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

var _ association.Store = (*Store)(nil)

// NewStore returns a Store that namespaces its keys under prefix.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{
		redis:  client,
		prefix: prefix,
	}
}

func (s *Store) authIDKey(authID string) string {
	return s.prefix + ":aid:" + authID
}

func (s *Store) userAuthKey(userID string) string {
	return s.prefix + ":uid:" + userID
}

func (s *Store) userIndexKey(userID string) string {
	return s.prefix + ":aidx:" + userID
}

// GetAuthIDRecords fetches the records for authIDs in one pipeline.
func (s *Store) GetAuthIDRecords(ctx context.Context, authIDs []string) ([]*association.AuthIDRecord, error) {
	if len(authIDs) == 0 {
		return []*association.AuthIDRecord{}, nil
	}

	keys := make([]string, len(authIDs))
	for i, id := range authIDs {
		keys[i] = s.authIDKey(id)
	}
	payloads, err := s.getMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([]*association.AuthIDRecord, len(authIDs))
	for i, data := range payloads {
		if data == nil {
			continue
		}
		rec, err := decodeAuthIDRecord(authIDs[i], data)
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}

// PutAuthIDRecords writes records and their user-ID index entries in one
// transaction.
func (s *Store) PutAuthIDRecords(ctx context.Context, records []*association.AuthIDRecord) error {
	if len(records) == 0 {
		return nil
	}

	payloads := make([][]byte, len(records))
	for i, rec := range records {
		data, err := encodeAuthIDRecord(rec)
		if err != nil {
			return err
		}
		payloads[i] = data
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, rec := range records {
			pipe.Set(ctx, s.authIDKey(rec.AuthID), payloads[i], 0)
			if rec.UserID != "" {
				pipe.Set(ctx, s.userIndexKey(rec.UserID), rec.AuthID, 0)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", association.ErrStoreUnavailable, err)
	}
	return nil
}

// FindAuthIDRecordByUserID resolves the user-ID index and returns the
// indexed record if it still points back at userID.
func (s *Store) FindAuthIDRecordByUserID(ctx context.Context, userID string) (*association.AuthIDRecord, error) {
	authID, err := s.redis.Get(ctx, s.userIndexKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", association.ErrStoreUnavailable, err)
	}

	records, err := s.GetAuthIDRecords(ctx, []string{authID})
	if err != nil {
		return nil, err
	}
	rec := records[0]
	if rec == nil || rec.UserID != userID {
		return nil, nil
	}
	return rec, nil
}

// ScanAuthIDRecords walks the auth-ID keyspace with SCAN. SCAN may return a
// key more than once, so fn must tolerate repeats.
// This is an admin-only O(n) operation and must not be used in request hot paths.
func (s *Store) ScanAuthIDRecords(ctx context.Context, batchSize int, fn func([]*association.AuthIDRecord) error) error {
	if batchSize <= 0 {
		batchSize = association.ReconcileBatchSize
	}
	keyPrefix := s.authIDKey("")
	pattern := keyPrefix + "*"

	var cursor uint64
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, int64(batchSize)).Result()
		if err != nil {
			return fmt.Errorf("%w: %v", association.ErrStoreUnavailable, err)
		}

		if len(keys) > 0 {
			authIDs := make([]string, len(keys))
			for i, key := range keys {
				authIDs[i] = strings.TrimPrefix(key, keyPrefix)
			}
			records, err := s.GetAuthIDRecords(ctx, authIDs)
			if err != nil {
				return err
			}
			batch := records[:0]
			for _, rec := range records {
				if rec != nil {
					batch = append(batch, rec)
				}
			}
			if len(batch) > 0 {
				if err := fn(batch); err != nil {
					return err
				}
			}
		}

		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// GetUserAuthRecords fetches the records for userIDs in one pipeline.
func (s *Store) GetUserAuthRecords(ctx context.Context, userIDs []string) ([]*association.UserAuthRecord, error) {
	if len(userIDs) == 0 {
		return []*association.UserAuthRecord{}, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = s.userAuthKey(id)
	}
	payloads, err := s.getMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([]*association.UserAuthRecord, len(userIDs))
	for i, data := range payloads {
		if data == nil {
			continue
		}
		rec, err := decodeUserAuthRecord(userIDs[i], data)
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}

// PutUserAuthRecords writes records in one transaction.
func (s *Store) PutUserAuthRecords(ctx context.Context, records []*association.UserAuthRecord) error {
	if len(records) == 0 {
		return nil
	}

	payloads := make([][]byte, len(records))
	for i, rec := range records {
		data, err := encodeUserAuthRecord(rec)
		if err != nil {
			return err
		}
		payloads[i] = data
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, rec := range records {
			pipe.Set(ctx, s.userAuthKey(rec.UserID), payloads[i], 0)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", association.ErrStoreUnavailable, err)
	}
	return nil
}

// Ping checks Redis availability.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", association.ErrStoreUnavailable, err)
	}
	return nil
}

// getMany returns one payload per key, nil where the key is missing.
func (s *Store) getMany(ctx context.Context, keys []string) ([][]byte, error) {
	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}

	_, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", association.ErrStoreUnavailable, err)
	}

	out := make([][]byte, len(keys))
	for i, cmd := range cmds {
		data, cmdErr := cmd.Bytes()
		if cmdErr != nil {
			if errors.Is(cmdErr, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", association.ErrStoreUnavailable, cmdErr)
		}
		out[i] = data
	}
	return out, nil
}
