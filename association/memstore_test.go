package association

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var errInjected = errors.New("injected store failure")

// memStore is an in-memory Store used to observe exactly what the service
// writes.
type memStore struct {
	mu       sync.Mutex
	authIDs  map[string]AuthIDRecord
	userAuth map[string]UserAuthRecord

	authPuts int
	userPuts int

	failGetAuth bool
	failGetUser bool
	failPutAuth bool
	failPutUser bool
}

func newMemStore() *memStore {
	return &memStore{
		authIDs:  map[string]AuthIDRecord{},
		userAuth: map[string]UserAuthRecord{},
	}
}

func (m *memStore) GetAuthIDRecords(ctx context.Context, authIDs []string) ([]*AuthIDRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGetAuth {
		return nil, errInjected
	}
	out := make([]*AuthIDRecord, len(authIDs))
	for i, id := range authIDs {
		if rec, ok := m.authIDs[id]; ok {
			cp := rec
			out[i] = &cp
		}
	}
	return out, nil
}

func (m *memStore) PutAuthIDRecords(ctx context.Context, records []*AuthIDRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPutAuth {
		return errInjected
	}
	m.authPuts++
	for _, rec := range records {
		m.authIDs[rec.AuthID] = *rec
	}
	return nil
}

func (m *memStore) FindAuthIDRecordByUserID(ctx context.Context, userID string) (*AuthIDRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.authIDs {
		if rec.UserID == userID {
			cp := rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) ScanAuthIDRecords(ctx context.Context, batchSize int, fn func([]*AuthIDRecord) error) error {
	m.mu.Lock()
	keys := make([]string, 0, len(m.authIDs))
	for k := range m.authIDs {
		keys = append(keys, k)
	}
	m.mu.Unlock()
	sort.Strings(keys)

	for start := 0; start < len(keys); start += batchSize {
		end := start + batchSize
		if end > len(keys) {
			end = len(keys)
		}
		records, err := m.GetAuthIDRecords(ctx, keys[start:end])
		if err != nil {
			return err
		}
		if err := fn(records); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) GetUserAuthRecords(ctx context.Context, userIDs []string) ([]*UserAuthRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGetUser {
		return nil, errInjected
	}
	out := make([]*UserAuthRecord, len(userIDs))
	for i, id := range userIDs {
		if rec, ok := m.userAuth[id]; ok {
			cp := rec
			out[i] = &cp
		}
	}
	return out, nil
}

func (m *memStore) PutUserAuthRecords(ctx context.Context, records []*UserAuthRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPutUser {
		return errInjected
	}
	m.userPuts++
	for _, rec := range records {
		m.userAuth[rec.UserID] = *rec
	}
	return nil
}

func (m *memStore) Ping(ctx context.Context) error { return nil }

func (m *memStore) snapshot() (map[string]AuthIDRecord, map[string]UserAuthRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := make(map[string]AuthIDRecord, len(m.authIDs))
	for k, v := range m.authIDs {
		a[k] = v
	}
	u := make(map[string]UserAuthRecord, len(m.userAuth))
	for k, v := range m.userAuth {
		u[k] = v
	}
	return a, u
}
