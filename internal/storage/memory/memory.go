// Package memory provides in-memory implementations of the storage
// interfaces. They are safe for concurrent use and are intended for tests and
// local development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/lockcase/backend/internal/domain/record"
	"github.com/lockcase/backend/internal/storage"
)

// RecordStore is an in-memory record store for one record kind. The lock
// variant additionally maintains a (group, date) projection spanning all
// owners; no operation reads it.
type RecordStore struct {
	mu         sync.RWMutex
	kind       record.Kind
	partitions map[string][]record.Record
	groupDate  map[groupDateKey][]partitionKey
}

type groupDateKey struct {
	group string
	date  string
}

type partitionKey struct {
	owner     string
	createdAt string
}

var _ storage.RecordStore = (*RecordStore)(nil)

// NewRecordStore creates an empty store for the given kind.
func NewRecordStore(kind record.Kind) *RecordStore {
	s := &RecordStore{
		kind:       kind,
		partitions: make(map[string][]record.Record),
	}
	if kind == record.KindLock {
		s.groupDate = make(map[groupDateKey][]partitionKey)
	}
	return s
}

func (s *RecordStore) CreateRecord(_ context.Context, rec record.Record) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	partition := s.partitions[rec.Owner]
	idx := sort.Search(len(partition), func(i int) bool {
		return partition[i].CreatedAt >= rec.CreatedAt
	})
	if idx < len(partition) && partition[idx].CreatedAt == rec.CreatedAt {
		return record.Record{}, storage.ErrSortKeyExists
	}

	stored := rec.Clone()
	partition = append(partition, record.Record{})
	copy(partition[idx+1:], partition[idx:])
	partition[idx] = stored
	s.partitions[rec.Owner] = partition

	if s.groupDate != nil && stored.Group != "" {
		key := groupDateKey{group: stored.Group, date: stored.Date}
		s.groupDate[key] = append(s.groupDate[key], partitionKey{owner: stored.Owner, createdAt: stored.CreatedAt})
	}

	return stored.Clone(), nil
}

func (s *RecordStore) ListRecordsByOwner(_ context.Context, owner string) ([]record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	partition := s.partitions[owner]
	result := make([]record.Record, 0, len(partition))
	for _, rec := range partition {
		result = append(result, rec.Clone())
	}
	return result, nil
}

// groupDateEntries returns the projection entries for a (group, date) pair.
// Unexported: the index has no caller-facing entry point.
func (s *RecordStore) groupDateEntries(group, date string) []partitionKey {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.groupDate[groupDateKey{group: group, date: date}]
	return append([]partitionKey(nil), entries...)
}

// Directory is an in-memory identity directory keyed by pool.
type Directory struct {
	mu    sync.RWMutex
	pools map[string]map[string]bool
}

var _ storage.IdentityDirectory = (*Directory)(nil)

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{pools: make(map[string]map[string]bool)}
}

// Add registers an email in a pool.
func (d *Directory) Add(poolID, email string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pools[poolID] == nil {
		d.pools[poolID] = make(map[string]bool)
	}
	d.pools[poolID][email] = true
}

// EmailExists checks the pool for an exact email match.
func (d *Directory) EmailExists(_ context.Context, poolID, email string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pools[poolID][email], nil
}
