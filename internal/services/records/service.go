// Package records implements the per-kind record service: creation with
// owner stamping and partition-scoped queries.
package records

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lockcase/backend/internal/domain/record"
	"github.com/lockcase/backend/internal/errors"
	"github.com/lockcase/backend/internal/storage"
	"github.com/lockcase/backend/pkg/logger"
)

// createdAtLayout is RFC3339 UTC with a fixed nine-digit fraction so that
// lexicographic order of the sort key equals chronological order.
const createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

const retryBackoff = 100 * time.Millisecond

// Service manages records of one kind. Instantiate once per kind (lock,
// group) with the matching store.
type Service struct {
	kind  record.Kind
	store storage.RecordStore
	log   *logger.Logger
	now   func() time.Time

	mu         sync.Mutex
	lastIssued map[string]time.Time
}

// New constructs a record service for the given kind.
func New(kind record.Kind, store storage.RecordStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault(string(kind) + "s")
	}
	return &Service{
		kind:       kind,
		store:      store,
		log:        log,
		now:        time.Now,
		lastIssued: make(map[string]time.Time),
	}
}

// Create stamps owner and createdAt onto the supplied attributes and
// persists the record. The owner must be caller-derived and non-empty; the
// handler layer supplies it from the verified identity, never from the
// request body.
func (s *Service) Create(ctx context.Context, owner string, attrs map[string]string) (record.Record, error) {
	if strings.TrimSpace(owner) == "" {
		return record.Record{}, errors.MissingParameter("owner")
	}

	rec := record.Record{
		Owner:      owner,
		Attributes: cloneAttributes(attrs),
	}
	if s.kind == record.KindLock {
		rec.Group = rec.Attributes["group"]
		rec.Date = rec.Attributes["date"]
		delete(rec.Attributes, "group")
		delete(rec.Attributes, "date")
		if len(rec.Attributes) == 0 {
			rec.Attributes = nil
		}
	}

	created, err := s.persist(ctx, rec)
	if err != nil {
		return record.Record{}, err
	}

	s.log.WithField("kind", string(s.kind)).
		WithField("owner", created.Owner).
		WithField("created_at", created.CreatedAt).
		Info("record created")
	return created, nil
}

// persist stamps a fresh sort key and writes the record. Sort-key collisions
// are disambiguated by bumping the timestamp; transient store failures get at
// most one bounded retry. Validation failures are never retried.
func (s *Service) persist(ctx context.Context, rec record.Record) (record.Record, error) {
	rec.CreatedAt = s.nextCreatedAt(rec.Owner)

	created, err := s.store.CreateRecord(ctx, rec)
	if err == storage.ErrSortKeyExists {
		// Another writer claimed this instant for the owner; take the next
		// nanosecond.
		rec.CreatedAt = s.nextCreatedAt(rec.Owner)
		created, err = s.store.CreateRecord(ctx, rec)
	}
	if err != nil && err != storage.ErrSortKeyExists {
		select {
		case <-ctx.Done():
			return record.Record{}, errors.DownstreamFailure("create record", ctx.Err())
		case <-time.After(retryBackoff):
		}
		created, err = s.store.CreateRecord(ctx, rec)
	}
	if err != nil {
		return record.Record{}, errors.DownstreamFailure("create record", err)
	}
	return created, nil
}

// ListByOwner returns every record in the owner's partition, ordered by
// createdAt ascending. An owner with no records gets an empty sequence.
func (s *Service) ListByOwner(ctx context.Context, owner string) ([]record.Record, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, errors.MissingParameter("owner")
	}

	result, err := s.store.ListRecordsByOwner(ctx, owner)
	if err != nil {
		return nil, errors.DownstreamFailure("query records", err)
	}
	if result == nil {
		result = []record.Record{}
	}
	return result, nil
}

// nextCreatedAt issues a sort key strictly greater than any previously issued
// for the owner by this process.
func (s *Service) nextCreatedAt(owner string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if last, ok := s.lastIssued[owner]; ok && !now.After(last) {
		now = last.Add(time.Nanosecond)
	}
	s.lastIssued[owner] = now
	return now.Format(createdAtLayout)
}

func cloneAttributes(attrs map[string]string) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
