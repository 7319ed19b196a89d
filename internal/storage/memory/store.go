// Package memory provides an in-memory record store used by tests and
// development mode.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/confhub/confhub/internal/domain"
)

// Store is an in-memory implementation of the storage interface.
type Store struct {
	mu      sync.RWMutex
	records map[string]*domain.ConfigRecord // key: ScopeKey.String()
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{records: make(map[string]*domain.ConfigRecord)}
}

func (s *Store) Close() error { return nil }

// Insert stores a new record, enforcing composite-key uniqueness.
func (s *Store) Insert(ctx context.Context, rec *domain.ConfigRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := rec.Key().String()
	if _, ok := s.records[k]; ok {
		return domain.ErrAlreadyExists
	}
	s.records[k] = rec.Clone()
	return nil
}

// Get fetches the record at the composite key.
func (s *Store) Get(ctx context.Context, key domain.ScopeKey) (*domain.ConfigRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key.String()]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec.Clone(), nil
}

// Update applies the patch to the record at the composite key.
func (s *Store) Update(ctx context.Context, key domain.ScopeKey, patch domain.RecordPatch) (*domain.ConfigRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key.String()]
	if !ok {
		return nil, domain.ErrNotFound
	}

	if patch.Data != nil {
		rec.Data = patch.Data
	}
	if patch.Tags != nil {
		rec.Tags = patch.Tags
	}
	if patch.UpdatedAt != nil {
		rec.UpdatedAt = *patch.UpdatedAt
	} else {
		rec.UpdatedAt = time.Now().UTC()
	}

	return rec.Clone(), nil
}

// Delete removes the record at the composite key.
func (s *Store) Delete(ctx context.Context, key domain.ScopeKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key.String()
	if _, ok := s.records[k]; !ok {
		return domain.ErrNotFound
	}
	delete(s.records, k)
	return nil
}

// List returns records matching the filter ordered by name ascending.
func (s *Store) List(ctx context.Context, filter domain.Filter) ([]*domain.ConfigRecord, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.ConfigRecord
	for _, rec := range s.records {
		if matches(rec, filter) {
			matched = append(matched, rec.Clone())
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })

	total := len(matched)
	return paginate(matched, filter.Page), total, nil
}

// Aggregate evaluates the aggregation query over matching records.
func (s *Store) Aggregate(ctx context.Context, filter domain.Filter, query domain.StatQuery) ([]domain.StatBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.ConfigRecord
	for _, rec := range s.records {
		if matches(rec, filter) {
			matched = append(matched, rec)
		}
	}

	if len(query.GroupBy) > 0 {
		return groupCount(matched, query)
	}
	if query.Distinct != "" {
		return distinctValues(matched, query)
	}
	return []domain.StatBucket{{"count": len(matched)}}, nil
}

func matches(rec *domain.ConfigRecord, f domain.Filter) bool {
	if f.Tier != "" && rec.Tier != f.Tier {
		return false
	}
	if f.DomainID != "" && rec.DomainID != f.DomainID {
		return false
	}
	if f.UserID != "" && rec.UserID != f.UserID {
		return false
	}
	if len(f.WorkspaceIDs) > 0 && !contains(f.WorkspaceIDs, rec.WorkspaceID) {
		return false
	}
	if len(f.ProjectIDs) > 0 && !contains(f.ProjectIDs, rec.ProjectID) {
		return false
	}
	if f.Name != "" && rec.Name != f.Name {
		return false
	}
	if f.Keyword != "" && !strings.Contains(rec.Name, f.Keyword) {
		return false
	}
	for k, v := range f.Tags {
		if rec.Tags[k] != v {
			return false
		}
	}
	return true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func paginate[T any](items []T, page domain.Page) []T {
	if page.Start > 0 {
		if page.Start >= len(items) {
			return nil
		}
		items = items[page.Start:]
	}
	if page.Limit > 0 && page.Limit < len(items) {
		items = items[:page.Limit]
	}
	return items
}

func fieldValue(rec *domain.ConfigRecord, field string) (string, error) {
	switch field {
	case "name":
		return rec.Name, nil
	case "domain_id":
		return rec.DomainID, nil
	case "workspace_id":
		return rec.WorkspaceID, nil
	case "project_id":
		return rec.ProjectID, nil
	case "user_id":
		return rec.UserID, nil
	case "tier":
		return string(rec.Tier), nil
	}
	return "", fmt.Errorf("%w: unknown aggregation field %q", domain.ErrInvalidInput, field)
}

func groupCount(recs []*domain.ConfigRecord, query domain.StatQuery) ([]domain.StatBucket, error) {
	counts := make(map[string]int)
	values := make(map[string][]string)

	for _, rec := range recs {
		parts := make([]string, len(query.GroupBy))
		for i, field := range query.GroupBy {
			v, err := fieldValue(rec, field)
			if err != nil {
				return nil, err
			}
			parts[i] = v
		}
		k := strings.Join(parts, "\x00")
		counts[k]++
		values[k] = parts
	}

	buckets := make([]domain.StatBucket, 0, len(counts))
	for k, count := range counts {
		bucket := domain.StatBucket{"count": count}
		for i, field := range query.GroupBy {
			bucket[field] = values[k][i]
		}
		buckets = append(buckets, bucket)
	}

	sortBuckets(buckets, query, query.GroupBy[0])
	return paginate(buckets, query.Page), nil
}

func distinctValues(recs []*domain.ConfigRecord, query domain.StatQuery) ([]domain.StatBucket, error) {
	seen := make(map[string]bool)
	for _, rec := range recs {
		v, err := fieldValue(rec, query.Distinct)
		if err != nil {
			return nil, err
		}
		seen[v] = true
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)

	values = paginate(values, query.Page)
	buckets := make([]domain.StatBucket, len(values))
	for i, v := range values {
		buckets[i] = domain.StatBucket{"value": v}
	}
	return buckets, nil
}

func sortBuckets(buckets []domain.StatBucket, query domain.StatQuery, defaultKey string) {
	key, desc := defaultKey, false
	if query.Sort != nil && query.Sort.Key != "" {
		key, desc = query.Sort.Key, query.Sort.Desc
	}

	sort.Slice(buckets, func(i, j int) bool {
		less := bucketLess(buckets[i][key], buckets[j][key])
		if desc {
			return !less
		}
		return less
	})
}

func bucketLess(a, b any) bool {
	ai, aok := a.(int)
	bi, bok := b.(int)
	if aok && bok {
		return ai < bi
	}
	as, _ := a.(string)
	bs, _ := b.(string)
	return as < bs
}
