// Package service implements the tier-generic configuration engine:
// create/update/set/delete/get/list/stat over the record store, with scope
// resolution up front and compensating rollback around multi-step writes.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/confhub/confhub/internal/domain"
	"github.com/confhub/confhub/internal/scope"
	"github.com/confhub/confhub/internal/storage"
)

// Hook runs after a record mutation has committed, before the operation
// returns. A hook error triggers the operation's compensating rollback and
// is surfaced to the caller. The downstream notification path hangs off
// this.
type Hook func(ctx context.Context, rec *domain.ConfigRecord) error

// ConfigService is the upsert engine shared by all tenancy tiers.
type ConfigService struct {
	store      storage.RecordStore
	resolver   *scope.Resolver
	afterWrite Hook
}

// Option configures a ConfigService.
type Option func(*ConfigService)

// WithAfterWrite installs a post-commit hook on create/update/set.
func WithAfterWrite(h Hook) Option {
	return func(s *ConfigService) { s.afterWrite = h }
}

// New creates the configuration engine.
func New(store storage.RecordStore, resolver *scope.Resolver, opts ...Option) *ConfigService {
	s := &ConfigService{store: store, resolver: resolver}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create resolves and validates the scope, then inserts a new record.
// A key collision is domain.ErrAlreadyExists.
func (s *ConfigService) Create(ctx context.Context, tier domain.Tier, caller domain.CallerContext, req domain.CreateConfigRequest) (*domain.ConfigRecord, error) {
	if req.Name == "" {
		return nil, domain.MissingField("name")
	}
	if req.Data == nil {
		return nil, domain.MissingField("data")
	}

	key, err := s.resolver.ResolveForWrite(ctx, tier, req.Name, req.Scope(), caller)
	if err != nil {
		return nil, err
	}

	op := newOperation("create")
	rec, err := s.insert(ctx, op, key, req.Data, req.Tags)
	if err != nil {
		return nil, err
	}

	if err := s.notify(ctx, rec); err != nil {
		op.rollback(ctx)
		return nil, err
	}
	return rec, nil
}

// Update fetches the record at the composite key and applies the supplied
// fields. Omitted data/tags are left untouched; name and the scope key are
// immutable.
func (s *ConfigService) Update(ctx context.Context, tier domain.Tier, caller domain.CallerContext, req domain.UpdateConfigRequest) (*domain.ConfigRecord, error) {
	if req.Name == "" {
		return nil, domain.MissingField("name")
	}

	key, err := s.resolver.Resolve(tier, req.Name, req.Scope(), caller)
	if err != nil {
		return nil, err
	}

	op := newOperation("update")
	rec, err := s.patch(ctx, op, key, req.Data, req.Tags)
	if err != nil {
		return nil, err
	}

	if err := s.notify(ctx, rec); err != nil {
		op.rollback(ctx)
		return nil, err
	}
	return rec, nil
}

// Set is the idempotent upsert: create when the composite key is vacant,
// otherwise update in place. The read-then-write sequence is deliberately
// unlocked; when two concurrent sets race to create, the store rejects the
// loser with domain.ErrAlreadyExists, which is surfaced verbatim as the
// caller's signal to retry as an update.
func (s *ConfigService) Set(ctx context.Context, tier domain.Tier, caller domain.CallerContext, req domain.SetConfigRequest) (*domain.ConfigRecord, error) {
	if req.Name == "" {
		return nil, domain.MissingField("name")
	}
	if req.Data == nil {
		return nil, domain.MissingField("data")
	}

	key, err := s.resolver.ResolveForWrite(ctx, tier, req.Name, req.Scope(), caller)
	if err != nil {
		return nil, err
	}

	op := newOperation("set")

	var rec *domain.ConfigRecord
	_, err = s.store.Get(ctx, key)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		rec, err = s.insert(ctx, op, key, req.Data, req.Tags)
	case err == nil:
		rec, err = s.patch(ctx, op, key, req.Data, req.Tags)
	}
	if err != nil {
		return nil, err
	}

	if err := s.notify(ctx, rec); err != nil {
		op.rollback(ctx)
		return nil, err
	}
	return rec, nil
}

// Delete removes the record at the composite key. Absence is
// domain.ErrNotFound. Deletion is terminal; there is no compensation.
func (s *ConfigService) Delete(ctx context.Context, tier domain.Tier, caller domain.CallerContext, req domain.GetConfigRequest) error {
	if req.Name == "" {
		return domain.MissingField("name")
	}

	key, err := s.resolver.Resolve(tier, req.Name, req.Scope(), caller)
	if err != nil {
		return err
	}
	return s.store.Delete(ctx, key)
}

// Get fetches the record at the composite key.
func (s *ConfigService) Get(ctx context.Context, tier domain.Tier, caller domain.CallerContext, req domain.GetConfigRequest) (*domain.ConfigRecord, error) {
	if req.Name == "" {
		return nil, domain.MissingField("name")
	}

	key, err := s.resolver.Resolve(tier, req.Name, req.Scope(), caller)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, key)
}

// List returns records visible to the caller ordered by name ascending,
// plus the total match count.
func (s *ConfigService) List(ctx context.Context, tier domain.Tier, caller domain.CallerContext, req domain.SearchConfigsRequest) ([]*domain.ConfigRecord, int, error) {
	filter, err := BuildListFilter(tier, caller, req)
	if err != nil {
		return nil, 0, err
	}
	return s.store.List(ctx, filter)
}

// Stat evaluates an aggregation query within the caller's scope.
func (s *ConfigService) Stat(ctx context.Context, tier domain.Tier, caller domain.CallerContext, req domain.StatConfigsRequest) ([]domain.StatBucket, error) {
	filter, err := BuildStatFilter(tier, caller, req)
	if err != nil {
		return nil, err
	}
	return s.store.Aggregate(ctx, filter, req.Query)
}

// insert commits a new record and registers its delete-compensation.
func (s *ConfigService) insert(ctx context.Context, op *operation, key domain.ScopeKey, data map[string]any, tags map[string]string) (*domain.ConfigRecord, error) {
	if tags == nil {
		tags = map[string]string{}
	}

	now := time.Now().UTC()
	rec := &domain.ConfigRecord{
		ID:          uuid.New().String(),
		Tier:        key.Tier,
		Name:        key.Name,
		Data:        data,
		Tags:        tags,
		DomainID:    key.DomainID,
		WorkspaceID: key.WorkspaceID,
		ProjectID:   key.ProjectID,
		UserID:      key.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.Insert(ctx, rec); err != nil {
		return nil, err
	}

	op.add("delete created record", func(ctx context.Context) error {
		return s.store.Delete(ctx, key)
	})
	return rec, nil
}

// patch snapshots the record, applies the supplied fields and registers a
// compensation restoring the snapshot.
func (s *ConfigService) patch(ctx context.Context, op *operation, key domain.ScopeKey, data map[string]any, tags map[string]string) (*domain.ConfigRecord, error) {
	before, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.Update(ctx, key, domain.RecordPatch{Data: data, Tags: tags})
	if err != nil {
		return nil, err
	}

	op.add("restore pre-update snapshot", func(ctx context.Context) error {
		_, err := s.store.Update(ctx, key, domain.RecordPatch{
			Data:      before.Data,
			Tags:      before.Tags,
			UpdatedAt: &before.UpdatedAt,
		})
		return err
	})
	return rec, nil
}

func (s *ConfigService) notify(ctx context.Context, rec *domain.ConfigRecord) error {
	if s.afterWrite == nil {
		return nil
	}
	return s.afterWrite(ctx, rec)
}
