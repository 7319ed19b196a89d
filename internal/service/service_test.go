package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confhub/confhub/internal/domain"
	"github.com/confhub/confhub/internal/identity"
	"github.com/confhub/confhub/internal/scope"
	"github.com/confhub/confhub/internal/storage/memory"
)

type fakeIdentity struct {
	workspaceCalls int
	projectCalls   int
	projects       map[string]*identity.Project
}

func (f *fakeIdentity) CheckWorkspace(ctx context.Context, workspaceID, domainID string) error {
	f.workspaceCalls++
	return nil
}

func (f *fakeIdentity) GetProject(ctx context.Context, projectID, domainID string) (*identity.Project, error) {
	f.projectCalls++
	if p, ok := f.projects[projectID]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func newTestService(opts ...Option) (*ConfigService, *fakeIdentity) {
	fake := &fakeIdentity{projects: map[string]*identity.Project{
		"pj-1": {ProjectID: "pj-1", WorkspaceID: "ws-2"},
	}}
	svc := New(memory.New(), scope.NewResolver(fake), opts...)
	return svc, fake
}

func testCaller() domain.CallerContext {
	return domain.CallerContext{UserID: "user-1", DomainID: "dom-1", Role: domain.RoleUser}
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	rec, err := svc.Create(ctx, domain.TierDomain, testCaller(), domain.CreateConfigRequest{
		Name: "ui.layout",
		Data: map[string]any{"theme": "dark"},
		Tags: map[string]string{"owner": "platform"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "dom-1", rec.DomainID)
	assert.Equal(t, domain.Wildcard, rec.WorkspaceID)
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)

	got, err := svc.Get(ctx, domain.TierDomain, testCaller(), domain.GetConfigRequest{Name: "ui.layout"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark"}, got.Data)
}

func TestCreateRequiresNameAndData(t *testing.T) {
	svc, fake := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.TierDomain, testCaller(), domain.CreateConfigRequest{
		Data: map[string]any{"a": 1},
	})
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)

	_, err = svc.Create(ctx, domain.TierDomain, testCaller(), domain.CreateConfigRequest{
		Name: "n",
	})
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)

	// Validation failures never reach the identity service.
	assert.Zero(t, fake.workspaceCalls)
	assert.Zero(t, fake.projectCalls)
}

func TestCreateDuplicateKeyConflicts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	req := domain.CreateConfigRequest{Name: "ui.layout", Data: map[string]any{"a": 1}}
	_, err := svc.Create(ctx, domain.TierDomain, testCaller(), req)
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.TierDomain, testCaller(), req)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	// Same name in a different tier is a different key.
	_, err = svc.Create(ctx, domain.TierUser, testCaller(), req)
	assert.NoError(t, err)
}

func TestUpdatePatchesDataAndKeepsOmittedFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.TierDomain, testCaller(), domain.CreateConfigRequest{
		Name: "ui.layout",
		Data: map[string]any{"theme": "dark"},
		Tags: map[string]string{"owner": "platform"},
	})
	require.NoError(t, err)

	rec, err := svc.Update(ctx, domain.TierDomain, testCaller(), domain.UpdateConfigRequest{
		Name: "ui.layout",
		Data: map[string]any{"theme": "light"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "light"}, rec.Data)
	assert.Equal(t, map[string]string{"owner": "platform"}, rec.Tags)
	assert.True(t, rec.UpdatedAt.After(rec.CreatedAt) || rec.UpdatedAt.Equal(rec.CreatedAt))
}

func TestUpdateMissingRecord(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Update(context.Background(), domain.TierDomain, testCaller(), domain.UpdateConfigRequest{
		Name: "nope",
		Data: map[string]any{"a": 1},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSetCreatesThenUpdates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.Set(ctx, domain.TierDomain, testCaller(), domain.SetConfigRequest{
		Name: "ui.layout",
		Data: map[string]any{"v": 1},
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	second, err := svc.Set(ctx, domain.TierDomain, testCaller(), domain.SetConfigRequest{
		Name: "ui.layout",
		Data: map[string]any{"v": 2},
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, map[string]any{"v": 2}, second.Data)
}

func TestSetProjectAnchorUsesOwningWorkspace(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// pj-1 lives in ws-2; the caller claims ws-1.
	rec, err := svc.Set(ctx, domain.TierProjectShared, testCaller(), domain.SetConfigRequest{
		Name:          "pipeline.defaults",
		Data:          map[string]any{"retries": 3},
		ResourceGroup: domain.ResourceGroupProject,
		WorkspaceID:   "ws-1",
		ProjectID:     "pj-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws-2", rec.WorkspaceID)
	assert.Equal(t, "pj-1", rec.ProjectID)
}

func TestCreateRollsBackWhenHookFails(t *testing.T) {
	hookErr := errors.New("downstream rejected")
	svc, _ := newTestService(WithAfterWrite(func(ctx context.Context, rec *domain.ConfigRecord) error {
		return hookErr
	}))
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.TierDomain, testCaller(), domain.CreateConfigRequest{
		Name: "ui.layout",
		Data: map[string]any{"a": 1},
	})
	assert.ErrorIs(t, err, hookErr)

	// The compensation removed the record.
	_, err = svc.Get(ctx, domain.TierDomain, testCaller(), domain.GetConfigRequest{Name: "ui.layout"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateRollsBackSnapshotWhenHookFails(t *testing.T) {
	var fail bool
	hookErr := errors.New("downstream rejected")
	svc, _ := newTestService(WithAfterWrite(func(ctx context.Context, rec *domain.ConfigRecord) error {
		if fail {
			return hookErr
		}
		return nil
	}))
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.TierDomain, testCaller(), domain.CreateConfigRequest{
		Name: "ui.layout",
		Data: map[string]any{"v": 1},
	})
	require.NoError(t, err)

	fail = true
	_, err = svc.Update(ctx, domain.TierDomain, testCaller(), domain.UpdateConfigRequest{
		Name: "ui.layout",
		Data: map[string]any{"v": 2},
	})
	assert.ErrorIs(t, err, hookErr)

	got, err := svc.Get(ctx, domain.TierDomain, testCaller(), domain.GetConfigRequest{Name: "ui.layout"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"v": 1}, got.Data)
	assert.Equal(t, created.UpdatedAt, got.UpdatedAt)
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.TierDomain, testCaller(), domain.CreateConfigRequest{
		Name: "ui.layout",
		Data: map[string]any{"a": 1},
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, domain.TierDomain, testCaller(), domain.GetConfigRequest{Name: "ui.layout"}))

	err = svc.Delete(ctx, domain.TierDomain, testCaller(), domain.GetConfigRequest{Name: "ui.layout"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUserTierIsolatesUsers(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.TierUser, testCaller(), domain.CreateConfigRequest{
		Name: "console.prefs",
		Data: map[string]any{"locale": "en"},
	})
	require.NoError(t, err)

	other := testCaller()
	other.UserID = "user-2"
	_, err = svc.Get(ctx, domain.TierUser, other, domain.GetConfigRequest{Name: "console.prefs"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatGroupCount(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		_, err := svc.Create(ctx, domain.TierWorkspace, testCaller(), domain.CreateConfigRequest{
			Name:        name,
			Data:        map[string]any{"x": 1},
			WorkspaceID: "ws-1",
		})
		require.NoError(t, err)
	}

	buckets, err := svc.Stat(ctx, domain.TierWorkspace, testCaller(), domain.StatConfigsRequest{
		Query: domain.StatQuery{GroupBy: []string{"workspace_id"}},
	})
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, "ws-1", buckets[0]["workspace_id"])
	assert.Equal(t, 3, buckets[0]["count"])
}
