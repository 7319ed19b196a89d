package identity

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachingClient caches successful project lookups for a bounded TTL.
// Repeated config writes to the same project should not round-trip to the
// identity service every time. Workspace checks are not cached; they gate
// writes directly.
type CachingClient struct {
	inner    Client
	projects *expirable.LRU[string, *Project]
}

// Ensure CachingClient implements Client.
var _ Client = (*CachingClient)(nil)

// NewCachingClient wraps inner with a project-lookup cache of the given
// size and TTL.
func NewCachingClient(inner Client, size int, ttl time.Duration) *CachingClient {
	return &CachingClient{
		inner:    inner,
		projects: expirable.NewLRU[string, *Project](size, nil, ttl),
	}
}

// CheckWorkspace delegates to the wrapped client.
func (c *CachingClient) CheckWorkspace(ctx context.Context, workspaceID, domainID string) error {
	return c.inner.CheckWorkspace(ctx, workspaceID, domainID)
}

// GetProject returns a cached project when present, otherwise fetches and
// caches the result. Failed lookups are never cached.
func (c *CachingClient) GetProject(ctx context.Context, projectID, domainID string) (*Project, error) {
	key := projectID + ":" + domainID
	if project, ok := c.projects.Get(key); ok {
		return project, nil
	}

	project, err := c.inner.GetProject(ctx, projectID, domainID)
	if err != nil {
		return nil, err
	}
	c.projects.Add(key, project)
	return project, nil
}
