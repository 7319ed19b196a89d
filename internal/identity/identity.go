// Package identity talks to the external identity service that owns
// workspace and project membership.
package identity

import "context"

// Project is the subset of the identity service's project record the config
// store needs: the owning workspace anchors PROJECT-scoped records.
type Project struct {
	ProjectID   string `json:"project_id"`
	WorkspaceID string `json:"workspace_id"`
}

// Client defines the interface for interacting with the identity service.
type Client interface {
	// CheckWorkspace confirms the workspace exists and belongs to the
	// domain. Failure is domain.ErrInvalidScope; transport problems are
	// domain.ErrUnavailable.
	CheckWorkspace(ctx context.Context, workspaceID, domainID string) error

	// GetProject fetches a project within a domain. Missing projects are
	// domain.ErrNotFound; transport problems are domain.ErrUnavailable.
	GetProject(ctx context.Context, projectID, domainID string) (*Project, error)
}
