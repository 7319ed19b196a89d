package domain

// ScopeInput is the raw identifier set extracted from a request before
// resolution. DomainID may be empty (defaults to the caller's domain);
// the rest depend on the tier.
type ScopeInput struct {
	ResourceGroup ResourceGroup
	DomainID      string
	WorkspaceID   string
	ProjectID     string
}

// CreateConfigRequest is the request body for creating a config record.
type CreateConfigRequest struct {
	Name          string            `json:"name"`
	Data          map[string]any    `json:"data"`
	Tags          map[string]string `json:"tags,omitempty"`
	ResourceGroup ResourceGroup     `json:"resource_group,omitempty"`
	DomainID      string            `json:"domain_id,omitempty"`
	WorkspaceID   string            `json:"workspace_id,omitempty"`
	ProjectID     string            `json:"project_id,omitempty"`
}

// Scope returns the raw identifiers of the request.
func (r CreateConfigRequest) Scope() ScopeInput {
	return ScopeInput{
		ResourceGroup: r.ResourceGroup,
		DomainID:      r.DomainID,
		WorkspaceID:   r.WorkspaceID,
		ProjectID:     r.ProjectID,
	}
}

// SetConfigRequest is the request body for the idempotent set operation.
// It carries the same fields as create; when the record already exists the
// payload is applied as an update.
type SetConfigRequest = CreateConfigRequest

// UpdateConfigRequest is the request body for updating a record. Nil Data
// and Tags leave the stored values untouched.
type UpdateConfigRequest struct {
	Name        string            `json:"name"`
	Data        map[string]any    `json:"data,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	DomainID    string            `json:"domain_id,omitempty"`
	WorkspaceID string            `json:"workspace_id,omitempty"`
	ProjectID   string            `json:"project_id,omitempty"`
}

// Scope returns the raw identifiers of the request.
func (r UpdateConfigRequest) Scope() ScopeInput {
	return ScopeInput{DomainID: r.DomainID, WorkspaceID: r.WorkspaceID, ProjectID: r.ProjectID}
}

// GetConfigRequest addresses a single record for get and delete.
type GetConfigRequest struct {
	Name        string `json:"name"`
	DomainID    string `json:"domain_id,omitempty"`
	WorkspaceID string `json:"workspace_id,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
}

// Scope returns the raw identifiers of the request.
func (r GetConfigRequest) Scope() ScopeInput {
	return ScopeInput{DomainID: r.DomainID, WorkspaceID: r.WorkspaceID, ProjectID: r.ProjectID}
}

// SearchConfigsRequest is the request body for list.
type SearchConfigsRequest struct {
	Name        string            `json:"name,omitempty"`
	Query       string            `json:"query,omitempty"`
	Tags        map[string]string `json:"tags,omitempty"`
	DomainID    string            `json:"domain_id,omitempty"`
	WorkspaceID string            `json:"workspace_id,omitempty"`
	ProjectID   string            `json:"project_id,omitempty"`
	Page        Page              `json:"page"`
}

// StatConfigsRequest is the request body for stat.
type StatConfigsRequest struct {
	Query       StatQuery `json:"query"`
	DomainID    string    `json:"domain_id,omitempty"`
	WorkspaceID string    `json:"workspace_id,omitempty"`
}

// SearchConfigsResponse is the list result envelope.
type SearchConfigsResponse struct {
	Results    []*ConfigRecord `json:"results"`
	TotalCount int             `json:"total_count"`
}

// StatConfigsResponse is the stat result envelope.
type StatConfigsResponse struct {
	Results []StatBucket `json:"results"`
}
