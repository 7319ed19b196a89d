package domain

import "time"

// ConfigRecord is a configuration blob keyed by name within its tenancy
// scope. The same shape backs every tier; identifier fields outside the
// tier's composite key hold Wildcard.
type ConfigRecord struct {
	ID          string            `json:"-" db:"id"`
	Tier        Tier              `json:"-" db:"tier"`
	Name        string            `json:"name" db:"name"`
	Data        map[string]any    `json:"data" db:"-"`
	Tags        map[string]string `json:"tags" db:"-"`
	DomainID    string            `json:"domain_id" db:"domain_id"`
	WorkspaceID string            `json:"workspace_id,omitempty" db:"workspace_id"`
	ProjectID   string            `json:"project_id,omitempty" db:"project_id"`
	UserID      string            `json:"user_id,omitempty" db:"user_id"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" db:"updated_at"`
}

// Key returns the record's composite scope key.
func (r *ConfigRecord) Key() ScopeKey {
	return ScopeKey{
		Tier:        r.Tier,
		DomainID:    r.DomainID,
		WorkspaceID: r.WorkspaceID,
		ProjectID:   r.ProjectID,
		UserID:      r.UserID,
		Name:        r.Name,
	}
}

// Clone returns a deep copy, used for pre-update snapshots.
func (r *ConfigRecord) Clone() *ConfigRecord {
	cp := *r
	if r.Data != nil {
		cp.Data = make(map[string]any, len(r.Data))
		for k, v := range r.Data {
			cp.Data[k] = v
		}
	}
	if r.Tags != nil {
		cp.Tags = make(map[string]string, len(r.Tags))
		for k, v := range r.Tags {
			cp.Tags[k] = v
		}
	}
	return &cp
}

// RecordPatch carries the updatable fields of a record. Nil fields are left
// untouched; name and the scope key are immutable after creation.
type RecordPatch struct {
	Data map[string]any
	Tags map[string]string

	// UpdatedAt overrides the refresh timestamp. Only compensating
	// rollbacks set this, to restore the pre-update snapshot exactly.
	UpdatedAt *time.Time
}
