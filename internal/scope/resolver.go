// Package scope derives and validates composite scope keys for every
// tenancy tier. Write-path resolution also proves tier membership against
// the identity service before a record is anchored to it.
package scope

import (
	"context"
	"errors"
	"fmt"

	"github.com/confhub/confhub/internal/domain"
	"github.com/confhub/confhub/internal/identity"
)

// Resolver computes canonical scope keys from raw request identifiers.
type Resolver struct {
	identity identity.Client
}

// NewResolver creates a resolver backed by the given identity client.
func NewResolver(identityClient identity.Client) *Resolver {
	return &Resolver{identity: identityClient}
}

// Resolve computes the composite key for read, update and delete
// operations. Absent workspace/project identifiers normalize to the
// wildcard marker; no identity calls are made.
func (r *Resolver) Resolve(tier domain.Tier, name string, in domain.ScopeInput, caller domain.CallerContext) (domain.ScopeKey, error) {
	key, err := r.baseKey(tier, name, in, caller)
	if err != nil {
		return domain.ScopeKey{}, err
	}

	switch tier {
	case domain.TierWorkspace:
		if in.WorkspaceID == "" {
			return domain.ScopeKey{}, domain.MissingField("workspace_id")
		}
		key.WorkspaceID = in.WorkspaceID
	case domain.TierProjectShared:
		if in.WorkspaceID != "" {
			key.WorkspaceID = in.WorkspaceID
		}
		if in.ProjectID != "" {
			key.ProjectID = in.ProjectID
		}
	}

	return key, nil
}

// ResolveForWrite computes the composite key for create and set. For
// workspace- and project-anchored scopes it consults the identity service;
// the project lookup's owning workspace overrides any caller-supplied
// value so a project cannot be spoofed into an unrelated workspace.
// Required-field checks run before any identity call.
func (r *Resolver) ResolveForWrite(ctx context.Context, tier domain.Tier, name string, in domain.ScopeInput, caller domain.CallerContext) (domain.ScopeKey, error) {
	key, err := r.baseKey(tier, name, in, caller)
	if err != nil {
		return domain.ScopeKey{}, err
	}

	desc := domain.Descriptors[tier]

	if desc.UserScoped && caller.Role == domain.RoleDomainOwner {
		return domain.ScopeKey{}, fmt.Errorf("%w: identity type %s cannot write user-scoped config",
			domain.ErrPermissionDenied, caller.Role)
	}

	switch {
	case desc.RequiresWorkspace:
		if in.WorkspaceID == "" {
			return domain.ScopeKey{}, domain.MissingField("workspace_id")
		}
		if err := r.identity.CheckWorkspace(ctx, in.WorkspaceID, key.DomainID); err != nil {
			return domain.ScopeKey{}, err
		}
		key.WorkspaceID = in.WorkspaceID

	case desc.UsesResourceGroup:
		if err := r.resolveResourceGroup(ctx, &key, in); err != nil {
			return domain.ScopeKey{}, err
		}
	}

	return key, nil
}

func (r *Resolver) resolveResourceGroup(ctx context.Context, key *domain.ScopeKey, in domain.ScopeInput) error {
	switch in.ResourceGroup {
	case domain.ResourceGroupWorkspace:
		if in.WorkspaceID == "" {
			return domain.MissingField("workspace_id")
		}
		if err := r.identity.CheckWorkspace(ctx, in.WorkspaceID, key.DomainID); err != nil {
			return err
		}
		key.WorkspaceID = in.WorkspaceID

	case domain.ResourceGroupProject:
		if in.WorkspaceID == "" {
			return domain.MissingField("workspace_id")
		}
		if in.ProjectID == "" {
			return domain.MissingField("project_id")
		}
		if err := r.identity.CheckWorkspace(ctx, in.WorkspaceID, key.DomainID); err != nil {
			return err
		}
		project, err := r.identity.GetProject(ctx, in.ProjectID, key.DomainID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: project %s not found in domain %s",
					domain.ErrInvalidScope, in.ProjectID, key.DomainID)
			}
			return err
		}
		// The identity service's answer wins over caller input.
		key.WorkspaceID = project.WorkspaceID
		key.ProjectID = in.ProjectID

	case domain.ResourceGroupDomain, "":
		// Domain-wide, nothing to validate.

	default:
		return fmt.Errorf("%w: unknown resource_group %q", domain.ErrInvalidInput, in.ResourceGroup)
	}

	return nil
}

// baseKey applies the rules shared by every tier: the effective domain is
// the caller's, a conflicting request domain is a cross-tenant attempt,
// and user-scoped keys always use the authenticated user.
func (r *Resolver) baseKey(tier domain.Tier, name string, in domain.ScopeInput, caller domain.CallerContext) (domain.ScopeKey, error) {
	if !tier.Valid() {
		return domain.ScopeKey{}, fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidInput, tier)
	}
	if caller.DomainID == "" {
		return domain.ScopeKey{}, domain.MissingField("domain_id")
	}
	if in.DomainID != "" && in.DomainID != caller.DomainID {
		return domain.ScopeKey{}, fmt.Errorf("%w: domain %s does not match caller domain",
			domain.ErrPermissionDenied, in.DomainID)
	}

	key := domain.ScopeKey{
		Tier:        tier,
		DomainID:    caller.DomainID,
		WorkspaceID: domain.Wildcard,
		ProjectID:   domain.Wildcard,
		UserID:      domain.Wildcard,
		Name:        name,
	}

	if domain.Descriptors[tier].UserScoped {
		if caller.UserID == "" {
			return domain.ScopeKey{}, fmt.Errorf("%w: user-scoped config requires an authenticated user",
				domain.ErrPermissionDenied)
		}
		key.UserID = caller.UserID
	}

	return key, nil
}
