package domain

// RoleType is the caller's identity type, carried in the auth token.
type RoleType string

const (
	RoleDomainAdmin     RoleType = "DOMAIN_ADMIN"
	RoleDomainOwner     RoleType = "DOMAIN_OWNER"
	RoleWorkspaceOwner  RoleType = "WORKSPACE_OWNER"
	RoleWorkspaceMember RoleType = "WORKSPACE_MEMBER"
	RoleUser            RoleType = "USER"
)

// CallerContext is the authenticated identity every operation runs as. It is
// passed explicitly rather than pulled from ambient request state.
type CallerContext struct {
	UserID   string
	DomainID string
	Role     RoleType

	// Projects is the set of project IDs visible to the caller, used to
	// expand list filters. Empty means no project restriction.
	Projects []string
}
