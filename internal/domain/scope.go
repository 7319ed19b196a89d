package domain

import "strings"

// Tier is the tenancy scope a configuration record belongs to.
type Tier string

const (
	TierDomain        Tier = "DOMAIN"
	TierWorkspace     Tier = "WORKSPACE"
	TierProjectShared Tier = "PROJECT_SHARED"
	TierUser          Tier = "USER"
)

// Tiers lists all tenancy tiers.
var Tiers = []Tier{TierDomain, TierWorkspace, TierProjectShared, TierUser}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierDomain, TierWorkspace, TierProjectShared, TierUser:
		return true
	}
	return false
}

// Wildcard is the sentinel stored in identifier fields outside a record's
// composite key. Records are never persisted with empty identifier fields;
// broader-scope records carry the wildcard so narrower-scope queries can
// match them through filter expansion.
const Wildcard = "*"

// ResourceGroup selects how a PROJECT_SHARED record is anchored.
type ResourceGroup string

const (
	ResourceGroupDomain    ResourceGroup = "DOMAIN"
	ResourceGroupWorkspace ResourceGroup = "WORKSPACE"
	ResourceGroupProject   ResourceGroup = "PROJECT"
)

// Valid reports whether g is a known resource group.
func (g ResourceGroup) Valid() bool {
	switch g {
	case ResourceGroupDomain, ResourceGroupWorkspace, ResourceGroupProject:
		return true
	}
	return false
}

// ScopeKey is the fully-populated composite key addressing one record within
// its tier. Fields outside the tier's key hold Wildcard, never "".
type ScopeKey struct {
	Tier        Tier
	DomainID    string
	WorkspaceID string
	ProjectID   string
	UserID      string
	Name        string
}

// String renders the key in a stable form usable as a map key.
func (k ScopeKey) String() string {
	return strings.Join([]string{
		string(k.Tier), k.DomainID, k.WorkspaceID, k.ProjectID, k.UserID, k.Name,
	}, "/")
}

// TierDescriptor captures the per-tier identity rules that used to be spread
// across one near-identical service per tier.
type TierDescriptor struct {
	Tier Tier

	// UsesResourceGroup means write-path resolution branches on the
	// request's resource_group (PROJECT_SHARED only).
	UsesResourceGroup bool

	// RequiresWorkspace means workspace_id is mandatory for every
	// operation addressing a single record.
	RequiresWorkspace bool

	// UserScoped means user_id is taken from the authenticated caller and
	// cross-domain access is rejected.
	UserScoped bool
}

// Descriptors indexes the tier rules by tier.
var Descriptors = map[Tier]TierDescriptor{
	TierDomain:        {Tier: TierDomain},
	TierWorkspace:     {Tier: TierWorkspace, RequiresWorkspace: true},
	TierProjectShared: {Tier: TierProjectShared, UsesResourceGroup: true},
	TierUser:          {Tier: TierUser, UserScoped: true},
}
