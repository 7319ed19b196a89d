package service

import (
	"fmt"

	"github.com/confhub/confhub/internal/domain"
)

// BuildListFilter expands a list request into the store filter. The domain
// is always pinned to the caller's. Ownership hints expand additively: a
// caller filtering by workspace or project also sees the broader-scope
// records stored under the wildcard marker, never fewer records than the
// unfiltered scope would allow.
func BuildListFilter(tier domain.Tier, caller domain.CallerContext, req domain.SearchConfigsRequest) (domain.Filter, error) {
	if err := checkFilterDomain(caller, req.DomainID); err != nil {
		return domain.Filter{}, err
	}

	f := domain.Filter{
		Tier:     tier,
		DomainID: caller.DomainID,
		Name:     req.Name,
		Keyword:  req.Query,
		Tags:     req.Tags,
		Page:     req.Page,
	}

	switch tier {
	case domain.TierWorkspace:
		// Workspace records never carry wildcards; a workspace filter
		// constrains exactly.
		if req.WorkspaceID != "" {
			f.WorkspaceIDs = []string{req.WorkspaceID}
		}

	case domain.TierProjectShared:
		if req.WorkspaceID != "" {
			f.WorkspaceIDs = []string{req.WorkspaceID, domain.Wildcard}
		}
		var projects []string
		if req.ProjectID != "" {
			projects = []string{req.ProjectID}
		}
		if len(projects) == 0 {
			projects = caller.Projects
		}
		if len(projects) > 0 {
			f.ProjectIDs = append(append([]string{}, projects...), domain.Wildcard)
		}

	case domain.TierUser:
		if caller.UserID == "" {
			return domain.Filter{}, fmt.Errorf("%w: user-scoped config requires an authenticated user",
				domain.ErrPermissionDenied)
		}
		f.UserID = caller.UserID
	}

	return f, nil
}

// BuildStatFilter pins the aggregation scope the same way list filters are
// pinned, so stat buckets never count records a list by the same caller
// would not return. The aggregation query itself is forwarded verbatim to
// the store.
func BuildStatFilter(tier domain.Tier, caller domain.CallerContext, req domain.StatConfigsRequest) (domain.Filter, error) {
	if err := checkFilterDomain(caller, req.DomainID); err != nil {
		return domain.Filter{}, err
	}

	f := domain.Filter{Tier: tier, DomainID: caller.DomainID}

	switch tier {
	case domain.TierWorkspace:
		if req.WorkspaceID != "" {
			f.WorkspaceIDs = []string{req.WorkspaceID}
		}

	case domain.TierProjectShared:
		if req.WorkspaceID != "" {
			f.WorkspaceIDs = []string{req.WorkspaceID, domain.Wildcard}
		}
		if len(caller.Projects) > 0 {
			f.ProjectIDs = append(append([]string{}, caller.Projects...), domain.Wildcard)
		}

	case domain.TierUser:
		if caller.UserID == "" {
			return domain.Filter{}, fmt.Errorf("%w: user-scoped config requires an authenticated user",
				domain.ErrPermissionDenied)
		}
		f.UserID = caller.UserID
	}

	return f, nil
}

func checkFilterDomain(caller domain.CallerContext, requestDomain string) error {
	if caller.DomainID == "" {
		return domain.MissingField("domain_id")
	}
	if requestDomain != "" && requestDomain != caller.DomainID {
		return fmt.Errorf("%w: domain %s does not match caller domain",
			domain.ErrPermissionDenied, requestDomain)
	}
	return nil
}
