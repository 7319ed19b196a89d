package domain

// Page bounds a result window. A zero Limit means no limit.
type Page struct {
	Start int `json:"start"`
	Limit int `json:"limit"`
}

// Filter is the store-level predicate produced by the query filter builder.
// Slice fields are set-membership constraints; empty slices and "" mean
// unconstrained. Results are always ordered by name ascending.
type Filter struct {
	Tier     Tier
	DomainID string
	UserID   string

	// WorkspaceIDs/ProjectIDs include the wildcard marker when broader
	// scoped records should be visible to the caller.
	WorkspaceIDs []string
	ProjectIDs   []string

	Name    string
	Keyword string
	Tags    map[string]string

	Page Page
}

// Sort orders aggregation buckets by one output field.
type Sort struct {
	Key  string `json:"key"`
	Desc bool   `json:"desc"`
}

// StatQuery is the aggregation request forwarded to the record store.
// Either GroupBy (bucketed counts) or Distinct (distinct values of one
// field) is used; GroupBy wins when both are set.
type StatQuery struct {
	GroupBy  []string `json:"group_by,omitempty"`
	Distinct string   `json:"distinct,omitempty"`
	Sort     *Sort    `json:"sort,omitempty"`
	Page     Page     `json:"page"`
}

// StatBucket is one aggregation result row: group key values plus "count",
// or {"value": v} for distinct queries.
type StatBucket map[string]any
