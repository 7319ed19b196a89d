// Package validation provides field-level validation for configuration
// records and their scope identifiers.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/confhub/confhub/internal/domain"
)

const (
	// MaxNameLength matches the stored name column width.
	MaxNameLength = 255

	// MaxIdentifierLength bounds domain/workspace/project/user IDs.
	MaxIdentifierLength = 40

	// MaxTagKeyLength bounds tag keys.
	MaxTagKeyLength = 128
)

var identifierRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]*$`)

// ValidateName checks a config record name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("name must be at most %d characters", MaxNameLength)
	}
	if strings.ContainsAny(name, "\x00\n\r\t") {
		return fmt.Errorf("name must not contain control characters")
	}
	return nil
}

// ValidateIdentifier checks a tenancy identifier (domain, workspace,
// project or user ID). The wildcard marker is accepted; it is how
// broader-scope records are stored.
func ValidateIdentifier(field, id string) error {
	if id == "" || id == domain.Wildcard {
		return nil
	}
	if len(id) > MaxIdentifierLength {
		return fmt.Errorf("%s must be at most %d characters", field, MaxIdentifierLength)
	}
	if !identifierRe.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters", field)
	}
	return nil
}

// ValidateResourceGroup checks the resource_group enum on shared-config
// writes. Empty is allowed; it defaults to DOMAIN during resolution.
func ValidateResourceGroup(g domain.ResourceGroup) error {
	if g == "" || g.Valid() {
		return nil
	}
	return fmt.Errorf("resource_group must be one of DOMAIN, WORKSPACE, PROJECT")
}

// ValidateTags checks tag keys and rejects empty keys.
func ValidateTags(tags map[string]string) error {
	for k := range tags {
		if k == "" {
			return fmt.Errorf("tag keys must not be empty")
		}
		if len(k) > MaxTagKeyLength {
			return fmt.Errorf("tag key %q must be at most %d characters", k, MaxTagKeyLength)
		}
	}
	return nil
}
