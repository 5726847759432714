package persistence

import (
	"regexp"
	"strings"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether name can be spliced into SQL as a column or table name
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] && ValidIdentifier(trimmed) {
		return trimmed
	}
	return defaultField
}

// columnSet builds a whitelist from a table's columns
func columnSet(columns []string) map[string]bool {
	set := make(map[string]bool, len(columns)+len(baseColumns))
	for _, c := range baseColumns {
		set[c] = true
	}
	for _, c := range columns {
		set[c] = true
	}
	return set
}

var baseColumns = []string{"id", "created_at", "updated_at", "version"}
