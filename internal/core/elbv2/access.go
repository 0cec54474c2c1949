package elbv2

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// Access Condition Parsing
// =============================================================================

var (
	// pathOnly matches access strings like "/", "/api" or "/api/*".
	pathOnly = regexp.MustCompile(`^/[\w.\-*/$]*$`)
	// domainOnly matches access strings like "app.example.com".
	domainOnly = regexp.MustCompile(`^[a-zA-Z0-9\-.]+\.[a-zA-Z]{2,}$`)
	// domainPath matches access strings like "app.example.com/api".
	domainPath = regexp.MustCompile(`^(?P<domain>[a-zA-Z0-9\-.]+\.[a-zA-Z]{2,})(?P<path>/[\w.\-*/$]*)$`)
)

// AccessConditions translates an access expression into listener rule
// conditions. Three forms are recognized: a path pattern, a host name, and
// a host name followed by a path pattern.
func AccessConditions(access string) ([]any, error) {
	switch {
	case pathOnly.MatchString(access):
		return []any{pathCondition(access)}, nil
	case domainOnly.MatchString(access):
		return []any{hostCondition(access)}, nil
	case domainPath.MatchString(access):
		match := domainPath.FindStringSubmatch(access)
		return []any{
			hostCondition(match[domainPath.SubexpIndex("domain")]),
			pathCondition(match[domainPath.SubexpIndex("path")]),
		}, nil
	default:
		return nil, fmt.Errorf("%w, got %q", ErrInvalidAccess, access)
	}
}

// IsRootAccess reports whether the access expression routes everything, i.e.
// a bare "/" with no host constraint.
func IsRootAccess(access string) bool {
	return strings.TrimSpace(access) == "/"
}

func pathCondition(path string) map[string]any {
	return map[string]any{
		"Field": "path-pattern",
		"PathPatternConfig": map[string]any{
			"Values": []any{path},
		},
	}
}

func hostCondition(domain string) map[string]any {
	return map[string]any{
		"Field": "host-header",
		"HostHeaderConfig": map[string]any{
			"Values": []any{domain},
		},
	}
}
