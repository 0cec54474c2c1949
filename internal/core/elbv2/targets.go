package elbv2

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/artpar/stackgen/internal/core/family"
)

// =============================================================================
// Target Reference Parsing
// =============================================================================

// targetPattern matches family:container[:port].
var targetPattern = regexp.MustCompile(`^(?P<family>[\w\-]+):(?P<container>[\w\-]+)(?::(?P<port>\d{1,5}))?$`)

// TargetRef is a parsed listener target reference.
type TargetRef struct {
	Raw       string
	Family    string
	Container string
	Port      uint32
	HasPort   bool
}

// ParseTargetRef parses a family:container[:port] reference string.
func ParseTargetRef(raw string) (TargetRef, error) {
	match := targetPattern.FindStringSubmatch(raw)
	if match == nil {
		return TargetRef{}, fmt.Errorf("%w, got %q", ErrInvalidTargetRef, raw)
	}
	ref := TargetRef{
		Raw:       raw,
		Family:    match[targetPattern.SubexpIndex("family")],
		Container: match[targetPattern.SubexpIndex("container")],
	}
	if port := match[targetPattern.SubexpIndex("port")]; port != "" {
		value, err := strconv.ParseUint(port, 10, 32)
		if err != nil || value == 0 || value > 65535 {
			return TargetRef{}, fmt.Errorf("%w, invalid port %q", ErrInvalidTargetRef, port)
		}
		ref.Port = uint32(value)
		ref.HasPort = true
	}
	return ref, nil
}

// =============================================================================
// Target Resolution
// =============================================================================

// ResolveTarget matches a parsed reference against the exposed endpoints of
// every composed family. A reference matching nothing is fatal; a portless
// reference matching a container with several exposed ports is fatal too.
func ResolveTarget(lbName string, ref TargetRef, exposed []family.ExposedTarget) (family.ExposedTarget, error) {
	var matches []family.ExposedTarget
	for _, target := range exposed {
		if target.Family != ref.Family || target.Container != ref.Container {
			continue
		}
		if ref.HasPort && target.Port != ref.Port {
			continue
		}
		matches = append(matches, target)
	}

	switch len(matches) {
	case 0:
		return family.ExposedTarget{}, &UnresolvedTargetError{LoadBalancer: lbName, Ref: ref.Raw}
	case 1:
		return matches[0], nil
	default:
		ports := make([]uint32, 0, len(matches))
		for _, m := range matches {
			ports = append(ports, m.Port)
		}
		return family.ExposedTarget{}, &AmbiguousTargetError{LoadBalancer: lbName, Ref: ref.Raw, Ports: ports}
	}
}
