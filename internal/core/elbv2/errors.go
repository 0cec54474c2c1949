// Package elbv2 resolves abstract listener target references against the
// composed families and synthesizes the load balancer resource graph:
// target groups, listeners, default actions and prioritized routing rules.
// Pure functions - no I/O.
package elbv2

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrInvalidTargetRef indicates a target name that does not match
	// family:container[:port].
	ErrInvalidTargetRef = errors.New("target must be of format family:container or family:container:port")

	// ErrInvalidAccess indicates an access condition string that is neither
	// a path nor a domain[/path] expression.
	ErrInvalidAccess = errors.New("access must be a /path or a domain[/path] expression")

	// ErrAuthRequiresTLS indicates an authentication action declared on a
	// plaintext listener.
	ErrAuthRequiresTLS = errors.New("authentication actions require an HTTPS listener with certificates")

	// ErrUDPCertificate indicates a certificate attached to a UDP listener,
	// which has no encrypted counterpart.
	ErrUDPCertificate = errors.New("UDP listeners cannot carry certificates")

	// ErrNetworkLBSingleTarget indicates more than one target declared on a
	// network load balancer listener.
	ErrNetworkLBSingleTarget = errors.New("network load balancer listeners support exactly one target")

	// ErrNetworkLBConditions indicates access conditions or authentication
	// declared on a network load balancer listener.
	ErrNetworkLBConditions = errors.New("network load balancer listeners do not support conditions or authentication")
)

// UnresolvedTargetError reports a target reference matching none of the
// exposed endpoints.
type UnresolvedTargetError struct {
	LoadBalancer string
	Ref          string
}

func (e *UnresolvedTargetError) Error() string {
	return fmt.Sprintf("load balancer %s: target %s does not match any exposed container port", e.LoadBalancer, e.Ref)
}

// AmbiguousTargetError reports a portless target reference matching several
// exposed endpoints.
type AmbiguousTargetError struct {
	LoadBalancer string
	Ref          string
	Ports        []uint32
}

func (e *AmbiguousTargetError) Error() string {
	ports := make([]string, 0, len(e.Ports))
	for _, p := range e.Ports {
		ports = append(ports, fmt.Sprintf("%d", p))
	}
	return fmt.Sprintf(
		"load balancer %s: target %s is ambiguous, container exposes ports %s. Add an explicit port",
		e.LoadBalancer, e.Ref, strings.Join(ports, ","),
	)
}

// DuplicateListenerPortError reports two listeners of one load balancer
// declared on the same port.
type DuplicateListenerPortError struct {
	LoadBalancer string
	Port         int
}

func (e *DuplicateListenerPortError) Error() string {
	return fmt.Sprintf("load balancer %s: several listeners declared on port %d", e.LoadBalancer, e.Port)
}
