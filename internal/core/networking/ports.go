// Package networking contains pure functions for merging family-level
// networking settings and deriving security group ingress rules.
package networking

import (
	"github.com/artpar/stackgen/internal/core/compose"
)

// =============================================================================
// Port Merge Functions
// =============================================================================

type portKey struct {
	target   uint32
	protocol string
}

func keyOf(p compose.Port) portKey {
	proto := p.Protocol
	if proto == "" {
		proto = "tcp"
	}
	return portKey{target: p.Target, protocol: proto}
}

// MergePorts merges one service's port declarations into the accumulated
// family-level port set.
//
// Symmetric override: ports already present in the accumulated set whose
// (target, protocol) key is re-declared by the incoming set are replaced by
// the incoming values; everything else is kept. Incoming ports come first in
// the result, preserving declaration order within each set.
//
// There is no error path; empty input yields the other set unchanged.
func MergePorts(accumulated, incoming []compose.Port) []compose.Port {
	if len(incoming) == 0 {
		return accumulated
	}

	incomingKeys := make(map[portKey]bool, len(incoming))
	merged := make([]compose.Port, 0, len(accumulated)+len(incoming))
	for _, port := range incoming {
		incomingKeys[keyOf(port)] = true
		merged = append(merged, port)
	}
	for _, port := range accumulated {
		if !incomingKeys[keyOf(port)] {
			merged = append(merged, port)
		}
	}
	return merged
}

// MergeFamilyPorts folds the port sets of the given services, in order,
// into one deduplicated family-level port list. Later services override
// earlier ones on (target, protocol) key collisions.
func MergeFamilyPorts(services []compose.Service) []compose.Port {
	var ports []compose.Port
	for _, svc := range services {
		ports = MergePorts(ports, svc.Ports)
	}
	return ports
}

// =============================================================================
// Network Merge Functions
// =============================================================================

// MergeNetworks merges per-service network attachments by dictionary union,
// last declaration wins per network name.
func MergeNetworks(services []compose.Service) map[string]compose.ServiceNetwork {
	networks := make(map[string]compose.ServiceNetwork)
	for _, svc := range services {
		for name, attachment := range svc.Networks {
			networks[name] = attachment
		}
	}
	return networks
}
