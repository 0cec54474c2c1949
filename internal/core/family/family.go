// Package family owns the lifecycle of a deployment unit: it aggregates the
// services sharing one task family, orders their containers, merges their
// networking and scaling declarations and assembles the compute, identity and
// service resources. Pure functions over in-memory structures - no I/O.
package family

import (
	"errors"
	"fmt"

	"github.com/artpar/stackgen/internal/core/compose"
	"github.com/artpar/stackgen/internal/core/networking"
	"github.com/artpar/stackgen/internal/core/placement"
	"github.com/artpar/stackgen/internal/core/scaling"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrNoEssentialContainer indicates a family whose containers are all
	// marked non-essential.
	ErrNoEssentialContainer = errors.New("a task family requires at least one essential container")

	// ErrUnknownFamily indicates a registry lookup for a family that was
	// never created.
	ErrUnknownFamily = errors.New("unknown task family")
)

// =============================================================================
// Family
// =============================================================================

// Family is a deployment unit: an ordered set of services sharing one
// compute, network and IAM boundary.
//
// A Family is created by the Registry when the first service declaring its
// name is added, mutated while further services and managed sidecars join,
// and finalized exactly once by Finalize.
type Family struct {
	Name string

	// Services in declaration order until Finalize, in container start
	// order afterwards.
	Services []compose.Service

	// Merged state, populated by Finalize.
	Ports    []compose.Port
	Networks map[string]compose.ServiceNetwork
	Scaling  *scaling.Config
	Launch   placement.Result
	Compute  ComputeProfile

	Warnings []string

	sidecars  map[string]bool
	finalized bool
}

func newFamily(name string) *Family {
	return &Family{
		Name:     name,
		sidecars: make(map[string]bool),
	}
}

// addService appends a user-declared service to the family.
func (f *Family) addService(svc compose.Service) {
	f.Services = append(f.Services, svc)
}

// SelfIngress reports whether any member service asked for intra-family
// ingress rules.
func (f *Family) SelfIngress() bool {
	for _, svc := range f.Services {
		if svc.Ingress != nil && svc.Ingress.Myself {
			return true
		}
	}
	return false
}

// DesiredCount is the service desired count before scaling applies: the
// maximum replica declaration across members, one by default.
func (f *Family) DesiredCount() int {
	count := 1
	for _, svc := range f.Services {
		if svc.Replicas > count {
			count = svc.Replicas
		}
	}
	return count
}

// EnableTracing reports whether any member service requested tracing.
func (f *Family) EnableTracing() bool {
	for _, svc := range f.Services {
		if svc.EnableTracing {
			return true
		}
	}
	return false
}

// Finalize resolves the family's merged state: container order, port and
// network merge, scaling merge and launch mode. It must be called exactly
// once, after every service of the deployment is known and sidecars were
// injected.
func (f *Family) Finalize(cluster placement.ClusterDescriptor) error {
	if f.finalized {
		return fmt.Errorf("family %s: already finalized", f.Name)
	}
	f.finalized = true

	ordered, err := OrderContainers(f.Services)
	if err != nil {
		return fmt.Errorf("family %s: %w", f.Name, err)
	}
	f.Services = ordered

	if !f.hasEssential() {
		return fmt.Errorf("family %s: %w", f.Name, ErrNoEssentialContainer)
	}

	f.Ports = networking.MergeFamilyPorts(f.Services)
	f.Networks = networking.MergeNetworks(f.Services)

	cfg, err := scaling.MergeFamilyScaling(f.Services)
	if err != nil {
		return fmt.Errorf("family %s: %w", f.Name, err)
	}
	f.Scaling = cfg
	f.Warnings = append(f.Warnings, cfg.Warnings...)

	launch, err := placement.Resolve(placement.Input{
		Family:            f.Name,
		DeclaredType:      f.declaredLaunchType(),
		CapacityProviders: f.capacityProviders(),
	}, cluster)
	if err != nil {
		return err
	}
	f.Launch = launch
	f.Warnings = append(f.Warnings, launch.Warnings...)

	profile, err := ResolveComputeProfile(f.Services, f.Launch.Mode)
	if err != nil {
		return fmt.Errorf("family %s: %w", f.Name, err)
	}
	f.Compute = profile

	return nil
}

func (f *Family) hasEssential() bool {
	for _, svc := range f.Services {
		if svc.Essential {
			return true
		}
	}
	return false
}

// declaredLaunchType returns the explicit launch type if any member service
// set one via its compute extension.
func (f *Family) declaredLaunchType() string {
	for _, svc := range f.Services {
		if svc.Compute != nil && svc.Compute.LaunchType != "" {
			return svc.Compute.LaunchType
		}
	}
	return ""
}

// capacityProviders returns the last full capacity provider strategy
// declared by a member service.
func (f *Family) capacityProviders() []compose.CapacityProvider {
	var providers []compose.CapacityProvider
	for _, svc := range f.Services {
		if svc.Compute != nil && len(svc.Compute.CapacityProviders) > 0 {
			providers = svc.Compute.CapacityProviders
		}
	}
	return providers
}

// =============================================================================
// Exposed Targets
// =============================================================================

// ExposedTarget is one (family, container, port) endpoint a load balancer
// can route to.
type ExposedTarget struct {
	Family    string
	Container string
	Port      uint32
	Protocol  string
}

// ExposedTargets lists every container port of the family, in container
// order, for cross-family reference resolution.
func (f *Family) ExposedTargets() []ExposedTarget {
	var targets []ExposedTarget
	for _, svc := range f.Services {
		for _, port := range svc.Ports {
			proto := port.Protocol
			if proto == "" {
				proto = "tcp"
			}
			targets = append(targets, ExposedTarget{
				Family:    f.Name,
				Container: svc.Name,
				Port:      port.Target,
				Protocol:  proto,
			})
		}
	}
	return targets
}
