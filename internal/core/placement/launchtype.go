// Package placement resolves the effective compute placement mode of a task
// family from cluster-wide and family-level capacity declarations.
// Pure functions - no I/O.
package placement

import (
	"errors"
	"fmt"
	"strings"

	"github.com/artpar/stackgen/internal/core/compose"
)

// =============================================================================
// Launch Mode Types
// =============================================================================

// LaunchMode is the resolved compute placement strategy for a family.
type LaunchMode string

const (
	// ModeUnset defers the decision to the orchestrator's own default.
	ModeUnset LaunchMode = ""
	// ModeExternal runs the tasks on externally attached capacity (ECS Anywhere).
	ModeExternal LaunchMode = "EXTERNAL"
	// ModeEC2 pins the tasks to self-managed EC2 capacity.
	ModeEC2 LaunchMode = "EC2"
	// ModeFargateProviders uses Fargate capacity providers exclusively.
	ModeFargateProviders LaunchMode = "FARGATE_PROVIDERS"
	// ModeService uses the family's own provider strategy, mixing Fargate
	// and autoscaling-backed providers.
	ModeService LaunchMode = "SERVICE_MODE"
	// ModeCluster defers to the cluster's default provider strategy.
	ModeCluster LaunchMode = "CLUSTER_MODE"
)

// fargateProviders are the serverless-only capacity providers.
var fargateProviders = map[string]bool{
	"FARGATE":      true,
	"FARGATE_SPOT": true,
}

// UsesProviders reports whether the mode relies on a capacity provider
// strategy rather than a plain LaunchType value.
func (m LaunchMode) UsesProviders() bool {
	return m == ModeFargateProviders || m == ModeService || m == ModeCluster
}

// =============================================================================
// Cluster Descriptor
// =============================================================================

// ClusterDescriptor is the remote cluster description consumed from the
// cluster collaborator (or declared inline via x-cluster).
type ClusterDescriptor struct {
	Name                     string
	CapacityProviders        []string
	DefaultStrategyProviders []string
	PlatformOverride         string
}

// =============================================================================
// Error Types
// =============================================================================

// ErrExternalConflict indicates placement attributes were declared for a
// family pinned to EXTERNAL mode.
var ErrExternalConflict = errors.New("EXTERNAL launch type is exclusive of capacity providers")

// ProviderMismatchError reports family capacity providers that are not
// available in the cluster.
type ProviderMismatchError struct {
	Family    string
	Wanted    []string
	Available []string
}

func (e *ProviderMismatchError) Error() string {
	return fmt.Sprintf(
		"family %s uses capacity providers not available in the cluster. Wants: %s. Available: %s",
		e.Family, strings.Join(e.Wanted, ","), strings.Join(e.Available, ","),
	)
}

// MixedProvidersError reports a family declaration mixing Fargate with
// autoscaling capacity providers.
type MixedProvidersError struct {
	Family    string
	Providers []string
}

func (e *MixedProvidersError) Error() string {
	return fmt.Sprintf(
		"family %s cannot mix FARGATE capacity providers with autoscaling capacity providers: %s",
		e.Family, strings.Join(e.Providers, ","),
	)
}

// =============================================================================
// Resolver
// =============================================================================

// Input is the family-side placement declaration.
type Input struct {
	Family            string
	DeclaredType      string // "EXTERNAL" or "EC2" from x-ecs, empty otherwise
	CapacityProviders []compose.CapacityProvider
}

// Result is the outcome of resolving a family's launch mode.
type Result struct {
	Mode LaunchMode
	// ClearProviderStrategy indicates an override invalidated any declared
	// capacity provider strategy, which must not be emitted.
	ClearProviderStrategy bool
	Warnings              []string
}

// Resolve determines the effective launch mode of a family.
//
// Rules are evaluated in order:
//  1. A declared EXTERNAL type is terminal; declaring capacity providers on
//     top of it is a configuration error.
//  2. A cluster-wide platform override pins the family and clears any
//     provider strategy.
//  3. Family providers + cluster providers: family must be a subset of the
//     cluster's; all-Fargate on both sides means FARGATE_PROVIDERS,
//     otherwise SERVICE_MODE.
//  4. Cluster providers only: Fargate in the default strategy, or a
//     Fargate-only cluster, means FARGATE_PROVIDERS; otherwise CLUSTER_MODE.
//  5. Neither side declares providers: mode stays unset.
func Resolve(in Input, cluster ClusterDescriptor) (Result, error) {
	if in.DeclaredType == string(ModeExternal) {
		if len(in.CapacityProviders) > 0 {
			return Result{}, fmt.Errorf("family %s: %w", in.Family, ErrExternalConflict)
		}
		return Result{Mode: ModeExternal}, nil
	}

	if cluster.PlatformOverride != "" {
		res := Result{
			Mode:                  LaunchMode(cluster.PlatformOverride),
			ClearProviderStrategy: true,
		}
		if len(in.CapacityProviders) > 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf(
				"%s - launch type overridden to %s, ignoring capacity providers %s",
				in.Family, cluster.PlatformOverride, strings.Join(providerNames(in.CapacityProviders), ","),
			))
		}
		return res, nil
	}

	if in.DeclaredType == string(ModeEC2) {
		return Result{Mode: ModeEC2}, nil
	}

	familyProviders := providerNames(in.CapacityProviders)
	switch {
	case len(familyProviders) > 0 && len(cluster.CapacityProviders) > 0:
		return resolveFromBoth(in.Family, familyProviders, cluster)
	case len(familyProviders) == 0 && len(cluster.CapacityProviders) > 0:
		return resolveFromClusterOnly(cluster), nil
	default:
		return Result{Mode: ModeUnset}, nil
	}
}

func resolveFromBoth(family string, familyProviders []string, cluster ClusterDescriptor) (Result, error) {
	if err := validateProviders(family, familyProviders, cluster.CapacityProviders); err != nil {
		return Result{}, err
	}
	if allFargate(familyProviders) && allFargate(cluster.CapacityProviders) {
		return Result{Mode: ModeFargateProviders}, nil
	}
	return Result{Mode: ModeService}, nil
}

func resolveFromClusterOnly(cluster ClusterDescriptor) Result {
	if anyFargate(cluster.DefaultStrategyProviders) || allFargate(cluster.CapacityProviders) {
		return Result{Mode: ModeFargateProviders}
	}
	return Result{Mode: ModeCluster}
}

// validateProviders ensures the family's providers are coherent and all
// available in the cluster.
func validateProviders(family string, familyProviders, clusterProviders []string) error {
	if anyFargate(familyProviders) && !allFargate(familyProviders) {
		return &MixedProvidersError{Family: family, Providers: familyProviders}
	}
	var missing []string
	available := make(map[string]bool, len(clusterProviders))
	for _, p := range clusterProviders {
		available[p] = true
	}
	for _, p := range familyProviders {
		if !available[p] {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return &ProviderMismatchError{
			Family:    family,
			Wanted:    familyProviders,
			Available: clusterProviders,
		}
	}
	return nil
}

func providerNames(providers []compose.CapacityProvider) []string {
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Provider)
	}
	return names
}

func allFargate(providers []string) bool {
	if len(providers) == 0 {
		return false
	}
	for _, p := range providers {
		if !fargateProviders[p] {
			return false
		}
	}
	return true
}

func anyFargate(providers []string) bool {
	for _, p := range providers {
		if fargateProviders[p] {
			return true
		}
	}
	return false
}
