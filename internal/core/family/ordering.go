package family

import (
	"errors"
	"sort"

	"github.com/artpar/stackgen/internal/core/compose"
)

// =============================================================================
// Container Ordering
// =============================================================================

// ErrDependencyCycle indicates a depends_on cycle between members of one
// family.
var ErrDependencyCycle = errors.New("circular dependency between family containers")

// OrderContainers orders a family's services so that every container starts
// after its dependencies.
//
// Each service starts at priority 0; priorities are raised until every
// dependent sits strictly above the maximum priority of its dependencies.
// The final order is a stable sort by priority, so services at equal depth
// keep their declaration order. The resulting order also fixes the
// declaration order inside the task definition, which keeps rendered output
// diffable.
//
// Example:
//
//	// Services declared as: web (depends on api), api (depends on db), db
//	ordered, _ := OrderContainers(services)
//	// Result: [db, api, web]
func OrderContainers(services []compose.Service) ([]compose.Service, error) {
	if len(services) == 0 {
		return services, nil
	}

	priority := make(map[string]int, len(services))
	for _, svc := range services {
		priority[svc.Name] = 0
	}

	// Relax priorities until fixpoint. More than len(services) rounds of
	// change means a cycle.
	for round := 0; ; round++ {
		if round > len(services) {
			return nil, ErrDependencyCycle
		}
		changed := false
		for _, svc := range services {
			for _, dep := range svc.DependsOn {
				depPriority, known := priority[dep]
				if !known {
					// Dependency outside the family: no ordering constraint here.
					continue
				}
				if priority[svc.Name] <= depPriority {
					priority[svc.Name] = depPriority + 1
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}

	ordered := make([]compose.Service, len(services))
	copy(ordered, services)
	sort.SliceStable(ordered, func(i, j int) bool {
		return priority[ordered[i].Name] < priority[ordered[j].Name]
	})
	return ordered, nil
}
