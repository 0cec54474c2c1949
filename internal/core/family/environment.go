package family

import (
	"fmt"
	"sort"

	"github.com/artpar/stackgen/internal/core/compose"
)

// =============================================================================
// Environment / Secret Sorting
// =============================================================================

// EnvVar is one plain environment value of a container definition.
type EnvVar struct {
	Name  string
	Value string
}

// SortedEnvironment is the deterministic, deduplicated configuration set of
// one container. Nil slices mean "absent" and must not be serialized as
// empty collections.
type SortedEnvironment struct {
	Environment []EnvVar
	Secrets     []compose.SecretRef
	Warnings    []string
}

// SortContainerEnvironment orders a container's injected configuration for
// deterministic output.
//
// Secret references sort by name. Plain values sort by name too, and any
// plain value whose name collides with a secret is dropped - the secret
// wins, with a warning naming the dropped variable. Extra values without a
// name key (raw entries appended by other components) keep their relative
// order at the end of the plain list.
func SortContainerEnvironment(env map[string]string, secrets []compose.SecretRef, extras ...EnvVar) SortedEnvironment {
	var out SortedEnvironment

	if len(secrets) > 0 {
		out.Secrets = make([]compose.SecretRef, len(secrets))
		copy(out.Secrets, secrets)
		sort.SliceStable(out.Secrets, func(i, j int) bool {
			return out.Secrets[i].Name < out.Secrets[j].Name
		})
	}

	secretNames := make(map[string]bool, len(secrets))
	for _, s := range secrets {
		secretNames[s.Name] = true
	}

	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if secretNames[name] {
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"environment variable %s is also defined as a secret. Dropping the environment value", name,
			))
			continue
		}
		out.Environment = append(out.Environment, EnvVar{Name: name, Value: env[name]})
	}

	out.Environment = append(out.Environment, extras...)
	return out
}
