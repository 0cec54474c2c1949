// Package scaling merges per-service scaling declarations into one
// family-level policy set and synthesizes the Application Auto Scaling
// resources. Pure functions - no I/O.
package scaling

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/artpar/stackgen/internal/core/compose"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrInvalidRange indicates a Range value that is not "min-max".
	ErrInvalidRange = errors.New("scaling range must be of format min-max")
)

// =============================================================================
// Merged Configuration Types
// =============================================================================

// Range is the scalable capacity range of a family.
type Range struct {
	Min int
	Max int
}

// TargetTracking is the merged target-tracking configuration with defaults
// applied.
type TargetTracking struct {
	CPUTarget        int
	MemoryTarget     int
	TargetsCount     int
	DisableScaleIn   bool
	ScaleInCooldown  int
	ScaleOutCooldown int
	// Presence flags: a zero target means "not configured".
	HasCPUTarget    bool
	HasMemoryTarget bool
	HasTargetsCount bool
}

// Config is the family-level scaling declaration resulting from the merge.
type Config struct {
	Range            *Range
	TargetScaling    TargetTracking
	Steps            []compose.ScalingStep
	ScheduledActions []compose.ScheduledAction
	Warnings         []string
}

// Enabled reports whether the family has any scaling configuration at all.
func (c *Config) Enabled() bool {
	return c != nil && c.Range != nil
}

// =============================================================================
// Merge Functions
// =============================================================================

const (
	defaultScaleInCooldown  = 300
	defaultScaleOutCooldown = 60
)

// MergeFamilyScaling folds the per-service x-scaling declarations into one
// family-level configuration.
//
//   - Range: union to [min(mins), max(maxes)].
//   - Target tracking: numeric targets combine by minimum (most
//     conservative); booleans combine by OR, warning on first enable.
//   - Steps and scheduled actions: last full declaration wins.
func MergeFamilyScaling(services []compose.Service) (*Config, error) {
	cfg := &Config{
		TargetScaling: TargetTracking{
			ScaleInCooldown:  defaultScaleInCooldown,
			ScaleOutCooldown: defaultScaleOutCooldown,
		},
	}

	for _, svc := range services {
		if svc.Scaling == nil {
			continue
		}
		if svc.Scaling.Range != "" {
			if err := cfg.mergeRange(svc.Name, svc.Scaling.Range); err != nil {
				return nil, err
			}
		}
		if svc.Scaling.TargetScaling != nil {
			cfg.mergeTargetScaling(*svc.Scaling.TargetScaling)
		}
		if len(svc.Scaling.Steps) > 0 {
			cfg.Steps = svc.Scaling.Steps
		}
		if len(svc.Scaling.ScheduledActions) > 0 {
			cfg.ScheduledActions = svc.Scaling.ScheduledActions
		}
	}

	if cfg.Range == nil {
		return cfg, nil
	}

	ordered, warnings, err := ValidateAndOrderSteps(cfg.Steps)
	if err != nil {
		return nil, err
	}
	cfg.Steps = ordered
	cfg.Warnings = append(cfg.Warnings, warnings...)

	// Never silently truncate capacity declared by the top step.
	if len(cfg.Steps) > 0 {
		top := cfg.Steps[len(cfg.Steps)-1]
		if top.Count > cfg.Range.Max {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf(
				"scalable range maximum is %d but the top scaling step requires %d. Raising maximum",
				cfg.Range.Max, top.Count,
			))
			cfg.Range.Max = top.Count
		}
	}

	return cfg, nil
}

func (c *Config) mergeRange(serviceName, value string) error {
	parts := strings.SplitN(value, "-", 2)
	if len(parts) != 2 {
		return fmt.Errorf("services.%s: %w, got %q", serviceName, ErrInvalidRange, value)
	}
	newMin, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return fmt.Errorf("services.%s: %w, got %q", serviceName, ErrInvalidRange, value)
	}
	newMax, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return fmt.Errorf("services.%s: %w, got %q", serviceName, ErrInvalidRange, value)
	}
	if c.Range == nil {
		c.Range = &Range{Min: newMin, Max: newMax}
		return nil
	}
	c.Range.Min = min(c.Range.Min, newMin)
	c.Range.Max = max(c.Range.Max, newMax)
	return nil
}

func (c *Config) mergeTargetScaling(in compose.TargetScaling) {
	mergeMinTarget(in.CPUTarget, &c.TargetScaling.CPUTarget, &c.TargetScaling.HasCPUTarget)
	mergeMinTarget(in.MemoryTarget, &c.TargetScaling.MemoryTarget, &c.TargetScaling.HasMemoryTarget)
	mergeMinTarget(in.TargetsCount, &c.TargetScaling.TargetsCount, &c.TargetScaling.HasTargetsCount)

	if in.ScaleInCooldown != nil {
		c.TargetScaling.ScaleInCooldown = min(c.TargetScaling.ScaleInCooldown, *in.ScaleInCooldown)
	}
	if in.ScaleOutCooldown != nil {
		c.TargetScaling.ScaleOutCooldown = min(c.TargetScaling.ScaleOutCooldown, *in.ScaleOutCooldown)
	}
	if in.DisableScaleIn != nil && *in.DisableScaleIn && !c.TargetScaling.DisableScaleIn {
		c.Warnings = append(c.Warnings, "at least one service disables scale-in. Disabling for the whole family")
		c.TargetScaling.DisableScaleIn = true
	}
}

// mergeMinTarget keeps the most conservative (lowest) configured target.
func mergeMinTarget(in *int, current *int, present *bool) {
	if in == nil {
		return
	}
	if !*present {
		*current = *in
		*present = true
		return
	}
	*current = min(*current, *in)
}
