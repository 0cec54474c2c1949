package scaling

import (
	"fmt"
	"sort"

	"github.com/artpar/stackgen/internal/core/compose"
)

// =============================================================================
// Step Validation
// =============================================================================

// StepBoundsError reports an invalid step-scaling band.
type StepBoundsError struct {
	Index  int
	Step   compose.ScalingStep
	Reason string
}

func (e *StepBoundsError) Error() string {
	upper := "unbounded"
	if e.Step.UpperBound != nil {
		upper = fmt.Sprintf("%d", *e.Step.UpperBound)
	}
	return fmt.Sprintf("scaling step %d (lower=%d upper=%s count=%d): %s",
		e.Index, e.Step.LowerBound, upper, e.Step.Count, e.Reason)
}

// ValidateAndOrderSteps validates step-scaling bands and returns them sorted
// ascending by lower bound.
//
// Rules:
//   - within a step, the lower bound must be strictly below the upper bound;
//   - across steps, each lower bound must be >= the previous upper bound
//     (gaps allowed, overlaps fatal);
//   - every step except the last must declare an upper bound;
//   - the last step must be unbounded; a declared upper bound is cleared
//     with a warning.
func ValidateAndOrderSteps(steps []compose.ScalingStep) ([]compose.ScalingStep, []string, error) {
	if len(steps) == 0 {
		return nil, nil, nil
	}

	for i, step := range steps {
		if step.UpperBound != nil && step.LowerBound >= *step.UpperBound {
			return nil, nil, &StepBoundsError{
				Index:  i,
				Step:   step,
				Reason: "lower bound must be strictly lower than the upper bound",
			}
		}
	}

	ordered := make([]compose.ScalingStep, len(steps))
	copy(ordered, steps)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].LowerBound < ordered[j].LowerBound
	})

	var warnings []string
	for i, step := range ordered {
		if i == 0 {
			continue
		}
		prev := ordered[i-1]
		if prev.UpperBound == nil {
			return nil, nil, &StepBoundsError{
				Index:  i - 1,
				Step:   prev,
				Reason: "only the last step may be unbounded",
			}
		}
		if step.LowerBound < *prev.UpperBound {
			return nil, nil, &StepBoundsError{
				Index: i,
				Step:  step,
				Reason: fmt.Sprintf("lower bound %d overlaps the previous upper bound %d",
					step.LowerBound, *prev.UpperBound),
			}
		}
	}

	last := len(ordered) - 1
	if ordered[last].UpperBound != nil {
		warnings = append(warnings, "the last step upper bound shall not be set. Clearing value to comply")
		ordered[last].UpperBound = nil
	}

	return ordered, warnings, nil
}
