package scaling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/stackgen/internal/core/compose"
)

// =============================================================================
// Step Validation Tests
// =============================================================================

func TestValidateAndOrderSteps_Empty(t *testing.T) {
	ordered, warnings, err := ValidateAndOrderSteps(nil)

	require.NoError(t, err)
	assert.Nil(t, ordered)
	assert.Nil(t, warnings)
}

func TestValidateAndOrderSteps_SortsByLowerBound(t *testing.T) {
	steps := []compose.ScalingStep{
		{LowerBound: 20, Count: 4},
		{LowerBound: 0, UpperBound: intPtr(10), Count: 1},
		{LowerBound: 10, UpperBound: intPtr(20), Count: 2},
	}

	ordered, warnings, err := ValidateAndOrderSteps(steps)

	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, ordered, 3)
	assert.Equal(t, 0, ordered[0].LowerBound)
	assert.Equal(t, 10, ordered[1].LowerBound)
	assert.Equal(t, 20, ordered[2].LowerBound)
}

// Monotonicity: every non-last upper bound sits at or below the next lower
// bound, and the last step is unbounded.
func TestValidateAndOrderSteps_Monotonic(t *testing.T) {
	steps := []compose.ScalingStep{
		{LowerBound: 0, UpperBound: intPtr(10), Count: 1},
		{LowerBound: 15, UpperBound: intPtr(30), Count: 2},
		{LowerBound: 30, Count: 5},
	}

	ordered, _, err := ValidateAndOrderSteps(steps)

	require.NoError(t, err)
	for i := 0; i < len(ordered)-1; i++ {
		require.NotNil(t, ordered[i].UpperBound)
		assert.LessOrEqual(t, *ordered[i].UpperBound, ordered[i+1].LowerBound)
	}
	assert.Nil(t, ordered[len(ordered)-1].UpperBound)
}

func TestValidateAndOrderSteps_LowerAboveUpperFails(t *testing.T) {
	steps := []compose.ScalingStep{
		{LowerBound: 10, UpperBound: intPtr(5), Count: 1},
	}

	_, _, err := ValidateAndOrderSteps(steps)

	var bounds *StepBoundsError
	require.ErrorAs(t, err, &bounds)
	assert.Equal(t, 0, bounds.Index)
}

func TestValidateAndOrderSteps_UnboundedMiddleStepFails(t *testing.T) {
	steps := []compose.ScalingStep{
		{LowerBound: 0, Count: 1},
		{LowerBound: 10, Count: 2},
	}

	_, _, err := ValidateAndOrderSteps(steps)

	var bounds *StepBoundsError
	require.ErrorAs(t, err, &bounds)
	assert.Contains(t, bounds.Error(), "unbounded")
}

func TestValidateAndOrderSteps_LastUpperClearedWithWarning(t *testing.T) {
	steps := []compose.ScalingStep{
		{LowerBound: 0, UpperBound: intPtr(10), Count: 1},
		{LowerBound: 10, UpperBound: intPtr(99), Count: 5},
	}

	ordered, warnings, err := ValidateAndOrderSteps(steps)

	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Clearing")
	assert.Nil(t, ordered[1].UpperBound)
	// Input slice is left untouched.
	assert.NotNil(t, steps[1].UpperBound)
}

// =============================================================================
// Name Source Tests
// =============================================================================

func TestNameSource_DeterministicAndUnique(t *testing.T) {
	var a, b NameSource

	first := []string{a.Suffix(), a.Suffix(), a.Suffix()}
	second := []string{b.Suffix(), b.Suffix(), b.Suffix()}

	assert.Equal(t, first, second)
	assert.NotEqual(t, first[0], first[1])
	assert.NotEqual(t, first[1], first[2])
	for _, s := range first {
		assert.Len(t, s, 6)
	}
}
