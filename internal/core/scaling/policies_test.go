package scaling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/stackgen/internal/cfn"
	"github.com/artpar/stackgen/internal/core/compose"
)

func enabledConfig() *Config {
	return &Config{
		Range: &Range{Min: 1, Max: 5},
		TargetScaling: TargetTracking{
			ScaleInCooldown:  defaultScaleInCooldown,
			ScaleOutCooldown: defaultScaleOutCooldown,
		},
	}
}

// =============================================================================
// Scalable Target Tests
// =============================================================================

func TestAddScalableTarget_Disabled(t *testing.T) {
	tpl := cfn.NewTemplate("test")
	name, err := AddScalableTarget(tpl, &Config{})

	require.NoError(t, err)
	assert.Empty(t, name)
	assert.Empty(t, tpl.Resources)
}

func TestAddScalableTarget_Props(t *testing.T) {
	tpl := cfn.NewTemplate("test")
	cfg := enabledConfig()

	name, err := AddScalableTarget(tpl, cfg)

	require.NoError(t, err)
	require.Equal(t, ScalableTargetName, name)
	res := tpl.Resources[name]
	require.NotNil(t, res)
	assert.Equal(t, "AWS::ApplicationAutoScaling::ScalableTarget", res.Type)
	assert.Equal(t, 5, res.Props["MaxCapacity"])
	assert.Equal(t, 1, res.Props["MinCapacity"])
	assert.Equal(t, "ecs", res.Props["ServiceNamespace"])
	assert.NotContains(t, res.Props, "ScheduledActions")
}

func TestAddScalableTarget_ScheduledActions(t *testing.T) {
	tpl := cfn.NewTemplate("test")
	cfg := enabledConfig()
	cfg.ScheduledActions = []compose.ScheduledAction{
		{Name: "night", Schedule: "cron(0 0 * * ? *)", MinCapacity: 0, MaxCapacity: 1},
	}

	_, err := AddScalableTarget(tpl, cfg)

	require.NoError(t, err)
	actions, ok := tpl.Resources[ScalableTargetName].Props["ScheduledActions"].([]any)
	require.True(t, ok)
	require.Len(t, actions, 1)
	action := actions[0].(map[string]any)
	assert.Equal(t, "night", action["ScheduledActionName"])
}

// =============================================================================
// Step Policy Tests
// =============================================================================

func TestAddStepScalingPolicies_EmitsOutAndResetPolicies(t *testing.T) {
	tpl := cfn.NewTemplate("test")
	cfg := enabledConfig()
	upper := 10
	cfg.Steps = []compose.ScalingStep{
		{LowerBound: 0, UpperBound: &upper, Count: 1},
		{LowerBound: 10, Count: 5},
	}

	var names NameSource
	require.NoError(t, AddStepScalingPolicies(tpl, "app", cfg, &names))

	require.True(t, tpl.HasResource("ScalingOutPolicyaaaaabapp"))
	require.True(t, tpl.HasResource("ScalingInPolicyaaaaabapp"))

	out := tpl.Resources["ScalingOutPolicyaaaaabapp"]
	stepCfg := out.Props["StepScalingPolicyConfiguration"].(map[string]any)
	assert.Equal(t, "ExactCapacity", stepCfg["AdjustmentType"])
	adjustments := stepCfg["StepAdjustments"].([]any)
	require.Len(t, adjustments, 2)
	first := adjustments[0].(map[string]any)
	assert.Equal(t, 10, first["MetricIntervalUpperBound"])
	last := adjustments[1].(map[string]any)
	assert.NotContains(t, last, "MetricIntervalUpperBound")

	in := tpl.Resources["ScalingInPolicyaaaaabapp"]
	resetCfg := in.Props["StepScalingPolicyConfiguration"].(map[string]any)
	reset := resetCfg["StepAdjustments"].([]any)[0].(map[string]any)
	assert.Equal(t, 0, reset["ScalingAdjustment"])
}

func TestAddStepScalingPolicies_NoSteps(t *testing.T) {
	tpl := cfn.NewTemplate("test")
	var names NameSource

	require.NoError(t, AddStepScalingPolicies(tpl, "app", enabledConfig(), &names))
	assert.Empty(t, tpl.Resources)
}

// =============================================================================
// Target Tracking Policy Tests
// =============================================================================

func TestAddTargetTrackingPolicies_OnePerConfiguredMetric(t *testing.T) {
	tpl := cfn.NewTemplate("test")
	cfg := enabledConfig()
	cfg.TargetScaling.CPUTarget = 70
	cfg.TargetScaling.HasCPUTarget = true
	cfg.TargetScaling.TargetsCount = 500
	cfg.TargetScaling.HasTargetsCount = true

	require.NoError(t, AddTargetTrackingPolicies(tpl, cfg))

	assert.True(t, tpl.HasResource("CpuTrackingScalingPolicy"))
	assert.True(t, tpl.HasResource("TargetsTrackingScalingPolicy"))
	assert.False(t, tpl.HasResource("MemoryTrackingScalingPolicy"))

	policy := tpl.Resources["CpuTrackingScalingPolicy"]
	tracking := policy.Props["TargetTrackingScalingPolicyConfiguration"].(map[string]any)
	assert.Equal(t, float64(70), tracking["TargetValue"])
	metric := tracking["PredefinedMetricSpecification"].(map[string]any)
	assert.Equal(t, "ECSServiceAverageCPUUtilization", metric["PredefinedMetricType"])
}
