package scaling

import (
	"fmt"

	"github.com/artpar/stackgen/internal/cfn"
)

// =============================================================================
// Resource Names
// =============================================================================

// ScalableTargetName is the logical name of the family scalable target.
const ScalableTargetName = "ServiceScalingTarget"

// NameSource issues unique, deterministic suffixes for synthesized scaling
// resources within one template. It replaces the random alphanumeric
// suffixes the compose ecosystem tools traditionally use, so repeated runs
// produce identical names.
type NameSource struct {
	next int
}

// Suffix returns the next six-letter lowercase suffix.
func (s *NameSource) Suffix() string {
	s.next++
	n := s.next
	buf := []byte{'a', 'a', 'a', 'a', 'a', 'a'}
	for i := len(buf) - 1; i >= 0 && n > 0; i-- {
		buf[i] = 'a' + byte(n%26)
		n /= 26
	}
	return string(buf)
}

// =============================================================================
// Resource Synthesis
// =============================================================================

// AddScalableTarget emits the family's scalable target, including any
// scheduled actions, and returns its logical name.
func AddScalableTarget(tpl *cfn.Template, cfg *Config) (string, error) {
	if !cfg.Enabled() {
		return "", nil
	}
	props := cfn.Props{
		"MaxCapacity":       cfg.Range.Max,
		"MinCapacity":       cfg.Range.Min,
		"ResourceId":        cfn.Sub("service/${EcsClusterName}/${EcsService.Name}"),
		"RoleARN":           cfn.Sub("arn:${AWS::Partition}:iam::${AWS::AccountId}:role/aws-service-role/ecs.application-autoscaling.amazonaws.com/AWSServiceRoleForApplicationAutoScaling_ECSService"),
		"ScalableDimension": "ecs:service:DesiredCount",
		"ServiceNamespace":  "ecs",
	}
	if len(cfg.ScheduledActions) > 0 {
		actions := make([]any, 0, len(cfg.ScheduledActions))
		for _, action := range cfg.ScheduledActions {
			actions = append(actions, map[string]any{
				"ScheduledActionName": action.Name,
				"Schedule":            action.Schedule,
				"ScalableTargetAction": map[string]any{
					"MinCapacity": action.MinCapacity,
					"MaxCapacity": action.MaxCapacity,
				},
			})
		}
		props["ScheduledActions"] = actions
	}
	_, err := tpl.AddResource(ScalableTargetName, &cfn.Resource{
		Type:  "AWS::ApplicationAutoScaling::ScalableTarget",
		Props: props,
	})
	return ScalableTargetName, err
}

// AddStepScalingPolicies emits the scale-out policy derived from the merged
// steps plus the companion reset-to-zero scale-in policy.
// Policy names combine the family name with a suffix from names, keeping
// multiple emissions within the same family unique.
func AddStepScalingPolicies(tpl *cfn.Template, familyName string, cfg *Config, names *NameSource) error {
	if !cfg.Enabled() || len(cfg.Steps) == 0 {
		return nil
	}

	adjustments := make([]any, 0, len(cfg.Steps))
	for _, step := range cfg.Steps {
		adjustment := map[string]any{
			"MetricIntervalLowerBound": step.LowerBound,
			"ScalingAdjustment":        step.Count,
		}
		if step.UpperBound != nil {
			adjustment["MetricIntervalUpperBound"] = *step.UpperBound
		}
		adjustments = append(adjustments, adjustment)
	}

	suffix := names.Suffix()
	family := cfn.LogicalName(familyName)

	outName := fmt.Sprintf("ScalingOutPolicy%s%s", suffix, family)
	if _, err := tpl.AddResource(outName, &cfn.Resource{
		Type: "AWS::ApplicationAutoScaling::ScalingPolicy",
		Props: cfn.Props{
			"PolicyName":       outName,
			"PolicyType":       "StepScaling",
			"ScalingTargetId":  cfn.Ref(ScalableTargetName),
			"StepScalingPolicyConfiguration": map[string]any{
				"AdjustmentType":  "ExactCapacity",
				"Cooldown":        cfg.TargetScaling.ScaleOutCooldown,
				"StepAdjustments": adjustments,
			},
		},
	}); err != nil {
		return err
	}

	inName := fmt.Sprintf("ScalingInPolicy%s%s", suffix, family)
	_, err := tpl.AddResource(inName, &cfn.Resource{
		Type: "AWS::ApplicationAutoScaling::ScalingPolicy",
		Props: cfn.Props{
			"PolicyName":      inName,
			"PolicyType":      "StepScaling",
			"ScalingTargetId": cfn.Ref(ScalableTargetName),
			"StepScalingPolicyConfiguration": map[string]any{
				"AdjustmentType": "ExactCapacity",
				"Cooldown":       cfg.TargetScaling.ScaleInCooldown,
				"StepAdjustments": []any{
					map[string]any{
						"MetricIntervalUpperBound": 0,
						"ScalingAdjustment":        0,
					},
				},
			},
		},
	})
	return err
}

// trackingMetrics maps each configured target to its predefined metric type.
var trackingMetrics = []struct {
	policyName string
	metricType string
	value      func(t TargetTracking) (int, bool)
}{
	{
		policyName: "CpuTrackingScalingPolicy",
		metricType: "ECSServiceAverageCPUUtilization",
		value:      func(t TargetTracking) (int, bool) { return t.CPUTarget, t.HasCPUTarget },
	},
	{
		policyName: "MemoryTrackingScalingPolicy",
		metricType: "ECSServiceAverageMemoryUtilization",
		value:      func(t TargetTracking) (int, bool) { return t.MemoryTarget, t.HasMemoryTarget },
	},
	{
		policyName: "TargetsTrackingScalingPolicy",
		metricType: "ALBRequestCountPerTarget",
		value:      func(t TargetTracking) (int, bool) { return t.TargetsCount, t.HasTargetsCount },
	},
}

// AddTargetTrackingPolicies emits one target-tracking policy per configured
// metric target.
func AddTargetTrackingPolicies(tpl *cfn.Template, cfg *Config) error {
	if !cfg.Enabled() {
		return nil
	}
	for _, metric := range trackingMetrics {
		target, ok := metric.value(cfg.TargetScaling)
		if !ok {
			continue
		}
		_, err := tpl.AddResource(metric.policyName, &cfn.Resource{
			Type: "AWS::ApplicationAutoScaling::ScalingPolicy",
			Props: cfn.Props{
				"PolicyName":      metric.policyName,
				"PolicyType":      "TargetTrackingScaling",
				"ScalingTargetId": cfn.Ref(ScalableTargetName),
				"TargetTrackingScalingPolicyConfiguration": map[string]any{
					"DisableScaleIn":   cfg.TargetScaling.DisableScaleIn,
					"ScaleInCooldown":  cfg.TargetScaling.ScaleInCooldown,
					"ScaleOutCooldown": cfg.TargetScaling.ScaleOutCooldown,
					"TargetValue":      float64(target),
					"PredefinedMetricSpecification": map[string]any{
						"PredefinedMetricType": metric.metricType,
					},
				},
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
