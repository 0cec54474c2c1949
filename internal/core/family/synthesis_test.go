package family

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/stackgen/internal/cfn"
	"github.com/artpar/stackgen/internal/core/compose"
	"github.com/artpar/stackgen/internal/core/placement"
	"github.com/artpar/stackgen/internal/core/scaling"
)

func finalizedFamily(t *testing.T, services ...compose.Service) *Family {
	t.Helper()
	f := newFamily("app")
	for _, svc := range services {
		f.addService(svc)
	}
	require.NoError(t, f.Finalize(placement.ClusterDescriptor{}))
	return f
}

// =============================================================================
// Family Synthesis Tests
// =============================================================================

func TestSynthesize_RequiresFinalize(t *testing.T) {
	f := newFamily("app")
	f.addService(compose.Service{Name: "web", Essential: true})

	_, err := f.Synthesize()

	assert.Error(t, err)
}

func TestSynthesize_Baseline(t *testing.T) {
	f := finalizedFamily(t, compose.Service{
		Name:      "web",
		Image:     "nginx:latest",
		Essential: true,
		Ports:     []compose.Port{{Target: 80, Protocol: "tcp"}},
	})

	tpl, err := f.Synthesize()

	require.NoError(t, err)
	assert.Contains(t, tpl.Parameters, ParamVpcID)
	assert.Contains(t, tpl.Parameters, ParamSubnetIDs)
	assert.Contains(t, tpl.Parameters, ParamClusterName)
	assert.True(t, tpl.HasResource("appSecurityGroup"))
	assert.True(t, tpl.HasResource("TaskRole"))
	assert.True(t, tpl.HasResource("ExecutionRole"))
	assert.True(t, tpl.HasResource("TaskDefinition"))
	assert.True(t, tpl.HasResource("EcsService"))
	assert.Contains(t, tpl.Outputs, "ServiceName")
	assert.Contains(t, tpl.Outputs, "SecurityGroupId")
	assert.Contains(t, tpl.Outputs, "TaskDefinitionArn")
}

func TestSynthesize_TaskDefinition(t *testing.T) {
	f := finalizedFamily(t,
		compose.Service{
			Name:      "web",
			Image:     "nginx:latest",
			Essential: true,
			DependsOn: []string{"cache"},
			Ports:     []compose.Port{{Target: 80, Protocol: "tcp"}},
			Resources: compose.ServiceResources{CPULimit: 0.25, MemoryLimitMB: 512},
		},
		compose.Service{Name: "cache", Image: "redis:7"},
	)

	tpl, err := f.Synthesize()
	require.NoError(t, err)

	td := tpl.Resources["TaskDefinition"]
	assert.Equal(t, "awsvpc", td.Props["NetworkMode"])
	assert.Equal(t, []any{"FARGATE"}, td.Props["RequiresCompatibilities"])
	assert.Equal(t, "256", td.Props["Cpu"])
	assert.Equal(t, "512", td.Props["Memory"])

	defs := td.Props["ContainerDefinitions"].([]any)
	require.Len(t, defs, 2)
	// Containers appear in start order: dependency first.
	cache := defs[0].(map[string]any)
	assert.Equal(t, "cache", cache["Name"])
	web := defs[1].(map[string]any)
	assert.Equal(t, "web", web["Name"])

	deps := web["DependsOn"].([]any)
	require.Len(t, deps, 1)
	assert.Equal(t, "START", deps[0].(map[string]any)["Condition"])

	logCfg := web["LogConfiguration"].(map[string]any)
	assert.Equal(t, "awslogs", logCfg["LogDriver"])
}

func TestSynthesize_ExternalModeInjectsRegion(t *testing.T) {
	f := newFamily("app")
	f.addService(compose.Service{
		Name:      "agent",
		Image:     "agent:latest",
		Essential: true,
		Compute:   &compose.ComputeSpec{LaunchType: "EXTERNAL"},
	})
	require.NoError(t, f.Finalize(placement.ClusterDescriptor{}))

	tpl, err := f.Synthesize()
	require.NoError(t, err)

	td := tpl.Resources["TaskDefinition"]
	assert.Equal(t, []any{"EXTERNAL"}, td.Props["RequiresCompatibilities"])
	def := td.Props["ContainerDefinitions"].([]any)[0].(map[string]any)
	env := def["Environment"].([]any)
	require.Len(t, env, 1)
	entry := env[0].(map[string]any)
	assert.Equal(t, "AWS_DEFAULT_REGION", entry["Name"])
	assert.Equal(t, cfn.Ref(cfn.Region), entry["Value"])

	svc := tpl.Resources["EcsService"]
	assert.Equal(t, "EXTERNAL", svc.Props["LaunchType"])
}

func TestSynthesize_CapacityProviderStrategy(t *testing.T) {
	f := newFamily("app")
	f.addService(compose.Service{
		Name:      "web",
		Image:     "img",
		Essential: true,
		Compute: &compose.ComputeSpec{
			CapacityProviders: []compose.CapacityProvider{
				{Provider: "FARGATE", Base: 1, Weight: 2},
			},
		},
	})
	require.NoError(t, f.Finalize(placement.ClusterDescriptor{
		CapacityProviders: []string{"FARGATE"},
	}))

	tpl, err := f.Synthesize()
	require.NoError(t, err)

	svc := tpl.Resources["EcsService"]
	strategy := svc.Props["CapacityProviderStrategy"].([]any)
	require.Len(t, strategy, 1)
	entry := strategy[0].(map[string]any)
	assert.Equal(t, "FARGATE", entry["CapacityProvider"])
	assert.Equal(t, 1, entry["Base"])
	assert.Equal(t, 2, entry["Weight"])
	assert.NotContains(t, svc.Props, "LaunchType")
}

func TestSynthesize_UnsetModeDefersToCluster(t *testing.T) {
	f := finalizedFamily(t, compose.Service{Name: "web", Image: "img", Essential: true})

	tpl, err := f.Synthesize()
	require.NoError(t, err)

	svc := tpl.Resources["EcsService"]
	assert.NotContains(t, svc.Props, "LaunchType")
	assert.NotContains(t, svc.Props, "CapacityProviderStrategy")
}

func TestSynthesize_FireLensSidecarConfiguration(t *testing.T) {
	f := newFamily("app")
	f.addService(compose.Service{
		Name:      "web",
		Image:     "img",
		Essential: true,
		LogDriver: "awsfirelens",
	})
	f.InjectSidecars()
	require.NoError(t, f.Finalize(placement.ClusterDescriptor{}))

	tpl, err := f.Synthesize()
	require.NoError(t, err)

	defs := tpl.Resources["TaskDefinition"].Props["ContainerDefinitions"].([]any)
	byName := make(map[string]map[string]any, len(defs))
	for _, d := range defs {
		def := d.(map[string]any)
		byName[def["Name"].(string)] = def
	}
	web := byName["web"]
	assert.Equal(t, "awsfirelens", web["LogConfiguration"].(map[string]any)["LogDriver"])
	router := byName[FireLensSidecarName]
	require.NotNil(t, router)
	assert.Equal(t, map[string]any{"Type": "fluentbit"}, router["FirelensConfiguration"])
}

// =============================================================================
// Scaling Synthesis Tests
// =============================================================================

func TestSynthesizeScaling_DisabledIsNoOp(t *testing.T) {
	f := finalizedFamily(t, compose.Service{Name: "web", Image: "img", Essential: true})
	tpl, err := f.Synthesize()
	require.NoError(t, err)
	before := len(tpl.Resources)

	require.NoError(t, f.SynthesizeScaling(tpl))

	assert.Len(t, tpl.Resources, before)
}

func TestSynthesizeScaling_EmitsTargetAndPolicies(t *testing.T) {
	upper := 10
	f := finalizedFamily(t, compose.Service{
		Name:      "web",
		Image:     "img",
		Essential: true,
		Scaling: &compose.ScalingSpec{
			Range: "1-5",
			Steps: []compose.ScalingStep{
				{LowerBound: 0, UpperBound: &upper, Count: 1},
				{LowerBound: 10, Count: 5},
			},
		},
	})
	tpl, err := f.Synthesize()
	require.NoError(t, err)

	require.NoError(t, f.SynthesizeScaling(tpl))

	assert.True(t, tpl.HasResource(scaling.ScalableTargetName))
	assert.True(t, tpl.HasResource("ScalingOutPolicyaaaaabapp"))
	assert.True(t, tpl.HasResource("ScalingInPolicyaaaaabapp"))
}

// =============================================================================
// Target Group Attachment Tests
// =============================================================================

func TestAttachTargetGroup(t *testing.T) {
	f := finalizedFamily(t, compose.Service{
		Name:      "web",
		Image:     "img",
		Essential: true,
		Ports:     []compose.Port{{Target: 80, Protocol: "tcp"}},
	})
	tpl, err := f.Synthesize()
	require.NoError(t, err)

	arn := cfn.Ref("TgArnParam")
	require.NoError(t, AttachTargetGroup(tpl, arn, "web", 80))

	lbs := tpl.Resources["EcsService"].Props["LoadBalancers"].([]any)
	require.Len(t, lbs, 1)
	entry := lbs[0].(map[string]any)
	assert.Equal(t, "web", entry["ContainerName"])
	assert.Equal(t, 80, entry["ContainerPort"])
	assert.Equal(t, arn, entry["TargetGroupArn"])
}

func TestAttachTargetGroup_MissingService(t *testing.T) {
	tpl := cfn.NewTemplate("empty")

	err := AttachTargetGroup(tpl, cfn.Ref("Arn"), "web", 80)

	assert.Error(t, err)
}
