package aws

import (
	"strings"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Stack Config Tests
// =============================================================================

func TestStackConfig_ParametersSorted(t *testing.T) {
	cfg := StackConfig{
		Name: "test",
		Parameters: map[string]string{
			"VpcId":        "vpc-1",
			"EcsCluster":   "prod",
			"TemplatesUrl": "https://bucket/prefix",
		},
	}

	params := cfg.parameters()

	require.Len(t, params, 3)
	assert.Equal(t, "EcsCluster", awssdk.ToString(params[0].ParameterKey))
	assert.Equal(t, "TemplatesUrl", awssdk.ToString(params[1].ParameterKey))
	assert.Equal(t, "VpcId", awssdk.ToString(params[2].ParameterKey))
	assert.Equal(t, "vpc-1", awssdk.ToString(params[2].ParameterValue))
}

func TestStackConfig_NoParameters(t *testing.T) {
	assert.Empty(t, StackConfig{Name: "test"}.parameters())
}

// =============================================================================
// Change Set Rendering Tests
// =============================================================================

func TestChangeSet_Render(t *testing.T) {
	cs := &ChangeSet{
		StackName: "test",
		Changes: []Change{
			{Action: "Add", LogicalID: "EcsService", Type: "AWS::ECS::Service"},
			{Action: "Modify", LogicalID: "TaskDefinition", Type: "AWS::ECS::TaskDefinition", Replacement: "True"},
		},
	}

	out := cs.Render()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ACTION")
	assert.Contains(t, lines[0], "REPLACEMENT")
	// Absent replacement renders as a dash.
	assert.Contains(t, lines[1], "Add")
	assert.Contains(t, lines[1], "-")
	assert.Contains(t, lines[2], "True")
}

func TestChangeSet_RenderEmpty(t *testing.T) {
	cs := &ChangeSet{StackName: "test"}

	out := cs.Render()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Len(t, lines, 1)
}
