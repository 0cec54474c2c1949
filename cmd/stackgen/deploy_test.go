package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Deployment Flag Tests
// =============================================================================

func TestDeployFlags_StackConfig(t *testing.T) {
	flags := &deployFlags{
		parameters:      []string{"VpcId=vpc-123", "SubnetIds=subnet-a,subnet-b"},
		disableRollback: true,
	}

	cfg, err := flags.stackConfig("prod")

	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.Name)
	assert.True(t, cfg.DisableRollback)
	assert.Equal(t, "vpc-123", cfg.Parameters["VpcId"])
	assert.Equal(t, "subnet-a,subnet-b", cfg.Parameters["SubnetIds"])
}

func TestDeployFlags_InvalidParameter(t *testing.T) {
	for _, param := range []string{"no-separator", "=value"} {
		flags := &deployFlags{parameters: []string{param}}
		_, err := flags.stackConfig("prod")
		assert.Error(t, err, "input %q", param)
	}
}

// =============================================================================
// ARN Helpers
// =============================================================================

func TestVpcResourceID(t *testing.T) {
	assert.Equal(t, "vpc-0abc", vpcResourceID("arn:aws:ec2:eu-west-1:123456789012:vpc/vpc-0abc"))
	assert.Equal(t, "subnet-1", vpcResourceID("arn:aws:ec2:eu-west-1:123456789012:subnet/subnet-1"))
	assert.Equal(t, "vpc-plain", vpcResourceID("vpc-plain"))
}
