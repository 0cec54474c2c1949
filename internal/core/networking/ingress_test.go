package networking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/stackgen/internal/cfn"
	"github.com/artpar/stackgen/internal/core/compose"
)

// =============================================================================
// Self-Ingress Tests
// =============================================================================

func TestAddSelfIngress_OneRulePerPort(t *testing.T) {
	tpl := cfn.NewTemplate("test")
	sg, err := AddFamilySecurityGroup(tpl, "app")
	require.NoError(t, err)

	ports := []compose.Port{
		{Target: 80, Protocol: "tcp"},
		{Target: 2000, Protocol: "udp"},
	}
	require.NoError(t, AddSelfIngress(tpl, sg, ports))

	assert.True(t, tpl.HasResource("AllowInterCommunicationPort80tcp"))
	assert.True(t, tpl.HasResource("AllowInterCommunicationPort2000udp"))
}

func TestAddSelfIngress_Idempotent(t *testing.T) {
	tpl := cfn.NewTemplate("test")
	sg, err := AddFamilySecurityGroup(tpl, "app")
	require.NoError(t, err)

	ports := []compose.Port{{Target: 80, Protocol: "tcp"}}
	require.NoError(t, AddSelfIngress(tpl, sg, ports))
	before := len(tpl.Resources)
	require.NoError(t, AddSelfIngress(tpl, sg, ports))

	assert.Equal(t, before, len(tpl.Resources))
}

func TestAddSelfIngress_PublishedPortPreferred(t *testing.T) {
	tpl := cfn.NewTemplate("test")
	sg, err := AddFamilySecurityGroup(tpl, "app")
	require.NoError(t, err)

	ports := []compose.Port{{Target: 80, Published: 8080, Protocol: "tcp"}}
	require.NoError(t, AddSelfIngress(tpl, sg, ports))

	assert.True(t, tpl.HasResource("AllowInterCommunicationPort8080tcp"))
}

// =============================================================================
// Load Balancer Ingress Tests
// =============================================================================

func TestAddLoadBalancerIngress_NamesDeterministic(t *testing.T) {
	tpl := cfn.NewTemplate("test")
	sg, err := AddFamilySecurityGroup(tpl, "app")
	require.NoError(t, err)

	ports := []compose.Port{{Target: 80, Protocol: "tcp"}}
	lbSg := cfn.Ref("LbSecurityGroupId")
	require.NoError(t, AddLoadBalancerIngress(tpl, "public-lb", lbSg, "app", sg, ports))

	assert.True(t, tpl.HasResource("FromLBpubliclbToappOn80tcp"))

	// Re-emission is skipped, not duplicated.
	before := len(tpl.Resources)
	require.NoError(t, AddLoadBalancerIngress(tpl, "public-lb", lbSg, "app", sg, ports))
	assert.Equal(t, before, len(tpl.Resources))
}

func TestAddLoadBalancerIngress_SamePortDifferentProtocols(t *testing.T) {
	tpl := cfn.NewTemplate("test")
	sg, err := AddFamilySecurityGroup(tpl, "fam")
	require.NoError(t, err)

	ports := []compose.Port{
		{Target: 53, Protocol: "tcp"},
		{Target: 53, Protocol: "udp"},
	}
	require.NoError(t, AddLoadBalancerIngress(tpl, "lb", cfn.Ref("LbSecurityGroupId"), "fam", sg, ports))

	assert.True(t, tpl.HasResource("FromLBlbTofamOn53tcp"))
	assert.True(t, tpl.HasResource("FromLBlbTofamOn53udp"))
}

func TestAddFamilySecurityGroup_ReinvocationNoop(t *testing.T) {
	tpl := cfn.NewTemplate("test")
	first, err := AddFamilySecurityGroup(tpl, "app")
	require.NoError(t, err)
	second, err := AddFamilySecurityGroup(tpl, "app")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, "appSecurityGroup", first)
}
