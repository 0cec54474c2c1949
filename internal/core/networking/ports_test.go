package networking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/artpar/stackgen/internal/core/compose"
)

// =============================================================================
// MergePorts Tests
// =============================================================================

func TestMergePorts_EmptyInputs(t *testing.T) {
	assert.Nil(t, MergePorts(nil, nil))

	accumulated := []compose.Port{{Target: 80, Protocol: "tcp"}}
	assert.Equal(t, accumulated, MergePorts(accumulated, nil))
}

func TestMergePorts_IncomingOverridesSameKey(t *testing.T) {
	accumulated := []compose.Port{{Target: 80, Published: 8080, Protocol: "tcp"}}
	incoming := []compose.Port{{Target: 80, Published: 9090, Protocol: "tcp"}}

	merged := MergePorts(accumulated, incoming)

	assert.Len(t, merged, 1)
	assert.Equal(t, uint32(9090), merged[0].Published)
}

func TestMergePorts_DistinctKeysBothKept(t *testing.T) {
	accumulated := []compose.Port{{Target: 80, Protocol: "tcp"}}
	incoming := []compose.Port{{Target: 443, Protocol: "tcp"}}

	merged := MergePorts(accumulated, incoming)

	assert.Len(t, merged, 2)
}

func TestMergePorts_ProtocolPartOfKey(t *testing.T) {
	accumulated := []compose.Port{{Target: 53, Protocol: "tcp"}}
	incoming := []compose.Port{{Target: 53, Protocol: "udp"}}

	merged := MergePorts(accumulated, incoming)

	// Same target, different protocol: both survive.
	assert.Len(t, merged, 2)
}

func TestMergePorts_EmptyProtocolDefaultsTCP(t *testing.T) {
	accumulated := []compose.Port{{Target: 80, Published: 8080}}
	incoming := []compose.Port{{Target: 80, Published: 9090, Protocol: "tcp"}}

	merged := MergePorts(accumulated, incoming)

	assert.Len(t, merged, 1)
	assert.Equal(t, uint32(9090), merged[0].Published)
}

func TestMergePorts_Idempotent(t *testing.T) {
	ports := []compose.Port{
		{Target: 80, Protocol: "tcp"},
		{Target: 443, Protocol: "tcp"},
	}
	once := MergePorts(nil, ports)
	twice := MergePorts(once, ports)

	assert.Equal(t, once, twice)
}

// Family with services A (80) and B (80, 443) declared after A: B's values
// win on the shared key.
func TestMergeFamilyPorts_LaterServiceOverrides(t *testing.T) {
	services := []compose.Service{
		{Name: "a", Ports: []compose.Port{{Target: 80, Published: 8080, Protocol: "tcp"}}},
		{Name: "b", Ports: []compose.Port{
			{Target: 80, Published: 9090, Protocol: "tcp"},
			{Target: 443, Published: 8443, Protocol: "tcp"},
		}},
	}

	merged := MergeFamilyPorts(services)

	assert.Len(t, merged, 2)
	byTarget := make(map[uint32]compose.Port)
	for _, p := range merged {
		byTarget[p.Target] = p
	}
	assert.Equal(t, uint32(9090), byTarget[80].Published)
	assert.Equal(t, uint32(8443), byTarget[443].Published)
}

func TestMergeFamilyPorts_NoServices(t *testing.T) {
	assert.Empty(t, MergeFamilyPorts(nil))
}

// =============================================================================
// MergeNetworks Tests
// =============================================================================

func TestMergeNetworks_LastDeclarationWins(t *testing.T) {
	services := []compose.Service{
		{Name: "a", Networks: map[string]compose.ServiceNetwork{
			"internal": {Aliases: []string{"a"}},
		}},
		{Name: "b", Networks: map[string]compose.ServiceNetwork{
			"internal": {Aliases: []string{"b"}},
			"public":   {},
		}},
	}

	merged := MergeNetworks(services)

	assert.Len(t, merged, 2)
	assert.Equal(t, []string{"b"}, merged["internal"].Aliases)
}
