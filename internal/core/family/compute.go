package family

import (
	"fmt"

	"github.com/docker/go-units"

	"github.com/artpar/stackgen/internal/core/compose"
	"github.com/artpar/stackgen/internal/core/placement"
)

// =============================================================================
// Compute Profile
// =============================================================================

// ComputeProfile is the resolved task-level compute definition of a family.
type ComputeProfile struct {
	CPUUnits int
	MemoryMB int
	// EphemeralGiB is the task ephemeral storage. Zero means the attribute
	// is omitted entirely (the platform free tier applies).
	EphemeralGiB int
	Architecture string
	OSFamily     string
}

// Serverless CPU sizes and the memory window allowed for each, in MB.
var fargateProfiles = []struct {
	cpu    int
	minMem int
	maxMem int
	step   int
}{
	{cpu: 256, minMem: 512, maxMem: 2048, step: 512},
	{cpu: 512, minMem: 1024, maxMem: 4096, step: 1024},
	{cpu: 1024, minMem: 2048, maxMem: 8192, step: 1024},
	{cpu: 2048, minMem: 4096, maxMem: 16384, step: 1024},
	{cpu: 4096, minMem: 8192, maxMem: 30720, step: 1024},
}

// Ephemeral storage below this many GiB comes with the platform for free,
// so the attribute is not emitted at all.
const ephemeralFreeTierGiB = 21

// ResolveComputeProfile derives the family's task sizing from the member
// services' resource declarations and the resolved launch mode.
//
// For serverless placement the aggregated CPU and memory are rounded up to
// the nearest valid platform combination; self-managed and external
// capacity keeps the raw aggregates.
func ResolveComputeProfile(services []compose.Service, mode placement.LaunchMode) (ComputeProfile, error) {
	profile := ComputeProfile{
		Architecture: "X86_64",
		OSFamily:     "LINUX",
	}

	var cpuUnits int
	var memoryMB int64
	for _, svc := range services {
		cpu := svc.Resources.CPULimit
		if svc.Resources.CPUReservation > cpu {
			cpu = svc.Resources.CPUReservation
		}
		cpuUnits += int(cpu * 1024)

		mem := svc.Resources.MemoryLimitMB
		if svc.Resources.MemoryResMB > mem {
			mem = svc.Resources.MemoryResMB
		}
		memoryMB += mem

		if svc.Compute != nil {
			if svc.Compute.CPUArchitecture != "" {
				profile.Architecture = svc.Compute.CPUArchitecture
			}
			if svc.Compute.OSFamily != "" {
				profile.OSFamily = svc.Compute.OSFamily
			}
		}
		if gib := serviceEphemeral(svc); gib > profile.EphemeralGiB {
			profile.EphemeralGiB = gib
		}
	}
	if profile.EphemeralGiB < ephemeralFreeTierGiB {
		profile.EphemeralGiB = 0
	}

	if mode == placement.ModeEC2 || mode == placement.ModeExternal {
		profile.CPUUnits = cpuUnits
		profile.MemoryMB = int(memoryMB)
		return profile, nil
	}

	cpu, mem, err := roundToFargateProfile(cpuUnits, int(memoryMB))
	if err != nil {
		return ComputeProfile{}, err
	}
	profile.CPUUnits = cpu
	profile.MemoryMB = mem
	return profile, nil
}

func serviceEphemeral(svc compose.Service) int {
	gib := svc.EphemeralGiB
	if svc.Compute != nil && svc.Compute.EphemeralStorage > gib {
		gib = svc.Compute.EphemeralStorage
	}
	return gib
}

// roundToFargateProfile picks the smallest valid serverless CPU/memory
// combination covering the requested aggregates.
func roundToFargateProfile(cpuUnits, memoryMB int) (int, int, error) {
	for _, p := range fargateProfiles {
		if cpuUnits > p.cpu {
			continue
		}
		if memoryMB > p.maxMem {
			continue
		}
		mem := p.minMem
		for mem < memoryMB {
			mem += p.step
		}
		return p.cpu, mem, nil
	}
	largest := fargateProfiles[len(fargateProfiles)-1]
	return 0, 0, fmt.Errorf(
		"no serverless compute profile fits %d CPU units and %s of memory (largest is %d / %s)",
		cpuUnits,
		units.BytesSize(float64(memoryMB)*units.MiB),
		largest.cpu,
		units.BytesSize(float64(largest.maxMem)*units.MiB),
	)
}
