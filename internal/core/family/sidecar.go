package family

import (
	"github.com/artpar/stackgen/internal/core/compose"
)

// =============================================================================
// Managed Sidecars
// =============================================================================

// Managed sidecar names and images.
const (
	XRaySidecarName      = "xray-daemon"
	XRaySidecarImage     = "public.ecr.aws/xray/aws-xray-daemon:latest"
	FireLensSidecarName  = "log-router"
	FireLensSidecarImage = "public.ecr.aws/aws-observability/aws-for-fluent-bit:stable"
)

// XRaySidecar returns the tracing daemon container injected for families
// that enable tracing.
func XRaySidecar(familyName string) compose.Service {
	return compose.Service{
		Name:   XRaySidecarName,
		Image:  XRaySidecarImage,
		Family: familyName,
		Ports: []compose.Port{
			{Target: 2000, Protocol: "udp"},
		},
	}
}

// FireLensSidecar returns the log routing container injected for families
// using the awsfirelens log driver.
func FireLensSidecar(familyName string) compose.Service {
	return compose.Service{
		Name:   FireLensSidecarName,
		Image:  FireLensSidecarImage,
		Family: familyName,
	}
}

// AddManagedSidecar injects a composer-owned sidecar container into the
// family. Injection is idempotent by container name: re-adding a sidecar
// that is already present, or that collides with a user-declared service,
// is a no-op and returns false so the caller can log the skip.
func (f *Family) AddManagedSidecar(sidecar compose.Service) bool {
	if f.sidecars[sidecar.Name] {
		return false
	}
	for _, svc := range f.Services {
		if svc.Name == sidecar.Name {
			return false
		}
	}
	f.sidecars[sidecar.Name] = true
	f.Services = append(f.Services, sidecar)
	return true
}

// IsManagedSidecar reports whether the named container was injected by the
// composer rather than declared by the user.
func (f *Family) IsManagedSidecar(name string) bool {
	return f.sidecars[name]
}

// usesFireLens reports whether any member service routes logs through
// firelens.
func (f *Family) usesFireLens() bool {
	for _, svc := range f.Services {
		if svc.LogDriver == "awsfirelens" {
			return true
		}
	}
	return false
}

// InjectSidecars adds the managed sidecars the family's declarations call
// for. Returns the names of the sidecars actually added.
func (f *Family) InjectSidecars() []string {
	var added []string
	if f.EnableTracing() {
		if f.AddManagedSidecar(XRaySidecar(f.Name)) {
			added = append(added, XRaySidecarName)
		}
	}
	if f.usesFireLens() {
		if f.AddManagedSidecar(FireLensSidecar(f.Name)) {
			added = append(added, FireLensSidecarName)
		}
	}
	return added
}
