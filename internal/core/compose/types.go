package compose

// =============================================================================
// Document - Main Output Type
// =============================================================================

// Document represents a fully parsed extended compose file.
// This is the stackgen-specific representation, decoupled from compose-go types.
type Document struct {
	Services      []Service      `json:"services"`
	Networks      []Network      `json:"networks,omitempty"`
	Cluster       *ClusterSpec   `json:"cluster,omitempty"`
	Vpc           *VpcSpec       `json:"vpc,omitempty"`
	LoadBalancers []LoadBalancer `json:"load_balancers,omitempty"`
	// Warnings collects non-fatal notices raised while parsing, for the
	// caller to log or surface.
	Warnings []string `json:"-"`
}

// =============================================================================
// Service Types
// =============================================================================

// Service represents a single service definition, including the x-
// extensions driving ECS synthesis.
type Service struct {
	Name          string                    `json:"name"`
	Image         string                    `json:"image"`
	Command       []string                  `json:"command,omitempty"`
	Entrypoint    []string                  `json:"entrypoint,omitempty"`
	Ports         []Port                    `json:"ports,omitempty"`
	Environment   map[string]string         `json:"environment,omitempty"`
	Secrets       []SecretRef               `json:"secrets,omitempty"`
	Networks      map[string]ServiceNetwork `json:"networks,omitempty"`
	DependsOn     []string                  `json:"depends_on,omitempty"`
	Labels        map[string]string         `json:"labels,omitempty"`
	Family        string                    `json:"family"`
	Essential     bool                      `json:"essential"`
	Replicas      int                       `json:"replicas,omitempty"`
	Resources     ServiceResources          `json:"resources"`
	EphemeralGiB  int                       `json:"ephemeral_storage,omitempty"`
	LogDriver     string                    `json:"log_driver,omitempty"`
	Scaling       *ScalingSpec              `json:"scaling,omitempty"`
	Ingress       *IngressSpec              `json:"ingress,omitempty"`
	Compute       *ComputeSpec              `json:"compute,omitempty"`
	EnableTracing bool                      `json:"enable_tracing,omitempty"`
}

// Port represents a port mapping. Uniqueness key is (target, protocol).
type Port struct {
	Target    uint32 `json:"target"`
	Published uint32 `json:"published,omitempty"`
	Protocol  string `json:"protocol,omitempty"`
}

// SecretRef represents a secret injected into the container environment.
type SecretRef struct {
	Name      string `json:"name"`       // Environment variable name in the container
	ValueFrom string `json:"value_from"` // ARN or parameter identifying the secret
}

// ServiceNetwork represents a service's attachment to a named network.
type ServiceNetwork struct {
	Aliases []string `json:"aliases,omitempty"`
}

// ServiceResources represents resource limits/reservations for a service.
type ServiceResources struct {
	CPULimit       float64 `json:"cpu_limit"`       // vCPUs
	CPUReservation float64 `json:"cpu_reservation"` // vCPUs
	MemoryLimitMB  int64   `json:"memory_limit"`
	MemoryResMB    int64   `json:"memory_reservation"`
}

// =============================================================================
// x-ecs (Compute) Types
// =============================================================================

// ComputeSpec represents the x-ecs extension: launch placement hints.
type ComputeSpec struct {
	LaunchType        string             `yaml:"LaunchType,omitempty" json:"launch_type,omitempty"`
	CapacityProviders []CapacityProvider `yaml:"CapacityProviders,omitempty" json:"capacity_providers,omitempty"`
	CPUArchitecture   string             `yaml:"CpuArchitecture,omitempty" json:"cpu_architecture,omitempty"`
	OSFamily          string             `yaml:"OperatingSystemFamily,omitempty" json:"os_family,omitempty"`
	EphemeralStorage  int                `yaml:"EphemeralStorage,omitempty" json:"ephemeral_storage,omitempty"` // GiB
}

// CapacityProvider is one entry of a capacity provider strategy.
type CapacityProvider struct {
	Provider string `yaml:"CapacityProvider" json:"provider"`
	Base     int    `yaml:"Base,omitempty" json:"base,omitempty"`
	Weight   int    `yaml:"Weight,omitempty" json:"weight,omitempty"`
}

// ClusterSpec represents the x-cluster extension: the target ECS cluster.
type ClusterSpec struct {
	Name              string             `yaml:"Name,omitempty" json:"name,omitempty"`
	CapacityProviders []string           `yaml:"CapacityProviders,omitempty" json:"capacity_providers,omitempty"`
	DefaultStrategy   []CapacityProvider `yaml:"DefaultStrategy,omitempty" json:"default_strategy,omitempty"`
	PlatformOverride  string             `yaml:"PlatformOverride,omitempty" json:"platform_override,omitempty"`
	Lookup            bool               `yaml:"Lookup,omitempty" json:"lookup,omitempty"`
}

// VpcSpec represents the x-vpc extension: where the stacks deploy into.
type VpcSpec struct {
	Lookup *VpcLookup `yaml:"Lookup,omitempty" json:"lookup,omitempty"`
}

// VpcLookup resolves the VPC and its subnets from the remote inventory by
// tags instead of requiring explicit stack parameters.
type VpcLookup struct {
	VpcTags    map[string]string `yaml:"VpcTags,omitempty" json:"vpc_tags,omitempty"`
	SubnetTags map[string]string `yaml:"SubnetTags,omitempty" json:"subnet_tags,omitempty"`
}

// =============================================================================
// x-scaling Types
// =============================================================================

// ScalingSpec represents the x-scaling extension on a service.
type ScalingSpec struct {
	Range            string            `yaml:"Range,omitempty" json:"range,omitempty"` // "min-max"
	TargetScaling    *TargetScaling    `yaml:"TargetScaling,omitempty" json:"target_scaling,omitempty"`
	Steps            []ScalingStep     `yaml:"Steps,omitempty" json:"steps,omitempty"`
	ScheduledActions []ScheduledAction `yaml:"ScheduledActions,omitempty" json:"scheduled_actions,omitempty"`
}

// TargetScaling holds target-tracking scaling settings.
// Pointer fields distinguish "unset" from zero values during merging.
type TargetScaling struct {
	CPUTarget        *int  `yaml:"CpuTarget,omitempty" json:"cpu_target,omitempty"`
	MemoryTarget     *int  `yaml:"MemoryTarget,omitempty" json:"memory_target,omitempty"`
	TargetsCount     *int  `yaml:"TgtTargetsCount,omitempty" json:"targets_count,omitempty"`
	DisableScaleIn   *bool `yaml:"DisableScaleIn,omitempty" json:"disable_scale_in,omitempty"`
	ScaleInCooldown  *int  `yaml:"ScaleInCooldown,omitempty" json:"scale_in_cooldown,omitempty"`
	ScaleOutCooldown *int  `yaml:"ScaleOutCooldown,omitempty" json:"scale_out_cooldown,omitempty"`
}

// ScalingStep is one band of a step-scaling definition.
// A nil UpperBound means the band is unbounded.
type ScalingStep struct {
	LowerBound int  `yaml:"LowerBound" json:"lower_bound"`
	UpperBound *int `yaml:"UpperBound,omitempty" json:"upper_bound,omitempty"`
	Count      int  `yaml:"Count" json:"count"`
}

// ScheduledAction is a cron/at-style scheduled capacity change.
type ScheduledAction struct {
	Name        string `yaml:"Name" json:"name"`
	Schedule    string `yaml:"Schedule" json:"schedule"`
	MinCapacity int    `yaml:"MinCapacity" json:"min_capacity"`
	MaxCapacity int    `yaml:"MaxCapacity" json:"max_capacity"`
}

// =============================================================================
// x-network Types
// =============================================================================

// IngressSpec represents the x-network Ingress extension.
type IngressSpec struct {
	Myself bool `yaml:"Myself,omitempty" json:"myself,omitempty"`
}

// Network represents a top-level network definition.
type Network struct {
	Name     string            `json:"name"`
	External bool              `json:"external"`
	Labels   map[string]string `json:"labels,omitempty"`
}

// =============================================================================
// x-elbv2 Types
// =============================================================================

// LoadBalancer represents one load balancer from the x-elbv2 extension.
type LoadBalancer struct {
	Name      string     `yaml:"-" json:"name"`
	Type      string     `yaml:"Type,omitempty" json:"type,omitempty"` // application | network
	Scheme    string     `yaml:"Scheme,omitempty" json:"scheme,omitempty"`
	Listeners []Listener `yaml:"Listeners,omitempty" json:"listeners,omitempty"`
}

// IsNLB reports whether the load balancer is a network load balancer.
func (lb LoadBalancer) IsNLB() bool {
	return lb.Type == "network"
}

// Listener represents one listener declared on a load balancer.
type Listener struct {
	Port           int                 `yaml:"Port" json:"port"`
	Protocol       string              `yaml:"Protocol,omitempty" json:"protocol,omitempty"`
	SSLPolicy      string              `yaml:"SslPolicy,omitempty" json:"ssl_policy,omitempty"`
	Certificates   []CertificateRef    `yaml:"Certificates,omitempty" json:"certificates,omitempty"`
	Targets        []ListenerTargetDef `yaml:"Targets,omitempty" json:"targets,omitempty"`
	DefaultActions []DefaultActionDef  `yaml:"DefaultActions,omitempty" json:"default_actions,omitempty"`
}

// CertificateRef points at an ACM certificate by ARN.
type CertificateRef struct {
	CertificateArn string `yaml:"CertificateArn,omitempty" json:"certificate_arn,omitempty"`
}

// ListenerTargetDef is the declaration of one routing target:
// a family:container[:port] reference, an optional access condition
// and optional authentication configuration.
type ListenerTargetDef struct {
	Name                string         `yaml:"Name" json:"name"`
	Access              string         `yaml:"Access,omitempty" json:"access,omitempty"`
	AuthenticateOidc    *OidcConfig    `yaml:"AuthenticateOidcConfig,omitempty" json:"authenticate_oidc,omitempty"`
	AuthenticateCognito *CognitoConfig `yaml:"AuthenticateCognitoConfig,omitempty" json:"authenticate_cognito,omitempty"`
}

// DefaultActionDef is a predefined default action declared on a listener.
type DefaultActionDef struct {
	Redirect string `yaml:"Redirect,omitempty" json:"redirect,omitempty"`
}

// OidcConfig holds authenticate-oidc action settings.
type OidcConfig struct {
	Issuer                   string `yaml:"Issuer" json:"issuer"`
	AuthorizationEndpoint    string `yaml:"AuthorizationEndpoint" json:"authorization_endpoint"`
	TokenEndpoint            string `yaml:"TokenEndpoint" json:"token_endpoint"`
	UserInfoEndpoint         string `yaml:"UserInfoEndpoint" json:"user_info_endpoint"`
	ClientID                 string `yaml:"ClientId" json:"client_id"`
	ClientSecret             string `yaml:"ClientSecret" json:"client_secret"`
	Scope                    string `yaml:"Scope,omitempty" json:"scope,omitempty"`
	OnUnauthenticatedRequest string `yaml:"OnUnauthenticatedRequest,omitempty" json:"on_unauthenticated_request,omitempty"`
}

// CognitoConfig holds authenticate-cognito action settings.
type CognitoConfig struct {
	UserPoolArn              string `yaml:"UserPoolArn" json:"user_pool_arn"`
	UserPoolClientID         string `yaml:"UserPoolClientId" json:"user_pool_client_id"`
	UserPoolDomain           string `yaml:"UserPoolDomain" json:"user_pool_domain"`
	Scope                    string `yaml:"Scope,omitempty" json:"scope,omitempty"`
	OnUnauthenticatedRequest string `yaml:"OnUnauthenticatedRequest,omitempty" json:"on_unauthenticated_request,omitempty"`
}
