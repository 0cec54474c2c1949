package compose

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Well-Known Labels and Extension Keys
// =============================================================================

const (
	// LabelFamily assigns a service to a task family (deploy.labels).
	LabelFamily = "ecs.task.family"
	// LabelEssential marks a container as essential ("true"/"false").
	LabelEssential = "ecs.task.essential"

	extCluster       = "x-cluster"
	extVpc           = "x-vpc"
	extElbv2         = "x-elbv2"
	extScaling       = "x-scaling"
	extNetwork       = "x-network"
	extEcs           = "x-ecs"
	extXray          = "x-xray"
	extDeployScaling = "x-aws-autoscaling"
)

// =============================================================================
// Parser Functions
// =============================================================================

// ParseDocument parses extended compose YAML into a Document.
// This is a pure function - no I/O, no side effects.
func ParseDocument(yamlContent string) (*Document, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	project, err := loadProject(yamlContent)
	if err != nil {
		return nil, err
	}

	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	doc := &Document{
		Services: make([]Service, 0, len(project.Services)),
	}

	// compose-go keeps services in a map; sort names so that synthesis
	// order only depends on the document content.
	names := make([]string, 0, len(project.Services))
	for name := range project.Services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		converted, err := convertService(project.Services[name], project, doc)
		if err != nil {
			return nil, err
		}
		doc.Services = append(doc.Services, converted)
	}

	if err := detectCircularDependencies(doc.Services); err != nil {
		return nil, err
	}
	if err := validatePorts(doc.Services); err != nil {
		return nil, err
	}

	netNames := make([]string, 0, len(project.Networks))
	for name := range project.Networks {
		netNames = append(netNames, name)
	}
	sort.Strings(netNames)
	for _, name := range netNames {
		net := project.Networks[name]
		doc.Networks = append(doc.Networks, Network{
			Name:     name,
			External: bool(net.External),
			Labels:   net.Labels,
		})
	}

	if err := convertTopLevelExtensions(project, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// loadProject loads a compose document using compose-go.
func loadProject(yamlContent string) (*types.Project, error) {
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(yamlContent),
				Config:  dict,
			},
		},
	}, func(opts *loader.Options) {
		opts.SetProjectName("stackgen-temp", false)
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		// In-memory input, no paths to resolve
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "dependency cycle detected") {
			return nil, NewParseError("", "circular dependency detected", ErrCircularDependency)
		}
		if strings.Contains(errStr, "image") && strings.Contains(errStr, "build") {
			return nil, NewParseError(imagelessServiceField(errStr), "service must have an image", ErrServiceNoImage)
		}
		return nil, NewParseError("", errStr, ErrInvalidYAML)
	}

	return project, nil
}

// imagelessServiceField pulls the offending service name out of the loader's
// `service "name" has neither an image nor a build context` message.
func imagelessServiceField(errStr string) string {
	_, rest, ok := strings.Cut(errStr, `"`)
	if !ok {
		return ""
	}
	name, _, ok := strings.Cut(rest, `"`)
	if !ok {
		return ""
	}
	return "services." + name
}

// convertService converts a compose-go service to our Service type.
// Non-fatal notices land on doc.Warnings.
func convertService(svc types.ServiceConfig, project *types.Project, doc *Document) (Service, error) {
	service := Service{
		Name:        svc.Name,
		Image:       svc.Image,
		Command:     svc.Command,
		Entrypoint:  svc.Entrypoint,
		Environment: make(map[string]string),
		Labels:      make(map[string]string),
		Family:      svc.Name,
		Essential:   true,
	}

	if service.Image == "" {
		return Service{}, NewParseError("services."+svc.Name, "service must have an image", ErrServiceNoImage)
	}

	for _, p := range svc.Ports {
		var published uint32
		if p.Published != "" {
			pub, err := strconv.ParseUint(p.Published, 10, 32)
			if err == nil {
				published = uint32(pub)
			}
		}
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		service.Ports = append(service.Ports, Port{
			Target:    p.Target,
			Published: published,
			Protocol:  proto,
		})
	}

	for k, v := range svc.Environment {
		if v != nil {
			service.Environment[k] = *v
		}
	}
	for k, v := range svc.Labels {
		service.Labels[k] = v
	}

	// Secrets: map the container-side name to the backing store reference.
	for _, sec := range svc.Secrets {
		ref := SecretRef{Name: sec.Source, ValueFrom: sec.Source}
		if sec.Target != "" {
			ref.Name = sec.Target
		}
		if def, ok := project.Secrets[sec.Source]; ok {
			if arn, ok := def.Extensions["x-arn"].(string); ok && arn != "" {
				ref.ValueFrom = arn
			} else if def.Name != "" {
				ref.ValueFrom = def.Name
			}
		}
		service.Secrets = append(service.Secrets, ref)
	}

	if len(svc.Networks) > 0 {
		service.Networks = make(map[string]ServiceNetwork, len(svc.Networks))
		for name, attach := range svc.Networks {
			var aliases []string
			if attach != nil {
				aliases = attach.Aliases
			}
			service.Networks[name] = ServiceNetwork{Aliases: aliases}
		}
	}

	// depends_on keys come from a map; keep them ordered.
	for dep := range svc.DependsOn {
		service.DependsOn = append(service.DependsOn, dep)
	}
	sort.Strings(service.DependsOn)

	if svc.Deploy != nil {
		if svc.Deploy.Replicas != nil {
			service.Replicas = *svc.Deploy.Replicas
		}
		if family, ok := svc.Deploy.Labels[LabelFamily]; ok && family != "" {
			service.Family = family
		}
		if essential, ok := svc.Deploy.Labels[LabelEssential]; ok {
			service.Essential = essential != "false"
		}
		// Note: compose-go's NanoCPUs is misnamed - it's the CPU count as float32
		if svc.Deploy.Resources.Limits != nil {
			service.Resources.CPULimit = float64(svc.Deploy.Resources.Limits.NanoCPUs)
			service.Resources.MemoryLimitMB = int64(svc.Deploy.Resources.Limits.MemoryBytes) / (1024 * 1024)
		}
		if svc.Deploy.Resources.Reservations != nil {
			service.Resources.CPUReservation = float64(svc.Deploy.Resources.Reservations.NanoCPUs)
			service.Resources.MemoryResMB = int64(svc.Deploy.Resources.Reservations.MemoryBytes) / (1024 * 1024)
		}
	}

	if svc.Logging != nil {
		service.LogDriver = svc.Logging.Driver
	}

	if err := convertServiceExtensions(svc, &service); err != nil {
		return Service{}, err
	}
	if err := convertDeployAutoscaling(svc, &service, doc); err != nil {
		return Service{}, err
	}

	return service, nil
}

// convertDeployAutoscaling maps the x-aws-autoscaling shorthand of the
// deploy section onto the scaling declaration. An explicit x-scaling takes
// priority over the shorthand, with a warning.
func convertDeployAutoscaling(svc types.ServiceConfig, service *Service, doc *Document) error {
	if svc.Deploy == nil {
		return nil
	}
	var shorthand struct {
		Min *int `yaml:"min"`
		Max *int `yaml:"max"`
		CPU *int `yaml:"cpu"`
	}
	ok, err := decodeExtension(svc.Deploy.Extensions, extDeployScaling, &shorthand)
	if err != nil {
		return NewParseError("services."+svc.Name+".deploy."+extDeployScaling, err.Error(), ErrInvalidExtension)
	}
	if !ok {
		return nil
	}
	if service.Scaling != nil {
		doc.Warnings = append(doc.Warnings, fmt.Sprintf(
			"services.%s declares both %s and %s. Priority goes to %s",
			svc.Name, extDeployScaling, extScaling, extScaling,
		))
		return nil
	}

	lower, upper := 1, 1
	if shorthand.Min != nil {
		lower = *shorthand.Min
	}
	if shorthand.Max != nil {
		upper = *shorthand.Max
	}
	spec := &ScalingSpec{Range: fmt.Sprintf("%d-%d", lower, upper)}
	if shorthand.CPU != nil {
		spec.TargetScaling = &TargetScaling{CPUTarget: shorthand.CPU}
	}
	service.Scaling = spec
	return nil
}

// convertServiceExtensions decodes the service-level x- extensions.
func convertServiceExtensions(svc types.ServiceConfig, service *Service) error {
	var scaling ScalingSpec
	ok, err := decodeExtension(svc.Extensions, extScaling, &scaling)
	if err != nil {
		return NewParseError("services."+svc.Name+"."+extScaling, err.Error(), ErrInvalidExtension)
	}
	if ok {
		service.Scaling = &scaling
	}

	var network struct {
		Ingress IngressSpec `yaml:"Ingress"`
	}
	ok, err = decodeExtension(svc.Extensions, extNetwork, &network)
	if err != nil {
		return NewParseError("services."+svc.Name+"."+extNetwork, err.Error(), ErrInvalidExtension)
	}
	if ok {
		service.Ingress = &network.Ingress
	}

	var compute ComputeSpec
	ok, err = decodeExtension(svc.Extensions, extEcs, &compute)
	if err != nil {
		return NewParseError("services."+svc.Name+"."+extEcs, err.Error(), ErrInvalidExtension)
	}
	if ok {
		service.Compute = &compute
		service.EphemeralGiB = compute.EphemeralStorage
	}

	if raw, present := svc.Extensions[extXray]; present {
		if enabled, isBool := raw.(bool); isBool {
			service.EnableTracing = enabled
		}
	}

	return nil
}

// convertTopLevelExtensions decodes x-cluster, x-vpc and x-elbv2.
func convertTopLevelExtensions(project *types.Project, doc *Document) error {
	var cluster ClusterSpec
	ok, err := decodeExtension(project.Extensions, extCluster, &cluster)
	if err != nil {
		return NewParseError(extCluster, err.Error(), ErrInvalidExtension)
	}
	if ok {
		doc.Cluster = &cluster
	}

	var vpc VpcSpec
	ok, err = decodeExtension(project.Extensions, extVpc, &vpc)
	if err != nil {
		return NewParseError(extVpc, err.Error(), ErrInvalidExtension)
	}
	if ok {
		doc.Vpc = &vpc
	}

	lbs := make(map[string]LoadBalancer)
	ok, err = decodeExtension(project.Extensions, extElbv2, &lbs)
	if err != nil {
		return NewParseError(extElbv2, err.Error(), ErrInvalidExtension)
	}
	if ok {
		lbNames := make([]string, 0, len(lbs))
		for name := range lbs {
			lbNames = append(lbNames, name)
		}
		sort.Strings(lbNames)
		for _, name := range lbNames {
			lb := lbs[name]
			lb.Name = name
			if lb.Type == "" {
				lb.Type = "application"
			}
			doc.LoadBalancers = append(doc.LoadBalancers, lb)
		}
	}

	return nil
}

// decodeExtension re-decodes a raw extension value into a typed struct.
// Returns false if the key is absent.
func decodeExtension(ext map[string]any, key string, out any) (bool, error) {
	raw, ok := ext[key]
	if !ok || raw == nil {
		return false, nil
	}
	buf, err := yaml.Marshal(raw)
	if err != nil {
		return false, err
	}
	if err := yaml.Unmarshal(buf, out); err != nil {
		return false, err
	}
	return true, nil
}

// detectCircularDependencies detects circular dependencies in service dependencies.
func detectCircularDependencies(services []Service) error {
	deps := make(map[string][]string)
	for _, svc := range services {
		deps[svc.Name] = svc.DependsOn
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var hasCycle func(node string) bool
	hasCycle = func(node string) bool {
		visited[node] = true
		recStack[node] = true

		for _, dep := range deps[node] {
			if dep == node {
				return true
			}
			if !visited[dep] {
				if hasCycle(dep) {
					return true
				}
			} else if recStack[dep] {
				return true
			}
		}

		recStack[node] = false
		return false
	}

	for _, svc := range services {
		if !visited[svc.Name] {
			if hasCycle(svc.Name) {
				return ErrCircularDependency
			}
		}
	}

	return nil
}

// validatePorts validates all port configurations.
func validatePorts(services []Service) error {
	for _, svc := range services {
		for i, port := range svc.Ports {
			field := fmt.Sprintf("services.%s.ports[%d]", svc.Name, i)
			if port.Target == 0 {
				return NewParseError(field, "target port cannot be 0", ErrServiceInvalidPort)
			}
			if port.Target > 65535 {
				return NewParseError(field, "target port must be <= 65535", ErrServiceInvalidPort)
			}
			if port.Published > 65535 {
				return NewParseError(field, "published port must be <= 65535", ErrServiceInvalidPort)
			}
		}
	}
	return nil
}
