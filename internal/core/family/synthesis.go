package family

import (
	"fmt"

	"github.com/artpar/stackgen/internal/cfn"
	"github.com/artpar/stackgen/internal/core/compose"
	"github.com/artpar/stackgen/internal/core/networking"
	"github.com/artpar/stackgen/internal/core/placement"
	"github.com/artpar/stackgen/internal/core/scaling"
)

// =============================================================================
// Template Parameters and Resource Names
// =============================================================================

const (
	// ParamVpcID and friends are the parameters every family stack takes
	// from its parent.
	ParamVpcID       = "VpcId"
	ParamSubnetIDs   = "SubnetIds"
	ParamClusterName = "EcsClusterName"

	taskDefinitionName = "TaskDefinition"
	ecsServiceName     = "EcsService"
)

// =============================================================================
// Family Template Synthesis
// =============================================================================

// Synthesize produces the family's complete stack template: security group
// and ingress, IAM roles, task definition, service and scaling resources.
// The family must be finalized first.
func (f *Family) Synthesize() (*cfn.Template, error) {
	if !f.finalized {
		return nil, fmt.Errorf("family %s: synthesize before finalize", f.Name)
	}

	tpl := cfn.NewTemplate(fmt.Sprintf("Stack for task family %s", f.Name))
	tpl.AddParameter(ParamVpcID, cfn.Parameter{Type: "AWS::EC2::VPC::Id"})
	tpl.AddParameter(ParamSubnetIDs, cfn.Parameter{Type: "List<AWS::EC2::Subnet::Id>"})
	tpl.AddParameter(ParamClusterName, cfn.Parameter{Type: "String"})

	sgName, err := networking.AddFamilySecurityGroup(tpl, f.Name)
	if err != nil {
		return nil, err
	}
	if f.SelfIngress() {
		if err := networking.AddSelfIngress(tpl, sgName, f.Ports); err != nil {
			return nil, err
		}
	}

	if err := f.addTaskRoles(tpl); err != nil {
		return nil, err
	}
	if err := f.addTaskDefinition(tpl); err != nil {
		return nil, err
	}
	if err := f.addEcsService(tpl, sgName); err != nil {
		return nil, err
	}

	f.addOutputs(tpl, sgName)
	return tpl, nil
}

// SynthesizeScaling adds the family's autoscaling resources to its stack
// template. Runs in the resolution phase, after every family is composed,
// together with the other dependent resources.
func (f *Family) SynthesizeScaling(tpl *cfn.Template) error {
	if !f.Scaling.Enabled() {
		return nil
	}
	if _, err := scaling.AddScalableTarget(tpl, f.Scaling); err != nil {
		return err
	}
	var names scaling.NameSource
	if err := scaling.AddStepScalingPolicies(tpl, f.Name, f.Scaling, &names); err != nil {
		return err
	}
	return scaling.AddTargetTrackingPolicies(tpl, f.Scaling)
}

// AttachTargetGroup registers a resolved load balancer target group with
// the family's service definition.
func AttachTargetGroup(tpl *cfn.Template, targetGroupArn any, container string, port uint32) error {
	res, ok := tpl.Resources[ecsServiceName]
	if !ok {
		return fmt.Errorf("template has no %s resource to attach the target group to", ecsServiceName)
	}
	existing, _ := res.Props["LoadBalancers"].([]any)
	res.Props["LoadBalancers"] = append(existing, map[string]any{
		"ContainerName":  container,
		"ContainerPort":  int(port),
		"TargetGroupArn": targetGroupArn,
	})
	return nil
}

// =============================================================================
// Task Definition
// =============================================================================

func (f *Family) addTaskDefinition(tpl *cfn.Template) error {
	defs := make([]any, 0, len(f.Services))
	for _, svc := range f.Services {
		defs = append(defs, f.containerDefinition(svc))
	}

	props := cfn.Props{
		"Family":                  f.Name,
		"ContainerDefinitions":    defs,
		"NetworkMode":             "awsvpc",
		"TaskRoleArn":             cfn.GetAtt(taskRoleName, "Arn"),
		"ExecutionRoleArn":        cfn.GetAtt(executionRoleName, "Arn"),
		"RequiresCompatibilities": requiresCompatibilities(f.Launch.Mode),
		"RuntimePlatform": map[string]any{
			"CpuArchitecture":       f.Compute.Architecture,
			"OperatingSystemFamily": f.Compute.OSFamily,
		},
	}
	if f.Compute.CPUUnits > 0 {
		props["Cpu"] = fmt.Sprintf("%d", f.Compute.CPUUnits)
	}
	if f.Compute.MemoryMB > 0 {
		props["Memory"] = fmt.Sprintf("%d", f.Compute.MemoryMB)
	}
	if f.Compute.EphemeralGiB > 0 {
		props["EphemeralStorage"] = map[string]any{"SizeInGiB": f.Compute.EphemeralGiB}
	}

	_, err := tpl.AddResource(taskDefinitionName, &cfn.Resource{
		Type:  "AWS::ECS::TaskDefinition",
		Props: props,
	})
	return err
}

func requiresCompatibilities(mode placement.LaunchMode) []any {
	switch mode {
	case placement.ModeEC2:
		return []any{"EC2"}
	case placement.ModeExternal:
		return []any{"EXTERNAL"}
	default:
		return []any{"FARGATE"}
	}
}

func (f *Family) containerDefinition(svc compose.Service) map[string]any {
	def := map[string]any{
		"Name":      svc.Name,
		"Image":     svc.Image,
		"Essential": svc.Essential,
	}
	if len(svc.Command) > 0 {
		def["Command"] = anySlice(svc.Command)
	}
	if len(svc.Entrypoint) > 0 {
		def["EntryPoint"] = anySlice(svc.Entrypoint)
	}
	if svc.Resources.CPULimit > 0 {
		def["Cpu"] = int(svc.Resources.CPULimit * 1024)
	}
	if svc.Resources.MemoryLimitMB > 0 {
		def["Memory"] = int(svc.Resources.MemoryLimitMB)
	}
	if svc.Resources.MemoryResMB > 0 {
		def["MemoryReservation"] = int(svc.Resources.MemoryResMB)
	}

	if len(svc.Ports) > 0 {
		mappings := make([]any, 0, len(svc.Ports))
		for _, port := range svc.Ports {
			proto := port.Protocol
			if proto == "" {
				proto = "tcp"
			}
			mappings = append(mappings, map[string]any{
				"ContainerPort": int(port.Target),
				"Protocol":      proto,
			})
		}
		def["PortMappings"] = mappings
	}

	sorted := SortContainerEnvironment(svc.Environment, svc.Secrets)
	f.Warnings = append(f.Warnings, sorted.Warnings...)

	env := make([]any, 0, len(sorted.Environment)+1)
	for _, v := range sorted.Environment {
		env = append(env, map[string]any{"Name": v.Name, "Value": v.Value})
	}
	if f.Launch.Mode == placement.ModeExternal {
		// Tasks on external capacity cannot rely on instance metadata for
		// the region.
		env = append(env, map[string]any{"Name": "AWS_DEFAULT_REGION", "Value": cfn.Ref(cfn.Region)})
	}
	if len(env) > 0 {
		def["Environment"] = env
	}
	if len(sorted.Secrets) > 0 {
		secrets := make([]any, 0, len(sorted.Secrets))
		for _, s := range sorted.Secrets {
			secrets = append(secrets, map[string]any{"Name": s.Name, "ValueFrom": s.ValueFrom})
		}
		def["Secrets"] = secrets
	}

	if deps := f.containerDependencies(svc); len(deps) > 0 {
		def["DependsOn"] = deps
	}

	def["LogConfiguration"] = f.logConfiguration(svc)
	if f.IsManagedSidecar(svc.Name) && svc.Name == FireLensSidecarName {
		def["FirelensConfiguration"] = map[string]any{"Type": "fluentbit"}
	}
	return def
}

// containerDependencies maps depends_on to container-level START conditions,
// limited to dependencies living inside the family.
func (f *Family) containerDependencies(svc compose.Service) []any {
	members := make(map[string]bool, len(f.Services))
	for _, member := range f.Services {
		members[member.Name] = true
	}
	var deps []any
	for _, dep := range svc.DependsOn {
		if !members[dep] {
			continue
		}
		deps = append(deps, map[string]any{
			"ContainerName": dep,
			"Condition":     "START",
		})
	}
	return deps
}

func (f *Family) logConfiguration(svc compose.Service) map[string]any {
	if svc.LogDriver == "awsfirelens" {
		return map[string]any{"LogDriver": "awsfirelens"}
	}
	return map[string]any{
		"LogDriver": "awslogs",
		"Options": map[string]any{
			"awslogs-group":         cfn.Sub(fmt.Sprintf("/ecs/${AWS::StackName}/%s", f.Name)),
			"awslogs-region":        cfn.Ref(cfn.Region),
			"awslogs-stream-prefix": svc.Name,
			"awslogs-create-group":  "true",
		},
	}
}

func anySlice(in []string) []any {
	out := make([]any, 0, len(in))
	for _, s := range in {
		out = append(out, s)
	}
	return out
}

// =============================================================================
// ECS Service
// =============================================================================

func (f *Family) addEcsService(tpl *cfn.Template, sgName string) error {
	props := cfn.Props{
		"Cluster":        cfn.Ref(ParamClusterName),
		"TaskDefinition": cfn.Ref(taskDefinitionName),
		"DesiredCount":   f.DesiredCount(),
		"PropagateTags":  "SERVICE",
		"NetworkConfiguration": map[string]any{
			"AwsvpcConfiguration": map[string]any{
				"AssignPublicIp": "DISABLED",
				"SecurityGroups": []any{cfn.GetAtt(sgName, "GroupId")},
				"Subnets":        cfn.Ref(ParamSubnetIDs),
			},
		},
	}

	switch {
	case f.Launch.ClearProviderStrategy:
		// A cluster-wide override pinned the mode; any declared provider
		// strategy must not be emitted.
		props["LaunchType"] = string(f.Launch.Mode)
	case f.Launch.Mode == placement.ModeExternal || f.Launch.Mode == placement.ModeEC2:
		props["LaunchType"] = string(f.Launch.Mode)
	case f.Launch.Mode == placement.ModeFargateProviders, f.Launch.Mode == placement.ModeService:
		if strategy := f.providerStrategy(); len(strategy) > 0 {
			props["CapacityProviderStrategy"] = strategy
		} else {
			props["LaunchType"] = "FARGATE"
		}
	}
	// ModeCluster and ModeUnset defer to the cluster's own default.

	_, err := tpl.AddResource(ecsServiceName, &cfn.Resource{
		Type:  "AWS::ECS::Service",
		Props: props,
	})
	return err
}

func (f *Family) providerStrategy() []any {
	providers := f.capacityProviders()
	strategy := make([]any, 0, len(providers))
	for _, p := range providers {
		entry := map[string]any{"CapacityProvider": p.Provider}
		if p.Base > 0 {
			entry["Base"] = p.Base
		}
		if p.Weight > 0 {
			entry["Weight"] = p.Weight
		}
		strategy = append(strategy, entry)
	}
	return strategy
}

// =============================================================================
// Outputs
// =============================================================================

func (f *Family) addOutputs(tpl *cfn.Template, sgName string) {
	tpl.AddOutput("ServiceName", cfn.Output{
		Value:  cfn.GetAtt(ecsServiceName, "Name"),
		Export: &cfn.Export{Name: cfn.Sub(fmt.Sprintf("${AWS::StackName}-%s-ServiceName", cfn.LogicalName(f.Name)))},
	})
	tpl.AddOutput("SecurityGroupId", cfn.Output{
		Value:  cfn.GetAtt(sgName, "GroupId"),
		Export: &cfn.Export{Name: cfn.Sub(fmt.Sprintf("${AWS::StackName}-%s-SecurityGroupId", cfn.LogicalName(f.Name)))},
	})
	tpl.AddOutput("TaskDefinitionArn", cfn.Output{
		Value: cfn.Ref(taskDefinitionName),
	})
}
