package elbv2

import (
	"fmt"

	"github.com/artpar/stackgen/internal/cfn"
	"github.com/artpar/stackgen/internal/core/compose"
	"github.com/artpar/stackgen/internal/core/family"
)

// =============================================================================
// Synthesis Result
// =============================================================================

// Attachment links a synthesized target group to the family endpoint it
// routes to, so the service definitions can be wired after resolution.
type Attachment struct {
	Family      string
	Container   string
	Port        uint32
	TargetGroup string
	OutputName  string
}

// Result is one load balancer's synthesized stack plus the cross-family
// wiring it requires.
type Result struct {
	Name        string
	Template    *cfn.Template
	Attachments []Attachment
	Warnings    []string
}

// SecurityGroupOutput is the output exporting an application load
// balancer's security group for family ingress wiring.
const SecurityGroupOutput = "SecurityGroupId"

// DNSNameOutput exposes the load balancer DNS name.
const DNSNameOutput = "LoadBalancerDNSName"

// =============================================================================
// Load Balancer Synthesis
// =============================================================================

// Synthesize builds the full stack of one load balancer: the balancer
// itself, its security group (application type only), target groups,
// listeners and prioritized routing rules. Target references are resolved
// against the exposed endpoints of every composed family; resolution
// failures are fatal.
func Synthesize(lb compose.LoadBalancer, exposed []family.ExposedTarget, priorities *PrioritySource) (*Result, error) {
	if err := validateListenerPorts(lb); err != nil {
		return nil, err
	}

	result := &Result{Name: lb.Name}
	tpl := cfn.NewTemplate(fmt.Sprintf("Stack for load balancer %s", lb.Name))
	tpl.AddParameter("VpcId", cfn.Parameter{Type: "AWS::EC2::VPC::Id"})
	tpl.AddParameter("SubnetIds", cfn.Parameter{Type: "List<AWS::EC2::Subnet::Id>"})
	result.Template = tpl

	lbLogical := cfn.LogicalName(lb.Name)
	scheme := lb.Scheme
	if scheme == "" {
		scheme = "internet-facing"
	}
	lbType := lb.Type
	if lbType == "" {
		lbType = "application"
	}

	props := cfn.Props{
		"Name":    lb.Name,
		"Type":    lbType,
		"Scheme":  scheme,
		"Subnets": cfn.Ref("SubnetIds"),
	}

	var sgName string
	if !lb.IsNLB() {
		var err error
		sgName, err = addLoadBalancerSecurityGroup(tpl, lb)
		if err != nil {
			return nil, err
		}
		props["SecurityGroups"] = []any{cfn.GetAtt(sgName, "GroupId")}
	}
	if _, err := tpl.AddResource(lbLogical, &cfn.Resource{
		Type:  "AWS::ElasticLoadBalancingV2::LoadBalancer",
		Props: props,
	}); err != nil {
		return nil, err
	}

	for _, listener := range lb.Listeners {
		if err := synthesizeListener(result, lb, lbLogical, listener, exposed, priorities); err != nil {
			return nil, err
		}
	}

	tpl.AddOutput(DNSNameOutput, cfn.Output{
		Value: cfn.GetAtt(lbLogical, "DNSName"),
	})
	if sgName != "" {
		tpl.AddOutput(SecurityGroupOutput, cfn.Output{
			Value: cfn.GetAtt(sgName, "GroupId"),
		})
	}
	return result, nil
}

func validateListenerPorts(lb compose.LoadBalancer) error {
	seen := make(map[int]bool, len(lb.Listeners))
	for _, listener := range lb.Listeners {
		if seen[listener.Port] {
			return &DuplicateListenerPortError{LoadBalancer: lb.Name, Port: listener.Port}
		}
		seen[listener.Port] = true
	}
	return nil
}

// addLoadBalancerSecurityGroup emits the ingress security group of an
// application load balancer, open on every listener port.
func addLoadBalancerSecurityGroup(tpl *cfn.Template, lb compose.LoadBalancer) (string, error) {
	name := cfn.LogicalName(lb.Name) + "SecurityGroup"
	ingress := make([]any, 0, len(lb.Listeners))
	for _, listener := range lb.Listeners {
		ingress = append(ingress, map[string]any{
			"FromPort":    listener.Port,
			"ToPort":      listener.Port,
			"IpProtocol":  "tcp",
			"CidrIp":      "0.0.0.0/0",
			"Description": fmt.Sprintf("Inbound to %s on %d", lb.Name, listener.Port),
		})
	}
	_, err := tpl.AddResource(name, &cfn.Resource{
		Type: "AWS::EC2::SecurityGroup",
		Props: cfn.Props{
			"GroupDescription":     fmt.Sprintf("Security group for load balancer %s", lb.Name),
			"VpcId":                cfn.Ref("VpcId"),
			"SecurityGroupIngress": ingress,
		},
	})
	return name, err
}

// =============================================================================
// Listener Synthesis
// =============================================================================

func synthesizeListener(result *Result, lb compose.LoadBalancer, lbLogical string, listener compose.Listener, exposed []family.ExposedTarget, priorities *PrioritySource) error {
	proto, warnings, err := effectiveProtocol(lb, listener)
	if err != nil {
		return err
	}
	result.Warnings = append(result.Warnings, warnings...)

	if lb.IsNLB() {
		if len(listener.Targets) > 1 {
			return fmt.Errorf("%s: listener %d: %w", lb.Name, listener.Port, ErrNetworkLBSingleTarget)
		}
		for _, def := range listener.Targets {
			if def.Access != "" || def.AuthenticateOidc != nil || def.AuthenticateCognito != nil {
				return fmt.Errorf("%s: listener %d: %w", lb.Name, listener.Port, ErrNetworkLBConditions)
			}
		}
	}

	targets, err := resolveListenerTargets(result, lb, listener, exposed)
	if err != nil {
		return err
	}

	tgArn := func(t ResolvedTarget) any { return cfn.Ref(t.TargetGroup) }
	plan, err := planListener(lb, listener, targets, proto, tgArn)
	if err != nil {
		return err
	}
	result.Warnings = append(result.Warnings, plan.warnings...)

	listenerName := fmt.Sprintf("Listener%d", listener.Port)
	listenerProps := cfn.Props{
		"LoadBalancerArn": cfn.Ref(lbLogical),
		"Port":            listener.Port,
		"Protocol":        proto,
		"DefaultActions":  plan.defaultActions,
	}
	if len(listener.Certificates) > 0 {
		certs := make([]any, 0, len(listener.Certificates))
		for _, cert := range listener.Certificates {
			certs = append(certs, map[string]any{"CertificateArn": cert.CertificateArn})
		}
		listenerProps["Certificates"] = certs
	}
	if isEncrypted(proto) && listener.SSLPolicy != "" {
		listenerProps["SslPolicy"] = listener.SSLPolicy
	}
	if _, err := result.Template.AddResource(listenerName, &cfn.Resource{
		Type:  "AWS::ElasticLoadBalancingV2::Listener",
		Props: listenerProps,
	}); err != nil {
		return err
	}

	return synthesizeRules(result, lb, listener, listenerName, plan, proto, priorities)
}

// resolveListenerTargets resolves every declared target and materializes
// one target group per distinct endpoint.
func resolveListenerTargets(result *Result, lb compose.LoadBalancer, listener compose.Listener, exposed []family.ExposedTarget) ([]ResolvedTarget, error) {
	var targets []ResolvedTarget
	seen := make(map[string]bool, len(listener.Targets))
	for _, def := range listener.Targets {
		ref, err := ParseTargetRef(def.Name)
		if err != nil {
			return nil, fmt.Errorf("%s: listener %d: %w", lb.Name, listener.Port, err)
		}
		endpoint, err := ResolveTarget(lb.Name, ref, exposed)
		if err != nil {
			return nil, err
		}

		key := fmt.Sprintf("%s:%s:%d", endpoint.Family, endpoint.Container, endpoint.Port)
		if seen[key] {
			return nil, fmt.Errorf(
				"%s: listener %d declares target %s twice", lb.Name, listener.Port, key,
			)
		}
		seen[key] = true

		tgName, err := addTargetGroup(result, lb, endpoint)
		if err != nil {
			return nil, err
		}
		targets = append(targets, ResolvedTarget{
			Def:         def,
			Endpoint:    endpoint,
			TargetGroup: tgName,
		})
	}
	return targets, nil
}

func addTargetGroup(result *Result, lb compose.LoadBalancer, endpoint family.ExposedTarget) (string, error) {
	name := fmt.Sprintf("Tg%s%s%d",
		cfn.LogicalName(endpoint.Family), cfn.LogicalName(endpoint.Container), endpoint.Port)
	if result.Template.HasResource(name) {
		return name, nil
	}

	proto := "HTTP"
	if lb.IsNLB() {
		proto = "TCP"
	}
	props := cfn.Props{
		"Port":       int(endpoint.Port),
		"Protocol":   proto,
		"TargetType": "ip",
		"VpcId":      cfn.Ref("VpcId"),
	}
	if !lb.IsNLB() {
		props["HealthCheckPath"] = "/"
		props["Matcher"] = map[string]any{"HttpCode": "200-399"}
	}
	if _, err := result.Template.AddResource(name, &cfn.Resource{
		Type:  "AWS::ElasticLoadBalancingV2::TargetGroup",
		Props: props,
	}); err != nil {
		return "", err
	}

	outputName := name + "Arn"
	result.Template.AddOutput(outputName, cfn.Output{Value: cfn.Ref(name)})
	result.Attachments = append(result.Attachments, Attachment{
		Family:      endpoint.Family,
		Container:   endpoint.Container,
		Port:        endpoint.Port,
		TargetGroup: name,
		OutputName:  outputName,
	})
	return name, nil
}

// synthesizeRules emits one prioritized rule per conditional target.
// Priorities are offset + ordinal + 1, with the offset fixed per listener.
func synthesizeRules(result *Result, lb compose.LoadBalancer, listener compose.Listener, listenerName string, plan listenerPlan, proto string, priorities *PrioritySource) error {
	if len(plan.ruleTargets) == 0 {
		return nil
	}
	offset := priorities.Offset()
	for i, target := range plan.ruleTargets {
		if target.Def.Access == "" {
			return fmt.Errorf(
				"%s: listener %d: target %s needs an Access condition to become a routing rule",
				lb.Name, listener.Port, target.Def.Name,
			)
		}
		conditions, err := AccessConditions(target.Def.Access)
		if err != nil {
			return fmt.Errorf("%s: listener %d target %s: %w", lb.Name, listener.Port, target.Def.Name, err)
		}
		actions, err := targetActions(target, cfn.Ref(target.TargetGroup), proto, len(listener.Certificates) > 0, lb.Name, listener.Port)
		if err != nil {
			return err
		}
		ruleName := fmt.Sprintf("%sRule%d", listenerName, i+1)
		if _, err := result.Template.AddResource(ruleName, &cfn.Resource{
			Type: "AWS::ElasticLoadBalancingV2::ListenerRule",
			Props: cfn.Props{
				"ListenerArn": cfn.Ref(listenerName),
				"Priority":    offset + i + 1,
				"Conditions":  conditions,
				"Actions":     actions,
			},
		}); err != nil {
			return err
		}
	}
	return nil
}
