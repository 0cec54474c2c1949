package networking

import (
	"fmt"

	"github.com/artpar/stackgen/internal/cfn"
	"github.com/artpar/stackgen/internal/core/compose"
)

// =============================================================================
// Security Group Synthesis
// =============================================================================

// SecurityGroupName returns the logical name of a family's security group.
func SecurityGroupName(familyName string) string {
	return cfn.LogicalName(familyName) + "SecurityGroup"
}

// AddFamilySecurityGroup emits the security group owned by a family.
// Re-invocation is a no-op thanks to template-level idempotency.
func AddFamilySecurityGroup(tpl *cfn.Template, familyName string) (string, error) {
	name := SecurityGroupName(familyName)
	_, err := tpl.AddResource(name, &cfn.Resource{
		Type: "AWS::EC2::SecurityGroup",
		Props: cfn.Props{
			"GroupDescription": fmt.Sprintf("Security group for task family %s", familyName),
			"VpcId":            cfn.Ref("VpcId"),
			"Tags": []any{
				map[string]any{"Key": "Name", "Value": familyName},
			},
		},
	})
	return name, err
}

// =============================================================================
// Ingress Rule Synthesis
// =============================================================================

// AddSelfIngress emits one self-referencing ingress rule per distinct
// (port, protocol) of the merged family port set, allowing members of the
// family to talk to each other. Rule names are deterministic, and a rule
// whose name already exists in the template is skipped, keeping re-runs
// idempotent.
func AddSelfIngress(tpl *cfn.Template, sgName string, ports []compose.Port) error {
	for _, port := range ports {
		target := port.Published
		if target == 0 {
			target = port.Target
		}
		proto := port.Protocol
		if proto == "" {
			proto = "tcp"
		}
		title := fmt.Sprintf("AllowInterCommunicationPort%d%s", target, cfn.LogicalName(proto))
		if tpl.HasResource(title) {
			continue
		}
		_, err := tpl.AddResource(title, &cfn.Resource{
			Type: "AWS::EC2::SecurityGroupIngress",
			Props: cfn.Props{
				"FromPort":                   int(target),
				"ToPort":                     int(target),
				"IpProtocol":                 proto,
				"GroupId":                    cfn.GetAtt(sgName, "GroupId"),
				"SourceSecurityGroupId":      cfn.GetAtt(sgName, "GroupId"),
				"SourceSecurityGroupOwnerId": cfn.Ref(cfn.AccountID),
				"Description":                fmt.Sprintf("Internal traffic on %d/%s", target, proto),
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// AddLoadBalancerIngress emits one ingress rule per family port scoped to
// the given load balancer's security group. Names derive from
// (source, family, port, protocol) so repeated synthesis never duplicates
// rules.
func AddLoadBalancerIngress(tpl *cfn.Template, lbName string, lbSecurityGroup any, familyName, sgName string, ports []compose.Port) error {
	for _, port := range ports {
		proto := port.Protocol
		if proto == "" {
			proto = "tcp"
		}
		title := fmt.Sprintf("FromLB%sTo%sOn%d%s", cfn.LogicalName(lbName), cfn.LogicalName(familyName), port.Target, cfn.LogicalName(proto))
		if tpl.HasResource(title) {
			continue
		}
		_, err := tpl.AddResource(title, &cfn.Resource{
			Type: "AWS::EC2::SecurityGroupIngress",
			Props: cfn.Props{
				"FromPort":                   int(port.Target),
				"ToPort":                     int(port.Target),
				"IpProtocol":                 proto,
				"GroupId":                    cfn.GetAtt(sgName, "GroupId"),
				"SourceSecurityGroupId":      lbSecurityGroup,
				"SourceSecurityGroupOwnerId": cfn.Ref(cfn.AccountID),
				"Description":                fmt.Sprintf("From ELB %s to %s on port %d", lbName, familyName, port.Target),
			},
		})
		if err != nil {
			return err
		}
	}
	return nil
}
