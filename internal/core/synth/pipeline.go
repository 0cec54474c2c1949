// Package synth coordinates the two-phase synthesis pipeline: phase one
// composes every task family in declaration order, phase two resolves
// cross-family references (listener targets) and synthesizes the dependent
// resources (routing rules, scaling). All state lives in an explicit
// Context scoped to one run - there are no package-level registries.
package synth

import (
	"fmt"
	"log/slog"

	"github.com/artpar/stackgen/internal/cfn"
	"github.com/artpar/stackgen/internal/core/compose"
	"github.com/artpar/stackgen/internal/core/elbv2"
	"github.com/artpar/stackgen/internal/core/family"
	"github.com/artpar/stackgen/internal/core/networking"
	"github.com/artpar/stackgen/internal/core/placement"
)

// =============================================================================
// Options and Output
// =============================================================================

// Options tunes one synthesis run.
type Options struct {
	// StackName names the root stack; template descriptions derive from it.
	StackName string
	// Seed drives the listener rule priority offsets. A fixed seed makes
	// runs byte-identical.
	Seed int64
	// Logger receives warnings and debug notices. Defaults to slog.Default.
	Logger *slog.Logger
}

// Output is the finished resource graph of one run: the root template plus
// every nested stack, keyed by the file name the root template references.
type Output struct {
	Root      *cfn.Template
	Templates map[string]*cfn.Template
	Warnings  []string
}

// =============================================================================
// Context
// =============================================================================

// Context carries the mutable state of one synthesis run through both
// phases.
type Context struct {
	doc      *compose.Document
	cluster  placement.ClusterDescriptor
	opts     Options
	log      *slog.Logger
	registry *family.Registry

	root         *cfn.Template
	templates    map[string]*cfn.Template
	familyFiles  map[string]string
	familyStacks map[string]string
	warnings     []string
}

// NewContext prepares a synthesis context for one document.
func NewContext(doc *compose.Document, cluster placement.ClusterDescriptor, opts Options) *Context {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.StackName == "" {
		opts.StackName = "stackgen"
	}
	return &Context{
		doc:          doc,
		cluster:      cluster,
		opts:         opts,
		log:          log,
		registry:     family.NewRegistry(),
		templates:    make(map[string]*cfn.Template),
		familyFiles:  make(map[string]string),
		familyStacks: make(map[string]string),
	}
}

// Run executes both phases and returns the finished graph.
func Run(doc *compose.Document, cluster placement.ClusterDescriptor, opts Options) (*Output, error) {
	ctx := NewContext(doc, cluster, opts)
	if err := ctx.ComposeFamilies(); err != nil {
		return nil, err
	}
	if err := ctx.ResolveReferences(); err != nil {
		return nil, err
	}
	return ctx.Output(), nil
}

// ClusterFromSpec builds a cluster descriptor from an inline x-cluster
// declaration. Documents using Lookup get their descriptor from the remote
// inventory instead.
func ClusterFromSpec(spec *compose.ClusterSpec) placement.ClusterDescriptor {
	if spec == nil {
		return placement.ClusterDescriptor{Name: "default"}
	}
	descriptor := placement.ClusterDescriptor{
		Name:              spec.Name,
		CapacityProviders: spec.CapacityProviders,
		PlatformOverride:  spec.PlatformOverride,
	}
	if descriptor.Name == "" {
		descriptor.Name = "default"
	}
	for _, provider := range spec.DefaultStrategy {
		descriptor.DefaultStrategyProviders = append(descriptor.DefaultStrategyProviders, provider.Provider)
	}
	return descriptor
}

// =============================================================================
// Phase 1 - Family Composition
// =============================================================================

// ComposeFamilies groups services into families in declaration order,
// injects managed sidecars, finalizes each family and synthesizes its stack
// template.
func (c *Context) ComposeFamilies() error {
	c.warn(c.doc.Warnings...)
	c.root = cfn.NewTemplate(fmt.Sprintf("Root stack for %s", c.opts.StackName))
	c.root.AddParameter("VpcId", cfn.Parameter{Type: "AWS::EC2::VPC::Id"})
	c.root.AddParameter("SubnetIds", cfn.Parameter{
		Type:        "String",
		Description: "Comma-delimited list of subnet ids",
	})
	c.root.AddParameter("TemplatesUrl", cfn.Parameter{
		Type:        "String",
		Description: "Base URL the nested stack templates were uploaded to",
	})
	c.root.AddParameter("EcsClusterName", cfn.Parameter{
		Type:    "String",
		Default: c.cluster.Name,
	})

	for _, svc := range c.doc.Services {
		c.registry.Assign(svc)
	}

	for _, f := range c.registry.Families() {
		for _, name := range f.InjectSidecars() {
			c.log.Debug("injected managed sidecar", "family", f.Name, "sidecar", name)
		}
		if err := f.Finalize(c.cluster); err != nil {
			return err
		}

		tpl, err := f.Synthesize()
		if err != nil {
			return err
		}
		// Synthesis appends container-level warnings (dropped environment
		// values and the like); collect only once both steps ran.
		c.warn(f.Warnings...)

		file := fmt.Sprintf("family-%s.yaml", cfn.LogicalName(f.Name))
		stackName := "FamilyStack" + cfn.LogicalName(f.Name)
		c.templates[file] = tpl
		c.familyFiles[f.Name] = file
		c.familyStacks[f.Name] = stackName

		if _, err := c.root.AddResource(stackName, &cfn.Resource{
			Type: "AWS::CloudFormation::Stack",
			Props: cfn.Props{
				"TemplateURL": cfn.Sub(fmt.Sprintf("${TemplatesUrl}/%s", file)),
				"Parameters": map[string]any{
					family.ParamVpcID:       cfn.Ref("VpcId"),
					family.ParamSubnetIDs:   cfn.Ref("SubnetIds"),
					family.ParamClusterName: cfn.Ref("EcsClusterName"),
				},
			},
		}); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Phase 2 - Reference Resolution
// =============================================================================

// ResolveReferences synthesizes the load balancer stacks against the full
// set of exposed family endpoints, wires target groups and ingress back
// into the family stacks, and emits the scaling resources.
func (c *Context) ResolveReferences() error {
	exposed := c.registry.ExposedTargets()
	priorities := elbv2.NewPrioritySource(c.opts.Seed)

	for _, lb := range c.doc.LoadBalancers {
		result, err := elbv2.Synthesize(lb, exposed, priorities)
		if err != nil {
			return err
		}
		c.warn(result.Warnings...)

		file := fmt.Sprintf("lb-%s.yaml", cfn.LogicalName(lb.Name))
		lbStack := "LbStack" + cfn.LogicalName(lb.Name)
		c.templates[file] = result.Template
		if _, err := c.root.AddResource(lbStack, &cfn.Resource{
			Type: "AWS::CloudFormation::Stack",
			Props: cfn.Props{
				"TemplateURL": cfn.Sub(fmt.Sprintf("${TemplatesUrl}/%s", file)),
				"Parameters": map[string]any{
					"VpcId":     cfn.Ref("VpcId"),
					"SubnetIds": cfn.Ref("SubnetIds"),
				},
			},
		}); err != nil {
			return err
		}

		if err := c.wireAttachments(lb, lbStack, result); err != nil {
			return err
		}
	}

	for _, f := range c.registry.Families() {
		tpl, ok := c.familyTemplate(f.Name)
		if !ok {
			return fmt.Errorf("no template recorded for family %s", f.Name)
		}
		if err := f.SynthesizeScaling(tpl); err != nil {
			return err
		}
	}
	return nil
}

// wireAttachments binds each synthesized target group to its family: the
// target group ARN flows through a family stack parameter into the service
// definition, and for application load balancers the family security group
// opens up to the balancer's.
func (c *Context) wireAttachments(lb compose.LoadBalancer, lbStack string, result *elbv2.Result) error {
	ingressWired := make(map[string]bool)
	for _, att := range result.Attachments {
		f, ok := c.registry.Get(att.Family)
		if !ok {
			return fmt.Errorf("load balancer %s references unknown family %s", lb.Name, att.Family)
		}
		tpl, ok := c.familyTemplate(att.Family)
		if !ok {
			return fmt.Errorf("no template recorded for family %s", att.Family)
		}

		param := att.TargetGroup + "Arn"
		tpl.AddParameter(param, cfn.Parameter{Type: "String"})
		if err := family.AttachTargetGroup(tpl, cfn.Ref(param), att.Container, att.Port); err != nil {
			return err
		}
		c.bindNestedParameter(att.Family, param, cfn.GetAtt(lbStack, "Outputs."+att.OutputName))

		if lb.IsNLB() || ingressWired[att.Family] {
			continue
		}
		ingressWired[att.Family] = true

		sgParam := "Lb" + cfn.LogicalName(lb.Name) + "SecurityGroupId"
		tpl.AddParameter(sgParam, cfn.Parameter{Type: "String"})
		if err := networking.AddLoadBalancerIngress(
			tpl, lb.Name, cfn.Ref(sgParam), f.Name,
			networking.SecurityGroupName(f.Name), f.Ports,
		); err != nil {
			return err
		}
		c.bindNestedParameter(att.Family, sgParam, cfn.GetAtt(lbStack, "Outputs."+elbv2.SecurityGroupOutput))
	}
	return nil
}

// bindNestedParameter sets a parameter on a family's nested stack resource
// in the root template.
func (c *Context) bindNestedParameter(familyName, param string, value any) {
	stack := c.root.Resources[c.familyStacks[familyName]]
	params := stack.Props["Parameters"].(map[string]any)
	params[param] = value
}

func (c *Context) familyTemplate(familyName string) (*cfn.Template, bool) {
	file, ok := c.familyFiles[familyName]
	if !ok {
		return nil, false
	}
	tpl, ok := c.templates[file]
	return tpl, ok
}

// =============================================================================
// Output
// =============================================================================

// Output returns the finished graph. The root template is included in the
// template map under root.yaml.
func (c *Context) Output() *Output {
	templates := make(map[string]*cfn.Template, len(c.templates)+1)
	for file, tpl := range c.templates {
		templates[file] = tpl
	}
	templates["root.yaml"] = c.root
	return &Output{
		Root:      c.root,
		Templates: templates,
		Warnings:  c.warnings,
	}
}

func (c *Context) warn(messages ...string) {
	for _, msg := range messages {
		c.log.Warn(msg)
		c.warnings = append(c.warnings, msg)
	}
}
