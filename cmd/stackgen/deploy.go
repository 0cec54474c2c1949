package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/stackgen/internal/core/compose"
	shellaws "github.com/artpar/stackgen/internal/shell/aws"
)

// =============================================================================
// Shared Deployment Flags
// =============================================================================

type deployFlags struct {
	parameters      []string
	disableRollback bool
}

func (f *deployFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.parameters, "parameter", "p", nil, "Stack parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&f.disableRollback, "disable-rollback", false, "Keep failed resources for inspection instead of rolling back")
}

func (f *deployFlags) stackConfig(name string) (shellaws.StackConfig, error) {
	cfg := shellaws.StackConfig{
		Name:            name,
		DisableRollback: f.disableRollback,
		Parameters:      make(map[string]string, len(f.parameters)),
	}
	for _, param := range f.parameters {
		key, value, found := strings.Cut(param, "=")
		if !found || key == "" {
			return shellaws.StackConfig{}, fmt.Errorf("invalid parameter %q, expected key=value", param)
		}
		cfg.Parameters[key] = value
	}
	return cfg, nil
}

// renderRoot synthesizes the document and returns the root template body
// plus the parsed document for parameter resolution.
func renderRoot(cmd *cobra.Command, cfg *Config, flags *rootFlags) (string, *compose.Document, error) {
	logger := SetupLogger(cfg)
	out, doc, err := synthesize(cmd.Context(), cfg, logger, flags)
	if err != nil {
		return "", nil, synthErr(err)
	}
	body, err := out.Root.YAML()
	if err != nil {
		return "", nil, synthErr(err)
	}
	return string(body), doc, nil
}

// resolveVpcParameters fills the VpcId and SubnetIds stack parameters from
// the remote inventory when the document declares an x-vpc lookup.
// Explicitly passed parameters win over the lookup.
func resolveVpcParameters(cmd *cobra.Command, doc *compose.Document, lookup *shellaws.TagLookup, stackCfg *shellaws.StackConfig) error {
	if doc.Vpc == nil || doc.Vpc.Lookup == nil {
		return nil
	}
	spec := doc.Vpc.Lookup

	if _, set := stackCfg.Parameters["VpcId"]; !set && len(spec.VpcTags) > 0 {
		arn, err := lookup.FindOne(cmd.Context(), "ec2:vpc", spec.VpcTags)
		if err != nil {
			return err
		}
		stackCfg.Parameters["VpcId"] = vpcResourceID(arn)
	}
	if _, set := stackCfg.Parameters["SubnetIds"]; !set && len(spec.SubnetTags) > 0 {
		arns, err := lookup.Find(cmd.Context(), "ec2:subnet", spec.SubnetTags, false)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(arns))
		for _, arn := range arns {
			ids = append(ids, vpcResourceID(arn))
		}
		stackCfg.Parameters["SubnetIds"] = strings.Join(ids, ",")
	}
	return nil
}

// vpcResourceID extracts the resource id from an EC2 ARN
// (arn:aws:ec2:region:account:vpc/vpc-123 yields vpc-123).
func vpcResourceID(arn string) string {
	if idx := strings.LastIndex(arn, "/"); idx >= 0 {
		return arn[idx+1:]
	}
	return arn
}

// =============================================================================
// Plan Command
// =============================================================================

// newPlanCommand creates a change set, renders the diff and prompts before
// applying or discarding it.
func newPlanCommand(flags *rootFlags) *cobra.Command {
	dFlags := &deployFlags{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Create a change set, show the diff and prompt to apply",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(flags.configPath)
			if err != nil {
				return err
			}
			body, doc, err := renderRoot(cmd, cfg, flags)
			if err != nil {
				return err
			}
			stackCfg, err := dFlags.stackConfig(flags.stackName)
			if err != nil {
				return err
			}

			logger := SetupLogger(cfg)
			awsCfg, err := loadAWSConfig(cmd.Context(), cfg)
			if err != nil {
				return deployErr(err)
			}
			if err := resolveVpcParameters(cmd, doc, shellaws.NewTagLookup(awsCfg, logger), &stackCfg); err != nil {
				return deployErr(err)
			}
			deployer := shellaws.NewDeployer(awsCfg, logger)

			changeSet, err := deployer.Plan(cmd.Context(), stackCfg, body)
			if errors.Is(err, shellaws.ErrNoChanges) {
				fmt.Fprintln(cmd.OutOrStdout(), "No changes. The stack is up to date.")
				return nil
			}
			if err != nil {
				return deployErr(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), changeSet.Render())
			if !confirm(cmd, "Apply this change set?") {
				if err := deployer.Discard(cmd.Context(), changeSet); err != nil {
					return deployErr(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Change set discarded.")
				return nil
			}
			if err := deployer.Apply(cmd.Context(), changeSet); err != nil {
				return deployErr(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Change set applied.")
			return nil
		},
	}
	dFlags.register(cmd)
	return cmd
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// =============================================================================
// Deploy Command
// =============================================================================

// newDeployCommand submits the root stack directly, creating or updating
// it based on its remote status.
func newDeployCommand(flags *rootFlags) *cobra.Command {
	dFlags := &deployFlags{}

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Create or update the root stack",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(flags.configPath)
			if err != nil {
				return err
			}
			body, doc, err := renderRoot(cmd, cfg, flags)
			if err != nil {
				return err
			}
			stackCfg, err := dFlags.stackConfig(flags.stackName)
			if err != nil {
				return err
			}

			logger := SetupLogger(cfg)
			awsCfg, err := loadAWSConfig(cmd.Context(), cfg)
			if err != nil {
				return deployErr(err)
			}
			if err := resolveVpcParameters(cmd, doc, shellaws.NewTagLookup(awsCfg, logger), &stackCfg); err != nil {
				return deployErr(err)
			}
			stackID, err := shellaws.NewDeployer(awsCfg, logger).Deploy(cmd.Context(), stackCfg, body)
			if err != nil {
				return deployErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deployment started: %s\n", stackID)
			return nil
		},
	}
	dFlags.register(cmd)
	return cmd
}
