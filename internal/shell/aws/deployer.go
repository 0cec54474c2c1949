package aws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"
	smithy "github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// =============================================================================
// Deployer
// =============================================================================

// ErrNoChanges indicates a change set containing nothing to apply.
var ErrNoChanges = errors.New("change set contains no changes")

// Deployer submits synthesized templates to CloudFormation: direct
// create-or-update deployments and change-set based plans.
type Deployer struct {
	client *cloudformation.Client
	logger *slog.Logger
}

// NewDeployer creates a deployer from a resolved AWS config.
func NewDeployer(cfg awssdk.Config, logger *slog.Logger) *Deployer {
	return &Deployer{
		client: cloudformation.NewFromConfig(cfg),
		logger: logger.With("component", "deployer"),
	}
}

// StackConfig identifies the target stack of a deployment.
type StackConfig struct {
	Name            string
	DisableRollback bool
	Parameters      map[string]string
}

func (c StackConfig) parameters() []cfntypes.Parameter {
	keys := make([]string, 0, len(c.Parameters))
	for key := range c.Parameters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	params := make([]cfntypes.Parameter, 0, len(keys))
	for _, key := range keys {
		params = append(params, cfntypes.Parameter{
			ParameterKey:   awssdk.String(key),
			ParameterValue: awssdk.String(c.Parameters[key]),
		})
	}
	return params
}

// Both roles and nested stacks appear in synthesized templates.
var deployCapabilities = []cfntypes.Capability{
	cfntypes.CapabilityCapabilityIam,
	cfntypes.CapabilityCapabilityAutoExpand,
}

// =============================================================================
// Deploy
// =============================================================================

// Deploy creates the stack, or updates it when it already exists, and
// returns the stack id. An update with nothing to change is not an error.
func (d *Deployer) Deploy(ctx context.Context, cfg StackConfig, body string) (string, error) {
	exists, err := d.stackExists(ctx, cfg.Name)
	if err != nil {
		return "", err
	}

	if !exists {
		out, err := d.client.CreateStack(ctx, &cloudformation.CreateStackInput{
			StackName:       awssdk.String(cfg.Name),
			TemplateBody:    awssdk.String(body),
			Parameters:      cfg.parameters(),
			Capabilities:    deployCapabilities,
			DisableRollback: awssdk.Bool(cfg.DisableRollback),
		})
		if err != nil {
			return "", fmt.Errorf("failed to create stack %s: %w", cfg.Name, err)
		}
		d.logger.Info("stack creation started", "stack", cfg.Name, "stack_id", awssdk.ToString(out.StackId))
		return awssdk.ToString(out.StackId), nil
	}

	out, err := d.client.UpdateStack(ctx, &cloudformation.UpdateStackInput{
		StackName:       awssdk.String(cfg.Name),
		TemplateBody:    awssdk.String(body),
		Parameters:      cfg.parameters(),
		Capabilities:    deployCapabilities,
		DisableRollback: awssdk.Bool(cfg.DisableRollback),
	})
	if err != nil {
		if isNoUpdateError(err) {
			d.logger.Info("stack is already up to date", "stack", cfg.Name)
			return cfg.Name, nil
		}
		return "", fmt.Errorf("failed to update stack %s: %w", cfg.Name, err)
	}
	d.logger.Info("stack update started", "stack", cfg.Name, "stack_id", awssdk.ToString(out.StackId))
	return awssdk.ToString(out.StackId), nil
}

// stackExists decides create-vs-update from the remote stack status.
func (d *Deployer) stackExists(ctx context.Context, name string) (bool, error) {
	out, err := d.client.DescribeStacks(ctx, &cloudformation.DescribeStacksInput{
		StackName: awssdk.String(name),
	})
	if err != nil {
		if isStackMissingError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to describe stack %s: %w", name, err)
	}
	if len(out.Stacks) == 0 {
		return false, nil
	}
	status := out.Stacks[0].StackStatus
	if status == cfntypes.StackStatusReviewInProgress {
		// A stack stuck in review was created by an abandoned change set
		// and cannot be updated.
		return false, nil
	}
	if status == cfntypes.StackStatusRollbackComplete {
		return false, fmt.Errorf("stack %s is in %s and must be deleted before redeploying", name, status)
	}
	return true, nil
}

// =============================================================================
// Plan (Change Sets)
// =============================================================================

// Change is one resource-level entry of a plan.
type Change struct {
	Action      string
	LogicalID   string
	Type        string
	Replacement string
}

// ChangeSet is a created plan, ready to apply or discard.
type ChangeSet struct {
	ID        string
	StackName string
	Changes   []Change
}

// Plan creates a change set against the stack, waits for it to settle and
// returns the resource-level diff. A change set with no changes returns
// ErrNoChanges after cleanup.
func (d *Deployer) Plan(ctx context.Context, cfg StackConfig, body string) (*ChangeSet, error) {
	exists, err := d.stackExists(ctx, cfg.Name)
	if err != nil {
		return nil, err
	}
	changeSetType := cfntypes.ChangeSetTypeUpdate
	if !exists {
		changeSetType = cfntypes.ChangeSetTypeCreate
	}

	name := "stackgen-" + uuid.NewString()
	out, err := d.client.CreateChangeSet(ctx, &cloudformation.CreateChangeSetInput{
		StackName:     awssdk.String(cfg.Name),
		ChangeSetName: awssdk.String(name),
		TemplateBody:  awssdk.String(body),
		Parameters:    cfg.parameters(),
		Capabilities:  deployCapabilities,
		ChangeSetType: changeSetType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create change set for %s: %w", cfg.Name, err)
	}

	changeSet := &ChangeSet{ID: awssdk.ToString(out.Id), StackName: cfg.Name}
	described, err := d.waitForChangeSet(ctx, changeSet)
	if err != nil {
		return nil, err
	}
	if described == nil {
		// Settled as "no changes": nothing to plan, discard the empty set.
		_ = d.Discard(ctx, changeSet)
		return nil, ErrNoChanges
	}

	for _, change := range described.Changes {
		if change.ResourceChange == nil {
			continue
		}
		rc := change.ResourceChange
		changeSet.Changes = append(changeSet.Changes, Change{
			Action:      string(rc.Action),
			LogicalID:   awssdk.ToString(rc.LogicalResourceId),
			Type:        awssdk.ToString(rc.ResourceType),
			Replacement: string(rc.Replacement),
		})
	}
	return changeSet, nil
}

// waitForChangeSet polls the change set status with bounded backoff until
// it is ready or failed. A failure caused by an empty diff returns
// (nil, nil).
func (d *Deployer) waitForChangeSet(ctx context.Context, cs *ChangeSet) (*cloudformation.DescribeChangeSetOutput, error) {
	const maxAttempts = 30
	delay := 2 * time.Second
	const maxDelay = 20 * time.Second

	for attempt := 0; attempt < maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > maxDelay {
			delay = maxDelay
		}

		out, err := d.client.DescribeChangeSet(ctx, &cloudformation.DescribeChangeSetInput{
			ChangeSetName: awssdk.String(cs.ID),
			StackName:     awssdk.String(cs.StackName),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe change set %s: %w", cs.ID, err)
		}

		switch out.Status {
		case cfntypes.ChangeSetStatusCreateComplete:
			return out, nil
		case cfntypes.ChangeSetStatusFailed:
			reason := awssdk.ToString(out.StatusReason)
			if strings.Contains(reason, "didn't contain changes") ||
				strings.Contains(reason, "No updates are to be performed") {
				return nil, nil
			}
			return nil, fmt.Errorf("change set %s failed: %s", cs.ID, reason)
		default:
			d.logger.Debug("change set still settling", "change_set", cs.ID, "status", out.Status)
		}
	}
	return nil, fmt.Errorf("change set %s did not settle in time", cs.ID)
}

// Apply executes the change set.
func (d *Deployer) Apply(ctx context.Context, cs *ChangeSet) error {
	_, err := d.client.ExecuteChangeSet(ctx, &cloudformation.ExecuteChangeSetInput{
		ChangeSetName: awssdk.String(cs.ID),
		StackName:     awssdk.String(cs.StackName),
	})
	if err != nil {
		return fmt.Errorf("failed to execute change set %s: %w", cs.ID, err)
	}
	d.logger.Info("change set execution started", "stack", cs.StackName)
	return nil
}

// Discard deletes the change set without applying it.
func (d *Deployer) Discard(ctx context.Context, cs *ChangeSet) error {
	_, err := d.client.DeleteChangeSet(ctx, &cloudformation.DeleteChangeSetInput{
		ChangeSetName: awssdk.String(cs.ID),
		StackName:     awssdk.String(cs.StackName),
	})
	if err != nil {
		return fmt.Errorf("failed to delete change set %s: %w", cs.ID, err)
	}
	return nil
}

// Render formats the plan as an aligned table.
func (cs *ChangeSet) Render() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACTION\tRESOURCE\tTYPE\tREPLACEMENT")
	for _, change := range cs.Changes {
		replacement := change.Replacement
		if replacement == "" {
			replacement = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", change.Action, change.LogicalID, change.Type, replacement)
	}
	w.Flush()
	return sb.String()
}

// =============================================================================
// Error Classification
// =============================================================================

func isStackMissingError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ValidationError" {
		return strings.Contains(apiErr.ErrorMessage(), "does not exist")
	}
	return false
}

func isNoUpdateError(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) &&
		strings.Contains(apiErr.ErrorMessage(), "No updates are to be performed")
}
