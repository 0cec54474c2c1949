package family

import (
	"sort"

	"github.com/artpar/stackgen/internal/cfn"
)

// =============================================================================
// IAM Role Synthesis
// =============================================================================

const (
	taskRoleName      = "TaskRole"
	executionRoleName = "ExecutionRole"
)

var ecsAssumeRolePolicy = map[string]any{
	"Version": "2012-10-17",
	"Statement": []any{
		map[string]any{
			"Effect":    "Allow",
			"Principal": map[string]any{"Service": "ecs-tasks.amazonaws.com"},
			"Action":    "sts:AssumeRole",
		},
	},
}

// addTaskRoles emits the task role and the execution role of the family.
// When member services reference secrets, the execution role receives an
// inline policy allowing it to read exactly those secrets.
func (f *Family) addTaskRoles(tpl *cfn.Template) error {
	if _, err := tpl.AddResource(taskRoleName, &cfn.Resource{
		Type: "AWS::IAM::Role",
		Props: cfn.Props{
			"AssumeRolePolicyDocument": ecsAssumeRolePolicy,
			"Description":              cfn.Sub("Task role for ${AWS::StackName}"),
		},
	}); err != nil {
		return err
	}

	props := cfn.Props{
		"AssumeRolePolicyDocument": ecsAssumeRolePolicy,
		"Description":              cfn.Sub("Execution role for ${AWS::StackName}"),
		"ManagedPolicyArns": []any{
			cfn.Sub("arn:${AWS::Partition}:iam::aws:policy/service-role/AmazonECSTaskExecutionRolePolicy"),
		},
	}
	if arns := f.secretArns(); len(arns) > 0 {
		props["Policies"] = []any{
			map[string]any{
				"PolicyName": "ReadTaskSecrets",
				"PolicyDocument": map[string]any{
					"Version": "2012-10-17",
					"Statement": []any{
						map[string]any{
							"Effect": "Allow",
							"Action": []any{
								"secretsmanager:GetSecretValue",
								"ssm:GetParameters",
							},
							"Resource": arns,
						},
					},
				},
			},
		}
	}
	_, err := tpl.AddResource(executionRoleName, &cfn.Resource{
		Type:  "AWS::IAM::Role",
		Props: props,
	})
	return err
}

// secretArns collects the distinct secret identifiers referenced by member
// services, sorted for deterministic policy documents.
func (f *Family) secretArns() []any {
	seen := make(map[string]bool)
	var arns []string
	for _, svc := range f.Services {
		for _, secret := range svc.Secrets {
			if secret.ValueFrom == "" || seen[secret.ValueFrom] {
				continue
			}
			seen[secret.ValueFrom] = true
			arns = append(arns, secret.ValueFrom)
		}
	}
	sort.Strings(arns)
	out := make([]any, 0, len(arns))
	for _, arn := range arns {
		out = append(out, arn)
	}
	return out
}
