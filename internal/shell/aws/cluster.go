// Package aws holds the Imperative Shell collaborators: the remote cluster
// descriptor lookup, the tag-based resource inventory and the stack
// deployer. Everything here performs I/O against AWS APIs; the synthesis
// core never imports this package.
package aws

import (
	"context"
	"fmt"
	"log/slog"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"

	"github.com/artpar/stackgen/internal/core/placement"
)

// ClusterClient resolves a remote ECS cluster into the descriptor the
// placement resolver consumes.
type ClusterClient struct {
	client *ecs.Client
	logger *slog.Logger
}

// NewClusterClient creates a cluster client from a resolved AWS config.
func NewClusterClient(cfg awssdk.Config, logger *slog.Logger) *ClusterClient {
	return &ClusterClient{
		client: ecs.NewFromConfig(cfg),
		logger: logger.With("component", "cluster"),
	}
}

// Describe looks up the named cluster and returns its capacity provider
// configuration. A cluster that does not exist is an error - synthesis
// against an unknown cluster would produce undeployable output.
func (c *ClusterClient) Describe(ctx context.Context, name string) (placement.ClusterDescriptor, error) {
	out, err := c.client.DescribeClusters(ctx, &ecs.DescribeClustersInput{
		Clusters: []string{name},
	})
	if err != nil {
		return placement.ClusterDescriptor{}, fmt.Errorf("failed to describe cluster %s: %w", name, err)
	}
	if len(out.Clusters) == 0 {
		return placement.ClusterDescriptor{}, fmt.Errorf("cluster %s not found", name)
	}

	cluster := out.Clusters[0]
	descriptor := placement.ClusterDescriptor{
		Name:              awssdk.ToString(cluster.ClusterName),
		CapacityProviders: cluster.CapacityProviders,
	}
	for _, entry := range cluster.DefaultCapacityProviderStrategy {
		descriptor.DefaultStrategyProviders = append(
			descriptor.DefaultStrategyProviders,
			awssdk.ToString(entry.CapacityProvider),
		)
	}

	c.logger.Debug("described cluster",
		"cluster", descriptor.Name,
		"capacity_providers", descriptor.CapacityProviders,
	)
	return descriptor, nil
}
