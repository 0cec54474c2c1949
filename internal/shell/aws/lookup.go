package aws

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	tagging "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	taggingtypes "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"
)

// TagLookup finds existing resources in the remote inventory by resource
// type and tag filters.
type TagLookup struct {
	client tagging.GetResourcesAPIClient
	logger *slog.Logger
}

// NewTagLookup creates a tag lookup client from a resolved AWS config.
func NewTagLookup(cfg awssdk.Config, logger *slog.Logger) *TagLookup {
	return &TagLookup{
		client: tagging.NewFromConfig(cfg),
		logger: logger.With("component", "lookup"),
	}
}

// Find returns the ARNs of resources of the given type carrying every tag
// in filters, sorted for stable output. On an optional lookup both zero
// matches and an API failure yield an empty set, with the failure logged;
// on a required lookup either is an error. Multiple matches are returned
// as-is - the caller decides whether more than one is tolerable.
func (l *TagLookup) Find(ctx context.Context, resourceType string, filters map[string]string, optional bool) ([]string, error) {
	input := &tagging.GetResourcesInput{
		ResourceTypeFilters: []string{resourceType},
	}
	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		input.TagFilters = append(input.TagFilters, taggingtypes.TagFilter{
			Key:    awssdk.String(key),
			Values: []string{filters[key]},
		})
	}

	var arns []string
	paginator := tagging.NewGetResourcesPaginator(l.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if optional {
				l.logger.Warn("optional lookup failed, treating as no matches",
					"resource_type", resourceType, "filters", filters, "error", err)
				return nil, nil
			}
			return nil, fmt.Errorf("failed to look up %s resources: %w", resourceType, err)
		}
		for _, mapping := range page.ResourceTagMappingList {
			arns = append(arns, awssdk.ToString(mapping.ResourceARN))
		}
	}
	sort.Strings(arns)

	if len(arns) == 0 {
		if optional {
			l.logger.Debug("optional lookup matched nothing", "resource_type", resourceType, "filters", filters)
			return nil, nil
		}
		return nil, fmt.Errorf("no %s resource matches tags %v", resourceType, filters)
	}
	return arns, nil
}

// FindOne is Find restricted to exactly one match.
func (l *TagLookup) FindOne(ctx context.Context, resourceType string, filters map[string]string) (string, error) {
	arns, err := l.Find(ctx, resourceType, filters, false)
	if err != nil {
		return "", err
	}
	if len(arns) > 1 {
		return "", fmt.Errorf("tags %v match %d %s resources, expected exactly one", filters, len(arns), resourceType)
	}
	return arns[0], nil
}
