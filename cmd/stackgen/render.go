package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"github.com/artpar/stackgen/internal/core/compose"
	"github.com/artpar/stackgen/internal/core/synth"
	shellaws "github.com/artpar/stackgen/internal/shell/aws"
)

// newRenderCommand renders the compose document to template files without
// touching any remote API (unless the document asks for a cluster lookup).
func newRenderCommand(flags *rootFlags) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Synthesize templates and write them to the output directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(flags.configPath)
			if err != nil {
				return err
			}
			logger := SetupLogger(cfg)
			if outputDir == "" {
				outputDir = cfg.Synth.OutputDir
			}

			out, _, err := synthesize(cmd.Context(), cfg, logger, flags)
			if err != nil {
				return synthErr(err)
			}
			if err := writeTemplates(out, outputDir); err != nil {
				return synthErr(err)
			}
			logger.Info("templates rendered", "output_dir", outputDir, "count", len(out.Templates))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to write templates to")
	return cmd
}

// synthesize runs the full pipeline for the configured compose file and
// returns the output alongside the parsed document. The cluster descriptor
// comes from the inline x-cluster declaration, or from the remote API when
// the document asks for a lookup.
func synthesize(ctx context.Context, cfg *Config, logger *slog.Logger, flags *rootFlags) (*synth.Output, *compose.Document, error) {
	data, err := os.ReadFile(flags.composeFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read compose file: %w", err)
	}
	doc, err := compose.ParseDocument(string(data))
	if err != nil {
		return nil, nil, err
	}

	cluster := synth.ClusterFromSpec(doc.Cluster)
	if doc.Cluster != nil && doc.Cluster.Lookup {
		awsCfg, err := loadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		cluster, err = shellaws.NewClusterClient(awsCfg, logger).Describe(ctx, cluster.Name)
		if err != nil {
			return nil, nil, err
		}
	}

	out, err := synth.Run(doc, cluster, synth.Options{
		StackName: flags.stackName,
		Seed:      cfg.Synth.Seed,
		Logger:    logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return out, doc, nil
}

func loadAWSConfig(ctx context.Context, cfg *Config) (awssdk.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.AWS.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.AWS.Region))
	}
	if cfg.AWS.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.AWS.Profile))
	}
	loaded, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return awssdk.Config{}, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return loaded, nil
}

// writeTemplates renders every template to YAML under dir, root template
// included.
func writeTemplates(out *synth.Output, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	files := make([]string, 0, len(out.Templates))
	for file := range out.Templates {
		files = append(files, file)
	}
	sort.Strings(files)
	for _, file := range files {
		body, err := out.Templates[file].YAML()
		if err != nil {
			return fmt.Errorf("failed to render %s: %w", file, err)
		}
		if err := os.WriteFile(filepath.Join(dir, file), body, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", file, err)
		}
	}
	return nil
}
