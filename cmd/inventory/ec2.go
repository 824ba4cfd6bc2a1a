package inventory

import (
	"context"

	"cloudaudit/internal/aws/inventory"
	"cloudaudit/internal/config"

	"github.com/spf13/cobra"
)

// NewEC2Cmd creates the inventory ec2 command
func NewEC2Cmd(opts *inventoryOptions) *cobra.Command {
	var regions []string

	cmd := &cobra.Command{
		Use:   "ec2",
		Short: "Export EC2 instances across regions",
		Long: `Export every EC2 instance with its AMI name, network placement, security
groups and attached volumes. All enabled regions are scanned unless --regions is set.`,
		Example: `  # All enabled regions
  cloudaudit inventory ec2

  # Two regions, uploaded to S3
  cloudaudit inventory ec2 --regions us-east-1,eu-west-1 --s3-bucket audit-reports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEC2(cmd.Context(), opts, regions)
		},
	}

	cmd.Flags().StringSliceVar(&regions, "regions", nil, "Regions to scan (default: all enabled regions)")

	return cmd
}

func runEC2(ctx context.Context, opts *inventoryOptions, requested []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	r, err := newRun(ctx)
	if err != nil {
		return err
	}
	regions, err := r.regions(ctx, requested)
	if err != nil {
		return err
	}

	rows, regionErrs := r.collector.EC2(ctx, regions)
	if rows == nil {
		rows = []inventory.EC2Instance{}
	}

	paths, err := inventory.WriteEC2(config.Config.OutputDir, rows, r.started)
	if err != nil {
		return err
	}
	if err := r.publish(ctx, opts, paths); err != nil {
		return err
	}

	printSummary(stdout, "EC2 Inventory", []count{
		{"Regions", len(regions) - len(regionErrs)},
		{"Instances", len(rows)},
	}, regionErrs)
	return nil
}
