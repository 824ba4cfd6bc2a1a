package inventory

import (
	"context"

	"cloudaudit/internal/aws/inventory"
	"cloudaudit/internal/config"

	"github.com/spf13/cobra"
)

// NewRDSCmd creates the inventory rds command
func NewRDSCmd(opts *inventoryOptions) *cobra.Command {
	var regions []string

	cmd := &cobra.Command{
		Use:   "rds",
		Short: "Export RDS DB instances across regions",
		Long: `Export every RDS DB instance with its engine, class, storage, network
placement, maintenance windows and tags.`,
		Example: `  cloudaudit inventory rds --regions us-east-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRDS(cmd.Context(), opts, regions)
		},
	}

	cmd.Flags().StringSliceVar(&regions, "regions", nil, "Regions to scan (default: all enabled regions)")

	return cmd
}

func runRDS(ctx context.Context, opts *inventoryOptions, requested []string) error {
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

	rows, regionErrs := r.collector.RDS(ctx, regions)
	if rows == nil {
		rows = []inventory.DBInstance{}
	}

	paths, err := inventory.WriteRDS(config.Config.OutputDir, rows, r.started)
	if err != nil {
		return err
	}
	if err := r.publish(ctx, opts, paths); err != nil {
		return err
	}

	printSummary(stdout, "RDS Inventory", []count{
		{"Regions", len(regions) - len(regionErrs)},
		{"DB instances", len(rows)},
	}, regionErrs)
	return nil
}
