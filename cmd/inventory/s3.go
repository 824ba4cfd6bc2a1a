package inventory

import (
	"context"

	"cloudaudit/internal/aws/inventory"
	"cloudaudit/internal/config"

	"github.com/spf13/cobra"
)

// NewS3Cmd creates the inventory s3 command
func NewS3Cmd(opts *inventoryOptions) *cobra.Command {
	var includeObjects bool

	cmd := &cobra.Command{
		Use:   "s3",
		Short: "Export S3 buckets and their settings",
		Long: `Export every bucket with its region, encryption, versioning, lifecycle rules,
public exposure, object lock and object totals. Settings that cannot be read are
left empty.`,
		Example: `  # Buckets only
  cloudaudit inventory s3

  # Buckets and a listing of every object
  cloudaudit inventory s3 --objects`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runS3(cmd.Context(), opts, includeObjects)
		},
	}

	cmd.Flags().BoolVar(&includeObjects, "objects", false, "Also export every object")

	return cmd
}

func runS3(ctx context.Context, opts *inventoryOptions, includeObjects bool) error {
	if ctx == nil {
		ctx = context.Background()
	}

	r, err := newRun(ctx)
	if err != nil {
		return err
	}

	buckets, objects, err := r.collector.S3(ctx, inventory.S3Options{
		Home:           r.env.Home().S3,
		ClientFor:      r.env.S3For,
		IncludeObjects: includeObjects,
	})
	if err != nil {
		return err
	}
	if objects == nil {
		objects = []inventory.Object{}
	}

	paths, err := inventory.WriteS3(config.Config.OutputDir, buckets, objects, includeObjects, r.started)
	if err != nil {
		return err
	}
	if err := r.publish(ctx, opts, paths); err != nil {
		return err
	}

	counts := []count{{"Buckets", len(buckets)}}
	if includeObjects {
		counts = append(counts, count{"Objects", len(objects)})
	}
	printSummary(stdout, "S3 Inventory", counts, nil)
	return nil
}
