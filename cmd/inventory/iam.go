package inventory

import (
	"context"

	"cloudaudit/internal/aws/inventory"
	"cloudaudit/internal/config"

	"github.com/spf13/cobra"
)

// NewIAMCmd creates the inventory iam command
func NewIAMCmd(opts *inventoryOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "iam",
		Short: "Export IAM users and access keys",
		Long: `Export the account summary, every IAM user with their groups, policies and
credentials, and every access key with its last use.`,
		Example: `  cloudaudit inventory iam --profile audit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIAM(cmd.Context(), opts)
		},
	}
}

func runIAM(ctx context.Context, opts *inventoryOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	r, err := newRun(ctx)
	if err != nil {
		return err
	}

	inv, err := r.collector.IAM(ctx, r.env.Home().IAM)
	if err != nil {
		return err
	}

	paths, err := inventory.WriteIAM(config.Config.OutputDir, inv, r.started)
	if err != nil {
		return err
	}
	if err := r.publish(ctx, opts, paths); err != nil {
		return err
	}

	printSummary(stdout, "IAM Inventory", []count{
		{"Users", len(inv.Users)},
		{"Access keys", len(inv.AccessKeys)},
	}, nil)
	return nil
}
