package inventory

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/aws/inventory"
	"cloudaudit/internal/config"
	"cloudaudit/internal/logging"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	newEnv = awslib.NewEnv
	now    = func() time.Time { return time.Now().UTC() }

	stdout io.Writer = os.Stdout
)

// inventoryOptions are shared by every inventory subcommand
type inventoryOptions struct {
	s3Bucket string
}

// NewInventoryCmd creates the inventory command
func NewInventoryCmd() *cobra.Command {
	opts := &inventoryOptions{}

	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Export read-only inventories of AWS resources",
		Long: `Export inventories of AWS resources to CSV files and XLSX workbooks.
Currently supports:
  - EC2 instances with AMI names and attached volumes
  - RDS DB instances
  - S3 buckets and, optionally, their objects
  - IAM users and access keys`,
	}

	cmd.PersistentFlags().StringVar(&opts.s3Bucket, "s3-bucket", "", "Upload the inventory files to this S3 bucket")

	cmd.AddCommand(NewEC2Cmd(opts))
	cmd.AddCommand(NewRDSCmd(opts))
	cmd.AddCommand(NewS3Cmd(opts))
	cmd.AddCommand(NewIAMCmd(opts))

	return cmd
}

// run is the state shared by one inventory invocation
type run struct {
	env       *awslib.Env
	collector *inventory.Collector
	started   time.Time
}

func newRun(ctx context.Context) (*run, error) {
	env, err := newEnv(config.Config.AWS())
	if err != nil {
		return nil, err
	}

	account, err := awslib.GetAccountID(ctx, env.Home().STS)
	if err != nil {
		return nil, err
	}
	logging.Info(fmt.Sprintf("Inventorying account %s", account))

	started := now()
	return &run{
		env:     env,
		started: started,
		collector: &inventory.Collector{
			ClientsFor: env.ClientsFor,
			AccountID:  account,
			Workers:    config.Config.MaxWorkers,
			Now:        func() time.Time { return started },
		},
	}, nil
}

// regions returns the requested regions after checking them against the
// enabled ones, or every enabled region when none were requested
func (r *run) regions(ctx context.Context, requested []string) ([]string, error) {
	available, err := awslib.GetAvailableRegions(ctx, r.env.Home().EC2)
	if err != nil {
		return nil, err
	}

	regions := awslib.NormalizeRegions(requested)
	if len(regions) == 0 {
		return available, nil
	}
	if err := awslib.ValidateRegions(regions, available); err != nil {
		return nil, err
	}
	return regions, nil
}

// publish uploads the written files when a bucket was requested
func (r *run) publish(ctx context.Context, opts *inventoryOptions, paths []string) error {
	if opts.s3Bucket == "" {
		return nil
	}
	uploader := r.env.NewUploader(r.env.Region, opts.s3Bucket)
	for _, path := range paths {
		location, err := uploader.Upload(ctx, path, "")
		if err != nil {
			return err
		}
		logging.Info(fmt.Sprintf("Uploaded %s", location))
	}
	return nil
}

func printSummary(w io.Writer, title string, counts []count, regionErrs []inventory.RegionError) {
	color.New(color.FgCyan, color.Bold).Fprintf(w, "\n%s\n", title)
	for _, c := range counts {
		fmt.Fprintf(w, "  %-14s %d\n", c.label+":", c.n)
	}
	for _, e := range regionErrs {
		color.New(color.FgRed).Fprintf(w, "  Region %s skipped: %v\n", e.Region, e.Err)
	}
}

type count struct {
	label string
	n     int
}
