package cleanup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/aws/checks"
	"cloudaudit/internal/config"
	"cloudaudit/internal/logging"
	"cloudaudit/internal/report"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// DefaultOutputPrefix names the findings CSV
const DefaultOutputPrefix = "aws_cost_audit_summary"

type cleanupOptions struct {
	checks          string
	snapshotAgeDays int
	outputPrefix    string
	s3Bucket        string
}

var (
	newEnv = awslib.NewEnv
	now    = func() time.Time { return time.Now().UTC() }

	stdout io.Writer = os.Stdout
)

// NewCleanupCmd creates the cleanup command
func NewCleanupCmd() *cobra.Command {
	opts := &cleanupOptions{}

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Find unused AWS resources that cost money",
		Long: `Audit the home region for resources that cost money while unused:
unattached EBS volumes, old EBS snapshots, unassociated Elastic IPs, load balancers
without targets, RDS instances and stopped EC2 instances.

Findings are written to a timestamped CSV file. Nothing is modified.`,
		Example: `  # Run every check in the configured region
  cloudaudit cleanup

  # Only volumes and snapshots older than 30 days, uploaded to S3
  cloudaudit cleanup --checks ebs-volumes,ebs-snapshots --snapshot-age-days 30 --s3-bucket audit-reports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.snapshotAgeDays < 0 {
				return fmt.Errorf("--snapshot-age-days must not be negative")
			}
			return runCleanup(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.checks, "checks", "", "Comma-separated list of checks to run (default: all)")
	cmd.Flags().IntVar(&opts.snapshotAgeDays, "snapshot-age-days", checks.DefaultSnapshotAgeDays, "Report snapshots older than this many days")
	cmd.Flags().StringVar(&opts.outputPrefix, "output-prefix", DefaultOutputPrefix, "Prefix of the output file name")
	cmd.Flags().StringVar(&opts.s3Bucket, "s3-bucket", "", "Upload the report to this S3 bucket")

	return cmd
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runCleanup(ctx context.Context, opts *cleanupOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	selected, err := awslib.DefaultRegistry.Select(splitList(opts.checks))
	if err != nil {
		return err
	}

	env, err := newEnv(config.Config.AWS())
	if err != nil {
		return err
	}

	started := now()
	logging.Progress(fmt.Sprintf("Starting AWS cost cleanup audit in %s", env.Region))

	findings, summaries, err := checks.RunAll(ctx, selected, awslib.ScanOptions{
		Clients:         env.Home(),
		Now:             started,
		SnapshotAgeDays: opts.snapshotAgeDays,
	})
	if err != nil {
		return err
	}

	path := filepath.Join(config.Config.OutputDir, report.TimestampedName(opts.outputPrefix, "csv", started))
	if err := report.WriteCSV(path, findings); err != nil {
		return err
	}
	logging.ReportWritten(path, len(findings))

	if opts.s3Bucket != "" {
		location, err := env.NewUploader(env.Region, opts.s3Bucket).Upload(ctx, path, "")
		if err != nil {
			return err
		}
		logging.ReportWritten(location, len(findings))
	}

	printSummary(stdout, summaries, findings)
	return nil
}

// printSummary writes the per-check counts followed by the per-severity totals
func printSummary(w io.Writer, summaries []checks.Summary, findings report.Findings) {
	header := color.New(color.FgCyan, color.Bold)
	header.Fprintln(w, "\nAudit Summary")

	for _, s := range summaries {
		c := color.New(color.FgGreen)
		if s.Count > 0 {
			c = color.New(color.FgYellow)
		}
		c.Fprintf(w, "  %-24s %d\n", s.Label+":", s.Count)
	}

	bySeverity := findings.CountBySeverity()
	for _, sev := range []string{report.SeverityHigh, report.SeverityMedium, report.SeverityLow} {
		if n := bySeverity[sev]; n > 0 {
			fmt.Fprintf(w, "  %-24s %d\n", sev+" severity:", n)
		}
	}
	fmt.Fprintf(w, "  %-24s %d\n", "Total findings:", len(findings))
}
