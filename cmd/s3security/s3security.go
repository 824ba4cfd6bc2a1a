package s3security

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/aws/s3security"
	"cloudaudit/internal/config"
	"cloudaudit/internal/logging"
	"cloudaudit/internal/report"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// DefaultOutputPrefix names the bucket security CSV
const DefaultOutputPrefix = "s3_bucket_security_report"

type s3SecurityOptions struct {
	outputPrefix string
	s3Bucket     string
}

var (
	newEnv = awslib.NewEnv
	now    = func() time.Time { return time.Now().UTC() }

	stdout io.Writer = os.Stdout
)

// NewS3SecurityCmd creates the s3-security command
func NewS3SecurityCmd() *cobra.Command {
	opts := &s3SecurityOptions{}

	cmd := &cobra.Command{
		Use:   "s3-security",
		Short: "Report the security posture of every S3 bucket",
		Long: `Check every bucket in the account for public ACLs, public bucket policies,
the public access block, default encryption, versioning and access logging.

Each bucket gets a severity and the list of reasons that produced it.`,
		Example: `  # Write s3_bucket_security_report_<timestamp>.csv to the output directory
  cloudaudit s3-security

  # Also upload the report
  cloudaudit s3-security --s3-bucket audit-reports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runS3Security(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.outputPrefix, "output-prefix", DefaultOutputPrefix, "Prefix of the output file name")
	cmd.Flags().StringVar(&opts.s3Bucket, "s3-bucket", "", "Upload the report to this S3 bucket")

	return cmd
}

func runS3Security(ctx context.Context, opts *s3SecurityOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := newEnv(config.Config.AWS())
	if err != nil {
		return err
	}

	started := now()
	logging.Progress("Starting S3 bucket security check")

	auditor := &s3security.Auditor{
		S3:        env.Home().S3,
		ClientFor: env.S3For,
		Workers:   config.Config.MaxWorkers,
	}
	findings, err := auditor.Run(ctx)
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

	printSummary(stdout, findings)
	return nil
}

func printSummary(w io.Writer, findings []s3security.BucketFinding) {
	counts := make(map[string]int)
	for _, f := range findings {
		counts[f.Severity]++
	}

	color.New(color.FgCyan, color.Bold).Fprintln(w, "\nS3 Security Summary")
	fmt.Fprintf(w, "  %-10s %d\n", "Buckets:", len(findings))
	color.New(color.FgRed).Fprintf(w, "  %-10s %d\n", report.SeverityHigh+":", counts[report.SeverityHigh])
	color.New(color.FgYellow).Fprintf(w, "  %-10s %d\n", report.SeverityMedium+":", counts[report.SeverityMedium])
	color.New(color.FgGreen).Fprintf(w, "  %-10s %d\n", report.SeverityLow+":", counts[report.SeverityLow])
}
