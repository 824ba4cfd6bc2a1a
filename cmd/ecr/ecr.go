package ecr

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/aws/ecr"
	"cloudaudit/internal/config"
	"cloudaudit/internal/logging"
	"cloudaudit/internal/report"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// DefaultOutputPrefix names the vulnerability CSV
const DefaultOutputPrefix = "ecr_vulnerabilities"

type ecrOptions struct {
	severity     string
	outputPrefix string
	s3Bucket     string
}

var (
	newEnv = awslib.NewEnv
	now    = func() time.Time { return time.Now().UTC() }

	stdout io.Writer = os.Stdout
)

// NewECRCmd creates the ecr command
func NewECRCmd() *cobra.Command {
	opts := &ecrOptions{}

	cmd := &cobra.Command{
		Use:   "ecr",
		Short: "Report vulnerabilities found in the latest image of each ECR repository",
		Long: `Read the existing scan findings of the most recently pushed image in every
ECR repository of the configured region and report those of the requested severity.

No scan is started. Repositories without images or without a completed scan are
listed as skipped.`,
		Example: `  # Critical findings in the configured region
  cloudaudit ecr

  # High findings in eu-west-1
  cloudaudit ecr --severity HIGH --region eu-west-1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runECR(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.severity, "severity", ecr.DefaultSeverity, "Finding severity to report")
	cmd.Flags().StringVar(&opts.outputPrefix, "output-prefix", DefaultOutputPrefix, "Prefix of the output file name")
	cmd.Flags().StringVar(&opts.s3Bucket, "s3-bucket", "", "Upload the report to this S3 bucket")

	return cmd
}

func runECR(ctx context.Context, opts *ecrOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := newEnv(config.Config.AWS())
	if err != nil {
		return err
	}

	started := now()
	severity := strings.ToUpper(opts.severity)
	logging.Progress(fmt.Sprintf("Reading %s scan findings in %s", severity, env.Region))

	scanner := &ecr.Scanner{
		ECR:      env.Home().ECR,
		Severity: severity,
		Workers:  config.Config.MaxWorkers,
	}
	vulns, skipped, err := scanner.Run(ctx)
	if err != nil {
		return err
	}
	if vulns == nil {
		vulns = []ecr.Vulnerability{}
	}

	path := filepath.Join(config.Config.OutputDir, report.TimestampedName(opts.outputPrefix, "csv", started))
	if err := report.WriteCSV(path, vulns); err != nil {
		return err
	}
	logging.ReportWritten(path, len(vulns))

	if opts.s3Bucket != "" {
		location, err := env.NewUploader(env.Region, opts.s3Bucket).Upload(ctx, path, "")
		if err != nil {
			return err
		}
		logging.ReportWritten(location, len(vulns))
	}

	printSummary(stdout, severity, vulns, skipped)
	return nil
}

func printSummary(w io.Writer, severity string, vulns []ecr.Vulnerability, skipped []ecr.Skipped) {
	perRepo := make(map[string]int)
	for _, v := range vulns {
		perRepo[v.Repo]++
	}

	color.New(color.FgCyan, color.Bold).Fprintf(w, "\n%s Vulnerabilities\n", severity)
	for _, repo := range report.SortedKeys(perRepo) {
		color.New(color.FgRed).Fprintf(w, "  %-40s %d\n", repo, perRepo[repo])
	}
	fmt.Fprintf(w, "  %-40s %d\n", "Total:", len(vulns))

	if len(skipped) > 0 {
		color.New(color.FgYellow).Fprintln(w, "\nSkipped repositories")
		for _, s := range skipped {
			fmt.Fprintf(w, "  %-40s %s\n", s.Repo, s.Reason)
		}
	}
}
