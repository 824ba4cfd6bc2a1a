package codebuild

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/aws/codebuild"
	"cloudaudit/internal/config"
	"cloudaudit/internal/logging"
	"cloudaudit/internal/report"

	"github.com/aws/aws-sdk-go/service/codebuild/codebuildiface"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// DefaultOutputPrefix names the CSV and JSON reports
const DefaultOutputPrefix = "codebuild_report"

type codebuildOptions struct {
	regions      []string
	days         int
	threads      int
	outputPrefix string
	s3Bucket     string
}

var (
	newEnv = awslib.NewEnv
	now    = func() time.Time { return time.Now().UTC() }

	stdout io.Writer = os.Stdout
)

// NewCodeBuildCmd creates the codebuild command
func NewCodeBuildCmd() *cobra.Command {
	opts := &codebuildOptions{}

	cmd := &cobra.Command{
		Use:   "codebuild",
		Short: "Report CodeBuild projects that have not been built recently",
		Long: `Scan CodeBuild projects in one or more regions and classify each one by its
most recent build: USED when built within --days, UNUSED when older, EMPTY when it
has never been built.

Regions are scanned in parallel. A region that fails is logged and skipped.`,
		Example: `  # Scan us-east-1 with a 30 day window
  cloudaudit codebuild

  # Scan two regions with a 90 day window and upload the reports
  cloudaudit codebuild --regions us-east-1,eu-west-1 --days 90 --s3-bucket audit-reports`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.days < 0 {
				return fmt.Errorf("--days must not be negative")
			}
			if opts.threads < 1 {
				return fmt.Errorf("--threads must be at least 1")
			}
			return runCodeBuild(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.regions, "regions", []string{"us-east-1"}, "Regions to scan (comma-separated)")
	cmd.Flags().IntVar(&opts.days, "days", codebuild.DefaultDays, "A project built within this many days counts as used")
	cmd.Flags().IntVar(&opts.threads, "threads", codebuild.DefaultThreads, "Maximum number of concurrent CodeBuild calls, shared between regions and their projects")
	cmd.Flags().StringVar(&opts.outputPrefix, "output-prefix", DefaultOutputPrefix, "Prefix of the output file names")
	cmd.Flags().StringVar(&opts.s3Bucket, "s3-bucket", "", "Upload the reports to this S3 bucket")

	return cmd
}

func runCodeBuild(ctx context.Context, opts *codebuildOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	regions := awslib.NormalizeRegions(opts.regions)
	if len(regions) == 0 {
		return fmt.Errorf("no regions specified")
	}

	env, err := newEnv(config.Config.AWS())
	if err != nil {
		return err
	}

	started := now()
	logging.Progress(fmt.Sprintf("Scanning CodeBuild projects in %s", strings.Join(regions, ", ")))

	scanner := &codebuild.Scanner{
		ClientFor: func(region string) codebuildiface.CodeBuildAPI {
			return env.ClientsFor(region).CodeBuild
		},
		Days:    opts.days,
		Threads: opts.threads,
		Now:     func() time.Time { return started },
	}
	rows, regionErrs := scanner.Scan(ctx, regions)
	if rows == nil {
		rows = []codebuild.ProjectUsage{}
	}

	csvPath := filepath.Join(config.Config.OutputDir, report.TimestampedName(opts.outputPrefix, "csv", started))
	if err := report.WriteCSV(csvPath, rows); err != nil {
		return err
	}
	logging.ReportWritten(csvPath, len(rows))

	jsonPath := filepath.Join(config.Config.OutputDir, report.TimestampedName(opts.outputPrefix, "json", started))
	if err := report.WriteJSON(jsonPath, rows); err != nil {
		return err
	}
	logging.ReportWritten(jsonPath, len(rows))

	if opts.s3Bucket != "" {
		uploader := env.NewUploader(regions[0], opts.s3Bucket)
		for _, path := range []string{csvPath, jsonPath} {
			location, err := uploader.Upload(ctx, path, "")
			if err != nil {
				return err
			}
			logging.ReportWritten(location, len(rows))
		}
	}

	printSummary(stdout, rows, regionErrs)
	return nil
}

func printSummary(w io.Writer, rows []codebuild.ProjectUsage, regionErrs []codebuild.RegionError) {
	counts := make(map[string]int)
	for _, r := range rows {
		counts[r.Status]++
	}

	color.New(color.FgCyan, color.Bold).Fprintln(w, "\nCodeBuild Usage Summary")
	fmt.Fprintf(w, "  %-10s %d\n", "Projects:", len(rows))
	color.New(color.FgGreen).Fprintf(w, "  %-10s %d\n", codebuild.StatusUsed+":", counts[codebuild.StatusUsed])
	color.New(color.FgYellow).Fprintf(w, "  %-10s %d\n", codebuild.StatusUnused+":", counts[codebuild.StatusUnused])
	color.New(color.FgRed).Fprintf(w, "  %-10s %d\n", codebuild.StatusEmpty+":", counts[codebuild.StatusEmpty])
	for _, e := range regionErrs {
		color.New(color.FgRed).Fprintf(w, "  Region %s skipped: %v\n", e.Region, e.Err)
	}
}
