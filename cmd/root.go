package cmd

import (
	"cloudaudit/cmd/cleanup"
	"cloudaudit/cmd/codebuild"
	"cloudaudit/cmd/ecr"
	initCmd "cloudaudit/cmd/init"
	"cloudaudit/cmd/inventory"
	"cloudaudit/cmd/list"
	"cloudaudit/cmd/s3security"
	"cloudaudit/cmd/version"
	"cloudaudit/internal/config"
	"cloudaudit/internal/logging"

	"github.com/spf13/cobra"
)

// skipConfig lists commands that run without loading configuration
var skipConfig = map[string]bool{
	"version":    true,
	"help":       true,
	"completion": true,
}

// NewRootCmd builds the command tree with its global flags
func NewRootCmd() *cobra.Command {
	var configFile string
	defaults := config.Default()

	rootCmd := &cobra.Command{
		Use:   "cloudaudit",
		Short: "cloudaudit - read-only AWS audit reports",
		Long: `cloudaudit audits an AWS account without changing it. It reports resources
that cost money while unused, the security posture of S3 buckets, CodeBuild
projects that are no longer built, and exports resource inventories.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipConfig[cmd.Name()] {
				return nil
			}

			if err := config.InitConfig(configFile); err != nil {
				return err
			}
			if err := config.BindFlags(cmd); err != nil {
				return err
			}
			cfg := config.Load()

			logging.Configure(logging.LogConfig{
				Level:  logging.ParseLevel(cfg.LogLevel),
				Format: logging.ParseFormat(cfg.LogFormat),
			})
			config.LogConfigurationSources(cmd)
			return nil
		},
	}

	// Add global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Path to config file (default: ./config.yaml)")
	flags.StringP("profile", "p", defaults.Profile, "AWS profile to use (default: the SDK credential chain)")
	flags.StringP("region", "r", defaults.Region, "Home AWS region (default: AWS_REGION or the profile's region)")
	flags.Int("max-retries", defaults.MaxRetries, "Retries for throttled or failed AWS API calls")
	flags.Int("max-workers", defaults.MaxWorkers, "Maximum number of concurrent workers")
	flags.String("log-format", defaults.LogFormat, "Log output format (text or json)")
	flags.String("log-level", defaults.LogLevel, "Set logging level (DEBUG, INFO, WARN, ERROR)")
	flags.String("output-dir", defaults.OutputDir, "Directory for report files")

	// Add commands
	rootCmd.AddCommand(cleanup.NewCleanupCmd())
	rootCmd.AddCommand(s3security.NewS3SecurityCmd())
	rootCmd.AddCommand(codebuild.NewCodeBuildCmd())
	rootCmd.AddCommand(inventory.NewInventoryCmd())
	rootCmd.AddCommand(ecr.NewECRCmd())
	rootCmd.AddCommand(list.NewListCmd())
	rootCmd.AddCommand(initCmd.NewInitCmd())
	rootCmd.AddCommand(version.NewVersionCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
