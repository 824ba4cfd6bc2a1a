package init

import (
	"fmt"

	"github.com/spf13/cobra"
)

const defaultConfigContent = `# cloudaudit Configuration File
#
# Precedence: command line flags, CLOUDAUDIT_* environment variables,
# this file, built-in defaults.

# AWS Configuration
aws:
  profile: ""  # AWS profile to use (empty: default credential chain)
  region: ""  # Home region (empty: AWS_REGION or the profile's region, then us-east-1)
  max_retries: 5  # SDK retries for throttled or failed API calls

# Application Configuration
app:
  max_workers: 10  # Maximum number of concurrent workers
  log_format: text  # Log output format (text or json)
  log_level: INFO  # Set logging level (DEBUG, INFO, WARN, ERROR)
  output_dir: .  # Directory for CSV, JSON and XLSX reports
`

// NewConfigCmd creates the config subcommand
func NewConfigCmd() *cobra.Command {
	var force bool
	var output string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create a default config.yaml file",
		Long: `Create a default config.yaml file with recommended settings.

The file will be created in the current directory by default.
You can specify a different location using the --output flag.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = "config.yaml"
			}

			path, err := writeDefaultFile(output, defaultConfigContent, force)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created config file: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default: ./config.yaml)")

	return cmd
}
