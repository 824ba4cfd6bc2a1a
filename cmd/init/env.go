package init

import (
	"fmt"
	"strings"

	"cloudaudit/internal/config"

	"github.com/spf13/cobra"
)

// envTemplate lists every environment override with its default value
func envTemplate() string {
	defaults := config.Default()

	var b strings.Builder
	b.WriteString("# cloudaudit environment overrides\n")
	b.WriteString("# Load with: set -a; . ./.env; set +a\n\n")
	for _, v := range []struct {
		key   string
		value interface{}
	}{
		{"aws.profile", defaults.Profile},
		{"aws.region", defaults.Region},
		{"aws.max_retries", defaults.MaxRetries},
		{"app.max_workers", defaults.MaxWorkers},
		{"app.log_format", defaults.LogFormat},
		{"app.log_level", defaults.LogLevel},
		{"app.output_dir", defaults.OutputDir},
	} {
		fmt.Fprintf(&b, "%s=%v\n", config.EnvKey(v.key), v.value)
	}
	return b.String()
}

// NewEnvCmd creates the env subcommand
func NewEnvCmd() *cobra.Command {
	var force bool
	var output string

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Create a default .env file",
		Long: `Create a .env file that sets every CLOUDAUDIT_* environment variable to its
default value. Environment variables override config.yaml but not flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = ".env"
			}

			path, err := writeDefaultFile(output, envTemplate(), force)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created env file: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing file")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (default: ./.env)")

	return cmd
}
