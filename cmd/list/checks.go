package list

import (
	"fmt"

	"cloudaudit/internal/aws"
	"github.com/spf13/cobra"
)

// NewChecksCmd creates and returns the checks command
func NewChecksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checks",
		Short: "List available cost cleanup checks",
		Long: `List every check the cleanup command can run. The argument name is the
value accepted by cleanup --checks.`,
		Example: `  # List all available checks
  cloudaudit list checks`,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := aws.DefaultRegistry.All()
			if len(checks) == 0 {
				fmt.Println("No checks registered")
				return nil
			}

			fmt.Println("Available checks:")
			for _, c := range checks {
				fmt.Printf("  - %-16s %s\n", c.ArgumentName(), c.Name())
			}
			return nil
		},
	}

	return cmd
}
