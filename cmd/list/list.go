package list

import (
	_ "cloudaudit/internal/aws/checks" // Import for side effects (check registration)
	"github.com/spf13/cobra"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List profiles and audit checks",
		Long: `List local configuration and the audits this tool can run.
Currently supports listing:
  - Available AWS credential profiles
  - Available cost cleanup checks`,
	}

	// Add subcommands
	cmd.AddCommand(NewProfilesCmd())
	cmd.AddCommand(NewChecksCmd())

	return cmd
}
