package list

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/undefinedlabs/go-mpatch"

	awspkg "cloudaudit/internal/aws"
	"cloudaudit/internal/report"
)

// captureOutput captures stdout and returns the captured output
func captureOutput(f func()) string {
	// Save original stdout
	oldStdout := os.Stdout

	// Create a pipe to capture stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	// Call the function that produces output
	f()

	// Close the writer and restore stdout
	w.Close()
	os.Stdout = oldStdout

	// Read the captured output
	var buf bytes.Buffer
	_, err := io.Copy(&buf, r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error copying output: %v\n", err)
	}

	return buf.String()
}

// Helper function to safely unpatch
func safeUnpatch(patch *mpatch.Patch) {
	if err := patch.Unpatch(); err != nil {
		fmt.Fprintf(os.Stderr, "Error unpatching: %v\n", err)
	}
}

// Test check implementation
type testCheck struct {
	name         string
	argumentName string
	label        string
}

func (c *testCheck) Name() string {
	return c.name
}

func (c *testCheck) ArgumentName() string {
	return c.argumentName
}

func (c *testCheck) Label() string {
	return c.label
}

func (c *testCheck) Run(ctx context.Context, opts awspkg.ScanOptions) (report.Findings, error) {
	return nil, nil
}

// TestNewListCmd tests the creation of the list command
func TestNewListCmd(t *testing.T) {
	cmd := NewListCmd()
	assert.NotNil(t, cmd)
	assert.Equal(t, "list", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	// Verify subcommands
	subcommands := cmd.Commands()
	expectedSubcommands := []string{
		"checks",
		"profiles",
	}

	assert.Len(t, subcommands, len(expectedSubcommands))
	for _, subcmd := range subcommands {
		assert.Contains(t, expectedSubcommands, subcmd.Name())
	}
}

// TestNewProfilesCmd tests the creation of the profiles command
func TestNewProfilesCmd(t *testing.T) {
	cmd := NewProfilesCmd()
	assert.NotNil(t, cmd)
	assert.Equal(t, "profiles", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.NotEmpty(t, cmd.Example)
}

// TestNewChecksCmd tests the creation of the checks command
func TestNewChecksCmd(t *testing.T) {
	cmd := NewChecksCmd()
	assert.NotNil(t, cmd)
	assert.Equal(t, "checks", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)
	assert.NotEmpty(t, cmd.Example)
}

// TestRunProfiles tests the runProfiles function
func TestRunProfiles(t *testing.T) {
	tests := []struct {
		name           string
		mockProfiles   []string
		mockError      error
		expectedOutput string
		expectError    bool
	}{
		{
			name: "list available profiles",
			mockProfiles: []string{
				"default",
				"dev",
				"prod",
			},
			expectedOutput: "default\ndev\nprod\n",
		},
		{
			name:           "no profiles found",
			mockProfiles:   []string{},
			expectedOutput: "",
		},
		{
			name:        "error listing profiles",
			mockError:   fmt.Errorf("mock error"),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Reset viper config before each test
			viper.Reset()

			// Patch the ListProfiles function
			patch, err := mpatch.PatchMethod(awspkg.ListProfiles, func() ([]string, error) {
				return tt.mockProfiles, tt.mockError
			})
			require.NoError(t, err)
			defer safeUnpatch(patch)

			var output string
			var cmdErr error

			if tt.expectError {
				cmdErr = runProfiles()
				assert.Error(t, cmdErr)
				assert.Contains(t, cmdErr.Error(), "failed to list profiles")
				return
			}

			output = captureOutput(func() {
				cmdErr = runProfiles()
			})

			assert.NoError(t, cmdErr)
			output = strings.ReplaceAll(output, "\r\n", "\n")
			assert.Equal(t, tt.expectedOutput, output)
		})
	}
}

// TestRunChecks tests the checks command RunE function
func TestRunChecks(t *testing.T) {
	tests := []struct {
		name           string
		checks         []*testCheck
		expectedOutput string
	}{
		{
			name: "list available checks in registration order",
			checks: []*testCheck{
				{name: "unused widgets", argumentName: "widgets", label: "Widgets"},
				{name: "idle gadgets", argumentName: "gadgets", label: "Gadgets"},
			},
			expectedOutput: "Available checks:\n" +
				fmt.Sprintf("  - %-16s %s\n", "widgets", "unused widgets") +
				fmt.Sprintf("  - %-16s %s\n", "gadgets", "idle gadgets"),
		},
		{
			name:           "no checks registered",
			expectedOutput: "No checks registered\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Save original registry
			originalRegistry := awspkg.DefaultRegistry
			defer func() { awspkg.DefaultRegistry = originalRegistry }()

			testRegistry := awspkg.NewRegistry()
			awspkg.DefaultRegistry = testRegistry
			for _, c := range tt.checks {
				testRegistry.MustRegister(c)
			}

			cmd := NewChecksCmd()

			var cmdErr error
			output := captureOutput(func() {
				cmdErr = cmd.RunE(cmd, nil)
			})

			assert.NoError(t, cmdErr)
			output = strings.ReplaceAll(output, "\r\n", "\n")
			assert.Equal(t, tt.expectedOutput, output)
		})
	}
}

// TestDefaultChecksRegistered verifies the cleanup checks are linked in
func TestDefaultChecksRegistered(t *testing.T) {
	assert.Equal(t, []string{
		"ebs-snapshots",
		"ebs-volumes",
		"ec2-instances",
		"elastic-ips",
		"load-balancers",
		"rds",
	}, awspkg.DefaultRegistry.Names())
}
