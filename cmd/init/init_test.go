package init

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cloudaudit/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewInitCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewInitCmd(t *testing.T) {
	cmd := NewInitCmd()
	assert.Equal(t, "init", cmd.Use)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"config", "env"}, names)
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, err := execute(t, "config", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created config file: "+path)

	// The generated file must load into the defaults
	viper.Reset()
	defer viper.Reset()
	require.NoError(t, config.InitConfig(path))
	loaded := config.Load()
	defer func() { config.Config = config.Default() }()

	assert.Equal(t, config.Default(), loaded)
	assert.True(t, viper.InConfig("app.output_dir"))
}

func TestInitConfigRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0644))

	_, err := execute(t, "config", "-o", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))

	_, err = execute(t, "config", "-o", path, "--force")
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, defaultConfigContent, string(data))
}

func TestInitEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	out, err := execute(t, "env", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Created env file: "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "CLOUDAUDIT_AWS_PROFILE=\n")
	assert.Contains(t, content, "CLOUDAUDIT_AWS_REGION=\n")
	assert.Contains(t, content, "CLOUDAUDIT_AWS_MAX_RETRIES=5\n")
	assert.Contains(t, content, "CLOUDAUDIT_APP_MAX_WORKERS=10\n")
	assert.Contains(t, content, "CLOUDAUDIT_APP_LOG_LEVEL=INFO\n")
	assert.Contains(t, content, "CLOUDAUDIT_APP_OUTPUT_DIR=.\n")
}
