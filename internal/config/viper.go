package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"cloudaudit/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable override
const EnvPrefix = "CLOUDAUDIT"

// flagNames maps config keys to the root persistent flags that override them
var flagNames = map[string]string{
	"aws.profile":     "profile",
	"aws.region":      "region",
	"aws.max_retries": "max-retries",
	"app.max_workers": "max-workers",
	"app.log_format":  "log-format",
	"app.log_level":   "log-level",
	"app.output_dir":  "output-dir",
}

// keys lists every configuration key in a stable order
var keys = []string{
	"aws.profile",
	"aws.region",
	"aws.max_retries",
	"app.max_workers",
	"app.log_format",
	"app.log_level",
	"app.output_dir",
}

// parameterSource tracks where each parameter value came from
type parameterSource struct {
	Key    string
	Value  interface{}
	Source string
}

// EnvKey returns the environment variable that overrides a config key
func EnvKey(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// getParameterSource determines where a parameter value came from (flag, env var, config file or default)
func getParameterSource(key string, cmd *cobra.Command) parameterSource {
	value := viper.Get(key)

	if cmd != nil {
		if f := lookupFlag(cmd, flagNames[key]); f != nil && f.Changed {
			return parameterSource{key, value, "command line flag"}
		}
	}

	if _, exists := os.LookupEnv(EnvKey(key)); exists {
		return parameterSource{key, value, "environment variable"}
	}

	if viper.InConfig(key) {
		return parameterSource{key, value, "config file"}
	}

	return parameterSource{key, value, "default value"}
}

// lookupFlag walks up the command chain looking for a local or persistent flag
func lookupFlag(cmd *cobra.Command, name string) *pflag.Flag {
	if name == "" {
		return nil
	}
	if f := cmd.Flags().Lookup(name); f != nil {
		return f
	}
	for current := cmd; current != nil; current = current.Parent() {
		if f := current.PersistentFlags().Lookup(name); f != nil {
			return f
		}
	}
	return nil
}

// LogConfigurationSources logs the source of each configuration parameter at DEBUG level
func LogConfigurationSources(cmd *cobra.Command) {
	logging.Debug("Configuration parameter sources:")
	for _, key := range keys {
		source := getParameterSource(key, cmd)
		logging.Debug(fmt.Sprintf("  %s = %v (from %s)", source.Key, source.Value, source.Source))
	}
}

// InitConfig registers defaults and environment overrides and reads the config file.
// An explicit configFile must exist; the implicit ./config.yaml is optional.
func InitConfig(configFile string) error {
	defaults := Default()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("aws.profile", defaults.Profile)
	viper.SetDefault("aws.region", defaults.Region)
	viper.SetDefault("aws.max_retries", defaults.MaxRetries)
	viper.SetDefault("app.max_workers", defaults.MaxWorkers)
	viper.SetDefault("app.log_format", defaults.LogFormat)
	viper.SetDefault("app.log_level", defaults.LogLevel)
	viper.SetDefault("app.output_dir", defaults.OutputDir)

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// BindFlags binds the root persistent flags of cmd to their config keys
func BindFlags(cmd *cobra.Command) error {
	root := cmd.Root()
	for key, name := range flagNames {
		f := root.PersistentFlags().Lookup(name)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load copies the resolved viper values into Config and returns it
func Load() *GlobalConfig {
	Config = &GlobalConfig{
		Profile:    viper.GetString("aws.profile"),
		Region:     viper.GetString("aws.region"),
		MaxRetries: viper.GetInt("aws.max_retries"),
		MaxWorkers: viper.GetInt("app.max_workers"),
		LogFormat:  viper.GetString("app.log_format"),
		LogLevel:   viper.GetString("app.log_level"),
		OutputDir:  viper.GetString("app.output_dir"),
	}
	return Config
}
