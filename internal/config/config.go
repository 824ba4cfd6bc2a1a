package config

import awslib "cloudaudit/internal/aws"

// GlobalConfig holds the global configuration for the application
type GlobalConfig struct {
	// Profile is the AWS profile to use; empty means the default credential chain
	Profile string

	// Region is the home AWS region. Empty defers to AWS_REGION or the profile.
	Region string

	// MaxRetries is the SDK retry count for throttled or failed API calls
	MaxRetries int

	// MaxWorkers defines the maximum number of concurrent workers
	MaxWorkers int

	// LogFormat is the format for logging
	LogFormat string

	// LogLevel is the minimum level that gets printed
	LogLevel string

	// OutputDir is where report files are written
	OutputDir string
}

// Config is the global configuration instance
var Config = Default()

// Default returns the built-in configuration values
func Default() *GlobalConfig {
	return &GlobalConfig{
		MaxRetries: 5,
		MaxWorkers: 10,
		LogFormat:  "text",
		LogLevel:   "INFO",
		OutputDir:  ".",
	}
}

// AWS returns the explicit AWS connection configuration
func (c *GlobalConfig) AWS() awslib.Config {
	return awslib.Config{
		Profile:    c.Profile,
		Region:     c.Region,
		MaxRetries: c.MaxRetries,
	}
}
