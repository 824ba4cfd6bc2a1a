package aws

import (
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"

	"cloudaudit/internal/logging"
)

// DefaultRegion is used when neither the flag nor the shared config names one
const DefaultRegion = "us-east-1"

const httpTimeout = 60 * time.Second

// Config is the explicit connection configuration handed to every enumerator
type Config struct {
	Profile    string // Shared config profile, empty for the default credential chain
	Region     string // Home region for global APIs and the first client
	MaxRetries int    // SDK retry count for throttled or transient failures
}

// NewSession creates a new AWS session from an explicit configuration
func NewSession(cfg Config) (*session.Session, error) {
	awsCfg := aws.NewConfig().WithHTTPClient(&http.Client{Timeout: httpTimeout})
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.MaxRetries > 0 {
		awsCfg = awsCfg.WithMaxRetries(cfg.MaxRetries)
	}

	logging.Debug("Creating AWS session", map[string]interface{}{
		"profile":     cfg.Profile,
		"region":      cfg.Region,
		"max_retries": cfg.MaxRetries,
	})

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *awsCfg,
		Profile:           cfg.Profile,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	if aws.StringValue(sess.Config.Region) == "" {
		sess.Config.Region = aws.String(DefaultRegion)
	}
	return sess, nil
}

// GetSessionInRegion returns a copy of sess bound to region, sharing its credentials
func GetSessionInRegion(sess *session.Session, region string) *session.Session {
	if region == "" || region == aws.StringValue(sess.Config.Region) {
		return sess
	}
	return sess.Copy(aws.NewConfig().WithRegion(region))
}
