package aws

import (
	"cloudaudit/internal/report"

	"github.com/aws/aws-sdk-go/aws"
)

// Env carries the AWS handles a command needs. Commands build one per run
// from an explicit Config; tests assemble one from stub clients.
type Env struct {
	// Region is the home region of the run
	Region string
	// ClientsFor returns the service clients for a region
	ClientsFor func(region string) *Clients
	// S3For returns an S3 client for the region a bucket lives in
	S3For S3ClientFactory
	// NewUploader returns a report uploader for bucket using region
	NewUploader func(region, bucket string) *report.Uploader
}

// NewEnv creates a session from cfg and wires cached per-region clients.
// The home region is the one the session resolved: cfg.Region, then AWS_REGION
// or the profile's region, then DefaultRegion.
func NewEnv(cfg Config) (*Env, error) {
	sess, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}

	region := aws.StringValue(sess.Config.Region)

	return &Env{
		Region:     region,
		ClientsFor: NewClientsFactory(sess),
		S3For:      NewS3ClientFactory(sess),
		NewUploader: func(region, bucket string) *report.Uploader {
			return report.NewUploader(GetSessionInRegion(sess, region), bucket)
		},
	}, nil
}

// Home returns the clients for the home region
func (e *Env) Home() *Clients {
	return e.ClientsFor(e.Region)
}
