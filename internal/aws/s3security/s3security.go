// Package s3security audits the public exposure and data protection settings of every bucket.
package s3security

import (
	"context"
	"fmt"
	"strings"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/logging"
	"cloudaudit/internal/report"
	"cloudaudit/internal/worker"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// Grantee group URIs that make an ACL public
const (
	AllUsersURI           = "http://acs.amazonaws.com/groups/global/AllUsers"
	AuthenticatedUsersURI = "http://acs.amazonaws.com/groups/global/AuthenticatedUsers"
)

// PublicAccessBlock values
const (
	AccessBlocked       = "Blocked"
	AccessRestricted    = "Restricted"
	AccessPublic        = "Public"
	AccessNotConfigured = "NotConfigured"
)

const (
	enabled  = "Enabled"
	disabled = "Disabled"
)

// BucketFinding is one row of the bucket security report
type BucketFinding struct {
	Bucket            string `csv:"Bucket" json:"Bucket"`
	PublicAccessBlock string `csv:"PublicAccessBlock" json:"PublicAccessBlock"`
	ACLPublic         bool   `csv:"ACL_Public" json:"ACL_Public"`
	PolicyPublic      bool   `csv:"Policy_Public" json:"Policy_Public"`
	Encryption        string `csv:"Encryption" json:"Encryption"`
	Versioning        string `csv:"Versioning" json:"Versioning"`
	Logging           string `csv:"Logging" json:"Logging"`
	Severity          string `csv:"Severity" json:"Severity"`
	Reason            string `csv:"Reason" json:"Reason"`
}

// Posture holds the raw settings read for one bucket
type Posture struct {
	Bucket            string
	PolicyStatusErr   bool // GetBucketPolicyStatus failed, usually because no policy exists
	PolicyPublic      bool
	AllPublicBlocksOn bool
	ACLGrantsPublic   bool
	EncryptionRules   int
	VersioningEnabled bool
	LoggingEnabled    bool
}

// Classify converts a bucket posture into a finding.
// Public ACL, public policy or missing encryption is High; otherwise missing
// versioning or logging is Medium; otherwise Low.
func Classify(p Posture) BucketFinding {
	f := BucketFinding{
		Bucket:       p.Bucket,
		ACLPublic:    p.ACLGrantsPublic,
		PolicyPublic: p.PolicyPublic,
		Encryption:   disabled,
		Versioning:   disabled,
		Logging:      disabled,
	}

	switch {
	case p.AllPublicBlocksOn:
		f.PublicAccessBlock = AccessBlocked
	case p.PolicyStatusErr:
		f.PublicAccessBlock = AccessNotConfigured
	case p.PolicyPublic:
		f.PublicAccessBlock = AccessPublic
	default:
		f.PublicAccessBlock = AccessRestricted
	}
	if p.EncryptionRules > 0 {
		f.Encryption = enabled
	}
	if p.VersioningEnabled {
		f.Versioning = enabled
	}
	if p.LoggingEnabled {
		f.Logging = enabled
	}

	var high, medium []string
	if f.ACLPublic {
		high = append(high, "ACL grants public access")
	}
	if f.PolicyPublic {
		high = append(high, "bucket policy is public")
	}
	if f.Encryption == disabled {
		high = append(high, "default encryption disabled")
	}
	if f.Versioning == disabled {
		medium = append(medium, "versioning disabled")
	}
	if f.Logging == disabled {
		medium = append(medium, "access logging disabled")
	}

	switch {
	case len(high) > 0:
		f.Severity = report.SeverityHigh
	case len(medium) > 0:
		f.Severity = report.SeverityMedium
	default:
		f.Severity = report.SeverityLow
	}

	reasons := append(append([]string{}, high...), medium...)
	if len(reasons) == 0 {
		f.Reason = "No issues found"
	} else {
		f.Reason = strings.Join(reasons, "; ")
	}
	return f
}

// GrantsPublic reports whether any grant targets the AllUsers or AuthenticatedUsers group
func GrantsPublic(grants []*s3.Grant) bool {
	for _, grant := range grants {
		if grant.Grantee == nil {
			continue
		}
		switch aws.StringValue(grant.Grantee.URI) {
		case AllUsersURI, AuthenticatedUsersURI:
			return true
		}
	}
	return false
}

// Auditor reads the security posture of every bucket in the account
type Auditor struct {
	// S3 lists buckets and resolves their regions
	S3 s3iface.S3API
	// ClientFor returns the client used for per-bucket reads in a region
	ClientFor awslib.S3ClientFactory
	// Workers bounds the number of buckets read concurrently
	Workers int
}

// Run lists every bucket and returns one finding per bucket in listing order.
// A ListBuckets failure aborts; per-bucket read failures degrade to defaults.
func (a *Auditor) Run(ctx context.Context) ([]BucketFinding, error) {
	out, err := a.S3.ListBucketsWithContext(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, aws.StringValue(b.Name))
	}
	logging.Info(fmt.Sprintf("Found %d buckets", len(names)))

	workers := a.Workers
	if workers <= 0 {
		workers = 1
	}

	results := worker.Run(ctx, workers, names, func(ctx context.Context, bucket string) (BucketFinding, error) {
		logging.Progress(fmt.Sprintf("Checking %s...", bucket))
		return Classify(a.readPosture(ctx, bucket)), nil
	})

	findings, failed := worker.Split(results)
	if len(failed) > 0 {
		return nil, fmt.Errorf("failed to check bucket %s: %w", failed[0].Key, failed[0].Err)
	}
	return findings, nil
}

// readPosture performs the per-bucket reads, treating each failure as the unset state
func (a *Auditor) readPosture(ctx context.Context, bucket string) Posture {
	p := Posture{Bucket: bucket}
	in := aws.String(bucket)

	svc := a.S3
	if a.ClientFor != nil {
		if region, err := awslib.BucketRegion(ctx, a.S3, bucket); err == nil {
			svc = a.ClientFor(region)
		} else {
			logging.Debug("Falling back to home region client", map[string]interface{}{
				"bucket": bucket,
				"error":  err.Error(),
			})
		}
	}

	if status, err := svc.GetBucketPolicyStatusWithContext(ctx, &s3.GetBucketPolicyStatusInput{Bucket: in}); err != nil {
		p.PolicyStatusErr = true
	} else if status.PolicyStatus != nil {
		p.PolicyPublic = aws.BoolValue(status.PolicyStatus.IsPublic)
	}

	if pab, err := svc.GetPublicAccessBlockWithContext(ctx, &s3.GetPublicAccessBlockInput{Bucket: in}); err == nil && pab.PublicAccessBlockConfiguration != nil {
		c := pab.PublicAccessBlockConfiguration
		p.AllPublicBlocksOn = aws.BoolValue(c.BlockPublicAcls) && aws.BoolValue(c.IgnorePublicAcls) &&
			aws.BoolValue(c.BlockPublicPolicy) && aws.BoolValue(c.RestrictPublicBuckets)
	}

	if acl, err := svc.GetBucketAclWithContext(ctx, &s3.GetBucketAclInput{Bucket: in}); err == nil {
		p.ACLGrantsPublic = GrantsPublic(acl.Grants)
	}

	if enc, err := svc.GetBucketEncryptionWithContext(ctx, &s3.GetBucketEncryptionInput{Bucket: in}); err == nil && enc.ServerSideEncryptionConfiguration != nil {
		p.EncryptionRules = len(enc.ServerSideEncryptionConfiguration.Rules)
	}

	if v, err := svc.GetBucketVersioningWithContext(ctx, &s3.GetBucketVersioningInput{Bucket: in}); err == nil {
		p.VersioningEnabled = aws.StringValue(v.Status) == s3.BucketVersioningStatusEnabled
	}

	if l, err := svc.GetBucketLoggingWithContext(ctx, &s3.GetBucketLoggingInput{Bucket: in}); err == nil {
		p.LoggingEnabled = l.LoggingEnabled != nil
	}

	return p
}
