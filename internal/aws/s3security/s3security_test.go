package s3security

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/report"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bucketState struct {
	region       string
	policyPublic *bool // nil means GetBucketPolicyStatus fails
	blockAll     bool
	grantURI     string
	encrypted    bool
	versioning   string
	logging      bool
}

type stubS3 struct {
	s3iface.S3API
	mu      sync.Mutex
	buckets map[string]bucketState
	order   []string
	listErr error
	calls   map[string]int
}

func (s *stubS3) record(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[op]++
}

func noSuch(code string) error {
	return awserr.New(code, "not found", nil)
}

func (s *stubS3) ListBucketsWithContext(ctx aws.Context, in *s3.ListBucketsInput, opts ...request.Option) (*s3.ListBucketsOutput, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := &s3.ListBucketsOutput{}
	for _, name := range s.order {
		out.Buckets = append(out.Buckets, &s3.Bucket{Name: aws.String(name)})
	}
	return out, nil
}

func (s *stubS3) GetBucketLocationWithContext(ctx aws.Context, in *s3.GetBucketLocationInput, opts ...request.Option) (*s3.GetBucketLocationOutput, error) {
	s.record("location")
	return &s3.GetBucketLocationOutput{LocationConstraint: aws.String(s.buckets[*in.Bucket].region)}, nil
}

func (s *stubS3) GetBucketPolicyStatusWithContext(ctx aws.Context, in *s3.GetBucketPolicyStatusInput, opts ...request.Option) (*s3.GetBucketPolicyStatusOutput, error) {
	b := s.buckets[*in.Bucket]
	if b.policyPublic == nil {
		return nil, noSuch("NoSuchBucketPolicy")
	}
	return &s3.GetBucketPolicyStatusOutput{PolicyStatus: &s3.PolicyStatus{IsPublic: b.policyPublic}}, nil
}

func (s *stubS3) GetPublicAccessBlockWithContext(ctx aws.Context, in *s3.GetPublicAccessBlockInput, opts ...request.Option) (*s3.GetPublicAccessBlockOutput, error) {
	b := s.buckets[*in.Bucket]
	if !b.blockAll {
		return nil, noSuch("NoSuchPublicAccessBlockConfiguration")
	}
	return &s3.GetPublicAccessBlockOutput{PublicAccessBlockConfiguration: &s3.PublicAccessBlockConfiguration{
		BlockPublicAcls:       aws.Bool(true),
		IgnorePublicAcls:      aws.Bool(true),
		BlockPublicPolicy:     aws.Bool(true),
		RestrictPublicBuckets: aws.Bool(true),
	}}, nil
}

func (s *stubS3) GetBucketAclWithContext(ctx aws.Context, in *s3.GetBucketAclInput, opts ...request.Option) (*s3.GetBucketAclOutput, error) {
	b := s.buckets[*in.Bucket]
	grants := []*s3.Grant{{Grantee: &s3.Grantee{ID: aws.String("owner")}, Permission: aws.String("FULL_CONTROL")}}
	if b.grantURI != "" {
		grants = append(grants, &s3.Grant{Grantee: &s3.Grantee{URI: aws.String(b.grantURI)}, Permission: aws.String("READ")})
	}
	return &s3.GetBucketAclOutput{Grants: grants}, nil
}

func (s *stubS3) GetBucketEncryptionWithContext(ctx aws.Context, in *s3.GetBucketEncryptionInput, opts ...request.Option) (*s3.GetBucketEncryptionOutput, error) {
	if !s.buckets[*in.Bucket].encrypted {
		return nil, noSuch("ServerSideEncryptionConfigurationNotFoundError")
	}
	return &s3.GetBucketEncryptionOutput{ServerSideEncryptionConfiguration: &s3.ServerSideEncryptionConfiguration{
		Rules: []*s3.ServerSideEncryptionRule{{}},
	}}, nil
}

func (s *stubS3) GetBucketVersioningWithContext(ctx aws.Context, in *s3.GetBucketVersioningInput, opts ...request.Option) (*s3.GetBucketVersioningOutput, error) {
	out := &s3.GetBucketVersioningOutput{}
	if v := s.buckets[*in.Bucket].versioning; v != "" {
		out.Status = aws.String(v)
	}
	return out, nil
}

func (s *stubS3) GetBucketLoggingWithContext(ctx aws.Context, in *s3.GetBucketLoggingInput, opts ...request.Option) (*s3.GetBucketLoggingOutput, error) {
	out := &s3.GetBucketLoggingOutput{}
	if s.buckets[*in.Bucket].logging {
		out.LoggingEnabled = &s3.LoggingEnabled{TargetBucket: aws.String("logs")}
	}
	return out, nil
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		posture  Posture
		severity string
		pab      string
		reason   string
	}{
		{
			name:     "fully hardened",
			posture:  Posture{Bucket: "b", AllPublicBlocksOn: true, EncryptionRules: 1, VersioningEnabled: true, LoggingEnabled: true},
			severity: report.SeverityLow,
			pab:      AccessBlocked,
			reason:   "No issues found",
		},
		{
			name:     "no policy and no encryption",
			posture:  Posture{Bucket: "b", PolicyStatusErr: true, VersioningEnabled: true, LoggingEnabled: true},
			severity: report.SeverityHigh,
			pab:      AccessNotConfigured,
			reason:   "default encryption disabled",
		},
		{
			name:     "public policy",
			posture:  Posture{Bucket: "b", PolicyPublic: true, EncryptionRules: 1, VersioningEnabled: true, LoggingEnabled: true},
			severity: report.SeverityHigh,
			pab:      AccessPublic,
			reason:   "bucket policy is public",
		},
		{
			name:     "encrypted without versioning or logging",
			posture:  Posture{Bucket: "b", EncryptionRules: 2},
			severity: report.SeverityMedium,
			pab:      AccessRestricted,
			reason:   "versioning disabled; access logging disabled",
		},
		{
			name:     "public ACL lists every reason",
			posture:  Posture{Bucket: "b", ACLGrantsPublic: true},
			severity: report.SeverityHigh,
			pab:      AccessRestricted,
			reason:   "ACL grants public access; default encryption disabled; versioning disabled; access logging disabled",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Classify(tt.posture)
			assert.Equal(t, tt.severity, f.Severity)
			assert.Equal(t, tt.pab, f.PublicAccessBlock)
			assert.Equal(t, tt.reason, f.Reason)
			assert.Equal(t, f, Classify(tt.posture))
		})
	}
}

func TestGrantsPublic(t *testing.T) {
	assert.False(t, GrantsPublic(nil))
	assert.False(t, GrantsPublic([]*s3.Grant{{}}))
	assert.True(t, GrantsPublic([]*s3.Grant{{Grantee: &s3.Grantee{URI: aws.String(AllUsersURI)}}}))
	assert.True(t, GrantsPublic([]*s3.Grant{{Grantee: &s3.Grantee{URI: aws.String(AuthenticatedUsersURI)}}}))
	assert.False(t, GrantsPublic([]*s3.Grant{{Grantee: &s3.Grantee{URI: aws.String("http://acs.amazonaws.com/groups/s3/LogDelivery")}}}))
}

func TestAuditorRun(t *testing.T) {
	svc := &stubS3{
		order: []string{"public-site", "locked-down", "legacy"},
		buckets: map[string]bucketState{
			"public-site": {grantURI: AllUsersURI, policyPublic: aws.Bool(true), encrypted: true},
			"locked-down": {region: "eu-west-1", policyPublic: aws.Bool(false), blockAll: true, encrypted: true, versioning: "Enabled", logging: true},
			"legacy":      {encrypted: true, versioning: "Suspended"},
		},
	}

	var mu sync.Mutex
	regions := map[string]bool{}
	auditor := &Auditor{
		S3: svc,
		ClientFor: func(region string) s3iface.S3API {
			mu.Lock()
			regions[region] = true
			mu.Unlock()
			return svc
		},
		Workers: 2,
	}

	findings, err := auditor.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, findings, 3)

	assert.Equal(t, "public-site", findings[0].Bucket)
	assert.True(t, findings[0].ACLPublic)
	assert.True(t, findings[0].PolicyPublic)
	assert.Equal(t, AccessPublic, findings[0].PublicAccessBlock)
	assert.Equal(t, report.SeverityHigh, findings[0].Severity)

	assert.Equal(t, BucketFinding{
		Bucket:            "locked-down",
		PublicAccessBlock: AccessBlocked,
		Encryption:        "Enabled",
		Versioning:        "Enabled",
		Logging:           "Enabled",
		Severity:          report.SeverityLow,
		Reason:            "No issues found",
	}, findings[1])

	assert.Equal(t, AccessNotConfigured, findings[2].PublicAccessBlock)
	assert.Equal(t, "Disabled", findings[2].Versioning)
	assert.Equal(t, report.SeverityMedium, findings[2].Severity)

	assert.Equal(t, map[string]bool{"us-east-1": true, "eu-west-1": true}, regions)
	assert.Equal(t, 3, svc.calls["location"])
}

func TestAuditorListFailureAborts(t *testing.T) {
	auditor := &Auditor{S3: &stubS3{listErr: awserr.New("AccessDenied", "denied", nil)}}
	_, err := auditor.Run(context.Background())
	require.Error(t, err)
	var aerr awserr.Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, "AccessDenied", aerr.Code())
}

func TestAuditorNoBuckets(t *testing.T) {
	auditor := &Auditor{S3: &stubS3{}, ClientFor: awslib.StaticS3Factory(&stubS3{})}
	findings, err := auditor.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, findings)

	path := filepath.Join(t.TempDir(), "s3.csv")
	require.NoError(t, report.WriteCSV(path, findings))
	var parsed []BucketFinding
	require.NoError(t, report.ReadCSV(path, &parsed))
	assert.Empty(t, parsed)
}

func TestBucketFindingRoundTrip(t *testing.T) {
	in := []BucketFinding{
		Classify(Posture{Bucket: "a", ACLGrantsPublic: true}),
		Classify(Posture{Bucket: "b", AllPublicBlocksOn: true, EncryptionRules: 1, VersioningEnabled: true, LoggingEnabled: true}),
	}
	path := filepath.Join(t.TempDir(), "s3.csv")
	require.NoError(t, report.WriteCSV(path, in))

	var out []BucketFinding
	require.NoError(t, report.ReadCSV(path, &out))
	assert.Equal(t, in, out)
}
