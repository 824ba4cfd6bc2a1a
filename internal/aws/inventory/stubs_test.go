package inventory

import (
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	"github.com/aws/aws-sdk-go/service/rds"
	"github.com/aws/aws-sdk-go/service/rds/rdsiface"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

type stubEC2 struct {
	ec2iface.EC2API
	mu           sync.Mutex
	instances    []*ec2.Instance
	images       map[string]string
	volumes      []*ec2.Volume
	err          error
	imagesErr    error
	imageBatches [][]string
}

func (s *stubEC2) DescribeInstancesPagesWithContext(ctx aws.Context, in *ec2.DescribeInstancesInput, fn func(*ec2.DescribeInstancesOutput, bool) bool, opts ...request.Option) error {
	if s.err != nil {
		return s.err
	}
	fn(&ec2.DescribeInstancesOutput{Reservations: []*ec2.Reservation{{Instances: s.instances}}}, true)
	return nil
}

func (s *stubEC2) DescribeImagesWithContext(ctx aws.Context, in *ec2.DescribeImagesInput, opts ...request.Option) (*ec2.DescribeImagesOutput, error) {
	s.mu.Lock()
	s.imageBatches = append(s.imageBatches, aws.StringValueSlice(in.ImageIds))
	s.mu.Unlock()
	if s.imagesErr != nil {
		return nil, s.imagesErr
	}
	out := &ec2.DescribeImagesOutput{}
	for _, id := range in.ImageIds {
		if name, ok := s.images[aws.StringValue(id)]; ok {
			out.Images = append(out.Images, &ec2.Image{ImageId: id, Name: aws.String(name)})
		}
	}
	return out, nil
}

func (s *stubEC2) DescribeVolumesPagesWithContext(ctx aws.Context, in *ec2.DescribeVolumesInput, fn func(*ec2.DescribeVolumesOutput, bool) bool, opts ...request.Option) error {
	fn(&ec2.DescribeVolumesOutput{Volumes: s.volumes}, true)
	return nil
}

type stubRDS struct {
	rdsiface.RDSAPI
	instances []*rds.DBInstance
	tags      map[string][]*rds.Tag
	err       error
}

func (s *stubRDS) DescribeDBInstancesPagesWithContext(ctx aws.Context, in *rds.DescribeDBInstancesInput, fn func(*rds.DescribeDBInstancesOutput, bool) bool, opts ...request.Option) error {
	if s.err != nil {
		return s.err
	}
	fn(&rds.DescribeDBInstancesOutput{DBInstances: s.instances}, true)
	return nil
}

func (s *stubRDS) ListTagsForResourceWithContext(ctx aws.Context, in *rds.ListTagsForResourceInput, opts ...request.Option) (*rds.ListTagsForResourceOutput, error) {
	return &rds.ListTagsForResourceOutput{TagList: s.tags[aws.StringValue(in.ResourceName)]}, nil
}

type stubBucket struct {
	region  string
	objects []*s3.Object
	// failing makes every per-bucket read fail
	failing bool
}

type stubS3 struct {
	s3iface.S3API
	buckets map[string]stubBucket
	order   []string
	listErr error
}

func (s *stubS3) errFor(bucket *string) error {
	if s.buckets[aws.StringValue(bucket)].failing {
		return awsAccessDenied()
	}
	return nil
}

func (s *stubS3) ListBucketsWithContext(ctx aws.Context, in *s3.ListBucketsInput, opts ...request.Option) (*s3.ListBucketsOutput, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := &s3.ListBucketsOutput{}
	for _, name := range s.order {
		out.Buckets = append(out.Buckets, &s3.Bucket{Name: aws.String(name), CreationDate: aws.Time(testNow.AddDate(-1, 0, 0))})
	}
	return out, nil
}

func (s *stubS3) GetBucketLocationWithContext(ctx aws.Context, in *s3.GetBucketLocationInput, opts ...request.Option) (*s3.GetBucketLocationOutput, error) {
	if err := s.errFor(in.Bucket); err != nil {
		return nil, err
	}
	return &s3.GetBucketLocationOutput{LocationConstraint: aws.String(s.buckets[aws.StringValue(in.Bucket)].region)}, nil
}

func (s *stubS3) GetBucketEncryptionWithContext(ctx aws.Context, in *s3.GetBucketEncryptionInput, opts ...request.Option) (*s3.GetBucketEncryptionOutput, error) {
	if err := s.errFor(in.Bucket); err != nil {
		return nil, err
	}
	return &s3.GetBucketEncryptionOutput{ServerSideEncryptionConfiguration: &s3.ServerSideEncryptionConfiguration{
		Rules: []*s3.ServerSideEncryptionRule{{
			ApplyServerSideEncryptionByDefault: &s3.ServerSideEncryptionByDefault{SSEAlgorithm: aws.String("AES256")},
		}},
	}}, nil
}

func (s *stubS3) GetBucketVersioningWithContext(ctx aws.Context, in *s3.GetBucketVersioningInput, opts ...request.Option) (*s3.GetBucketVersioningOutput, error) {
	if err := s.errFor(in.Bucket); err != nil {
		return nil, err
	}
	return &s3.GetBucketVersioningOutput{Status: aws.String("Enabled")}, nil
}

func (s *stubS3) GetBucketLifecycleConfigurationWithContext(ctx aws.Context, in *s3.GetBucketLifecycleConfigurationInput, opts ...request.Option) (*s3.GetBucketLifecycleConfigurationOutput, error) {
	if err := s.errFor(in.Bucket); err != nil {
		return nil, err
	}
	return &s3.GetBucketLifecycleConfigurationOutput{Rules: []*s3.LifecycleRule{{}, {}}}, nil
}

func (s *stubS3) GetBucketAclWithContext(ctx aws.Context, in *s3.GetBucketAclInput, opts ...request.Option) (*s3.GetBucketAclOutput, error) {
	if err := s.errFor(in.Bucket); err != nil {
		return nil, err
	}
	return &s3.GetBucketAclOutput{}, nil
}

func (s *stubS3) GetBucketPolicyStatusWithContext(ctx aws.Context, in *s3.GetBucketPolicyStatusInput, opts ...request.Option) (*s3.GetBucketPolicyStatusOutput, error) {
	if err := s.errFor(in.Bucket); err != nil {
		return nil, err
	}
	return &s3.GetBucketPolicyStatusOutput{PolicyStatus: &s3.PolicyStatus{IsPublic: aws.Bool(false)}}, nil
}

func (s *stubS3) GetPublicAccessBlockWithContext(ctx aws.Context, in *s3.GetPublicAccessBlockInput, opts ...request.Option) (*s3.GetPublicAccessBlockOutput, error) {
	if err := s.errFor(in.Bucket); err != nil {
		return nil, err
	}
	return &s3.GetPublicAccessBlockOutput{PublicAccessBlockConfiguration: &s3.PublicAccessBlockConfiguration{
		BlockPublicAcls:       aws.Bool(true),
		IgnorePublicAcls:      aws.Bool(true),
		BlockPublicPolicy:     aws.Bool(true),
		RestrictPublicBuckets: aws.Bool(true),
	}}, nil
}

func (s *stubS3) GetObjectLockConfigurationWithContext(ctx aws.Context, in *s3.GetObjectLockConfigurationInput, opts ...request.Option) (*s3.GetObjectLockConfigurationOutput, error) {
	return nil, awsNotFound("ObjectLockConfigurationNotFoundError")
}

func (s *stubS3) ListObjectsV2PagesWithContext(ctx aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, opts ...request.Option) error {
	if err := s.errFor(in.Bucket); err != nil {
		return err
	}
	fn(&s3.ListObjectsV2Output{Contents: s.buckets[aws.StringValue(in.Bucket)].objects}, true)
	return nil
}

type stubUser struct {
	groups  []string
	managed []string
	inline  []string
	keys    []*iam.AccessKeyMetadata
	mfa     int
}

type stubIAM struct {
	iamiface.IAMAPI
	users       map[string]stubUser
	order       []string
	noPolicy    bool
	summaryErr  error
	lastUsedErr error
}

func (s *stubIAM) GetAccountSummaryWithContext(ctx aws.Context, in *iam.GetAccountSummaryInput, opts ...request.Option) (*iam.GetAccountSummaryOutput, error) {
	if s.summaryErr != nil {
		return nil, s.summaryErr
	}
	return &iam.GetAccountSummaryOutput{SummaryMap: map[string]*int64{
		"AccountMFAEnabled": aws.Int64(1),
		"Users":             aws.Int64(int64(len(s.order))),
		"Groups":            aws.Int64(2),
		"Roles":             aws.Int64(7),
		"Policies":          aws.Int64(3),
	}}, nil
}

func (s *stubIAM) GetAccountPasswordPolicyWithContext(ctx aws.Context, in *iam.GetAccountPasswordPolicyInput, opts ...request.Option) (*iam.GetAccountPasswordPolicyOutput, error) {
	if s.noPolicy {
		return nil, awsNotFound(iam.ErrCodeNoSuchEntityException)
	}
	return &iam.GetAccountPasswordPolicyOutput{PasswordPolicy: &iam.PasswordPolicy{MinimumPasswordLength: aws.Int64(14)}}, nil
}

func (s *stubIAM) ListUsersPagesWithContext(ctx aws.Context, in *iam.ListUsersInput, fn func(*iam.ListUsersOutput, bool) bool, opts ...request.Option) error {
	out := &iam.ListUsersOutput{}
	for _, name := range s.order {
		out.Users = append(out.Users, &iam.User{
			UserName:   aws.String(name),
			UserId:     aws.String("AID" + name),
			Arn:        aws.String("arn:aws:iam::123456789012:user/" + name),
			Path:       aws.String("/"),
			CreateDate: aws.Time(testNow.AddDate(0, -6, 0)),
		})
	}
	fn(out, true)
	return nil
}

func (s *stubIAM) ListGroupsForUserPagesWithContext(ctx aws.Context, in *iam.ListGroupsForUserInput, fn func(*iam.ListGroupsForUserOutput, bool) bool, opts ...request.Option) error {
	out := &iam.ListGroupsForUserOutput{}
	for _, g := range s.users[aws.StringValue(in.UserName)].groups {
		out.Groups = append(out.Groups, &iam.Group{GroupName: aws.String(g)})
	}
	fn(out, true)
	return nil
}

func (s *stubIAM) ListAttachedUserPoliciesPagesWithContext(ctx aws.Context, in *iam.ListAttachedUserPoliciesInput, fn func(*iam.ListAttachedUserPoliciesOutput, bool) bool, opts ...request.Option) error {
	out := &iam.ListAttachedUserPoliciesOutput{}
	for _, p := range s.users[aws.StringValue(in.UserName)].managed {
		out.AttachedPolicies = append(out.AttachedPolicies, &iam.AttachedPolicy{PolicyName: aws.String(p)})
	}
	fn(out, true)
	return nil
}

func (s *stubIAM) ListUserPoliciesPagesWithContext(ctx aws.Context, in *iam.ListUserPoliciesInput, fn func(*iam.ListUserPoliciesOutput, bool) bool, opts ...request.Option) error {
	fn(&iam.ListUserPoliciesOutput{PolicyNames: aws.StringSlice(s.users[aws.StringValue(in.UserName)].inline)}, true)
	return nil
}

func (s *stubIAM) ListAccessKeysPagesWithContext(ctx aws.Context, in *iam.ListAccessKeysInput, fn func(*iam.ListAccessKeysOutput, bool) bool, opts ...request.Option) error {
	fn(&iam.ListAccessKeysOutput{AccessKeyMetadata: s.users[aws.StringValue(in.UserName)].keys}, true)
	return nil
}

func (s *stubIAM) GetAccessKeyLastUsedWithContext(ctx aws.Context, in *iam.GetAccessKeyLastUsedInput, opts ...request.Option) (*iam.GetAccessKeyLastUsedOutput, error) {
	if s.lastUsedErr != nil {
		return nil, s.lastUsedErr
	}
	return &iam.GetAccessKeyLastUsedOutput{AccessKeyLastUsed: &iam.AccessKeyLastUsed{
		LastUsedDate: aws.Time(testNow.AddDate(0, 0, -3)),
		Region:       aws.String("us-east-1"),
		ServiceName:  aws.String("s3"),
	}}, nil
}

func (s *stubIAM) ListMFADevicesWithContext(ctx aws.Context, in *iam.ListMFADevicesInput, opts ...request.Option) (*iam.ListMFADevicesOutput, error) {
	out := &iam.ListMFADevicesOutput{}
	for i := 0; i < s.users[aws.StringValue(in.UserName)].mfa; i++ {
		out.MFADevices = append(out.MFADevices, &iam.MFADevice{})
	}
	return out, nil
}

func (s *stubIAM) ListSSHPublicKeysWithContext(ctx aws.Context, in *iam.ListSSHPublicKeysInput, opts ...request.Option) (*iam.ListSSHPublicKeysOutput, error) {
	return &iam.ListSSHPublicKeysOutput{}, nil
}

func (s *stubIAM) ListUserTagsWithContext(ctx aws.Context, in *iam.ListUserTagsInput, opts ...request.Option) (*iam.ListUserTagsOutput, error) {
	return &iam.ListUserTagsOutput{Tags: []*iam.Tag{{Key: aws.String("team"), Value: aws.String("platform")}}}, nil
}
