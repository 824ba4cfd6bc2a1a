package inventory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/aws/s3security"
	"cloudaudit/internal/logging"
	"cloudaudit/internal/worker"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// Bucket is one row of the S3 bucket inventory. Columns whose read failed are empty.
type Bucket struct {
	BucketName        string `csv:"BucketName" json:"BucketName"`
	CreationDate      string `csv:"CreationDate" json:"CreationDate"`
	Region            string `csv:"Region" json:"Region"`
	Encryption        string `csv:"Encryption" json:"Encryption"`
	Versioning        string `csv:"Versioning" json:"Versioning"`
	LifecycleRules    string `csv:"LifecycleRules" json:"LifecycleRules"`
	ACLPublic         string `csv:"ACL_Public" json:"ACL_Public"`
	PolicyPublic      string `csv:"Policy_Public" json:"Policy_Public"`
	PublicAccessBlock string `csv:"PublicAccessBlock" json:"PublicAccessBlock"`
	ObjectLock        string `csv:"ObjectLock" json:"ObjectLock"`
	TotalObjects      string `csv:"TotalObjects" json:"TotalObjects"`
	TotalBytes        string `csv:"TotalBytes" json:"TotalBytes"`
}

// Object is one row of the S3 object listing
type Object struct {
	BucketName   string `csv:"BucketName" json:"BucketName"`
	Key          string `csv:"Key" json:"Key"`
	SizeBytes    int64  `csv:"SizeBytes" json:"SizeBytes"`
	SizeMB       string `csv:"SizeMB" json:"SizeMB"`
	LastModified string `csv:"LastModified" json:"LastModified"`
	StorageClass string `csv:"StorageClass" json:"StorageClass"`
	ETag         string `csv:"ETag" json:"ETag"`
}

// S3Options controls the S3 inventory
type S3Options struct {
	// Home is used for ListBuckets and bucket location lookups
	Home s3iface.S3API
	// ClientFor returns the client used for per-bucket reads in a region
	ClientFor awslib.S3ClientFactory
	// IncludeObjects also returns one row per object
	IncludeObjects bool
}

type bucketInventory struct {
	bucket  Bucket
	objects []Object
}

// ObjectRow builds the listing row for obj
func ObjectRow(bucket string, obj *s3.Object) Object {
	size := aws.Int64Value(obj.Size)
	row := Object{
		BucketName:   bucket,
		Key:          aws.StringValue(obj.Key),
		SizeBytes:    size,
		SizeMB:       strconv.FormatFloat(float64(size)/(1024*1024), 'f', 4, 64),
		LastModified: formatTime(obj.LastModified),
		StorageClass: aws.StringValue(obj.StorageClass),
		ETag:         aws.StringValue(obj.ETag),
	}
	if row.StorageClass == "" {
		row.StorageClass = s3.ObjectStorageClassStandard
	}
	return row
}

// DescribePublicAccessBlock renders the four block flags
func DescribePublicAccessBlock(c *s3.PublicAccessBlockConfiguration) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("BlockPublicAcls=%t,IgnorePublicAcls=%t,BlockPublicPolicy=%t,RestrictPublicBuckets=%t",
		aws.BoolValue(c.BlockPublicAcls), aws.BoolValue(c.IgnorePublicAcls),
		aws.BoolValue(c.BlockPublicPolicy), aws.BoolValue(c.RestrictPublicBuckets))
}

// DescribeEncryption lists the default encryption algorithms, with the KMS key when set
func DescribeEncryption(cfg *s3.ServerSideEncryptionConfiguration) string {
	if cfg == nil {
		return ""
	}
	var algos []string
	for _, rule := range cfg.Rules {
		def := rule.ApplyServerSideEncryptionByDefault
		if def == nil {
			continue
		}
		algo := aws.StringValue(def.SSEAlgorithm)
		if key := aws.StringValue(def.KMSMasterKeyID); key != "" {
			algo = fmt.Sprintf("%s(%s)", algo, key)
		}
		algos = append(algos, algo)
	}
	return strings.Join(algos, ", ")
}

// S3 inventories every bucket, and its objects when requested
func (c *Collector) S3(ctx context.Context, opts S3Options) ([]Bucket, []Object, error) {
	out, err := opts.Home.ListBucketsWithContext(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	names := make([]string, 0, len(out.Buckets))
	created := make(map[string]string, len(out.Buckets))
	for _, b := range out.Buckets {
		name := aws.StringValue(b.Name)
		names = append(names, name)
		created[name] = formatTime(b.CreationDate)
	}
	logging.Info(fmt.Sprintf("Found %d buckets", len(names)))

	results := worker.Run(ctx, c.workers(), names, func(ctx context.Context, name string) (bucketInventory, error) {
		logging.Progress(fmt.Sprintf("Processing bucket: %s", name))
		inv := c.readBucket(ctx, opts, name)
		inv.bucket.CreationDate = created[name]
		return inv, nil
	})

	inventories, failed := worker.Split(results)
	if len(failed) > 0 {
		return nil, nil, fmt.Errorf("failed to inventory bucket %s: %w", failed[0].Key, failed[0].Err)
	}

	buckets := make([]Bucket, 0, len(inventories))
	var objects []Object
	for _, inv := range inventories {
		buckets = append(buckets, inv.bucket)
		objects = append(objects, inv.objects...)
	}
	return buckets, objects, nil
}

// readBucket performs the per-bucket reads. Each failed read leaves its column empty.
func (c *Collector) readBucket(ctx context.Context, opts S3Options, name string) bucketInventory {
	b := Bucket{BucketName: name}
	in := aws.String(name)

	svc := opts.Home
	if region, err := awslib.BucketRegion(ctx, opts.Home, name); err != nil {
		logging.Warn(fmt.Sprintf("Region lookup failed for bucket %s: %v", name, err))
	} else {
		b.Region = region
		if opts.ClientFor != nil {
			svc = opts.ClientFor(region)
		}
	}

	if enc, err := svc.GetBucketEncryptionWithContext(ctx, &s3.GetBucketEncryptionInput{Bucket: in}); err == nil {
		b.Encryption = DescribeEncryption(enc.ServerSideEncryptionConfiguration)
	}

	if v, err := svc.GetBucketVersioningWithContext(ctx, &s3.GetBucketVersioningInput{Bucket: in}); err == nil {
		b.Versioning = aws.StringValue(v.Status)
	}

	if lc, err := svc.GetBucketLifecycleConfigurationWithContext(ctx, &s3.GetBucketLifecycleConfigurationInput{Bucket: in}); err == nil {
		b.LifecycleRules = strconv.Itoa(len(lc.Rules))
	}

	if acl, err := svc.GetBucketAclWithContext(ctx, &s3.GetBucketAclInput{Bucket: in}); err == nil {
		b.ACLPublic = strconv.FormatBool(s3security.GrantsPublic(acl.Grants))
	}

	if ps, err := svc.GetBucketPolicyStatusWithContext(ctx, &s3.GetBucketPolicyStatusInput{Bucket: in}); err == nil && ps.PolicyStatus != nil {
		b.PolicyPublic = strconv.FormatBool(aws.BoolValue(ps.PolicyStatus.IsPublic))
	}

	if pab, err := svc.GetPublicAccessBlockWithContext(ctx, &s3.GetPublicAccessBlockInput{Bucket: in}); err == nil {
		b.PublicAccessBlock = DescribePublicAccessBlock(pab.PublicAccessBlockConfiguration)
	}

	if lock, err := svc.GetObjectLockConfigurationWithContext(ctx, &s3.GetObjectLockConfigurationInput{Bucket: in}); err == nil && lock.ObjectLockConfiguration != nil {
		b.ObjectLock = aws.StringValue(lock.ObjectLockConfiguration.ObjectLockEnabled)
	}

	inv := bucketInventory{}
	var count, bytes int64
	err := svc.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{Bucket: in},
		func(page *s3.ListObjectsV2Output, lastPage bool) bool {
			for _, obj := range page.Contents {
				count++
				bytes += aws.Int64Value(obj.Size)
				if opts.IncludeObjects {
					inv.objects = append(inv.objects, ObjectRow(name, obj))
				}
			}
			return !lastPage
		})
	if err != nil {
		logging.Warn(fmt.Sprintf("Object listing failed for bucket %s: %v", name, err))
		inv.objects = nil
	} else {
		b.TotalObjects = strconv.FormatInt(count, 10)
		b.TotalBytes = strconv.FormatInt(bytes, 10)
	}

	inv.bucket = b
	return inv
}
