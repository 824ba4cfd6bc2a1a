package aws

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// BucketRegion returns the region a bucket lives in
func BucketRegion(ctx context.Context, svc s3iface.S3API, bucket string) (string, error) {
	out, err := svc.GetBucketLocationWithContext(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get location of bucket %s: %w", bucket, err)
	}
	return s3.NormalizeBucketLocation(aws.StringValue(out.LocationConstraint)), nil
}

// S3ClientFactory returns an S3 client bound to region
type S3ClientFactory func(region string) s3iface.S3API

// NewS3ClientFactory returns a factory that caches one client per region
func NewS3ClientFactory(sess *session.Session) S3ClientFactory {
	var mu sync.Mutex
	clients := make(map[string]s3iface.S3API)
	return func(region string) s3iface.S3API {
		mu.Lock()
		defer mu.Unlock()
		if c, ok := clients[region]; ok {
			return c
		}
		c := s3.New(GetSessionInRegion(sess, region))
		clients[region] = c
		return c
	}
}

// StaticS3Factory always returns svc
func StaticS3Factory(svc s3iface.S3API) S3ClientFactory {
	return func(string) s3iface.S3API { return svc }
}
