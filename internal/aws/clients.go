package aws

import (
	"sync"

	"cloudaudit/internal/aws/ratelimit"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/codebuild"
	"github.com/aws/aws-sdk-go/service/codebuild/codebuildiface"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/aws/aws-sdk-go/service/ecr"
	"github.com/aws/aws-sdk-go/service/ecr/ecriface"
	"github.com/aws/aws-sdk-go/service/elb"
	"github.com/aws/aws-sdk-go/service/elb/elbiface"
	"github.com/aws/aws-sdk-go/service/elbv2"
	"github.com/aws/aws-sdk-go/service/elbv2/elbv2iface"
	"github.com/aws/aws-sdk-go/service/iam"
	"github.com/aws/aws-sdk-go/service/iam/iamiface"
	"github.com/aws/aws-sdk-go/service/rds"
	"github.com/aws/aws-sdk-go/service/rds/rdsiface"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/sts"
	"github.com/aws/aws-sdk-go/service/sts/stsiface"
)

// Clients bundles the service clients for one region.
// Enumerators depend on these interfaces so tests can substitute stubs.
type Clients struct {
	Region    string
	EC2       ec2iface.EC2API
	ELB       elbiface.ELBAPI
	ELBv2     elbv2iface.ELBV2API
	RDS       rdsiface.RDSAPI
	S3        s3iface.S3API
	CodeBuild codebuildiface.CodeBuildAPI
	ECR       ecriface.ECRAPI
	IAM       iamiface.IAMAPI
	STS       stsiface.STSAPI
}

// NewClients creates service clients for region from sess
func NewClients(sess *session.Session, region string) *Clients {
	regional := GetSessionInRegion(sess, region)

	// IAM rate limits are account-wide, so every region shares one limiter
	iamClient := iam.New(regional)
	ratelimit.ForService(iam.ServiceName).Install(&iamClient.Handlers)

	return &Clients{
		Region:    region,
		EC2:       ec2.New(regional),
		ELB:       elb.New(regional),
		ELBv2:     elbv2.New(regional),
		RDS:       rds.New(regional),
		S3:        s3.New(regional),
		CodeBuild: codebuild.New(regional),
		ECR:       ecr.New(regional),
		IAM:       iamClient,
		STS:       sts.New(regional),
	}
}

// NewClientsFactory returns a function that builds the clients for a region
// once and reuses them on later calls
func NewClientsFactory(sess *session.Session) func(region string) *Clients {
	var mu sync.Mutex
	cache := make(map[string]*Clients)
	return func(region string) *Clients {
		mu.Lock()
		defer mu.Unlock()
		if c, ok := cache[region]; ok {
			return c
		}
		c := NewClients(sess, region)
		cache[region] = c
		return c
	}
}
