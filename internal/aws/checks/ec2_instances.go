package checks

import (
	"context"
	"fmt"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/report"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
)

// EC2InstanceCheck reports stopped instances
type EC2InstanceCheck struct{}

// Name implements Check interface
func (c *EC2InstanceCheck) Name() string {
	return "stopped EC2 instances"
}

// ArgumentName implements Check interface
func (c *EC2InstanceCheck) ArgumentName() string {
	return "ec2-instances"
}

// Label implements Check interface
func (c *EC2InstanceCheck) Label() string {
	return "Stopped EC2 instances"
}

// ClassifyInstance returns a Medium finding for a stopped instance
func ClassifyInstance(inst *ec2.Instance) (report.Finding, bool) {
	if inst.State == nil || aws.StringValue(inst.State.Name) != ec2.InstanceStateNameStopped {
		return report.Finding{}, false
	}

	az := ""
	if inst.Placement != nil {
		az = aws.StringValue(inst.Placement.AvailabilityZone)
	}

	return report.Finding{
		ResourceType: TypeEC2Instance,
		Name:         awslib.NameTag(inst.Tags),
		ResourceID:   aws.StringValue(inst.InstanceId),
		Details:      fmt.Sprintf("Type=%s AZ=%s State=stopped", aws.StringValue(inst.InstanceType), az),
		Severity:     report.SeverityMedium,
	}, true
}

// Run implements Check interface
func (c *EC2InstanceCheck) Run(ctx context.Context, opts awslib.ScanOptions) (report.Findings, error) {
	input := &ec2.DescribeInstancesInput{
		Filters: []*ec2.Filter{{
			Name:   aws.String("instance-state-name"),
			Values: []*string{aws.String(ec2.InstanceStateNameStopped)},
		}},
	}

	var results report.Findings
	err := opts.Clients.EC2.DescribeInstancesPagesWithContext(ctx, input,
		func(page *ec2.DescribeInstancesOutput, lastPage bool) bool {
			for _, reservation := range page.Reservations {
				for _, inst := range reservation.Instances {
					if finding, ok := ClassifyInstance(inst); ok {
						results = append(results, finding)
					}
				}
			}
			return !lastPage
		})
	if err != nil {
		return nil, fmt.Errorf("failed to describe instances in %s: %w", opts.Clients.Region, err)
	}
	return results, nil
}
