package checks

import (
	"context"
	"fmt"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/logging"
	"cloudaudit/internal/report"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
)

// EBSVolumeCheck reports volumes with no attachments
type EBSVolumeCheck struct{}

// Name implements Check interface
func (c *EBSVolumeCheck) Name() string {
	return "unused EBS volumes"
}

// ArgumentName implements Check interface
func (c *EBSVolumeCheck) ArgumentName() string {
	return "ebs-volumes"
}

// Label implements Check interface
func (c *EBSVolumeCheck) Label() string {
	return "Unattached Volumes"
}

// ClassifyVolume returns a High finding for a volume without attachments
func ClassifyVolume(v *ec2.Volume) (report.Finding, bool) {
	if len(v.Attachments) > 0 {
		return report.Finding{}, false
	}
	return report.Finding{
		ResourceType: TypeEBSVolume,
		Name:         awslib.NameTag(v.Tags),
		ResourceID:   aws.StringValue(v.VolumeId),
		Details: fmt.Sprintf("Size=%dGiB, State=%s, AZ=%s",
			aws.Int64Value(v.Size), aws.StringValue(v.State), aws.StringValue(v.AvailabilityZone)),
		Severity: report.SeverityHigh,
	}, true
}

// Run implements Check interface
func (c *EBSVolumeCheck) Run(ctx context.Context, opts awslib.ScanOptions) (report.Findings, error) {
	var results report.Findings
	err := opts.Clients.EC2.DescribeVolumesPagesWithContext(ctx, &ec2.DescribeVolumesInput{},
		func(page *ec2.DescribeVolumesOutput, lastPage bool) bool {
			for _, volume := range page.Volumes {
				finding, ok := ClassifyVolume(volume)
				if !ok {
					continue
				}
				logging.Debug("Found unattached EBS volume", map[string]interface{}{
					"region":      opts.Clients.Region,
					"resource_id": finding.ResourceID,
				})
				results = append(results, finding)
			}
			return !lastPage
		})
	if err != nil {
		return nil, fmt.Errorf("failed to describe volumes in %s: %w", opts.Clients.Region, err)
	}
	return results, nil
}
