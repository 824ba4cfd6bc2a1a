package checks

import (
	"context"
	"fmt"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/report"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
)

// ElasticIPCheck reports allocated addresses that are not associated
type ElasticIPCheck struct{}

// Name implements Check interface
func (c *ElasticIPCheck) Name() string {
	return "unattached Elastic IPs"
}

// ArgumentName implements Check interface
func (c *ElasticIPCheck) ArgumentName() string {
	return "elastic-ips"
}

// Label implements Check interface
func (c *ElasticIPCheck) Label() string {
	return "Unattached Elastic IPs"
}

// ClassifyAddress returns a High finding for an address without an association
func ClassifyAddress(a *ec2.Address) (report.Finding, bool) {
	if aws.StringValue(a.AssociationId) != "" {
		return report.Finding{}, false
	}

	allocationID := aws.StringValue(a.AllocationId)
	if allocationID == "" {
		allocationID = "N/A"
	}
	domain := aws.StringValue(a.Domain)
	if domain == "" {
		domain = "standard"
	}

	return report.Finding{
		ResourceType: TypeElasticIP,
		Name:         aws.StringValue(a.PublicIp),
		ResourceID:   allocationID,
		Details:      fmt.Sprintf("Domain=%s", domain),
		Severity:     report.SeverityHigh,
	}, true
}

// Run implements Check interface
func (c *ElasticIPCheck) Run(ctx context.Context, opts awslib.ScanOptions) (report.Findings, error) {
	out, err := opts.Clients.EC2.DescribeAddressesWithContext(ctx, &ec2.DescribeAddressesInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to describe addresses in %s: %w", opts.Clients.Region, err)
	}

	var results report.Findings
	for _, addr := range out.Addresses {
		if finding, ok := ClassifyAddress(addr); ok {
			results = append(results, finding)
		}
	}
	return results, nil
}
