package checks

import (
	"context"
	"fmt"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/report"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/rds"
)

// largeStorageGiB is the allocated storage above which an available instance is High
const largeStorageGiB = 100

// RDSCheck reports every DB instance with a severity derived from status and storage
type RDSCheck struct{}

// Name implements Check interface
func (c *RDSCheck) Name() string {
	return "idle RDS instances"
}

// ArgumentName implements Check interface
func (c *RDSCheck) ArgumentName() string {
	return "rds"
}

// Label implements Check interface
func (c *RDSCheck) Label() string {
	return "Idle RDS instances"
}

// ClassifyDBInstance always returns a finding: not available is Medium,
// available with more than 100 GiB is High, anything else Low
func ClassifyDBInstance(db *rds.DBInstance) report.Finding {
	status := aws.StringValue(db.DBInstanceStatus)
	storage := aws.Int64Value(db.AllocatedStorage)

	severity := report.SeverityLow
	if status != "available" {
		severity = report.SeverityMedium
	} else if storage > largeStorageGiB {
		severity = report.SeverityHigh
	}

	name := ""
	for _, tag := range db.TagList {
		if aws.StringValue(tag.Key) == "Name" {
			name = aws.StringValue(tag.Value)
			break
		}
	}

	return report.Finding{
		ResourceType: TypeRDSInstance,
		Name:         name,
		ResourceID:   aws.StringValue(db.DBInstanceIdentifier),
		Details: fmt.Sprintf("%s %s Status=%s Storage=%dGiB",
			aws.StringValue(db.Engine), aws.StringValue(db.DBInstanceClass), status, storage),
		Severity: severity,
	}
}

// Run implements Check interface
func (c *RDSCheck) Run(ctx context.Context, opts awslib.ScanOptions) (report.Findings, error) {
	var results report.Findings
	err := opts.Clients.RDS.DescribeDBInstancesPagesWithContext(ctx, &rds.DescribeDBInstancesInput{},
		func(page *rds.DescribeDBInstancesOutput, lastPage bool) bool {
			for _, db := range page.DBInstances {
				results = append(results, ClassifyDBInstance(db))
			}
			return !lastPage
		})
	if err != nil {
		return nil, fmt.Errorf("failed to describe DB instances in %s: %w", opts.Clients.Region, err)
	}
	return results, nil
}
