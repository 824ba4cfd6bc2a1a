package checks

import (
	"context"
	"fmt"
	"time"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/logging"
	"cloudaudit/internal/report"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
)

// EBSSnapshotCheck reports self-owned snapshots older than the age threshold
type EBSSnapshotCheck struct{}

// Name implements Check interface
func (c *EBSSnapshotCheck) Name() string {
	return "old EBS snapshots"
}

// ArgumentName implements Check interface
func (c *EBSSnapshotCheck) ArgumentName() string {
	return "ebs-snapshots"
}

// Label implements Check interface
func (c *EBSSnapshotCheck) Label() string {
	return "Old Snapshots"
}

// SnapshotCutoff returns the instant before which a snapshot counts as old
func SnapshotCutoff(now time.Time, days int) time.Time {
	return now.Add(-time.Duration(days) * 24 * time.Hour)
}

// ClassifySnapshot returns a Medium finding when the snapshot started strictly
// before now minus days. A snapshot exactly at the cutoff is not reported.
func ClassifySnapshot(s *ec2.Snapshot, now time.Time, days int) (report.Finding, bool) {
	if s.StartTime == nil || !s.StartTime.Before(SnapshotCutoff(now, days)) {
		return report.Finding{}, false
	}

	volumeID := aws.StringValue(s.VolumeId)
	if volumeID == "" {
		volumeID = "N/A"
	}

	return report.Finding{
		ResourceType: TypeEBSSnapshot,
		Name:         awslib.NameTag(s.Tags),
		ResourceID:   aws.StringValue(s.SnapshotId),
		Details: fmt.Sprintf("Volume=%s, Size=%dGiB, Started=%s",
			volumeID, aws.Int64Value(s.VolumeSize), s.StartTime.UTC().Format("2006-01-02")),
		Severity: report.SeverityMedium,
	}, true
}

// Run implements Check interface
func (c *EBSSnapshotCheck) Run(ctx context.Context, opts awslib.ScanOptions) (report.Findings, error) {
	days := opts.SnapshotAgeDays
	if days <= 0 {
		days = DefaultSnapshotAgeDays
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	input := &ec2.DescribeSnapshotsInput{
		OwnerIds: []*string{aws.String("self")},
	}

	var results report.Findings
	err := opts.Clients.EC2.DescribeSnapshotsPagesWithContext(ctx, input,
		func(page *ec2.DescribeSnapshotsOutput, lastPage bool) bool {
			for _, snapshot := range page.Snapshots {
				finding, ok := ClassifySnapshot(snapshot, now, days)
				if !ok {
					continue
				}
				logging.Debug("Found old EBS snapshot", map[string]interface{}{
					"region":      opts.Clients.Region,
					"resource_id": finding.ResourceID,
					"age_days":    awslib.AgeInDays(now, aws.TimeValue(snapshot.StartTime)),
				})
				results = append(results, finding)
			}
			return !lastPage
		})
	if err != nil {
		return nil, fmt.Errorf("failed to describe snapshots in %s: %w", opts.Clients.Region, err)
	}
	return results, nil
}
