// Package checks implements the cost cleanup audit: one registered check per
// resource category, each split into a paginated enumerator and a pure classifier.
package checks

import (
	"fmt"

	awslib "cloudaudit/internal/aws"
)

// DefaultSnapshotAgeDays is the snapshot age threshold used when none is given
const DefaultSnapshotAgeDays = 90

// Resource types written to the ResourceType column
const (
	TypeEBSVolume   = "EBS Volume"
	TypeEBSSnapshot = "EBS Snapshot"
	TypeElasticIP   = "Elastic IP"
	TypeClassicELB  = "Classic ELB"
	TypeRDSInstance = "RDS Instance"
	TypeEC2Instance = "EC2 Instance"
)

func register(c awslib.Check) {
	if err := awslib.DefaultRegistry.Register(c); err != nil {
		panic(fmt.Sprintf("Failed to register %s check: %v", c.ArgumentName(), err))
	}
}

func init() {
	register(&EBSVolumeCheck{})
	register(&EBSSnapshotCheck{})
	register(&ElasticIPCheck{})
	register(&LoadBalancerCheck{})
	register(&RDSCheck{})
	register(&EC2InstanceCheck{})
}
