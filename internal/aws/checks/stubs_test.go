package checks

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
	"github.com/aws/aws-sdk-go/service/elb"
	"github.com/aws/aws-sdk-go/service/elb/elbiface"
	"github.com/aws/aws-sdk-go/service/elbv2"
	"github.com/aws/aws-sdk-go/service/elbv2/elbv2iface"
	"github.com/aws/aws-sdk-go/service/rds"
	"github.com/aws/aws-sdk-go/service/rds/rdsiface"
)

type stubEC2 struct {
	ec2iface.EC2API
	volumePages   [][]*ec2.Volume
	snapshots     []*ec2.Snapshot
	addresses     []*ec2.Address
	reservations  []*ec2.Reservation
	err           error
	snapshotInput *ec2.DescribeSnapshotsInput
	instanceInput *ec2.DescribeInstancesInput
}

func (s *stubEC2) DescribeVolumesPagesWithContext(ctx aws.Context, in *ec2.DescribeVolumesInput, fn func(*ec2.DescribeVolumesOutput, bool) bool, opts ...request.Option) error {
	if s.err != nil {
		return s.err
	}
	if len(s.volumePages) == 0 {
		fn(&ec2.DescribeVolumesOutput{}, true)
		return nil
	}
	for i, page := range s.volumePages {
		if !fn(&ec2.DescribeVolumesOutput{Volumes: page}, i == len(s.volumePages)-1) {
			break
		}
	}
	return nil
}

func (s *stubEC2) DescribeSnapshotsPagesWithContext(ctx aws.Context, in *ec2.DescribeSnapshotsInput, fn func(*ec2.DescribeSnapshotsOutput, bool) bool, opts ...request.Option) error {
	s.snapshotInput = in
	if s.err != nil {
		return s.err
	}
	fn(&ec2.DescribeSnapshotsOutput{Snapshots: s.snapshots}, true)
	return nil
}

func (s *stubEC2) DescribeAddressesWithContext(ctx aws.Context, in *ec2.DescribeAddressesInput, opts ...request.Option) (*ec2.DescribeAddressesOutput, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &ec2.DescribeAddressesOutput{Addresses: s.addresses}, nil
}

func (s *stubEC2) DescribeInstancesPagesWithContext(ctx aws.Context, in *ec2.DescribeInstancesInput, fn func(*ec2.DescribeInstancesOutput, bool) bool, opts ...request.Option) error {
	s.instanceInput = in
	if s.err != nil {
		return s.err
	}
	fn(&ec2.DescribeInstancesOutput{Reservations: s.reservations}, true)
	return nil
}

type stubELB struct {
	elbiface.ELBAPI
	lbs []*elb.LoadBalancerDescription
	err error
}

func (s *stubELB) DescribeLoadBalancersPagesWithContext(ctx aws.Context, in *elb.DescribeLoadBalancersInput, fn func(*elb.DescribeLoadBalancersOutput, bool) bool, opts ...request.Option) error {
	if s.err != nil {
		return s.err
	}
	fn(&elb.DescribeLoadBalancersOutput{LoadBalancerDescriptions: s.lbs}, true)
	return nil
}

type stubELBv2 struct {
	elbv2iface.ELBV2API
	lbs          []*elbv2.LoadBalancer
	targetGroups map[string][]string // load balancer ARN -> target group ARNs
	targets      map[string]int      // target group ARN -> registered targets
}

func (s *stubELBv2) DescribeLoadBalancersPagesWithContext(ctx aws.Context, in *elbv2.DescribeLoadBalancersInput, fn func(*elbv2.DescribeLoadBalancersOutput, bool) bool, opts ...request.Option) error {
	fn(&elbv2.DescribeLoadBalancersOutput{LoadBalancers: s.lbs}, true)
	return nil
}

func (s *stubELBv2) DescribeTargetGroupsPagesWithContext(ctx aws.Context, in *elbv2.DescribeTargetGroupsInput, fn func(*elbv2.DescribeTargetGroupsOutput, bool) bool, opts ...request.Option) error {
	var groups []*elbv2.TargetGroup
	for _, arn := range s.targetGroups[aws.StringValue(in.LoadBalancerArn)] {
		groups = append(groups, &elbv2.TargetGroup{TargetGroupArn: aws.String(arn)})
	}
	fn(&elbv2.DescribeTargetGroupsOutput{TargetGroups: groups}, true)
	return nil
}

func (s *stubELBv2) DescribeTargetHealthWithContext(ctx aws.Context, in *elbv2.DescribeTargetHealthInput, opts ...request.Option) (*elbv2.DescribeTargetHealthOutput, error) {
	n := s.targets[aws.StringValue(in.TargetGroupArn)]
	descriptions := make([]*elbv2.TargetHealthDescription, n)
	for i := range descriptions {
		descriptions[i] = &elbv2.TargetHealthDescription{}
	}
	return &elbv2.DescribeTargetHealthOutput{TargetHealthDescriptions: descriptions}, nil
}

type stubRDS struct {
	rdsiface.RDSAPI
	instances []*rds.DBInstance
	err       error
}

func (s *stubRDS) DescribeDBInstancesPagesWithContext(ctx aws.Context, in *rds.DescribeDBInstancesInput, fn func(*rds.DescribeDBInstancesOutput, bool) bool, opts ...request.Option) error {
	if s.err != nil {
		return s.err
	}
	fn(&rds.DescribeDBInstancesOutput{DBInstances: s.instances}, true)
	return nil
}
