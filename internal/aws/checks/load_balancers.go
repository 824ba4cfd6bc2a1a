package checks

import (
	"context"
	"fmt"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/logging"
	"cloudaudit/internal/report"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/elb"
	"github.com/aws/aws-sdk-go/service/elbv2"
)

// LoadBalancerCheck reports classic and v2 load balancers with nothing behind them
type LoadBalancerCheck struct{}

// Name implements Check interface
func (c *LoadBalancerCheck) Name() string {
	return "unused Load Balancers"
}

// ArgumentName implements Check interface
func (c *LoadBalancerCheck) ArgumentName() string {
	return "load-balancers"
}

// Label implements Check interface
func (c *LoadBalancerCheck) Label() string {
	return "Unused Load Balancers"
}

// ClassifyClassicLoadBalancer returns a High finding when no instances are registered
func ClassifyClassicLoadBalancer(lb *elb.LoadBalancerDescription) (report.Finding, bool) {
	if len(lb.Instances) > 0 {
		return report.Finding{}, false
	}
	name := aws.StringValue(lb.LoadBalancerName)
	return report.Finding{
		ResourceType: TypeClassicELB,
		Name:         name,
		ResourceID:   name,
		Details:      "No instances attached",
		Severity:     report.SeverityHigh,
	}, true
}

// ClassifyLoadBalancer returns a High finding for a v2 load balancer given the
// number of its target groups and the number of targets registered across them
func ClassifyLoadBalancer(lb *elbv2.LoadBalancer, targetGroups, targets int) (report.Finding, bool) {
	var details string
	switch {
	case targetGroups == 0:
		details = "No target groups"
	case targets == 0:
		details = "No targets registered"
	default:
		return report.Finding{}, false
	}
	return report.Finding{
		ResourceType: fmt.Sprintf("%s Load Balancer", aws.StringValue(lb.Type)),
		Name:         aws.StringValue(lb.LoadBalancerName),
		ResourceID:   aws.StringValue(lb.LoadBalancerArn),
		Details:      details,
		Severity:     report.SeverityHigh,
	}, true
}

// Run implements Check interface
func (c *LoadBalancerCheck) Run(ctx context.Context, opts awslib.ScanOptions) (report.Findings, error) {
	var results report.Findings

	err := opts.Clients.ELB.DescribeLoadBalancersPagesWithContext(ctx, &elb.DescribeLoadBalancersInput{},
		func(page *elb.DescribeLoadBalancersOutput, lastPage bool) bool {
			for _, lb := range page.LoadBalancerDescriptions {
				if finding, ok := ClassifyClassicLoadBalancer(lb); ok {
					results = append(results, finding)
				}
			}
			return !lastPage
		})
	if err != nil {
		return nil, fmt.Errorf("failed to describe classic load balancers in %s: %w", opts.Clients.Region, err)
	}

	var lbs []*elbv2.LoadBalancer
	err = opts.Clients.ELBv2.DescribeLoadBalancersPagesWithContext(ctx, &elbv2.DescribeLoadBalancersInput{},
		func(page *elbv2.DescribeLoadBalancersOutput, lastPage bool) bool {
			lbs = append(lbs, page.LoadBalancers...)
			return !lastPage
		})
	if err != nil {
		return nil, fmt.Errorf("failed to describe load balancers in %s: %w", opts.Clients.Region, err)
	}

	for _, lb := range lbs {
		groups, targets, err := c.countTargets(ctx, opts.Clients, lb)
		if err != nil {
			return nil, err
		}
		if finding, ok := ClassifyLoadBalancer(lb, groups, targets); ok {
			logging.Debug("Found unused load balancer", map[string]interface{}{
				"region":      opts.Clients.Region,
				"resource_id": finding.ResourceID,
				"details":     finding.Details,
			})
			results = append(results, finding)
		}
	}

	return results, nil
}

// countTargets returns the number of target groups of lb and the targets registered in them
func (c *LoadBalancerCheck) countTargets(ctx context.Context, clients *awslib.Clients, lb *elbv2.LoadBalancer) (int, int, error) {
	var groupARNs []*string
	err := clients.ELBv2.DescribeTargetGroupsPagesWithContext(ctx, &elbv2.DescribeTargetGroupsInput{
		LoadBalancerArn: lb.LoadBalancerArn,
	}, func(page *elbv2.DescribeTargetGroupsOutput, lastPage bool) bool {
		for _, tg := range page.TargetGroups {
			groupARNs = append(groupARNs, tg.TargetGroupArn)
		}
		return !lastPage
	})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to describe target groups for %s: %w", aws.StringValue(lb.LoadBalancerName), err)
	}

	targets := 0
	for _, arn := range groupARNs {
		health, err := clients.ELBv2.DescribeTargetHealthWithContext(ctx, &elbv2.DescribeTargetHealthInput{
			TargetGroupArn: arn,
		})
		if err != nil {
			return 0, 0, fmt.Errorf("failed to describe target health for %s: %w", aws.StringValue(arn), err)
		}
		targets += len(health.TargetHealthDescriptions)
		if targets > 0 {
			break
		}
	}
	return len(groupARNs), targets, nil
}
