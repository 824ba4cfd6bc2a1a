package aws

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
	"github.com/aws/aws-sdk-go/service/ec2/ec2iface"
)

// GetAvailableRegions returns the regions that are enabled for the account, sorted
func GetAvailableRegions(ctx context.Context, svc ec2iface.EC2API) ([]string, error) {
	result, err := svc.DescribeRegionsWithContext(ctx, &ec2.DescribeRegionsInput{
		AllRegions: aws.Bool(false), // Only get enabled regions
	})
	if err != nil {
		return nil, fmt.Errorf("failed to describe regions: %w", err)
	}

	regions := make([]string, 0, len(result.Regions))
	for _, region := range result.Regions {
		regions = append(regions, aws.StringValue(region.RegionName))
	}
	sort.Strings(regions)
	return regions, nil
}

// ValidateRegions checks that every requested region is enabled for the account
func ValidateRegions(requested, available []string) error {
	regionMap := make(map[string]bool, len(available))
	for _, region := range available {
		regionMap[region] = true
	}

	for _, region := range requested {
		if !regionMap[region] {
			return fmt.Errorf("region '%s' is not available in this account. Available regions: %s",
				region, strings.Join(available, ", "))
		}
	}
	return nil
}

// NormalizeRegions trims, splits comma lists and removes duplicates while keeping order
func NormalizeRegions(regions []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, entry := range regions {
		for _, r := range strings.Split(entry, ",") {
			r = strings.TrimSpace(r)
			if r == "" || seen[r] {
				continue
			}
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}
