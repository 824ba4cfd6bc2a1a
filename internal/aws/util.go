package aws

import (
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/ec2"
)

// NameTag returns the value of the Name tag, or "" when absent
func NameTag(tags []*ec2.Tag) string {
	for _, tag := range tags {
		if aws.StringValue(tag.Key) == "Name" {
			return aws.StringValue(tag.Value)
		}
	}
	return ""
}

// AgeInDays returns the number of whole days between t and now
func AgeInDays(now, t time.Time) int {
	return int(now.Sub(t).Hours() / 24)
}

// FormatTimeDifference formats the duration between now and a given time into a human-readable string
// showing years, months, and days. If the time pointer is nil, returns "Never used".
// Example output: "2 years 3 months 5 days"
func FormatTimeDifference(now time.Time, lastUsed *time.Time) string {
	if lastUsed == nil {
		return "Never used"
	}

	totalDays := AgeInDays(now, *lastUsed)

	years := totalDays / 365
	remainingDays := totalDays % 365
	months := remainingDays / 30
	days := remainingDays % 30

	parts := make([]string, 0, 3)
	if years > 0 {
		parts = append(parts, plural(years, "year"))
	}
	if months > 0 {
		parts = append(parts, plural(months, "month"))
	}
	if days > 0 || len(parts) == 0 {
		parts = append(parts, plural(days, "day"))
	}

	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
