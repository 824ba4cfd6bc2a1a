// Package codebuild reports how recently every CodeBuild project was built,
// scanning regions in parallel on a bounded worker pool.
package codebuild

import (
	"fmt"
	"time"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/report"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/codebuild"
)

// Usage statuses
const (
	StatusUsed   = "USED"
	StatusUnused = "UNUSED"
	StatusEmpty  = "EMPTY"
)

const (
	// NoSource is the source type of projects without a source definition
	NoSource = codebuild.SourceTypeNoSource
	// NotAvailable marks a project that has never been built
	NotAvailable = "N/A"
	// TimeLayout is the LastBuildTime format
	TimeLayout = "2006-01-02T15:04:05"
)

// ProjectUsage is one row of the CodeBuild usage report
type ProjectUsage struct {
	ProjectName      string `csv:"ProjectName" json:"ProjectName"`
	Status           string `csv:"Status" json:"Status"`
	LastBuildTime    string `csv:"LastBuildTime" json:"LastBuildTime"`
	Region           string `csv:"Region" json:"Region"`
	SourceType       string `csv:"SourceType" json:"SourceType"`
	EnvironmentImage string `csv:"EnvironmentImage" json:"EnvironmentImage"`
	Severity         string `csv:"Severity" json:"Severity"`
	Reason           string `csv:"Reason" json:"Reason"`
}

// Project is the subset of a project definition the classifier needs
type Project struct {
	Name             string
	SourceType       string
	EnvironmentImage string
}

// ProjectFromAPI extracts the classifier input from a BatchGetProjects result
func ProjectFromAPI(p *codebuild.Project) Project {
	out := Project{
		Name:       aws.StringValue(p.Name),
		SourceType: NoSource,
	}
	if p.Source != nil && aws.StringValue(p.Source.Type) != "" {
		out.SourceType = aws.StringValue(p.Source.Type)
	}
	if p.Environment != nil {
		out.EnvironmentImage = aws.StringValue(p.Environment.Image)
	}
	return out
}

// DetermineStatus returns EMPTY without a build, USED when the last build is
// at most days whole days old, UNUSED otherwise
func DetermineStatus(lastBuild *time.Time, now time.Time, days int) string {
	if lastBuild == nil {
		return StatusEmpty
	}
	if awslib.AgeInDays(now, *lastBuild) <= days {
		return StatusUsed
	}
	return StatusUnused
}

// SeverityFor maps a status to its severity
func SeverityFor(status string) string {
	switch status {
	case StatusEmpty:
		return report.SeverityHigh
	case StatusUnused:
		return report.SeverityMedium
	default:
		return report.SeverityLow
	}
}

// Classify builds the report row for one project. A project that was never
// built but has both a source and an environment image counts as UNUSED.
func Classify(p Project, lastBuild *time.Time, region string, now time.Time, days int) ProjectUsage {
	status := DetermineStatus(lastBuild, now, days)
	promoted := false
	if status == StatusEmpty && p.SourceType != NoSource && p.EnvironmentImage != "" {
		status = StatusUnused
		promoted = true
	}

	lastBuildTime := NotAvailable
	if lastBuild != nil {
		lastBuildTime = lastBuild.UTC().Format(TimeLayout)
	}

	var reason string
	switch {
	case status == StatusUsed:
		reason = fmt.Sprintf("Built within the last %d days (%s ago)", days, awslib.FormatTimeDifference(now, lastBuild))
	case promoted:
		reason = "No builds recorded although source and environment are configured"
	case status == StatusUnused:
		reason = fmt.Sprintf("No builds in the last %d days (last build %s ago)", days, awslib.FormatTimeDifference(now, lastBuild))
	default:
		reason = "No builds recorded and no source or environment defined"
	}

	return ProjectUsage{
		ProjectName:      p.Name,
		Status:           status,
		LastBuildTime:    lastBuildTime,
		Region:           region,
		SourceType:       p.SourceType,
		EnvironmentImage: p.EnvironmentImage,
		Severity:         SeverityFor(status),
		Reason:           reason,
	}
}
