package codebuild

import (
	"context"
	"fmt"
	"sort"
	"time"

	"cloudaudit/internal/logging"
	"cloudaudit/internal/worker"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/codebuild"
	"github.com/aws/aws-sdk-go/service/codebuild/codebuildiface"
)

const (
	// DefaultDays is the default lookback window
	DefaultDays = 30
	// DefaultThreads is the default worker count
	DefaultThreads = 10

	batchGetProjectsLimit = 100
)

// ClientFactory returns a CodeBuild client for region
type ClientFactory func(region string) codebuildiface.CodeBuildAPI

// Scanner classifies CodeBuild projects across regions
type Scanner struct {
	ClientFor ClientFactory
	Days      int
	Threads   int
	Now       func() time.Time
}

// RegionError records a region whose scan failed
type RegionError struct {
	Region string
	Err    error
}

func (s *Scanner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Scanner) threads() int {
	if s.Threads <= 0 {
		return DefaultThreads
	}
	return s.Threads
}

// splitThreads divides the thread budget between the region pool and the
// project pool of each region so that at most threads calls are in flight.
func splitThreads(threads, regions int) (regionWorkers, projectWorkers int) {
	regionWorkers = threads
	if regions > 0 && regions < regionWorkers {
		regionWorkers = regions
	}
	projectWorkers = threads / regionWorkers
	if projectWorkers < 1 {
		projectWorkers = 1
	}
	return regionWorkers, projectWorkers
}

// Scan runs one task per region and merges the rows once every region has
// finished. Threads is shared between the region pool and the per-region
// project pools. Failed regions are logged and returned separately; rows are
// sorted by region then project name.
func (s *Scanner) Scan(ctx context.Context, regions []string) ([]ProjectUsage, []RegionError) {
	now := s.now()
	regionWorkers, projectWorkers := splitThreads(s.threads(), len(regions))

	results := worker.Run(ctx, regionWorkers, regions, func(ctx context.Context, region string) ([]ProjectUsage, error) {
		logging.Progress(fmt.Sprintf("Scanning region: %s", region))
		return s.scanRegion(ctx, region, now, projectWorkers)
	})

	perRegion, failed := worker.Split(results)

	var rows []ProjectUsage
	for _, r := range perRegion {
		rows = append(rows, r...)
	}

	var regionErrs []RegionError
	for _, r := range failed {
		logging.RegionError("CodeBuild scan", r.Key, r.Err)
		regionErrs = append(regionErrs, RegionError{Region: r.Key, Err: r.Err})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Region != rows[j].Region {
			return rows[i].Region < rows[j].Region
		}
		return rows[i].ProjectName < rows[j].ProjectName
	})
	return rows, regionErrs
}

// ScanRegion lists and classifies every project in one region. Listing errors
// fail the region; a project whose builds cannot be read is logged and dropped.
func (s *Scanner) ScanRegion(ctx context.Context, region string, now time.Time) ([]ProjectUsage, error) {
	return s.scanRegion(ctx, region, now, s.threads())
}

func (s *Scanner) scanRegion(ctx context.Context, region string, now time.Time, workers int) ([]ProjectUsage, error) {
	svc := s.ClientFor(region)

	names, err := listProjects(ctx, svc)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects in %s: %w", region, err)
	}
	if len(names) == 0 {
		logging.Info(fmt.Sprintf("No CodeBuild projects found in %s", region))
		return nil, nil
	}

	projects, err := getProjects(ctx, svc, names)
	if err != nil {
		return nil, fmt.Errorf("failed to get project details in %s: %w", region, err)
	}

	keys := make([]string, 0, len(projects))
	byName := make(map[string]Project, len(projects))
	for _, p := range projects {
		project := ProjectFromAPI(p)
		keys = append(keys, project.Name)
		byName[project.Name] = project
	}

	results := worker.Run(ctx, workers, keys, func(ctx context.Context, name string) (ProjectUsage, error) {
		lastBuild, err := lastBuildTime(ctx, svc, name)
		if err != nil {
			return ProjectUsage{}, err
		}
		return Classify(byName[name], lastBuild, region, now, s.Days), nil
	})

	rows, failed := worker.Split(results)
	for _, r := range failed {
		logging.Error(fmt.Sprintf("Error processing project %s", r.Key), r.Err, map[string]interface{}{
			"region": region,
		})
	}
	return rows, nil
}

func listProjects(ctx context.Context, svc codebuildiface.CodeBuildAPI) ([]string, error) {
	var names []string
	err := svc.ListProjectsPagesWithContext(ctx, &codebuild.ListProjectsInput{},
		func(page *codebuild.ListProjectsOutput, lastPage bool) bool {
			names = append(names, aws.StringValueSlice(page.Projects)...)
			return !lastPage
		})
	return names, err
}

// getProjects resolves project names in chunks of the BatchGetProjects limit
func getProjects(ctx context.Context, svc codebuildiface.CodeBuildAPI, names []string) ([]*codebuild.Project, error) {
	var projects []*codebuild.Project
	for start := 0; start < len(names); start += batchGetProjectsLimit {
		end := start + batchGetProjectsLimit
		if end > len(names) {
			end = len(names)
		}
		out, err := svc.BatchGetProjectsWithContext(ctx, &codebuild.BatchGetProjectsInput{
			Names: aws.StringSlice(names[start:end]),
		})
		if err != nil {
			return nil, err
		}
		projects = append(projects, out.Projects...)
	}
	return projects, nil
}

// lastBuildTime returns the start time of the newest build, or nil if there is none
func lastBuildTime(ctx context.Context, svc codebuildiface.CodeBuildAPI, project string) (*time.Time, error) {
	ids, err := svc.ListBuildsForProjectWithContext(ctx, &codebuild.ListBuildsForProjectInput{
		ProjectName: aws.String(project),
		SortOrder:   aws.String(codebuild.SortOrderTypeDescending),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list builds: %w", err)
	}
	if len(ids.Ids) == 0 {
		return nil, nil
	}

	builds, err := svc.BatchGetBuildsWithContext(ctx, &codebuild.BatchGetBuildsInput{
		Ids: ids.Ids[:1],
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get build %s: %w", aws.StringValue(ids.Ids[0]), err)
	}
	if len(builds.Builds) == 0 || builds.Builds[0].StartTime == nil {
		return nil, nil
	}
	t := builds.Builds[0].StartTime.UTC()
	return &t, nil
}
