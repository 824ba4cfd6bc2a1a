// Package ecr reports vulnerability findings from the existing image scans of
// each repository's most recently pushed image. It never starts a scan.
package ecr

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cloudaudit/internal/logging"
	"cloudaudit/internal/worker"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/ecr"
	"github.com/aws/aws-sdk-go/service/ecr/ecriface"
)

// DefaultSeverity is the finding severity reported when none is requested
const DefaultSeverity = ecr.FindingSeverityCritical

// Vulnerability is one reported scan finding
type Vulnerability struct {
	Repo           string `csv:"Repo" json:"Repo"`
	ImageDigest    string `csv:"ImageDigest" json:"ImageDigest"`
	Name           string `csv:"Name" json:"Name"`
	Severity       string `csv:"Severity" json:"Severity"`
	PackageName    string `csv:"PackageName" json:"PackageName"`
	PackageVersion string `csv:"PackageVersion" json:"PackageVersion"`
	URI            string `csv:"URI" json:"URI"`
}

// Skipped records a repository that contributed no findings and why
type Skipped struct {
	Repo   string
	Reason string
}

// Scanner collects findings of one severity across every repository
type Scanner struct {
	ECR      ecriface.ECRAPI
	Severity string
	Workers  int
}

type repoResult struct {
	vulns   []Vulnerability
	skipped string
}

func (s *Scanner) severity() string {
	if s.Severity == "" {
		return DefaultSeverity
	}
	return strings.ToUpper(s.Severity)
}

// Run lists repositories and reads the scan findings of each one's latest image.
// Listing errors abort; per-repository failures are logged and skipped.
func (s *Scanner) Run(ctx context.Context) ([]Vulnerability, []Skipped, error) {
	var repos []string
	err := s.ECR.DescribeRepositoriesPagesWithContext(ctx, &ecr.DescribeRepositoriesInput{},
		func(page *ecr.DescribeRepositoriesOutput, lastPage bool) bool {
			for _, r := range page.Repositories {
				repos = append(repos, aws.StringValue(r.RepositoryName))
			}
			return !lastPage
		})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to describe repositories: %w", err)
	}
	logging.Info(fmt.Sprintf("Number of repos: %d", len(repos)))

	workers := s.Workers
	if workers <= 0 {
		workers = 1
	}

	results := worker.Run(ctx, workers, repos, func(ctx context.Context, repo string) (repoResult, error) {
		logging.Progress(fmt.Sprintf("Reading scan findings: %s", repo))
		return s.scanRepo(ctx, repo)
	})

	var vulns []Vulnerability
	var skipped []Skipped
	for _, r := range results {
		switch {
		case r.Err != nil:
			logging.Error(fmt.Sprintf("Failed to read findings for %s", r.Key), r.Err)
			skipped = append(skipped, Skipped{Repo: r.Key, Reason: r.Err.Error()})
		case r.Value.skipped != "":
			logging.Warn(fmt.Sprintf("%s: %s", r.Value.skipped, r.Key))
			skipped = append(skipped, Skipped{Repo: r.Key, Reason: r.Value.skipped})
		default:
			vulns = append(vulns, r.Value.vulns...)
		}
	}
	return vulns, skipped, nil
}

func (s *Scanner) scanRepo(ctx context.Context, repo string) (repoResult, error) {
	digest, err := LatestImageDigest(ctx, s.ECR, repo)
	if err != nil {
		return repoResult{}, err
	}
	if digest == "" {
		return repoResult{skipped: "No images found"}, nil
	}

	var findings []*ecr.ImageScanFinding
	var status string
	err = s.ECR.DescribeImageScanFindingsPagesWithContext(ctx, &ecr.DescribeImageScanFindingsInput{
		RepositoryName: aws.String(repo),
		ImageId:        &ecr.ImageIdentifier{ImageDigest: aws.String(digest)},
	}, func(page *ecr.DescribeImageScanFindingsOutput, lastPage bool) bool {
		if page.ImageScanStatus != nil {
			status = aws.StringValue(page.ImageScanStatus.Status)
		}
		if page.ImageScanFindings != nil {
			findings = append(findings, page.ImageScanFindings.Findings...)
		}
		return !lastPage
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == ecr.ErrCodeScanNotFoundException {
			return repoResult{skipped: "No completed scan"}, nil
		}
		return repoResult{}, fmt.Errorf("failed to describe scan findings: %w", err)
	}

	switch status {
	case ecr.ScanStatusFailed:
		return repoResult{skipped: "Scan failed"}, nil
	case ecr.ScanStatusInProgress:
		return repoResult{skipped: "Scan not complete"}, nil
	}

	return repoResult{vulns: FilterFindings(repo, digest, findings, s.severity())}, nil
}

// LatestImageDigest returns the digest of the most recently pushed image, or "" when the repository is empty
func LatestImageDigest(ctx context.Context, svc ecriface.ECRAPI, repo string) (string, error) {
	var images []*ecr.ImageDetail
	err := svc.DescribeImagesPagesWithContext(ctx, &ecr.DescribeImagesInput{RepositoryName: aws.String(repo)},
		func(page *ecr.DescribeImagesOutput, lastPage bool) bool {
			images = append(images, page.ImageDetails...)
			return !lastPage
		})
	if err != nil {
		return "", fmt.Errorf("failed to describe images: %w", err)
	}
	if len(images) == 0 {
		return "", nil
	}

	sort.SliceStable(images, func(i, j int) bool {
		return aws.TimeValue(images[i].ImagePushedAt).Before(aws.TimeValue(images[j].ImagePushedAt))
	})
	return aws.StringValue(images[len(images)-1].ImageDigest), nil
}

// FilterFindings keeps findings of the given severity and extracts package attributes
func FilterFindings(repo, digest string, findings []*ecr.ImageScanFinding, severity string) []Vulnerability {
	var out []Vulnerability
	for _, f := range findings {
		if aws.StringValue(f.Severity) != severity {
			continue
		}
		v := Vulnerability{
			Repo:        repo,
			ImageDigest: digest,
			Name:        aws.StringValue(f.Name),
			Severity:    severity,
			URI:         aws.StringValue(f.Uri),
		}
		for _, att := range f.Attributes {
			switch aws.StringValue(att.Key) {
			case "package_name":
				v.PackageName = aws.StringValue(att.Value)
			case "package_version":
				v.PackageVersion = aws.StringValue(att.Value)
			}
		}
		out = append(out, v)
	}
	return out
}
