// Package inventory collects read-only resource inventories for EC2, RDS, S3
// and IAM and writes them as CSV files and XLSX workbooks.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/logging"
	"cloudaudit/internal/worker"
)

// TimeLayout is used for every timestamp column
const TimeLayout = time.RFC3339

// ClientsFactory returns the service clients for a region
type ClientsFactory func(region string) *awslib.Clients

// Collector holds what every inventory needs: clients, the account being
// inventoried and the fan-out width
type Collector struct {
	ClientsFor ClientsFactory
	AccountID  string
	Workers    int
	Now        func() time.Time
}

// RegionError records a region whose inventory failed
type RegionError struct {
	Region string
	Err    error
}

func (c *Collector) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func (c *Collector) workers() int {
	if c.Workers <= 0 {
		return 1
	}
	return c.Workers
}

// collectRegions runs fn once per region and concatenates the rows of the
// regions that succeeded. Failed regions are logged and returned.
func collectRegions[T any](ctx context.Context, c *Collector, task string, regions []string, fn func(ctx context.Context, clients *awslib.Clients) ([]T, error)) ([]T, []RegionError) {
	results := worker.Run(ctx, c.workers(), regions, func(ctx context.Context, region string) ([]T, error) {
		logging.Progress(fmt.Sprintf("Scanning region: %s", region))
		return fn(ctx, c.ClientsFor(region))
	})

	perRegion, failed := worker.Split(results)

	var rows []T
	for _, r := range perRegion {
		rows = append(rows, r...)
	}

	var regionErrs []RegionError
	for _, r := range failed {
		logging.RegionError(task, r.Key, r.Err)
		regionErrs = append(regionErrs, RegionError{Region: r.Key, Err: r.Err})
	}
	return rows, regionErrs
}

// joinTags renders a tag map as "k=v;" pairs sorted by key
func joinTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, tags[k])
	}
	return b.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// chunk splits ids into slices of at most size elements
func chunk(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
