package report

import (
	"sort"
)

// Severity levels shared by every audit
const (
	SeverityHigh   = "High"
	SeverityMedium = "Medium"
	SeverityLow    = "Low"
)

// Finding is one row of the cost cleanup audit
type Finding struct {
	ResourceType string `csv:"ResourceType" json:"ResourceType"`
	Name         string `csv:"Name" json:"Name"`
	ResourceID   string `csv:"ResourceId" json:"ResourceId"`
	Details      string `csv:"Details" json:"Details"`
	Severity     string `csv:"Severity" json:"Severity"`
}

// Findings is an ordered list of findings
type Findings []Finding

// CountBySeverity returns the number of findings per severity
func (f Findings) CountBySeverity() map[string]int {
	counts := make(map[string]int)
	for _, finding := range f {
		counts[finding.Severity]++
	}
	return counts
}

// SortedKeys returns the keys of counts in lexical order
func SortedKeys(counts map[string]int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
