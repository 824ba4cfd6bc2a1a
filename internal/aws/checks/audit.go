package checks

import (
	"context"

	awslib "cloudaudit/internal/aws"
	"cloudaudit/internal/logging"
	"cloudaudit/internal/report"
)

// Summary is the number of findings one check produced
type Summary struct {
	Label string
	Count int
}

// RunAll runs the checks in order and concatenates their findings.
// The first failing check aborts the audit with its error.
func RunAll(ctx context.Context, checks []awslib.Check, opts awslib.ScanOptions) (report.Findings, []Summary, error) {
	var all report.Findings
	summaries := make([]Summary, 0, len(checks))

	for _, check := range checks {
		logging.CheckStart(check.Name(), opts.Clients.Region)

		findings, err := check.Run(ctx, opts)
		if err != nil {
			logging.Error("Check failed", err, map[string]interface{}{
				"check":  check.ArgumentName(),
				"region": opts.Clients.Region,
			})
			return nil, nil, err
		}

		logging.CheckComplete(check.Label(), opts.Clients.Region, len(findings))
		summaries = append(summaries, Summary{Label: check.Label(), Count: len(findings)})
		all = append(all, findings...)
	}

	return all, summaries, nil
}
