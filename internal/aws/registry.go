package aws

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloudaudit/internal/report"
)

// ScanOptions contains configuration for one check run
type ScanOptions struct {
	Clients         *Clients  // Service clients for the region being audited
	Now             time.Time // Reference time for age rules
	SnapshotAgeDays int       // Snapshots started before Now minus this many days are reported
}

// Check enumerates one resource category and classifies every resource it finds
type Check interface {
	// Name returns the human-readable name of the check
	Name() string

	// ArgumentName returns the command-line argument name for the check
	ArgumentName() string

	// Label returns the summary line label used after a run
	Label() string

	// Run performs the enumeration. Auth and permission errors are returned, not skipped.
	Run(ctx context.Context, opts ScanOptions) (report.Findings, error)
}

// Registry maintains the set of available checks in registration order
type Registry struct {
	checks map[string]Check
	order  []string
}

// NewRegistry creates a new check registry
func NewRegistry() *Registry {
	return &Registry{
		checks: make(map[string]Check),
	}
}

// Register adds a new check to the registry
func (r *Registry) Register(c Check) error {
	argName := c.ArgumentName()
	if _, exists := r.checks[argName]; exists {
		return fmt.Errorf("check with argument name '%s' already registered", argName)
	}
	r.checks[argName] = c
	r.order = append(r.order, argName)
	return nil
}

// MustRegister adds a check and panics on duplicates; intended for init functions
func (r *Registry) MustRegister(c Check) {
	if err := r.Register(c); err != nil {
		panic(err)
	}
}

// Get retrieves a check by its argument name, label or name, case-insensitively
func (r *Registry) Get(identifier string) (Check, error) {
	if c, ok := r.checks[identifier]; ok {
		return c, nil
	}

	lower := strings.ToLower(identifier)
	for _, name := range r.order {
		c := r.checks[name]
		if strings.ToLower(c.ArgumentName()) == lower ||
			strings.ToLower(c.Label()) == lower ||
			strings.ToLower(c.Name()) == lower {
			return c, nil
		}
	}

	return nil, fmt.Errorf("no check found for identifier '%s'", identifier)
}

// All returns every check in registration order
func (r *Registry) All() []Check {
	out := make([]Check, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.checks[name])
	}
	return out
}

// Names returns the sorted argument names of all registered checks
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select resolves a list of identifiers, preserving registration order.
// An empty list or "all" selects every check.
func (r *Registry) Select(identifiers []string) ([]Check, error) {
	if len(identifiers) == 0 {
		return r.All(), nil
	}

	wanted := make(map[string]bool)
	for _, id := range identifiers {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if strings.EqualFold(id, "all") {
			return r.All(), nil
		}
		c, err := r.Get(id)
		if err != nil {
			return nil, err
		}
		wanted[c.ArgumentName()] = true
	}

	var out []Check
	for _, c := range r.All() {
		if wanted[c.ArgumentName()] {
			out = append(out, c)
		}
	}
	return out, nil
}

// DefaultRegistry is the default check registry instance
var DefaultRegistry = NewRegistry()
