package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CheckStatus is the outcome of one check.
type CheckStatus int

const (
	// StatusPass means nothing needs attention.
	StatusPass CheckStatus = iota
	// StatusWarn means a feature may be degraded.
	StatusWarn
	// StatusFail means the check failed. Only required failures block.
	StatusFail
)

var statusNames = [...]string{StatusPass: "PASS", StatusWarn: "WARN", StatusFail: "FAIL"}

func (s CheckStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

// MarshalText encodes the status in lower case for JSON reports.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult is the outcome of one named check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical reports a failed required check.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

func pass(name string, required bool, format string, args ...any) CheckResult {
	return CheckResult{Name: name, Required: required, Status: StatusPass, Message: fmt.Sprintf(format, args...)}
}

func warn(name string, format string, args ...any) CheckResult {
	return CheckResult{Name: name, Status: StatusWarn, Message: fmt.Sprintf(format, args...)}
}

func fail(name string, required bool, format string, args ...any) CheckResult {
	return CheckResult{Name: name, Required: required, Status: StatusFail, Message: fmt.Sprintf(format, args...)}
}

// Target describes the installation to check.
type Target struct {
	CorpusDir    string
	RubricDir    string
	SnapshotPath string

	// ScorerProbe builds the configured scorer and names its provider.
	// Nil skips the scorer check.
	ScorerProbe func() (provider string, err error)
}

// Checker runs preflight checks and reports them.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) { c.verbose = verbose }
}

// WithOutput sets where PrintResults writes.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) { c.output = w }
}

// New creates a Checker writing to stdout.
func New(opts ...Option) *Checker {
	c := &Checker{output: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check against t, in a fixed order.
func (c *Checker) RunAll(ctx context.Context, t Target) []CheckResult {
	snapshotDir := filepath.Dir(t.SnapshotPath)

	results := []CheckResult{
		c.CheckDiskSpace(nearestDir(snapshotDir)),
		c.CheckWritePermissions(snapshotDir),
		c.CheckFileDescriptors(),
		c.CheckCorpora(ctx, t.CorpusDir),
		c.CheckRubrics(t.RubricDir),
	}
	if t.ScorerProbe != nil {
		results = append(results, c.CheckScorer(t.ScorerProbe))
	}
	return results
}

// HasCriticalFailures reports whether any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	return c.SummaryStatus(results) == "failed"
}

// SummaryStatus is "failed" when a required check failed,
// "ready_with_warnings" when anything else did not pass, and "ready"
// otherwise.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	summary := "ready"
	for _, r := range results {
		switch {
		case r.IsCritical():
			return "failed"
		case r.Status != StatusPass:
			summary = "ready_with_warnings"
		}
	}
	return summary
}

// PrintResults writes one line per check, then the summary and the lists
// of problems.
func (c *Checker) PrintResults(results []CheckResult) {
	w := c.output
	_, _ = fmt.Fprintln(w, "rubricrank System Check")
	_, _ = fmt.Fprintln(w, strings.Repeat("=", len("rubricrank System Check")))
	_, _ = fmt.Fprintln(w)

	var errs, warnings []string
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(w, "      %s\n", r.Details)
		}

		line := r.Name + ": " + r.Message
		switch {
		case r.IsCritical():
			errs = append(errs, line)
		case r.Status != StatusPass:
			warnings = append(warnings, line)
		}
	}

	_, _ = fmt.Fprintf(w, "\nStatus: %s\n", strings.ToUpper(c.SummaryStatus(results)))
	printList(w, "error(s)", errs)
	printList(w, "warning(s)", warnings)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "\n%d %s:\n", len(items), title)
	for _, it := range items {
		_, _ = fmt.Fprintf(w, "  - %s\n", it)
	}
}

// CheckWritePermissions creates dir if needed and writes a probe file in it.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	const name = "snapshot_writable"

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fail(name, true, "cannot create %s: %v", dir, err)
	}
	f, err := os.CreateTemp(dir, ".rubricrank-preflight-*")
	if err != nil {
		return fail(name, true, "permission denied: %v", err)
	}
	probe := f.Name()
	_ = f.Close()
	_ = os.Remove(probe)

	return pass(name, true, "%s", dir)
}

// nearestDir returns dir or its closest existing ancestor.
func nearestDir(dir string) string {
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
