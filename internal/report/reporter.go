package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/falkerops/partnerload/internal/config"
	"github.com/falkerops/partnerload/internal/input"
)

// Status is the final state of one record.
type Status string

const (
	StatusSaved         Status = "saved"
	StatusNotRegistered Status = "not_registered" // The external tax id lookup found nothing
	StatusSaveFailed    Status = "save_failed"
	StatusFailed        Status = "failed"
	StatusSkipped       Status = "skipped" // Already completed in a previous run
	StatusInvalid       Status = "invalid" // Rejected while reading the input
	StatusNotAttempted  Status = "not_attempted"
	StatusDryRun        Status = "dry_run"
)

// Done reports whether the record needs no further attempt.
func (s Status) Done() bool {
	return s == StatusSaved || s == StatusNotRegistered
}

// Outcome is the result of processing one record.
type Outcome struct {
	Record   input.Record  `json:"record"`
	Status   Status        `json:"status"`
	Warnings []string      `json:"warnings,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Err      error         `json:"-"`
}

// Reporter collects outcomes and writes the run report.
type Reporter struct {
	mu       sync.Mutex
	outcomes []Outcome
}

// NewReporter creates a new Reporter.
func NewReporter() *Reporter {
	return &Reporter{}
}

// AddOutcome records a processed record.
func (r *Reporter) AddOutcome(o Outcome) {
	if o.Err != nil && o.Error == "" {
		o.Error = o.Err.Error()
	}
	r.mu.Lock()
	r.outcomes = append(r.outcomes, o)
	r.mu.Unlock()
}

// Outcomes returns a copy of everything recorded so far.
func (r *Reporter) Outcomes() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

// Summary counts outcomes per status.
func (r *Reporter) Summary() map[Status]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[Status]int)
	for _, o := range r.outcomes {
		counts[o.Status]++
	}
	return counts
}

// SummaryLine renders Summary as "saved=3 failed=1", statuses sorted by name.
func (r *Reporter) SummaryLine() string {
	counts := r.Summary()
	keys := make([]string, 0, len(counts))
	for s := range counts {
		keys = append(keys, string(s))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[Status(k)]))
	}
	return strings.Join(parts, " ")
}

// GenerateReport writes all outcomes in format to outputPath, or stdout when outputPath is empty.
func (r *Reporter) GenerateReport(outputPath string, format string) error {
	var out io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer f.Close()
		out = f
	}
	return r.Write(out, format)
}

// Write renders the report to w.
func (r *Reporter) Write(w io.Writer, format string) error {
	outcomes := r.Outcomes()
	switch format {
	case config.FormatJSON:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(outcomes)
	case config.FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"line", "name", "tax_id", "status", "warnings", "error", "duration_s"}); err != nil {
			return err
		}
		for _, o := range outcomes {
			row := []string{
				strconv.Itoa(o.Record.Line),
				o.Record.Name,
				o.Record.TaxID,
				string(o.Status),
				strings.Join(o.Warnings, "; "),
				o.Error,
				strconv.FormatFloat(o.Duration.Seconds(), 'f', 1, 64),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	}

	for _, o := range outcomes {
		_, err := fmt.Fprintf(w, "Line: %d\nName: %s\nTax ID: %s\nStatus: %s\n", o.Record.Line, o.Record.Name, o.Record.TaxID, o.Status)
		if err != nil {
			return err
		}
		for _, warn := range o.Warnings {
			if _, err := fmt.Fprintf(w, "Warning: %s\n", warn); err != nil {
				return err
			}
		}
		if o.Error != "" {
			if _, err := fmt.Fprintf(w, "Error: %s\n", o.Error); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, "---"); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Summary: %s\n", r.SummaryLine())
	return err
}
