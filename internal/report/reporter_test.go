package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/falkerops/partnerload/internal/input"
)

func sampleReporter() *Reporter {
	r := NewReporter()
	r.AddOutcome(Outcome{
		Record:   input.Record{Name: "ACME", TaxID: "12345678000190", Line: 2},
		Status:   StatusSaved,
		Warnings: []string{"phone field not found"},
		Duration: 42 * time.Second,
	})
	r.AddOutcome(Outcome{
		Record: input.Record{Name: "Beta", TaxID: "98765432000110", Line: 3},
		Status: StatusNotRegistered,
	})
	r.AddOutcome(Outcome{
		Record: input.Record{Name: "Gamma", TaxID: "11222333000181", Line: 4},
		Status: StatusFailed,
		Err:    errors.New("name field not found"),
	})
	return r
}

func TestSummary(t *testing.T) {
	r := sampleReporter()
	assert.Equal(t, map[Status]int{StatusSaved: 1, StatusNotRegistered: 1, StatusFailed: 1}, r.Summary())
	assert.Equal(t, "failed=1 not_registered=1 saved=1", r.SummaryLine())
}

func TestAddOutcomeCopiesErrorText(t *testing.T) {
	outcomes := sampleReporter().Outcomes()
	assert.Equal(t, "name field not found", outcomes[2].Error)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReporter().Write(&buf, "text"))
	out := buf.String()
	assert.Contains(t, out, "Name: ACME\nTax ID: 12345678000190\nStatus: saved\nWarning: phone field not found\n---")
	assert.Contains(t, out, "Error: name field not found")
	assert.True(t, strings.HasSuffix(out, "Summary: failed=1 not_registered=1 saved=1\n"))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReporter().Write(&buf, "json"))

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 3)
	assert.Equal(t, "not_registered", decoded[1]["status"])
	assert.Equal(t, "name field not found", decoded[2]["error"])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleReporter().Write(&buf, "csv"))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"2", "ACME", "12345678000190", "saved", "phone field not found", "", "42.0"}, rows[1])
}

func TestGenerateReportToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, sampleReporter().GenerateReport(path, "json"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "98765432000110")
}

func TestStatusDone(t *testing.T) {
	assert.True(t, StatusSaved.Done())
	assert.True(t, StatusNotRegistered.Done())
	assert.False(t, StatusSaveFailed.Done())
	assert.False(t, StatusDryRun.Done())
}

func TestFailureLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "cadastros_erro.log")

	fl, err := OpenFailureLog(path)
	require.NoError(t, err)
	fl.Record("tax id not registered", "12345678000190")
	require.NoError(t, fl.Close())

	fl, err = OpenFailureLog(path)
	require.NoError(t, err)
	fl.Record("save failed", "98765432000110")
	require.NoError(t, fl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "- tax id not registered: 12345678000190"))
	assert.True(t, strings.HasSuffix(lines[1], "- save failed: 98765432000110"))
}

func TestFailureLogDiscard(t *testing.T) {
	fl, err := OpenFailureLog("")
	require.NoError(t, err)
	fl.Record("anything", "1")
	assert.NoError(t, fl.Close())
}
