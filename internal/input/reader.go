package input

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Record is one company row to be registered as a partner.
type Record struct {
	Name  string `json:"name" validate:"required"`
	TaxID string `json:"tax_id" validate:"required"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Line  int    `json:"line"` // 1-based line in the source, header included
}

// RowError describes a row that was read but rejected. Record holds whatever the row
// contained; it is empty apart from Line when the row could not be parsed.
type RowError struct {
	Line   int
	Record Record
	Err    error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// Column aliases accepted in the header row, case-insensitive.
var columnAliases = map[string][]string{
	"name":   {"nome", "name", "razao_social"},
	"tax_id": {"cnpj", "tax_id", "cnpj_cpf", "cpf_cnpj"},
	"phone":  {"telefone", "phone", "fone"},
	"email":  {"email", "e-mail", "mail"},
}

// Reader reads company records from CSV files or stdin.
type Reader struct {
	delimiter rune
	validate  *validator.Validate
}

// NewReader creates a new Reader. A zero delimiter means ','.
func NewReader(delimiter rune) *Reader {
	if delimiter == 0 {
		delimiter = ','
	}
	return &Reader{
		delimiter: delimiter,
		validate:  validator.New(),
	}
}

// ReadRecordsFromFile reads records from the CSV file at filePath.
func (r *Reader) ReadRecordsFromFile(filePath string) ([]Record, []RowError, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()
	return r.ReadRecords(file)
}

// ReadRecordsFromStdin reads records from standard input.
func (r *Reader) ReadRecordsFromStdin() ([]Record, []RowError, error) {
	return r.ReadRecords(os.Stdin)
}

// ReadRecords parses CSV with a header row. Structural problems (unreadable input,
// missing columns) are returned as err; per-row problems are collected in rowErrs
// and the row is left out of records.
func (r *Reader) ReadRecords(src io.Reader) (records []Record, rowErrs []RowError, err error) {
	cr := csv.NewReader(src)
	cr.Comma = r.delimiter
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx, err := mapColumns(header)
	if err != nil {
		return nil, nil, err
	}

	for {
		row, readErr := cr.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			var parseErr *csv.ParseError
			if errors.As(readErr, &parseErr) {
				rowErrs = append(rowErrs, RowError{Line: parseErr.Line, Record: Record{Line: parseErr.Line}, Err: parseErr.Err})
				continue
			}
			return records, rowErrs, fmt.Errorf("failed to read records: %w", readErr)
		}
		if isBlank(row) {
			continue
		}
		line, _ := cr.FieldPos(0)

		rec := Record{
			Name:  field(row, idx["name"]),
			TaxID: field(row, idx["tax_id"]),
			Phone: field(row, idx["phone"]),
			Email: field(row, idx["email"]),
			Line:  line,
		}
		if vErr := r.validate.Struct(rec); vErr != nil {
			rowErrs = append(rowErrs, RowError{Line: line, Record: rec, Err: describeValidation(vErr)})
			continue
		}
		records = append(records, rec)
	}
	return records, rowErrs, nil
}

func mapColumns(header []string) (map[string]int, error) {
	idx := map[string]int{"name": -1, "tax_id": -1, "phone": -1, "email": -1}
	for i, col := range header {
		norm := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")))
		for key, aliases := range columnAliases {
			for _, alias := range aliases {
				if norm == alias && idx[key] < 0 {
					idx[key] = i
				}
			}
		}
	}
	for _, required := range []string{"name", "tax_id"} {
		if idx[required] < 0 {
			return nil, fmt.Errorf("%w %q (accepted: %s)", ErrMissingColumn, required, strings.Join(columnAliases[required], ", "))
		}
	}
	return idx, nil
}

func field(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "email":
			msgs = append(msgs, fmt.Sprintf("invalid email %q", fe.Value()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
