package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/upishield/shikra/internal/domain"
)

// Required CSV columns, matched case-insensitively against the header.
var requiredColumns = []string{"senderupi", "receiverupi", "amount"}

// Row is one parsed CSV data row. Line is the 1-based data row index
// (the header is line 0).
type Row struct {
	Line   int
	Fields map[string]string
}

// Rows is a parsed CSV batch.
type Rows struct {
	Headers []string
	Records []Row
}

// ParseCSV reads a batch file: a header row that must include
// senderupi, receiverupi, and amount, followed by data rows. Blank
// lines are not rows; short rows are kept and fail later as row-level
// errors rather than being silently skipped.
func ParseCSV(r io.Reader) (*Rows, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: CSV must have a header and at least one data row", domain.ErrInvalidInput)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV header: %v", domain.ErrInvalidInput, err)
	}

	headers := make([]string, len(header))
	for i, h := range header {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var missing []string
	for _, col := range requiredColumns {
		found := false
		for _, h := range headers {
			if h == col {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required fields: %s (required: %s)",
			domain.ErrInvalidInput,
			strings.Join(missing, ", "),
			strings.Join(requiredColumns, ", "))
	}

	rows := &Rows{Headers: headers}
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read CSV row: %v", domain.ErrInvalidInput, err)
		}

		line++
		fields := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(record) {
				fields[h] = strings.TrimSpace(record[i])
			}
		}
		rows.Records = append(rows.Records, Row{Line: line, Fields: fields})
	}

	if len(rows.Records) == 0 {
		return nil, fmt.Errorf("%w: CSV must have a header and at least one data row", domain.ErrInvalidInput)
	}

	return rows, nil
}
