package orchestrators

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"certmill/internal/domain/roster"
)

// LoadRoster parses a CSV stream with a header row into a roster.
// The NAME column is required; rows with a blank NAME cell get a
// synthesized user_<n> display name so every row still yields a
// certificate. The recipient-email column is looked up later by the
// batch orchestrator, so its presence is not validated here.
// PRE: r is a valid CSV stream with a header row
// POST: Returns the parsed roster, or a RosterValidationError
func LoadRoster(r io.Reader) (roster.Roster, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return roster.Roster{}, &RosterValidationError{Message: "roster has no header row"}
	}

	colIdx := make(map[string]int, len(header))
	var columns []string
	for i, h := range header {
		name := strings.ToUpper(strings.TrimSpace(h))
		colIdx[name] = i
		columns = append(columns, name)
	}

	if _, ok := colIdx[roster.NameColumn]; !ok {
		return roster.Roster{}, &RosterValidationError{Message: "roster missing required column: NAME"}
	}

	ro := roster.Roster{Columns: columns}
	rowNum := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return roster.Roster{}, &RosterValidationError{Message: fmt.Sprintf("row %d: %v", rowNum+2, err)}
		}

		values := make(map[string]string, len(columns))
		for name, i := range colIdx {
			if i < len(record) {
				values[name] = strings.TrimSpace(record[i])
			} else {
				values[name] = ""
			}
		}

		name := values[roster.NameColumn]
		if name == "" {
			name = fmt.Sprintf("user_%d", rowNum)
			values[roster.NameColumn] = name
		}

		ro.Rows = append(ro.Rows, roster.Row{Index: rowNum, Name: name, Values: values})
		rowNum++
	}

	if len(ro.Rows) == 0 {
		return roster.Roster{}, &RosterValidationError{Message: "roster has no data rows"}
	}
	return ro, nil
}

// RosterValidationError is returned when the CSV structure is invalid
// (e.g. missing required columns or a malformed record).
type RosterValidationError struct {
	Message string
}

// Error implements the error interface.
// PRE: e.Message is set.
// POST: returns the validation error message string.
func (e *RosterValidationError) Error() string {
	return e.Message
}
