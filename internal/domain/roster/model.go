package roster

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NameColumn is the required display-name column of every roster.
const NameColumn = "NAME"

// DefaultEmailColumn is the recipient-email column used when none is configured.
const DefaultEmailColumn = "EMAIL"

// Domain errors
var (
	ErrMissingNameColumn = errors.New("roster missing required column: NAME")
	ErrEmptyRoster       = errors.New("roster has no data rows")
)

// Row is one roster entry: a mapping from upper-cased column name to value.
// Rows are read once at batch start and never mutated afterwards.
type Row struct {
	Index  int // 0-based position in the roster
	Name   string
	Values map[string]string
}

// Value returns the row's value for the given column, case-insensitively.
// PRE: column is non-empty
// POST: Returns the trimmed value, or "" when the column is absent or blank
func (r Row) Value(column string) string {
	return strings.TrimSpace(r.Values[strings.ToUpper(strings.TrimSpace(column))])
}

// PathName returns the row's display name normalized for filesystem use.
// PRE: Name is set (LoadRoster synthesizes one for blank NAME cells)
// POST: Returns a non-empty ASCII-safe path segment
func (r Row) PathName() string {
	return PathSafe(r.Name)
}

// Roster is an immutable set of rows sharing one header.
type Roster struct {
	Columns []string // upper-cased header, in file order
	Rows    []Row
}

// HasColumn reports whether the roster header contains the given column.
// PRE: column is non-empty
// POST: Returns true if the upper-cased column appears in the header
func (ro Roster) HasColumn(column string) bool {
	want := strings.ToUpper(strings.TrimSpace(column))
	for _, c := range ro.Columns {
		if c == want {
			return true
		}
	}
	return false
}

// FindByName returns the first row whose NAME matches name exactly.
// PRE: name is non-empty
// POST: Returns the row, or an error when no row matches
func (ro Roster) FindByName(name string) (Row, error) {
	for _, r := range ro.Rows {
		if r.Name == name {
			return r, nil
		}
	}
	return Row{}, fmt.Errorf("no roster row named %q", name)
}

// foldDiacritics strips combining marks so accented names survive as ASCII.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// PathSafe normalizes free text into a path segment: diacritics folded,
// spaces collapsed to underscores, separators and control characters dropped.
// PRE: s may be any user-supplied string
// POST: Returns a segment safe to join into an output path; "unnamed" if nothing survives
func PathSafe(s string) string {
	folded, _, err := transform.String(foldDiacritics, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r == ' ' || r == '\t':
			b.WriteByte('_')
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			// path-hostile on at least one supported platform
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unnamed"
	}
	return out
}
