package repository

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PageSize is the fixed number of items per listing page.
const PageSize = 10

// SortDirection is the explicit direction of a listing sort.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// Sort orders a listing by a single field.
type Sort struct {
	Field     string
	Direction SortDirection
}

// NormalizePage clamps a 1-indexed page number.
func NormalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// Offset returns the row offset of a 1-indexed page.
func Offset(page, size int) int {
	return (NormalizePage(page) - 1) * size
}

// TotalPages is ceil(total/size).
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// PageBounds returns the [start, end) slice bounds of a page over n items.
func PageBounds(n, page, size int) (int, int) {
	start := Offset(page, size)
	if start > n {
		start = n
	}
	end := start + size
	if end > n {
		end = n
	}
	return start, end
}

// queryBuilder accumulates WHERE clauses with positional arguments.
type queryBuilder struct {
	clauses []string
	args    []any
}

func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// eq adds an exact-match clause. Empty values are skipped.
func (b *queryBuilder) eq(column, value string) {
	if value == "" {
		return
	}
	b.clauses = append(b.clauses, column+" = "+b.arg(value))
}

// search adds a case-insensitive substring match OR-ed across columns.
func (b *queryBuilder) search(term string, columns ...string) {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return
	}
	placeholder := b.arg("%" + likeEscaper.Replace(term) + "%")
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = col + " ILIKE " + placeholder
	}
	b.clauses = append(b.clauses, "("+strings.Join(parts, " OR ")+")")
}

func (b *queryBuilder) where() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// orderBy renders an ORDER BY clause for a whitelisted field, falling back
// when the requested field is unknown.
func orderBy(s Sort, columns map[string]string, fallback Sort) string {
	col, ok := columns[s.Field]
	if !ok {
		col = columns[fallback.Field]
		s = fallback
	}
	dir := SortDesc
	if strings.EqualFold(string(s.Direction), string(SortAsc)) {
		dir = SortAsc
	}
	return " ORDER BY " + col + " " + string(dir)
}

func limitOffset(page, size int) string {
	return fmt.Sprintf(" LIMIT %d OFFSET %d", size, Offset(page, size))
}

// validID reports whether id can address a row. Malformed ids are treated as
// missing rows instead of store failures.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
