package database

import (
	"fmt"
	"strings"

	"github.com/koustreak/unidb/internal/value"
)

// Dialect controls identifier quoting, literal quoting and the LIMIT form.
type Dialect int

const (
	// DialectMySQL quotes identifiers with backticks and emits LIMIT o,n.
	DialectMySQL Dialect = iota

	// DialectPostgres quotes identifiers with double quotes, emits
	// LIMIT n OFFSET o and writes literals as E'...' so backslash escapes hold.
	DialectPostgres
)

func (d Dialect) String() string {
	if d == DialectPostgres {
		return "postgres"
	}
	return "mysql"
}

// Builder renders the SQL text for one table. It performs no I/O.
//
// Known weaknesses kept on purpose:
//   - values are embedded as literals, never bound as parameters;
//   - a predicate value's text is concatenated right after the column name,
//     so it chooses the comparison operator and can inject arbitrary SQL.
type Builder struct {
	Dialect Dialect
	Table   string
}

// Select renders SELECT * FROM t[ WHERE ...][ LIMIT ...].
func (b Builder) Select(p Predicate, offset, limit int) string {
	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(b.quoteIdent(b.Table))
	sb.WriteString(b.where(p))
	sb.WriteString(b.limit(offset, limit))
	return sb.String()
}

// Insert renders INSERT INTO t[ (cols)] VALUES (...), (...). It returns ""
// when rows is empty.
func (b Builder) Insert(rows []value.Row, columns []string) string {
	if len(rows) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.quoteIdent(b.Table))

	if len(columns) > 0 {
		quoted := make([]string, len(columns))
		for i, c := range columns {
			quoted[i] = b.quoteIdent(c)
		}
		sb.WriteString(" (")
		sb.WriteString(strings.Join(quoted, ", "))
		sb.WriteString(")")
	}

	sb.WriteString(" VALUES ")
	for i, row := range rows {
		if i > 0 {
			sb.WriteString(", ")
		}
		literals := make([]string, len(row))
		for j, v := range row {
			literals[j] = b.literal(v)
		}
		sb.WriteString("(")
		sb.WriteString(strings.Join(literals, ", "))
		sb.WriteString(")")
	}
	return sb.String()
}

// Delete renders DELETE FROM t[ WHERE ...].
func (b Builder) Delete(p Predicate) string {
	return "DELETE FROM " + b.quoteIdent(b.Table) + b.where(p)
}

// Update renders UPDATE t SET k='v', ...[ WHERE ...][ LIMIT ...]. It returns
// "" when p or set is empty so a missing filter can never update every row.
// Postgres has no UPDATE ... LIMIT, so the window is dropped for it.
func (b Builder) Update(p Predicate, set []Field, offset, limit int) string {
	if len(p) == 0 || len(set) == 0 {
		return ""
	}

	assigns := make([]string, len(set))
	for i, f := range set {
		assigns[i] = b.quoteIdent(f.Name) + "=" + b.literal(f.Value)
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(b.quoteIdent(b.Table))
	sb.WriteString(" SET ")
	sb.WriteString(strings.Join(assigns, ", "))
	sb.WriteString(b.where(p))
	if b.Dialect != DialectPostgres {
		sb.WriteString(b.limit(offset, limit))
	}
	return sb.String()
}

// where renders " WHERE ((a>1 and b=2) or (c=3))", or "" for an empty predicate.
func (b Builder) where(p Predicate) string {
	if len(p) == 0 {
		return ""
	}

	clauses := make([]string, len(p))
	for i, clause := range p {
		conds := make([]string, len(clause))
		for j, f := range clause {
			conds[j] = b.quoteIdent(f.Name) + escape(f.Value.AsString())
		}
		clauses[i] = "(" + strings.Join(conds, " and ") + ")"
	}
	return " WHERE (" + strings.Join(clauses, " or ") + ")"
}

// limit renders the window only when both bounds are non-negative.
func (b Builder) limit(offset, limit int) string {
	if offset < 0 || limit < 0 {
		return ""
	}
	if b.Dialect == DialectPostgres {
		return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	}
	return fmt.Sprintf(" LIMIT %d,%d", offset, limit)
}

func (b Builder) quoteIdent(name string) string {
	if b.Dialect == DialectPostgres {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return "`" + name + "`"
}

func (b Builder) literal(v value.Value) string {
	if b.Dialect == DialectPostgres {
		return "E'" + escape(v.AsString()) + "'"
	}
	return "'" + escape(v.AsString()) + "'"
}

// escape backslash-escapes single quotes. Backslashes themselves are left
// alone, matching the historical text format.
func escape(s string) string {
	return strings.ReplaceAll(s, "'", `\'`)
}
