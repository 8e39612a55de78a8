// Package database is the relational half of unidb.
//
// A Client owns exactly one SQL connection (see Conn) and turns predicate
// based select/insert/remove/modify calls into literal SQL text that it runs
// through RunRaw. Values are embedded into the text, quoted, with single
// quotes backslash-escaped; nothing is parameterized.
//
// Usage:
//
//	cfg := database.DefaultConfig()
//	cfg.Schema, cfg.Table = "shop", "users"
//	client := database.NewClient(cfg, mysql.New(), log)
//	if err := client.Connect(ctx); err != nil { ... }
//	defer client.Disconnect()
//
//	rs, err := client.Select(ctx, database.Predicate{
//	    {database.Cond("age", ">30"), database.Cond("city", `="Oslo"`)},
//	}, 0, 20)
package database

import (
	"context"

	"github.com/koustreak/unidb/internal/value"
)

// Default select/modify window.
const (
	DefaultOffset = 0
	DefaultLimit  = 1000

	// NoLimit disables the LIMIT clause when passed as offset or limit.
	NoLimit = -1
)

// Field pairs a column name with a value. In a predicate the value's text
// is appended right after the column name, so it carries the comparison
// operator itself (e.g. ">30", "='x'"). In assignments and inserts the value
// is quoted as a literal.
type Field struct {
	Name  string
	Value value.Value
}

// Cond builds a predicate field whose condition text is expr, e.g.
// Cond("age", ">=18").
func Cond(name, expr string) Field {
	return Field{Name: name, Value: value.Text(expr)}
}

// Set builds an assignment field for Modify.
func Set(name string, v value.Value) Field {
	return Field{Name: name, Value: v}
}

// Clause is a conjunction: every field must hold. Field names should be
// unique within a clause; caller order is kept in the emitted SQL.
type Clause []Field

// Predicate is a disjunction of clauses. An empty Predicate matches all rows
// and emits no WHERE clause.
type Predicate []Clause

// ResultSet is what every relational operation returns.
type ResultSet struct {
	// Affected is the backend-reported number of rows touched. For SELECT it
	// is the number of rows returned.
	Affected int64

	// Rows holds the returned rows in result order, columns in table order.
	Rows []value.Row
}

// Empty reports whether rs carries neither rows nor an affected count.
func (rs ResultSet) Empty() bool {
	return rs.Affected == 0 && len(rs.Rows) == 0
}

// Conn is a single physical SQL connection. Drivers (mysql, postgres)
// implement it; Client serializes access to it.
type Conn interface {
	// Open establishes the connection described by cfg, replacing any
	// previous one.
	Open(ctx context.Context, cfg Config) error

	// Close releases the connection. Closing a closed Conn is a no-op.
	Close() error

	// IsOpen reports whether the connection is established.
	IsOpen() bool

	// Run executes query and returns the affected count and all rows.
	Run(ctx context.Context, query string) (int64, []value.Row, error)

	// Rollback aborts the pending transaction on this connection, if any.
	Rollback(ctx context.Context) error

	// Dialect tells the builder how to quote identifiers and literals.
	Dialect() Dialect
}
