package dbquery

import (
	"errors"
	"fmt"
	"strings"
)

// Dialect controls placeholder rendering.
type Dialect string

const (
	DialectSQLServer Dialect = "sqlserver"
	DialectPostgres  Dialect = "postgres"
)

var (
	ErrNoTable      = errors.New("dbquery: table is required")
	ErrNoColumns    = errors.New("dbquery: at least one column is required")
	ErrEmptyIn      = errors.New("dbquery: IN condition needs at least one value")
	ErrUnknownOp    = errors.New("dbquery: unsupported operator")
	ErrBadDialect   = errors.New("dbquery: unsupported dialect")
	ErrInvalidIdent = errors.New("dbquery: invalid identifier")
)

type Op string

const (
	OpEq Op = "="
	OpIn Op = "IN"
)

// Table is a table reference with an optional alias.
type Table struct {
	Name  string
	Alias string
}

// Join is an INNER JOIN on an equality between two qualified columns.
type Join struct {
	Table Table
	Left  string
	Right string
}

// Condition is ANDed with every other condition of the select.
type Condition struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, value any) Condition {
	return Condition{Column: column, Op: OpEq, Value: value}
}

// In builds an IN condition. values must be a slice of scalars.
func In[T any](column string, values []T) Condition {
	vs := make([]any, 0, len(values))
	for _, v := range values {
		vs = append(vs, v)
	}
	return Condition{Column: column, Op: OpIn, Value: vs}
}

// Select is the single read shape the stock lookups need.
type Select struct {
	From    Table
	Columns []string
	Joins   []Join
	Where   []Condition
}

// Pair is one row of a two-column select: key in the first column, value in the second.
type Pair struct {
	Key   any
	Value any
}

// Build renders the select for the given dialect and returns the positional args.
func (s Select) Build(d Dialect) (string, []any, error) {
	if s.From.Name == "" {
		return "", nil, ErrNoTable
	}
	if len(s.Columns) == 0 {
		return "", nil, ErrNoColumns
	}
	if d != DialectSQLServer && d != DialectPostgres {
		return "", nil, fmt.Errorf("%w: %q", ErrBadDialect, d)
	}

	var b strings.Builder
	args := make([]any, 0, len(s.Where))

	for _, c := range s.Columns {
		if !validIdent(c) {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidIdent, c)
		}
	}
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(s.Columns, ", "))

	from, err := renderTable(s.From)
	if err != nil {
		return "", nil, err
	}
	b.WriteString(" FROM ")
	b.WriteString(from)

	for _, j := range s.Joins {
		t, err := renderTable(j.Table)
		if err != nil {
			return "", nil, err
		}
		if !validIdent(j.Left) || !validIdent(j.Right) {
			return "", nil, fmt.Errorf("%w: join %q = %q", ErrInvalidIdent, j.Left, j.Right)
		}
		fmt.Fprintf(&b, " INNER JOIN %s ON %s = %s", t, j.Left, j.Right)
	}

	for i, c := range s.Where {
		if !validIdent(c.Column) {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidIdent, c.Column)
		}
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		switch c.Op {
		case OpEq:
			args = append(args, c.Value)
			fmt.Fprintf(&b, "%s = %s", c.Column, placeholder(d, len(args)))
		case OpIn:
			values, _ := c.Value.([]any)
			if len(values) == 0 {
				return "", nil, fmt.Errorf("%w: %s", ErrEmptyIn, c.Column)
			}
			marks := make([]string, 0, len(values))
			for _, v := range values {
				args = append(args, v)
				marks = append(marks, placeholder(d, len(args)))
			}
			fmt.Fprintf(&b, "%s IN (%s)", c.Column, strings.Join(marks, ", "))
		default:
			return "", nil, fmt.Errorf("%w: %q", ErrUnknownOp, c.Op)
		}
	}

	return b.String(), args, nil
}

func renderTable(t Table) (string, error) {
	if !validIdent(t.Name) {
		return "", fmt.Errorf("%w: table %q", ErrInvalidIdent, t.Name)
	}
	if t.Alias == "" {
		return t.Name, nil
	}
	if !validIdent(t.Alias) {
		return "", fmt.Errorf("%w: alias %q", ErrInvalidIdent, t.Alias)
	}
	return t.Name + " AS " + t.Alias, nil
}

func placeholder(d Dialect, n int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return fmt.Sprintf("@p%d", n)
}

// validIdent accepts plain or dot-qualified identifiers made of letters, digits and underscores.
func validIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			switch {
			case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			case r >= '0' && r <= '9' && i > 0:
			default:
				return false
			}
		}
	}
	return true
}
