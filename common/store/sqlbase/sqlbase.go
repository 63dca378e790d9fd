// Package sqlbase builds the SQL shared by the postgres and sqlite backends.
// Column names come from the static schema and are checked before they are
// interpolated; every value travels as a bind argument.
package sqlbase

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lyzr/workflow-router/common/store"
)

// Dialect captures the differences between the SQL engines we target
type Dialect struct {
	Name        string
	Placeholder func(n int) string
	IDColumn    string
	Types       map[store.ColumnType]string
	Now         string
	Bool        func(v bool) string

	// JSONAsText marshals JSON columns to text before binding
	JSONAsText bool
}

// Postgres dialect ($1 placeholders, JSONB)
var Postgres = Dialect{
	Name:        "postgres",
	Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	IDColumn:    "BIGSERIAL PRIMARY KEY",
	Types: map[store.ColumnType]string{
		store.TypeInt:   "BIGINT",
		store.TypeFloat: "DOUBLE PRECISION",
		store.TypeText:  "TEXT",
		store.TypeBool:  "BOOLEAN",
		store.TypeJSON:  "JSONB",
		store.TypeTime:  "TIMESTAMPTZ",
	},
	Now: "now()",
	Bool: func(v bool) string {
		if v {
			return "TRUE"
		}
		return "FALSE"
	},
}

// SQLite dialect (? placeholders, JSON stored as TEXT)
var SQLite = Dialect{
	Name:        "sqlite",
	Placeholder: func(int) string { return "?" },
	IDColumn:    "INTEGER PRIMARY KEY AUTOINCREMENT",
	Types: map[store.ColumnType]string{
		store.TypeInt:   "INTEGER",
		store.TypeFloat: "REAL",
		store.TypeText:  "TEXT",
		store.TypeBool:  "INTEGER",
		store.TypeJSON:  "TEXT",
		store.TypeTime:  "TIMESTAMP",
	},
	Now: "CURRENT_TIMESTAMP",
	Bool: func(v bool) string {
		if v {
			return "1"
		}
		return "0"
	},
	JSONAsText: true,
}

// Statement is SQL text plus its bind arguments
type Statement struct {
	SQL  string
	Args []any
}

type builder struct {
	d    Dialect
	def  store.TableDef
	sb   strings.Builder
	args []any
}

func newBuilder(d Dialect, def store.TableDef) *builder {
	return &builder{d: d, def: def}
}

func (b *builder) bind(col string, v any) (string, error) {
	if b.def.IsJSON(col) && b.d.JSONAsText && v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode %s.%s: %w", b.def.Name, col, err)
		}
		v = string(data)
	}
	b.args = append(b.args, v)
	return b.d.Placeholder(len(b.args)), nil
}

func (b *builder) where(filters []store.Filter) error {
	if len(filters) == 0 {
		return nil
	}
	clauses := make([]string, 0, len(filters))
	for _, f := range filters {
		switch f.Op {
		case store.OpEq:
			if f.Value == nil {
				clauses = append(clauses, quote(f.Col)+" IS NULL")
				continue
			}
			ph, err := b.bind(f.Col, f.Value)
			if err != nil {
				return err
			}
			clauses = append(clauses, quote(f.Col)+" = "+ph)
		case store.OpIn:
			values := f.Values()
			if len(values) == 0 {
				clauses = append(clauses, "1 = 0")
				continue
			}
			phs := make([]string, len(values))
			for i, v := range values {
				ph, err := b.bind(f.Col, v)
				if err != nil {
					return err
				}
				phs[i] = ph
			}
			clauses = append(clauses, quote(f.Col)+" IN ("+strings.Join(phs, ", ")+")")
		}
	}
	b.sb.WriteString(" WHERE ")
	b.sb.WriteString(strings.Join(clauses, " AND "))
	return nil
}

func (b *builder) statement() Statement {
	return Statement{SQL: b.sb.String(), Args: b.args}
}

// Select builds SELECT * for a query
func Select(d Dialect, def store.TableDef, q store.Query) (Statement, error) {
	if err := store.CheckFilters(def, q.Filters); err != nil {
		return Statement{}, err
	}
	if err := store.CheckOrder(def, q.Order); err != nil {
		return Statement{}, err
	}

	b := newBuilder(d, def)
	b.sb.WriteString("SELECT * FROM ")
	b.sb.WriteString(quote(def.Name))
	if err := b.where(q.Filters); err != nil {
		return Statement{}, err
	}
	if len(q.Order) > 0 {
		parts := make([]string, len(q.Order))
		for i, o := range q.Order {
			dir := "ASC"
			if o.Desc {
				dir = "DESC"
			}
			parts[i] = quote(o.Col) + " " + dir
		}
		b.sb.WriteString(" ORDER BY ")
		b.sb.WriteString(strings.Join(parts, ", "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b.sb, " LIMIT %d", q.Limit)
	}
	return b.statement(), nil
}

// Insert builds INSERT ... RETURNING *. The id column is always assigned by
// the database.
func Insert(d Dialect, def store.TableDef, row store.Row) (Statement, error) {
	if err := store.CheckColumns(def, row); err != nil {
		return Statement{}, err
	}

	b := newBuilder(d, def)
	cols := sortedColumns(def, row)
	b.sb.WriteString("INSERT INTO ")
	b.sb.WriteString(quote(def.Name))
	if len(cols) == 0 {
		b.sb.WriteString(" DEFAULT VALUES RETURNING *")
		return b.statement(), nil
	}

	names := make([]string, len(cols))
	phs := make([]string, len(cols))
	for i, col := range cols {
		ph, err := b.bind(col, row[col])
		if err != nil {
			return Statement{}, err
		}
		names[i] = quote(col)
		phs[i] = ph
	}
	fmt.Fprintf(&b.sb, " (%s) VALUES (%s) RETURNING *", strings.Join(names, ", "), strings.Join(phs, ", "))
	return b.statement(), nil
}

// Update builds UPDATE ... WHERE id = ? RETURNING *. updated_at is bumped
// when the table has one. An empty patch on a table without updated_at
// degrades to a SELECT of the row.
func Update(d Dialect, def store.TableDef, id any, patch store.Row) (Statement, error) {
	if err := store.CheckColumns(def, patch); err != nil {
		return Statement{}, err
	}

	cols := sortedColumns(def, patch)
	bump := def.HasColumn("updated_at") && patch["updated_at"] == nil
	if len(cols) == 0 && !bump {
		return Select(d, def, store.Query{Filters: []store.Filter{store.Eq("id", id)}, Limit: 1})
	}

	b := newBuilder(d, def)
	sets := make([]string, 0, len(cols)+1)
	for _, col := range cols {
		if col == "updated_at" && bump {
			continue
		}
		ph, err := b.bind(col, patch[col])
		if err != nil {
			return Statement{}, err
		}
		sets = append(sets, quote(col)+" = "+ph)
	}
	if bump {
		sets = append(sets, quote("updated_at")+" = "+d.Now)
	}

	b.sb.WriteString("UPDATE ")
	b.sb.WriteString(quote(def.Name))
	b.sb.WriteString(" SET ")
	b.sb.WriteString(strings.Join(sets, ", "))
	if err := b.where([]store.Filter{store.Eq("id", id)}); err != nil {
		return Statement{}, err
	}
	b.sb.WriteString(" RETURNING *")
	return b.statement(), nil
}

// Delete builds DELETE ... WHERE. Refuses to build an unfiltered delete.
func Delete(d Dialect, def store.TableDef, filters ...store.Filter) (Statement, error) {
	if len(filters) == 0 {
		return Statement{}, fmt.Errorf("table %s: refusing delete without filters", def.Name)
	}
	if err := store.CheckFilters(def, filters); err != nil {
		return Statement{}, err
	}

	b := newBuilder(d, def)
	b.sb.WriteString("DELETE FROM ")
	b.sb.WriteString(quote(def.Name))
	if err := b.where(filters); err != nil {
		return Statement{}, err
	}
	return b.statement(), nil
}

// CreateTable renders CREATE TABLE IF NOT EXISTS for def
func CreateTable(d Dialect, def store.TableDef) string {
	cols := make([]string, 0, len(def.Columns))
	for _, c := range def.Columns {
		if c.Type == store.TypeID {
			cols = append(cols, quote(c.Name)+" "+d.IDColumn)
			continue
		}
		var sb strings.Builder
		sb.WriteString(quote(c.Name))
		sb.WriteString(" ")
		sb.WriteString(d.Types[c.Type])
		if c.NotNull {
			sb.WriteString(" NOT NULL")
		}
		switch c.Default {
		case "":
		case "now":
			sb.WriteString(" DEFAULT " + d.Now)
		case "true":
			sb.WriteString(" DEFAULT " + d.Bool(true))
		case "false":
			sb.WriteString(" DEFAULT " + d.Bool(false))
		default:
			sb.WriteString(" DEFAULT " + c.Default)
		}
		if c.Reference != "" {
			sb.WriteString(" REFERENCES " + quote(c.Reference) + "(\"id\")")
			if c.Cascade {
				sb.WriteString(" ON DELETE CASCADE")
			}
		}
		cols = append(cols, sb.String())
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", quote(def.Name), strings.Join(cols, ",\n\t"))
}

// Normalize folds driver-native values into the shapes store callers
// expect: JSON columns decoded into maps, boolean columns into bool.
func Normalize(def store.TableDef, row store.Row) store.Row {
	for col, v := range row {
		switch {
		case v == nil:
		case def.IsJSON(col):
			row[col] = store.JSONMap(v)
		case def.IsBool(col):
			row[col] = store.Bool(v)
		}
	}
	return row
}

func sortedColumns(def store.TableDef, row store.Row) []string {
	cols := make([]string, 0, len(row))
	for _, c := range def.Columns {
		if c.Type == store.TypeID {
			continue
		}
		if _, ok := row[c.Name]; ok {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

func quote(ident string) string {
	return `"` + ident + `"`
}
