package store

import (
	"strings"
	"time"
)

// Table names
const (
	TableWorkflow = "workflow"
	TableNode     = "node"
	TableEdge     = "edge"
	TableProblem  = "problem"
	TableError    = "error"
)

// ColumnType is the logical type of a column, mapped per dialect
type ColumnType int

const (
	TypeID ColumnType = iota
	TypeInt
	TypeFloat
	TypeText
	TypeBool
	TypeJSON
	TypeTime
)

// Column describes one column
type Column struct {
	Name      string
	Type      ColumnType
	NotNull   bool
	Default   string // dialect-neutral default: "now", "true", "false", or a literal
	Reference string // "table" the column points at, if any
	Cascade   bool   // delete this row when the referenced row goes
}

// TableDef describes one table. The first column is always the id.
type TableDef struct {
	Name    string
	Columns []Column
}

// HasColumn reports whether col exists
func (t TableDef) HasColumn(col string) bool {
	_, ok := t.Column(col)
	return ok
}

// Column looks up a column by name
func (t TableDef) Column(col string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == col {
			return c, true
		}
	}
	return Column{}, false
}

// IsJSON reports whether col holds a JSON document
func (t TableDef) IsJSON(col string) bool {
	c, ok := t.Column(col)
	return ok && c.Type == TypeJSON
}

// IsBool reports whether col holds a boolean
func (t TableDef) IsBool(col string) bool {
	c, ok := t.Column(col)
	return ok && c.Type == TypeBool
}

// Schema is every table the application persists, in creation order
var Schema = []TableDef{
	{
		Name: TableWorkflow,
		Columns: []Column{
			{Name: "id", Type: TypeID},
			{Name: "title", Type: TypeText, NotNull: true},
			{Name: "slug", Type: TypeText},
			{Name: "description", Type: TypeText},
			{Name: "domain", Type: TypeText},
			{Name: "status", Type: TypeText, NotNull: true, Default: "'draft'"},
			{Name: "version", Type: TypeText, NotNull: true, Default: "'1.0'"},
			{Name: "created_at", Type: TypeTime, Default: "now"},
			{Name: "updated_at", Type: TypeTime, Default: "now"},
		},
	},
	{
		Name: TableNode,
		Columns: []Column{
			{Name: "id", Type: TypeID},
			{Name: "workflow_id", Type: TypeInt, NotNull: true, Reference: TableWorkflow, Cascade: true},
			{Name: "provider_id", Type: TypeText},
			{Name: "title", Type: TypeText, NotNull: true},
			{Name: "type", Type: TypeText, NotNull: true, Default: "'action'"},
			{Name: "x", Type: TypeFloat},
			{Name: "y", Type: TypeFloat},
			{Name: "details", Type: TypeJSON},
			{Name: "status", Type: TypeText, Default: "'active'"},
			{Name: "created_at", Type: TypeTime, Default: "now"},
			{Name: "updated_at", Type: TypeTime, Default: "now"},
		},
	},
	{
		Name: TableEdge,
		Columns: []Column{
			{Name: "id", Type: TypeID},
			{Name: "workflow_id", Type: TypeInt, NotNull: true, Reference: TableWorkflow, Cascade: true},
			{Name: "from_node_id", Type: TypeInt, NotNull: true, Reference: TableNode},
			{Name: "to_node_id", Type: TypeInt, NotNull: true, Reference: TableNode},
			{Name: "label", Type: TypeText},
			{Name: "style", Type: TypeText, Default: "'solid'"},
			{Name: "metadata", Type: TypeJSON},
			{Name: "created_at", Type: TypeTime, Default: "now"},
		},
	},
	{
		Name: TableProblem,
		Columns: []Column{
			{Name: "id", Type: TypeID},
			{Name: "workflow_id", Type: TypeInt, NotNull: true, Reference: TableWorkflow, Cascade: true},
			{Name: "description", Type: TypeText, NotNull: true},
			{Name: "is_solved", Type: TypeBool, NotNull: true, Default: "false"},
			{Name: "solution", Type: TypeText},
			{Name: "owner_names", Type: TypeText},
			{Name: "reported_at", Type: TypeTime, Default: "now"},
			{Name: "solved_at", Type: TypeTime},
			{Name: "created_at", Type: TypeTime, Default: "now"},
			{Name: "updated_at", Type: TypeTime, Default: "now"},
		},
	},
	{
		Name: TableError,
		Columns: []Column{
			{Name: "id", Type: TypeID},
			{Name: "workflow_id", Type: TypeInt, NotNull: true, Reference: TableWorkflow, Cascade: true},
			{Name: "node_id", Type: TypeInt, NotNull: true, Reference: TableNode, Cascade: true},
			{Name: "description", Type: TypeText, NotNull: true},
			{Name: "is_fixed", Type: TypeBool, NotNull: true, Default: "false"},
			{Name: "solution", Type: TypeText},
			{Name: "solver_contact_id", Type: TypeInt},
			{Name: "reported_at", Type: TypeTime, Default: "now"},
			{Name: "fixed_at", Type: TypeTime},
			{Name: "created_at", Type: TypeTime, Default: "now"},
			{Name: "updated_at", Type: TypeTime, Default: "now"},
		},
	},
}

// Lookup returns the definition of a table
func Lookup(name string) (TableDef, bool) {
	for _, t := range Schema {
		if t.Name == name {
			return t, true
		}
	}
	return TableDef{}, false
}

// ApplyDefaults fills absent columns that declare a default. Backends that
// do not run DDL (memory) use it to mimic the database.
func ApplyDefaults(def TableDef, row Row, now time.Time) {
	for _, c := range def.Columns {
		if _, ok := row[c.Name]; ok || c.Default == "" {
			continue
		}
		switch c.Default {
		case "now":
			row[c.Name] = now
		case "true":
			row[c.Name] = true
		case "false":
			row[c.Name] = false
		default:
			row[c.Name] = strings.Trim(c.Default, "'")
		}
	}
}
