package ddl

// Logical column types. Each backend maps them to its own SQL type.
const (
	TypeText      = "text"
	TypeFloat     = "float"
	TypeTimestamp = "timestamp"
)

// ColumnDef describes one column.
//
// Type is the logical type; SQLType is the rendered type and is filled by
// Map before rendering. Default is emitted as raw SQL.
type ColumnDef struct {
	Name       string
	Type       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds a possibly schema-qualified table name ("schema.table") and
// an ordered list of columns.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// ColumnNames returns the column names in order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// Map returns a copy of t with SQLType set from mapType(Type) on every column
// that has no explicit SQLType.
func (t TableDef) Map(mapType func(logical string) string) TableDef {
	out := TableDef{FQN: t.FQN, Columns: make([]ColumnDef, len(t.Columns))}
	copy(out.Columns, t.Columns)
	for i := range out.Columns {
		if out.Columns[i].SQLType == "" {
			out.Columns[i].SQLType = mapType(out.Columns[i].Type)
		}
	}
	return out
}
