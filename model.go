package main

import "sort"

// Column is a normalized table column. DataType carries the engine type
// with its length embedded (e.g. "varchar(255)").
type Column struct {
	Name            string
	DataType        string
	Default         string // empty means no default
	Nullable        bool
	Comment         string
	IsAutoIncrement bool
}

// Index is a named index. Columns are ordered by key position.
type Index struct {
	Name      string
	Columns   []string
	Predicate string // partial-index condition, empty when unconditional
	IsUnique  bool
}

// ForeignColumn identifies the column a foreign key points at.
type ForeignColumn struct {
	TableName  string
	ColumnName string
}

func (fc ForeignColumn) String() string {
	return fc.TableName + "." + fc.ColumnName
}

// ConstraintKind distinguishes the constraint types a Table may carry.
type ConstraintKind string

const ConstraintForeignKey ConstraintKind = "FOREIGN KEY"

// Constraint is implemented by every constraint kind stored on a Table.
type Constraint interface {
	ConstraintName() string
	ConstraintKind() ConstraintKind
}

// ForeignKey is a foreign key constraint. Only the first referenced column
// is kept; multi-column references are compared by that column alone.
type ForeignKey struct {
	Name          string
	Columns       []string // local columns, ordered
	ForeignColumn ForeignColumn
}

func (fk *ForeignKey) ConstraintName() string         { return fk.Name }
func (fk *ForeignKey) ConstraintKind() ConstraintKind { return ConstraintForeignKey }

// Table holds the full normalized description of one table.
type Table struct {
	Name        string
	Comment     string
	Columns     []Column
	Indexes     []Index
	Constraints []Constraint
}

// ForeignKeys returns the foreign key constraints in declaration order.
func (t *Table) ForeignKeys() []*ForeignKey {
	var fks []*ForeignKey
	for _, c := range t.Constraints {
		if fk, ok := c.(*ForeignKey); ok {
			fks = append(fks, fk)
		}
	}
	return fks
}

func (t *Table) FindColumn(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

func (t *Table) FindIndex(name string) (*Index, bool) {
	for i := range t.Indexes {
		if t.Indexes[i].Name == name {
			return &t.Indexes[i], true
		}
	}
	return nil, false
}

func (t *Table) FindForeignKey(name string) (*ForeignKey, bool) {
	for _, fk := range t.ForeignKeys() {
		if fk.Name == name {
			return fk, true
		}
	}
	return nil, false
}

// Snapshot maps table name to its description for one database.
type Snapshot map[string]*Table

// TableNames returns the snapshot's table names in sorted order.
func (s Snapshot) TableNames() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
