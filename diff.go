package main

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/message"
)

// DiffKind identifies one kind of schema difference independent of locale.
type DiffKind string

const (
	KindTableMissing        DiffKind = "table_missing"
	KindTableComment        DiffKind = "table_comment"
	KindColumnMissing       DiffKind = "column_missing"
	KindColumnDataType      DiffKind = "column_data_type"
	KindColumnComment       DiffKind = "column_comment"
	KindColumnNullable      DiffKind = "column_nullable"
	KindColumnDefault       DiffKind = "column_default"
	KindColumnAutoIncrement DiffKind = "column_auto_increment"
	KindIndexMissing        DiffKind = "index_missing"
	KindIndexColumns        DiffKind = "index_columns"
	KindIndexPredicate      DiffKind = "index_predicate"
	KindIndexUnique         DiffKind = "index_unique"
	KindForeignKeyMissing   DiffKind = "foreign_key_missing"
	KindForeignKeyReference DiffKind = "foreign_key_reference"
)

var allDiffKinds = []DiffKind{
	KindTableMissing,
	KindTableComment,
	KindColumnMissing,
	KindColumnDataType,
	KindColumnComment,
	KindColumnNullable,
	KindColumnDefault,
	KindColumnAutoIncrement,
	KindIndexMissing,
	KindIndexColumns,
	KindIndexPredicate,
	KindIndexUnique,
	KindForeignKeyMissing,
	KindForeignKeyReference,
}

func parseDiffKind(s string) (DiffKind, error) {
	k := DiffKind(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(allDiffKinds, k) {
		return k, nil
	}
	return "", fmt.Errorf("unknown difference kind %q", s)
}

// Difference is one detected discrepancy. Object is the column, index or
// foreign key name and is empty for table-level differences. Base and Target hold
// the rendered attribute values for mismatches.
type Difference struct {
	Kind   DiffKind
	Table  string
	Object string
	Base   string
	Target string
}

// DiffOptions tunes which differences are reported.
type DiffOptions struct {
	Ignore []DiffKind
}

// diffSnapshots detects every way target falls short of base. Objects that
// exist only in target are never reported. The result is ordered by table
// name, then by the base table's declaration order.
func diffSnapshots(base, target Snapshot, opts DiffOptions) []Difference {
	var diffs []Difference
	for _, name := range base.TableNames() {
		diffs = append(diffs, diffTable(name, base[name], target, opts)...)
	}
	return diffs
}

// diffTable compares one base table against its namesake in target.
func diffTable(name string, baseTable *Table, target Snapshot, opts DiffOptions) []Difference {
	var diffs []Difference
	emit := func(d Difference) {
		if !slices.Contains(opts.Ignore, d.Kind) {
			diffs = append(diffs, d)
		}
	}

	targetTable, ok := target[name]
	if !ok || targetTable == nil {
		emit(Difference{Kind: KindTableMissing, Table: name})
		return diffs
	}
	if baseTable == nil {
		return diffs
	}
	if baseTable.Comment != targetTable.Comment {
		emit(Difference{Kind: KindTableComment, Table: name, Base: baseTable.Comment, Target: targetTable.Comment})
	}
	diffColumns(name, baseTable, targetTable, emit)
	diffIndexes(name, baseTable, targetTable, emit)
	diffForeignKeys(name, baseTable, targetTable, emit)
	return diffs
}

func diffColumns(table string, base, target *Table, emit func(Difference)) {
	for _, bc := range base.Columns {
		tc, ok := target.FindColumn(bc.Name)
		if !ok {
			emit(Difference{Kind: KindColumnMissing, Table: table, Object: bc.Name})
			continue
		}
		mismatch := func(kind DiffKind, b, t string) {
			if b != t {
				emit(Difference{Kind: kind, Table: table, Object: bc.Name, Base: b, Target: t})
			}
		}
		mismatch(KindColumnDataType, bc.DataType, tc.DataType)
		mismatch(KindColumnComment, bc.Comment, tc.Comment)
		mismatch(KindColumnNullable, nullableText(bc.Nullable), nullableText(tc.Nullable))
		mismatch(KindColumnDefault, bc.Default, tc.Default)
		mismatch(KindColumnAutoIncrement, autoIncrementText(bc.IsAutoIncrement), autoIncrementText(tc.IsAutoIncrement))
	}
}

func diffIndexes(table string, base, target *Table, emit func(Difference)) {
	for _, bi := range base.Indexes {
		ti, ok := target.FindIndex(bi.Name)
		if !ok {
			emit(Difference{Kind: KindIndexMissing, Table: table, Object: bi.Name})
			continue
		}
		if !slices.Equal(bi.Columns, ti.Columns) {
			emit(Difference{
				Kind:   KindIndexColumns,
				Table:  table,
				Object: bi.Name,
				Base:   strings.Join(bi.Columns, ", "),
				Target: strings.Join(ti.Columns, ", "),
			})
		}
		if bi.Predicate != ti.Predicate {
			emit(Difference{Kind: KindIndexPredicate, Table: table, Object: bi.Name, Base: bi.Predicate, Target: ti.Predicate})
		}
		if bi.IsUnique != ti.IsUnique {
			emit(Difference{
				Kind:   KindIndexUnique,
				Table:  table,
				Object: bi.Name,
				Base:   uniqueText(bi.IsUnique),
				Target: uniqueText(ti.IsUnique),
			})
		}
	}
}

// diffForeignKeys compares only the referenced column of each key; the
// local column list is not part of the comparison.
func diffForeignKeys(table string, base, target *Table, emit func(Difference)) {
	for _, bf := range base.ForeignKeys() {
		tf, ok := target.FindForeignKey(bf.Name)
		if !ok {
			emit(Difference{Kind: KindForeignKeyMissing, Table: table, Object: bf.Name})
			continue
		}
		if bf.ForeignColumn != tf.ForeignColumn {
			emit(Difference{
				Kind:   KindForeignKeyReference,
				Table:  table,
				Object: bf.Name,
				Base:   bf.ForeignColumn.String(),
				Target: tf.ForeignColumn.String(),
			})
		}
	}
}

func nullableText(nullable bool) string {
	if nullable {
		return "NULL"
	}
	return "NOT NULL"
}

func autoIncrementText(autoIncrement bool) string {
	if autoIncrement {
		return "AUTO_INCREMENT"
	}
	return "NOT AUTO_INCREMENT"
}

func uniqueText(unique bool) string {
	if unique {
		return "UNIQUE"
	}
	return "NOT UNIQUE"
}

// buildReport groups rendered differences by table, keeping the order in
// which tables first appear.
func buildReport(diffs []Difference, p *message.Printer) DiffReport {
	report := DiffReport{Tables: []ReportTable{}}
	for _, d := range diffs {
		line := renderDifference(p, d)
		if n := len(report.Tables); n > 0 && report.Tables[n-1].TableName == d.Table {
			report.Tables[n-1].Lines = append(report.Tables[n-1].Lines, line)
			continue
		}
		report.Tables = append(report.Tables, ReportTable{TableName: d.Table, Lines: []string{line}})
	}
	return report
}

// Diff compares two snapshots and renders the report in lang.
func Diff(base, target Snapshot, lang Language, ignore []DiffKind) DiffReport {
	diffs := diffSnapshots(base, target, DiffOptions{Ignore: ignore})
	return buildReport(diffs, newPrinter(lang))
}
