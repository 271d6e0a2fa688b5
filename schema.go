package main

import (
	"cmp"
	"context"
	"database/sql"
	"slices"
	"strings"
)

// collectStringRows is a helper to collect single-column string results.
func collectStringRows(ctx context.Context, db *sql.DB, query string, out *[]string, args ...any) error {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return err
		}
		*out = append(*out, v)
	}
	return rows.Err()
}

// sqliteIdent double-quotes an identifier for use inside PRAGMA calls,
// which do not accept bound parameters.
func sqliteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sortIndexesByName(indexes []Index) {
	slices.SortFunc(indexes, func(a, b Index) int { return cmp.Compare(a.Name, b.Name) })
}
