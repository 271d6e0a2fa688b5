package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

type mysqlProvider struct {
	db     *sql.DB
	dbName string
	opts   providerOptions
	log    logrus.FieldLogger
}

func openMySQLProvider(ctx context.Context, url string, opts providerOptions) (SchemaProvider, error) {
	cfg, err := mysqlConfigFromURL(url)
	if err != nil {
		return nil, &ConnectionError{Engine: "MySQL", Err: err}
	}
	cfg.Timeout = opts.ConnectTimeout

	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, &ConnectionError{Engine: "MySQL", Err: fmt.Errorf("open mysql: %w", err)}
	}
	db.SetMaxOpenConns(opts.MaxConnections)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &ConnectionError{Engine: "MySQL", Err: fmt.Errorf("ping mysql: %w", err)}
	}

	opts.Logger.WithField("database", cfg.DBName).Debug("connected")
	return newMySQLProvider(db, cfg.DBName, opts), nil
}

func newMySQLProvider(db *sql.DB, dbName string, opts providerOptions) *mysqlProvider {
	opts = opts.withDefaults()
	return &mysqlProvider{db: db, dbName: dbName, opts: opts, log: opts.Logger}
}

func (m *mysqlProvider) Name() string { return "MySQL" }

func (m *mysqlProvider) Close() { m.db.Close() }

func (m *mysqlProvider) ListTables(ctx context.Context) ([]string, error) {
	qctx, cancel := queryContext(ctx, m.opts.QueryTimeout)
	defer cancel()

	var tables []string
	err := collectStringRows(qctx, m.db,
		`SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		 ORDER BY TABLE_NAME`,
		&tables, m.dbName,
	)
	if err != nil {
		return nil, queryErr("list tables", "", err)
	}
	return tables, nil
}

func (m *mysqlProvider) DescribeTable(ctx context.Context, name string) (*Table, error) {
	t := &Table{Name: name}

	comment, err := m.tableComment(ctx, name)
	if err != nil {
		return nil, queryErr("describe table", name, err)
	}
	t.Comment = comment

	if t.Columns, err = m.columns(ctx, name); err != nil {
		return nil, queryErr("describe columns", name, err)
	}
	if t.Indexes, err = m.indexes(ctx, name); err != nil {
		return nil, queryErr("describe indexes", name, err)
	}
	fks, err := m.foreignKeys(ctx, name)
	if err != nil {
		return nil, queryErr("describe foreign keys", name, err)
	}
	for _, fk := range fks {
		t.Constraints = append(t.Constraints, fk)
	}

	m.log.WithFields(logrus.Fields{
		"table":   name,
		"columns": len(t.Columns),
		"indexes": len(t.Indexes),
		"fks":     len(fks),
	}).Debug("described table")
	return t, nil
}

func (m *mysqlProvider) tableComment(ctx context.Context, name string) (string, error) {
	qctx, cancel := queryContext(ctx, m.opts.QueryTimeout)
	defer cancel()

	var comment sql.NullString
	err := m.db.QueryRowContext(qctx,
		`SELECT TABLE_COMMENT FROM INFORMATION_SCHEMA.TABLES
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?`,
		m.dbName, name,
	).Scan(&comment)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("table %q not found", name)
	}
	if err != nil {
		return "", err
	}
	return comment.String, nil
}

func (m *mysqlProvider) columns(ctx context.Context, tableName string) ([]Column, error) {
	qctx, cancel := queryContext(ctx, m.opts.QueryTimeout)
	defer cancel()

	rows, err := m.db.QueryContext(qctx,
		`SELECT COLUMN_NAME, DATA_TYPE, COLUMN_TYPE, CHARACTER_MAXIMUM_LENGTH,
		        IS_NULLABLE, COLUMN_DEFAULT, EXTRA, COLUMN_COMMENT
		 FROM INFORMATION_SCHEMA.COLUMNS
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		 ORDER BY ORDINAL_POSITION`,
		m.dbName, tableName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var dataType, columnType, nullable, extra string
		var charMaxLen sql.NullInt64
		var dflt, comment sql.NullString
		if err := rows.Scan(
			&c.Name, &dataType, &columnType, &charMaxLen,
			&nullable, &dflt, &extra, &comment,
		); err != nil {
			return nil, err
		}
		c.DataType = normalizeMySQLType(dataType, columnType, charMaxLen)
		c.Nullable = nullable == "YES"
		c.Default = dflt.String
		c.Comment = comment.String
		c.IsAutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// normalizeMySQLType renders character types with their length embedded and
// falls back to the full COLUMN_TYPE for everything else.
func normalizeMySQLType(dataType, columnType string, charMaxLen sql.NullInt64) string {
	dt := strings.ToLower(strings.TrimSpace(dataType))
	switch dt {
	case "varchar", "char", "varbinary", "binary":
		if charMaxLen.Valid {
			return fmt.Sprintf("%s(%d)", dt, charMaxLen.Int64)
		}
	}
	if ct := strings.ToLower(strings.TrimSpace(columnType)); ct != "" {
		return ct
	}
	return dt
}

func (m *mysqlProvider) indexes(ctx context.Context, tableName string) ([]Index, error) {
	qctx, cancel := queryContext(ctx, m.opts.QueryTimeout)
	defer cancel()

	rows, err := m.db.QueryContext(qctx,
		`SELECT INDEX_NAME, COLUMN_NAME, NON_UNIQUE
		 FROM INFORMATION_SCHEMA.STATISTICS
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		 ORDER BY INDEX_NAME, SEQ_IN_INDEX`,
		m.dbName, tableName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	indexMap := make(map[string]*Index)
	var indexOrder []string

	for rows.Next() {
		var idxName string
		var colName sql.NullString
		var nonUnique int
		if err := rows.Scan(&idxName, &colName, &nonUnique); err != nil {
			return nil, err
		}

		idx, ok := indexMap[idxName]
		if !ok {
			// MySQL has no partial indexes; the predicate stays empty.
			idx = &Index{Name: idxName, IsUnique: nonUnique == 0}
			indexMap[idxName] = idx
			indexOrder = append(indexOrder, idxName)
		}
		if colName.Valid {
			idx.Columns = append(idx.Columns, colName.String)
		} else {
			idx.Columns = append(idx.Columns, "(expression)")
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	indexes := make([]Index, 0, len(indexOrder))
	for _, name := range indexOrder {
		indexes = append(indexes, *indexMap[name])
	}
	return indexes, nil
}

func (m *mysqlProvider) foreignKeys(ctx context.Context, tableName string) ([]*ForeignKey, error) {
	qctx, cancel := queryContext(ctx, m.opts.QueryTimeout)
	defer cancel()

	rows, err := m.db.QueryContext(qctx,
		`SELECT CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		 FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		   AND REFERENCED_TABLE_NAME IS NOT NULL
		 ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`,
		m.dbName, tableName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fkMap := make(map[string]*ForeignKey)
	var fkOrder []string

	for rows.Next() {
		var fkName, colName, refTable, refCol string
		if err := rows.Scan(&fkName, &colName, &refTable, &refCol); err != nil {
			return nil, err
		}

		fk, ok := fkMap[fkName]
		if !ok {
			fk = &ForeignKey{
				Name:          fkName,
				ForeignColumn: ForeignColumn{TableName: refTable, ColumnName: refCol},
			}
			fkMap[fkName] = fk
			fkOrder = append(fkOrder, fkName)
		}
		fk.Columns = append(fk.Columns, colName)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fks := make([]*ForeignKey, 0, len(fkOrder))
	for _, name := range fkOrder {
		fks = append(fks, fkMap[name])
	}
	return fks, nil
}
