package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// pgQuerier is the subset of *pgxpool.Pool the provider needs.
type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type postgresProvider struct {
	pool   *pgxpool.Pool
	q      pgQuerier
	schema string
	opts   providerOptions
	log    logrus.FieldLogger
}

func openPostgresProvider(ctx context.Context, url string, opts providerOptions) (SchemaProvider, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, &ConnectionError{Engine: "PostgreSQL", Err: fmt.Errorf("parse postgres url: %w", err)}
	}
	cfg.MaxConns = int32(opts.MaxConnections)
	cfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, &ConnectionError{Engine: "PostgreSQL", Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, &ConnectionError{Engine: "PostgreSQL", Err: fmt.Errorf("ping postgres: %w", err)}
	}

	schema := opts.Schema
	if schema == "" {
		var current *string
		if err := pool.QueryRow(pingCtx, "SELECT current_schema()").Scan(&current); err != nil {
			pool.Close()
			return nil, &ConnectionError{Engine: "PostgreSQL", Err: fmt.Errorf("resolve current schema: %w", err)}
		}
		if current == nil {
			pool.Close()
			return nil, &ConnectionError{Engine: "PostgreSQL", Err: errors.New("search_path resolves to no schema")}
		}
		schema = *current
	}

	opts.Logger.WithField("schema", schema).Debug("connected")
	return &postgresProvider{
		pool:   pool,
		q:      pool,
		schema: schema,
		opts:   opts,
		log:    opts.Logger,
	}, nil
}

func (p *postgresProvider) Name() string { return "PostgreSQL" }

func (p *postgresProvider) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *postgresProvider) ListTables(ctx context.Context) ([]string, error) {
	qctx, cancel := queryContext(ctx, p.opts.QueryTimeout)
	defer cancel()

	rows, err := p.q.Query(qctx,
		`SELECT table_name::text FROM information_schema.tables
		 WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		 ORDER BY table_name`,
		p.schema,
	)
	if err != nil {
		return nil, queryErr("list tables", "", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, queryErr("list tables", "", err)
	}
	return tables, nil
}

func (p *postgresProvider) DescribeTable(ctx context.Context, name string) (*Table, error) {
	t := &Table{Name: name}

	comment, err := p.tableComment(ctx, name)
	if err != nil {
		return nil, queryErr("describe table", name, err)
	}
	t.Comment = comment

	if t.Columns, err = p.columns(ctx, name); err != nil {
		return nil, queryErr("describe columns", name, err)
	}
	if t.Indexes, err = p.indexes(ctx, name); err != nil {
		return nil, queryErr("describe indexes", name, err)
	}
	fks, err := p.foreignKeys(ctx, name)
	if err != nil {
		return nil, queryErr("describe foreign keys", name, err)
	}
	for _, fk := range fks {
		t.Constraints = append(t.Constraints, fk)
	}

	p.log.WithFields(logrus.Fields{
		"table":   name,
		"columns": len(t.Columns),
		"indexes": len(t.Indexes),
		"fks":     len(fks),
	}).Debug("described table")
	return t, nil
}

func (p *postgresProvider) tableComment(ctx context.Context, name string) (string, error) {
	qctx, cancel := queryContext(ctx, p.opts.QueryTimeout)
	defer cancel()

	var comment string
	err := p.q.QueryRow(qctx,
		`SELECT COALESCE(obj_description(c.oid, 'pg_class'), '')
		 FROM pg_class c
		 JOIN pg_namespace n ON n.oid = c.relnamespace
		 WHERE n.nspname = $1 AND c.relname = $2 AND c.relkind IN ('r', 'p')`,
		p.schema, name,
	).Scan(&comment)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("table %q not found in schema %q", name, p.schema)
	}
	return comment, err
}

func (p *postgresProvider) columns(ctx context.Context, tableName string) ([]Column, error) {
	qctx, cancel := queryContext(ctx, p.opts.QueryTimeout)
	defer cancel()

	rows, err := p.q.Query(qctx,
		`SELECT c.column_name::text,
		        c.data_type::text,
		        c.udt_name::text,
		        c.character_maximum_length::int,
		        c.numeric_precision::int,
		        c.numeric_scale::int,
		        COALESCE(c.column_default::text, ''),
		        c.is_nullable::text = 'YES',
		        c.is_identity::text = 'YES',
		        COALESCE(col_description(pc.oid, c.ordinal_position::int), '')
		 FROM information_schema.columns c
		 JOIN pg_namespace n ON n.nspname = c.table_schema
		 JOIN pg_class pc ON pc.relnamespace = n.oid AND pc.relname = c.table_name
		 WHERE c.table_schema = $1 AND c.table_name = $2
		 ORDER BY c.ordinal_position`,
		p.schema, tableName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		var dataType, udtName string
		var charLen, precision, scale *int32
		var isIdentity bool
		if err := rows.Scan(
			&c.Name, &dataType, &udtName, &charLen, &precision, &scale,
			&c.Default, &c.Nullable, &isIdentity, &c.Comment,
		); err != nil {
			return nil, err
		}
		c.DataType = normalizePostgresType(dataType, udtName, charLen, precision, scale)
		c.IsAutoIncrement = isIdentity || strings.HasPrefix(c.Default, "nextval(")
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// normalizePostgresType folds information_schema type columns into a single
// display type with the length or precision embedded.
func normalizePostgresType(dataType, udtName string, charLen, precision, scale *int32) string {
	switch dataType {
	case "character varying":
		if charLen != nil {
			return fmt.Sprintf("varchar(%d)", *charLen)
		}
		return "varchar"
	case "character":
		if charLen != nil {
			return fmt.Sprintf("char(%d)", *charLen)
		}
		return "char"
	case "numeric":
		if precision == nil {
			return "numeric"
		}
		s := int32(0)
		if scale != nil {
			s = *scale
		}
		return fmt.Sprintf("numeric(%d,%d)", *precision, s)
	case "ARRAY":
		return strings.TrimPrefix(udtName, "_") + "[]"
	case "USER-DEFINED":
		return udtName
	}
	return dataType
}

func (p *postgresProvider) indexes(ctx context.Context, tableName string) ([]Index, error) {
	qctx, cancel := queryContext(ctx, p.opts.QueryTimeout)
	defer cancel()

	// Expression keys have attnum 0 and are rendered with pg_get_indexdef.
	// INCLUDE columns sit past indnkeyatts and are not part of the key.
	rows, err := p.q.Query(qctx,
		`SELECT i.relname::text,
		        ix.indisunique,
		        COALESCE(pg_get_expr(ix.indpred, ix.indrelid), ''),
		        array_agg(COALESCE(a.attname::text, pg_get_indexdef(ix.indexrelid, k.ord::int, true)) ORDER BY k.ord)
		 FROM pg_index ix
		 JOIN pg_class t ON t.oid = ix.indrelid
		 JOIN pg_class i ON i.oid = ix.indexrelid
		 JOIN pg_namespace n ON n.oid = t.relnamespace
		 CROSS JOIN LATERAL unnest(ix.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
		 LEFT JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum AND k.attnum <> 0
		 WHERE n.nspname = $1 AND t.relname = $2 AND k.ord <= ix.indnkeyatts
		 GROUP BY i.relname, ix.indisunique, ix.indpred, ix.indrelid
		 ORDER BY i.relname`,
		p.schema, tableName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var indexes []Index
	for rows.Next() {
		var idx Index
		if err := rows.Scan(&idx.Name, &idx.IsUnique, &idx.Predicate, &idx.Columns); err != nil {
			return nil, err
		}
		indexes = append(indexes, idx)
	}
	return indexes, rows.Err()
}

func (p *postgresProvider) foreignKeys(ctx context.Context, tableName string) ([]*ForeignKey, error) {
	qctx, cancel := queryContext(ctx, p.opts.QueryTimeout)
	defer cancel()

	rows, err := p.q.Query(qctx,
		`SELECT con.conname::text,
		        array_agg(la.attname::text ORDER BY k.ord),
		        rt.relname::text,
		        ra.attname::text
		 FROM pg_constraint con
		 JOIN pg_class t ON t.oid = con.conrelid
		 JOIN pg_namespace n ON n.oid = t.relnamespace
		 JOIN pg_class rt ON rt.oid = con.confrelid
		 JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = con.confkey[1]
		 CROSS JOIN LATERAL unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
		 JOIN pg_attribute la ON la.attrelid = con.conrelid AND la.attnum = k.attnum
		 WHERE con.contype = 'f' AND n.nspname = $1 AND t.relname = $2
		 GROUP BY con.conname, rt.relname, ra.attname
		 ORDER BY con.conname`,
		p.schema, tableName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []*ForeignKey
	for rows.Next() {
		fk := &ForeignKey{}
		if err := rows.Scan(&fk.Name, &fk.Columns, &fk.ForeignColumn.TableName, &fk.ForeignColumn.ColumnName); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}
