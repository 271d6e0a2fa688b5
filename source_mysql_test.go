package main

import (
	"context"
	"database/sql"
	"errors"
	"slices"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newMockMySQL(t *testing.T) (*mysqlProvider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return newMySQLProvider(db, "shop", providerOptions{}), mock
}

func TestMySQLListTables(t *testing.T) {
	p, mock := newMockMySQL(t)
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").
		WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_NAME"}).AddRow("orders").AddRow("users"))

	got, err := p.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables() error: %v", err)
	}
	if !slices.Equal(got, []string{"orders", "users"}) {
		t.Errorf("ListTables() = %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMySQLDescribeTable(t *testing.T) {
	p, mock := newMockMySQL(t)

	mock.ExpectQuery("SELECT TABLE_COMMENT").
		WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"TABLE_COMMENT"}).AddRow("customer orders"))
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").
		WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{
			"COLUMN_NAME", "DATA_TYPE", "COLUMN_TYPE", "CHARACTER_MAXIMUM_LENGTH",
			"IS_NULLABLE", "COLUMN_DEFAULT", "EXTRA", "COLUMN_COMMENT",
		}).
			AddRow("id", "bigint", "bigint unsigned", nil, "NO", nil, "auto_increment", "").
			AddRow("code", "VARCHAR", "varchar(32)", int64(32), "NO", nil, "", "order code").
			AddRow("status", "enum", "enum('new','paid')", int64(4), "YES", "new", "", "").
			AddRow("user_id", "int", "int", nil, "YES", nil, "", ""))
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.STATISTICS").
		WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"INDEX_NAME", "COLUMN_NAME", "NON_UNIQUE"}).
			AddRow("PRIMARY", "id", 0).
			AddRow("orders_code_status_idx", "code", 1).
			AddRow("orders_code_status_idx", "status", 1).
			AddRow("orders_lower_code", nil, 1))
	mock.ExpectQuery("FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE").
		WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{
			"CONSTRAINT_NAME", "COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME",
		}).AddRow("orders_user_fk", "user_id", "users", "id"))

	tbl, err := p.DescribeTable(context.Background(), "orders")
	if err != nil {
		t.Fatalf("DescribeTable() error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}

	if tbl.Comment != "customer orders" {
		t.Errorf("Comment = %q", tbl.Comment)
	}
	wantCols := []Column{
		{Name: "id", DataType: "bigint unsigned", IsAutoIncrement: true},
		{Name: "code", DataType: "varchar(32)", Comment: "order code"},
		{Name: "status", DataType: "enum('new','paid')", Default: "new", Nullable: true},
		{Name: "user_id", DataType: "int", Nullable: true},
	}
	if !slices.Equal(tbl.Columns, wantCols) {
		t.Errorf("Columns =\n%+v\nwant\n%+v", tbl.Columns, wantCols)
	}

	if len(tbl.Indexes) != 3 {
		t.Fatalf("Indexes = %+v", tbl.Indexes)
	}
	if idx, ok := tbl.FindIndex("PRIMARY"); !ok || !idx.IsUnique {
		t.Errorf("PRIMARY = %+v", idx)
	}
	if idx, _ := tbl.FindIndex("orders_code_status_idx"); idx == nil || !slices.Equal(idx.Columns, []string{"code", "status"}) || idx.IsUnique {
		t.Errorf("composite index = %+v", idx)
	}
	if idx, _ := tbl.FindIndex("orders_lower_code"); idx == nil || !slices.Equal(idx.Columns, []string{"(expression)"}) {
		t.Errorf("expression index = %+v", idx)
	}

	fk, ok := tbl.FindForeignKey("orders_user_fk")
	if !ok {
		t.Fatal("foreign key missing")
	}
	if fk.ForeignColumn.String() != "users.id" || !slices.Equal(fk.Columns, []string{"user_id"}) {
		t.Errorf("fk = %+v", fk)
	}
}

func TestMySQLDescribeTable_Errors(t *testing.T) {
	t.Run("missing table", func(t *testing.T) {
		p, mock := newMockMySQL(t)
		mock.ExpectQuery("SELECT TABLE_COMMENT").
			WithArgs("shop", "ghost").
			WillReturnRows(sqlmock.NewRows([]string{"TABLE_COMMENT"}))

		_, err := p.DescribeTable(context.Background(), "ghost")
		var qe *QueryError
		if !errors.As(err, &qe) || qe.Table != "ghost" {
			t.Errorf("err = %v, want QueryError for ghost", err)
		}
	})

	t.Run("column query fails", func(t *testing.T) {
		p, mock := newMockMySQL(t)
		mock.ExpectQuery("SELECT TABLE_COMMENT").
			WithArgs("shop", "orders").
			WillReturnRows(sqlmock.NewRows([]string{"TABLE_COMMENT"}).AddRow(""))
		boom := errors.New("lost connection")
		mock.ExpectQuery("FROM INFORMATION_SCHEMA.COLUMNS").WillReturnError(boom)

		_, err := p.DescribeTable(context.Background(), "orders")
		var qe *QueryError
		if !errors.As(err, &qe) || qe.Op != "describe columns" {
			t.Fatalf("err = %v, want describe columns QueryError", err)
		}
		if !errors.Is(err, boom) {
			t.Errorf("cause not preserved: %v", err)
		}
	})

	t.Run("list tables fails", func(t *testing.T) {
		p, mock := newMockMySQL(t)
		mock.ExpectQuery("FROM INFORMATION_SCHEMA.TABLES").WillReturnError(errors.New("denied"))

		_, err := p.ListTables(context.Background())
		var qe *QueryError
		if !errors.As(err, &qe) || qe.Op != "list tables" {
			t.Errorf("err = %v, want list tables QueryError", err)
		}
	})
}

func TestNormalizeMySQLType(t *testing.T) {
	tests := []struct {
		dataType, columnType string
		charLen              sql.NullInt64
		want                 string
	}{
		{"varchar", "varchar(255)", sql.NullInt64{Int64: 255, Valid: true}, "varchar(255)"},
		{"CHAR", "char(2)", sql.NullInt64{Int64: 2, Valid: true}, "char(2)"},
		{"varbinary", "varbinary(16)", sql.NullInt64{Int64: 16, Valid: true}, "varbinary(16)"},
		{"int", "int(11) unsigned", sql.NullInt64{}, "int(11) unsigned"},
		{"decimal", "DECIMAL(10,2)", sql.NullInt64{}, "decimal(10,2)"},
		{"text", "text", sql.NullInt64{Int64: 65535, Valid: true}, "text"},
		{"json", "", sql.NullInt64{}, "json"},
	}
	for _, tt := range tests {
		if got := normalizeMySQLType(tt.dataType, tt.columnType, tt.charLen); got != tt.want {
			t.Errorf("normalizeMySQLType(%q, %q) = %q, want %q", tt.dataType, tt.columnType, got, tt.want)
		}
	}
}
