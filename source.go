package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// SchemaProvider abstracts the metadata queries of one database engine so the
// orchestrator and diff engine never branch on engine identity.
type SchemaProvider interface {
	// Name returns a human-readable engine name ("PostgreSQL", "MySQL").
	Name() string

	// ListTables returns the user base tables of the active database.
	ListTables(ctx context.Context) ([]string, error)

	// DescribeTable reads columns, indexes and foreign keys of one table.
	// It never returns a partially filled Table.
	DescribeTable(ctx context.Context, name string) (*Table, error)

	// Close releases the connection pool.
	Close()
}

// DatabaseType is the closed set of supported engines.
type DatabaseType string

const (
	DatabasePostgres DatabaseType = "postgres"
	DatabaseMySQL    DatabaseType = "mysql"
	DatabaseSQLite   DatabaseType = "sqlite"
)

func parseDatabaseType(s string) (DatabaseType, error) {
	switch t := DatabaseType(strings.ToLower(strings.TrimSpace(s))); t {
	case DatabasePostgres, DatabaseMySQL, DatabaseSQLite:
		return t, nil
	case "postgresql":
		return DatabasePostgres, nil
	default:
		return "", fmt.Errorf("unsupported database type %q (must be postgres, mysql or sqlite)", s)
	}
}

// providerOptions are the connection settings shared by every engine.
type providerOptions struct {
	Schema         string // postgres only; empty means current_schema()
	MaxConnections int
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
	Logger         logrus.FieldLogger
}

func (o providerOptions) withDefaults() providerOptions {
	if o.MaxConnections <= 0 {
		o.MaxConnections = defaultMaxConnections
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.QueryTimeout <= 0 {
		o.QueryTimeout = defaultQueryTimeout
	}
	if o.Logger == nil {
		o.Logger = discardLogger()
	}
	return o
}

// connectSource opens and pings a pool for the given engine. Connection
// failures are returned as *ConnectionError without a role.
func connectSource(ctx context.Context, dbType DatabaseType, url string, opts providerOptions) (SchemaProvider, error) {
	opts = opts.withDefaults()
	opts.Logger = opts.Logger.WithField("engine", string(dbType))

	switch dbType {
	case DatabasePostgres:
		return openPostgresProvider(ctx, url, opts)
	case DatabaseMySQL:
		return openMySQLProvider(ctx, url, opts)
	case DatabaseSQLite:
		return openSQLiteProvider(ctx, url, opts)
	default:
		return nil, &ConnectionError{Engine: string(dbType), Err: fmt.Errorf("unsupported database type %q", dbType)}
	}
}

// queryContext bounds a single metadata query by the provider's timeout.
func queryContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
