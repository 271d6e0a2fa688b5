package main

import "fmt"

// Role names which side of the comparison a connection belongs to.
type Role string

const (
	RoleBase   Role = "base"
	RoleTarget Role = "target"
)

// ConnectionError reports a connect, auth or network failure.
// Role is empty until the orchestrator attaches it.
type ConnectionError struct {
	Role   Role
	Engine string
	Err    error
}

func (e *ConnectionError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("connect %s: %v", e.Engine, e.Err)
	}
	return fmt.Sprintf("failed to connect to %s database (%s): %v", e.Role, e.Engine, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError reports a failed metadata query or an unexpected result shape.
type QueryError struct {
	Op    string // e.g. "list tables", "describe columns"
	Table string
	Err   error
}

func (e *QueryError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s for %s: %v", e.Op, e.Table, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// SerializationError reports a report that could not be encoded.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("encode report: %v", e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// IOError reports a report file that could not be written.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write report %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func queryErr(op, table string, err error) error {
	return &QueryError{Op: op, Table: table, Err: err}
}
