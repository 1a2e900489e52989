package orderload

import "context"

// Connector is a unified interface for establishing a store session.
// Different implementations handle the supported drivers and authentication
// methods (standard credentials, cloud IAM tokens, Cloud SQL dialers).
type Connector interface {
	// Connect opens exactly one connection to the store.
	// The returned session must be closed by the caller when done.
	Connect(ctx context.Context) (Session, error)
}

// Session is a single connection held for the duration of a run.
type Session interface {
	// Driver reports the dialect of the connection.
	Driver() Driver

	// Begin starts the transaction that all rows of a run are written in.
	Begin(ctx context.Context) (Tx, error)

	// Close releases the connection. Safe to call more than once.
	Close(ctx context.Context) error
}

// Tx is an open transaction on a Session.
type Tx interface {
	// Exec runs a statement that returns no rows and reports the affected row count.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// PrepareInsert returns a single-row INSERT into table(columns).
	PrepareInsert(ctx context.Context, table string, columns []string) (InsertStatement, error)

	// CopyRecords bulk-loads records into table(columns).
	// Drivers without a bulk path return ErrNotSupported.
	CopyRecords(ctx context.Context, table string, columns []string, records RecordSource) (int64, error)

	// Commit finalizes every write of the transaction.
	Commit(ctx context.Context) error

	// Rollback discards the transaction. It is a no-op after Commit.
	Rollback(ctx context.Context) error
}

// InsertStatement inserts one row per call.
type InsertStatement interface {
	Insert(ctx context.Context, values ...any) error
	Close() error
}

// RecordSource yields records one at a time, in file order.
// Next returns io.EOF after the last record.
type RecordSource interface {
	Next() (OrderRecord, error)
}
