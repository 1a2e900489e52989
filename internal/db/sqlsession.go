package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/vvka-141/orderload/pkg/orderload"
	_ "modernc.org/sqlite"
)

// sqlDriverNames maps drivers to their database/sql registrations.
var sqlDriverNames = map[orderload.Driver]string{
	orderload.DriverMySQL:  "mysql",
	orderload.DriverSQLite: "sqlite",
}

// sqlSession holds exactly one database/sql connection for the MySQL and
// SQLite drivers.
type sqlSession struct {
	driver orderload.Driver
	db     *sql.DB
	conn   *sql.Conn
}

// openSQLSession opens a database/sql handle limited to a single connection
// and checks that connection out for the whole run.
func openSQLSession(ctx context.Context, config *orderload.ConnectionConfig) (*sqlSession, error) {
	name, ok := sqlDriverNames[config.Driver]
	if !ok {
		return nil, fmt.Errorf("driver %q has no database/sql registration: %w", config.Driver, orderload.ErrInvalidConfig)
	}

	dsn, err := BuildDSN(config)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, wrapConnectionError(err, config)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, wrapConnectionError(err, config)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		_ = db.Close()
		return nil, wrapConnectionError(err, config)
	}

	return &sqlSession{driver: config.Driver, db: db, conn: conn}, nil
}

func (s *sqlSession) Driver() orderload.Driver { return s.driver }

func (s *sqlSession) Begin(ctx context.Context) (orderload.Tx, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqlTx{driver: s.driver, tx: tx}, nil
}

func (s *sqlSession) Close(context.Context) error {
	if s.db == nil {
		return nil
	}
	connErr := s.conn.Close()
	dbErr := s.db.Close()
	s.conn, s.db = nil, nil
	return errors.Join(connErr, dbErr)
}

type sqlTx struct {
	driver orderload.Driver
	tx     *sql.Tx
}

func (t *sqlTx) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *sqlTx) PrepareInsert(ctx context.Context, table string, columns []string) (orderload.InsertStatement, error) {
	stmt, err := t.tx.PrepareContext(ctx, InsertSQL(t.driver, table, columns))
	if err != nil {
		return nil, err
	}
	return &sqlInsert{stmt: stmt}, nil
}

func (t *sqlTx) CopyRecords(context.Context, string, []string, orderload.RecordSource) (int64, error) {
	return 0, fmt.Errorf("copy mode on %s: %w", t.driver, orderload.ErrNotSupported)
}

func (t *sqlTx) Commit(context.Context) error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback(context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

type sqlInsert struct {
	stmt *sql.Stmt
}

func (s *sqlInsert) Insert(ctx context.Context, values ...any) error {
	_, err := s.stmt.ExecContext(ctx, values...)
	return err
}

func (s *sqlInsert) Close() error {
	return s.stmt.Close()
}
