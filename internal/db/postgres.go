package db

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/orderload/pkg/orderload"
)

const insertStatementName = "orderload_insert"

// pgSession holds one pgx connection. onClose releases resources tied to
// the connection, such as a Cloud SQL dialer.
type pgSession struct {
	conn    *pgx.Conn
	onClose func()
}

func (s *pgSession) Driver() orderload.Driver { return orderload.DriverPostgres }

func (s *pgSession) Begin(ctx context.Context) (orderload.Tx, error) {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &pgTx{tx: tx}, nil
}

func (s *pgSession) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close(ctx)
	s.conn = nil
	if s.onClose != nil {
		s.onClose()
		s.onClose = nil
	}
	return err
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) PrepareInsert(ctx context.Context, table string, columns []string) (orderload.InsertStatement, error) {
	sql := InsertSQL(orderload.DriverPostgres, table, columns)
	if _, err := t.tx.Prepare(ctx, insertStatementName, sql); err != nil {
		return nil, err
	}
	return &pgInsert{tx: t.tx}, nil
}

// CopyRecords streams records through the COPY protocol.
func (t *pgTx) CopyRecords(ctx context.Context, table string, columns []string, records orderload.RecordSource) (int64, error) {
	source := pgx.CopyFromFunc(func() ([]any, error) {
		record, err := records.Next()
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return record.Values(), nil
	})
	return t.tx.CopyFrom(ctx, pgx.Identifier(strings.Split(table, ".")), columns, source)
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

// pgInsert executes the statement prepared under insertStatementName.
// The prepared statement lives as long as the connection.
type pgInsert struct {
	tx pgx.Tx
}

func (p *pgInsert) Insert(ctx context.Context, values ...any) error {
	_, err := p.tx.Exec(ctx, insertStatementName, values...)
	return err
}

func (p *pgInsert) Close() error { return nil }
