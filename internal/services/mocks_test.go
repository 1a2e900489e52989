package services

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/vvka-141/orderload/internal/retry"
	"github.com/vvka-141/orderload/pkg/orderload"
)

type mockConnector struct {
	session *mockSession
	err     error
}

func (m *mockConnector) Connect(_ context.Context) (orderload.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

// factoryFor returns a ConnectorFactory handing out connector and counting calls.
func factoryFor(connector orderload.Connector, calls *int) ConnectorFactory {
	return func(_ *orderload.ConnectionConfig, _ *retry.Executor) (orderload.Connector, error) {
		*calls++
		return connector, nil
	}
}

type mockSession struct {
	driver   orderload.Driver
	tx       *mockTx
	beginErr error
	closed   int
}

func (m *mockSession) Driver() orderload.Driver { return m.driver }

func (m *mockSession) Begin(_ context.Context) (orderload.Tx, error) {
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return m.tx, nil
}

func (m *mockSession) Close(_ context.Context) error {
	m.closed++
	return nil
}

// mockTx records every statement. failOn makes the insert of that order id fail.
type mockTx struct {
	mu        sync.Mutex
	execs     []string
	inserted  []orderload.OrderRecord
	failOn    map[string]error
	copyErr   error
	commitErr error
	committed bool
	rolled    bool
}

func (m *mockTx) Exec(_ context.Context, sql string, _ ...any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs = append(m.execs, sql)
	return 3, nil
}

func (m *mockTx) PrepareInsert(_ context.Context, _ string, _ []string) (orderload.InsertStatement, error) {
	return &mockInsert{tx: m}, nil
}

func (m *mockTx) CopyRecords(_ context.Context, _ string, _ []string, records orderload.RecordSource) (int64, error) {
	var n int64
	for {
		r, err := records.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return n, err
		}
		m.inserted = append(m.inserted, r)
		n++
	}
	if m.copyErr != nil {
		return 0, m.copyErr
	}
	return n, nil
}

func (m *mockTx) Commit(_ context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}

func (m *mockTx) Rollback(_ context.Context) error {
	if !m.committed {
		m.rolled = true
	}
	return nil
}

type mockInsert struct {
	tx *mockTx
}

func (m *mockInsert) Insert(_ context.Context, values ...any) error {
	id := values[0].(string)
	if err, ok := m.tx.failOn[id]; ok {
		return err
	}
	m.tx.inserted = append(m.tx.inserted, orderload.OrderRecord{
		OrderID:   id,
		UserEmail: values[1].(string),
		Status:    values[2].(string),
	})
	return nil
}

func (m *mockInsert) Close() error { return nil }

type mockApprover struct {
	approved bool
	err      error
	asked    []string
}

func (m *mockApprover) RequestApproval(_ context.Context, table string) (bool, error) {
	m.asked = append(m.asked, table)
	return m.approved, m.err
}

type mockProgress struct {
	rows     []int64
	finished int
	result   orderload.LoadResult
	err      error
}

func (m *mockProgress) Rows(n int64) { m.rows = append(m.rows, n) }

func (m *mockProgress) Finish(result orderload.LoadResult, err error) {
	m.finished++
	m.result = result
	m.err = err
}
