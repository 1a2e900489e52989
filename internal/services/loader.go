package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/vvka-141/orderload/internal/csvsource"
	"github.com/vvka-141/orderload/internal/db"
	"github.com/vvka-141/orderload/internal/retry"
	"github.com/vvka-141/orderload/pkg/orderload"
)

// ConnectorFactory builds a Connector for a resolved connection. The executor
// wraps connection establishment only.
type ConnectorFactory func(config *orderload.ConnectionConfig, executor *retry.Executor) (orderload.Connector, error)

// LoadService implements orderload.Loader.
// Thread-Safety: NOT safe for concurrent Load() calls on the same instance.
type LoadService struct {
	connectorFactory ConnectorFactory
	approver         orderload.Approver
	logger           orderload.Logger
	progress         orderload.ProgressReporter
}

// NewLoadService creates a LoadService with all dependencies injected.
// Panics on nil dependencies; those are wiring mistakes, not runtime conditions.
func NewLoadService(
	connectorFactory ConnectorFactory,
	approver orderload.Approver,
	logger orderload.Logger,
) *LoadService {
	if connectorFactory == nil {
		panic("connectorFactory cannot be nil")
	}
	if approver == nil {
		panic("approver cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	return &LoadService{
		connectorFactory: connectorFactory,
		approver:         approver,
		logger:           logger,
	}
}

// WithProgress returns a copy of the service that reports to p.
func (s *LoadService) WithProgress(p orderload.ProgressReporter) *LoadService {
	clone := *s
	clone.progress = p
	return &clone
}

// Load moves every data row of config.CSVPath into config.Table inside a
// single transaction. On any failure the transaction is rolled back and the
// table is left as it was.
func (s *LoadService) Load(ctx context.Context, config orderload.LoadConfig) (result orderload.LoadResult, err error) {
	start := time.Now()
	result = orderload.LoadResult{
		RunID:  uuid.New(),
		Mode:   config.Mode,
		DryRun: config.DryRun,
	}
	defer func() {
		result.Duration = time.Since(start)
		if s.progress != nil {
			s.progress.Finish(result, err)
		}
	}()

	if err := config.Validate(); err != nil {
		return result, err
	}
	s.logger.Verbose("Run %s: loading %s into %s (mode %s)", result.RunID, config.CSVPath, config.Table, config.Mode)

	// The header is validated before any connection is opened.
	reader, err := csvsource.Open(config.CSVPath, config.Columns)
	if err != nil {
		return result, err
	}
	defer reader.Close()
	s.logger.Verbose("CSV header: %v", reader.Header())

	if config.DryRun {
		return s.dryRun(ctx, reader, config, result)
	}

	session, err := s.connect(ctx, config)
	if err != nil {
		return result, err
	}
	defer func() {
		if closeErr := session.Close(context.WithoutCancel(ctx)); closeErr != nil {
			s.logger.Verbose("Closing session: %v", closeErr)
		}
	}()

	tx, err := session.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w: %w", orderload.ErrConnectionFailed, err)
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			s.logger.Error("Rollback failed: %v", rbErr)
			return
		}
		s.logger.Verbose("Transaction rolled back; %s is unchanged", config.Table)
	}()

	if config.Truncate {
		if err := s.truncate(ctx, tx, session.Driver(), config.Table); err != nil {
			return result, err
		}
	}

	switch config.Mode {
	case orderload.InsertModeCopy:
		err = s.copyRows(ctx, tx, reader, config, &result)
	default:
		err = s.insertRows(ctx, tx, reader, config, &result)
	}
	if err != nil {
		return result, err
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("%w: %w", orderload.ErrCommitFailed, err)
	}
	committed = true

	// A progress reporter prints its own summary.
	if s.progress == nil {
		s.logger.Info("Loaded %d row(s) into %s", result.RowsInserted, config.Table)
	}
	return result, nil
}

func (s *LoadService) connect(ctx context.Context, config orderload.LoadConfig) (orderload.Session, error) {
	s.logger.Verbose("Connecting to %s", config.Connection.Target())

	executor := db.NewConnectExecutor(config.ConnectRetries, s.logger)
	connector, err := s.connectorFactory(config.Connection, executor)
	if err != nil {
		return nil, fmt.Errorf("failed to create connector: %w", err)
	}

	session, err := connector.Connect(ctx)
	if err != nil {
		if !errors.Is(err, orderload.ErrConnectionFailed) {
			err = fmt.Errorf("%w: %w", orderload.ErrConnectionFailed, err)
		}
		return nil, err
	}
	return session, nil
}

func (s *LoadService) truncate(ctx context.Context, tx orderload.Tx, driver orderload.Driver, table string) error {
	approved, err := s.approver.RequestApproval(ctx, table)
	if err != nil {
		return fmt.Errorf("approval failed: %w", err)
	}
	if !approved {
		return fmt.Errorf("deleting existing rows of %s: %w", table, orderload.ErrApprovalDenied)
	}

	n, err := tx.Exec(ctx, db.DeleteAllSQL(driver, table))
	if err != nil {
		return fmt.Errorf("failed to delete existing rows of %s: %w: %w", table, orderload.ErrInsertionFailed, err)
	}
	s.logger.Info("Deleted %d existing row(s) from %s", n, table)
	return nil
}

func (s *LoadService) insertRows(ctx context.Context, tx orderload.Tx, reader *csvsource.Reader, config orderload.LoadConfig, result *orderload.LoadResult) error {
	stmt, err := tx.PrepareInsert(ctx, config.Table, config.Columns.TargetColumns())
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w: %w", config.Table, orderload.ErrInsertionFailed, err)
	}
	defer stmt.Close()

	interval := progressInterval(config)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		record, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		result.RowsRead++

		if err := stmt.Insert(ctx, record.Values()...); err != nil {
			return &orderload.InsertError{
				Line:      record.Line,
				OrderID:   record.OrderID,
				Duplicate: db.IsUniqueViolation(err),
				Err:       err,
			}
		}
		result.RowsInserted++
		s.reportEvery(result.RowsInserted, interval)
	}

	s.reportRows(result.RowsInserted)
	return nil
}

func (s *LoadService) copyRows(ctx context.Context, tx orderload.Tx, reader *csvsource.Reader, config orderload.LoadConfig, result *orderload.LoadResult) error {
	interval := progressInterval(config)
	source := &countingSource{
		next: reader.Next,
		onRecord: func(n int64) {
			result.RowsRead = n
			s.reportEvery(n, interval)
		},
	}

	n, err := tx.CopyRecords(ctx, config.Table, config.Columns.TargetColumns(), source)
	if err != nil {
		// The store only sees a cancelled COPY; report what the reader hit.
		if source.err != nil {
			return source.err
		}
		if errors.Is(err, orderload.ErrNotSupported) {
			return err
		}
		reason := "failed"
		if db.IsUniqueViolation(err) {
			reason = "failed on a duplicate key"
		}
		return fmt.Errorf("COPY into %s %s after %d row(s) read: %w: %w", config.Table, reason, result.RowsRead, orderload.ErrInsertionFailed, err)
	}

	result.RowsInserted = n
	s.reportRows(n)
	return nil
}

func (s *LoadService) dryRun(ctx context.Context, reader *csvsource.Reader, config orderload.LoadConfig, result orderload.LoadResult) (orderload.LoadResult, error) {
	interval := progressInterval(config)
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		_, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, err
		}
		result.RowsRead++
		s.reportEvery(result.RowsRead, interval)
	}

	s.reportRows(result.RowsRead)
	s.logger.Info("Dry run: %d row(s) would be loaded into %s", result.RowsRead, config.Table)
	return result, nil
}

func (s *LoadService) reportEvery(n int64, interval int64) {
	if n%interval == 0 {
		s.reportRows(n)
	}
}

func (s *LoadService) reportRows(n int64) {
	if s.progress != nil {
		s.progress.Rows(n)
	}
}

func progressInterval(config orderload.LoadConfig) int64 {
	if config.ProgressInterval > 0 {
		return int64(config.ProgressInterval)
	}
	return orderload.DefaultProgressInterval
}

// countingSource counts records as the store pulls them and remembers the
// first read error other than io.EOF.
type countingSource struct {
	next     func() (orderload.OrderRecord, error)
	n        int64
	onRecord func(n int64)
	err      error
}

func (c *countingSource) Next() (orderload.OrderRecord, error) {
	record, err := c.next()
	if err != nil {
		if !errors.Is(err, io.EOF) && c.err == nil {
			c.err = err
		}
		return record, err
	}
	c.n++
	c.onRecord(c.n)
	return record, nil
}
