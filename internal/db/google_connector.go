package db

import (
	"context"
	"fmt"
	"net"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/orderload/internal/logging"
	"github.com/vvka-141/orderload/internal/retry"
	"github.com/vvka-141/orderload/pkg/orderload"
)

// GoogleCloudSQLConnector connects to Google Cloud SQL using IAM database
// authentication through the Cloud SQL Go Connector. The dialer is released
// when the returned session is closed.
type GoogleCloudSQLConnector struct {
	config   *orderload.ConnectionConfig
	instance string
	executor *retry.Executor
	logger   orderload.Logger
}

// NewGoogleCloudSQLConnector creates a connector for Google Cloud SQL IAM authentication.
// instance is the instance connection name in format: project:region:instance
func NewGoogleCloudSQLConnector(config *orderload.ConnectionConfig, instance string, executor *retry.Executor, logger orderload.Logger) *GoogleCloudSQLConnector {
	if executor == nil {
		executor = retry.NoRetry()
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &GoogleCloudSQLConnector{
		config:   config,
		instance: instance,
		executor: executor,
		logger:   logger,
	}
}

func (c *GoogleCloudSQLConnector) Connect(ctx context.Context) (orderload.Session, error) {
	dialer, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Cloud SQL dialer: %w", orderload.ErrConnectionFailed, err)
	}

	// TLS is handled by the dialer.
	dialConfig := *c.config
	dialConfig.SSLMode = "disable"
	dialConfig.Password = ""

	var session *pgSession
	err = c.executor.Execute(ctx, func(ctx context.Context) error {
		s, err := connectPostgres(ctx, &dialConfig, c.logger, func(cc *pgx.ConnConfig) {
			cc.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
				return dialer.Dial(ctx, c.instance)
			}
		})
		if err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		dialer.Close()
		return nil, fmt.Errorf("%w: %w", orderload.ErrConnectionFailed, err)
	}

	session.onClose = func() { dialer.Close() }
	return session, nil
}
