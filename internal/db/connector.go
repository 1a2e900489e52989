package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vvka-141/orderload/internal/logging"
	"github.com/vvka-141/orderload/internal/retry"
	"github.com/vvka-141/orderload/pkg/orderload"
)

// NewConnectExecutor returns the executor used around connection establishment.
// retries <= 0 disables retrying. Only connecting is ever retried; writes are not.
func NewConnectExecutor(retries int, logger orderload.Logger) *retry.Executor {
	if retries <= 0 {
		return retry.NoRetry()
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	strategy := retry.NewExponentialBackoff(retries,
		retry.WithInitialDelay(orderload.DefaultRetryInitialDelay),
		retry.WithMaxDelay(orderload.DefaultRetryMaxDelay),
	)
	return retry.NewExecutor(retry.NewStoreErrorClassifier(), strategy).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Info("Connection attempt %d failed, retrying in %v: %v", attempt+1, delay, err)
		})
}

// StandardConnector opens a single connection with username/password
// authentication, for any supported driver.
type StandardConnector struct {
	config   *orderload.ConnectionConfig
	executor *retry.Executor
	logger   orderload.Logger
}

// NewStandardConnector creates a StandardConnector. A nil executor means no retries.
func NewStandardConnector(config *orderload.ConnectionConfig, executor *retry.Executor) *StandardConnector {
	if executor == nil {
		executor = retry.NoRetry()
	}
	return &StandardConnector{config: config, executor: executor, logger: logging.NewNullLogger()}
}

// WithLogger sets the logger that receives server notices.
func (c *StandardConnector) WithLogger(logger orderload.Logger) *StandardConnector {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Connect opens one connection and verifies it with a ping.
func (c *StandardConnector) Connect(ctx context.Context) (orderload.Session, error) {
	var session orderload.Session

	err := c.executor.Execute(ctx, func(ctx context.Context) error {
		var err error
		switch c.config.Driver {
		case orderload.DriverPostgres:
			session, err = connectPostgres(ctx, c.config, c.logger, nil)
		default:
			session, err = openSQLSession(ctx, c.config)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", orderload.ErrConnectionFailed, err)
	}
	return session, nil
}

// noticeHandler forwards server notices to the verbose log.
func noticeHandler(logger orderload.Logger) pgconn.NoticeHandler {
	return func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		logger.Verbose("%s: %s", notice.Severity, notice.Message)
	}
}

// connectPostgres opens a pgx connection for config. customize, when set,
// adjusts the parsed pgx config before dialing (token password, dialer).
func connectPostgres(ctx context.Context, config *orderload.ConnectionConfig, logger orderload.Logger, customize func(*pgx.ConnConfig)) (*pgSession, error) {
	connConfig, err := pgx.ParseConfig(BuildPostgresURI(config))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	connConfig.OnNotice = noticeHandler(logger)
	if customize != nil {
		customize(connConfig)
	}

	conn, err := pgx.ConnectConfig(ctx, connConfig)
	if err != nil {
		return nil, wrapConnectionError(err, config)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close(ctx)
		return nil, wrapConnectionError(err, config)
	}

	return &pgSession{conn: conn}, nil
}

// NewConnector is a factory function that creates the appropriate Connector
// based on the ConnectionConfig's driver and AuthMethod.
func NewConnector(config *orderload.ConnectionConfig, executor *retry.Executor, logger orderload.Logger) (orderload.Connector, error) {
	if config.AuthMethod != orderload.AuthMethodStandard && config.Driver != orderload.DriverPostgres {
		return nil, fmt.Errorf("%s authentication with %s: %w", config.AuthMethod, config.Driver, orderload.ErrUnsupportedAuthMethod)
	}

	switch config.AuthMethod {
	case orderload.AuthMethodStandard:
		return NewStandardConnector(config, executor).WithLogger(logger), nil
	case orderload.AuthMethodAWSIAM:
		return newAWSConnector(config, executor, logger)
	case orderload.AuthMethodGoogleIAM:
		return newGoogleConnector(config, executor, logger)
	case orderload.AuthMethodAzureEntraID:
		return newAzureConnector(config, executor, logger)
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, orderload.ErrUnsupportedAuthMethod)
	}
}

// newAWSConnector creates a token-based connector with the AWS IAM token provider.
func newAWSConnector(config *orderload.ConnectionConfig, executor *retry.Executor, logger orderload.Logger) (orderload.Connector, error) {
	endpoint := fmt.Sprintf("%s:%d", config.Host, config.Port)

	tokenProvider, err := NewAWSIAMTokenProvider(endpoint, config.AWSRegion, config.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS IAM token provider: %w", err)
	}

	return NewTokenBasedConnector(config, tokenProvider, "AWS IAM", executor, logger), nil
}

// newGoogleConnector creates a GoogleCloudSQLConnector for Google Cloud SQL IAM authentication.
func newGoogleConnector(config *orderload.ConnectionConfig, executor *retry.Executor, logger orderload.Logger) (orderload.Connector, error) {
	if config.GoogleInstance == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires --google-instance (project:region:instance): %w", orderload.ErrInvalidConfig)
	}
	if config.Username == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires username (-U): %w", orderload.ErrInvalidConfig)
	}

	return NewGoogleCloudSQLConnector(config, config.GoogleInstance, executor, logger), nil
}

// newAzureConnector creates a token-based connector with the Azure Entra ID token provider.
// Explicit tenant, client and secret select Service Principal auth;
// otherwise the DefaultAzureCredential chain is used.
func newAzureConnector(config *orderload.ConnectionConfig, executor *retry.Executor, logger orderload.Logger) (orderload.Connector, error) {
	var tokenProvider TokenProvider
	var err error

	if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
		tokenProvider, err = NewAzureServicePrincipalProvider(
			config.AzureTenantID,
			config.AzureClientID,
			config.AzureClientSecret,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Service Principal provider: %w", err)
		}
	} else {
		tokenProvider, err = NewAzureDefaultCredentialProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Default Credential provider: %w", err)
		}
	}

	return NewTokenBasedConnector(config, tokenProvider, "Azure", executor, logger), nil
}
