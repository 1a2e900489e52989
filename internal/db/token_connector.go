package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/vvka-141/orderload/internal/logging"
	"github.com/vvka-141/orderload/internal/retry"
	"github.com/vvka-141/orderload/pkg/orderload"
)

// tokenExpiryWarning is how close to expiry a fresh token triggers a warning.
const tokenExpiryWarning = 5 * time.Minute

// TokenBasedConnector connects to PostgreSQL with a short-lived cloud token
// (AWS IAM, Azure Entra ID) used as the password.
type TokenBasedConnector struct {
	config        *orderload.ConnectionConfig
	tokenProvider TokenProvider
	executor      *retry.Executor
	providerName  string
	logger        orderload.Logger
}

// NewTokenBasedConnector creates a connector that uses a TokenProvider for authentication.
// providerName is used in error and warning messages (e.g., "AWS IAM", "Azure").
func NewTokenBasedConnector(config *orderload.ConnectionConfig, tokenProvider TokenProvider, providerName string, executor *retry.Executor, logger orderload.Logger) *TokenBasedConnector {
	if executor == nil {
		executor = retry.NoRetry()
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &TokenBasedConnector{
		config:        config,
		tokenProvider: tokenProvider,
		executor:      executor,
		providerName:  providerName,
		logger:        logger,
	}
}

// Connect acquires a fresh token per attempt and opens one connection with it.
func (c *TokenBasedConnector) Connect(ctx context.Context) (orderload.Session, error) {
	var session orderload.Session

	err := c.executor.Execute(ctx, func(ctx context.Context) error {
		token, expiresOn, err := c.tokenProvider.GetToken(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire %s token: %w", c.providerName, err)
		}

		if remaining := time.Until(expiresOn); remaining < tokenExpiryWarning {
			c.logger.Info("Warning: %s token expires in %v", c.providerName, remaining.Round(time.Second))
		}
		c.logger.Verbose("Acquired token from %s", c.tokenProvider)

		s, err := connectPostgres(ctx, c.config, c.logger, func(cc *pgx.ConnConfig) {
			cc.Password = token
		})
		if err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", orderload.ErrConnectionFailed, err)
	}
	return session, nil
}
