package orderload

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Load committed successfully
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration or parameters
	ExitConnectionError = 11 // Failed to connect to database
	ExitApprovalDenied  = 12 // User denied truncate approval
	ExitInputFormat     = 13 // CSV file unreadable or missing columns
	ExitInsertionFailed = 14 // A row could not be inserted
	ExitCommitFailed    = 15 // Transaction could not be committed
)

const (
	// DefaultTable is the destination table used when none is configured.
	DefaultTable = "orders"

	// DefaultTimeout bounds a whole run. It protects against hung connections,
	// it is not a per-statement timeout.
	DefaultTimeout = 3 * time.Minute

	// DefaultForceApprovalCountdown is the countdown duration before a forced truncate proceeds.
	DefaultForceApprovalCountdown = 5 * time.Second

	// DefaultProgressInterval is how many rows pass between progress reports.
	DefaultProgressInterval = 500

	// DefaultRetryInitialDelay is the default initial delay before the first retry attempt.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the default maximum delay between retry attempts.
	DefaultRetryMaxDelay = 30 * time.Second

	// DefaultConnectRetries is zero: a failed connection aborts the run unless
	// the caller opts in to retries.
	DefaultConnectRetries = 0

	// DefaultPostgresPort and DefaultMySQLPort are used when no port is resolved.
	DefaultPostgresPort = 5432
	DefaultMySQLPort    = 3306

	// MaxErrorPreviewLength is the maximum number of characters of a CSV value
	// echoed back in error messages.
	MaxErrorPreviewLength = 64
)

// Source column names expected in the CSV header by default.
const (
	SourceColumnOrderID = "order_id"
	SourceColumnEmail   = "email"
	SourceColumnStatus  = "status"
)

// Destination column names in the orders table by default.
const (
	TargetColumnOrderID   = "order_id"
	TargetColumnUserEmail = "user_email"
	TargetColumnStatus    = "status"
)
