package orderload

import "context"

// Approver handles user approval for destructive operations.
// Different implementations can provide interactive prompts, forced countdowns,
// or automatic approval for tests.
type Approver interface {
	// RequestApproval asks for confirmation before every existing row of
	// table is deleted. Returns true if approved, false if denied.
	RequestApproval(ctx context.Context, table string) (bool, error)
}
