// Package retry provides opt-in retry logic with exponential backoff
// for transient failures while opening a store connection.
//
// Only connection establishment goes through an Executor. Inserts and
// commits are never retried: a failed row fails the whole load.
//
// # Example Usage
//
//	classifier := retry.NewStoreErrorClassifier()
//	strategy := retry.NewExponentialBackoff(3)
//	executor := retry.NewExecutor(classifier, strategy)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return openConnection(ctx)
//	})
//
// # Error Classification
//
// StoreErrorClassifier recognises transient PostgreSQL SQLSTATE classes,
// MySQL error numbers, SQLite busy/locked codes and network failures.
package retry
