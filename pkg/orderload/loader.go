package orderload

import "context"

// Loader moves every data row of a CSV file into the destination table.
type Loader interface {
	// Load runs one complete load. Either every row is committed or none is.
	Load(ctx context.Context, config LoadConfig) (LoadResult, error)
}

// ProgressReporter receives progress from a running load.
// Implementations must be safe for use from the loading goroutine.
type ProgressReporter interface {
	// Rows is called with the running number of rows written.
	Rows(n int64)

	// Finish is called once with the outcome of the run.
	Finish(result LoadResult, err error)
}
