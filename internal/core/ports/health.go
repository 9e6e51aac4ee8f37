package ports

import "context"

// HealthChecker is a named dependency probe served on /health. Store backends
// implement it directly (bbolt) or through a read probe of a missing key; the
// database and Redis clients are wrapped by the health package.
type HealthChecker interface {
	Name() string
	// Check returns an error when the dependency cannot serve requests.
	Check(ctx context.Context) error
}
