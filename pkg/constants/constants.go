// Package constants provides shared constants used throughout the stocksync codebase.
// This includes timeouts, retry ceilings, pagination sizes, file permissions and the
// default safety thresholds that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout bounds every single request to the commerce platform or a supplier
	DefaultHTTPTimeout = 30 * time.Second

	// SupplierHTTPTimeout is the request timeout used by supplier drivers
	SupplierHTTPTimeout = 60 * time.Second

	// ShutdownTimeout is how long the CLI waits for cleanup after a failed run
	ShutdownTimeout = 5 * time.Second
)

// Retry constants for the resilient platform client
const (
	// MaxRetries is the number of attempts for transient failures (network errors, 5xx)
	MaxRetries = 3

	// RetryBackoff is the base backoff; attempt n waits RetryBackoff * 2^(n-1)
	RetryBackoff = 2 * time.Second

	// MaxRateLimitRetries bounds how many 429 responses a single request may absorb.
	// It is deliberately larger than MaxRetries; rate limiting is expected under load.
	MaxRateLimitRetries = 10

	// RateLimitRetryDelay is used when a 429 response carries no Retry-After header
	RateLimitRetryDelay = 2 * time.Second

	// DefaultRequestsPerSecond is the platform's request ceiling on the basic plan
	DefaultRequestsPerSecond = 2.0
)

// Pagination and batching limits
const (
	// ProductPageSize is the number of products requested per page (platform maximum)
	ProductPageSize = 250

	// SupplierPageSize is the page size requested from catalog-dump supplier APIs
	SupplierPageSize = 10000

	// SearchDelay is the pause between two identifier searches against one supplier
	SearchDelay = 500 * time.Millisecond

	// ProgressEvery controls how often search progress is logged
	ProgressEvery = 10
)

// Safety-check defaults
const (
	// DefaultMaxQuantityDropPercent flags decreases of at least this many percent
	DefaultMaxQuantityDropPercent = 80

	// DefaultMinQuantityForZeroCheck flags drops to zero from at least this quantity
	DefaultMinQuantityForZeroCheck = 50
)

// Platform defaults
const (
	// DefaultAPIVersion is the commerce platform admin API version
	DefaultAPIVersion = "2024-10"

	// DefaultAuthHeader carries the static access token on every platform request
	DefaultAuthHeader = "X-Shopify-Access-Token"
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Run log constants
const (
	// DefaultLogDir is where run artifacts are written
	DefaultLogDir = "logs"

	// RunLogTimeLayout names run artifact files, sync_<layout>.json
	RunLogTimeLayout = "2006-01-02_15-04-05"
)
