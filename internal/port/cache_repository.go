package port

import "context"

type IdempotencyStore interface {
	// Reserve marks key as in flight, returns false if it already exists
	Reserve(ctx context.Context, key string) (bool, error)

	// Complete stores the result for a reserved key
	Complete(ctx context.Context, key, result string) error

	// Release removes the key so the request can be retried
	Release(ctx context.Context, key string) error

	// Lookup returns the stored result, empty while in flight or unknown
	Lookup(ctx context.Context, key string) (string, error)
}
