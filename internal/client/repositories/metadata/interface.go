// Package metadata is the local durable key/value store. Values are short
// strings (a millisecond timestamp, an email address); there is no schema
// beyond the key.
package metadata

import "context"

type Repository interface {
	// Get returns the value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// SetMany writes all pairs in a single statement.
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error
	// Update runs fn in one transaction: every write through tx commits
	// together or not at all.
	Update(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error
}
