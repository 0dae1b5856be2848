// Package storage provides a small namespaced key/value interface used by
// command handlers to persist their records.
package storage

import (
	"context"
	"errors"
	"time"
)

// Storage defines the primary interface for namespaced data storage.
type Storage interface {
	// Get retrieves data for a specific key within the given namespace.
	// Returns a nil Item if the key doesn't exist or has expired.
	// Returns error only for legitimate storage system failures.
	Get(ctx context.Context, key string, opts ...Option) (*Item, error)

	// Set stores data for a specific key within the given namespace.
	// With IfNotExists it fails with ErrExists instead of overwriting.
	Set(ctx context.Context, key string, data []byte, opts ...Option) error

	// Delete removes data within the given namespace.
	// If no key is specified via WithKey, removes the entire namespace.
	Delete(ctx context.Context, opts ...Option) error

	// List returns the live keys of the namespace in lexical order.
	List(ctx context.Context, opts ...Option) ([]string, error)

	// Close closes the storage backend and releases resources.
	Close() error
}

// Item represents a stored piece of data with metadata.
type Item struct {
	Data      []byte     // The stored data
	CreatedAt time.Time  // When the item was created
	ExpiresAt *time.Time // When the item expires (nil = no expiration)
}

// IsExpired checks if the item has expired.
func (it *Item) IsExpired() bool {
	return it.ExpiresAt != nil && time.Now().After(*it.ExpiresAt)
}

// Option configures storage operations.
type Option func(*Options)

// Options contains configuration for storage operations.
type Options struct {
	Namespace   string         // Optional: storage namespace ("" = global)
	Key         *string        // Optional: specific key (for Delete operations)
	TTL         *time.Duration // Optional: time-to-live for the data
	IfNotExists bool           // Optional: Set fails instead of overwriting
}

// GlobalNamespace is the namespace used when none is given.
const GlobalNamespace = "global"

// Apply folds opts into an Options value. Backends call it once per
// operation.
func Apply(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.Namespace == "" {
		o.Namespace = GlobalNamespace
	}
	return o
}

// WithNamespace scopes an operation to ns.
func WithNamespace(ns string) Option {
	return func(opts *Options) {
		opts.Namespace = ns
	}
}

// WithKey specifies a specific key for Delete operations.
// If not provided, Delete removes the entire namespace.
func WithKey(key string) Option {
	return func(opts *Options) {
		opts.Key = &key
	}
}

// WithTTL sets a time-to-live for the stored data.
func WithTTL(ttl time.Duration) Option {
	return func(opts *Options) {
		opts.TTL = &ttl
	}
}

// IfNotExists makes Set refuse to overwrite a live key.
func IfNotExists() Option {
	return func(opts *Options) {
		opts.IfNotExists = true
	}
}

// Error types
var (
	// ErrInvalidOptions is returned when incompatible options are provided.
	ErrInvalidOptions = errors.New("storage: invalid option combination")
	// ErrExists is returned by Set with IfNotExists when the key is taken.
	ErrExists = errors.New("storage: key already exists")
	// ErrClosed is returned by operations on a closed backend.
	ErrClosed = errors.New("storage: closed")
)
