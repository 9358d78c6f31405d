// Package backingstore defines the port to the platform that persists scripts
// and assets.
package backingstore

import "context"

// Store reads and mutates artifacts by name. Missing artifacts are reported
// with domain.ErrNotFound. Calls are independent; nothing spans two calls.
type Store interface {
	GetScript(ctx context.Context, name string) (string, error)
	UpsertScript(ctx context.Context, name, content string) error
	DeleteScript(ctx context.Context, name string) error

	GetAsset(ctx context.Context, path string) ([]byte, error)
	// UpsertAsset writes raw content; adapters apply the wire encoding.
	UpsertAsset(ctx context.Context, path string, content []byte) error
	DeleteAsset(ctx context.Context, path string) error
}
