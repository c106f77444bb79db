package persistence

import "context"

// Provider is an interface used by the engine to obtain data-stores.
type Provider interface {
	// Open returns a data-store for the engine identified by k.
	Open(ctx context.Context, k string) (DataStore, error)
}
