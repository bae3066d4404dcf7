package state

import "io"

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// IndexStore persists the latest-run summary per feature.
type IndexStore interface {
	UpsertIndex(e IndexEntry) error
	GetIndex(featureID string) (*IndexEntry, error)
	ListIndex() ([]IndexEntry, error)
	DeleteIndex(featureID string) error
}

// StateStore composes the persistence interfaces the CLI depends on.
type StateStore interface {
	io.Closer
	Migrator
	IndexStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ StateStore = (*DB)(nil)
	_ IndexStore = (*DB)(nil)
)
