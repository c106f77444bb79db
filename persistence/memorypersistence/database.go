package memorypersistence

import (
	"sync"
)

// database is an in-memory collection of process data.
type database struct {
	mutex   sync.RWMutex
	open    bool
	process processDatabase
}

// TryOpen marks the database as open, returning false if it is already open.
func (db *database) TryOpen() bool {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	if db.open {
		return false
	}

	db.open = true
	return true
}

// Close marks the database as closed.
func (db *database) Close() {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	db.open = false
}
