// SPDX-License-Identifier: MIT

package store

import (
	"fmt"
)

// OpenStateStore creates a StateStore based on the backend configuration.
func OpenStateStore(backend, path string) (StateStore, error) {
	switch backend {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSqliteStore(path)
	case "badger":
		return OpenBadgerStore(path)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", backend)
	}
}
