/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

// PutCondition controls how DataStore.Put treats an existing entity with the same key.
type PutCondition int

const (
	// PutAlways writes the entity whether or not the key exists.
	PutAlways PutCondition = iota
	// PutIfAbsent writes only when the key is not stored yet.
	PutIfAbsent
	// PutIfExists writes only when the key is already stored.
	PutIfExists
)

func (c PutCondition) String() string {
	switch c {
	case PutAlways:
		return "always"
	case PutIfAbsent:
		return "if-absent"
	case PutIfExists:
		return "if-exists"
	default:
		return "unknown"
	}
}
