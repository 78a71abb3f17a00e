/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package datastore

import (
	"context"

	"github.com/suparena/repository/storagemodels"
)

type DataStore[T any] interface {
	// GetOne returns the entity stored under key, or an errors.ErrNotFound error.
	GetOne(ctx context.Context, key string) (*T, error)

	// Put writes entity under its own key subject to cond.
	Put(ctx context.Context, entity T, cond storagemodels.PutCondition) error

	// Delete removes the entity stored under key, or returns an errors.ErrNotFound error.
	Delete(ctx context.Context, key string) error

	// Stream delivers every stored entity of type T and closes the channel when done
	// or when ctx is cancelled.
	Stream(ctx context.Context, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T]
}
