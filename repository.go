/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package repository

import (
	"context"
	"iter"

	"github.com/suparena/repository/storagemodels"
)

// Repository is the persistence contract for entities of type T.
//
// Mutating operations report success with a nil error. A key or condition that
// matches nothing yields an error satisfying errors.IsNotFound, and adding an
// entity whose key is already stored yields errors.IsAlreadyExists.
//
// Range operations are not atomic: every entity is validated before the first
// write, but a backend failure part way through leaves earlier writes in place.
type Repository[T any] interface {
	// Attach stores entity, inserting or replacing by primary key.
	Attach(ctx context.Context, entity T) error
	// AttachRange attaches every entity in order.
	AttachRange(ctx context.Context, entities ...T) error

	// Add inserts a new entity.
	Add(ctx context.Context, entity T) error
	// AddRange inserts new entities. No entity is written when any key is
	// already stored or repeated within the batch.
	AddRange(ctx context.Context, entities []T) error

	// Change replaces the stored entity that has the same key.
	Change(ctx context.Context, entity T) error
	// ChangeRange replaces stored entities. No entity is written when any key is missing.
	ChangeRange(ctx context.Context, entities []T) error
	// ChangeWhere applies action to the first entity matching cond and stores the result.
	ChangeWhere(ctx context.Context, cond storagemodels.Predicate[T], action func(*T)) error
	// ChangeRangeWhere applies action to every entity matching cond and stores the results.
	ChangeRangeWhere(ctx context.Context, cond storagemodels.Predicate[T], action func([]T)) error

	// Remove deletes the stored entity that has the same key as entity.
	Remove(ctx context.Context, entity T) error
	// RemoveWhere deletes every entity matching cond.
	RemoveWhere(ctx context.Context, cond storagemodels.Predicate[T]) error

	// GetEntity returns the first entity matching cond. found is false when nothing matched.
	GetEntity(ctx context.Context, cond storagemodels.Predicate[T]) (entity T, found bool, err error)

	// GetPageEntities returns one page of the entities matching cond, ordered by
	// primary key compared as strings ("10" sorts before "9").
	GetPageEntities(ctx context.Context, page storagemodels.Page, cond storagemodels.Predicate[T]) (*storagemodels.PageCollection[T], error)
	// GetPageEntitiesOrdered returns one page of the entities matching cond, sorted by ordering.
	GetPageEntitiesOrdered(ctx context.Context, page storagemodels.Page, cond storagemodels.Predicate[T], ordering storagemodels.Ordering[T]) (*storagemodels.PageCollection[T], error)

	// GetEntities lazily yields every entity matching cond in backend stream order,
	// which may differ from the string key order used for pages.
	GetEntities(ctx context.Context, cond storagemodels.Predicate[T]) iter.Seq2[T, error]
	// QueryEntities lazily yields the result of query applied to every stored entity.
	QueryEntities(ctx context.Context, query func(iter.Seq[T]) iter.Seq[T]) iter.Seq2[T, error]
	// GetEntitiesOrdered yields every entity matching cond, sorted by ordering.
	GetEntitiesOrdered(ctx context.Context, cond storagemodels.Predicate[T], ordering storagemodels.Ordering[T]) iter.Seq2[T, error]

	// Count returns the number of entities matching cond.
	Count(ctx context.Context, cond storagemodels.Predicate[T]) (int64, error)
	// Exists reports whether any entity matches cond.
	Exists(ctx context.Context, cond storagemodels.Predicate[T]) (bool, error)
}
