/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package repository

import (
	"context"
	"fmt"
	"iter"
	"reflect"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/suparena/repository/datastore"
	"github.com/suparena/repository/errors"
	"github.com/suparena/repository/registry"
	"github.com/suparena/repository/storagemodels"
)

// BaseRepository implements Repository[T] on top of any datastore.DataStore[T].
// Predicates, ordering and paging are evaluated in process over the backend stream.
type BaseRepository[T any] struct {
	store      datastore.DataStore[T]
	keyOf      registry.KeyFunc[T]
	entityType string
	logger     *logrus.Entry
	streamOpts []storagemodels.StreamOption
}

var _ Repository[struct{ ID string }] = (*BaseRepository[struct{ ID string }])(nil)

// Option configures a BaseRepository.
type Option[T any] func(*BaseRepository[T])

// WithKeyFunc sets the primary key extractor, overriding the one registered for T.
func WithKeyFunc[T any](fn registry.KeyFunc[T]) Option[T] {
	return func(r *BaseRepository[T]) {
		r.keyOf = fn
	}
}

// WithLogger sets the logger used by the repository.
func WithLogger[T any](logger *logrus.Entry) Option[T] {
	return func(r *BaseRepository[T]) {
		r.logger = logger
	}
}

// WithStreamOptions sets the options passed to every backend stream.
func WithStreamOptions[T any](opts ...storagemodels.StreamOption) Option[T] {
	return func(r *BaseRepository[T]) {
		r.streamOpts = opts
	}
}

// New creates a repository over store. T must be a value type. Unless
// WithKeyFunc is given, the key extractor registered for T in the registry is used.
func New[T any](store datastore.DataStore[T], opts ...Option[T]) (*BaseRepository[T], error) {
	if store == nil {
		return nil, errors.NewValidationError("store", "datastore must not be nil")
	}
	// Conditional changes mutate a copy of the stored entity before the key
	// check, which only holds when T is not a pointer.
	if t := reflect.TypeFor[T](); t.Kind() == reflect.Pointer {
		return nil, errors.NewValidationError("entity", fmt.Sprintf("entity type %v must not be a pointer", t))
	}

	r := &BaseRepository[T]{
		store:      store,
		entityType: registry.TypeName[T](),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.keyOf == nil {
		fn, err := registry.GetKeyFunc[T]()
		if err != nil {
			return nil, err
		}
		r.keyOf = fn
	}
	if r.logger == nil {
		r.logger = logrus.WithField("subsystem", "repository")
	}
	r.logger = r.logger.WithField("entity", r.entityType)

	return r, nil
}

// Attach stores entity, inserting or replacing by primary key.
func (r *BaseRepository[T]) Attach(ctx context.Context, entity T) error {
	if _, err := r.keyFor(entity); err != nil {
		return err
	}
	return r.fail("Attach", r.store.Put(ctx, entity, storagemodels.PutAlways))
}

// AttachRange attaches every entity in order.
func (r *BaseRepository[T]) AttachRange(ctx context.Context, entities ...T) error {
	if _, err := r.keys(entities); err != nil {
		return err
	}
	if err := r.putAll(ctx, entities, storagemodels.PutAlways); err != nil {
		return r.fail("AttachRange", err)
	}
	r.logger.WithFields(logrus.Fields{"operation": "AttachRange", "count": len(entities)}).Debug("entities attached")
	return nil
}

// Add inserts entity. It fails with AlreadyExists when the key is stored.
func (r *BaseRepository[T]) Add(ctx context.Context, entity T) error {
	if _, err := r.keyFor(entity); err != nil {
		return err
	}
	return r.fail("Add", r.store.Put(ctx, entity, storagemodels.PutIfAbsent))
}

// AddRange inserts entities after checking that none of their keys is stored
// or repeated within the batch.
func (r *BaseRepository[T]) AddRange(ctx context.Context, entities []T) error {
	keys, err := r.keys(entities)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			return errors.NewAlreadyExistsError(r.entityType, key)
		}
		seen[key] = struct{}{}

		exists, err := r.exists(ctx, key)
		if err != nil {
			return r.fail("AddRange", err)
		}
		if exists {
			return errors.NewAlreadyExistsError(r.entityType, key)
		}
	}

	if err := r.putAll(ctx, entities, storagemodels.PutIfAbsent); err != nil {
		return r.fail("AddRange", err)
	}
	r.logger.WithFields(logrus.Fields{"operation": "AddRange", "count": len(entities)}).Debug("entities added")
	return nil
}

// Change replaces the stored entity that has entity's key.
func (r *BaseRepository[T]) Change(ctx context.Context, entity T) error {
	if _, err := r.keyFor(entity); err != nil {
		return err
	}
	return r.fail("Change", r.store.Put(ctx, entity, storagemodels.PutIfExists))
}

// ChangeRange replaces stored entities after checking that every key is stored.
func (r *BaseRepository[T]) ChangeRange(ctx context.Context, entities []T) error {
	keys, err := r.keys(entities)
	if err != nil {
		return err
	}

	for _, key := range keys {
		exists, err := r.exists(ctx, key)
		if err != nil {
			return r.fail("ChangeRange", err)
		}
		if !exists {
			return errors.NewNotFoundError(r.entityType, key)
		}
	}

	if err := r.putAll(ctx, entities, storagemodels.PutIfExists); err != nil {
		return r.fail("ChangeRange", err)
	}
	r.logger.WithFields(logrus.Fields{"operation": "ChangeRange", "count": len(entities)}).Debug("entities changed")
	return nil
}

// ChangeWhere applies action to the first entity matching cond and stores it.
// The action must not modify the primary key.
func (r *BaseRepository[T]) ChangeWhere(ctx context.Context, cond storagemodels.Predicate[T], action func(*T)) error {
	if action == nil {
		return errors.NewValidationError("action", "must not be nil")
	}

	entity, found, err := r.GetEntity(ctx, cond)
	if err != nil {
		return err
	}
	if !found {
		return errors.NewNoMatchError(r.entityType)
	}

	key := r.keyOf(entity)
	action(&entity)
	if r.keyOf(entity) != key {
		return errors.NewValidationError("key", fmt.Sprintf("changing %s %q must not modify its primary key", r.entityType, key))
	}

	return r.fail("ChangeWhere", r.store.Put(ctx, entity, storagemodels.PutIfExists))
}

// ChangeRangeWhere applies action to every entity matching cond and stores them.
// The action may reorder the slice but must not modify primary keys.
func (r *BaseRepository[T]) ChangeRangeWhere(ctx context.Context, cond storagemodels.Predicate[T], action func([]T)) error {
	if action == nil {
		return errors.NewValidationError("action", "must not be nil")
	}

	matches, err := r.collect(ctx, cond)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return errors.NewNoMatchError(r.entityType)
	}

	// The action may reorder matches but must keep the same keys.
	remaining := make(map[string]int, len(matches))
	for _, entity := range matches {
		remaining[r.keyOf(entity)]++
	}
	action(matches)
	for _, entity := range matches {
		key := r.keyOf(entity)
		if remaining[key] == 0 {
			return errors.NewValidationError("key", fmt.Sprintf("changing %s entities must not modify their primary keys, got %q", r.entityType, key))
		}
		remaining[key]--
	}

	if err := r.putAll(ctx, matches, storagemodels.PutIfExists); err != nil {
		return r.fail("ChangeRangeWhere", err)
	}
	r.logger.WithFields(logrus.Fields{"operation": "ChangeRangeWhere", "count": len(matches)}).Debug("entities changed")
	return nil
}

// Remove deletes the stored entity that has entity's key.
func (r *BaseRepository[T]) Remove(ctx context.Context, entity T) error {
	key, err := r.keyFor(entity)
	if err != nil {
		return err
	}
	return r.fail("Remove", r.store.Delete(ctx, key))
}

// RemoveWhere deletes every entity matching cond.
func (r *BaseRepository[T]) RemoveWhere(ctx context.Context, cond storagemodels.Predicate[T]) error {
	var keys []string
	for entity, err := range r.scan(ctx, cond) {
		if err != nil {
			return err
		}
		keys = append(keys, r.keyOf(entity))
	}
	if len(keys) == 0 {
		return errors.NewNoMatchError(r.entityType)
	}

	for _, key := range keys {
		// Already gone is what we want.
		if err := r.store.Delete(ctx, key); err != nil && !errors.IsNotFound(err) {
			return r.fail("RemoveWhere", err)
		}
	}
	r.logger.WithFields(logrus.Fields{"operation": "RemoveWhere", "count": len(keys)}).Debug("entities removed")
	return nil
}

// GetEntity returns the first entity matching cond in backend order.
func (r *BaseRepository[T]) GetEntity(ctx context.Context, cond storagemodels.Predicate[T]) (T, bool, error) {
	for entity, err := range r.scan(ctx, cond) {
		if err != nil {
			var zero T
			return zero, false, err
		}
		return entity, true, nil
	}
	var zero T
	return zero, false, nil
}

// GetPageEntities returns one page of the entities matching cond, ordered by
// primary key compared as strings.
func (r *BaseRepository[T]) GetPageEntities(ctx context.Context, page storagemodels.Page, cond storagemodels.Predicate[T]) (*storagemodels.PageCollection[T], error) {
	return r.GetPageEntitiesOrdered(ctx, page, cond, storagemodels.Ordering[T]{})
}

// GetPageEntitiesOrdered returns one page of the entities matching cond sorted
// by ordering. Ties keep key order.
func (r *BaseRepository[T]) GetPageEntitiesOrdered(ctx context.Context, page storagemodels.Page, cond storagemodels.Predicate[T], ordering storagemodels.Ordering[T]) (*storagemodels.PageCollection[T], error) {
	if err := page.Validate(); err != nil {
		return nil, err
	}

	items, err := r.sorted(ctx, cond, ordering)
	if err != nil {
		return nil, err
	}
	return storagemodels.NewPageCollection(page, items), nil
}

// GetEntities lazily yields every entity matching cond in backend order.
func (r *BaseRepository[T]) GetEntities(ctx context.Context, cond storagemodels.Predicate[T]) iter.Seq2[T, error] {
	return r.scan(ctx, cond)
}

// QueryEntities lazily yields the result of query applied to every stored entity.
// A backend failure is yielded after whatever query produced from the entities read so far.
func (r *BaseRepository[T]) QueryEntities(ctx context.Context, query func(iter.Seq[T]) iter.Seq[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if query == nil {
			yield(zero, errors.NewValidationError("query", "must not be nil"))
			return
		}

		var streamErr error
		source := func(inner func(T) bool) {
			for entity, err := range r.scan(ctx, nil) {
				if err != nil {
					streamErr = err
					return
				}
				if !inner(entity) {
					return
				}
			}
		}

		for entity := range query(source) {
			if !yield(entity, nil) {
				return
			}
		}
		if streamErr != nil {
			yield(zero, streamErr)
		}
	}
}

// GetEntitiesOrdered yields every entity matching cond sorted by ordering.
// Ties keep key order. The result set is materialized on first iteration.
func (r *BaseRepository[T]) GetEntitiesOrdered(ctx context.Context, cond storagemodels.Predicate[T], ordering storagemodels.Ordering[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		items, err := r.sorted(ctx, cond, ordering)
		if err != nil {
			var zero T
			yield(zero, err)
			return
		}
		for _, entity := range items {
			if !yield(entity, nil) {
				return
			}
		}
	}
}

// Count returns the number of entities matching cond.
func (r *BaseRepository[T]) Count(ctx context.Context, cond storagemodels.Predicate[T]) (int64, error) {
	var n int64
	for _, err := range r.scan(ctx, cond) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// Exists reports whether any entity matches cond.
func (r *BaseRepository[T]) Exists(ctx context.Context, cond storagemodels.Predicate[T]) (bool, error) {
	_, found, err := r.GetEntity(ctx, cond)
	return found, err
}

// scan yields stored entities matching cond. The backend stream is cancelled
// as soon as the consumer stops.
func (r *BaseRepository[T]) scan(ctx context.Context, cond storagemodels.Predicate[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		streamCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		for result := range r.store.Stream(streamCtx, r.streamOpts...) {
			if result.Error != nil {
				r.logger.WithError(result.Error).WithField("index", result.Meta.Index).Warn("stream failed")
				yield(zero, result.Error)
				return
			}
			if !cond.Match(result.Item) {
				continue
			}
			if !yield(result.Item, nil) {
				return
			}
		}

		if err := ctx.Err(); err != nil {
			yield(zero, err)
		}
	}
}

func (r *BaseRepository[T]) collect(ctx context.Context, cond storagemodels.Predicate[T]) ([]T, error) {
	var items []T
	for entity, err := range r.scan(ctx, cond) {
		if err != nil {
			return nil, err
		}
		items = append(items, entity)
	}
	return items, nil
}

// sorted collects the matches of cond ordered by primary key string, then applies ordering.
func (r *BaseRepository[T]) sorted(ctx context.Context, cond storagemodels.Predicate[T], ordering storagemodels.Ordering[T]) ([]T, error) {
	items, err := r.collect(ctx, cond)
	if err != nil {
		return nil, err
	}

	type keyed struct {
		key    string
		entity T
	}
	byKey := make([]keyed, len(items))
	for i, entity := range items {
		byKey[i] = keyed{key: r.keyOf(entity), entity: entity}
	}
	slices.SortStableFunc(byKey, func(a, b keyed) int {
		return strings.Compare(a.key, b.key)
	})
	for i, k := range byKey {
		items[i] = k.entity
	}

	ordering.Sort(items)
	return items, nil
}

func (r *BaseRepository[T]) keyFor(entity T) (string, error) {
	key := r.keyOf(entity)
	if key == "" {
		return "", errors.NewValidationError("key", fmt.Sprintf("%s has an empty primary key", r.entityType))
	}
	return key, nil
}

func (r *BaseRepository[T]) keys(entities []T) ([]string, error) {
	keys := make([]string, len(entities))
	for i, entity := range entities {
		key := r.keyOf(entity)
		if key == "" {
			return nil, errors.NewValidationError("key", fmt.Sprintf("%s at index %d has an empty primary key", r.entityType, i))
		}
		keys[i] = key
	}
	return keys, nil
}

func (r *BaseRepository[T]) exists(ctx context.Context, key string) (bool, error) {
	_, err := r.store.GetOne(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (r *BaseRepository[T]) putAll(ctx context.Context, entities []T, cond storagemodels.PutCondition) error {
	for i, entity := range entities {
		if err := r.store.Put(ctx, entity, cond); err != nil {
			return fmt.Errorf("%s %d of %d: %w", r.entityType, i+1, len(entities), err)
		}
	}
	return nil
}

// fail logs backend failures that are not part of the error taxonomy and returns err unchanged.
func (r *BaseRepository[T]) fail(operation string, err error) error {
	if err != nil && errors.Kind(err) == "error" {
		r.logger.WithError(err).WithField("operation", operation).Warn("backend operation failed")
	}
	return err
}
