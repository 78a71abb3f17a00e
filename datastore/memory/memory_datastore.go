/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package memory provides an in-memory implementation of the DataStore interface
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/suparena/repository/errors"
	"github.com/suparena/repository/registry"
	"github.com/suparena/repository/storagemodels"
)

// DataStore is an in-memory implementation of datastore.DataStore[T].
// Stream delivers entities in ascending key order.
type DataStore[T any] struct {
	mu          sync.RWMutex
	data        map[string]T
	keyFunc     registry.KeyFunc[T]
	getError    error
	putError    error
	deleteError error
	streamError error
}

// New creates an empty DataStore keyed by keyFunc.
func New[T any](keyFunc registry.KeyFunc[T]) *DataStore[T] {
	return &DataStore[T]{
		data:    make(map[string]T),
		keyFunc: keyFunc,
	}
}

// WithGetError makes GetOne operations return an error
func (m *DataStore[T]) WithGetError(err error) *DataStore[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getError = err
	return m
}

// WithPutError makes Put operations return an error
func (m *DataStore[T]) WithPutError(err error) *DataStore[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putError = err
	return m
}

// WithDeleteError makes Delete operations return an error
func (m *DataStore[T]) WithDeleteError(err error) *DataStore[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteError = err
	return m
}

// WithStreamError makes Stream deliver err after the stored items
func (m *DataStore[T]) WithStreamError(err error) *DataStore[T] {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamError = err
	return m
}

// GetOne retrieves an entity by key
func (m *DataStore[T]) GetOne(ctx context.Context, key string) (*T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.getError != nil {
		return nil, m.getError
	}
	if entity, exists := m.data[key]; exists {
		return &entity, nil
	}
	return nil, errors.NewNotFoundError(registry.TypeName[T](), key)
}

// Put stores an entity subject to cond
func (m *DataStore[T]) Put(ctx context.Context, entity T, cond storagemodels.PutCondition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.putError != nil {
		return m.putError
	}

	key := m.keyFunc(entity)
	if key == "" {
		return errors.NewValidationError("key", "unable to extract key from entity")
	}

	_, exists := m.data[key]
	switch cond {
	case storagemodels.PutIfAbsent:
		if exists {
			return errors.NewAlreadyExistsError(registry.TypeName[T](), key)
		}
	case storagemodels.PutIfExists:
		if !exists {
			return errors.NewNotFoundError(registry.TypeName[T](), key)
		}
	}

	m.data[key] = entity
	return nil
}

// Delete removes an entity by key
func (m *DataStore[T]) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.deleteError != nil {
		return m.deleteError
	}
	if _, exists := m.data[key]; !exists {
		return errors.NewNotFoundError(registry.TypeName[T](), key)
	}

	delete(m.data, key)
	return nil
}

// Stream returns a channel of results. The store is snapshotted when Stream is
// called, so writes made while the caller drains the channel do not deadlock.
func (m *DataStore[T]) Stream(ctx context.Context, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	options := storagemodels.ApplyStreamOptions(opts...)

	m.mu.RLock()
	keys := slices.Sorted(maps.Keys(m.data))
	items := make([]T, len(keys))
	for i, k := range keys {
		items[i] = m.data[k]
	}
	streamErr := m.streamError
	m.mu.RUnlock()

	resultChan := make(chan storagemodels.StreamResult[T], options.BufferSize)

	go func() {
		defer close(resultChan)

		start := time.Now()
		pageSize := max(int(options.PageSize), 1)
		for index, v := range items {
			select {
			case <-ctx.Done():
				return
			case resultChan <- storagemodels.StreamResult[T]{
				Item: v,
				Meta: storagemodels.StreamMeta{
					Index:      int64(index),
					PageNumber: index/pageSize + 1,
					Timestamp:  time.Now(),
				},
			}:
			}
		}

		if streamErr != nil {
			select {
			case <-ctx.Done():
			case resultChan <- storagemodels.StreamResult[T]{
				Error: streamErr,
				Meta:  storagemodels.StreamMeta{Index: int64(len(items)), Timestamp: time.Now()},
			}:
			}
			return
		}

		if options.ProgressHandler != nil {
			progress := storagemodels.StreamProgress{
				ItemsProcessed: int64(len(items)),
				PagesProcessed: (len(items) + pageSize - 1) / pageSize,
				StartTime:      start,
			}
			if elapsed := time.Since(start).Seconds(); elapsed > 0 {
				progress.CurrentRate = float64(progress.ItemsProcessed) / elapsed
			}
			options.ProgressHandler(progress)
		}
	}()

	return resultChan
}

// Helper methods for testing

// SetData directly sets the internal data map (for testing)
func (m *DataStore[T]) SetData(data map[string]T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = maps.Clone(data)
	if m.data == nil {
		m.data = make(map[string]T)
	}
}

// GetData returns a copy of the internal data map (for testing)
func (m *DataStore[T]) GetData() map[string]T {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.data)
}

// Len returns the number of stored entities
func (m *DataStore[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Clear removes all data
func (m *DataStore[T]) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]T)
}
