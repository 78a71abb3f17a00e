/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package repository

import (
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/suparena/repository/errors"
)

// TypedCatalog holds named repositories for a specific entity type T
type TypedCatalog[T any] struct {
	mu    sync.RWMutex
	repos map[string]Repository[T]
}

// NewTypedCatalog creates a new TypedCatalog for type T
func NewTypedCatalog[T any]() *TypedCatalog[T] {
	return &TypedCatalog[T]{
		repos: make(map[string]Repository[T]),
	}
}

// Register adds a repository with the given name
func (tc *TypedCatalog[T]) Register(name string, repo Repository[T]) error {
	if name == "" {
		return errors.NewValidationError("name", "must not be empty")
	}
	if repo == nil {
		return errors.NewValidationError("repository", "must not be nil")
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	if _, exists := tc.repos[name]; exists {
		return errors.NewAlreadyExistsError("repository", name)
	}

	tc.repos[name] = repo
	return nil
}

// Get retrieves a repository by name
func (tc *TypedCatalog[T]) Get(name string) (Repository[T], error) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	repo, exists := tc.repos[name]
	if !exists {
		return nil, errors.NewNotFoundError("repository", name)
	}

	return repo, nil
}

// Remove deletes a repository by name
func (tc *TypedCatalog[T]) Remove(name string) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if _, exists := tc.repos[name]; !exists {
		return errors.NewNotFoundError("repository", name)
	}

	delete(tc.repos, name)
	return nil
}

// List returns the registered repository names in sorted order
func (tc *TypedCatalog[T]) List() []string {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	return slices.Sorted(maps.Keys(tc.repos))
}

// Catalog manages one TypedCatalog per entity type
type Catalog struct {
	mu       sync.Mutex
	catalogs map[reflect.Type]any
}

// NewCatalog creates an empty Catalog
func NewCatalog() *Catalog {
	return &Catalog{
		catalogs: make(map[reflect.Type]any),
	}
}

// TypedCatalogFor returns the TypedCatalog for T, creating it if necessary
func TypedCatalogFor[T any](c *Catalog) *TypedCatalog[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	typ := reflect.TypeFor[T]()
	if tc, exists := c.catalogs[typ]; exists {
		return tc.(*TypedCatalog[T])
	}

	tc := NewTypedCatalog[T]()
	c.catalogs[typ] = tc
	return tc
}

// RegisterRepository registers repo for type T under name
func RegisterRepository[T any](c *Catalog, name string, repo Repository[T]) error {
	return TypedCatalogFor[T](c).Register(name, repo)
}

// GetRepository returns the repository for type T registered under name
func GetRepository[T any](c *Catalog, name string) (Repository[T], error) {
	return TypedCatalogFor[T](c).Get(name)
}

// RemoveRepository removes the repository for type T registered under name
func RemoveRepository[T any](c *Catalog, name string) error {
	return TypedCatalogFor[T](c).Remove(name)
}

// ListRepositories lists the repository names registered for type T
func ListRepositories[T any](c *Catalog) []string {
	return TypedCatalogFor[T](c).List()
}
