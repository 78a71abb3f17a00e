/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"cmp"
	"slices"
)

// Ordering sorts entities by a projected key. The zero value keeps input order.
type Ordering[T any] struct {
	compare    func(a, b T) int
	descending bool
}

// OrderBy orders ascending by the key that selector extracts.
func OrderBy[T any, K cmp.Ordered](selector func(T) K) Ordering[T] {
	return Ordering[T]{
		compare: func(a, b T) int { return cmp.Compare(selector(a), selector(b)) },
	}
}

// OrderByDescending orders descending by the key that selector extracts.
func OrderByDescending[T any, K cmp.Ordered](selector func(T) K) Ordering[T] {
	o := OrderBy(selector)
	o.descending = true
	return o
}

// OrderByFunc orders ascending with a custom comparison, for keys that are not cmp.Ordered.
func OrderByFunc[T any](compare func(a, b T) int) Ordering[T] {
	return Ordering[T]{compare: compare}
}

// Descending returns a copy of o with the direction reversed.
func (o Ordering[T]) Descending() Ordering[T] {
	o.descending = !o.descending
	return o
}

// IsDescending reports the sort direction.
func (o Ordering[T]) IsDescending() bool {
	return o.descending
}

// Compare applies the ordering to two entities.
func (o Ordering[T]) Compare(a, b T) int {
	if o.compare == nil {
		return 0
	}
	if o.descending {
		return o.compare(b, a)
	}
	return o.compare(a, b)
}

// Sort orders items in place. Equal keys keep their relative order.
func (o Ordering[T]) Sort(items []T) {
	if o.compare == nil {
		return
	}
	slices.SortStableFunc(items, o.Compare)
}
