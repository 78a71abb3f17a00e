/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

// Predicate filters entities. A nil Predicate matches everything.
type Predicate[T any] func(T) bool

// Match evaluates the predicate, treating nil as match-all.
func (p Predicate[T]) Match(entity T) bool {
	return p == nil || p(entity)
}

// All returns a predicate that matches every entity.
func All[T any]() Predicate[T] {
	return func(T) bool { return true }
}

// And matches when every predicate matches.
func And[T any](preds ...Predicate[T]) Predicate[T] {
	return func(entity T) bool {
		for _, p := range preds {
			if !p.Match(entity) {
				return false
			}
		}
		return true
	}
}

// Or matches when at least one predicate matches.
func Or[T any](preds ...Predicate[T]) Predicate[T] {
	return func(entity T) bool {
		for _, p := range preds {
			if p.Match(entity) {
				return true
			}
		}
		return false
	}
}

// Not inverts p.
func Not[T any](p Predicate[T]) Predicate[T] {
	return func(entity T) bool {
		return !p.Match(entity)
	}
}
