/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package registry

import (
	"fmt"
	"reflect"

	"github.com/suparena/repository/errors"
)

// KeyFunc extracts the primary key of an entity.
type KeyFunc[T any] func(T) string

var keyFuncs = make(map[reflect.Type]any)

// RegisterKeyFunc associates a primary key extractor with type T.
func RegisterKeyFunc[T any](fn KeyFunc[T]) {
	t := reflect.TypeFor[T]()

	mu.Lock()
	defer mu.Unlock()
	keyFuncs[t] = fn
}

// RegisterKeyField registers a reflective extractor that reads the named field of T.
// Pointer fields are dereferenced; a nil pointer yields an empty key.
// It panics if T is not a struct or has no such field.
func RegisterKeyField[T any](field string) {
	fn, err := FieldKeyFunc[T](field)
	if err != nil {
		panic(fmt.Sprintf("key registry: %v", err))
	}
	RegisterKeyFunc(fn)
}

// GetKeyFunc retrieves the key extractor registered for T.
func GetKeyFunc[T any]() (KeyFunc[T], error) {
	t := reflect.TypeFor[T]()

	mu.RLock()
	defer mu.RUnlock()
	fn, ok := keyFuncs[t]
	if !ok {
		return nil, fmt.Errorf("%w: %v", errors.ErrNoKeyFunc, t)
	}
	return fn.(KeyFunc[T]), nil
}

// FieldKeyFunc builds a KeyFunc that formats the named struct field of T.
func FieldKeyFunc[T any](field string) (KeyFunc[T], error) {
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("type %v is not a struct", t)
	}
	sf, ok := t.FieldByName(field)
	if !ok {
		return nil, fmt.Errorf("type %v has no field %q", t, field)
	}
	index := sf.Index

	return func(entity T) string {
		v := reflect.ValueOf(entity).FieldByIndex(index)
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				return ""
			}
			v = v.Elem()
		}
		return fmt.Sprint(v.Interface())
	}, nil
}
