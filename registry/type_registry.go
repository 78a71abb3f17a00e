package registry

import (
	"fmt"
	"reflect"
)

// typeNames maps a Go type to the name stored in the EntityType attribute.
var typeNames = make(map[reflect.Type]string)

// RegisterType records the entity type name persisted alongside items of type T.
// Registering a second, different name for the same type panics to prevent accidental overrides.
func RegisterType[T any](name string) {
	t := reflect.TypeFor[T]()

	mu.Lock()
	defer mu.Unlock()
	if existing, exists := typeNames[t]; exists && existing != name {
		panic(fmt.Sprintf("type registry: %v already registered as %q", t, existing))
	}
	typeNames[t] = name
}

// TypeName returns the registered entity type name for T,
// falling back to the Go type name when T was never registered.
func TypeName[T any]() string {
	t := reflect.TypeFor[T]()

	mu.RLock()
	name, ok := typeNames[t]
	mu.RUnlock()
	if ok {
		return name
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
