/*
Package repository provides a generic, type-safe repository over pluggable
storage backends.

Repository[T] is the persistence contract for one entity type: insert, upsert
and replace single entities or ranges, change or remove the entities matching a
predicate, and read them back one at a time, as pages, or as lazy sequences in
backend, key or caller-supplied order. BaseRepository[T] implements it on top
of any datastore.DataStore[T]:

  - datastore/memory: in-process map, used by tests and as the default backend
  - datastore/ddb: DynamoDB single-table design driven by registered index maps
  - datastore/gormstore: PostgreSQL through GORM
  - datastore/mongostore: MongoDB collections

Predicates, ordering and paging are evaluated in process over the backend
stream, so every backend supports every operation.

Basic Usage:

	registry.RegisterKeyField[User]("ID")

	store := memory.New(func(u User) string { return u.ID })
	users, err := repository.New[User](store)
	if err != nil {
		return err
	}

	err = users.Add(ctx, User{ID: "123", Name: "John"})

	page, err := users.GetPageEntitiesOrdered(ctx, storagemodels.NewPage(1, 20),
		func(u User) bool { return u.Active },
		storagemodels.OrderBy(func(u User) string { return u.Name }))

	for user, err := range users.GetEntities(ctx, nil) {
		...
	}

Failures use the semantic error types of the errors package, so callers can
tell a missing entity (errors.IsNotFound) from a key clash
(errors.IsAlreadyExists) or a backend failure.

Named repositories of different entity types can be kept in a Catalog, and any
Repository[T] can be wrapped with observability.Instrument for tracing and
metrics.
*/
package repository
