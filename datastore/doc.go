/*
Package datastore defines the persistence contract that repositories are built on.

The main interface is DataStore[T], a keyed store for any entity type T:

	type DataStore[T any] interface {
	    GetOne(ctx context.Context, key string) (*T, error)
	    Put(ctx context.Context, entity T, cond storagemodels.PutCondition) error
	    Delete(ctx context.Context, key string) error
	    Stream(ctx context.Context, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T]
	}

Put conditions map onto repository semantics: PutAlways backs Attach,
PutIfAbsent backs Add and PutIfExists backs Change.

Implementations:
  - memory: in-memory store with fault injection, used in tests and as the default backend
  - ddb: DynamoDB implementation with support for single-table design
  - gormstore: GORM implementation over PostgreSQL
  - mongostore: MongoDB implementation

Predicates, ordering and paging are applied by the repository on top of Stream,
so a backend only needs keyed access and a full scan.
*/
package datastore
