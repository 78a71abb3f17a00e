/*
Package storagemodels defines the value types shared by repositories and datastores.

Key Types:

Predicate:
A boolean filter over an entity. A nil predicate matches every entity:

	active := storagemodels.Predicate[User](func(u User) bool { return u.Active })
	cond := storagemodels.And(active, storagemodels.Not(isAdmin))

Ordering:
A stable sort rule built from a key selector:

	byName := storagemodels.OrderBy(func(u User) string { return u.Name })
	newest := storagemodels.OrderByDescending(func(u User) int64 { return u.CreatedAt.Unix() })

Page and PageCollection:
A 1-based page descriptor and the bounded slice of results it selects, with
total-count metadata:

	page := storagemodels.Page{Number: 2, Size: 25}
	// PageCollection{Items: [...], PageNumber: 2, PageSize: 25, TotalCount: 73, TotalPages: 3}

StreamResult and StreamOptions:
Items delivered by DataStore.Stream, configured with functional options:

	opts := []StreamOption{
	    WithBufferSize(100),
	    WithPageSize(25),
	    WithMaxRetries(3),
	    WithProgressHandler(progressFunc),
	}

These types provide a consistent interface across different storage implementations.
*/
package storagemodels
