/*
Package ddb provides a DynamoDB implementation of the DataStore interface.

The DynamodbDataStore supports:
  - Single-table design patterns
  - Macro-based key expansion (e.g., "USER#{ID}")
  - Conditional puts for create-only and replace-only writes
  - Scan-based streaming with retry logic
  - Automatic EntityType injection for polymorphic storage

Macro Expansion:
Keys can use macros that are replaced with entity field values:

	registry.RegisterIndexMap[User](map[string]string{
	    "PK":     "USER#{ID}",     // Becomes "USER#123"
	    "SK":     "USER#{ID}",
	    "GSI1PK": "EMAIL#{Email}", // Written as an extra attribute
	})

GetOne and Delete take the entity key and substitute it for every macro in
the PK and SK templates, so those templates should only reference the primary
key field.

Streaming:

	results := store.Stream(ctx,
	    storagemodels.WithPageSize(25),
	    storagemodels.WithMaxRetries(3),
	    storagemodels.WithProgressHandler(func(p storagemodels.StreamProgress) {
	        log.Printf("Processed %d items", p.ItemsProcessed)
	    }),
	)
*/
package ddb
