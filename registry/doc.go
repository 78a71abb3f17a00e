/*
Package registry holds per-type metadata used by repositories and datastores.

The registry system enables:
  - Primary key extraction for any entity type
  - Polymorphic entity storage in a single DynamoDB table
  - Flexible key patterns through index maps

Key Registry:
Tells repositories how to read an entity's identity:

	registry.RegisterKeyFunc(func(u User) string { return u.ID })
	// or, reflectively, dereferencing pointer fields:
	registry.RegisterKeyField[User]("ID")

Type Registry:
Names the EntityType attribute written next to each item:

	registry.RegisterType[User]("User")

Index Map Registry:
Associates Go types with DynamoDB key patterns:

	registry.RegisterIndexMap[User](map[string]string{
	    "PK": "USER#{ID}",
	    "SK": "USER#{ID}",
	})

The registry is thread-safe and should be populated during initialization,
typically in init() functions or through code generated by cmd/indexmap.
*/
package registry
