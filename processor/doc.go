/*
Package processor generates registry code from OpenAPI specifications.

The processor validates an OpenAPI 3 document and looks for two vendor
extensions on components.schemas:

	UserProfile:
	  type: object
	  x-entity-key: UserId
	  x-dynamodb-indexmap:
	    PK: "USER#{UserId}"
	    SK: "PROFILE"
	    GSI1PK: "EMAIL#{Email}"
	  properties:
	    userId:
	      type: string
	    email:
	      type: string

For every annotated schema it emits the matching registrations:

	func init() {
		registry.RegisterType[UserProfile]("UserProfile")
		registry.RegisterIndexMap[UserProfile](map[string]string{
			"GSI1PK": "EMAIL#{Email}",
			"PK":     "USER#{UserId}",
			"SK":     "PROFILE",
		})
		registry.RegisterKeyField[UserProfile]("UserId")
	}

The generated file belongs in the package that declares the Go types.
*/
package processor
