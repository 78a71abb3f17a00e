/*
Package errors provides the error taxonomy shared by repositories and datastores.

Mutating repository operations report success with a nil error. Failures carry
a semantic type that can be checked with errors.Is or the helpers below, so
"nothing matched" is never confused with an operational failure:

	var (
	    ErrNotFound        = errors.New("entity not found")
	    ErrAlreadyExists   = errors.New("entity already exists")
	    ErrInvalidInput    = errors.New("invalid input")
	    ErrConditionFailed = errors.New("condition check failed")
	    ErrNoIndexMap      = errors.New("no index map found for type")
	    ErrNoKeyFunc       = errors.New("no key function found for type")
	)

Usage:

	err := repo.Change(ctx, user)
	switch {
	case errors.IsNotFound(err):
	    // no stored entity has user's key
	case err != nil:
	    return err
	}

Backends wrap driver errors with %w, so the helpers keep working through
any number of fmt.Errorf layers.
*/
package errors
