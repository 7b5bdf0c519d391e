//
// errors.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package layer

import (
	"errors"
)

var (
	// ErrorUnresolved is returned by Compile when a length-from,
	// count-from, or discriminator reference names a field that
	// does not exist or is not declared before the referencing
	// field. It is a schema-definition error and never occurs
	// during build or dissect of a compiled schema.
	ErrorUnresolved = errors.New("unresolved field dependency")

	// ErrorDepth reports that dissection stopped because the layer
	// recursion budget was exhausted. It is never returned as a
	// top-level error: the stack is truncated at the last decoded
	// layer and the cause is recorded in Stack.Incomplete.
	ErrorDepth = errors.New("dissection depth exceeded")

	// ErrorValue is returned at build time when a field value has
	// the wrong type for its kind.
	ErrorValue = errors.New("invalid field value")

	// ErrorMalformed is returned during dissection when decoded
	// values are structurally impossible: a negative derived
	// length, or a sub-layer element that consumes no bytes.
	ErrorMalformed = errors.New("malformed input")
)
