//
// errors.go
//
// Copyright (c) 2024-2026 Markku Rossi
//
// All rights reserved.
//

package wire

import (
	"errors"
)

var (
	// ErrorTruncated is returned when the input buffer holds fewer
	// bytes than a field requires.
	ErrorTruncated = errors.New("truncated input")

	// ErrorOverflow is returned when a value does not fit the
	// declared field width. The codec is strict: values are never
	// silently wrapped.
	ErrorOverflow = errors.New("value overflows field width")
)
