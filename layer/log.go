//
// log.go
//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package layer

import (
	"github.com/rs/zerolog"
)

var logger = zerolog.Nop()

// SetLogger installs a logger for dissection tracing. The default
// logger discards everything. Dissection emits debug events only;
// the encode path never logs.
func SetLogger(l zerolog.Logger) {
	logger = l
}
