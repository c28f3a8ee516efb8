package reencode

import "errors"

// ErrUnsupportedFormat is returned when an input Fmt cannot be represented
// in the canonical detection domain, or when a caller delivers a block of
// the wrong length.
var ErrUnsupportedFormat = errors.New("reencode: unsupported format")
