package wakeword

import "errors"

// Error kinds named in spec §7. Errors returned by this package wrap one
// of these sentinels so callers can match with errors.Is.
var (
	// ErrInvalidArtifact indicates a wakeword file's magic or checksum did
	// not match, or its payload was truncated or malformed. The wire format
	// carries no separate version field (kind doubles as the only
	// discriminator); the spec's "magic/version/checksum mismatch" language
	// collapses to magic+checksum here.
	ErrInvalidArtifact = errors.New("wakeword: invalid artifact")
	// ErrIncompatibleArtifact indicates an artifact's mfcc_size or assumed
	// sample rate does not match the detector configuration.
	ErrIncompatibleArtifact = errors.New("wakeword: incompatible artifact")
	// ErrTrainingFailed indicates no labeled samples were available, or
	// training loss diverged (NaN).
	ErrTrainingFailed = errors.New("wakeword: training failed")
	// ErrIoFailure wraps an underlying reader/writer failure.
	ErrIoFailure = errors.New("wakeword: io failure")
)
