package ocfl

import "github.com/archivekit/ocfl/backend"

// Error sentinels shared with the backend package, re-exported so callers
// working at the object level don't need to import backend to classify
// errors.
var (
	// ErrNotExist is reported when an object, version, or file is absent.
	ErrNotExist = backend.ErrNotExist
	// ErrExists is reported when a path collision is disallowed.
	ErrExists = backend.ErrExists
)
