package physics

import "errors"

// Capacity errors
var (
	ErrTooManyColliders = errors.New("physics: too many colliders")
)

// Policy violations. The operation that returns one of these has no effect.
var (
	ErrFrozenCompound   = errors.New("physics: compound shape is frozen")
	ErrNestedCompound   = errors.New("physics: compound shapes can not be nested")
	ErrCompoundTooSmall = errors.New("physics: frozen compound needs at least 2 children")
	ErrChildIndex       = errors.New("physics: compound child index out of range")
	ErrInvalidDimension = errors.New("physics: shape dimensions must be positive")
	ErrInvalidMesh      = errors.New("physics: invalid mesh data")
	ErrInvalidLimits    = errors.New("physics: joint limits out of order")
	ErrInvalidAxis      = errors.New("physics: joint axis must be non-zero")
	ErrUnknownTag       = errors.New("physics: unknown tag")
	ErrInvalidTag       = errors.New("physics: invalid tag name")
	ErrDuplicateTag     = errors.New("physics: duplicate tag")
	ErrTooManyTags      = errors.New("physics: too many tags")
	ErrCrossWorld       = errors.New("physics: joint bodies must exist in same world")
	ErrSameCollider     = errors.New("physics: joint needs two different colliders")
	ErrDestroyed        = errors.New("physics: object has been destroyed")
	ErrWorldBusy        = errors.New("physics: world is stepping or running a query")
	ErrWorldDestroyed   = errors.New("physics: world has been destroyed")
	ErrBackendInUse     = errors.New("physics: backend already drives a world")
)

// ErrUnsupported is returned by a Backend for features it does not implement.
// The World turns it into a logged warning and carries on.
var ErrUnsupported = errors.New("physics: unsupported by backend")
