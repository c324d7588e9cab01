package plugin

import "github.com/cockroachdb/errors"

var (
	// ErrNotAPlugin is returned when a candidate module lacks the plugin
	// manifest entirely. Unlike validation errors this is unrecoverable:
	// no loader is constructed for the candidate.
	ErrNotAPlugin = errors.New("not a luma plugin")

	// ErrInvalidMetadata is the marker for aggregated manifest validation
	// failures. The wrapped message lists every violation.
	ErrInvalidMetadata = errors.New("invalid plugin metadata")

	// ErrIncompatibleMajorVersion marks an interface major version mismatch.
	ErrIncompatibleMajorVersion = errors.New("incompatible interface major version")

	// ErrIncompatibleMinorVersion marks an interface minor version newer
	// than the runtime supports.
	ErrIncompatibleMinorVersion = errors.New("incompatible interface minor version")

	// ErrNotUnloaded is returned when a lifecycle operation requires the
	// unloaded state, including closing a loader that still holds an
	// instance.
	ErrNotUnloaded = errors.New("loader not in unloaded state")

	// ErrNotLoaded is returned when unloading a loader that holds no
	// instance.
	ErrNotLoaded = errors.New("loader not in loaded state")

	// ErrStaleExtension is returned when an action of an item produced by
	// a since-unloaded module is activated.
	ErrStaleExtension = errors.New("extension was unloaded")

	// ErrUnknownPlugin is returned for operations on plugin ids the
	// provider does not track.
	ErrUnknownPlugin = errors.New("unknown plugin id")
)
