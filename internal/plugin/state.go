package plugin

// State is the lifecycle state of a plugin loader.
type State int

const (
	// StateUnloaded means no instance exists and no load is in progress.
	StateUnloaded State = iota

	// StateLoading means a load request is being processed.
	StateLoading

	// StateLoaded means the module is resolved and its instance is live.
	StateLoaded

	// StateUnloading means an unload request is being processed.
	StateUnloading

	// StateFailed means the last load attempt failed. A loader in this
	// state holds no instance and may be loaded again.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateUnloading:
		return "unloading"
	case StateFailed:
		return "failed"
	default:
		return "unloaded"
	}
}
