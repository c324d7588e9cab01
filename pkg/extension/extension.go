// Package extension defines the capability surface plugins contribute to the
// luma runtime: extensions, query handlers, and the items they produce.
//
// An Extension is a unit of functionality with a stable id. Extensions are
// indexed by capability: the registry and its watchers operate on the
// capability interfaces below rather than on concrete types, so a single
// extension may implement several capabilities at once.
package extension

import "context"

// Extension is a live unit of functionality with a stable id.
type Extension interface {
	// ID returns the stable, unique identifier of the extension.
	ID() string

	// Name returns the human-readable name.
	Name() string

	// Description returns a short human-readable description.
	Description() string
}

// Category classifies the workload of a query handler so the engine can
// schedule it on the matching worker pool.
type Category int

const (
	// CategoryCPU marks handlers doing in-process computation.
	CategoryCPU Category = iota

	// CategoryIO marks handlers doing file system or network work.
	CategoryIO
)

// String returns the category name.
func (c Category) String() string {
	if c == CategoryIO {
		return "io"
	}

	return "cpu"
}

// QueryHandler is an extension capability that answers triggered queries.
//
// A handler participates in triggered queries when the input begins with its
// active trigger. Handlers that additionally implement GlobalQueryHandler are
// also consulted for untriggered input.
type QueryHandler interface {
	Extension

	// DefaultTrigger returns the trigger the handler ships with. An empty
	// string lets the engine derive one from the handler id.
	DefaultTrigger() string

	// AllowTriggerRemap reports whether the user may change the trigger.
	AllowTriggerRemap() bool

	// Synopsis returns a short input hint shown while the handler's trigger
	// is active, e.g. "<search term>".
	Synopsis() string

	// Category returns the workload category used for pool scheduling.
	Category() Category

	// HandleTriggerQuery answers a triggered query by pushing items into q.
	// The handler should observe both ctx and q.IsValid() and stop early
	// once the query is cancelled.
	HandleTriggerQuery(ctx context.Context, q TriggerQuery)
}

// GlobalQueryHandler is a QueryHandler capability that also contributes
// score-ranked results to untriggered (global) queries.
type GlobalQueryHandler interface {
	QueryHandler

	// HandleGlobalQuery returns scored items for the query. The runtime,
	// not the handler, establishes the total order across handlers.
	HandleGlobalQuery(ctx context.Context, q GlobalQuery) []RankItem
}

// FallbackHandler is an extension capability contributing handler-agnostic,
// always-available suggestions shown after the ranked matches.
type FallbackHandler interface {
	Extension

	// Fallbacks returns fallback items for the given query string.
	Fallbacks(query string) []Item
}

// TriggerQuery is the push surface a triggered handler writes results to.
type TriggerQuery interface {
	// Trigger returns the trigger that routed the query to this handler.
	Trigger() string

	// String returns the query string excluding the trigger.
	String() string

	// IsValid reports whether the query is still alive. Handlers should
	// poll this during long-running work and stop once it turns false.
	IsValid() bool

	// Add appends items to the query's match list. Items pushed after
	// cancellation are discarded.
	Add(items ...Item)
}

// GlobalQuery is the read surface passed to global query handlers.
type GlobalQuery interface {
	// String returns the query string.
	String() string

	// IsValid reports whether the query is still alive.
	IsValid() bool
}
