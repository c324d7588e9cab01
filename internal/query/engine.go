// Package query routes launcher input to the handlers that can answer it and
// runs the resulting queries concurrently.
//
// The engine keeps a routing table of active triggers derived from the
// extension registry and the user's handler configuration. Building a query
// takes an immutable snapshot of that table, so handlers registering or
// vanishing mid-flight never affect a query that is already running.
package query

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/luma-launcher/luma/internal/registry"
	"github.com/luma-launcher/luma/pkg/extension"
	"github.com/luma-launcher/luma/pkg/logger"
)

var (
	// ErrEmptyTrigger is returned when a handler trigger is set to the
	// empty string.
	ErrEmptyTrigger = errors.New("trigger must not be empty")

	// ErrTriggerNotRemappable is returned when setting a trigger on a
	// handler that does not allow remapping.
	ErrTriggerNotRemappable = errors.New("handler does not allow trigger remapping")

	// ErrUnknownHandler is returned when configuring a handler the engine
	// does not track.
	ErrUnknownHandler = errors.New("unknown query handler")
)

// Seed is the persisted per-handler configuration applied when the handler
// first appears in the registry.
type Seed struct {
	Trigger string
	Enabled *bool
}

// Options configures a new Engine.
type Options struct {
	// Seeds maps handler ids to their persisted configuration.
	Seeds map[string]Seed

	// HandlerDeadline bounds a single handler invocation. Zero disables
	// the deadline and handlers run until they return or the query is
	// cancelled.
	HandlerDeadline time.Duration

	// MaxCPUWorkers and MaxIOWorkers bound concurrent handler
	// invocations per category. Non-positive values pick defaults from
	// the host CPU count.
	MaxCPUWorkers int
	MaxIOWorkers  int
}

// HandlerEntry describes one tracked handler for configuration surfaces.
type HandlerEntry struct {
	Handler extension.QueryHandler
	Trigger string
	Enabled bool

	// Active reports whether the handler owns its trigger in the routing
	// table. An enabled handler loses its trigger to an earlier
	// registrant claiming the same one.
	Active bool
}

type handlerConfig struct {
	trigger string
	enabled bool
}

// Engine tracks query and fallback handlers from the extension registry and
// builds queries against a snapshot of its routing table.
type Engine struct {
	log   logger.Logger
	pools *WorkerPools

	deadline time.Duration
	seeds    map[string]Seed

	mu        sync.Mutex
	handlers  []extension.QueryHandler
	fallbacks []extension.FallbackHandler
	config    map[string]handlerConfig
	active    map[string]extension.QueryHandler
	conflicts map[string][]string

	unwatch []func()
}

// NewEngine creates an engine subscribed to the registry. Handlers already
// registered are picked up immediately through watcher replay.
func NewEngine(reg *registry.ExtensionRegistry, opts Options, log logger.Logger) *Engine {
	engine := &Engine{
		log:       log,
		pools:     NewWorkerPools(opts.MaxCPUWorkers, opts.MaxIOWorkers),
		deadline:  opts.HandlerDeadline,
		seeds:     opts.Seeds,
		config:    make(map[string]handlerConfig),
		active:    make(map[string]extension.QueryHandler),
		conflicts: make(map[string][]string),
	}

	engine.unwatch = append(engine.unwatch,
		registry.Watch[extension.QueryHandler](reg, handlerWatcher{engine}),
		registry.Watch[extension.FallbackHandler](reg, fallbackWatcher{engine}),
	)

	return engine
}

// Close unsubscribes the engine from the registry.
func (e *Engine) Close() {
	for _, stop := range e.unwatch {
		stop()
	}

	e.unwatch = nil
}

// handlerWatcher and fallbackWatcher adapt the engine to the registry's
// typed watcher interfaces. An extension implementing both capabilities is
// delivered through both.
type handlerWatcher struct{ engine *Engine }

func (w handlerWatcher) OnAdd(h extension.QueryHandler)    { w.engine.addHandler(h) }
func (w handlerWatcher) OnRemove(h extension.QueryHandler) { w.engine.removeHandler(h) }

type fallbackWatcher struct{ engine *Engine }

func (w fallbackWatcher) OnAdd(h extension.FallbackHandler)    { w.engine.addFallback(h) }
func (w fallbackWatcher) OnRemove(h extension.FallbackHandler) { w.engine.removeFallback(h) }

func (e *Engine) addHandler(handler extension.QueryHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := handler.ID()
	if _, tracked := e.config[id]; tracked {
		return
	}

	trigger := handler.DefaultTrigger()
	if trigger == "" {
		trigger = id + " "
	}

	enabled := true

	if seed, ok := e.seeds[id]; ok {
		if seed.Trigger != "" && handler.AllowTriggerRemap() {
			trigger = seed.Trigger
		}

		if seed.Enabled != nil {
			enabled = *seed.Enabled
		}
	}

	e.handlers = append(e.handlers, handler)
	e.config[id] = handlerConfig{trigger: trigger, enabled: enabled}

	e.recomputeLocked()
}

func (e *Engine) removeHandler(handler extension.QueryHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := handler.ID()

	for i, tracked := range e.handlers {
		if tracked.ID() == id {
			e.handlers = append(e.handlers[:i], e.handlers[i+1:]...)

			break
		}
	}

	delete(e.config, id)

	e.recomputeLocked()
}

func (e *Engine) addFallback(handler extension.FallbackHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := handler.ID()
	for _, tracked := range e.fallbacks {
		if tracked.ID() == id {
			return
		}
	}

	e.fallbacks = append(e.fallbacks, handler)
}

func (e *Engine) removeFallback(handler extension.FallbackHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := handler.ID()

	for i, tracked := range e.fallbacks {
		if tracked.ID() == id {
			e.fallbacks = append(e.fallbacks[:i], e.fallbacks[i+1:]...)

			return
		}
	}
}

// recomputeLocked rebuilds the active trigger table. When several enabled
// handlers claim the same trigger the earliest registrant wins and the rest
// are recorded as conflicts.
func (e *Engine) recomputeLocked() {
	e.active = make(map[string]extension.QueryHandler)
	e.conflicts = make(map[string][]string)

	for _, handler := range e.handlers {
		cfg := e.config[handler.ID()]
		if !cfg.enabled {
			continue
		}

		if _, taken := e.active[cfg.trigger]; taken {
			e.conflicts[cfg.trigger] = append(e.conflicts[cfg.trigger], handler.ID())

			continue
		}

		e.active[cfg.trigger] = handler
	}
}

// SetTrigger remaps a handler's trigger and rebuilds the routing table.
func (e *Engine) SetTrigger(handler extension.QueryHandler, trigger string) error {
	if trigger == "" {
		return ErrEmptyTrigger
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, ok := e.config[handler.ID()]
	if !ok {
		return errors.Wrapf(ErrUnknownHandler, "id %q", handler.ID())
	}

	if !handler.AllowTriggerRemap() {
		return errors.Wrapf(ErrTriggerNotRemappable, "id %q", handler.ID())
	}

	cfg.trigger = trigger
	e.config[handler.ID()] = cfg

	e.recomputeLocked()

	return nil
}

// SetEnabled toggles a handler's participation in the routing table.
func (e *Engine) SetEnabled(handler extension.QueryHandler, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, ok := e.config[handler.ID()]
	if !ok {
		return errors.Wrapf(ErrUnknownHandler, "id %q", handler.ID())
	}

	cfg.enabled = enabled
	e.config[handler.ID()] = cfg

	e.recomputeLocked()

	return nil
}

// Handlers lists tracked handlers with their configuration, ordered by id.
func (e *Engine) Handlers() []HandlerEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := make([]HandlerEntry, 0, len(e.handlers))

	for _, handler := range e.handlers {
		cfg := e.config[handler.ID()]
		entries = append(entries, HandlerEntry{
			Handler: handler,
			Trigger: cfg.trigger,
			Enabled: cfg.enabled,
			Active:  e.active[cfg.trigger] != nil && e.active[cfg.trigger].ID() == handler.ID(),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Handler.ID() < entries[j].Handler.ID()
	})

	return entries
}

// ActiveTriggers returns a copy of the current trigger routing table keyed
// by trigger.
func (e *Engine) ActiveTriggers() map[string]extension.QueryHandler {
	e.mu.Lock()
	defer e.mu.Unlock()

	table := make(map[string]extension.QueryHandler, len(e.active))
	for trigger, handler := range e.active {
		table[trigger] = handler
	}

	return table
}

// Conflicts returns the ids of enabled handlers that lost their trigger to
// an earlier registrant, keyed by trigger.
func (e *Engine) Conflicts() map[string][]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	conflicts := make(map[string][]string, len(e.conflicts))
	for trigger, ids := range e.conflicts {
		conflicts[trigger] = append([]string(nil), ids...)
	}

	return conflicts
}

// BuildQuery resolves input against the routing table and returns an idle
// query. The longest matching trigger wins; input matching no trigger fans
// out to all enabled global handlers instead. The returned query holds
// snapshots of the handler sets, so later registry churn does not affect it.
func (e *Engine) BuildQuery(input string) *Query {
	e.mu.Lock()
	defer e.mu.Unlock()

	var (
		bestTrigger string
		bestHandler extension.QueryHandler
	)

	for trigger, handler := range e.active {
		if strings.HasPrefix(input, trigger) && len(trigger) > len(bestTrigger) {
			bestTrigger = trigger
			bestHandler = handler
		}
	}

	fallbacks := append([]extension.FallbackHandler(nil), e.fallbacks...)

	if bestHandler != nil {
		return newQuery(queryConfig{
			id:        uuid.NewString(),
			log:       e.log,
			pools:     e.pools,
			deadline:  e.deadline,
			input:     input,
			trigger:   bestTrigger,
			handler:   bestHandler,
			fallbacks: fallbacks,
		})
	}

	globals := make([]extension.GlobalQueryHandler, 0, len(e.handlers))

	for _, handler := range e.handlers {
		if !e.config[handler.ID()].enabled {
			continue
		}

		if global, ok := handler.(extension.GlobalQueryHandler); ok {
			globals = append(globals, global)
		}
	}

	return newQuery(queryConfig{
		id:        uuid.NewString(),
		log:       e.log,
		pools:     e.pools,
		deadline:  e.deadline,
		input:     input,
		globals:   globals,
		fallbacks: fallbacks,
	})
}
