package query

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/luma-launcher/luma/pkg/extension"
	"github.com/luma-launcher/luma/pkg/logger"
)

// ErrIndexOutOfRange is returned when activating a match, fallback, or
// action index the query does not hold.
var ErrIndexOutOfRange = errors.New("index out of range")

// State is the lifecycle phase of a query.
type State int

const (
	// StateIdle means Run has not been called yet.
	StateIdle State = iota

	// StateRunning means handlers are executing.
	StateRunning

	// StateFinished means all handlers returned and results are frozen.
	StateFinished

	// StateCancelled means the query was cancelled and results are
	// frozen at whatever had arrived.
	StateCancelled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type queryConfig struct {
	id       string
	log      logger.Logger
	pools    *WorkerPools
	deadline time.Duration

	input   string
	trigger string

	handler   extension.QueryHandler
	globals   []extension.GlobalQueryHandler
	fallbacks []extension.FallbackHandler
}

// Query is one run of user input against a snapshot of the routing table.
// A query is triggered, answered by exactly one handler, or global, fanned
// out to every enabled global handler. Matches stream in while the query
// runs and freeze once it finishes or is cancelled.
type Query struct {
	id       string
	log      logger.Logger
	pools    *WorkerPools
	deadline time.Duration

	input   string
	trigger string
	qstring string

	handler          extension.QueryHandler
	globals          []extension.GlobalQueryHandler
	fallbackHandlers []extension.FallbackHandler

	ctx       context.Context
	cancelCtx context.CancelFunc

	mu           sync.Mutex
	state        State
	matches      []extension.Item
	fallbacks    []extension.Item
	matchSubs    []func(added []extension.Item)
	finishedSubs []func()

	done       chan struct{}
	finishOnce sync.Once
}

func newQuery(cfg queryConfig) *Query {
	ctx, cancel := context.WithCancel(context.Background())

	return &Query{
		id:               cfg.id,
		log:              cfg.log,
		pools:            cfg.pools,
		deadline:         cfg.deadline,
		input:            cfg.input,
		trigger:          cfg.trigger,
		qstring:          cfg.input[len(cfg.trigger):],
		handler:          cfg.handler,
		globals:          cfg.globals,
		fallbackHandlers: cfg.fallbacks,
		ctx:              ctx,
		cancelCtx:        cancel,
		done:             make(chan struct{}),
	}
}

// ID returns the unique id of this query run.
func (q *Query) ID() string { return q.id }

// Input returns the raw user input including any trigger.
func (q *Query) Input() string { return q.input }

// Trigger returns the matched trigger, empty for global queries.
func (q *Query) Trigger() string { return q.trigger }

// String returns the input with the trigger stripped.
func (q *Query) String() string { return q.qstring }

// IsTriggered reports whether the input matched a trigger.
func (q *Query) IsTriggered() bool { return q.handler != nil }

// Synopsis returns the input hint of the triggered handler, empty for
// global queries.
func (q *Query) Synopsis() string {
	if q.handler == nil {
		return ""
	}

	return q.handler.Synopsis()
}

// State returns the current lifecycle phase.
func (q *Query) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.state
}

// IsFinished reports whether the query will produce no further results.
func (q *Query) IsFinished() bool {
	state := q.State()

	return state == StateFinished || state == StateCancelled
}

// IsActive reports whether handlers should keep producing results. It flips
// to false on cancellation and stays false afterwards.
func (q *Query) IsActive() bool {
	return q.State() != StateCancelled
}

// Done returns a channel closed when the query finishes or is cancelled.
func (q *Query) Done() <-chan struct{} { return q.done }

// OnMatchesAdded registers a callback invoked with each batch of freshly
// arrived matches. Must be called before Run.
func (q *Query) OnMatchesAdded(fn func(added []extension.Item)) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.matchSubs = append(q.matchSubs, fn)
}

// OnFinished registers a callback invoked exactly once when the query
// finishes or is cancelled. Callbacks registered after that point fire
// immediately.
func (q *Query) OnFinished(fn func()) {
	q.mu.Lock()

	if q.state == StateFinished || q.state == StateCancelled {
		q.mu.Unlock()
		fn()

		return
	}

	q.finishedSubs = append(q.finishedSubs, fn)
	q.mu.Unlock()
}

// Matches returns a copy of the matches collected so far.
func (q *Query) Matches() []extension.Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]extension.Item(nil), q.matches...)
}

// Fallbacks returns a copy of the collected fallback items.
func (q *Query) Fallbacks() []extension.Item {
	q.mu.Lock()
	defer q.mu.Unlock()

	return append([]extension.Item(nil), q.fallbacks...)
}

// Run starts handler execution and returns immediately. Calling Run on a
// query that already ran or was cancelled is a no-op.
func (q *Query) Run() {
	q.mu.Lock()

	if q.state != StateIdle {
		q.mu.Unlock()

		return
	}

	q.state = StateRunning
	q.mu.Unlock()

	go q.execute()
}

// Cancel stops the query cooperatively. Running handlers observe context
// cancellation, late results are discarded, and the result lists freeze at
// their current contents. Finished callbacks still fire exactly once.
func (q *Query) Cancel() {
	q.finishAs(StateCancelled)
	q.cancelCtx()
}

// ActivateMatch runs the given action of the given match on the calling
// goroutine.
func (q *Query) ActivateMatch(itemIndex, actionIndex int) error {
	q.mu.Lock()

	if itemIndex < 0 || itemIndex >= len(q.matches) {
		q.mu.Unlock()

		return errors.Wrapf(ErrIndexOutOfRange, "match %d of %d", itemIndex, len(q.matches))
	}

	item := q.matches[itemIndex]
	q.mu.Unlock()

	return q.runAction(item, actionIndex)
}

// ActivateFallback runs the given action of the given fallback item on the
// calling goroutine.
func (q *Query) ActivateFallback(itemIndex, actionIndex int) error {
	q.mu.Lock()

	if itemIndex < 0 || itemIndex >= len(q.fallbacks) {
		q.mu.Unlock()

		return errors.Wrapf(ErrIndexOutOfRange, "fallback %d of %d", itemIndex, len(q.fallbacks))
	}

	item := q.fallbacks[itemIndex]
	q.mu.Unlock()

	return q.runAction(item, actionIndex)
}

func (q *Query) runAction(item extension.Item, actionIndex int) error {
	actions := item.Actions()
	if actionIndex < 0 || actionIndex >= len(actions) {
		return errors.Wrapf(ErrIndexOutOfRange, "action %d of %d on item %q", actionIndex, len(actions), item.ID())
	}

	action := actions[actionIndex]
	if action.Run == nil {
		return nil
	}

	return action.Run()
}

func (q *Query) collectFallbacks() {
	for _, handler := range q.fallbackHandlers {
		items := q.safeFallbacks(handler)
		if len(items) == 0 {
			continue
		}

		q.mu.Lock()

		if q.state == StateRunning {
			q.fallbacks = append(q.fallbacks, items...)
		}

		q.mu.Unlock()
	}
}

func (q *Query) safeFallbacks(handler extension.FallbackHandler) (items []extension.Item) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("fallback handler fault, contributing no results",
				"query", q.id, "handler", handler.ID(), "panic", fmt.Sprint(r))

			items = nil
		}
	}()

	return handler.Fallbacks(q.qstring)
}

func (q *Query) execute() {
	defer q.finishAs(StateFinished)

	q.collectFallbacks()

	if q.handler != nil {
		q.runTriggered()

		return
	}

	q.runGlobal()
}

// runTriggered drives the single matched handler. The handler streams items
// through the query view; on deadline or cancellation the view stops
// accepting items while the worker goroutine is left to unwind on its own.
func (q *Query) runTriggered() {
	handler := q.handler

	pool := q.pools.poolFor(handler.Category())
	if err := pool.Acquire(q.ctx, 1); err != nil {
		return
	}

	ctx := q.ctx

	if q.deadline > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, q.deadline)
		defer cancel()
	}

	view := &triggerView{query: q, ctx: ctx}
	done := make(chan struct{})

	go func() {
		defer pool.Release(1)
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				q.log.Error("query handler fault, contributing no results",
					"query", q.id, "handler", handler.ID(), "panic", fmt.Sprint(r))
			}
		}()

		handler.HandleTriggerQuery(ctx, view)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			q.log.Error("query handler exceeded deadline, further results discarded",
				"query", q.id, "handler", handler.ID(), "deadline", q.deadline.String())
		}
	}
}

// runGlobal fans the query out to every enabled global handler, waits for
// all of them, and publishes the merged ranking in one batch.
func (q *Query) runGlobal() {
	contributions := make([][]extension.RankItem, len(q.globals))

	var wg sync.WaitGroup

	for i, handler := range q.globals {
		wg.Add(1)

		go func(slot int, handler extension.GlobalQueryHandler) {
			defer wg.Done()

			contributions[slot] = q.collectGlobal(handler)
		}(i, handler)
	}

	wg.Wait()

	merged := mergeRanked(contributions)
	if len(merged) == 0 {
		return
	}

	items := make([]extension.Item, 0, len(merged))
	for _, ranked := range merged {
		items = append(items, ranked.Item)
	}

	q.publishMatches(items)
}

// collectGlobal runs one global handler under the pool and deadline. A
// handler that overruns its deadline keeps its worker goroutine but its
// contribution is discarded wholesale.
func (q *Query) collectGlobal(handler extension.GlobalQueryHandler) []extension.RankItem {
	pool := q.pools.poolFor(handler.Category())
	if err := pool.Acquire(q.ctx, 1); err != nil {
		return nil
	}

	ctx := q.ctx

	if q.deadline > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, q.deadline)
		defer cancel()
	}

	view := &globalView{query: q}
	done := make(chan []extension.RankItem, 1)

	go func() {
		defer pool.Release(1)
		defer func() {
			if r := recover(); r != nil {
				q.log.Error("query handler fault, contributing no results",
					"query", q.id, "handler", handler.ID(), "panic", fmt.Sprint(r))

				done <- nil
			}
		}()

		done <- handler.HandleGlobalQuery(ctx, view)
	}()

	select {
	case items := <-done:
		return items
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			q.log.Error("query handler exceeded deadline, contribution discarded",
				"query", q.id, "handler", handler.ID(), "deadline", q.deadline.String())
		}

		return nil
	}
}

// publishMatches appends a batch of items and notifies subscribers. Batches
// arriving after the query finished or was cancelled are dropped.
func (q *Query) publishMatches(items []extension.Item) {
	q.mu.Lock()

	if q.state != StateRunning {
		q.mu.Unlock()

		return
	}

	q.matches = append(q.matches, items...)
	subs := append(([]func(added []extension.Item))(nil), q.matchSubs...)
	q.mu.Unlock()

	for _, fn := range subs {
		fn(items)
	}
}

func (q *Query) finishAs(terminal State) {
	q.mu.Lock()

	if q.state == StateFinished || q.state == StateCancelled {
		q.mu.Unlock()

		return
	}

	q.state = terminal
	subs := q.finishedSubs
	q.finishedSubs = nil
	q.mu.Unlock()

	q.finishOnce.Do(func() {
		close(q.done)

		for _, fn := range subs {
			fn()
		}
	})
}

// triggerView is the handler-facing surface of a triggered query. It stops
// accepting items once the query is cancelled or the handler deadline
// expired.
type triggerView struct {
	query *Query
	ctx   context.Context
}

func (v *triggerView) Trigger() string { return v.query.trigger }
func (v *triggerView) String() string  { return v.query.qstring }

func (v *triggerView) IsValid() bool {
	return v.ctx.Err() == nil && v.query.IsActive()
}

func (v *triggerView) Add(items ...extension.Item) {
	if !v.IsValid() || len(items) == 0 {
		return
	}

	v.query.publishMatches(items)
}

// globalView is the handler-facing surface of a global query.
type globalView struct {
	query *Query
}

func (v *globalView) String() string { return v.query.qstring }
func (v *globalView) IsValid() bool  { return v.query.IsActive() }
