package plugin

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/luma-launcher/luma/pkg/extension"
)

// generationGuard ties items produced by a module to the owning loader's
// generation counter. Unloading bumps the counter, so actions of items
// emitted before the unload fail with ErrStaleExtension instead of running
// against finalized plugin state.
type generationGuard struct {
	pluginID string
	gen      *atomic.Uint64
}

func (g *generationGuard) wrapItem(it extension.Item) extension.Item {
	return &guardedItem{Item: it, guard: g, snapshot: g.gen.Load()}
}

func (g *generationGuard) wrapItems(items []extension.Item) []extension.Item {
	out := make([]extension.Item, len(items))
	for i, it := range items {
		out[i] = g.wrapItem(it)
	}

	return out
}

func (g *generationGuard) wrapRankItems(items []extension.RankItem) []extension.RankItem {
	out := make([]extension.RankItem, len(items))
	for i, ri := range items {
		out[i] = extension.RankItem{Item: g.wrapItem(ri.Item), Score: ri.Score}
	}

	return out
}

// guardedItem delegates display state and gates every action behind a
// generation check.
type guardedItem struct {
	extension.Item

	guard    *generationGuard
	snapshot uint64
}

func (i *guardedItem) Actions() []extension.Action {
	inner := i.Item.Actions()

	out := make([]extension.Action, len(inner))
	for n, a := range inner {
		run := a.Run

		out[n] = extension.Action{
			ID:   a.ID,
			Text: a.Text,
			Run: func() error {
				if i.guard.gen.Load() != i.snapshot {
					return errors.Wrapf(ErrStaleExtension, "plugin %q", i.guard.pluginID)
				}

				if run == nil {
					return nil
				}

				return run()
			},
		}
	}

	return out
}

// guardedTriggerQuery wraps the push surface handed to a triggered handler
// so every emitted item carries the generation guard.
type guardedTriggerQuery struct {
	extension.TriggerQuery

	guard *generationGuard
}

func (q *guardedTriggerQuery) Add(items ...extension.Item) {
	q.TriggerQuery.Add(q.guard.wrapItems(items)...)
}

type guardedQueryHandler struct {
	extension.QueryHandler

	guard *generationGuard
}

func (h *guardedQueryHandler) HandleTriggerQuery(ctx context.Context, q extension.TriggerQuery) {
	h.QueryHandler.HandleTriggerQuery(ctx, &guardedTriggerQuery{TriggerQuery: q, guard: h.guard})
}

type guardedGlobalQueryHandler struct {
	guardedQueryHandler

	global extension.GlobalQueryHandler
}

func (h *guardedGlobalQueryHandler) HandleGlobalQuery(
	ctx context.Context,
	q extension.GlobalQuery,
) []extension.RankItem {
	return h.guard.wrapRankItems(h.global.HandleGlobalQuery(ctx, q))
}

type guardedFallbackHandler struct {
	extension.FallbackHandler

	guard *generationGuard
}

func (h *guardedFallbackHandler) Fallbacks(query string) []extension.Item {
	return h.guard.wrapItems(h.FallbackHandler.Fallbacks(query))
}

type guardedQueryFallbackHandler struct {
	guardedQueryHandler

	fallback extension.FallbackHandler
}

func (h *guardedQueryFallbackHandler) Fallbacks(query string) []extension.Item {
	return h.guard.wrapItems(h.fallback.Fallbacks(query))
}

type guardedGlobalFallbackHandler struct {
	guardedGlobalQueryHandler

	fallback extension.FallbackHandler
}

func (h *guardedGlobalFallbackHandler) Fallbacks(query string) []extension.Item {
	return h.guard.wrapItems(h.fallback.Fallbacks(query))
}

// guardExtension wraps the capabilities of ext so items crossing the
// plugin boundary are generation-guarded. Extensions without item-producing
// capabilities pass through unchanged.
func guardExtension(ext extension.Extension, guard *generationGuard) extension.Extension {
	gh, isGlobal := ext.(extension.GlobalQueryHandler)
	qh, isQuery := ext.(extension.QueryHandler)
	fh, isFallback := ext.(extension.FallbackHandler)

	switch {
	case isGlobal && isFallback:
		return &guardedGlobalFallbackHandler{
			guardedGlobalQueryHandler: guardedGlobalQueryHandler{
				guardedQueryHandler: guardedQueryHandler{QueryHandler: qh, guard: guard},
				global:              gh,
			},
			fallback: fh,
		}
	case isGlobal:
		return &guardedGlobalQueryHandler{
			guardedQueryHandler: guardedQueryHandler{QueryHandler: qh, guard: guard},
			global:              gh,
		}
	case isQuery && isFallback:
		return &guardedQueryFallbackHandler{
			guardedQueryHandler: guardedQueryHandler{QueryHandler: qh, guard: guard},
			fallback:            fh,
		}
	case isQuery:
		return &guardedQueryHandler{QueryHandler: qh, guard: guard}
	case isFallback:
		return &guardedFallbackHandler{FallbackHandler: fh, guard: guard}
	default:
		return ext
	}
}
