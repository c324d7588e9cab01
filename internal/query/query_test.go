package query_test

import (
	"context"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/luma-launcher/luma/internal/query"
	"github.com/luma-launcher/luma/internal/registry"
	"github.com/luma-launcher/luma/pkg/extension"
	"github.com/luma-launcher/luma/pkg/logger"
)

var _ = Describe("Query", func() {
	var (
		reg    *registry.ExtensionRegistry
		engine *query.Engine
	)

	BeforeEach(func() {
		reg = registry.New(logger.NewNoOpLogger())
	})

	AfterEach(func() {
		if engine != nil {
			engine.Close()
			engine = nil
		}
	})

	newEngine := func(opts query.Options) *query.Engine {
		engine = query.NewEngine(reg, opts, logger.NewNoOpLogger())

		return engine
	}

	Describe("triggered execution", func() {
		It("should stream matches from the handler and finish", func() {
			handler := &stubHandler{
				id:    "emoji",
				remap: true,
				onTrigger: func(_ context.Context, q extension.TriggerQuery) {
					q.Add(extension.NewItem("smile", "smile", ""))
					q.Add(extension.NewItem("wink", "wink", ""))
				},
			}
			Expect(reg.Add(handler)).To(Succeed())

			var batches atomic.Int32

			q := newEngine(query.Options{}).BuildQuery("emoji grin")
			q.OnMatchesAdded(func(added []extension.Item) {
				batches.Add(int32(len(added)))
			})

			Expect(q.State()).To(Equal(query.StateIdle))
			q.Run()

			Eventually(q.Done()).Should(BeClosed())
			Expect(q.State()).To(Equal(query.StateFinished))
			Expect(q.IsFinished()).To(BeTrue())
			Expect(itemIDs(q.Matches())).To(Equal([]string{"smile", "wink"}))
			Expect(batches.Load()).To(Equal(int32(2)))
		})

		It("should finish an empty query without results", func() {
			Expect(reg.Add(&stubHandler{id: "emoji", remap: true})).To(Succeed())

			q := newEngine(query.Options{}).BuildQuery("emoji ")
			q.Run()

			Eventually(q.Done()).Should(BeClosed())
			Expect(q.String()).To(BeEmpty())
			Expect(q.Matches()).To(BeEmpty())
			Expect(q.State()).To(Equal(query.StateFinished))
		})

		It("should isolate a panicking handler", func() {
			handler := &stubHandler{
				id:    "faulty",
				remap: true,
				onTrigger: func(_ context.Context, q extension.TriggerQuery) {
					q.Add(extension.NewItem("early", "early", ""))
					panic("handler exploded")
				},
			}
			Expect(reg.Add(handler)).To(Succeed())

			q := newEngine(query.Options{}).BuildQuery("faulty x")
			q.Run()

			Eventually(q.Done()).Should(BeClosed())
			Expect(q.State()).To(Equal(query.StateFinished))
			Expect(itemIDs(q.Matches())).To(Equal([]string{"early"}))
		})
	})

	Describe("global execution", func() {
		It("should merge contributions into one deterministic ranking", func() {
			alpha := &globalStub{
				stubHandler: stubHandler{id: "alpha", remap: true},
				onGlobal: func(_ context.Context, _ extension.GlobalQuery) []extension.RankItem {
					return []extension.RankItem{ranked("a1", 0.9)}
				},
			}
			beta := &globalStub{
				stubHandler: stubHandler{id: "beta", remap: true},
				onGlobal: func(_ context.Context, _ extension.GlobalQuery) []extension.RankItem {
					return []extension.RankItem{ranked("b1", 0.9), ranked("b2", 0.2)}
				},
			}
			gamma := &globalStub{
				stubHandler: stubHandler{id: "gamma", remap: true},
				onGlobal: func(_ context.Context, _ extension.GlobalQuery) []extension.RankItem {
					return []extension.RankItem{ranked("c1", 0.5)}
				},
			}

			Expect(reg.Add(alpha)).To(Succeed())
			Expect(reg.Add(beta)).To(Succeed())
			Expect(reg.Add(gamma)).To(Succeed())

			q := newEngine(query.Options{}).BuildQuery("term")
			q.Run()

			Eventually(q.Done()).Should(BeClosed())

			// Equal scores keep handler registration order.
			Expect(itemIDs(q.Matches())).To(Equal([]string{"a1", "b1", "c1", "b2"}))
		})

		It("should skip handlers without the global capability", func() {
			Expect(reg.Add(&stubHandler{id: "triggered-only", remap: true})).To(Succeed())

			global := &globalStub{
				stubHandler: stubHandler{id: "global", remap: true},
				onGlobal: func(_ context.Context, _ extension.GlobalQuery) []extension.RankItem {
					return []extension.RankItem{ranked("g1", 1)}
				},
			}
			Expect(reg.Add(global)).To(Succeed())

			q := newEngine(query.Options{}).BuildQuery("term")
			q.Run()

			Eventually(q.Done()).Should(BeClosed())
			Expect(itemIDs(q.Matches())).To(Equal([]string{"g1"}))
		})

		It("should keep results from healthy handlers when one panics", func() {
			faulty := &globalStub{
				stubHandler: stubHandler{id: "faulty", remap: true},
				onGlobal: func(_ context.Context, _ extension.GlobalQuery) []extension.RankItem {
					panic("no results today")
				},
			}
			healthy := &globalStub{
				stubHandler: stubHandler{id: "healthy", remap: true},
				onGlobal: func(_ context.Context, _ extension.GlobalQuery) []extension.RankItem {
					return []extension.RankItem{ranked("ok", 1)}
				},
			}

			Expect(reg.Add(faulty)).To(Succeed())
			Expect(reg.Add(healthy)).To(Succeed())

			q := newEngine(query.Options{}).BuildQuery("term")
			q.Run()

			Eventually(q.Done()).Should(BeClosed())
			Expect(itemIDs(q.Matches())).To(Equal([]string{"ok"}))
		})
	})

	Describe("cancellation", func() {
		It("should freeze results and notify finished exactly once", func() {
			started := make(chan struct{})
			attempted := make(chan struct{})

			handler := &stubHandler{
				id:    "slow",
				remap: true,
				onTrigger: func(ctx context.Context, q extension.TriggerQuery) {
					close(started)
					<-ctx.Done()

					// Late push after cancellation must be discarded.
					q.Add(extension.NewItem("late", "late", ""))
					close(attempted)
				},
			}
			Expect(reg.Add(handler)).To(Succeed())

			var finished atomic.Int32

			q := newEngine(query.Options{}).BuildQuery("slow x")
			q.OnFinished(func() { finished.Add(1) })

			q.Run()
			Eventually(started).Should(BeClosed())

			q.Cancel()

			Eventually(q.Done()).Should(BeClosed())
			Eventually(attempted).Should(BeClosed())

			Expect(q.State()).To(Equal(query.StateCancelled))
			Expect(q.IsFinished()).To(BeTrue())
			Expect(q.IsActive()).To(BeFalse())
			Expect(q.Matches()).To(BeEmpty())
			Expect(finished.Load()).To(Equal(int32(1)))

			// A second cancel must not fire the callback again.
			q.Cancel()
			Expect(finished.Load()).To(Equal(int32(1)))
		})

		It("should finish a query cancelled before it ran", func() {
			Expect(reg.Add(&stubHandler{id: "files", remap: true})).To(Succeed())

			var finished atomic.Int32

			q := newEngine(query.Options{}).BuildQuery("files x")
			q.OnFinished(func() { finished.Add(1) })

			q.Cancel()

			Expect(q.Done()).To(BeClosed())
			Expect(q.State()).To(Equal(query.StateCancelled))
			Expect(finished.Load()).To(Equal(int32(1)))

			// Run after cancel is a no-op.
			q.Run()
			Expect(q.State()).To(Equal(query.StateCancelled))
		})

		It("should invoke a finished callback registered late immediately", func() {
			Expect(reg.Add(&stubHandler{id: "files", remap: true})).To(Succeed())

			q := newEngine(query.Options{}).BuildQuery("files x")
			q.Run()
			Eventually(q.Done()).Should(BeClosed())

			called := false
			q.OnFinished(func() { called = true })
			Expect(called).To(BeTrue())
		})
	})

	Describe("handler deadline", func() {
		It("should discard the contribution of a handler that overruns", func() {
			prompt := &globalStub{
				stubHandler: stubHandler{id: "prompt", remap: true},
				onGlobal: func(_ context.Context, _ extension.GlobalQuery) []extension.RankItem {
					return []extension.RankItem{ranked("fast", 0.5)}
				},
			}
			laggard := &globalStub{
				stubHandler: stubHandler{id: "laggard", remap: true},
				onGlobal: func(ctx context.Context, _ extension.GlobalQuery) []extension.RankItem {
					<-ctx.Done()

					return []extension.RankItem{ranked("slow", 1)}
				},
			}

			Expect(reg.Add(prompt)).To(Succeed())
			Expect(reg.Add(laggard)).To(Succeed())

			q := newEngine(query.Options{HandlerDeadline: 20 * time.Millisecond}).BuildQuery("term")
			q.Run()

			Eventually(q.Done(), time.Second).Should(BeClosed())
			Expect(itemIDs(q.Matches())).To(Equal([]string{"fast"}))
		})

		It("should stop accepting triggered pushes after the deadline", func() {
			expired := make(chan struct{})

			handler := &stubHandler{
				id:    "slow",
				remap: true,
				onTrigger: func(ctx context.Context, q extension.TriggerQuery) {
					q.Add(extension.NewItem("before", "before", ""))
					<-ctx.Done()

					q.Add(extension.NewItem("after", "after", ""))
					close(expired)
				},
			}
			Expect(reg.Add(handler)).To(Succeed())

			q := newEngine(query.Options{HandlerDeadline: 20 * time.Millisecond}).BuildQuery("slow x")
			q.Run()

			Eventually(q.Done(), time.Second).Should(BeClosed())
			Eventually(expired).Should(BeClosed())
			Expect(itemIDs(q.Matches())).To(Equal([]string{"before"}))
		})
	})

	Describe("fallbacks", func() {
		It("should collect fallback items in registration order", func() {
			web := &fallbackStub{
				id: "websearch",
				onFallbacks: func(qs string) []extension.Item {
					return []extension.Item{extension.NewItem("web:"+qs, "Search the web", "")}
				},
			}
			files := &fallbackStub{
				id: "filesearch",
				onFallbacks: func(qs string) []extension.Item {
					return []extension.Item{extension.NewItem("files:"+qs, "Search files", "")}
				},
			}

			Expect(reg.Add(web)).To(Succeed())
			Expect(reg.Add(files)).To(Succeed())

			q := newEngine(query.Options{}).BuildQuery("firefox")
			q.Run()

			Eventually(q.Done()).Should(BeClosed())
			Expect(itemIDs(q.Fallbacks())).To(Equal([]string{"web:firefox", "files:firefox"}))
		})

		It("should not block Run on a slow fallback handler", func() {
			release := make(chan struct{})
			slow := &fallbackStub{
				id: "slow",
				onFallbacks: func(string) []extension.Item {
					<-release

					return []extension.Item{extension.NewItem("late", "Late", "")}
				},
			}

			Expect(reg.Add(slow)).To(Succeed())

			q := newEngine(query.Options{}).BuildQuery("anything")

			returned := make(chan struct{})
			go func() {
				defer GinkgoRecover()

				q.Run()
				close(returned)
			}()

			Eventually(returned).Should(BeClosed())
			Expect(q.Fallbacks()).To(BeEmpty())

			close(release)

			Eventually(q.Done()).Should(BeClosed())
			Expect(itemIDs(q.Fallbacks())).To(Equal([]string{"late"}))
		})

		It("should tolerate a panicking fallback handler", func() {
			faulty := &fallbackStub{
				id:          "faulty",
				onFallbacks: func(string) []extension.Item { panic("no fallbacks") },
			}
			healthy := &fallbackStub{
				id: "healthy",
				onFallbacks: func(string) []extension.Item {
					return []extension.Item{extension.NewItem("ok", "ok", "")}
				},
			}

			Expect(reg.Add(faulty)).To(Succeed())
			Expect(reg.Add(healthy)).To(Succeed())

			q := newEngine(query.Options{}).BuildQuery("anything")
			q.Run()

			Eventually(q.Done()).Should(BeClosed())
			Expect(itemIDs(q.Fallbacks())).To(Equal([]string{"ok"}))
		})
	})

	Describe("activation", func() {
		It("should run the selected match action", func() {
			var activated atomic.Int32

			handler := &stubHandler{
				id:    "apps",
				remap: true,
				onTrigger: func(_ context.Context, q extension.TriggerQuery) {
					q.Add(extension.NewItem("firefox", "Firefox", "",
						extension.Action{ID: "launch", Text: "Launch", Run: func() error {
							activated.Add(1)

							return nil
						}},
					))
				},
			}
			Expect(reg.Add(handler)).To(Succeed())

			q := newEngine(query.Options{}).BuildQuery("apps fire")
			q.Run()
			Eventually(q.Done()).Should(BeClosed())

			Expect(q.ActivateMatch(0, 0)).To(Succeed())
			Expect(activated.Load()).To(Equal(int32(1)))
		})

		It("should reject out-of-range match and action indices", func() {
			handler := &stubHandler{
				id:    "apps",
				remap: true,
				onTrigger: func(_ context.Context, q extension.TriggerQuery) {
					q.Add(extension.NewItem("firefox", "Firefox", "",
						extension.Action{ID: "launch", Text: "Launch", Run: func() error { return nil }},
					))
				},
			}
			Expect(reg.Add(handler)).To(Succeed())

			q := newEngine(query.Options{}).BuildQuery("apps fire")
			q.Run()
			Eventually(q.Done()).Should(BeClosed())

			Expect(q.ActivateMatch(5, 0)).To(MatchError(query.ErrIndexOutOfRange))
			Expect(q.ActivateMatch(-1, 0)).To(MatchError(query.ErrIndexOutOfRange))
			Expect(q.ActivateMatch(0, 3)).To(MatchError(query.ErrIndexOutOfRange))
			Expect(q.ActivateFallback(0, 0)).To(MatchError(query.ErrIndexOutOfRange))
		})

		It("should run the selected fallback action", func() {
			var activated atomic.Int32

			web := &fallbackStub{
				id: "websearch",
				onFallbacks: func(qs string) []extension.Item {
					return []extension.Item{extension.NewItem("web", "Search the web", "",
						extension.Action{ID: "open", Text: "Open", Run: func() error {
							activated.Add(1)

							return nil
						}},
					)}
				},
			}
			Expect(reg.Add(web)).To(Succeed())

			q := newEngine(query.Options{}).BuildQuery("whatever")
			q.Run()
			Eventually(q.Done()).Should(BeClosed())

			Expect(q.ActivateFallback(0, 0)).To(Succeed())
			Expect(activated.Load()).To(Equal(int32(1)))
		})
	})
})
