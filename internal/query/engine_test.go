package query_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/luma-launcher/luma/internal/query"
	"github.com/luma-launcher/luma/internal/registry"
	"github.com/luma-launcher/luma/pkg/logger"
)

var _ = Describe("Engine", func() {
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

	Describe("trigger configuration", func() {
		It("should derive the trigger from the handler id when no default is set", func() {
			Expect(reg.Add(&stubHandler{id: "files", remap: true})).To(Succeed())

			eng := newEngine(query.Options{})

			Expect(eng.ActiveTriggers()).To(HaveKey("files "))
		})

		It("should prefer the handler's default trigger", func() {
			Expect(reg.Add(&stubHandler{id: "calculator", trigger: "= ", remap: true})).To(Succeed())

			eng := newEngine(query.Options{})

			Expect(eng.ActiveTriggers()).To(HaveKey("= "))
		})

		It("should apply a seeded trigger when the handler allows remapping", func() {
			Expect(reg.Add(&stubHandler{id: "files", remap: true})).To(Succeed())

			eng := newEngine(query.Options{
				Seeds: map[string]query.Seed{"files": {Trigger: "f "}},
			})

			Expect(eng.ActiveTriggers()).To(HaveKey("f "))
			Expect(eng.ActiveTriggers()).NotTo(HaveKey("files "))
		})

		It("should ignore a seeded trigger when the handler forbids remapping", func() {
			Expect(reg.Add(&stubHandler{id: "locked", trigger: "! "})).To(Succeed())

			eng := newEngine(query.Options{
				Seeds: map[string]query.Seed{"locked": {Trigger: "? "}},
			})

			Expect(eng.ActiveTriggers()).To(HaveKey("! "))
		})

		It("should exclude handlers disabled by seed from the routing table", func() {
			disabled := false

			Expect(reg.Add(&stubHandler{id: "files", remap: true})).To(Succeed())

			eng := newEngine(query.Options{
				Seeds: map[string]query.Seed{"files": {Enabled: &disabled}},
			})

			Expect(eng.ActiveTriggers()).To(BeEmpty())
		})

		It("should pick up handlers registered after engine creation", func() {
			eng := newEngine(query.Options{})

			Expect(eng.ActiveTriggers()).To(BeEmpty())
			Expect(reg.Add(&stubHandler{id: "late", remap: true})).To(Succeed())
			Expect(eng.ActiveTriggers()).To(HaveKey("late "))
		})

		It("should drop the trigger when the handler is removed", func() {
			handler := &stubHandler{id: "files", remap: true}
			Expect(reg.Add(handler)).To(Succeed())

			eng := newEngine(query.Options{})

			Expect(reg.Remove(handler)).To(Succeed())
			Expect(eng.ActiveTriggers()).To(BeEmpty())
		})
	})

	Describe("trigger conflicts", func() {
		It("should give a contested trigger to the earliest registrant", func() {
			first := &stubHandler{id: "first", trigger: "x ", remap: true}
			second := &stubHandler{id: "second", trigger: "x ", remap: true}

			Expect(reg.Add(first)).To(Succeed())
			Expect(reg.Add(second)).To(Succeed())

			eng := newEngine(query.Options{})

			Expect(eng.ActiveTriggers()["x "].ID()).To(Equal("first"))
			Expect(eng.Conflicts()).To(HaveKeyWithValue("x ", []string{"second"}))
		})

		It("should hand the trigger to the loser when the winner is disabled", func() {
			first := &stubHandler{id: "first", trigger: "x ", remap: true}
			second := &stubHandler{id: "second", trigger: "x ", remap: true}

			Expect(reg.Add(first)).To(Succeed())
			Expect(reg.Add(second)).To(Succeed())

			eng := newEngine(query.Options{})

			Expect(eng.SetEnabled(first, false)).To(Succeed())
			Expect(eng.ActiveTriggers()["x "].ID()).To(Equal("second"))
			Expect(eng.Conflicts()).To(BeEmpty())
		})
	})

	Describe("SetTrigger", func() {
		It("should reject the empty trigger", func() {
			handler := &stubHandler{id: "files", remap: true}
			Expect(reg.Add(handler)).To(Succeed())

			eng := newEngine(query.Options{})

			Expect(eng.SetTrigger(handler, "")).To(MatchError(query.ErrEmptyTrigger))
		})

		It("should refuse remapping when the handler forbids it", func() {
			handler := &stubHandler{id: "locked", trigger: "! "}
			Expect(reg.Add(handler)).To(Succeed())

			eng := newEngine(query.Options{})

			Expect(eng.SetTrigger(handler, "? ")).To(MatchError(query.ErrTriggerNotRemappable))
			Expect(eng.ActiveTriggers()).To(HaveKey("! "))
		})

		It("should reject handlers the engine does not track", func() {
			eng := newEngine(query.Options{})

			err := eng.SetTrigger(&stubHandler{id: "ghost", remap: true}, "g ")
			Expect(err).To(MatchError(query.ErrUnknownHandler))
		})

		It("should move the handler to the new trigger", func() {
			handler := &stubHandler{id: "files", remap: true}
			Expect(reg.Add(handler)).To(Succeed())

			eng := newEngine(query.Options{})

			Expect(eng.SetTrigger(handler, "f ")).To(Succeed())
			Expect(eng.ActiveTriggers()).To(HaveKey("f "))
			Expect(eng.ActiveTriggers()).NotTo(HaveKey("files "))
		})
	})

	Describe("Handlers", func() {
		It("should list entries ordered by id with routing status", func() {
			Expect(reg.Add(&stubHandler{id: "zeta", trigger: "x ", remap: true})).To(Succeed())
			Expect(reg.Add(&stubHandler{id: "alpha", trigger: "x ", remap: true})).To(Succeed())

			eng := newEngine(query.Options{})

			entries := eng.Handlers()
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].Handler.ID()).To(Equal("alpha"))
			Expect(entries[0].Active).To(BeFalse())
			Expect(entries[1].Handler.ID()).To(Equal("zeta"))
			Expect(entries[1].Active).To(BeTrue())
		})
	})

	Describe("BuildQuery", func() {
		It("should route to the handler with the longest matching trigger", func() {
			short := &stubHandler{id: "chrome", trigger: "c ", remap: true}
			long := &stubHandler{id: "calculator", trigger: "calc ", remap: true, synopsis: "<expression>"}

			Expect(reg.Add(short)).To(Succeed())
			Expect(reg.Add(long)).To(Succeed())

			eng := newEngine(query.Options{})

			q := eng.BuildQuery("calc 1+1")
			Expect(q.IsTriggered()).To(BeTrue())
			Expect(q.Trigger()).To(Equal("calc "))
			Expect(q.String()).To(Equal("1+1"))
			Expect(q.Synopsis()).To(Equal("<expression>"))
			Expect(q.ID()).NotTo(BeEmpty())
		})

		It("should build a global query when no trigger matches", func() {
			Expect(reg.Add(&stubHandler{id: "files", remap: true})).To(Succeed())

			eng := newEngine(query.Options{})

			q := eng.BuildQuery("firefox")
			Expect(q.IsTriggered()).To(BeFalse())
			Expect(q.Trigger()).To(BeEmpty())
			Expect(q.String()).To(Equal("firefox"))
			Expect(q.Synopsis()).To(BeEmpty())
		})

		It("should treat input matching a bare trigger prefix as global", func() {
			Expect(reg.Add(&stubHandler{id: "files", remap: true})).To(Succeed())

			eng := newEngine(query.Options{})

			// "files" without the trailing space is not the trigger.
			Expect(eng.BuildQuery("files").IsTriggered()).To(BeFalse())
			Expect(eng.BuildQuery("files ").IsTriggered()).To(BeTrue())
		})
	})
})
