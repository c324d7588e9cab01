package schema_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/luma-launcher/luma/internal/schema"
)

var _ = Describe("Generate", func() {
	var s map[string]any

	BeforeEach(func() {
		data, err := schema.GenerateJSON(true)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(data, &s)).To(Succeed())
	})

	It("produces valid JSON", func() {
		Expect(s).NotTo(BeEmpty())
	})

	It("sets the $schema URI", func() {
		Expect(s["$schema"]).To(Equal("https://json-schema.org/draft/2020-12/schema"))
	})

	It("sets the title", func() {
		Expect(s["title"]).To(Equal("luma plugin manifest"))
	})

	It("includes the manifest properties", func() {
		props, ok := s["properties"].(map[string]any)
		Expect(ok).To(BeTrue())

		for _, key := range []string{
			"iid", "id", "version", "name", "description",
			"license", "url", "authors", "loadtype",
		} {
			Expect(props).To(HaveKey(key), "missing property: %s", key)
		}
	})

	It("marks the mandatory fields required", func() {
		required, ok := s["required"].([]any)
		Expect(ok).To(BeTrue())
		Expect(required).To(ContainElements("iid", "id", "version", "name", "description"))
	})

	It("defines loadtype as string with enum", func() {
		defs, ok := s["$defs"].(map[string]any)
		Expect(ok).To(BeTrue(), "$defs should exist")

		lt, ok := defs["LoadType"].(map[string]any)
		Expect(ok).To(BeTrue(), "LoadType def should exist")
		Expect(lt["type"]).To(Equal("string"))

		enumVals, ok := lt["enum"].([]any)
		Expect(ok).To(BeTrue())
		Expect(enumVals).To(ContainElements("user", "frontend", "nounload"))
	})
})
