package plugin_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/luma-launcher/luma/internal/plugin"
	pluginapi "github.com/luma-launcher/luma/pkg/plugin"
)

var _ = Describe("ResolveLocalized", func() {
	values := map[string]any{
		"name":        "Files",
		"name[de]":    "Dateien",
		"name[de_AT]": "Dateien (AT)",
	}

	It("should prefer the full locale variant", func() {
		Expect(plugin.ResolveLocalized(values, "name", "de_AT")).To(Equal("Dateien (AT)"))
	})

	It("should fall back to the language variant", func() {
		Expect(plugin.ResolveLocalized(values, "name", "de_CH")).To(Equal("Dateien"))
	})

	It("should fall back to the bare key", func() {
		Expect(plugin.ResolveLocalized(values, "name", "fr_FR")).To(Equal("Files"))
	})

	It("should resolve the bare key without a locale", func() {
		Expect(plugin.ResolveLocalized(values, "name", "")).To(Equal("Files"))
	})

	It("should return empty for a missing key", func() {
		Expect(plugin.ResolveLocalized(values, "description", "de_AT")).To(BeEmpty())
	})
})

var _ = Describe("ExtractMetadata", func() {
	It("should decode a full manifest", func() {
		raw := map[string]any{
			"iid":                  pluginapi.InterfaceID,
			"id":                   "files",
			"version":              "2.1.0",
			"name":                 "Files",
			"description":          "Find files",
			"license":              "MIT",
			"url":                  "https://example.org/files",
			"authors":              []string{"Jo Doe"},
			"runtime_dependencies": []string{"libmagic"},
			"binary_dependencies":  []string{"fd"},
			"credits":              []string{"fd authors"},
			"loadtype":             "nounload",
		}

		md, err := plugin.ExtractMetadata(raw, "")

		Expect(err).NotTo(HaveOccurred())
		Expect(md.ID).To(Equal("files"))
		Expect(md.Version).To(Equal("2.1.0"))
		Expect(md.Name).To(Equal("Files"))
		Expect(md.Authors).To(ConsistOf("Jo Doe"))
		Expect(md.LoadType).To(Equal(pluginapi.LoadTypeNoUnload))
	})

	It("should locale-resolve name and description", func() {
		raw := map[string]any{
			"id":              "files",
			"name":            "Files",
			"name[de]":        "Dateien",
			"description":     "Find files",
			"description[de]": "Dateien finden",
			"description[fr]": "Trouver des fichiers",
			"version":         "1.0.0",
			"iid":             pluginapi.InterfaceID,
		}

		md, err := plugin.ExtractMetadata(raw, "de_DE")

		Expect(err).NotTo(HaveOccurred())
		Expect(md.Name).To(Equal("Dateien"))
		Expect(md.Description).To(Equal("Dateien finden"))
	})

	It("should default the load type to user", func() {
		md, err := plugin.ExtractMetadata(testManifest("x"), "")

		Expect(err).NotTo(HaveOccurred())
		Expect(md.LoadType).To(Equal(pluginapi.LoadTypeUser))
	})
})
