package plugin_test

import (
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/luma-launcher/luma/internal/plugin"
	pluginapi "github.com/luma-launcher/luma/pkg/plugin"
)

var _ = Describe("ValidateMetadata", func() {
	var md pluginapi.Metadata

	BeforeEach(func() {
		md = pluginapi.Metadata{
			IID:         pluginapi.InterfaceID,
			ID:          "files",
			Version:     "1.0.0",
			Name:        "Files",
			Description: "Find files",
		}
	})

	It("should accept a well-formed manifest", func() {
		Expect(plugin.ValidateMetadata(md, pluginapi.InterfaceMajor, pluginapi.InterfaceMinor)).
			To(BeEmpty())
	})

	It("should reject a malformed interface id", func() {
		md.IID = "org.luma.SomethingElse/1.0"

		errs := plugin.ValidateMetadata(md, pluginapi.InterfaceMajor, pluginapi.InterfaceMinor)

		Expect(errs).To(HaveLen(1))
		Expect(errs[0].Error()).To(ContainSubstring("invalid interface id"))
	})

	It("should reject an interface major version mismatch", func() {
		md.IID = fmt.Sprintf("org.luma.PluginInterface/%d.0", pluginapi.InterfaceMajor+1)

		errs := plugin.ValidateMetadata(md, pluginapi.InterfaceMajor, pluginapi.InterfaceMinor)

		Expect(errs).To(HaveLen(1))
		Expect(errs[0]).To(MatchError(plugin.ErrIncompatibleMajorVersion))
	})

	It("should reject an interface minor version newer than the runtime", func() {
		md.IID = fmt.Sprintf("org.luma.PluginInterface/%d.%d",
			pluginapi.InterfaceMajor, pluginapi.InterfaceMinor+1)

		errs := plugin.ValidateMetadata(md, pluginapi.InterfaceMajor, pluginapi.InterfaceMinor)

		Expect(errs).To(HaveLen(1))
		Expect(errs[0]).To(MatchError(plugin.ErrIncompatibleMinorVersion))
	})

	It("should accept an older interface minor version", func() {
		md.IID = fmt.Sprintf("org.luma.PluginInterface/%d.0", pluginapi.InterfaceMajor)

		Expect(plugin.ValidateMetadata(md, pluginapi.InterfaceMajor, pluginapi.InterfaceMinor)).
			To(BeEmpty())
	})

	DescribeTable("version scheme",
		func(version string, valid bool) {
			md.Version = version

			errs := plugin.ValidateMetadata(md, pluginapi.InterfaceMajor, pluginapi.InterfaceMinor)

			if valid {
				Expect(errs).To(BeEmpty())
			} else {
				Expect(errs).To(HaveLen(1))
			}
		},
		Entry("three-part", "1.2.3", true),
		Entry("two-part", "1.2", true),
		Entry("single number", "7", false),
		Entry("prerelease suffix", "1.2.3-beta", false),
		Entry("empty", "", false),
	)

	DescribeTable("plugin id",
		func(id string, valid bool) {
			md.ID = id

			errs := plugin.ValidateMetadata(md, pluginapi.InterfaceMajor, pluginapi.InterfaceMinor)

			if valid {
				Expect(errs).To(BeEmpty())
			} else {
				Expect(errs).To(HaveLen(1))
			}
		},
		Entry("lowercase alnum", "files2", true),
		Entry("underscores", "file_search", true),
		Entry("uppercase", "Files", false),
		Entry("dashes", "file-search", false),
		Entry("empty", "", false),
	)

	It("should collect every violation instead of stopping at the first", func() {
		md.Name = ""
		md.Description = ""
		md.Version = "one.two"

		errs := plugin.ValidateMetadata(md, pluginapi.InterfaceMajor, pluginapi.InterfaceMinor)

		Expect(errs).To(HaveLen(3))
	})
})
