package schema_test

import (
	"encoding/json"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/voltwatch/victronctl/internal/schema"
)

var _ = Describe("Generate", func() {
	var s map[string]any

	BeforeEach(func() {
		data, err := schema.GenerateJSON(true)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(data, &s)).To(Succeed())
	})

	It("sets the $schema URI", func() {
		Expect(s["$schema"]).To(Equal("https://json-schema.org/draft/2020-12/schema"))
	})

	It("sets the title", func() {
		Expect(s["title"]).To(Equal("victronctl configuration"))
	})

	It("includes top-level properties", func() {
		props, ok := s["properties"].(map[string]any)
		Expect(ok).To(BeTrue())

		for _, key := range []string{
			"version", "source", "paths", "runtime",
			"service", "exec", "log", "uninstall",
		} {
			Expect(props).To(HaveKey(key), "missing top-level property: %s", key)
		}
	})

	Describe("custom type schemas", func() {
		var defs map[string]any

		BeforeEach(func() {
			var ok bool

			defs, ok = s["$defs"].(map[string]any)
			Expect(ok).To(BeTrue(), "$defs should exist")
		})

		It("defines Duration as string with pattern", func() {
			dur, ok := defs["Duration"].(map[string]any)
			Expect(ok).To(BeTrue(), "Duration def should exist")
			Expect(dur["type"]).To(Equal("string"))
			Expect(dur["pattern"]).NotTo(BeEmpty())
		})

		It("defines GitBackend as string with enum", func() {
			gb, ok := defs["GitBackend"].(map[string]any)
			Expect(ok).To(BeTrue(), "GitBackend def should exist")
			Expect(gb["type"]).To(Equal("string"))

			enumVals, ok := gb["enum"].([]any)
			Expect(ok).To(BeTrue())
			Expect(enumVals).To(ConsistOf("sdk", "cli"))
		})
	})

	Describe("GenerateJSON", func() {
		It("produces compact JSON when indent is false", func() {
			data, err := schema.GenerateJSON(false)
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.Count(string(data), "\n")).To(Equal(1))
		})

		It("produces indented JSON when indent is true", func() {
			data, err := schema.GenerateJSON(true)
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.Count(string(data), "\n")).To(BeNumerically(">", 10))
		})
	})

	It("renders a taplo schema directive", func() {
		Expect(schema.SchemaDirective()).To(HavePrefix("#:schema https://"))
	})
})
