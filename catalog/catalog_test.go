package catalog_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/doccode/catalog"
)

var _ = Describe("Catalog", func() {
	It("should provide the built-in options", func() {
		c := catalog.Default()

		Expect(c.Validate()).To(Succeed())
		Expect(c.Divisions).To(HaveLen(8))
		Expect(c.Areas).To(ContainElement("D&P"))
		Expect(c.Docs).To(Equal([]string{"XRO", "XRC", "FAR", "TNS", "XAN", "YOL"}))
	})

	It("should parse YAML and drop duplicates", func() {
		c, err := catalog.Parse([]byte(`
divisions: [XGM, BBM, XGM]
areas:
  - XDM
  - XOG
  - XDM
docs: [XRO]
`))

		Expect(err).ToNot(HaveOccurred())
		Expect(c.Divisions).To(Equal([]string{"XGM", "BBM"}))
		Expect(c.Areas).To(Equal([]string{"XDM", "XOG"}))
		Expect(c.Docs).To(Equal([]string{"XRO"}))
	})

	It("should reject a category without options", func() {
		_, err := catalog.Parse([]byte("divisions: [XGM]\nareas: [XDM]\n"))

		Expect(err).To(MatchError(catalog.ErrEmptyCategory))
	})

	It("should reject invalid YAML", func() {
		_, err := catalog.Parse([]byte("divisions: [XGM"))

		Expect(err).To(HaveOccurred())
	})

	It("should load from a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "catalog.yaml")
		Expect(os.WriteFile(path,
			[]byte("divisions: [A]\nareas: [B]\ndocs: [C]\n"), 0o644)).
			To(Succeed())

		c, err := catalog.LoadFile(path)

		Expect(err).ToNot(HaveOccurred())
		Expect(c.Contains("A", "B", "C")).To(BeTrue())
		Expect(c.Contains("A", "B", "X")).To(BeFalse())
	})

	It("should report a missing file", func() {
		_, err := catalog.LoadFile(filepath.Join(GinkgoT().TempDir(), "none.yaml"))

		Expect(err).To(MatchError(os.ErrNotExist))
	})
})
