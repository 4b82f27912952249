package extraction

import (
	"encoding/base64"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Normalize", func() {
	var (
		req     Request
		limits  Limits
		payload *DocumentPayload
		err     error
	)

	BeforeEach(func() {
		req = Request{}
		limits = Limits{}
	})

	JustBeforeEach(func() {
		payload, err = Normalize(req, limits)
	})

	When("no recognized field is present", func() {
		It("returns ErrMissingInput", func() {
			Expect(err).To(MatchError(ErrMissingInput))
		})
	})

	When("the data URL is neither an image nor a PDF", func() {
		BeforeEach(func() {
			req.ImageDataURL = "data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hello"))
		})

		It("returns ErrUnsupportedType", func() {
			Expect(err).To(MatchError(ErrUnsupportedType))
		})
	})

	Describe("image data URLs", func() {
		var pngBytes []byte

		BeforeEach(func() {
			pngBytes = tinyPNG()
			req.ImageDataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
		})

		It("classifies the payload as an image", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(payload.Kind).To(Equal(KindImage))
			Expect(payload.MIMEType).To(Equal("image/png"))
		})

		It("preserves the exact byte content through the base64 round-trip", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(payload.Bytes).To(Equal(pngBytes))
		})

		When("the data URL is not base64-encoded", func() {
			BeforeEach(func() {
				req.ImageDataURL = "data:image/png,rawpixels"
			})

			It("returns ErrMalformedBase64", func() {
				Expect(err).To(MatchError(ErrMalformedBase64))
			})
		})

		When("the base64 payload contains invalid characters", func() {
			BeforeEach(func() {
				req.ImageDataURL = "data:image/png;base64,!!!not-base64!!!"
			})

			It("returns ErrMalformedBase64", func() {
				Expect(err).To(MatchError(ErrMalformedBase64))
			})
		})

		When("the base64 payload contains interior newlines", func() {
			BeforeEach(func() {
				enc := base64.StdEncoding.EncodeToString(pngBytes)
				req.ImageDataURL = "data:image/png;base64," + enc[:10] + "\n " + enc[10:]
			})

			It("decodes the payload anyway", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(payload.Bytes).To(Equal(pngBytes))
			})
		})

		When("the base64 payload is missing its padding", func() {
			BeforeEach(func() {
				enc := base64.StdEncoding.EncodeToString(pngBytes)
				req.ImageDataURL = "data:image/png;base64," + dropPadding(enc)
			})

			It("auto-pads and decodes the payload", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(payload.Bytes).To(Equal(pngBytes))
			})
		})

		When("the declared subtype lies about the content", func() {
			BeforeEach(func() {
				req.ImageDataURL = "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(pngBytes)
			})

			It("still accepts it because the bytes sniff as an image", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(payload.Kind).To(Equal(KindImage))
			})
		})

		When("the content is not an image at all", func() {
			BeforeEach(func() {
				req.ImageDataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("plain text, not pixels"))
			})

			It("returns ErrUnsupportedType", func() {
				Expect(err).To(MatchError(ErrUnsupportedType))
			})
		})
	})

	Describe("PDF payloads", func() {
		var pdfBytes []byte

		BeforeEach(func() {
			pdfBytes = fakePDF("", 4096)
		})

		When("sent as fileBase64 with a PDF MIME type", func() {
			BeforeEach(func() {
				req.FileBase64 = base64.StdEncoding.EncodeToString(pdfBytes)
				req.FileName = "receipt.pdf"
				req.MIMEType = "application/pdf"
			})

			It("classifies the payload as a PDF", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(payload.Kind).To(Equal(KindPDF))
				Expect(payload.Encoding).To(Equal(EncodingRawBase64))
				Expect(payload.Bytes).To(Equal(pdfBytes))
			})
		})

		When("classified only by the .pdf filename extension", func() {
			BeforeEach(func() {
				req.FileBase64 = base64.StdEncoding.EncodeToString(pdfBytes)
				req.FileName = "Scan 2024-01-05.PDF"
			})

			It("classifies the payload as a PDF", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(payload.Kind).To(Equal(KindPDF))
			})
		})

		When("sent as a data:application/pdf URL", func() {
			BeforeEach(func() {
				req.ImageDataURL = "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdfBytes)
			})

			It("classifies the payload as a PDF", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(payload.Kind).To(Equal(KindPDF))
				Expect(payload.Encoding).To(Equal(EncodingDataURL))
			})
		})

		When("the decoded PDF is below the size floor", func() {
			BeforeEach(func() {
				req.FileBase64 = base64.StdEncoding.EncodeToString(fakePDF("", 512))
				req.MIMEType = "application/pdf"
			})

			It("returns ErrTruncatedPayload", func() {
				Expect(err).To(MatchError(ErrTruncatedPayload))
			})
		})

		When("the decoded PDF exceeds the configured maximum", func() {
			BeforeEach(func() {
				limits = Limits{MaxPayloadBytes: 8 << 10}
				req.FileBase64 = base64.StdEncoding.EncodeToString(fakePDF("", 16<<10))
				req.MIMEType = "application/pdf"
			})

			It("returns ErrPayloadTooLarge", func() {
				Expect(err).To(MatchError(ErrPayloadTooLarge))
			})
		})

		When("the content does not sniff as a PDF", func() {
			BeforeEach(func() {
				notPDF := make([]byte, 4096)
				req.FileBase64 = base64.StdEncoding.EncodeToString(notPDF)
				req.MIMEType = "application/pdf"
			})

			It("returns ErrUnsupportedType", func() {
				Expect(err).To(MatchError(ErrUnsupportedType))
			})
		})
	})
})

// dropPadding strips trailing base64 padding characters.
func dropPadding(s string) string {
	for len(s) > 0 && s[len(s)-1] == '=' {
		s = s[:len(s)-1]
	}
	return s
}
