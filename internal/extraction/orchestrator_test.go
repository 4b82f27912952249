package extraction

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Pipeline", func() {
	var (
		limits     Limits
		invoker    *fakeInvoker
		rasterizer *fakeRasterizer
		pipeline   *Pipeline
		req        Request
		outcome    Outcome
	)

	BeforeEach(func() {
		limits = Limits{}
		invoker = &fakeInvoker{response: conformingOutput}
		rasterizer = &fakeRasterizer{}
		req = Request{}
	})

	JustBeforeEach(func() {
		pipeline = NewPipeline(limits, rasterizer, invoker)
		outcome = pipeline.Extract(context.Background(), req)
	})

	Describe("the image path", func() {
		BeforeEach(func() {
			req.ImageDataURL = "data:image/png;base64," + base64.StdEncoding.EncodeToString(tinyPNG())
		})

		It("succeeds with the model's result", func() {
			Expect(outcome.OK).To(BeTrue())
			Expect(outcome.StatusCode).To(Equal(http.StatusOK))
			Expect(outcome.ModelUsed).To(Equal("fake-model"))
			Expect(outcome.Result.Vendor).To(HaveValue(Equal("Acme")))
		})

		It("sends a PNG image attachment", func() {
			Expect(invoker.calls).To(Equal(1))
			Expect(invoker.lastAttachment.Kind).To(Equal(AttachmentImage))
			Expect(invoker.lastAttachment.MIMEType).To(Equal("image/png"))
		})

		It("never consults the rasterizer", func() {
			Expect(rasterizer.calls).To(BeZero())
		})

		When("the model reports an out-of-range confidence", func() {
			BeforeEach(func() {
				invoker.response = `{"vendor":"Acme","receipt_date":"2024-01-05","total":12.5,"currency":"USD","category_suggested":"Meals","confidence":1.4}`
			})

			It("clamps it to 1.0", func() {
				Expect(outcome.OK).To(BeTrue())
				Expect(outcome.Result.Confidence).To(HaveValue(Equal(1.0)))
			})
		})

		When("the model returns something that is not JSON", func() {
			BeforeEach(func() {
				invoker.response = "not json"
			})

			It("fails with a 502-class outcome", func() {
				Expect(outcome.OK).To(BeFalse())
				Expect(outcome.StatusCode).To(Equal(http.StatusBadGateway))
				Expect(outcome.Result).To(BeNil())
			})
		})

		When("the inference backend fails", func() {
			BeforeEach(func() {
				invoker.err = fmt.Errorf("%w: upstream timeout", ErrInference)
			})

			It("fails with a 500 outcome carrying the upstream message", func() {
				Expect(outcome.OK).To(BeFalse())
				Expect(outcome.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(outcome.Error).To(ContainSubstring("upstream timeout"))
			})
		})

		When("the backend is misconfigured", func() {
			BeforeEach(func() {
				invoker.err = fmt.Errorf("%w: key GEMINI_API_KEY=supersecret", ErrConfiguration)
			})

			It("surfaces a 500 with a generic message only", func() {
				Expect(outcome.StatusCode).To(Equal(http.StatusInternalServerError))
				Expect(outcome.Error).To(Equal(ErrConfiguration.Error()))
				Expect(outcome.Error).NotTo(ContainSubstring("supersecret"))
			})
		})
	})

	Describe("the PDF path", func() {
		BeforeEach(func() {
			req.FileBase64 = base64.StdEncoding.EncodeToString(fakePDF("", 4096))
			req.FileName = "receipt.pdf"
			req.MIMEType = "application/pdf"
		})

		When("the backend cannot take PDF attachments", func() {
			It("rasterizes exactly once and attaches the image", func() {
				Expect(outcome.OK).To(BeTrue())
				Expect(rasterizer.calls).To(Equal(1))
				Expect(invoker.lastAttachment.Kind).To(Equal(AttachmentImage))
				Expect(invoker.lastAttachment.MIMEType).To(Equal("image/png"))
			})
		})

		When("the backend takes PDF attachments natively", func() {
			BeforeEach(func() {
				invoker.pdfCapable = true
			})

			It("skips the rasterizer and attaches the file", func() {
				Expect(outcome.OK).To(BeTrue())
				Expect(rasterizer.calls).To(BeZero())
				Expect(invoker.lastAttachment.Kind).To(Equal(AttachmentFile))
				Expect(invoker.lastAttachment.MIMEType).To(Equal("application/pdf"))
			})
		})

		When("rasterization fails", func() {
			BeforeEach(func() {
				rasterizer.err = fmt.Errorf("%w: corrupt cross-reference table", ErrRasterization)
			})

			It("fails with a 400 outcome and never calls the model", func() {
				Expect(outcome.OK).To(BeFalse())
				Expect(outcome.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(outcome.Error).To(ContainSubstring("failed to process PDF"))
				Expect(invoker.calls).To(BeZero())
			})
		})

		When("the payload exceeds the configured maximum", func() {
			BeforeEach(func() {
				limits = Limits{MaxPayloadBytes: 8 << 10}
				req.FileBase64 = base64.StdEncoding.EncodeToString(fakePDF("", 16<<10))
			})

			It("fails fast with 413 before any collaborator is called", func() {
				Expect(outcome.OK).To(BeFalse())
				Expect(outcome.StatusCode).To(Equal(http.StatusRequestEntityTooLarge))
				Expect(rasterizer.calls).To(BeZero())
				Expect(invoker.calls).To(BeZero())
			})
		})

		When("the payload is below the size floor", func() {
			BeforeEach(func() {
				req.FileBase64 = base64.StdEncoding.EncodeToString(fakePDF("", 512))
			})

			It("fails fast with 400 before any collaborator is called", func() {
				Expect(outcome.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(rasterizer.calls).To(BeZero())
				Expect(invoker.calls).To(BeZero())
			})
		})
	})

	Describe("raster output round-trip", func() {
		BeforeEach(func() {
			req.ImageDataURL = (&RasterImage{MIMEType: "image/png", Bytes: tinyPNG()}).DataURL()
		})

		It("is always a valid input to the image path", func() {
			Expect(outcome.OK).To(BeTrue())

			payload, err := pipeline.Normalize(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(payload.Kind).To(Equal(KindImage))
			Expect(payload.Bytes).To(Equal(tinyPNG()))
		})
	})
})

var _ = Describe("Pipeline concurrency", func() {
	It("keeps concurrent extractions fully isolated", func() {
		invoker := &fakeInvoker{
			pdfCapable: true,
			respond: func(att Attachment) (string, error) {
				vendor := pdfMarker(att.Data)
				return fmt.Sprintf(`{"vendor":%q,"receipt_date":"2024-01-05","total":1,"currency":"USD","category_suggested":"Other","confidence":0.5}`, vendor), nil
			},
		}
		pipeline := NewPipeline(Limits{}, &fakeRasterizer{}, invoker)

		const n = 16
		vendors := make([]string, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer GinkgoRecover()
				defer wg.Done()

				tag := fmt.Sprintf("vendor-%d", i)
				req := Request{
					FileBase64: base64.StdEncoding.EncodeToString(fakePDF(tag, 4096)),
					MIMEType:   "application/pdf",
				}
				outcome := pipeline.Extract(context.Background(), req)
				Expect(outcome.OK).To(BeTrue())
				vendors[i] = *outcome.Result.Vendor
			}(i)
		}
		wg.Wait()

		for i := 0; i < n; i++ {
			Expect(vendors[i]).To(Equal(fmt.Sprintf("vendor-%d", i)))
		}
	})
})
