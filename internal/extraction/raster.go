package extraction

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

// RasterImage is a rendered page, always PNG when produced by a Rasterizer.
// It lives for a single pipeline run.
type RasterImage struct {
	MIMEType string
	Bytes    []byte
}

// DataURL encodes the raster as an inline data URL.
func (r RasterImage) DataURL() string {
	return "data:" + r.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(r.Bytes)
}

// Rasterizer renders the first page of a PDF to an image. It is only
// consulted when the inference backend cannot accept PDF attachments.
type Rasterizer interface {
	RasterizeFirstPage(pdf []byte) (*RasterImage, error)
}

// DefaultRasterScale doubles the intrinsic page size so small receipt text
// stays legible to the model.
const DefaultRasterScale = 2.0

// baseDPI is the PDF user-space resolution; scale is applied on top of it.
const baseDPI = 72.0

// FitzRasterizer renders PDFs with MuPDF. The document is opened from
// memory, so no on-disk artifacts are created.
type FitzRasterizer struct {
	scale float64
}

// NewFitzRasterizer creates a FitzRasterizer with the given upscale factor.
// Non-positive values fall back to DefaultRasterScale.
func NewFitzRasterizer(scale float64) *FitzRasterizer {
	if scale <= 0 {
		scale = DefaultRasterScale
	}
	return &FitzRasterizer{scale: scale}
}

// RasterizeFirstPage renders page 1 only; receipts are assumed single-page.
func (f *FitzRasterizer) RasterizeFirstPage(pdf []byte) (*RasterImage, error) {
	doc, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("%w: opening PDF: %v", ErrRasterization, err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("%w: document has no pages", ErrRasterization)
	}

	img, err := doc.ImageDPI(0, baseDPI*f.scale)
	if err != nil {
		return nil, fmt.Errorf("%w: rendering page: %v", ErrRasterization, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: encoding PNG: %v", ErrRasterization, err)
	}

	return &RasterImage{MIMEType: "image/png", Bytes: buf.Bytes()}, nil
}
