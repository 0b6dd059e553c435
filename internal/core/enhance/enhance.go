// Package enhance prepares a label photo for OCR: downscale, contrast, brighten dark shots, re-encode as JPEG
package enhance

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"io"
	"math"
	"sync"

	perr "labelscan/internal/platform/errors"

	// decoders registered with image.Decode
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Tuning constants
const (
	MaxWidth      = 1400
	Contrast      = 1.3
	Pivot         = 128.0
	DarkThreshold = 128.0
	DarkBoost     = 20.0
	Quality       = 92
)

// Image is the enhanced JPEG plus what the pipeline measured
type Image struct {
	JPEG       []byte  `json:"-"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	MeanLuma   float64 `json:"mean_luma"`
	Brightened bool    `json:"brightened"`
}

// Codec decodes arbitrary raster bytes and encodes the result as JPEG
type Codec interface {
	Decode(r io.Reader) (image.Image, error)
	EncodeJPEG(w io.Writer, img image.Image, quality int) error
}

type stdCodec struct{}

func (stdCodec) Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	return img, err
}

func (stdCodec) EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// Option configures an Enhancer
type Option func(*Enhancer)

// WithCodec swaps the codec, used by tests to force encode failures
func WithCodec(c Codec) Option { return func(e *Enhancer) { e.codec = c } }

// Enhancer is safe for concurrent use
type Enhancer struct {
	codec  Codec
	scaler draw.Scaler
	bufs   sync.Pool
}

// New returns an Enhancer with the standard codec and bilinear scaling
func New(opts ...Option) *Enhancer {
	e := &Enhancer{
		codec:  stdCodec{},
		scaler: draw.BiLinear,
		bufs:   sync.Pool{New: func() any { return new(bytes.Buffer) }},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Enhance runs the pipeline on raw image bytes
func (e *Enhancer) Enhance(ctx context.Context, raw []byte) (Image, error) {
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}
	src, err := e.codec.Decode(bytes.NewReader(raw))
	if err != nil {
		return Image{}, perr.Wrap(err, perr.ErrorCodeDecode, "decode image")
	}
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return Image{}, perr.Newf(perr.ErrorCodeDecode, "decode image: empty raster %dx%d", b.Dx(), b.Dy())
	}

	w, h := TargetSize(b.Dx(), b.Dy())
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		e.scaler.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}
	if err := ctx.Err(); err != nil {
		return Image{}, err
	}

	mean := MeanLuma(dst)
	dark := mean < DarkThreshold
	lut := Curve(dark)
	pix := dst.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i] = lut[pix[i]]
		pix[i+1] = lut[pix[i+1]]
		pix[i+2] = lut[pix[i+2]]
	}

	buf := e.bufs.Get().(*bytes.Buffer)
	buf.Reset()
	defer e.bufs.Put(buf)
	if err := e.codec.EncodeJPEG(buf, dst, Quality); err != nil {
		return Image{}, perr.Wrap(err, perr.ErrorCodeEncode, "encode jpeg")
	}

	return Image{
		JPEG:       bytes.Clone(buf.Bytes()),
		Width:      w,
		Height:     h,
		MeanLuma:   mean,
		Brightened: dark,
	}, nil
}

// TargetSize caps width at MaxWidth keeping aspect ratio; height truncates toward zero
func TargetSize(w, h int) (int, int) {
	if w <= MaxWidth {
		return w, h
	}
	nh := h * MaxWidth / w
	if nh < 1 {
		nh = 1
	}
	return MaxWidth, nh
}

// MeanLuma averages Rec.601 luminance over every pixel
func MeanLuma(img *image.RGBA) float64 {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	if n == 0 {
		return 0
	}
	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i+2 < len(row); i += 4 {
			sum += 0.299*float64(row[i]) + 0.587*float64(row[i+1]) + 0.114*float64(row[i+2])
		}
	}
	return sum / float64(n)
}

// Curve is the per-channel lookup: contrast about Pivot clamped, then DarkBoost clamped when dark
func Curve(dark bool) [256]uint8 {
	var lut [256]uint8
	for v := 0; v < 256; v++ {
		c := clamp((float64(v)-Pivot)*Contrast + Pivot)
		if dark {
			c = clamp(c + DarkBoost)
		}
		lut[v] = uint8(c)
	}
	return lut
}

func clamp(v float64) float64 {
	return math.Min(255, math.Max(0, math.Round(v)))
}
