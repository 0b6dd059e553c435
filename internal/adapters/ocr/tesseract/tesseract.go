// Package tesseract is the on-device recognition engine backed by libtesseract through gosseract
package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	perr "labelscan/internal/platform/errors"

	"github.com/otiai10/gosseract/v2"
)

// Engine wraps one gosseract client; tesseract handles are not safe for concurrent use
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
	langs  []string
}

var newClient = gosseract.NewClient // seam

// Open builds an engine over dataDir, which must hold <lang>.traineddata for every language
// a warm-up pass forces libtesseract to load the models so broken data fails here, not mid-scan
func Open(ctx context.Context, dataDir string, langs ...string) (*Engine, error) {
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	for _, l := range langs {
		if _, err := os.Stat(filepath.Join(dataDir, l+".traineddata")); err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeEngineLoad, "missing traineddata for %s", l)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := newClient()
	// gosseract expects the prefix with a trailing separator
	if err := c.SetTessdataPrefix(strings.TrimRight(dataDir, string(os.PathSeparator)) + string(os.PathSeparator)); err != nil {
		_ = c.Close()
		return nil, perr.Wrap(err, perr.ErrorCodeEngineLoad, "set tessdata prefix")
	}
	if err := c.SetLanguage(langs...); err != nil {
		_ = c.Close()
		return nil, perr.Wrap(err, perr.ErrorCodeEngineLoad, "set languages")
	}
	if err := c.SetImageFromBytes(blankPNG()); err != nil {
		_ = c.Close()
		return nil, perr.Wrap(err, perr.ErrorCodeEngineLoad, "warm up image")
	}
	if _, err := c.Text(); err != nil {
		_ = c.Close()
		return nil, perr.Wrap(err, perr.ErrorCodeEngineLoad, "warm up engine")
	}
	return &Engine{client: c, langs: langs}, nil
}

// Languages returns the loaded language set
func (e *Engine) Languages() []string { return append([]string(nil), e.langs...) }

// Recognize runs tesseract on an encoded image
// libtesseract gives no incremental progress, so progress sees 0 and 100 only
func (e *Engine) Recognize(ctx context.Context, img []byte, progress func(pct int)) (string, error) {
	if progress == nil {
		progress = func(int) {}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	progress(0)
	if err := e.client.SetImageFromBytes(img); err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeRecognition, "set image")
	}
	text, err := e.client.Text()
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeRecognition, "recognize text")
	}
	progress(100)
	return text, nil
}

// Close releases the tesseract handle
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}

func blankPNG() []byte {
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
