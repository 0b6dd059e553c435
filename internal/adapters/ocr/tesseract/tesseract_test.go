package tesseract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	perr "labelscan/internal/platform/errors"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// systemTessdata finds an installed eng.traineddata or skips
func systemTessdata(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
	for _, dir := range []string{
		os.Getenv("TESSDATA_PREFIX"),
		"/usr/share/tesseract-ocr/5/tessdata",
		"/usr/share/tesseract-ocr/4.00/tessdata",
		"/usr/share/tessdata",
		"/usr/local/share/tessdata",
	} {
		if dir == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, "eng.traineddata")); err == nil {
			return dir
		}
	}
	t.Skip("eng.traineddata not found")
	return ""
}

func labelPNG(t *testing.T, text string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 240, 80))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13, Dot: fixed.P(10, 45)}
	d.DrawString(text)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestOpen_MissingTraineddata(t *testing.T) {
	_, err := Open(context.Background(), t.TempDir(), "eng")
	if !perr.IsCode(err, perr.ErrorCodeEngineLoad) {
		t.Fatalf("expected engine load error, got %v", err)
	}
}

func TestEngine_Recognize(t *testing.T) {
	dir := systemTessdata(t)
	e, err := Open(context.Background(), dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer e.Close()

	var seen []int
	text, err := e.Recognize(context.Background(), labelPNG(t, "LOT 12345"), func(p int) { seen = append(seen, p) })
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if !strings.Contains(strings.ToUpper(text), "LOT") {
		t.Fatalf("unexpected OCR output %q", text)
	}
	if len(seen) != 2 || seen[0] != 0 || seen[1] != 100 {
		t.Fatalf("progress = %v", seen)
	}
	if got := e.Languages(); len(got) != 1 || got[0] != "eng" {
		t.Fatalf("languages = %v", got)
	}
}

func TestEngine_RecognizeGarbage(t *testing.T) {
	dir := systemTessdata(t)
	e, err := Open(context.Background(), dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer e.Close()
	if _, err := e.Recognize(context.Background(), []byte("not an image"), nil); !perr.IsCode(err, perr.ErrorCodeRecognition) {
		t.Fatalf("expected recognition error, got %v", err)
	}
}
