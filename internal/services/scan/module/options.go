package module

import (
	"os"
	"path/filepath"
	"time"

	"labelscan/internal/platform/config"
)

// DefaultTessdata is the engine resource fetched when none is configured
const DefaultTessdata = "https://github.com/tesseract-ocr/tessdata_fast/raw/main/eng.traineddata"

// Options holds configuration settings for the scan module
type Options struct {
	RemoteEnabled bool
	Endpoint      string
	APIKey        string
	Language      string
	OCREngine     string
	Timeout       time.Duration

	DataDir     string
	Tessdata    []string
	Languages   []string
	MaxUpload   int64
	InitTimeout time.Duration
}

// FromConfig reads CORE_SCAN_* settings
func FromConfig(cfg config.Conf) Options {
	sc := cfg.Prefix("CORE_SCAN_")
	return Options{
		RemoteEnabled: sc.MayBool("REMOTE_ENABLED", true),
		Endpoint:      sc.MayURL("ENDPOINT", "https://api.ocr.space/parse/image"),
		APIKey:        sc.MayString("API_KEY", ""),
		Language:      sc.MayString("LANGUAGE", "eng"),
		OCREngine:     sc.MayEnum("OCR_ENGINE", "", "1", "2", "3"),
		Timeout:       sc.MayDuration("TIMEOUT", 30*time.Second),
		DataDir:       sc.MayString("DATA_DIR", filepath.Join(os.TempDir(), "labelscan", "tessdata")),
		Tessdata:      sc.MayCSV("TESSDATA", []string{DefaultTessdata}),
		Languages:     sc.MayCSV("LANGUAGES", []string{"eng"}),
		MaxUpload:     int64(sc.MayInt("MAX_UPLOAD_MB", 20)) << 20,
		InitTimeout:   sc.MayDuration("ENGINE_INIT_TIMEOUT", 2*time.Minute),
	}
}
