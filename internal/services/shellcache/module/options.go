package module

import (
	"labelscan/internal/platform/config"
)

// DefaultOptional is the engine resource cached alongside the app shell
const DefaultOptional = "https://github.com/tesseract-ocr/tessdata_fast/raw/main/eng.traineddata"

// Options holds configuration settings for the cache module
type Options struct {
	Origin         string
	ManifestFile   string
	Version        string
	Required       []string
	Optional       []string
	WaitForClients bool
	InstallOnStart bool
}

// FromConfig reads CORE_CACHE_* settings
func FromConfig(cfg config.Conf) Options {
	cc := cfg.Prefix("CORE_CACHE_")
	return Options{
		Origin:         cc.MayURL("ORIGIN", "http://127.0.0.1:5000"),
		ManifestFile:   cc.MayString("MANIFEST", ""),
		Version:        cc.MayString("VERSION", "v1"),
		Required:       cc.MayCSV("REQUIRED", []string{"/", "/app"}),
		Optional:       cc.MayCSV("OPTIONAL", []string{DefaultOptional}),
		WaitForClients: cc.MayBool("WAIT_FOR_CLIENTS", false),
		InstallOnStart: cc.MayBool("INSTALL_ON_START", true),
	}
}
