package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"labelscan/internal/core/netstate"
	"labelscan/internal/modkit"
	"labelscan/internal/modkit/module"
	"labelscan/internal/platform/config"
	"labelscan/internal/platform/logger"
	pstrings "labelscan/internal/platform/strings"

	scanmod "labelscan/internal/services/scan/module"
	scansvc "labelscan/internal/services/scan/service"
)

func mustSetEnv(k, v string) {
	if v != "" {
		_ = os.Setenv(k, v)
	}
}

func main() {
	var (
		dir     = flag.String("dir", "pics", "directory holding label images")
		offline = flag.Bool("offline", false, "skip the OCR service and recognize on device")
		remote  = flag.Bool("remote", true, "allow the OCR service when online")
		langs   = flag.String("langs", "", "comma-separated engine languages (default CORE_SCAN_LANGUAGES or eng)")
		quiet   = flag.Bool("quiet", false, "do not print per image progress")
	)
	flag.Parse()

	l := logger.Get()

	// pass flags into CORE_SCAN_* so the module reads its own config
	mustSetEnv("CORE_SCAN_REMOTE_ENABLED", strconv.FormatBool(*remote))
	mustSetEnv("CORE_SCAN_LANGUAGES", *langs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	items, err := listImages(*dir)
	if err != nil {
		l.Fatal().Err(err).Msg("list images")
	}
	fmt.Printf("Found %d images to scan in %s\n\n", len(items), *dir)
	if len(items) == 0 {
		return
	}

	sm := scanmod.New(
		modkit.Deps{Cfg: config.New(), Log: *l},
		modkit.WithPorts(scanmod.Needs{Network: netstate.New(!*offline)}),
	)
	module.Register(sm.Name(), sm.Ports())
	svc := module.MustPortsOf[*scansvc.Service](sm)

	var progress scansvc.BatchProgress
	if !*quiet {
		last := -1
		progress = func(i int, name, status string) {
			if i != last {
				last = i
				fmt.Printf("[%d/%d] Scanning: %s\n", i+1, len(items), pstrings.Shorten(name, 40))
			}
			fmt.Printf("        %s\n", status)
		}
	}

	results, sum := svc.Batch(ctx, items, progress)
	fmt.Println()
	render(os.Stdout, results, sum)

	if sum.Canceled {
		os.Exit(130)
	}
}
