package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"labelscan/internal/core/labelfields"
	perr "labelscan/internal/platform/errors"
	pstrings "labelscan/internal/platform/strings"
	"labelscan/internal/services/scan/domain"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// listImages returns jpg, jpeg and png files in dir sorted by name
func listImages(dir string) ([]domain.Item, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "read %s", dir)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	items := make([]domain.Item, 0, len(names))
	for _, n := range names {
		path := filepath.Join(dir, n)
		items = append(items, domain.Item{Name: n, Load: func() ([]byte, error) { return os.ReadFile(path) }})
	}
	return items, nil
}

// row is one printed result line
type row struct {
	Name   string
	Fields labelfields.Fields
	Source string
	Err    error
}

func rows(results []domain.ItemResult) []row {
	out := make([]row, 0, len(results))
	for _, r := range results {
		rw := row{Name: r.Name, Err: r.Outcome.Err}
		if r.Outcome.OK() {
			rw.Fields = labelfields.Parse(r.Outcome.Text)
			rw.Source = string(r.Outcome.Source)
		}
		out = append(out, rw)
	}
	return out
}

// render writes the results table and the summary
func render(w io.Writer, results []domain.ItemResult, sum domain.BatchSummary) {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	rs := rows(results)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Filename", "Batch No", "Expiry", "MFG Date", "Source").
		StyleFunc(func(r, _ int) lipgloss.Style {
			if r == table.HeaderRow {
				return header
			}
			return cell
		})

	var batch, exp, mfg int
	for i, r := range rs {
		src := pstrings.Or(r.Source, "-")
		if r.Err != nil {
			src = "failed: " + perr.CodeOf(r.Err).String()
		}
		t.Row(strconv.Itoa(i+1), pstrings.Shorten(r.Name, 45), pstrings.Or(r.Fields.BatchNo, "-"), pstrings.Or(r.Fields.Expiry, "-"), pstrings.Or(r.Fields.MfgDate, "-"), src)
		if r.Fields.BatchNo != "" {
			batch++
		}
		if r.Fields.Expiry != "" {
			exp++
		}
		if r.Fields.MfgDate != "" {
			mfg++
		}
	}

	fmt.Fprintln(w, t.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary")
	fmt.Fprintf(w, "  Total images:   %d\n", sum.Total)
	fmt.Fprintf(w, "  Scanned:        %d (remote %d, local %d, failed %d)\n", sum.Processed, sum.Remote, sum.Local, sum.Failed)
	fmt.Fprintf(w, "  Batch No found: %d/%d\n", batch, len(rs))
	fmt.Fprintf(w, "  Expiry found:   %d/%d\n", exp, len(rs))
	fmt.Fprintf(w, "  MFG Date found: %d/%d\n", mfg, len(rs))
	if sum.Canceled {
		fmt.Fprintf(w, "  Interrupted after %d of %d images\n", sum.Processed, sum.Total)
	}
}
