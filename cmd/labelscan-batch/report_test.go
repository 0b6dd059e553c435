package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	perr "labelscan/internal/platform/errors"
	kit "labelscan/internal/platform/testkit"
	"labelscan/internal/services/scan/domain"
)

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.PNG", "a.jpg", "notes.txt", "c.jpeg", "d.gif"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte(n), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "e.png"), 0o700); err != nil {
		t.Fatal(err)
	}

	items, err := listImages(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a.jpg", "b.PNG", "c.jpeg"}
	if len(items) != len(want) {
		t.Fatalf("items = %d, want %d", len(items), len(want))
	}
	for i, it := range items {
		if it.Name != want[i] {
			t.Fatalf("item %d = %q, want %q", i, it.Name, want[i])
		}
		raw, err := it.Load()
		if err != nil || string(raw) != want[i] {
			t.Fatalf("load %s = %q %v", it.Name, raw, err)
		}
	}

	if _, err := listImages(filepath.Join(dir, "missing")); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("missing dir err = %v", err)
	}
}

func TestRender(t *testing.T) {
	results := []domain.ItemResult{
		{Name: "a.jpg", Outcome: domain.Outcome{Text: "14/07/25 (DD/MM/YY) 12/04/26 (DD/MM/YY) 25-8902-0014", Source: domain.SourceRemote}},
		{Name: "b.png", Outcome: domain.Outcome{Text: "nothing useful", Source: domain.SourceLocal}},
		{Name: "c.png", Outcome: domain.Outcome{Err: perr.New(perr.ErrorCodeEngineLoad, "no data")}},
	}
	sum := domain.BatchSummary{Total: 4, Processed: 3, Succeeded: 2, Failed: 1, Remote: 1, Local: 1, Canceled: true}

	var buf bytes.Buffer
	render(&buf, results, sum)
	out := buf.String()

	kit.MustContain(t, out, "Batch No")
	kit.MustContain(t, out, "25-8902-0014")
	kit.MustContain(t, out, "12/04/26")
	kit.MustContain(t, out, "failed: engine_load")
	kit.MustContain(t, out, "Batch No found: 1/3")
	kit.MustContain(t, out, "remote 1, local 1, failed 1")
	kit.MustContain(t, out, "Interrupted after 3 of 4 images")
}
