package main

import (
	"path/filepath"
	"testing"

	"ingestor/internal/api"
)

func TestCollectFolderSkipsHiddenAndNested(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.md"), "b")
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, ".secret"), "x")
	writeFile(t, filepath.Join(dir, ".git", "config"), "x")
	writeFile(t, filepath.Join(dir, "nested", "c.go"), "package c")

	uploads, err := collectFolder(dir, false)
	if err != nil {
		t.Fatalf("collectFolder: %v", err)
	}
	if got := uploadNames(uploads); got != "a.txt,b.md" {
		t.Fatalf("unexpected uploads %q", got)
	}
	if uploads[1].ContentType == "" {
		t.Fatal("expected content type from extension")
	}

	uploads, err = collectFolder(dir, true)
	if err != nil {
		t.Fatalf("collectFolder recursive: %v", err)
	}
	if got := uploadNames(uploads); got != "a.txt,b.md,c.go" {
		t.Fatalf("unexpected recursive uploads %q", got)
	}
}

func TestCollectFolderEmpty(t *testing.T) {
	if _, err := collectFolder(t.TempDir(), true); err == nil {
		t.Fatal("expected error for empty folder")
	}
}

func TestFilterJobs(t *testing.T) {
	list := []api.Job{
		{ID: "a", Status: "completed"},
		{ID: "b", Status: "error"},
		{ID: "c", Status: "crawling"},
	}
	if got := filterJobs(list, nil); len(got) != 3 {
		t.Fatalf("expected no filtering, got %d jobs", len(got))
	}
	got := filterJobs(list, []string{" Completed ", "error"})
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected filtered jobs %+v", got)
	}
	if len(list) != 3 || list[2].ID != "c" {
		t.Fatalf("filter mutated input %+v", list)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("unexpected %q", got)
	}
	if got := truncate("abcdefghijkl", 5); got != "abcd…" {
		t.Fatalf("unexpected %q", got)
	}
}

func uploadNames(uploads []api.Upload) string {
	names := ""
	for i, upload := range uploads {
		if i > 0 {
			names += ","
		}
		names += upload.Name
	}
	return names
}

func TestRenderTableFooterAndPadding(t *testing.T) {
	out := renderTable(tableView{
		Headers: []string{"Name", "Count"},
		Rows:    [][]string{{"alpha", "1"}, {"beta"}},
		Aligns:  []columnAlignment{alignLeft, alignRight},
		Footer:  []string{"2 rows", "1"},
	})
	requireContains(t, out, "alpha")
	requireContains(t, out, "2 ROWS")
	if out[len(out)-1] != '\n' {
		t.Fatalf("expected trailing newline, got %q", out)
	}
	if renderTable(tableView{}) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestSourceTotals(t *testing.T) {
	footer := sourceTotals([]api.Source{
		{ID: "a", Documents: 2, Chunks: 10, CodeExamples: 1},
		{ID: "b", Documents: 1, Chunks: 3},
	})
	if footer[0] != "2 sources" || footer[4] != "3" || footer[5] != "13" || footer[6] != "1" {
		t.Fatalf("unexpected footer %v", footer)
	}
}
