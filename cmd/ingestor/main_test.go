package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"ingestor/internal/api"
	"ingestor/internal/ingest"
	"ingestor/internal/knowledge"
	"ingestor/internal/testsupport"
)

var acceptedPattern = regexp.MustCompile(`started: (\S+)`)

func TestCLISubmitDocumentFollowAndInspect(t *testing.T) {
	env := setupCLITestEnv(t)
	doc := filepath.Join(env.baseDir, "guide.md")
	writeFile(t, doc, "# Guide\n\nThe ingestion engine stores chunks of searchable text.\n")

	out, _, err := runCLI(t, []string{"submit", "document", doc, "--tag", "docs", "--follow"}, env.addr, env.configPath)
	if err != nil {
		t.Fatalf("submit document: %v\n%s", err, out)
	}
	requireContains(t, out, "Document upload started")
	requireContains(t, out, "100%")
	requireContains(t, out, "completed")

	match := acceptedPattern.FindStringSubmatch(out)
	if match == nil {
		t.Fatalf("no job id in output %q", out)
	}
	jobID := match[1]

	out, _, err = runCLI(t, []string{"jobs"}, env.addr, env.configPath)
	if err != nil {
		t.Fatalf("jobs: %v", err)
	}
	requireContains(t, out, "document")
	requireContains(t, out, "completed")

	out, _, err = runCLI(t, []string{"status", jobID}, env.addr, env.configPath)
	if err != nil {
		t.Fatalf("status job: %v", err)
	}
	requireContains(t, out, "Job "+jobID)
	requireContains(t, out, "[OK] completed")

	out, _, err = runCLI(t, []string{"sources"}, env.addr, env.configPath)
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	requireContains(t, out, "docs")

	out, _, err = runCLI(t, []string{"watch", jobID, "--json"}, env.addr, env.configPath)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	var last api.Event
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("decode last watch line: %v\n%s", err, out)
	}
	if last.Type != "completed" || last.JobID != jobID {
		t.Fatalf("expected watch to end on the completed event, got %+v", last)
	}

	out, _, err = runCLI(t, []string{"search", "searchable", "chunks"}, env.addr, env.configPath)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	requireContains(t, out, "1. ")
	requireContains(t, out, "searchable text")
}

func TestCLISubmitFolderJSON(t *testing.T) {
	env := setupCLITestEnv(t)
	dir := filepath.Join(env.baseDir, "project")
	writeFile(t, filepath.Join(dir, "main.go"), "package main\n\nfunc main() {}\n")
	writeFile(t, filepath.Join(dir, "README.md"), "# Project\n\nNotes about the project.\n")
	writeFile(t, filepath.Join(dir, "logo.png"), "not really a png")
	writeFile(t, filepath.Join(dir, ".hidden.txt"), "ignored")

	out, _, err := runCLI(t, []string{"submit", "folder", dir, "--json"}, env.addr, env.configPath)
	if err != nil {
		t.Fatalf("submit folder: %v", err)
	}
	var resp api.AcceptedResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode accepted response: %v\n%s", err, out)
	}
	if !resp.Success || resp.JobID == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.FileCount != 2 || resp.Filtered != 1 {
		t.Fatalf("expected 2 accepted and 1 filtered, got %+v", resp)
	}
}

func TestCLIRejectsInvalidCrawl(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"submit", "crawl", "ftp://example.com"}, env.addr, env.configPath)
	if err == nil {
		t.Fatal("expected invalid URL to fail")
	}
	requireContains(t, err.Error(), "URL must start with http:// or https://")
}

func TestCLIStatusAndCancel(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.addr, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "[OK] Running")
	requireContains(t, out, "== Knowledge ==")

	out, _, err = runCLI(t, []string{"cancel", "missing"}, env.addr, env.configPath)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	requireContains(t, out, "Job stopped: missing")

	_, _, err = runCLI(t, []string{"status", "missing"}, env.addr, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 for unknown job, got %v", err)
	}
}

func TestCLIUsesConfiguredToken(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIToken("secret"))

	if _, _, err := runCLI(t, []string{"jobs"}, env.addr, env.configPath); err != nil {
		t.Fatalf("expected token from config to authorize: %v", err)
	}
	_, _, err := runCLI(t, []string{"--token", "wrong", "jobs"}, env.addr, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401 with wrong token, got %v", err)
	}
}

func TestCLITestNotifyWithoutTopic(t *testing.T) {
	t.Setenv("INGESTOR_NTFY_TOPIC", "")
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.addr, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}

func TestCLIReportsUnreachableDaemon(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, _, err := runCLI(t, []string{"jobs"}, "127.0.0.1:1", "")
	if err == nil {
		t.Fatal("expected connection error")
	}
	requireContains(t, err.Error(), "ingestor serve")
}

func TestCLISourcesRefreshAndCode(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()
	err := env.store.RegisterSource(ctx, "docs.example.com", ingest.SourceMetadata{
		SourceType: "url",
		Title:      "Docs",
		URL:        "https://docs.example.com/",
		MaxDepth:   2,
	})
	if err != nil {
		t.Fatalf("RegisterSource: %v", err)
	}
	if _, err := env.store.StoreCodeExamples(ctx, "docs.example.com", "https://docs.example.com/", []knowledge.CodeExample{
		{Language: "sh", Content: "make install\nmake test"},
	}); err != nil {
		t.Fatalf("StoreCodeExamples: %v", err)
	}

	out, _, err := runCLI(t, []string{"sources", "code", "docs.example.com"}, env.addr, env.configPath)
	if err != nil {
		t.Fatalf("sources code: %v", err)
	}
	requireContains(t, out, "1. https://docs.example.com/ (sh)")
	requireContains(t, out, "make test")

	out, _, err = runCLI(t, []string{"sources", "refresh", "docs.example.com"}, env.addr, env.configPath)
	if err != nil {
		t.Fatalf("sources refresh: %v", err)
	}
	requireContains(t, out, "Refresh started for https://docs.example.com/: ")
	requireContains(t, out, "Source: docs.example.com")

	_, _, err = runCLI(t, []string{"sources", "refresh", "missing"}, env.addr, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 for unknown source, got %v", err)
	}
}
