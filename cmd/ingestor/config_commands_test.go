package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ingestor/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, "", ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, "", ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "validate"}, "", target)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+target)
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateReportsErrors(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "bad.toml")
	writeFile(t, path, "[engine]\nmax_concurrent = 0\n")

	_, _, err := runCLI(t, []string{"config", "validate"}, "", path)
	if err == nil || !strings.Contains(err.Error(), "engine.max_concurrent") {
		t.Fatalf("expected capacity error, got %v", err)
	}
}

func TestConfigShowRedactsToken(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken("super-secret"))
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, path, cfg)

	out, _, err := runCLI(t, []string{"config", "show"}, "", path)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "super-secret") {
		t.Fatalf("token leaked in output:\n%s", out)
	}
	requireContains(t, out, redacted)
	requireContains(t, out, "max_concurrent = 3")
}
