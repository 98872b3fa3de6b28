package internal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/notegraph/internal/testutil"
)

func commandOpts(t *testing.T, files map[string]string, out io.Writer) []Option {
	t.Helper()
	dir := t.TempDir()
	vaultDir := filepath.Join(dir, "vault")
	testutil.WriteFiles(t, vaultDir, files)

	cfg := NewDefaultConfig()
	cfg.Vault.Path = vaultDir
	cfg.SQLite.Path = filepath.Join(dir, "notegraph.db")
	return []Option{WithConfig(cfg), WithOutput(out), WithLogOutput(io.Discard)}
}

func TestCheck_ReportsProblems(t *testing.T) {
	var out bytes.Buffer
	opts := commandOpts(t, map[string]string{
		"a.md": "[[b]] and [[ghost]]",
		"b.md": "# B",
	}, &out)

	err := Check(context.Background(), opts...)
	if !errors.Is(err, ErrCheckFailed) {
		t.Fatalf("Check err = %v, want ErrCheckFailed", err)
	}
	if !strings.Contains(out.String(), "broken link: a.md -> [[ghost]]") {
		t.Errorf("output = %q", out.String())
	}
	if strings.Contains(out.String(), "[[b]]") {
		t.Errorf("resolved link reported: %q", out.String())
	}
}

func TestCheck_Clean(t *testing.T) {
	var out bytes.Buffer
	opts := commandOpts(t, map[string]string{"a.md": "# A"}, &out)

	if err := Check(context.Background(), opts...); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if strings.TrimSpace(out.String()) != "ok" {
		t.Errorf("output = %q", out.String())
	}
}

func TestRender_WritesHTML(t *testing.T) {
	var out bytes.Buffer
	opts := commandOpts(t, map[string]string{
		"notes/Plan.md": "# Plan\n\nlinks to [[Other]]",
		"Other.md":      "x",
	}, &out)

	if err := Render(context.Background(), "notes/Plan", opts...); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out.String(), "<h1") || !strings.Contains(out.String(), "Other") {
		t.Errorf("output = %q", out.String())
	}
}

func TestRender_Missing(t *testing.T) {
	var out bytes.Buffer
	opts := commandOpts(t, nil, &out)
	if err := Render(context.Background(), "nope", opts...); err == nil {
		t.Fatal("expected error for missing note")
	}
}

func TestCommands_RequireConfig(t *testing.T) {
	if err := Check(context.Background()); !errors.Is(err, errConfigRequired) {
		t.Errorf("err = %v, want errConfigRequired", err)
	}
}
