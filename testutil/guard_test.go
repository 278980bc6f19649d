package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recorder struct{ msg string }

func (r *recorder) Helper() {}

func (r *recorder) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func writeGo(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestRandomnessImport(t *testing.T) {
	for _, p := range []string{"math/rand", "math/rand/v2", "crypto/rand"} {
		if !RandomnessImport(p) {
			t.Fatalf("%s should match", p)
		}
	}
	for _, p := range []string{"math", "crypto/sha256", "rndharness/internal/prng"} {
		if RandomnessImport(p) {
			t.Fatalf("%s should not match", p)
		}
	}
}

func TestDirViolationsIgnoresTests(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, filepath.Join(dir, "a.go"), "package a\n\nimport \"math/rand\"\n\nvar _ = rand.Int\n")
	writeGo(t, filepath.Join(dir, "a_test.go"), "package a\n\nimport \"crypto/rand\"\n\nvar _ = rand.Reader\n")
	viols, err := dirViolations(dir, RandomnessImport)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "a.go: math/rand" {
		t.Fatalf("violations = %v", viols)
	}
}

func TestTreeViolationsHonoursAllowAndSkips(t *testing.T) {
	root := t.TempDir()
	src := "package p\n\nimport \"math/rand\"\n\nvar _ = rand.Int\n"
	writeGo(t, filepath.Join(root, "internal", "prng", "p.go"), src)
	writeGo(t, filepath.Join(root, "internal", "world", "w.go"), src)
	writeGo(t, filepath.Join(root, "_examples", "x", "x.go"), src)
	writeGo(t, filepath.Join(root, "internal", "testdata", "t.go"), src)

	viols, err := treeViolations(root, func(rel string) bool { return rel == "internal/prng" }, RandomnessImport)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if len(viols) != 1 || viols[0] != "internal/world/w.go: math/rand" {
		t.Fatalf("violations = %v", viols)
	}
}

func TestReportFormatsViolations(t *testing.T) {
	r := &recorder{}
	report(r, "seeded", nil)
	if r.msg != "" {
		t.Fatalf("no violations should not fail: %q", r.msg)
	}
	report(r, "seeded", []string{"a.go: math/rand"})
	if !strings.Contains(r.msg, "forbidden imports (seeded)") || !strings.Contains(r.msg, "a.go: math/rand") {
		t.Fatalf("message = %q", r.msg)
	}
}

func TestAssertNoDirectImportsPassesCleanDir(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, filepath.Join(dir, "a.go"), "package a\n\nimport \"strings\"\n\nvar _ = strings.Cut\n")
	AssertNoDirectImports(t, dir, RandomnessImport, "clean")
}
