// Package testutil holds import-boundary assertions shared by architecture
// tests.
package testutil

import (
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// RandomnessImport matches the standard library sources of randomness.
func RandomnessImport(path string) bool {
	switch path {
	case "math/rand", "math/rand/v2", "crypto/rand":
		return true
	}
	return false
}

// AssertNoDirectImports fails t when a non-test file directly in dir imports
// a path matching forbidden.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := dirViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	report(t, reason, viols)
}

// AssertNoImportsOutside walks the module under root and fails t when a
// non-test file imports a forbidden path from a directory that allowed
// rejects. allowed receives the slash-separated directory relative to root.
// Directories starting with "_" or "." and testdata are skipped.
func AssertNoImportsOutside(t testing.TB, root string, allowed func(rel string) bool, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := treeViolations(root, allowed, forbidden)
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	report(t, reason, viols)
}

func treeViolations(root string, allowed func(string) bool, forbidden func(string) bool) ([]string, error) {
	var viols []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "testdata") {
			return filepath.SkipDir
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if allowed(rel) {
			return nil
		}
		found, err := dirViolations(path, forbidden)
		if err != nil {
			return err
		}
		for _, v := range found {
			viols = append(viols, rel+"/"+v)
		}
		return nil
	})
	return viols, err
}

func dirViolations(dir string, forbidden func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range f.Imports {
			if p := strings.Trim(imp.Path.Value, `"`); forbidden(p) {
				viols = append(viols, name+": "+p)
			}
		}
	}
	sort.Strings(viols)
	return viols, nil
}

type fatalLogger interface {
	Helper()
	Fatalf(format string, args ...any)
}

func report(t fatalLogger, reason string, viols []string) {
	t.Helper()
	if len(viols) > 0 {
		t.Fatalf("forbidden imports (%s):\n%s", reason, strings.Join(viols, "\n"))
	}
}
