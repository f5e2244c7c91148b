package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func globFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"main.go":       "package main",
		"sub/util.go":   "package sub",
		"sub/data.txt":  "data",
		"build/gen.go":  "package gen",
		"docs/guide.md": "# guide",
		".gitignore":    "build/\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll error: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile error: %v", err)
		}
	}
	return dir
}

func TestGlobTool_BasenameAtAnyDepth(t *testing.T) {
	env := ExecContext{WorkingDir: globFixture(t)}
	out := GlobTool{}.Run(context.Background(), Call{
		Name:   NameGlob,
		Params: Params{{Key: "pattern", Value: "*.go"}},
	}, env)

	s, ok := out.(Success)
	if !ok {
		t.Fatalf("outcome = %T, want Success", out)
	}
	for _, want := range []string{"main.go", "sub/util.go"} {
		if !strings.Contains(s.Content, want) {
			t.Errorf("Content missing %q:\n%s", want, s.Content)
		}
	}
	if strings.Contains(s.Content, "build/gen.go") {
		t.Errorf("Content includes gitignored file:\n%s", s.Content)
	}
	if !strings.Contains(s.Content, "Found 2 files") {
		t.Errorf("Content = %q, want count header", s.Content)
	}
}

func TestGlobTool_PathPattern(t *testing.T) {
	env := ExecContext{WorkingDir: globFixture(t)}
	out := GlobTool{}.Run(context.Background(), Call{
		Name:   NameGlob,
		Params: Params{{Key: "pattern", Value: "sub/*.go"}},
	}, env)

	s, ok := out.(Success)
	if !ok {
		t.Fatalf("outcome = %T, want Success", out)
	}
	if !strings.Contains(s.Content, "sub/util.go") {
		t.Errorf("Content = %q", s.Content)
	}
	if strings.Contains(s.Content, "main.go") {
		t.Errorf("anchored pattern matched root file:\n%s", s.Content)
	}
}

func TestGlobTool_NoMatches(t *testing.T) {
	env := ExecContext{WorkingDir: globFixture(t)}
	out := GlobTool{}.Run(context.Background(), Call{
		Name:   NameGlob,
		Params: Params{{Key: "pattern", Value: "*.py"}},
	}, env)

	s, ok := out.(Success)
	if !ok {
		t.Fatalf("outcome = %T, want Success (no matches is not an error)", out)
	}
	if !strings.Contains(s.Content, "No files match") {
		t.Errorf("Content = %q", s.Content)
	}
}

func TestGlobTool_MissingPattern(t *testing.T) {
	out := GlobTool{}.Run(context.Background(), Call{Name: NameGlob}, ExecContext{WorkingDir: t.TempDir()})
	f, ok := out.(Failure)
	if !ok {
		t.Fatalf("outcome = %T, want Failure", out)
	}
	if f.ErrorType != "invalid_args" {
		t.Errorf("ErrorType = %q, want invalid_args", f.ErrorType)
	}
}

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern string
		rel     string
		want    bool
	}{
		{"*.go", "main.go", true},
		{"*.go", "deep/nested/file.go", true},
		{"*.go", "file.txt", false},
		{"sub/*.go", "sub/util.go", true},
		{"sub/*.go", "other/util.go", false},
		{"**/test_*.go", "a/b/test_x.go", true},
		{"**/test_*.go", "test_x.go", true},
		{"**/test_*.go", "a/b/x.go", false},
	}
	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.rel, func(t *testing.T) {
			if got := globMatch(tt.pattern, tt.rel); got != tt.want {
				t.Errorf("globMatch(%q, %q) = %v, want %v", tt.pattern, tt.rel, got, tt.want)
			}
		})
	}
}
