package tools

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// globMaxResults caps the listing so one glob cannot flood the
// conversation.
const globMaxResults = 200

// GlobTool finds files matching a glob pattern, honoring the project's
// .gitignore. Patterns without a / match basenames at any depth;
// patterns with a / match the full path relative to the working dir.
type GlobTool struct{}

func (GlobTool) Name() string { return NameGlob }

func (GlobTool) Run(_ context.Context, call Call, env ExecContext) Outcome {
	pattern, ok := call.Params.Get("pattern")
	if !ok || pattern == "" {
		return Failure{Message: "glob requires a pattern parameter", ErrorType: "invalid_args"}
	}

	root := env.WorkingDir
	if dir := call.Params.Value("dir"); dir != "" {
		root = resolvePath(dir, env.WorkingDir)
	}
	if root == "" {
		root = "."
	}

	ignore := newIgnoreMatcher(root)

	var matches []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if ignore.Ignored(rel, d.IsDir()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if globMatch(pattern, rel) {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return Failure{Message: err.Error(), ErrorType: "glob_error"}
	}

	if len(matches) == 0 {
		return Success{Content: fmt.Sprintf("No files match %q", pattern)}
	}

	sort.Strings(matches)
	total := len(matches)
	if total > globMaxResults {
		matches = matches[:globMaxResults]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d files matching %q:\n", total, pattern)
	b.WriteString(strings.Join(matches, "\n"))
	if total > globMaxResults {
		fmt.Fprintf(&b, "\n(first %d shown)", globMaxResults)
	}
	return Success{Content: b.String()}
}

// globMatch matches pattern against a slash-separated relative path.
func globMatch(pattern, rel string) bool {
	if strings.HasPrefix(pattern, "**/") {
		return matchAtAnyDepth(pattern[3:], rel)
	}
	if strings.Contains(pattern, "/") {
		return matchGlob(pattern, rel)
	}
	return matchGlob(pattern, filepath.Base(rel))
}
