package tools

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// ignoreMatcher filters paths against .gitignore-style patterns: plain
// globs (*.log), directory-only entries (build/), root-anchored entries
// (/dist), double-star forms (**/foo, foo/**, a/**/b) and negations
// (!keep.log). Comments and blank lines are skipped.
type ignoreMatcher struct {
	rules []ignoreRule
}

type ignoreRule struct {
	pattern  string // cleaned pattern, no leading or trailing /
	negate   bool   // ! prefix un-ignores a previously matched path
	dirOnly  bool   // trailing / restricts the rule to directories
	anchored bool   // contains / so it matches the full relative path
}

// newIgnoreMatcher reads the .gitignore in dir, if one exists, and
// always excludes the .git directory itself.
func newIgnoreMatcher(dir string) *ignoreMatcher {
	m := &ignoreMatcher{}
	m.add(".git/")
	m.readFile(filepath.Join(dir, ".gitignore"))
	return m
}

func (m *ignoreMatcher) readFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		m.add(sc.Text())
	}
}

func (m *ignoreMatcher) add(line string) {
	if rule, ok := parseIgnoreRule(line); ok {
		m.rules = append(m.rules, rule)
	}
}

// Ignored reports whether rel should be excluded. Rules are evaluated
// in file order and the last match wins. A path is also excluded when
// any of its parent directories is.
func (m *ignoreMatcher) Ignored(rel string, isDir bool) bool {
	if len(m.rules) == 0 {
		return false
	}

	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if m.match(strings.Join(parts[:i], "/"), true) {
			return true
		}
	}
	return m.match(rel, isDir)
}

func (m *ignoreMatcher) match(rel string, isDir bool) bool {
	ignored := false
	for _, rule := range m.rules {
		if rule.dirOnly && !isDir {
			continue
		}
		if rule.matches(rel) {
			ignored = !rule.negate
		}
	}
	return ignored
}

func parseIgnoreRule(line string) (ignoreRule, bool) {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") {
		return ignoreRule{}, false
	}

	var r ignoreRule
	if strings.HasPrefix(line, "!") {
		r.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		r.dirOnly = true
		line = strings.TrimRight(line, "/")
	}

	// A leading / pins the pattern to the root; a / anywhere else also
	// anchors it, except for the **/ prefix which matches at any depth.
	if strings.HasPrefix(line, "/") {
		r.anchored = true
		line = line[1:]
	} else if strings.Contains(line, "/") && !strings.HasPrefix(line, "**/") {
		r.anchored = true
	}

	if line == "" {
		return ignoreRule{}, false
	}
	r.pattern = line
	return r, true
}

func (r ignoreRule) matches(rel string) bool {
	pattern := r.pattern

	if strings.HasPrefix(pattern, "**/") {
		return matchAtAnyDepth(pattern[3:], rel)
	}
	if strings.HasSuffix(pattern, "/**") {
		prefix := pattern[:len(pattern)-3]
		return rel == prefix || strings.HasPrefix(rel, prefix+"/")
	}
	if idx := strings.Index(pattern, "/**/"); idx >= 0 {
		prefix, suffix := pattern[:idx], pattern[idx+4:]
		if rel != prefix && !strings.HasPrefix(rel, prefix+"/") {
			return false
		}
		return matchAtAnyDepth(suffix, strings.TrimPrefix(rel, prefix+"/"))
	}

	if r.anchored {
		return matchGlob(pattern, rel)
	}
	return matchGlob(pattern, filepath.Base(rel))
}

// matchAtAnyDepth matches pattern against rel or any suffix of rel that
// starts after a path separator.
func matchAtAnyDepth(pattern, rel string) bool {
	if matchGlob(pattern, rel) {
		return true
	}
	for i := 0; i < len(rel); i++ {
		if rel[i] == '/' && matchGlob(pattern, rel[i+1:]) {
			return true
		}
	}
	return false
}

// matchGlob wraps filepath.Match, treating malformed patterns as no match.
func matchGlob(pattern, name string) bool {
	ok, _ := filepath.Match(pattern, name)
	return ok
}
