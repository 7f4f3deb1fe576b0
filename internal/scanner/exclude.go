package scanner

import (
	"path/filepath"
	"strings"
	"unicode"
)

// DefaultIgnoreDirs are directory names never descended into. Build output,
// dependency caches, VCS metadata and coverage reports are not part of a
// change budget.
var DefaultIgnoreDirs = []string{
	"node_modules",
	".git",
	".hg",
	".svn",
	"dist",
	"build",
	"coverage",
	".nyc_output",
	".next",
	".turbo",
	"target",
	"vendor",
	"__pycache__",
	".venv",
	".caws",
}

// DefaultExtensions is the allowlist of source extensions counted toward budgets.
var DefaultExtensions = []string{
	".go", ".js", ".jsx", ".mjs", ".cjs", ".ts", ".tsx",
	".py", ".rb", ".rs", ".java", ".kt", ".swift",
	".c", ".h", ".cc", ".cpp", ".hpp", ".cs",
	".php", ".scala", ".sh", ".sql", ".vue", ".svelte",
}

// extensionSet normalizes an allowlist into a lookup set. Entries may be
// given with or without the leading dot and are matched case-insensitively.
func extensionSet(exts []string) map[string]bool {
	set := make(map[string]bool, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = true
	}
	return set
}

// hasAllowedExtension reports whether path ends in one of the allowed extensions.
func hasAllowedExtension(path string, allowed map[string]bool) bool {
	return allowed[strings.ToLower(filepath.Ext(path))]
}

// isTestFile reports whether a path looks like a test or spec file.
// Matches foo_test.go, foo.test.ts, foo-spec.js, test_foo.py, FooTest.java
// and anything under a tests/ or __tests__/ directory. The marker must be a
// whole name token, so latest.go and spec.go are not test files.
func isTestFile(relPath string) bool {
	slash := filepath.ToSlash(strings.ToLower(relPath))
	if strings.HasPrefix(slash, "tests/") || strings.Contains(slash, "/tests/") ||
		strings.HasPrefix(slash, "__tests__/") || strings.Contains(slash, "/__tests__/") {
		return true
	}

	base := filepath.Base(filepath.ToSlash(relPath))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for _, suffix := range []string{"Test", "Tests", "Spec"} {
		if rest, ok := strings.CutSuffix(stem, suffix); ok && rest != "" && unicode.IsLower(rune(rest[len(rest)-1])) {
			return true
		}
	}

	tokens := strings.FieldsFunc(strings.ToLower(stem), func(r rune) bool {
		return r == '_' || r == '.' || r == '-'
	})
	if len(tokens) < 2 {
		return false
	}
	if tokens[0] == "test" {
		return true
	}
	switch tokens[len(tokens)-1] {
	case "test", "tests", "spec":
		return true
	}
	return false
}

// normalizeRoots cleans roots, makes them absolute, drops duplicates and
// drops any root nested inside another so no file is counted twice.
func normalizeRoots(roots []string) []string {
	abs := make([]string, 0, len(roots))
	seen := make(map[string]bool, len(roots))
	for _, r := range roots {
		if r == "" {
			continue
		}
		p, err := filepath.Abs(r)
		if err != nil {
			continue
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		abs = append(abs, p)
	}

	out := make([]string, 0, len(abs))
	for _, p := range abs {
		nested := false
		for _, other := range abs {
			if other == p {
				continue
			}
			if strings.HasPrefix(p, other+string(filepath.Separator)) {
				nested = true
				break
			}
		}
		if !nested {
			out = append(out, p)
		}
	}
	return out
}
