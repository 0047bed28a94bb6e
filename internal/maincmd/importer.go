package maincmd

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// importRe matches a top-level `import "path";` directive. Von's `import`
// is a compile-time-only source-inlining directive handled entirely here,
// at the file-loading layer -- it never reaches the scanner or compiler as
// a runtime concept (SPEC_FULL.md's resolution of the reserved-but-unused
// `import` keyword).
var importRe = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+"([^"]*)"[ \t]*;[ \t]*$`)

// loadSource reads path and recursively inlines any `import "other.von";`
// directives it contains, resolving relative import paths against the
// importing file's own directory. A file that (directly or transitively)
// imports itself is a file-read error rather than an infinite expansion.
// Two sibling files importing the same common file is not a cycle, only a
// file that imports one of its own ancestors on the current recursion path
// is -- so visiting tracks that path, not every file seen so far.
func loadSource(path string) (string, error) {
	return loadSourceVisiting(path, map[string]bool{})
}

func loadSourceVisiting(path string, visiting map[string]bool) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if visiting[abs] {
		return "", fmt.Errorf("import cycle detected at %s", path)
	}
	visiting[abs] = true
	defer delete(visiting, abs)

	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)

	var expandErr error
	expanded := importRe.ReplaceAllStringFunc(string(b), func(match string) string {
		if expandErr != nil {
			return ""
		}
		m := importRe.FindStringSubmatch(match)
		importPath := m[1]
		if !filepath.IsAbs(importPath) {
			importPath = filepath.Join(dir, importPath)
		}
		src, err := loadSourceVisiting(importPath, visiting)
		if err != nil {
			expandErr = err
			return ""
		}
		return src
	})
	if expandErr != nil {
		return "", expandErr
	}
	return expanded, nil
}

// stripImports is used by the REPL, where each line is interpreted in
// isolation and `import` has no working directory to resolve against;
// an import directive typed at the REPL prompt is simply rejected.
func stripImports(line string) (string, error) {
	if importRe.MatchString(line) {
		return "", fmt.Errorf("import is only supported when running a file")
	}
	return strings.TrimRight(line, "\n"), nil
}
