package panels

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Test kinds, by location.
const (
	TestKindUnit        = "unit"
	TestKindIntegration = "integration"
	TestKindE2E         = "e2e"
)

// Discovery is the result of scanning a project for tests.
type Discovery struct {
	Total       int        `json:"total"`
	Unit        int        `json:"unit"`
	Integration int        `json:"integration"`
	E2E         int        `json:"e2e"`
	Files       []TestFile `json:"files"`
	ScannedAt   time.Time  `json:"scanned_at"`
}

// TestFile is one test file and the number of tests it declares.
type TestFile struct {
	Path  string `json:"path"`
	Tests int    `json:"tests"`
	Kind  string `json:"kind"`
}

var (
	goTestFunc = regexp.MustCompile(`(?m)^func\s+Test\w*\s*\(`)
	jsTestCall = regexp.MustCompile(`(?m)^\s*(?:it|test)\s*\(`)
	pyTestFunc = regexp.MustCompile(`(?m)^\s*(?:async\s+)?def\s+test_\w*\s*\(`)
)

var discoverySkipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "dist": true, "build": true,
	"coverage": true, ".next": true, "__pycache__": true, ".pytest_cache": true,
	".venv": true, "venv": true,
}

// Discover walks the active project for test files and counts their tests.
// Unreadable files and directories are skipped.
func (t *Tests) Discover(ctx context.Context) (*Discovery, error) {
	if _, err := t.active(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	root := t.root
	t.mu.RUnlock()

	d := &Discovery{Files: []TestFile{}, ScannedAt: time.Now().UTC()}
	err := filepath.WalkDir(root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			if de != nil && de.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if de.IsDir() {
			if path != root && discoverySkipDirs[de.Name()] {
				return filepath.SkipDir
			}
			return nil
		}

		pattern := testPattern(de.Name())
		if pattern == nil {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		n := len(pattern.FindAllIndex(raw, -1))
		if n == 0 {
			return nil
		}

		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		kind := testKind(rel)
		d.Files = append(d.Files, TestFile{Path: rel, Tests: n, Kind: kind})
		d.Total += n
		switch kind {
		case TestKindE2E:
			d.E2E += n
		case TestKindIntegration:
			d.Integration += n
		default:
			d.Unit += n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(d.Files, func(i, j int) bool { return d.Files[i].Path < d.Files[j].Path })
	return d, nil
}

// testPattern returns the test declaration pattern for a file name, or nil
// for files that are not tests.
func testPattern(name string) *regexp.Regexp {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, "_test.go"):
		return goTestFunc
	case strings.HasSuffix(lower, "_test.py"), strings.HasPrefix(lower, "test_") && strings.HasSuffix(lower, ".py"):
		return pyTestFunc
	}
	for _, suffix := range []string{".test.ts", ".test.tsx", ".test.js", ".test.jsx", ".spec.ts", ".spec.tsx", ".spec.js", ".spec.jsx"} {
		if strings.HasSuffix(lower, suffix) {
			return jsTestCall
		}
	}
	return nil
}

func testKind(rel string) string {
	lower := strings.ToLower(rel)
	switch {
	case strings.Contains(lower, "e2e"):
		return TestKindE2E
	case strings.Contains(lower, "integration"):
		return TestKindIntegration
	default:
		return TestKindUnit
	}
}
