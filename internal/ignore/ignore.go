// Package ignore reads gitignore-style files from a project root and
// answers whether a path should be hidden from the file browser.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// DefaultIgnoreFiles are read from the project root, in order.
var DefaultIgnoreFiles = []string{".gitignore", ".projecthubignore"}

// DefaultFallbackPatterns apply when a project has no ignore files.
var DefaultFallbackPatterns = []string{".git/", "node_modules/", "vendor/", "dist/", "build/"}

// Parser reads and parses gitignore-style files.
type Parser struct {
	// IgnoreFiles is the list of ignore file names to look for.
	IgnoreFiles []string

	// FallbackPatterns are used when no ignore files are found.
	FallbackPatterns []string

	// AlwaysIgnore patterns are added to every project.
	AlwaysIgnore []string
}

// NewParser creates a new ignore file parser with the given configuration.
func NewParser(ignoreFiles, fallbackPatterns []string) *Parser {
	return &Parser{
		IgnoreFiles:      ignoreFiles,
		FallbackPatterns: fallbackPatterns,
		AlwaysIgnore:     []string{".git/"},
	}
}

// NewDefaultParser creates a parser with DefaultIgnoreFiles and DefaultFallbackPatterns.
func NewDefaultParser() *Parser {
	return NewParser(DefaultIgnoreFiles, DefaultFallbackPatterns)
}

// Matcher reports whether project-relative paths are ignored.
type Matcher struct {
	lines   []string
	matcher gitignore.Matcher
}

// Patterns returns the raw pattern lines the matcher was built from.
func (m *Matcher) Patterns() []string {
	return append([]string(nil), m.lines...)
}

// Ignored reports whether rel (slash or OS separated, relative to the
// project root) is ignored.
func (m *Matcher) Ignored(rel string, isDir bool) bool {
	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == "." || rel == "" {
		return false
	}
	return m.matcher.Match(strings.Split(rel, "/"), isDir)
}

// ParseProject reads all ignore files from the project root and returns a
// matcher over their combined patterns. If no ignore files are found the
// fallback patterns are used.
func (p *Parser) ParseProject(projectRoot string) (*Matcher, error) {
	var lines []string
	foundAny := false

	for _, ignoreFile := range p.IgnoreFiles {
		path := filepath.Join(projectRoot, ignoreFile)
		fileLines, err := p.parseFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		lines = append(lines, fileLines...)
		foundAny = true
	}

	if !foundAny {
		lines = append(lines, p.FallbackPatterns...)
	}
	lines = deduplicate(append(append([]string(nil), p.AlwaysIgnore...), lines...))

	return newMatcher(lines), nil
}

func newMatcher(lines []string) *Matcher {
	patterns := make([]gitignore.Pattern, 0, len(lines))
	for _, line := range lines {
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return &Matcher{lines: lines, matcher: gitignore.NewMatcher(patterns)}
}

// parseFile reads a single gitignore-style file and returns its pattern lines.
func (p *Parser) parseFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		if line := parseLine(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}

// parseLine returns the pattern on a line, or "" for comments and blank lines.
// Negations are kept; the matcher honours them.
func parseLine(line string) string {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}
	return line
}

// deduplicate removes duplicate patterns while preserving order.
func deduplicate(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))

	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}

	return result
}
