package ignore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected string
	}{
		{"empty line", "", ""},
		{"whitespace only", "   ", ""},
		{"comment", "# this is a comment", ""},
		{"negation kept", "!important.txt", "!important.txt"},
		{"simple file glob", "*.log", "*.log"},
		{"directory", "node_modules/", "node_modules/"},
		{"trailing whitespace", "dist   ", "dist"},
		{"crlf", "build/\r", "build/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseLine(tt.line)
			if result != tt.expected {
				t.Errorf("parseLine(%q) = %q, want %q", tt.line, result, tt.expected)
			}
		})
	}
}

func TestParseProject(t *testing.T) {
	tmpDir := t.TempDir()

	gitignore := `# Build outputs
dist/
build/

# Dependencies
node_modules/

*.log
!keep.log
`
	if err := os.WriteFile(filepath.Join(tmpDir, ".gitignore"), []byte(gitignore), 0644); err != nil {
		t.Fatal(err)
	}

	// Overlaps with .gitignore
	local := `node_modules/
tmp/
`
	if err := os.WriteFile(filepath.Join(tmpDir, ".projecthubignore"), []byte(local), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := NewDefaultParser().ParseProject(tmpDir)
	if err != nil {
		t.Fatalf("ParseProject failed: %v", err)
	}

	count := 0
	for _, p := range m.Patterns() {
		if p == "node_modules/" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected node_modules pattern once, got %d times", count)
	}

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"dist", true, true},
		{"dist", false, false},
		{"web/node_modules", true, true},
		{"tmp", true, true},
		{".git", true, true},
		{"server.log", false, true},
		{"logs/server.log", false, true},
		{"keep.log", false, false},
		{"main.go", false, false},
		{"cmd", true, false},
		{".", true, false},
	}
	for _, tt := range tests {
		if got := m.Ignored(tt.path, tt.isDir); got != tt.want {
			t.Errorf("Ignored(%q, %v) = %v, want %v", tt.path, tt.isDir, got, tt.want)
		}
	}
}

func TestParseProject_NoIgnoreFiles(t *testing.T) {
	tmpDir := t.TempDir()

	fallback := []string{"node_modules/", "vendor/"}
	parser := NewParser([]string{".gitignore"}, fallback)

	m, err := parser.ParseProject(tmpDir)
	if err != nil {
		t.Fatalf("ParseProject failed: %v", err)
	}

	want := []string{".git/", "node_modules/", "vendor/"}
	got := m.Patterns()
	if len(got) != len(want) {
		t.Fatalf("patterns = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("pattern[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	if !m.Ignored("vendor", true) {
		t.Error("fallback pattern vendor/ should apply")
	}
}

func TestParseProject_UnreadableIgnoreFile(t *testing.T) {
	tmpDir := t.TempDir()
	// A directory where a file is expected cannot be read as a file.
	if err := os.Mkdir(filepath.Join(tmpDir, ".gitignore"), 0755); err != nil {
		t.Fatal(err)
	}

	if _, err := NewDefaultParser().ParseProject(tmpDir); err == nil {
		t.Error("expected error for unreadable ignore file")
	}
}

func TestDeduplicate(t *testing.T) {
	input := []string{"a", "b", "a", "c", "b", "d"}
	expected := []string{"a", "b", "c", "d"}

	result := deduplicate(input)

	if len(result) != len(expected) {
		t.Fatalf("got %d items, want %d", len(result), len(expected))
	}

	for i, v := range result {
		if v != expected[i] {
			t.Errorf("result[%d] = %q, want %q", i, v, expected[i])
		}
	}
}
