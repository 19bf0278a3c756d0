package panels

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projecthub/internal/ignore"
	"github.com/fyrsmithlabs/projecthub/internal/state"
	"github.com/fyrsmithlabs/projecthub/internal/workspace"
)

// ErrInvalidPath is returned for paths that are absolute or leave the project.
var ErrInvalidPath = errors.New("invalid project path")

// FileEntry is one item of the file tree.
type FileEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"` // relative to the project root, slash separated
	IsDir bool   `json:"is_dir"`
}

// FilesSnapshot is a read-only view of the file browser.
type FilesSnapshot struct {
	Root         string      `json:"root"`
	Entries      []FileEntry `json:"entries"`
	ExpandedDirs []string    `json:"expanded_dirs"`
	Selected     string      `json:"selected,omitempty"`
}

// Files is the project file browser. Listings skip ignored paths.
type Files struct {
	bound
	store  Store
	parser *ignore.Parser
	logger *zap.Logger

	mu       sync.RWMutex
	root     string
	matcher  *ignore.Matcher
	entries  []FileEntry
	expanded []string
	selected string
}

// NewFiles creates the files panel.
func NewFiles(store Store, parser *ignore.Parser, logger *zap.Logger) *Files {
	if parser == nil {
		parser = ignore.NewDefaultParser()
	}
	return &Files{store: store, parser: parser, logger: logger}
}

// Save persists expanded directories and the selection.
func (f *Files) Save(ctx context.Context, _ *workspace.SwitchContext) error {
	return skipUnbound(f.Persist(ctx))
}

// Persist writes the browser state to the bound project.
func (f *Files) Persist(ctx context.Context) error {
	id, err := f.active()
	if err != nil {
		return err
	}

	f.mu.RLock()
	expanded := append([]string{}, f.expanded...)
	selected := f.selected
	f.mu.RUnlock()

	return f.store.UpdateProjectState(ctx, id, func(ps *state.ProjectState) error {
		ps.Files = state.FileBrowserState{ExpandedDirs: expanded, Selected: selected}
		return nil
	})
}

// Load restores the browser state of the incoming project.
func (f *Files) Load(_ context.Context, sc *workspace.SwitchContext) error {
	ps, err := requireState(sc)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.root = ps.Path
	f.expanded = append([]string{}, ps.Files.ExpandedDirs...)
	f.selected = ps.Files.Selected
	f.entries = nil
	f.matcher = nil
	f.mu.Unlock()

	f.bind(sc.NewProjectID)
	return nil
}

// AfterSwitch lists the project root and every expanded directory.
func (f *Files) AfterSwitch(context.Context, *workspace.SwitchContext) error {
	return f.Refresh()
}

// Refresh re-reads ignore files and the visible tree.
func (f *Files) Refresh() error {
	f.mu.RLock()
	root := f.root
	expanded := append([]string{}, f.expanded...)
	f.mu.RUnlock()
	if root == "" {
		return nil
	}

	matcher, err := f.parser.ParseProject(root)
	if err != nil {
		return fmt.Errorf("read ignore files: %w", err)
	}

	entries, err := listDir(root, "", matcher)
	if err != nil {
		return err
	}
	sort.Strings(expanded)
	for _, dir := range expanded {
		children, err := listDir(root, dir, matcher)
		if err != nil {
			f.logger.Debug("skipping expanded directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		entries = append(entries, children...)
	}

	f.mu.Lock()
	if f.root == root {
		f.matcher = matcher
		f.entries = entries
	}
	f.mu.Unlock()
	return nil
}

// Expand marks a directory as expanded and lists it.
func (f *Files) Expand(dir string) error {
	dir, err := cleanRel(dir)
	if err != nil {
		return err
	}

	f.mu.Lock()
	if !contains(f.expanded, dir) {
		f.expanded = append(f.expanded, dir)
	}
	f.mu.Unlock()
	return f.Refresh()
}

// Collapse unmarks a directory and its descendants.
func (f *Files) Collapse(dir string) error {
	dir, err := cleanRel(dir)
	if err != nil {
		return err
	}

	f.mu.Lock()
	kept := f.expanded[:0]
	for _, d := range f.expanded {
		if d != dir && !strings.HasPrefix(d, dir+"/") {
			kept = append(kept, d)
		}
	}
	f.expanded = kept
	f.mu.Unlock()
	return f.Refresh()
}

// Select records the selected file.
func (f *Files) Select(path string) error {
	path, err := cleanRel(path)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.selected = path
	f.mu.Unlock()
	return nil
}

// Snapshot returns the visible tree.
func (f *Files) Snapshot() FilesSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return FilesSnapshot{
		Root:         f.root,
		Entries:      append([]FileEntry{}, f.entries...),
		ExpandedDirs: append([]string{}, f.expanded...),
		Selected:     f.selected,
	}
}

// listDir lists one directory, directories first, skipping ignored entries.
func listDir(root, rel string, matcher *ignore.Matcher) ([]FileEntry, error) {
	des, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", rel, err)
	}

	entries := make([]FileEntry, 0, len(des))
	for _, de := range des {
		path := de.Name()
		if rel != "" {
			path = rel + "/" + de.Name()
		}
		if matcher.Ignored(path, de.IsDir()) {
			continue
		}
		entries = append(entries, FileEntry{Name: de.Name(), Path: path, IsDir: de.IsDir()})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
	return entries, nil
}

// cleanRel normalizes a project-relative path and rejects escapes.
func cleanRel(p string) (string, error) {
	c := filepath.ToSlash(filepath.Clean(p))
	if c == "." || c == "" || filepath.IsAbs(p) || c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return c, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
