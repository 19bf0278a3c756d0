package panels

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/diff"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultHistoryLimit is the number of commits History returns by default.
const DefaultHistoryLimit = 50

// ErrNotRepository is returned by history and diff outside a git repository.
var ErrNotRepository = errors.New("project is not a git repository")

// Commit is one entry of the project history.
type Commit struct {
	Hash       string       `json:"hash"`
	ShortHash  string       `json:"short_hash"`
	Subject    string       `json:"subject"`
	Body       string       `json:"body,omitempty"`
	Author     string       `json:"author"`
	Email      string       `json:"email"`
	When       time.Time    `json:"when"`
	Files      []CommitFile `json:"files"`
	Insertions int          `json:"insertions"`
	Deletions  int          `json:"deletions"`
}

// CommitFile is a file touched by a commit.
type CommitFile struct {
	Path       string `json:"path"`
	Insertions int    `json:"insertions"`
	Deletions  int    `json:"deletions"`
}

// FileDiff compares a working tree file against HEAD.
type FileDiff struct {
	Path       string `json:"path"`
	OldContent string `json:"old_content"`
	NewContent string `json:"new_content"`
	Diff       string `json:"diff"`
}

// History returns up to limit non-merge commits reachable from HEAD, newest
// first. An unborn branch has no history.
func (g *Git) History(ctx context.Context, limit int) ([]Commit, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	repo, _, err := g.openRepo()
	if err != nil {
		return nil, err
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return []Commit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read HEAD: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	commits := []Commit{}
	for len(commits) < limit {
		c, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("walk log: %w", err)
		}
		if c.NumParents() > 1 {
			continue
		}

		entry := newCommit(c)
		stats, err := c.StatsContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("stats for %s: %w", entry.ShortHash, err)
		}
		for _, fs := range stats {
			entry.Files = append(entry.Files, CommitFile{Path: fs.Name, Insertions: fs.Addition, Deletions: fs.Deletion})
			entry.Insertions += fs.Addition
			entry.Deletions += fs.Deletion
		}
		commits = append(commits, entry)
	}
	return commits, nil
}

// Diff compares a project file with its HEAD version. Files that are new or
// deleted compare against empty content.
func (g *Git) Diff(path string) (FileDiff, error) {
	rel, err := cleanRel(path)
	if err != nil {
		return FileDiff{}, err
	}
	repo, root, err := g.openRepo()
	if err != nil {
		return FileDiff{}, err
	}

	abs := filepath.Join(root, filepath.FromSlash(rel))
	repoPath, err := repoRelative(repo, abs)
	if err != nil {
		return FileDiff{}, err
	}

	fd := FileDiff{Path: rel}
	if head, err := repo.Head(); err == nil {
		commit, err := repo.CommitObject(head.Hash())
		if err != nil {
			return FileDiff{}, fmt.Errorf("read HEAD commit: %w", err)
		}
		file, err := commit.File(repoPath)
		switch {
		case errors.Is(err, object.ErrFileNotFound):
		case err != nil:
			return FileDiff{}, fmt.Errorf("read %s at HEAD: %w", rel, err)
		default:
			if fd.OldContent, err = file.Contents(); err != nil {
				return FileDiff{}, fmt.Errorf("read %s at HEAD: %w", rel, err)
			}
		}
	} else if !errors.Is(err, plumbing.ErrReferenceNotFound) {
		return FileDiff{}, fmt.Errorf("read HEAD: %w", err)
	}

	raw, err := os.ReadFile(abs)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return FileDiff{}, fmt.Errorf("read %s: %w", rel, err)
	}
	fd.NewContent = string(raw)
	fd.Diff = lineDiff(fd.OldContent, fd.NewContent)
	return fd, nil
}

func (g *Git) openRepo() (*git.Repository, string, error) {
	g.mu.RLock()
	root := g.root
	g.mu.RUnlock()
	if root == "" {
		return nil, "", ErrNoActiveProject
	}

	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, "", ErrNotRepository
	}
	if err != nil {
		return nil, "", fmt.Errorf("open repository %s: %w", root, err)
	}
	return repo, root, nil
}

// repoRelative maps an absolute path to the slash path git stores it under.
// The project may live below the repository root.
func repoRelative(repo *git.Repository, abs string) (string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("open worktree: %w", err)
	}
	rel, err := filepath.Rel(wt.Filesystem.Root(), abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

func newCommit(c *object.Commit) Commit {
	subject, body, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
	hash := c.Hash.String()
	return Commit{
		Hash:      hash,
		ShortHash: hash[:7],
		Subject:   strings.TrimSpace(subject),
		Body:      strings.TrimSpace(body),
		Author:    c.Author.Name,
		Email:     c.Author.Email,
		When:      c.Author.When,
	}
}

// lineDiff renders a line diff with "+", "-" and " " prefixes.
func lineDiff(old, new string) string {
	var sb strings.Builder
	for _, d := range diff.Do(old, new) {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
			if !strings.HasSuffix(line, "\n") {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String()
}
