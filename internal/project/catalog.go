package project

import (
	"context"
	"sort"
)

// Catalog resolves project identities.
type Catalog interface {
	// Get retrieves a project by ID.
	Get(ctx context.Context, id string) (*Project, error)

	// List returns all projects.
	List(ctx context.Context) ([]*Project, error)
}

// SortProjects orders projects by creation time, breaking ties by name and ID.
func SortProjects(projects []*Project) {
	sort.SliceStable(projects, func(i, j int) bool {
		a, b := projects[i], projects[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})
}
