// Package project defines project identity for projecthub.
//
// Project Representation:
//
// Each project represents a workspace the dashboard can present:
//   - Unique project ID (UUID)
//   - Project name (user-friendly)
//   - Project path (filesystem location)
//   - Display color and icon
//
// Identity is read-only to the workspace switcher. Creation, rename and
// deletion belong to whoever owns the persisted project list.
//
// Catalog Interface:
//
// The Catalog is the lookup contract the switcher resolves targets against:
//   - Get: Retrieve project by ID
//   - List: List all known projects
//
// The state store is the production Catalog.
package project
