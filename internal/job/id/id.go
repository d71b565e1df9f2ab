// Package id provides unique identifier generation for jobs.
package id

import "github.com/google/uuid"

// Prefix starts every job ID.
const Prefix = "op-"

// Generate creates a new unique job ID.
// Format: op-<uuid v4>
// Example: op-9b2f6c1e-3d4a-4f5b-8c7d-1e2f3a4b5c6d
func Generate() string {
	return Prefix + uuid.NewString()
}
