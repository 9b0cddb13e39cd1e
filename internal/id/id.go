// Package id provides unique identifier generation utilities.
// This is the canonical source for ID generation across the codebase.
package id

import "github.com/google/uuid"

// New generates a new random identifier suitable for use as a record ID.
func New() string {
	return uuid.NewString()
}
