// Package domain contains the core entity types for the catalog.
package domain

import "time"

// Timestamps provides creation and modification times for stored entities.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InitTimestamps sets both CreatedAt and UpdatedAt to now.
// Call this when creating a new entity.
func (t *Timestamps) InitTimestamps() {
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now
}

// Touch updates the UpdatedAt timestamp to the current time.
func (t *Timestamps) Touch() {
	t.UpdatedAt = time.Now()
}
