/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package testmodels holds swagger-style models shared by backend and repository tests.
package testmodels

import (
	"time"

	"github.com/go-openapi/strfmt"
)

// RatingSystem is a generated-style model with pointer fields and strfmt timestamps.
type RatingSystem struct {

	// Timestamp when the rating system was created.
	// Format: date-time
	CreatedAt *strfmt.DateTime `json:"CreatedAt" bson:"createdAt"`

	// A description of the rating system.
	Description *string `json:"Description" bson:"description"`

	// Unique identifier for the rating system.
	// Required: true
	ID *string `json:"Id" bson:"id"`

	// Name of the rating system.
	Name *string `json:"Name" bson:"name"`

	// site Url
	SiteURL string `json:"SiteUrl,omitempty" bson:"siteUrl,omitempty"`

	// Timestamp when the rating system was last updated.
	// Format: date-time
	UpdatedAt *strfmt.DateTime `json:"UpdatedAt" bson:"updatedAt"`
}

// NewRatingSystem returns a rating system created at createdAt.
func NewRatingSystem(id, name string, createdAt time.Time) RatingSystem {
	created := strfmt.DateTime(createdAt.UTC())
	updated := created
	return RatingSystem{
		ID:        &id,
		Name:      &name,
		CreatedAt: &created,
		UpdatedAt: &updated,
	}
}

// RatingSystemKey returns the identifier, or "" when it is unset.
func RatingSystemKey(r RatingSystem) string {
	if r.ID == nil {
		return ""
	}
	return *r.ID
}

// Touch records now as the last update time.
func (r *RatingSystem) Touch(now time.Time) {
	updated := strfmt.DateTime(now.UTC())
	r.UpdatedAt = &updated
}

// CompareCreatedAt orders rating systems by creation time. Unset timestamps sort first.
func CompareCreatedAt(a, b RatingSystem) int {
	switch {
	case a.CreatedAt == nil && b.CreatedAt == nil:
		return 0
	case a.CreatedAt == nil:
		return -1
	case b.CreatedAt == nil:
		return 1
	}
	return time.Time(*a.CreatedAt).Compare(time.Time(*b.CreatedAt))
}
