/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"github.com/suparena/repository/errors"
)

// Page selects a window of a result set. Number is 1-based.
type Page struct {
	Number int `json:"number" yaml:"number"`
	Size   int `json:"size" yaml:"size"`
}

// NewPage returns a Page for the given number and size.
func NewPage(number, size int) Page {
	return Page{Number: number, Size: size}
}

// Validate reports whether the page can select anything.
func (p Page) Validate() error {
	if p.Number < 1 {
		return errors.NewValidationError("page.number", "must be at least 1")
	}
	if p.Size < 1 {
		return errors.NewValidationError("page.size", "must be at least 1")
	}
	return nil
}

// Offset is the number of items that precede the page.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PageCollection is one page of a result set plus total-count metadata.
type PageCollection[T any] struct {
	Items      []T   `json:"items"`
	PageNumber int   `json:"pageNumber"`
	PageSize   int   `json:"pageSize"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int   `json:"totalPages"`
}

// NewPageCollection slices items, the complete ordered result set, down to page.
// Pages past the end yield no items but keep the totals.
func NewPageCollection[T any](page Page, items []T) *PageCollection[T] {
	total := len(items)
	pc := &PageCollection[T]{
		Items:      []T{},
		PageNumber: page.Number,
		PageSize:   page.Size,
		TotalCount: int64(total),
		TotalPages: (total + page.Size - 1) / page.Size,
	}

	start := page.Offset()
	if start >= total {
		return pc
	}
	end := min(start+page.Size, total)
	pc.Items = append(pc.Items, items[start:end]...)
	return pc
}

// HasNext reports whether a page follows this one.
func (pc *PageCollection[T]) HasNext() bool {
	return pc.PageNumber < pc.TotalPages
}

// HasPrevious reports whether a page precedes this one.
func (pc *PageCollection[T]) HasPrevious() bool {
	return pc.PageNumber > 1 && pc.TotalPages > 0
}
