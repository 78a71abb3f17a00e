/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suparena/repository/errors"
)

type item struct {
	Key  string
	Rank int
}

func TestPageValidate(t *testing.T) {
	tests := []struct {
		name    string
		page    Page
		wantErr bool
	}{
		{"first page", NewPage(1, 10), false},
		{"zero number", NewPage(0, 10), true},
		{"zero size", NewPage(1, 0), true},
		{"negative size", NewPage(3, -1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.page.Validate()
			if tt.wantErr {
				assert.True(t, errors.IsValidationError(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewPageCollection(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	t.Run("middle page", func(t *testing.T) {
		pc := NewPageCollection(NewPage(2, 3), items)
		assert.Equal(t, []int{4, 5, 6}, pc.Items)
		assert.EqualValues(t, 7, pc.TotalCount)
		assert.Equal(t, 3, pc.TotalPages)
		assert.True(t, pc.HasNext())
		assert.True(t, pc.HasPrevious())
	})

	t.Run("last partial page", func(t *testing.T) {
		pc := NewPageCollection(NewPage(3, 3), items)
		assert.Equal(t, []int{7}, pc.Items)
		assert.False(t, pc.HasNext())
	})

	t.Run("past the end", func(t *testing.T) {
		pc := NewPageCollection(NewPage(9, 3), items)
		assert.Empty(t, pc.Items)
		assert.NotNil(t, pc.Items)
		assert.EqualValues(t, 7, pc.TotalCount)
	})

	t.Run("empty set", func(t *testing.T) {
		pc := NewPageCollection(NewPage(1, 5), []int(nil))
		assert.Empty(t, pc.Items)
		assert.Equal(t, 0, pc.TotalPages)
		assert.False(t, pc.HasPrevious())
	})

	t.Run("page does not alias input", func(t *testing.T) {
		src := []int{1, 2}
		pc := NewPageCollection(NewPage(1, 2), src)
		pc.Items[0] = 99
		assert.Equal(t, 1, src[0])
	})
}

func TestPredicates(t *testing.T) {
	even := Predicate[int](func(n int) bool { return n%2 == 0 })
	big := Predicate[int](func(n int) bool { return n > 10 })

	var none Predicate[int]
	assert.True(t, none.Match(3), "nil predicate matches everything")
	assert.True(t, All[int]().Match(-1))

	assert.True(t, And(even, big).Match(12))
	assert.False(t, And(even, big).Match(4))
	assert.True(t, Or(even, big).Match(4))
	assert.False(t, Or(even, big).Match(3))
	assert.True(t, Not(even).Match(3))
	assert.True(t, And[int]().Match(1), "empty conjunction matches")
	assert.False(t, Or[int]().Match(1), "empty disjunction does not match")
}

func TestOrdering(t *testing.T) {
	items := []item{{"c", 2}, {"a", 1}, {"b", 2}, {"d", 0}}

	t.Run("ascending is stable", func(t *testing.T) {
		got := append([]item(nil), items...)
		OrderBy(func(i item) int { return i.Rank }).Sort(got)
		assert.Equal(t, []item{{"d", 0}, {"a", 1}, {"c", 2}, {"b", 2}}, got)
	})

	t.Run("descending is stable", func(t *testing.T) {
		got := append([]item(nil), items...)
		OrderByDescending(func(i item) int { return i.Rank }).Sort(got)
		assert.Equal(t, []item{{"c", 2}, {"b", 2}, {"a", 1}, {"d", 0}}, got)
	})

	t.Run("custom comparison", func(t *testing.T) {
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		stamps := []time.Time{base.Add(time.Hour), base, base.Add(time.Minute)}
		o := OrderByFunc(func(a, b time.Time) int { return a.Compare(b) })
		o.Sort(stamps)
		require.Equal(t, base, stamps[0])
		assert.False(t, o.IsDescending())
		assert.True(t, o.Descending().IsDescending())
	})

	t.Run("zero ordering keeps input", func(t *testing.T) {
		got := append([]item(nil), items...)
		Ordering[item]{}.Sort(got)
		assert.Equal(t, items, got)
	})
}

func TestApplyStreamOptions(t *testing.T) {
	var calls int
	opts := ApplyStreamOptions(
		WithBufferSize(5),
		WithPageSize(7),
		WithMaxRetries(1),
		WithRetryBackoff(time.Millisecond),
		WithProgressHandler(func(StreamProgress) { calls++ }),
	)

	assert.Equal(t, 5, opts.BufferSize)
	assert.EqualValues(t, 7, opts.PageSize)
	assert.Equal(t, 1, opts.MaxRetries)
	assert.Equal(t, time.Millisecond, opts.RetryBackoff)
	require.NotNil(t, opts.ProgressHandler)
	opts.ProgressHandler(StreamProgress{})
	assert.Equal(t, 1, calls)

	defaults := ApplyStreamOptions()
	assert.Equal(t, DefaultStreamOptions().BufferSize, defaults.BufferSize)

	unbuffered := ApplyStreamOptions(WithBufferSize(-1))
	assert.Equal(t, 0, unbuffered.BufferSize)
}

func TestPutConditionString(t *testing.T) {
	assert.Equal(t, "always", PutAlways.String())
	assert.Equal(t, "if-absent", PutIfAbsent.String())
	assert.Equal(t, "if-exists", PutIfExists.String())
	assert.Equal(t, "unknown", PutCondition(42).String())
}
