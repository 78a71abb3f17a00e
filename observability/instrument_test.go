/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package observability

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/suparena/repository"
	"github.com/suparena/repository/datastore/memory"
	"github.com/suparena/repository/storagemodels"
)

type Invoice struct {
	ID     string
	Amount int
}

func invoiceKey(i Invoice) string { return i.ID }

type fixture struct {
	repo     *Repository[Invoice]
	store    *memory.DataStore[Invoice]
	metrics  *Metrics
	recorder *tracetest.SpanRecorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.New(invoiceKey)
	base, err := repository.New[Invoice](store, repository.WithKeyFunc(invoiceKey))
	require.NoError(t, err)

	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	return fixture{
		repo:     Instrument[Invoice](base, metrics, WithTracerProvider(provider)),
		store:    store,
		metrics:  metrics,
		recorder: recorder,
	}
}

func (f fixture) count(operation, outcome string) float64 {
	return testutil.ToFloat64(f.metrics.operations.WithLabelValues("Invoice", operation, outcome))
}

func attr(span sdktrace.ReadOnlySpan, key attribute.Key) attribute.Value {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestInstrumentOutcomes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.repo.Add(ctx, Invoice{ID: "i1", Amount: 10}))
	assert.Error(t, f.repo.Add(ctx, Invoice{ID: "i1"}))
	assert.Error(t, f.repo.Change(ctx, Invoice{ID: "i9"}))
	assert.Error(t, f.repo.Attach(ctx, Invoice{}))

	assert.Equal(t, 1.0, f.count("Add", "ok"))
	assert.Equal(t, 1.0, f.count("Add", "already_exists"))
	assert.Equal(t, 1.0, f.count("Change", "not_found"))
	assert.Equal(t, 1.0, f.count("Attach", "invalid"))

	spans := f.recorder.Ended()
	require.Len(t, spans, 4)
	assert.Equal(t, "repository.Add", spans[0].Name())
	assert.Equal(t, "Invoice", attr(spans[0], "repository.entity").AsString())
	assert.Equal(t, "already_exists", attr(spans[1], "repository.outcome").AsString())
	assert.Equal(t, codes.Unset, spans[1].Status().Code, "taxonomy errors do not fail the span")
	require.NotEmpty(t, spans[1].Events(), "the error is recorded as an event")

	assert.Equal(t, 3, testutil.CollectAndCount(f.metrics.duration))
}

func TestInstrumentBackendFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.store.WithPutError(fmt.Errorf("connection reset"))

	assert.Error(t, f.repo.AttachRange(ctx, Invoice{ID: "i1"}, Invoice{ID: "i2"}))
	assert.Equal(t, 1.0, f.count("AttachRange", "error"))

	spans := f.recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, int64(2), attr(spans[0], "repository.count").AsInt64())
}

func TestInstrumentQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.repo.AddRange(ctx, []Invoice{{ID: "i1", Amount: 30}, {ID: "i2", Amount: 10}, {ID: "i3", Amount: 20}}))

	t.Run("aggregates", func(t *testing.T) {
		n, err := f.repo.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		exists, err := f.repo.Exists(ctx, func(i Invoice) bool { return i.Amount > 25 })
		require.NoError(t, err)
		assert.True(t, exists)

		got, found, err := f.repo.GetEntity(ctx, func(i Invoice) bool { return i.Amount == 10 })
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "i2", got.ID)

		page, err := f.repo.GetPageEntitiesOrdered(ctx, storagemodels.NewPage(1, 2), nil,
			storagemodels.OrderByDescending(func(i Invoice) int { return i.Amount }))
		require.NoError(t, err)
		assert.Equal(t, []Invoice{{ID: "i1", Amount: 30}, {ID: "i3", Amount: 20}}, page.Items)

		assert.Equal(t, 1.0, f.count("Count", "ok"))
		assert.Equal(t, 1.0, f.count("Exists", "ok"))
		assert.Equal(t, 1.0, f.count("GetEntity", "ok"))
		assert.Equal(t, 1.0, f.count("GetPageEntitiesOrdered", "ok"))
	})

	t.Run("sequence span covers iteration", func(t *testing.T) {
		before := len(f.recorder.Ended())

		seq := f.repo.GetEntities(ctx, nil)
		assert.Len(t, f.recorder.Ended(), before, "no span before iteration")

		var ids []string
		for i, err := range seq {
			require.NoError(t, err)
			ids = append(ids, i.ID)
			if len(ids) == 2 {
				break
			}
		}
		assert.Equal(t, []string{"i1", "i2"}, ids)

		spans := f.recorder.Ended()
		require.Len(t, spans, before+1)
		last := spans[len(spans)-1]
		assert.Equal(t, "repository.GetEntities", last.Name())
		assert.Equal(t, int64(2), attr(last, "repository.items").AsInt64())
		assert.Equal(t, 1.0, f.count("GetEntities", "ok"))
	})

	t.Run("sequence failure", func(t *testing.T) {
		f.store.WithStreamError(fmt.Errorf("cursor lost"))
		defer f.store.WithStreamError(nil)

		for range f.repo.GetEntitiesOrdered(ctx, nil, storagemodels.Ordering[Invoice]{}) {
		}
		assert.Equal(t, 1.0, f.count("GetEntitiesOrdered", "error"))

		for range f.repo.QueryEntities(ctx, nil) {
		}
		assert.Equal(t, 1.0, f.count("QueryEntities", "invalid"))
	})
}

func TestInstrumentMutations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.repo.AttachRange(ctx, Invoice{ID: "i1", Amount: 1}, Invoice{ID: "i2", Amount: 2}))

	require.NoError(t, f.repo.ChangeRange(ctx, []Invoice{{ID: "i1", Amount: 5}}))
	require.NoError(t, f.repo.ChangeWhere(ctx, func(i Invoice) bool { return i.ID == "i2" }, func(i *Invoice) { i.Amount++ }))
	require.NoError(t, f.repo.ChangeRangeWhere(ctx, nil, func(is []Invoice) {
		for k := range is {
			is[k].Amount *= 10
		}
	}))
	assert.Equal(t, 50, f.store.GetData()["i1"].Amount)
	assert.Equal(t, 30, f.store.GetData()["i2"].Amount)

	require.NoError(t, f.repo.Remove(ctx, Invoice{ID: "i1"}))
	assert.Error(t, f.repo.RemoveWhere(ctx, func(i Invoice) bool { return i.ID == "i1" }))

	page, err := f.repo.GetPageEntities(ctx, storagemodels.NewPage(1, 10), nil)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	for _, op := range []string{"AttachRange", "ChangeRange", "ChangeWhere", "ChangeRangeWhere", "Remove", "GetPageEntities"} {
		assert.Equal(t, 1.0, f.count(op, "ok"), op)
	}
	assert.Equal(t, 1.0, f.count("RemoveWhere", "not_found"))
}

func TestNewMetricsReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewMetrics(reg)
	require.NoError(t, err)
	second, err := NewMetrics(reg)
	require.NoError(t, err)

	first.observe("Invoice", "Add", "ok", 0)
	second.observe("Invoice", "Add", "ok", 0)
	assert.Equal(t, 2.0, testutil.ToFloat64(first.operations.WithLabelValues("Invoice", "Add", "ok")))
}
