/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package observability

import (
	"context"
	"iter"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/suparena/repository"
	"github.com/suparena/repository/errors"
	"github.com/suparena/repository/registry"
	"github.com/suparena/repository/storagemodels"
)

const instrumentationName = "github.com/suparena/repository/observability"

// Repository decorates a repository.Repository with one span and one metrics
// sample per operation. Sequences are measured from the first iteration until
// the consumer stops.
type Repository[T any] struct {
	next    repository.Repository[T]
	metrics *Metrics
	tracer  trace.Tracer
	entity  string
}

var _ repository.Repository[struct{ ID string }] = (*Repository[struct{ ID string }])(nil)

// Option configures Instrument.
type Option func(*settings)

type settings struct {
	provider trace.TracerProvider
	entity   string
}

// WithTracerProvider sets the provider spans are started from. The global
// provider is used by default.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(s *settings) {
		s.provider = provider
	}
}

// WithEntity overrides the entity label, which defaults to the registered type name.
func WithEntity(name string) Option {
	return func(s *settings) {
		s.entity = name
	}
}

// Instrument wraps next so that every operation is traced and counted in metrics.
func Instrument[T any](next repository.Repository[T], metrics *Metrics, opts ...Option) *Repository[T] {
	s := settings{
		provider: otel.GetTracerProvider(),
		entity:   registry.TypeName[T](),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &Repository[T]{
		next:    next,
		metrics: metrics,
		tracer:  s.provider.Tracer(instrumentationName),
		entity:  s.entity,
	}
}

func (r *Repository[T]) start(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("repository.entity", r.entity))
	return r.tracer.Start(ctx, "repository."+operation,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...))
}

func (r *Repository[T]) finish(span trace.Span, operation string, started time.Time, err error) {
	outcome := errors.Kind(err)
	span.SetAttributes(attribute.String("repository.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		if outcome == "error" {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	r.metrics.observe(r.entity, operation, outcome, time.Since(started))
}

func (r *Repository[T]) do(ctx context.Context, operation string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := r.start(ctx, operation, attrs...)
	defer span.End()

	started := time.Now()
	err := fn(ctx)
	r.finish(span, operation, started, err)
	return err
}

func (r *Repository[T]) seq(ctx context.Context, operation string, open func(context.Context) iter.Seq2[T, error]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		ctx, span := r.start(ctx, operation)
		defer span.End()

		started := time.Now()
		var items int
		var failure error
		defer func() {
			span.SetAttributes(attribute.Int("repository.items", items))
			r.finish(span, operation, started, failure)
		}()

		for entity, err := range open(ctx) {
			if err != nil {
				failure = err
			} else {
				items++
			}
			if !yield(entity, err) {
				return
			}
		}
	}
}

func count(n int) attribute.KeyValue {
	return attribute.Int("repository.count", n)
}

// Attach traces and measures the wrapped Attach.
func (r *Repository[T]) Attach(ctx context.Context, entity T) error {
	return r.do(ctx, "Attach", func(ctx context.Context) error {
		return r.next.Attach(ctx, entity)
	})
}

// AttachRange traces and measures the wrapped AttachRange.
func (r *Repository[T]) AttachRange(ctx context.Context, entities ...T) error {
	return r.do(ctx, "AttachRange", func(ctx context.Context) error {
		return r.next.AttachRange(ctx, entities...)
	}, count(len(entities)))
}

// Add traces and measures the wrapped Add.
func (r *Repository[T]) Add(ctx context.Context, entity T) error {
	return r.do(ctx, "Add", func(ctx context.Context) error {
		return r.next.Add(ctx, entity)
	})
}

// AddRange traces and measures the wrapped AddRange.
func (r *Repository[T]) AddRange(ctx context.Context, entities []T) error {
	return r.do(ctx, "AddRange", func(ctx context.Context) error {
		return r.next.AddRange(ctx, entities)
	}, count(len(entities)))
}

// Change traces and measures the wrapped Change.
func (r *Repository[T]) Change(ctx context.Context, entity T) error {
	return r.do(ctx, "Change", func(ctx context.Context) error {
		return r.next.Change(ctx, entity)
	})
}

// ChangeRange traces and measures the wrapped ChangeRange.
func (r *Repository[T]) ChangeRange(ctx context.Context, entities []T) error {
	return r.do(ctx, "ChangeRange", func(ctx context.Context) error {
		return r.next.ChangeRange(ctx, entities)
	}, count(len(entities)))
}

// ChangeWhere traces and measures the wrapped ChangeWhere.
func (r *Repository[T]) ChangeWhere(ctx context.Context, cond storagemodels.Predicate[T], action func(*T)) error {
	return r.do(ctx, "ChangeWhere", func(ctx context.Context) error {
		return r.next.ChangeWhere(ctx, cond, action)
	})
}

// ChangeRangeWhere traces and measures the wrapped ChangeRangeWhere.
func (r *Repository[T]) ChangeRangeWhere(ctx context.Context, cond storagemodels.Predicate[T], action func([]T)) error {
	return r.do(ctx, "ChangeRangeWhere", func(ctx context.Context) error {
		return r.next.ChangeRangeWhere(ctx, cond, action)
	})
}

// Remove traces and measures the wrapped Remove.
func (r *Repository[T]) Remove(ctx context.Context, entity T) error {
	return r.do(ctx, "Remove", func(ctx context.Context) error {
		return r.next.Remove(ctx, entity)
	})
}

// RemoveWhere traces and measures the wrapped RemoveWhere.
func (r *Repository[T]) RemoveWhere(ctx context.Context, cond storagemodels.Predicate[T]) error {
	return r.do(ctx, "RemoveWhere", func(ctx context.Context) error {
		return r.next.RemoveWhere(ctx, cond)
	})
}

// GetEntity traces and measures the wrapped GetEntity.
func (r *Repository[T]) GetEntity(ctx context.Context, cond storagemodels.Predicate[T]) (T, bool, error) {
	var entity T
	var found bool
	err := r.do(ctx, "GetEntity", func(ctx context.Context) error {
		var err error
		entity, found, err = r.next.GetEntity(ctx, cond)
		return err
	})
	return entity, found, err
}

// GetPageEntities traces and measures the wrapped GetPageEntities.
func (r *Repository[T]) GetPageEntities(ctx context.Context, page storagemodels.Page, cond storagemodels.Predicate[T]) (*storagemodels.PageCollection[T], error) {
	var result *storagemodels.PageCollection[T]
	err := r.do(ctx, "GetPageEntities", func(ctx context.Context) error {
		var err error
		result, err = r.next.GetPageEntities(ctx, page, cond)
		return err
	}, attribute.Int("repository.page.number", page.Number), attribute.Int("repository.page.size", page.Size))
	return result, err
}

// GetPageEntitiesOrdered traces and measures the wrapped GetPageEntitiesOrdered.
func (r *Repository[T]) GetPageEntitiesOrdered(ctx context.Context, page storagemodels.Page, cond storagemodels.Predicate[T], ordering storagemodels.Ordering[T]) (*storagemodels.PageCollection[T], error) {
	var result *storagemodels.PageCollection[T]
	err := r.do(ctx, "GetPageEntitiesOrdered", func(ctx context.Context) error {
		var err error
		result, err = r.next.GetPageEntitiesOrdered(ctx, page, cond, ordering)
		return err
	},
		attribute.Int("repository.page.number", page.Number),
		attribute.Int("repository.page.size", page.Size),
		attribute.Bool("repository.descending", ordering.IsDescending()))
	return result, err
}

// GetEntities traces and measures the wrapped GetEntities from first iteration until the consumer stops.
func (r *Repository[T]) GetEntities(ctx context.Context, cond storagemodels.Predicate[T]) iter.Seq2[T, error] {
	return r.seq(ctx, "GetEntities", func(ctx context.Context) iter.Seq2[T, error] {
		return r.next.GetEntities(ctx, cond)
	})
}

// QueryEntities traces and measures the wrapped QueryEntities from first iteration until the consumer stops.
func (r *Repository[T]) QueryEntities(ctx context.Context, query func(iter.Seq[T]) iter.Seq[T]) iter.Seq2[T, error] {
	return r.seq(ctx, "QueryEntities", func(ctx context.Context) iter.Seq2[T, error] {
		return r.next.QueryEntities(ctx, query)
	})
}

// GetEntitiesOrdered traces and measures the wrapped GetEntitiesOrdered from first iteration until the consumer stops.
func (r *Repository[T]) GetEntitiesOrdered(ctx context.Context, cond storagemodels.Predicate[T], ordering storagemodels.Ordering[T]) iter.Seq2[T, error] {
	return r.seq(ctx, "GetEntitiesOrdered", func(ctx context.Context) iter.Seq2[T, error] {
		return r.next.GetEntitiesOrdered(ctx, cond, ordering)
	})
}

// Count traces and measures the wrapped Count.
func (r *Repository[T]) Count(ctx context.Context, cond storagemodels.Predicate[T]) (int64, error) {
	var n int64
	err := r.do(ctx, "Count", func(ctx context.Context) error {
		var err error
		n, err = r.next.Count(ctx, cond)
		return err
	})
	return n, err
}

// Exists traces and measures the wrapped Exists.
func (r *Repository[T]) Exists(ctx context.Context, cond storagemodels.Predicate[T]) (bool, error) {
	var exists bool
	err := r.do(ctx, "Exists", func(ctx context.Context) error {
		var err error
		exists, err = r.next.Exists(ctx, cond)
		return err
	})
	return exists, err
}
