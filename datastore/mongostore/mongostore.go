/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package mongostore implements the DataStore interface on a MongoDB collection.
// Each entity is stored as one document whose _id is the entity key.
package mongostore

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/suparena/repository/errors"
	"github.com/suparena/repository/registry"
	"github.com/suparena/repository/storagemodels"
)

// Connect opens a client for uri and verifies it with a ping.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	if uri == "" {
		return nil, errors.NewValidationError("uri", "MongoDB URI is required")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	opts := options.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetTimeout(timeout)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// Store is a MongoDB-backed datastore.DataStore[T].
type Store[T any] struct {
	collection *mongo.Collection
	keyFunc    registry.KeyFunc[T]
	entityType string
	logger     *logrus.Entry
}

// Option configures a Store.
type Option func(*settings)

type settings struct {
	logger *logrus.Entry
}

// WithLogger sets the logger used by the store.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// New creates a Store over collection, keyed by keyFunc.
func New[T any](collection *mongo.Collection, keyFunc registry.KeyFunc[T], opts ...Option) *Store[T] {
	s := settings{logger: logrus.WithField("subsystem", "mongostore")}
	for _, opt := range opts {
		opt(&s)
	}

	entityType := registry.TypeName[T]()
	return &Store[T]{
		collection: collection,
		keyFunc:    keyFunc,
		entityType: entityType,
		logger: s.logger.WithFields(logrus.Fields{
			"collection": collection.Name(),
			"entity":     entityType,
		}),
	}
}

// document encodes entity with its key as _id.
func document(entity any, key string) (bson.M, error) {
	raw, err := bson.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to convert entity: %w", err)
	}
	doc["_id"] = key
	return doc, nil
}

// GetOne retrieves the document whose _id equals key.
func (s *Store[T]) GetOne(ctx context.Context, key string) (*T, error) {
	if key == "" {
		return nil, errors.NewValidationError("key", "key must not be empty")
	}

	entity := new(T)
	err := s.collection.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(entity)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.NewNotFoundError(s.entityType, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s %q: %w", s.entityType, key, err)
	}
	return entity, nil
}

// Put writes entity subject to cond.
func (s *Store[T]) Put(ctx context.Context, entity T, cond storagemodels.PutCondition) error {
	key := s.keyFunc(entity)
	if key == "" {
		return errors.NewValidationError("key", "unable to extract key from entity")
	}

	doc, err := document(entity, key)
	if err != nil {
		return err
	}
	filter := bson.D{{Key: "_id", Value: key}}

	switch cond {
	case storagemodels.PutIfAbsent:
		if _, err := s.collection.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return errors.NewAlreadyExistsError(s.entityType, key)
			}
			return fmt.Errorf("failed to insert %s %q: %w", s.entityType, key, err)
		}
	case storagemodels.PutIfExists:
		res, err := s.collection.ReplaceOne(ctx, filter, doc)
		if err != nil {
			return fmt.Errorf("failed to replace %s %q: %w", s.entityType, key, err)
		}
		if res.MatchedCount == 0 {
			return errors.NewNotFoundError(s.entityType, key)
		}
	default:
		if _, err := s.collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true)); err != nil {
			return fmt.Errorf("failed to save %s %q: %w", s.entityType, key, err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"key":       key,
		"condition": cond.String(),
	}).Debug("document stored")
	return nil
}

// Delete removes the document whose _id equals key.
func (s *Store[T]) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.NewValidationError("key", "key must not be empty")
	}

	res, err := s.collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}})
	if err != nil {
		return fmt.Errorf("failed to delete %s %q: %w", s.entityType, key, err)
	}
	if res.DeletedCount == 0 {
		return errors.NewNotFoundError(s.entityType, key)
	}
	return nil
}

// Stream reads every document sorted by _id, PageSize documents per batch.
func (s *Store[T]) Stream(ctx context.Context, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	streamOpts := storagemodels.ApplyStreamOptions(opts...)
	resultCh := make(chan storagemodels.StreamResult[T], streamOpts.BufferSize)

	go s.streamWorker(ctx, streamOpts, resultCh)

	return resultCh
}

func (s *Store[T]) streamWorker(ctx context.Context, streamOpts storagemodels.StreamOptions, resultCh chan<- storagemodels.StreamResult[T]) {
	defer close(resultCh)

	start := time.Now()
	pageSize := max(int(streamOpts.PageSize), 1)
	var index int64
	var failures []error

	send := func(result storagemodels.StreamResult[T]) bool {
		select {
		case <-ctx.Done():
			return false
		case resultCh <- result:
			return true
		}
	}
	meta := func() storagemodels.StreamMeta {
		return storagemodels.StreamMeta{
			Index:      index,
			PageNumber: int(index)/pageSize + 1,
			Timestamp:  time.Now(),
		}
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if streamOpts.PageSize > 0 {
		findOpts.SetBatchSize(streamOpts.PageSize)
	}

	cursor, err := s.collection.Find(ctx, bson.D{}, findOpts)
	if err != nil {
		send(storagemodels.StreamResult[T]{Error: fmt.Errorf("failed to query %s: %w", s.entityType, err), Meta: meta()})
		return
	}
	defer func() {
		_ = cursor.Close(context.Background())
	}()

	for cursor.Next(ctx) {
		var entity T
		if err := cursor.Decode(&entity); err != nil {
			err = fmt.Errorf("failed to decode %s: %w", s.entityType, err)
			if streamOpts.ErrorHandler == nil || !streamOpts.ErrorHandler(err) {
				send(storagemodels.StreamResult[T]{Error: err, Meta: meta()})
				return
			}
			failures = append(failures, err)
			index++
			continue
		}
		if !send(storagemodels.StreamResult[T]{Item: entity, Meta: meta()}) {
			return
		}
		index++
	}
	if err := cursor.Err(); err != nil {
		if ctx.Err() == nil {
			send(storagemodels.StreamResult[T]{Error: fmt.Errorf("failed to iterate %s: %w", s.entityType, err), Meta: meta()})
		}
		return
	}

	if streamOpts.ProgressHandler != nil {
		progress := storagemodels.StreamProgress{
			ItemsProcessed: index,
			PagesProcessed: (int(index) + pageSize - 1) / pageSize,
			Errors:         failures,
			StartTime:      start,
		}
		if elapsed := time.Since(start).Seconds(); elapsed > 0 {
			progress.CurrentRate = float64(index) / elapsed
		}
		streamOpts.ProgressHandler(progress)
	}
}
