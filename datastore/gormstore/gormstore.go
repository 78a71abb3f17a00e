/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package gormstore implements the DataStore interface on a relational
// database through GORM. PostgreSQL is the supported dialect.
package gormstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"reflect"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"github.com/suparena/repository/errors"
	"github.com/suparena/repository/registry"
	"github.com/suparena/repository/storagemodels"
)

// uniqueViolation is the PostgreSQL SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

// PoolConfig tunes the underlying database/sql pool. Zero values keep the driver defaults.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open connects to PostgreSQL using dsn.
func Open(dsn string, pool PoolConfig) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.NewValidationError("dsn", "database URL is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
		Logger:                 logger.Default.LogMode(logger.Error),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}

	return db, nil
}

// Store is a GORM-backed datastore.DataStore[T]. T must be a GORM model with
// a single primary key column.
type Store[T any] struct {
	db         *gorm.DB
	primary    *schema.Field
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

// New creates a Store for model T on db.
func New[T any](db *gorm.DB, opts ...Option) (*Store[T], error) {
	s := settings{logger: logrus.WithField("subsystem", "gormstore")}
	for _, opt := range opts {
		opt(&s)
	}

	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(new(T)); err != nil {
		return nil, fmt.Errorf("failed to parse model %s: %w", registry.TypeName[T](), err)
	}
	primary := stmt.Schema.PrioritizedPrimaryField
	if primary == nil || len(stmt.Schema.PrimaryFields) != 1 {
		return nil, errors.NewValidationError("model", fmt.Sprintf("%s must have exactly one primary key", stmt.Schema.Name))
	}

	entityType := registry.TypeName[T]()
	return &Store[T]{
		db:         db,
		primary:    primary,
		entityType: entityType,
		logger: s.logger.WithFields(logrus.Fields{
			"table":  stmt.Schema.Table,
			"entity": entityType,
		}),
	}, nil
}

func (s *Store[T]) byKey(key string) clause.Expression {
	return clause.Eq{Column: clause.Column{Name: s.primary.DBName}, Value: key}
}

// keyOf reads the primary key of entity as a string.
func (s *Store[T]) keyOf(ctx context.Context, entity *T) string {
	value, zero := s.primary.ValueOf(ctx, reflect.ValueOf(entity).Elem())
	if zero {
		return ""
	}
	return fmt.Sprint(value)
}

// GetOne retrieves the row whose primary key equals key.
func (s *Store[T]) GetOne(ctx context.Context, key string) (*T, error) {
	if key == "" {
		return nil, errors.NewValidationError("key", "key must not be empty")
	}

	entity := new(T)
	err := s.db.WithContext(ctx).Where(s.byKey(key)).Take(entity).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NewNotFoundError(s.entityType, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %q: %w", s.entityType, key, err)
	}
	return entity, nil
}

// Put writes entity subject to cond.
func (s *Store[T]) Put(ctx context.Context, entity T, cond storagemodels.PutCondition) error {
	key := s.keyOf(ctx, &entity)
	if key == "" {
		return errors.NewValidationError("key", "unable to extract key from entity")
	}

	db := s.db.WithContext(ctx)
	switch cond {
	case storagemodels.PutIfAbsent:
		if err := db.Create(&entity).Error; err != nil {
			if isDuplicateKey(err) {
				return errors.NewAlreadyExistsError(s.entityType, key)
			}
			return fmt.Errorf("failed to insert %s %q: %w", s.entityType, key, err)
		}
	case storagemodels.PutIfExists:
		res := db.Model(&entity).Select("*").Updates(&entity)
		if res.Error != nil {
			return fmt.Errorf("failed to update %s %q: %w", s.entityType, key, res.Error)
		}
		if res.RowsAffected == 0 {
			return errors.NewNotFoundError(s.entityType, key)
		}
	default:
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: s.primary.DBName}},
			UpdateAll: true,
		}).Create(&entity).Error
		if err != nil {
			return fmt.Errorf("failed to upsert %s %q: %w", s.entityType, key, err)
		}
	}

	s.logger.WithFields(logrus.Fields{
		"key":       key,
		"condition": cond.String(),
	}).Debug("row stored")
	return nil
}

// Delete removes the row whose primary key equals key.
func (s *Store[T]) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.NewValidationError("key", "key must not be empty")
	}

	res := s.db.WithContext(ctx).Where(s.byKey(key)).Delete(new(T))
	if res.Error != nil {
		return fmt.Errorf("failed to delete %s %q: %w", s.entityType, key, res.Error)
	}
	if res.RowsAffected == 0 {
		return errors.NewNotFoundError(s.entityType, key)
	}
	return nil
}

// Stream reads every row ordered by primary key.
func (s *Store[T]) Stream(ctx context.Context, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	options := storagemodels.ApplyStreamOptions(opts...)
	resultCh := make(chan storagemodels.StreamResult[T], options.BufferSize)

	go s.streamWorker(ctx, options, resultCh)

	return resultCh
}

func (s *Store[T]) streamWorker(ctx context.Context, options storagemodels.StreamOptions, resultCh chan<- storagemodels.StreamResult[T]) {
	defer close(resultCh)

	start := time.Now()
	pageSize := max(int(options.PageSize), 1)
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

	db := s.db.WithContext(ctx)
	rows, err := db.Model(new(T)).
		Order(clause.OrderByColumn{Column: clause.Column{Name: s.primary.DBName}}).
		Rows()
	if err != nil {
		send(storagemodels.StreamResult[T]{Error: fmt.Errorf("failed to query %s: %w", s.entityType, err), Meta: meta()})
		return
	}
	defer rows.Close()

	for rows.Next() {
		var entity T
		if err := db.ScanRows(rows, &entity); err != nil {
			err = fmt.Errorf("failed to scan %s row: %w", s.entityType, err)
			if options.ErrorHandler == nil || !options.ErrorHandler(err) {
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
	if err := rows.Err(); err != nil {
		if ctx.Err() == nil {
			send(storagemodels.StreamResult[T]{Error: fmt.Errorf("failed to read %s rows: %w", s.entityType, err), Meta: meta()})
		}
		return
	}

	if options.ProgressHandler != nil {
		progress := storagemodels.StreamProgress{
			ItemsProcessed: index,
			PagesProcessed: (int(index) + pageSize - 1) / pageSize,
			Errors:         failures,
			StartTime:      start,
		}
		if elapsed := time.Since(start).Seconds(); elapsed > 0 {
			progress.CurrentRate = float64(index) / elapsed
		}
		options.ProgressHandler(progress)
	}
}

func isDuplicateKey(err error) bool {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
