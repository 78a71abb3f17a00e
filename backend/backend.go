/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package backend

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/suparena/repository"
	"github.com/suparena/repository/config"
	"github.com/suparena/repository/datastore"
	"github.com/suparena/repository/datastore/ddb"
	"github.com/suparena/repository/datastore/gormstore"
	"github.com/suparena/repository/datastore/memory"
	"github.com/suparena/repository/datastore/mongostore"
	"github.com/suparena/repository/registry"
)

// Closer releases the connections held by an opened backend.
type Closer func(ctx context.Context) error

func noop(context.Context) error { return nil }

// Option configures Open.
type Option func(*settings)

type settings struct {
	logger *logrus.Entry
}

// WithLogger sets the logger handed to the backend. Open sets its level to cfg.LogLevel.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// Open validates cfg, applies cfg.LogLevel to the logger and returns the
// DataStore it selects for T. keyOf may be nil, in which case the key function registered for T is used by the backends
// that need one.
func Open[T any](ctx context.Context, cfg *config.Config, keyOf registry.KeyFunc[T], opts ...Option) (datastore.DataStore[T], Closer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	s := settings{logger: logrus.WithField("subsystem", "backend")}
	for _, opt := range opts {
		opt(&s)
	}
	level, err := cfg.Level()
	if err != nil {
		return nil, nil, err
	}
	s.logger.Logger.SetLevel(level)

	entity := registry.TypeName[T]()
	log := s.logger.WithFields(logrus.Fields{"backend": cfg.Backend, "entity": entity})

	keyed := func() (registry.KeyFunc[T], error) {
		if keyOf != nil {
			return keyOf, nil
		}
		return registry.GetKeyFunc[T]()
	}

	switch cfg.Backend {
	case config.BackendMemory:
		fn, err := keyed()
		if err != nil {
			return nil, nil, err
		}
		log.Debug("backend opened")
		return memory.New(fn), noop, nil

	case config.BackendDynamoDB:
		d := cfg.DynamoDB
		store, err := ddb.NewDynamodbDataStore[T](d.AccessKey, d.SecretKey, d.Region, d.Table,
			ddb.WithEndpoint(d.Endpoint), ddb.WithLogger(s.logger.WithField("subsystem", "ddb")))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open dynamodb backend: %w", err)
		}
		log.WithField("table", d.Table).Info("backend opened")
		return store, noop, nil

	case config.BackendPostgres:
		p := cfg.Postgres
		db, err := gormstore.Open(p.DSN, gormstore.PoolConfig{
			MaxOpenConns:    p.MaxOpenConns,
			MaxIdleConns:    p.MaxIdleConns,
			ConnMaxLifetime: p.ConnMaxLifetime,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open postgres backend: %w", err)
		}
		closeDB := func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}

		store, err := gormstore.New[T](db, gormstore.WithLogger(s.logger.WithField("subsystem", "gormstore")))
		if err != nil {
			_ = closeDB(ctx)
			return nil, nil, err
		}
		log.Info("backend opened")
		return store, closeDB, nil

	case config.BackendMongo:
		fn, err := keyed()
		if err != nil {
			return nil, nil, err
		}
		m := cfg.Mongo
		client, err := mongostore.Connect(ctx, m.URI, m.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open mongo backend: %w", err)
		}

		collection := m.Collection
		if collection == "" {
			collection = entity
		}
		store := mongostore.New(client.Database(m.Database).Collection(collection), fn,
			mongostore.WithLogger(s.logger.WithField("subsystem", "mongostore")))
		log.WithField("collection", collection).Info("backend opened")
		return store, client.Disconnect, nil
	}

	return nil, nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
}

// OpenRepository opens the backend selected by cfg and wraps it in a
// repository.BaseRepository.
func OpenRepository[T any](ctx context.Context, cfg *config.Config, keyOf registry.KeyFunc[T], opts ...Option) (*repository.BaseRepository[T], Closer, error) {
	store, closer, err := Open[T](ctx, cfg, keyOf, opts...)
	if err != nil {
		return nil, nil, err
	}

	var repoOpts []repository.Option[T]
	if keyOf != nil {
		repoOpts = append(repoOpts, repository.WithKeyFunc(keyOf))
	}
	repo, err := repository.New[T](store, repoOpts...)
	if err != nil {
		_ = closer(ctx)
		return nil, nil, err
	}
	return repo, closer, nil
}
