/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package backend opens the DataStore selected by a config.Config: the
// in-memory store, DynamoDB, PostgreSQL through GORM, or MongoDB.
package backend
