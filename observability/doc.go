/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package observability traces repository operations with OpenTelemetry and
// counts them in Prometheus metrics.
//
// Metrics:
//
//	repository_operations_total{entity,operation,outcome}
//	repository_operation_duration_seconds{entity,operation}
//
// The outcome label is one of ok, not_found, already_exists, invalid,
// condition_failed or error.
package observability
