/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	stderrors "errors"
	"fmt"
	"maps"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"

	"github.com/suparena/repository/registry"
	"github.com/suparena/repository/storagemodels"
)

// Stream scans every item of type T in the table, page by page.
// Items of other entity types sharing the table are filtered out server side.
func (d *DynamodbDataStore[T]) Stream(ctx context.Context, opts ...storagemodels.StreamOption) <-chan storagemodels.StreamResult[T] {
	options := storagemodels.ApplyStreamOptions(opts...)

	resultCh := make(chan storagemodels.StreamResult[T], options.BufferSize)

	go d.streamWorker(ctx, options, resultCh)

	return resultCh
}

// streamWorker handles the actual streaming logic
func (d *DynamodbDataStore[T]) streamWorker(
	ctx context.Context,
	options storagemodels.StreamOptions,
	resultCh chan<- storagemodels.StreamResult[T],
) {
	defer close(resultCh)

	var itemIndex int64
	var pageNumber int
	var failures []error
	startTime := time.Now()

	reportProgress := func() {
		if options.ProgressHandler == nil {
			return
		}
		progress := storagemodels.StreamProgress{
			ItemsProcessed: itemIndex,
			PagesProcessed: pageNumber,
			Errors:         failures,
			StartTime:      startTime,
		}
		if elapsed := time.Since(startTime).Seconds(); elapsed > 0 {
			progress.CurrentRate = float64(progress.ItemsProcessed) / elapsed
		}
		options.ProgressHandler(progress)
	}

	send := func(result storagemodels.StreamResult[T]) bool {
		select {
		case <-ctx.Done():
			return false
		case resultCh <- result:
			return true
		}
	}

	input := &dynamodb.ScanInput{
		TableName:                &d.tableName,
		FilterExpression:         aws.String("#et = :et"),
		ExpressionAttributeNames: map[string]string{"#et": EntityTypeAttribute},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":et": &types.AttributeValueMemberS{Value: registry.TypeName[T]()},
		},
	}
	if options.PageSize > 0 {
		input.Limit = aws.Int32(options.PageSize)
	}

	for {
		if ctx.Err() != nil {
			return
		}

		out, err := d.scanWithRetry(ctx, input, options)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if options.ErrorHandler == nil || !options.ErrorHandler(err) {
				d.logger.WithError(err).WithField("page", pageNumber+1).Warn("scan aborted")
				send(storagemodels.StreamResult[T]{
					Error: fmt.Errorf("scan failed: %w", err),
					Meta: storagemodels.StreamMeta{
						Index:      itemIndex,
						PageNumber: pageNumber + 1,
						Timestamp:  time.Now(),
					},
				})
				return
			}
			// The handler chose to continue; retry the same page.
			failures = append(failures, err)
			continue
		}

		pageNumber++

		for _, item := range out.Items {
			result := d.processItem(item, itemIndex, pageNumber)
			itemIndex++

			if !send(result) {
				return
			}
			if result.Error != nil {
				failures = append(failures, result.Error)
			}
		}

		reportProgress()

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	d.logger.WithFields(logrus.Fields{
		"items": itemIndex,
		"pages": pageNumber,
	}).Debug("scan complete")
}

// scanWithRetry executes a scan with configurable retry logic
func (d *DynamodbDataStore[T]) scanWithRetry(
	ctx context.Context,
	input *dynamodb.ScanInput,
	options storagemodels.StreamOptions,
) (*dynamodb.ScanOutput, error) {
	var lastErr error

	for attempt := 0; attempt <= options.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := d.client.Scan(ctx, input)
		if err == nil {
			return out, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			return nil, err
		}

		if attempt < options.MaxRetries {
			// Linear backoff
			backoff := time.Duration(attempt+1) * options.RetryBackoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("scan failed after %d retries: %w", options.MaxRetries, lastErr)
}

// processItem converts a DynamoDB item to a typed result
func (d *DynamodbDataStore[T]) processItem(
	item map[string]types.AttributeValue,
	index int64,
	pageNumber int,
) storagemodels.StreamResult[T] {
	meta := storagemodels.StreamMeta{
		Index:      index,
		PageNumber: pageNumber,
		Timestamp:  time.Now(),
	}

	attrs := maps.Clone(item)
	delete(attrs, EntityTypeAttribute)

	var result T
	if err := attributevalue.UnmarshalMap(attrs, &result); err != nil {
		return storagemodels.StreamResult[T]{
			Error: fmt.Errorf("failed to unmarshal item to type %T: %w", result, err),
			Meta:  meta,
		}
	}
	return storagemodels.StreamResult[T]{Item: result, Meta: meta}
}

// isRetryableError determines if a DynamoDB error is retryable
func isRetryableError(err error) bool {
	var throughput *types.ProvisionedThroughputExceededException
	var limit *types.RequestLimitExceeded
	var internal *types.InternalServerError
	if stderrors.As(err, &throughput) || stderrors.As(err, &limit) || stderrors.As(err, &internal) {
		return true
	}

	var retryable interface{ IsRetryable() bool }
	if stderrors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	return false
}
