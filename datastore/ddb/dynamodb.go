/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sirupsen/logrus"

	"github.com/suparena/repository/errors"
	"github.com/suparena/repository/registry"
	"github.com/suparena/repository/storagemodels"
)

// EntityTypeAttribute holds the registered type name of every stored item.
const EntityTypeAttribute = "EntityType"

// Client is the subset of the DynamoDB API used by DynamodbDataStore.
// *dynamodb.Client satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
	PutItem(ctx context.Context, params *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *sdk.DeleteItemInput, optFns ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error)
	Scan(ctx context.Context, params *sdk.ScanInput, optFns ...func(*sdk.Options)) (*sdk.ScanOutput, error)
}

// DynamodbDataStore implements datastore.DataStore[T] by using AWS DynamoDB as the underlying data store.
// Items of every type share one table; the EntityType attribute tells them apart.
type DynamodbDataStore[T any] struct {
	client    Client
	tableName string
	logger    *logrus.Entry
}

// Option configures a DynamodbDataStore.
type Option func(*settings)

type settings struct {
	endpoint string
	logger   *logrus.Entry
}

// WithEndpoint overrides the DynamoDB endpoint, e.g. for DynamoDB Local.
func WithEndpoint(endpoint string) Option {
	return func(s *settings) {
		s.endpoint = endpoint
	}
}

// WithLogger sets the logger used by the store.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

func applyOptions(opts []Option) settings {
	s := settings{logger: logrus.WithField("subsystem", "ddb")}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

var macroPattern = regexp.MustCompile(`{([^}]+)}`)

func expandMacros(indexMap map[string]string, keysInput any) (map[string]string, error) {
	av, err := attributevalue.MarshalMap(keysInput)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal keysInput: %w", err)
	}

	res := make(map[string]string, len(indexMap))

	for fieldName, template := range indexMap {
		expanded := macroPattern.ReplaceAllStringFunc(template, func(macro string) string {
			// macro is something like "{ID}"
			key := strings.Trim(macro, "{}")

			val, ok := av[key]
			if !ok {
				return ""
			}

			switch tv := val.(type) {
			case *types.AttributeValueMemberS:
				return tv.Value
			case *types.AttributeValueMemberN:
				return tv.Value
			case *types.AttributeValueMemberBOOL:
				return fmt.Sprintf("%v", tv.Value)
			default:
				// NULL, binary and set values cannot be part of a key
				return ""
			}
		})
		res[fieldName] = expanded
	}

	return res, nil
}

// NewDynamoDBClient initializes a DynamoDB client using static AWS credentials.
func NewDynamoDBClient(ctx context.Context, awsAccessKey, awsSecretKey, awsRegion string, opts ...Option) (*sdk.Client, error) {
	s := applyOptions(opts)

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(awsRegion),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(awsAccessKey, awsSecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := sdk.NewFromConfig(cfg, func(o *sdk.Options) {
		if s.endpoint != "" {
			o.BaseEndpoint = aws.String(s.endpoint)
		}
	})

	s.logger.WithFields(logrus.Fields{
		"region":   awsRegion,
		"endpoint": s.endpoint,
	}).Info("DynamoDB client initialized")
	return client, nil
}

// NewDynamodbDataStore constructs a new DynamodbDataStore for type T.
func NewDynamodbDataStore[T any](awsAccessKey, awsSecretKey, awsRegion, awsDDBTableName string, opts ...Option) (*DynamodbDataStore[T], error) {
	if awsDDBTableName == "" {
		return nil, errors.NewValidationError("table", "DynamoDB table name is required")
	}

	client, err := NewDynamoDBClient(context.Background(), awsAccessKey, awsSecretKey, awsRegion, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create DynamoDB client: %w", err)
	}

	return NewWithClient[T](client, awsDDBTableName, opts...), nil
}

// NewWithClient constructs a DynamodbDataStore around an existing client.
func NewWithClient[T any](client Client, tableName string, opts ...Option) *DynamodbDataStore[T] {
	s := applyOptions(opts)
	return &DynamodbDataStore[T]{
		client:    client,
		tableName: tableName,
		logger: s.logger.WithFields(logrus.Fields{
			"table":  tableName,
			"entity": registry.TypeName[T](),
		}),
	}
}

// GetOne retrieves a single item from DynamoDB using a string key.
func (d *DynamodbDataStore[T]) GetOne(ctx context.Context, key string) (*T, error) {
	keyMap, err := d.itemKey(key)
	if err != nil {
		return nil, err
	}

	out, err := d.client.GetItem(ctx, &sdk.GetItemInput{
		TableName: &d.tableName,
		Key:       keyMap,
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem error: %w", err)
	}
	if out.Item == nil {
		return nil, errors.NewNotFoundError(registry.TypeName[T](), key)
	}

	result := new(T)
	if err := attributevalue.UnmarshalMap(out.Item, result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return result, nil
}

// Put stores the given entity, using the registered index map to populate
// partition/sort keys (and possibly GSIs).
func (d *DynamodbDataStore[T]) Put(ctx context.Context, entity T, cond storagemodels.PutCondition) error {
	indexMap, ok := registry.GetIndexMap[T]()
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrNoIndexMap, registry.TypeName[T]())
	}

	av, err := attributevalue.MarshalMap(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}

	expanded, err := expandMacros(indexMap, entity)
	if err != nil {
		return err
	}
	if _, err := buildKeyFromExpanded(expanded); err != nil {
		return errors.NewValidationError("key", err.Error())
	}

	for k, v := range expanded {
		av[k] = &types.AttributeValueMemberS{Value: v}
	}
	av[EntityTypeAttribute] = &types.AttributeValueMemberS{Value: registry.TypeName[T]()}

	input := &sdk.PutItemInput{
		TableName: &d.tableName,
		Item:      av,
	}
	switch cond {
	case storagemodels.PutIfAbsent:
		input.ConditionExpression = aws.String("attribute_not_exists(PK)")
	case storagemodels.PutIfExists:
		input.ConditionExpression = aws.String("attribute_exists(PK)")
	}

	_, err = d.client.PutItem(ctx, input)
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if stderrors.As(err, &cfe) {
			pk := expanded["PK"]
			if cond == storagemodels.PutIfAbsent {
				return errors.NewAlreadyExistsError(registry.TypeName[T](), pk)
			}
			return errors.NewNotFoundError(registry.TypeName[T](), pk)
		}
		return fmt.Errorf("PutItem failed: %w", err)
	}

	d.logger.WithFields(logrus.Fields{
		"pk":        expanded["PK"],
		"condition": cond.String(),
	}).Debug("item stored")
	return nil
}

// Delete removes an item from DynamoDB using a string key.
func (d *DynamodbDataStore[T]) Delete(ctx context.Context, key string) error {
	keyMap, err := d.itemKey(key)
	if err != nil {
		return err
	}

	out, err := d.client.DeleteItem(ctx, &sdk.DeleteItemInput{
		TableName:    &d.tableName,
		Key:          keyMap,
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		var cfe *types.ConditionalCheckFailedException
		if stderrors.As(err, &cfe) {
			return errors.NewConditionFailedError("delete", err.Error())
		}
		return fmt.Errorf("failed to delete item in DynamoDB: %w", err)
	}
	if len(out.Attributes) == 0 {
		return errors.NewNotFoundError(registry.TypeName[T](), key)
	}
	return nil
}

// itemKey builds the DynamoDB primary key for a string entity key.
func (d *DynamodbDataStore[T]) itemKey(key string) (map[string]types.AttributeValue, error) {
	if key == "" {
		return nil, errors.NewValidationError("key", "key must not be empty")
	}
	indexMap, ok := registry.GetIndexMap[T]()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrNoIndexMap, registry.TypeName[T]())
	}

	keyMap, err := buildKeyFromExpanded(expandStringKey(indexMap, key))
	if err != nil {
		return nil, fmt.Errorf("failed to build key: %w", err)
	}
	return keyMap, nil
}

// buildKeyFromExpanded builds a DynamoDB key from the expanded index map.
// The expanded map must hold non-empty values for "PK" and "SK".
func buildKeyFromExpanded(expanded map[string]string) (map[string]types.AttributeValue, error) {
	pk, okPK := expanded["PK"]
	sk, okSK := expanded["SK"]

	if !okPK || !okSK || pk == "" || sk == "" {
		return nil, fmt.Errorf("expanded index map missing valid PK or SK")
	}

	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}, nil
}

// expandStringKey replaces every macro in the index map templates with key.
// Templates for PK and SK are expected to reference only the primary key field.
func expandStringKey(indexMap map[string]string, key string) map[string]string {
	expanded := make(map[string]string, len(indexMap))
	for field, template := range indexMap {
		expanded[field] = macroPattern.ReplaceAllLiteralString(template, key)
	}
	return expanded
}
