/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package ddb

import (
	"context"
	stderrors "errors"
	"maps"
	"slices"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/suparena/repository/datastore"
	"github.com/suparena/repository/datastore/testmodels"
	"github.com/suparena/repository/errors"
	"github.com/suparena/repository/registry"
	"github.com/suparena/repository/storagemodels"
)

type Player struct {
	ID     string
	Name   string
	Rating int
}

type Team struct {
	ID   string
	Name string
}

type Unmapped struct {
	ID string
}

func init() {
	registry.RegisterType[Player]("Player")
	registry.RegisterIndexMap[Player](map[string]string{
		"PK":     "PLAYER#{ID}",
		"SK":     "PLAYER#{ID}",
		"GSI1PK": "NAME#{Name}",
	})

	registry.RegisterType[Team]("Team")
	registry.RegisterIndexMap[Team](map[string]string{
		"PK": "TEAM#{ID}",
		"SK": "TEAM#{ID}",
	})

	registry.RegisterIndexMap[testmodels.RatingSystem](map[string]string{
		"PK": "RATINGSYSTEM#{ID}",
		"SK": "RATINGSYSTEM#{ID}",
	})
}

var _ datastore.DataStore[Player] = (*DynamodbDataStore[Player])(nil)

// fakeClient is an in-memory stand-in for the DynamoDB API. It understands the
// condition and filter expressions issued by DynamodbDataStore and nothing more.
type fakeClient struct {
	mu        sync.Mutex
	items     map[string]map[string]types.AttributeValue
	scanErrs  []error
	scanCalls int
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string]map[string]types.AttributeValue)}
}

func stringAttr(av types.AttributeValue) string {
	if v, ok := av.(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func itemID(key map[string]types.AttributeValue) string {
	return stringAttr(key["PK"]) + "|" + stringAttr(key["SK"])
}

func (f *fakeClient) GetItem(ctx context.Context, params *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.items[itemID(params.Key)]
	if !ok {
		return &sdk.GetItemOutput{}, nil
	}
	return &sdk.GetItemOutput{Item: maps.Clone(item)}, nil
}

func (f *fakeClient) PutItem(ctx context.Context, params *sdk.PutItemInput, optFns ...func(*sdk.Options)) (*sdk.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := itemID(params.Item)
	_, exists := f.items[id]
	switch aws.ToString(params.ConditionExpression) {
	case "attribute_not_exists(PK)":
		if exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	case "attribute_exists(PK)":
		if !exists {
			return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
		}
	}
	f.items[id] = maps.Clone(params.Item)
	return &sdk.PutItemOutput{}, nil
}

func (f *fakeClient) DeleteItem(ctx context.Context, params *sdk.DeleteItemInput, optFns ...func(*sdk.Options)) (*sdk.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := itemID(params.Key)
	old, ok := f.items[id]
	if !ok {
		return &sdk.DeleteItemOutput{}, nil
	}
	delete(f.items, id)
	if params.ReturnValues != types.ReturnValueAllOld {
		return &sdk.DeleteItemOutput{}, nil
	}
	return &sdk.DeleteItemOutput{Attributes: old}, nil
}

func (f *fakeClient) Scan(ctx context.Context, params *sdk.ScanInput, optFns ...func(*sdk.Options)) (*sdk.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.scanCalls++
	if len(f.scanErrs) > 0 {
		err := f.scanErrs[0]
		f.scanErrs = f.scanErrs[1:]
		return nil, err
	}

	entityType := stringAttr(params.ExpressionAttributeValues[":et"])
	var ids []string
	for id, item := range f.items {
		if stringAttr(item[EntityTypeAttribute]) == entityType {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	if params.ExclusiveStartKey != nil {
		start := itemID(params.ExclusiveStartKey)
		pos, _ := slices.BinarySearch(ids, start)
		for pos < len(ids) && ids[pos] <= start {
			pos++
		}
		ids = ids[pos:]
	}

	out := &sdk.ScanOutput{}
	limit := len(ids)
	if params.Limit != nil && int(*params.Limit) < limit {
		limit = int(*params.Limit)
	}
	for _, id := range ids[:limit] {
		out.Items = append(out.Items, maps.Clone(f.items[id]))
	}
	if limit < len(ids) {
		last := f.items[ids[limit-1]]
		out.LastEvaluatedKey = map[string]types.AttributeValue{"PK": last["PK"], "SK": last["SK"]}
	}
	return out, nil
}

func TestExpandMacros(t *testing.T) {
	indexMap := map[string]string{
		"PK": "PLAYER#{ID}",
		"SK": "RATING#{Rating}",
		"X":  "{Missing}",
	}

	expanded, err := expandMacros(indexMap, Player{ID: "p1", Name: "Ann", Rating: 5})
	if err != nil {
		t.Fatalf("expandMacros failed: %v", err)
	}

	if expanded["PK"] != "PLAYER#p1" {
		t.Errorf("Expected PK PLAYER#p1, got %s", expanded["PK"])
	}
	if expanded["SK"] != "RATING#5" {
		t.Errorf("Expected SK RATING#5, got %s", expanded["SK"])
	}
	if expanded["X"] != "" {
		t.Errorf("Expected unknown field to expand to empty, got %s", expanded["X"])
	}
}

func TestExpandStringKey(t *testing.T) {
	expanded := expandStringKey(map[string]string{
		"PK": "PLAYER#{ID}",
		"SK": "PLAYER#{ID}",
	}, "p$1")

	if expanded["PK"] != "PLAYER#p$1" || expanded["SK"] != "PLAYER#p$1" {
		t.Fatalf("Unexpected expansion: %v", expanded)
	}
}

func TestBuildKeyFromExpanded(t *testing.T) {
	if _, err := buildKeyFromExpanded(map[string]string{"PK": "A"}); err == nil {
		t.Error("Expected error for missing SK")
	}
	if _, err := buildKeyFromExpanded(map[string]string{"PK": "A", "SK": ""}); err == nil {
		t.Error("Expected error for empty SK")
	}

	key, err := buildKeyFromExpanded(map[string]string{"PK": "A", "SK": "B", "GSI1PK": "C"})
	if err != nil {
		t.Fatalf("buildKeyFromExpanded failed: %v", err)
	}
	if len(key) != 2 || stringAttr(key["PK"]) != "A" || stringAttr(key["SK"]) != "B" {
		t.Fatalf("Unexpected key: %v", key)
	}
}

func TestDynamodbDataStore(t *testing.T) {
	ctx := context.Background()

	t.Run("PutAndGet", func(t *testing.T) {
		client := newFakeClient()
		store := NewWithClient[Player](client, "test-table")

		if err := store.Put(ctx, Player{ID: "p1", Name: "Ann", Rating: 1500}, storagemodels.PutAlways); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		item := client.items["PLAYER#p1|PLAYER#p1"]
		if item == nil {
			t.Fatal("Item was not stored under the expanded key")
		}
		if got := stringAttr(item[EntityTypeAttribute]); got != "Player" {
			t.Errorf("Expected EntityType Player, got %q", got)
		}
		if got := stringAttr(item["GSI1PK"]); got != "NAME#Ann" {
			t.Errorf("Expected GSI1PK NAME#Ann, got %q", got)
		}

		player, err := store.GetOne(ctx, "p1")
		if err != nil {
			t.Fatalf("GetOne failed: %v", err)
		}
		if player.Name != "Ann" || player.Rating != 1500 {
			t.Fatalf("Unexpected player: %+v", player)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		store := NewWithClient[Player](newFakeClient(), "test-table")
		if _, err := store.GetOne(ctx, "nobody"); !errors.IsNotFound(err) {
			t.Fatalf("Expected not found, got: %v", err)
		}
		if _, err := store.GetOne(ctx, ""); !errors.IsValidationError(err) {
			t.Fatalf("Expected validation error for empty key, got: %v", err)
		}
	})

	t.Run("PutConditions", func(t *testing.T) {
		store := NewWithClient[Player](newFakeClient(), "test-table")

		if err := store.Put(ctx, Player{ID: "p1", Name: "v1"}, storagemodels.PutIfExists); !errors.IsNotFound(err) {
			t.Fatalf("PutIfExists on missing item should be not found, got: %v", err)
		}
		if err := store.Put(ctx, Player{ID: "p1", Name: "v1"}, storagemodels.PutIfAbsent); err != nil {
			t.Fatalf("PutIfAbsent failed: %v", err)
		}
		if err := store.Put(ctx, Player{ID: "p1", Name: "v2"}, storagemodels.PutIfAbsent); !errors.IsAlreadyExists(err) {
			t.Fatalf("PutIfAbsent on existing item should be already exists, got: %v", err)
		}
		if err := store.Put(ctx, Player{ID: "p1", Name: "v3"}, storagemodels.PutIfExists); err != nil {
			t.Fatalf("PutIfExists failed: %v", err)
		}

		player, err := store.GetOne(ctx, "p1")
		if err != nil {
			t.Fatalf("GetOne failed: %v", err)
		}
		if player.Name != "v3" {
			t.Fatalf("Expected v3, got %s", player.Name)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		client := newFakeClient()
		store := NewWithClient[Player](client, "test-table")

		if err := store.Put(ctx, Player{ID: "p1"}, storagemodels.PutAlways); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if err := store.Delete(ctx, "p1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if len(client.items) != 0 {
			t.Fatalf("Expected empty table, got %d items", len(client.items))
		}
		if err := store.Delete(ctx, "p1"); !errors.IsNotFound(err) {
			t.Fatalf("Expected not found on second delete, got: %v", err)
		}
	})

	t.Run("NoIndexMap", func(t *testing.T) {
		store := NewWithClient[Unmapped](newFakeClient(), "test-table")

		err := store.Put(ctx, Unmapped{ID: "u1"}, storagemodels.PutAlways)
		if !stderrors.Is(err, errors.ErrNoIndexMap) {
			t.Fatalf("Expected ErrNoIndexMap, got: %v", err)
		}
		if _, err := store.GetOne(ctx, "u1"); !stderrors.Is(err, errors.ErrNoIndexMap) {
			t.Fatalf("Expected ErrNoIndexMap from GetOne, got: %v", err)
		}
	})

	t.Run("RatingSystem", func(t *testing.T) {
		store := NewWithClient[testmodels.RatingSystem](newFakeClient(), "test-table")

		rs := testmodels.RatingSystem{
			ID:          aws.String("TTOakville"),
			Name:        aws.String("Oakville Table Tennis Ranking System (test)"),
			Description: aws.String("This is a test rating system for Oakville Table Tennis Club"),
		}
		if err := store.Put(ctx, rs, storagemodels.PutAlways); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		got, err := store.GetOne(ctx, "TTOakville")
		if err != nil {
			t.Fatalf("GetOne failed: %v", err)
		}
		if aws.ToString(got.Name) != aws.ToString(rs.Name) {
			t.Fatalf("Expected name %q, got %q", aws.ToString(rs.Name), aws.ToString(got.Name))
		}
	})
}
