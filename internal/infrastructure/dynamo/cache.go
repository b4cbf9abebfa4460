package dynamo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/scanpay-verify/internal/pkg/store"
)

var (
	_ store.Store   = (*Cache)(nil)
	_ store.Counter = (*Cache)(nil)
)

// cacheItem is one TTL'd entry. DynamoDB TTL deletion is lazy, so reads
// compare expires_at against the clock as well.
type cacheItem struct {
	Key       string `dynamodbav:"cache_key"`
	Value     string `dynamodbav:"value,omitempty"`
	Hits      int64  `dynamodbav:"hits,omitempty"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

// Cache is the durable fallback store: approvals, reference codes, QR quotes
// and rate-limit counters.
// PK: cache_key, TTL attribute: expires_at
type Cache struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewCache(client API, tableName string) *Cache {
	return &Cache{client: client, tableName: tableName, now: time.Now}
}

// expiry rounds ttl up to whole seconds, minimum one.
func (c *Cache) expiry(ttl time.Duration) int64 {
	secs := int64((ttl + time.Second - 1) / time.Second)
	return c.now().Unix() + max(secs, 1)
}

func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            strKey(fieldCacheKey, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, fmt.Errorf("cache get: %w", err)
	}
	if out.Item == nil {
		return false, nil
	}
	var it cacheItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return false, fmt.Errorf("unmarshal cache item: %w", err)
	}
	if it.ExpiresAt <= c.now().Unix() || it.Value == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(it.Value), dst); err != nil {
		return false, fmt.Errorf("decode cache value %s: %w", key, err)
	}
	return true, nil
}

func (c *Cache) Set(ctx context.Context, key string, val any, ttl time.Duration) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode cache value %s: %w", key, err)
	}
	item, err := attributevalue.MarshalMap(cacheItem{Key: key, Value: string(data), ExpiresAt: c.expiry(ttl)})
	if err != nil {
		return fmt.Errorf("marshal cache item: %w", err)
	}
	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      item,
	})
	return err
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       strKey(fieldCacheKey, key),
	})
	return err
}

// Incr bumps a live counter atomically. When the counter is missing or its
// window has elapsed it is replaced by a fresh one at 1; a concurrent
// replacement loses the condition and retries the increment once.
func (c *Cache) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := c.incrLive(ctx, key)
	if err == nil {
		return n, nil
	}
	var ccf *types.ConditionalCheckFailedException
	if !errors.As(err, &ccf) {
		return 0, fmt.Errorf("cache incr: %w", err)
	}

	now := c.now().Unix()
	item, err := attributevalue.MarshalMap(cacheItem{Key: key, Hits: 1, ExpiresAt: c.expiry(window)})
	if err != nil {
		return 0, fmt.Errorf("marshal counter: %w", err)
	}
	_, err = c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(c.tableName),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#k) OR #e <= :now"),
		ExpressionAttributeNames: map[string]string{"#k": fieldCacheKey, "#e": fieldExpiresAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": numAttr(now),
		},
	})
	if err == nil {
		return 1, nil
	}
	if !errors.As(err, &ccf) {
		return 0, fmt.Errorf("cache counter reset: %w", err)
	}
	return c.incrLive(ctx, key)
}

func (c *Cache) incrLive(ctx context.Context, key string) (int64, error) {
	out, err := c.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(c.tableName),
		Key:                      strKey(fieldCacheKey, key),
		UpdateExpression:         aws.String("ADD #h :one"),
		ConditionExpression:      aws.String("attribute_exists(#k) AND #e > :now"),
		ExpressionAttributeNames: map[string]string{"#h": fieldHits, "#k": fieldCacheKey, "#e": fieldExpiresAt},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": numAttr(1),
			":now": numAttr(c.now().Unix()),
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, err
	}
	hits, ok := out.Attributes[fieldHits].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("cache incr: missing %s", fieldHits)
	}
	return strconv.ParseInt(hits.Value, 10, 64)
}

// deleteLiveItem is the transactional counterpart of Delete: it only
// succeeds while the entry exists and has not expired.
func (c *Cache) deleteLiveItem(key string) *types.TransactWriteItem {
	return &types.TransactWriteItem{
		Delete: &types.Delete{
			TableName:                aws.String(c.tableName),
			Key:                      strKey(fieldCacheKey, key),
			ConditionExpression:      aws.String("attribute_exists(#k) AND #e > :now"),
			ExpressionAttributeNames: map[string]string{"#k": fieldCacheKey, "#e": fieldExpiresAt},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":now": numAttr(c.now().Unix()),
			},
		},
	}
}
