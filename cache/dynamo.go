// cache/dynamo.go
package cache

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const TierDynamo = "dynamodb"

// dynamoItem is the table row shape. expires_at doubles as the table's
// native TTL attribute, so DynamoDB reclaims rows on its own schedule.
type dynamoItem struct {
	CacheKey  string `dynamodbav:"cache_key"`
	Value     []byte `dynamodbav:"value"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
}

// DynamoTier is the durable layer shared across instances. Native TTL
// deletion lags expiry by up to 48h, so reads re-check expiry
// client-side and never serve a stale row.
type DynamoTier struct {
	client    *dynamodb.Client
	table     string
	available bool
}

// NewDynamoTier probes the table once at startup. A failed probe
// disables the tier for the life of the process rather than failing
// every request.
func NewDynamoTier(ctx context.Context, client *dynamodb.Client, table string) *DynamoTier {
	t := &DynamoTier{client: client, table: table}

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := client.DescribeTable(probeCtx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
	if err != nil {
		log.Printf("⚠️  DynamoDB cache tier disabled, table %s unreachable: %v", table, err)
		return t
	}
	t.available = true
	return t
}

func (t *DynamoTier) Name() string    { return TierDynamo }
func (t *DynamoTier) Available() bool { return t.available }

func (t *DynamoTier) Get(ctx context.Context, key string) ([]byte, time.Duration, error) {
	out, err := t.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(t.table),
		Key: map[string]types.AttributeValue{
			"cache_key": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, 0, err
	}
	if out.Item == nil {
		return nil, 0, ErrMiss
	}

	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, 0, err
	}
	remaining := time.Until(time.Unix(item.ExpiresAt, 0))
	if remaining <= 0 {
		return nil, 0, ErrMiss
	}
	return item.Value, remaining, nil
}

func (t *DynamoTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	item, err := attributevalue.MarshalMap(dynamoItem{
		CacheKey:  key,
		Value:     value,
		ExpiresAt: time.Now().Add(ttl).Unix(),
	})
	if err != nil {
		return err
	}
	_, err = t.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(t.table),
		Item:      item,
	})
	return err
}

func (t *DynamoTier) Delete(ctx context.Context, key string) error {
	_, err := t.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(t.table),
		Key: map[string]types.AttributeValue{
			"cache_key": &types.AttributeValueMemberS{Value: key},
		},
	})
	return err
}

// DeletePattern is a no-op: matching a glob against DynamoDB would
// need a full table scan per invalidation. Stale rows age out through
// TTL instead, and the memory and Redis tiers carry the pattern.
func (t *DynamoTier) DeletePattern(_ context.Context, _ string) (int, error) {
	return 0, nil
}
