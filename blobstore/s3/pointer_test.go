package s3

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/santhoshtr/topictrends/blobstore"
)

// mockDDBClient is an in-memory DynamoDB with conditional-put
// semantics, keyed by the wiki partition key.
type mockDDBClient struct {
	mu    sync.RWMutex
	items map[string]map[string]types.AttributeValue
}

func newMockDDBClient() *mockDDBClient {
	return &mockDDBClient{
		items: make(map[string]map[string]types.AttributeValue),
	}
}

func (m *mockDDBClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wiki := params.Item["wiki"].(*types.AttributeValueMemberS).Value
	existing, exists := m.items[wiki]

	if params.ConditionExpression != nil {
		switch *params.ConditionExpression {
		case "attribute_not_exists(wiki)":
			if exists {
				return nil, &types.ConditionalCheckFailedException{Message: aws.String("pointer already exists")}
			}
		case "manifest = :from":
			from := params.ExpressionAttributeValues[":from"].(*types.AttributeValueMemberS).Value
			if !exists || existing["manifest"].(*types.AttributeValueMemberS).Value != from {
				return nil, &types.ConditionalCheckFailedException{Message: aws.String("pointer moved")}
			}
		}
	}

	m.items[wiki] = params.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDDBClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wiki := params.Key["wiki"].(*types.AttributeValueMemberS).Value
	if item, ok := m.items[wiki]; ok {
		return &dynamodb.GetItemOutput{Item: item}, nil
	}
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockDDBClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wiki := params.Key["wiki"].(*types.AttributeValueMemberS).Value
	delete(m.items, wiki)
	return &dynamodb.DeleteItemOutput{}, nil
}

func TestPointerStore_FirstPromotion(t *testing.T) {
	ctx := context.Background()
	ps := NewPointerStore(newMockDDBClient(), "topictrends-pointers")

	_, err := ps.Current(ctx, "enwiki")
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	require.NoError(t, ps.Promote(ctx, "enwiki", "", "MANIFEST-000001.json"))

	current, err := ps.Current(ctx, "enwiki")
	require.NoError(t, err)
	assert.Equal(t, "MANIFEST-000001.json", current)
}

func TestPointerStore_PromoteChain(t *testing.T) {
	ctx := context.Background()
	ps := NewPointerStore(newMockDDBClient(), "topictrends-pointers")

	require.NoError(t, ps.Promote(ctx, "enwiki", "", "MANIFEST-000001.json"))
	require.NoError(t, ps.Promote(ctx, "enwiki", "MANIFEST-000001.json", "MANIFEST-000002.json"))

	current, err := ps.Current(ctx, "enwiki")
	require.NoError(t, err)
	assert.Equal(t, "MANIFEST-000002.json", current)
}

func TestPointerStore_StalePromotionFails(t *testing.T) {
	ctx := context.Background()
	ps := NewPointerStore(newMockDDBClient(), "topictrends-pointers")

	require.NoError(t, ps.Promote(ctx, "enwiki", "", "MANIFEST-000001.json"))
	require.NoError(t, ps.Promote(ctx, "enwiki", "MANIFEST-000001.json", "MANIFEST-000002.json"))

	// A writer that still believes 000001 is current must lose.
	err := ps.Promote(ctx, "enwiki", "MANIFEST-000001.json", "MANIFEST-000003.json")
	assert.ErrorIs(t, err, ErrConcurrentModification)

	current, err := ps.Current(ctx, "enwiki")
	require.NoError(t, err)
	assert.Equal(t, "MANIFEST-000002.json", current)
}

func TestPointerStore_DoubleInitFails(t *testing.T) {
	ctx := context.Background()
	ps := NewPointerStore(newMockDDBClient(), "topictrends-pointers")

	require.NoError(t, ps.Promote(ctx, "enwiki", "", "MANIFEST-000001.json"))
	err := ps.Promote(ctx, "enwiki", "", "MANIFEST-000009.json")
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestPointerStore_ConcurrentPromotions(t *testing.T) {
	ctx := context.Background()
	ps := NewPointerStore(newMockDDBClient(), "topictrends-pointers")

	require.NoError(t, ps.Promote(ctx, "enwiki", "", "MANIFEST-000001.json"))

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes, conflicts := 0, 0

	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ps.Promote(ctx, "enwiki", "MANIFEST-000001.json", fmt.Sprintf("MANIFEST-%06d.json", i+2))
			mu.Lock()
			defer mu.Unlock()
			switch err {
			case nil:
				successes++
			case ErrConcurrentModification:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "exactly one writer wins the CAS")
	assert.Equal(t, 4, conflicts)
}

func TestPointerStore_WikisAreIsolated(t *testing.T) {
	ctx := context.Background()
	ps := NewPointerStore(newMockDDBClient(), "topictrends-pointers")

	require.NoError(t, ps.Promote(ctx, "enwiki", "", "MANIFEST-000003.json"))
	require.NoError(t, ps.Promote(ctx, "dewiki", "", "MANIFEST-000007.json"))

	en, err := ps.Current(ctx, "enwiki")
	require.NoError(t, err)
	de, err := ps.Current(ctx, "dewiki")
	require.NoError(t, err)
	assert.Equal(t, "MANIFEST-000003.json", en)
	assert.Equal(t, "MANIFEST-000007.json", de)
}

func TestPointerStore_Clear(t *testing.T) {
	ctx := context.Background()
	ps := NewPointerStore(newMockDDBClient(), "topictrends-pointers")

	require.NoError(t, ps.Promote(ctx, "enwiki", "", "MANIFEST-000001.json"))
	require.NoError(t, ps.Clear(ctx, "enwiki"))

	_, err := ps.Current(ctx, "enwiki")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	assert.NoError(t, ps.Clear(ctx, "enwiki"), "clearing a missing pointer is not an error")
}
