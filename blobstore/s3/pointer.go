package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/santhoshtr/topictrends/blobstore"
)

// DDBClient is the subset of the DynamoDB API the pointer store uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// ErrConcurrentModification is returned when a Promote loses a race
// with another writer.
var ErrConcurrentModification = errors.New("s3: concurrent pointer modification")

// PointerStore keeps the per-wiki CURRENT pointer in DynamoDB. S3 has
// no compare-and-set, so promotions go through a conditional PutItem:
// the ETL uploads a snapshot, then atomically repoints the wiki, and
// every mirror that reads the pointer afterwards sees the same
// manifest.
//
// Table schema: partition key "wiki" (string), one item per wiki.
// Create with:
//
//	aws dynamodb create-table \
//	  --table-name topictrends-pointers \
//	  --attribute-definitions AttributeName=wiki,AttributeType=S \
//	  --key-schema AttributeName=wiki,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type PointerStore struct {
	client DDBClient
	table  string
}

// NewPointerStore creates a pointer store over the given table.
func NewPointerStore(client DDBClient, table string) *PointerStore {
	return &PointerStore{client: client, table: table}
}

// Current returns the manifest name the wiki's pointer names. A wiki
// that was never promoted yields blobstore.ErrNotFound.
func (p *PointerStore) Current(ctx context.Context, wiki string) (string, error) {
	resp, err := p.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(p.table),
		Key: map[string]types.AttributeValue{
			"wiki": &types.AttributeValueMemberS{Value: wiki},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("s3: read pointer for %s: %w", wiki, err)
	}
	if len(resp.Item) == 0 {
		return "", blobstore.ErrNotFound
	}

	manifest, ok := resp.Item["manifest"].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("s3: pointer item for %s has no manifest attribute", wiki)
	}

	return manifest.Value, nil
}

// Promote repoints wiki from one manifest to another. An empty from
// asserts that no pointer exists yet. When the stored pointer is not
// from, Promote fails with ErrConcurrentModification and the caller
// should re-read Current and decide again.
func (p *PointerStore) Promote(ctx context.Context, wiki, from, to string) error {
	input := &dynamodb.PutItemInput{
		TableName: aws.String(p.table),
		Item: map[string]types.AttributeValue{
			"wiki":        &types.AttributeValueMemberS{Value: wiki},
			"manifest":    &types.AttributeValueMemberS{Value: to},
			"promoted_at": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	}

	if from == "" {
		input.ConditionExpression = aws.String("attribute_not_exists(wiki)")
	} else {
		input.ConditionExpression = aws.String("manifest = :from")
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":from": &types.AttributeValueMemberS{Value: from},
		}
	}

	if _, err := p.client.PutItem(ctx, input); err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrConcurrentModification
		}
		return fmt.Errorf("s3: promote %s to %s: %w", wiki, to, err)
	}

	return nil
}

// Clear removes the wiki's pointer. Clearing a missing pointer is not
// an error.
func (p *PointerStore) Clear(ctx context.Context, wiki string) error {
	_, err := p.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(p.table),
		Key: map[string]types.AttributeValue{
			"wiki": &types.AttributeValueMemberS{Value: wiki},
		},
	})
	if err != nil {
		return fmt.Errorf("s3: clear pointer for %s: %w", wiki, err)
	}
	return nil
}
