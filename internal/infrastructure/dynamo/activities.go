package dynamo

import (
	"context"
	"fmt"

	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// batchWriteLimit is the maximum number of requests DynamoDB accepts per BatchWriteItem call.
const batchWriteLimit = 25

// ActivityRepo provides typed DynamoDB operations for the activities table.
type ActivityRepo struct {
	client    API
	tableName string
}

func NewActivityRepo(client API, tableName string) *ActivityRepo {
	return &ActivityRepo{client: client, tableName: tableName}
}

func (r *ActivityRepo) Put(ctx context.Context, a *domain.Activity) error {
	item, err := attributevalue.MarshalMap(a)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// Recent queries the user_id-activity_id GSI newest first. Activity IDs are ULIDs,
// so their byte order is creation order.
func (r *ActivityRepo) Recent(ctx context.Context, userID string, limit int) ([]domain.Activity, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexUserActivity),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, err
	}
	activities := []domain.Activity{}
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &activities); err != nil {
		return nil, err
	}
	return activities, nil
}

// DeleteByUser removes every activity owned by userID.
func (r *ActivityRepo) DeleteByUser(ctx context.Context, userID string) error {
	var ids []string
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexUserActivity),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ProjectionExpression:   aws.String(fieldActivity),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	}
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return err
		}
		for _, item := range out.Items {
			if v, ok := item[fieldActivity].(*types.AttributeValueMemberS); ok {
				ids = append(ids, v.Value)
			}
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	for start := 0; start < len(ids); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(ids))
		reqs := make([]types.WriteRequest, 0, end-start)
		for _, id := range ids[start:end] {
			reqs = append(reqs, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: strKey(fieldActivity, id)},
			})
		}
		if err := r.batchDelete(ctx, reqs); err != nil {
			return err
		}
	}
	return nil
}

func (r *ActivityRepo) batchDelete(ctx context.Context, reqs []types.WriteRequest) error {
	pending := map[string][]types.WriteRequest{r.tableName: reqs}
	for attempt := 0; attempt < 5 && len(pending[r.tableName]) > 0; attempt++ {
		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
		if err != nil {
			return err
		}
		pending = out.UnprocessedItems
	}
	if n := len(pending[r.tableName]); n > 0 {
		return fmt.Errorf("batch delete activities: %d items unprocessed", n)
	}
	return nil
}
