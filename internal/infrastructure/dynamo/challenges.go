package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ChallengeRepo stores verification challenges.
// PK: subject, SK: flow. purge_at is the table's TTL attribute.
type ChallengeRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewChallengeRepo(client API, tableName string) *ChallengeRepo {
	return &ChallengeRepo{client: client, tableName: tableName, now: time.Now}
}

func (r *ChallengeRepo) Put(ctx context.Context, c *domain.Challenge) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// Get returns domain.ErrNotFound for missing items and for items past purge_at
// that DynamoDB TTL has not removed yet.
func (r *ChallengeRepo) Get(ctx context.Context, flow domain.Flow, subject string) (*domain.Challenge, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            compositeKey(fieldSubject, subject, fieldFlow, string(flow)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
	}
	var c domain.Challenge
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, err
	}
	if c.PurgeAt > 0 && c.PurgeAt <= r.now().Unix() {
		return nil, fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
	}
	return &c, nil
}

func (r *ChallengeRepo) Delete(ctx context.Context, flow domain.Flow, subject string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey(fieldSubject, subject, fieldFlow, string(flow)),
	})
	return err
}

// DeleteIfCode deletes the item with a condition on its code, so only one caller wins.
func (r *ChallengeRepo) DeleteIfCode(ctx context.Context, flow domain.Flow, subject, code string) (bool, error) {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      compositeKey(fieldSubject, subject, fieldFlow, string(flow)),
		ConditionExpression:      aws.String("#c = :c"),
		ExpressionAttributeNames: map[string]string{"#c": "code"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: code},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// IncrementAttempts adds one to the attempts attribute under the same code condition as DeleteIfCode.
func (r *ChallengeRepo) IncrementAttempts(ctx context.Context, flow domain.Flow, subject, code string) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      compositeKey(fieldSubject, subject, fieldFlow, string(flow)),
		UpdateExpression:         aws.String("ADD #a :one"),
		ConditionExpression:      aws.String("#c = :c"),
		ExpressionAttributeNames: map[string]string{"#a": fieldAttempts, "#c": "code"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one": &types.AttributeValueMemberN{Value: "1"},
			":c":   &types.AttributeValueMemberS{Value: code},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return 0, fmt.Errorf("challenge not found: %w", domain.ErrNotFound)
		}
		return 0, err
	}
	n, ok := out.Attributes[fieldAttempts].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("update challenge: missing %s in response", fieldAttempts)
	}
	return strconv.Atoi(n.Value)
}
