package dynamo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Syddevv/SpenSyd-Server/internal/domain"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	args := m.Called(ctx, in)
	return &dynamodb.PutItemOutput{}, args.Error(0)
}

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}

func (m *mockAPI) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	args := m.Called(ctx, in)
	return &dynamodb.DeleteItemOutput{}, args.Error(0)
}

func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	if len(args) == 2 {
		out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
		return out, args.Error(1)
	}
	return &dynamodb.UpdateItemOutput{}, args.Error(0)
}

func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}

func (m *mockAPI) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.BatchWriteItemOutput)
	return out, args.Error(1)
}

// --- ChallengeRepo ---

func TestChallengeRepo_DeleteIfCode_ConditionFailed(t *testing.T) {
	api := new(mockAPI)
	repo := NewChallengeRepo(api, "challenges")
	api.On("DeleteItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.DeleteItemInput) bool {
		c, ok := in.ExpressionAttributeValues[":c"].(*types.AttributeValueMemberS)
		return ok && c.Value == "123456" && aws.ToString(in.ConditionExpression) == "#c = :c"
	})).Return(&types.ConditionalCheckFailedException{Message: aws.String("nope")})

	ok, err := repo.DeleteIfCode(context.Background(), domain.FlowSignup, "a@b.com", "123456")

	require.NoError(t, err)
	assert.False(t, ok)
	api.AssertExpectations(t)
}

func TestChallengeRepo_DeleteIfCode_Deleted(t *testing.T) {
	api := new(mockAPI)
	repo := NewChallengeRepo(api, "challenges")
	api.On("DeleteItem", mock.Anything, mock.Anything).Return(nil)

	ok, err := repo.DeleteIfCode(context.Background(), domain.FlowSignup, "a@b.com", "123456")

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChallengeRepo_DeleteIfCode_OtherError(t *testing.T) {
	api := new(mockAPI)
	repo := NewChallengeRepo(api, "challenges")
	api.On("DeleteItem", mock.Anything, mock.Anything).Return(errors.New("throttled"))

	ok, err := repo.DeleteIfCode(context.Background(), domain.FlowSignup, "a@b.com", "123456")

	require.Error(t, err)
	assert.False(t, ok)
}

func TestChallengeRepo_IncrementAttempts(t *testing.T) {
	api := new(mockAPI)
	repo := NewChallengeRepo(api, "challenges")
	api.On("UpdateItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.UpdateItemInput) bool {
		c, _ := in.ExpressionAttributeValues[":c"].(*types.AttributeValueMemberS)
		return aws.ToString(in.UpdateExpression) == "ADD #a :one" &&
			aws.ToString(in.ConditionExpression) == "#c = :c" &&
			in.ExpressionAttributeNames["#a"] == "attempts" &&
			c != nil && c.Value == "123456" &&
			in.ReturnValues == types.ReturnValueUpdatedNew
	})).Return(&dynamodb.UpdateItemOutput{
		Attributes: map[string]types.AttributeValue{"attempts": &types.AttributeValueMemberN{Value: "3"}},
	}, nil)

	n, err := repo.IncrementAttempts(context.Background(), domain.FlowSignup, "a@b.com", "123456")

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	api.AssertExpectations(t)
}

func TestChallengeRepo_IncrementAttempts_CodeChanged(t *testing.T) {
	api := new(mockAPI)
	repo := NewChallengeRepo(api, "challenges")
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, &types.ConditionalCheckFailedException{})

	_, err := repo.IncrementAttempts(context.Background(), domain.FlowSignup, "a@b.com", "123456")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestChallengeRepo_Get_Missing(t *testing.T) {
	api := new(mockAPI)
	repo := NewChallengeRepo(api, "challenges")
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := repo.Get(context.Background(), domain.FlowSignup, "a@b.com")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestChallengeRepo_Get_PastPurgeIsNotFound(t *testing.T) {
	api := new(mockAPI)
	repo := NewChallengeRepo(api, "challenges")
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	item, err := attributevalue.MarshalMap(&domain.Challenge{
		Subject: "a@b.com", Flow: domain.FlowSignup, Code: "123456",
		ExpiresAt: now.Add(-2 * time.Hour), PurgeAt: now.Add(-time.Hour).Unix(),
	})
	require.NoError(t, err)
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{Item: item}, nil)

	_, err = repo.Get(context.Background(), domain.FlowSignup, "a@b.com")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestChallengeRepo_Get_UsesCompositeKey(t *testing.T) {
	api := new(mockAPI)
	repo := NewChallengeRepo(api, "challenges")
	want := &domain.Challenge{
		Subject: "a@b.com", Flow: domain.FlowEmailChange, Code: "123456",
		Stage:     domain.StageAwaitingNewCode,
		Payload:   domain.ChallengePayload{NewEmail: "new@b.com"},
		ExpiresAt: time.Now().Add(time.Minute).UTC(),
		PurgeAt:   time.Now().Add(time.Hour).Unix(),
	}
	item, err := attributevalue.MarshalMap(want)
	require.NoError(t, err)
	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		s, _ := in.Key["subject"].(*types.AttributeValueMemberS)
		f, _ := in.Key["flow"].(*types.AttributeValueMemberS)
		return s != nil && f != nil && s.Value == "a@b.com" && f.Value == "email_change"
	})).Return(&dynamodb.GetItemOutput{Item: item}, nil)

	got, err := repo.Get(context.Background(), domain.FlowEmailChange, "a@b.com")

	require.NoError(t, err)
	assert.Equal(t, domain.StageAwaitingNewCode, got.Stage)
	assert.Equal(t, "new@b.com", got.Payload.NewEmail)
}

// --- UserRepo ---

func TestUserRepo_GetByEmail_NotFound(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users")
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return aws.ToString(in.IndexName) == "email-index"
	})).Return(&dynamodb.QueryOutput{}, nil)

	_, err := repo.GetByEmail(context.Background(), "a@b.com")

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestUserRepo_Put_ExistingIsConflict(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users")
	api.On("PutItem", mock.Anything, mock.Anything).Return(&types.ConditionalCheckFailedException{})

	err := repo.Put(context.Background(), &domain.User{UserID: "u1"})

	assert.True(t, errors.Is(err, domain.ErrConflict))
}

func TestUserRepo_Update_MissingUser(t *testing.T) {
	api := new(mockAPI)
	repo := NewUserRepo(api, "users")
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(&types.ConditionalCheckFailedException{})

	err := repo.Update(context.Background(), "ghost", map[string]interface{}{"email": "x@b.com"})

	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

// --- ActivityRepo ---

func TestActivityRepo_Recent_QueriesNewestFirst(t *testing.T) {
	api := new(mockAPI)
	repo := NewActivityRepo(api, "activities")
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		return aws.ToString(in.IndexName) == "user_id-activity_id-index" &&
			!aws.ToBool(in.ScanIndexForward) &&
			aws.ToInt32(in.Limit) == 3
	})).Return(&dynamodb.QueryOutput{}, nil)

	got, err := repo.Recent(context.Background(), "u1", 3)

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	api.AssertExpectations(t)
}

func TestActivityRepo_DeleteByUser_Chunks(t *testing.T) {
	api := new(mockAPI)
	repo := NewActivityRepo(api, "activities")

	items := make([]map[string]types.AttributeValue, 30)
	for i := range items {
		items[i] = strKey("activity_id", fmt.Sprintf("a%02d", i))
	}
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{Items: items}, nil)

	var sizes []int
	api.On("BatchWriteItem", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		in := args.Get(1).(*dynamodb.BatchWriteItemInput)
		sizes = append(sizes, len(in.RequestItems["activities"]))
	}).Return(&dynamodb.BatchWriteItemOutput{}, nil)

	require.NoError(t, repo.DeleteByUser(context.Background(), "u1"))
	assert.Equal(t, []int{25, 5}, sizes)
}

func TestActivityRepo_DeleteByUser_NoActivities(t *testing.T) {
	api := new(mockAPI)
	repo := NewActivityRepo(api, "activities")
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

	require.NoError(t, repo.DeleteByUser(context.Background(), "u1"))
	api.AssertNotCalled(t, "BatchWriteItem", mock.Anything, mock.Anything)
}
