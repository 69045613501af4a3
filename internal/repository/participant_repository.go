package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/noah-isme/insight-compliance-api/internal/models"
	appErrors "github.com/noah-isme/insight-compliance-api/pkg/errors"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the participant store.
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// participantItem mirrors the stored item layout.
type participantItem struct {
	ParticipantID     int64  `dynamodbav:"participant_id"`
	StartDate         string `dynamodbav:"start_date"`
	EndDate           string `dynamodbav:"end_date"`
	PhoneNumber       string `dynamodbav:"phone_number"`
	LeaderboardLink   string `dynamodbav:"leaderboard_link"`
	ScheduleType      string `dynamodbav:"schedule_type"`
	MessageRandomizer []int  `dynamodbav:"message_randomizer"`
}

func itemFromModel(p models.ParticipantSchedule) participantItem {
	return participantItem{
		ParticipantID:     p.ParticipantID,
		StartDate:         p.StartDate,
		EndDate:           p.EndDate,
		PhoneNumber:       p.PhoneNumber,
		LeaderboardLink:   p.LeaderboardLink,
		ScheduleType:      p.ScheduleType,
		MessageRandomizer: p.MessageRandomizer[:],
	}
}

func (i participantItem) toModel() (models.ParticipantSchedule, error) {
	p := models.ParticipantSchedule{
		ParticipantID:   i.ParticipantID,
		StartDate:       i.StartDate,
		EndDate:         i.EndDate,
		PhoneNumber:     i.PhoneNumber,
		LeaderboardLink: i.LeaderboardLink,
		ScheduleType:    i.ScheduleType,
	}
	if len(i.MessageRandomizer) != len(p.MessageRandomizer) {
		return p, fmt.Errorf("participant %d: message_randomizer has %d flags, want %d",
			i.ParticipantID, len(i.MessageRandomizer), len(p.MessageRandomizer))
	}
	copy(p.MessageRandomizer[:], i.MessageRandomizer)
	return p, nil
}

// ParticipantRepository is the DynamoDB backed participant store.
type ParticipantRepository struct {
	client DynamoDBAPI
	table  string
	logger *zap.Logger
}

// NewParticipantRepository constructs the repository.
func NewParticipantRepository(client DynamoDBAPI, table string, logger *zap.Logger) *ParticipantRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ParticipantRepository{client: client, table: table, logger: logger}
}

func participantKey(id int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"participant_id": &types.AttributeValueMemberN{Value: strconv.FormatInt(id, 10)},
	}
}

// Get fetches a participant by id.
func (r *ParticipantRepository) Get(ctx context.Context, id int64) (*models.ParticipantSchedule, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.table),
		Key:            participantKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrParticipantStore, err, fmt.Sprintf("get participant %d", id))
	}
	if len(out.Item) == 0 {
		return nil, appErrors.Clonef(appErrors.ErrParticipantNotFound, "participant %d not found", id)
	}
	return decodeParticipant(out.Item)
}

// List scans the whole table following pagination, ordered by participant id.
// Items that cannot be decoded are skipped with a warning.
func (r *ParticipantRepository) List(ctx context.Context) ([]models.ParticipantSchedule, error) {
	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{TableName: aws.String(r.table)})
	participants := make([]models.ParticipantSchedule, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, appErrors.WrapAs(appErrors.ErrParticipantStore, err, "scan participants")
		}
		for _, item := range page.Items {
			p, err := decodeParticipant(item)
			if err != nil {
				r.logger.Warn("skipping malformed participant item", zap.Error(err))
				continue
			}
			participants = append(participants, *p)
		}
	}
	sort.Slice(participants, func(i, j int) bool {
		return participants[i].ParticipantID < participants[j].ParticipantID
	})
	return participants, nil
}

// Create stores a new participant, refusing to overwrite an existing id.
func (r *ParticipantRepository) Create(ctx context.Context, p models.ParticipantSchedule) error {
	item, err := attributevalue.MarshalMap(itemFromModel(p))
	if err != nil {
		return fmt.Errorf("marshal participant %d: %w", p.ParticipantID, err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(participant_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return appErrors.Clonef(appErrors.ErrParticipantIDConflicts, "participant %d already registered", p.ParticipantID)
		}
		return appErrors.WrapAs(appErrors.ErrParticipantStore, err, fmt.Sprintf("put participant %d", p.ParticipantID))
	}
	return nil
}

// UpdateAttributes sets the given stored attributes in one write and returns
// the updated record.
func (r *ParticipantRepository) UpdateAttributes(ctx context.Context, id int64, attrs map[string]interface{}) (*models.ParticipantSchedule, error) {
	if len(attrs) == 0 {
		return r.Get(ctx, id)
	}
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	exprNames := make(map[string]string, len(names))
	exprValues := make(map[string]types.AttributeValue, len(names))
	expr := "SET "
	for i, name := range names {
		nameRef := fmt.Sprintf("#a%d", i)
		valueRef := fmt.Sprintf(":v%d", i)
		av, err := attributevalue.Marshal(attrs[name])
		if err != nil {
			return nil, fmt.Errorf("marshal %s for participant %d: %w", name, id, err)
		}
		exprNames[nameRef] = name
		exprValues[valueRef] = av
		if i > 0 {
			expr += ", "
		}
		expr += nameRef + " = " + valueRef
	}

	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       participantKey(id),
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(participant_id)"),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, appErrors.Clonef(appErrors.ErrParticipantNotFound, "participant %d not found", id)
		}
		return nil, appErrors.WrapAs(appErrors.ErrParticipantStore, err, fmt.Sprintf("update participant %d", id))
	}
	return decodeParticipant(out.Attributes)
}

// Delete removes a participant.
func (r *ParticipantRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(r.table),
		Key:                 participantKey(id),
		ConditionExpression: aws.String("attribute_exists(participant_id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return appErrors.Clonef(appErrors.ErrParticipantNotFound, "participant %d not found", id)
		}
		return appErrors.WrapAs(appErrors.ErrParticipantStore, err, fmt.Sprintf("delete participant %d", id))
	}
	return nil
}

// Ping checks table reachability with a single-item scan.
func (r *ParticipantRepository) Ping(ctx context.Context) error {
	_, err := r.client.Scan(ctx, &dynamodb.ScanInput{TableName: aws.String(r.table), Limit: aws.Int32(1)})
	return err
}

func decodeParticipant(item map[string]types.AttributeValue) (*models.ParticipantSchedule, error) {
	var raw participantItem
	if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrParticipantStore, err, "decode participant item")
	}
	p, err := raw.toModel()
	if err != nil {
		return nil, appErrors.WrapAs(appErrors.ErrParticipantStore, err, err.Error())
	}
	return &p, nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
