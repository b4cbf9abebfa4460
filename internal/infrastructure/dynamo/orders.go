package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/scanpay-verify/internal/domain"
)

// OrderRepo mirrors orders with their payment metadata and audit notes.
// PK: order_id
type OrderRepo struct {
	client    API
	tableName string
	cache     *Cache
}

// NewOrderRepo returns an OrderRepo. cache is the table holding approvals
// consumed by CreateFromApproval.
func NewOrderRepo(client API, tableName string, cache *Cache) *OrderRepo {
	return &OrderRepo{client: client, tableName: tableName, cache: cache}
}

func (r *OrderRepo) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldOrderID, orderID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	var o domain.Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateFromApproval writes o and deletes the approval under approvalKey in
// one transaction. A missing or expired approval aborts the write with
// ErrSessionExpired; an existing order id aborts with ErrConflict.
func (r *OrderRepo) CreateFromApproval(ctx context.Context, o *domain.Order, approvalKey string) error {
	item, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                aws.String(r.tableName),
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
				ExpressionAttributeNames: map[string]string{"#pk": fieldOrderID},
			}},
			*r.cache.deleteLiveItem(approvalKey),
		},
	})
	if err == nil {
		return nil
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		reasons := tce.CancellationReasons
		if len(reasons) > 1 && aws.ToString(reasons[1].Code) == "ConditionalCheckFailed" {
			return fmt.Errorf("approval %s: %w", approvalKey, domain.ErrSessionExpired)
		}
		if len(reasons) > 0 && aws.ToString(reasons[0].Code) == "ConditionalCheckFailed" {
			return fmt.Errorf("order %s exists: %w", o.OrderID, domain.ErrConflict)
		}
	}
	return fmt.Errorf("create order: %w", err)
}

// UpdatePayment replaces the payment metadata and, when status is non-empty,
// the order status.
func (r *OrderRepo) UpdatePayment(ctx context.Context, orderID, status string, meta domain.PaymentMeta) error {
	updates := map[string]interface{}{
		fieldPayment:   meta,
		fieldUpdatedAt: time.Now().UTC(),
	}
	if status != "" {
		updates[fieldStatus] = status
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldOrderID
	return r.update(ctx, orderID, &dynamodb.UpdateItemInput{
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
}

// AppendNote adds an audit note to the end of the order's note list.
func (r *OrderRepo) AppendNote(ctx context.Context, orderID string, note domain.OrderNote) error {
	av, err := attributevalue.Marshal([]domain.OrderNote{note})
	if err != nil {
		return fmt.Errorf("marshal note: %w", err)
	}
	return r.update(ctx, orderID, &dynamodb.UpdateItemInput{
		UpdateExpression:         aws.String("SET #n = list_append(if_not_exists(#n, :empty), :note)"),
		ExpressionAttributeNames: map[string]string{"#n": fieldNotes, "#pk": fieldOrderID},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":empty": &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":note":  av,
		},
	})
}

// update runs in against an existing order only.
func (r *OrderRepo) update(ctx context.Context, orderID string, in *dynamodb.UpdateItemInput) error {
	in.TableName = aws.String(r.tableName)
	in.Key = strKey(fieldOrderID, orderID)
	in.ConditionExpression = aws.String("attribute_exists(#pk)")
	_, err := r.client.UpdateItem(ctx, in)
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	return err
}
