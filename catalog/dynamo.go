package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names of the DynamoDB table.
const (
	AttrName   = "name"
	AttrCRC    = "crc32c"
	AttrLength = "length"
)

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// DynamoCatalog implements Catalog on a DynamoDB table.
//
// Table schema:
//   - Partition key: name (string) - the object name
//   - crc32c (number) - the checksum
//   - length (number) - the object length in bytes
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name crc32c-catalog \
//	  --attribute-definitions AttributeName=name,AttributeType=S \
//	  --key-schema AttributeName=name,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
type DynamoCatalog struct {
	client    DDBClient
	tableName string
}

// NewDynamoCatalog creates a catalog on an existing table.
func NewDynamoCatalog(client DDBClient, tableName string) *DynamoCatalog {
	return &DynamoCatalog{
		client:    client,
		tableName: tableName,
	}
}

// NewDynamoCatalogFromConfig creates a catalog with a client built from cfg.
func NewDynamoCatalogFromConfig(cfg aws.Config, tableName string, optFns ...func(*dynamodb.Options)) *DynamoCatalog {
	return NewDynamoCatalog(dynamodb.NewFromConfig(cfg, optFns...), tableName)
}

func (c *DynamoCatalog) Put(ctx context.Context, e Entry) error {
	_, err := c.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			AttrName:   &types.AttributeValueMemberS{Value: e.Name},
			AttrCRC:    &types.AttributeValueMemberN{Value: strconv.FormatUint(uint64(e.CRC), 10)},
			AttrLength: &types.AttributeValueMemberN{Value: strconv.FormatUint(e.Length, 10)},
		},
	})
	if err != nil {
		return fmt.Errorf("catalog: failed to put %s: %w", e.Name, err)
	}
	return nil
}

func (c *DynamoCatalog) Get(ctx context.Context, name string) (Entry, error) {
	resp, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(name),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return Entry{}, fmt.Errorf("catalog: failed to get %s: %w", name, err)
	}
	if len(resp.Item) == 0 {
		return Entry{}, ErrNotFound
	}
	return decodeItem(resp.Item)
}

func (c *DynamoCatalog) Delete(ctx context.Context, name string) error {
	_, err := c.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       c.key(name),
	})
	if err != nil {
		return fmt.Errorf("catalog: failed to delete %s: %w", name, err)
	}
	return nil
}

// List scans the table. Scans read every item; keep catalogs that are
// listed often small or give them a prefix-friendly layout.
func (c *DynamoCatalog) List(ctx context.Context, prefix string) ([]Entry, error) {
	input := &dynamodb.ScanInput{
		TableName:      aws.String(c.tableName),
		ConsistentRead: aws.Bool(true),
	}
	if prefix != "" {
		input.FilterExpression = aws.String("begins_with(#n, :prefix)")
		input.ExpressionAttributeNames = map[string]string{"#n": AttrName}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":prefix": &types.AttributeValueMemberS{Value: prefix},
		}
	}

	var out []Entry
	for {
		resp, err := c.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("catalog: failed to scan %s: %w", c.tableName, err)
		}
		for _, item := range resp.Items {
			e, err := decodeItem(item)
			if err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		if len(resp.LastEvaluatedKey) == 0 {
			break
		}
		input.ExclusiveStartKey = resp.LastEvaluatedKey
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *DynamoCatalog) key(name string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		AttrName: &types.AttributeValueMemberS{Value: name},
	}
}

func decodeItem(item map[string]types.AttributeValue) (Entry, error) {
	nameAttr, ok := item[AttrName].(*types.AttributeValueMemberS)
	if !ok {
		return Entry{}, errors.New("catalog: invalid name attribute in DynamoDB")
	}
	crcAttr, ok := item[AttrCRC].(*types.AttributeValueMemberN)
	if !ok {
		return Entry{}, fmt.Errorf("catalog: invalid crc32c attribute for %s", nameAttr.Value)
	}
	lenAttr, ok := item[AttrLength].(*types.AttributeValueMemberN)
	if !ok {
		return Entry{}, fmt.Errorf("catalog: invalid length attribute for %s", nameAttr.Value)
	}

	crc, err := strconv.ParseUint(crcAttr.Value, 10, 32)
	if err != nil {
		return Entry{}, fmt.Errorf("catalog: failed to parse crc32c for %s: %w", nameAttr.Value, err)
	}
	length, err := strconv.ParseUint(lenAttr.Value, 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("catalog: failed to parse length for %s: %w", nameAttr.Value, err)
	}

	return Entry{Name: nameAttr.Value, CRC: uint32(crc), Length: length}, nil
}
