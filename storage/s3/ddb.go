package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/gridgo/storage"
)

// DDBClient is the narrow DynamoDB surface DDBCommitStore needs.
// *dynamodb.Client satisfies it; tests substitute fakes.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DDBCommitStore is a Store whose manifest pointer lives in DynamoDB
// instead of a CURRENT object. Manifest content stays in S3; only the
// pointer flip moves to a conditional write, which gives commits the
// compare-and-swap that plain S3 lacks.
//
// Table schema:
//   - Partition key: base_uri (string), the store's bucket/prefix identity
//   - Sort key: seq (number), the manifest sequence
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name gridgo-commits \
//	  --attribute-definitions AttributeName=base_uri,AttributeType=S AttributeName=seq,AttributeType=N \
//	  --key-schema AttributeName=base_uri,KeyType=HASH AttributeName=seq,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type DDBCommitStore struct {
	*Store
	ddb       DDBClient
	tableName string
	baseURI   string
}

var _ storage.Store = (*DDBCommitStore)(nil)

// NewDDBCommitStore wraps an S3 store with DynamoDB manifest commits.
// baseURI identifies the dataset in the commit table, conventionally
// "s3://bucket/prefix".
func NewDDBCommitStore(store *Store, ddb DDBClient, tableName, baseURI string) *DDBCommitStore {
	return &DDBCommitStore{
		Store:     store,
		ddb:       ddb,
		tableName: tableName,
		baseURI:   baseURI,
	}
}

// LoadManifest implements storage.Store. The newest committed sequence in
// DynamoDB names the manifest object to load.
func (s *DDBCommitStore) LoadManifest(ctx context.Context) (*storage.Manifest, error) {
	seq, name, err := s.latestCommit(ctx)
	if err != nil {
		return nil, err
	}
	if seq == 0 {
		return nil, storage.ErrNoManifest
	}
	return s.loadManifestObject(ctx, name)
}

// CommitManifest implements storage.Store. The manifest object goes to S3
// first; the conditional PutItem is the commit point. A sequence that
// already exists means another writer won.
func (s *DDBCommitStore) CommitManifest(ctx context.Context, m *storage.Manifest) error {
	latest, _, err := s.latestCommit(ctx)
	if err != nil {
		return err
	}
	if latest >= m.Seq {
		return fmt.Errorf("%w: store at seq %d, commit at seq %d", storage.ErrConcurrentCommit, latest, m.Seq)
	}

	name, err := s.putManifestObject(ctx, m)
	if err != nil {
		return err
	}

	_, err = s.ddb.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"base_uri":     &types.AttributeValueMemberS{Value: s.baseURI},
			"seq":          &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", m.Seq)},
			"manifest_key": &types.AttributeValueMemberS{Value: name},
		},
		ConditionExpression: aws.String("attribute_not_exists(seq)"),
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return fmt.Errorf("%w: seq %d already committed", storage.ErrConcurrentCommit, m.Seq)
		}
		return fmt.Errorf("commit seq %d to dynamodb: %w", m.Seq, err)
	}
	return nil
}

// latestCommit returns the newest committed sequence and manifest object
// name, or (0, "") on a fresh store.
func (s *DDBCommitStore) latestCommit(ctx context.Context) (uint64, string, error) {
	resp, err := s.ddb.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("base_uri = :uri"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uri": &types.AttributeValueMemberS{Value: s.baseURI},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query commit table: %w", err)
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	seqAttr, ok := item["seq"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("commit item misses seq")
	}
	keyAttr, ok := item["manifest_key"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("commit item misses manifest_key")
	}
	var seq uint64
	if _, err := fmt.Sscanf(seqAttr.Value, "%d", &seq); err != nil {
		return 0, "", fmt.Errorf("parse committed seq: %w", err)
	}
	return seq, keyAttr.Value, nil
}
