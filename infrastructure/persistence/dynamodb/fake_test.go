package dynamodb

import (
	"context"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// fakeDynamo stands in for the wire. Unset handlers return empty success so
// tests only script the calls they care about.
type fakeDynamo struct {
	getItem       func(*awsdynamodb.GetItemInput) (*awsdynamodb.GetItemOutput, error)
	putItem       func(*awsdynamodb.PutItemInput) (*awsdynamodb.PutItemOutput, error)
	deleteItem    func(*awsdynamodb.DeleteItemInput) (*awsdynamodb.DeleteItemOutput, error)
	query         func(*awsdynamodb.QueryInput) (*awsdynamodb.QueryOutput, error)
	scan          func(*awsdynamodb.ScanInput) (*awsdynamodb.ScanOutput, error)
	transactWrite func(*awsdynamodb.TransactWriteItemsInput) (*awsdynamodb.TransactWriteItemsOutput, error)
	describeTable func(*awsdynamodb.DescribeTableInput) (*awsdynamodb.DescribeTableOutput, error)
	createTable   func(*awsdynamodb.CreateTableInput) (*awsdynamodb.CreateTableOutput, error)

	putCalls      int
	deleteCalls   int
	transactCalls int
}

var _ DynamoAPI = (*fakeDynamo)(nil)

func (f *fakeDynamo) GetItem(_ context.Context, in *awsdynamodb.GetItemInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.GetItemOutput, error) {
	if f.getItem != nil {
		return f.getItem(in)
	}
	return &awsdynamodb.GetItemOutput{}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, in *awsdynamodb.PutItemInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.PutItemOutput, error) {
	f.putCalls++
	if f.putItem != nil {
		return f.putItem(in)
	}
	return &awsdynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *awsdynamodb.DeleteItemInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.DeleteItemOutput, error) {
	f.deleteCalls++
	if f.deleteItem != nil {
		return f.deleteItem(in)
	}
	return &awsdynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *awsdynamodb.QueryInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.QueryOutput, error) {
	if f.query != nil {
		return f.query(in)
	}
	return &awsdynamodb.QueryOutput{}, nil
}

func (f *fakeDynamo) Scan(_ context.Context, in *awsdynamodb.ScanInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.ScanOutput, error) {
	if f.scan != nil {
		return f.scan(in)
	}
	return &awsdynamodb.ScanOutput{}, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *awsdynamodb.TransactWriteItemsInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.TransactWriteItemsOutput, error) {
	f.transactCalls++
	if f.transactWrite != nil {
		return f.transactWrite(in)
	}
	return &awsdynamodb.TransactWriteItemsOutput{}, nil
}

func (f *fakeDynamo) DescribeTable(_ context.Context, in *awsdynamodb.DescribeTableInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.DescribeTableOutput, error) {
	if f.describeTable != nil {
		return f.describeTable(in)
	}
	return &awsdynamodb.DescribeTableOutput{}, nil
}

func (f *fakeDynamo) CreateTable(_ context.Context, in *awsdynamodb.CreateTableInput, _ ...func(*awsdynamodb.Options)) (*awsdynamodb.CreateTableOutput, error) {
	if f.createTable != nil {
		return f.createTable(in)
	}
	return &awsdynamodb.CreateTableOutput{}, nil
}
