package dynamodb

import (
	"context"
	"errors"
	"net"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/angryss/idp/infrastructure/config"
	pkgerrors "github.com/angryss/idp/pkg/errors"
)

// DynamoAPI is the slice of the DynamoDB client this package uses. The
// repositories accept this interface so tests can stand in for the wire.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *awsdynamodb.GetItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *awsdynamodb.PutItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *awsdynamodb.DeleteItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *awsdynamodb.QueryInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.QueryOutput, error)
	Scan(ctx context.Context, params *awsdynamodb.ScanInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, params *awsdynamodb.TransactWriteItemsInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, params *awsdynamodb.DescribeTableInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *awsdynamodb.CreateTableInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.CreateTableOutput, error)
}

// NewClient builds the process-wide DynamoDB client from the validated
// configuration. The endpoint override serves local testing against
// DynamoDB Local.
func NewClient(ctx context.Context, cfg config.DynamoDBConfig) (*awsdynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, pkgerrors.NewConfigurationError("load aws configuration: " + err.Error())
	}

	var optFns []func(*awsdynamodb.Options)
	if cfg.Endpoint != "" {
		optFns = append(optFns, func(o *awsdynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	return awsdynamodb.NewFromConfig(awsCfg, optFns...), nil
}

// translateError maps an SDK failure into the shared taxonomy. Raw
// smithy/types errors never leave this package. Conditional-check failures
// are classified by the caller because their meaning depends on the
// condition that was attached.
func translateError(op string, err error) error {
	if err == nil {
		return nil
	}

	var (
		throughput *types.ProvisionedThroughputExceededException
		noTable    *types.ResourceNotFoundException
		reqLimit   *types.RequestLimitExceeded
		internal   *types.InternalServerError
	)
	switch {
	case errors.As(err, &throughput), errors.As(err, &reqLimit), errors.As(err, &internal):
		return pkgerrors.NewUnavailableError("dynamodb", err)
	case errors.As(err, &noTable):
		return pkgerrors.NewConfigurationError(op + ": table does not exist").WithCause(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.NewUnavailableError("dynamodb", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "ServiceUnavailable", "LimitExceededException":
			return pkgerrors.NewUnavailableError("dynamodb", err)
		}
	}

	return pkgerrors.NewInternalError(op + " failed").WithCause(err)
}

// isConditionalCheckFailed reports whether err is a conditional-write
// rejection.
func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
