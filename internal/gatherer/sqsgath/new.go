package sqsgath

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Sender is the part of *sqs.Client the gatherer needs.
type Sender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

var _ Sender = (*sqs.Client)(nil)

// NewSqsResponseQueueGatherer streams the evaluation events to the SQS
// queue at responseSqsUrl. Messages are sent with ctx.
func NewSqsResponseQueueGatherer(ctx context.Context, client Sender, evalUuid string, responseSqsUrl string, log *slog.Logger) *sqsResQueueGatherer {
	if log == nil {
		log = slog.Default()
	}
	return &sqsResQueueGatherer{
		ctx:       ctx,
		sqsClient: client,
		queueUrl:  responseSqsUrl,
		evalUuid:  evalUuid,
		log:       log.With("eval_uuid", evalUuid),
	}
}
