package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/gatherer/sqsgath"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func (a *app) serveSQSCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve-sqs",
		Usage: "judge requests from an SQS queue, sending results to the queue named in each request",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.serveSQS(ctx)
		},
	}
}

// queueClient is the part of *sqs.Client the serve loop needs.
type queueClient interface {
	sqsgath.Sender
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

func (a *app) serveSQS(ctx context.Context) error {
	if a.cfg.SQS.RequestQueueURL == "" {
		return errors.New("sqs.request_queue_url is not set")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(a.cfg.SQS.Region))
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}
	w, err := a.worker(ctx)
	if err != nil {
		return err
	}
	defer w.cleanup()
	a.serveMetrics(ctx, w.metrics)

	a.log.Info("polling queue", "url", a.cfg.SQS.RequestQueueURL, "concurrency", a.cfg.Worker.Concurrency)
	return a.pollSQS(ctx, sqs.NewFromConfig(awsCfg), w.eval)
}

func (a *app) pollSQS(ctx context.Context, client queueClient, eval *evaluator) error {
	queueURL := a.cfg.SQS.RequestQueueURL
	var g errgroup.Group
	g.SetLimit(a.cfg.Worker.Concurrency)
	// shutdown only stops receiving; received jobs run to completion
	jobCtx := context.WithoutCancel(ctx)
	for ctx.Err() == nil {
		out, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: int32(min(a.cfg.Worker.Concurrency, 10)),
			WaitTimeSeconds:     20,
		})
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			a.log.Error("failed to receive messages", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}
		for _, msg := range out.Messages {
			g.Go(func() error {
				a.handleSQS(jobCtx, client, eval, msg)
				return nil
			})
		}
	}
	a.log.Info("shutting down, waiting for running jobs")
	return g.Wait()
}

func (a *app) handleSQS(ctx context.Context, client queueClient, eval *evaluator, msg types.Message) {
	defer func() {
		delCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		_, err := client.DeleteMessage(delCtx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(a.cfg.SQS.RequestQueueURL),
			ReceiptHandle: msg.ReceiptHandle,
		})
		if err != nil {
			a.log.Error("failed to delete message", "error", err)
		}
	}()

	var req api.EvalReq
	if err := json.Unmarshal([]byte(aws.ToString(msg.Body)), &req); err != nil {
		a.log.Error("dropping malformed request", "message_id", aws.ToString(msg.MessageId), "error", err)
		return
	}
	if req.ResSqsUrl == "" {
		a.log.Error("dropping request without response queue", "eval_uuid", req.EvalUuid)
		return
	}
	gath := sqsgath.NewSqsResponseQueueGatherer(ctx, client, req.EvalUuid, req.ResSqsUrl, a.log)
	eval.Evaluate(ctx, req, gath)
}
