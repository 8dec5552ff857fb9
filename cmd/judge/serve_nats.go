package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/programme-lv/judge/api"
	"github.com/programme-lv/judge/internal/gatherer/natsgath"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func (a *app) serveNATSCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve-nats",
		Usage: "judge requests arriving on a NATS subject, streaming results to the reply inbox",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return a.serveNATS(ctx)
		},
	}
}

func (a *app) serveNATS(ctx context.Context) error {
	w, err := a.worker(ctx)
	if err != nil {
		return err
	}
	defer w.cleanup()
	a.serveMetrics(ctx, w.metrics)

	nc, err := nats.Connect(a.cfg.NATS.URL,
		nats.Name("judge"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			a.log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			a.log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer nc.Drain()

	msgs := make(chan *nats.Msg, a.cfg.Worker.Concurrency)
	sub, err := nc.ChanQueueSubscribe(a.cfg.NATS.Subject, a.cfg.NATS.Queue, msgs)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", a.cfg.NATS.Subject, err)
	}
	defer sub.Unsubscribe()
	a.log.Info("waiting for requests", "subject", a.cfg.NATS.Subject, "queue", a.cfg.NATS.Queue, "concurrency", a.cfg.Worker.Concurrency)

	var g errgroup.Group
	g.SetLimit(a.cfg.Worker.Concurrency)
	// shutdown only stops receiving; received jobs run to completion
	jobCtx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			a.log.Info("shutting down, waiting for running jobs")
			return g.Wait()
		case msg := <-msgs:
			g.Go(func() error {
				a.handleNATS(jobCtx, nc, w.eval, msg)
				return nil
			})
		}
	}
}

func (a *app) handleNATS(ctx context.Context, nc *nats.Conn, eval *evaluator, msg *nats.Msg) {
	var req api.EvalReq
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		a.log.Error("dropping malformed request", "subject", msg.Subject, "error", err)
		return
	}
	if msg.Reply == "" {
		a.log.Error("dropping request without reply inbox", "eval_uuid", req.EvalUuid)
		return
	}
	gath := natsgath.New(nc, req.EvalUuid, msg.Reply, a.log)
	eval.Evaluate(ctx, req, gath)
}
