package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/cobra"

	"github.com/sushihentaime/blogcms/internal/common"
	"github.com/sushihentaime/blogcms/internal/events"
)

var requeueLimit int

var requeueCmd = &cobra.Command{
	Use:   "requeue",
	Short: "Move failed jobs back to their lane",
	Long: `Requeue drains the failed jobs queue and publishes every job back to the
lane it failed on with a fresh attempt budget. Messages that are not jobs
are dropped.`,
	RunE: runRequeue,
}

func init() {
	requeueCmd.Flags().IntVar(&requeueLimit, "limit", 0, "Maximum number of jobs to requeue (0 for all)")
}

func runRequeue(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	broker, err := common.NewMessageBroker(cfg.amqpURI())
	if err != nil {
		return err
	}
	defer broker.Close()

	if err := common.SetupPostExchange(broker); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	n, err := requeueFailed(ctx, broker, broker, requeueLimit)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "requeued %d job(s)\n", n)
	return nil
}

type deliverySource interface {
	Get(queue common.Queue) (amqp.Delivery, bool, error)
}

// requeueFailed moves up to limit jobs from the failed jobs queue back to
// their lanes. A message is acknowledged only after its job was published.
func requeueFailed(ctx context.Context, src deliverySource, mp common.MessageProducer, limit int) (int, error) {
	requeued := 0

	for limit <= 0 || requeued < limit {
		if err := ctx.Err(); err != nil {
			return requeued, err
		}

		msg, ok, err := src.Get(common.FailedJobsQueue)
		if err != nil {
			return requeued, err
		}
		if !ok {
			break
		}

		var job events.Job
		if err := json.Unmarshal(msg.Body, &job); err != nil || job.Lane == "" {
			logger.Warn("dropping message that is not a job", slog.String("body", string(msg.Body)))
			if err := msg.Nack(false, false); err != nil {
				return requeued, err
			}
			continue
		}

		job.Attempts = 0
		job.LastError = ""
		job.FailedAt = nil

		body, err := json.Marshal(job)
		if err != nil {
			return requeued, err
		}

		_, key := common.LaneQueue(job.Lane)
		if err := mp.Publish(ctx, body, key, common.PostExchange); err != nil {
			msg.Nack(false, true)
			return requeued, fmt.Errorf("requeue job %s: %w", job.ID, err)
		}

		if err := msg.Ack(false); err != nil {
			return requeued, err
		}

		logger.Info("job requeued", slog.String("job", job.ID), slog.String("lane", string(job.Lane)), slog.String("event", string(job.Event)))
		requeued++
	}

	return requeued, nil
}
