package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/sushihentaime/blogcms/internal/common"
	"github.com/sushihentaime/blogcms/internal/events"
	"github.com/sushihentaime/blogcms/internal/postservice"
)

const reindexPageSize = 100

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Queue every published post for the search index",
	Long: `Reindex pages through the published posts and queues an index job for
each on the search-index lane only. Subscribers are not notified again.`,
	RunE: runReindex,
}

func runReindex(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := common.NewDB(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, 2, 2, 0)
	if err != nil {
		return err
	}
	defer common.CloseDB(db)

	broker, err := common.NewMessageBroker(cfg.amqpURI())
	if err != nil {
		return err
	}
	defer broker.Close()

	if err := common.SetupPostExchange(broker); err != nil {
		return err
	}

	posts := postservice.NewPostService(db, nil, postservice.NewQueueDispatcher(broker), postservice.NewDiskImageStore(cfg.ImageDir), logger, postservice.Config{BaseURL: cfg.AppURL})

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	n, err := reindex(ctx, posts, broker, cfg.AppURL)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "queued %d post(s) for indexing\n", n)
	return nil
}

type postLister interface {
	ListPosts(ctx context.Context, f postservice.Filters) ([]postservice.Post, postservice.Metadata, error)
}

func reindex(ctx context.Context, posts postLister, mp common.MessageProducer, baseURL string) (int, error) {
	queued := 0
	_, key := common.LaneQueue(events.LaneSearchIndex)

	for offset := 0; ; offset += reindexPageSize {
		page, meta, err := posts.ListPosts(ctx, postservice.Filters{
			Status: events.StatusPublished,
			Sort:   "id",
			Limit:  reindexPageSize,
			Offset: offset,
		})
		if err != nil {
			return queued, err
		}

		for i := range page {
			job := events.NewJob(events.Published{Post: postservice.Snapshot(&page[i], baseURL)}, events.LaneSearchIndex, events.DefaultMaxAttempts)

			body, err := json.Marshal(job)
			if err != nil {
				return queued, err
			}

			if err := mp.Publish(ctx, body, key, common.PostExchange); err != nil {
				return queued, fmt.Errorf("queue post %d: %w", page[i].ID, err)
			}
			queued++
		}

		if len(page) == 0 || offset+len(page) >= meta.TotalRecords {
			break
		}
	}

	logger.Info("reindex queued", slog.Int("posts", queued))
	return queued, nil
}
