package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sushihentaime/blogcms/internal/common"
	"github.com/sushihentaime/blogcms/internal/events"
	"github.com/sushihentaime/blogcms/internal/notificationservice"
	"github.com/sushihentaime/blogcms/internal/postservice"
	"github.com/sushihentaime/blogcms/internal/searchservice"
	"github.com/sushihentaime/blogcms/internal/userservice"
)

type application struct {
	config      *Config
	logger      *slog.Logger
	userService *userservice.UserService
	postService *postservice.PostService
	broker      *common.MessageBroker
	workers     []*common.Worker
	wg          sync.WaitGroup
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := loadConfig(".env")
	if err != nil {
		logger.Error("failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	db, err := common.NewDB(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, 10, 5, 15*time.Minute)
	if err != nil {
		logger.Error("failed to connect to the database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer common.CloseDB(db)

	if _, err := common.MigrateUp(cfg.MigrationsSource, common.PostgresURI(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)); err != nil {
		logger.Error("failed to run migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	URI := fmt.Sprintf("amqp://%s:%s@%s:%s/", cfg.MQUser, cfg.MQPassword, cfg.MQHost, cfg.MQPort)
	broker, err := common.NewMessageBroker(URI)
	if err != nil {
		logger.Error("failed to connect to the message broker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer broker.Close()

	err = common.SetupPostExchange(broker)
	if err != nil {
		logger.Error("failed to setup the post exchange", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = common.NewRedisClient(cfg.RedisAddr)
		if err != nil {
			logger.Error("failed to connect to redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer rdb.Close()
	}

	cache, err := newPageCache(cfg, rdb)
	if err != nil {
		logger.Error("failed to create the page cache", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	mongoClient, err := searchservice.NewMongoClient(ctx, cfg.MongoURI)
	cancel()
	if err != nil {
		logger.Error("failed to connect to mongodb", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer mongoClient.Disconnect(context.Background())

	searchListener, err := newSearchListener(mongoClient.Database(cfg.MongoDB), logger)
	if err != nil {
		logger.Error("failed to prepare the search index", slog.String("error", err.Error()))
		os.Exit(1)
	}

	app := &application{
		config:      cfg,
		logger:      logger,
		userService: userservice.NewUserService(db, userservice.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)),
		postService: postservice.NewPostService(
			db,
			cache,
			postservice.NewQueueDispatcher(broker),
			postservice.NewDiskImageStore(cfg.ImageDir),
			logger,
			postservice.Config{BaseURL: cfg.AppURL, StrictCleanup: cfg.StrictCleanup},
		),
		broker: broker,
		workers: []*common.Worker{
			common.NewWorker(events.LaneSearchIndex, broker, broker, searchListener.Handle, logger),
			common.NewWorker(events.LaneNotifications, broker, broker, newNotificationListener(cfg, db, rdb, logger).Handle, logger),
		},
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	app.startWorkers(workerCtx)

	err = app.serve(cfg.Port)
	stopWorkers()
	app.wg.Wait()

	if err != nil {
		logger.Error("failed to start the server", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newPageCache picks the cache backend named by CACHE_DRIVER.
func newPageCache(cfg *Config, rdb *redis.Client) (common.PageCache, error) {
	switch cfg.CacheDriver {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("cache driver redis needs REDIS_ADDR")
		}
		return common.NewRedisCache(rdb, cfg.CacheTTL), nil
	case "memory", "":
		return common.NewCache(cfg.CacheTTL, 2*cfg.CacheTTL), nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.CacheDriver)
	}
}

func newSearchListener(db *mongo.Database, logger *slog.Logger) (*searchservice.IndexListener, error) {
	index := searchservice.NewMongoIndex(db)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := index.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	return searchservice.NewIndexListener(index, logger), nil
}

// newNotificationListener enables a channel only when it is configured.
func newNotificationListener(cfg *Config, db *sql.DB, rdb *redis.Client, logger *slog.Logger) *notificationservice.NotificationListener {
	var channels []notificationservice.Channel

	if cfg.MailHost != "" {
		mailer := notificationservice.NewMailer(cfg.MailHost, cfg.MailPort, cfg.MailUser, cfg.MailPassword, cfg.MailSender, notificationservice.NewTemplate())
		channels = append(channels, notificationservice.NewEmailChannel(mailer, notificationservice.NewSubscriberModel(db), logger))
	}

	if rdb != nil {
		channels = append(channels, notificationservice.NewPushChannel(rdb, cfg.PushChannel))
	}

	if cfg.AdminWebhookURL != "" {
		channels = append(channels, notificationservice.NewWebhookChannel(cfg.AdminWebhookURL, &http.Client{Timeout: 10 * time.Second}))
	}

	return notificationservice.NewNotificationListener(logger, channels...)
}

func (app *application) startWorkers(ctx context.Context) {
	for _, w := range app.workers {
		app.wg.Add(1)

		go func(w *common.Worker) {
			defer app.wg.Done()

			if err := w.Run(ctx); err != nil {
				app.logger.Error("worker stopped", slog.String("error", err.Error()))
			}
		}(w)
	}
}
