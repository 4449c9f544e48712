package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quill/api"
	"quill/cache"
	"quill/common"
	"quill/config"
	"quill/events"
	"quill/logging"
	"quill/orchestrator"
	"quill/related"
	"quill/shared/kafka"
	"quill/store"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Debug)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineOpts := []related.Option{
		related.WithTTL(cfg.Related.TTL),
		related.WithDefaultLimit(cfg.Related.DefaultLimit),
		related.WithLogger(logger.Named("related")),
	}
	if !cfg.Redis.Disabled {
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			// results are advisory; serve uncached rather than refuse to start
			logger.Warn("redis unavailable, related results will not be cached", zap.Error(err))
		} else {
			defer redisCache.Close()
			engineOpts = append(engineOpts, related.WithCache(redisCache))
		}
	}
	engine := related.NewEngine(engineOpts...)

	st := store.New()
	st.SetInvalidator(engine)

	source, err := snapshotSource(ctx, cfg)
	if err != nil {
		return err
	}

	var refresher *orchestrator.Refresher
	if source != nil {
		refresher = orchestrator.NewRefresher(orchestrator.RefresherConfig{
			Source:    source,
			Store:     st,
			Engine:    engine,
			WarmItems: cfg.Related.WarmItems,
			Limit:     cfg.Related.DefaultLimit,
			Logger:    logger.Named("refresher"),
		})
		if err := refresher.RunOnce(ctx); err != nil {
			logger.Error("initial snapshot load failed", zap.Error(err))
		}

		scheduler := orchestrator.NewScheduler(refresher, logger.Named("scheduler"))
		if err := scheduler.Start(cfg.Snapshot.RefreshCron); err != nil {
			return err
		}
		defer scheduler.Stop()
	} else {
		logger.Warn("no snapshot source configured; starting with an empty store")
	}

	if len(cfg.Kafka.Brokers) > 0 {
		handler := events.NewHandler(engine, refresherOrNil(refresher), logger.Named("events"))
		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
			Handler: handler.MessageHandler(),
			Logger:  logger.Named("kafka"),
		})
		if err != nil {
			logger.Error("failed to create kafka consumer, cache invalidation events disabled", zap.Error(err))
		} else {
			defer consumer.Close()
			go func() {
				if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("failed to start kafka consumer", zap.Error(err))
				}
			}()
		}
	}

	router := api.NewRouter(api.Deps{
		Store:        st,
		Engine:       engine,
		Logger:       logger.Named("api"),
		DefaultLimit: cfg.Related.DefaultLimit,
		MaxLimit:     config.MaxRelatedLimit,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// snapshotSource picks the configured snapshot source, or nil when none is set
func snapshotSource(ctx context.Context, cfg *config.Config) (store.Source, error) {
	switch {
	case cfg.Snapshot.File != "":
		return store.FileSource{Path: cfg.Snapshot.File}, nil
	case cfg.Snapshot.S3Bucket != "":
		client, err := common.NewS3(ctx, common.S3Config{
			Region:       cfg.Snapshot.S3Region,
			Profile:      cfg.Snapshot.S3Profile,
			UsePathStyle: cfg.Snapshot.S3PathStyle,
			Endpoint:     cfg.Snapshot.S3Endpoint,
		})
		if err != nil {
			return nil, err
		}
		return store.S3Source{Client: client, Bucket: cfg.Snapshot.S3Bucket, Prefix: cfg.S3Prefix()}, nil
	default:
		return nil, nil
	}
}

// refresherOrNil avoids handing a typed nil pointer to an interface
func refresherOrNil(r *orchestrator.Refresher) events.Refresher {
	if r == nil {
		return nil
	}
	return r
}
