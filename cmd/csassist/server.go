package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/csassist/internal/ai"
	"github.com/xxxsen/csassist/internal/config"
	"github.com/xxxsen/csassist/internal/embedcache"
	"github.com/xxxsen/csassist/internal/handler"
	"github.com/xxxsen/csassist/internal/job"
	"github.com/xxxsen/csassist/internal/metrics"
	"github.com/xxxsen/csassist/internal/middleware"
	"github.com/xxxsen/csassist/internal/render"
	"github.com/xxxsen/csassist/internal/retriever"
	"github.com/xxxsen/csassist/internal/schedule"
	"github.com/xxxsen/csassist/internal/service"
	"github.com/xxxsen/csassist/internal/transcript"
	"github.com/xxxsen/csassist/internal/warehouse"
)

func runServer(cfg *config.Config) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("warehouse", cfg.Warehouse.Type),
		zap.String("backend", cfg.Knowledge.Backend),
		zap.String("transcript", cfg.Transcript.Type),
	)

	opener, err := warehouse.NewOpener(cfg.Warehouse)
	if err != nil {
		return fmt.Errorf("init warehouse: %w", err)
	}
	session := warehouse.NewSession(opener)
	defer func() {
		if err := session.Close(); err != nil {
			logutil.GetLogger(context.Background()).Error("close warehouse session failed", zap.Error(err))
		}
	}()

	var redisClient *redis.Client
	if cfg.Transcript.Type == config.TranscriptRedis {
		redisClient = transcript.NewRedisClient(cfg.Transcript.Redis.Addr, cfg.Transcript.Redis.Password, cfg.Transcript.Redis.DB)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logutil.GetLogger(context.Background()).Error("close redis failed", zap.Error(err))
			}
		}()
	}

	ret, err := buildRetriever(cfg, session, redisClient)
	if err != nil {
		return fmt.Errorf("init retriever: %w", err)
	}
	gen, err := buildGenerator(cfg, session)
	if err != nil {
		return fmt.Errorf("init generator: %w", err)
	}

	scheduler := schedule.NewCronScheduler()
	store, err := buildTranscript(cfg, scheduler, redisClient)
	if err != nil {
		return fmt.Errorf("init transcript: %w", err)
	}

	m := metrics.New()
	chatService := service.NewChatService(ret, ai.NewManager(gen), store, m, service.ChatOptions{
		DefaultTopK:      cfg.Knowledge.DefaultTopK,
		MaxTopK:          cfg.Knowledge.MaxTopK,
		MaxQuestionChars: cfg.Chat.MaxQuestionChars,
		Timeout:          time.Duration(cfg.Chat.TimeoutSeconds) * time.Second,
	})

	deps := handler.RouterDeps{
		Chat:       handler.NewChatHandler(chatService, render.NewMarkdown(), cfg.Chat.SourcesVisible()),
		Properties: handler.NewPropertiesHandler(cfg.Properties()),
		Metrics:    m.Handler(),
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			middleware.RateLimit(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	srv := &http.Server{Addr: addr, Handler: engine}
	go func() {
		logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logutil.GetLogger(context.Background()).Error("server shutdown failed", zap.Error(err))
	}
	scheduler.Stop(shutdownCtx)
	return nil
}

func buildRetriever(cfg *config.Config, session *warehouse.Session, redisClient *redis.Client) (retriever.Retriever, error) {
	opts := retriever.Options{
		Table:           cfg.Knowledge.Table,
		QuestionColumn:  cfg.Knowledge.QuestionColumn,
		AnswerColumn:    cfg.Knowledge.AnswerColumn,
		EmbeddingColumn: cfg.Knowledge.EmbeddingColumn,
		MaxTopK:         cfg.Knowledge.MaxTopK,
	}
	switch cfg.Knowledge.Backend {
	case config.BackendCortex:
		return retriever.NewCortex(session, opts, cfg.Embedding.Model, cfg.Embedding.Dimension)
	case config.BackendPGVector:
		provider, err := ai.NewProvider(cfg.Embedding.Provider, cfg.ProviderArgs(cfg.Embedding.Provider))
		if err != nil {
			return nil, fmt.Errorf("init embedding provider: %w", err)
		}
		embedder := ai.NewEmbedder(provider, cfg.Embedding.Model, cfg.Embedding.Dimension)
		ttl := time.Duration(cfg.Embedding.CacheTTLSeconds) * time.Second
		if redisClient != nil {
			embedder = embedcache.WrapRedisCacheToEmbedder(embedder, redisClient, cfg.Transcript.Redis.KeyPrefix, ttl)
		}
		embedder = embedcache.WrapLruCacheToEmbedder(
			embedder,
			cfg.Embedding.CacheSize,
			ttl,
		)
		return retriever.NewPGVector(session, opts, embedder, cfg.Embedding.TaskType)
	default:
		return nil, fmt.Errorf("unsupported knowledge backend: %s", cfg.Knowledge.Backend)
	}
}

func buildGenerator(cfg *config.Config, session *warehouse.Session) (ai.IGenerator, error) {
	entries := make([]ai.GeneratorEntry, 0, len(cfg.Generation))
	for _, item := range cfg.Generation {
		var provider ai.IProvider
		if item.Provider == config.BackendCortex {
			provider = ai.NewCortexProvider(session)
		} else {
			p, err := ai.NewProvider(item.Provider, cfg.ProviderArgs(item.Provider))
			if err != nil {
				return nil, fmt.Errorf("init %s provider: %w", item.Provider, err)
			}
			provider = p
		}
		entries = append(entries, ai.GeneratorEntry{
			Name:      item.Provider + "/" + item.Model,
			Generator: ai.NewGenerator(provider, item.Model),
		})
	}
	gen := ai.NewGroupGenerator(entries)
	if gen == nil {
		return nil, fmt.Errorf("no generator configured")
	}
	return gen, nil
}

func buildTranscript(cfg *config.Config, scheduler schedule.Scheduler, redisClient *redis.Client) (transcript.Store, error) {
	idle := time.Duration(cfg.Transcript.IdleMinutes) * time.Minute
	if redisClient != nil {
		return transcript.NewRedis(redisClient, cfg.Transcript.Redis.KeyPrefix, idle), nil
	}
	store := transcript.NewMemory()
	if err := scheduler.AddJob(job.NewTranscriptSweepJob(store, idle), cfg.Transcript.SweepSpec); err != nil {
		return nil, err
	}
	return store, nil
}
