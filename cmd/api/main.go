package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"symptom-checker/internal/config"
	"symptom-checker/internal/db"
	apihttp "symptom-checker/internal/http"
	"symptom-checker/internal/llm"
	"symptom-checker/internal/repository"
	"symptom-checker/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	repo, closeStore, err := openHistoryStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("history store", zap.Error(err), zap.String("driver", cfg.HistoryDriver))
	}
	defer closeStore()

	if !cfg.HasAPIKey() {
		logger.Warn("GEN_API_KEY not configured; /analyze_symptoms will return 500")
	}
	geminiCfg := llm.DefaultGeminiConfig(cfg.GenAPIKey)
	geminiCfg.BaseURL = cfg.GeminiBaseURL
	geminiCfg.Model = cfg.GeminiModel
	llmClient := llm.NewGeminiClient(geminiCfg, &http.Client{}, logger)

	recorder := service.NewHistoryRecorder(repo, cfg.HistoryWorkers, logger)
	consultationSvc := service.NewConsultationService(llmClient, recorder, logger)
	historySvc := service.NewHistoryService(repo)

	var limiter service.RateLimiter
	if cfg.RedisAddr != "" && cfg.RateLimitPerMinute > 0 {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed, using in-memory rate limiter", zap.Error(err))
		} else {
			limiter = service.NewRedisRateLimiter(redisClient, "analyze_symptoms", time.Minute, cfg.RateLimitPerMinute, logger)
		}
		cancel()
	}
	if limiter == nil && cfg.RateLimitPerMinute > 0 {
		limiter = service.NewMemoryRateLimiter(time.Minute, cfg.RateLimitPerMinute)
	}

	consultationHandler := apihttp.NewConsultationHandler(logger, consultationSvc, historySvc)
	router := apihttp.NewRouter(logger, consultationHandler, limiter, cfg.CORSAllowOrigins)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting server", zap.String("port", cfg.HTTPPort), zap.String("history_driver", cfg.HistoryDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown", zap.Error(err))
	}
	recorder.Wait()
}

// openHistoryStore abre el backend de historial segun HISTORY_DRIVER.
func openHistoryStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.ConsultationRepository, func(), error) {
	switch cfg.HistoryDriver {
	case config.HistoryDriverPostgres:
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Ping(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		if err := db.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return repository.NewPgConsultationRepository(pool), pool.Close, nil
	case config.HistoryDriverSQLite, "":
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("sqlite history store", zap.String("path", cfg.SQLitePath))
		return repository.NewSQLiteConsultationRepository(conn), func() { _ = conn.Close() }, nil
	default:
		return nil, nil, errors.New("unknown HISTORY_DRIVER " + cfg.HistoryDriver)
	}
}
