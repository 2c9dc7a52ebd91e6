package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/property-search-assistant/internal/config"
	"github.com/kirillkom/property-search-assistant/internal/core/ports"
	"github.com/kirillkom/property-search-assistant/internal/core/usecase"
	"github.com/kirillkom/property-search-assistant/internal/infrastructure/extractor/ollama"
	ranklognats "github.com/kirillkom/property-search-assistant/internal/infrastructure/ranklog/nats"
	ranklogpg "github.com/kirillkom/property-search-assistant/internal/infrastructure/ranklog/postgres"
	"github.com/kirillkom/property-search-assistant/internal/infrastructure/resilience"
	retrievalpg "github.com/kirillkom/property-search-assistant/internal/infrastructure/retrieval/postgres"
	"github.com/kirillkom/property-search-assistant/internal/infrastructure/retrieval/qdrant"
	statspg "github.com/kirillkom/property-search-assistant/internal/infrastructure/stats/postgres"
	statsredis "github.com/kirillkom/property-search-assistant/internal/infrastructure/stats/redis"
)

type App struct {
	Config config.Config

	SearchUC ports.SearchService
	Queue    *ranklognats.Queue
	RankLog  ports.RankingLogStore
	Weights  *config.RerankWeightsSource

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := retrievalpg.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultPolicy(), log)

	listingSearch := retrievalpg.NewListingSearch(db, executor)
	if err := listingSearch.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure listings schema: %w", err)
	}

	statsRepo := statspg.NewStatsRepository(db)
	if err := statsRepo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure stats schema: %w", err)
	}

	rankLog := ranklogpg.NewRankingLogStore(db)
	if err := rankLog.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure ranking log schema: %w", err)
	}

	queue, err := ranklognats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, ranklognats.Options{
		ResilienceExecutor: executor,
		Logger:             log,
	})
	if err != nil {
		return nil, fmt.Errorf("init ranking log queue: %w", err)
	}

	sellerStats := statsredis.NewSellerStatsCache(statsredis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, statsRepo, log)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel)
	extractor := ollama.NewExtractor(ollamaClient)
	embedder := ollama.NewEmbedder(ollamaClient)

	listingIndex := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, embedder)

	weights, err := config.NewRerankWeightsSource(cfg.RerankWeightsPath, log)
	if err != nil {
		return nil, fmt.Errorf("load rerank weights: %w", err)
	}

	reranker := usecase.NewReranker(
		sellerStats,
		statsRepo,
		statsRepo,
		queue,
		time.Duration(cfg.RerankStatsTimeoutSeconds)*time.Second,
	)

	searchUC := usecase.NewSearchTurnUseCase(
		extractor,
		listingSearch,
		listingIndex,
		reranker,
		weights,
		usecase.SearchLimits{
			MaxIterations:    cfg.SearchMaxIterations,
			TurnTimeout:      time.Duration(cfg.SearchTurnTimeoutSeconds) * time.Second,
			ExtractorTimeout: time.Duration(cfg.SearchExtractorTimeoutSec) * time.Second,
			RetrievalTimeout: time.Duration(cfg.SearchRetrievalTimeoutSec) * time.Second,
			CandidateLimit:   cfg.SearchCandidateLimit,
		},
	)

	return &App{
		Config:   cfg,
		SearchUC: searchUC,
		Queue:    queue,
		RankLog:  rankLog,
		Weights:  weights,

		closeFn: func() {
			queue.Close()
			_ = sellerStats.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
