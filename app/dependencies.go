package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/upb/secure-rag/config"
	"github.com/upb/secure-rag/middleware"
	"github.com/upb/secure-rag/repositories/postgres"
	"github.com/upb/secure-rag/services/audit"
	"github.com/upb/secure-rag/services/authz"
	"github.com/upb/secure-rag/services/guard"
	"github.com/upb/secure-rag/services/normalizer"
	"github.com/upb/secure-rag/services/providers/cerbos"
	"github.com/upb/secure-rag/services/providers/ollama"
	"github.com/upb/secure-rag/services/providers/qdrant"
	"github.com/upb/secure-rag/services/query"
	"github.com/upb/secure-rag/services/redact"
	"github.com/upb/secure-rag/services/retrieval"
	"github.com/upb/secure-rag/services/semcache"
)

// Dependencies is the central wiring point for the query pipeline and
// its supporting infrastructure.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	// Infrastructure
	Redis *redis.Client
	DB    *postgres.DB

	// Pipeline services
	Cache        *semcache.Service
	Retriever    *retrieval.HybridRetriever
	Authorizer   *authz.Service
	Guard        *guard.Service
	QueryService *query.Service
	AuditService *audit.Service

	// HTTP
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initCache(cfg)

	if err := deps.initRetrieval(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize retrieval: %w", err)
	}

	deps.initAuthorization(cfg)
	deps.initGuard(ctx, cfg)

	if err := deps.initAudit(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize audit trail: %w", err)
	}

	deps.initQueryService(cfg)
	deps.AuthMiddleware = middleware.NewAuthMiddleware(cfg.Server.JWTSecret, cfg.Principal.Profile, logger)

	logger.Info("all dependencies initialized")
	return deps, nil
}

func (d *Dependencies) initCache(cfg *config.Config) {
	d.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})
	d.Cache = semcache.NewService(d.Redis, semcache.Config{
		TTL:         cfg.Cache.TTL,
		MaxRetries:  cfg.Cache.MaxRetries,
		CallTimeout: cfg.Cache.CallTimeout,
	}, d.Logger)
}

func newOllamaClient(cfg *config.Config) *ollama.Client {
	return ollama.NewClient(cfg.Ollama.BaseURL,
		ollama.WithHTTPClient(&http.Client{Timeout: cfg.Ollama.Timeout}),
		ollama.WithRetry(uint(cfg.Ollama.MaxRetries), 200*time.Millisecond),
	)
}

func (d *Dependencies) initRetrieval(cfg *config.Config) error {
	ollamaClient := newOllamaClient(cfg)
	embedder := ollama.NewEmbedder(ollamaClient, cfg.Ollama.EmbedModel)

	store := qdrant.NewStore(qdrant.Config{
		URL:        cfg.Retrieval.QdrantURL,
		APIKey:     cfg.Retrieval.QdrantAPIKey,
		Collection: cfg.Retrieval.QdrantCollection,
		Timeout:    cfg.Retrieval.CallTimeout,
	})
	dense := retrieval.NewDenseRetriever(embedder, store)

	lexical, err := retrieval.LoadLexicalRetriever(cfg.Retrieval.BM25CorpusPath)
	if err != nil {
		return fmt.Errorf("loading lexical corpus: %w", err)
	}
	d.Logger.Info("lexical corpus loaded",
		zap.String("path", cfg.Retrieval.BM25CorpusPath),
		zap.Int("documents", lexical.Size()))

	d.Retriever = retrieval.NewHybridRetriever(dense, lexical, retrieval.Config{
		TopK:    cfg.Retrieval.TopK,
		FusionK: cfg.Retrieval.FusionK,
		Limit:   cfg.Retrieval.ContextDocs,
	}, d.Logger)
	return nil
}

func (d *Dependencies) initAuthorization(cfg *config.Config) {
	policyClient := cerbos.NewClient(cerbos.Config{
		URL:      cfg.Policy.CerbosURL,
		Timeout:  cfg.Policy.CallTimeout,
		Attempts: uint(cfg.Policy.MaxRetries),
	})
	d.Authorizer = authz.NewService(policyClient, d.Logger)
}

func (d *Dependencies) initGuard(ctx context.Context, cfg *config.Config) {
	ollamaClient := newOllamaClient(cfg)
	generator := ollama.NewGenerator(ollamaClient, cfg.Ollama.LLMModel)
	classifier := ollama.NewGuardClassifier(ollamaClient, cfg.Ollama.GuardModel)

	d.Guard = guard.Resolve(ctx, cfg.Principal.Profile, generator, classifier, d.Logger)
}

func (d *Dependencies) initAudit(cfg *config.Config) error {
	if !cfg.AuditEnabled() {
		d.Logger.Info("query audit trail disabled, DATABASE_URL not set")
		return nil
	}

	db, err := postgres.NewDB(cfg.AuditDatabase, d.Logger)
	if err != nil {
		return err
	}
	d.DB = db

	repo := postgres.NewQueryAuditRepository(db, d.Logger)
	d.AuditService = audit.NewService(repo, d.Logger, audit.DefaultConfig())
	return d.AuditService.Start()
}

func (d *Dependencies) initQueryService(cfg *config.Config) {
	// A nil *audit.Service must not reach the orchestrator as a
	// non-nil interface value.
	var auditor query.Auditor
	if d.AuditService != nil {
		auditor = d.AuditService
	}

	d.QueryService = query.NewService(
		normalizer.NewService(),
		d.Cache,
		d.Retriever,
		d.Authorizer,
		redact.NewService(),
		d.Guard,
		auditor,
		query.Config{ContextDocs: cfg.Retrieval.ContextDocs},
		d.Logger,
	)
}

// Close releases held resources.
func (d *Dependencies) Close() {
	if d.AuditService != nil {
		if err := d.AuditService.Stop(5 * time.Second); err != nil {
			d.Logger.Warn("audit service shutdown", zap.Error(err))
		}
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
	if d.Redis != nil {
		_ = d.Redis.Close()
	}
}
