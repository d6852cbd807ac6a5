// Package app assembles the knowledge base services from configuration.
// Every external store is optional: without MongoDB, Redis or MinIO the
// corresponding in-memory implementation is used.
package app

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ninersracing/kbwiki/handlers"
	"github.com/ninersracing/kbwiki/internal/accounts"
	"github.com/ninersracing/kbwiki/internal/catalog"
	"github.com/ninersracing/kbwiki/internal/comments"
	"github.com/ninersracing/kbwiki/internal/config"
	"github.com/ninersracing/kbwiki/internal/database"
	"github.com/ninersracing/kbwiki/internal/document/repository"
	"github.com/ninersracing/kbwiki/internal/oidc"
	"github.com/ninersracing/kbwiki/internal/portfolio"
	"github.com/ninersracing/kbwiki/internal/serial"
	"github.com/ninersracing/kbwiki/internal/sessions"
	"github.com/ninersracing/kbwiki/internal/storage"
	"github.com/ninersracing/kbwiki/internal/tokens"
	"github.com/ninersracing/kbwiki/internal/users"
	"github.com/ninersracing/kbwiki/pkg/logger"
	"github.com/ninersracing/kbwiki/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoAttempts is how often New tries to reach MongoDB before falling back.
const MongoAttempts = 5

// App holds the wired services.
type App struct {
	Config *config.Config

	Redis *redis.Client
	Mongo *mongo.Client

	Documents  repository.Repository
	Catalog    *catalog.Service
	Comments   *comments.Service
	Users      *users.Service
	Sessions   *sessions.Service
	Accounts   *accounts.Service
	Portfolios *portfolio.Service
	Uploader   *storage.Uploader

	counters serial.CounterStore
	verifier middleware.Verifier
	idTokens middleware.Verifier
}

// New connects to the configured stores and builds every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}
	a.connectRedis(ctx)
	if err := a.connectMongo(ctx); err != nil {
		return nil, err
	}

	var (
		docs     repository.Repository
		counters serial.CounterStore
		userRepo users.UserRepository
		comRepo  comments.Repository
		reqRepo  accounts.Repository
		portRepo portfolio.Repository
		sessRepo sessions.Repository
	)
	if a.Mongo != nil {
		db := a.Mongo.Database(cfg.MongoDB.Database)
		docs = repository.NewMongoRepo(ctx, db.Collection(database.DocumentsCollection))
		counters = serial.NewMongoCounters(db.Collection(database.CountersCollection))
		userRepo = users.NewMongoUserRepository(ctx, db.Collection(database.UsersCollection))
		comRepo = comments.NewMongoRepo(ctx, db.Collection(database.CommentsCollection))
		reqRepo = accounts.NewMongoRepo(ctx, db.Collection(database.AccountRequestsCollection))
		portRepo = portfolio.NewMongoRepo(db.Collection(database.PortfoliosCollection), db.Collection(database.PortfolioSlugsCollection))
		sessRepo = sessions.NewMongoRepository(ctx, db.Collection(database.SessionsCollection))
	} else {
		logger.Warn("MongoDB unavailable; data is kept in memory and lost on restart")
		docs = repository.NewMemoryRepo()
		counters = serial.NewMemoryCounters()
		userRepo = users.NewMemoryUserRepository()
		comRepo = comments.NewMemoryRepo()
		reqRepo = accounts.NewMemoryRepo()
		portRepo = portfolio.NewMemoryRepo()
		sessRepo = sessions.NewMemoryRepository()
	}
	if a.Redis != nil {
		sessRepo = sessions.NewRedisRepository(a.Redis, "session:")
		logger.Infof("using Redis for sessions")
		// Counters must not outlive the documents they number.
		if a.Mongo != nil {
			counters = serial.NewRedisCounters(a.Redis)
			logger.Infof("using Redis for serial counters")
		}
	}

	var gen serial.Generator
	if cfg.Catalog.SerialMode == "counter" {
		gen = serial.NewCounterGenerator(docs, counters)
	}

	a.Documents = docs
	a.counters = counters
	a.Catalog = catalog.NewService(docs, gen, cfg.Catalog.SnapshotTTL)
	a.Comments = comments.NewService(comRepo, a.Catalog)
	a.Users = users.NewService(userRepo)
	a.Sessions = sessions.NewService(sessRepo)
	a.Accounts = accounts.NewService(reqRepo, a.Users)
	a.Portfolios = portfolio.NewService(portRepo)
	a.Uploader = storage.NewUploader(a.blobStore(ctx))
	a.setupVerifiers(ctx)
	return a, nil
}

func (a *App) connectRedis(ctx context.Context) {
	addr := a.Config.Redis.Addr()
	if addr == "" {
		return
	}
	client := redis.NewClient(&redis.Options{Addr: addr, Password: a.Config.Redis.Password, DB: a.Config.Redis.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnf("failed to connect to Redis (%s): %v", addr, err)
		_ = client.Close()
		return
	}
	a.Redis = client
	sessions.SetBlacklistClient(client)
	logger.Infof("connected to Redis at %s", addr)
}

func (a *App) connectMongo(ctx context.Context) error {
	if a.Config.MongoDB.URI == "" {
		return nil
	}
	client, err := database.ConnectWithRetry(ctx, a.Config.MongoDB.URI, a.Config.MongoDB.Timeout, MongoAttempts)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		logger.Warnf("could not connect to MongoDB: %v", err)
		return nil
	}
	a.Mongo = client
	return nil
}

func (a *App) blobStore(ctx context.Context) storage.BlobStore {
	if a.Config.MinIO.Endpoint == "" {
		logger.Warn("MINIO_ENDPOINT not set; attachments are kept in memory")
		return storage.NewMemoryStore()
	}
	store, err := storage.NewMinIOStore(ctx, a.Config.MinIO)
	if err != nil {
		logger.Warnf("MinIO unavailable, attachments are kept in memory: %v", err)
		return storage.NewMemoryStore()
	}
	return store
}

// setupVerifiers accepts this service's own tokens and, when Keycloak is
// configured, Keycloak ID tokens as well.
func (a *App) setupVerifiers(ctx context.Context) {
	local := tokens.NewHS256Verifier(a.Config.JWT.Secret)
	a.verifier = local
	kc := a.Config.Keycloak
	if !kc.Enabled() {
		return
	}
	ver, err := oidc.NewVerifier(ctx, kc.Issuer(), kc.ClientID)
	switch {
	case err == nil:
		a.idTokens = ver
	case kc.AllowInsecureToken:
		logger.Warn("enabling insecure OIDC verifier (integration mode)")
		a.idTokens = oidc.NewInsecureVerifier(kc.ClientID)
	default:
		logger.Warnf("failed to initialize OIDC verifier: %v", err)
		return
	}
	a.verifier = middleware.FirstOf(local, a.idTokens)
}

// Router builds the HTTP engine for the wired services.
func (a *App) Router() *gin.Engine {
	cfg := a.Config
	var limiter gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.UseRedis && a.Redis != nil {
			win := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
			limiter = middleware.RedisRateLimitMiddleware(a.Redis, cfg.RateLimit.RPS, cfg.RateLimit.Burst, win)
		} else {
			limiter = middleware.RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		}
	}
	return handlers.NewRouter(handlers.Deps{
		Verifier:   a.verifier,
		Resolver:   oidc.RoleResolver(a.Users),
		Auth:       handlers.NewAuthHandler(cfg, a.Users, a.Sessions, a.idTokens),
		Documents:  handlers.NewDocumentHandler(a.Catalog, a.Comments, a.Uploader),
		Accounts:   handlers.NewAccountHandler(a.Accounts),
		Portfolios: handlers.NewPortfolioHandler(a.Portfolios),
		RateLimit:  limiter,
		Ready:      a.readyChecks(),
		Metrics:    promhttp.Handler(),
	})
}

func (a *App) readyChecks() map[string]handlers.ReadyCheck {
	checks := map[string]handlers.ReadyCheck{}
	if a.Mongo != nil {
		checks["mongo"] = func(ctx context.Context) error { return a.Mongo.Ping(ctx, nil) }
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	return checks
}

// Close releases the store connections.
func (a *App) Close(ctx context.Context) {
	if a.Mongo != nil {
		if err := a.Mongo.Disconnect(ctx); err != nil {
			logger.Warnf("mongo disconnect: %v", err)
		}
	}
	if a.Redis != nil {
		sessions.SetBlacklistClient(nil)
		_ = a.Redis.Close()
	}
}
