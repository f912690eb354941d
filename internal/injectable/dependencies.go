package injectable

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/bravo68web/qadeck/internal/application/service"
	"github.com/bravo68web/qadeck/internal/config"
	domainservice "github.com/bravo68web/qadeck/internal/domain/service"
	"github.com/bravo68web/qadeck/internal/infrastructure/basecamp"
	"github.com/bravo68web/qadeck/internal/infrastructure/cache"
	"github.com/bravo68web/qadeck/internal/infrastructure/database"
	"github.com/bravo68web/qadeck/internal/infrastructure/oauth"
	"github.com/bravo68web/qadeck/internal/infrastructure/repository"
	"github.com/bravo68web/qadeck/internal/transport/http/middleware"
	"github.com/bravo68web/qadeck/pkg/logger"
)

// Dependencies holds all the dependencies required by the router and the CLI
type Dependencies struct {
	DB *database.Database

	// Services
	TokenService        *service.TokenService
	TokenRefreshCron    *service.TokenRefreshCron
	CardService         *service.CardService
	NoteService         *service.NoteService
	BasecampAuthService *service.BasecampAuthService

	// Auth is nil until LoadAuth is called. CLI commands never need it.
	Auth *middleware.AuthMiddleware

	Redis   *redis.Client
	closers []io.Closer
}

// LoadDependencies wires repositories, caches and services. Redis is only
// dialled when redis.enabled is set.
func LoadDependencies(ctx context.Context, cfg *config.Config, db *database.Database) (*Dependencies, error) {
	log := logger.Get().WithFields(logger.Component("dependencies"))
	deps := &Dependencies{DB: db}

	// Initialize repositories
	tokenRepo := repository.NewOAuthTokenRepository(db.DB())
	noteRepo := repository.NewTestNoteRepository(db.DB())

	// Initialize shared state
	var (
		stateCache domainservice.Cache = cache.NewMemoryCache(cache.DefaultMaxEntries)
		cardCache  domainservice.Cache = cache.NewMemoryCache(cache.DefaultMaxEntries)
		tokenOpts  []service.TokenServiceOption
	)
	if cfg.Redis.Enabled {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		deps.Redis = rdb
		deps.closers = append(deps.closers, rdb)

		// OAuth states must survive a callback landing on another instance
		stateCache = cache.NewRedisCache(rdb, "qadeck:state:")
		if cfg.Cache.Backend == "redis" {
			cardCache = cache.NewRedisCache(rdb, "")
		}
		tokenOpts = append(tokenOpts, service.WithRefreshLocker(cache.NewLocker(rdb, ""), cfg.Redis.LockTTL))
		log.Info("Redis enabled", logger.String("addr", cfg.Redis.Addr), logger.String("cache_backend", cfg.Cache.Backend))
	}

	// Initialize clients
	provider := oauth.NewLaunchpadClient(oauth.Config{
		ClientID:     cfg.Basecamp.ClientID,
		ClientSecret: cfg.Basecamp.ClientSecret,
		RedirectURI:  cfg.Basecamp.RedirectURI,
		LaunchpadURL: cfg.Basecamp.LaunchpadURL,
		UserAgent:    cfg.Basecamp.UserAgent,
		Timeout:      cfg.Basecamp.Timeout,
	})

	tokenService := service.NewTokenService(tokenRepo, provider, tokenOpts...)

	client, err := basecamp.NewClient(basecamp.Options{
		AccountID:   cfg.Basecamp.AccountID,
		UserAgent:   cfg.Basecamp.UserAgent,
		BaseURL:     cfg.Basecamp.APIBaseURL,
		ProjectID:   cfg.Basecamp.ProjectID,
		CardTableID: cfg.Basecamp.CardTableID,
		ColumnID:    cfg.Basecamp.ColumnID,
		Timeout:     cfg.Basecamp.Timeout,
		RetryCount:  cfg.Basecamp.RetryCount,
	}, tokenService)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to create basecamp client: %w", err)
	}

	// Initialize services
	cardService := service.NewCardService(client, cfg.Basecamp, cardCache, cfg.Cache.TTL)

	deps.TokenService = tokenService
	deps.TokenRefreshCron = service.NewTokenRefreshCron(tokenService, tokenRepo, cfg.Refresher.Schedule, cfg.Refresher.Window)
	deps.CardService = cardService
	deps.NoteService = service.NewNoteService(noteRepo, cardService, cardCache, cfg.Cache.TTL)
	deps.BasecampAuthService = service.NewBasecampAuthService(provider, tokenRepo, tokenService, stateCache)

	return deps, nil
}

// LoadAuth builds the caller verifiers. OIDC discovery contacts the issuer,
// so this is only done by the HTTP server.
func (d *Dependencies) LoadAuth(ctx context.Context, cfg config.AuthConfig) error {
	var verifiers []middleware.TokenVerifier
	if cfg.JWTSecret != "" {
		verifiers = append(verifiers, middleware.NewHMACVerifier(cfg.JWTSecret))
	}
	if cfg.OIDCIssuerURL != "" {
		v, err := middleware.NewOIDCVerifier(ctx, cfg.OIDCIssuerURL, cfg.OIDCClientID)
		if err != nil {
			return err
		}
		verifiers = append(verifiers, v)
	}
	if len(verifiers) == 0 {
		return errors.New("no caller authentication configured")
	}

	d.Auth = middleware.NewAuthMiddleware(verifiers...)
	return nil
}

// Close releases connections opened by LoadDependencies. The database is
// owned by the caller.
func (d *Dependencies) Close() error {
	var errs []error
	for _, c := range d.closers {
		errs = append(errs, c.Close())
	}
	d.closers = nil
	return errors.Join(errs...)
}
