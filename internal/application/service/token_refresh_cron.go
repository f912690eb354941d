package service

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bravo68web/qadeck/internal/domain/repository"
	"github.com/bravo68web/qadeck/pkg/logger"
)

// TokenRefreshCron renews active tokens shortly before they expire so user
// requests rarely pay for a refresh.
type TokenRefreshCron struct {
	tokens    *TokenService
	tokenRepo repository.OAuthTokenRepository
	schedule  string
	window    time.Duration
	cron      *cron.Cron
	running   bool
	mu        sync.Mutex
	log       *logger.Logger
}

// NewTokenRefreshCron creates a new refresher. schedule uses cron syntax,
// including descriptors such as "@every 5m".
func NewTokenRefreshCron(
	tokens *TokenService,
	tokenRepo repository.OAuthTokenRepository,
	schedule string,
	window time.Duration,
) *TokenRefreshCron {
	if schedule == "" {
		schedule = "@every 5m"
	}
	if window <= 0 {
		window = 10 * time.Minute
	}

	return &TokenRefreshCron{
		tokens:    tokens,
		tokenRepo: tokenRepo,
		schedule:  schedule,
		window:    window,
		log:       logger.Get().WithFields(logger.Component("token-refresh-cron")),
	}
}

// Start starts the scheduler
func (s *TokenRefreshCron) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.log.Warn("Token refresh cron already running")
		return nil
	}

	c := cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, s.tick); err != nil {
		return err
	}
	c.Start()

	s.cron = c
	s.running = true
	s.log.Info("Token refresh cron started",
		logger.String("schedule", s.schedule),
		logger.Duration("window", s.window),
	)
	return nil
}

// Stop stops the scheduler and waits for a running pass to finish
func (s *TokenRefreshCron) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.log.Info("Stopping token refresh cron")
	<-s.cron.Stop().Done()
	s.running = false
	s.log.Info("Token refresh cron stopped")
}

// IsRunning returns whether the scheduler is running
func (s *TokenRefreshCron) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *TokenRefreshCron) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	refreshed, failed, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Error("Token refresh pass failed", logger.Error(err))
		return
	}
	if refreshed+failed > 0 {
		s.log.Info("Token refresh pass finished",
			logger.Int("refreshed", refreshed),
			logger.Int("failed", failed),
		)
	}
}

// RunOnce refreshes every token expiring within the window. A failure for
// one user does not stop the pass, and a token a peer instance rotated since
// the listing is skipped.
func (s *TokenRefreshCron) RunOnce(ctx context.Context) (refreshed, failed int, err error) {
	deadline := s.tokens.now().Add(s.window)
	expiring, err := s.tokenRepo.ListExpiringTokens(ctx, deadline)
	if err != nil {
		return 0, 0, err
	}

	seen := make(map[string]struct{}, len(expiring))
	for _, t := range expiring {
		if _, dup := seen[t.UserID]; dup {
			continue
		}
		seen[t.UserID] = struct{}{}

		_, rotated, err := s.tokens.RefreshIfExpiring(ctx, t.UserID, deadline)
		if err != nil {
			failed++
			s.log.Warn("Proactive refresh failed", logger.UserID(t.UserID), logger.Error(err))
			continue
		}
		if rotated {
			refreshed++
		}
	}
	return refreshed, failed, nil
}
