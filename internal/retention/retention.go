package retention

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Store is the part of the race history the pruner needs.
type Store interface {
	DeleteRacesBefore(ctx context.Context, t time.Time) (int64, error)
	TrimRaces(ctx context.Context, keep int) (int64, error)
}

type Config struct {
	Interval time.Duration
	// Races older than this are deleted; zero keeps them forever
	MaxAge time.Duration
	// At most this many races are kept; zero means no limit
	KeepRecent int
}

func DefaultConfig() Config {
	return Config{
		Interval:   10 * time.Minute,
		MaxAge:     30 * 24 * time.Hour,
		KeepRecent: 10000,
	}
}

type Service struct {
	store  Store
	config Config
	logger *slog.Logger
	now    func() time.Time
	stop   chan struct{}
	wg     sync.WaitGroup
}

func New(store Store, config Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		config: config,
		logger: logger,
		now:    time.Now,
		stop:   make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	s.logger.Info("retention service started",
		"interval", s.config.Interval, "max_age", s.config.MaxAge, "keep_recent", s.config.KeepRecent)
}

func (s *Service) Stop() {
	close(s.stop)
	s.wg.Wait()
	s.logger.Info("retention service stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.pruneLogged()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.pruneLogged()
		}
	}
}

func (s *Service) pruneLogged() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := s.PruneNow(ctx)
	if err != nil {
		s.logger.Error("retention: prune failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Info("pruned race history", "deleted", deleted)
	}
}

// PruneNow applies both limits once and returns how many races were deleted.
func (s *Service) PruneNow(ctx context.Context) (int64, error) {
	var total int64

	if s.config.MaxAge > 0 {
		n, err := s.store.DeleteRacesBefore(ctx, s.now().Add(-s.config.MaxAge))
		if err != nil {
			return total, err
		}
		total += n
	}

	if s.config.KeepRecent > 0 {
		n, err := s.store.TrimRaces(ctx, s.config.KeepRecent)
		if err != nil {
			return total, err
		}
		total += n
	}

	return total, nil
}
