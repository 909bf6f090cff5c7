package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/suslab/spyroom/go/internal/chat"
	"github.com/suslab/spyroom/go/internal/game/events"
	"github.com/suslab/spyroom/go/internal/presence"
	"github.com/suslab/spyroom/go/internal/question"
	"github.com/suslab/spyroom/go/internal/room"
	"github.com/suslab/spyroom/go/internal/statestore"
)

// Services wires the coordinator's dependency chain:
// store → room manager / presence / chat → question provider → publisher.
type Services struct {
	Store     statestore.Store
	Rooms     *room.Manager
	Presence  *presence.Tracker
	Chat      *chat.Service
	Questions question.Provider
	Publisher events.Publisher

	closers []func()
}

func setupServices(ctx context.Context, cfg Config) (*Services, error) {
	services := &Services{}

	// Event publisher: NATS when configured, otherwise a no-op. Events
	// only accelerate convergence; the store stays the source of truth.
	services.Publisher = events.NopPublisher{}
	if cfg.NATSURL != "" {
		publisher, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return nil, fmt.Errorf("setup NATS publisher: %w", err)
		}
		services.Publisher = publisher
		services.closers = append(services.closers, publisher.Close)
	}

	store, err := setupStore(ctx, cfg)
	if err != nil {
		services.Close()
		return nil, err
	}
	services.Store = store
	services.closers = append(services.closers, func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close state store")
		}
	})

	services.Rooms = room.NewManager(store,
		room.WithPublisher(services.Publisher),
		room.WithStaleAfter(cfg.staleAfter()),
	)
	services.Presence = presence.NewTracker(store, services.Publisher, time.Now)
	services.Chat = chat.NewService(store, services.Publisher)
	services.Questions = setupQuestions(cfg)

	return services, nil
}

func setupStore(ctx context.Context, cfg Config) (statestore.Store, error) {
	switch cfg.StoreBackend {
	case "memory":
		return statestore.NewMemoryBackend().Connect("coordinator"), nil
	case "redis":
		store, err := statestore.NewRedisClient(ctx, statestore.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
			ClientID: "coordinator-" + uuid.New().String(),
		})
		if err != nil {
			return nil, fmt.Errorf("setup redis store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// setupQuestions builds the provider chain: an optional custom YAML pack
// tried first, falling back to the built-in library.
func setupQuestions(cfg Config) question.Provider {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	builtin := question.NewLibrary(rng)
	if cfg.QuestionPack == "" {
		return builtin
	}

	pack, err := question.LoadPack(cfg.QuestionPack)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.QuestionPack).Msg("failed to load question pack, using built-in library")
		return builtin
	}
	log.Info().Str("path", cfg.QuestionPack).Int("questions", len(pack)).Msg("loaded custom question pack")
	return question.WithFallback{
		Primary:  question.NewLibraryWith(pack, rng),
		Fallback: builtin,
	}
}

// Close releases everything setupServices opened, latest first.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}
