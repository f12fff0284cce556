// Package app assembles the hub's dependency graph once at startup and
// passes interfaces down, instead of process-wide singletons.
package app

import (
	"fmt"
	"log"
	"time"

	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/auth"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/broker"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/config"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/hub"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/metrics"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/push"
	"github.com/Carlos-Mesquita/SE-Doorbell-Camera/internal/store"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Deps is the hub's assembled object graph.
type Deps struct {
	Store    *store.Store
	Auth     *auth.Decoder
	Push     *push.Dispatcher
	Ingest   *hub.Ingestion
	Sessions *hub.SessionServer
	HTTP     *hub.HTTPServer
	Broker   *broker.Broker
	Signals  *broker.WSServer
}

// Build opens the database, migrates the schema, and wires every hub
// collaborator from cfg.
func Build(cfg *config.Config) (*Deps, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := store.New(db)
	if err := s.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("app: migrate: %w", err)
	}

	decoder := auth.NewDecoder([]byte(cfg.JWT.Access.Key), cfg.JWT.Algorithm, cfg.RPIOwnerUserID)

	var provider push.Provider = push.LogProvider{}
	if cfg.FCMServerKey != "" {
		provider = push.NewFCMProvider(cfg.FCMServerKey)
	}
	pusher := push.NewDispatcher(provider, s, cfg.PushTimeout(), cfg.PushMaxRetries)

	limiter := hub.NewRateLimiter(time.Duration(cfg.MotionRateLimitMinutes) * time.Minute)
	ingest := hub.NewIngestion(s, limiter, hub.NewCorrelationIndex(), pusher, hub.FileImageWriter{}, cfg.CaptureDir)

	b := broker.New()
	// the device learns about viewers through its own broadcaster
	// session; this hub-side hook only surfaces the transition for
	// operators
	b.SetPresenceHandler(func(roomID, broadcasterConnID string, present bool) {
		active := 0.0
		if present {
			active = 1
		}
		metrics.RoomViewersActive.WithLabelValues(roomID).Set(active)
		log.Printf("[broker] room %s viewers present=%v (broadcaster %s)", roomID, present, broadcasterConnID)
	})

	return &Deps{
		Store:    s,
		Auth:     decoder,
		Push:     pusher,
		Ingest:   ingest,
		Sessions: hub.NewSessionServer(decoder, ingest, s, time.Duration(cfg.WSInactivitySeconds*float64(time.Second))),
		HTTP:     hub.NewHTTPServer(s, decoder, cfg.WebRTC.TurnServer.Host, cfg.WebRTC.TurnServer.Secret),
		Broker:   b,
		Signals:  broker.NewWSServer(b, decoder),
	}, nil
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch cfg.DatabaseDriver {
	case "postgres":
		db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("app: open postgres: %w", err)
		}
		return db, nil
	case "sqlite", "":
		dsn := cfg.DatabaseDSN
		if dsn == "" {
			dsn = "doorbell.db"
		}
		db, err := gorm.Open(sqlite.Open(dsn), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("app: open sqlite: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("app: unknown database driver %q", cfg.DatabaseDriver)
	}
}
