package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fridayce/rork-mapcask/internal/catalog"
	"github.com/fridayce/rork-mapcask/internal/config"
	"github.com/fridayce/rork-mapcask/internal/contacts"
	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/events"
	"github.com/fridayce/rork-mapcask/internal/httpserver"
	"github.com/fridayce/rork-mapcask/internal/security"
	"github.com/fridayce/rork-mapcask/internal/service"
	"github.com/fridayce/rork-mapcask/internal/storage"
	"github.com/fridayce/rork-mapcask/internal/store"
	"github.com/fridayce/rork-mapcask/internal/store/memory"
	"github.com/fridayce/rork-mapcask/internal/store/postgres"
	"github.com/fridayce/rork-mapcask/internal/store/redis"
	"github.com/fridayce/rork-mapcask/internal/store/sqlite"
	"github.com/fridayce/rork-mapcask/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	setupLogger(level, cfg.IsProduction())

	ctx := context.Background()

	kv, closeKV, err := openKV(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open key-value store")
	}
	defer closeKV.Close()

	if cfg.EncryptKey != "" {
		enc, err := security.NewEncryptor([]byte(cfg.EncryptKey), cfg.LegacyKeys)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize encryptor")
		}
		kv = store.NewEncryptedStore(kv, enc)
		log.Info().Int("legacy_keys", len(cfg.LegacyKeys)).Msg("encryption at rest enabled")
	}

	hub := ws.NewHub()
	sinks := events.Multi{hub}
	if len(cfg.Kafka.Brokers) > 0 {
		kafka := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kafka.Close()
		sinks = append(sinks, kafka)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("streaming events to kafka")
	}

	tokens := security.NewTokenService(cfg.JWTSecret, time.Duration(cfg.AccessTokenMinutes)*time.Minute)

	app := service.NewAppService(kv, sinks)
	if err := app.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to load app state")
	}

	book := contacts.NewAddressBook()
	social := service.NewSocialService(kv, app, book, sinks)
	if err := social.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to load social state")
	}

	sessions := service.NewSessionService(app, tokens)
	sessions.OnSessionEnd = hub.Disconnect
	admin := service.NewAdminService(kv, app, social, tokens, security.NewPasswordHasher(0), cfg.AdminPasswordHash)
	if cfg.AdminPasswordHash == "" {
		log.Warn().Msg("ADMIN_PASSWORD_HASH not set, admin portal disabled")
	}

	var photos *service.PhotoService
	if cfg.S3.Bucket != "" {
		s3, err := storage.NewS3Storage(ctx, storage.S3Config{
			Region:        cfg.S3.Region,
			Bucket:        cfg.S3.Bucket,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			Endpoint:      cfg.S3.Endpoint,
			PublicBaseURL: cfg.S3.PublicBaseURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize photo storage")
		}
		photos = service.NewPhotoService(s3, app)
	}

	cat, err := catalog.Default()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load bourbon catalog")
	}

	router := httpserver.NewRouter(httpserver.Deps{
		Config:      cfg,
		Hub:         hub,
		App:         app,
		Social:      social,
		Sessions:    sessions,
		Admin:       admin,
		Photos:      photos,
		Catalog:     cat,
		AddressBook: book,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr()).Str("store", cfg.StoreDriver).Msgf("starting %s", cfg.AppName)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openKV picks the persistence backend named by STORE_DRIVER.
func openKV(ctx context.Context, cfg *config.Config) (domain.KeyValueStore, io.Closer, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		log.Warn().Msg("using in-memory store, nothing survives a restart")
		return memory.NewKVStore(), nopCloser{}, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return sqlite.NewKVRepo(db), db, nil
	case config.DriverPostgres:
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return postgres.NewKVRepo(db), db, nil
	case config.DriverRedis:
		kv, err := redis.Connect(ctx, redis.Options{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			Namespace: cfg.Redis.Namespace,
		})
		if err != nil {
			return nil, nil, err
		}
		return kv, kv, nil
	default:
		return nil, nil, errors.New("unknown store driver " + cfg.StoreDriver)
	}
}

func setupLogger(level string, production bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if !production {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
