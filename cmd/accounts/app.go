package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/accounts/internal/api"
	"github.com/99minutos/accounts/internal/api/handler"
	"github.com/99minutos/accounts/internal/core/ports"
	"github.com/99minutos/accounts/internal/core/service"
	mongostore "github.com/99minutos/accounts/internal/infrastructure/db/mongo"
	pgstore "github.com/99minutos/accounts/internal/infrastructure/db/postgres"
	redisstore "github.com/99minutos/accounts/internal/infrastructure/db/redis"
	"github.com/99minutos/accounts/internal/infrastructure/mailer"
	"github.com/99minutos/accounts/internal/infrastructure/storage"
	"github.com/99minutos/accounts/internal/pkg/config"
	"github.com/99minutos/accounts/pkg/logger"
)

// userStore is the selected persistence backend plus its lifecycle hooks.
type userStore struct {
	repo    ports.UserRepository
	check   handler.DependencyCheck
	migrate func(ctx context.Context) error
	close   func(ctx context.Context) error
}

func openUserStore(ctx context.Context, cfg *config.Config) (*userStore, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		db, err := pgstore.Connect(ctx, pgstore.Config{DSN: cfg.Postgres.DSN})
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("postgres handle: %w", err)
		}
		return &userStore{
			repo:    pgstore.NewUserRepository(db),
			check:   handler.DependencyCheck{Name: "postgres", Check: sqlDB.PingContext},
			migrate: func(ctx context.Context) error { return pgstore.Migrate(ctx, db) },
			close:   func(context.Context) error { return sqlDB.Close() },
		}, nil

	default:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{
			URI:         cfg.Mongo.URI,
			Database:    cfg.Mongo.Database,
			AppName:     serviceName,
			MaxPoolSize: cfg.Mongo.MaxPoolSize,
		})
		if err != nil {
			return nil, err
		}
		repo := mongostore.NewUserRepository(db)
		return &userStore{
			repo:    repo,
			check:   handler.DependencyCheck{Name: "mongodb", Check: func(ctx context.Context) error { return mongostore.Ping(ctx, client) }},
			migrate: repo.EnsureIndexes,
			close:   client.Disconnect,
		}, nil
	}
}

func migrate(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, err := openUserStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.close(context.Background()) }()

	if err := store.migrate(ctx); err != nil {
		return fmt.Errorf("migrate %s store: %w", cfg.Store.Driver, err)
	}
	log.Info().Str("driver", cfg.Store.Driver).Msg("user store schema up to date")
	return nil
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	store, err := openUserStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.close(context.Background()) }()

	// Unique indexes must exist before the first registration.
	if err := store.migrate(ctx); err != nil {
		return fmt.Errorf("migrate %s store: %w", cfg.Store.Driver, err)
	}

	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()

	mail, err := mailer.New(mailer.Config{
		Provider:      cfg.Mail.Provider,
		From:          cfg.Mail.From,
		FromName:      cfg.Mail.FromName,
		SMTPHost:      cfg.Mail.SMTPHost,
		SMTPPort:      cfg.Mail.SMTPPort,
		SMTPUsername:  cfg.Mail.SMTPUsername,
		SMTPPassword:  cfg.Mail.SMTPPassword,
		MailgunDomain: cfg.Mail.MailgunDomain,
		MailgunKey:    cfg.Mail.MailgunKey,
		SendGridKey:   cfg.Mail.SendGridKey,
	}, logger.Component("mailer"))
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}

	blobs, err := storage.New(ctx, storage.Config{
		Provider:       cfg.Storage.Provider,
		PublicURL:      cfg.Storage.MediaURL,
		Root:           cfg.Storage.MediaRoot,
		MinioEndpoint:  cfg.Storage.MinioEndpoint,
		MinioAccessKey: cfg.Storage.MinioAccessKey,
		MinioSecretKey: cfg.Storage.MinioSecretKey,
		MinioBucket:    cfg.Storage.MinioBucket,
		MinioUseSSL:    cfg.Storage.MinioUseSSL,
	})
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	accounts, authn := wireServices(cfg, store.repo, redisstore.NewBlacklist(rdb), mail, blobs)

	checks := []handler.DependencyCheck{
		store.check,
		{Name: "redis", Check: func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) }},
	}
	if p, ok := blobs.(interface{ Ping(context.Context) error }); ok {
		checks = append(checks, handler.DependencyCheck{Name: "minio", Check: p.Ping})
	}

	deps := api.Dependencies{
		Accounts:      accounts,
		Authenticator: authn,
		Checks:        checks,
		Log:           logger.Component("http"),
		BodyLimit:     bodyLimit(cfg.Storage.AvatarMaxBytes),
	}
	if cfg.Storage.Provider == storage.ProviderFilesystem {
		deps.MediaRoot = cfg.Storage.MediaRoot
	}

	e := api.NewRouter(deps)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.Store.Driver).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// wireServices builds the core use cases on top of the infrastructure adapters.
func wireServices(
	cfg *config.Config,
	repo ports.UserRepository,
	blacklist ports.TokenBlacklist,
	mail ports.Mailer,
	blobs ports.BlobStore,
) (*service.AccountService, *service.SessionIssuer) {
	store := service.NewCredentialStore(repo, logger.Component("credential_store"))
	presenter := service.NewUserPresenter(blobs)
	codec := service.NewActionTokenCodec(cfg.Auth.JWTSecret)

	sessions := service.NewSessionIssuer(store, blacklist, presenter, service.SessionConfig{
		Secret:     cfg.Auth.JWTSecret,
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
	}, logger.Component("sessions"))

	notifier := service.NewNotifier(mail, codec, service.NotifierConfig{
		PublicDomain: cfg.PublicDomain,
		TokenTTLDays: cfg.Auth.PasswordResetExpireDays,
		Timeout:      cfg.Mail.Timeout,
	}, logger.Component("notifier"))

	accounts := service.NewAccountService(store, sessions, codec, notifier, blobs, presenter, service.AccountServiceConfig{
		AvatarMaxBytes: cfg.Storage.AvatarMaxBytes,
	}, logger.Component("accounts"))

	return accounts, sessions
}

// bodyLimit leaves room for multipart framing around the largest avatar.
func bodyLimit(avatarMax int64) string {
	const overhead = 1 << 20
	return fmt.Sprintf("%dK", (avatarMax+overhead)/1024)
}
