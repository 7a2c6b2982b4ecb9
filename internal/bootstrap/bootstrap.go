// Package bootstrap builds the backends both binaries share from the configuration:
// the document store, identity provider, blob storage and mail transport.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	_ "github.com/lib/pq"
	"google.golang.org/api/option"

	"mibarrio-backend/internal/config"
	"mibarrio-backend/internal/docstore"
	"mibarrio-backend/internal/identity"
	"mibarrio-backend/internal/logger"
	"mibarrio-backend/internal/repository/docs"
	"mibarrio-backend/internal/security"
	"mibarrio-backend/internal/service"
	"mibarrio-backend/internal/storage"
)

// Backends are the configured infrastructure clients
type Backends struct {
	Docs     docstore.Store
	Store    *docs.Store
	Identity identity.Provider
	Storage  storage.StorageInterface
	Email    service.EmailService
	// MockStorage is set when files live on the local filesystem
	MockStorage *storage.MockStorageService

	closers []func() error
}

// Close releases every client in reverse order of creation
func (b *Backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			logger.Warn("Failed to close backend", "error", err)
		}
	}
}

// Open connects every backend selected by cfg
func Open(ctx context.Context, cfg *config.Config) (*Backends, error) {
	b := &Backends{}
	ok := false
	defer func() {
		if !ok {
			b.Close()
		}
	}()

	var app *firebase.App
	needsFirebase := cfg.Database.Type == "firestore" || cfg.Identity.Type == "firebase" || cfg.Storage.Type == "firebase"
	if needsFirebase {
		var err error
		if app, err = newFirebaseApp(ctx, cfg); err != nil {
			return nil, fmt.Errorf("initialize firebase: %w", err)
		}
	}

	if err := b.openDocs(ctx, cfg, app); err != nil {
		return nil, err
	}
	b.Store = docs.NewStore(b.Docs)

	if err := b.openIdentity(ctx, cfg, app); err != nil {
		return nil, err
	}
	if err := b.openStorage(ctx, cfg, app); err != nil {
		return nil, err
	}
	b.Email = newEmailService(cfg)

	ok = true
	return b, nil
}

func newFirebaseApp(ctx context.Context, cfg *config.Config) (*firebase.App, error) {
	conf := &firebase.Config{
		ProjectID:     cfg.Firebase.ProjectID,
		StorageBucket: cfg.Firebase.StorageBucket,
	}
	var opts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}
	return firebase.NewApp(ctx, conf, opts...)
}

func (b *Backends) openDocs(ctx context.Context, cfg *config.Config, app *firebase.App) error {
	switch cfg.Database.Type {
	case "firestore":
		logger.Info("Using Firestore document store", "project", cfg.Firebase.ProjectID)
		client, err := app.Firestore(ctx)
		if err != nil {
			return fmt.Errorf("connect to firestore: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		b.Docs = docstore.NewFirestoreStore(client)

	case "postgres":
		logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database)
		db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		b.closers = append(b.closers, db.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		store := docstore.NewPostgresStore(db)
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("Database connection established")
		b.Docs = store

	default:
		logger.Warn("Using in-memory document store; data is lost on restart")
		b.Docs = docstore.NewMemoryStore()
	}
	return nil
}

func (b *Backends) openIdentity(ctx context.Context, cfg *config.Config, app *firebase.App) error {
	if cfg.Identity.Type == "firebase" {
		logger.Info("Using Firebase identity provider")
		client, err := app.Auth(ctx)
		if err != nil {
			return fmt.Errorf("connect to firebase auth: %w", err)
		}
		// each provisioning context gets its own app
		b.Identity = identity.NewFirebaseProvider(client, func(ctx context.Context) (*firebase.App, error) {
			return newFirebaseApp(ctx, cfg)
		})
		return nil
	}

	logger.Info("Using local identity provider")
	tokens := security.NewTokenManager(cfg.Identity.JWTSecret, time.Duration(cfg.Identity.TokenExpiryMinutes)*time.Minute)
	b.Identity = identity.NewLocalProvider(b.Docs, tokens, cfg.Identity.ResetLinkBaseURL)
	return nil
}

func (b *Backends) openStorage(ctx context.Context, cfg *config.Config, app *firebase.App) error {
	if cfg.Storage.Type == "firebase" {
		logger.Info("Using Firebase storage", "bucket", cfg.Firebase.StorageBucket)
		client, err := app.Storage(ctx)
		if err != nil {
			return fmt.Errorf("connect to firebase storage: %w", err)
		}
		bucket, err := client.Bucket(cfg.Firebase.StorageBucket)
		if err != nil {
			return fmt.Errorf("open storage bucket: %w", err)
		}
		b.Storage = storage.NewFirebaseStorageService(bucket, cfg.Firebase.StorageBucket)
		return nil
	}

	logger.Info("Using mock storage (local filesystem)", "upload_dir", cfg.Storage.UploadDir)
	mock, err := storage.NewMockStorageService(cfg.Storage.BaseURL, cfg.Storage.UploadDir)
	if err != nil {
		return fmt.Errorf("initialize mock storage: %w", err)
	}
	b.Storage = mock
	b.MockStorage = mock
	return nil
}

func newEmailService(cfg *config.Config) service.EmailService {
	if cfg.Mail.Provider == "sendgrid" {
		logger.Info("Using SendGrid mail transport")
		return service.NewSendGridEmailService(cfg.SendGrid.APIKey, cfg.Mail.From, cfg.Mail.FromName)
	}
	logger.Info("Using SMTP mail transport", "host", cfg.SMTP.Host, "port", cfg.SMTP.Port)
	return service.NewEmailService(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, cfg.Mail.From)
}

// RequestServices builds the request and activity services used by both binaries
func (b *Backends) RequestServices(cfg *config.Config) (service.RequestService, service.ActivityService) {
	store := b.Store
	certs := service.NewCertificateIssuer(b.Storage, cfg.Portal.BaseURL)
	requests := service.NewRequestService(store.RequestRepository, store.UserRepository, store.ActivityRepository,
		b.Identity, b.Email, certs, cfg.Strict())
	activities := service.NewActivityService(store.ActivityRepository, store.UserRepository, cfg.Strict())
	return requests, activities
}
