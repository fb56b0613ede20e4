package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"invoicebot/internal/config"
	"invoicebot/internal/repositories"
	"invoicebot/internal/services"
	"invoicebot/utils"
)

// Deps aggregates the external clients the process needs.
type Deps struct {
	Config    config.Config
	Logger    *zap.Logger
	Firestore *firestore.Client
	Messaging *messaging.Client
	Store     services.ObjectStore
	Ledger    services.Ledger

	closers []func()
}

// Validate ensures the essentials are present before services are built.
func (d *Deps) Validate() error {
	if d == nil {
		return errors.New("bootstrap deps are nil")
	}
	if d.Logger == nil {
		return errors.New("bootstrap deps Logger is required")
	}
	if d.Firestore == nil {
		return errors.New("bootstrap deps Firestore is required")
	}
	if d.Ledger == nil {
		return errors.New("bootstrap deps Ledger is required")
	}
	return nil
}

// Open connects to Firebase, object storage and the configured ledger backend.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Deps, error) {
	d := &Deps{Config: cfg, Logger: logger}

	fbConf := &firebase.Config{ProjectID: cfg.Firebase.ProjectID}
	var opts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}
	fb, err := firebase.NewApp(ctx, fbConf, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase: %w", err)
	}
	fs, err := fb.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firestore: %w", err)
	}
	d.Firestore = fs
	d.closers = append(d.closers, func() { _ = fs.Close() })

	if cfg.Firebase.OperatorTopic != "" {
		mc, err := fb.Messaging(ctx)
		if err != nil {
			logger.Warn("firebase messaging unavailable; operator pushes disabled", zap.Error(err))
		} else {
			d.Messaging = mc
		}
	}

	store, err := utils.NewS3Store(utils.StorageConfig{
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		Bucket:        cfg.Storage.Bucket,
		Region:        cfg.Storage.Region,
		Endpoint:      cfg.Storage.Endpoint,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	d.Store = store

	ledger, closeLedger, err := OpenLedger(ctx, cfg)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.Ledger = ledger
	d.closers = append(d.closers, closeLedger)
	return d, nil
}

// OpenLedger builds the reminder ledger selected by ledger.backend.
func OpenLedger(ctx context.Context, cfg config.Config) (services.Ledger, func(), error) {
	switch strings.ToLower(cfg.Ledger.Backend) {
	case config.LedgerBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Ledger.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("connect redis ledger: %w", err)
		}
		return repositories.NewRedisLedger(client, cfg.Ledger.RedisKey), func() { _ = client.Close() }, nil
	case config.LedgerBackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.Ledger.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres ledger: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("ping postgres ledger: %w", err)
		}
		return repositories.NewPostgresLedger(pool), pool.Close, nil
	default:
		return repositories.NewFileLedger(cfg.Ledger.Path, cfg.Ledger.PersistEach), func() {}, nil
	}
}

// Close releases clients in reverse order of opening.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
