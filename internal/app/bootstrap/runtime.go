package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	appconfig "github.com/wolfman30/practice-hub/internal/config"
	"github.com/wolfman30/practice-hub/internal/drafts"
	"github.com/wolfman30/practice-hub/internal/http/handlers"
	"github.com/wolfman30/practice-hub/pkg/logging"
)

// Draft store backends accepted in DRAFT_STORE.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreDynamo   = "dynamodb"
	StoreS3       = "s3"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// Database bundles the pgx pool with a database/sql view over the same pool.
type Database struct {
	Pool *pgxpool.Pool
	SQL  *sql.DB
}

// Close releases both handles.
func (d *Database) Close() {
	if d == nil {
		return
	}
	if d.SQL != nil {
		_ = d.SQL.Close()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}

// BuildDatabase connects to Postgres. An empty DATABASE_URL returns nil, nil.
func BuildDatabase(ctx context.Context, cfg *appconfig.Config) (*Database, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	return &Database{Pool: pool, SQL: stdlib.OpenDBFromPool(pool)}, nil
}

// Backends carries the clients a draft store may be built on. Only the one
// selected by DRAFT_STORE needs to be set.
type Backends struct {
	Redis    *redis.Client
	Database *Database
	Dynamo   drafts.DynamoAPI
	S3       drafts.S3API
	Tracer   trace.Tracer
}

// BuildDraftStore selects the durable draft store named by cfg.DraftStore.
func BuildDraftStore(cfg *appconfig.Config, backends Backends, logger *logging.Logger) (drafts.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	kind := strings.ToLower(strings.TrimSpace(cfg.DraftStore))
	var store drafts.Store
	switch kind {
	case "", StoreMemory:
		kind = StoreMemory
		store = drafts.NewMemoryStore(cfg.DraftMemoryMaxBytes)
	case StoreRedis:
		if backends.Redis == nil {
			return nil, fmt.Errorf("bootstrap: draft store %q requires redis", kind)
		}
		store = drafts.NewRedisStore(backends.Redis, cfg.DraftRedisTTL, backends.Tracer)
	case StorePostgres:
		if backends.Database == nil || backends.Database.Pool == nil {
			return nil, fmt.Errorf("bootstrap: draft store %q requires DATABASE_URL", kind)
		}
		store = drafts.NewPostgresStore(backends.Database.Pool)
	case StoreDynamo:
		if backends.Dynamo == nil {
			return nil, fmt.Errorf("bootstrap: draft store %q requires a dynamodb client", kind)
		}
		store = drafts.NewDynamoStore(backends.Dynamo, cfg.DraftsTable)
	case StoreS3:
		if backends.S3 == nil || strings.TrimSpace(cfg.DraftsBucket) == "" {
			return nil, fmt.Errorf("bootstrap: draft store %q requires DRAFTS_BUCKET", kind)
		}
		store = drafts.NewS3Store(backends.S3, cfg.DraftsBucket, cfg.DraftsPrefix)
	default:
		return nil, fmt.Errorf("bootstrap: unknown draft store %q", kind)
	}
	logger.Info("draft store configured", "store", kind)
	return store, nil
}

// BuildHealthChecks probes whichever backends are wired.
func BuildHealthChecks(backends Backends) map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{}
	if backends.Redis != nil {
		client := backends.Redis
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	if backends.Database != nil && backends.Database.Pool != nil {
		pool := backends.Database.Pool
		checks["postgres"] = func(ctx context.Context) error {
			return pool.Ping(ctx)
		}
	}
	return checks
}
