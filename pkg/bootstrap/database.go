package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"audience/internal/audience"
	"audience/internal/config"
	"audience/internal/constants"
	"audience/internal/logger"
	"audience/pkg/health"
	"audience/pkg/metrics"
	"audience/pkg/migrations"
	"audience/pkg/retry"
)

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger

	mongoClient *mongo.Client
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
	}
}

// InitStore opens the configured customer store and returns it with the
// health checker that watches it.
func (dc *DatabaseConnector) InitStore(ctx context.Context) (audience.Store, health.Checker, error) {
	switch strings.ToLower(dc.Config.Database.Driver) {
	case constants.DriverMongoDB:
		client, err := dc.InitMongoDB(ctx)
		if err != nil {
			return nil, nil, err
		}

		db := client.Database(dc.Config.Database.MongoDB.Database)
		if dc.Config.Database.EnsureIndexes {
			if err := migrations.EnsureCustomerIndexes(ctx, db, dc.Config.Audience.Collection); err != nil {
				return nil, nil, err
			}
			dc.Logger.InfowCtx(ctx, "MongoDB indexes ensured", "collection", dc.Config.Audience.Collection)
		}

		return audience.NewMongoRepository(db), health.NewMongoDBChecker(client), nil

	case constants.DriverEmbedded:
		repo, err := dc.InitEmbedded(ctx)
		if err != nil {
			return nil, nil, err
		}
		return repo, health.NewPingChecker(constants.DriverEmbedded, repo), nil

	default:
		return nil, nil, fmt.Errorf("unknown database driver: %s", dc.Config.Database.Driver)
	}
}

// InitMongoDB connects and pings, retrying the ping with the configured
// backoff policy.
func (dc *DatabaseConnector) InitMongoDB(ctx context.Context) (*mongo.Client, error) {
	mongoOpts := options.Client().ApplyURI(dc.Config.Database.MongoDB.URI)
	mongoClient, err := mongo.Connect(ctx, mongoOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	policy := retry.PolicyFromConfig(dc.Config.Database.MongoDB.ConnectRetry)
	err = retry.RetryWithCallback(ctx, policy, func() error {
		return mongoClient.Ping(ctx, nil)
	}, func(attempt int, err error, nextDelay time.Duration) {
		metrics.IncRetryAttempt(constants.ServiceName, "mongodb_ping")
		dc.Logger.WarnwCtx(ctx, "MongoDB ping failed, retrying",
			"attempt", attempt,
			"next_delay", nextDelay,
			"error", err,
		)
	})
	if err != nil {
		_ = mongoClient.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dc.mongoClient = mongoClient
	dc.Logger.InfowCtx(ctx, "MongoDB connected successfully", "database", dc.Config.Database.MongoDB.Database)
	return mongoClient, nil
}

// InitEmbedded opens the embedded datastore for the audience collection and
// loads the seed file when one is configured.
func (dc *DatabaseConnector) InitEmbedded(ctx context.Context) (*audience.EmbeddedRepository, error) {
	cfg := dc.Config.Database.Embedded
	collection := dc.Config.Audience.Collection

	repo := audience.NewEmbeddedRepository()
	if err := repo.Open(ctx, collection, cfg.Filename); err != nil {
		return nil, err
	}

	if dc.Config.Database.EnsureIndexes {
		if err := repo.EnsureIndexes(ctx, collection); err != nil {
			return nil, err
		}
	}

	if cfg.SeedFile != "" {
		n, err := repo.LoadSeedFile(ctx, collection, cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		dc.Logger.InfowCtx(ctx, "Embedded store seeded", "collection", collection, "documents", n)
	}

	dc.Logger.InfowCtx(ctx, "Embedded store opened", "collection", collection, "in_memory", cfg.Filename == "")
	return repo, nil
}

func (dc *DatabaseConnector) ShutdownDatabases(ctx context.Context) []error {
	var errs []error

	if dc.mongoClient != nil {
		if err := dc.mongoClient.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
		dc.mongoClient = nil
	}

	return errs
}
