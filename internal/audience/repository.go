package audience

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vinicius-lino-figueiredo/gedb"
	"go.mongodb.org/mongo-driver/mongo"

	"audience/internal/constants"
	"audience/pkg/metrics"
)

// Store counts documents of a collection matching a filter.
type Store interface {
	CountMatching(ctx context.Context, collection string, filter Filter) (int64, error)
	Name() string
}

type MongoRepository struct {
	db *mongo.Database
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{db: db}
}

func (r *MongoRepository) Name() string {
	return constants.DriverMongoDB
}

func (r *MongoRepository) CountMatching(ctx context.Context, collection string, filter Filter) (int64, error) {
	start := time.Now()
	count, err := r.db.Collection(collection).CountDocuments(ctx, filter.BSON())
	metrics.ObserveDatabaseQueryDuration(constants.ServiceName, constants.DriverMongoDB, "count", time.Since(start))
	if err != nil {
		metrics.IncDatabaseQuery(constants.ServiceName, constants.DriverMongoDB, "count", "error")
		return 0, fmt.Errorf("mongodb count on %s failed: %w", collection, err)
	}

	metrics.IncDatabaseQuery(constants.ServiceName, constants.DriverMongoDB, "count", "success")
	return count, nil
}

func (r *MongoRepository) Ping(ctx context.Context) error {
	return r.db.Client().Ping(ctx, nil)
}

// EmbeddedRepository serves collections from in-process gedb datastores.
// Counting an unknown collection returns zero, as MongoDB does.
type EmbeddedRepository struct {
	mu          sync.RWMutex
	collections map[string]gedb.GEDB
}

func NewEmbeddedRepository() *EmbeddedRepository {
	return &EmbeddedRepository{collections: make(map[string]gedb.GEDB)}
}

func (r *EmbeddedRepository) Name() string {
	return constants.DriverEmbedded
}

// Open creates the datastore for collection. With an empty filename the data
// lives only in memory, otherwise it is loaded from and persisted to filename.
func (r *EmbeddedRepository) Open(ctx context.Context, collection, filename string) error {
	opts := []gedb.Option{gedb.WithInMemoryOnly(filename == "")}
	if filename != "" {
		opts = append(opts, gedb.WithFilename(filename))
	}

	db, err := gedb.NewDB(opts...)
	if err != nil {
		return fmt.Errorf("failed to create embedded datastore for %s: %w", collection, err)
	}

	if filename != "" {
		if err := db.LoadDatabase(ctx); err != nil {
			return fmt.Errorf("failed to load embedded datastore %s: %w", filename, err)
		}
	}

	r.mu.Lock()
	r.collections[collection] = db
	r.mu.Unlock()
	return nil
}

// EnsureIndexes indexes the rule fields of collection.
func (r *EmbeddedRepository) EnsureIndexes(ctx context.Context, collection string) error {
	db, ok := r.collection(collection)
	if !ok {
		return fmt.Errorf("embedded collection %s is not open", collection)
	}

	for _, field := range []string{constants.FieldLastVisit, constants.FieldVisits, constants.FieldTotalSpends} {
		if err := db.EnsureIndex(ctx, gedb.WithFields(field)); err != nil {
			return fmt.Errorf("failed to index %s.%s: %w", collection, field, err)
		}
	}
	return nil
}

// Insert adds documents to collection, opening an in-memory datastore for it
// if needed.
func (r *EmbeddedRepository) Insert(ctx context.Context, collection string, docs ...map[string]interface{}) error {
	db, ok := r.collection(collection)
	if !ok {
		if err := r.Open(ctx, collection, ""); err != nil {
			return err
		}
		db, _ = r.collection(collection)
	}

	items := make([]any, len(docs))
	for i, doc := range docs {
		items[i] = doc
	}

	if _, err := db.Insert(ctx, items...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", collection, err)
	}
	return nil
}

// LoadSeedFile inserts the JSON array of documents stored at path. String
// values of date fields are parsed so they compare as instants.
func (r *EmbeddedRepository) LoadSeedFile(ctx context.Context, collection, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}

	var docs []map[string]interface{}
	if err := json.Unmarshal(data, &docs); err != nil {
		return 0, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	for i, doc := range docs {
		raw, ok := doc[constants.FieldLastVisit]
		if !ok {
			continue
		}
		value, err := coerceDate(raw)
		if err != nil {
			return 0, fmt.Errorf("seed document %d: %s: %w", i, constants.FieldLastVisit, err)
		}
		doc[constants.FieldLastVisit] = value
	}

	if err := r.Insert(ctx, collection, docs...); err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (r *EmbeddedRepository) CountMatching(ctx context.Context, collection string, filter Filter) (int64, error) {
	db, ok := r.collection(collection)
	if !ok {
		return 0, nil
	}

	start := time.Now()
	count, err := db.Count(ctx, filter.Document())
	metrics.ObserveDatabaseQueryDuration(constants.ServiceName, constants.DriverEmbedded, "count", time.Since(start))
	if err != nil {
		metrics.IncDatabaseQuery(constants.ServiceName, constants.DriverEmbedded, "count", "error")
		return 0, fmt.Errorf("embedded count on %s failed: %w", collection, err)
	}

	metrics.IncDatabaseQuery(constants.ServiceName, constants.DriverEmbedded, "count", "success")
	return count, nil
}

// Ping reports whether the datastores still answer queries.
func (r *EmbeddedRepository) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for name, db := range r.collections {
		if _, err := db.Count(ctx, map[string]interface{}{}); err != nil {
			return fmt.Errorf("embedded collection %s: %w", name, err)
		}
	}
	return ctx.Err()
}

func (r *EmbeddedRepository) collection(name string) (gedb.GEDB, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	db, ok := r.collections[name]
	return db, ok
}
