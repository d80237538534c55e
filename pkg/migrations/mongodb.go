package migrations

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"audience/internal/constants"
)

// CustomerIndexes are the single-field indexes backing the audience rule
// fields.
func CustomerIndexes(collection string) []mongo.IndexModel {
	fields := []string{constants.FieldLastVisit, constants.FieldVisits, constants.FieldTotalSpends}

	indexes := make([]mongo.IndexModel, 0, len(fields))
	for _, field := range fields {
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: field, Value: 1}},
			Options: options.Index().SetName(fmt.Sprintf("idx_%s_%s", collection, field)),
		})
	}
	return indexes
}

// EnsureCustomerIndexes creates the customer indexes. Creating an index that
// already exists with the same spec is a no-op on the server.
func EnsureCustomerIndexes(ctx context.Context, db *mongo.Database, collection string) error {
	_, err := db.Collection(collection).Indexes().CreateMany(ctx, CustomerIndexes(collection))
	if err != nil {
		return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
	}
	return nil
}
