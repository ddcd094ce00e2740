package runlog

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoDBReader implements Reader for MongoDB.
type MongoDBReader struct {
	collection *mongo.Collection
}

// NewMongoDBReader creates a new MongoDB history reader.
func NewMongoDBReader(database *mongo.Database) (*MongoDBReader, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &MongoDBReader{collection: database.Collection(CollectionName)}, nil
}

func (r *MongoDBReader) Records(ctx context.Context, params QueryParams) (*RecordPage, error) {
	limit, offset := clampLimitOffset(params.Limit, params.Offset)

	filter := bson.D{}
	if params.RunID != "" {
		filter = append(filter, bson.E{Key: "run_id", Value: params.RunID})
	}
	if params.Scenario != "" {
		filter = append(filter, bson.E{Key: "scenario", Value: params.Scenario})
	}
	if params.Outcome != "" {
		filter = append(filter, bson.E{Key: "outcome", Value: params.Outcome})
	}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count run history: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer cursor.Close(ctx)

	page := &RecordPage{Records: make([]Record, 0), Total: int(total), Limit: limit, Offset: offset}
	if err := cursor.All(ctx, &page.Records); err != nil {
		return nil, fmt.Errorf("failed to decode run history: %w", err)
	}
	for i := range page.Records {
		page.Records[i].Timestamp = page.Records[i].Timestamp.UTC()
	}
	return page, nil
}
