package runlog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CollectionName is the MongoDB collection holding run history.
const CollectionName = "step_runs"

// ErrPartialWrite indicates that a batch write only partially succeeded.
// Use errors.As to extract details about the failure.
var ErrPartialWrite = errors.New("partial write failure")

// PartialWriteError wraps a mongo.BulkWriteException with the number of failed records.
type PartialWriteError struct {
	TotalRecords int
	FailedCount  int
	Cause        mongo.BulkWriteException
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("partial run history insert: %d of %d records failed: %v",
		e.FailedCount, e.TotalRecords, e.Cause.Error())
}

func (e *PartialWriteError) Unwrap() error {
	return ErrPartialWrite
}

var partialWriteFailures = promauto.NewCounter(
	prometheus.CounterOpts{
		Name: "petcontract_history_partial_write_failures_total",
		Help: "Total number of partial write failures when inserting run history to MongoDB",
	},
)

// MongoDBStore implements Store for MongoDB.
type MongoDBStore struct {
	collection    *mongo.Collection
	retentionDays int
}

// NewMongoDBStore creates a new MongoDB history store.
// MongoDB expires old records itself through a TTL index.
func NewMongoDBStore(ctx context.Context, database *mongo.Database, retentionDays int) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}

	collection := database.Collection(CollectionName)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "run_id", Value: 1}}},
		{Keys: bson.D{{Key: "scenario", Value: 1}}},
	}

	// MongoDB doesn't allow a second index on timestamp next to the TTL one.
	if retentionDays > 0 {
		ttlSeconds := int32(int64(retentionDays) * 24 * 60 * 60)
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetExpireAfterSeconds(ttlSeconds),
		})
	} else {
		indexes = append(indexes, mongo.IndexModel{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		})
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		slog.Warn("failed to create some MongoDB indexes for run history", "error", err)
	}

	return &MongoDBStore{
		collection:    collection,
		retentionDays: retentionDays,
	}, nil
}

// WriteBatch writes records with an unordered InsertMany so one bad record does not
// stop the rest.
func (s *MongoDBStore) WriteBatch(ctx context.Context, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]any, len(records))
	for i, r := range records {
		docs[i] = r
	}

	_, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		if bulkErr, ok := asBulkWriteException(err); ok {
			failedCount := len(bulkErr.WriteErrors)
			slog.Warn("partial run history insert failure",
				"total", len(records),
				"failed", failedCount,
				"succeeded", len(records)-failedCount,
			)
			partialWriteFailures.Inc()
			return &PartialWriteError{
				TotalRecords: len(records),
				FailedCount:  failedCount,
				Cause:        bulkErr,
			}
		}
		return fmt.Errorf("failed to insert run history: %w", err)
	}

	return nil
}

// Flush is a no-op for MongoDB as writes are synchronous.
func (s *MongoDBStore) Flush(_ context.Context) error {
	return nil
}

// Close is a no-op for MongoDB as the client is managed by the storage layer.
func (s *MongoDBStore) Close() error {
	return nil
}

// asBulkWriteException matches the exception whether the driver returned it by value or
// by pointer.
func asBulkWriteException(err error) (mongo.BulkWriteException, bool) {
	var value mongo.BulkWriteException
	if errors.As(err, &value) {
		return value, true
	}
	var ptr *mongo.BulkWriteException
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return mongo.BulkWriteException{}, false
}
