// mongodb.go - MongoDB persistence for daily provider usage stats

package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bosocmputer/receipt_vision_ocr/internal/metrics"
)

const usageCollection = "provider_usage_daily"

// UsageStore persists usage snapshots to MongoDB. It implements
// metrics.Sink and is driven by the metrics flusher, never by the
// request path directly.
type UsageStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewUsageStore connects to MongoDB and verifies the connection.
func NewUsageStore(ctx context.Context, uri, dbName string) (*UsageStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	log.Println("✅ Connected to MongoDB for usage stats")

	return &UsageStore{
		client: client,
		coll:   client.Database(dbName).Collection(usageCollection),
	}, nil
}

// SaveUsage upserts one document per provider per day so repeated flushes
// of the same snapshot overwrite rather than duplicate.
func (s *UsageStore) SaveUsage(ctx context.Context, stats []metrics.UsageStat) error {
	for _, stat := range stats {
		filter := bson.M{"provider": stat.Provider, "date": stat.Date}
		update := bson.M{
			"$set": bson.M{
				"provider":       stat.Provider,
				"date":           stat.Date,
				"requests":       stat.Requests,
				"successes":      stat.Successes,
				"failures":       stat.Failures,
				"total_cost_usd": stat.TotalCostUSD,
				"avg_latency_ms": stat.AvgLatencyMs,
				"updated_at":     time.Now(),
			},
		}

		opts := options.Update().SetUpsert(true)
		if _, err := s.coll.UpdateOne(ctx, filter, update, opts); err != nil {
			return fmt.Errorf("failed to upsert usage for %s/%s: %w", stat.Provider, stat.Date, err)
		}
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *UsageStore) Close(ctx context.Context) error {
	disconnectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.client.Disconnect(disconnectCtx)
}
