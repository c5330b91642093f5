package indicators

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// indicatorDoc is one row of the precomputed indicator collection
type indicatorDoc struct {
	Symbol    string    `bson:"symbol"`
	RSI       float64   `bson:"rsi"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoSource reads precomputed RSI values from MongoDB and caches
// them in memory between refreshes
type MongoSource struct {
	collection *mongo.Collection

	mu     sync.RWMutex
	values map[string]float64
}

// NewMongoSource connects to MongoDB and returns a source over the
// indicators collection
func NewMongoSource(ctx context.Context, uri, database string) (*MongoSource, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	log.Println("Connected to MongoDB indicator store")
	return &MongoSource{
		collection: client.Database(database).Collection("indicators"),
		values:     make(map[string]float64),
	}, nil
}

// Refresh reloads the in-memory table from the collection
func (s *MongoSource) Refresh(ctx context.Context) error {
	cursor, err := s.collection.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("query indicators: %w", err)
	}
	defer cursor.Close(ctx)

	next := make(map[string]float64)
	for cursor.Next(ctx) {
		var doc indicatorDoc
		if err := cursor.Decode(&doc); err != nil {
			log.Printf("Skipping malformed indicator document: %v", err)
			continue
		}
		next[doc.Symbol] = doc.RSI
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("iterate indicators: %w", err)
	}

	s.mu.Lock()
	s.values = next
	s.mu.Unlock()
	log.Printf("Indicator cache refreshed with %d symbols", len(next))
	return nil
}

// RSI returns the cached indicator for one symbol
func (s *MongoSource) RSI(symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[symbol]
	return value, ok
}
