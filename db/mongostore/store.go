package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/agnosto/board-collector/db/repository"
	"github.com/agnosto/board-collector/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	imageEntriesCollection    = "image_entries"
	imageEncountersCollection = "image_encounters"
	textEntriesCollection     = "text_entries"
	postStatsCollection       = "post_stats"
	countersCollection        = "counters"
)

// Store keeps the collector's records in MongoDB. Documents carry numeric
// ids drawn from a counters collection so that ids grow with insertion
// order, as they do in the sqlite store.
type Store struct {
	client     *mongo.Client
	database   *mongo.Database
	entries    *mongo.Collection
	encounters *mongo.Collection
	texts      *mongo.Collection
	stats      *mongo.Collection
	counters   *mongo.Collection
}

func New(ctx context.Context, uri, database string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("can't ping MongoDB: %w", err)
	}

	db := client.Database(database)

	s := &Store{
		client:     client,
		database:   db,
		entries:    db.Collection(imageEntriesCollection),
		encounters: db.Collection(imageEncountersCollection),
		texts:      db.Collection(textEntriesCollection),
		stats:      db.Collection(postStatsCollection),
		counters:   db.Collection(countersCollection),
	}

	s.createIndexes(ctx)

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) {
	indexes := []struct {
		coll *mongo.Collection
		key  string
	}{
		{s.entries, "hash"},
		{s.entries, "date"},
		{s.encounters, "entry_id"},
		{s.texts, "thread_id"},
		{s.stats, "date"},
	}

	for _, idx := range indexes {
		model := mongo.IndexModel{Keys: bson.D{{Key: idx.key, Value: 1}}}
		if _, err := idx.coll.Indexes().CreateOne(ctx, model); err != nil {
			logger.Logger.Printf("[ERROR] [mongo] failed to create index %s.%s: %v", idx.coll.Name(), idx.key, err)
		}
	}
}

// nextID returns the next value of the named sequence, starting at 1.
func (s *Store) nextID(ctx context.Context, name string) (uint, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"seq": 1}}, opts).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate id for %s: %w", name, err)
	}
	return uint(counter.Seq), nil
}

func (s *Store) Images() repository.ImageRepository {
	return &imageRepository{s: s}
}

func (s *Store) Texts() repository.TextRepository {
	return &textRepository{s: s}
}

func (s *Store) Statistics() repository.StatisticRepository {
	return &statisticRepository{s: s}
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
