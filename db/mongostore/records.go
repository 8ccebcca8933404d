package mongostore

import (
	"context"
	"time"

	"github.com/agnosto/board-collector/db/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type textRepository struct {
	s *Store
}

func (r *textRepository) Create(ctx context.Context, entry *models.TextEntry) error {
	id, err := r.s.nextID(ctx, textEntriesCollection)
	if err != nil {
		return err
	}
	entry.ID = id
	_, err = r.s.texts.InsertOne(ctx, entry)
	return err
}

func (r *textRepository) FindByThread(ctx context.Context, threadID int64) (*models.TextEntry, error) {
	var entry models.TextEntry
	if err := r.s.texts.FindOne(ctx, bson.M{"thread_id": threadID}).Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

type statisticRepository struct {
	s *Store
}

func (r *statisticRepository) Create(ctx context.Context, stat *models.PostStatistic) error {
	stat.Derive()
	id, err := r.s.nextID(ctx, postStatsCollection)
	if err != nil {
		return err
	}
	stat.ID = id
	_, err = r.s.stats.InsertOne(ctx, stat)
	return err
}

func (r *statisticRepository) Since(ctx context.Context, t time.Time) ([]models.PostStatistic, error) {
	opts := options.Find().SetSort(bson.D{{Key: "date", Value: 1}})

	cursor, err := r.s.stats.Find(ctx, bson.M{"date": bson.M{"$gte": t}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var stats []models.PostStatistic
	if err := cursor.All(ctx, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}
