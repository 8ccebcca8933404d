package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/agnosto/board-collector/db/models"
	"github.com/agnosto/board-collector/db/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type imageRepository struct {
	s *Store
}

func (r *imageRepository) Create(ctx context.Context, entry *models.ImageEntry) error {
	id, err := r.s.nextID(ctx, imageEntriesCollection)
	if err != nil {
		return err
	}
	entry.ID = id
	if entry.TotalEncounters == 0 {
		entry.TotalEncounters = 1
	}
	if _, err := r.s.entries.InsertOne(ctx, entry); err != nil {
		return err
	}
	return r.insertEncounter(ctx, entry.ID, entry.Date)
}

func (r *imageRepository) insertEncounter(ctx context.Context, entryID uint, at time.Time) error {
	id, err := r.s.nextID(ctx, imageEncountersCollection)
	if err != nil {
		return err
	}
	_, err = r.s.encounters.InsertOne(ctx, &models.ImageEncounter{ID: id, EntryID: entryID, Date: at})
	return err
}

func (r *imageRepository) FindByID(ctx context.Context, id uint) (*models.ImageEntry, error) {
	var entry models.ImageEntry
	if err := r.s.entries.FindOne(ctx, bson.M{"_id": id}).Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *imageRepository) ScanHashes(ctx context.Context, batchSize int, fn func(batch []models.ImageEntry) error) error {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetBatchSize(int32(batchSize))

	cursor, err := r.s.entries.Find(ctx, bson.M{}, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	batch := make([]models.ImageEntry, 0, batchSize)
	for cursor.Next(ctx) {
		var entry models.ImageEntry
		if err := cursor.Decode(&entry); err != nil {
			return err
		}
		batch = append(batch, entry)
		if len(batch) < batchSize {
			continue
		}
		if err := fn(batch); err != nil {
			if errors.Is(err, repository.ErrStopScan) {
				return nil
			}
			return err
		}
		batch = batch[:0]
	}
	if err := cursor.Err(); err != nil {
		return err
	}

	if len(batch) > 0 {
		if err := fn(batch); err != nil && !errors.Is(err, repository.ErrStopScan) {
			return err
		}
	}
	return nil
}

func (r *imageRepository) AddEncounter(ctx context.Context, entryID uint, at time.Time) (*models.ImageEntry, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var entry models.ImageEntry
	err := r.s.entries.FindOneAndUpdate(ctx,
		bson.M{"_id": entryID},
		bson.M{"$inc": bson.M{"total_encounters": 1}},
		opts,
	).Decode(&entry)
	if err != nil {
		return nil, err
	}

	if err := r.insertEncounter(ctx, entryID, at); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *imageRepository) CountEncounters(ctx context.Context, entryID uint) (int64, error) {
	return r.s.encounters.CountDocuments(ctx, bson.M{"entry_id": entryID})
}

func (r *imageRepository) FindOlderThan(ctx context.Context, cutoff time.Time) ([]models.ImageEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := r.s.entries.Find(ctx, bson.M{"date": bson.M{"$lt": cutoff}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []models.ImageEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *imageRepository) Delete(ctx context.Context, entryID uint) error {
	if _, err := r.s.encounters.DeleteMany(ctx, bson.M{"entry_id": entryID}); err != nil {
		return err
	}
	res, err := r.s.entries.DeleteOne(ctx, bson.M{"_id": entryID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
