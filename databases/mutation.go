package databases

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const mutationName = "processed_mutations"

// MutationDatabase remembers client mutation ids that have already been
// applied, so an at-least-once replay from the offline queue is not
// applied twice.
type MutationDatabase interface {
	// Seen reports whether the mutation id was already applied.
	Seen(ctx context.Context, id string) (bool, error)
	// Record stores the mutation id after a successful apply.
	Record(ctx context.Context, id, action string) error
}

type mutationDatabase struct {
	db DatabaseHelper
}

// NewMutationDatabase initializes a new instance of mutation database with the provided db connection
func NewMutationDatabase(db DatabaseHelper) MutationDatabase {
	return &mutationDatabase{
		db: db,
	}
}

func (m *mutationDatabase) Seen(ctx context.Context, id string) (bool, error) {
	var doc bson.M
	err := m.db.Collection(mutationName).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (m *mutationDatabase) Record(ctx context.Context, id, action string) error {
	_, err := m.db.Collection(mutationName).InsertOne(ctx, bson.M{
		"_id":       id,
		"action":    action,
		"appliedAt": time.Now(),
	})
	return err
}
