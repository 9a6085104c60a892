package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/commandpost/dispatch-core/models"
)

const eventName = "events"

// EventDatabase contains the methods to use with the audit event
// database. Events are append-only, there is no update or delete.
type EventDatabase interface {
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.AuditEvent, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (interface{}, error)
}

type eventDatabase struct {
	db DatabaseHelper
}

// NewEventDatabase initializes a new instance of event database with the provided db connection
func NewEventDatabase(db DatabaseHelper) EventDatabase {
	return &eventDatabase{
		db: db,
	}
}

func (e *eventDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.AuditEvent, error) {
	var events []models.AuditEvent
	cr, err := e.db.Collection(eventName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&events)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (e *eventDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (interface{}, error) {
	return e.db.Collection(eventName).InsertOne(ctx, document, opts...)
}
