package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/commandpost/dispatch-core/models"
)

const callName = "calls"

// CallDatabase contains the methods to use with the call database
type CallDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Call, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Call, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (interface{}, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (int64, error)
}

type callDatabase struct {
	db DatabaseHelper
}

// NewCallDatabase initializes a new instance of call database with the provided db connection
func NewCallDatabase(db DatabaseHelper) CallDatabase {
	return &callDatabase{
		db: db,
	}
}

func (c *callDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Call, error) {
	call := &models.Call{}
	err := c.db.Collection(callName).FindOne(ctx, filter, opts...).Decode(&call)
	if err != nil {
		return nil, err
	}
	return call, nil
}

func (c *callDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Call, error) {
	var calls []models.Call
	cr, err := c.db.Collection(callName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&calls)
	if err != nil {
		return nil, err
	}
	return calls, nil
}

func (c *callDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (interface{}, error) {
	return c.db.Collection(callName).InsertOne(ctx, document, opts...)
}

func (c *callDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	return c.db.Collection(callName).UpdateOne(ctx, filter, update, opts...)
}
