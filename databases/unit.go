package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/commandpost/dispatch-core/models"
)

const unitName = "units"

// UnitDatabase contains the methods to use with the unit database
type UnitDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Unit, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Unit, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (interface{}, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (int64, error)
}

type unitDatabase struct {
	db DatabaseHelper
}

// NewUnitDatabase initializes a new instance of unit database with the provided db connection
func NewUnitDatabase(db DatabaseHelper) UnitDatabase {
	return &unitDatabase{
		db: db,
	}
}

func (u *unitDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Unit, error) {
	unit := &models.Unit{}
	err := u.db.Collection(unitName).FindOne(ctx, filter, opts...).Decode(&unit)
	if err != nil {
		return nil, err
	}
	return unit, nil
}

func (u *unitDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Unit, error) {
	var units []models.Unit
	cr, err := u.db.Collection(unitName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&units)
	if err != nil {
		return nil, err
	}
	return units, nil
}

func (u *unitDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (interface{}, error) {
	return u.db.Collection(unitName).InsertOne(ctx, document, opts...)
}

func (u *unitDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	return u.db.Collection(unitName).UpdateOne(ctx, filter, update, opts...)
}
