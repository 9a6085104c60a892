package handlers_test

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/commandpost/dispatch-core/models"
)

// MockCallDatabase is a testify mock of databases.CallDatabase.
type MockCallDatabase struct{ mock.Mock }

func (m *MockCallDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Call, error) {
	args := m.Called(ctx, filter)
	var call *models.Call
	if v := args.Get(0); v != nil {
		call = v.(*models.Call)
	}
	return call, args.Error(1)
}

func (m *MockCallDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Call, error) {
	args := m.Called(ctx, filter)
	var calls []models.Call
	if v := args.Get(0); v != nil {
		calls = v.([]models.Call)
	}
	return calls, args.Error(1)
}

func (m *MockCallDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (interface{}, error) {
	args := m.Called(ctx, document)
	return args.Get(0), args.Error(1)
}

func (m *MockCallDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	args := m.Called(ctx, filter, update)
	return args.Get(0).(int64), args.Error(1)
}

// MockUnitDatabase is a testify mock of databases.UnitDatabase.
type MockUnitDatabase struct{ mock.Mock }

func (m *MockUnitDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Unit, error) {
	args := m.Called(ctx, filter)
	var unit *models.Unit
	if v := args.Get(0); v != nil {
		unit = v.(*models.Unit)
	}
	return unit, args.Error(1)
}

func (m *MockUnitDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Unit, error) {
	args := m.Called(ctx, filter)
	var units []models.Unit
	if v := args.Get(0); v != nil {
		units = v.([]models.Unit)
	}
	return units, args.Error(1)
}

func (m *MockUnitDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (interface{}, error) {
	args := m.Called(ctx, document)
	return args.Get(0), args.Error(1)
}

func (m *MockUnitDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (int64, error) {
	args := m.Called(ctx, filter, update)
	return args.Get(0).(int64), args.Error(1)
}

// MockEventDatabase is a testify mock of databases.EventDatabase.
type MockEventDatabase struct{ mock.Mock }

func (m *MockEventDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.AuditEvent, error) {
	args := m.Called(ctx, filter)
	var events []models.AuditEvent
	if v := args.Get(0); v != nil {
		events = v.([]models.AuditEvent)
	}
	return events, args.Error(1)
}

func (m *MockEventDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (interface{}, error) {
	args := m.Called(ctx, document)
	return args.Get(0), args.Error(1)
}

// MockMutationDatabase is a testify mock of databases.MutationDatabase.
type MockMutationDatabase struct{ mock.Mock }

func (m *MockMutationDatabase) Seen(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockMutationDatabase) Record(ctx context.Context, id, action string) error {
	args := m.Called(ctx, id, action)
	return args.Error(0)
}
