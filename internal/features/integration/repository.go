package integration

import (
	"context"
	"errors"
	"time"

	"go-kpi/internal/common/apperr"
	"go-kpi/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type IntegrationRepository interface {
	Create(ctx context.Context, integration *Integration) error
	FindByID(ctx context.Context, id string) (*Integration, error)
	List(ctx context.Context, ownerID *primitive.ObjectID) ([]Integration, error)
	Update(ctx context.Context, integration *Integration) error
	UpdateSyncState(ctx context.Context, id primitive.ObjectID, status IntegrationStatus, lastSync *time.Time, lastError string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	FindScheduled(ctx context.Context) ([]Integration, error)
	EnsureIndexes(ctx context.Context) error
}

type IntegrationRepositoryImpl struct {
	collection *mongo.Collection
}

func NewIntegrationRepository(db *database.MongodbDB) IntegrationRepository {
	return &IntegrationRepositoryImpl{
		collection: db.DB.Collection("integrations"),
	}
}

func (r *IntegrationRepositoryImpl) Create(ctx context.Context, integration *Integration) error {
	if integration.ID.IsZero() {
		integration.ID = primitive.NewObjectID()
	}
	now := time.Now()
	integration.CreatedAt = now
	integration.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, integration)
	return err
}

func (r *IntegrationRepositoryImpl) FindByID(ctx context.Context, id string) (*Integration, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.NotFound("integration")
	}

	var integration Integration
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&integration); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("integration")
		}
		return nil, err
	}
	return &integration, nil
}

// List returns every integration when ownerID is nil
func (r *IntegrationRepositoryImpl) List(ctx context.Context, ownerID *primitive.ObjectID) ([]Integration, error) {
	filter := bson.M{}
	if ownerID != nil {
		filter["owner_id"] = *ownerID
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	integrations := []Integration{}
	if err := cursor.All(ctx, &integrations); err != nil {
		return nil, err
	}
	return integrations, nil
}

func (r *IntegrationRepositoryImpl) Update(ctx context.Context, integration *Integration) error {
	integration.UpdatedAt = time.Now()

	update := bson.M{"$set": bson.M{
		"name":          integration.Name,
		"config":        integration.Config,
		"status":        integration.Status,
		"sync_schedule": integration.SyncSchedule,
		"updated_at":    integration.UpdatedAt,
	}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": integration.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("integration")
	}
	return nil
}

func (r *IntegrationRepositoryImpl) UpdateSyncState(ctx context.Context, id primitive.ObjectID, status IntegrationStatus, lastSync *time.Time, lastError string) error {
	set := bson.M{
		"status":     status,
		"last_error": lastError,
		"updated_at": time.Now(),
	}
	if lastSync != nil {
		set["last_sync"] = *lastSync
	}

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

func (r *IntegrationRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// FindScheduled returns API integrations carrying a sync schedule that are not disabled
func (r *IntegrationRepositoryImpl) FindScheduled(ctx context.Context) ([]Integration, error) {
	filter := bson.M{
		"type":          TypeAPI,
		"sync_schedule": bson.M{"$nin": bson.A{"", nil}},
		"status":        bson.M{"$ne": StatusDisabled},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	integrations := []Integration{}
	if err := cursor.All(ctx, &integrations); err != nil {
		return nil, err
	}
	return integrations, nil
}

func (r *IntegrationRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}
