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

type FieldRepository interface {
	Create(ctx context.Context, field *DataField) error
	FindByID(ctx context.Context, id string) (*DataField, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]DataField, error)
	ListByIntegration(ctx context.Context, integrationID primitive.ObjectID) ([]DataField, error)
	UpdateCurrent(ctx context.Context, id primitive.ObjectID, value interface{}, at time.Time) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByIntegration(ctx context.Context, integrationID primitive.ObjectID) error
	EnsureIndexes(ctx context.Context) error
}

type FieldRepositoryImpl struct {
	collection *mongo.Collection
}

func NewFieldRepository(db *database.MongodbDB) FieldRepository {
	return &FieldRepositoryImpl{
		collection: db.DB.Collection("data_fields"),
	}
}

func (r *FieldRepositoryImpl) Create(ctx context.Context, field *DataField) error {
	if field.ID.IsZero() {
		field.ID = primitive.NewObjectID()
	}
	field.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, field)
	if mongo.IsDuplicateKeyError(err) {
		return apperr.Conflict("field %s already exists on this integration", field.TargetField)
	}
	return err
}

func (r *FieldRepositoryImpl) FindByID(ctx context.Context, id string) (*DataField, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.NotFound("data field")
	}

	var field DataField
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&field); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("data field")
		}
		return nil, err
	}
	return &field, nil
}

func (r *FieldRepositoryImpl) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]DataField, error) {
	if len(ids) == 0 {
		return []DataField{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *FieldRepositoryImpl) ListByIntegration(ctx context.Context, integrationID primitive.ObjectID) ([]DataField, error) {
	return r.find(ctx, bson.M{"integration_id": integrationID})
}

func (r *FieldRepositoryImpl) find(ctx context.Context, filter bson.M) ([]DataField, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	fields := []DataField{}
	if err := cursor.All(ctx, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func (r *FieldRepositoryImpl) UpdateCurrent(ctx context.Context, id primitive.ObjectID, value interface{}, at time.Time) error {
	// Out-of-order points never move the current value backwards
	filter := bson.M{
		"_id": id,
		"$or": bson.A{
			bson.M{"last_updated": bson.M{"$exists": false}},
			bson.M{"last_updated": bson.M{"$lte": at}},
		},
	}
	_, err := r.collection.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"current_value": value, "last_updated": at},
	})
	return err
}

func (r *FieldRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *FieldRepositoryImpl) DeleteByIntegration(ctx context.Context, integrationID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"integration_id": integrationID})
	return err
}

func (r *FieldRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "integration_id", Value: 1}, {Key: "target_field", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

type ValueRepository interface {
	Append(ctx context.Context, values []DataValue) error
	ListByField(ctx context.Context, fieldID primitive.ObjectID, since time.Time) ([]DataValue, error)
	DeleteByFields(ctx context.Context, fieldIDs []primitive.ObjectID) error
	EnsureIndexes(ctx context.Context) error
}

type ValueRepositoryImpl struct {
	collection *mongo.Collection
}

func NewValueRepository(db *database.MongodbDB) ValueRepository {
	return &ValueRepositoryImpl{
		collection: db.DB.Collection("data_values"),
	}
}

func (r *ValueRepositoryImpl) Append(ctx context.Context, values []DataValue) error {
	if len(values) == 0 {
		return nil
	}
	docs := make([]interface{}, len(values))
	for i := range values {
		if values[i].ID.IsZero() {
			values[i].ID = primitive.NewObjectID()
		}
		docs[i] = values[i]
	}
	_, err := r.collection.InsertMany(ctx, docs)
	return err
}

// ListByField returns points oldest first; a zero since means the whole series
func (r *ValueRepositoryImpl) ListByField(ctx context.Context, fieldID primitive.ObjectID, since time.Time) ([]DataValue, error) {
	filter := bson.M{"field_id": fieldID}
	if !since.IsZero() {
		filter["timestamp"] = bson.M{"$gte": since}
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	values := []DataValue{}
	if err := cursor.All(ctx, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (r *ValueRepositoryImpl) DeleteByFields(ctx context.Context, fieldIDs []primitive.ObjectID) error {
	if len(fieldIDs) == 0 {
		return nil
	}
	_, err := r.collection.DeleteMany(ctx, bson.M{"field_id": bson.M{"$in": fieldIDs}})
	return err
}

func (r *ValueRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "field_id", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	return err
}
