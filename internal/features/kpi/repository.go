package kpi

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

// ListFilter selects KPIs owned by OwnerID or whose id is in IDs; an empty filter selects all
type ListFilter struct {
	OwnerID *primitive.ObjectID
	IDs     []primitive.ObjectID
}

type KpiRepository interface {
	Create(ctx context.Context, kpi *Kpi) error
	FindByID(ctx context.Context, id string) (*Kpi, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]Kpi, error)
	List(ctx context.Context, filter ListFilter) ([]Kpi, error)
	Update(ctx context.Context, kpi *Kpi) error
	UpdateCalculation(ctx context.Context, id primitive.ObjectID, value *float64, calcErr *string, at time.Time) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	FindByFieldIDs(ctx context.Context, fieldIDs []primitive.ObjectID) ([]Kpi, error)
	EnsureIndexes(ctx context.Context) error
}

type KpiRepositoryImpl struct {
	collection *mongo.Collection
}

func NewKpiRepository(db *database.MongodbDB) KpiRepository {
	return &KpiRepositoryImpl{
		collection: db.DB.Collection("kpis"),
	}
}

func (r *KpiRepositoryImpl) Create(ctx context.Context, kpi *Kpi) error {
	if kpi.ID.IsZero() {
		kpi.ID = primitive.NewObjectID()
	}
	now := time.Now()
	kpi.CreatedAt = now
	kpi.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, kpi)
	return err
}

func (r *KpiRepositoryImpl) FindByID(ctx context.Context, id string) (*Kpi, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.NotFound("kpi")
	}

	var kpi Kpi
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&kpi); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("kpi")
		}
		return nil, err
	}
	return &kpi, nil
}

func (r *KpiRepositoryImpl) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]Kpi, error) {
	if len(ids) == 0 {
		return []Kpi{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *KpiRepositoryImpl) List(ctx context.Context, filter ListFilter) ([]Kpi, error) {
	query := bson.M{}
	var or bson.A
	if filter.OwnerID != nil {
		or = append(or, bson.M{"owner_id": *filter.OwnerID})
	}
	if len(filter.IDs) > 0 {
		or = append(or, bson.M{"_id": bson.M{"$in": filter.IDs}})
	}
	if len(or) > 0 {
		query["$or"] = or
	}
	return r.find(ctx, query)
}

func (r *KpiRepositoryImpl) find(ctx context.Context, filter bson.M) ([]Kpi, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	kpis := []Kpi{}
	if err := cursor.All(ctx, &kpis); err != nil {
		return nil, err
	}
	return kpis, nil
}

func (r *KpiRepositoryImpl) Update(ctx context.Context, kpi *Kpi) error {
	kpi.UpdatedAt = time.Now()

	set := bson.M{
		"name":        kpi.Name,
		"description": kpi.Description,
		"formula":     kpi.Formula,
		"sources":     kpi.Sources,
		"unit":        kpi.Unit,
		"format":      kpi.Format,
		"updated_at":  kpi.UpdatedAt,
	}
	unset := bson.M{}
	setOrUnset(set, unset, "target_value", kpi.TargetValue)
	setOrUnset(set, unset, "target_direction", kpi.TargetDirection)
	setOrUnset(set, unset, "target_period", kpi.TargetPeriod)

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": kpi.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("kpi")
	}
	return nil
}

func setOrUnset[T any](set, unset bson.M, key string, v *T) {
	if v == nil {
		unset[key] = ""
		return
	}
	set[key] = *v
}

func (r *KpiRepositoryImpl) UpdateCalculation(ctx context.Context, id primitive.ObjectID, value *float64, calcErr *string, at time.Time) error {
	set := bson.M{"last_calculated": at}
	unset := bson.M{}
	setOrUnset(set, unset, "current_value", value)
	setOrUnset(set, unset, "calculation_error", calcErr)

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

func (r *KpiRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *KpiRepositoryImpl) FindByFieldIDs(ctx context.Context, fieldIDs []primitive.ObjectID) ([]Kpi, error) {
	if len(fieldIDs) == 0 {
		return []Kpi{}, nil
	}
	return r.find(ctx, bson.M{"sources.data_field_id": bson.M{"$in": fieldIDs}})
}

func (r *KpiRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}}},
		{Keys: bson.D{{Key: "sources.data_field_id", Value: 1}}},
	})
	return err
}

type ValueRepository interface {
	Append(ctx context.Context, value *KpiValue) error
	List(ctx context.Context, kpiID primitive.ObjectID, since time.Time) ([]KpiValue, error)
	DeleteByKpi(ctx context.Context, kpiID primitive.ObjectID) error
	EnsureIndexes(ctx context.Context) error
}

type ValueRepositoryImpl struct {
	collection *mongo.Collection
}

func NewValueRepository(db *database.MongodbDB) ValueRepository {
	return &ValueRepositoryImpl{
		collection: db.DB.Collection("kpi_values"),
	}
}

func (r *ValueRepositoryImpl) Append(ctx context.Context, value *KpiValue) error {
	if value.ID.IsZero() {
		value.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, value)
	return err
}

// List returns points oldest first; a zero since returns the whole history
func (r *ValueRepositoryImpl) List(ctx context.Context, kpiID primitive.ObjectID, since time.Time) ([]KpiValue, error) {
	filter := bson.M{"kpi_id": kpiID}
	if !since.IsZero() {
		filter["timestamp"] = bson.M{"$gte": since}
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	values := []KpiValue{}
	if err := cursor.All(ctx, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func (r *ValueRepositoryImpl) DeleteByKpi(ctx context.Context, kpiID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"kpi_id": kpiID})
	return err
}

func (r *ValueRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "kpi_id", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	return err
}
