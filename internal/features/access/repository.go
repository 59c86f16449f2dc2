package access

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

type AccessRepository interface {
	FindByResource(ctx context.Context, rt ResourceType, resourceID primitive.ObjectID) ([]AccessEntry, error)
	Find(ctx context.Context, rt ResourceType, resourceID, userID primitive.ObjectID) (*AccessEntry, error)
	FindResourceIDsForUser(ctx context.Context, rt ResourceType, userID primitive.ObjectID) ([]primitive.ObjectID, error)
	Upsert(ctx context.Context, entry *AccessEntry) error
	UpdatePermission(ctx context.Context, rt ResourceType, resourceID, userID primitive.ObjectID, p Permission) error
	Delete(ctx context.Context, rt ResourceType, resourceID, userID primitive.ObjectID) (bool, error)
	DeleteByResource(ctx context.Context, rt ResourceType, resourceID primitive.ObjectID) error
	EnsureIndexes(ctx context.Context) error
}

type AccessRepositoryImpl struct {
	collection *mongo.Collection
}

func NewAccessRepository(db *database.MongodbDB) AccessRepository {
	return &AccessRepositoryImpl{
		collection: db.DB.Collection("access_entries"),
	}
}

func resourceFilter(rt ResourceType, resourceID primitive.ObjectID) bson.M {
	return bson.M{"resource_type": rt, "resource_id": resourceID}
}

func (r *AccessRepositoryImpl) FindByResource(ctx context.Context, rt ResourceType, resourceID primitive.ObjectID) ([]AccessEntry, error) {
	opts := options.Find().SetSort(bson.M{"granted_at": 1})
	cursor, err := r.collection.Find(ctx, resourceFilter(rt, resourceID), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	entries := []AccessEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *AccessRepositoryImpl) Find(ctx context.Context, rt ResourceType, resourceID, userID primitive.ObjectID) (*AccessEntry, error) {
	filter := resourceFilter(rt, resourceID)
	filter["user_id"] = userID

	var entry AccessEntry
	if err := r.collection.FindOne(ctx, filter).Decode(&entry); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("access entry")
		}
		return nil, err
	}
	return &entry, nil
}

func (r *AccessRepositoryImpl) FindResourceIDsForUser(ctx context.Context, rt ResourceType, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	values, err := r.collection.Distinct(ctx, "resource_id", bson.M{"resource_type": rt, "user_id": userID})
	if err != nil {
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(values))
	for _, v := range values {
		if oid, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, oid)
		}
	}
	return ids, nil
}

func (r *AccessRepositoryImpl) Upsert(ctx context.Context, entry *AccessEntry) error {
	if entry.GrantedAt.IsZero() {
		entry.GrantedAt = time.Now()
	}

	filter := resourceFilter(entry.ResourceType, entry.ResourceID)
	filter["user_id"] = entry.UserID

	update := bson.M{
		"$set": bson.M{
			"permission": entry.Permission,
			"granted_by": entry.GrantedBy,
		},
		"$setOnInsert": bson.M{
			"granted_at": entry.GrantedAt,
		},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	return r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(entry)
}

func (r *AccessRepositoryImpl) UpdatePermission(ctx context.Context, rt ResourceType, resourceID, userID primitive.ObjectID, p Permission) error {
	filter := resourceFilter(rt, resourceID)
	filter["user_id"] = userID

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"permission": p}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("access entry")
	}
	return nil
}

func (r *AccessRepositoryImpl) Delete(ctx context.Context, rt ResourceType, resourceID, userID primitive.ObjectID) (bool, error) {
	filter := resourceFilter(rt, resourceID)
	filter["user_id"] = userID

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return false, err
	}
	return result.DeletedCount > 0, nil
}

func (r *AccessRepositoryImpl) DeleteByResource(ctx context.Context, rt ResourceType, resourceID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, resourceFilter(rt, resourceID))
	return err
}

func (r *AccessRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "resource_type", Value: 1}, {Key: "resource_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "resource_type", Value: 1}, {Key: "user_id", Value: 1}},
		},
	})
	return err
}
