package sharing

import (
	"context"
	"errors"
	"time"

	"go-kpi/internal/common/apperr"
	"go-kpi/internal/database"
	"go-kpi/internal/features/access"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ListFilter struct {
	ResourceType access.ResourceType
	ResourceID   *primitive.ObjectID
	CreatedBy    *primitive.ObjectID
}

type ShareLinkRepository interface {
	Create(ctx context.Context, link *ShareLink) error
	FindByID(ctx context.Context, id string) (*ShareLink, error)
	FindByToken(ctx context.Context, token string) (*ShareLink, error)
	List(ctx context.Context, filter ListFilter) ([]ShareLink, error)
	Update(ctx context.Context, link *ShareLink) error
	RecordAccess(ctx context.Context, id primitive.ObjectID, at time.Time) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByResource(ctx context.Context, rt access.ResourceType, id primitive.ObjectID) error
	EnsureIndexes(ctx context.Context) error
}

type ShareLinkRepositoryImpl struct {
	collection *mongo.Collection
}

func NewShareLinkRepository(db *database.MongodbDB) ShareLinkRepository {
	return &ShareLinkRepositoryImpl{
		collection: db.DB.Collection("share_links"),
	}
}

func (r *ShareLinkRepositoryImpl) Create(ctx context.Context, link *ShareLink) error {
	if link.ID.IsZero() {
		link.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, link)
	return err
}

func (r *ShareLinkRepositoryImpl) findOne(ctx context.Context, filter bson.M) (*ShareLink, error) {
	var link ShareLink
	if err := r.collection.FindOne(ctx, filter).Decode(&link); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("share link")
		}
		return nil, err
	}
	return &link, nil
}

func (r *ShareLinkRepositoryImpl) FindByID(ctx context.Context, id string) (*ShareLink, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.NotFound("share link")
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *ShareLinkRepositoryImpl) FindByToken(ctx context.Context, token string) (*ShareLink, error) {
	return r.findOne(ctx, bson.M{"token": token})
}

func (r *ShareLinkRepositoryImpl) List(ctx context.Context, filter ListFilter) ([]ShareLink, error) {
	query := bson.M{}
	if filter.ResourceType != "" {
		query["resource_type"] = filter.ResourceType
	}
	if filter.ResourceID != nil {
		query["resource_id"] = *filter.ResourceID
	}
	if filter.CreatedBy != nil {
		query["created_by"] = *filter.CreatedBy
	}

	cursor, err := r.collection.Find(ctx, query, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	links := []ShareLink{}
	if err := cursor.All(ctx, &links); err != nil {
		return nil, err
	}
	return links, nil
}

func (r *ShareLinkRepositoryImpl) Update(ctx context.Context, link *ShareLink) error {
	update := bson.M{
		"$set": bson.M{
			"active":      link.Active,
			"show_target": link.ShowTarget,
			"expires_at":  link.ExpiresAt,
			"updated_at":  link.UpdatedAt,
		},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": link.ID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("share link")
	}
	return nil
}

// RecordAccess bumps the counter atomically so concurrent viewers are all counted
func (r *ShareLinkRepositoryImpl) RecordAccess(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$inc": bson.M{"access_count": 1},
		"$set": bson.M{"last_accessed_at": at},
	})
	return err
}

func (r *ShareLinkRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return apperr.NotFound("share link")
	}
	return nil
}

func (r *ShareLinkRepositoryImpl) DeleteByResource(ctx context.Context, rt access.ResourceType, id primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"resource_type": rt, "resource_id": id})
	return err
}

func (r *ShareLinkRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "resource_type", Value: 1}, {Key: "resource_id", Value: 1}},
		},
	})
	return err
}
