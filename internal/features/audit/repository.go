package audit

import (
	"context"

	common_models "go-kpi/internal/common/models"
	"go-kpi/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AuditRepository interface {
	Create(ctx context.Context, log common_models.AuditLog) error
	List(ctx context.Context, filter AuditFilter, limit, offset int64) ([]common_models.AuditLog, error)
}

// AuditFilter narrows a log listing; empty fields are ignored
type AuditFilter struct {
	Module   string
	RecordID string
	ActorID  string
	Action   common_models.AuditAction
}

func (f AuditFilter) query() bson.M {
	query := bson.M{}
	if f.Module != "" {
		query["module"] = f.Module
	}
	if f.RecordID != "" {
		query["record_id"] = f.RecordID
	}
	if f.ActorID != "" {
		query["actor_id"] = f.ActorID
	}
	if f.Action != "" {
		query["action"] = f.Action
	}
	return query
}

type AuditRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewAuditRepository(mongodb *database.MongodbDB) AuditRepository {
	return &AuditRepositoryImpl{
		Collection: mongodb.DB.Collection("audit_logs"),
	}
}

func (r *AuditRepositoryImpl) Create(ctx context.Context, log common_models.AuditLog) error {
	_, err := r.Collection.InsertOne(ctx, log)
	return err
}

func (r *AuditRepositoryImpl) List(ctx context.Context, filter AuditFilter, limit, offset int64) ([]common_models.AuditLog, error) {
	opts := options.Find().SetLimit(limit).SetSkip(offset).SetSort(bson.M{"timestamp": -1})

	cursor, err := r.Collection.Find(ctx, filter.query(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []common_models.AuditLog{}
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
