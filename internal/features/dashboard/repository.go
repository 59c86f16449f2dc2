package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-kpi/internal/common/apperr"
	"go-kpi/internal/database"
	"go-kpi/internal/features/widget"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ListFilter selects dashboards owned by OwnerID or whose id is in IDs; an empty filter selects all
type ListFilter struct {
	OwnerID *primitive.ObjectID
	IDs     []primitive.ObjectID
}

type DashboardRepository interface {
	Create(ctx context.Context, dashboard *Dashboard) error
	Get(ctx context.Context, id string) (*Dashboard, error)
	List(ctx context.Context, filter ListFilter) ([]Dashboard, error)
	Update(ctx context.Context, dashboard *Dashboard) error
	SaveWidgets(ctx context.Context, id primitive.ObjectID, widgets []widget.Widget) error
	UpdatePositions(ctx context.Context, id primitive.ObjectID, positions map[string]widget.Position) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	EnsureIndexes(ctx context.Context) error
}

type DashboardRepositoryImpl struct {
	collection *mongo.Collection
}

func NewDashboardRepository(db *database.MongodbDB) DashboardRepository {
	return &DashboardRepositoryImpl{
		collection: db.DB.Collection("dashboards"),
	}
}

func (r *DashboardRepositoryImpl) Create(ctx context.Context, dashboard *Dashboard) error {
	if dashboard.ID.IsZero() {
		dashboard.ID = primitive.NewObjectID()
	}
	if dashboard.Widgets == nil {
		dashboard.Widgets = []widget.Widget{}
	}
	dashboard.CreatedAt = time.Now()
	dashboard.UpdatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, dashboard)
	return err
}

func (r *DashboardRepositoryImpl) Get(ctx context.Context, id string) (*Dashboard, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.NotFound("dashboard")
	}

	var dashboard Dashboard
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&dashboard)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperr.NotFound("dashboard")
		}
		return nil, err
	}
	return &dashboard, nil
}

func (r *DashboardRepositoryImpl) List(ctx context.Context, filter ListFilter) ([]Dashboard, error) {
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

	cursor, err := r.collection.Find(ctx, query, options.Find().SetSort(bson.M{"updated_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	dashboards := []Dashboard{}
	if err = cursor.All(ctx, &dashboards); err != nil {
		return nil, err
	}
	return dashboards, nil
}

func (r *DashboardRepositoryImpl) Update(ctx context.Context, dashboard *Dashboard) error {
	dashboard.UpdatedAt = time.Now()

	update := bson.M{
		"$set": bson.M{
			"name":             dashboard.Name,
			"description":      dashboard.Description,
			"refresh_interval": dashboard.RefreshInterval,
			"updated_at":       dashboard.UpdatedAt,
		},
	}
	return r.updateOne(ctx, dashboard.ID, update)
}

// SaveWidgets replaces the widget array; used for add, edit and delete of single widgets
func (r *DashboardRepositoryImpl) SaveWidgets(ctx context.Context, id primitive.ObjectID, widgets []widget.Widget) error {
	update := bson.M{
		"$set": bson.M{
			"widgets":    widgets,
			"updated_at": time.Now(),
		},
	}
	return r.updateOne(ctx, id, update)
}

// UpdatePositions sets the position of each listed widget in place. Widgets that are not
// listed, or listed ids that no longer exist, are left alone.
func (r *DashboardRepositoryImpl) UpdatePositions(ctx context.Context, id primitive.ObjectID, positions map[string]widget.Position) error {
	if len(positions) == 0 {
		return nil
	}

	set := bson.M{"updated_at": time.Now()}
	filters := make([]interface{}, 0, len(positions))
	i := 0
	for widgetID, pos := range positions {
		name := fmt.Sprintf("w%d", i)
		set["widgets.$["+name+"].position"] = pos
		filters = append(filters, bson.M{name + ".id": widgetID})
		i++
	}

	opts := options.Update().SetArrayFilters(options.ArrayFilters{Filters: filters})
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("dashboard")
	}
	return nil
}

func (r *DashboardRepositoryImpl) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return apperr.NotFound("dashboard")
	}
	return nil
}

func (r *DashboardRepositoryImpl) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return apperr.NotFound("dashboard")
	}
	return nil
}

func (r *DashboardRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner_id", Value: 1}},
	})
	return err
}
