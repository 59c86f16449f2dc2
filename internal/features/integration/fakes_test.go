package integration

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-kpi/internal/common/apperr"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memoryIntegrations struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]Integration
}

func newMemoryIntegrations() *memoryIntegrations {
	return &memoryIntegrations{items: map[primitive.ObjectID]Integration{}}
}

func (m *memoryIntegrations) Create(ctx context.Context, i *Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i.ID.IsZero() {
		i.ID = primitive.NewObjectID()
	}
	m.items[i.ID] = *i
	return nil
}

func (m *memoryIntegrations) FindByID(ctx context.Context, id string) (*Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid, _ := primitive.ObjectIDFromHex(id)
	i, ok := m.items[oid]
	if !ok {
		return nil, apperr.NotFound("integration")
	}
	return &i, nil
}

func (m *memoryIntegrations) List(ctx context.Context, ownerID *primitive.ObjectID) ([]Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Integration{}
	for _, i := range m.items {
		if ownerID == nil || i.OwnerID == *ownerID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *memoryIntegrations) Update(ctx context.Context, i *Integration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[i.ID] = *i
	return nil
}

func (m *memoryIntegrations) UpdateSyncState(ctx context.Context, id primitive.ObjectID, status IntegrationStatus, lastSync *time.Time, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.items[id]
	i.Status = status
	i.LastError = lastError
	if lastSync != nil {
		i.LastSync = lastSync
	}
	m.items[id] = i
	return nil
}

func (m *memoryIntegrations) Delete(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memoryIntegrations) FindScheduled(ctx context.Context) ([]Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Integration{}
	for _, i := range m.items {
		if i.Type == TypeAPI && i.SyncSchedule != "" && i.Status != StatusDisabled {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *memoryIntegrations) EnsureIndexes(ctx context.Context) error { return nil }

type memoryFields struct {
	items map[primitive.ObjectID]DataField
}

func newMemoryFields() *memoryFields {
	return &memoryFields{items: map[primitive.ObjectID]DataField{}}
}

func (m *memoryFields) Create(ctx context.Context, f *DataField) error {
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	m.items[f.ID] = *f
	return nil
}

func (m *memoryFields) FindByID(ctx context.Context, id string) (*DataField, error) {
	oid, _ := primitive.ObjectIDFromHex(id)
	f, ok := m.items[oid]
	if !ok {
		return nil, apperr.NotFound("data field")
	}
	return &f, nil
}

func (m *memoryFields) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]DataField, error) {
	out := []DataField{}
	for _, id := range ids {
		if f, ok := m.items[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memoryFields) ListByIntegration(ctx context.Context, integrationID primitive.ObjectID) ([]DataField, error) {
	out := []DataField{}
	for _, f := range m.items {
		if f.IntegrationID == integrationID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceField < out[j].SourceField })
	return out, nil
}

func (m *memoryFields) UpdateCurrent(ctx context.Context, id primitive.ObjectID, value interface{}, at time.Time) error {
	f := m.items[id]
	if f.LastUpdated == nil || !at.Before(*f.LastUpdated) {
		f.CurrentValue = value
		f.LastUpdated = &at
	}
	m.items[id] = f
	return nil
}

func (m *memoryFields) Delete(ctx context.Context, id primitive.ObjectID) error {
	delete(m.items, id)
	return nil
}

func (m *memoryFields) DeleteByIntegration(ctx context.Context, integrationID primitive.ObjectID) error {
	for id, f := range m.items {
		if f.IntegrationID == integrationID {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *memoryFields) EnsureIndexes(ctx context.Context) error { return nil }

type memoryValues struct {
	points  []DataValue
	batches []int
}

func (m *memoryValues) Append(ctx context.Context, values []DataValue) error {
	m.points = append(m.points, values...)
	m.batches = append(m.batches, len(values))
	return nil
}

func (m *memoryValues) ListByField(ctx context.Context, fieldID primitive.ObjectID, since time.Time) ([]DataValue, error) {
	out := []DataValue{}
	for _, p := range m.points {
		if p.FieldID == fieldID && !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *memoryValues) DeleteByFields(ctx context.Context, fieldIDs []primitive.ObjectID) error {
	drop := map[primitive.ObjectID]bool{}
	for _, id := range fieldIDs {
		drop[id] = true
	}
	kept := m.points[:0]
	for _, p := range m.points {
		if !drop[p.FieldID] {
			kept = append(kept, p)
		}
	}
	m.points = kept
	return nil
}

func (m *memoryValues) EnsureIndexes(ctx context.Context) error { return nil }

type stubFetcher struct {
	record map[string]interface{}
	err    error
}

func (f stubFetcher) Fetch(ctx context.Context, cfg IntegrationConfig) (map[string]interface{}, error) {
	return f.record, f.err
}

type MockKpiDependencies struct {
	mock.Mock
}

func (m *MockKpiDependencies) KpisUsingFields(ctx context.Context, fieldIDs []primitive.ObjectID) ([]string, error) {
	args := m.Called(ctx, fieldIDs)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockKpiDependencies) RecalculateForFields(ctx context.Context, fieldIDs []primitive.ObjectID) error {
	return m.Called(ctx, fieldIDs).Error(0)
}
