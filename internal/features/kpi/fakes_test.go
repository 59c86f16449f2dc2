package kpi

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go-kpi/internal/cache"
	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"
	"go-kpi/internal/features/access"
	"go-kpi/internal/features/audit"
	"go-kpi/internal/features/integration"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type nopAudit struct{}

func (nopAudit) LogChange(ctx context.Context, action models.AuditAction, module string, recordID string, changes map[string]models.Change) error {
	return nil
}

func (nopAudit) ListLogs(ctx context.Context, filter audit.AuditFilter, page, limit int64) ([]models.AuditLog, error) {
	return nil, nil
}

type memoryKpis struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]Kpi
}

func newMemoryKpis() *memoryKpis {
	return &memoryKpis{items: map[primitive.ObjectID]Kpi{}}
}

func (m *memoryKpis) Create(ctx context.Context, k *Kpi) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k.ID.IsZero() {
		k.ID = primitive.NewObjectID()
	}
	m.items[k.ID] = *k
	return nil
}

func (m *memoryKpis) FindByID(ctx context.Context, id string) (*Kpi, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	oid, _ := primitive.ObjectIDFromHex(id)
	k, ok := m.items[oid]
	if !ok {
		return nil, apperr.NotFound("kpi")
	}
	return &k, nil
}

func (m *memoryKpis) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]Kpi, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Kpi{}
	for _, id := range ids {
		if k, ok := m.items[id]; ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *memoryKpis) List(ctx context.Context, filter ListFilter) ([]Kpi, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := map[primitive.ObjectID]bool{}
	for _, id := range filter.IDs {
		ids[id] = true
	}
	out := []Kpi{}
	for _, k := range m.items {
		all := filter.OwnerID == nil && len(filter.IDs) == 0
		if all || (filter.OwnerID != nil && k.OwnerID == *filter.OwnerID) || ids[k.ID] {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryKpis) Update(ctx context.Context, k *Kpi) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[k.ID] = *k
	return nil
}

func (m *memoryKpis) UpdateCalculation(ctx context.Context, id primitive.ObjectID, value *float64, calcErr *string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.items[id]
	k.CurrentValue = value
	k.CalculationError = calcErr
	k.LastCalculated = &at
	m.items[id] = k
	return nil
}

func (m *memoryKpis) Delete(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, id)
	return nil
}

func (m *memoryKpis) FindByFieldIDs(ctx context.Context, fieldIDs []primitive.ObjectID) ([]Kpi, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[primitive.ObjectID]bool{}
	for _, id := range fieldIDs {
		want[id] = true
	}
	out := []Kpi{}
	for _, k := range m.items {
		for _, s := range k.Sources {
			if want[s.DataFieldID] {
				out = append(out, k)
				break
			}
		}
	}
	return out, nil
}

func (m *memoryKpis) EnsureIndexes(ctx context.Context) error { return nil }

type memoryKpiValues struct {
	points []KpiValue
}

func (m *memoryKpiValues) Append(ctx context.Context, v *KpiValue) error {
	m.points = append(m.points, *v)
	return nil
}

func (m *memoryKpiValues) List(ctx context.Context, kpiID primitive.ObjectID, since time.Time) ([]KpiValue, error) {
	out := []KpiValue{}
	for _, p := range m.points {
		if p.KpiID == kpiID && !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *memoryKpiValues) DeleteByKpi(ctx context.Context, kpiID primitive.ObjectID) error {
	kept := m.points[:0]
	for _, p := range m.points {
		if p.KpiID != kpiID {
			kept = append(kept, p)
		}
	}
	m.points = kept
	return nil
}

func (m *memoryKpiValues) EnsureIndexes(ctx context.Context) error { return nil }

type memoryFields struct {
	items map[primitive.ObjectID]integration.DataField
}

func (m *memoryFields) Create(ctx context.Context, f *integration.DataField) error {
	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	m.items[f.ID] = *f
	return nil
}

func (m *memoryFields) FindByID(ctx context.Context, id string) (*integration.DataField, error) {
	oid, _ := primitive.ObjectIDFromHex(id)
	f, ok := m.items[oid]
	if !ok {
		return nil, apperr.NotFound("data field")
	}
	return &f, nil
}

func (m *memoryFields) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]integration.DataField, error) {
	out := []integration.DataField{}
	for _, id := range ids {
		if f, ok := m.items[id]; ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memoryFields) ListByIntegration(ctx context.Context, integrationID primitive.ObjectID) ([]integration.DataField, error) {
	return nil, nil
}

func (m *memoryFields) UpdateCurrent(ctx context.Context, id primitive.ObjectID, value interface{}, at time.Time) error {
	return nil
}

func (m *memoryFields) Delete(ctx context.Context, id primitive.ObjectID) error {
	delete(m.items, id)
	return nil
}

func (m *memoryFields) DeleteByIntegration(ctx context.Context, integrationID primitive.ObjectID) error {
	return nil
}

func (m *memoryFields) EnsureIndexes(ctx context.Context) error { return nil }

type memoryFieldValues struct {
	points  []integration.DataValue
	readErr error
}

func (m *memoryFieldValues) Append(ctx context.Context, values []integration.DataValue) error {
	m.points = append(m.points, values...)
	return nil
}

func (m *memoryFieldValues) ListByField(ctx context.Context, fieldID primitive.ObjectID, since time.Time) ([]integration.DataValue, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := []integration.DataValue{}
	for _, p := range m.points {
		if p.FieldID == fieldID && !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *memoryFieldValues) DeleteByFields(ctx context.Context, fieldIDs []primitive.ObjectID) error {
	return nil
}

func (m *memoryFieldValues) EnsureIndexes(ctx context.Context) error { return nil }

// grantAccess decides with DeriveAccess over an in-memory grant list
type grantAccess struct {
	grants  map[primitive.ObjectID][]access.AccessEntry
	removed []access.Resource
}

func newGrantAccess() *grantAccess {
	return &grantAccess{grants: map[primitive.ObjectID][]access.AccessEntry{}}
}

func (g *grantAccess) grant(resourceID, userID primitive.ObjectID, p access.Permission) {
	g.grants[resourceID] = append(g.grants[resourceID], access.AccessEntry{
		ResourceType: access.ResourceKpi, ResourceID: resourceID, UserID: userID, Permission: p,
	})
}

func (g *grantAccess) Flags(ctx context.Context, res access.Resource, requester access.Requester) (access.AccessFlags, error) {
	return access.DeriveAccess(requester, res.OwnerID.Hex(), g.grants[res.ID]), nil
}

func (g *grantAccess) Authorize(ctx context.Context, res access.Resource, requester access.Requester, need access.Need) (access.AccessFlags, error) {
	flags, _ := g.Flags(ctx, res, requester)
	ok := map[access.Need]bool{
		access.NeedView:   flags.CanView,
		access.NeedEdit:   flags.CanEdit,
		access.NeedManage: flags.CanManage,
		access.NeedShare:  flags.CanShare,
	}[need]
	if !ok {
		return flags, apperr.Forbidden("forbidden")
	}
	return flags, nil
}

func (g *grantAccess) List(ctx context.Context, res access.Resource) (*access.AccessList, error) {
	return &access.AccessList{}, nil
}

func (g *grantAccess) Grant(ctx context.Context, res access.Resource, req access.GrantRequest) (*access.AccessListItem, error) {
	return nil, nil
}

func (g *grantAccess) Update(ctx context.Context, res access.Resource, userID string, permission string) error {
	return nil
}

func (g *grantAccess) Revoke(ctx context.Context, res access.Resource, userID string) error {
	return nil
}

func (g *grantAccess) ResourceIDsFor(ctx context.Context, rt access.ResourceType, userID string) ([]primitive.ObjectID, error) {
	var ids []primitive.ObjectID
	for resID, entries := range g.grants {
		for _, e := range entries {
			if e.UserID.Hex() == userID {
				ids = append(ids, resID)
			}
		}
	}
	return ids, nil
}

func (g *grantAccess) RemoveResource(ctx context.Context, res access.Resource) error {
	g.removed = append(g.removed, res)
	delete(g.grants, res.ID)
	return nil
}

// recordingCache is an in-memory cache.Cache that remembers deleted prefixes
type recordingCache struct {
	items    map[string]interface{}
	prefixes []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{items: map[string]interface{}{}}
}

func (c *recordingCache) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := c.items[key]
	if !ok {
		return cache.ErrMiss
	}
	*(dest.(*History)) = *(v.(*History))
	return nil
}

func (c *recordingCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.items[key] = value
	return nil
}

func (c *recordingCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func (c *recordingCache) DeletePrefix(ctx context.Context, prefix string) error {
	c.prefixes = append(c.prefixes, prefix)
	for k := range c.items {
		if strings.HasPrefix(k, prefix) {
			delete(c.items, k)
		}
	}
	return nil
}

type recordingLinks struct {
	deleted []primitive.ObjectID
}

func (r *recordingLinks) DeleteByResource(ctx context.Context, rt access.ResourceType, id primitive.ObjectID) error {
	r.deleted = append(r.deleted, id)
	return nil
}
