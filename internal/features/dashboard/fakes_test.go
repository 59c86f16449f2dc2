package dashboard

import (
	"context"
	"errors"

	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"
	"go-kpi/internal/features/access"
	"go-kpi/internal/features/audit"
	"go-kpi/internal/features/kpi"
	"go-kpi/internal/features/widget"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type nopAudit struct{}

func (nopAudit) LogChange(ctx context.Context, action models.AuditAction, module string, recordID string, changes map[string]models.Change) error {
	return nil
}

func (nopAudit) ListLogs(ctx context.Context, filter audit.AuditFilter, page, limit int64) ([]models.AuditLog, error) {
	return nil, nil
}

type memoryDashboards struct {
	items     map[primitive.ObjectID]Dashboard
	positions []map[string]widget.Position
}

func newMemoryDashboards() *memoryDashboards {
	return &memoryDashboards{items: map[primitive.ObjectID]Dashboard{}}
}

func (m *memoryDashboards) Create(ctx context.Context, d *Dashboard) error {
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	m.items[d.ID] = *d
	return nil
}

func (m *memoryDashboards) Get(ctx context.Context, id string) (*Dashboard, error) {
	oid, _ := primitive.ObjectIDFromHex(id)
	d, ok := m.items[oid]
	if !ok {
		return nil, apperr.NotFound("dashboard")
	}
	d.Widgets = append([]widget.Widget{}, d.Widgets...)
	return &d, nil
}

func (m *memoryDashboards) List(ctx context.Context, filter ListFilter) ([]Dashboard, error) {
	ids := map[primitive.ObjectID]bool{}
	for _, id := range filter.IDs {
		ids[id] = true
	}
	out := []Dashboard{}
	for _, d := range m.items {
		all := filter.OwnerID == nil && len(filter.IDs) == 0
		if all || (filter.OwnerID != nil && d.OwnerID == *filter.OwnerID) || ids[d.ID] {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memoryDashboards) Update(ctx context.Context, d *Dashboard) error {
	existing := m.items[d.ID]
	existing.Name = d.Name
	existing.Description = d.Description
	existing.RefreshInterval = d.RefreshInterval
	m.items[d.ID] = existing
	return nil
}

func (m *memoryDashboards) SaveWidgets(ctx context.Context, id primitive.ObjectID, widgets []widget.Widget) error {
	d := m.items[id]
	d.Widgets = append([]widget.Widget{}, widgets...)
	m.items[id] = d
	return nil
}

func (m *memoryDashboards) UpdatePositions(ctx context.Context, id primitive.ObjectID, positions map[string]widget.Position) error {
	m.positions = append(m.positions, positions)
	d := m.items[id]
	for i := range d.Widgets {
		if p, ok := positions[d.Widgets[i].ID]; ok {
			d.Widgets[i].Position = p
		}
	}
	m.items[id] = d
	return nil
}

func (m *memoryDashboards) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, ok := m.items[id]; !ok {
		return apperr.NotFound("dashboard")
	}
	delete(m.items, id)
	return nil
}

func (m *memoryDashboards) EnsureIndexes(ctx context.Context) error { return nil }

// fakeKpis serves KPIs from memory. Ids in denied fail Get with a permission error,
// the way the KPI service does for callers without view access.
type fakeKpis struct {
	items        map[string]*kpi.Kpi
	histories    map[string]*kpi.History
	denied       map[string]bool
	historyCalls int
	failHistory  bool
}

func newFakeKpis() *fakeKpis {
	return &fakeKpis{items: map[string]*kpi.Kpi{}, histories: map[string]*kpi.History{}, denied: map[string]bool{}}
}

func (f *fakeKpis) add(name string, value float64, target *float64) *kpi.Kpi {
	k := &kpi.Kpi{ID: primitive.NewObjectID(), Name: name, CurrentValue: &value, TargetValue: target, Format: kpi.FormatNumber}
	f.items[k.ID.Hex()] = k
	f.histories[k.ID.Hex()] = &kpi.History{
		Data:     []kpi.HistoryPoint{{Value: value / 2}, {Value: value}},
		Period:   models.Period30d,
		Interval: models.IntervalDaily,
	}
	return k
}

func (f *fakeKpis) Get(ctx context.Context, id string) (*kpi.KpiView, error) {
	k, ok := f.items[id]
	if !ok {
		return nil, apperr.NotFound("kpi")
	}
	if f.denied[id] {
		return nil, apperr.Forbidden("you do not have access to this KPI")
	}
	view := kpi.NewKpiView(k, nil)
	return &view, nil
}

func (f *fakeKpis) FindByIDs(ctx context.Context, ids []string) (map[string]*kpi.Kpi, error) {
	out := map[string]*kpi.Kpi{}
	for _, id := range ids {
		if k, ok := f.items[id]; ok {
			out[id] = k
		}
	}
	return out, nil
}

func (f *fakeKpis) HistoryFor(ctx context.Context, k *kpi.Kpi, period models.Period) (*kpi.History, error) {
	f.historyCalls++
	if f.failHistory {
		return nil, errors.New("history store unavailable")
	}
	h := *f.histories[k.ID.Hex()]
	h.Period = period
	return &h, nil
}

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
		ResourceType: access.ResourceDashboard, ResourceID: resourceID, UserID: userID, Permission: p,
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

type recordingLinks struct {
	deleted []primitive.ObjectID
}

func (r *recordingLinks) DeleteByResource(ctx context.Context, rt access.ResourceType, id primitive.ObjectID) error {
	r.deleted = append(r.deleted, id)
	return nil
}
