package dashboard

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"
	"go-kpi/internal/features/access"
	"go-kpi/internal/features/widget"
	"go-kpi/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	svc     *DashboardServiceImpl
	repo    *memoryDashboards
	kpis    *fakeKpis
	access  *grantAccess
	links   *recordingLinks
	ownerID primitive.ObjectID
	ctx     context.Context
}

func newFixture() *fixture {
	f := &fixture{
		repo:    newMemoryDashboards(),
		kpis:    newFakeKpis(),
		access:  newGrantAccess(),
		links:   &recordingLinks{},
		ownerID: primitive.NewObjectID(),
	}
	f.svc = NewDashboardService(f.repo, f.kpis, f.access, f.links, nopAudit{}, zap.NewNop()).(*DashboardServiceImpl)
	f.svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	f.ctx = as(f.ownerID, models.RoleEditor)
	return f
}

func as(userID primitive.ObjectID, role models.Role) context.Context {
	return utils.WithClaims(context.Background(), &utils.UserClaims{UserID: userID.Hex(), Role: string(role)})
}

func (f *fixture) dashboard(t *testing.T) *DashboardView {
	t.Helper()
	d, err := f.svc.CreateDashboard(f.ctx, DashboardRequest{Name: ptr("Sales")})
	require.NoError(t, err)
	return d
}

func (f *fixture) addWidget(t *testing.T, dashboardID string, wt widget.WidgetType, kpiID string) *widget.Widget {
	t.Helper()
	w, err := f.svc.AddWidget(f.ctx, dashboardID, widget.WidgetRequest{Type: &wt, KpiID: &kpiID})
	require.NoError(t, err)
	return w
}

func TestCreateDashboardDefaults(t *testing.T) {
	f := newFixture()
	d := f.dashboard(t)

	assert.Equal(t, RefreshOff, d.RefreshInterval)
	assert.Empty(t, d.Widgets)
	assert.True(t, d.Access.IsOwner)
	assert.True(t, d.Access.CanShare)
}

func TestCreateDashboardValidation(t *testing.T) {
	tests := []struct {
		name  string
		req   DashboardRequest
		field string
	}{
		{"blank name", DashboardRequest{Name: ptr("  ")}, "name"},
		{"bad refresh", DashboardRequest{Name: ptr("x"), RefreshInterval: ptr(RefreshInterval("10s"))}, "refreshInterval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.CreateDashboard(f.ctx, tt.req)
			var appErr *apperr.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, apperr.KindValidation, appErr.Kind)
			assert.Equal(t, tt.field, appErr.Field)
		})
	}
}

func TestListDashboardsScopesToOwnedAndGranted(t *testing.T) {
	f := newFixture()
	mine := f.dashboard(t)

	other := primitive.NewObjectID()
	theirs, err := f.svc.CreateDashboard(as(other, models.RoleEditor), DashboardRequest{Name: ptr("Theirs")})
	require.NoError(t, err)
	_, err = f.svc.CreateDashboard(as(other, models.RoleEditor), DashboardRequest{Name: ptr("Private")})
	require.NoError(t, err)
	f.access.grant(theirs.ID, f.ownerID, access.PermissionView)

	views, err := f.svc.ListDashboards(f.ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)

	byID := map[primitive.ObjectID]DashboardView{}
	for _, v := range views {
		byID[v.ID] = v
	}
	assert.True(t, byID[mine.ID].Access.IsOwner)
	assert.True(t, byID[theirs.ID].Access.CanView)
	assert.False(t, byID[theirs.ID].Access.CanEdit)

	all, err := f.svc.ListDashboards(as(primitive.NewObjectID(), models.RoleAdmin))
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestViewerCannotEdit(t *testing.T) {
	f := newFixture()
	d := f.dashboard(t)
	viewer := primitive.NewObjectID()
	f.access.grant(d.ID, viewer, access.PermissionView)
	ctx := as(viewer, models.RoleViewer)

	_, err := f.svc.GetDashboard(ctx, d.ID.Hex())
	require.NoError(t, err)

	_, err = f.svc.UpdateDashboard(ctx, d.ID.Hex(), DashboardRequest{Name: ptr("Mine now")})
	assert.True(t, apperr.Is(err, apperr.KindPermission))

	k := f.kpis.add("Revenue", 10, nil)
	kpiID := k.ID.Hex()
	_, err = f.svc.AddWidget(ctx, d.ID.Hex(), widget.WidgetRequest{Type: ptr(widget.TypeNumber), KpiID: &kpiID})
	assert.True(t, apperr.Is(err, apperr.KindPermission))
}

func TestEditorGrantCannotDelete(t *testing.T) {
	f := newFixture()
	d := f.dashboard(t)
	editor := primitive.NewObjectID()
	f.access.grant(d.ID, editor, access.PermissionEdit)

	_, err := f.svc.UpdateDashboard(as(editor, models.RoleEditor), d.ID.Hex(), DashboardRequest{Name: ptr("Renamed")})
	require.NoError(t, err)

	err = f.svc.DeleteDashboard(as(editor, models.RoleEditor), d.ID.Hex())
	assert.True(t, apperr.Is(err, apperr.KindPermission))
}

func TestAddWidget(t *testing.T) {
	t.Run("requires a kpi for data widgets", func(t *testing.T) {
		f := newFixture()
		d := f.dashboard(t)
		_, err := f.svc.AddWidget(f.ctx, d.ID.Hex(), widget.WidgetRequest{Type: ptr(widget.TypeGauge)})
		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "kpiId", appErr.Field)
	})

	t.Run("unknown kpi is a validation error", func(t *testing.T) {
		f := newFixture()
		d := f.dashboard(t)
		missing := primitive.NewObjectID().Hex()
		_, err := f.svc.AddWidget(f.ctx, d.ID.Hex(), widget.WidgetRequest{Type: ptr(widget.TypeNumber), KpiID: &missing})
		var appErr *apperr.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperr.KindValidation, appErr.Kind)
	})

	t.Run("kpi the caller cannot view is rejected", func(t *testing.T) {
		f := newFixture()
		d := f.dashboard(t)
		k := f.kpis.add("Secret", 1, nil)
		f.kpis.denied[k.ID.Hex()] = true
		kpiID := k.ID.Hex()
		_, err := f.svc.AddWidget(f.ctx, d.ID.Hex(), widget.WidgetRequest{Type: ptr(widget.TypeNumber), KpiID: &kpiID})
		assert.True(t, apperr.Is(err, apperr.KindPermission))
	})

	t.Run("image widget needs no kpi", func(t *testing.T) {
		f := newFixture()
		d := f.dashboard(t)
		w, err := f.svc.AddWidget(f.ctx, d.ID.Hex(), widget.WidgetRequest{
			Type:   ptr(widget.TypeImage),
			Config: &widget.WidgetConfig{ImageURL: "https://example.com/logo.png"},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, w.ID)

		stored, _ := f.repo.Get(context.Background(), d.ID.Hex())
		assert.Len(t, stored.Widgets, 1)
	})
}

func TestUpdateAndDeleteWidget(t *testing.T) {
	f := newFixture()
	d := f.dashboard(t)
	k := f.kpis.add("Revenue", 10, nil)
	w := f.addWidget(t, d.ID.Hex(), widget.TypeNumber, k.ID.Hex())

	updated, err := f.svc.UpdateWidget(f.ctx, d.ID.Hex(), w.ID, widget.WidgetRequest{Title: ptr("Revenue today")})
	require.NoError(t, err)
	assert.Equal(t, "Revenue today", updated.Title)
	assert.Equal(t, k.ID, *updated.KpiID)

	_, err = f.svc.UpdateWidget(f.ctx, d.ID.Hex(), "nope", widget.WidgetRequest{Title: ptr("x")})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, f.svc.DeleteWidget(f.ctx, d.ID.Hex(), w.ID))
	stored, _ := f.repo.Get(context.Background(), d.ID.Hex())
	assert.Empty(t, stored.Widgets)

	err = f.svc.DeleteWidget(f.ctx, d.ID.Hex(), w.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestUpdateLayoutOnlyTouchesListedWidgets(t *testing.T) {
	f := newFixture()
	d := f.dashboard(t)
	k := f.kpis.add("Revenue", 10, nil)
	a := f.addWidget(t, d.ID.Hex(), widget.TypeNumber, k.ID.Hex())
	b := f.addWidget(t, d.ID.Hex(), widget.TypeGauge, k.ID.Hex())

	view, err := f.svc.UpdateLayout(f.ctx, d.ID.Hex(), []LayoutItem{
		{ID: a.ID, X: 4, Y: 0, W: 6, H: 2},
		{ID: "deleted-elsewhere", X: 0, Y: 0, W: 1, H: 1},
	})
	require.NoError(t, err)

	require.Len(t, f.repo.positions, 1)
	assert.Len(t, f.repo.positions[0], 1)

	stored, _ := f.repo.Get(context.Background(), d.ID.Hex())
	assert.Equal(t, widget.Position{X: 4, Y: 0, W: 6, H: 2}, stored.Widgets[0].Position)
	assert.Equal(t, b.Position, stored.Widgets[1].Position)
	assert.Equal(t, stored.Widgets, view.Widgets)
}

func TestUpdateLayoutRejectsBadPosition(t *testing.T) {
	f := newFixture()
	d := f.dashboard(t)
	k := f.kpis.add("Revenue", 10, nil)
	a := f.addWidget(t, d.ID.Hex(), widget.TypeNumber, k.ID.Hex())

	_, err := f.svc.UpdateLayout(f.ctx, d.ID.Hex(), []LayoutItem{{ID: a.ID, W: 0, H: 2}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, f.repo.positions)
}

func TestGetDashboardDataIsolatesWidgetFailures(t *testing.T) {
	f := newFixture()
	d := f.dashboard(t)
	good := f.kpis.add("Revenue", 80, ptr(100.0))
	gone := f.kpis.add("Churn", 5, nil)

	number := f.addWidget(t, d.ID.Hex(), widget.TypeNumber, good.ID.Hex())
	orphan := f.addWidget(t, d.ID.Hex(), widget.TypeGauge, gone.ID.Hex())
	delete(f.kpis.items, gone.ID.Hex())

	broken := ptr("division by zero")
	failing := f.kpis.add("Ratio", 0, nil)
	failing.CalculationError = broken
	failing.CurrentValue = nil
	errored := f.addWidget(t, d.ID.Hex(), widget.TypeNumber, failing.ID.Hex())

	data, err := f.svc.GetDashboardData(f.ctx, d.ID.Hex(), models.Period7d)
	require.NoError(t, err)
	require.Len(t, data.Widgets, 3)

	slots := map[string]WidgetData{}
	for _, s := range data.Widgets {
		slots[s.WidgetID] = s
	}

	assert.Empty(t, slots[number.ID].Error)
	require.NotNil(t, slots[number.ID].View)
	assert.Equal(t, 80.0, *slots[number.ID].KpiData.Kpi.CurrentValue)

	assert.Equal(t, "KPI unavailable", slots[orphan.ID].Error)
	assert.Nil(t, slots[orphan.ID].View)

	assert.Equal(t, "division by zero", slots[errored.ID].Error)
	assert.Equal(t, models.Period7d, data.Period)
}

func TestRenderSharesHistoryPerKpiAndPeriod(t *testing.T) {
	f := newFixture()
	d := f.dashboard(t)
	k := f.kpis.add("Revenue", 80, nil)
	f.addWidget(t, d.ID.Hex(), widget.TypeLine, k.ID.Hex())
	f.addWidget(t, d.ID.Hex(), widget.TypeBar, k.ID.Hex())
	f.addWidget(t, d.ID.Hex(), widget.TypeStat, k.ID.Hex())

	custom := widget.TypeArea
	kpiID := k.ID.Hex()
	_, err := f.svc.AddWidget(f.ctx, d.ID.Hex(), widget.WidgetRequest{
		Type: &custom, KpiID: &kpiID, Config: &widget.WidgetConfig{Period: models.Period90d},
	})
	require.NoError(t, err)

	data, err := f.svc.GetDashboardData(f.ctx, d.ID.Hex(), models.Period30d)
	require.NoError(t, err)
	assert.Equal(t, 2, f.kpis.historyCalls)

	last := data.Widgets[3]
	assert.Equal(t, models.Period90d, last.KpiData.History.Period)
}

func TestHistoryFailureStaysInWidget(t *testing.T) {
	f := newFixture()
	d := f.dashboard(t)
	k := f.kpis.add("Revenue", 80, nil)
	chart := f.addWidget(t, d.ID.Hex(), widget.TypeLine, k.ID.Hex())
	number := f.addWidget(t, d.ID.Hex(), widget.TypeNumber, k.ID.Hex())
	f.kpis.failHistory = true

	data, err := f.svc.GetDashboardData(f.ctx, d.ID.Hex(), models.Period30d)
	require.NoError(t, err)
	assert.Equal(t, chart.ID, data.Widgets[0].WidgetID)
	assert.Equal(t, "failed to load history", data.Widgets[0].Error)
	assert.Equal(t, number.ID, data.Widgets[1].WidgetID)
	assert.Empty(t, data.Widgets[1].Error)
}

func TestRenderHideTargetOmitsTargetKeys(t *testing.T) {
	f := newFixture()
	d := f.dashboard(t)
	k := f.kpis.add("Revenue", 80, ptr(100.0))
	f.addWidget(t, d.ID.Hex(), widget.TypeGauge, k.ID.Hex())

	stored, _ := f.svc.Load(context.Background(), d.ID.Hex())
	slots := f.svc.Render(context.Background(), stored, models.Period30d, RenderOptions{HideTarget: true})
	require.Len(t, slots, 1)

	raw, err := json.Marshal(slots[0].View)
	require.NoError(t, err)
	var keys map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &keys))
	assert.NotContains(t, keys, "targetValue")
	assert.NotContains(t, keys, "progress")
	assert.Equal(t, "none", keys["tier"])
}

func TestKpiHistoryRequiresBoundKpi(t *testing.T) {
	f := newFixture()
	d := f.dashboard(t)
	bound := f.kpis.add("Revenue", 80, nil)
	unbound := f.kpis.add("Cost", 20, nil)
	f.addWidget(t, d.ID.Hex(), widget.TypeLine, bound.ID.Hex())

	viewer := primitive.NewObjectID()
	f.access.grant(d.ID, viewer, access.PermissionView)
	ctx := as(viewer, models.RoleViewer)

	h, err := f.svc.KpiHistory(ctx, d.ID.Hex(), bound.ID.Hex(), models.Period7d)
	require.NoError(t, err)
	assert.Equal(t, models.Period7d, h.Period)

	_, err = f.svc.KpiHistory(ctx, d.ID.Hex(), unbound.ID.Hex(), models.Period7d)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.svc.KpiHistory(as(primitive.NewObjectID(), models.RoleViewer), d.ID.Hex(), bound.ID.Hex(), models.Period7d)
	assert.True(t, apperr.Is(err, apperr.KindPermission))
}

func TestDeleteDashboardCascades(t *testing.T) {
	f := newFixture()
	d := f.dashboard(t)
	f.access.grant(d.ID, primitive.NewObjectID(), access.PermissionView)

	require.NoError(t, f.svc.DeleteDashboard(f.ctx, d.ID.Hex()))

	_, err := f.svc.GetDashboard(f.ctx, d.ID.Hex())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	require.Len(t, f.access.removed, 1)
	assert.Equal(t, d.ID, f.access.removed[0].ID)
	assert.Equal(t, []primitive.ObjectID{d.ID}, f.links.deleted)
}
