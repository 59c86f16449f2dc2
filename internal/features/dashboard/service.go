package dashboard

import (
	"context"
	"strings"
	"time"

	"go-kpi/internal/common/apperr"
	common_models "go-kpi/internal/common/models"
	"go-kpi/internal/features/access"
	"go-kpi/internal/features/audit"
	"go-kpi/internal/features/kpi"
	"go-kpi/internal/features/widget"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// KpiReader is the part of the KPI service dashboards render from
type KpiReader interface {
	Get(ctx context.Context, id string) (*kpi.KpiView, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*kpi.Kpi, error)
	HistoryFor(ctx context.Context, k *kpi.Kpi, period common_models.Period) (*kpi.History, error)
}

type DashboardService interface {
	ListDashboards(ctx context.Context) ([]DashboardView, error)
	GetDashboard(ctx context.Context, id string) (*DashboardView, error)
	CreateDashboard(ctx context.Context, req DashboardRequest) (*DashboardView, error)
	UpdateDashboard(ctx context.Context, id string, req DashboardRequest) (*DashboardView, error)
	DeleteDashboard(ctx context.Context, id string) error

	AddWidget(ctx context.Context, id string, req widget.WidgetRequest) (*widget.Widget, error)
	UpdateWidget(ctx context.Context, id, widgetID string, req widget.WidgetRequest) (*widget.Widget, error)
	DeleteWidget(ctx context.Context, id, widgetID string) error
	UpdateLayout(ctx context.Context, id string, layout []LayoutItem) (*DashboardView, error)

	GetDashboardData(ctx context.Context, id string, period common_models.Period) (*DashboardData, error)
	KpiHistory(ctx context.Context, id, kpiID string, period common_models.Period) (*kpi.History, error)
	Resource(ctx context.Context, id string) (access.Resource, error)

	// Load and Render serve callers that authorized the dashboard by other means
	Load(ctx context.Context, id string) (*Dashboard, error)
	Render(ctx context.Context, d *Dashboard, period common_models.Period, opts RenderOptions) []WidgetData
}

type DashboardServiceImpl struct {
	DashboardRepo DashboardRepository
	Kpis          KpiReader
	Access        access.AccessService
	Links         access.LinkCleaner
	AuditService  audit.AuditService
	Logger        *zap.Logger

	now func() time.Time
}

func NewDashboardService(
	dashboardRepo DashboardRepository,
	kpis KpiReader,
	accessService access.AccessService,
	links access.LinkCleaner,
	auditService audit.AuditService,
	logger *zap.Logger,
) DashboardService {
	return &DashboardServiceImpl{
		DashboardRepo: dashboardRepo,
		Kpis:          kpis,
		Access:        accessService,
		Links:         links,
		AuditService:  auditService,
		Logger:        logger,
		now:           time.Now,
	}
}

func resourceOf(d *Dashboard) access.Resource {
	return access.Resource{Type: access.ResourceDashboard, ID: d.ID, OwnerID: d.OwnerID}
}

func (s *DashboardServiceImpl) Resource(ctx context.Context, id string) (access.Resource, error) {
	d, err := s.DashboardRepo.Get(ctx, id)
	if err != nil {
		return access.Resource{}, err
	}
	return resourceOf(d), nil
}

func (s *DashboardServiceImpl) Load(ctx context.Context, id string) (*Dashboard, error) {
	return s.DashboardRepo.Get(ctx, id)
}

func (s *DashboardServiceImpl) authorized(ctx context.Context, id string, need access.Need) (*Dashboard, access.AccessFlags, error) {
	d, err := s.DashboardRepo.Get(ctx, id)
	if err != nil {
		return nil, access.AccessFlags{}, err
	}
	flags, err := s.Access.Authorize(ctx, resourceOf(d), access.RequesterFromContext(ctx), need)
	if err != nil {
		return nil, flags, err
	}
	return d, flags, nil
}

func (s *DashboardServiceImpl) ListDashboards(ctx context.Context) ([]DashboardView, error) {
	requester := access.RequesterFromContext(ctx)
	if requester.UserID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}

	filter := ListFilter{}
	if !common_models.HasMinimumRole(requester.Role, common_models.RoleAdmin) {
		ownerID, err := primitive.ObjectIDFromHex(requester.UserID)
		if err != nil {
			return []DashboardView{}, nil
		}
		granted, err := s.Access.ResourceIDsFor(ctx, access.ResourceDashboard, requester.UserID)
		if err != nil {
			return nil, err
		}
		filter = ListFilter{OwnerID: &ownerID, IDs: granted}
	}

	dashboards, err := s.DashboardRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]DashboardView, 0, len(dashboards))
	for i := range dashboards {
		flags, err := s.Access.Flags(ctx, resourceOf(&dashboards[i]), requester)
		if err != nil {
			return nil, err
		}
		views = append(views, DashboardView{Dashboard: dashboards[i], Access: flags})
	}
	return views, nil
}

func (s *DashboardServiceImpl) GetDashboard(ctx context.Context, id string) (*DashboardView, error) {
	d, flags, err := s.authorized(ctx, id, access.NeedView)
	if err != nil {
		return nil, err
	}
	return &DashboardView{Dashboard: *d, Access: flags}, nil
}

func applyRequest(d *Dashboard, req DashboardRequest) error {
	if req.Name != nil {
		d.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		d.Description = strings.TrimSpace(*req.Description)
	}
	if req.RefreshInterval != nil {
		d.RefreshInterval = *req.RefreshInterval
	}
	if d.RefreshInterval == "" {
		d.RefreshInterval = RefreshOff
	}

	if d.Name == "" {
		return apperr.Validation("name", "name is required")
	}
	if !d.RefreshInterval.Valid() {
		return apperr.Validation("refreshInterval", "refreshInterval must be off, 30s, 1m, 5m or 15m")
	}
	return nil
}

func (s *DashboardServiceImpl) CreateDashboard(ctx context.Context, req DashboardRequest) (*DashboardView, error) {
	requester := access.RequesterFromContext(ctx)
	ownerID, err := primitive.ObjectIDFromHex(requester.UserID)
	if err != nil {
		return nil, apperr.Unauthorized("authentication required")
	}

	dashboard := &Dashboard{OwnerID: ownerID, Widgets: []widget.Widget{}}
	if err := applyRequest(dashboard, req); err != nil {
		return nil, err
	}

	if err := s.DashboardRepo.Create(ctx, dashboard); err != nil {
		return nil, err
	}
	_ = s.AuditService.LogChange(ctx, common_models.AuditActionCreate, "dashboards", dashboard.ID.Hex(), map[string]common_models.Change{
		"dashboard": {New: dashboard},
	})

	return &DashboardView{Dashboard: *dashboard, Access: access.DeriveAccess(requester, ownerID.Hex(), nil)}, nil
}

func (s *DashboardServiceImpl) UpdateDashboard(ctx context.Context, id string, req DashboardRequest) (*DashboardView, error) {
	existing, flags, err := s.authorized(ctx, id, access.NeedEdit)
	if err != nil {
		return nil, err
	}

	updated := *existing
	if err := applyRequest(&updated, req); err != nil {
		return nil, err
	}
	if err := s.DashboardRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionUpdate, "dashboards", id, map[string]common_models.Change{
		"name":             {Old: existing.Name, New: updated.Name},
		"refresh_interval": {Old: existing.RefreshInterval, New: updated.RefreshInterval},
	})
	return &DashboardView{Dashboard: updated, Access: flags}, nil
}

// DeleteDashboard removes the dashboard with its widgets, grants and share links
func (s *DashboardServiceImpl) DeleteDashboard(ctx context.Context, id string) error {
	existing, _, err := s.authorized(ctx, id, access.NeedManage)
	if err != nil {
		return err
	}

	if err := s.DashboardRepo.Delete(ctx, existing.ID); err != nil {
		return err
	}
	if err := s.Access.RemoveResource(ctx, resourceOf(existing)); err != nil {
		s.Logger.Warn("Failed to delete dashboard access entries", zap.String("dashboard_id", id), zap.Error(err))
	}
	if err := s.Links.DeleteByResource(ctx, access.ResourceDashboard, existing.ID); err != nil {
		s.Logger.Warn("Failed to delete dashboard share links", zap.String("dashboard_id", id), zap.Error(err))
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionDelete, "dashboards", id, map[string]common_models.Change{
		"dashboard": {Old: existing, New: "DELETED"},
	})
	return nil
}

// checkKpi requires the caller to be able to read a KPI before binding it to a widget
func (s *DashboardServiceImpl) checkKpi(ctx context.Context, w *widget.Widget) error {
	if w.KpiID == nil {
		return nil
	}
	if _, err := s.Kpis.Get(ctx, w.KpiID.Hex()); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.Validation("kpiId", "KPI not found")
		}
		return err
	}
	return nil
}

func (s *DashboardServiceImpl) AddWidget(ctx context.Context, id string, req widget.WidgetRequest) (*widget.Widget, error) {
	d, _, err := s.authorized(ctx, id, access.NeedEdit)
	if err != nil {
		return nil, err
	}

	w, err := widget.New(req)
	if err != nil {
		return nil, err
	}
	if err := s.checkKpi(ctx, w); err != nil {
		return nil, err
	}

	widgets := append(append([]widget.Widget{}, d.Widgets...), *w)
	if err := s.DashboardRepo.SaveWidgets(ctx, d.ID, widgets); err != nil {
		return nil, err
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionDashboard, "dashboards", id, map[string]common_models.Change{
		"widget": {New: w},
	})
	return w, nil
}

func (s *DashboardServiceImpl) UpdateWidget(ctx context.Context, id, widgetID string, req widget.WidgetRequest) (*widget.Widget, error) {
	d, _, err := s.authorized(ctx, id, access.NeedEdit)
	if err != nil {
		return nil, err
	}

	idx := d.widgetIndex(widgetID)
	if idx < 0 {
		return nil, apperr.NotFound("widget")
	}

	old := d.Widgets[idx]
	w := old
	if err := w.Apply(req); err != nil {
		return nil, err
	}
	if req.KpiID != nil {
		if err := s.checkKpi(ctx, &w); err != nil {
			return nil, err
		}
	}

	d.Widgets[idx] = w
	if err := s.DashboardRepo.SaveWidgets(ctx, d.ID, d.Widgets); err != nil {
		return nil, err
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionDashboard, "dashboards", id, map[string]common_models.Change{
		"widget": {Old: old, New: w},
	})
	return &w, nil
}

func (s *DashboardServiceImpl) DeleteWidget(ctx context.Context, id, widgetID string) error {
	d, _, err := s.authorized(ctx, id, access.NeedEdit)
	if err != nil {
		return err
	}

	idx := d.widgetIndex(widgetID)
	if idx < 0 {
		return apperr.NotFound("widget")
	}
	removed := d.Widgets[idx]
	widgets := append(append([]widget.Widget{}, d.Widgets[:idx]...), d.Widgets[idx+1:]...)

	if err := s.DashboardRepo.SaveWidgets(ctx, d.ID, widgets); err != nil {
		return err
	}

	_ = s.AuditService.LogChange(ctx, common_models.AuditActionDashboard, "dashboards", id, map[string]common_models.Change{
		"widget": {Old: removed, New: nil},
	})
	return nil
}

// UpdateLayout applies positions to the listed widgets only. Absent widgets keep their
// position; unknown ids are ignored since another session may have deleted them.
func (s *DashboardServiceImpl) UpdateLayout(ctx context.Context, id string, layout []LayoutItem) (*DashboardView, error) {
	d, flags, err := s.authorized(ctx, id, access.NeedEdit)
	if err != nil {
		return nil, err
	}

	positions := make(map[string]widget.Position, len(layout))
	for _, item := range layout {
		pos := item.Position()
		if err := pos.Validate(); err != nil {
			return nil, err
		}
		idx := d.widgetIndex(item.ID)
		if idx < 0 {
			continue
		}
		positions[item.ID] = pos
		d.Widgets[idx].Position = pos
	}

	if err := s.DashboardRepo.UpdatePositions(ctx, d.ID, positions); err != nil {
		return nil, err
	}
	return &DashboardView{Dashboard: *d, Access: flags}, nil
}

func (s *DashboardServiceImpl) GetDashboardData(ctx context.Context, id string, period common_models.Period) (*DashboardData, error) {
	d, _, err := s.authorized(ctx, id, access.NeedView)
	if err != nil {
		return nil, err
	}

	return &DashboardData{
		DashboardID:     d.ID,
		Period:          period,
		RefreshInterval: d.RefreshInterval,
		Widgets:         s.Render(ctx, d, period, RenderOptions{}),
		GeneratedAt:     s.now().UTC(),
	}, nil
}

// Render resolves every widget's KPI data and view. Failures stay local to their widget.
func (s *DashboardServiceImpl) Render(ctx context.Context, d *Dashboard, period common_models.Period, opts RenderOptions) []WidgetData {
	var ids []string
	for _, w := range d.Widgets {
		if w.KpiID != nil {
			ids = append(ids, w.KpiID.Hex())
		}
	}

	kpis := map[string]*kpi.Kpi{}
	var lookupErr error
	if len(ids) > 0 {
		kpis, lookupErr = s.Kpis.FindByIDs(ctx, ids)
		if lookupErr != nil {
			s.Logger.Error("Failed to load dashboard KPIs", zap.String("dashboard_id", d.ID.Hex()), zap.Error(lookupErr))
		}
	}

	histories := map[historyKey]*kpi.History{}
	out := make([]WidgetData, 0, len(d.Widgets))

	for _, w := range d.Widgets {
		if opts.HideTarget {
			hidden := false
			w.Config.ShowTarget = &hidden
		}
		slot := WidgetData{WidgetID: w.ID, Type: w.Type, KpiID: w.KpiID}

		var data widget.KpiData
		if w.KpiID != nil {
			if lookupErr != nil {
				slot.Error = "failed to load KPI"
				out = append(out, slot)
				continue
			}
			k, ok := kpis[w.KpiID.Hex()]
			if !ok {
				slot.Error = widget.ErrKpiUnavailable.Error()
				out = append(out, slot)
				continue
			}

			view := kpi.NewKpiView(k, nil)
			data.Kpi = &view
			if k.CalculationError != nil {
				slot.Error = *k.CalculationError
			}

			if w.Type.NeedsHistory() {
				p := period
				if w.Config.Period != "" {
					p = w.Config.Period
				}
				key := historyKey{kpiID: k.ID.Hex(), period: p}
				h, ok := histories[key]
				if !ok {
					var err error
					h, err = s.Kpis.HistoryFor(ctx, k, p)
					if err != nil {
						s.Logger.Warn("Failed to load widget history", zap.String("widget_id", w.ID), zap.Error(err))
						slot.Error = "failed to load history"
						out = append(out, slot)
						continue
					}
					histories[key] = h
				}
				data.History = h
			}
			slot.KpiData = &data
		}

		rendered, err := widget.Render(w, data)
		if err != nil {
			slot.Error = err.Error()
		} else {
			slot.View = rendered
		}
		out = append(out, slot)
	}
	return out
}

// KpiHistory serves the history of a KPI through a dashboard the caller can view. The KPI
// must be bound to one of the dashboard's widgets.
func (s *DashboardServiceImpl) KpiHistory(ctx context.Context, id, kpiID string, period common_models.Period) (*kpi.History, error) {
	d, _, err := s.authorized(ctx, id, access.NeedView)
	if err != nil {
		return nil, err
	}

	bound := false
	for _, w := range d.Widgets {
		if w.KpiID != nil && w.KpiID.Hex() == kpiID {
			bound = true
			break
		}
	}
	if !bound {
		return nil, apperr.NotFound("kpi")
	}

	kpis, err := s.Kpis.FindByIDs(ctx, []string{kpiID})
	if err != nil {
		return nil, err
	}
	k, ok := kpis[kpiID]
	if !ok {
		return nil, apperr.NotFound("kpi")
	}
	return s.Kpis.HistoryFor(ctx, k, period)
}
