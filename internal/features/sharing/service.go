package sharing

import (
	"context"
	"strings"
	"time"

	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"
	"go-kpi/internal/config"
	"go-kpi/internal/features/access"
	"go-kpi/internal/features/audit"
	"go-kpi/internal/features/dashboard"
	"go-kpi/internal/features/kpi"
	"go-kpi/internal/metrics"
	"go-kpi/pkg/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DashboardSource is what sharing needs from the dashboard service
type DashboardSource interface {
	Resource(ctx context.Context, id string) (access.Resource, error)
	Load(ctx context.Context, id string) (*dashboard.Dashboard, error)
	Render(ctx context.Context, d *dashboard.Dashboard, period models.Period, opts dashboard.RenderOptions) []dashboard.WidgetData
}

// KpiSource is what sharing needs from the KPI service
type KpiSource interface {
	Resource(ctx context.Context, id string) (access.Resource, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*kpi.Kpi, error)
	HistoryFor(ctx context.Context, k *kpi.Kpi, period models.Period) (*kpi.History, error)
}

type ShareService interface {
	Create(ctx context.Context, req CreateRequest) (*ShareLinkView, error)
	List(ctx context.Context, req ListRequest) ([]ShareLinkView, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*ShareLinkView, error)
	Delete(ctx context.Context, id string) error
	Access(ctx context.Context, token string, period models.Period) (*SharedResource, error)
}

type ShareServiceImpl struct {
	Repo          ShareLinkRepository
	Dashboards    DashboardSource
	Kpis          KpiSource
	AccessService access.AccessService
	AuditService  audit.AuditService
	Logger        *zap.Logger
	BaseURL       string

	now      func() time.Time
	newToken func() (string, error)
}

func NewShareService(
	repo ShareLinkRepository,
	dashboards DashboardSource,
	kpis KpiSource,
	accessService access.AccessService,
	auditService audit.AuditService,
	logger *zap.Logger,
	cfg *config.Config,
) ShareService {
	return &ShareServiceImpl{
		Repo:          repo,
		Dashboards:    dashboards,
		Kpis:          kpis,
		AccessService: accessService,
		AuditService:  auditService,
		Logger:        logger,
		BaseURL:       strings.TrimRight(cfg.PublicBaseURL, "/"),
		now:           time.Now,
		newToken:      utils.NewShareToken,
	}
}

func (s *ShareServiceImpl) view(link *ShareLink) ShareLinkView {
	return ShareLinkView{
		ShareLink: *link,
		State:     link.State(s.now()),
		URL:       s.BaseURL + "/shared/" + link.Token,
	}
}

func (s *ShareServiceImpl) resource(ctx context.Context, rt access.ResourceType, id string) (access.Resource, error) {
	switch rt {
	case access.ResourceDashboard:
		return s.Dashboards.Resource(ctx, id)
	case access.ResourceKpi:
		return s.Kpis.Resource(ctx, id)
	default:
		return access.Resource{}, apperr.Validation("resourceType", "resourceType must be dashboard or kpi")
	}
}

// authorizeShare requires canShare on the resource behind rt/id
func (s *ShareServiceImpl) authorizeShare(ctx context.Context, rt access.ResourceType, id string) (access.Resource, error) {
	res, err := s.resource(ctx, rt, id)
	if err != nil {
		return res, err
	}
	_, err = s.AccessService.Authorize(ctx, res, access.RequesterFromContext(ctx), access.NeedShare)
	return res, err
}

func (s *ShareServiceImpl) Create(ctx context.Context, req CreateRequest) (*ShareLinkView, error) {
	res, err := s.authorizeShare(ctx, req.ResourceType, req.ResourceID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expiresAt, err := ResolveExpiry(req.ExpiresIn, now)
	if err != nil {
		return nil, err
	}
	token, err := s.newToken()
	if err != nil {
		return nil, err
	}
	createdBy, _ := primitive.ObjectIDFromHex(access.RequesterFromContext(ctx).UserID)

	link := &ShareLink{
		Token:        token,
		ResourceType: res.Type,
		ResourceID:   res.ID,
		CreatedBy:    createdBy,
		ShowTarget:   req.ShowTarget == nil || *req.ShowTarget,
		Active:       true,
		ExpiresAt:    expiresAt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Repo.Create(ctx, link); err != nil {
		return nil, err
	}

	_ = s.AuditService.LogChange(ctx, models.AuditActionShare, "share_links", link.ID.Hex(), map[string]models.Change{
		"resource":   {New: string(res.Type) + ":" + res.ID.Hex()},
		"showTarget": {New: link.ShowTarget},
		"expiresAt":  {New: link.ExpiresAt},
	})

	view := s.view(link)
	return &view, nil
}

// List returns the links of one resource when resourceId is given, otherwise the
// links the caller created. Admins listing without a resource see every link.
func (s *ShareServiceImpl) List(ctx context.Context, req ListRequest) ([]ShareLinkView, error) {
	requester := access.RequesterFromContext(ctx)
	if requester.UserID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}

	filter := ListFilter{}
	if req.ResourceID != "" {
		res, err := s.authorizeShare(ctx, req.ResourceType, req.ResourceID)
		if err != nil {
			return nil, err
		}
		filter.ResourceType = res.Type
		filter.ResourceID = &res.ID
	} else {
		filter.ResourceType = req.ResourceType
		if !models.HasMinimumRole(requester.Role, models.RoleAdmin) {
			createdBy, err := primitive.ObjectIDFromHex(requester.UserID)
			if err != nil {
				return []ShareLinkView{}, nil
			}
			filter.CreatedBy = &createdBy
		}
	}

	links, err := s.Repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]ShareLinkView, 0, len(links))
	for i := range links {
		views = append(views, s.view(&links[i]))
	}
	return views, nil
}

func (s *ShareServiceImpl) managed(ctx context.Context, id string) (*ShareLink, error) {
	link, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizeShare(ctx, link.ResourceType, link.ResourceID.Hex()); err != nil {
		return nil, err
	}
	return link, nil
}

// Update toggles a link, changes target visibility or resets its expiry. Expired
// links cannot be revived; the owner mints a new link instead.
func (s *ShareServiceImpl) Update(ctx context.Context, id string, req UpdateRequest) (*ShareLinkView, error) {
	link, err := s.managed(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	old := *link
	if link.State(now) == StateExpired && (req.Active != nil || req.ExpiresIn != nil) {
		return nil, apperr.Validation("expiresIn", "expired links cannot be reactivated")
	}

	if req.Active != nil {
		link.Active = *req.Active
	}
	if req.ShowTarget != nil {
		link.ShowTarget = *req.ShowTarget
	}
	if req.ExpiresIn != nil {
		if link.ExpiresAt, err = ResolveExpiry(*req.ExpiresIn, now); err != nil {
			return nil, err
		}
	}
	link.UpdatedAt = now

	if err := s.Repo.Update(ctx, link); err != nil {
		return nil, err
	}

	_ = s.AuditService.LogChange(ctx, models.AuditActionShare, "share_links", id, map[string]models.Change{
		"active":     {Old: old.Active, New: link.Active},
		"showTarget": {Old: old.ShowTarget, New: link.ShowTarget},
		"expiresAt":  {Old: old.ExpiresAt, New: link.ExpiresAt},
	})

	view := s.view(link)
	return &view, nil
}

func (s *ShareServiceImpl) Delete(ctx context.Context, id string) error {
	link, err := s.managed(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, link.ID); err != nil {
		return err
	}

	_ = s.AuditService.LogChange(ctx, models.AuditActionDelete, "share_links", id, map[string]models.Change{
		"link": {Old: link, New: "DELETED"},
	})
	return nil
}

// Access serves a share token anonymously. Only an accessible link whose resource
// still exists is counted.
func (s *ShareServiceImpl) Access(ctx context.Context, token string, period models.Period) (*SharedResource, error) {
	link, err := s.Repo.FindByToken(ctx, token)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			metrics.RecordShareAccess("unknown", apperr.CodeShareNotFound)
			return nil, apperr.ShareLink(apperr.CodeShareNotFound)
		}
		return nil, err
	}

	now := s.now().UTC()
	if err := link.State(now).Err(); err != nil {
		e, _ := apperr.As(err)
		metrics.RecordShareAccess(string(link.ResourceType), e.Code)
		return nil, err
	}

	var shared *SharedResource
	switch link.ResourceType {
	case access.ResourceDashboard:
		shared, err = s.sharedDashboard(ctx, link, period)
	case access.ResourceKpi:
		shared, err = s.sharedKpi(ctx, link, period)
	default:
		err = apperr.NotFound("share resource")
	}
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			metrics.RecordShareAccess(string(link.ResourceType), apperr.CodeShareNotFound)
			return nil, apperr.ShareLink(apperr.CodeShareNotFound)
		}
		return nil, err
	}

	if err := s.Repo.RecordAccess(ctx, link.ID, now); err != nil {
		s.Logger.Warn("Failed to record share link access", zap.String("link_id", link.ID.Hex()), zap.Error(err))
	}
	metrics.RecordShareAccess(string(link.ResourceType), "ok")
	s.Logger.Info("Share link accessed",
		zap.String("link_id", link.ID.Hex()),
		zap.String("resource_type", string(link.ResourceType)),
		zap.String("resource_id", link.ResourceID.Hex()),
	)
	return shared, nil
}

func (s *ShareServiceImpl) sharedDashboard(ctx context.Context, link *ShareLink, period models.Period) (*SharedResource, error) {
	d, err := s.Dashboards.Load(ctx, link.ResourceID.Hex())
	if err != nil {
		return nil, err
	}

	slots := s.Dashboards.Render(ctx, d, period, dashboard.RenderOptions{HideTarget: !link.ShowTarget})
	widgets := make([]PublicWidget, 0, len(slots))
	for i, slot := range slots {
		pw := PublicWidget{ID: slot.WidgetID, Type: slot.Type, View: slot.View, Error: slot.Error}
		if i < len(d.Widgets) && d.Widgets[i].ID == slot.WidgetID {
			pw.Title = d.Widgets[i].Title
			pw.Position = d.Widgets[i].Position
		}
		if slot.KpiData != nil {
			pw.Kpi = ProjectKpi(slot.KpiData.Kpi, link.ShowTarget)
			pw.History = slot.KpiData.History
		}
		widgets = append(widgets, pw)
	}

	return &SharedResource{
		Type: access.ResourceDashboard,
		Dashboard: &PublicDashboard{
			ID:              d.ID,
			Name:            d.Name,
			Description:     d.Description,
			RefreshInterval: d.RefreshInterval,
		},
		Widgets:    widgets,
		Period:     period,
		ShowTarget: link.ShowTarget,
		ExpiresAt:  link.ExpiresAt,
	}, nil
}

func (s *ShareServiceImpl) sharedKpi(ctx context.Context, link *ShareLink, period models.Period) (*SharedResource, error) {
	id := link.ResourceID.Hex()
	found, err := s.Kpis.FindByIDs(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	k, ok := found[id]
	if !ok {
		return nil, apperr.NotFound("kpi")
	}

	history, err := s.Kpis.HistoryFor(ctx, k, period)
	if err != nil {
		s.Logger.Warn("Failed to load shared KPI history", zap.String("kpi_id", id), zap.Error(err))
		history = nil
	}

	view := kpi.NewKpiView(k, nil)
	return &SharedResource{
		Type:       access.ResourceKpi,
		Kpi:        ProjectKpi(&view, link.ShowTarget),
		History:    history,
		Period:     period,
		ShowTarget: link.ShowTarget,
		ExpiresAt:  link.ExpiresAt,
	}, nil
}

// ProjectKpi strips owner, formula and sources, and every target-derived key when
// showTarget is false.
func ProjectKpi(v *kpi.KpiView, showTarget bool) *PublicKpi {
	if v == nil {
		return nil
	}
	p := &PublicKpi{
		ID:               v.ID,
		Name:             v.Name,
		Description:      v.Description,
		Unit:             v.Unit,
		Format:           v.Format,
		CurrentValue:     v.CurrentValue,
		CalculationError: v.CalculationError,
		LastCalculated:   v.LastCalculated,
	}
	if showTarget {
		p.TargetValue = v.TargetValue
		p.TargetDirection = v.TargetDirection
		p.TargetPeriod = v.TargetPeriod
		p.Progress = v.Progress
		p.DisplayProgress = v.DisplayProgress
		p.OnTrack = v.OnTrack
	}
	return p
}
