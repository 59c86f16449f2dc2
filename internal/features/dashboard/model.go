package dashboard

import (
	"time"

	"go-kpi/internal/common/models"
	"go-kpi/internal/features/access"
	"go-kpi/internal/features/widget"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RefreshInterval is how often viewers poll the dashboard's data
type RefreshInterval string

const (
	RefreshOff RefreshInterval = "off"
	Refresh30s RefreshInterval = "30s"
	Refresh1m  RefreshInterval = "1m"
	Refresh5m  RefreshInterval = "5m"
	Refresh15m RefreshInterval = "15m"
)

var refreshDurations = map[RefreshInterval]time.Duration{
	RefreshOff: 0,
	Refresh30s: 30 * time.Second,
	Refresh1m:  time.Minute,
	Refresh5m:  5 * time.Minute,
	Refresh15m: 15 * time.Minute,
}

func (r RefreshInterval) Valid() bool {
	_, ok := refreshDurations[r]
	return ok
}

// Duration is zero for off
func (r RefreshInterval) Duration() time.Duration {
	return refreshDurations[r]
}

type Dashboard struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	OwnerID         primitive.ObjectID `json:"ownerId" bson:"owner_id"`
	Name            string             `json:"name" bson:"name"`
	Description     string             `json:"description,omitempty" bson:"description,omitempty"`
	Widgets         []widget.Widget    `json:"widgets" bson:"widgets"`
	RefreshInterval RefreshInterval    `json:"refreshInterval" bson:"refresh_interval"`
	CreatedAt       time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updatedAt" bson:"updated_at"`
}

func (d *Dashboard) widgetIndex(id string) int {
	for i := range d.Widgets {
		if d.Widgets[i].ID == id {
			return i
		}
	}
	return -1
}

// DashboardView carries the caller's derived access flags
type DashboardView struct {
	Dashboard
	Access access.AccessFlags `json:"access"`
}

type DashboardRequest struct {
	Name            *string          `json:"name"`
	Description     *string          `json:"description"`
	RefreshInterval *RefreshInterval `json:"refreshInterval"`
}

// LayoutItem is one widget's new position
type LayoutItem struct {
	ID string `json:"id"`
	X  int    `json:"x"`
	Y  int    `json:"y"`
	W  int    `json:"w"`
	H  int    `json:"h"`
}

func (l LayoutItem) Position() widget.Position {
	return widget.Position{X: l.X, Y: l.Y, W: l.W, H: l.H}
}

type LayoutRequest struct {
	Layout []LayoutItem `json:"layout"`
}

// WidgetData is one widget's slot in a dashboard data response. A failing widget
// carries Error and never fails the whole response.
type WidgetData struct {
	WidgetID string              `json:"widgetId"`
	Type     widget.WidgetType   `json:"type"`
	KpiID    *primitive.ObjectID `json:"kpiId,omitempty"`
	KpiData  *widget.KpiData     `json:"kpiData,omitempty"`
	View     widget.View         `json:"view,omitempty"`
	Error    string              `json:"error,omitempty"`
}

type DashboardData struct {
	DashboardID     primitive.ObjectID `json:"dashboardId"`
	Period          models.Period      `json:"period"`
	RefreshInterval RefreshInterval    `json:"refreshInterval"`
	Widgets         []WidgetData       `json:"widgets"`
	GeneratedAt     time.Time          `json:"generatedAt"`
}

// RenderOptions adjusts rendering for public consumers
type RenderOptions struct {
	HideTarget bool
}

// historyKey identifies one (kpi, period) history fetch within a render
type historyKey struct {
	kpiID  string
	period models.Period
}
