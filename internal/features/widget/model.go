package widget

import (
	"net/url"
	"strings"

	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WidgetType string

const (
	TypeNumber WidgetType = "number"
	TypeStat   WidgetType = "stat"
	TypeGauge  WidgetType = "gauge"
	TypeLine   WidgetType = "line"
	TypeBar    WidgetType = "bar"
	TypeArea   WidgetType = "area"
	TypeImage  WidgetType = "image"
)

var widgetTypes = map[WidgetType]bool{
	TypeNumber: true,
	TypeStat:   true,
	TypeGauge:  true,
	TypeLine:   true,
	TypeBar:    true,
	TypeArea:   true,
	TypeImage:  true,
}

func (t WidgetType) Valid() bool {
	return widgetTypes[t]
}

// NeedsHistory reports whether rendering t requires the KPI's history series
func (t WidgetType) NeedsHistory() bool {
	switch t {
	case TypeStat, TypeLine, TypeBar, TypeArea:
		return true
	}
	return false
}

// Position is in grid units
type Position struct {
	X int `json:"x" bson:"x"`
	Y int `json:"y" bson:"y"`
	W int `json:"w" bson:"w"`
	H int `json:"h" bson:"h"`
}

type WidgetConfig struct {
	Format     string          `json:"format,omitempty" bson:"format,omitempty"`
	ShowTarget *bool           `json:"showTarget,omitempty" bson:"show_target,omitempty"`
	Period     models.Period   `json:"period,omitempty" bson:"period,omitempty"`
	Interval   models.Interval `json:"interval,omitempty" bson:"interval,omitempty"`
	ImageURL   string          `json:"imageUrl,omitempty" bson:"image_url,omitempty"`
	AltText    string          `json:"altText,omitempty" bson:"alt_text,omitempty"`
	Fit        string          `json:"fit,omitempty" bson:"fit,omitempty"`
}

// TargetVisible defaults to true when showTarget is unset
func (c WidgetConfig) TargetVisible() bool {
	return c.ShowTarget == nil || *c.ShowTarget
}

// Widget is embedded in its dashboard document; ids are UUIDs unique within the dashboard
type Widget struct {
	ID       string              `json:"id" bson:"id"`
	Type     WidgetType          `json:"type" bson:"type"`
	Title    string              `json:"title,omitempty" bson:"title,omitempty"`
	KpiID    *primitive.ObjectID `json:"kpiId" bson:"kpi_id,omitempty"`
	Config   WidgetConfig        `json:"config" bson:"config"`
	Position Position            `json:"position" bson:"position"`
}

type WidgetRequest struct {
	Type     *WidgetType   `json:"type"`
	Title    *string       `json:"title"`
	KpiID    *string       `json:"kpiId"`
	Config   *WidgetConfig `json:"config"`
	Position *Position     `json:"position"`
}

// New builds a widget from req with a fresh id and validates it
func New(req WidgetRequest) (*Widget, error) {
	w := &Widget{ID: uuid.NewString(), Position: Position{W: 4, H: 3}}
	if err := w.Apply(req); err != nil {
		return nil, err
	}
	return w, nil
}

// Apply merges the set fields of req into w and validates the result.
// An empty kpiId string unbinds the KPI.
func (w *Widget) Apply(req WidgetRequest) error {
	if req.Type != nil {
		w.Type = *req.Type
	}
	if req.Title != nil {
		w.Title = strings.TrimSpace(*req.Title)
	}
	if req.KpiID != nil {
		if *req.KpiID == "" {
			w.KpiID = nil
		} else {
			oid, err := primitive.ObjectIDFromHex(*req.KpiID)
			if err != nil {
				return apperr.Validation("kpiId", "kpiId is not a valid id")
			}
			w.KpiID = &oid
		}
	}
	if req.Config != nil {
		w.Config = *req.Config
	}
	if req.Position != nil {
		w.Position = *req.Position
	}
	return w.Validate()
}

func (w *Widget) Validate() error {
	if !w.Type.Valid() {
		return apperr.Validation("type", "unknown widget type %q", w.Type)
	}

	if w.Type == TypeImage {
		if w.Config.ImageURL == "" {
			return apperr.Validation("config.imageUrl", "image widgets require an imageUrl")
		}
		u, err := url.Parse(w.Config.ImageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return apperr.Validation("config.imageUrl", "imageUrl must be an absolute http(s) URL")
		}
		if w.KpiID != nil {
			return apperr.Validation("kpiId", "image widgets cannot be bound to a KPI")
		}
	} else if w.KpiID == nil {
		return apperr.Validation("kpiId", "%s widgets require a kpiId", w.Type)
	}

	if w.Config.Period != "" {
		if _, err := models.ParsePeriod(string(w.Config.Period)); err != nil {
			return apperr.Validation("config.period", "%s", err.Error())
		}
	}
	switch w.Config.Interval {
	case "", models.IntervalHourly, models.IntervalDaily, models.IntervalWeekly, models.IntervalMonthly:
	default:
		return apperr.Validation("config.interval", "interval must be hourly, daily, weekly or monthly")
	}
	switch w.Config.Fit {
	case "", "contain", "cover":
	default:
		return apperr.Validation("config.fit", "fit must be contain or cover")
	}

	return w.Position.Validate()
}

func (p Position) Validate() error {
	if p.X < 0 || p.Y < 0 {
		return apperr.Validation("position", "position must not be negative")
	}
	if p.W < 1 || p.H < 1 {
		return apperr.Validation("position", "width and height must be at least 1")
	}
	return nil
}
