package sharing

import (
	"time"

	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"
	"go-kpi/internal/features/access"
	"go-kpi/internal/features/dashboard"
	"go-kpi/internal/features/kpi"
	"go-kpi/internal/features/widget"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ShareLink grants anonymous read-only access to one dashboard or KPI
type ShareLink struct {
	ID             primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	Token          string              `json:"token" bson:"token"`
	ResourceType   access.ResourceType `json:"resourceType" bson:"resource_type"`
	ResourceID     primitive.ObjectID  `json:"resourceId" bson:"resource_id"`
	CreatedBy      primitive.ObjectID  `json:"createdBy" bson:"created_by"`
	ShowTarget     bool                `json:"showTarget" bson:"show_target"`
	Active         bool                `json:"active" bson:"active"`
	ExpiresAt      *time.Time          `json:"expiresAt" bson:"expires_at"`
	AccessCount    int64               `json:"accessCount" bson:"access_count"`
	LastAccessedAt *time.Time          `json:"lastAccessedAt" bson:"last_accessed_at,omitempty"`
	CreatedAt      time.Time           `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time           `json:"updatedAt" bson:"updated_at"`
}

type LinkState string

const (
	StateAccessible LinkState = "ACCESSIBLE"
	StateInactive   LinkState = "INACTIVE"
	StateExpired    LinkState = "EXPIRED"
)

// State reports whether the link can be used at now. An inactive link reports
// INACTIVE even when it has also expired.
func (l *ShareLink) State(now time.Time) LinkState {
	if !l.Active {
		return StateInactive
	}
	if l.ExpiresAt != nil && !l.ExpiresAt.After(now) {
		return StateExpired
	}
	return StateAccessible
}

// Err is the public error for a link in state s, nil when accessible
func (s LinkState) Err() error {
	switch s {
	case StateInactive:
		return apperr.ShareLink(apperr.CodeShareInactive)
	case StateExpired:
		return apperr.ShareLink(apperr.CodeShareExpired)
	}
	return nil
}

const ExpiresNever = "never"

var expiryPresets = map[string]time.Duration{
	"1h":  time.Hour,
	"24h": 24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
}

// ResolveExpiry resolves an expiresIn preset against now; never and "" yield nil
func ResolveExpiry(preset string, now time.Time) (*time.Time, error) {
	if preset == "" || preset == ExpiresNever {
		return nil, nil
	}
	d, ok := expiryPresets[preset]
	if !ok {
		return nil, apperr.Validation("expiresIn", "expiresIn must be one of 1h, 24h, 7d, 30d, never")
	}
	at := now.Add(d).UTC()
	return &at, nil
}

type CreateRequest struct {
	ResourceType access.ResourceType `json:"resourceType"`
	ResourceID   string              `json:"resourceId"`
	ShowTarget   *bool               `json:"showTarget"`
	ExpiresIn    string              `json:"expiresIn"`
}

type UpdateRequest struct {
	Active     *bool   `json:"active"`
	ShowTarget *bool   `json:"showTarget"`
	ExpiresIn  *string `json:"expiresIn"`
}

type ListRequest struct {
	ResourceType access.ResourceType `query:"resourceType"`
	ResourceID   string              `query:"resourceId"`
}

// ShareLinkView is a link as its manager sees it
type ShareLinkView struct {
	ShareLink
	State LinkState `json:"state"`
	URL   string    `json:"url"`
}

// PublicKpi is the anonymous projection of a KPI. Target keys are absent, not null,
// when the link hides targets.
type PublicKpi struct {
	ID               primitive.ObjectID   `json:"id"`
	Name             string               `json:"name"`
	Description      string               `json:"description,omitempty"`
	Unit             string               `json:"unit,omitempty"`
	Format           kpi.Format           `json:"format"`
	CurrentValue     *float64             `json:"currentValue"`
	CalculationError *string              `json:"calculationError,omitempty"`
	LastCalculated   *time.Time           `json:"lastCalculated,omitempty"`
	TargetValue      *float64             `json:"targetValue,omitempty"`
	TargetDirection  *kpi.TargetDirection `json:"targetDirection,omitempty"`
	TargetPeriod     *string              `json:"targetPeriod,omitempty"`
	Progress         *float64             `json:"progress,omitempty"`
	DisplayProgress  *float64             `json:"displayProgress,omitempty"`
	OnTrack          *bool                `json:"onTrack,omitempty"`
}

type PublicWidget struct {
	ID       string            `json:"id"`
	Type     widget.WidgetType `json:"type"`
	Title    string            `json:"title,omitempty"`
	Position widget.Position   `json:"position"`
	Kpi      *PublicKpi        `json:"kpi,omitempty"`
	History  *kpi.History      `json:"history,omitempty"`
	View     widget.View       `json:"view,omitempty"`
	Error    string            `json:"error,omitempty"`
}

type PublicDashboard struct {
	ID              primitive.ObjectID        `json:"id"`
	Name            string                    `json:"name"`
	Description     string                    `json:"description,omitempty"`
	RefreshInterval dashboard.RefreshInterval `json:"refreshInterval"`
}

// SharedResource is the body of the public share endpoint
type SharedResource struct {
	Type       access.ResourceType `json:"type"`
	Dashboard  *PublicDashboard    `json:"dashboard,omitempty"`
	Widgets    []PublicWidget      `json:"widgets,omitempty"`
	Kpi        *PublicKpi          `json:"kpi,omitempty"`
	History    *kpi.History        `json:"history,omitempty"`
	Period     models.Period       `json:"period"`
	ShowTarget bool                `json:"showTarget"`
	ExpiresAt  *time.Time          `json:"expiresAt"`
}
