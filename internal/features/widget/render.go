package widget

import (
	"errors"
	"time"

	"go-kpi/internal/common/models"
	"go-kpi/internal/features/kpi"
)

// ErrKpiUnavailable is reported for KPI widgets whose KPI is missing or not readable
var ErrKpiUnavailable = errors.New("KPI unavailable")

type Tier string

const (
	TierSuccess Tier = "success"
	TierPrimary Tier = "primary"
	TierWarning Tier = "warning"
	TierDanger  Tier = "danger"
	TierNone    Tier = "none"
)

// GaugeTier buckets a progress percentage for at-a-glance status
func GaugeTier(progress *float64) Tier {
	switch {
	case progress == nil:
		return TierNone
	case *progress >= 100:
		return TierSuccess
	case *progress >= 75:
		return TierPrimary
	case *progress >= 50:
		return TierWarning
	default:
		return TierDanger
	}
}

// KpiData is what a widget renders from. History is required for stat and chart widgets.
type KpiData struct {
	Kpi     *kpi.KpiView `json:"kpi,omitempty"`
	History *kpi.History `json:"history,omitempty"`
}

// View is a rendered widget. The set of implementations is closed.
type View interface {
	view()
}

type target struct {
	TargetValue     *float64             `json:"targetValue,omitempty"`
	TargetDirection *kpi.TargetDirection `json:"targetDirection,omitempty"`
	TargetPeriod    *string              `json:"targetPeriod,omitempty"`
	Progress        *float64             `json:"progress,omitempty"`
	DisplayProgress *float64             `json:"displayProgress,omitempty"`
	OnTrack         *bool                `json:"onTrack,omitempty"`
}

type NumberView struct {
	Kind   WidgetType `json:"kind"`
	Value  *float64   `json:"value"`
	Format string     `json:"format"`
	Unit   string     `json:"unit,omitempty"`
	Error  string     `json:"calculationError,omitempty"`
	target
}

type StatView struct {
	Kind       WidgetType     `json:"kind"`
	Value      *float64       `json:"value"`
	Format     string         `json:"format"`
	Unit       string         `json:"unit,omitempty"`
	Period     models.Period  `json:"period"`
	Comparison kpi.Comparison `json:"comparison"`
}

type GaugeView struct {
	Kind   WidgetType `json:"kind"`
	Value  *float64   `json:"value"`
	Format string     `json:"format"`
	Unit   string     `json:"unit,omitempty"`
	Tier   Tier       `json:"tier"`
	target
}

type ChartPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Label     string    `json:"label"`
	Value     float64   `json:"value"`
}

type ChartView struct {
	Kind     WidgetType      `json:"kind"`
	Format   string          `json:"format"`
	Unit     string          `json:"unit,omitempty"`
	Period   models.Period   `json:"period"`
	Interval models.Interval `json:"interval"`
	Series   []ChartPoint    `json:"series"`
}

type ImageView struct {
	Kind    WidgetType `json:"kind"`
	URL     string     `json:"url"`
	AltText string     `json:"altText,omitempty"`
	Fit     string     `json:"fit"`
}

func (NumberView) view() {}
func (StatView) view()   {}
func (GaugeView) view()  {}
func (ChartView) view()  {}
func (ImageView) view()  {}

// Render maps a widget and its KPI data to a view. Unrecognized types render as number.
func Render(w Widget, data KpiData) (View, error) {
	if w.Type == TypeImage {
		fit := w.Config.Fit
		if fit == "" {
			fit = "contain"
		}
		return ImageView{Kind: TypeImage, URL: w.Config.ImageURL, AltText: w.Config.AltText, Fit: fit}, nil
	}

	if data.Kpi == nil {
		return nil, ErrKpiUnavailable
	}
	k := data.Kpi
	format := w.Config.Format
	if format == "" {
		format = string(k.Format)
	}

	switch w.Type {
	case TypeStat:
		if data.History == nil {
			return nil, errors.New("stat widget requires history")
		}
		return StatView{
			Kind:       TypeStat,
			Value:      k.CurrentValue,
			Format:     format,
			Unit:       k.Unit,
			Period:     data.History.Period,
			Comparison: data.History.Comparison,
		}, nil

	case TypeGauge:
		tier := TierNone
		if w.Config.TargetVisible() {
			tier = GaugeTier(k.Progress)
		}
		return GaugeView{
			Kind:   TypeGauge,
			Value:  k.CurrentValue,
			Format: format,
			Unit:   k.Unit,
			Tier:   tier,
			target: targetOf(k, w.Config.TargetVisible()),
		}, nil

	case TypeLine, TypeBar, TypeArea:
		if data.History == nil {
			return nil, errors.New("chart widget requires history")
		}
		interval := w.Config.Interval
		if interval == "" {
			interval = data.History.Interval
		}
		series := make([]ChartPoint, len(data.History.Data))
		for i, p := range data.History.Data {
			series[i] = ChartPoint{Timestamp: p.Timestamp, Label: Label(p.Timestamp, interval), Value: p.Value}
		}
		return ChartView{
			Kind:     w.Type,
			Format:   format,
			Unit:     k.Unit,
			Period:   data.History.Period,
			Interval: interval,
			Series:   series,
		}, nil

	default:
		view := NumberView{
			Kind:   TypeNumber,
			Value:  k.CurrentValue,
			Format: format,
			Unit:   k.Unit,
			target: targetOf(k, w.Config.TargetVisible()),
		}
		if k.CalculationError != nil {
			view.Error = *k.CalculationError
		}
		return view, nil
	}
}

func targetOf(k *kpi.KpiView, visible bool) target {
	if !visible || k.TargetValue == nil {
		return target{}
	}
	return target{
		TargetValue:     k.TargetValue,
		TargetDirection: k.TargetDirection,
		TargetPeriod:    k.TargetPeriod,
		Progress:        k.Progress,
		DisplayProgress: k.DisplayProgress,
		OnTrack:         k.OnTrack,
	}
}

var labelLayouts = map[models.Interval]string{
	models.IntervalHourly:  "15:04",
	models.IntervalDaily:   "Jan 2",
	models.IntervalWeekly:  "Jan 2",
	models.IntervalMonthly: "Jan 2006",
}

// Label formats a timestamp for a chart axis; interval only changes the label, never the data
func Label(ts time.Time, interval models.Interval) string {
	layout, ok := labelLayouts[interval]
	if !ok {
		layout = labelLayouts[models.IntervalDaily]
	}
	return ts.UTC().Format(layout)
}
