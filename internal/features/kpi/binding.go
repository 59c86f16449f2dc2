package kpi

import "math"

// TrendThreshold is the smallest percent change reported as a trend
const TrendThreshold = 0.1

type TrendDirection string

const (
	TrendUp        TrendDirection = "up"
	TrendDown      TrendDirection = "down"
	TrendUnchanged TrendDirection = "unchanged"
)

// Binding is the target state derived from a KPI's current value
type Binding struct {
	Progress        *float64
	DisplayProgress *float64
	OnTrack         *bool
}

func Bind(k *Kpi) Binding {
	progress := Progress(k.CurrentValue, k.TargetValue)
	direction := DirectionIncrease
	if k.TargetDirection != nil {
		direction = *k.TargetDirection
	}
	return Binding{
		Progress:        progress,
		DisplayProgress: DisplayProgress(progress),
		OnTrack:         OnTrack(progress, direction),
	}
}

// Progress is current/target*100, unclamped. Nil without a usable target or value.
func Progress(current, target *float64) *float64 {
	if current == nil || target == nil || *target == 0 {
		return nil
	}
	p := *current / *target * 100
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return nil
	}
	return &p
}

// DisplayProgress clamps progress to [0,100] for progress bars
func DisplayProgress(progress *float64) *float64 {
	if progress == nil {
		return nil
	}
	p := math.Max(0, math.Min(100, *progress))
	return &p
}

// OnTrack: increase targets need progress >= 100, decrease targets need progress <= 100.
// Progress itself is computed the same way for both directions.
func OnTrack(progress *float64, direction TargetDirection) *bool {
	if progress == nil {
		return nil
	}
	var on bool
	if direction == DirectionDecrease {
		on = *progress <= 100
	} else {
		on = *progress >= 100
	}
	return &on
}

type Comparison struct {
	PreviousValue *float64       `json:"previousValue"`
	CurrentValue  *float64       `json:"currentValue"`
	Change        *float64       `json:"change"`
	Direction     TrendDirection `json:"direction"`
}

// Compare computes the period-over-period change in percent. Change is nil when
// either side is missing or previous is zero.
func Compare(previous, current *float64) Comparison {
	c := Comparison{PreviousValue: previous, CurrentValue: current, Direction: TrendUnchanged}
	if previous == nil || current == nil || *previous == 0 {
		return c
	}

	change := (*current - *previous) / math.Abs(*previous) * 100
	c.Change = &change
	switch {
	case change > TrendThreshold:
		c.Direction = TrendUp
	case change < -TrendThreshold:
		c.Direction = TrendDown
	}
	return c
}

// CompareSeries compares the first and last points of a window
func CompareSeries(points []HistoryPoint) Comparison {
	switch len(points) {
	case 0:
		return Compare(nil, nil)
	case 1:
		cur := points[0].Value
		return Compare(nil, &cur)
	}
	prev, cur := points[0].Value, points[len(points)-1].Value
	return Compare(&prev, &cur)
}
