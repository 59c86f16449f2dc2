package kpi

import (
	"time"

	"go-kpi/internal/common/models"
	"go-kpi/internal/features/access"
	"go-kpi/internal/features/integration"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TargetDirection string

const (
	DirectionIncrease TargetDirection = "increase"
	DirectionDecrease TargetDirection = "decrease"
)

type Format string

const (
	FormatNumber     Format = "number"
	FormatCurrency   Format = "currency"
	FormatPercentage Format = "percentage"
	FormatDuration   Format = "duration"
)

// KpiSource binds a formula alias to a data field
type KpiSource struct {
	DataFieldID primitive.ObjectID      `bson:"data_field_id" json:"dataFieldId"`
	Alias       string                  `bson:"alias" json:"alias"`
	Aggregation integration.Aggregation `bson:"aggregation" json:"aggregation"`
}

type Kpi struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID          primitive.ObjectID `bson:"owner_id" json:"ownerId"`
	Name             string             `bson:"name" json:"name"`
	Description      string             `bson:"description,omitempty" json:"description,omitempty"`
	Formula          string             `bson:"formula" json:"formula"`
	Sources          []KpiSource        `bson:"sources" json:"sources"`
	Unit             string             `bson:"unit,omitempty" json:"unit,omitempty"`
	Format           Format             `bson:"format" json:"format"`
	TargetValue      *float64           `bson:"target_value,omitempty" json:"targetValue"`
	TargetDirection  *TargetDirection   `bson:"target_direction,omitempty" json:"targetDirection"`
	TargetPeriod     *string            `bson:"target_period,omitempty" json:"targetPeriod"`
	CurrentValue     *float64           `bson:"current_value,omitempty" json:"currentValue"`
	CalculationError *string            `bson:"calculation_error,omitempty" json:"calculationError"`
	LastCalculated   *time.Time         `bson:"last_calculated,omitempty" json:"lastCalculated"`
	CreatedAt        time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updated_at" json:"updatedAt"`
}

// KpiValue is one recalculation result in a KPI's history
type KpiValue struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	KpiID     primitive.ObjectID `bson:"kpi_id" json:"-"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
	Value     float64            `bson:"value" json:"value"`
}

// KpiView is a KPI with its derived target state and the caller's access flags
type KpiView struct {
	Kpi
	Progress        *float64            `json:"progress"`
	DisplayProgress *float64            `json:"displayProgress"`
	OnTrack         *bool               `json:"onTrack"`
	Access          *access.AccessFlags `json:"access,omitempty"`
}

func NewKpiView(k *Kpi, flags *access.AccessFlags) KpiView {
	b := Bind(k)
	return KpiView{
		Kpi:             *k,
		Progress:        b.Progress,
		DisplayProgress: b.DisplayProgress,
		OnTrack:         b.OnTrack,
		Access:          flags,
	}
}

type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type History struct {
	Data       []HistoryPoint  `json:"data"`
	Comparison Comparison      `json:"comparison"`
	Period     models.Period   `json:"period"`
	Interval   models.Interval `json:"interval"`
}

type KpiRequest struct {
	Name            *string          `json:"name"`
	Description     *string          `json:"description"`
	Formula         *string          `json:"formula"`
	Sources         *[]KpiSource     `json:"sources"`
	Unit            *string          `json:"unit"`
	Format          *Format          `json:"format"`
	TargetValue     *float64         `json:"targetValue"`
	TargetDirection *TargetDirection `json:"targetDirection"`
	TargetPeriod    *string          `json:"targetPeriod"`
	ClearTarget     bool             `json:"clearTarget"`
}

type ValidateFormulaRequest struct {
	Formula string      `json:"formula"`
	Sources []KpiSource `json:"sources"`
}

type FormulaValidation struct {
	Valid          bool     `json:"valid"`
	Errors         []string `json:"errors"`
	MissingAliases []string `json:"missingAliases"`
	UnusedAliases  []string `json:"unusedAliases"`
}
