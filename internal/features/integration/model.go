package integration

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type IntegrationType string

const (
	TypeAPI     IntegrationType = "API"
	TypeManual  IntegrationType = "MANUAL"
	TypeWebhook IntegrationType = "WEBHOOK"
)

func (t IntegrationType) Valid() bool {
	return t == TypeAPI || t == TypeManual || t == TypeWebhook
}

type IntegrationStatus string

const (
	StatusActive   IntegrationStatus = "ACTIVE"
	StatusError    IntegrationStatus = "ERROR"
	StatusPending  IntegrationStatus = "PENDING"
	StatusDisabled IntegrationStatus = "DISABLED"
)

// Source kinds for API integrations
const (
	KindREST       = "rest"
	KindPostgreSQL = "postgresql"
	KindMySQL      = "mysql"
)

// IntegrationConfig holds connection parameters; which keys apply depends on Type and Kind
type IntegrationConfig struct {
	Kind     string            `bson:"kind,omitempty" json:"kind,omitempty"`
	URL      string            `bson:"url,omitempty" json:"url,omitempty"`
	Method   string            `bson:"method,omitempty" json:"method,omitempty"`
	Headers  map[string]string `bson:"headers,omitempty" json:"headers,omitempty"`
	DataPath string            `bson:"data_path,omitempty" json:"dataPath,omitempty"`
	DSN      string            `bson:"dsn,omitempty" json:"dsn,omitempty"`
	Query    string            `bson:"query,omitempty" json:"query,omitempty"`
	Secret   string            `bson:"secret,omitempty" json:"secret,omitempty"`
}

type Integration struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID      primitive.ObjectID `bson:"owner_id" json:"ownerId"`
	Name         string             `bson:"name" json:"name"`
	Type         IntegrationType    `bson:"type" json:"type"`
	Config       IntegrationConfig  `bson:"config" json:"config"`
	Status       IntegrationStatus  `bson:"status" json:"status"`
	LastSync     *time.Time         `bson:"last_sync,omitempty" json:"lastSync"`
	LastError    string             `bson:"last_error,omitempty" json:"lastError,omitempty"`
	SyncSchedule string             `bson:"sync_schedule,omitempty" json:"syncSchedule,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}

// Redacted hides credentials before an integration leaves the API
func (i Integration) Redacted() Integration {
	out := i
	if out.Config.DSN != "" {
		out.Config.DSN = "********"
	}
	if out.Config.Secret != "" {
		out.Config.Secret = "********"
	}
	if len(out.Config.Headers) > 0 {
		headers := make(map[string]string, len(out.Config.Headers))
		for k := range out.Config.Headers {
			headers[k] = "********"
		}
		out.Config.Headers = headers
	}
	return out
}

type FieldType string

const (
	FieldString  FieldType = "STRING"
	FieldNumber  FieldType = "NUMBER"
	FieldBoolean FieldType = "BOOLEAN"
	FieldDate    FieldType = "DATE"
	FieldJSON    FieldType = "JSON"
)

func (t FieldType) Valid() bool {
	switch t {
	case FieldString, FieldNumber, FieldBoolean, FieldDate, FieldJSON:
		return true
	}
	return false
}

type Aggregation string

const (
	AggLast  Aggregation = "last"
	AggSum   Aggregation = "sum"
	AggAvg   Aggregation = "avg"
	AggMin   Aggregation = "min"
	AggMax   Aggregation = "max"
	AggCount Aggregation = "count"
)

// AllowsAggregation reports whether values of type t can be reduced with agg.
// Non-numeric fields only support last and count.
func (t FieldType) AllowsAggregation(agg Aggregation) bool {
	switch agg {
	case AggLast, AggCount:
		return true
	case AggSum, AggAvg, AggMin, AggMax:
		return t == FieldNumber
	}
	return false
}

type DataField struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	IntegrationID primitive.ObjectID `bson:"integration_id" json:"integrationId"`
	SourceField   string             `bson:"source_field" json:"sourceField"`
	TargetField   string             `bson:"target_field" json:"targetField"`
	FieldType     FieldType          `bson:"field_type" json:"fieldType"`
	Transform     string             `bson:"transform,omitempty" json:"transform,omitempty"`
	CurrentValue  interface{}        `bson:"current_value,omitempty" json:"currentValue"`
	LastUpdated   *time.Time         `bson:"last_updated,omitempty" json:"lastUpdated"`
	CreatedAt     time.Time          `bson:"created_at" json:"createdAt"`
}

// DataValue is one point of a field's append-only series
type DataValue struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	FieldID   primitive.ObjectID `bson:"field_id" json:"-"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
	Value     interface{}        `bson:"value" json:"value"`
}

type CreateIntegrationRequest struct {
	Name         string            `json:"name"`
	Type         IntegrationType   `json:"type"`
	Config       IntegrationConfig `json:"config"`
	SyncSchedule string            `json:"syncSchedule"`
}

type UpdateIntegrationRequest struct {
	Name         *string            `json:"name"`
	Config       *IntegrationConfig `json:"config"`
	SyncSchedule *string            `json:"syncSchedule"`
	Status       *IntegrationStatus `json:"status"`
}

type CreateFieldRequest struct {
	SourceField string    `json:"sourceField"`
	TargetField string    `json:"targetField"`
	FieldType   FieldType `json:"fieldType"`
	Transform   string    `json:"transform"`
}

type ValueInput struct {
	Timestamp *time.Time  `json:"timestamp"`
	Value     interface{} `json:"value"`
}

type WebhookPayload struct {
	Timestamp *time.Time             `json:"timestamp"`
	Values    map[string]interface{} `json:"values"`
}

// ImportRow is one parsed line of a value import file
type ImportRow struct {
	Line      int
	Field     string
	Timestamp time.Time
	Value     string
}

type ImportError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type ImportResult struct {
	TotalRows int           `json:"totalRows"`
	Imported  int           `json:"imported"`
	Failed    int           `json:"failed"`
	Chunks    int           `json:"chunks"`
	Errors    []ImportError `json:"errors"`
}

type TestResult struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Sample  map[string]interface{} `json:"sample,omitempty"`
}

type SyncResult struct {
	IntegrationID string    `json:"integrationId"`
	FieldsUpdated int       `json:"fieldsUpdated"`
	SyncedAt      time.Time `json:"syncedAt"`
}
