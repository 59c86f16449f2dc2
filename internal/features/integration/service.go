package integration

import (
	"context"
	"crypto/subtle"
	"io"
	"net/url"
	"strings"
	"time"

	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"
	"go-kpi/internal/features/audit"
	"go-kpi/internal/metrics"
	"go-kpi/pkg/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const redactedMask = "********"

// KpiDependencies lets the integration layer ask about KPIs without importing them
type KpiDependencies interface {
	KpisUsingFields(ctx context.Context, fieldIDs []primitive.ObjectID) ([]string, error)
	RecalculateForFields(ctx context.Context, fieldIDs []primitive.ObjectID) error
}

type IntegrationService interface {
	List(ctx context.Context) ([]Integration, error)
	Get(ctx context.Context, id string) (*Integration, error)
	Create(ctx context.Context, req CreateIntegrationRequest) (*Integration, error)
	Update(ctx context.Context, id string, req UpdateIntegrationRequest) (*Integration, error)
	Delete(ctx context.Context, id string) error
	TestConnection(ctx context.Context, id string) (*TestResult, error)
	Sync(ctx context.Context, id string) (*SyncResult, error)
	SyncScheduled(ctx context.Context, id string) error
	ListFields(ctx context.Context, id string) ([]DataField, error)
	CreateField(ctx context.Context, id string, req CreateFieldRequest) (*DataField, error)
	DeleteField(ctx context.Context, id, fieldID string) error
	AddValues(ctx context.Context, id, fieldID string, values []ValueInput) (int, error)
	FieldValues(ctx context.Context, id, fieldID string, period models.Period) ([]DataValue, error)
	Import(ctx context.Context, id, filename string, file io.Reader) (*ImportResult, error)
	IngestWebhook(ctx context.Context, id, secret string, payload WebhookPayload) (int, error)
}

type IntegrationServiceImpl struct {
	Repo         IntegrationRepository
	Fields       FieldRepository
	Values       ValueRepository
	Fetchers     Fetchers
	Scheduler    *SyncScheduler
	Deps         KpiDependencies
	AuditService audit.AuditService
	Logger       *zap.Logger

	now func() time.Time
}

func NewIntegrationService(
	repo IntegrationRepository,
	fields FieldRepository,
	values ValueRepository,
	fetchers Fetchers,
	scheduler *SyncScheduler,
	deps KpiDependencies,
	auditService audit.AuditService,
	logger *zap.Logger,
) IntegrationService {
	return &IntegrationServiceImpl{
		Repo:         repo,
		Fields:       fields,
		Values:       values,
		Fetchers:     fetchers,
		Scheduler:    scheduler,
		Deps:         deps,
		AuditService: auditService,
		Logger:       logger,
		now:          time.Now,
	}
}

func (s *IntegrationServiceImpl) List(ctx context.Context) ([]Integration, error) {
	claims, ok := utils.ClaimsFromContext(ctx)
	if !ok {
		return nil, apperr.Unauthorized("authentication required")
	}

	var owner *primitive.ObjectID
	if !models.HasMinimumRole(models.Role(claims.Role), models.RoleAdmin) {
		oid, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			return []Integration{}, nil
		}
		owner = &oid
	}

	integrations, err := s.Repo.List(ctx, owner)
	if err != nil {
		return nil, err
	}
	for i := range integrations {
		integrations[i] = integrations[i].Redacted()
	}
	return integrations, nil
}

func (s *IntegrationServiceImpl) Get(ctx context.Context, id string) (*Integration, error) {
	integration, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	redacted := integration.Redacted()
	return &redacted, nil
}

// load fetches an integration the caller owns, or any integration for admins
func (s *IntegrationServiceImpl) load(ctx context.Context, id string) (*Integration, error) {
	integration, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	claims, ok := utils.ClaimsFromContext(ctx)
	if !ok {
		return nil, apperr.Unauthorized("authentication required")
	}
	if claims.UserID != integration.OwnerID.Hex() && !models.HasMinimumRole(models.Role(claims.Role), models.RoleAdmin) {
		return nil, apperr.Forbidden("you do not have permission to access this integration")
	}
	return integration, nil
}

func (s *IntegrationServiceImpl) loadField(ctx context.Context, integration *Integration, fieldID string) (*DataField, error) {
	field, err := s.Fields.FindByID(ctx, fieldID)
	if err != nil {
		return nil, err
	}
	if field.IntegrationID != integration.ID {
		return nil, apperr.NotFound("data field")
	}
	return field, nil
}

func (s *IntegrationServiceImpl) Create(ctx context.Context, req CreateIntegrationRequest) (*Integration, error) {
	claims, ok := utils.ClaimsFromContext(ctx)
	if !ok {
		return nil, apperr.Unauthorized("authentication required")
	}
	ownerID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return nil, apperr.Unauthorized("invalid session")
	}

	integration := &Integration{
		OwnerID:      ownerID,
		Name:         strings.TrimSpace(req.Name),
		Type:         req.Type,
		Config:       req.Config,
		SyncSchedule: strings.TrimSpace(req.SyncSchedule),
		Status:       StatusActive,
	}
	if integration.Name == "" {
		return nil, apperr.Validation("name", "name is required")
	}
	if !integration.Type.Valid() {
		return nil, apperr.Validation("type", "type must be API, MANUAL or WEBHOOK")
	}
	if err := s.prepareConfig(integration); err != nil {
		return nil, err
	}
	if integration.Type == TypeAPI {
		integration.Status = StatusPending
	}

	if err := s.Repo.Create(ctx, integration); err != nil {
		return nil, err
	}
	s.schedule(integration)

	_ = s.AuditService.LogChange(ctx, models.AuditActionCreate, "integrations", integration.ID.Hex(), map[string]models.Change{
		"integration": {New: integration.Redacted()},
	})

	// A webhook secret is shown once, at creation
	created := integration.Redacted()
	if integration.Type == TypeWebhook {
		created.Config.Secret = integration.Config.Secret
	}
	return &created, nil
}

// prepareConfig validates the connection settings for the integration's type and fills defaults
func (s *IntegrationServiceImpl) prepareConfig(integration *Integration) error {
	cfg := &integration.Config

	switch integration.Type {
	case TypeAPI:
		if cfg.Kind == "" {
			cfg.Kind = KindREST
		}
		switch cfg.Kind {
		case KindREST:
			u, err := url.Parse(cfg.URL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return apperr.Validation("config.url", "a valid http(s) url is required")
			}
		case KindPostgreSQL, KindMySQL:
			if cfg.DSN == "" {
				return apperr.Validation("config.dsn", "dsn is required")
			}
			if strings.TrimSpace(cfg.Query) == "" {
				return apperr.Validation("config.query", "query is required")
			}
		default:
			return apperr.Validation("config.kind", "kind must be rest, postgresql or mysql")
		}
		if err := ValidateSchedule(integration.SyncSchedule); err != nil {
			return apperr.Validation("syncSchedule", "%s", err.Error())
		}
	case TypeWebhook:
		if cfg.Secret == "" {
			secret, err := utils.NewShareToken()
			if err != nil {
				return err
			}
			cfg.Secret = secret
		}
		integration.SyncSchedule = ""
	default:
		integration.SyncSchedule = ""
	}
	return nil
}

func (s *IntegrationServiceImpl) Update(ctx context.Context, id string, req UpdateIntegrationRequest) (*Integration, error) {
	integration, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	old := integration.Redacted()

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, apperr.Validation("name", "name is required")
		}
		integration.Name = name
	}
	if req.Config != nil {
		integration.Config = mergeRedacted(integration.Config, *req.Config)
	}
	if req.SyncSchedule != nil {
		integration.SyncSchedule = strings.TrimSpace(*req.SyncSchedule)
	}
	if req.Status != nil {
		switch *req.Status {
		case StatusDisabled:
			integration.Status = StatusDisabled
		case StatusActive:
			if integration.Status == StatusDisabled {
				integration.Status = StatusActive
			}
		default:
			return nil, apperr.Validation("status", "status can only be set to ACTIVE or DISABLED")
		}
	}
	if err := s.prepareConfig(integration); err != nil {
		return nil, err
	}

	if err := s.Repo.Update(ctx, integration); err != nil {
		return nil, err
	}
	s.schedule(integration)

	_ = s.AuditService.LogChange(ctx, models.AuditActionUpdate, "integrations", integration.ID.Hex(), map[string]models.Change{
		"integration": {Old: old, New: integration.Redacted()},
	})
	updated := integration.Redacted()
	return &updated, nil
}

// mergeRedacted keeps stored credentials where the client echoed back a masked value
func mergeRedacted(current, incoming IntegrationConfig) IntegrationConfig {
	if incoming.DSN == redactedMask {
		incoming.DSN = current.DSN
	}
	if incoming.Secret == redactedMask {
		incoming.Secret = current.Secret
	}
	for k, v := range incoming.Headers {
		if v == redactedMask {
			incoming.Headers[k] = current.Headers[k]
		}
	}
	return incoming
}

func (s *IntegrationServiceImpl) schedule(integration *Integration) {
	if s.Scheduler == nil {
		return
	}
	if err := s.Scheduler.Register(integration); err != nil {
		s.Logger.Warn("Failed to schedule integration sync", zap.String("integration_id", integration.ID.Hex()), zap.Error(err))
	}
}

// Delete is rejected while any KPI still reads one of the integration's fields
func (s *IntegrationServiceImpl) Delete(ctx context.Context, id string) error {
	integration, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	fields, err := s.Fields.ListByIntegration(ctx, integration.ID)
	if err != nil {
		return err
	}
	fieldIDs := make([]primitive.ObjectID, len(fields))
	for i, f := range fields {
		fieldIDs[i] = f.ID
	}

	if err := s.ensureUnused(ctx, fieldIDs, "integration"); err != nil {
		return err
	}

	if err := s.Values.DeleteByFields(ctx, fieldIDs); err != nil {
		return err
	}
	if err := s.Fields.DeleteByIntegration(ctx, integration.ID); err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, integration.ID); err != nil {
		return err
	}
	if s.Scheduler != nil {
		s.Scheduler.Unregister(id)
	}

	_ = s.AuditService.LogChange(ctx, models.AuditActionDelete, "integrations", id, map[string]models.Change{
		"integration": {Old: integration.Redacted(), New: nil},
	})
	return nil
}

func (s *IntegrationServiceImpl) ensureUnused(ctx context.Context, fieldIDs []primitive.ObjectID, what string) error {
	if s.Deps == nil || len(fieldIDs) == 0 {
		return nil
	}
	kpiIDs, err := s.Deps.KpisUsingFields(ctx, fieldIDs)
	if err != nil {
		return err
	}
	if len(kpiIDs) > 0 {
		conflict := apperr.Conflict("%s is used by %d KPI(s); remove it from their sources first", what, len(kpiIDs))
		conflict.Details = map[string]interface{}{"kpiIds": kpiIDs}
		return conflict
	}
	return nil
}

func (s *IntegrationServiceImpl) TestConnection(ctx context.Context, id string) (*TestResult, error) {
	integration, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if integration.Type != TypeAPI {
		return &TestResult{Success: true, Message: "No remote connection to test for " + string(integration.Type) + " integrations"}, nil
	}

	fetcher, err := s.Fetchers.For(integration.Config.Kind)
	if err != nil {
		return nil, apperr.Validation("config.kind", "%s", err.Error())
	}

	record, err := fetcher.Fetch(ctx, integration.Config)
	if err != nil {
		s.Logger.Info("Integration connection test failed", zap.String("integration_id", id), zap.Error(err))
		return nil, apperr.ExternalFetch(id, err)
	}
	return &TestResult{Success: true, Message: "Connection successful", Sample: record}, nil
}

func (s *IntegrationServiceImpl) Sync(ctx context.Context, id string) (*SyncResult, error) {
	integration, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.runSync(ctx, integration)
}

func (s *IntegrationServiceImpl) SyncScheduled(ctx context.Context, id string) error {
	integration, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if integration.Status == StatusDisabled {
		return nil
	}
	_, err = s.runSync(ctx, integration)
	return err
}

// runSync fetches the source record and ingests every mapped field. A failure is recorded
// on this integration only.
func (s *IntegrationServiceImpl) runSync(ctx context.Context, integration *Integration) (*SyncResult, error) {
	id := integration.ID.Hex()
	if integration.Type != TypeAPI {
		return nil, apperr.Validation("type", "only API integrations can be synced")
	}
	if integration.Status == StatusDisabled {
		return nil, apperr.Validation("status", "integration is disabled")
	}

	fetcher, err := s.Fetchers.For(integration.Config.Kind)
	if err != nil {
		return nil, apperr.Validation("config.kind", "%s", err.Error())
	}

	record, err := fetcher.Fetch(ctx, integration.Config)
	if err != nil {
		if stateErr := s.Repo.UpdateSyncState(ctx, integration.ID, StatusError, nil, err.Error()); stateErr != nil {
			s.Logger.Error("Failed to record sync failure", zap.String("integration_id", id), zap.Error(stateErr))
		}
		metrics.RecordSync(string(integration.Type), "failure")
		s.Logger.Warn("Integration sync failed", zap.String("integration_id", id), zap.Error(err))
		return nil, apperr.ExternalFetch(id, err)
	}

	fields, err := s.Fields.ListByIntegration(ctx, integration.ID)
	if err != nil {
		return nil, err
	}

	syncedAt := s.now().UTC()
	points := make([]DataValue, 0, len(fields))
	for i := range fields {
		raw, found := lookupPath(record, fields[i].SourceField)
		if !found {
			continue
		}
		point, err := s.prepare(ctx, &fields[i], raw, syncedAt)
		if err != nil {
			s.Logger.Warn("Skipping field during sync",
				zap.String("integration_id", id), zap.String("field", fields[i].SourceField), zap.Error(err))
			continue
		}
		points = append(points, point)
	}

	if err := s.store(ctx, points); err != nil {
		return nil, err
	}
	if err := s.Repo.UpdateSyncState(ctx, integration.ID, StatusActive, &syncedAt, ""); err != nil {
		return nil, err
	}
	metrics.RecordSync(string(integration.Type), "success")

	_ = s.AuditService.LogChange(ctx, models.AuditActionSync, "integrations", id, map[string]models.Change{
		"fields_updated": {New: len(points)},
	})

	s.recalculate(ctx, points)
	return &SyncResult{IntegrationID: id, FieldsUpdated: len(points), SyncedAt: syncedAt}, nil
}

// prepare runs the field's transform and coerces the result to its declared type
func (s *IntegrationServiceImpl) prepare(ctx context.Context, field *DataField, raw interface{}, at time.Time) (DataValue, error) {
	transformed, err := ApplyTransform(ctx, field.Transform, raw)
	if err != nil {
		return DataValue{}, err
	}
	value, err := Coerce(field.FieldType, transformed)
	if err != nil {
		return DataValue{}, err
	}
	return DataValue{FieldID: field.ID, Timestamp: at, Value: value}, nil
}

// store appends points and advances each field's current value to its newest point
func (s *IntegrationServiceImpl) store(ctx context.Context, points []DataValue) error {
	if len(points) == 0 {
		return nil
	}
	if err := s.Values.Append(ctx, points); err != nil {
		return err
	}

	latest := make(map[primitive.ObjectID]DataValue)
	for _, p := range points {
		if cur, ok := latest[p.FieldID]; !ok || !p.Timestamp.Before(cur.Timestamp) {
			latest[p.FieldID] = p
		}
	}
	for fieldID, p := range latest {
		if err := s.Fields.UpdateCurrent(ctx, fieldID, p.Value, p.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

func (s *IntegrationServiceImpl) recalculate(ctx context.Context, points []DataValue) {
	if s.Deps == nil || len(points) == 0 {
		return
	}
	seen := make(map[primitive.ObjectID]bool)
	var ids []primitive.ObjectID
	for _, p := range points {
		if !seen[p.FieldID] {
			seen[p.FieldID] = true
			ids = append(ids, p.FieldID)
		}
	}
	if err := s.Deps.RecalculateForFields(ctx, ids); err != nil {
		s.Logger.Warn("Dependent KPI recalculation failed", zap.Error(err))
	}
}

func (s *IntegrationServiceImpl) ListFields(ctx context.Context, id string) ([]DataField, error) {
	integration, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Fields.ListByIntegration(ctx, integration.ID)
}

func (s *IntegrationServiceImpl) CreateField(ctx context.Context, id string, req CreateFieldRequest) (*DataField, error) {
	integration, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	field := &DataField{
		IntegrationID: integration.ID,
		SourceField:   strings.TrimSpace(req.SourceField),
		TargetField:   strings.TrimSpace(req.TargetField),
		FieldType:     req.FieldType,
		Transform:     strings.TrimSpace(req.Transform),
	}
	if field.SourceField == "" {
		return nil, apperr.Validation("sourceField", "sourceField is required")
	}
	if field.TargetField == "" {
		field.TargetField = field.SourceField
	}
	if field.FieldType == "" {
		field.FieldType = FieldNumber
	}
	if !field.FieldType.Valid() {
		return nil, apperr.Validation("fieldType", "fieldType must be STRING, NUMBER, BOOLEAN, DATE or JSON")
	}
	if err := ValidateTransform(field.Transform); err != nil {
		return nil, apperr.Validation("transform", "%s", err.Error())
	}

	if err := s.Fields.Create(ctx, field); err != nil {
		return nil, err
	}

	_ = s.AuditService.LogChange(ctx, models.AuditActionCreate, "data_fields", field.ID.Hex(), map[string]models.Change{
		"field": {New: field},
	})
	return field, nil
}

func (s *IntegrationServiceImpl) DeleteField(ctx context.Context, id, fieldID string) error {
	integration, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	field, err := s.loadField(ctx, integration, fieldID)
	if err != nil {
		return err
	}

	if err := s.ensureUnused(ctx, []primitive.ObjectID{field.ID}, "data field"); err != nil {
		return err
	}
	if err := s.Values.DeleteByFields(ctx, []primitive.ObjectID{field.ID}); err != nil {
		return err
	}
	if err := s.Fields.Delete(ctx, field.ID); err != nil {
		return err
	}

	_ = s.AuditService.LogChange(ctx, models.AuditActionDelete, "data_fields", fieldID, map[string]models.Change{
		"field": {Old: field, New: nil},
	})
	return nil
}

// AddValues records manually entered points; the batch is rejected as a whole if any value is invalid
func (s *IntegrationServiceImpl) AddValues(ctx context.Context, id, fieldID string, values []ValueInput) (int, error) {
	integration, err := s.load(ctx, id)
	if err != nil {
		return 0, err
	}
	field, err := s.loadField(ctx, integration, fieldID)
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, apperr.Validation("values", "at least one value is required")
	}

	now := s.now().UTC()
	points := make([]DataValue, 0, len(values))
	for i, in := range values {
		at := now
		if in.Timestamp != nil {
			at = in.Timestamp.UTC()
		}
		point, err := s.prepare(ctx, field, in.Value, at)
		if err != nil {
			return 0, apperr.Validation("values", "value %d: %s", i, err.Error())
		}
		points = append(points, point)
	}

	if err := s.store(ctx, points); err != nil {
		return 0, err
	}
	s.recalculate(ctx, points)
	return len(points), nil
}

func (s *IntegrationServiceImpl) FieldValues(ctx context.Context, id, fieldID string, period models.Period) ([]DataValue, error) {
	integration, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	field, err := s.loadField(ctx, integration, fieldID)
	if err != nil {
		return nil, err
	}
	return s.Values.ListByField(ctx, field.ID, period.Since(s.now()))
}

// Import ingests a value file in sequential chunks. Rows naming unknown fields or carrying
// invalid values are reported and skipped.
func (s *IntegrationServiceImpl) Import(ctx context.Context, id, filename string, file io.Reader) (*ImportResult, error) {
	integration, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, parseErrs, err := ParseImportFile(filename, file, s.now().UTC())
	if err != nil {
		return nil, apperr.Validation("file", "%s", err.Error())
	}

	fields, err := s.Fields.ListByIntegration(ctx, integration.ID)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*DataField, len(fields)*2)
	for i := range fields {
		byName[strings.ToLower(fields[i].SourceField)] = &fields[i]
		byName[strings.ToLower(fields[i].TargetField)] = &fields[i]
	}

	result := &ImportResult{TotalRows: len(rows) + len(parseErrs), Errors: parseErrs}
	if result.Errors == nil {
		result.Errors = []ImportError{}
	}

	var stored []DataValue
	for _, chunk := range Chunk(rows, ImportChunkSize) {
		points := make([]DataValue, 0, len(chunk))
		for _, row := range chunk {
			field, ok := byName[strings.ToLower(row.Field)]
			if !ok {
				result.Errors = append(result.Errors, ImportError{Row: row.Line, Field: row.Field, Message: "unknown field"})
				continue
			}
			point, err := s.prepare(ctx, field, row.Value, row.Timestamp)
			if err != nil {
				result.Errors = append(result.Errors, ImportError{Row: row.Line, Field: row.Field, Message: err.Error()})
				continue
			}
			points = append(points, point)
		}

		if err := s.store(ctx, points); err != nil {
			return nil, err
		}
		result.Chunks++
		result.Imported += len(points)
		stored = append(stored, points...)
	}
	result.Failed = len(result.Errors)

	_ = s.AuditService.LogChange(ctx, models.AuditActionIntegration, "integrations", id, map[string]models.Change{
		"import": {New: map[string]interface{}{"file": filename, "imported": result.Imported, "failed": result.Failed}},
	})

	s.recalculate(ctx, stored)
	return result, nil
}

// IngestWebhook accepts a pushed payload keyed by source field name. Unknown keys are ignored.
func (s *IntegrationServiceImpl) IngestWebhook(ctx context.Context, id, secret string, payload WebhookPayload) (int, error) {
	integration, err := s.Repo.FindByID(ctx, id)
	if err != nil || integration.Type != TypeWebhook {
		return 0, apperr.NotFound("webhook")
	}
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(integration.Config.Secret)) != 1 {
		return 0, apperr.Unauthorized("invalid webhook secret")
	}
	if integration.Status == StatusDisabled {
		return 0, apperr.Validation("status", "integration is disabled")
	}
	if len(payload.Values) == 0 {
		return 0, apperr.Validation("values", "values are required")
	}

	fields, err := s.Fields.ListByIntegration(ctx, integration.ID)
	if err != nil {
		return 0, err
	}
	bySource := make(map[string]*DataField, len(fields))
	for i := range fields {
		bySource[fields[i].SourceField] = &fields[i]
	}

	at := s.now().UTC()
	if payload.Timestamp != nil {
		at = payload.Timestamp.UTC()
	}

	points := make([]DataValue, 0, len(payload.Values))
	for key, raw := range payload.Values {
		field, ok := bySource[key]
		if !ok {
			continue
		}
		point, err := s.prepare(ctx, field, raw, at)
		if err != nil {
			return 0, apperr.Validation("values."+key, "%s", err.Error())
		}
		points = append(points, point)
	}

	if err := s.store(ctx, points); err != nil {
		return 0, err
	}
	now := s.now().UTC()
	if err := s.Repo.UpdateSyncState(ctx, integration.ID, StatusActive, &now, ""); err != nil {
		return 0, err
	}
	metrics.RecordSync(string(integration.Type), "success")

	s.recalculate(ctx, points)
	return len(points), nil
}
