package kpi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-kpi/internal/cache"
	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"
	"go-kpi/internal/config"
	"go-kpi/internal/features/access"
	"go-kpi/internal/features/audit"
	"go-kpi/internal/features/integration"
	"go-kpi/internal/metrics"
	"go-kpi/pkg/utils"

	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type KpiService interface {
	List(ctx context.Context) ([]KpiView, error)
	Get(ctx context.Context, id string) (*KpiView, error)
	Create(ctx context.Context, req KpiRequest) (*KpiView, error)
	Update(ctx context.Context, id string, req KpiRequest) (*KpiView, error)
	Delete(ctx context.Context, id string) error
	ValidateFormula(ctx context.Context, req ValidateFormulaRequest) (*FormulaValidation, error)
	Recalculate(ctx context.Context, id string) (*KpiView, error)
	History(ctx context.Context, id string, period models.Period) (*History, error)
	Export(ctx context.Context, id string, period models.Period) (string, []byte, error)
	Resource(ctx context.Context, id string) (access.Resource, error)

	// Lookups for callers that already authorized access through a containing resource
	FindByIDs(ctx context.Context, ids []string) (map[string]*Kpi, error)
	HistoryFor(ctx context.Context, k *Kpi, period models.Period) (*History, error)

	KpisUsingFields(ctx context.Context, fieldIDs []primitive.ObjectID) ([]string, error)
	RecalculateForFields(ctx context.Context, fieldIDs []primitive.ObjectID) error
}

type KpiServiceImpl struct {
	Repo         KpiRepository
	Values       ValueRepository
	Fields       integration.FieldRepository
	FieldValues  integration.ValueRepository
	Access       access.AccessService
	Links        access.LinkCleaner
	Cache        cache.Cache
	Evaluator    *Evaluator
	AuditService audit.AuditService
	Logger       *zap.Logger
	HistoryTTL   time.Duration

	now func() time.Time
}

func NewKpiService(
	repo KpiRepository,
	values ValueRepository,
	fields integration.FieldRepository,
	fieldValues integration.ValueRepository,
	accessService access.AccessService,
	links access.LinkCleaner,
	historyCache cache.Cache,
	auditService audit.AuditService,
	logger *zap.Logger,
	cfg *config.Config,
) KpiService {
	return &KpiServiceImpl{
		Repo:         repo,
		Values:       values,
		Fields:       fields,
		FieldValues:  fieldValues,
		Access:       accessService,
		Links:        links,
		Cache:        historyCache,
		Evaluator:    NewEvaluator(),
		AuditService: auditService,
		Logger:       logger,
		HistoryTTL:   cfg.HistoryCacheTTL,
		now:          time.Now,
	}
}

func resourceOf(k *Kpi) access.Resource {
	return access.Resource{Type: access.ResourceKpi, ID: k.ID, OwnerID: k.OwnerID}
}

func (s *KpiServiceImpl) Resource(ctx context.Context, id string) (access.Resource, error) {
	k, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return access.Resource{}, err
	}
	return resourceOf(k), nil
}

// authorized loads a KPI and checks the caller has the required capability on it
func (s *KpiServiceImpl) authorized(ctx context.Context, id string, need access.Need) (*Kpi, access.AccessFlags, error) {
	k, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, access.AccessFlags{}, err
	}
	flags, err := s.Access.Authorize(ctx, resourceOf(k), access.RequesterFromContext(ctx), need)
	if err != nil {
		return nil, flags, err
	}
	return k, flags, nil
}

func (s *KpiServiceImpl) List(ctx context.Context) ([]KpiView, error) {
	requester := access.RequesterFromContext(ctx)
	if requester.UserID == "" {
		return nil, apperr.Unauthorized("authentication required")
	}

	filter := ListFilter{}
	if !models.HasMinimumRole(requester.Role, models.RoleAdmin) {
		ownerID, err := primitive.ObjectIDFromHex(requester.UserID)
		if err != nil {
			return []KpiView{}, nil
		}
		granted, err := s.Access.ResourceIDsFor(ctx, access.ResourceKpi, requester.UserID)
		if err != nil {
			return nil, err
		}
		filter = ListFilter{OwnerID: &ownerID, IDs: granted}
	}

	kpis, err := s.Repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]KpiView, 0, len(kpis))
	for i := range kpis {
		flags, err := s.Access.Flags(ctx, resourceOf(&kpis[i]), requester)
		if err != nil {
			return nil, err
		}
		views = append(views, NewKpiView(&kpis[i], &flags))
	}
	return views, nil
}

func (s *KpiServiceImpl) Get(ctx context.Context, id string) (*KpiView, error) {
	k, flags, err := s.authorized(ctx, id, access.NeedView)
	if err != nil {
		return nil, err
	}
	view := NewKpiView(k, &flags)
	return &view, nil
}

func (s *KpiServiceImpl) Create(ctx context.Context, req KpiRequest) (*KpiView, error) {
	requester := access.RequesterFromContext(ctx)
	ownerID, err := primitive.ObjectIDFromHex(requester.UserID)
	if err != nil {
		return nil, apperr.Unauthorized("authentication required")
	}

	k := &Kpi{OwnerID: ownerID, Format: FormatNumber}
	applyRequest(k, req)
	if err := s.validateDefinition(ctx, k); err != nil {
		return nil, err
	}

	if err := s.Repo.Create(ctx, k); err != nil {
		return nil, err
	}
	_ = s.AuditService.LogChange(ctx, models.AuditActionCreate, "kpis", k.ID.Hex(), map[string]models.Change{
		"kpi": {New: k},
	})

	if err := s.recalculate(ctx, k); err != nil {
		s.Logger.Error("Initial KPI calculation failed", zap.String("kpi_id", k.ID.Hex()), zap.Error(err))
	}

	flags := access.DeriveAccess(requester, ownerID.Hex(), nil)
	view := NewKpiView(k, &flags)
	return &view, nil
}

func applyRequest(k *Kpi, req KpiRequest) {
	if req.Name != nil {
		k.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		k.Description = strings.TrimSpace(*req.Description)
	}
	if req.Formula != nil {
		k.Formula = strings.TrimSpace(*req.Formula)
	}
	if req.Sources != nil {
		k.Sources = append([]KpiSource(nil), (*req.Sources)...)
	}
	if req.Unit != nil {
		k.Unit = *req.Unit
	}
	if req.Format != nil {
		k.Format = *req.Format
	}
	if req.ClearTarget {
		k.TargetValue, k.TargetDirection, k.TargetPeriod = nil, nil, nil
	}
	if req.TargetValue != nil {
		k.TargetValue = req.TargetValue
	}
	if req.TargetDirection != nil {
		k.TargetDirection = req.TargetDirection
	}
	if req.TargetPeriod != nil {
		k.TargetPeriod = req.TargetPeriod
	}
}

// validateDefinition enforces the alias round trip and that every source can feed a formula
func (s *KpiServiceImpl) validateDefinition(ctx context.Context, k *Kpi) error {
	if k.Name == "" {
		return apperr.Validation("name", "name is required")
	}
	switch k.Format {
	case FormatNumber, FormatCurrency, FormatPercentage, FormatDuration:
	default:
		return apperr.Validation("format", "format must be number, currency, percentage or duration")
	}
	if k.TargetDirection != nil && *k.TargetDirection != DirectionIncrease && *k.TargetDirection != DirectionDecrease {
		return apperr.Validation("targetDirection", "targetDirection must be increase or decrease")
	}
	if len(k.Sources) == 0 {
		return apperr.Validation("sources", "at least one source is required")
	}
	for i := range k.Sources {
		if k.Sources[i].Aggregation == "" {
			k.Sources[i].Aggregation = integration.AggLast
		}
	}

	result := s.Evaluator.Validate(k.Formula, k.Sources)
	if !result.Valid {
		err := apperr.Validation("formula", "%s", describeValidation(result))
		err.Details = map[string]interface{}{
			"errors":         result.Errors,
			"missingAliases": result.MissingAliases,
			"unusedAliases":  result.UnusedAliases,
		}
		return err
	}

	if msgs, err := s.checkSources(ctx, k.Sources); err != nil {
		return err
	} else if len(msgs) > 0 {
		return apperr.Validation("sources", "%s", strings.Join(msgs, "; "))
	}
	return nil
}

func describeValidation(v FormulaValidation) string {
	parts := append([]string{}, v.Errors...)
	if len(v.MissingAliases) > 0 {
		parts = append(parts, "formula uses undeclared aliases: "+strings.Join(v.MissingAliases, ", "))
	}
	if len(v.UnusedAliases) > 0 {
		parts = append(parts, "sources not used by the formula: "+strings.Join(v.UnusedAliases, ", "))
	}
	return strings.Join(parts, "; ")
}

// checkSources reports missing fields and aggregations their type does not support
func (s *KpiServiceImpl) checkSources(ctx context.Context, sources []KpiSource) ([]string, error) {
	ids := make([]primitive.ObjectID, len(sources))
	for i, src := range sources {
		ids[i] = src.DataFieldID
	}
	fields, err := s.Fields.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]integration.DataField, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
	}

	var msgs []string
	for _, src := range sources {
		f, ok := byID[src.DataFieldID]
		if !ok {
			msgs = append(msgs, fmt.Sprintf("%s: data field not found", src.Alias))
			continue
		}
		if !f.FieldType.AllowsAggregation(src.Aggregation) {
			msgs = append(msgs, fmt.Sprintf("%s: aggregation %q is not valid for %s fields", src.Alias, src.Aggregation, f.FieldType))
			continue
		}
		if f.FieldType != integration.FieldNumber && src.Aggregation != integration.AggCount {
			msgs = append(msgs, fmt.Sprintf("%s: only NUMBER fields or count can feed a formula", src.Alias))
		}
	}
	return msgs, nil
}

func (s *KpiServiceImpl) Update(ctx context.Context, id string, req KpiRequest) (*KpiView, error) {
	k, flags, err := s.authorized(ctx, id, access.NeedEdit)
	if err != nil {
		return nil, err
	}
	old := *k

	applyRequest(k, req)
	if err := s.validateDefinition(ctx, k); err != nil {
		return nil, err
	}
	if err := s.Repo.Update(ctx, k); err != nil {
		return nil, err
	}

	_ = s.AuditService.LogChange(ctx, models.AuditActionUpdate, "kpis", k.ID.Hex(), map[string]models.Change{
		"kpi": {Old: old, New: k},
	})

	if req.Formula != nil || req.Sources != nil {
		if err := s.recalculate(ctx, k); err != nil {
			return nil, err
		}
	}

	view := NewKpiView(k, &flags)
	return &view, nil
}

// Delete leaves widgets bound to the KPI in place; they render as unavailable
func (s *KpiServiceImpl) Delete(ctx context.Context, id string) error {
	k, _, err := s.authorized(ctx, id, access.NeedManage)
	if err != nil {
		return err
	}

	if err := s.Repo.Delete(ctx, k.ID); err != nil {
		return err
	}
	if err := s.Values.DeleteByKpi(ctx, k.ID); err != nil {
		s.Logger.Warn("Failed to delete KPI history", zap.String("kpi_id", id), zap.Error(err))
	}
	if err := s.Access.RemoveResource(ctx, resourceOf(k)); err != nil {
		s.Logger.Warn("Failed to delete KPI access entries", zap.String("kpi_id", id), zap.Error(err))
	}
	if err := s.Links.DeleteByResource(ctx, access.ResourceKpi, k.ID); err != nil {
		s.Logger.Warn("Failed to delete KPI share links", zap.String("kpi_id", id), zap.Error(err))
	}
	s.invalidateHistory(ctx, k.ID)

	_ = s.AuditService.LogChange(ctx, models.AuditActionDelete, "kpis", id, map[string]models.Change{
		"kpi": {Old: k, New: nil},
	})
	return nil
}

func (s *KpiServiceImpl) ValidateFormula(ctx context.Context, req ValidateFormulaRequest) (*FormulaValidation, error) {
	sources := append([]KpiSource(nil), req.Sources...)
	for i := range sources {
		if sources[i].Aggregation == "" {
			sources[i].Aggregation = integration.AggLast
		}
	}

	result := s.Evaluator.Validate(req.Formula, sources)

	var withField []KpiSource
	for _, src := range sources {
		if !src.DataFieldID.IsZero() {
			withField = append(withField, src)
		}
	}
	if len(withField) > 0 {
		msgs, err := s.checkSources(ctx, withField)
		if err != nil {
			return nil, err
		}
		result.Errors = append(result.Errors, msgs...)
		result.Valid = result.Valid && len(msgs) == 0
	}
	return &result, nil
}

func (s *KpiServiceImpl) Recalculate(ctx context.Context, id string) (*KpiView, error) {
	k, flags, err := s.authorized(ctx, id, access.NeedEdit)
	if err != nil {
		return nil, err
	}
	if err := s.recalculate(ctx, k); err != nil {
		return nil, err
	}
	view := NewKpiView(k, &flags)
	return &view, nil
}

// recalculate evaluates k and persists the outcome. Formula and data problems are stored
// on the KPI as calculationError. Read and write failures are returned and leave the
// stored value untouched.
func (s *KpiServiceImpl) recalculate(ctx context.Context, k *Kpi) error {
	at := s.now().UTC()
	value, calcErr, err := s.evaluate(ctx, k)
	if err != nil {
		metrics.RecordRecalculation("failed")
		return fmt.Errorf("load inputs for kpi %s: %w", k.ID.Hex(), err)
	}

	if calcErr != nil {
		msg := calcErr.Error()
		k.CurrentValue = nil
		k.CalculationError = &msg
		metrics.RecordRecalculation("error")
		s.Logger.Info("KPI calculation failed", zap.String("kpi_id", k.ID.Hex()), zap.String("reason", msg))
	} else {
		k.CurrentValue = &value
		k.CalculationError = nil
		metrics.RecordRecalculation("success")
	}
	k.LastCalculated = &at

	if err := s.Repo.UpdateCalculation(ctx, k.ID, k.CurrentValue, k.CalculationError, at); err != nil {
		return err
	}
	if calcErr == nil {
		if err := s.Values.Append(ctx, &KpiValue{KpiID: k.ID, Timestamp: at, Value: value}); err != nil {
			return err
		}
	}
	s.invalidateHistory(ctx, k.ID)
	return nil
}

// evaluate returns the KPI value, or calcErr when the formula or its data cannot
// produce one. err reports a failed read of the inputs.
func (s *KpiServiceImpl) evaluate(ctx context.Context, k *Kpi) (value float64, calcErr error, err error) {
	formula, calcErr := ParseFormula(k.Formula)
	if calcErr != nil {
		return 0, calcErr, nil
	}

	ids := make([]primitive.ObjectID, len(k.Sources))
	for i, src := range k.Sources {
		ids[i] = src.DataFieldID
	}
	fields, err := s.Fields.FindByIDs(ctx, ids)
	if err != nil {
		return 0, nil, err
	}
	present := make(map[primitive.ObjectID]bool, len(fields))
	for _, f := range fields {
		present[f.ID] = true
	}

	vars := make(map[string]float64, len(k.Sources))
	for _, src := range k.Sources {
		if !present[src.DataFieldID] {
			return 0, fmt.Errorf("%s: data field no longer exists", src.Alias), nil
		}
		series, err := s.FieldValues.ListByField(ctx, src.DataFieldID, time.Time{})
		if err != nil {
			return 0, nil, err
		}
		v, aggErr := integration.Aggregate(series, src.Aggregation)
		if aggErr != nil {
			return 0, fmt.Errorf("%s: %w", src.Alias, aggErr), nil
		}
		vars[src.Alias] = v
	}

	value, calcErr = s.Evaluator.Evaluate(ctx, formula, vars)
	return value, calcErr, nil
}

func historyKeyPrefix(id primitive.ObjectID) string {
	return "kpi:history:" + id.Hex() + ":"
}

func (s *KpiServiceImpl) invalidateHistory(ctx context.Context, id primitive.ObjectID) {
	if err := s.Cache.DeletePrefix(ctx, historyKeyPrefix(id)); err != nil {
		s.Logger.Warn("Failed to invalidate KPI history cache", zap.String("kpi_id", id.Hex()), zap.Error(err))
	}
}

func (s *KpiServiceImpl) History(ctx context.Context, id string, period models.Period) (*History, error) {
	k, _, err := s.authorized(ctx, id, access.NeedView)
	if err != nil {
		return nil, err
	}
	return s.HistoryFor(ctx, k, period)
}

// HistoryFor returns the KPI's recorded values within period, compared first to last
func (s *KpiServiceImpl) HistoryFor(ctx context.Context, k *Kpi, period models.Period) (*History, error) {
	key := historyKeyPrefix(k.ID) + string(period)

	var cached History
	if err := s.Cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.Logger.Warn("History cache read failed", zap.String("key", key), zap.Error(err))
	}

	values, err := s.Values.List(ctx, k.ID, period.Since(s.now()))
	if err != nil {
		return nil, err
	}

	points := make([]HistoryPoint, len(values))
	for i, v := range values {
		points[i] = HistoryPoint{Timestamp: v.Timestamp, Value: v.Value}
	}
	history := &History{
		Data:       points,
		Comparison: CompareSeries(points),
		Period:     period,
		Interval:   period.Interval(),
	}

	if err := s.Cache.Set(ctx, key, history, s.HistoryTTL); err != nil {
		s.Logger.Warn("History cache write failed", zap.String("key", key), zap.Error(err))
	}
	return history, nil
}

// Export renders the KPI's history for period as an xlsx workbook
func (s *KpiServiceImpl) Export(ctx context.Context, id string, period models.Period) (string, []byte, error) {
	k, _, err := s.authorized(ctx, id, access.NeedView)
	if err != nil {
		return "", nil, err
	}
	history, err := s.HistoryFor(ctx, k, period)
	if err != nil {
		return "", nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "History"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return "", nil, err
	}
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"Timestamp", "Value"}); err != nil {
		return "", nil, err
	}
	for i, p := range history.Data {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &[]interface{}{p.Timestamp.Format(time.RFC3339), p.Value}); err != nil {
			return "", nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return "", nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	name := utils.Slugify(k.Name)
	if name == "" {
		name = "kpi"
	}
	return fmt.Sprintf("%s-%s.xlsx", name, period), buf.Bytes(), nil
}

func (s *KpiServiceImpl) FindByIDs(ctx context.Context, ids []string) (map[string]*Kpi, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	kpis, err := s.Repo.FindByIDs(ctx, oids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*Kpi, len(kpis))
	for i := range kpis {
		out[kpis[i].ID.Hex()] = &kpis[i]
	}
	return out, nil
}

func (s *KpiServiceImpl) KpisUsingFields(ctx context.Context, fieldIDs []primitive.ObjectID) ([]string, error) {
	kpis, err := s.Repo.FindByFieldIDs(ctx, fieldIDs)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(kpis))
	for i, k := range kpis {
		ids[i] = k.ID.Hex()
	}
	return ids, nil
}

// RecalculateForFields refreshes every KPI reading one of the fields. It continues past
// individual failures and returns the first one.
func (s *KpiServiceImpl) RecalculateForFields(ctx context.Context, fieldIDs []primitive.ObjectID) error {
	kpis, err := s.Repo.FindByFieldIDs(ctx, fieldIDs)
	if err != nil {
		return err
	}

	var firstErr error
	for i := range kpis {
		if err := s.recalculate(ctx, &kpis[i]); err != nil {
			s.Logger.Error("Failed to recalculate KPI", zap.String("kpi_id", kpis[i].ID.Hex()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
