package kpi

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"go-kpi/internal/common/apperr"
	"go-kpi/internal/common/models"
	"go-kpi/internal/config"
	"go-kpi/internal/features/access"
	"go-kpi/internal/features/integration"
	"go-kpi/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	svc         *KpiServiceImpl
	kpis        *memoryKpis
	values      *memoryKpiValues
	fields      *memoryFields
	fieldValues *memoryFieldValues
	access      *grantAccess
	cache       *recordingCache
	links       *recordingLinks
	ownerID     primitive.ObjectID
	ctx         context.Context
	now         time.Time
}

func newHarness() *harness {
	h := &harness{
		kpis:        newMemoryKpis(),
		values:      &memoryKpiValues{},
		fields:      &memoryFields{items: map[primitive.ObjectID]integration.DataField{}},
		fieldValues: &memoryFieldValues{},
		access:      newGrantAccess(),
		cache:       newRecordingCache(),
		links:       &recordingLinks{},
		ownerID:     primitive.NewObjectID(),
		now:         fixedNow,
	}
	h.svc = NewKpiService(
		h.kpis, h.values, h.fields, h.fieldValues, h.access, h.links, h.cache,
		nopAudit{}, zap.NewNop(), &config.Config{HistoryCacheTTL: time.Minute},
	).(*KpiServiceImpl)
	h.svc.now = func() time.Time { return h.now }
	h.ctx = h.as(h.ownerID, models.RoleEditor)
	return h
}

func (h *harness) as(userID primitive.ObjectID, role models.Role) context.Context {
	return utils.WithClaims(context.Background(), &utils.UserClaims{UserID: userID.Hex(), Role: string(role)})
}

func (h *harness) field(name string, ft integration.FieldType, values ...interface{}) primitive.ObjectID {
	f := &integration.DataField{IntegrationID: primitive.NewObjectID(), SourceField: name, TargetField: name, FieldType: ft}
	_ = h.fields.Create(context.Background(), f)
	for i, v := range values {
		h.fieldValues.points = append(h.fieldValues.points, integration.DataValue{
			FieldID:   f.ID,
			Timestamp: fixedNow.Add(time.Duration(i-len(values)) * time.Hour),
			Value:     v,
		})
	}
	return f.ID
}

func (h *harness) revenuePerEmployee(t *testing.T) *KpiView {
	revenue := h.field("revenue", integration.FieldNumber, 100000.0, 110000.0)
	employees := h.field("employees", integration.FieldNumber, 10.0, 10.0)

	view, err := h.svc.Create(h.ctx, KpiRequest{
		Name:    ptr("Revenue per employee"),
		Formula: ptr("revenue / employees"),
		Sources: &[]KpiSource{
			{DataFieldID: revenue, Alias: "revenue", Aggregation: integration.AggLast},
			{DataFieldID: employees, Alias: "employees"},
		},
		Format:      ptr(FormatCurrency),
		TargetValue: ptr(10000.0),
	})
	require.NoError(t, err)
	return view
}

func TestCreateCalculatesRevenuePerEmployee(t *testing.T) {
	h := newHarness()
	view := h.revenuePerEmployee(t)

	require.NotNil(t, view.CurrentValue)
	assert.InDelta(t, 11000.0, *view.CurrentValue, 1e-9)
	assert.Nil(t, view.CalculationError)
	assert.InDelta(t, 110.0, *view.Progress, 1e-9)
	assert.Equal(t, 100.0, *view.DisplayProgress)
	assert.True(t, *view.OnTrack)
	assert.True(t, view.Access.IsOwner)
	assert.Equal(t, integration.AggLast, view.Sources[1].Aggregation)

	require.Len(t, h.values.points, 1)
	assert.Equal(t, 11000.0, h.values.points[0].Value)
}

func TestCreateRejectsAliasMismatch(t *testing.T) {
	h := newHarness()
	revenue := h.field("revenue", integration.FieldNumber, 1.0)

	_, err := h.svc.Create(h.ctx, KpiRequest{
		Name:    ptr("Broken"),
		Formula: ptr("revenue / headcount"),
		Sources: &[]KpiSource{{DataFieldID: revenue, Alias: "revenue"}, {DataFieldID: revenue, Alias: "unused"}},
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	appErr, _ := apperr.As(err)
	assert.Equal(t, []string{"headcount"}, appErr.Details["missingAliases"])
	assert.Equal(t, []string{"unused"}, appErr.Details["unusedAliases"])
	assert.Empty(t, h.kpis.items)
}

func TestCreateRejectsAggregationForFieldType(t *testing.T) {
	h := newHarness()
	status := h.field("status", integration.FieldString, "ok")

	_, err := h.svc.Create(h.ctx, KpiRequest{
		Name:    ptr("Status total"),
		Formula: ptr("status"),
		Sources: &[]KpiSource{{DataFieldID: status, Alias: "status", Aggregation: integration.AggSum}},
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	view, err := h.svc.Create(h.ctx, KpiRequest{
		Name:    ptr("Status reports"),
		Formula: ptr("status"),
		Sources: &[]KpiSource{{DataFieldID: status, Alias: "status", Aggregation: integration.AggCount}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, *view.CurrentValue)
}

func TestRecalculateFailsClosed(t *testing.T) {
	h := newHarness()
	view := h.revenuePerEmployee(t)

	employees := view.Sources[1].DataFieldID
	h.fieldValues.points = append(h.fieldValues.points, integration.DataValue{FieldID: employees, Timestamp: fixedNow, Value: 0.0})
	h.now = fixedNow.Add(time.Minute)

	updated, err := h.svc.Recalculate(h.ctx, view.ID.Hex())
	require.NoError(t, err)
	assert.Nil(t, updated.CurrentValue)
	require.NotNil(t, updated.CalculationError)
	assert.Nil(t, updated.Progress)
	assert.Nil(t, updated.OnTrack)

	stored := h.kpis.items[view.ID]
	assert.Nil(t, stored.CurrentValue)
	assert.NotNil(t, stored.CalculationError)
	assert.Len(t, h.values.points, 1, "failed calculations are not recorded as history")
}

func TestRecalculateRecoversAfterFailure(t *testing.T) {
	h := newHarness()
	view := h.revenuePerEmployee(t)

	delete(h.fields.items, view.Sources[0].DataFieldID)
	failed, err := h.svc.Recalculate(h.ctx, view.ID.Hex())
	require.NoError(t, err)
	assert.Contains(t, *failed.CalculationError, "no longer exists")

	h.fields.items[view.Sources[0].DataFieldID] = integration.DataField{ID: view.Sources[0].DataFieldID, FieldType: integration.FieldNumber}
	ok, err := h.svc.Recalculate(h.ctx, view.ID.Hex())
	require.NoError(t, err)
	assert.Nil(t, ok.CalculationError)
	assert.InDelta(t, 11000.0, *ok.CurrentValue, 1e-9)
}

func TestRecalculateKeepsValueWhenInputsCannotBeRead(t *testing.T) {
	h := newHarness()
	view := h.revenuePerEmployee(t)
	h.now = fixedNow.Add(time.Minute)

	h.fieldValues.readErr = errors.New("connection reset")
	_, err := h.svc.Recalculate(h.ctx, view.ID.Hex())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	stored := h.kpis.items[view.ID]
	require.NotNil(t, stored.CurrentValue)
	assert.InDelta(t, 11000.0, *stored.CurrentValue, 1e-9)
	assert.Nil(t, stored.CalculationError)
	assert.Len(t, h.values.points, 1)

	err = h.svc.RecalculateForFields(context.Background(), []primitive.ObjectID{view.Sources[0].DataFieldID})
	require.Error(t, err)
	assert.NotNil(t, h.kpis.items[view.ID].CurrentValue)
}

func TestHistoryIsCachedAndInvalidatedOnRecalculation(t *testing.T) {
	h := newHarness()
	view := h.revenuePerEmployee(t)
	id := view.ID.Hex()

	first, err := h.svc.History(h.ctx, id, models.Period24h)
	require.NoError(t, err)
	require.Len(t, first.Data, 1)
	assert.Equal(t, models.IntervalHourly, first.Interval)
	assert.Contains(t, h.cache.items, "kpi:history:"+id+":24h")

	revenue := view.Sources[0].DataFieldID
	h.fieldValues.points = append(h.fieldValues.points, integration.DataValue{FieldID: revenue, Timestamp: fixedNow, Value: 121000.0})
	h.now = fixedNow.Add(time.Hour)

	_, err = h.svc.Recalculate(h.ctx, id)
	require.NoError(t, err)
	assert.Contains(t, h.cache.prefixes, "kpi:history:"+id+":")

	second, err := h.svc.History(h.ctx, id, models.Period24h)
	require.NoError(t, err)
	require.Len(t, second.Data, 2)
	assert.InDelta(t, 10.0, *second.Comparison.Change, 1e-9)
	assert.Equal(t, TrendUp, second.Comparison.Direction)
}

func TestKpiAccess(t *testing.T) {
	h := newHarness()
	view := h.revenuePerEmployee(t)
	id := view.ID.Hex()

	viewer := primitive.NewObjectID()
	editor := primitive.NewObjectID()
	stranger := primitive.NewObjectID()
	h.access.grant(view.ID, viewer, access.PermissionView)
	h.access.grant(view.ID, editor, access.PermissionEdit)

	t.Run("viewer reads but cannot edit", func(t *testing.T) {
		ctx := h.as(viewer, models.RoleViewer)
		got, err := h.svc.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Access.CanView)
		assert.False(t, got.Access.CanEdit)

		_, err = h.svc.Update(ctx, id, KpiRequest{Name: ptr("Renamed")})
		assert.True(t, apperr.Is(err, apperr.KindPermission))
	})

	t.Run("editor updates but cannot delete", func(t *testing.T) {
		ctx := h.as(editor, models.RoleEditor)
		got, err := h.svc.Update(ctx, id, KpiRequest{Name: ptr("Renamed")})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)

		err = h.svc.Delete(ctx, id)
		assert.True(t, apperr.Is(err, apperr.KindPermission))
	})

	t.Run("stranger is forbidden", func(t *testing.T) {
		_, err := h.svc.Get(h.as(stranger, models.RoleEditor), id)
		assert.True(t, apperr.Is(err, apperr.KindPermission))
	})

	t.Run("admin sees everything", func(t *testing.T) {
		list, err := h.svc.List(h.as(stranger, models.RoleAdmin))
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.True(t, list[0].Access.CanManage)
		assert.False(t, list[0].Access.IsOwner)
	})

	t.Run("list includes granted kpis", func(t *testing.T) {
		list, err := h.svc.List(h.as(viewer, models.RoleViewer))
		require.NoError(t, err)
		require.Len(t, list, 1)

		list, err = h.svc.List(h.as(stranger, models.RoleViewer))
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestUpdateClearsTarget(t *testing.T) {
	h := newHarness()
	view := h.revenuePerEmployee(t)

	updated, err := h.svc.Update(h.ctx, view.ID.Hex(), KpiRequest{ClearTarget: true})
	require.NoError(t, err)
	assert.Nil(t, updated.TargetValue)
	assert.Nil(t, updated.Progress)
	assert.Len(t, h.values.points, 1, "non-formula changes do not recalculate")
}

func TestDeleteRemovesHistoryAndGrants(t *testing.T) {
	h := newHarness()
	view := h.revenuePerEmployee(t)
	h.access.grant(view.ID, primitive.NewObjectID(), access.PermissionView)

	require.NoError(t, h.svc.Delete(h.ctx, view.ID.Hex()))

	assert.Empty(t, h.kpis.items)
	assert.Empty(t, h.values.points)
	require.Len(t, h.access.removed, 1)
	assert.Equal(t, access.ResourceKpi, h.access.removed[0].Type)
	assert.Equal(t, []primitive.ObjectID{view.ID}, h.links.deleted)

	_, err := h.svc.Get(h.ctx, view.ID.Hex())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRecalculateForFieldsTouchesDependentsOnly(t *testing.T) {
	h := newHarness()
	view := h.revenuePerEmployee(t)

	other := h.field("tickets", integration.FieldNumber, 3.0)
	_, err := h.svc.Create(h.ctx, KpiRequest{
		Name:    ptr("Tickets"),
		Formula: ptr("tickets * 2"),
		Sources: &[]KpiSource{{DataFieldID: other, Alias: "tickets"}},
	})
	require.NoError(t, err)
	before := len(h.values.points)

	ids, err := h.svc.KpisUsingFields(context.Background(), []primitive.ObjectID{view.Sources[0].DataFieldID})
	require.NoError(t, err)
	assert.Equal(t, []string{view.ID.Hex()}, ids)

	require.NoError(t, h.svc.RecalculateForFields(context.Background(), []primitive.ObjectID{view.Sources[0].DataFieldID}))
	require.Len(t, h.values.points, before+1)
	assert.Equal(t, view.ID, h.values.points[before].KpiID)
}

func TestValidateFormulaChecksFields(t *testing.T) {
	h := newHarness()
	label := h.field("label", integration.FieldString, "x")

	result, err := h.svc.ValidateFormula(h.ctx, ValidateFormulaRequest{
		Formula: "label + 1",
		Sources: []KpiSource{{DataFieldID: label, Alias: "label"}},
	})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors[0], "only NUMBER fields")

	result, err = h.svc.ValidateFormula(h.ctx, ValidateFormulaRequest{
		Formula: "a + b",
		Sources: []KpiSource{{Alias: "a"}},
	})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, []string{"b"}, result.MissingAliases)
}

func TestExportWritesHistoryWorkbook(t *testing.T) {
	h := newHarness()
	view := h.revenuePerEmployee(t)

	filename, data, err := h.svc.Export(h.ctx, view.ID.Hex(), models.Period7d)
	require.NoError(t, err)
	assert.Equal(t, "revenue-per-employee-7d.xlsx", filename)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("History")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Timestamp", "Value"}, rows[0])
	assert.Equal(t, "11000", rows[1][1])
}
