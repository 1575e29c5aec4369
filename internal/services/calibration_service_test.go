package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edufund/internal/core"
	"edufund/internal/store/memory"
)

func TestCalibrationSaveAndList(t *testing.T) {
	ctx := context.Background()
	svc := NewCalibrationService(memory.New())
	clock := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }
	svc.newID = func() string { return "det-1" }

	draft := svc.NewDraft()
	assert.Equal(t, core.DefaultProductName, draft.Device.ProductName)
	assert.Equal(t, "2025-03-01", draft.Device.InspectionDate)
	require.Len(t, draft.Experiment, 4)

	_, err := svc.Save(ctx, draft)
	require.ErrorIs(t, err, core.ErrRequiredField, "product code is required")

	draft.Device.ProductCode = "PT-2025-001"
	saved, err := svc.Save(ctx, draft)
	require.NoError(t, err)
	assert.Equal(t, "det-1", saved.ID)
	assert.Equal(t, clock, saved.Timestamp)

	clock = clock.Add(time.Hour)
	svc.newID = func() string { return "det-2" }
	second := draft
	second.Experiment = []core.ExperimentRow{{ID: "1", Item: "PT1", MeasuredValue: "20.1%"}}
	_, err = svc.Save(ctx, second)
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "det-2", list[0].ID)

	saved.Device.Notes = "复检"
	_, err = svc.Save(ctx, saved)
	require.NoError(t, err)
	got, err := svc.Get(ctx, "det-1")
	require.NoError(t, err)
	assert.Equal(t, "复检", got.Device.Notes)

	require.NoError(t, svc.Delete(ctx, "det-1"))
	_, err = svc.Get(ctx, "det-1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}
