package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"edufund/internal/core"
	"edufund/internal/log"
	"edufund/internal/ports"
)

// CalibrationService stores voltage-drop detection sessions as entered.
// It records readings only and never judges them.
type CalibrationService struct {
	store ports.DetectionStore
	now   func() time.Time
	newID func() string
}

func NewCalibrationService(store ports.DetectionStore) *CalibrationService {
	return &CalibrationService{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// NewDraft returns an unsaved session with today's dates and the standard rows.
func (s *CalibrationService) NewDraft() core.Detection {
	return core.NewDetectionDraft(s.now())
}

// Save upserts d, assigning an ID when it has none and stamping the save time.
func (s *CalibrationService) Save(ctx context.Context, d core.Detection) (core.Detection, error) {
	if err := d.Validate(); err != nil {
		return core.Detection{}, err
	}
	d.ID = strings.TrimSpace(d.ID)
	if d.ID == "" {
		d.ID = s.newID()
	}
	if d.Result.FinalResults == nil {
		d.Result.FinalResults = []string{}
	}
	d.Timestamp = s.now().UTC()
	if err := s.store.UpsertDetection(ctx, d); err != nil {
		return core.Detection{}, fmt.Errorf("save detection: %w", err)
	}
	log.FromContext(ctx).WithComponent(log.ComponentCalibration).InfoContext(ctx, "Detection saved",
		log.FieldDetectionID, d.ID,
		"product_code", d.Device.ProductCode)
	return d, nil
}

func (s *CalibrationService) Get(ctx context.Context, id string) (core.Detection, error) {
	return s.store.GetDetection(ctx, id)
}

// List returns saved sessions, newest first.
func (s *CalibrationService) List(ctx context.Context) ([]core.Detection, error) {
	return s.store.ListDetections(ctx)
}

func (s *CalibrationService) Delete(ctx context.Context, id string) error {
	return s.store.DeleteDetection(ctx, id)
}
