package core

import (
	"errors"
	"testing"
	"time"
)

func TestNewDetectionDraft(t *testing.T) {
	d := NewDetectionDraft(time.Date(2025, 3, 8, 14, 0, 0, 0, time.UTC))
	if d.Device.ProductName != DefaultProductName || d.Device.InspectionDate != "2025-03-08" {
		t.Fatalf("unexpected device defaults: %+v", d.Device)
	}
	if len(d.Experiment) != 4 {
		t.Fatalf("expected four default rows, got %d", len(d.Experiment))
	}
	if r := d.Experiment[0]; r.Item != "PT1" || r.LowerLimit != "19.6%" || r.UpperLimit != "20.4%" {
		t.Fatalf("unexpected first row: %+v", r)
	}
}

func TestDetectionValidate(t *testing.T) {
	d := NewDetectionDraft(time.Now())
	if err := d.Validate(); !errors.Is(err, ErrRequiredField) {
		t.Fatalf("expected product code required, got %v", err)
	}
	d.Device.ProductCode = "JC-001"
	if err := d.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	d.Experiment = nil
	if err := d.Validate(); !errors.Is(err, ErrExperimentRowsRequired) {
		t.Fatalf("expected rows required, got %v", err)
	}
}
