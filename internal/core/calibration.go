package core

import (
	"errors"
	"time"
)

const DefaultProductName = "互感器二次压降检测仪"

var ErrExperimentRowsRequired = errors.New("at least one experiment row required")

// DeviceInfo identifies the instrument under calibration.
type DeviceInfo struct {
	ProductCode    string `json:"productCode"`
	ProductName    string `json:"productName"`
	Manufacturer   string `json:"manufacturer"`
	ProductionDate string `json:"productionDate"`
	InspectionDate string `json:"inspectionDate"`
	Origin         string `json:"origin"`
	ModelNumber    string `json:"modelNumber"`
	Notes          string `json:"notes,omitempty"`
}

// ExperimentRow is one measurement-range check. Values are kept exactly as the
// operator typed them, units and percent signs included; acceptance is judged
// by the person reading the report.
type ExperimentRow struct {
	ID            string `json:"id"`
	Item          string `json:"item"`
	Gear          string `json:"gear"`
	Percentage    string `json:"percentage"`
	LowerLimit    string `json:"lowerLimit"`
	UpperLimit    string `json:"upperLimit"`
	MeasuredValue string `json:"measuredValue"`
}

// PhaseReading holds the per-phase values of the secondary voltage drop test.
type PhaseReading struct {
	F   string `json:"f"`
	D   string `json:"d"`
	DU  string `json:"dU"`
	Upt string `json:"Upt"`
	Uyb string `json:"Uyb"`
}

type Phases struct {
	AO PhaseReading `json:"ao"`
	BO PhaseReading `json:"bo"`
	CO PhaseReading `json:"co"`
}

// ResultData is the on-site result capture.
type ResultData struct {
	SecondaryVoltage string   `json:"secondaryVoltage"`
	MeteringPoint    string   `json:"meteringPoint"`
	TestDate         string   `json:"testDate"`
	TanPhi           string   `json:"tanPhi"`
	Temperature      string   `json:"temperature"`
	Humidity         string   `json:"humidity"`
	Phases           Phases   `json:"phases"`
	FinalResults     []string `json:"finalResults"`
	RValue           string   `json:"rValue"`
}

// Detection is one saved calibration session.
type Detection struct {
	ID         string          `json:"id"`
	Device     DeviceInfo      `json:"deviceInfo"`
	Experiment []ExperimentRow `json:"experimentData"`
	Result     ResultData      `json:"resultData"`
	Timestamp  time.Time       `json:"timestamp"`
}

func (d Detection) Validate() error {
	if blank(d.Device.ProductCode) {
		return requiredField("productCode")
	}
	if len(d.Experiment) == 0 {
		return ErrExperimentRowsRequired
	}
	for _, row := range d.Experiment {
		if blank(row.Item) {
			return requiredField("experimentData.item")
		}
	}
	return nil
}

// NewDeviceInfo returns the form defaults for a new session.
func NewDeviceInfo(today time.Time) DeviceInfo {
	return DeviceInfo{
		ProductName:    DefaultProductName,
		InspectionDate: DateOf(today).String(),
	}
}

// DefaultExperimentRows are the four standard range checks.
func DefaultExperimentRows() []ExperimentRow {
	return []ExperimentRow{
		{ID: "1", Item: "PT1", Gear: "100V", Percentage: "20%", LowerLimit: "19.6%", UpperLimit: "20.4%"},
		{ID: "2", Item: "PT2", Gear: "100V", Percentage: "100%", LowerLimit: "98.0%", UpperLimit: "102.0%"},
		{ID: "3", Item: "CT1", Gear: "5A", Percentage: "5%", LowerLimit: "4.90%", UpperLimit: "5.1%"},
		{ID: "4", Item: "CT2", Gear: "5A", Percentage: "100%", LowerLimit: "98.0", UpperLimit: "102.0%"},
	}
}

// NewDetectionDraft is an unsaved session prefilled with defaults.
func NewDetectionDraft(today time.Time) Detection {
	return Detection{
		Device:     NewDeviceInfo(today),
		Experiment: DefaultExperimentRows(),
		Result: ResultData{
			TestDate:     DateOf(today).String(),
			FinalResults: []string{},
		},
	}
}
