package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
)

const (
	DonorEnterprise DonorType = "enterprise"
	DonorIndividual DonorType = "individual"
)

const (
	KindDonation RecordKind = "donation"
	KindFunding  RecordKind = "funding"
)

// DateLayout is the wire and storage layout of a calendar date.
const DateLayout = "2006-01-02"

type (
	// Status is the review lifecycle shared by donations and fundings.
	Status string

	DonorType string

	// RecordKind tells donation and funding records apart in review and events.
	RecordKind string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}
)

var (
	ErrInvalidDay          = errors.New("invalid day")
	ErrInvalidMonth        = errors.New("invalid month")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrRequiredField       = errors.New("required field missing")
	ErrFieldTooLong        = errors.New("field too long")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidDonorType    = errors.New("invalid donor type")
	ErrInvalidCategory     = errors.New("invalid purpose category")
	ErrInvalidKind         = errors.New("invalid record kind")
	ErrInvalidTransition   = errors.New("status transition not allowed")
	ErrOpinionRequired     = errors.New("review opinion required")
	ErrNotFound            = errors.New("record not found")
	ErrMonthNotFound       = errors.New("month not found")
	ErrBudgetItemsRequired = errors.New("at least one budget item required")
	ErrBudgetMismatch      = errors.New("budget items do not sum to amount")
)

func requiredField(name string) error {
	return fmt.Errorf("%w: %s", ErrRequiredField, name)
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ParseStatus accepts one of the four lifecycle states.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if err := st.Validate(); err != nil {
		return "", err
	}
	return st, nil
}

func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCompleted:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidStatus, string(s))
}

// Counts reports whether a record in this state contributes to the monthly financials.
func (s Status) Counts() bool {
	return s == StatusApproved || s == StatusCompleted
}

// Transition returns the state reached by a review action, or ErrInvalidTransition.
// Approve and reject apply to pending records, complete to approved ones.
func (s Status) Transition(action ReviewAction) (Status, error) {
	switch {
	case action == ActionApprove && s == StatusPending:
		return StatusApproved, nil
	case action == ActionReject && s == StatusPending:
		return StatusRejected, nil
	case action == ActionComplete && s == StatusApproved:
		return StatusCompleted, nil
	}
	return s, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, action, s)
}

// Label is the display name used in reports.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "待审核"
	case StatusApproved:
		return "已批准"
	case StatusRejected:
		return "已拒绝"
	case StatusCompleted:
		return "已完成"
	}
	return string(s)
}

func (t DonorType) Validate() error {
	switch t {
	case DonorEnterprise, DonorIndividual:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidDonorType, string(t))
}

// Category is the income category a donation is reported under.
func (t DonorType) Category() string {
	if t == DonorEnterprise {
		return "企业捐助"
	}
	return "个人捐助"
}

func ParseKind(s string) (RecordKind, error) {
	k := RecordKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindDonation, KindFunding:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// IDPrefix is prepended to generated record identifiers.
func (k RecordKind) IDPrefix() string {
	if k == KindFunding {
		return "FUND"
	}
	return "DON"
}

// ReviewAction is a reviewer decision on a pending or approved record.
type ReviewAction string

const (
	ActionApprove  ReviewAction = "approve"
	ActionReject   ReviewAction = "reject"
	ActionComplete ReviewAction = "complete"
)

func ParseReviewAction(s string) (ReviewAction, error) {
	a := ReviewAction(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionApprove, ActionReject, ActionComplete:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, s)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// IsEmpty returns true if the date is zero (used for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// MonthKey is the YYYY-MM bucket of the date: the first seven characters of its ISO form.
func (d Date) MonthKey() string {
	s := d.String()
	if len(s) < 7 {
		return s
	}
	return s[:7]
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(b))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
