package core

import (
	"regexp"
	"strings"
)

// Donation is an income record: money offered to the foundation by an enterprise or a person.
type Donation struct {
	ID              string    `json:"id"`
	DonorType       DonorType `json:"donorType"`
	DonorName       string    `json:"donorName"`
	ContactPhone    string    `json:"contactPhone"`
	IDNumber        string    `json:"idNumber"`
	Amount          Money     `json:"amount"`
	Purpose         string    `json:"purpose"`
	Notes           string    `json:"notes,omitempty"`
	Status          Status    `json:"status"`
	ApplicationDate Date      `json:"applicationDate"`
	Certificate     string    `json:"certificate,omitempty"`
	ReviewOpinion   string    `json:"reviewOpinion,omitempty"`
}

// Validate checks the fields a donation application must carry before it is stored.
func (d Donation) Validate() error {
	if err := d.DonorType.Validate(); err != nil {
		return err
	}
	switch {
	case blank(d.DonorName):
		return requiredField("donorName")
	case blank(d.ContactPhone):
		return requiredField("contactPhone")
	case blank(d.IDNumber):
		return requiredField("idNumber")
	case blank(d.Purpose):
		return requiredField("purpose")
	}
	if len(d.DonorName) > 200 || len(d.Purpose) > 500 {
		return ErrFieldTooLong
	}
	if err := d.Amount.Validate(); err != nil {
		return err
	}
	if err := d.Status.Validate(); err != nil {
		return err
	}
	return d.ApplicationDate.Validate()
}

// LineItem is the donation's contribution to its month's income details.
func (d Donation) LineItem() LineItem {
	return LineItem{
		ID:          d.ID,
		Date:        d.ApplicationDate,
		Description: d.DonorName + "的捐助",
		Amount:      d.Amount,
		Category:    d.DonorType.Category(),
	}
}

// Matches reports whether the donation passes a list filter.
func (d Donation) Matches(f Filter) bool {
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	return f.matchesKeyword(d.DonorName, d.Purpose, d.ID)
}

// Filter narrows record listings. A zero Status means every status.
type Filter struct {
	Status  Status
	Keyword string
}

func (f Filter) matchesKeyword(fields ...string) bool {
	kw := strings.ToLower(strings.TrimSpace(f.Keyword))
	if kw == "" {
		return true
	}
	for _, s := range fields {
		if strings.Contains(strings.ToLower(s), kw) {
			return true
		}
	}
	return false
}

var mobilePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// ValidPhone reports whether s is a mainland mobile number.
func ValidPhone(s string) bool {
	return mobilePattern.MatchString(strings.TrimSpace(s))
}
