package storage

import "database/sql"

type Donation struct {
	ID              string
	DonorType       string
	DonorName       string
	ContactPhone    string
	IDNumber        string
	AmountCents     int64
	Purpose         string
	Notes           string
	Status          string
	ApplicationDate string
	Certificate     string
	ReviewOpinion   string
}

type Funding struct {
	ID              string
	InstitutionName string
	AmountCents     int64
	Purpose         string
	PurposeCategory string
	Description     string
	Status          string
	ApplicationDate string
	ApprovalDate    sql.NullString
	ReviewOpinion   string
}

type BudgetItem struct {
	FundingID   string
	Position    int64
	ItemID      string
	Item        string
	AmountCents int64
	Description string
}

type MonthlyFinancial struct {
	Month        string
	IncomeCents  int64
	ExpenseCents int64
	BalanceCents int64
}

type FinancialLineItem struct {
	Month       string
	Side        string
	Position    int64
	RecordID    string
	Date        string
	Description string
	AmountCents int64
	Category    string
}

type User struct {
	Username     string
	PasswordHash string
	Phone        string
	CreatedAt    string
}

type Detection struct {
	ID          string
	ProductCode string
	Payload     string
	RecordedAt  string
}
