// Package ports declares the persistence interfaces the services depend on.
//
// Every collection offers a load-all / save-all pair; save-all replaces the
// whole collection. Single-record helpers exist for the HTTP layer so a review
// action does not rewrite every row.
package ports

import (
	"context"

	"edufund/internal/core"
)

type (
	DonationStore interface {
		LoadDonations(ctx context.Context) ([]core.Donation, error)
		SaveDonations(ctx context.Context, ds []core.Donation) error
		// GetDonation returns core.ErrNotFound when id is unknown.
		GetDonation(ctx context.Context, id string) (core.Donation, error)
		UpsertDonation(ctx context.Context, d core.Donation) error
		// DeleteDonation returns core.ErrNotFound when id is unknown.
		DeleteDonation(ctx context.Context, id string) error
	}

	FundingStore interface {
		LoadFundings(ctx context.Context) ([]core.Funding, error)
		SaveFundings(ctx context.Context, fs []core.Funding) error
		GetFunding(ctx context.Context, id string) (core.Funding, error)
		UpsertFunding(ctx context.Context, f core.Funding) error
		DeleteFunding(ctx context.Context, id string) error
	}

	// FinancialStore holds the derived monthly financials. They are only ever
	// replaced as a whole after a recomputation.
	FinancialStore interface {
		LoadFinancials(ctx context.Context) ([]core.MonthlyFinancial, error)
		ReplaceFinancials(ctx context.Context, fs []core.MonthlyFinancial) error
	}

	UserStore interface {
		// GetUser returns core.ErrNotFound when the username is unknown.
		GetUser(ctx context.Context, username string) (core.User, error)
		// CreateUser returns core.ErrUsernameTaken when the username exists.
		CreateUser(ctx context.Context, u core.User) error
		UpdatePasswordHash(ctx context.Context, username, hash string) error
	}

	DetectionStore interface {
		ListDetections(ctx context.Context) ([]core.Detection, error)
		GetDetection(ctx context.Context, id string) (core.Detection, error)
		UpsertDetection(ctx context.Context, d core.Detection) error
		DeleteDetection(ctx context.Context, id string) error
	}

	// Store is everything a storage backend provides.
	Store interface {
		DonationStore
		FundingStore
		FinancialStore
		UserStore
		DetectionStore
	}
)
