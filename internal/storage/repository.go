package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"edufund/internal/core"

	_ "modernc.org/sqlite"
)

const (
	sideIncome  = "income"
	sideExpense = "expense"

	// recordedAtLayout is fixed width so recorded_at sorts as text.
	recordedAtLayout = "2006-01-02T15:04:05.000000000Z"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; transactions replacing whole collections must not interleave.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return NewSQLiteRepositoryFromDB(db), nil
}

// NewSQLiteRepositoryFromDB wraps an already migrated database.
func NewSQLiteRepositoryFromDB(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database answers.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func notFound(err error, what, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
	}
	return fmt.Errorf("get %s %s: %w", what, id, err)
}

func deletedOrNotFound(n int64, err error, what, id string) error {
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", what, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
	}
	return nil
}

// Donations

func (r *SQLiteRepository) LoadDonations(ctx context.Context) ([]core.Donation, error) {
	rows, err := r.queries.ListDonations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list donations: %w", err)
	}
	out := make([]core.Donation, 0, len(rows))
	for _, row := range rows {
		d, err := donationFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *SQLiteRepository) SaveDonations(ctx context.Context, ds []core.Donation) error {
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.DeleteAllDonations(ctx); err != nil {
			return fmt.Errorf("clear donations: %w", err)
		}
		for _, d := range ds {
			if err := q.UpsertDonation(ctx, donationToRow(d)); err != nil {
				return fmt.Errorf("insert donation %s: %w", d.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Donations saved to SQLite", "count", len(ds))
	return nil
}

func (r *SQLiteRepository) GetDonation(ctx context.Context, id string) (core.Donation, error) {
	row, err := r.queries.GetDonation(ctx, id)
	if err != nil {
		return core.Donation{}, notFound(err, "donation", id)
	}
	return donationFromRow(row)
}

func (r *SQLiteRepository) UpsertDonation(ctx context.Context, d core.Donation) error {
	if err := r.queries.UpsertDonation(ctx, donationToRow(d)); err != nil {
		return fmt.Errorf("upsert donation %s: %w", d.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteDonation(ctx context.Context, id string) error {
	n, err := r.queries.DeleteDonation(ctx, id)
	return deletedOrNotFound(n, err, "donation", id)
}

// Fundings

func (r *SQLiteRepository) LoadFundings(ctx context.Context) ([]core.Funding, error) {
	rows, err := r.queries.ListFundings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list fundings: %w", err)
	}
	items, err := r.queries.ListBudgetItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list budget items: %w", err)
	}
	byFunding := make(map[string][]core.BudgetItem, len(rows))
	for _, it := range items {
		byFunding[it.FundingID] = append(byFunding[it.FundingID], budgetItemFromRow(it))
	}

	out := make([]core.Funding, 0, len(rows))
	for _, row := range rows {
		f, err := fundingFromRow(row, byFunding[row.ID])
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func (r *SQLiteRepository) SaveFundings(ctx context.Context, fs []core.Funding) error {
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.DeleteAllBudgetItems(ctx); err != nil {
			return fmt.Errorf("clear budget items: %w", err)
		}
		if err := q.DeleteAllFundings(ctx); err != nil {
			return fmt.Errorf("clear fundings: %w", err)
		}
		for _, f := range fs {
			if err := writeFunding(ctx, q, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Fundings saved to SQLite", "count", len(fs))
	return nil
}

func (r *SQLiteRepository) GetFunding(ctx context.Context, id string) (core.Funding, error) {
	row, err := r.queries.GetFunding(ctx, id)
	if err != nil {
		return core.Funding{}, notFound(err, "funding", id)
	}
	items, err := r.queries.ListBudgetItemsForFunding(ctx, id)
	if err != nil {
		return core.Funding{}, fmt.Errorf("list budget items for %s: %w", id, err)
	}
	budget := make([]core.BudgetItem, 0, len(items))
	for _, it := range items {
		budget = append(budget, budgetItemFromRow(it))
	}
	return fundingFromRow(row, budget)
}

func (r *SQLiteRepository) UpsertFunding(ctx context.Context, f core.Funding) error {
	return r.inTx(ctx, func(q *Queries) error {
		if err := q.DeleteBudgetItemsForFunding(ctx, f.ID); err != nil {
			return fmt.Errorf("clear budget items for %s: %w", f.ID, err)
		}
		return writeFunding(ctx, q, f)
	})
}

func (r *SQLiteRepository) DeleteFunding(ctx context.Context, id string) error {
	var n int64
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.DeleteBudgetItemsForFunding(ctx, id); err != nil {
			return fmt.Errorf("delete budget items for %s: %w", id, err)
		}
		var err error
		n, err = q.DeleteFunding(ctx, id)
		return err
	})
	return deletedOrNotFound(n, err, "funding", id)
}

func writeFunding(ctx context.Context, q *Queries, f core.Funding) error {
	if err := q.UpsertFunding(ctx, fundingToRow(f)); err != nil {
		return fmt.Errorf("upsert funding %s: %w", f.ID, err)
	}
	for i, it := range f.BudgetItems {
		err := q.InsertBudgetItem(ctx, BudgetItem{
			FundingID:   f.ID,
			Position:    int64(i),
			ItemID:      it.ID,
			Item:        it.Item,
			AmountCents: it.Amount.Cents,
			Description: it.Description,
		})
		if err != nil {
			return fmt.Errorf("insert budget item %d of %s: %w", i, f.ID, err)
		}
	}
	return nil
}

// Monthly financials

func (r *SQLiteRepository) LoadFinancials(ctx context.Context) ([]core.MonthlyFinancial, error) {
	months, err := r.queries.ListMonthlyFinancials(ctx)
	if err != nil {
		return nil, fmt.Errorf("list monthly financials: %w", err)
	}
	lines, err := r.queries.ListFinancialLineItems(ctx)
	if err != nil {
		return nil, fmt.Errorf("list financial line items: %w", err)
	}

	out := make([]core.MonthlyFinancial, 0, len(months))
	index := make(map[string]int, len(months))
	for i, m := range months {
		index[m.Month] = i
		out = append(out, core.MonthlyFinancial{
			Month:          m.Month,
			Income:         core.Money{Cents: m.IncomeCents},
			Expense:        core.Money{Cents: m.ExpenseCents},
			Balance:        core.Money{Cents: m.BalanceCents},
			IncomeDetails:  []core.LineItem{},
			ExpenseDetails: []core.LineItem{},
		})
	}
	for _, l := range lines {
		i, ok := index[l.Month]
		if !ok {
			continue
		}
		item, err := lineItemFromRow(l)
		if err != nil {
			return nil, err
		}
		if l.Side == sideIncome {
			out[i].IncomeDetails = append(out[i].IncomeDetails, item)
		} else {
			out[i].ExpenseDetails = append(out[i].ExpenseDetails, item)
		}
	}
	return out, nil
}

// ReplaceFinancials swaps the stored financials for fs in one transaction.
func (r *SQLiteRepository) ReplaceFinancials(ctx context.Context, fs []core.MonthlyFinancial) error {
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.DeleteAllFinancialLineItems(ctx); err != nil {
			return fmt.Errorf("clear financial line items: %w", err)
		}
		if err := q.DeleteAllMonthlyFinancials(ctx); err != nil {
			return fmt.Errorf("clear monthly financials: %w", err)
		}
		for _, mf := range fs {
			err := q.InsertMonthlyFinancial(ctx, MonthlyFinancial{
				Month:        mf.Month,
				IncomeCents:  mf.Income.Cents,
				ExpenseCents: mf.Expense.Cents,
				BalanceCents: mf.Balance.Cents,
			})
			if err != nil {
				return fmt.Errorf("insert monthly financial %s: %w", mf.Month, err)
			}
			if err := insertLineItems(ctx, q, mf.Month, sideIncome, mf.IncomeDetails); err != nil {
				return err
			}
			if err := insertLineItems(ctx, q, mf.Month, sideExpense, mf.ExpenseDetails); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.DebugContext(ctx, "Monthly financials replaced", "months", len(fs))
	return nil
}

func insertLineItems(ctx context.Context, q *Queries, month, side string, items []core.LineItem) error {
	for i, it := range items {
		err := q.InsertFinancialLineItem(ctx, FinancialLineItem{
			Month:       month,
			Side:        side,
			Position:    int64(i),
			RecordID:    it.ID,
			Date:        it.Date.String(),
			Description: it.Description,
			AmountCents: it.Amount.Cents,
			Category:    it.Category,
		})
		if err != nil {
			return fmt.Errorf("insert %s line %d of %s: %w", side, i, month, err)
		}
	}
	return nil
}

// Users

func (r *SQLiteRepository) GetUser(ctx context.Context, username string) (core.User, error) {
	row, err := r.queries.GetUser(ctx, username)
	if err != nil {
		return core.User{}, notFound(err, "user", username)
	}
	created, err := time.Parse(time.RFC3339, row.CreatedAt)
	if err != nil {
		return core.User{}, fmt.Errorf("parse created_at of %s: %w", username, err)
	}
	return core.User{
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		Phone:        row.Phone,
		CreatedAt:    created,
	}, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	n, err := r.queries.CreateUser(ctx, User{
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Phone:        u.Phone,
		CreatedAt:    u.CreatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("create user %s: %w", u.Username, err)
	}
	if n == 0 {
		return fmt.Errorf("create user %s: %w", u.Username, core.ErrUsernameTaken)
	}
	return nil
}

func (r *SQLiteRepository) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	n, err := r.queries.UpdateUserPassword(ctx, hash, username)
	if err != nil {
		return fmt.Errorf("update password of %s: %w", username, err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", username, core.ErrNotFound)
	}
	return nil
}

// Detections

func (r *SQLiteRepository) ListDetections(ctx context.Context) ([]core.Detection, error) {
	rows, err := r.queries.ListDetections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list detections: %w", err)
	}
	out := make([]core.Detection, 0, len(rows))
	for _, row := range rows {
		var d core.Detection
		if err := json.Unmarshal([]byte(row.Payload), &d); err != nil {
			return nil, fmt.Errorf("decode detection %s: %w", row.ID, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *SQLiteRepository) GetDetection(ctx context.Context, id string) (core.Detection, error) {
	row, err := r.queries.GetDetection(ctx, id)
	if err != nil {
		return core.Detection{}, notFound(err, "detection", id)
	}
	var d core.Detection
	if err := json.Unmarshal([]byte(row.Payload), &d); err != nil {
		return core.Detection{}, fmt.Errorf("decode detection %s: %w", id, err)
	}
	return d, nil
}

func (r *SQLiteRepository) UpsertDetection(ctx context.Context, d core.Detection) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode detection %s: %w", d.ID, err)
	}
	err = r.queries.UpsertDetection(ctx, Detection{
		ID:          d.ID,
		ProductCode: d.Device.ProductCode,
		Payload:     string(payload),
		RecordedAt:  d.Timestamp.UTC().Format(recordedAtLayout),
	})
	if err != nil {
		return fmt.Errorf("upsert detection %s: %w", d.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteDetection(ctx context.Context, id string) error {
	n, err := r.queries.DeleteDetection(ctx, id)
	return deletedOrNotFound(n, err, "detection", id)
}

// Row conversions

func donationToRow(d core.Donation) Donation {
	return Donation{
		ID:              d.ID,
		DonorType:       string(d.DonorType),
		DonorName:       d.DonorName,
		ContactPhone:    d.ContactPhone,
		IDNumber:        d.IDNumber,
		AmountCents:     d.Amount.Cents,
		Purpose:         d.Purpose,
		Notes:           d.Notes,
		Status:          string(d.Status),
		ApplicationDate: d.ApplicationDate.String(),
		Certificate:     d.Certificate,
		ReviewOpinion:   d.ReviewOpinion,
	}
}

func donationFromRow(row Donation) (core.Donation, error) {
	date, err := core.ParseDate(row.ApplicationDate)
	if err != nil {
		return core.Donation{}, fmt.Errorf("donation %s: %w", row.ID, err)
	}
	return core.Donation{
		ID:              row.ID,
		DonorType:       core.DonorType(row.DonorType),
		DonorName:       row.DonorName,
		ContactPhone:    row.ContactPhone,
		IDNumber:        row.IDNumber,
		Amount:          core.Money{Cents: row.AmountCents},
		Purpose:         row.Purpose,
		Notes:           row.Notes,
		Status:          core.Status(row.Status),
		ApplicationDate: date,
		Certificate:     row.Certificate,
		ReviewOpinion:   row.ReviewOpinion,
	}, nil
}

func fundingToRow(f core.Funding) Funding {
	row := Funding{
		ID:              f.ID,
		InstitutionName: f.InstitutionName,
		AmountCents:     f.Amount.Cents,
		Purpose:         f.Purpose,
		PurposeCategory: string(f.PurposeCategory),
		Description:     f.Description,
		Status:          string(f.Status),
		ApplicationDate: f.ApplicationDate.String(),
		ReviewOpinion:   f.ReviewOpinion,
	}
	if f.ApprovalDate != nil && !f.ApprovalDate.IsEmpty() {
		row.ApprovalDate = sql.NullString{String: f.ApprovalDate.String(), Valid: true}
	}
	return row
}

func fundingFromRow(row Funding, budget []core.BudgetItem) (core.Funding, error) {
	date, err := core.ParseDate(row.ApplicationDate)
	if err != nil {
		return core.Funding{}, fmt.Errorf("funding %s: %w", row.ID, err)
	}
	if budget == nil {
		budget = []core.BudgetItem{}
	}
	f := core.Funding{
		ID:              row.ID,
		InstitutionName: row.InstitutionName,
		Amount:          core.Money{Cents: row.AmountCents},
		Purpose:         row.Purpose,
		PurposeCategory: core.PurposeCategory(row.PurposeCategory),
		Description:     row.Description,
		BudgetItems:     budget,
		Status:          core.Status(row.Status),
		ApplicationDate: date,
		ReviewOpinion:   row.ReviewOpinion,
	}
	if row.ApprovalDate.Valid {
		approved, err := core.ParseDate(row.ApprovalDate.String)
		if err != nil {
			return core.Funding{}, fmt.Errorf("funding %s approval date: %w", row.ID, err)
		}
		f.ApprovalDate = &approved
	}
	return f, nil
}

func budgetItemFromRow(row BudgetItem) core.BudgetItem {
	return core.BudgetItem{
		ID:          row.ItemID,
		Item:        row.Item,
		Amount:      core.Money{Cents: row.AmountCents},
		Description: row.Description,
	}
}

func lineItemFromRow(row FinancialLineItem) (core.LineItem, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.LineItem{}, fmt.Errorf("line item %s: %w", row.RecordID, err)
	}
	return core.LineItem{
		ID:          row.RecordID,
		Date:        date,
		Description: row.Description,
		Amount:      core.Money{Cents: row.AmountCents},
		Category:    row.Category,
	}, nil
}
