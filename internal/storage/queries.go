package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const donationColumns = `id, donor_type, donor_name, contact_phone, id_number, amount_cents, purpose, notes, status, application_date, certificate, review_opinion`

func scanDonation(row interface{ Scan(...any) error }) (Donation, error) {
	var d Donation
	err := row.Scan(
		&d.ID, &d.DonorType, &d.DonorName, &d.ContactPhone, &d.IDNumber, &d.AmountCents,
		&d.Purpose, &d.Notes, &d.Status, &d.ApplicationDate, &d.Certificate, &d.ReviewOpinion,
	)
	return d, err
}

const listDonations = `-- name: ListDonations :many
SELECT ` + donationColumns + ` FROM donations ORDER BY rowid`

func (q *Queries) ListDonations(ctx context.Context) ([]Donation, error) {
	rows, err := q.db.QueryContext(ctx, listDonations)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getDonation = `-- name: GetDonation :one
SELECT ` + donationColumns + ` FROM donations WHERE id = ?`

func (q *Queries) GetDonation(ctx context.Context, id string) (Donation, error) {
	return scanDonation(q.db.QueryRowContext(ctx, getDonation, id))
}

const upsertDonation = `-- name: UpsertDonation :exec
INSERT INTO donations (` + donationColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    donor_type = excluded.donor_type,
    donor_name = excluded.donor_name,
    contact_phone = excluded.contact_phone,
    id_number = excluded.id_number,
    amount_cents = excluded.amount_cents,
    purpose = excluded.purpose,
    notes = excluded.notes,
    status = excluded.status,
    application_date = excluded.application_date,
    certificate = excluded.certificate,
    review_opinion = excluded.review_opinion`

func (q *Queries) UpsertDonation(ctx context.Context, d Donation) error {
	_, err := q.db.ExecContext(ctx, upsertDonation,
		d.ID, d.DonorType, d.DonorName, d.ContactPhone, d.IDNumber, d.AmountCents,
		d.Purpose, d.Notes, d.Status, d.ApplicationDate, d.Certificate, d.ReviewOpinion,
	)
	return err
}

const deleteDonation = `-- name: DeleteDonation :execrows
DELETE FROM donations WHERE id = ?`

func (q *Queries) DeleteDonation(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteDonation, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteAllDonations = `-- name: DeleteAllDonations :exec
DELETE FROM donations`

func (q *Queries) DeleteAllDonations(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllDonations)
	return err
}

const fundingColumns = `id, institution_name, amount_cents, purpose, purpose_category, description, status, application_date, approval_date, review_opinion`

func scanFunding(row interface{ Scan(...any) error }) (Funding, error) {
	var f Funding
	err := row.Scan(
		&f.ID, &f.InstitutionName, &f.AmountCents, &f.Purpose, &f.PurposeCategory,
		&f.Description, &f.Status, &f.ApplicationDate, &f.ApprovalDate, &f.ReviewOpinion,
	)
	return f, err
}

const listFundings = `-- name: ListFundings :many
SELECT ` + fundingColumns + ` FROM fundings ORDER BY rowid`

func (q *Queries) ListFundings(ctx context.Context) ([]Funding, error) {
	rows, err := q.db.QueryContext(ctx, listFundings)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Funding
	for rows.Next() {
		f, err := scanFunding(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, f)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getFunding = `-- name: GetFunding :one
SELECT ` + fundingColumns + ` FROM fundings WHERE id = ?`

func (q *Queries) GetFunding(ctx context.Context, id string) (Funding, error) {
	return scanFunding(q.db.QueryRowContext(ctx, getFunding, id))
}

const upsertFunding = `-- name: UpsertFunding :exec
INSERT INTO fundings (` + fundingColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    institution_name = excluded.institution_name,
    amount_cents = excluded.amount_cents,
    purpose = excluded.purpose,
    purpose_category = excluded.purpose_category,
    description = excluded.description,
    status = excluded.status,
    application_date = excluded.application_date,
    approval_date = excluded.approval_date,
    review_opinion = excluded.review_opinion`

func (q *Queries) UpsertFunding(ctx context.Context, f Funding) error {
	_, err := q.db.ExecContext(ctx, upsertFunding,
		f.ID, f.InstitutionName, f.AmountCents, f.Purpose, f.PurposeCategory,
		f.Description, f.Status, f.ApplicationDate, f.ApprovalDate, f.ReviewOpinion,
	)
	return err
}

const deleteFunding = `-- name: DeleteFunding :execrows
DELETE FROM fundings WHERE id = ?`

func (q *Queries) DeleteFunding(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteFunding, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteAllFundings = `-- name: DeleteAllFundings :exec
DELETE FROM fundings`

func (q *Queries) DeleteAllFundings(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllFundings)
	return err
}

const listBudgetItems = `-- name: ListBudgetItems :many
SELECT funding_id, position, item_id, item, amount_cents, description
FROM budget_items ORDER BY funding_id, position`

func (q *Queries) ListBudgetItems(ctx context.Context) ([]BudgetItem, error) {
	return q.queryBudgetItems(ctx, listBudgetItems)
}

const listBudgetItemsForFunding = `-- name: ListBudgetItemsForFunding :many
SELECT funding_id, position, item_id, item, amount_cents, description
FROM budget_items WHERE funding_id = ? ORDER BY position`

func (q *Queries) ListBudgetItemsForFunding(ctx context.Context, fundingID string) ([]BudgetItem, error) {
	return q.queryBudgetItems(ctx, listBudgetItemsForFunding, fundingID)
}

func (q *Queries) queryBudgetItems(ctx context.Context, query string, args ...interface{}) ([]BudgetItem, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BudgetItem
	for rows.Next() {
		var i BudgetItem
		if err := rows.Scan(&i.FundingID, &i.Position, &i.ItemID, &i.Item, &i.AmountCents, &i.Description); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertBudgetItem = `-- name: InsertBudgetItem :exec
INSERT INTO budget_items (funding_id, position, item_id, item, amount_cents, description)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertBudgetItem(ctx context.Context, i BudgetItem) error {
	_, err := q.db.ExecContext(ctx, insertBudgetItem, i.FundingID, i.Position, i.ItemID, i.Item, i.AmountCents, i.Description)
	return err
}

const deleteBudgetItemsForFunding = `-- name: DeleteBudgetItemsForFunding :exec
DELETE FROM budget_items WHERE funding_id = ?`

func (q *Queries) DeleteBudgetItemsForFunding(ctx context.Context, fundingID string) error {
	_, err := q.db.ExecContext(ctx, deleteBudgetItemsForFunding, fundingID)
	return err
}

const deleteAllBudgetItems = `-- name: DeleteAllBudgetItems :exec
DELETE FROM budget_items`

func (q *Queries) DeleteAllBudgetItems(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllBudgetItems)
	return err
}

const listMonthlyFinancials = `-- name: ListMonthlyFinancials :many
SELECT month, income_cents, expense_cents, balance_cents
FROM monthly_financials ORDER BY month`

func (q *Queries) ListMonthlyFinancials(ctx context.Context) ([]MonthlyFinancial, error) {
	rows, err := q.db.QueryContext(ctx, listMonthlyFinancials)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MonthlyFinancial
	for rows.Next() {
		var m MonthlyFinancial
		if err := rows.Scan(&m.Month, &m.IncomeCents, &m.ExpenseCents, &m.BalanceCents); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listFinancialLineItems = `-- name: ListFinancialLineItems :many
SELECT month, side, position, record_id, date, description, amount_cents, category
FROM financial_line_items ORDER BY month, side, position`

func (q *Queries) ListFinancialLineItems(ctx context.Context) ([]FinancialLineItem, error) {
	rows, err := q.db.QueryContext(ctx, listFinancialLineItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []FinancialLineItem
	for rows.Next() {
		var i FinancialLineItem
		if err := rows.Scan(&i.Month, &i.Side, &i.Position, &i.RecordID, &i.Date, &i.Description, &i.AmountCents, &i.Category); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertMonthlyFinancial = `-- name: InsertMonthlyFinancial :exec
INSERT INTO monthly_financials (month, income_cents, expense_cents, balance_cents)
VALUES (?, ?, ?, ?)`

func (q *Queries) InsertMonthlyFinancial(ctx context.Context, m MonthlyFinancial) error {
	_, err := q.db.ExecContext(ctx, insertMonthlyFinancial, m.Month, m.IncomeCents, m.ExpenseCents, m.BalanceCents)
	return err
}

const insertFinancialLineItem = `-- name: InsertFinancialLineItem :exec
INSERT INTO financial_line_items (month, side, position, record_id, date, description, amount_cents, category)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertFinancialLineItem(ctx context.Context, i FinancialLineItem) error {
	_, err := q.db.ExecContext(ctx, insertFinancialLineItem,
		i.Month, i.Side, i.Position, i.RecordID, i.Date, i.Description, i.AmountCents, i.Category,
	)
	return err
}

const deleteAllFinancialLineItems = `-- name: DeleteAllFinancialLineItems :exec
DELETE FROM financial_line_items`

func (q *Queries) DeleteAllFinancialLineItems(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllFinancialLineItems)
	return err
}

const deleteAllMonthlyFinancials = `-- name: DeleteAllMonthlyFinancials :exec
DELETE FROM monthly_financials`

func (q *Queries) DeleteAllMonthlyFinancials(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteAllMonthlyFinancials)
	return err
}

const getUser = `-- name: GetUser :one
SELECT username, password_hash, phone, created_at FROM users WHERE username = ?`

func (q *Queries) GetUser(ctx context.Context, username string) (User, error) {
	var u User
	err := q.db.QueryRowContext(ctx, getUser, username).Scan(&u.Username, &u.PasswordHash, &u.Phone, &u.CreatedAt)
	return u, err
}

const createUser = `-- name: CreateUser :execrows
INSERT INTO users (username, password_hash, phone, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(username) DO NOTHING`

func (q *Queries) CreateUser(ctx context.Context, u User) (int64, error) {
	result, err := q.db.ExecContext(ctx, createUser, u.Username, u.PasswordHash, u.Phone, u.CreatedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updateUserPassword = `-- name: UpdateUserPassword :execrows
UPDATE users SET password_hash = ? WHERE username = ?`

func (q *Queries) UpdateUserPassword(ctx context.Context, passwordHash, username string) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateUserPassword, passwordHash, username)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const listDetections = `-- name: ListDetections :many
SELECT id, product_code, payload, recorded_at FROM detections ORDER BY recorded_at DESC, id`

func (q *Queries) ListDetections(ctx context.Context) ([]Detection, error) {
	rows, err := q.db.QueryContext(ctx, listDetections)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Detection
	for rows.Next() {
		var d Detection
		if err := rows.Scan(&d.ID, &d.ProductCode, &d.Payload, &d.RecordedAt); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getDetection = `-- name: GetDetection :one
SELECT id, product_code, payload, recorded_at FROM detections WHERE id = ?`

func (q *Queries) GetDetection(ctx context.Context, id string) (Detection, error) {
	var d Detection
	err := q.db.QueryRowContext(ctx, getDetection, id).Scan(&d.ID, &d.ProductCode, &d.Payload, &d.RecordedAt)
	return d, err
}

const upsertDetection = `-- name: UpsertDetection :exec
INSERT INTO detections (id, product_code, payload, recorded_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    product_code = excluded.product_code,
    payload = excluded.payload,
    recorded_at = excluded.recorded_at`

func (q *Queries) UpsertDetection(ctx context.Context, d Detection) error {
	_, err := q.db.ExecContext(ctx, upsertDetection, d.ID, d.ProductCode, d.Payload, d.RecordedAt)
	return err
}

const deleteDetection = `-- name: DeleteDetection :execrows
DELETE FROM detections WHERE id = ?`

func (q *Queries) DeleteDetection(ctx context.Context, id string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteDetection, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
