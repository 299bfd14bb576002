package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mymoney/internal/core"
)

func (q *Queries) CreateRecurring(ctx context.Context, r core.RecurringTransaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO recurring_transactions
			(wallet_id, category_id, type, amount_cents, description, frequency, start_date, end_date, status, last_generated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.WalletID, r.CategoryID, string(r.Type), r.Amount.Cents, r.Description,
		string(r.Frequency), formatTime(r.StartDate), formatNullTime(r.EndDate),
		string(r.Status), formatNullTime(r.LastGenerated))
	if err != nil {
		return 0, fmt.Errorf("insert recurring transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recurring transaction id: %w", err)
	}
	return id, nil
}

func (q *Queries) GetRecurring(ctx context.Context, id int64) (core.RecurringTransaction, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, wallet_id, category_id, type, amount_cents, description, frequency, start_date, end_date, status, last_generated
		FROM recurring_transactions WHERE id = ?`, id)
	return scanRecurring(row)
}

func (q *Queries) ListRecurring(ctx context.Context) ([]core.RecurringTransaction, error) {
	return q.listRecurring(ctx, `
		SELECT id, wallet_id, category_id, type, amount_cents, description, frequency, start_date, end_date, status, last_generated
		FROM recurring_transactions ORDER BY id`)
}

// ListActiveRecurring returns the templates the scheduler still has to expand.
func (q *Queries) ListActiveRecurring(ctx context.Context) ([]core.RecurringTransaction, error) {
	return q.listRecurring(ctx, `
		SELECT id, wallet_id, category_id, type, amount_cents, description, frequency, start_date, end_date, status, last_generated
		FROM recurring_transactions WHERE status = 'ACTIVE' ORDER BY id`)
}

func (q *Queries) UpdateRecurring(ctx context.Context, r core.RecurringTransaction) error {
	return q.execRecurring(ctx, `
		UPDATE recurring_transactions
		SET wallet_id = ?, category_id = ?, type = ?, amount_cents = ?, description = ?,
		    frequency = ?, start_date = ?, end_date = ?, status = ?
		WHERE id = ?`,
		r.WalletID, r.CategoryID, string(r.Type), r.Amount.Cents, r.Description,
		string(r.Frequency), formatTime(r.StartDate), formatNullTime(r.EndDate),
		string(r.Status), r.ID)
}

func (q *Queries) UpdateRecurringLastGenerated(ctx context.Context, id int64, lastGenerated time.Time) error {
	return q.execRecurring(ctx,
		`UPDATE recurring_transactions SET last_generated = ? WHERE id = ?`,
		formatTime(lastGenerated), id)
}

func (q *Queries) UpdateRecurringStatus(ctx context.Context, id int64, status core.RecurringStatus) error {
	return q.execRecurring(ctx,
		`UPDATE recurring_transactions SET status = ? WHERE id = ?`, string(status), id)
}

func (q *Queries) DeleteRecurring(ctx context.Context, id int64) error {
	return q.execRecurring(ctx, `DELETE FROM recurring_transactions WHERE id = ?`, id)
}

func (q *Queries) listRecurring(ctx context.Context, query string, args ...any) ([]core.RecurringTransaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurring transactions: %w", err)
	}
	defer rows.Close()

	var recurring []core.RecurringTransaction
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		recurring = append(recurring, r)
	}
	return recurring, rows.Err()
}

func (q *Queries) execRecurring(ctx context.Context, query string, args ...any) error {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec recurring query: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}

func scanRecurring(row rowScanner) (core.RecurringTransaction, error) {
	var r core.RecurringTransaction
	var txType, frequency, status, startDate string
	var endDate, lastGenerated sql.NullString
	err := row.Scan(&r.ID, &r.WalletID, &r.CategoryID, &txType, &r.Amount.Cents,
		&r.Description, &frequency, &startDate, &endDate, &status, &lastGenerated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.RecurringTransaction{}, ErrNoRows
		}
		return core.RecurringTransaction{}, fmt.Errorf("scan recurring transaction: %w", err)
	}
	r.Type = core.TransactionType(txType)
	r.Frequency = core.Frequency(frequency)
	r.Status = core.RecurringStatus(status)
	r.StartDate, err = parseTime(startDate)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	r.EndDate, err = parseNullTime(endDate)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	r.LastGenerated, err = parseNullTime(lastGenerated)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	return r, nil
}
