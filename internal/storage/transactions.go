package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"mymoney/internal/core"
)

const txColumns = `id, wallet_id, category_id, type, status, amount_cents, description, date`

func (q *Queries) CreateTransaction(ctx context.Context, t core.WalletTransaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO wallet_transactions
			(wallet_id, category_id, type, status, amount_cents, description, date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.WalletID, t.CategoryID, string(t.Type), string(t.Status),
		t.Amount.Cents, t.Description, formatTime(t.Date))
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}
	return id, nil
}

func (q *Queries) GetTransaction(ctx context.Context, id int64) (core.WalletTransaction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM wallet_transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

// UpdateTransaction rewrites every mutable column of a transaction and bumps
// its export version so the export pipeline picks the change up.
func (q *Queries) UpdateTransaction(ctx context.Context, t core.WalletTransaction) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE wallet_transactions
		SET wallet_id = ?, category_id = ?, type = ?, status = ?,
		    amount_cents = ?, description = ?, date = ?,
		    version = version + 1, export_state = 'pending'
		WHERE id = ?`,
		t.WalletID, t.CategoryID, string(t.Type), string(t.Status),
		t.Amount.Cents, t.Description, formatTime(t.Date), t.ID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
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

func (q *Queries) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM wallet_transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
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

func (q *Queries) ListTransactionsByWallet(ctx context.Context, walletID int64) ([]core.WalletTransaction, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+txColumns+` FROM wallet_transactions WHERE wallet_id = ? ORDER BY date DESC, id DESC`,
		walletID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (q *Queries) ListTransactionsByWalletMonth(ctx context.Context, walletID int64, ym core.YearMonth) ([]core.WalletTransaction, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+txColumns+` FROM wallet_transactions
		WHERE wallet_id = ? AND substr(date, 1, 7) = ?
		ORDER BY date DESC, id DESC`,
		walletID, ym.String())
	if err != nil {
		return nil, fmt.Errorf("list transactions by month: %w", err)
	}
	return collectTransactions(rows)
}

// SumPendingBetween totals PENDING transactions of one type for a wallet in
// the inclusive [from, to] window. Used by the foreseen-balance projection.
func (q *Queries) SumPendingBetween(ctx context.Context, walletID int64, txType core.TransactionType, from, to time.Time) (core.Money, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM wallet_transactions
		WHERE wallet_id = ? AND type = ? AND status = 'PENDING'
		  AND date >= ? AND date <= ?`,
		walletID, string(txType), formatTime(from), formatTime(to)).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum pending transactions: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// ExportableTransaction is the row shape handed to the export pipeline.
type ExportableTransaction struct {
	Transaction core.WalletTransaction
	Version     int64
}

func (q *Queries) GetExportableTransaction(ctx context.Context, id int64) (ExportableTransaction, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT `+txColumns+`, version FROM wallet_transactions WHERE id = ?`, id)

	var e ExportableTransaction
	var txType, status, date string
	err := row.Scan(&e.Transaction.ID, &e.Transaction.WalletID, &e.Transaction.CategoryID,
		&txType, &status, &e.Transaction.Amount.Cents,
		&e.Transaction.Description, &date, &e.Version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExportableTransaction{}, ErrNoRows
		}
		return ExportableTransaction{}, fmt.Errorf("scan exportable transaction: %w", err)
	}
	e.Transaction.Type = core.TransactionType(txType)
	e.Transaction.Status = core.TransactionStatus(status)
	e.Transaction.Date, err = parseTime(date)
	if err != nil {
		return ExportableTransaction{}, err
	}
	return e, nil
}

// ListPendingExport returns ids and versions of transactions not yet pushed
// to the export target, oldest first.
func (q *Queries) ListPendingExport(ctx context.Context, limit int) ([]ExportableTransaction, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+txColumns+`, version FROM wallet_transactions
		WHERE export_state = 'pending'
		ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending export: %w", err)
	}
	defer rows.Close()

	var result []ExportableTransaction
	for rows.Next() {
		var e ExportableTransaction
		var txType, status, date string
		err := rows.Scan(&e.Transaction.ID, &e.Transaction.WalletID, &e.Transaction.CategoryID,
			&txType, &status, &e.Transaction.Amount.Cents,
			&e.Transaction.Description, &date, &e.Version)
		if err != nil {
			return nil, fmt.Errorf("scan pending export: %w", err)
		}
		e.Transaction.Type = core.TransactionType(txType)
		e.Transaction.Status = core.TransactionStatus(status)
		e.Transaction.Date, err = parseTime(date)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// MarkExported flips the export state only when the exported version is
// still current, so an update racing the worker keeps the row pending.
func (q *Queries) MarkExported(ctx context.Context, id, version int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE wallet_transactions SET export_state = 'exported' WHERE id = ? AND version = ?`,
		id, version)
	if err != nil {
		return fmt.Errorf("mark exported: %w", err)
	}
	return nil
}

func (q *Queries) MarkExportError(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE wallet_transactions SET export_state = 'error' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark export error: %w", err)
	}
	return nil
}

func scanTransaction(row rowScanner) (core.WalletTransaction, error) {
	var t core.WalletTransaction
	var txType, status, date string
	err := row.Scan(&t.ID, &t.WalletID, &t.CategoryID, &txType, &status,
		&t.Amount.Cents, &t.Description, &date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.WalletTransaction{}, ErrNoRows
		}
		return core.WalletTransaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	t.Type = core.TransactionType(txType)
	t.Status = core.TransactionStatus(status)
	t.Date, err = parseTime(date)
	if err != nil {
		return core.WalletTransaction{}, err
	}
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]core.WalletTransaction, error) {
	defer rows.Close()
	var result []core.WalletTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
