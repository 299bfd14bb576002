package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mymoney/internal/core"
)

func (q *Queries) CreateTransfer(ctx context.Context, t core.Transfer) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO transfers (sender_wallet_id, receiver_wallet_id, amount_cents, date, description)
		VALUES (?, ?, ?, ?, ?)`,
		t.SenderID, t.ReceiverID, t.Amount.Cents, formatTime(t.Date), t.Description)
	if err != nil {
		return 0, fmt.Errorf("insert transfer: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transfer id: %w", err)
	}
	return id, nil
}

func (q *Queries) GetTransfer(ctx context.Context, id int64) (core.Transfer, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, sender_wallet_id, receiver_wallet_id, amount_cents, date, description
		FROM transfers WHERE id = ?`, id)
	return scanTransfer(row)
}

// ListTransfersByWallet returns transfers where the wallet is sender or
// receiver, newest first.
func (q *Queries) ListTransfersByWallet(ctx context.Context, walletID int64) ([]core.Transfer, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, sender_wallet_id, receiver_wallet_id, amount_cents, date, description
		FROM transfers
		WHERE sender_wallet_id = ?1 OR receiver_wallet_id = ?1
		ORDER BY date DESC, id DESC`, walletID)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var transfers []core.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

func scanTransfer(row rowScanner) (core.Transfer, error) {
	var t core.Transfer
	var date string
	err := row.Scan(&t.ID, &t.SenderID, &t.ReceiverID, &t.Amount.Cents, &date, &t.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transfer{}, ErrNoRows
		}
		return core.Transfer{}, fmt.Errorf("scan transfer: %w", err)
	}
	t.Date, err = parseTime(date)
	if err != nil {
		return core.Transfer{}, err
	}
	return t, nil
}
