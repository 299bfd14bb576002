package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mymoney/internal/core"
)

// ErrNoRows is returned by Get* methods when the row does not exist. Callers
// translate it into the domain's core.ErrNotFound.
var ErrNoRows = sql.ErrNoRows

func (q *Queries) CreateWallet(ctx context.Context, name, walletType string, balance core.Money) (core.Wallet, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO wallets (name, type, balance_cents) VALUES (?, ?, ?)`,
		name, walletType, balance.Cents)
	if err != nil {
		return core.Wallet{}, fmt.Errorf("insert wallet: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Wallet{}, fmt.Errorf("wallet id: %w", err)
	}
	return core.Wallet{ID: id, Name: name, Type: walletType, Balance: balance}, nil
}

func (q *Queries) GetWallet(ctx context.Context, id int64) (core.Wallet, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, name, type, balance_cents, archived FROM wallets WHERE id = ?`, id)
	return scanWallet(row)
}

func (q *Queries) GetWalletByName(ctx context.Context, name string) (core.Wallet, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, name, type, balance_cents, archived FROM wallets WHERE name = ?`, name)
	return scanWallet(row)
}

// WalletNameExists reports whether a wallet other than excludeID uses name.
func (q *Queries) WalletNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM wallets WHERE name = ? AND id != ?`, name, excludeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count wallets by name: %w", err)
	}
	return n > 0, nil
}

func (q *Queries) ListWallets(ctx context.Context, includeArchived bool) ([]core.Wallet, error) {
	query := `SELECT id, name, type, balance_cents, archived FROM wallets ORDER BY name`
	if !includeArchived {
		query = `SELECT id, name, type, balance_cents, archived FROM wallets WHERE archived = 0 ORDER BY name`
	}
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []core.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func (q *Queries) UpdateWalletName(ctx context.Context, id int64, name string) error {
	return q.execWallet(ctx, `UPDATE wallets SET name = ? WHERE id = ?`, name, id)
}

func (q *Queries) UpdateWalletType(ctx context.Context, id int64, walletType string) error {
	return q.execWallet(ctx, `UPDATE wallets SET type = ? WHERE id = ?`, walletType, id)
}

// SetWalletBalance overwrites the stored balance. Used by manual
// reconciliation only; ledger operations go through AdjustWalletBalance.
func (q *Queries) SetWalletBalance(ctx context.Context, id int64, balance core.Money) error {
	return q.execWallet(ctx, `UPDATE wallets SET balance_cents = ? WHERE id = ?`, balance.Cents, id)
}

// AdjustWalletBalance applies a signed delta to the stored balance.
func (q *Queries) AdjustWalletBalance(ctx context.Context, id int64, delta core.Money) error {
	return q.execWallet(ctx,
		`UPDATE wallets SET balance_cents = balance_cents + ? WHERE id = ?`, delta.Cents, id)
}

func (q *Queries) SetWalletArchived(ctx context.Context, id int64, archived bool) error {
	return q.execWallet(ctx, `UPDATE wallets SET archived = ? WHERE id = ?`, archived, id)
}

func (q *Queries) DeleteWallet(ctx context.Context, id int64) error {
	return q.execWallet(ctx, `DELETE FROM wallets WHERE id = ?`, id)
}

// CountWalletReferences counts transactions and transfers that keep a wallet
// alive for lifecycle purposes.
func (q *Queries) CountWalletReferences(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM wallet_transactions WHERE wallet_id = ?1) +
			(SELECT COUNT(*) FROM transfers WHERE sender_wallet_id = ?1 OR receiver_wallet_id = ?1)`,
		id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count wallet references: %w", err)
	}
	return n, nil
}

func (q *Queries) execWallet(ctx context.Context, query string, args ...any) error {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update wallet: %w", err)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (core.Wallet, error) {
	var w core.Wallet
	err := row.Scan(&w.ID, &w.Name, &w.Type, &w.Balance.Cents, &w.Archived)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Wallet{}, ErrNoRows
		}
		return core.Wallet{}, fmt.Errorf("scan wallet: %w", err)
	}
	return w, nil
}
