package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"mymoney/internal/core"
)

func (q *Queries) CreateCreditCard(ctx context.Context, c core.CreditCard) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO credit_cards (name, operator, max_debt_cents, closing_day, due_day, last_four_digits, archived)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.Operator, c.MaxDebt.Cents, c.ClosingDay, c.DueDay, c.LastFourDigits, c.Archived)
	if err != nil {
		return 0, fmt.Errorf("insert credit card: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("credit card id: %w", err)
	}
	return id, nil
}

func (q *Queries) GetCreditCard(ctx context.Context, id int64) (core.CreditCard, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, name, operator, max_debt_cents, closing_day, due_day, last_four_digits, archived
		FROM credit_cards WHERE id = ?`, id)
	return scanCreditCard(row)
}

func (q *Queries) GetCreditCardByName(ctx context.Context, name string) (core.CreditCard, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, name, operator, max_debt_cents, closing_day, due_day, last_four_digits, archived
		FROM credit_cards WHERE name = ?`, name)
	return scanCreditCard(row)
}

func (q *Queries) CreditCardNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credit_cards WHERE name = ? AND id != ?`, name, excludeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("count credit card names: %w", err)
	}
	return n > 0, nil
}

func (q *Queries) ListCreditCards(ctx context.Context, includeArchived bool) ([]core.CreditCard, error) {
	query := `
		SELECT id, name, operator, max_debt_cents, closing_day, due_day, last_four_digits, archived
		FROM credit_cards`
	if !includeArchived {
		query += ` WHERE archived = 0`
	}
	query += ` ORDER BY name`

	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credit cards: %w", err)
	}
	defer rows.Close()

	var cards []core.CreditCard
	for rows.Next() {
		c, err := scanCreditCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (q *Queries) UpdateCreditCard(ctx context.Context, c core.CreditCard) error {
	return q.execCard(ctx, `
		UPDATE credit_cards
		SET name = ?, operator = ?, max_debt_cents = ?, closing_day = ?, due_day = ?, last_four_digits = ?
		WHERE id = ?`,
		c.Name, c.Operator, c.MaxDebt.Cents, c.ClosingDay, c.DueDay, c.LastFourDigits, c.ID)
}

func (q *Queries) SetCreditCardArchived(ctx context.Context, id int64, archived bool) error {
	return q.execCard(ctx, `UPDATE credit_cards SET archived = ? WHERE id = ?`, archived, id)
}

func (q *Queries) DeleteCreditCard(ctx context.Context, id int64) error {
	return q.execCard(ctx, `DELETE FROM credit_cards WHERE id = ?`, id)
}

// CountDebtsByCard counts debts registered against a card, used to guard
// card deletion.
func (q *Queries) CountDebtsByCard(ctx context.Context, cardID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credit_card_debts WHERE credit_card_id = ?`, cardID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count card debts: %w", err)
	}
	return n, nil
}

func (q *Queries) CreateDebt(ctx context.Context, d core.CreditCardDebt) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO credit_card_debts (credit_card_id, category_id, register_date, total_amount_cents, installments, description)
		VALUES (?, ?, ?, ?, ?, ?)`,
		d.CardID, d.CategoryID, formatTime(d.RegisterDate), d.TotalAmount.Cents, d.Installments, d.Description)
	if err != nil {
		return 0, fmt.Errorf("insert debt: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("debt id: %w", err)
	}
	return id, nil
}

func (q *Queries) GetDebt(ctx context.Context, id int64) (core.CreditCardDebt, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, credit_card_id, category_id, register_date, total_amount_cents, installments, description
		FROM credit_card_debts WHERE id = ?`, id)
	return scanDebt(row)
}

func (q *Queries) ListDebtsByCard(ctx context.Context, cardID int64) ([]core.CreditCardDebt, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, credit_card_id, category_id, register_date, total_amount_cents, installments, description
		FROM credit_card_debts
		WHERE credit_card_id = ?
		ORDER BY register_date DESC, id DESC`, cardID)
	if err != nil {
		return nil, fmt.Errorf("list debts: %w", err)
	}
	defer rows.Close()

	var debts []core.CreditCardDebt
	for rows.Next() {
		d, err := scanDebt(rows)
		if err != nil {
			return nil, err
		}
		debts = append(debts, d)
	}
	return debts, rows.Err()
}

func (q *Queries) UpdateDebt(ctx context.Context, d core.CreditCardDebt) error {
	return q.execCard(ctx, `
		UPDATE credit_card_debts
		SET category_id = ?, register_date = ?, total_amount_cents = ?, installments = ?, description = ?
		WHERE id = ?`,
		d.CategoryID, formatTime(d.RegisterDate), d.TotalAmount.Cents, d.Installments, d.Description, d.ID)
}

// DeleteDebt removes the debt; its payments go with it via ON DELETE CASCADE.
func (q *Queries) DeleteDebt(ctx context.Context, id int64) error {
	return q.execCard(ctx, `DELETE FROM credit_card_debts WHERE id = ?`, id)
}

func (q *Queries) CreatePayment(ctx context.Context, p core.CreditCardPayment) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO credit_card_payments (debt_id, invoice_month, installment, amount_cents, wallet_id)
		VALUES (?, ?, ?, ?, ?)`,
		p.DebtID, p.InvoiceMonth.String(), p.Installment, p.Amount.Cents, p.WalletID)
	if err != nil {
		return 0, fmt.Errorf("insert payment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("payment id: %w", err)
	}
	return id, nil
}

func (q *Queries) ListPaymentsByDebt(ctx context.Context, debtID int64) ([]core.CreditCardPayment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, debt_id, invoice_month, installment, amount_cents, wallet_id
		FROM credit_card_payments
		WHERE debt_id = ?
		ORDER BY installment`, debtID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return collectPayments(rows)
}

// ListPaymentsByCardMonth returns every installment, paid or not, on a
// card's invoice for the given month.
func (q *Queries) ListPaymentsByCardMonth(ctx context.Context, cardID int64, month core.YearMonth) ([]core.CreditCardPayment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT p.id, p.debt_id, p.invoice_month, p.installment, p.amount_cents, p.wallet_id
		FROM credit_card_payments p
		JOIN credit_card_debts d ON d.id = p.debt_id
		WHERE d.credit_card_id = ? AND p.invoice_month = ?
		ORDER BY p.debt_id, p.installment`, cardID, month.String())
	if err != nil {
		return nil, fmt.Errorf("list invoice payments: %w", err)
	}
	return collectPayments(rows)
}

// ListUnpaidPaymentsByCardMonth returns the open installments of a card's
// invoice for the given month.
func (q *Queries) ListUnpaidPaymentsByCardMonth(ctx context.Context, cardID int64, month core.YearMonth) ([]core.CreditCardPayment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT p.id, p.debt_id, p.invoice_month, p.installment, p.amount_cents, p.wallet_id
		FROM credit_card_payments p
		JOIN credit_card_debts d ON d.id = p.debt_id
		WHERE d.credit_card_id = ? AND p.invoice_month = ? AND p.wallet_id IS NULL
		ORDER BY p.debt_id, p.installment`, cardID, month.String())
	if err != nil {
		return nil, fmt.Errorf("list unpaid payments: %w", err)
	}
	return collectPayments(rows)
}

// CountPaidByDebt counts a debt's settled installments. A debt with any
// paid installment can no longer be edited or deleted.
func (q *Queries) CountPaidByDebt(ctx context.Context, debtID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM credit_card_payments WHERE debt_id = ? AND wallet_id IS NOT NULL`, debtID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count paid payments: %w", err)
	}
	return n, nil
}

func (q *Queries) DeleteUnpaidPaymentsByDebt(ctx context.Context, debtID int64) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM credit_card_payments WHERE debt_id = ? AND wallet_id IS NULL`, debtID)
	if err != nil {
		return fmt.Errorf("delete unpaid payments: %w", err)
	}
	return nil
}

// MarkPaymentPaid binds an unpaid installment to the wallet that settled it.
func (q *Queries) MarkPaymentPaid(ctx context.Context, paymentID, walletID int64) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE credit_card_payments SET wallet_id = ? WHERE id = ? AND wallet_id IS NULL`, walletID, paymentID)
	if err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark payment paid: %w", err)
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}

// SumUnpaidByCard totals the open installments of a card across all months.
// Available credit is the card's limit minus this sum.
func (q *Queries) SumUnpaidByCard(ctx context.Context, cardID int64) (core.Money, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(p.amount_cents), 0)
		FROM credit_card_payments p
		JOIN credit_card_debts d ON d.id = p.debt_id
		WHERE d.credit_card_id = ? AND p.wallet_id IS NULL`, cardID).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum unpaid payments: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// SumInvoiceByCardMonth totals all installments, paid or not, falling on a
// card's invoice for the given month.
func (q *Queries) SumInvoiceByCardMonth(ctx context.Context, cardID int64, month core.YearMonth) (core.Money, error) {
	var cents int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(p.amount_cents), 0)
		FROM credit_card_payments p
		JOIN credit_card_debts d ON d.id = p.debt_id
		WHERE d.credit_card_id = ? AND p.invoice_month = ?`, cardID, month.String()).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum invoice: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

func (q *Queries) execCard(ctx context.Context, query string, args ...any) error {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec credit card query: %w", err)
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

func scanCreditCard(row rowScanner) (core.CreditCard, error) {
	var c core.CreditCard
	err := row.Scan(&c.ID, &c.Name, &c.Operator, &c.MaxDebt.Cents,
		&c.ClosingDay, &c.DueDay, &c.LastFourDigits, &c.Archived)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.CreditCard{}, ErrNoRows
		}
		return core.CreditCard{}, fmt.Errorf("scan credit card: %w", err)
	}
	return c, nil
}

func scanDebt(row rowScanner) (core.CreditCardDebt, error) {
	var d core.CreditCardDebt
	var registerDate string
	err := row.Scan(&d.ID, &d.CardID, &d.CategoryID, &registerDate,
		&d.TotalAmount.Cents, &d.Installments, &d.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.CreditCardDebt{}, ErrNoRows
		}
		return core.CreditCardDebt{}, fmt.Errorf("scan debt: %w", err)
	}
	d.RegisterDate, err = parseTime(registerDate)
	if err != nil {
		return core.CreditCardDebt{}, err
	}
	return d, nil
}

func scanPayment(row rowScanner) (core.CreditCardPayment, error) {
	var p core.CreditCardPayment
	var month string
	var walletID sql.NullInt64
	err := row.Scan(&p.ID, &p.DebtID, &month, &p.Installment, &p.Amount.Cents, &walletID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.CreditCardPayment{}, ErrNoRows
		}
		return core.CreditCardPayment{}, fmt.Errorf("scan payment: %w", err)
	}
	p.InvoiceMonth, err = core.ParseYearMonth(month)
	if err != nil {
		return core.CreditCardPayment{}, err
	}
	if walletID.Valid {
		p.WalletID = &walletID.Int64
	}
	return p, nil
}

func collectPayments(rows *sql.Rows) ([]core.CreditCardPayment, error) {
	defer rows.Close()
	var payments []core.CreditCardPayment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
