package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mymoney/internal/core"
	"mymoney/internal/storage"
)

// CreditCardService manages cards, their debts, and invoice payments.
// Installments are precomputed at registration time: every debt keeps one
// payment row per installment, each bound to an invoice month.
type CreditCardService struct {
	storage *storage.SQLiteRepository
}

func NewCreditCardService(storage *storage.SQLiteRepository) *CreditCardService {
	return &CreditCardService{storage: storage}
}

func (s *CreditCardService) CreateCreditCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error) {
	if err := c.Validate(); err != nil {
		return core.CreditCard{}, err
	}
	exists, err := s.storage.Queries().CreditCardNameExists(ctx, c.Name, 0)
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("check card name: %w", err)
	}
	if exists {
		return core.CreditCard{}, fmt.Errorf("%w: credit card %q already exists", core.ErrConflict, c.Name)
	}
	id, err := s.storage.Queries().CreateCreditCard(ctx, c)
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("create credit card: %w", err)
	}
	c.ID = id
	return c, nil
}

func (s *CreditCardService) GetCreditCard(ctx context.Context, id int64) (core.CreditCard, error) {
	c, err := s.storage.Queries().GetCreditCard(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return core.CreditCard{}, fmt.Errorf("%w: credit card %d", core.ErrNotFound, id)
		}
		return core.CreditCard{}, fmt.Errorf("get credit card: %w", err)
	}
	return c, nil
}

func (s *CreditCardService) ListCreditCards(ctx context.Context, includeArchived bool) ([]core.CreditCard, error) {
	return s.storage.Queries().ListCreditCards(ctx, includeArchived)
}

func (s *CreditCardService) UpdateCreditCard(ctx context.Context, c core.CreditCard) error {
	if err := c.Validate(); err != nil {
		return err
	}
	exists, err := s.storage.Queries().CreditCardNameExists(ctx, c.Name, c.ID)
	if err != nil {
		return fmt.Errorf("check card name: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: credit card %q already exists", core.ErrConflict, c.Name)
	}
	if err := s.storage.Queries().UpdateCreditCard(ctx, c); err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("%w: credit card %d", core.ErrNotFound, c.ID)
		}
		return fmt.Errorf("update credit card: %w", err)
	}
	return nil
}

func (s *CreditCardService) SetCreditCardArchived(ctx context.Context, id int64, archived bool) error {
	if err := s.storage.Queries().SetCreditCardArchived(ctx, id, archived); err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("%w: credit card %d", core.ErrNotFound, id)
		}
		return fmt.Errorf("set credit card archived: %w", err)
	}
	return nil
}

// DeleteCreditCard removes a card that has no registered debts. Cards with
// history must be archived instead.
func (s *CreditCardService) DeleteCreditCard(ctx context.Context, id int64) error {
	debts, err := s.storage.Queries().CountDebtsByCard(ctx, id)
	if err != nil {
		return fmt.Errorf("count card debts: %w", err)
	}
	if debts > 0 {
		return fmt.Errorf("%w: credit card %d has %d debts, archive it instead", core.ErrConflict, id, debts)
	}
	if err := s.storage.Queries().DeleteCreditCard(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("%w: credit card %d", core.ErrNotFound, id)
		}
		return fmt.Errorf("delete credit card: %w", err)
	}
	return nil
}

// AvailableCredit is the card's limit minus the sum of its unpaid
// installments across all invoices.
func (s *CreditCardService) AvailableCredit(ctx context.Context, cardID int64) (core.Money, error) {
	card, err := s.GetCreditCard(ctx, cardID)
	if err != nil {
		return core.Money{}, err
	}
	unpaid, err := s.storage.Queries().SumUnpaidByCard(ctx, cardID)
	if err != nil {
		return core.Money{}, err
	}
	return card.MaxDebt.Sub(unpaid), nil
}

// RegisterDebt records a purchase and schedules its installments onto
// consecutive monthly invoices starting at firstInvoice. The purchase must
// fit within the card's available credit.
func (s *CreditCardService) RegisterDebt(ctx context.Context, d core.CreditCardDebt, firstInvoice core.YearMonth) (core.CreditCardDebt, error) {
	if err := d.Validate(); err != nil {
		return core.CreditCardDebt{}, err
	}
	if firstInvoice.IsZero() {
		return core.CreditCardDebt{}, fmt.Errorf("%w: first invoice month is required", core.ErrValidation)
	}

	card, err := s.GetCreditCard(ctx, d.CardID)
	if err != nil {
		return core.CreditCardDebt{}, err
	}
	if card.Archived {
		return core.CreditCardDebt{}, fmt.Errorf("%w: credit card %q is archived", core.ErrConflict, card.Name)
	}
	if _, err := s.storage.Queries().GetCategory(ctx, d.CategoryID); err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return core.CreditCardDebt{}, fmt.Errorf("%w: category %d", core.ErrNotFound, d.CategoryID)
		}
		return core.CreditCardDebt{}, fmt.Errorf("get category: %w", err)
	}

	available, err := s.AvailableCredit(ctx, d.CardID)
	if err != nil {
		return core.CreditCardDebt{}, err
	}
	if d.TotalAmount.Cmp(available) > 0 {
		return core.CreditCardDebt{}, fmt.Errorf("%w: debt of %s exceeds available credit of %s",
			core.ErrConflict, d.TotalAmount, available)
	}

	err = s.storage.WithTx(ctx, func(q *storage.Queries) error {
		id, err := q.CreateDebt(ctx, d)
		if err != nil {
			return err
		}
		d.ID = id
		return createInstallments(ctx, q, d, firstInvoice)
	})
	if err != nil {
		return core.CreditCardDebt{}, fmt.Errorf("register debt: %w", err)
	}
	return d, nil
}

// UpdateDebt rewrites a debt and rebuilds its installment schedule from
// firstInvoice. Once any installment has been paid the schedule is frozen:
// amount and installment count cannot change, but description and category
// edits still go through (without touching the payment rows).
func (s *CreditCardService) UpdateDebt(ctx context.Context, d core.CreditCardDebt, firstInvoice core.YearMonth) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if firstInvoice.IsZero() {
		return fmt.Errorf("%w: first invoice month is required", core.ErrValidation)
	}

	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetDebt(ctx, d.ID)
		if err != nil {
			if errors.Is(err, storage.ErrNoRows) {
				return fmt.Errorf("%w: debt %d", core.ErrNotFound, d.ID)
			}
			return err
		}
		d.CardID = old.CardID

		paid, err := q.CountPaidByDebt(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("count paid installments: %w", err)
		}
		if paid > 0 {
			if d.TotalAmount != old.TotalAmount || d.Installments != old.Installments {
				return fmt.Errorf("%w: debt %d has %d paid installments, amount and installments are frozen",
					core.ErrConflict, d.ID, paid)
			}
			schedule, err := q.ListPaymentsByDebt(ctx, d.ID)
			if err != nil {
				return err
			}
			if len(schedule) > 0 && schedule[0].InvoiceMonth != firstInvoice {
				return fmt.Errorf("%w: debt %d has %d paid installments, the invoice schedule is frozen",
					core.ErrConflict, d.ID, paid)
			}
			return q.UpdateDebt(ctx, d)
		}

		if err := q.UpdateDebt(ctx, d); err != nil {
			return err
		}
		if err := q.DeleteUnpaidPaymentsByDebt(ctx, d.ID); err != nil {
			return err
		}
		return createInstallments(ctx, q, d, firstInvoice)
	})
	if err != nil {
		return fmt.Errorf("update debt: %w", err)
	}
	return nil
}

// DeleteDebt removes a debt and its unpaid installments. Debts with any
// paid installment are frozen.
func (s *CreditCardService) DeleteDebt(ctx context.Context, id int64) error {
	paid, err := s.storage.Queries().CountPaidByDebt(ctx, id)
	if err != nil {
		return fmt.Errorf("count paid installments: %w", err)
	}
	if paid > 0 {
		return fmt.Errorf("%w: debt %d has %d paid installments and cannot be deleted", core.ErrConflict, id, paid)
	}
	if err := s.storage.Queries().DeleteDebt(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("%w: debt %d", core.ErrNotFound, id)
		}
		return fmt.Errorf("delete debt: %w", err)
	}
	return nil
}

func (s *CreditCardService) GetDebt(ctx context.Context, id int64) (core.CreditCardDebt, error) {
	d, err := s.storage.Queries().GetDebt(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return core.CreditCardDebt{}, fmt.Errorf("%w: debt %d", core.ErrNotFound, id)
		}
		return core.CreditCardDebt{}, fmt.Errorf("get debt: %w", err)
	}
	return d, nil
}

func (s *CreditCardService) ListDebts(ctx context.Context, cardID int64) ([]core.CreditCardDebt, error) {
	return s.storage.Queries().ListDebtsByCard(ctx, cardID)
}

// Invoice is one month's bill for a card.
type Invoice struct {
	CardID   int64
	Month    core.YearMonth
	Payments []core.CreditCardPayment
	Total    core.Money
	Unpaid   core.Money
}

func (s *CreditCardService) GetInvoice(ctx context.Context, cardID int64, month core.YearMonth) (Invoice, error) {
	if _, err := s.GetCreditCard(ctx, cardID); err != nil {
		return Invoice{}, err
	}

	q := s.storage.Queries()
	payments, err := q.ListPaymentsByCardMonth(ctx, cardID, month)
	if err != nil {
		return Invoice{}, err
	}

	inv := Invoice{CardID: cardID, Month: month, Payments: payments}
	for _, p := range payments {
		inv.Total = inv.Total.Add(p.Amount)
		if !p.Paid() {
			inv.Unpaid = inv.Unpaid.Add(p.Amount)
		}
	}
	return inv, nil
}

// billingCategoryName labels the ledger transactions created by invoice
// payments.
const billingCategoryName = "Credit card payment"

// PayInvoice settles every open installment of a card's invoice from the
// given wallet and posts one confirmed expense for their sum through the
// ledger. Paying an invoice with no open installments is a no-op. The wallet
// may go negative; the bill is owed regardless of the balance.
func (s *CreditCardService) PayInvoice(ctx context.Context, cardID int64, month core.YearMonth, walletID int64) (core.Money, error) {
	card, err := s.GetCreditCard(ctx, cardID)
	if err != nil {
		return core.Money{}, err
	}

	var total core.Money
	err = s.storage.WithTx(ctx, func(q *storage.Queries) error {
		wallet, err := q.GetWallet(ctx, walletID)
		if err != nil {
			if errors.Is(err, storage.ErrNoRows) {
				return fmt.Errorf("%w: wallet %d", core.ErrNotFound, walletID)
			}
			return err
		}
		if wallet.Archived {
			return fmt.Errorf("%w: wallet %q is archived", core.ErrConflict, wallet.Name)
		}

		open, err := q.ListUnpaidPaymentsByCardMonth(ctx, cardID, month)
		if err != nil {
			return err
		}
		if len(open) == 0 {
			return nil
		}

		for _, p := range open {
			if err := q.MarkPaymentPaid(ctx, p.ID, walletID); err != nil {
				return err
			}
			total = total.Add(p.Amount)
		}

		categoryID, err := billingCategory(ctx, q)
		if err != nil {
			return err
		}
		if _, err := q.CreateTransaction(ctx, core.WalletTransaction{
			WalletID:    walletID,
			CategoryID:  categoryID,
			Type:        core.Expense,
			Status:      core.Confirmed,
			Amount:      total,
			Description: fmt.Sprintf("Invoice %s of card %s", month, card.Name),
			Date:        time.Now().UTC(),
		}); err != nil {
			return err
		}
		return q.AdjustWalletBalance(ctx, walletID, total.Neg())
	})
	if err != nil {
		return core.Money{}, fmt.Errorf("pay invoice: %w", err)
	}
	return total, nil
}

// billingCategory finds or creates the category invoice payments are booked
// under.
func billingCategory(ctx context.Context, q *storage.Queries) (int64, error) {
	c, err := q.GetCategoryByName(ctx, billingCategoryName)
	if err == nil {
		return c.ID, nil
	}
	if !errors.Is(err, storage.ErrNoRows) {
		return 0, fmt.Errorf("get billing category: %w", err)
	}
	created, err := q.CreateCategory(ctx, billingCategoryName)
	if err != nil {
		return 0, fmt.Errorf("create billing category: %w", err)
	}
	return created.ID, nil
}

// createInstallments splits the debt total exactly across its installments
// and pins each part to a consecutive invoice month. The last installment
// absorbs the rounding remainder.
func createInstallments(ctx context.Context, q *storage.Queries, d core.CreditCardDebt, firstInvoice core.YearMonth) error {
	parts := core.Split(d.TotalAmount, d.Installments)
	for i, part := range parts {
		_, err := q.CreatePayment(ctx, core.CreditCardPayment{
			DebtID:       d.ID,
			InvoiceMonth: firstInvoice.AddMonths(i),
			Installment:  i + 1,
			Amount:       part,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
