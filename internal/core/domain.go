package core

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

const (
	Income  TransactionType = "INCOME"
	Expense TransactionType = "EXPENSE"

	Pending   TransactionStatus = "PENDING"
	Confirmed TransactionStatus = "CONFIRMED"

	Daily   Frequency = "DAILY"
	Weekly  Frequency = "WEEKLY"
	Monthly Frequency = "MONTHLY"
	Yearly  Frequency = "YEARLY"

	RecurringActive RecurringStatus = "ACTIVE"
	RecurringEnded  RecurringStatus = "ENDED"
)

// MaxBillingDay bounds closing and due days of a credit card.
const MaxBillingDay = 31

// MaxInstallments bounds the number of installments of a single debt.
const MaxInstallments = 999

type (
	TransactionType   string
	TransactionStatus string
	Frequency         string
	RecurringStatus   string

	// Wallet owns a balance mutated only by confirmed ledger operations.
	Wallet struct {
		ID       int64
		Name     string
		Type     string
		Balance  Money
		Archived bool
	}

	// Category is a directory entry referenced by transactions and debts.
	Category struct {
		ID       int64
		Name     string
		Archived bool
	}

	// WalletTransaction is a single income or expense on a wallet. A pending
	// transaction has no balance effect until it is confirmed, exactly once.
	WalletTransaction struct {
		ID          int64
		WalletID    int64
		CategoryID  int64
		Type        TransactionType
		Status      TransactionStatus
		Amount      Money
		Description string
		Date        time.Time
	}

	// Transfer debits the sender and credits the receiver atomically.
	Transfer struct {
		ID          int64
		SenderID    int64
		ReceiverID  int64
		Amount      Money
		Date        time.Time
		Description string
	}

	CreditCard struct {
		ID             int64
		Name           string
		Operator       string
		MaxDebt        Money
		ClosingDay     int
		DueDay         int
		LastFourDigits string
		Archived       bool
	}

	// CreditCardDebt is a purchase split into installments bound to monthly
	// invoices. Its payments are created and destroyed as a unit with it.
	CreditCardDebt struct {
		ID           int64
		CardID       int64
		CategoryID   int64
		RegisterDate time.Time
		TotalAmount  Money
		Installments int
		Description  string
	}

	// CreditCardPayment is one installment of a debt, mapped to exactly one
	// invoice month. WalletID is nil while unpaid; it is set exactly once,
	// when the invoice is paid, and never cleared.
	CreditCardPayment struct {
		ID           int64
		DebtID       int64
		InvoiceMonth YearMonth
		Installment  int
		Amount       Money
		WalletID     *int64
	}

	// RecurringTransaction is a template expanded into concrete pending
	// transactions by the scheduler. EndDate nil means indefinite;
	// LastGenerated nil means nothing has been materialized yet.
	RecurringTransaction struct {
		ID            int64
		WalletID      int64
		CategoryID    int64
		Type          TransactionType
		Amount        Money
		Description   string
		Frequency     Frequency
		StartDate     time.Time
		EndDate       *time.Time
		Status        RecurringStatus
		LastGenerated *time.Time
	}
)

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (s TransactionStatus) Valid() bool {
	return s == Pending || s == Confirmed
}

func (f Frequency) Valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly:
		return true
	}
	return false
}

func (w Wallet) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return ErrEmptyName
	}
	return nil
}

func (t WalletTransaction) Validate() error {
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(t.Description) == "" {
		return ErrEmptyDescription
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, t.Type)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown transaction status %q", ErrValidation, t.Status)
	}
	if t.Date.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrValidation)
	}
	return nil
}

func (t Transfer) Validate() error {
	if t.SenderID == t.ReceiverID {
		return fmt.Errorf("%w: sender and receiver wallets must be different", ErrValidation)
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.Date.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrValidation)
	}
	return nil
}

func (c CreditCard) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.MaxDebt.IsPositive() {
		return fmt.Errorf("%w: max debt must be positive", ErrValidation)
	}
	if c.ClosingDay < 1 || c.ClosingDay > MaxBillingDay {
		return ErrInvalidDay
	}
	if c.DueDay < 1 || c.DueDay > MaxBillingDay {
		return ErrInvalidDay
	}
	if len(c.LastFourDigits) != 4 || !allDigits(c.LastFourDigits) {
		return fmt.Errorf("%w: last four digits must be exactly 4 digits", ErrValidation)
	}
	return nil
}

func (d CreditCardDebt) Validate() error {
	if !d.TotalAmount.IsPositive() {
		return ErrInvalidAmount
	}
	if d.Installments < 1 || d.Installments > MaxInstallments {
		return fmt.Errorf("%w: installments must be in the range [1, %d]", ErrValidation, MaxInstallments)
	}
	if strings.TrimSpace(d.Description) == "" {
		return ErrEmptyDescription
	}
	if d.RegisterDate.IsZero() {
		return fmt.Errorf("%w: register date cannot be zero", ErrValidation)
	}
	return nil
}

func (r RecurringTransaction) Validate() error {
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(r.Description) == "" {
		return ErrEmptyDescription
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, r.Type)
	}
	if !r.Frequency.Valid() {
		return ErrInvalidFrequency
	}
	if r.StartDate.IsZero() {
		return fmt.Errorf("%w: start date cannot be zero", ErrValidation)
	}
	if r.EndDate != nil && r.EndDate.Before(r.StartDate) {
		return ErrInvalidDateRange
	}
	return nil
}

// Paid reports whether this installment has been settled against a wallet.
func (p CreditCardPayment) Paid() bool {
	return p.WalletID != nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
