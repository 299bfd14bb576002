package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mymoney/internal/amqp"
	"mymoney/internal/core"
	"mymoney/internal/storage"
)

// WalletService orchestrates wallet and ledger operations across SQLite and
// AMQP. Balance mutations always run inside a transaction together with the
// row change that caused them.
type WalletService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
}

func NewWalletService(storage *storage.SQLiteRepository, amqpClient *amqp.Client) *WalletService {
	return &WalletService{
		storage:    storage,
		amqpClient: amqpClient,
	}
}

func (s *WalletService) CreateWallet(ctx context.Context, name, walletType string, openingBalance core.Money) (core.Wallet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Wallet{}, core.ErrEmptyName
	}

	exists, err := s.storage.Queries().WalletNameExists(ctx, name, 0)
	if err != nil {
		return core.Wallet{}, fmt.Errorf("check wallet name: %w", err)
	}
	if exists {
		return core.Wallet{}, fmt.Errorf("%w: wallet %q already exists", core.ErrConflict, name)
	}

	w, err := s.storage.Queries().CreateWallet(ctx, name, walletType, openingBalance)
	if err != nil {
		return core.Wallet{}, fmt.Errorf("create wallet: %w", err)
	}
	return w, nil
}

func (s *WalletService) GetWallet(ctx context.Context, id int64) (core.Wallet, error) {
	w, err := s.storage.Queries().GetWallet(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return core.Wallet{}, fmt.Errorf("%w: wallet %d", core.ErrNotFound, id)
		}
		return core.Wallet{}, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

func (s *WalletService) ListWallets(ctx context.Context, includeArchived bool) ([]core.Wallet, error) {
	return s.storage.Queries().ListWallets(ctx, includeArchived)
}

func (s *WalletService) RenameWallet(ctx context.Context, id int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.ErrEmptyName
	}
	exists, err := s.storage.Queries().WalletNameExists(ctx, name, id)
	if err != nil {
		return fmt.Errorf("check wallet name: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: wallet %q already exists", core.ErrConflict, name)
	}
	if err := s.storage.Queries().UpdateWalletName(ctx, id, name); err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("%w: wallet %d", core.ErrNotFound, id)
		}
		return fmt.Errorf("rename wallet: %w", err)
	}
	return nil
}

func (s *WalletService) ChangeWalletType(ctx context.Context, id int64, walletType string) error {
	if err := s.storage.Queries().UpdateWalletType(ctx, id, walletType); err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("%w: wallet %d", core.ErrNotFound, id)
		}
		return fmt.Errorf("change wallet type: %w", err)
	}
	return nil
}

// SetWalletBalance overwrites the balance directly, bypassing the ledger.
// It exists for manual corrections and opening-balance adjustments.
func (s *WalletService) SetWalletBalance(ctx context.Context, id int64, balance core.Money) error {
	if err := s.storage.Queries().SetWalletBalance(ctx, id, balance); err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("%w: wallet %d", core.ErrNotFound, id)
		}
		return fmt.Errorf("set wallet balance: %w", err)
	}
	return nil
}

func (s *WalletService) SetWalletArchived(ctx context.Context, id int64, archived bool) error {
	if err := s.storage.Queries().SetWalletArchived(ctx, id, archived); err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("%w: wallet %d", core.ErrNotFound, id)
		}
		return fmt.Errorf("set wallet archived: %w", err)
	}
	return nil
}

// DeleteWallet removes a wallet with no ledger history. Wallets referenced
// by transactions or transfers must be archived instead.
func (s *WalletService) DeleteWallet(ctx context.Context, id int64) error {
	refs, err := s.storage.Queries().CountWalletReferences(ctx, id)
	if err != nil {
		return fmt.Errorf("count wallet references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("%w: wallet %d has %d ledger entries, archive it instead", core.ErrConflict, id, refs)
	}
	if err := s.storage.Queries().DeleteWallet(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("%w: wallet %d", core.ErrNotFound, id)
		}
		return fmt.Errorf("delete wallet: %w", err)
	}
	return nil
}

func (s *WalletService) CreateCategory(ctx context.Context, name string) (core.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Category{}, core.ErrEmptyName
	}
	if _, err := s.storage.Queries().GetCategoryByName(ctx, name); err == nil {
		return core.Category{}, fmt.Errorf("%w: category %q already exists", core.ErrConflict, name)
	} else if !errors.Is(err, storage.ErrNoRows) {
		return core.Category{}, fmt.Errorf("check category name: %w", err)
	}
	c, err := s.storage.Queries().CreateCategory(ctx, name)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (s *WalletService) ListCategories(ctx context.Context, includeArchived bool) ([]core.Category, error) {
	return s.storage.Queries().ListCategories(ctx, includeArchived)
}

func (s *WalletService) SetCategoryArchived(ctx context.Context, id int64, archived bool) error {
	if err := s.storage.Queries().SetCategoryArchived(ctx, id, archived); err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("%w: category %d", core.ErrNotFound, id)
		}
		return fmt.Errorf("set category archived: %w", err)
	}
	return nil
}

// AddTransaction records an income or expense. A CONFIRMED transaction
// moves the wallet balance in the same database transaction; a PENDING one
// has no balance effect until ConfirmTransaction.
func (s *WalletService) AddTransaction(ctx context.Context, t core.WalletTransaction) (core.WalletTransaction, error) {
	if err := t.Validate(); err != nil {
		return core.WalletTransaction{}, err
	}
	if err := s.checkTransactionRefs(ctx, t.WalletID, t.CategoryID); err != nil {
		return core.WalletTransaction{}, err
	}

	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		id, err := q.CreateTransaction(ctx, t)
		if err != nil {
			return err
		}
		t.ID = id
		if t.Status == core.Confirmed {
			return q.AdjustWalletBalance(ctx, t.WalletID, balanceEffect(t))
		}
		return nil
	})
	if err != nil {
		return core.WalletTransaction{}, fmt.Errorf("add transaction: %w", err)
	}

	s.publishSync(ctx, t.ID, 1)
	return t, nil
}

// ConfirmTransaction applies a pending transaction to its wallet balance,
// exactly once.
func (s *WalletService) ConfirmTransaction(ctx context.Context, id int64) error {
	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		t, err := q.GetTransaction(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNoRows) {
				return fmt.Errorf("%w: transaction %d", core.ErrNotFound, id)
			}
			return err
		}
		if t.Status == core.Confirmed {
			return fmt.Errorf("%w: transaction %d is already confirmed", core.ErrInvalidState, id)
		}
		t.Status = core.Confirmed
		if err := q.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		return q.AdjustWalletBalance(ctx, t.WalletID, balanceEffect(t))
	})
	if err != nil {
		return err
	}

	s.publishSyncLatest(ctx, id)
	return nil
}

// UpdateTransaction replaces a transaction's mutable fields. When the old
// row was confirmed its balance effect is reverted and the new one applied,
// so the wallet stays consistent across amount, type, and wallet changes.
func (s *WalletService) UpdateTransaction(ctx context.Context, t core.WalletTransaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.checkTransactionRefs(ctx, t.WalletID, t.CategoryID); err != nil {
		return err
	}

	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		old, err := q.GetTransaction(ctx, t.ID)
		if err != nil {
			if errors.Is(err, storage.ErrNoRows) {
				return fmt.Errorf("%w: transaction %d", core.ErrNotFound, t.ID)
			}
			return err
		}
		// Status transitions go through Confirm, not Update.
		t.Status = old.Status

		if err := q.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		if old.Status == core.Confirmed {
			if err := q.AdjustWalletBalance(ctx, old.WalletID, balanceEffect(old).Neg()); err != nil {
				return err
			}
			return q.AdjustWalletBalance(ctx, t.WalletID, balanceEffect(t))
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishSyncLatest(ctx, t.ID)
	return nil
}

// DeleteTransaction removes a transaction, reverting its balance effect if
// it had been confirmed.
func (s *WalletService) DeleteTransaction(ctx context.Context, id int64) error {
	return s.storage.WithTx(ctx, func(q *storage.Queries) error {
		t, err := q.GetTransaction(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNoRows) {
				return fmt.Errorf("%w: transaction %d", core.ErrNotFound, id)
			}
			return err
		}
		if err := q.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		if t.Status == core.Confirmed {
			return q.AdjustWalletBalance(ctx, t.WalletID, balanceEffect(t).Neg())
		}
		return nil
	})
}

func (s *WalletService) GetTransaction(ctx context.Context, id int64) (core.WalletTransaction, error) {
	t, err := s.storage.Queries().GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return core.WalletTransaction{}, fmt.Errorf("%w: transaction %d", core.ErrNotFound, id)
		}
		return core.WalletTransaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (s *WalletService) ListTransactions(ctx context.Context, walletID int64) ([]core.WalletTransaction, error) {
	return s.storage.Queries().ListTransactionsByWallet(ctx, walletID)
}

func (s *WalletService) ListTransactionsByMonth(ctx context.Context, walletID int64, month core.YearMonth) ([]core.WalletTransaction, error) {
	return s.storage.Queries().ListTransactionsByWalletMonth(ctx, walletID, month)
}

// Transfer moves money between two wallets atomically. The sender must
// cover the full amount with its confirmed balance.
func (s *WalletService) Transfer(ctx context.Context, t core.Transfer) (core.Transfer, error) {
	if err := t.Validate(); err != nil {
		return core.Transfer{}, err
	}

	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		sender, err := q.GetWallet(ctx, t.SenderID)
		if err != nil {
			if errors.Is(err, storage.ErrNoRows) {
				return fmt.Errorf("%w: wallet %d", core.ErrNotFound, t.SenderID)
			}
			return err
		}
		receiver, err := q.GetWallet(ctx, t.ReceiverID)
		if err != nil {
			if errors.Is(err, storage.ErrNoRows) {
				return fmt.Errorf("%w: wallet %d", core.ErrNotFound, t.ReceiverID)
			}
			return err
		}
		if sender.Archived {
			return fmt.Errorf("%w: wallet %q is archived", core.ErrConflict, sender.Name)
		}
		if receiver.Archived {
			return fmt.Errorf("%w: wallet %q is archived", core.ErrConflict, receiver.Name)
		}
		if sender.Balance.Cmp(t.Amount) < 0 {
			return fmt.Errorf("%w: wallet %q has insufficient balance for transfer of %s",
				core.ErrConflict, sender.Name, t.Amount)
		}

		id, err := q.CreateTransfer(ctx, t)
		if err != nil {
			return err
		}
		t.ID = id
		if err := q.AdjustWalletBalance(ctx, t.SenderID, t.Amount.Neg()); err != nil {
			return err
		}
		return q.AdjustWalletBalance(ctx, t.ReceiverID, t.Amount)
	})
	if err != nil {
		return core.Transfer{}, err
	}
	return t, nil
}

func (s *WalletService) ListTransfers(ctx context.Context, walletID int64) ([]core.Transfer, error) {
	return s.storage.Queries().ListTransfersByWallet(ctx, walletID)
}

// ForeseenBalance projects the wallet balance through the given month:
// current balance plus pending incomes minus pending expenses dated inside
// the month.
func (s *WalletService) ForeseenBalance(ctx context.Context, walletID int64, month core.YearMonth) (core.Money, error) {
	w, err := s.GetWallet(ctx, walletID)
	if err != nil {
		return core.Money{}, err
	}

	from := time.Date(month.Year, month.Month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)

	q := s.storage.Queries()
	incomes, err := q.SumPendingBetween(ctx, walletID, core.Income, from, to)
	if err != nil {
		return core.Money{}, err
	}
	expenses, err := q.SumPendingBetween(ctx, walletID, core.Expense, from, to)
	if err != nil {
		return core.Money{}, err
	}
	return w.Balance.Add(incomes).Sub(expenses), nil
}

func (s *WalletService) checkTransactionRefs(ctx context.Context, walletID, categoryID int64) error {
	q := s.storage.Queries()
	w, err := q.GetWallet(ctx, walletID)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("%w: wallet %d", core.ErrNotFound, walletID)
		}
		return fmt.Errorf("get wallet: %w", err)
	}
	// Archived wallets keep their history readable but accept nothing new.
	if w.Archived {
		return fmt.Errorf("%w: wallet %q is archived", core.ErrConflict, w.Name)
	}
	if _, err := q.GetCategory(ctx, categoryID); err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("%w: category %d", core.ErrNotFound, categoryID)
		}
		return fmt.Errorf("get category: %w", err)
	}
	return nil
}

// publishSync notifies the export worker. Failures are logged, never
// surfaced: the row is saved locally and the pending-export scan catches up.
func (s *WalletService) publishSync(ctx context.Context, id, version int64) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.PublishTransactionSync(ctx, id, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync message",
			"id", id, "version", version, "error", err)
	}
}

func (s *WalletService) publishSyncLatest(ctx context.Context, id int64) {
	if s.amqpClient == nil {
		return
	}
	exp, err := s.storage.Queries().GetExportableTransaction(ctx, id)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to load transaction for sync", "id", id, "error", err)
		return
	}
	s.publishSync(ctx, id, exp.Version)
}

// balanceEffect is the signed delta a confirmed transaction applies to its
// wallet.
func balanceEffect(t core.WalletTransaction) core.Money {
	if t.Type == core.Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Close closes both storage and AMQP connections.
func (s *WalletService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.amqpClient != nil {
		if err := s.amqpClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close wallet service: %v", errs)
	}
	return nil
}
