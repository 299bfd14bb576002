package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"mymoney/internal/amqp"
	"mymoney/internal/cache"
	"mymoney/internal/sheets"
	"mymoney/internal/storage"
)

// nameCacheTTL bounds how long a renamed wallet or category may still appear
// under its old name in exported rows.
const nameCacheTTL = 5 * time.Minute

// ExportWorker pushes wallet transactions from SQLite to the spreadsheet.
// It is driven by AMQP sync messages, with a periodic pending-export scan as
// a backup for lost messages.
type ExportWorker struct {
	storage   *storage.SQLiteRepository
	writer    sheets.TransactionWriter
	batchSize int

	walletNames   *cache.LRU[string]
	categoryNames *cache.LRU[string]
}

func NewExportWorker(storage *storage.SQLiteRepository, writer sheets.TransactionWriter, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:       storage,
		writer:        writer,
		batchSize:     batchSize,
		walletNames:   cache.NewLRU[string](100, nameCacheTTL),
		categoryNames: cache.NewLRU[string](200, nameCacheTTL),
	}
}

// HandleSyncMessage exports the transaction named by one AMQP message. A
// message for a version that no longer matches the row is stale and is
// dropped; the message for the newer version follows it in the queue. A
// message for a deleted row is dropped the same way.
func (w *ExportWorker) HandleSyncMessage(ctx context.Context, msg *amqp.TransactionSyncMessage) error {
	exp, err := w.storage.Queries().GetExportableTransaction(ctx, msg.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			slog.InfoContext(ctx, "Transaction gone, dropping sync message", "id", msg.ID)
			return nil
		}
		return fmt.Errorf("get transaction: %w", err)
	}
	if exp.Version != msg.Version {
		slog.InfoContext(ctx, "Stale sync message, dropping",
			"id", msg.ID,
			"message_version", msg.Version,
			"current_version", exp.Version)
		return nil
	}

	return w.export(ctx, exp)
}

// ProcessPendingExports exports up to batchSize rows still flagged pending.
// This is the backup path for transactions whose messages were lost.
func (w *ExportWorker) ProcessPendingExports(ctx context.Context) error {
	pending, err := w.storage.Queries().ListPendingExport(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending exports: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending exports", "count", len(pending))

	for _, exp := range pending {
		if err := w.export(ctx, exp); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction",
				"id", exp.Transaction.ID, "error", err)
		}
	}
	return nil
}

// StartupCheck drains the pending backlog once at worker start, with a
// larger batch to recover from downtime.
func (w *ExportWorker) StartupCheck(ctx context.Context) error {
	pending, err := w.storage.Queries().ListPendingExport(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("list pending exports for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending exports found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending exports on startup, processing", "count", len(pending))

	exported := 0
	failed := 0
	for _, exp := range pending {
		if err := w.export(ctx, exp); err != nil {
			slog.ErrorContext(ctx, "Failed to export transaction during startup",
				"id", exp.Transaction.ID, "error", err)
			failed++
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Startup export check completed",
		"total", len(pending),
		"exported", exported,
		"errors", failed)
	return nil
}

func (w *ExportWorker) export(ctx context.Context, exp storage.ExportableTransaction) error {
	row, err := w.buildRow(ctx, exp)
	if err != nil {
		w.markError(ctx, exp.Transaction.ID)
		return err
	}

	ref, err := w.writer.Append(ctx, row)
	if err != nil {
		w.markError(ctx, exp.Transaction.ID)
		return fmt.Errorf("append to sheet: %w", err)
	}

	if err := w.storage.Queries().MarkExported(ctx, exp.Transaction.ID, exp.Version); err != nil {
		// The export itself worked; the row stays pending and is retried.
		slog.ErrorContext(ctx, "Failed to mark transaction exported",
			"id", exp.Transaction.ID, "error", err)
	}

	slog.InfoContext(ctx, "Exported transaction",
		"id", exp.Transaction.ID,
		"version", exp.Version,
		"sheets_ref", ref,
		"amount_cents", exp.Transaction.Amount.Cents)
	return nil
}

// buildRow denormalizes the transaction: wallet and category ids become
// names so the sheet is readable without the database.
func (w *ExportWorker) buildRow(ctx context.Context, exp storage.ExportableTransaction) (sheets.TransactionRow, error) {
	t := exp.Transaction

	walletName, err := w.walletName(ctx, t.WalletID)
	if err != nil {
		return sheets.TransactionRow{}, fmt.Errorf("get wallet %d: %w", t.WalletID, err)
	}
	categoryName, err := w.categoryName(ctx, t.CategoryID)
	if err != nil {
		return sheets.TransactionRow{}, fmt.Errorf("get category %d: %w", t.CategoryID, err)
	}

	return sheets.TransactionRow{
		ID:          t.ID,
		Date:        t.Date,
		Wallet:      walletName,
		Category:    categoryName,
		Type:        t.Type,
		Status:      t.Status,
		Amount:      t.Amount,
		Description: t.Description,
	}, nil
}

func (w *ExportWorker) walletName(ctx context.Context, id int64) (string, error) {
	key := strconv.FormatInt(id, 10)
	if name, ok := w.walletNames.Get(key); ok {
		return name, nil
	}
	wallet, err := w.storage.Queries().GetWallet(ctx, id)
	if err != nil {
		return "", err
	}
	w.walletNames.Set(key, wallet.Name)
	return wallet.Name, nil
}

func (w *ExportWorker) categoryName(ctx context.Context, id int64) (string, error) {
	key := strconv.FormatInt(id, 10)
	if name, ok := w.categoryNames.Get(key); ok {
		return name, nil
	}
	category, err := w.storage.Queries().GetCategory(ctx, id)
	if err != nil {
		return "", err
	}
	w.categoryNames.Set(key, category.Name)
	return category.Name, nil
}

func (w *ExportWorker) markError(ctx context.Context, id int64) {
	if err := w.storage.Queries().MarkExportError(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to mark export error", "id", id, "error", err)
	}
}
