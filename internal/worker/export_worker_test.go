package worker

import (
	"context"
	"testing"
	"time"

	"mymoney/internal/amqp"
	"mymoney/internal/core"
	"mymoney/internal/sheets/memory"
	"mymoney/internal/storage"
)

func setupWorker(t *testing.T) (*ExportWorker, *storage.SQLiteRepository, *memory.Store) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	store := memory.New()
	return NewExportWorker(repo, store, 10), repo, store
}

func seedTransaction(t *testing.T, repo *storage.SQLiteRepository, desc string) int64 {
	t.Helper()
	ctx := context.Background()
	q := repo.Queries()

	w, err := q.CreateWallet(ctx, "main-"+desc, "CHECKING", core.Money{})
	if err != nil {
		t.Fatalf("CreateWallet: %v", err)
	}
	c, err := q.CreateCategory(ctx, "cat-"+desc)
	if err != nil {
		t.Fatalf("CreateCategory: %v", err)
	}
	id, err := q.CreateTransaction(ctx, core.WalletTransaction{
		WalletID:    w.ID,
		CategoryID:  c.ID,
		Type:        core.Expense,
		Status:      core.Confirmed,
		Amount:      core.Money{Cents: 42_00},
		Description: desc,
		Date:        time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	return id
}

func TestExportWorker_HandleSyncMessage(t *testing.T) {
	worker, repo, store := setupWorker(t)
	ctx := context.Background()

	id := seedTransaction(t, repo, "coffee")

	if err := worker.HandleSyncMessage(ctx, amqp.NewTransactionSyncMessage(id, 1)); err != nil {
		t.Fatalf("HandleSyncMessage: %v", err)
	}

	rows := store.Rows()
	if len(rows) != 1 {
		t.Fatalf("exported rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.ID != id || row.Description != "coffee" || row.Amount.Cents != 42_00 {
		t.Errorf("unexpected row: %+v", row)
	}
	if row.Wallet != "main-coffee" || row.Category != "cat-coffee" {
		t.Errorf("row not denormalized: wallet=%q category=%q", row.Wallet, row.Category)
	}

	// The row is out of the pending set.
	pending, err := repo.Queries().ListPendingExport(ctx, 10)
	if err != nil {
		t.Fatalf("ListPendingExport: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after export = %d, want 0", len(pending))
	}
}

func TestExportWorker_StaleMessageDropped(t *testing.T) {
	worker, repo, store := setupWorker(t)
	ctx := context.Background()

	id := seedTransaction(t, repo, "dinner")

	// Version 1 is already superseded by an update before the worker sees
	// the message.
	tx, err := repo.Queries().GetTransaction(ctx, id)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	tx.Description = "dinner (edited)"
	if err := repo.Queries().UpdateTransaction(ctx, tx); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}

	if err := worker.HandleSyncMessage(ctx, amqp.NewTransactionSyncMessage(id, 1)); err != nil {
		t.Fatalf("HandleSyncMessage(stale): %v", err)
	}
	if len(store.Rows()) != 0 {
		t.Errorf("stale message exported %d rows, want 0", len(store.Rows()))
	}

	// The current version goes through.
	if err := worker.HandleSyncMessage(ctx, amqp.NewTransactionSyncMessage(id, 2)); err != nil {
		t.Fatalf("HandleSyncMessage(current): %v", err)
	}
	rows := store.Rows()
	if len(rows) != 1 || rows[0].Description != "dinner (edited)" {
		t.Errorf("exported rows = %+v, want the edited transaction", rows)
	}
}

func TestExportWorker_MissingRowDropped(t *testing.T) {
	worker, _, store := setupWorker(t)

	if err := worker.HandleSyncMessage(context.Background(), amqp.NewTransactionSyncMessage(999, 1)); err != nil {
		t.Fatalf("HandleSyncMessage(missing) = %v, want nil", err)
	}
	if len(store.Rows()) != 0 {
		t.Errorf("missing row exported %d rows, want 0", len(store.Rows()))
	}
}

func TestExportWorker_StartupCheck(t *testing.T) {
	worker, repo, store := setupWorker(t)
	ctx := context.Background()

	seedTransaction(t, repo, "rent")
	seedTransaction(t, repo, "fuel")

	if err := worker.StartupCheck(ctx); err != nil {
		t.Fatalf("StartupCheck: %v", err)
	}
	if len(store.Rows()) != 2 {
		t.Errorf("exported rows = %d, want 2", len(store.Rows()))
	}

	// Second pass has nothing left.
	if err := worker.ProcessPendingExports(ctx); err != nil {
		t.Fatalf("ProcessPendingExports: %v", err)
	}
	if len(store.Rows()) != 2 {
		t.Errorf("rows after second pass = %d, want 2", len(store.Rows()))
	}
}
