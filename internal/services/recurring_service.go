package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mymoney/internal/core"
	"mymoney/internal/storage"
)

// RecurringService expands recurring templates into concrete pending
// transactions. Materialization is catch-up based: a run at time t creates
// every occurrence due since the last one, so missed scheduler runs heal
// themselves.
type RecurringService struct {
	storage *storage.SQLiteRepository
}

func NewRecurringService(storage *storage.SQLiteRepository) *RecurringService {
	return &RecurringService{storage: storage}
}

func (s *RecurringService) CreateRecurring(ctx context.Context, r core.RecurringTransaction) (core.RecurringTransaction, error) {
	r.Status = core.RecurringActive
	r.LastGenerated = nil
	if err := r.Validate(); err != nil {
		return core.RecurringTransaction{}, err
	}
	if err := s.checkRefs(ctx, r.WalletID, r.CategoryID); err != nil {
		return core.RecurringTransaction{}, err
	}

	id, err := s.storage.Queries().CreateRecurring(ctx, r)
	if err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("create recurring transaction: %w", err)
	}
	r.ID = id
	return r, nil
}

func (s *RecurringService) GetRecurring(ctx context.Context, id int64) (core.RecurringTransaction, error) {
	r, err := s.storage.Queries().GetRecurring(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return core.RecurringTransaction{}, fmt.Errorf("%w: recurring transaction %d", core.ErrNotFound, id)
		}
		return core.RecurringTransaction{}, fmt.Errorf("get recurring transaction: %w", err)
	}
	return r, nil
}

func (s *RecurringService) ListRecurring(ctx context.Context) ([]core.RecurringTransaction, error) {
	return s.storage.Queries().ListRecurring(ctx)
}

// UpdateRecurring rewrites a template. Already-materialized transactions
// are untouched; only future occurrences change.
func (s *RecurringService) UpdateRecurring(ctx context.Context, r core.RecurringTransaction) error {
	old, err := s.GetRecurring(ctx, r.ID)
	if err != nil {
		return err
	}
	r.Status = old.Status
	r.LastGenerated = old.LastGenerated
	if err := r.Validate(); err != nil {
		return err
	}
	if err := s.checkRefs(ctx, r.WalletID, r.CategoryID); err != nil {
		return err
	}

	if err := s.storage.Queries().UpdateRecurring(ctx, r); err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("%w: recurring transaction %d", core.ErrNotFound, r.ID)
		}
		return fmt.Errorf("update recurring transaction: %w", err)
	}
	return nil
}

// StopRecurring ends a template. Stopping is permanent; a stopped schedule
// is never picked up again.
func (s *RecurringService) StopRecurring(ctx context.Context, id int64) error {
	r, err := s.GetRecurring(ctx, id)
	if err != nil {
		return err
	}
	if r.Status == core.RecurringEnded {
		return fmt.Errorf("%w: recurring transaction %d is already ended", core.ErrInvalidState, id)
	}
	if err := s.storage.Queries().UpdateRecurringStatus(ctx, id, core.RecurringEnded); err != nil {
		return fmt.Errorf("stop recurring transaction: %w", err)
	}
	return nil
}

func (s *RecurringService) DeleteRecurring(ctx context.Context, id int64) error {
	if err := s.storage.Queries().DeleteRecurring(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("%w: recurring transaction %d", core.ErrNotFound, id)
		}
		return fmt.Errorf("delete recurring transaction: %w", err)
	}
	return nil
}

// MaterializeDue walks every active template and creates the pending
// transactions due up to now. Returns the number created. Each template is
// processed in its own database transaction so one bad template cannot
// block the rest.
func (s *RecurringService) MaterializeDue(ctx context.Context, now time.Time) (int, error) {
	active, err := s.storage.Queries().ListActiveRecurring(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active recurring transactions: %w", err)
	}

	slog.InfoContext(ctx, "Materializing recurring transactions",
		"total_active", len(active),
		"as_of", now.Format("2006-01-02"))

	created := 0
	for _, r := range active {
		n, err := s.materializeOne(ctx, r, now)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to materialize recurring transaction",
				"id", r.ID,
				"description", r.Description,
				"error", err)
			continue
		}
		created += n
	}

	slog.InfoContext(ctx, "Recurring materialization complete",
		"created", created,
		"templates_checked", len(active))
	return created, nil
}

func (s *RecurringService) materializeOne(ctx context.Context, r core.RecurringTransaction, now time.Time) (int, error) {
	created := 0
	err := s.storage.WithTx(ctx, func(q *storage.Queries) error {
		due := NextDueDate(r)
		for !due.After(now) {
			if r.EndDate != nil && due.After(*r.EndDate) {
				return q.UpdateRecurringStatus(ctx, r.ID, core.RecurringEnded)
			}

			_, err := q.CreateTransaction(ctx, core.WalletTransaction{
				WalletID:    r.WalletID,
				CategoryID:  r.CategoryID,
				Type:        r.Type,
				Status:      core.Pending,
				Amount:      r.Amount,
				Description: r.Description,
				Date:        due,
			})
			if err != nil {
				return err
			}
			if err := q.UpdateRecurringLastGenerated(ctx, r.ID, due); err != nil {
				return err
			}
			created++

			gen := due
			r.LastGenerated = &gen
			next := NextDueDate(r)
			if !next.After(due) {
				return fmt.Errorf("schedule did not advance past %s", due.Format("2006-01-02"))
			}
			due = next
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// NextDueDate computes the next occurrence of a template: the start date if
// nothing was generated yet, otherwise the last occurrence advanced by one
// period. Monthly and yearly schedules anchor on the start date's day of
// month, clamped to shorter months, so a schedule started on the 31st lands
// on Feb 28 and returns to the 31st in March.
func NextDueDate(r core.RecurringTransaction) time.Time {
	if r.LastGenerated == nil {
		return r.StartDate
	}
	last := *r.LastGenerated

	switch r.Frequency {
	case core.Daily:
		return last.AddDate(0, 0, 1)
	case core.Weekly:
		return last.AddDate(0, 0, 7)
	case core.Monthly:
		return addMonthsClamped(last, 1, r.StartDate.Day())
	case core.Yearly:
		return addMonthsClamped(last, 12, r.StartDate.Day())
	default:
		// Validate rejects unknown frequencies before they are stored.
		return last.AddDate(0, 0, 1)
	}
}

// addMonthsClamped moves a date forward by whole months, targeting
// anchorDay but never overflowing into the next month the way AddDate does.
func addMonthsClamped(t time.Time, months, anchorDay int) time.Time {
	firstOfTarget := time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	day := anchorDay
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func (s *RecurringService) checkRefs(ctx context.Context, walletID, categoryID int64) error {
	q := s.storage.Queries()
	if _, err := q.GetWallet(ctx, walletID); err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("%w: wallet %d", core.ErrNotFound, walletID)
		}
		return fmt.Errorf("get wallet: %w", err)
	}
	if _, err := q.GetCategory(ctx, categoryID); err != nil {
		if errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("%w: category %d", core.ErrNotFound, categoryID)
		}
		return fmt.Errorf("get category: %w", err)
	}
	return nil
}
