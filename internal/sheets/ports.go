package sheets

import (
	"context"
	"time"

	"mymoney/internal/core"
)

// TransactionRow is the denormalized shape pushed to the export target.
// Wallet and category are resolved to names before leaving the process.
type TransactionRow struct {
	ID          int64
	Date        time.Time
	Wallet      string
	Category    string
	Type        core.TransactionType
	Status      core.TransactionStatus
	Amount      core.Money
	Description string
}

// TransactionWriter is the outbound port for the export pipeline.
type TransactionWriter interface {
	Append(ctx context.Context, row TransactionRow) (rowRef string, err error)
}
