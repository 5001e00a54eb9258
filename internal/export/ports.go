// Package export defines the outbound port for the expense export sheet.
package export

import (
	"context"

	"ledger/internal/core"
)

// RowAppender appends one expense as a row on an external sheet.
type RowAppender interface {
	AppendExpense(ctx context.Context, e core.Expense) error
}
