/*
daybook.go - Daybook closing workflow

PURPOSE:
  Recomputes a day's closing balance from live transaction sums. A stored
  closing balance is never trusted: every update re-derives

    closingBalance = openingBalance + Σincome − Σexpense − settledAmount

  summed over active transactions attributed to that ledger day. Re-running
  with identical inputs yields the identical closing balance.

CONTRACT:
  - Update requires the daybook row to pre-exist (NotFound otherwise).
  - Creation requires only date, status and opening balance; the closing
    balance starts unset until the first close.
*/
package billing

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dentalops/clinic-backend/clinic"
)

// =============================================================================
// CLOSER
// =============================================================================

// DaybookUpdate is a partial update keyed by date. Nil fields keep the
// stored value.
type DaybookUpdate struct {
	Date           string
	Status         *clinic.DaybookStatus
	OpeningBalance *decimal.Decimal
	SettledAmount  *decimal.Decimal
	Notes          *string
}

// Closer orchestrates the ledger-close workflow.
type Closer struct {
	Store clinic.TxStore
}

func NewCloser(store clinic.TxStore) *Closer {
	return &Closer{Store: store}
}

// Update merges the partial update over the existing row, recomputes the
// closing balance from live sums and returns the refreshed daybook.
func (c *Closer) Update(ctx context.Context, upd DaybookUpdate) (*clinic.Daybook, error) {
	if upd.Date == "" {
		return nil, clinic.MissingField("date")
	}

	var result clinic.Daybook
	err := c.Store.WithTx(ctx, func(s clinic.Store) error {
		daybook, err := s.GetDaybookByDate(ctx, upd.Date)
		if err != nil {
			return err
		}

		if upd.Status != nil {
			daybook.Status = *upd.Status
		}
		if upd.OpeningBalance != nil {
			daybook.OpeningBalance = clinic.Round2(*upd.OpeningBalance)
		}
		if upd.SettledAmount != nil {
			daybook.SettledAmount = clinic.Round2(*upd.SettledAmount)
		}
		if upd.Notes != nil {
			daybook.Notes = *upd.Notes
		}

		income, err := s.SumTransactions(ctx, upd.Date, clinic.TxIncome)
		if err != nil {
			return err
		}
		expense, err := s.SumTransactions(ctx, upd.Date, clinic.TxExpense)
		if err != nil {
			return err
		}

		daybook.ClosingBalance = clinic.ClosingBalance(
			daybook.OpeningBalance, income, expense, daybook.SettledAmount)

		if err := s.UpdateDaybook(ctx, *daybook); err != nil {
			return err
		}
		result = *daybook
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
