package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalops/clinic-backend/clinic"
	"github.com/dentalops/clinic-backend/store/sqlite"
)

func seedDaybookDay(t *testing.T, store *sqlite.Store, date string) {
	t.Helper()
	ctx := context.Background()

	_, err := store.CreateDaybook(ctx, clinic.Daybook{
		Date:           date,
		OpeningBalance: clinic.ParseMoney("1000.00"),
	})
	require.NoError(t, err)

	for _, tx := range []clinic.Transaction{
		{Type: clinic.TxIncome, Amount: clinic.ParseMoney("300.00"), DayBookDate: date},
		{Type: clinic.TxIncome, Amount: clinic.ParseMoney("200.00"), DayBookDate: date},
		{Type: clinic.TxExpense, Amount: clinic.ParseMoney("150.00"), DayBookDate: date},
		// Void entries must not count.
		{Type: clinic.TxIncome, Amount: clinic.ParseMoney("999.00"), DayBookDate: date, Status: clinic.TxVoid},
		// Other days must not count.
		{Type: clinic.TxIncome, Amount: clinic.ParseMoney("500.00"), DayBookDate: "2001-01-01"},
	} {
		_, err := store.CreateTransaction(ctx, tx)
		require.NoError(t, err)
	}
}

func TestCloserUpdate_ComputesClosingBalance(t *testing.T) {
	store := newTestStore(t)
	date := "2026-08-29"
	seedDaybookDay(t, store, date)

	settled := clinic.ParseMoney("100.00")
	closed := clinic.DaybookClosed
	daybook, err := NewCloser(store).Update(context.Background(), DaybookUpdate{
		Date:          date,
		Status:        &closed,
		SettledAmount: &settled,
	})
	require.NoError(t, err)

	// 1000 + 500 income - 150 expense - 100 settled = 1250
	assert.Equal(t, "1250.00", clinic.MoneyString(daybook.ClosingBalance))
	assert.Equal(t, clinic.DaybookClosed, daybook.Status)

	// The stored row matches the returned one.
	stored, err := store.GetDaybookByDate(context.Background(), date)
	require.NoError(t, err)
	assert.Equal(t, "1250.00", clinic.MoneyString(stored.ClosingBalance))
}

func TestCloserUpdate_Idempotent(t *testing.T) {
	store := newTestStore(t)
	date := "2026-08-29"
	seedDaybookDay(t, store, date)

	closer := NewCloser(store)
	first, err := closer.Update(context.Background(), DaybookUpdate{Date: date})
	require.NoError(t, err)
	second, err := closer.Update(context.Background(), DaybookUpdate{Date: date})
	require.NoError(t, err)

	assert.True(t, first.ClosingBalance.Equal(second.ClosingBalance),
		"closing balance changed on re-close: %s vs %s",
		first.ClosingBalance, second.ClosingBalance)
}

func TestCloserUpdate_PartialMergeKeepsStoredFields(t *testing.T) {
	store := newTestStore(t)
	date := "2026-08-29"
	seedDaybookDay(t, store, date)

	// First update sets the settled amount.
	settled := clinic.ParseMoney("100.00")
	_, err := NewCloser(store).Update(context.Background(), DaybookUpdate{
		Date:          date,
		SettledAmount: &settled,
	})
	require.NoError(t, err)

	// A later update without settledAmount must not reset it.
	notes := "evening recount"
	daybook, err := NewCloser(store).Update(context.Background(), DaybookUpdate{
		Date:  date,
		Notes: &notes,
	})
	require.NoError(t, err)

	assert.Equal(t, "100.00", clinic.MoneyString(daybook.SettledAmount))
	assert.Equal(t, "1250.00", clinic.MoneyString(daybook.ClosingBalance))
	assert.Equal(t, "evening recount", daybook.Notes)
}

func TestCloserUpdate_MissingDaybook(t *testing.T) {
	store := newTestStore(t)

	_, err := NewCloser(store).Update(context.Background(), DaybookUpdate{Date: "1999-01-01"})
	require.Error(t, err)
	assert.True(t, clinic.IsNotFound(err))
}

func TestCloserUpdate_RequiresDate(t *testing.T) {
	store := newTestStore(t)

	_, err := NewCloser(store).Update(context.Background(), DaybookUpdate{})
	require.Error(t, err)
	assert.ErrorIs(t, err, clinic.ErrValidation)
}
