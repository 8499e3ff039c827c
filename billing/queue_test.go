package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalops/clinic-backend/clinic"
)

func TestAdmit_AssignsSequentialNumbers(t *testing.T) {
	store := newTestStore(t)

	first := mustQueueToday(t, store, mustCreatePatient(t, store, "Aisha", "0.00"))
	second := mustQueueToday(t, store, mustCreatePatient(t, store, "Bilal", "0.00"))

	assert.Equal(t, 1, first.QueueNumber)
	assert.Equal(t, 2, second.QueueNumber)
	assert.Equal(t, clinic.QueueWaiting, first.Status)
}

func TestAdmit_ActiveDuplicateConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	patientID := mustCreatePatient(t, store, "Sana", "0.00")
	entry := mustQueueToday(t, store, patientID)

	_, err := NewQueue(store).Admit(ctx, patientID, "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, clinic.ErrConflict)

	var conflict *clinic.QueueConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, entry.ID, conflict.Existing.ID)
	assert.Equal(t, entry.QueueNumber, conflict.Existing.QueueNumber)
}

func TestAdmit_CompletedEntryReturnedNotDuplicated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	patientID := mustCreatePatient(t, store, "Omar", "0.00")
	entry := mustQueueToday(t, store, patientID)

	entry.Status = clinic.QueueCompleted
	require.NoError(t, store.UpdateQueueEntry(ctx, entry))

	result, err := NewQueue(store).Admit(ctx, patientID, "", "")
	require.NoError(t, err)

	// The prior entry is surfaced for caller-driven reactivation; no new
	// row appears.
	require.NotNil(t, result.Existing)
	assert.Nil(t, result.Entry)
	assert.Equal(t, entry.ID, result.Existing.ID)

	entries, err := store.ListQueue(ctx, clinic.Today())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAdmit_NumbersNotReusedAfterDeletion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := mustQueueToday(t, store, mustCreatePatient(t, store, "P1", "0.00"))
	mustQueueToday(t, store, mustCreatePatient(t, store, "P2", "0.00"))

	require.NoError(t, store.DeleteQueueEntry(ctx, first.ID))

	third := mustQueueToday(t, store, mustCreatePatient(t, store, "P3", "0.00"))
	assert.Equal(t, 3, third.QueueNumber)
}

func TestAdmit_RequiresPatientID(t *testing.T) {
	store := newTestStore(t)

	_, err := NewQueue(store).Admit(context.Background(), 0, "", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, clinic.ErrValidation)
}

func TestReset_ClearsAllDatesAndLogsActivity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	queue := NewQueue(store)

	p1 := mustCreatePatient(t, store, "P1", "0.00")
	p2 := mustCreatePatient(t, store, "P2", "0.00")
	mustQueueToday(t, store, p1)
	_, err := queue.Admit(ctx, p2, "2026-01-05", "")
	require.NoError(t, err)

	require.NoError(t, queue.Reset(ctx, 7))

	today, err := store.ListQueue(ctx, clinic.Today())
	require.NoError(t, err)
	assert.Empty(t, today)

	other, err := store.ListQueue(ctx, "2026-01-05")
	require.NoError(t, err)
	assert.Empty(t, other)

	logs, err := store.ListActivity(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "queue", logs[0].Entity)
	assert.Equal(t, "delete", logs[0].Type)
	assert.Equal(t, int64(7), logs[0].UserID)
}

func TestRecordTransaction_IncomeReducesPatientBalance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	patientID := mustCreatePatient(t, store, "Hina", "100.00")

	_, err := RecordTransaction(ctx, store, clinic.Transaction{
		PatientID: patientID,
		Type:      clinic.TxIncome,
		Amount:    clinic.ParseMoney("30.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, "70.00", patientBalance(t, store, patientID))
}

func TestRecordTransaction_ExpenseLeavesBalancesAlone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	patientID := mustCreatePatient(t, store, "Hina", "100.00")

	id, err := RecordTransaction(ctx, store, clinic.Transaction{
		Type:   clinic.TxExpense,
		Amount: clinic.ParseMoney("500.00"),
	})
	require.NoError(t, err)

	tx, err := store.GetTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, clinic.TxActive, tx.Status)
	assert.Equal(t, "100.00", patientBalance(t, store, patientID))
}
