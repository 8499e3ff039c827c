package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalops/clinic-backend/clinic"
)

func TestIntakeCreate_RequiresQueueEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	patientID := mustCreatePatient(t, store, "Aisha Khan", "0.00")

	// The patient never entered today's queue.
	_, err := NewIntake(store).Create(ctx, IntakeRequest{
		Treatment: clinic.Treatment{
			PatientID:   patientID,
			FinalAmount: clinic.ParseMoney("100.00"),
			PaidAmount:  clinic.ParseMoney("40.00"),
		},
		PatientName: "Aisha Khan",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, clinic.ErrNotQueued)

	// Everything rolled back: no treatment, no transaction, balance intact.
	treatments, err := store.ListTreatments(ctx)
	require.NoError(t, err)
	assert.Empty(t, treatments)

	transactions, err := store.ListTransactions(ctx)
	require.NoError(t, err)
	assert.Empty(t, transactions)

	assert.Equal(t, "0.00", patientBalance(t, store, patientID))
}

func TestIntakeCreate_PartialPayment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	patientID := mustCreatePatient(t, store, "Bilal", "0.00")
	entry := mustQueueToday(t, store, patientID)

	id, err := NewIntake(store).Create(ctx, IntakeRequest{
		Treatment: clinic.Treatment{
			PatientID:   patientID,
			FinalAmount: clinic.ParseMoney("100.00"),
			PaidAmount:  clinic.ParseMoney("40.00"),
		},
		PatientName: "Bilal",
		DayBookDate: clinic.Today(),
	})
	require.NoError(t, err)

	treatment, err := store.GetTreatment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, clinic.PaymentPartial, treatment.PaymentStatus)

	// The unpaid 60 becomes debt.
	assert.Equal(t, "60.00", patientBalance(t, store, patientID))

	// The 40 paid now is recorded as income.
	transactions, err := store.ListTransactionsByPatient(ctx, patientID)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "40.00", clinic.MoneyString(transactions[0].Amount))
	assert.Equal(t, "Treatment Payment - Bilal", transactions[0].Description)
	assert.Equal(t, id, transactions[0].TreatmentID)

	// The queue entry flipped to Completed.
	refreshed, err := store.GetQueueEntry(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, clinic.QueueCompleted, refreshed.Status)
}

func TestIntakeCreate_AdvanceFundedNoTransaction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// 100 of advance credit on file.
	patientID := mustCreatePatient(t, store, "Sana", "-100.00")
	mustQueueToday(t, store, patientID)

	_, err := NewIntake(store).Create(ctx, IntakeRequest{
		Treatment: clinic.Treatment{
			PatientID:   patientID,
			FinalAmount: clinic.ParseMoney("80.00"),
			PaidAmount:  clinic.ParseMoney("80.00"),
		},
		PatientName: "Sana",
	})
	require.NoError(t, err)

	// No new money moved, so no income transaction.
	transactions, err := store.ListTransactionsByPatient(ctx, patientID)
	require.NoError(t, err)
	assert.Empty(t, transactions)

	// -100 + (80 - 80) + 80 consumed credit = -20 remaining credit.
	assert.Equal(t, "-20.00", patientBalance(t, store, patientID))
}

func TestIntakeCreate_AdvanceCoversPartOfPayment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	patientID := mustCreatePatient(t, store, "Omar", "-40.00")
	mustQueueToday(t, store, patientID)

	_, err := NewIntake(store).Create(ctx, IntakeRequest{
		Treatment: clinic.Treatment{
			PatientID:   patientID,
			FinalAmount: clinic.ParseMoney("100.00"),
			PaidAmount:  clinic.ParseMoney("100.00"),
		},
		PatientName: "Omar",
	})
	require.NoError(t, err)

	// Only the 60 of new money is recorded as income.
	transactions, err := store.ListTransactionsByPatient(ctx, patientID)
	require.NoError(t, err)
	require.Len(t, transactions, 1)
	assert.Equal(t, "60.00", clinic.MoneyString(transactions[0].Amount))

	// -40 + 0 unpaid + 40 consumed = 0.
	assert.Equal(t, "0.00", patientBalance(t, store, patientID))
}

func TestIntakeCreate_DerivesPaymentStatus(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	patientID := mustCreatePatient(t, store, "Hina", "0.00")
	mustQueueToday(t, store, patientID)

	// The client claims Paid but paid nothing; the server derives the truth.
	id, err := NewIntake(store).Create(ctx, IntakeRequest{
		Treatment: clinic.Treatment{
			PatientID:     patientID,
			FinalAmount:   clinic.ParseMoney("100.00"),
			PaidAmount:    clinic.ParseMoney("0.00"),
			PaymentStatus: clinic.PaymentPaid,
		},
		PatientName: "Hina",
	})
	require.NoError(t, err)

	treatment, err := store.GetTreatment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, clinic.PaymentUnpaid, treatment.PaymentStatus)
}
