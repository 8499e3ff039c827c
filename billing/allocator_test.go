package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dentalops/clinic-backend/clinic"
)

func TestAllocate_SingleTreatmentFullPayment(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	patientID := mustCreatePatient(t, store, "Aisha Khan", "100.00")
	treatmentID := mustCreateTreatment(t, store, patientID, "100.00", "0.00")

	result, err := NewAllocator(store).Allocate(ctx, AllocationRequest{
		PatientID:   patientID,
		Amount:      clinic.ParseMoney("100.00"),
		Allocations: []Allocation{{TreatmentID: treatmentID, Amount: clinic.ParseMoney("100.00")}},
		DayBookDate: clinic.Today(),
	})
	require.NoError(t, err)

	require.Len(t, result.Treatments, 1)
	assert.Equal(t, "100.00", clinic.MoneyString(result.Treatments[0].PaidAmount))
	assert.Equal(t, clinic.PaymentPaid, result.Treatments[0].PaymentStatus)

	// The debt is cleared.
	assert.Equal(t, "0.00", clinic.MoneyString(result.Patient.Balance))

	// Exactly one income transaction for the full amount, tied to the
	// single paid treatment.
	require.Len(t, result.Transactions, 1)
	tx := result.Transactions[0]
	assert.Equal(t, clinic.TxIncome, tx.Type)
	assert.Equal(t, "100.00", clinic.MoneyString(tx.Amount))
	assert.Equal(t, treatmentID, tx.TreatmentID)
	assert.Contains(t, tx.Description, `Payment (from "Aisha Khan") for Treatment #`)
}

func TestAllocate_SplitAcrossTreatmentsWithAdvance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	patientID := mustCreatePatient(t, store, "Bilal", "200.00")
	first := mustCreateTreatment(t, store, patientID, "100.00", "0.00")
	second := mustCreateTreatment(t, store, patientID, "100.00", "0.00")

	result, err := NewAllocator(store).Allocate(ctx, AllocationRequest{
		PatientID: patientID,
		Amount:    clinic.ParseMoney("250.00"),
		Allocations: []Allocation{
			{TreatmentID: first, Amount: clinic.ParseMoney("100.00")},
			{TreatmentID: second, Amount: clinic.ParseMoney("100.00")},
		},
	})
	require.NoError(t, err)

	for _, tr := range result.Treatments {
		assert.Equal(t, clinic.PaymentPaid, tr.PaymentStatus)
	}

	// 200 of debt cleared plus 50 of unallocated money becomes credit.
	assert.Equal(t, "-50.00", clinic.MoneyString(result.Patient.Balance))

	require.Len(t, result.Transactions, 1)
	tx := result.Transactions[0]
	assert.Equal(t, "250.00", clinic.MoneyString(tx.Amount))
	// Split payments are not tied to any one treatment.
	assert.Zero(t, tx.TreatmentID)
	assert.Contains(t, tx.Description, "Treatments #")
	assert.Contains(t, tx.Description, "Advance: PKR 50.00")
}

func TestAllocate_AdvanceOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	patientID := mustCreatePatient(t, store, "Sana", "0.00")

	result, err := NewAllocator(store).Allocate(ctx, AllocationRequest{
		PatientID: patientID,
		Amount:    clinic.ParseMoney("100.00"),
	})
	require.NoError(t, err)

	assert.Equal(t, "-100.00", clinic.MoneyString(result.Patient.Balance))
	require.Len(t, result.Transactions, 1)
	assert.Equal(t, `Payment (from "Sana") Advance: PKR 100.00`, result.Transactions[0].Description)
}

func TestAllocate_LargeAdvanceGroupsThousands(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	patientID := mustCreatePatient(t, store, "Sana", "0.00")

	result, err := NewAllocator(store).Allocate(ctx, AllocationRequest{
		PatientID: patientID,
		Amount:    clinic.ParseMoney("1500.00"),
	})
	require.NoError(t, err)

	require.Len(t, result.Transactions, 1)
	assert.Equal(t, `Payment (from "Sana") Advance: PKR 1,500.00`, result.Transactions[0].Description)
}

func TestGroupedAmount(t *testing.T) {
	cases := map[string]string{
		"0.00":       "0.00",
		"999.99":     "999.99",
		"1000.00":    "1,000.00",
		"25500.50":   "25,500.50",
		"1234567.00": "1,234,567.00",
		"-1500.00":   "-1,500.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, groupedAmount(clinic.ParseMoney(in)), in)
	}
}

func TestAllocate_SkipsUnknownAndNonPositiveAllocations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	patientID := mustCreatePatient(t, store, "Omar", "0.00")
	treatmentID := mustCreateTreatment(t, store, patientID, "100.00", "0.00")

	result, err := NewAllocator(store).Allocate(ctx, AllocationRequest{
		PatientID: patientID,
		Amount:    clinic.ParseMoney("50.00"),
		Allocations: []Allocation{
			{TreatmentID: 9999, Amount: clinic.ParseMoney("20.00")}, // unknown id
			{TreatmentID: treatmentID, Amount: clinic.ParseMoney("0.00")},
			{TreatmentID: treatmentID, Amount: clinic.ParseMoney("-5.00")},
		},
	})
	require.NoError(t, err)

	// Nothing was allocated, so the whole amount is advance credit and
	// the treatment is untouched.
	require.Len(t, result.Treatments, 1)
	assert.Equal(t, "0.00", clinic.MoneyString(result.Treatments[0].PaidAmount))
	assert.Equal(t, "-50.00", clinic.MoneyString(result.Patient.Balance))
}

func TestAllocate_OverpaymentBecomesCredit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	patientID := mustCreatePatient(t, store, "Hina", "20.00")
	treatmentID := mustCreateTreatment(t, store, patientID, "100.00", "80.00")

	result, err := NewAllocator(store).Allocate(ctx, AllocationRequest{
		PatientID:   patientID,
		Amount:      clinic.ParseMoney("50.00"),
		Allocations: []Allocation{{TreatmentID: treatmentID, Amount: clinic.ParseMoney("50.00")}},
	})
	require.NoError(t, err)

	// Paid amount clamps at the final amount...
	assert.Equal(t, "100.00", clinic.MoneyString(result.Treatments[0].PaidAmount))
	// ...but the balance drops by the full 50, so the 30 overshoot
	// survives as credit.
	assert.Equal(t, "-30.00", clinic.MoneyString(result.Patient.Balance))
}

func TestAllocate_MissingPatientID(t *testing.T) {
	store := newTestStore(t)

	_, err := NewAllocator(store).Allocate(context.Background(), AllocationRequest{
		Amount: clinic.ParseMoney("50.00"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, clinic.ErrValidation)
}

func TestAllocate_ZeroAmountRecordsNoTransaction(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	patientID := mustCreatePatient(t, store, "Zara", "0.00")

	result, err := NewAllocator(store).Allocate(ctx, AllocationRequest{
		PatientID: patientID,
		Amount:    clinic.ParseMoney("0.00"),
	})
	require.NoError(t, err)
	assert.Empty(t, result.Transactions)
	assert.Equal(t, "0.00", clinic.MoneyString(result.Patient.Balance))
}
