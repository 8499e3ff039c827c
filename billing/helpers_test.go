package billing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dentalops/clinic-backend/clinic"
	"github.com/dentalops/clinic-backend/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func mustCreatePatient(t *testing.T, s *sqlite.Store, name, balance string) int64 {
	t.Helper()
	id, err := s.CreatePatient(context.Background(), clinic.Patient{
		Name:    name,
		Balance: clinic.ParseMoney(balance),
	})
	require.NoError(t, err)
	return id
}

func mustCreateTreatment(t *testing.T, s *sqlite.Store, patientID int64, final, paid string) int64 {
	t.Helper()
	finalAmt := clinic.ParseMoney(final)
	paidAmt := clinic.ParseMoney(paid)
	id, err := s.CreateTreatment(context.Background(), clinic.Treatment{
		PatientID:     patientID,
		Date:          clinic.Today(),
		TotalCost:     finalAmt,
		FinalAmount:   finalAmt,
		PaidAmount:    paidAmt,
		PaymentStatus: clinic.PaymentStatusFor(paidAmt, finalAmt),
	})
	require.NoError(t, err)
	return id
}

func mustQueueToday(t *testing.T, s *sqlite.Store, patientID int64) clinic.QueueEntry {
	t.Helper()
	result, err := NewQueue(s).Admit(context.Background(), patientID, "", "")
	require.NoError(t, err)
	require.NotNil(t, result.Entry)
	return *result.Entry
}

func patientBalance(t *testing.T, s *sqlite.Store, patientID int64) string {
	t.Helper()
	p, err := s.GetPatient(context.Background(), patientID)
	require.NoError(t, err)
	return clinic.MoneyString(p.Balance)
}
