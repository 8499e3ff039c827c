/*
transactions.go - Manual transaction recording

PURPOSE:
  Records a transaction entered directly by staff (an expense, or an income
  not routed through allocation). When the income is tied to a patient, the
  patient balance drops by the amount, through the same balance-adjustment
  path the workflows use. Insert and balance change share one transaction.
*/
package billing

import (
	"context"

	"github.com/dentalops/clinic-backend/clinic"
)

// RecordTransaction inserts a transaction and, for patient-linked income,
// applies the balance reduction atomically. Returns the new transaction id.
func RecordTransaction(ctx context.Context, store clinic.TxStore, t clinic.Transaction) (int64, error) {
	if t.Status == "" {
		t.Status = clinic.TxActive
	}
	t.Amount = clinic.Round2(t.Amount)

	var id int64
	err := store.WithTx(ctx, func(s clinic.Store) error {
		txID, err := s.CreateTransaction(ctx, t)
		if err != nil {
			return err
		}
		id = txID

		if t.Type == clinic.TxIncome && t.PatientID != 0 {
			return s.AdjustPatientBalance(ctx, t.PatientID, t.Amount.Neg())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}
