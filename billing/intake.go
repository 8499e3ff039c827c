/*
intake.go - Treatment intake workflow

PURPOSE:
  Creates a treatment record and reconciles the clinic's money view in one
  atomic transaction:
    1. Persist the treatment (payment status derived, never trusted).
    2. Reconcile the upfront payment against the patient's advance credit.
    3. Record an income transaction only for money that actually moved now
       (the advance-funded portion was recorded when the advance arrived).
    4. Complete the patient's queue entry for today.

THE QUEUE GATE:
  A treatment cannot be recorded for a patient who was never queued today.
  If no non-Completed queue entry exists for the patient today, the ENTIRE
  intake - treatment row, balance changes, transaction - is rolled back and
  ErrNotQueued is reported. This is the central cross-entity invariant of
  the system, enforced transactionally rather than merely validated.

SEE ALSO:
  - clinic/balance.go: ConsumeAdvance arithmetic
  - queue.go: how patients enter the queue in the first place
*/
package billing

import (
	"context"

	"github.com/dentalops/clinic-backend/clinic"
)

// =============================================================================
// INTAKE
// =============================================================================

// IntakeRequest carries the new treatment plus the request-scoped fields that
// belong on the generated payment transaction rather than the treatment row.
type IntakeRequest struct {
	Treatment   clinic.Treatment
	PatientName string
	DayBookDate string
}

// Intake orchestrates treatment creation.
type Intake struct {
	Store clinic.TxStore
}

func NewIntake(store clinic.TxStore) *Intake {
	return &Intake{Store: store}
}

// Create runs the intake workflow and returns the new treatment id.
func (i *Intake) Create(ctx context.Context, req IntakeRequest) (int64, error) {
	t := req.Treatment
	t.PaidAmount = clinic.Round2(t.PaidAmount)
	t.FinalAmount = clinic.Round2(t.FinalAmount)
	t.PaymentStatus = clinic.PaymentStatusFor(t.PaidAmount, t.FinalAmount)

	var treatmentID int64
	err := i.Store.WithTx(ctx, func(s clinic.Store) error {
		id, err := s.CreateTreatment(ctx, t)
		if err != nil {
			return err
		}
		treatmentID = id

		if t.PatientID != 0 {
			patient, err := s.GetPatient(ctx, t.PatientID)
			switch {
			case clinic.IsNotFound(err):
				// Dangling patient id: no balance to reconcile. The queue
				// gate below still fails the intake.
			case err != nil:
				return err
			default:
				adv := clinic.ConsumeAdvance(patient.Balance, t.FinalAmount, t.PaidAmount)

				// The unpaid remainder becomes owed...
				if err := s.AdjustPatientBalance(ctx, t.PatientID, adv.UnpaidDelta); err != nil {
					return err
				}
				// ...and consumed credit is no longer owed to the patient.
				if adv.AdvanceUsed.IsPositive() {
					if err := s.AdjustPatientBalance(ctx, t.PatientID, adv.AdvanceUsed); err != nil {
						return err
					}
				}

				if adv.NewPayment.IsPositive() {
					tx := clinic.Transaction{
						PatientID:   t.PatientID,
						TreatmentID: id,
						Description: "Treatment Payment - " + req.PatientName,
						Type:        clinic.TxIncome,
						Amount:      adv.NewPayment,
						UserID:      t.UserID,
						DayBookDate: req.DayBookDate,
						Status:      clinic.TxActive,
					}
					if _, err := s.CreateTransaction(ctx, tx); err != nil {
						return err
					}
				}
			}
		}

		// Queue gate: the patient must have been queued today.
		changed, err := s.CompleteQueueEntry(ctx, t.PatientID, clinic.Today())
		if err != nil {
			return err
		}
		if changed == 0 {
			return clinic.ErrNotQueued
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return treatmentID, nil
}
