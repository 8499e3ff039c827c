/*
Package billing contains the transactional financial workflows of the clinic
backend: payment allocation across treatments, advance-credit reconciliation
at treatment intake, daybook closing, queue admission, and manual transaction
recording.

PURPOSE:
  Every workflow here runs inside a single store transaction (TxStore.WithTx)
  and fails atomically: any error mid-sequence rolls back every write, so no
  partial financial state is ever visible. The arithmetic itself lives in the
  pure clinic balance engine; this package sequences reads, engine calls and
  writes.

THE ALLOCATION WORKFLOW (this file):
  Input: patient, total amount received, and per-treatment allocations.
  1. For each allocation, settle the payment against the treatment
     (clamped at finalAmount) and reduce the patient balance by the
     allocated amount.
  2. Whatever was received but not allocated becomes (or increases) the
     patient's advance credit: a further balance reduction.
  3. Exactly ONE income transaction is recorded for the full amount
     received, tied to a treatment only when exactly one allocation applied.
  Output: the patient's refreshed treatments, transactions and record.

SEE ALSO:
  - clinic/balance.go: SettlePayment arithmetic
  - intake.go: the sibling workflow for treatment creation
*/
package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dentalops/clinic-backend/clinic"
)

// currency is the label used in generated transaction descriptions.
const currency = "PKR"

// =============================================================================
// ALLOCATOR
// =============================================================================

// Allocation assigns part of a received payment to one treatment.
type Allocation struct {
	TreatmentID int64
	Amount      decimal.Decimal
}

// AllocationRequest is the full allocate-payments input.
type AllocationRequest struct {
	PatientID   int64
	Amount      decimal.Decimal // total amount received
	Allocations []Allocation
	Description string // fallback when no description can be generated
	DayBookDate string
	UserID      int64
}

// AllocationResult is the refreshed state for the affected patient.
type AllocationResult struct {
	Treatments   []clinic.Treatment
	Transactions []clinic.Transaction
	Patient      clinic.Patient
}

// Allocator orchestrates the allocate-payments workflow.
type Allocator struct {
	Store clinic.TxStore
}

func NewAllocator(store clinic.TxStore) *Allocator {
	return &Allocator{Store: store}
}

// Allocate runs the workflow described in the package comment. It returns a
// validation error before any mutation when the patient id is missing; every
// other failure rolls the whole transaction back.
func (a *Allocator) Allocate(ctx context.Context, req AllocationRequest) (*AllocationResult, error) {
	if req.PatientID == 0 {
		return nil, clinic.MissingField("patientId")
	}

	var result AllocationResult
	err := a.Store.WithTx(ctx, func(s clinic.Store) error {
		totalAllocated := decimal.Zero
		var paidTreatments []int64

		for _, alloc := range req.Allocations {
			// Zero or negative allocations are ignored, not errors.
			if alloc.TreatmentID == 0 || !alloc.Amount.IsPositive() {
				continue
			}
			treatment, err := s.GetTreatment(ctx, alloc.TreatmentID)
			if err != nil {
				if clinic.IsNotFound(err) {
					// Unknown treatment id: skip and keep allocating.
					continue
				}
				return err
			}

			settled := clinic.SettlePayment(treatment.PaidAmount, treatment.FinalAmount, alloc.Amount)
			if err := s.UpdateTreatmentPayment(ctx, treatment.ID, settled.NewPaid, settled.NewStatus); err != nil {
				return err
			}
			if err := s.AdjustPatientBalance(ctx, req.PatientID, settled.BalanceDelta); err != nil {
				return err
			}

			totalAllocated = totalAllocated.Add(alloc.Amount)
			paidTreatments = append(paidTreatments, treatment.ID)
		}

		// Money received beyond the allocations becomes advance credit.
		advance := req.Amount.Sub(totalAllocated)

		patientName := ""
		if p, err := s.GetPatient(ctx, req.PatientID); err == nil {
			patientName = p.Name
		} else if !clinic.IsNotFound(err) {
			return err
		}

		description := allocationDescription(patientName, paidTreatments, advance)
		if description == "" {
			description = req.Description
		}

		if req.Amount.IsPositive() {
			tx := clinic.Transaction{
				PatientID:   req.PatientID,
				Description: description,
				Type:        clinic.TxIncome,
				Amount:      clinic.Round2(req.Amount),
				UserID:      req.UserID,
				DayBookDate: req.DayBookDate,
				Status:      clinic.TxActive,
			}
			// The transaction links to a treatment only when the payment went
			// to exactly one; a split payment stays untied.
			if len(paidTreatments) == 1 {
				tx.TreatmentID = paidTreatments[0]
			}
			if _, err := s.CreateTransaction(ctx, tx); err != nil {
				return err
			}
			if advance.IsPositive() {
				if err := s.AdjustPatientBalance(ctx, req.PatientID, advance.Neg()); err != nil {
					return err
				}
			}
		}

		return refreshPatientState(ctx, s, req.PatientID, &result)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// allocationDescription builds the human-readable summary, e.g.
//
//	Payment (from "Aisha") for Treatment #12
//	Payment (from "Aisha") for Treatments #12, 14, Advance: PKR 500.00
//	Payment (from "Aisha") Advance: PKR 500.00
func allocationDescription(patientName string, treatmentIDs []int64, advance decimal.Decimal) string {
	var b strings.Builder
	if len(treatmentIDs) > 0 {
		fmt.Fprintf(&b, "Payment (from %q) for Treatment", patientName)
		if len(treatmentIDs) > 1 {
			b.WriteString("s")
		}
		b.WriteString(" #")
		for i, id := range treatmentIDs {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.FormatInt(id, 10))
		}
	}
	if advance.IsPositive() {
		if b.Len() > 0 {
			fmt.Fprintf(&b, ", Advance: %s %s", currency, groupedAmount(advance))
		} else {
			fmt.Fprintf(&b, "Payment (from %q) Advance: %s %s", patientName, currency, groupedAmount(advance))
		}
	}
	return b.String()
}

// groupedAmount renders an amount the way receipts show it, with thousands
// separators in the integer part: 1500 becomes "1,500.00".
func groupedAmount(d decimal.Decimal) string {
	s := clinic.MoneyString(d)
	if strings.HasPrefix(s, "-") {
		return "-" + groupedAmount(d.Neg())
	}
	intPart, frac := s[:len(s)-3], s[len(s)-3:]
	var b strings.Builder
	for i := 0; i < len(intPart); i++ {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(intPart[i])
	}
	b.WriteString(frac)
	return b.String()
}

// refreshPatientState loads the patient's full financial state inside the
// same transaction so the response reflects exactly what was committed.
func refreshPatientState(ctx context.Context, s clinic.Store, patientID int64, out *AllocationResult) error {
	treatments, err := s.ListTreatmentsByPatient(ctx, patientID)
	if err != nil {
		return err
	}
	transactions, err := s.ListTransactionsByPatient(ctx, patientID)
	if err != nil {
		return err
	}
	patient, err := s.GetPatient(ctx, patientID)
	if err != nil {
		return err
	}
	out.Treatments = treatments
	out.Transactions = transactions
	out.Patient = *patient
	return nil
}
